package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnencodableEvent is returned for a feature event that cannot be
// serialized, such as one carrying NaN or ±Inf. Retrying does not help.
var ErrUnencodableEvent = errors.New("feature event cannot be encoded")

// RawEvent represents an unprocessed message from the source topic. The key
// names the location; the value is a JSON Observation.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// FeatureEvent carries the features produced by one history update, destined
// for the sink topic and the downstream predictor.
type FeatureEvent struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	Latest       Record    `json:"latest"`
	WindowLength int       `json:"window_length"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Validate returns ErrUnencodableEvent when the latest row holds a value JSON
// cannot represent.
func (e FeatureEvent) Validate() error {
	for _, c := range numericColumns {
		if v := *c.field(&e.Latest); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrUnencodableEvent, c.Name, v)
		}
	}
	return nil
}
