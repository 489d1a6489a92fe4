package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
)

// LocationHeader names the location when a message has no key.
const LocationHeader = "location"

// ErrNoLocation is returned for a message that names no location.
var ErrNoLocation = errors.New("message has no location")

// Updater appends an observation to a location's history.
// *history.Store implements it.
type Updater interface {
	Update(ctx context.Context, key string, obs domain.Observation) ([]domain.Record, error)
}

// FeatureTransformer implements Transformer by applying each observation to
// the feature history and emitting the newest row.
type FeatureTransformer struct {
	store  Updater
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTransformer creates a FeatureTransformer. A nil clock uses real time.
func NewTransformer(store Updater, clock clockwork.Clock, logger *slog.Logger) *FeatureTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FeatureTransformer{store: store, clock: clock, logger: logger}
}

func (t *FeatureTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.FeatureEvent, error) {
	location := string(raw.Key)
	if location == "" {
		location = raw.Headers[LocationHeader]
	}
	if location == "" {
		return domain.FeatureEvent{}, ErrNoLocation
	}

	obs, err := domain.ParseObservation(raw.Value)
	if err != nil {
		return domain.FeatureEvent{}, err
	}

	window, err := t.store.Update(ctx, location, obs)
	if err != nil {
		return domain.FeatureEvent{}, fmt.Errorf("update history for %q: %w", location, err)
	}

	t.logger.Debug("features computed", "location", location, "date", obs.Date, "window_length", len(window))

	event := domain.FeatureEvent{
		ID:           uuid.NewString(),
		Location:     location,
		Latest:       window[len(window)-1],
		WindowLength: len(window),
		ProcessedAt:  t.clock.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		return domain.FeatureEvent{}, fmt.Errorf("features for %q: %w", location, err)
	}
	return event, nil
}
