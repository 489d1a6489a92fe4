package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrIncompleteObservation is returned when a value required to derive
	// features (MAX_TEMP, MIN_TEMP, PRECIPITATION, MONTH) is absent.
	ErrIncompleteObservation = errors.New("incomplete observation")

	// ErrInvalidCalendar is returned for a MONTH outside 1–12 or a DAY_OF_YEAR
	// outside 1–366.
	ErrInvalidCalendar = errors.New("invalid calendar input")

	// ErrMalformedObservation is returned when the input is not a JSON object
	// of the expected shape.
	ErrMalformedObservation = errors.New("malformed observation")
)

// Observation is one location's merged weather, satellite, and fire-activity
// input for a single day. Optional values are nil when the provider had no data.
type Observation struct {
	Date          string
	MaxTemp       float64
	MinTemp       float64
	Precipitation float64
	Month         int

	AvgWindSpeed *float64
	DayOfYear    *int
	NDVI         *float64
	EVI          *float64
	LSTC         *float64
	FireLast7    *int
}

// observationJSON is the wire form of an Observation. JSON null and an omitted
// key both decode to nil.
type observationJSON struct {
	Date          string   `json:"DATE"`
	MaxTemp       *float64 `json:"MAX_TEMP" validate:"required"`
	MinTemp       *float64 `json:"MIN_TEMP" validate:"required"`
	Precipitation *float64 `json:"PRECIPITATION" validate:"required"`
	Month         *int     `json:"MONTH" validate:"required"`
	AvgWindSpeed  *float64 `json:"AVG_WIND_SPEED"`
	DayOfYear     *int     `json:"DAY_OF_YEAR" validate:"omitempty,min=1,max=366"`
	NDVI          *float64 `json:"NDVI"`
	EVI           *float64 `json:"EVI"`
	LSTC          *float64 `json:"LST_C"`
	FireLast7     *int     `json:"fire_last_7"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON column names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseObservation decodes a merged observation from JSON. A missing required
// value yields ErrIncompleteObservation and a DAY_OF_YEAR outside 1–366 yields
// ErrInvalidCalendar. The month range is checked by [Derive].
func ParseObservation(data []byte) (Observation, error) {
	var in observationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return Observation{}, fmt.Errorf("%w: %w", ErrMalformedObservation, err)
	}
	return in.toObservation()
}

// UnmarshalJSON implements json.Unmarshaler with the same rules as ParseObservation.
func (o *Observation) UnmarshalJSON(data []byte) error {
	obs, err := ParseObservation(data)
	if err != nil {
		return err
	}
	*o = obs
	return nil
}

// MarshalJSON writes the observation using column names; absent optionals become null.
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(observationJSON{
		Date:          o.Date,
		MaxTemp:       &o.MaxTemp,
		MinTemp:       &o.MinTemp,
		Precipitation: &o.Precipitation,
		Month:         &o.Month,
		AvgWindSpeed:  o.AvgWindSpeed,
		DayOfYear:     o.DayOfYear,
		NDVI:          o.NDVI,
		EVI:           o.EVI,
		LSTC:          o.LSTC,
		FireLast7:     o.FireLast7,
	})
}

func (in observationJSON) toObservation() (Observation, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Observation{}, fmt.Errorf("validate observation: %w", err)
		}
		var missing, invalid []string
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				invalid = append(invalid, fmt.Sprintf("%s=%v", fe.Field(), fe.Value()))
			}
		}
		if len(missing) > 0 {
			return Observation{}, fmt.Errorf("%w: missing %s", ErrIncompleteObservation, strings.Join(missing, ", "))
		}
		return Observation{}, fmt.Errorf("%w: %s", ErrInvalidCalendar, strings.Join(invalid, ", "))
	}

	return Observation{
		Date:          in.Date,
		MaxTemp:       *in.MaxTemp,
		MinTemp:       *in.MinTemp,
		Precipitation: *in.Precipitation,
		Month:         *in.Month,
		AvgWindSpeed:  in.AvgWindSpeed,
		DayOfYear:     in.DayOfYear,
		NDVI:          in.NDVI,
		EVI:           in.EVI,
		LSTC:          in.LSTC,
		FireLast7:     in.FireLast7,
	}, nil
}

// Float returns a pointer to v, for building observations with optional values.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
