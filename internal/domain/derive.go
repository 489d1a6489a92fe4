package domain

import (
	"fmt"
	"math"
)

// Season codes returned by [Season].
const (
	SeasonWinter = 0
	SeasonSpring = 1
	SeasonSummer = 2
	SeasonFall   = 3
)

// Season maps a calendar month to its meteorological season code.
func Season(month int) (int, error) {
	switch month {
	case 12, 1, 2:
		return SeasonWinter, nil
	case 3, 4, 5:
		return SeasonSpring, nil
	case 6, 7, 8:
		return SeasonSummer, nil
	case 9, 10, 11:
		return SeasonFall, nil
	default:
		return 0, fmt.Errorf("%w: month %d", ErrInvalidCalendar, month)
	}
}

// Derive converts an observation into a history record carrying the
// point-in-time features. Rolling features are left missing; they depend on
// the rest of the window and are filled in by [ApplyRolling].
//
// A value that comes out infinite is recorded as missing, so it is filled like
// any other gap and never reaches a file or a JSON encoder.
//
// Derive is pure: the result depends only on obs.
func Derive(obs Observation) (Record, error) {
	for _, req := range []struct {
		name string
		v    float64
	}{
		{ColMaxTemp, obs.MaxTemp},
		{ColMinTemp, obs.MinTemp},
		{ColPrecipitation, obs.Precipitation},
	} {
		if math.IsNaN(req.v) {
			return Record{}, fmt.Errorf("%w: missing %s", ErrIncompleteObservation, req.name)
		}
	}

	season, err := Season(obs.Month)
	if err != nil {
		return Record{}, err
	}

	r := EmptyRecord()
	r.Date = obs.Date
	r.Precipitation = obs.Precipitation
	r.MaxTemp = obs.MaxTemp
	r.MinTemp = obs.MinTemp
	r.AvgWindSpeed = valueOrMissing(obs.AvgWindSpeed)
	r.DayOfYear = intOrMissing(obs.DayOfYear)
	r.Month = float64(obs.Month)
	r.NDVI = valueOrMissing(obs.NDVI)
	r.EVI = valueOrMissing(obs.EVI)
	r.LSTC = valueOrMissing(obs.LSTC)
	r.FireLast7 = intOrMissing(obs.FireLast7)

	r.TempRange = obs.MaxTemp - obs.MinTemp
	r.Season = float64(season)
	// Only an absent reading is imputed; 0 °C is a real measurement.
	if IsMissing(r.LSTC) {
		r.LSTC = (obs.MaxTemp + obs.MinTemp) / 2
	}
	r.Dryness = dryness(obs.MaxTemp, obs.Precipitation)
	r.dropNonFinite()

	return r, nil
}

// dryness is finite for any precipitation ≥ 0. Negative precipitation is not
// validated; a value of exactly −1 yields ±Inf, which Derive records as missing.
func dryness(maxTemp, precip float64) float64 {
	return (maxTemp - precip) / (precip + 1)
}
