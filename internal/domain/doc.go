// Package domain models the daily environmental observations that feed the
// wildfire feature history, and the pure feature computations applied to them.
//
// # Inputs
//
// One merged observation per location per day. Field names match the column
// names of the persisted history table:
//
//	DATE             calendar date, "YYYY-MM-DD"
//	MAX_TEMP         daily maximum temperature, °F           (required)
//	MIN_TEMP         daily minimum temperature, °F           (required)
//	PRECIPITATION    daily precipitation sum, inches         (required)
//	MONTH            1–12                                    (required)
//	AVG_WIND_SPEED   mph
//	DAY_OF_YEAR      1–366
//	NDVI, EVI        MODIS vegetation indices, unitless, roughly −1…1
//	LST_C            MODIS land surface temperature, °C
//	fire_last_7      FIRMS detections near the location in the last 7 days
//
// Satellite values are frequently absent (cloud cover, no recent granule), so
// every field other than the four required ones is optional.
//
// # Point-in-time features
//
//	TEMP_RANGE = MAX_TEMP − MIN_TEMP
//	SEASON     = 0 winter (Dec–Feb), 1 spring (Mar–May), 2 summer (Jun–Aug), 3 fall (Sep–Nov)
//	dryness    = (MAX_TEMP − PRECIPITATION) / (PRECIPITATION + 1)
//	LST_C      = (MAX_TEMP + MIN_TEMP) / 2 when the satellite value is absent
//
// The LST imputation mixes °F air temperatures into a °C column. The trained
// model expects exactly this value, so it is kept as is.
//
// # Window features
//
// Rolling means are computed over a location's retained history, oldest to
// newest. Near the start of a history the mean covers however many rows are
// available (see [RollingMean]):
//
//	roll_precip_7      PRECIPITATION over 7 rows
//	roll_wind_7        AVG_WIND_SPEED over 7 rows
//	roll_temp_range_7  TEMP_RANGE over 7 rows
//	roll_ndvi_3        NDVI over 3 rows
//	roll_evi_3         EVI over 3 rows
//
// # Missing values
//
// Inside the package a missing numeric value is NaN. [FillMissing] runs last and
// replaces every remaining NaN with 0, so records handed to callers or written
// to disk never carry NaN. A derived value that would be infinite (dryness at
// PRECIPITATION = −1) is treated as missing, so records are always finite.
package domain
