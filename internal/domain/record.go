package domain

import "math"

// Column names of the feature history table.
const (
	ColDate           = "DATE"
	ColPrecipitation  = "PRECIPITATION"
	ColMaxTemp        = "MAX_TEMP"
	ColMinTemp        = "MIN_TEMP"
	ColAvgWindSpeed   = "AVG_WIND_SPEED"
	ColDayOfYear      = "DAY_OF_YEAR"
	ColMonth          = "MONTH"
	ColNDVI           = "NDVI"
	ColEVI            = "EVI"
	ColLSTC           = "LST_C"
	ColFireLast7      = "fire_last_7"
	ColTempRange      = "TEMP_RANGE"
	ColSeason         = "SEASON"
	ColDryness        = "dryness"
	ColRollPrecip7    = "roll_precip_7"
	ColRollWind7      = "roll_wind_7"
	ColRollTempRange7 = "roll_temp_range_7"
	ColRollNDVI3      = "roll_ndvi_3"
	ColRollEVI3       = "roll_evi_3"
)

// Record is one day of a location's feature history.
type Record struct {
	Date          string  `json:"DATE"`
	Precipitation float64 `json:"PRECIPITATION"`
	MaxTemp       float64 `json:"MAX_TEMP"`
	MinTemp       float64 `json:"MIN_TEMP"`
	AvgWindSpeed  float64 `json:"AVG_WIND_SPEED"`
	DayOfYear     float64 `json:"DAY_OF_YEAR"`
	Month         float64 `json:"MONTH"`
	NDVI          float64 `json:"NDVI"`
	EVI           float64 `json:"EVI"`
	LSTC          float64 `json:"LST_C"`
	FireLast7     float64 `json:"fire_last_7"`

	TempRange float64 `json:"TEMP_RANGE"`
	Season    float64 `json:"SEASON"`
	Dryness   float64 `json:"dryness"`

	RollPrecip7    float64 `json:"roll_precip_7"`
	RollWind7      float64 `json:"roll_wind_7"`
	RollTempRange7 float64 `json:"roll_temp_range_7"`
	RollNDVI3      float64 `json:"roll_ndvi_3"`
	RollEVI3       float64 `json:"roll_evi_3"`
}

// Column binds a numeric column name to its Record field.
type Column struct {
	Name  string
	field func(r *Record) *float64
}

// numericColumns is the current schema, in persisted order, after DATE.
var numericColumns = []Column{
	{ColPrecipitation, func(r *Record) *float64 { return &r.Precipitation }},
	{ColMaxTemp, func(r *Record) *float64 { return &r.MaxTemp }},
	{ColMinTemp, func(r *Record) *float64 { return &r.MinTemp }},
	{ColAvgWindSpeed, func(r *Record) *float64 { return &r.AvgWindSpeed }},
	{ColDayOfYear, func(r *Record) *float64 { return &r.DayOfYear }},
	{ColMonth, func(r *Record) *float64 { return &r.Month }},
	{ColNDVI, func(r *Record) *float64 { return &r.NDVI }},
	{ColEVI, func(r *Record) *float64 { return &r.EVI }},
	{ColLSTC, func(r *Record) *float64 { return &r.LSTC }},
	{ColFireLast7, func(r *Record) *float64 { return &r.FireLast7 }},
	{ColTempRange, func(r *Record) *float64 { return &r.TempRange }},
	{ColSeason, func(r *Record) *float64 { return &r.Season }},
	{ColDryness, func(r *Record) *float64 { return &r.Dryness }},
	{ColRollPrecip7, func(r *Record) *float64 { return &r.RollPrecip7 }},
	{ColRollWind7, func(r *Record) *float64 { return &r.RollWind7 }},
	{ColRollTempRange7, func(r *Record) *float64 { return &r.RollTempRange7 }},
	{ColRollNDVI3, func(r *Record) *float64 { return &r.RollNDVI3 }},
	{ColRollEVI3, func(r *Record) *float64 { return &r.RollEVI3 }},
}

var columnIndex = func() map[string]Column {
	m := make(map[string]Column, len(numericColumns))
	for _, c := range numericColumns {
		m[c.Name] = c
	}
	return m
}()

// Columns returns the current table header: DATE followed by every numeric column.
func Columns() []string {
	names := make([]string, 0, len(numericColumns)+1)
	names = append(names, ColDate)
	for _, c := range numericColumns {
		names = append(names, c.Name)
	}
	return names
}

// IsNumericColumn reports whether name is a numeric column of the current schema.
func IsNumericColumn(name string) bool {
	_, ok := columnIndex[name]
	return ok
}

// EmptyRecord returns a record with every numeric value missing.
func EmptyRecord() Record {
	var r Record
	for _, c := range numericColumns {
		*c.field(&r) = Missing
	}
	return r
}

// Value returns the value of a numeric column. ok is false for unknown names.
func (r *Record) Value(name string) (v float64, ok bool) {
	c, ok := columnIndex[name]
	if !ok {
		return 0, false
	}
	return *c.field(r), true
}

// Set assigns a numeric column. It returns false for unknown names.
func (r *Record) Set(name string, v float64) bool {
	c, ok := columnIndex[name]
	if !ok {
		return false
	}
	*c.field(r) = v
	return true
}

// Missing marks an absent numeric value.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// dropNonFinite marks every infinite value of r as missing.
func (r *Record) dropNonFinite() {
	for _, c := range numericColumns {
		if p := c.field(r); math.IsInf(*p, 0) {
			*p = Missing
		}
	}
}

func valueOrMissing(p *float64) float64 {
	if p == nil {
		return Missing
	}
	return *p
}

func intOrMissing(p *int) float64 {
	if p == nil {
		return Missing
	}
	return float64(*p)
}
