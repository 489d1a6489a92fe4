package domain

import "fmt"

// RollingSpec declares a rolling mean of Source over the last Window rows,
// written to Target.
type RollingSpec struct {
	Source string
	Window int
	Target string
}

// DefaultRollingSpecs are the window features the wildfire model was trained on.
var DefaultRollingSpecs = []RollingSpec{
	{Source: ColPrecipitation, Window: 7, Target: ColRollPrecip7},
	{Source: ColAvgWindSpeed, Window: 7, Target: ColRollWind7},
	{Source: ColTempRange, Window: 7, Target: ColRollTempRange7},
	{Source: ColNDVI, Window: 3, Target: ColRollNDVI3},
	{Source: ColEVI, Window: 3, Target: ColRollEVI3},
}

// RollingMean returns, for each position i, the mean of the present values
// among values[max(0, i-window+1) .. i]. Positions whose window holds no
// present value are Missing. A window smaller than the series still slides;
// near the start the mean covers only the rows seen so far.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	var count int
	for i, v := range values {
		if !IsMissing(v) {
			sum += v
			count++
		}
		if j := i - window; j >= 0 && !IsMissing(values[j]) {
			sum -= values[j]
			count--
		}
		if count == 0 {
			out[i] = Missing
			// Reset so float drift from earlier values cannot leak into later windows.
			sum = 0
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}

// ApplyRolling computes every spec over records, oldest first, in place.
func ApplyRolling(records []Record, specs []RollingSpec) error {
	for _, spec := range specs {
		if spec.Window < 1 {
			return fmt.Errorf("rolling %s: window must be at least 1, got %d", spec.Target, spec.Window)
		}
		if !IsNumericColumn(spec.Source) || !IsNumericColumn(spec.Target) {
			return fmt.Errorf("rolling %s over %s: unknown column", spec.Target, spec.Source)
		}

		values := make([]float64, len(records))
		for i := range records {
			values[i], _ = records[i].Value(spec.Source)
		}
		for i, m := range RollingMean(values, spec.Window) {
			records[i].Set(spec.Target, m)
		}
	}
	return nil
}
