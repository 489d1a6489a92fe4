package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   []float64
	}{
		{"partial window", []float64{1, 2, 3}, 7, []float64{1, 1.5, 2}},
		{"sliding window", []float64{1, 2, 3, 4, 5}, 3, []float64{1, 1.5, 2, 3, 4}},
		{"window of one", []float64{4, 8, 6}, 1, []float64{4, 8, 6}},
		{"empty", nil, 3, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollingMean(tt.values, tt.window)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "position %d", i)
			}
		})
	}
}

func TestRollingMean_SkipsMissing(t *testing.T) {
	got := RollingMean([]float64{Missing, 2, Missing, 4, Missing, Missing, Missing}, 3)

	assert.True(t, IsMissing(got[0]))
	assert.Equal(t, 2.0, got[1])
	assert.Equal(t, 2.0, got[2])
	assert.Equal(t, 3.0, got[3])
	assert.Equal(t, 4.0, got[4])
	assert.Equal(t, 4.0, got[5])
	assert.True(t, IsMissing(got[6]), "window holds no present value")
}

func TestApplyRolling(t *testing.T) {
	records := make([]Record, 3)
	for i := range records {
		records[i] = EmptyRecord()
		records[i].Precipitation = float64(i + 1)
		records[i].NDVI = 0.1 * float64(i+1)
	}

	require.NoError(t, ApplyRolling(records, DefaultRollingSpecs))

	assert.Equal(t, 1.0, records[0].RollPrecip7)
	assert.Equal(t, 1.5, records[1].RollPrecip7)
	assert.Equal(t, 2.0, records[2].RollPrecip7)
	assert.InDelta(t, 0.2, records[2].RollNDVI3, 1e-9)
	assert.True(t, IsMissing(records[2].RollWind7), "no wind values present")
}

func TestApplyRolling_InvalidSpec(t *testing.T) {
	records := []Record{EmptyRecord()}

	err := ApplyRolling(records, []RollingSpec{{Source: ColPrecipitation, Window: 0, Target: ColRollPrecip7}})
	require.Error(t, err)

	err = ApplyRolling(records, []RollingSpec{{Source: "LAGGED_PRECIPITATION", Window: 3, Target: ColRollPrecip7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}
