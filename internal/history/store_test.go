package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
	"github.com/couchcryptid/wildfire-feature-store/internal/observability"
)

const legacyHistory = `DATE,PRECIPITATION,MAX_TEMP,MIN_TEMP,AVG_WIND_SPEED,DAY_OF_YEAR,MONTH,NDVI,EVI,LST_C,TEMP_RANGE,SEASON,dryness,LAGGED_PRECIPITATION,LAGGED_AVG_WIND_SPEED,roll_precip_7,roll_wind_7,roll_temp_range_7
2023-12-31,0.1,70,50,5,365,12,0.3,0.2,60,20,0,63.63636363636363,0,0,0.1,5,20
`

var testNow = time.Date(2024, time.January, 7, 6, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(Layout{Root: root}, Options{
		Clock:   clockwork.NewFakeClockAt(testNow),
		Logger:  discardLogger(),
		Metrics: observability.NewMetricsForTesting(),
	})
	require.NoError(t, err)
	return s, root
}

func observation(day int, precip float64) domain.Observation {
	return domain.Observation{
		Date:          fmt.Sprintf("2024-01-%02d", day),
		MaxTemp:       70,
		MinTemp:       50,
		Precipitation: precip,
		Month:         1,
		AvgWindSpeed:  domain.Float(5),
		DayOfYear:     domain.Int(day),
		NDVI:          domain.Float(0.3),
		EVI:           domain.Float(0.2),
		FireLast7:     domain.Int(2),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUpdate_EndToEnd(t *testing.T) {
	s, root := newTestStore(t)

	window, err := s.Update(context.Background(), "LA", observation(1, 0))
	require.NoError(t, err)
	require.Len(t, window, 1)

	latest := window[len(window)-1]
	assert.Equal(t, 20.0, latest.TempRange)
	assert.Equal(t, 0.0, latest.Season)
	assert.Equal(t, 70.0, latest.Dryness)
	assert.Equal(t, 60.0, latest.LSTC)
	assert.Equal(t, 0.0, latest.RollPrecip7)
	assert.Equal(t, 0.3, latest.RollNDVI3)
	assert.Equal(t, 0.2, latest.RollEVI3)
	assert.Equal(t, 5.0, latest.RollWind7)
	assert.Equal(t, 20.0, latest.RollTempRange7)
	assert.False(t, latest.HasMissing())

	content := readFile(t, filepath.Join(root, "LA.csv"))
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# schema_version=3 updated_at=2024-01-07T06:00:00Z", lines[0])
	assert.Equal(t, strings.Join(domain.Columns(), ","), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2024-01-01,0,70,50,5,1,1,0.3,0.2,60,2,20,0,70,"))
}

func TestUpdate_WindowBound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for n := 1; n <= 12; n++ {
		window, err := s.Update(ctx, "Fresno", observation(n, float64(n)))
		require.NoError(t, err)
		require.Len(t, window, min(n, DefaultWindow), "after %d appends", n)
		assert.Equal(t, fmt.Sprintf("2024-01-%02d", n), window[len(window)-1].Date)
	}

	window, err := s.History(ctx, "Fresno")
	require.NoError(t, err)
	require.Len(t, window, DefaultWindow)
	assert.Equal(t, "2024-01-06", window[0].Date, "oldest rows are dropped from the front")

	// Precipitation 6..12 retained; the last 7-row mean spans all of them.
	assert.InDelta(t, 9.0, window[6].RollPrecip7, 1e-9)
}

func TestUpdate_PartialWindowRollingMean(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var window []domain.Record
	for i, p := range []float64{1, 2, 3} {
		var err error
		window, err = s.Update(ctx, "Redding", observation(i+1, p))
		require.NoError(t, err)
	}

	got := make([]float64, len(window))
	for i := range window {
		got[i] = window[i].RollPrecip7
	}
	assert.Equal(t, []float64{1.0, 1.5, 2.0}, got)
}

func TestUpdate_SmallerRetentionWindow(t *testing.T) {
	root := t.TempDir()
	s, err := New(Layout{Root: root}, Options{Window: 2, Logger: discardLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	var window []domain.Record
	for i, p := range []float64{1, 2, 3, 4} {
		window, err = s.Update(ctx, "LA", observation(i+1, p))
		require.NoError(t, err)
	}
	require.Len(t, window, 2)
	assert.Equal(t, 3.0, window[0].RollPrecip7)
	assert.Equal(t, 3.5, window[1].RollPrecip7)
}

func TestUpdate_DropsDeprecatedColumns(t *testing.T) {
	s, root := newTestStore(t)
	path := filepath.Join(root, "Los_Angeles.csv")
	require.NoError(t, os.WriteFile(path, []byte(legacyHistory), 0o644))

	window, err := s.Update(context.Background(), "Los Angeles", observation(1, 0.3))
	require.NoError(t, err)
	require.Len(t, window, 2)

	assert.Equal(t, "2023-12-31", window[0].Date)
	assert.InDelta(t, 0.2, window[1].RollPrecip7, 1e-9)
	assert.InDelta(t, 0.3, window[1].RollNDVI3, 1e-9)
	assert.Equal(t, 0.0, window[0].FireLast7, "column added by migration is gap filled")

	content := readFile(t, path)
	assert.NotContains(t, content, "LAGGED_PRECIPITATION")
	assert.NotContains(t, content, "LAGGED_AVG_WIND_SPEED")
	assert.True(t, strings.HasPrefix(content, "# schema_version=3 "))
}

func TestUpdate_SubsetHeader(t *testing.T) {
	s, root := newTestStore(t)
	old := "# schema_version=3\nDATE,PRECIPITATION,MAX_TEMP,MIN_TEMP,MONTH\n2023-12-31,2,60,40,12\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "Napa.csv"), []byte(old), 0o644))

	window, err := s.Update(context.Background(), "Napa", observation(1, 0))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, 1.0, window[1].RollPrecip7)
	assert.Equal(t, 0.0, window[0].NDVI)
}

func TestUpdate_EntitiesAreIndependent(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "B", observation(1, 4))
	require.NoError(t, err)
	before := readFile(t, filepath.Join(root, "B.csv"))

	for i := 1; i <= 3; i++ {
		_, err := s.Update(ctx, "A", observation(i, 1))
		require.NoError(t, err)
	}

	assert.Equal(t, before, readFile(t, filepath.Join(root, "B.csv")))
	b, err := s.History(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestUpdate_CorruptedStore(t *testing.T) {
	tests := map[string]string{
		"ragged rows":     "DATE,PRECIPITATION\n2024-01-01,1,2,3\n",
		"non numeric":     "DATE,PRECIPITATION,MAX_TEMP\n2024-01-01,wet,70\n",
		"future version":  "# schema_version=99\nDATE\n2024-01-01\n",
		"bad marker":      "# schema_version=two\nDATE\n",
		"duplicate field": "DATE,NDVI,NDVI\n2024-01-01,1,1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			s, root := newTestStore(t)
			path := filepath.Join(root, "LA.csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := s.Update(context.Background(), "LA", observation(1, 0))
			require.ErrorIs(t, err, ErrCorrupted)
			assert.Equal(t, content, readFile(t, path), "corrupted file must not be overwritten")
		})
	}
}

func TestUpdate_InvalidObservationPersistsNothing(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "LA", observation(1, 0))
	require.NoError(t, err)
	path := filepath.Join(root, "LA.csv")
	before := readFile(t, path)

	bad := observation(2, 0)
	bad.Month = 13
	_, err = s.Update(ctx, "LA", bad)
	require.ErrorIs(t, err, domain.ErrInvalidCalendar)
	assert.Equal(t, before, readFile(t, path))

	_, err = s.Update(ctx, "Ojai", bad)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "Ojai.csv"))
}

func TestUpdate_EmptyFileIsEmptyHistory(t *testing.T) {
	s, root := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "history.csv"), nil, 0o644))

	window, err := s.Update(context.Background(), "", observation(1, 0))
	require.NoError(t, err)
	assert.Len(t, window, 1)
}

func TestUpdate_CancelledContext(t *testing.T) {
	s, root := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Update(ctx, "LA", observation(1, 0))
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(root, "LA.csv"))
}

func TestUpdate_ConcurrentSameEntity(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, "Malibu", observation(i%28+1, 0))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	window, err := s.History(ctx, "Malibu")
	require.NoError(t, err)
	assert.Len(t, window, DefaultWindow)

	matches, err := filepath.Glob(filepath.Join(root, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "no temporary files are left behind")
}

func TestHistory_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.History(context.Background(), "Nowhere")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_MatchesUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var window []domain.Record
	for i := 1; i <= 4; i++ {
		var err error
		window, err = s.Update(ctx, "Ventura", observation(i, float64(i)/10))
		require.NoError(t, err)
	}

	stored, err := s.History(ctx, "Ventura")
	require.NoError(t, err)
	if diff := cmp.Diff(window, stored); diff != "" {
		t.Errorf("persisted history differs from returned window (-want +got):\n%s", diff)
	}
}

func TestStore_Migrate(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Los_Angeles.csv"), []byte(legacyHistory), 0o644))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Los_Angeles"}, keys)

	existed, err := s.Migrate(ctx, keys[0])
	require.NoError(t, err)
	assert.True(t, existed)

	content := readFile(t, filepath.Join(root, "Los_Angeles.csv"))
	assert.NotContains(t, content, "LAGGED")
	assert.Contains(t, content, domain.ColRollEVI3)

	window, err := s.History(ctx, "Los Angeles")
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.InDelta(t, 0.2, window[0].RollEVI3, 1e-9)

	existed, err = s.Migrate(ctx, "Nowhere")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestNew_InvalidWindow(t *testing.T) {
	_, err := New(Layout{Root: t.TempDir()}, Options{Window: -1})
	require.Error(t, err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "incomplete", outcome(fmt.Errorf("wrap: %w", domain.ErrIncompleteObservation)))
	assert.Equal(t, "invalid_calendar", outcome(domain.ErrInvalidCalendar))
	assert.Equal(t, "corrupted", outcome(ErrCorrupted))
	assert.Equal(t, "error", outcome(os.ErrPermission))
}

func TestCheckReadiness(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")
	s, err := New(Layout{Root: root}, Options{Logger: discardLogger()})
	require.NoError(t, err)

	require.NoError(t, s.CheckReadiness(context.Background()))
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	s, err = New(Layout{Root: filepath.Join(blocker, "store")}, Options{Logger: discardLogger()})
	require.NoError(t, err)
	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestUpdate_NegativeOnePrecipitationStaysFinite(t *testing.T) {
	s, root := newTestStore(t)

	window, err := s.Update(context.Background(), "LA", observation(1, -1))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 0.0, window[0].Dryness)
	assert.Equal(t, -1.0, window[0].RollPrecip7)

	assert.NotContains(t, readFile(t, filepath.Join(root, "LA.csv")), "Inf")

	_, err = json.Marshal(window)
	require.NoError(t, err)
}
