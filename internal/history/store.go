// Package history persists each location's bounded feature history and
// recomputes its window features on every update.
//
// Every location owns one CSV file under the store's root. An update reads
// that file, migrates it to the current schema, appends the new observation,
// keeps the most recent rows, recomputes the rolling features, and replaces
// the file atomically. Updates for the same location are serialized within a
// process; updates for different locations never contend.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
	"github.com/couchcryptid/wildfire-feature-store/internal/observability"
)

// DefaultWindow is the number of most recent observations kept per location.
const DefaultWindow = 7

var (
	// ErrCorrupted is returned when a persisted history cannot be read or
	// parsed. The file is left untouched.
	ErrCorrupted = errors.New("history store corrupted")

	// ErrNotFound is returned by read-only access to a location with no history.
	ErrNotFound = errors.New("no history for location")
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Window     int
	Rolling    []domain.RollingSpec
	Migrations []Migration
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Store is the file-backed feature history of every tracked location.
type Store struct {
	layout   Layout
	window   int
	rolling  []domain.RollingSpec
	migrator *Migrator
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	locks    *keyedMutex
}

// New creates a Store rooted at layout.Root. The directory is created on the
// first write.
func New(layout Layout, opts Options) (*Store, error) {
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.Window < 1 {
		return nil, fmt.Errorf("history window must be at least 1, got %d", opts.Window)
	}
	if opts.Rolling == nil {
		opts.Rolling = domain.DefaultRollingSpecs
	}
	if opts.Migrations == nil {
		opts.Migrations = Migrations
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	migrator, err := NewMigrator(opts.Migrations)
	if err != nil {
		return nil, err
	}

	return &Store{
		layout:   layout,
		window:   opts.Window,
		rolling:  slices.Clone(opts.Rolling),
		migrator: migrator,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		locks:    newKeyedMutex(),
	}, nil
}

// Window is the maximum number of rows kept per location.
func (s *Store) Window() int { return s.window }

// Update appends obs to the history of key and returns the resulting window,
// oldest first. The last element holds the features for obs.
//
// Observations must arrive in chronological order per key; the store does not
// sort. On any error the persisted history is left unchanged.
func (s *Store) Update(ctx context.Context, key string, obs domain.Observation) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := s.clock.Now()
	path := s.layout.Path(key)

	unlock := s.locks.lock(path)
	defer unlock()

	records, err := s.update(path, obs)
	s.observe(err, start, len(records))
	if err != nil {
		return nil, err
	}

	s.logger.Debug("history updated", "location", key, "path", path, "rows", len(records))
	return records, nil
}

func (s *Store) update(path string, obs domain.Observation) ([]domain.Record, error) {
	records, _, err := s.load(path)
	if err != nil {
		return nil, err
	}

	rec, err := domain.Derive(obs)
	if err != nil {
		return nil, err
	}

	records = append(records, rec)
	records = trim(records, s.window)

	if err := s.compute(records); err != nil {
		return nil, err
	}
	if err := s.persist(path, records); err != nil {
		return nil, err
	}
	return records, nil
}

// History returns the persisted window of key, migrated in memory, oldest
// first. It returns ErrNotFound when key has no history.
func (s *Store) History(ctx context.Context, key string) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.layout.Path(key)

	unlock := s.locks.lock(path)
	defer unlock()

	records, exists, err := s.load(path)
	if err != nil {
		return nil, err
	}
	if !exists || len(records) == 0 {
		return nil, ErrNotFound
	}
	// Columns added by a migration are empty until the next update.
	domain.FillMissing(records)
	return records, nil
}

// Migrate rewrites the history of key in the current schema, trimming it to
// the window and recomputing window features. It reports whether a file existed.
func (s *Store) Migrate(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path := s.layout.Path(key)

	unlock := s.locks.lock(path)
	defer unlock()

	records, exists, err := s.load(path)
	if err != nil || !exists {
		return false, err
	}
	records = trim(records, s.window)
	if err := s.compute(records); err != nil {
		return true, err
	}
	return true, s.persist(path, records)
}

// CheckReadiness reports whether the history root exists or can be created.
func (s *Store) CheckReadiness(_ context.Context) error {
	if err := os.MkdirAll(s.layout.Root, 0o755); err != nil {
		return fmt.Errorf("history directory unavailable: %w", err)
	}
	return nil
}

// Keys lists the normalized keys of every persisted history.
func (s *Store) Keys() ([]string, error) {
	return s.layout.Keys()
}

// load reads and migrates the history at path. A missing or empty file is an
// empty history; anything unreadable is ErrCorrupted.
func (s *Store) load(path string) ([]domain.Record, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}

	t, err := decodeTable(data)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}

	from := t.Version
	changed, err := s.migrator.Migrate(t)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	if changed {
		s.logger.Info("history schema migrated", "path", path, "from", from, "to", t.Version)
		if s.metrics != nil {
			s.metrics.SchemaMigrations.WithLabelValues(strconv.Itoa(from)).Inc()
		}
	}

	records, ignored, err := toRecords(t)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	if len(ignored) > 0 {
		s.logger.Warn("ignoring unknown history columns", "path", path, "columns", ignored)
	}
	return records, true, nil
}

// compute derives the window features and fills what is still missing.
func (s *Store) compute(records []domain.Record) error {
	if err := domain.ApplyRolling(records, s.rolling); err != nil {
		return err
	}
	domain.FillMissing(records)
	return nil
}

// persist replaces the file at path with records. The table is written to a
// temporary file in the same directory and renamed over the target, so readers
// see either the previous or the new history.
func (s *Store) persist(path string, records []domain.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	t := fromRecords(records, s.migrator.CurrentVersion(), s.clock.Now())
	if err := encodeTable(tmp, t); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod history: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *Store) observe(err error, start time.Time, rows int) {
	if s.metrics == nil {
		return
	}
	s.metrics.HistoryUpdates.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	s.metrics.HistoryUpdateDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.HistoryWindowLength.Observe(float64(rows))
}

// outcome maps an update error to its metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrIncompleteObservation):
		return "incomplete"
	case errors.Is(err, domain.ErrInvalidCalendar):
		return "invalid_calendar"
	case errors.Is(err, ErrCorrupted):
		return "corrupted"
	default:
		return "error"
	}
}

// trim keeps the last n records in a fresh slice.
func trim(records []domain.Record, n int) []domain.Record {
	if len(records) > n {
		records = records[len(records)-n:]
	}
	return slices.Clone(records)
}
