package history

import (
	"fmt"
	"slices"
	"sort"
)

// Migration describes the column changes introduced by one schema version.
type Migration struct {
	Version int
	Add     []string
	Remove  []string
}

// Migrations is the schema history of the feature table, oldest first.
// Version 1 is the unmarked legacy layout.
var Migrations = []Migration{
	{
		Version: 2,
		Remove:  []string{"LAGGED_PRECIPITATION", "LAGGED_AVG_WIND_SPEED"},
	},
	{
		Version: 3,
		Add:     []string{"fire_last_7", "roll_ndvi_3", "roll_evi_3"},
	},
}

// Migrator brings persisted tables up to the current schema version.
type Migrator struct {
	migrations []Migration
	current    int
	deprecated []string
}

// NewMigrator validates the migration list and returns a Migrator whose
// current version is the last migration's.
func NewMigrator(migrations []Migration) (*Migrator, error) {
	m := &Migrator{current: 1}
	removed := map[string]struct{}{}
	for _, mig := range migrations {
		if mig.Version <= m.current {
			return nil, fmt.Errorf("migration version %d is not after %d", mig.Version, m.current)
		}
		m.current = mig.Version
		for _, c := range mig.Remove {
			removed[c] = struct{}{}
		}
	}
	// A column removed at some version and re-added later is not deprecated.
	for _, mig := range migrations {
		for _, c := range mig.Add {
			delete(removed, c)
		}
	}
	for c := range removed {
		m.deprecated = append(m.deprecated, c)
	}
	sort.Strings(m.deprecated)
	m.migrations = slices.Clone(migrations)
	return m, nil
}

// CurrentVersion is the schema version written by this Migrator.
func (m *Migrator) CurrentVersion() int { return m.current }

// Deprecated lists every column removed by some migration and never re-added.
func (m *Migrator) Deprecated() []string { return slices.Clone(m.deprecated) }

// Migrate applies, in order, every migration newer than t.Version, then strips
// all deprecated columns regardless of the recorded version. Running it again
// on its own output changes nothing. It reports whether t changed.
func (m *Migrator) Migrate(t *table) (bool, error) {
	if t.Version > m.current {
		return false, fmt.Errorf("schema version %d is newer than supported version %d", t.Version, m.current)
	}

	changed := false
	for _, mig := range m.migrations {
		if mig.Version <= t.Version {
			continue
		}
		for _, c := range mig.Remove {
			if t.dropColumn(c) {
				changed = true
			}
		}
		// An empty table has no header to extend; the writer emits the full schema.
		if len(t.Header) > 0 {
			for _, c := range mig.Add {
				if t.addColumn(c) {
					changed = true
				}
			}
		}
		t.Version = mig.Version
		changed = true
	}

	for _, c := range m.deprecated {
		if t.dropColumn(c) {
			changed = true
		}
	}
	return changed, nil
}
