package history

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
)

// A history file is a one-line version marker followed by a CSV table:
//
//	# schema_version=3 updated_at=2024-01-07T06:00:00Z
//	DATE,PRECIPITATION,MAX_TEMP,...
//	2024-01-01,0,70,...
//
// Files written before the marker existed start directly with the CSV header
// and are read as schema version 1. Missing values are empty cells.
const (
	markerPrefix     = "#"
	markerVersionKey = "schema_version"
	markerUpdatedKey = "updated_at"
)

// table is the untyped form of a history file, the unit the migrator works on.
type table struct {
	Version   int
	UpdatedAt time.Time
	Header    []string
	Rows      [][]string
}

func (t *table) columnIndex(name string) int {
	return slices.Index(t.Header, name)
}

func (t *table) hasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// dropColumn removes name from the header and every row. It reports whether
// the column was present.
func (t *table) dropColumn(name string) bool {
	i := t.columnIndex(name)
	if i < 0 {
		return false
	}
	t.Header = slices.Delete(t.Header, i, i+1)
	for r := range t.Rows {
		t.Rows[r] = slices.Delete(t.Rows[r], i, i+1)
	}
	return true
}

// addColumn appends name with empty cells. It reports whether the column was added.
func (t *table) addColumn(name string) bool {
	if t.hasColumn(name) {
		return false
	}
	t.Header = append(t.Header, name)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], "")
	}
	return true
}

// decodeTable parses a history file. Empty input is an empty table.
func decodeTable(data []byte) (*table, error) {
	t := &table{Version: 1}

	body := data
	if bytes.HasPrefix(data, []byte(markerPrefix)) {
		line, rest, _ := bytes.Cut(data, []byte("\n"))
		if err := t.parseMarker(string(bytes.TrimSpace(line))); err != nil {
			return nil, err
		}
		body = rest
	}

	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return t, nil
	}

	t.Header = rows[0]
	t.Rows = rows[1:]

	seen := make(map[string]struct{}, len(t.Header))
	for _, name := range t.Header {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	return t, nil
}

func (t *table) parseMarker(line string) error {
	var sawVersion bool
	for _, field := range strings.Fields(strings.TrimPrefix(line, markerPrefix)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("malformed marker field %q", field)
		}
		switch key {
		case markerVersionKey:
			v, err := strconv.Atoi(value)
			if err != nil || v < 1 {
				return fmt.Errorf("invalid schema version %q", value)
			}
			t.Version = v
			sawVersion = true
		case markerUpdatedKey:
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return fmt.Errorf("invalid %s %q", markerUpdatedKey, value)
			}
			t.UpdatedAt = ts
		}
	}
	if !sawVersion {
		return fmt.Errorf("marker without %s", markerVersionKey)
	}
	return nil
}

// encodeTable writes t in the history file format.
func encodeTable(w io.Writer, t *table) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s=%d", markerPrefix, markerVersionKey, t.Version)
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(bw, " %s=%s", markerUpdatedKey, t.UpdatedAt.UTC().Format(time.RFC3339))
	}
	bw.WriteString("\n") //nolint:errcheck // surfaced by Flush

	cw := csv.NewWriter(bw)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return bw.Flush()
}

// toRecords converts a migrated table into typed records. Columns the current
// schema does not know are skipped and returned so the caller can report them.
func toRecords(t *table) ([]domain.Record, []string, error) {
	var ignored []string
	for _, name := range t.Header {
		if name != domain.ColDate && !domain.IsNumericColumn(name) {
			ignored = append(ignored, name)
		}
	}

	records := make([]domain.Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		r := domain.EmptyRecord()
		for j, name := range t.Header {
			cell := row[j]
			if name == domain.ColDate {
				r.Date = cell
				continue
			}
			if !domain.IsNumericColumn(name) {
				continue
			}
			v, err := parseValue(cell)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %s: %w", i+1, name, err)
			}
			r.Set(name, v)
		}
		records = append(records, r)
	}
	return records, ignored, nil
}

// fromRecords builds a current-schema table.
func fromRecords(records []domain.Record, version int, updatedAt time.Time) *table {
	header := domain.Columns()
	t := &table{
		Version:   version,
		UpdatedAt: updatedAt,
		Header:    header,
		Rows:      make([][]string, len(records)),
	}
	for i := range records {
		row := make([]string, len(header))
		for j, name := range header {
			if name == domain.ColDate {
				row[j] = records[i].Date
				continue
			}
			v, _ := records[i].Value(name)
			row[j] = formatValue(v)
		}
		t.Rows[i] = row
	}
	return t
}

// parseValue reads one numeric cell. Empty and infinite cells are missing.
func parseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return domain.Missing, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return domain.Missing, nil
	}
	return v, nil
}

func formatValue(v float64) string {
	if domain.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
