package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

const (
	fileExt = ".csv"

	// DefaultKey names the history used when no location is given.
	DefaultKey = "history"
)

// Layout maps entity keys to history files under Root.
type Layout struct {
	Root string
}

// NormalizeKey turns a location name into a file-system-safe identifier:
// surrounding space is trimmed and every character other than a letter,
// digit, '-' or '_' becomes '_'. The empty key maps to DefaultKey.
//
// Distinct names can normalize to the same identifier ("Los Angeles" and
// "Los_Angeles"); they then share one history.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return DefaultKey
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, key)
}

// Path returns the history file for key.
func (l Layout) Path(key string) string {
	return filepath.Join(l.Root, NormalizeKey(key)+fileExt)
}

// Keys lists the normalized keys that have a history file, sorted.
// Files whose name is not a normalized key were not written by the store and
// are skipped, since Path would resolve their key to a different file.
// A missing root directory yields no keys.
func (l Layout) Keys() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != fileExt {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		if NormalizeKey(key) != key {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
