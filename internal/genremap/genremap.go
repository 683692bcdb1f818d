package genremap

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultColor is used when an artist's top genre has no entry in the table.
const DefaultColor = "#cccccc"

// Entry is one row of the reference genre table. X/Y are pointers because a
// genre may carry a color without coordinates; such genres contribute nothing
// to an artist's position.
type Entry struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Color string   `json:"color,omitempty"`
	Count int      `json:"count,omitempty"`
}

func (e Entry) HasCoordinates() bool {
	return e.X != nil && e.Y != nil
}

// Table is the controlled genre vocabulary, keyed by lowercase genre name.
// Loaded once per process and treated as read-only afterwards.
type Table map[string]Entry

// Load reads the genre table from a JSON file. A missing or unparseable
// table is fatal: every downstream component depends on it.
func Load(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genremap: path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genremap: read %s: %w", path, err)
	}
	var parsed map[string]Entry
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("genremap: parse %s: %w", path, err)
	}
	table := make(Table, len(parsed))
	for name, entry := range parsed {
		table[strings.ToLower(strings.TrimSpace(name))] = entry
	}
	return table, nil
}

// Lookup tolerates absent keys; callers fall back to DefaultColor or skip the
// position contribution.
func (t Table) Lookup(genre string) (Entry, bool) {
	e, ok := t[strings.ToLower(strings.TrimSpace(genre))]
	return e, ok
}

func (t Table) Contains(genre string) bool {
	_, ok := t.Lookup(genre)
	return ok
}
