package genremap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genre_map.json")
	payload := `{
		"Rock": {"x": 10, "y": -2.5, "color": "#f00", "count": 120},
		"jazz": {"color": "#00f"}
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(table))
	}

	// Keys are folded to lowercase; lookups tolerate any casing.
	rock, ok := table.Lookup("ROCK")
	if !ok {
		t.Fatalf("expected rock entry")
	}
	if !rock.HasCoordinates() || *rock.X != 10 || *rock.Y != -2.5 {
		t.Fatalf("unexpected rock coordinates: %+v", rock)
	}
	if rock.Color != "#f00" || rock.Count != 120 {
		t.Fatalf("unexpected rock entry: %+v", rock)
	}

	jazz, ok := table.Lookup("jazz")
	if !ok {
		t.Fatalf("expected jazz entry")
	}
	if jazz.HasCoordinates() {
		t.Fatalf("jazz must have no coordinates: %+v", jazz)
	}
	if !table.Contains(" Jazz ") {
		t.Fatalf("Contains must trim and fold")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
