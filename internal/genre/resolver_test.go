package genre

import (
	"math"
	"testing"

	"github.com/yungbote/soundweb-ingestor/internal/genremap"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

func f(v float64) *float64 { return &v }

func testTable() genremap.Table {
	return genremap.Table{
		"rock": {X: f(10), Y: f(0), Color: "#f00"},
		"pop":  {X: f(0), Y: f(10), Color: "#0f0"},
		"jazz": {X: f(5), Y: f(5), Color: "#00f"},
	}
}

func TestScoreWeightsAndTieBreak(t *testing.T) {
	r := NewResolver(testTable())
	a := &types.SourceRecord{Name: "A", GenreTags: []string{"rock", "jazz"}}
	b := &types.SourceRecord{Name: "A", GenreTags: []string{"rock", "pop"}}

	got := r.Score(a, b)
	if len(got) != 3 {
		t.Fatalf("expected 3 genres, got %v", got)
	}
	// rock: 3+3=6, jazz: 2 (first encountered), pop: 2
	if got[0] != "rock" || got[1] != "jazz" || got[2] != "pop" {
		t.Fatalf("expected [rock jazz pop], got %v", got)
	}
}

func TestScoreIgnoresUnknownTagsAndDeepRanks(t *testing.T) {
	r := NewResolver(testTable())
	src := &types.SourceRecord{Name: "A", GenreTags: []string{"vaporwave", "rock", "jazz", "pop"}}

	got := r.Score(src)
	// "vaporwave" is outside the vocabulary but still occupies index 0, so
	// rock scores 2 and jazz 1; "pop" sits past the three-tag cutoff.
	if len(got) != 2 || got[0] != "rock" || got[1] != "jazz" {
		t.Fatalf("expected [rock jazz], got %v", got)
	}
}

func TestScoreNilSources(t *testing.T) {
	r := NewResolver(testTable())
	src := &types.SourceRecord{Name: "A", GenreTags: []string{"rock"}}
	got := r.Score(nil, src, nil)
	if len(got) != 1 || got[0] != "rock" {
		t.Fatalf("expected [rock], got %v", got)
	}
}

func TestFinalizeFrequencyOrder(t *testing.T) {
	r := NewResolver(testTable())
	got := r.Finalize([]string{"jazz", "rock", "pop", "rock", "pop", "rock"})
	if len(got) != 3 || got[0] != "rock" || got[1] != "jazz" || got[2] != "pop" {
		t.Fatalf("expected [rock jazz pop], got %v", got)
	}
	// jazz and pop keep first-appearance order only when frequencies tie
	got = r.Finalize([]string{"jazz", "pop", "pop"})
	if got[0] != "pop" || got[1] != "jazz" {
		t.Fatalf("expected [pop jazz], got %v", got)
	}
}

func TestFinalizeEmpty(t *testing.T) {
	r := NewResolver(testTable())
	if got := r.Finalize(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestPositionAndColorCentroid(t *testing.T) {
	r := NewResolver(genremap.Table{
		"rock": {X: f(10), Y: f(0), Color: "#f00"},
		"pop":  {X: f(0), Y: f(10), Color: "#0f0"},
	})
	pos, color := r.PositionAndColor([]string{"rock", "pop"})
	if color != "#f00" {
		t.Fatalf("expected color #f00, got %s", color)
	}
	if pos == nil {
		t.Fatalf("expected a position")
	}
	// x = (10*1 + 0*0.5)/1.5, y = (0*1 + 10*0.5)/1.5
	if math.Abs(pos.X-10.0/1.5) > 1e-9 || math.Abs(pos.Y-5.0/1.5) > 1e-9 {
		t.Fatalf("unexpected centroid: %+v", pos)
	}
}

func TestPositionSkipsGenresWithoutCoordinates(t *testing.T) {
	r := NewResolver(genremap.Table{
		"rock": {Color: "#f00"},
		"pop":  {X: f(0), Y: f(10), Color: "#0f0"},
	})
	pos, color := r.PositionAndColor([]string{"rock", "pop"})
	if color != "#f00" {
		t.Fatalf("expected color #f00, got %s", color)
	}
	// rock has no coordinates, so pop alone defines the centroid
	if pos == nil || pos.X != 0 || pos.Y != 10 {
		t.Fatalf("unexpected centroid: %+v", pos)
	}
}

func TestPositionNilWhenNoCoordinates(t *testing.T) {
	r := NewResolver(genremap.Table{"rock": {Color: "#f00"}})
	pos, color := r.PositionAndColor([]string{"rock"})
	if pos != nil {
		t.Fatalf("expected nil position, got %+v", pos)
	}
	if color != "#f00" {
		t.Fatalf("expected color #f00, got %s", color)
	}
}

func TestColorDefaultsWhenTopGenreUnknown(t *testing.T) {
	r := NewResolver(genremap.Table{})
	pos, color := r.PositionAndColor([]string{"rock"})
	if pos != nil {
		t.Fatalf("expected nil position, got %+v", pos)
	}
	if color != genremap.DefaultColor {
		t.Fatalf("expected default color, got %s", color)
	}
}
