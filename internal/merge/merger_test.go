package merge

import (
	"testing"

	"github.com/yungbote/soundweb-ingestor/internal/genre"
	"github.com/yungbote/soundweb-ingestor/internal/genremap"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func newTestMerger(t *testing.T) *Merger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	table := genremap.Table{
		"rock": {X: f(10), Y: f(0), Color: "#f00"},
		"pop":  {X: f(0), Y: f(10), Color: "#0f0"},
	}
	return NewMerger(log, genre.NewResolver(table))
}

func spotifyRec(name, id string, pop int, tags ...string) *types.SourceRecord {
	return &types.SourceRecord{Name: name, ExternalID: id, Popularity: i(pop), GenreTags: tags}
}

func TestMergeRankIsSurvivalOrder(t *testing.T) {
	m := newTestMerger(t)

	spotify := []*types.SourceRecord{
		spotifyRec("Alpha", "sp1", 90, "rock"),
		spotifyRec("Ghost", "sp2", 10, "rock"), // no corroboration, dropped
		spotifyRec("Bravo", "sp3", 80, "pop"),
	}
	lastfm := []*types.SourceRecord{
		{Name: "Alpha", ExternalID: "mbid-a", GenreTags: []string{"rock"}, RelatedNames: []string{"Bravo"}},
		{Name: "Bravo", GenreTags: []string{"pop"}},
	}

	merged, report := m.Merge(spotify, lastfm, nil)
	if len(merged) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(merged))
	}
	if merged[0].Name != "Alpha" || merged[1].Name != "Bravo" {
		t.Fatalf("order not preserved: %s, %s", merged[0].Name, merged[1].Name)
	}
	if *merged[0].Rank != 1 || *merged[1].Rank != 2 {
		t.Fatalf("rank must be survival order, got %d and %d", *merged[0].Rank, *merged[1].Rank)
	}
	if merged[0].LastfmMBID != "mbid-a" {
		t.Fatalf("expected mbid from lastfm, got %q", merged[0].LastfmMBID)
	}
	if len(report.Drops) != 1 || report.Drops[0].Reason != DropReasonNoCorroboration {
		t.Fatalf("expected one no_corroboration drop, got %+v", report.Drops)
	}
}

func TestMergeDropsEmptyGenres(t *testing.T) {
	m := newTestMerger(t)

	spotify := []*types.SourceRecord{spotifyRec("Alpha", "sp1", 90, "unlisted-genre")}
	lastfm := []*types.SourceRecord{{Name: "Alpha", GenreTags: []string{"also-unlisted"}}}

	merged, report := m.Merge(spotify, lastfm, nil)
	if len(merged) != 0 {
		t.Fatalf("expected no artists, got %d", len(merged))
	}
	if len(report.Drops) != 1 || report.Drops[0].Reason != DropReasonEmptyGenres {
		t.Fatalf("expected empty_genres drop, got %+v", report.Drops)
	}
}

func TestMergeReportsCollisions(t *testing.T) {
	m := newTestMerger(t)

	spotify := []*types.SourceRecord{
		spotifyRec("The Beatles", "sp1", 90, "rock"),
		spotifyRec("the-beatles!!", "sp2", 50, "pop"),
	}
	lastfm := []*types.SourceRecord{{Name: "The Beatles", GenreTags: []string{"rock"}}}

	merged, report := m.Merge(spotify, lastfm, nil)
	if len(merged) != 1 {
		t.Fatalf("expected 1 artist, got %d", len(merged))
	}
	if merged[0].ID != "sp1" {
		t.Fatalf("first-seen must win, got %s", merged[0].ID)
	}
	if len(report.Collisions) != 1 || report.Collisions[0].Name != "the-beatles!!" {
		t.Fatalf("expected collision report, got %+v", report.Collisions)
	}
}

func TestMergeScoresAcrossSources(t *testing.T) {
	m := newTestMerger(t)

	spotify := []*types.SourceRecord{spotifyRec("Alpha", "sp1", 90, "pop", "rock")}
	lastfm := []*types.SourceRecord{{Name: "Alpha", GenreTags: []string{"rock"}}}
	mb := []*types.SourceRecord{{Name: "Alpha", GenreTags: []string{"rock"}}}

	merged, _ := m.Merge(spotify, lastfm, mb)
	if len(merged) != 1 {
		t.Fatalf("expected 1 artist, got %d", len(merged))
	}
	// rock: 2+3+3=8, pop: 3
	if merged[0].Genres[0] != "rock" || merged[0].Genres[1] != "pop" {
		t.Fatalf("unexpected genre order: %v", merged[0].Genres)
	}
	if merged[0].Color != "#f00" {
		t.Fatalf("expected top-genre color, got %s", merged[0].Color)
	}
	if merged[0].X == nil || merged[0].Y == nil {
		t.Fatalf("expected a position")
	}
}

func TestMergeLocalIDWhenCatalogIDMissing(t *testing.T) {
	m := newTestMerger(t)

	spotify := []*types.SourceRecord{{Name: "Alpha", GenreTags: []string{"rock"}}}
	lastfm := []*types.SourceRecord{{Name: "Alpha", GenreTags: []string{"rock"}}}

	merged, _ := m.Merge(spotify, lastfm, nil)
	if len(merged) != 1 {
		t.Fatalf("expected 1 artist, got %d", len(merged))
	}
	if merged[0].ID != "local-1" {
		t.Fatalf("expected run-local id, got %s", merged[0].ID)
	}
}
