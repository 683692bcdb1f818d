package genre

import (
	"sort"
	"strings"

	"github.com/yungbote/soundweb-ingestor/internal/genremap"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// Position is a 2-D genre centroid. Nil means no ranked genre carried
// coordinates; zero is a valid coordinate and must not be conflated with
// "unknown".
type Position struct {
	X float64
	Y float64
}

// Resolver scores candidate genre tags against the reference table and
// derives display color and map position from the ranked result. The table
// is an explicit constructor dependency, loaded once per process; the
// resolver itself holds no mutable state.
type Resolver struct {
	table genremap.Table
}

func NewResolver(table genremap.Table) *Resolver {
	return &Resolver{table: table}
}

const (
	tagsPerSource = 3
	centroidDepth = 10
)

// Score ranks genres across the given source records. Only the first three
// tags of each source count; a tag at index i contributes 3-i. Tags outside
// the reference vocabulary are ignored. Ties keep first-encountered order
// across the fixed source sequence the caller passes in.
func (r *Resolver) Score(sources ...*types.SourceRecord) []string {
	scores := map[string]int{}
	order := []string{}

	for _, src := range sources {
		if src == nil {
			continue
		}
		for idx, tag := range src.GenreTags {
			if idx >= tagsPerSource {
				break
			}
			g := strings.ToLower(strings.TrimSpace(tag))
			if g == "" || !r.table.Contains(g) {
				continue
			}
			if _, seen := scores[g]; !seen {
				order = append(order, g)
			}
			scores[g] += tagsPerSource - idx
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}

// Finalize handles the incremental path, where genres were appended one
// source at a time instead of scored in parallel: count occurrences, dedupe
// preserving first appearance, then stable-sort by descending frequency.
func (r *Resolver) Finalize(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}

	frequency := map[string]int{}
	for _, g := range genres {
		frequency[g]++
	}

	seen := map[string]bool{}
	unique := make([]string, 0, len(frequency))
	for _, g := range genres {
		if seen[g] {
			continue
		}
		seen[g] = true
		unique = append(unique, g)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return frequency[unique[i]] > frequency[unique[j]]
	})
	return unique
}

// CleanTags lowercases the given tags and keeps only those present in the
// reference vocabulary, preserving order. Used by the incremental path when
// a source's tags are appended to an artist under construction.
func (r *Resolver) CleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		g := strings.ToLower(strings.TrimSpace(tag))
		if g == "" || !r.table.Contains(g) {
			continue
		}
		cleaned = append(cleaned, g)
	}
	return cleaned
}

// PositionAndColor derives the display color from the top genre and the map
// position as a harmonic-weighted centroid of the top ten genres. Genres
// without table coordinates contribute no weight; if nothing qualifies the
// position stays nil.
func (r *Resolver) PositionAndColor(genres []string) (*Position, string) {
	if len(genres) == 0 {
		return nil, genremap.DefaultColor
	}

	color := genremap.DefaultColor
	if entry, ok := r.table.Lookup(genres[0]); ok && entry.Color != "" {
		color = entry.Color
	}

	var xTotal, yTotal, weightTotal float64
	for idx, g := range genres {
		if idx >= centroidDepth {
			break
		}
		entry, ok := r.table.Lookup(g)
		if !ok || !entry.HasCoordinates() {
			continue
		}
		weight := 1 / float64(idx+1)
		xTotal += *entry.X * weight
		yTotal += *entry.Y * weight
		weightTotal += weight
	}

	if weightTotal == 0 {
		return nil, color
	}
	return &Position{X: xTotal / weightTotal, Y: yTotal / weightTotal}, color
}
