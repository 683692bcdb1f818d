package merge

import (
	"fmt"

	"github.com/yungbote/soundweb-ingestor/internal/genre"
	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

const (
	DropReasonDuplicatePrimary = "duplicate_primary"
	DropReasonNoCorroboration  = "no_corroboration"
	DropReasonEmptyGenres      = "empty_genres"
)

// Drop records one primary artist that did not survive the merge, with the
// reason it was dropped. These are expected data anomalies, never errors.
type Drop struct {
	Name   string
	Key    string
	Reason string
}

// Report carries the non-fatal events of one merge pass. Key collisions are
// surfaced here instead of being swallowed: first-seen wins, but the caller
// can inspect and log every collision.
type Report struct {
	Merged     int
	Drops      []Drop
	Collisions []Drop
}

// Merger joins the three per-source record sets into one canonical artist
// per identity. The Spotify catalog list drives iteration order and supplies
// ids; Last.fm and MusicBrainz are indexed by normalized name.
type Merger struct {
	log      *logger.Logger
	resolver *genre.Resolver
}

func NewMerger(baseLog *logger.Logger, resolver *genre.Resolver) *Merger {
	return &Merger{
		log:      baseLog.With("component", "ArtistMerger"),
		resolver: resolver,
	}
}

// Merge builds the canonical artist set. Surviving artists keep the primary
// list's relative order and rank is the 1-based survival order. An artist
// with no corroborating secondary record, or whose scored genre list comes
// out empty, is dropped and reported.
func (m *Merger) Merge(spotify, lastfm, musicbrainz []*types.SourceRecord) ([]*types.ArtistNode, *Report) {
	lastfmByKey := indexByName(lastfm)
	mbByKey := indexByName(musicbrainz)

	report := &Report{}
	seen := map[string]bool{}
	merged := make([]*types.ArtistNode, 0, len(spotify))
	rank := 1

	for _, sp := range spotify {
		if sp == nil {
			continue
		}
		key := normalize.Name(sp.Name)
		if seen[key] {
			m.log.Warn("Normalized name collision, keeping first record", "name", sp.Name, "key", key)
			report.Collisions = append(report.Collisions, Drop{Name: sp.Name, Key: key, Reason: DropReasonDuplicatePrimary})
			continue
		}
		seen[key] = true

		lf := lastfmByKey[key]
		mb := mbByKey[key]
		if lf == nil && mb == nil {
			m.log.Debug("Dropping artist with no corroborating source", "name", sp.Name)
			report.Drops = append(report.Drops, Drop{Name: sp.Name, Key: key, Reason: DropReasonNoCorroboration})
			continue
		}

		genres := m.resolver.Score(lf, sp, mb)
		if len(genres) == 0 {
			m.log.Debug("Dropping artist with no resolvable genres", "name", sp.Name)
			report.Drops = append(report.Drops, Drop{Name: sp.Name, Key: key, Reason: DropReasonEmptyGenres})
			continue
		}

		pos, color := m.resolver.PositionAndColor(genres)

		// The catalog id is the canonical identity when present; records the
		// catalog could not resolve get a run-local sequential id instead.
		id := sp.ExternalID
		if id == "" {
			id = fmt.Sprintf("local-%d", rank)
		}

		node := &types.ArtistNode{
			ID:         id,
			Name:       sp.Name,
			Genres:     genres,
			SpotifyID:  sp.ExternalID,
			SpotifyURL: sp.URL,
			ImageURL:   sp.ImageURL,
			Color:      color,
			UserTags:   []string{},
		}
		if sp.Popularity != nil {
			node.Popularity = *sp.Popularity
		}
		if lf != nil {
			node.LastfmMBID = lf.ExternalID
			node.RelatedArtists = lf.RelatedNames
			if node.ImageURL == "" {
				node.ImageURL = lf.ImageURL
			}
		}
		if pos != nil {
			x, y := pos.X, pos.Y
			node.X = &x
			node.Y = &y
		}
		r := rank
		node.Rank = &r
		rank++

		merged = append(merged, node)
	}

	report.Merged = len(merged)
	m.log.Info("Merge complete",
		"merged", report.Merged,
		"dropped", len(report.Drops),
		"collisions", len(report.Collisions))
	return merged, report
}

func indexByName(records []*types.SourceRecord) map[string]*types.SourceRecord {
	indexed := make(map[string]*types.SourceRecord, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		key := normalize.Name(rec.Name)
		if _, ok := indexed[key]; ok {
			continue
		}
		indexed[key] = rec
	}
	return indexed
}
