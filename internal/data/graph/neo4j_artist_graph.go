package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/platform/neo4jdb"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// ArtistGraph is the Neo4j-backed artist store. Every method is one
// independent blocking round trip; no multi-statement transaction spans more
// than one node's update, which keeps a partially failed run re-runnable.
type ArtistGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewArtistGraph(client *neo4jdb.Client, baseLog *logger.Logger) *ArtistGraph {
	return &ArtistGraph{
		client: client,
		log:    baseLog.With("store", "ArtistGraph"),
	}
}

func (g *ArtistGraph) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: g.client.Database,
	})
}

// EnsureSchema creates the id constraint and the normalized-name index.
// Best-effort; may fail for restricted users.
func (g *ArtistGraph) EnsureSchema(ctx context.Context) {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT artist_id_unique IF NOT EXISTS FOR (a:Artist) REQUIRE a.id IS UNIQUE`,
		`CREATE INDEX artist_normalized_name_idx IF NOT EXISTS FOR (a:Artist) ON (a.normalizedName)`,
	}
	for _, stmt := range stmts {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

// TopArtistIDs returns the ids of every node still carrying the TopArtist
// label, i.e. the previous bulk snapshot.
func (g *ArtistGraph) TopArtistIDs(ctx context.Context) ([]string, error) {
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist:TopArtist) RETURN a.id AS id`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			if id, ok := rec.Get("id"); ok {
				if s, ok := id.(string); ok && s != "" {
					ids = append(ids, s)
				}
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, fmt.Errorf("top artist ids: %w", err)
	}
	return result.([]string), nil
}

// UserTags reads the stored tag set for one artist. A missing node or a null
// tag array is an empty set, not an error.
func (g *ArtistGraph) UserTags(ctx context.Context, id string) ([]string, error) {
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist {id: $id}) RETURN a.userTags AS userTags`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			// A stream failure is not a missing node.
			return nil, err
		}
		if len(records) == 0 {
			// No prior node counts as no prior tags.
			return []string{}, nil
		}
		raw, _ := records[0].Get("userTags")
		return toStringSlice(raw), nil
	})
	if err != nil {
		return nil, fmt.Errorf("user tags for %s: %w", id, err)
	}
	return result.([]string), nil
}

// RemoveTopArtistLabel demotes a stale node that a user has tagged: the node
// and all its properties survive, only the label goes.
func (g *ArtistGraph) RemoveTopArtistLabel(ctx context.Context, id string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist:TopArtist {id: $id}) REMOVE a:TopArtist`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("remove TopArtist label from %s: %w", id, err)
	}
	return nil
}

// DeleteArtist reclaims a stale node nobody tagged, together with its edges.
func (g *ArtistGraph) DeleteArtist(ctx context.Context, id string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist:TopArtist {id: $id}) DETACH DELETE a`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("delete artist %s: %w", id, err)
	}
	return nil
}

// DeleteTopArtistRelationships drops every RELATED_TO edge between TopArtist
// pairs ahead of the full rebuild.
func (g *ArtistGraph) DeleteTopArtistRelationships(ctx context.Context) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Artist:TopArtist)-[r:RELATED_TO]-(b:Artist:TopArtist)
DELETE r
`, nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("delete TopArtist relationships: %w", err)
	}
	return nil
}

// UpsertArtist merges the node by id and replaces its scalar properties.
// userTags is written as the full resulting set the caller computed; the
// store's view is authoritative after every write. The normalizedName
// property backs relationship-target resolution for nodes outside a run.
func (g *ArtistGraph) UpsertArtist(ctx context.Context, artist *types.ArtistNode, topArtist bool) error {
	if artist == nil || artist.ID == "" {
		return fmt.Errorf("upsert artist: missing id")
	}

	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
MERGE (a:Artist {id: $id})
SET a.name = $name,
    a.normalizedName = $normalizedName,
    a.popularity = $popularity,
    a.spotifyId = $spotifyId,
    a.spotifyUrl = $spotifyUrl,
    a.lastfmMBID = $lastfmMBID,
    a.imageUrl = $imageUrl,
    a.genres = $genres,
    a.x = $x,
    a.y = $y,
    a.color = $color,
    a.rank = $rank,
    a.userTags = $userTags,
    a.lastUpdated = $lastUpdated
`
	if topArtist {
		query += `SET a:TopArtist
`
	}

	params := map[string]any{
		"id":             artist.ID,
		"name":           artist.Name,
		"normalizedName": normalize.Name(artist.Name),
		"popularity":     artist.Popularity,
		"spotifyId":      artist.SpotifyID,
		"spotifyUrl":     artist.SpotifyURL,
		"lastfmMBID":     artist.LastfmMBID,
		"imageUrl":       artist.ImageURL,
		"genres":         artist.Genres,
		"x":              nilable(artist.X),
		"y":              nilable(artist.Y),
		"color":          artist.Color,
		"rank":           nilableInt(artist.Rank),
		"userTags":       artist.UserTags,
		"lastUpdated":    artist.LastUpdated,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("upsert artist %s: %w", artist.ID, err)
	}
	return nil
}

// SetUserTags replaces the stored tag set for the artist with the given
// Spotify id. Callers compute the full resulting set beforehand.
func (g *ArtistGraph) SetUserTags(ctx context.Context, spotifyID string, tags []string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist {spotifyId: $spotifyId}) SET a.userTags = $userTags`,
			map[string]any{"spotifyId": spotifyID, "userTags": tags})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("set user tags on %s: %w", spotifyID, err)
	}
	return nil
}

// CreateRelatedLink merges one undirected RELATED_TO edge. MERGE on the
// undirected pattern keeps the edge unique per pair regardless of direction.
func (g *ArtistGraph) CreateRelatedLink(ctx context.Context, id1, id2 string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Artist {id: $id1})
MATCH (b:Artist {id: $id2})
MERGE (a)-[:RELATED_TO]-(b)
`, map[string]any{"id1": id1, "id2": id2})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("create RELATED_TO %s-%s: %w", id1, id2, err)
	}
	return nil
}

// ArtistIDByNormalizedName resolves a relationship target that is not part of
// the current run, e.g. a user-curated artist. Empty string when absent.
func (g *ArtistGraph) ArtistIDByNormalizedName(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Artist {normalizedName: $key}) RETURN a.id AS id LIMIT 1`,
			map[string]any{"key": key})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return "", nil
		}
		if id, ok := records[0].Get("id"); ok {
			if s, ok := id.(string); ok {
				return s, nil
			}
		}
		return "", nil
	})
	if err != nil {
		return "", fmt.Errorf("artist id by normalized name: %w", err)
	}
	return result.(string), nil
}

// ArtistBySpotifyID returns the stored properties, tag set and TopArtist
// membership for a custom-artist lookup. ok is false when no node exists.
func (g *ArtistGraph) ArtistBySpotifyID(ctx context.Context, spotifyID string) (map[string]any, []string, bool, bool, error) {
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	type lookup struct {
		props map[string]any
		tags  []string
		isTop bool
		ok    bool
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Artist {spotifyId: $spotifyId})
RETURN a, a.userTags AS userTags, a:TopArtist AS isTopArtist
`, map[string]any{"spotifyId": spotifyID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return lookup{}, nil
		}
		rec := records[0]
		out := lookup{ok: true}
		if raw, found := rec.Get("a"); found {
			if node, isNode := raw.(neo4j.Node); isNode {
				out.props = node.Props
			}
		}
		if raw, found := rec.Get("userTags"); found {
			out.tags = toStringSlice(raw)
		}
		if raw, found := rec.Get("isTopArtist"); found {
			if b, isBool := raw.(bool); isBool {
				out.isTop = b
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, nil, false, false, fmt.Errorf("artist by spotify id %s: %w", spotifyID, err)
	}
	l := result.(lookup)
	return l.props, l.tags, l.isTop, l.ok, nil
}

// UpdateMetadata stamps the singleton Metadata node for the given run kind.
func (g *ArtistGraph) UpdateMetadata(ctx context.Context, name, timestamp string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (m:Metadata {name: $name})
SET m.updatedAt = datetime($timestamp)
`, map[string]any{"name": name, "timestamp": timestamp})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("update metadata %s: %w", name, err)
	}
	return nil
}

func toStringSlice(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nilable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nilableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
