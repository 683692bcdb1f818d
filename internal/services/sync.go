package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/pkg/apperr"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// ArtistGraphStore is the graph-store surface the syncer depends on. The
// Neo4j implementation lives in internal/data/graph; tests substitute an
// in-memory fake.
type ArtistGraphStore interface {
	TopArtistIDs(ctx context.Context) ([]string, error)
	UserTags(ctx context.Context, id string) ([]string, error)
	SetUserTags(ctx context.Context, spotifyID string, tags []string) error
	RemoveTopArtistLabel(ctx context.Context, id string) error
	DeleteArtist(ctx context.Context, id string) error
	DeleteTopArtistRelationships(ctx context.Context) error
	UpsertArtist(ctx context.Context, artist *types.ArtistNode, topArtist bool) error
	CreateRelatedLink(ctx context.Context, id1, id2 string) error
	ArtistIDByNormalizedName(ctx context.Context, key string) (string, error)
	ArtistBySpotifyID(ctx context.Context, spotifyID string) (props map[string]any, tags []string, isTop bool, ok bool, err error)
	UpdateMetadata(ctx context.Context, name, timestamp string) error
}

const (
	ArtistOutcomeSynced = "synced"
	ArtistOutcomeFailed = "failed"
)

// ArtistOutcome is the per-artist result of a sync pass. Each canonical
// artist is an independent fallible step; the batch policy decides whether a
// failure aborts the remainder.
type ArtistOutcome struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SyncResult summarizes one bulk synchronization.
type SyncResult struct {
	Upserted     int             `json:"upserted"`
	Demoted      int             `json:"demoted"`
	Reclaimed    int             `json:"reclaimed"`
	LinksCreated int             `json:"links_created"`
	Outcomes     []ArtistOutcome `json:"outcomes,omitempty"`
}

type GraphSyncService interface {
	SyncTopArtists(ctx context.Context, artists []*types.ArtistNode) (*SyncResult, error)
	SyncCustomArtist(ctx context.Context, artist *types.ArtistNode, userTag string) error
	RemoveCustomTag(ctx context.Context, spotifyID, tag string) (bool, error)
}

type graphSyncService struct {
	log   *logger.Logger
	store ArtistGraphStore
	tags  *TagReconciler

	// abortOnStoreError keeps the original all-or-remaining semantics: a
	// store failure mid-loop aborts the rest of the run. Flip off to
	// isolate failures per artist instead.
	abortOnStoreError bool
}

func NewGraphSyncService(baseLog *logger.Logger, store ArtistGraphStore, tags *TagReconciler) GraphSyncService {
	return &graphSyncService{
		log:               baseLog.With("service", "GraphSyncService"),
		store:             store,
		tags:              tags,
		abortOnStoreError: true,
	}
}

// SyncTopArtists applies one bulk snapshot to the store: stale sweep,
// relationship teardown, per-artist upsert with tag merge, relationship
// rebuild, metadata stamp. Re-running with an unchanged canonical set is a
// no-op for properties, labels, tags and edges.
func (s *graphSyncService) SyncTopArtists(ctx context.Context, artists []*types.ArtistNode) (*SyncResult, error) {
	result := &SyncResult{}

	storedIDs, err := s.store.TopArtistIDs(ctx)
	if err != nil {
		return result, err
	}

	newIDs := make(map[string]bool, len(artists))
	for _, artist := range artists {
		if artist != nil {
			newIDs[artist.ID] = true
		}
	}
	s.log.Info("Starting top-artist sync", "existing", len(storedIDs), "incoming", len(newIDs))

	// Stale sweep: nodes that fell out of the snapshot are demoted when a
	// user tagged them, deleted otherwise.
	for _, staleID := range storedIDs {
		if newIDs[staleID] {
			continue
		}
		storedTags, err := s.store.UserTags(ctx, staleID)
		if err != nil {
			return result, err
		}
		if len(storedTags) > 0 {
			s.log.Info("Preserving user-tagged artist, removing TopArtist label", "artist_id", staleID)
			if err := s.store.RemoveTopArtistLabel(ctx, staleID); err != nil {
				return result, err
			}
			result.Demoted++
		} else {
			s.log.Info("Deleting stale artist with no user tags", "artist_id", staleID)
			if err := s.store.DeleteArtist(ctx, staleID); err != nil {
				return result, err
			}
			result.Reclaimed++
		}
	}

	// Full relationship rebuild starts from a clean slate.
	if err := s.store.DeleteTopArtistRelationships(ctx); err != nil {
		return result, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, artist := range artists {
		if artist == nil {
			continue
		}
		if err := s.upsertWithBulkTags(ctx, artist, now); err != nil {
			result.Outcomes = append(result.Outcomes, ArtistOutcome{
				ID: artist.ID, Name: artist.Name, Status: ArtistOutcomeFailed, Error: err.Error(),
			})
			if s.abortOnStoreError {
				return result, err
			}
			s.log.Error("Upsert failed, continuing with next artist", "artist_id", artist.ID, "error", err)
			continue
		}
		result.Outcomes = append(result.Outcomes, ArtistOutcome{
			ID: artist.ID, Name: artist.Name, Status: ArtistOutcomeSynced,
		})
		result.Upserted++
	}

	links, err := s.rebuildRelationships(ctx, artists)
	result.LinksCreated = links
	if err != nil {
		return result, err
	}

	if err := s.store.UpdateMetadata(ctx, "lastSync", now); err != nil {
		return result, err
	}

	s.log.Info("Top-artist sync finished",
		"upserted", result.Upserted,
		"demoted", result.Demoted,
		"reclaimed", result.Reclaimed,
		"links", result.LinksCreated)
	return result, nil
}

func (s *graphSyncService) upsertWithBulkTags(ctx context.Context, artist *types.ArtistNode, now string) error {
	storedTags, err := s.store.UserTags(ctx, artist.ID)
	if err != nil {
		return err
	}
	artist.UserTags = s.tags.MergeBulk(storedTags, artist.UserTags)
	artist.LastUpdated = now
	return s.store.UpsertArtist(ctx, artist, true)
}

// rebuildRelationships resolves every related name first against the in-run
// canonical set, then against the store by normalized name. Self references
// and repeated unordered pairs are skipped.
func (s *graphSyncService) rebuildRelationships(ctx context.Context, artists []*types.ArtistNode) (int, error) {
	nameToID := make(map[string]string, len(artists))
	for _, artist := range artists {
		if artist == nil {
			continue
		}
		key := normalize.Name(artist.Name)
		if _, ok := nameToID[key]; !ok {
			nameToID[key] = artist.ID
		}
	}

	created := map[[2]string]bool{}
	for _, artist := range artists {
		if artist == nil {
			continue
		}
		for _, related := range artist.RelatedArtists {
			key := normalize.Name(related)
			if key == "" {
				continue
			}
			toID, inRun := nameToID[key]
			if !inRun {
				resolved, err := s.store.ArtistIDByNormalizedName(ctx, key)
				if err != nil {
					return len(created), err
				}
				toID = resolved
			}
			if toID == "" || toID == artist.ID {
				continue
			}
			pair := [2]string{artist.ID, toID}
			sort.Strings(pair[:])
			if created[pair] {
				continue
			}
			if err := s.store.CreateRelatedLink(ctx, pair[0], pair[1]); err != nil {
				return len(created), err
			}
			created[pair] = true
		}
	}
	return len(created), nil
}

// SyncCustomArtist upserts a single user-requested artist: no TopArtist
// label, no stale sweep, custom tag policy. An existing node keeps whatever
// labels and tags it already has.
func (s *graphSyncService) SyncCustomArtist(ctx context.Context, artist *types.ArtistNode, userTag string) error {
	if artist == nil || artist.ID == "" {
		return fmt.Errorf("custom sync: %w: artist id required", apperr.ErrInvalidArgument)
	}

	storedTags, err := s.store.UserTags(ctx, artist.ID)
	if err != nil {
		return err
	}
	merged, changed := s.tags.AddCustom(storedTags, userTag)
	artist.UserTags = merged
	artist.Rank = nil
	artist.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := s.store.UpsertArtist(ctx, artist, false); err != nil {
		return err
	}
	if err := s.store.UpdateMetadata(ctx, "lastCustomSync", artist.LastUpdated); err != nil {
		return err
	}
	s.log.Info("Custom artist synced", "artist_id", artist.ID, "tag_added", changed)
	return nil
}

// RemoveCustomTag removes one explicit user tag. Returns false without error
// when the tag was absent; an unknown artist is ErrNotFound.
func (s *graphSyncService) RemoveCustomTag(ctx context.Context, spotifyID, tag string) (bool, error) {
	_, storedTags, _, ok, err := s.store.ArtistBySpotifyID(ctx, spotifyID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("artist %s: %w", spotifyID, apperr.ErrNotFound)
	}

	remaining, removed := s.tags.RemoveCustom(storedTags, tag)
	if !removed {
		return false, nil
	}
	if err := s.store.SetUserTags(ctx, spotifyID, remaining); err != nil {
		return false, err
	}
	return true, nil
}
