package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/soundweb-ingestor/internal/clients/lastfm"
	"github.com/yungbote/soundweb-ingestor/internal/clients/musicbrainz"
	"github.com/yungbote/soundweb-ingestor/internal/clients/redis"
	"github.com/yungbote/soundweb-ingestor/internal/clients/spotify"
	"github.com/yungbote/soundweb-ingestor/internal/genre"
	"github.com/yungbote/soundweb-ingestor/internal/merge"
	"github.com/yungbote/soundweb-ingestor/internal/platform/envutil"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/repos"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// Run stages beyond the checkpointed source fetches.
const (
	stageMerge     = "merge"
	stageGraphSync = "graph_sync"
	stageDone      = "done"
)

// Failure reasons recorded against incomplete custom-artist ingestions.
const (
	FailureSpotifyNotFound = "spotify_not_found"
	FailureNoGenres        = "no_genres"
	FailureGraphSync       = "graph_sync_failed"
)

// IngestPipelineService owns the bulk top-artist pipeline and the
// single-artist custom path. Bulk runs are queued in Postgres and executed
// one at a time by the worker; the custom path runs inline on the request.
type IngestPipelineService interface {
	EnqueueTopArtistRun(ctx context.Context) (*types.SyncRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*types.SyncRun, error)
	IngestCustomArtist(ctx context.Context, name, spotifyID, userTag string) (*types.ArtistNode, error)
	// StartWorker launches the background claim loop. It returns
	// immediately; the loop stops when ctx is cancelled.
	StartWorker(ctx context.Context)
}

type ingestPipelineService struct {
	log *logger.Logger

	lastfm      lastfm.Client
	spotify     spotify.Client
	musicbrainz musicbrainz.Client

	resolver *genre.Resolver
	merger   *merge.Merger
	syncer   GraphSyncService

	checkpoints    redis.CheckpointStore // nil disables resume
	runRepo        repos.SyncRunRepo
	incompleteRepo repos.IncompleteArtistRepo

	maxTopArtists int
	pollInterval  time.Duration
}

func NewIngestPipelineService(
	baseLog *logger.Logger,
	lastfmClient lastfm.Client,
	spotifyClient spotify.Client,
	musicbrainzClient musicbrainz.Client,
	resolver *genre.Resolver,
	merger *merge.Merger,
	syncer GraphSyncService,
	checkpoints redis.CheckpointStore,
	runRepo repos.SyncRunRepo,
	incompleteRepo repos.IncompleteArtistRepo,
) IngestPipelineService {
	log := baseLog.With("service", "IngestPipelineService")
	return &ingestPipelineService{
		log:            log,
		lastfm:         lastfmClient,
		spotify:        spotifyClient,
		musicbrainz:    musicbrainzClient,
		resolver:       resolver,
		merger:         merger,
		syncer:         syncer,
		checkpoints:    checkpoints,
		runRepo:        runRepo,
		incompleteRepo: incompleteRepo,
		maxTopArtists:  envutil.GetEnvAsInt("LASTFM_MAX_ARTIST_COUNT", 1000, log),
		pollInterval:   time.Duration(envutil.GetEnvAsInt("WORKER_POLL_INTERVAL_SECONDS", 5, log)) * time.Second,
	}
}

func (s *ingestPipelineService) EnqueueTopArtistRun(ctx context.Context) (*types.SyncRun, error) {
	run, err := s.runRepo.Create(ctx, nil, &types.SyncRun{Kind: types.SyncRunKindTopArtists})
	if err != nil {
		return nil, fmt.Errorf("enqueue top-artist run: %w", err)
	}
	s.log.Info("Queued top-artist sync run", "run_id", run.ID)
	return run, nil
}

func (s *ingestPipelineService) GetRun(ctx context.Context, id uuid.UUID) (*types.SyncRun, error) {
	return s.runRepo.GetByID(ctx, nil, id)
}

func (s *ingestPipelineService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		s.log.Info("Ingest worker started", "poll_interval", s.pollInterval.String())
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Ingest worker stopping")
				return
			case <-ticker.C:
				run, err := s.runRepo.ClaimNextQueued(ctx, nil)
				if err != nil {
					s.log.Error("Failed to claim queued run", "error", err)
					continue
				}
				if run == nil {
					continue
				}
				s.executeRun(ctx, run)
			}
		}
	}()
}

func (s *ingestPipelineService) executeRun(ctx context.Context, run *types.SyncRun) {
	runLog := s.log.With("run_id", run.ID)
	runLog.Info("Executing sync run", "kind", run.Kind)

	counts, err := s.runTopArtistSync(ctx, run.ID)
	now := time.Now().UTC()
	updates := map[string]interface{}{"finished_at": now}
	if counts != nil {
		if raw, marshalErr := json.Marshal(counts); marshalErr == nil {
			updates["counts"] = datatypes.JSON(raw)
		}
	}
	if err != nil {
		runLog.Error("Sync run failed", "error", err)
		updates["status"] = types.SyncRunStatusFailed
		updates["error"] = err.Error()
	} else {
		runLog.Info("Sync run succeeded", "counts", counts)
		updates["status"] = types.SyncRunStatusSucceeded
		updates["stage"] = stageDone
	}
	if uerr := s.runRepo.UpdateFields(ctx, nil, run.ID, updates); uerr != nil {
		runLog.Error("Failed to finalize sync run", "error", uerr)
	}
}

func (s *ingestPipelineService) setStage(ctx context.Context, runID uuid.UUID, stage string) {
	if err := s.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{"stage": stage}); err != nil {
		s.log.Warn("Failed to record run stage", "run_id", runID, "stage", stage, "error", err)
	}
}

// runTopArtistSync drives the bulk pipeline: chart, details, genre registry,
// catalog, merge, graph sync. Each fetch stage is checkpointed so a crashed
// run resumes from its last completed stage instead of re-fetching.
func (s *ingestPipelineService) runTopArtistSync(ctx context.Context, runID uuid.UUID) (map[string]int, error) {
	s.setStage(ctx, runID, redis.StageLastfmTop)
	topArtists, err := s.stagedFetch(ctx, redis.StageLastfmTop, func() ([]*types.SourceRecord, error) {
		return s.lastfm.FetchTopArtists(ctx, s.maxTopArtists)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch chart: %w", err)
	}

	s.setStage(ctx, runID, redis.StageLastfmDetailed)
	detailed, err := s.stagedFetch(ctx, redis.StageLastfmDetailed, func() ([]*types.SourceRecord, error) {
		return s.lastfm.FetchArtistDetails(ctx, topArtists), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch chart details: %w", err)
	}

	s.setStage(ctx, runID, redis.StageMusicBrainz)
	registry, err := s.stagedFetch(ctx, redis.StageMusicBrainz, func() ([]*types.SourceRecord, error) {
		return s.musicbrainz.FetchGenreData(ctx, detailed)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch genre registry: %w", err)
	}

	s.setStage(ctx, runID, redis.StageSpotify)
	catalog, err := s.stagedFetch(ctx, redis.StageSpotify, func() ([]*types.SourceRecord, error) {
		return s.spotify.FetchArtists(ctx, detailed)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	s.setStage(ctx, runID, stageMerge)
	artists, report := s.merger.Merge(catalog, detailed, registry)
	s.saveCheckpoint(ctx, redis.StagePostMerge, artists)

	s.setStage(ctx, runID, stageGraphSync)
	result, err := s.syncer.SyncTopArtists(ctx, artists)
	counts := map[string]int{
		"chart":      len(topArtists),
		"detailed":   len(detailed),
		"registry":   len(registry),
		"catalog":    len(catalog),
		"merged":     report.Merged,
		"dropped":    len(report.Drops),
		"collisions": len(report.Collisions),
	}
	if result != nil {
		counts["upserted"] = result.Upserted
		counts["demoted"] = result.Demoted
		counts["reclaimed"] = result.Reclaimed
		counts["links_created"] = result.LinksCreated
	}
	if err != nil {
		return counts, fmt.Errorf("graph sync: %w", err)
	}

	// A finished run invalidates its checkpoints so the next run starts
	// from fresh source data.
	s.clearCheckpoints(ctx)
	return counts, nil
}

// stagedFetch returns the checkpointed payload for a stage when one exists,
// otherwise runs the fetch and checkpoints the result.
func (s *ingestPipelineService) stagedFetch(ctx context.Context, stage string, fetch func() ([]*types.SourceRecord, error)) ([]*types.SourceRecord, error) {
	if s.checkpoints != nil {
		var cached []*types.SourceRecord
		hit, err := s.checkpoints.LoadStage(ctx, stage, &cached)
		if err != nil {
			s.log.Warn("Checkpoint load failed, refetching", "stage", stage, "error", err)
		} else if hit {
			s.log.Info("Resuming stage from checkpoint", "stage", stage, "records", len(cached))
			return cached, nil
		}
	}
	records, err := fetch()
	if err != nil {
		return nil, err
	}
	s.saveCheckpoint(ctx, stage, records)
	return records, nil
}

func (s *ingestPipelineService) saveCheckpoint(ctx context.Context, stage string, payload any) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.SaveStage(ctx, stage, payload); err != nil {
		s.log.Warn("Checkpoint save failed", "stage", stage, "error", err)
	}
}

func (s *ingestPipelineService) clearCheckpoints(ctx context.Context) {
	if s.checkpoints == nil {
		return
	}
	stages := []string{
		redis.StageLastfmTop,
		redis.StageLastfmDetailed,
		redis.StageMusicBrainz,
		redis.StageSpotify,
		redis.StagePostMerge,
	}
	for _, stage := range stages {
		if err := s.checkpoints.DeleteStage(ctx, stage); err != nil {
			s.log.Warn("Checkpoint delete failed", "stage", stage, "error", err)
		}
	}
}

// IngestCustomArtist resolves one artist against all three sources and adds
// it to the graph without TopArtist status. The catalog is authoritative:
// no catalog match means no ingestion. Failures are recorded so the request
// is not silently lost.
func (s *ingestPipelineService) IngestCustomArtist(ctx context.Context, name, spotifyID, userTag string) (*types.ArtistNode, error) {
	log := s.log.With("artist", name, "spotify_id", spotifyID)

	catalogRec, err := s.lookupCatalog(ctx, name, spotifyID)
	if err != nil {
		return nil, err
	}
	if catalogRec == nil || catalogRec.ExternalID == "" {
		s.recordIncomplete(ctx, spotifyID, userTag, name, nil, FailureSpotifyNotFound)
		return nil, fmt.Errorf("custom ingest: no catalog match for %q", name)
	}

	// Genres accumulate incrementally per source, then get deduplicated
	// and re-sorted by occurrence count across all three.
	genres := s.resolver.CleanTags(catalogRec.GenreTags)

	node := &types.ArtistNode{
		ID:         catalogRec.ExternalID,
		Name:       catalogRec.Name,
		SpotifyID:  catalogRec.ExternalID,
		SpotifyURL: catalogRec.URL,
		ImageURL:   catalogRec.ImageURL,
	}
	if catalogRec.Popularity != nil {
		node.Popularity = *catalogRec.Popularity
	}

	if detail, err := s.lastfm.FetchArtistDetail(ctx, catalogRec.Name); err != nil {
		log.Warn("Chart detail lookup failed for custom artist", "error", err)
	} else if detail != nil {
		genres = append(genres, s.resolver.CleanTags(detail.GenreTags)...)
		node.RelatedArtists = detail.RelatedNames
		node.LastfmMBID = detail.ExternalID
		if node.ImageURL == "" {
			node.ImageURL = detail.ImageURL
		}
	}

	if registry, err := s.musicbrainz.FetchArtist(ctx, catalogRec.Name); err != nil {
		log.Warn("Genre registry lookup failed for custom artist", "error", err)
	} else if registry != nil {
		genres = append(genres, s.resolver.CleanTags(registry.GenreTags)...)
		if node.LastfmMBID == "" {
			node.LastfmMBID = registry.ExternalID
		}
	}

	node.Genres = s.resolver.Finalize(genres)
	if len(node.Genres) == 0 {
		s.recordIncomplete(ctx, catalogRec.ExternalID, userTag, catalogRec.Name, catalogRec, FailureNoGenres)
		return nil, fmt.Errorf("custom ingest: no vocabulary genres for %q", catalogRec.Name)
	}

	pos, color := s.resolver.PositionAndColor(node.Genres)
	node.Color = color
	if pos != nil {
		node.X = &pos.X
		node.Y = &pos.Y
	}

	if err := s.syncer.SyncCustomArtist(ctx, node, userTag); err != nil {
		s.recordIncomplete(ctx, catalogRec.ExternalID, userTag, catalogRec.Name, catalogRec, FailureGraphSync)
		return nil, fmt.Errorf("custom ingest: graph sync for %q: %w", catalogRec.Name, err)
	}
	log.Info("Ingested custom artist", "artist_id", node.ID, "genres", len(node.Genres), "user_tag", userTag)
	return node, nil
}

// lookupCatalog resolves the catalog record by id first, falling back to a
// name search when no id was supplied or the id is unknown.
func (s *ingestPipelineService) lookupCatalog(ctx context.Context, name, spotifyID string) (*types.SourceRecord, error) {
	if spotifyID != "" {
		rec, err := s.spotify.FetchArtistByID(ctx, spotifyID)
		if err != nil {
			return nil, fmt.Errorf("custom ingest: catalog lookup by id: %w", err)
		}
		if rec != nil {
			return rec, nil
		}
		s.log.Warn("Catalog id not found, falling back to name search", "spotify_id", spotifyID)
	}
	if name == "" {
		return nil, nil
	}
	rec, err := s.spotify.SearchArtistByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("custom ingest: catalog search: %w", err)
	}
	return rec, nil
}

func (s *ingestPipelineService) recordIncomplete(ctx context.Context, spotifyID, userTag, name string, source *types.SourceRecord, reason string) {
	if s.incompleteRepo == nil {
		return
	}
	row := &types.IncompleteArtist{
		SpotifyID:     spotifyID,
		UserTag:       userTag,
		Name:          name,
		FailureReason: reason,
	}
	if source != nil {
		row.ImageURL = source.ImageURL
		if source.Popularity != nil {
			row.Popularity = *source.Popularity
		}
		if raw, err := json.Marshal(source); err == nil {
			row.SourceSnapshot = datatypes.JSON(raw)
		}
	}
	written, err := s.incompleteRepo.Save(ctx, nil, row)
	if err != nil {
		s.log.Error("Failed to record incomplete artist", "artist", name, "reason", reason, "error", err)
		return
	}
	if written {
		s.log.Info("Recorded incomplete artist", "artist", name, "reason", reason)
	}
}
