package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
)

// Stage names written between pipeline phases. A run can resume from the
// last completed stage instead of refetching every source.
const (
	StageLastfmTop      = "lastfm_top"
	StageLastfmDetailed = "lastfm_detailed"
	StageMusicBrainz    = "musicbrainz"
	StageSpotify        = "spotify"
	StagePostMerge      = "post_merge"
)

// CheckpointStore persists named pipeline stages as JSON blobs with a TTL.
type CheckpointStore interface {
	SaveStage(ctx context.Context, stage string, payload any) error
	LoadStage(ctx context.Context, stage string, out any) (bool, error)
	DeleteStage(ctx context.Context, stage string) error
	Close() error
}

type checkpointStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewCheckpointStore returns (nil, nil) when REDIS_ADDR is unset:
// checkpointing is an optional collaborator, unlike the graph store.
func NewCheckpointStore(log *logger.Logger) (CheckpointStore, error) {
	if log == nil {
		return nil, fmt.Errorf("redis: logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	ttlSec := 3600
	if v := strings.TrimSpace(os.Getenv("REDIS_DATA_EXPIRATION_TIME_LIMIT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ttlSec = parsed
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &checkpointStore{
		log: log.With("client", "RedisCheckpoint"),
		rdb: rdb,
		ttl: time.Duration(ttlSec) * time.Second,
	}, nil
}

func stageKey(stage string) string { return "checkpoint:" + stage }

func (s *checkpointStore) SaveStage(ctx context.Context, stage string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal stage %s: %w", stage, err)
	}
	if err := s.rdb.Set(ctx, stageKey(stage), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save stage %s: %w", stage, err)
	}
	s.log.Debug("Checkpoint saved", "stage", stage, "bytes", len(raw))
	return nil
}

func (s *checkpointStore) LoadStage(ctx context.Context, stage string, out any) (bool, error) {
	raw, err := s.rdb.Get(ctx, stageKey(stage)).Bytes()
	if err == goredis.Nil {
		s.log.Debug("Checkpoint miss", "stage", stage)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: load stage %s: %w", stage, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("redis: parse stage %s: %w", stage, err)
	}
	s.log.Debug("Checkpoint hit", "stage", stage, "bytes", len(raw))
	return true, nil
}

func (s *checkpointStore) DeleteStage(ctx context.Context, stage string) error {
	if err := s.rdb.Del(ctx, stageKey(stage)).Err(); err != nil {
		return fmt.Errorf("redis: delete stage %s: %w", stage, err)
	}
	return nil
}

func (s *checkpointStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
