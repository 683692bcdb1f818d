package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// One worker per process today, but SKIP LOCKED keeps the claim safe if a
// second ingestor instance ever runs against the same database.
func forUpdateSkipLocked() clause.Expression {
	return clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
}

type SyncRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.SyncRun) (*types.SyncRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SyncRun, error)
	// ClaimNextQueued marks the oldest queued run as running and returns it.
	// Nil when nothing is queued.
	ClaimNextQueued(ctx context.Context, tx *gorm.DB) (*types.SyncRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type syncRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyncRunRepo(db *gorm.DB, baseLog *logger.Logger) SyncRunRepo {
	return &syncRunRepo{db: db, log: baseLog.With("repo", "SyncRunRepo")}
}

func (r *syncRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.SyncRun) (*types.SyncRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.SyncRunStatusQueued
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *syncRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SyncRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.SyncRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *syncRunRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB) (*types.SyncRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var claimed *types.SyncRun
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var run types.SyncRun
		err := inner.
			Where("status = ?", types.SyncRunStatusQueued).
			Order("created_at ASC").
			Limit(1).
			Clauses(forUpdateSkipLocked()).
			Find(&run).Error
		if err != nil {
			return err
		}
		if run.ID == uuid.Nil {
			return nil
		}
		now := time.Now().UTC()
		err = inner.Model(&types.SyncRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":     types.SyncRunStatusRunning,
				"started_at": now,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		run.Status = types.SyncRunStatusRunning
		run.StartedAt = &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *syncRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates["updated_at"] = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.SyncRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
