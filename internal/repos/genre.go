package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

type GenreRepo interface {
	ReplaceAll(ctx context.Context, tx *gorm.DB, genres []*types.Genre) error
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Genre, error)
}

type genreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenreRepo(db *gorm.DB, baseLog *logger.Logger) GenreRepo {
	return &genreRepo{db: db, log: baseLog.With("repo", "GenreRepo")}
}

// ReplaceAll wipes and rewrites the exported genre table so the relational
// view always matches the reference table exactly.
func (r *genreRepo) ReplaceAll(ctx context.Context, tx *gorm.DB, genres []*types.Genre) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Where("1 = 1").Delete(&types.Genre{}).Error; err != nil {
			return err
		}
		if len(genres) == 0 {
			return nil
		}
		return inner.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"x", "y", "color", "count"}),
		}).Create(&genres).Error
	})
}

func (r *genreRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Genre, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Genre
	if err := transaction.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
