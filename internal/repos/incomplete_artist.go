package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

type IncompleteArtistRepo interface {
	Save(ctx context.Context, tx *gorm.DB, artist *types.IncompleteArtist) (bool, error)
	GetBySpotifyID(ctx context.Context, tx *gorm.DB, spotifyID string) ([]*types.IncompleteArtist, error)
}

type incompleteArtistRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIncompleteArtistRepo(db *gorm.DB, baseLog *logger.Logger) IncompleteArtistRepo {
	return &incompleteArtistRepo{db: db, log: baseLog.With("repo", "IncompleteArtistRepo")}
}

// Save inserts one failed ingestion attempt, skipping duplicates for the
// same (spotify_id, user_tag). Returns whether a row was written.
func (r *incompleteArtistRepo) Save(ctx context.Context, tx *gorm.DB, artist *types.IncompleteArtist) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.IncompleteArtist{}).
		Where("spotify_id = ? AND user_tag = ?", artist.SpotifyID, artist.UserTag).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		r.log.Debug("Incomplete artist already recorded", "spotify_id", artist.SpotifyID, "user_tag", artist.UserTag)
		return false, nil
	}

	if artist.ID == uuid.Nil {
		artist.ID = uuid.New()
	}
	if artist.LastAttempted.IsZero() {
		artist.LastAttempted = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(artist).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *incompleteArtistRepo) GetBySpotifyID(ctx context.Context, tx *gorm.DB, spotifyID string) ([]*types.IncompleteArtist, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.IncompleteArtist
	if err := transaction.WithContext(ctx).
		Where("spotify_id = ?", spotifyID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
