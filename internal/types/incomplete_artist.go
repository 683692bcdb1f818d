package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IncompleteArtist records a custom-artist ingestion that could not be
// completed, so the request is not silently lost. Deduplicated on
// (spotify_id, user_tag).
type IncompleteArtist struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SpotifyID      string         `gorm:"column:spotify_id;not null;uniqueIndex:idx_incomplete_artist_spotify_user" json:"spotify_id"`
	UserTag        string         `gorm:"column:user_tag;not null;uniqueIndex:idx_incomplete_artist_spotify_user" json:"user_tag"`
	Name           string         `gorm:"column:name" json:"name"`
	Popularity     int            `gorm:"column:popularity;not null;default:0" json:"popularity"`
	ImageURL       string         `gorm:"column:image_url" json:"image_url"`
	FailureReason  string         `gorm:"column:failure_reason;not null;default:'unknown'" json:"failure_reason"`
	SourceSnapshot datatypes.JSON `gorm:"type:jsonb;column:source_snapshot" json:"source_snapshot,omitempty"`
	LastAttempted  time.Time      `gorm:"column:last_attempted;not null" json:"last_attempted"`
}

func (IncompleteArtist) TableName() string { return "incomplete_artists" }
