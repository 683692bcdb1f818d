package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SyncRunKindTopArtists   = "top_artists"
	SyncRunKindCustomArtist = "custom_artist"

	SyncRunStatusQueued    = "queued"
	SyncRunStatusRunning   = "running"
	SyncRunStatusSucceeded = "succeeded"
	SyncRunStatusFailed    = "failed"
)

// SyncRun tracks one ingestion run end to end. The worker claims queued runs
// one at a time; processing inside a run is strictly sequential.
type SyncRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind       string         `gorm:"column:kind;not null;index" json:"kind"`
	Status     string         `gorm:"column:status;not null;index" json:"status"` // queued|running|succeeded|failed
	Stage      string         `gorm:"column:stage" json:"stage"`                  // lastfm_top|lastfm_detailed|musicbrainz|spotify|merge|graph_sync|done
	Error      string         `gorm:"column:error" json:"error"`
	Counts     datatypes.JSON `gorm:"type:jsonb;column:counts" json:"counts,omitempty"`
	StartedAt  *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SyncRun) TableName() string { return "sync_run" }
