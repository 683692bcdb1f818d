package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/soundweb-ingestor/internal/pkg/apperr"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/services"
)

type IngestHandler struct {
	log      *logger.Logger
	pipeline services.IngestPipelineService
	syncer   services.GraphSyncService
}

func NewIngestHandler(log *logger.Logger, pipeline services.IngestPipelineService, syncer services.GraphSyncService) *IngestHandler {
	return &IngestHandler{
		log:      log.With("handler", "IngestHandler"),
		pipeline: pipeline,
		syncer:   syncer,
	}
}

// GET /api/test
func (h *IngestHandler) Test(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// POST /api/sync/top-artists
// Queues a bulk run; the worker picks it up. Responds 202 with the run id.
func (h *IngestHandler) EnqueueTopArtistSync(c *gin.Context) {
	run, err := h.pipeline.EnqueueTopArtistRun(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// GET /api/sync/runs/:id
func (h *IngestHandler) GetSyncRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.pipeline.GetRun(c.Request.Context(), id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "run_lookup_failed", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "run_not_found", errors.New("sync run not found"))
		return
	}
	RespondOK(c, run)
}

type customArtistRequest struct {
	Name      string `json:"name"`
	SpotifyID string `json:"spotifyId"`
	UserTag   string `json:"userTag"`
}

// POST /api/add/custom-artist
func (h *IngestHandler) AddCustomArtist(c *gin.Context) {
	var req customArtistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.SpotifyID = strings.TrimSpace(req.SpotifyID)
	req.UserTag = strings.TrimSpace(req.UserTag)
	if req.Name == "" && req.SpotifyID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("name or spotifyId required"))
		return
	}
	if req.UserTag == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("userTag required"))
		return
	}

	node, err := h.pipeline.IngestCustomArtist(c.Request.Context(), req.Name, req.SpotifyID, req.UserTag)
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "custom_ingest_failed", err)
		return
	}
	RespondOK(c, node)
}

type removeTagRequest struct {
	SpotifyID string `json:"spotifyId"`
	UserTag   string `json:"userTag"`
}

// POST /api/remove/custom-tag
func (h *IngestHandler) RemoveCustomTag(c *gin.Context) {
	var req removeTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.SpotifyID = strings.TrimSpace(req.SpotifyID)
	req.UserTag = strings.TrimSpace(req.UserTag)
	if req.SpotifyID == "" || req.UserTag == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("spotifyId and userTag required"))
		return
	}

	removed, err := h.syncer.RemoveCustomTag(c.Request.Context(), req.SpotifyID, req.UserTag)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "artist_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "remove_tag_failed", err)
		return
	}
	RespondOK(c, gin.H{"removed": removed})
}
