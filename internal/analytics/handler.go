package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/response"
)

// Reader is the read side of the analytics store.
type Reader interface {
	ReleaseStats(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseStats, error)
	ProjectSummary(ctx context.Context, projectID uuid.UUID, since time.Time) (*Summary, error)
}

// Handler serves analytics aggregates. Organization access is enforced by route middleware.
type Handler struct {
	reader Reader
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(reader Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, logger: logger}
}

// ReleaseStats handles GET /releases/:id/stats.
func (h *Handler) ReleaseStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid release id")
		return
	}
	stats, err := h.reader.ReleaseStats(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("release stats failed", zap.Error(err))
		response.Internal(c, "failed to load release stats")
		return
	}
	response.OK(c, stats)
}

// ProjectSummary handles GET /projects/:id/analytics?days=30.
func (h *Handler) ProjectSummary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			response.BadRequest(c, "days must be between 1 and 365")
			return
		}
		days = n
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	summary, err := h.reader.ProjectSummary(c.Request.Context(), id, since)
	if err != nil {
		h.logger.Error("project summary failed", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, summary)
}
