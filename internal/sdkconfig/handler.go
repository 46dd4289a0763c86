package sdkconfig

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/response"
)

// Store reads and writes sdk configs.
type Store interface {
	Get(ctx context.Context, projectID uuid.UUID) (*models.SdkConfig, error)
	Upsert(ctx context.Context, cfg *models.SdkConfig) error
}

// PlanLookup returns an organization's plan.
type PlanLookup interface {
	Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error)
}

// Invalidator drops cached widget snapshots of a project.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// Handler serves /sdk-config/:projectId.
type Handler struct {
	store  Store
	plans  PlanLookup
	cache  Invalidator
	logger *zap.Logger
}

// NewHandler creates an sdk config handler.
func NewHandler(store Store, planLookup PlanLookup, cache Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, plans: planLookup, cache: cache, logger: logger}
}

func projectID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

// Get handles GET /sdk-config/:projectId.
func (h *Handler) Get(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	cfg, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load sdk config failed", zap.Error(err))
		response.Internal(c, "failed to load sdk config")
		return
	}
	response.OK(c, cfg)
}

// Update handles PUT /sdk-config/:projectId. Setting custom CSS requires a plan with CustomCSS.
func (h *Handler) Update(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseUpdateSdkConfig(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	if in.CustomCSS != nil && *in.CustomCSS != "" {
		plan, err := h.plans.Plan(ctx, middleware.OrganizationID(c))
		if err != nil {
			h.logger.Error("load plan failed", zap.Error(err))
			response.Internal(c, "failed to load plan")
			return
		}
		if !plans.For(plan).CustomCSS {
			response.PaymentRequired(c, "custom CSS is not available on your plan")
			return
		}
	}
	cfg, err := h.store.Get(ctx, id)
	if err != nil {
		h.logger.Error("load sdk config failed", zap.Error(err))
		response.Internal(c, "failed to load sdk config")
		return
	}
	if in.Theme != nil {
		cfg.Theme = in.Theme
	}
	if in.Position != nil {
		cfg.Position = *in.Position
	}
	if in.ZIndex != nil {
		cfg.ZIndex = *in.ZIndex
	}
	if in.CustomCSS != nil {
		cfg.CustomCSS = *in.CustomCSS
	}
	if err := h.store.Upsert(ctx, cfg); err != nil {
		h.logger.Error("save sdk config failed", zap.Error(err))
		response.Internal(c, "failed to save sdk config")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, id); err != nil {
			h.logger.Warn("invalidate sdk snapshot failed", zap.Error(err), zap.String("project_id", id.String()))
		}
	}
	response.OK(c, cfg)
}
