package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/redis"
	"github.com/releaselayer/backend/pkg/response"
)

// Store is the persistence the handler needs.
type Store interface {
	Create(ctx context.Context, org *models.Organization, owner *models.OrganizationUser) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationUser, error)
	CountProjects(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// UsageReader reads this month's usage counters.
type UsageReader interface {
	MonthlyUsers(ctx context.Context, orgID uuid.UUID) (int64, error)
	Impressions(ctx context.Context, orgID uuid.UUID) (int64, error)
	AIRewrites(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store  Store
	usage  UsageReader
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(store Store, usage UsageReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, usage: usage, logger: logger}
}

// Create handles POST /orgs. The caller becomes owner; new organizations start on the free plan.
func (h *Handler) Create(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseCreateOrganization(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	org := &models.Organization{Name: in.Name, Slug: in.Slug, Plan: models.PlanFree}
	owner := &models.OrganizationUser{UserID: middleware.UserID(c), Email: middleware.UserEmail(c)}
	if err := h.store.Create(c.Request.Context(), org, owner); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// List handles GET /orgs. Returns orgs the current user is a member of.
func (h *Handler) List(c *gin.Context) {
	orgs, err := h.store.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// Get handles GET /orgs/:id.
func (h *Handler) Get(c *gin.Context) {
	org, err := h.store.GetByID(c.Request.Context(), middleware.OrganizationID(c))
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "organization not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load organization")
		return
	}
	response.OK(c, org)
}

// ListMembers handles GET /orgs/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.store.ListMembers(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// UsageCounts is the organization's consumption in the current period.
type UsageCounts struct {
	MAU         int64 `json:"mau"`
	Impressions int64 `json:"impressions"`
	Projects    int64 `json:"projects"`
	AIRewrites  int64 `json:"aiRewrites"`
}

// UsageReport pairs the plan ceilings with current usage.
type UsageReport struct {
	Plan   models.Plan      `json:"plan"`
	Period string           `json:"period"`
	Limits plans.PlanLimits `json:"limits"`
	Usage  UsageCounts      `json:"usage"`
}

// Usage handles GET /orgs/:id/usage.
func (h *Handler) Usage(c *gin.Context) {
	ctx := c.Request.Context()
	org, err := h.store.GetByID(ctx, middleware.OrganizationID(c))
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "organization not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load organization")
		return
	}
	report := UsageReport{
		Plan:   org.Plan,
		Period: redis.Period(time.Now()),
		Limits: plans.For(org.Plan),
	}
	if report.Usage.Projects, err = h.store.CountProjects(ctx, org.ID); err != nil {
		response.Internal(c, "failed to count projects")
		return
	}
	if report.Usage.MAU, err = h.usage.MonthlyUsers(ctx, org.ID); err != nil {
		h.logger.Warn("read mau failed", zap.Error(err))
	}
	if report.Usage.Impressions, err = h.usage.Impressions(ctx, org.ID); err != nil {
		h.logger.Warn("read impressions failed", zap.Error(err))
	}
	if report.Usage.AIRewrites, err = h.usage.AIRewrites(ctx, org.ID); err != nil {
		h.logger.Warn("read ai rewrites failed", zap.Error(err))
	}
	response.OK(c, report)
}
