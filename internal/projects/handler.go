package projects

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/response"
	"github.com/releaselayer/backend/pkg/storage"
)

// Store is the project persistence the handler needs.
type Store interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Project, error)
	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
	Update(ctx context.Context, p *models.Project) error
	SetDomain(ctx context.Context, p *models.Project) error
	RotateSdkKey(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlanLookup returns an organization's plan.
type PlanLookup interface {
	Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error)
}

// Assets issues upload URLs for release images and removes a project's images.
type Assets interface {
	PresignAssetUpload(ctx context.Context, projectID uuid.UUID, filename, contentType string) (*storage.Upload, error)
	DeleteProjectAssets(ctx context.Context, projectID uuid.UUID) (int, error)
}

// KeyCache holds SDK key lookups and widget snapshots that must not outlive a key or project.
type KeyCache interface {
	ForgetKey(ctx context.Context, sdkKey string) error
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// Handler handles project HTTP endpoints.
type Handler struct {
	store  Store
	plans  PlanLookup
	assets Assets
	keys   KeyCache
	logger *zap.Logger
}

// NewHandler creates a projects handler. assets may be nil when no bucket is configured.
func NewHandler(store Store, planLookup PlanLookup, assets Assets, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, plans: planLookup, assets: assets, logger: logger}
}

// WithKeyCache makes key rotation and project deletion drop cached SDK lookups.
func (h *Handler) WithKeyCache(keys KeyCache) *Handler {
	h.keys = keys
	return h
}

func (h *Handler) forget(ctx context.Context, p *models.Project, sdkKey string) {
	if h.keys == nil {
		return
	}
	if err := h.keys.ForgetKey(ctx, sdkKey); err != nil {
		h.logger.Warn("forget sdk key failed", zap.Error(err), zap.String("project_id", p.ID.String()))
	}
	if err := h.keys.Invalidate(ctx, p.ID); err != nil {
		h.logger.Warn("invalidate sdk snapshot failed", zap.Error(err), zap.String("project_id", p.ID.String()))
	}
}

func (h *Handler) limits(c *gin.Context) (plans.PlanLimits, bool) {
	plan, err := h.plans.Plan(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		h.logger.Error("load plan failed", zap.Error(err))
		response.Internal(c, "failed to load plan")
		return plans.PlanLimits{}, false
	}
	return plans.For(plan), true
}

// load fetches the project named by :id; the access middleware already checked membership.
func (h *Handler) load(c *gin.Context) (*models.Project, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return nil, false
	}
	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "project not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load project failed", zap.Error(err))
		response.Internal(c, "failed to load project")
		return nil, false
	}
	return p, true
}

// List handles GET /orgs/:id/projects.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListByOrganization(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		h.logger.Error("list projects failed", zap.Error(err))
		response.Internal(c, "failed to load projects")
		return
	}
	response.OK(c, list)
}

// Create handles POST /orgs/:id/projects. Enforces the plan's project ceiling.
func (h *Handler) Create(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseCreateProject(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	limits, ok := h.limits(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orgID := middleware.OrganizationID(c)
	count, err := h.store.CountByOrganization(ctx, orgID)
	if err != nil {
		response.Internal(c, "failed to count projects")
		return
	}
	if err := plans.Check(limits.MaxProjects, count, 1); err != nil {
		response.PaymentRequired(c, "project limit reached for your plan")
		return
	}
	p := &models.Project{OrganizationID: orgID, Name: in.Name, Slug: in.Slug}
	if err := h.store.Create(ctx, p); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "a project with this slug already exists")
			return
		}
		h.logger.Error("create project failed", zap.Error(err))
		response.Internal(c, "failed to create project")
		return
	}
	response.Created(c, p)
}

// Get handles GET /projects/:id.
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, p)
}

// Update handles PUT /projects/:id.
func (h *Handler) Update(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseUpdateProject(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	p, ok := h.load(c)
	if !ok {
		return
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if err := h.store.Update(c.Request.Context(), p); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "a project with this slug already exists")
			return
		}
		h.logger.Error("update project failed", zap.Error(err))
		response.Internal(c, "failed to update project")
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /projects/:id. Stored images are removed best-effort.
func (h *Handler) Delete(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "project not found")
			return
		}
		h.logger.Error("delete project failed", zap.Error(err))
		response.Internal(c, "failed to delete project")
		return
	}
	h.forget(ctx, p, p.SdkKey)
	if h.assets != nil {
		if n, err := h.assets.DeleteProjectAssets(ctx, p.ID); err != nil {
			h.logger.Warn("delete project assets failed", zap.Error(err), zap.String("project_id", p.ID.String()))
		} else if n > 0 {
			h.logger.Info("deleted project assets", zap.Int("count", n), zap.String("project_id", p.ID.String()))
		}
	}
	response.NoContent(c)
}

// SetDomain handles PUT /projects/:id/domain. A new domain starts pending verification;
// an empty domain clears it.
func (h *Handler) SetDomain(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseUpdateDomain(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	p, ok := h.load(c)
	if !ok {
		return
	}
	if in.Domain == "" {
		p.CustomDomain = nil
		p.DomainStatus = models.DomainStatusNone
	} else {
		limits, ok := h.limits(c)
		if !ok {
			return
		}
		if !limits.CustomDomain {
			response.PaymentRequired(c, "custom domains are not available on your plan")
			return
		}
		if p.CustomDomain == nil || *p.CustomDomain != in.Domain {
			p.CustomDomain = &in.Domain
			p.DomainStatus = models.DomainStatusPending
		}
	}
	if err := h.store.SetDomain(c.Request.Context(), p); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "domain is already in use")
			return
		}
		h.logger.Error("set domain failed", zap.Error(err))
		response.Internal(c, "failed to update domain")
		return
	}
	response.OK(c, p)
}

// RotateSdkKey handles POST /projects/:id/sdk-key/rotate.
func (h *Handler) RotateSdkKey(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	old := p.SdkKey
	if err := h.store.RotateSdkKey(c.Request.Context(), p); err != nil {
		h.logger.Error("rotate sdk key failed", zap.Error(err))
		response.Internal(c, "failed to rotate sdk key")
		return
	}
	h.forget(c.Request.Context(), p, old)
	h.logger.Info("sdk key rotated", zap.String("project_id", p.ID.String()))
	response.OK(c, p)
}

// AssetUploadURL handles POST /projects/:id/assets/upload-url.
func (h *Handler) AssetUploadURL(c *gin.Context) {
	if h.assets == nil {
		response.ServiceUnavailable(c, "asset uploads are not configured")
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseAssetUpload(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	p, ok := h.load(c)
	if !ok {
		return
	}
	upload, err := h.assets.PresignAssetUpload(c.Request.Context(), p.ID, in.Filename, in.ContentType)
	if err != nil {
		h.logger.Error("presign asset upload failed", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.Created(c, upload)
}
