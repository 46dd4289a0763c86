package releases

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
	"github.com/releaselayer/backend/pkg/queue"
	"github.com/releaselayer/backend/pkg/response"
)

// Store is the release persistence the handler needs.
type Store interface {
	Create(ctx context.Context, rel *models.Release) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Release, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, status models.ReleaseStatus) ([]models.Release, error)
	Update(ctx context.Context, rel *models.Release) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Renderer turns release markdown into sanitized HTML.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Rewriter produces an AI rewrite of release markdown.
type Rewriter interface {
	Rewrite(ctx context.Context, title, markdown, tone string) (string, error)
}

// PlanLookup returns an organization's plan.
type PlanLookup interface {
	Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error)
}

// RewriteCounter tracks monthly AI rewrites per organization. AddAIRewrite reserves one
// rewrite and returns the new total; ReleaseAIRewrite gives a reservation back.
type RewriteCounter interface {
	AddAIRewrite(ctx context.Context, orgID uuid.UUID) (int64, error)
	ReleaseAIRewrite(ctx context.Context, orgID uuid.UUID) error
}

// Notifier queues release notifications for the worker.
type Notifier interface {
	EnqueueReleaseNotify(ctx context.Context, payload queue.ReleaseNotifyPayload) error
}

// Invalidator drops cached widget snapshots of a project.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// Deps groups the collaborators of Handler. Rewriter may be nil when AI is not configured.
type Deps struct {
	Store    Store
	Renderer Renderer
	Rewriter Rewriter
	Plans    PlanLookup
	Counter  RewriteCounter
	Notifier Notifier
	Cache    Invalidator
	Logger   *zap.Logger
}

// Handler handles release HTTP endpoints.
type Handler struct {
	Deps
	now func() time.Time
}

// NewHandler creates a releases handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{Deps: deps, now: time.Now}
}

func (h *Handler) load(c *gin.Context) (*models.Release, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid release id")
		return nil, false
	}
	rel, err := h.Store.GetByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "release not found")
		return nil, false
	}
	if err != nil {
		h.Logger.Error("load release failed", zap.Error(err))
		response.Internal(c, "failed to load release")
		return nil, false
	}
	return rel, true
}

// changed runs the side effects of a status change. Both are best-effort.
func (h *Handler) changed(ctx context.Context, rel *models.Release, prev models.ReleaseStatus) {
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, rel.ProjectID); err != nil {
			h.Logger.Warn("invalidate sdk snapshot failed", zap.Error(err), zap.String("project_id", rel.ProjectID.String()))
		}
	}
	var event string
	switch {
	case rel.Status == models.ReleaseStatusPublished && prev != models.ReleaseStatusPublished:
		event = models.EventReleasePublished
	case rel.Status == models.ReleaseStatusArchived && prev != models.ReleaseStatusArchived:
		event = models.EventReleaseArchived
	default:
		return
	}
	if h.Notifier == nil {
		return
	}
	payload := queue.ReleaseNotifyPayload{ReleaseID: rel.ID, ProjectID: rel.ProjectID, Event: event}
	if err := h.Notifier.EnqueueReleaseNotify(ctx, payload); err != nil {
		h.Logger.Error("enqueue release notification failed", zap.Error(err), zap.String("release_id", rel.ID.String()))
	}
}

func (h *Handler) saveError(c *gin.Context, err error, action string) {
	switch {
	case database.IsUniqueViolation(err):
		response.Conflict(c, "a release with this slug already exists")
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "release not found")
	default:
		h.Logger.Error(action+" release failed", zap.Error(err))
		response.Internal(c, "failed to "+action+" release")
	}
}

// List handles GET /projects/:id/releases?status=.
func (h *Handler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	status := models.ReleaseStatus(c.Query("status"))
	switch status {
	case "", models.ReleaseStatusDraft, models.ReleaseStatusScheduled, models.ReleaseStatusPublished, models.ReleaseStatusArchived:
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}
	list, err := h.Store.ListByProject(c.Request.Context(), projectID, status)
	if err != nil {
		h.Logger.Error("list releases failed", zap.Error(err))
		response.Internal(c, "failed to load releases")
		return
	}
	response.OK(c, list)
}

// Create handles POST /projects/:id/releases.
func (h *Handler) Create(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseCreateRelease(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	html, err := h.Renderer.Render(in.ContentMd)
	if err != nil {
		response.BadRequest(c, "contentMd could not be rendered")
		return
	}
	rel := &models.Release{
		ProjectID:    projectID,
		Title:        in.Title,
		Slug:         in.Slug,
		Status:       in.Status,
		DisplayType:  in.DisplayType,
		ShowOnce:     *in.ShowOnce,
		PublishAt:    in.PublishAt,
		UnpublishAt:  in.UnpublishAt,
		TargetTraits: in.TargetTraits,
		ContentMd:    in.ContentMd,
		ContentHTML:  html,
	}
	ctx := c.Request.Context()
	if err := h.Store.Create(ctx, rel); err != nil {
		h.saveError(c, err, "create")
		return
	}
	prev := rel.Status
	if prev == models.ReleaseStatusPublished {
		prev = models.ReleaseStatusDraft
	}
	h.changed(ctx, rel, prev)
	response.Created(c, rel)
}

// Get handles GET /releases/:id.
func (h *Handler) Get(c *gin.Context) {
	rel, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, rel)
}

// Update handles PUT and PATCH /releases/:id. Only the fields present change and an explicit
// null clears publishAt, unpublishAt or targetTraits. The schedule rule is checked against the
// merged result.
func (h *Handler) Update(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseUpdateRelease(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	rel, ok := h.load(c)
	if !ok {
		return
	}
	prev := rel.Status
	if in.Title != nil {
		rel.Title = *in.Title
	}
	if in.Slug != nil {
		rel.Slug = *in.Slug
	}
	if in.DisplayType != nil {
		rel.DisplayType = *in.DisplayType
	}
	if in.ShowOnce != nil {
		rel.ShowOnce = *in.ShowOnce
	}
	if in.ClearPublishAt {
		rel.PublishAt = nil
	}
	if in.ClearUnpublishAt {
		rel.UnpublishAt = nil
	}
	if in.ClearTargetTraits {
		rel.TargetTraits = nil
	}
	if in.PublishAt != nil {
		rel.PublishAt = in.PublishAt
	}
	if in.UnpublishAt != nil {
		rel.UnpublishAt = in.UnpublishAt
	}
	if in.TargetTraits != nil {
		rel.TargetTraits = in.TargetTraits
	}
	if in.Status != nil {
		rel.Status = *in.Status
	}
	if in.ContentMd != nil && *in.ContentMd != rel.ContentMd {
		html, err := h.Renderer.Render(*in.ContentMd)
		if err != nil {
			response.BadRequest(c, "contentMd could not be rendered")
			return
		}
		rel.ContentMd = *in.ContentMd
		rel.ContentHTML = html
	}
	errs := validation.ValidateSchedule(rel.PublishAt, rel.UnpublishAt)
	if rel.Status == models.ReleaseStatusScheduled && rel.PublishAt == nil {
		errs = append(errs, validation.FieldError{Field: "publishAt", Message: "is required for scheduled releases"})
	}
	if len(errs) > 0 {
		response.Invalid(c, errs)
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.Update(ctx, rel); err != nil {
		h.saveError(c, err, "update")
		return
	}
	h.changed(ctx, rel, prev)
	response.OK(c, rel)
}

// Delete handles DELETE /releases/:id.
func (h *Handler) Delete(c *gin.Context) {
	rel, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.Delete(ctx, rel.ID); err != nil {
		h.saveError(c, err, "delete")
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, rel.ProjectID); err != nil {
			h.Logger.Warn("invalidate sdk snapshot failed", zap.Error(err))
		}
	}
	response.NoContent(c)
}

// Publish handles POST /releases/:id/publish. A future publish time is pulled to now.
func (h *Handler) Publish(c *gin.Context) {
	rel, ok := h.load(c)
	if !ok {
		return
	}
	now := h.now().Unix()
	if rel.UnpublishAt != nil && *rel.UnpublishAt <= now {
		response.Conflict(c, "unpublishAt has already passed")
		return
	}
	prev := rel.Status
	if rel.PublishAt != nil && *rel.PublishAt > now {
		rel.PublishAt = &now
	}
	rel.Status = models.ReleaseStatusPublished
	ctx := c.Request.Context()
	if err := h.Store.Update(ctx, rel); err != nil {
		h.saveError(c, err, "publish")
		return
	}
	h.changed(ctx, rel, prev)
	response.OK(c, rel)
}

// Archive handles POST /releases/:id/archive.
func (h *Handler) Archive(c *gin.Context) {
	rel, ok := h.load(c)
	if !ok {
		return
	}
	prev := rel.Status
	rel.Status = models.ReleaseStatusArchived
	ctx := c.Request.Context()
	if err := h.Store.Update(ctx, rel); err != nil {
		h.saveError(c, err, "archive")
		return
	}
	h.changed(ctx, rel, prev)
	response.OK(c, rel)
}

// Rewrite handles POST /releases/:id/rewrite. A slot of the organization's monthly AI quota is
// reserved before the model is called and given back when the call fails.
func (h *Handler) Rewrite(c *gin.Context) {
	if h.Rewriter == nil {
		response.ServiceUnavailable(c, "AI rewrites are not configured")
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseRewriteRelease(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	rel, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orgID := middleware.OrganizationID(c)
	plan, err := h.Plans.Plan(ctx, orgID)
	if err != nil {
		h.Logger.Error("load plan failed", zap.Error(err))
		response.Internal(c, "failed to load plan")
		return
	}
	total, err := h.Counter.AddAIRewrite(ctx, orgID)
	if err != nil {
		h.Logger.Error("reserve ai rewrite failed", zap.Error(err))
		response.Internal(c, "failed to reserve AI usage")
		return
	}
	done := false
	defer func() {
		if done {
			return
		}
		if err := h.Counter.ReleaseAIRewrite(context.WithoutCancel(ctx), orgID); err != nil {
			h.Logger.Warn("release ai rewrite failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		}
	}()
	if err := plans.Check(plans.For(plan).MaxAIRewrites, total-1, 1); err != nil {
		response.PaymentRequired(c, "monthly AI rewrite limit reached for your plan")
		return
	}
	out, err := h.Rewriter.Rewrite(ctx, rel.Title, rel.ContentMd, in.Tone)
	if err != nil {
		h.Logger.Error("ai rewrite failed", zap.Error(err), zap.String("release_id", rel.ID.String()))
		response.ServiceUnavailable(c, "AI rewrite failed, try again later")
		return
	}
	done = true
	rel.ContentAI = &out
	if in.Apply {
		html, err := h.Renderer.Render(out)
		if err != nil {
			response.Internal(c, "failed to render rewrite")
			return
		}
		rel.ContentMd = out
		rel.ContentHTML = html
	}
	if err := h.Store.Update(ctx, rel); err != nil {
		h.saveError(c, err, "update")
		return
	}
	if in.Apply {
		h.changed(ctx, rel, rel.Status)
	}
	response.OK(c, rel)
}
