package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/response"
)

// Store is the integration persistence the handler needs.
type Store interface {
	Create(ctx context.Context, in *models.Integration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Integration, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Integration, error)
	Update(ctx context.Context, in *models.Integration) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlanLookup returns an organization's plan.
type PlanLookup interface {
	Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error)
}

// ReleaseSource lists releases on a GitLab instance.
type ReleaseSource interface {
	Releases(ctx context.Context, cfg models.GitLabConfig) ([]ExternalRelease, error)
}

// Importer stores mirrored releases, skipping ones already imported.
type Importer interface {
	Import(ctx context.Context, rel *models.Release, sourceRef string) (bool, error)
}

// Renderer turns release markdown into sanitized HTML.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Store    Store
	Plans    PlanLookup
	Source   ReleaseSource
	Importer Importer
	Renderer Renderer
	Logger   *zap.Logger
}

// Handler handles integration HTTP endpoints.
type Handler struct {
	Deps
}

// NewHandler creates an integrations handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{Deps: deps}
}

// SyncResult reports the outcome of a release import.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func (h *Handler) load(c *gin.Context) (*models.Integration, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid integration id")
		return nil, false
	}
	in, err := h.Store.GetByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "integration not found")
		return nil, false
	}
	if err != nil {
		h.Logger.Error("load integration failed", zap.Error(err))
		response.Internal(c, "failed to load integration")
		return nil, false
	}
	return in, true
}

// List handles GET /projects/:id/integrations.
func (h *Handler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	list, err := h.Store.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		h.Logger.Error("list integrations failed", zap.Error(err))
		response.Internal(c, "failed to load integrations")
		return
	}
	response.OK(c, RedactedList(list))
}

// Create handles POST /projects/:id/integrations. The plan must include integrations.
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
	input, err := validation.ParseCreateIntegration(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	plan, err := h.Plans.Plan(ctx, middleware.OrganizationID(c))
	if err != nil {
		h.Logger.Error("load plan failed", zap.Error(err))
		response.Internal(c, "failed to load plan")
		return
	}
	if !plans.For(plan).Integrations {
		response.PaymentRequired(c, "integrations are not available on your plan")
		return
	}
	in := &models.Integration{
		ProjectID: projectID,
		Type:      input.Type,
		Config:    input.Config,
		IsActive:  *input.IsActive,
	}
	if err := h.Store.Create(ctx, in); err != nil {
		h.Logger.Error("create integration failed", zap.Error(err))
		response.Internal(c, "failed to create integration")
		return
	}
	h.Logger.Info("integration created",
		zap.String("integration_id", in.ID.String()),
		zap.String("type", string(in.Type)),
	)
	response.Created(c, Redacted(*in))
}

// Get handles GET /integrations/:id.
func (h *Handler) Get(c *gin.Context) {
	in, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, Redacted(*in))
}

// Update handles PUT and PATCH /integrations/:id. Config is validated against the stored type.
func (h *Handler) Update(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, ok := h.load(c)
	if !ok {
		return
	}
	input, err := validation.ParseUpdateIntegration(withStoredSecrets(raw, in.Config), in.Type)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	if input.Config != nil {
		in.Config = input.Config
	}
	if input.IsActive != nil {
		in.IsActive = *input.IsActive
	}
	if err := h.Store.Update(c.Request.Context(), in); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "integration not found")
			return
		}
		h.Logger.Error("update integration failed", zap.Error(err))
		response.Internal(c, "failed to update integration")
		return
	}
	response.OK(c, Redacted(*in))
}

// Delete handles DELETE /integrations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid integration id")
		return
	}
	err = h.Store.Delete(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "integration not found")
		return
	}
	if err != nil {
		h.Logger.Error("delete integration failed", zap.Error(err))
		response.Internal(c, "failed to delete integration")
		return
	}
	response.NoContent(c)
}

// Sync handles POST /integrations/:id/sync: GitLab releases are imported as drafts.
func (h *Handler) Sync(c *gin.Context) {
	in, ok := h.load(c)
	if !ok {
		return
	}
	if in.Type != models.IntegrationGitLab {
		response.BadRequest(c, "sync is only supported for gitlab integrations")
		return
	}
	if !in.IsActive {
		response.Conflict(c, "integration is inactive")
		return
	}
	if h.Source == nil || h.Importer == nil {
		response.ServiceUnavailable(c, "release sync is not configured")
		return
	}
	var cfg models.GitLabConfig
	if err := json.Unmarshal(in.Config, &cfg); err != nil {
		h.Logger.Error("decode gitlab config failed", zap.Error(err), zap.String("integration_id", in.ID.String()))
		response.Internal(c, "stored integration config is invalid")
		return
	}
	ctx := c.Request.Context()
	external, err := h.Source.Releases(ctx, cfg)
	if err != nil {
		h.Logger.Warn("gitlab release fetch failed", zap.Error(err), zap.String("integration_id", in.ID.String()))
		response.BadGateway(c, "failed to fetch releases from gitlab")
		return
	}
	result := SyncResult{Fetched: len(external)}
	for _, ext := range external {
		rel, err := h.draftFrom(in.ProjectID, ext)
		if err != nil {
			h.Logger.Warn("skip gitlab release", zap.Error(err), zap.String("tag", ext.Tag))
			result.Skipped++
			continue
		}
		created, err := h.Importer.Import(ctx, rel, "gitlab:"+ext.Tag)
		if err != nil {
			h.Logger.Error("import release failed", zap.Error(err), zap.String("tag", ext.Tag))
			response.Internal(c, "failed to import releases")
			return
		}
		if created {
			result.Imported++
		} else {
			result.Skipped++
		}
	}
	h.Logger.Info("gitlab releases synced",
		zap.String("integration_id", in.ID.String()),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	response.OK(c, result)
}

// maxTitleRunes matches the release title rule of 1..200 characters.
const maxTitleRunes = 200

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// tagSlug derives a release slug from a git tag, e.g. "v1.2.0" becomes "v1-2-0".
func tagSlug(tag string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(tag), "-"), "-")
	if len(s) > 100 {
		s = strings.TrimRight(s[:100], "-")
	}
	return s
}

func (h *Handler) draftFrom(projectID uuid.UUID, ext ExternalRelease) (*models.Release, error) {
	slug := tagSlug(ext.Tag)
	if slug == "" {
		return nil, fmt.Errorf("tag %q yields an empty slug", ext.Tag)
	}
	title := strings.TrimSpace(ext.Name)
	if title == "" {
		title = ext.Tag
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes]))
	}
	body := strings.TrimSpace(ext.Description)
	if body == "" {
		body = "Release " + ext.Tag
	}
	html, err := h.Renderer.Render(body)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &models.Release{
		ProjectID:   projectID,
		Title:       title,
		Slug:        slug,
		Status:      models.ReleaseStatusDraft,
		DisplayType: models.DisplayTypeChangelog,
		ShowOnce:    false,
		ContentMd:   body,
		ContentHTML: html,
	}, nil
}
