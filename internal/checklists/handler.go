package checklists

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/response"
)

// Store is the checklist persistence the handler needs.
type Store interface {
	Create(ctx context.Context, cl *models.Checklist) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Checklist, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Checklist, error)
	Update(ctx context.Context, cl *models.Checklist, replaceItems bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Invalidator drops cached widget snapshots of a project.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// Handler handles checklist HTTP endpoints.
type Handler struct {
	store  Store
	cache  Invalidator
	logger *zap.Logger
}

// NewHandler creates a checklists handler.
func NewHandler(store Store, cache Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, cache: cache, logger: logger}
}

func toItems(in []validation.ChecklistItemInput) []models.ChecklistItem {
	items := make([]models.ChecklistItem, 0, len(in))
	for i, it := range in {
		items = append(items, models.ChecklistItem{
			Title:       it.Title,
			Description: it.Description,
			ActionURL:   it.ActionURL,
			TrackEvent:  it.TrackEvent,
			SortOrder:   i,
		})
	}
	return items
}

func (h *Handler) invalidate(ctx context.Context, projectID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, projectID); err != nil {
		h.logger.Warn("invalidate sdk snapshot failed", zap.Error(err), zap.String("project_id", projectID.String()))
	}
}

func (h *Handler) load(c *gin.Context) (*models.Checklist, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid checklist id")
		return nil, false
	}
	cl, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "checklist not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load checklist failed", zap.Error(err))
		response.Internal(c, "failed to load checklist")
		return nil, false
	}
	return cl, true
}

// List handles GET /projects/:id/checklists.
func (h *Handler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	list, err := h.store.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		h.logger.Error("list checklists failed", zap.Error(err))
		response.Internal(c, "failed to load checklists")
		return
	}
	response.OK(c, list)
}

// Create handles POST /projects/:id/checklists.
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
	in, err := validation.ParseCreateChecklist(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	cl := &models.Checklist{
		ProjectID:    projectID,
		Title:        in.Title,
		Description:  in.Description,
		IsActive:     *in.IsActive,
		TargetTraits: in.TargetTraits,
		Items:        toItems(in.Items),
	}
	ctx := c.Request.Context()
	if err := h.store.Create(ctx, cl); err != nil {
		h.logger.Error("create checklist failed", zap.Error(err))
		response.Internal(c, "failed to create checklist")
		return
	}
	h.invalidate(ctx, projectID)
	response.Created(c, cl)
}

// Get handles GET /checklists/:id.
func (h *Handler) Get(c *gin.Context) {
	cl, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, cl)
}

// Update handles PUT /checklists/:id. A present items list replaces the stored items in order.
func (h *Handler) Update(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseUpdateChecklist(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	cl, ok := h.load(c)
	if !ok {
		return
	}
	if in.Title != nil {
		cl.Title = *in.Title
	}
	if in.Description != nil {
		cl.Description = *in.Description
	}
	if in.IsActive != nil {
		cl.IsActive = *in.IsActive
	}
	if in.TargetTraits != nil {
		cl.TargetTraits = in.TargetTraits
	}
	replace := in.Items != nil
	if replace {
		cl.Items = toItems(in.Items)
	}
	ctx := c.Request.Context()
	if err := h.store.Update(ctx, cl, replace); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "checklist not found")
			return
		}
		h.logger.Error("update checklist failed", zap.Error(err))
		response.Internal(c, "failed to update checklist")
		return
	}
	h.invalidate(ctx, cl.ProjectID)
	response.OK(c, cl)
}

// Delete handles DELETE /checklists/:id.
func (h *Handler) Delete(c *gin.Context) {
	cl, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, cl.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "checklist not found")
			return
		}
		h.logger.Error("delete checklist failed", zap.Error(err))
		response.Internal(c, "failed to delete checklist")
		return
	}
	h.invalidate(ctx, cl.ProjectID)
	response.NoContent(c)
}
