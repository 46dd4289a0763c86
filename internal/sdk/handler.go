package sdk

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/queue"
	"github.com/releaselayer/backend/pkg/response"
)

// HeaderSDKKey carries the project's public key on widget requests.
const HeaderSDKKey = "X-SDK-Key"

// SnapshotSource resolves an SDK key to its project snapshot.
type SnapshotSource interface {
	Load(ctx context.Context, sdkKey string) (*Snapshot, error)
}

// UsageCounter records monthly end users and impressions per organization.
type UsageCounter interface {
	AddMonthlyUser(ctx context.Context, orgID uuid.UUID, endUserID string) (int64, error)
	AddImpressions(ctx context.Context, orgID uuid.UUID, n int64) (int64, error)
}

// Progress reads what an end user already did in a project.
type Progress interface {
	SeenReleases(ctx context.Context, projectID uuid.UUID, endUserID string) (map[uuid.UUID]bool, error)
	CompletedTrackEvents(ctx context.Context, projectID uuid.UUID, endUserID string) (map[string]bool, error)
}

// EventQueue hands track batches to the worker.
type EventQueue interface {
	EnqueueTrackEvents(ctx context.Context, payload queue.TrackEventsPayload) error
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Snapshots SnapshotSource
	Usage     UsageCounter
	Progress  Progress
	Events    EventQueue
	Logger    *zap.Logger
}

// Handler serves the public widget endpoints.
type Handler struct {
	Deps
	now func() time.Time
}

// NewHandler creates an SDK handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{Deps: deps, now: time.Now}
}

// TrackResult is returned by /sdk/track.
type TrackResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped,omitempty"`
}

func (h *Handler) snapshot(c *gin.Context) (*Snapshot, bool) {
	key := c.GetHeader(HeaderSDKKey)
	if key == "" {
		response.Unauthorized(c, "missing "+HeaderSDKKey+" header")
		return nil, false
	}
	snap, err := h.Snapshots.Load(c.Request.Context(), key)
	if errors.Is(err, ErrUnknownKey) {
		response.Unauthorized(c, "invalid sdk key")
		return nil, false
	}
	if err != nil {
		h.Logger.Error("load sdk snapshot failed", zap.Error(err))
		response.Internal(c, "failed to load project")
		return nil, false
	}
	return snap, true
}

// Init handles POST /sdk/init.
func (h *Handler) Init(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	in, err := validation.ParseSdkInit(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	limits := plans.For(snap.Plan)

	mau, err := h.Usage.AddMonthlyUser(ctx, snap.OrganizationID, in.EndUserID)
	if err != nil {
		h.Logger.Warn("record monthly user failed", zap.Error(err), zap.String("organization_id", snap.OrganizationID.String()))
	} else if mau > limits.MaxMAU {
		response.TooManyRequests(c, "monthly active user limit reached for this plan")
		return
	}

	now := h.now().Unix()
	user := EndUser{Traits: in.Traits}
	if NeedsSeen(snap, now) {
		user.Seen, err = h.Progress.SeenReleases(ctx, snap.ProjectID, in.EndUserID)
		if err != nil {
			h.Logger.Warn("load seen releases failed", zap.Error(err))
		}
	}
	if len(snap.Checklists) > 0 {
		user.Completed, err = h.Progress.CompletedTrackEvents(ctx, snap.ProjectID, in.EndUserID)
		if err != nil {
			h.Logger.Warn("load checklist progress failed", zap.Error(err))
		}
	}
	response.OK(c, Personalize(snap, user, now))
}

// Track handles POST /sdk/track. View events count as impressions.
func (h *Handler) Track(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	events, err := validation.ParseTrackEvents(raw)
	if err != nil {
		response.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()

	kept := ownEvents(snap, events)
	dropped := len(events) - len(kept)
	if dropped > 0 {
		h.Logger.Debug("dropped events for foreign releases or checklists",
			zap.String("project_id", snap.ProjectID.String()), zap.Int("dropped", dropped))
	}
	if len(kept) == 0 {
		response.Accepted(c, TrackResult{Dropped: dropped})
		return
	}
	events = kept

	var views int64
	for _, ev := range events {
		if ev.Type == models.SdkEventView {
			views++
		}
	}
	if views > 0 {
		total, err := h.Usage.AddImpressions(ctx, snap.OrganizationID, views)
		if err != nil {
			h.Logger.Warn("count impressions failed", zap.Error(err), zap.String("organization_id", snap.OrganizationID.String()))
		} else if total > plans.For(snap.Plan).MaxImpressions {
			response.TooManyRequests(c, "monthly impression limit reached for this plan")
			return
		}
	}

	payload := queue.TrackEventsPayload{
		ProjectID:  snap.ProjectID,
		Events:     events,
		ReceivedAt: h.now().UTC(),
	}
	if err := h.Events.EnqueueTrackEvents(ctx, payload); err != nil {
		h.Logger.Error("enqueue track events failed", zap.Error(err), zap.String("project_id", snap.ProjectID.String()))
		response.ServiceUnavailable(c, "failed to accept events")
		return
	}
	response.Accepted(c, TrackResult{Accepted: len(events), Dropped: dropped})
}

// ownEvents keeps the events whose release and checklist references belong to the snapshot's
// project. Events without references are kept.
func ownEvents(snap *Snapshot, events []models.SdkTrackEvent) []models.SdkTrackEvent {
	releases := make(map[uuid.UUID]bool, len(snap.Releases))
	for _, r := range snap.Releases {
		releases[r.ID] = true
	}
	checklists := make(map[uuid.UUID]bool, len(snap.Checklists))
	for _, cl := range snap.Checklists {
		checklists[cl.ID] = true
	}
	kept := make([]models.SdkTrackEvent, 0, len(events))
	for _, ev := range events {
		if ev.ReleaseID != nil && !releases[*ev.ReleaseID] {
			continue
		}
		if ev.ChecklistID != nil && !checklists[*ev.ChecklistID] {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}
