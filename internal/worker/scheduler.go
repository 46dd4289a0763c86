package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/releases"
	"github.com/releaselayer/backend/pkg/queue"
)

// ReleaseTransitioner moves releases through their schedule.
type ReleaseTransitioner interface {
	ArchiveExpired(ctx context.Context, now int64) ([]releases.Transition, error)
	PublishDue(ctx context.Context, now int64) ([]releases.Transition, error)
}

// NotifyQueue enqueues release notifications.
type NotifyQueue interface {
	EnqueueReleaseNotify(ctx context.Context, payload queue.ReleaseNotifyPayload) error
}

// Invalidator drops cached widget snapshots of a project.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// Scheduler publishes due releases and archives expired ones on a fixed interval.
type Scheduler struct {
	releases ReleaseTransitioner
	notify   NotifyQueue
	cache    Invalidator
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a release scheduler. cache may be nil.
func NewScheduler(rel ReleaseTransitioner, notify NotifyQueue, cache Invalidator, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{releases: rel, notify: notify, cache: cache, interval: interval, logger: logger, now: time.Now}
}

// TickResult counts the transitions of one tick.
type TickResult struct {
	Archived  int
	Published int
}

// Tick runs one pass. Expired releases are archived before due ones are published so a
// release whose whole window has passed is never announced.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.now().Unix()
	var res TickResult

	archived, err := s.releases.ArchiveExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("archive expired: %w", err)
	}
	res.Archived = len(archived)
	s.after(ctx, archived, models.EventReleaseArchived)

	published, err := s.releases.PublishDue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("publish due: %w", err)
	}
	res.Published = len(published)
	s.after(ctx, published, models.EventReleasePublished)

	if res.Archived > 0 || res.Published > 0 {
		s.logger.Info("scheduler tick", zap.Int("archived", res.Archived), zap.Int("published", res.Published))
	}
	return res, nil
}

func (s *Scheduler) after(ctx context.Context, ts []releases.Transition, event string) {
	projects := map[uuid.UUID]bool{}
	for _, t := range ts {
		projects[t.ProjectID] = true
		payload := queue.ReleaseNotifyPayload{ReleaseID: t.ReleaseID, ProjectID: t.ProjectID, Event: event}
		if err := s.notify.EnqueueReleaseNotify(ctx, payload); err != nil {
			s.logger.Error("enqueue release notification failed", zap.Error(err), zap.String("release_id", t.ReleaseID.String()))
		}
	}
	if s.cache == nil {
		return
	}
	for id := range projects {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("invalidate sdk snapshot failed", zap.Error(err), zap.String("project_id", id.String()))
		}
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("release scheduler started", zap.Duration("interval", s.interval))
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("release scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}
