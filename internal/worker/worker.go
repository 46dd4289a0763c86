package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/queue"
)

// EventStore persists SDK analytics events.
type EventStore interface {
	InsertEvents(ctx context.Context, projectID uuid.UUID, events []models.SdkTrackEvent, receivedAt time.Time) (int64, error)
}

// ReleaseNotifier delivers one release notification.
type ReleaseNotifier interface {
	Notify(ctx context.Context, payload queue.ReleaseNotifyPayload) error
}

// JobQueue is the part of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor runs queued jobs: analytics batches and release notifications.
type Processor struct {
	events   EventStore
	notifier ReleaseNotifier
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewProcessor creates a job processor.
func NewProcessor(events EventStore, notifier ReleaseNotifier, q JobQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{events: events, notifier: notifier, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeTrackEvents:
		var payload queue.TrackEventsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		n, err := p.events.InsertEvents(ctx, payload.ProjectID, payload.Events, payload.ReceivedAt)
		if err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		p.logger.Debug("stored sdk events", zap.String("project_id", payload.ProjectID.String()), zap.Int64("count", n))
		return nil
	case queue.JobTypeReleaseNotify:
		var payload queue.ReleaseNotifyPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.notifier.Notify(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
