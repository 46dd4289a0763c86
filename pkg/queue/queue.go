package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
)

const (
	// QueueEvents is the Redis list key for SDK analytics batches.
	QueueEvents = "worker:events"
	// QueueNotifications is the Redis list key for release notification jobs.
	QueueNotifications = "worker:notifications"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 5 * time.Second
	// dequeueTimeout bounds BLPOP so the worker notices shutdown.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeTrackEvents   JobType = "track_events"
	JobTypeReleaseNotify JobType = "release_notify"
)

// TrackEventsPayload carries one validated SDK track batch.
type TrackEventsPayload struct {
	ProjectID  uuid.UUID              `json:"project_id"`
	Events     []models.SdkTrackEvent `json:"events"`
	ReceivedAt time.Time              `json:"received_at"`
}

// ReleaseNotifyPayload asks the worker to deliver a release event to the project's integrations.
type ReleaseNotifyPayload struct {
	ReleaseID uuid.UUID `json:"release_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Event     string    `json:"event"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func queueFor(t JobType) string {
	if t == JobTypeReleaseNotify {
		return QueueNotifications
	}
	return QueueEvents
}

// EnqueueTrackEvents enqueues an analytics batch.
func (q *Queue) EnqueueTrackEvents(ctx context.Context, payload TrackEventsPayload) error {
	return q.enqueue(ctx, JobTypeTrackEvents, payload)
}

// EnqueueReleaseNotify enqueues a release notification.
func (q *Queue) EnqueueReleaseNotify(ctx context.Context, payload ReleaseNotifyPayload) error {
	return q.enqueue(ctx, JobTypeReleaseNotify, payload)
}

func (q *Queue) enqueue(ctx context.Context, t JobType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queueFor(t), raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(t)))
	return nil
}

// Dequeue waits for the next job on any work queue. It returns a nil job when the wait
// timed out or the entry was unreadable.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, dequeueTimeout, QueueNotifications, QueueEvents).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("queue", result[0]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, queueFor(job.Type), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
