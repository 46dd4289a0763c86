package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
)

// Repository stores widget analytics events in sdk_events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var eventColumns = []string{
	"project_id", "end_user_id", "event_type", "release_id", "checklist_id", "track_event", "metadata", "occurred_at",
}

// InsertEvents bulk-inserts one track batch. Events without a timestamp are stamped receivedAt.
func (r *Repository) InsertEvents(ctx context.Context, projectID uuid.UUID, events []models.SdkTrackEvent, receivedAt time.Time) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		occurred := receivedAt
		if ev.Timestamp != nil {
			occurred = time.Unix(*ev.Timestamp, 0).UTC()
		}
		var trackEvent, metadata any
		if ev.TrackEvent != "" {
			trackEvent = ev.TrackEvent
		}
		if len(ev.Metadata) > 0 {
			metadata = string(ev.Metadata)
		}
		rows = append(rows, []any{
			projectID, ev.EndUserID, string(ev.Type), ev.ReleaseID, ev.ChecklistID, trackEvent, metadata, occurred,
		})
	}
	return r.pool.CopyFrom(ctx, pgx.Identifier{"sdk_events"}, eventColumns, pgx.CopyFromRows(rows))
}

// ReleaseStats aggregates the events of one release recorded under its own project.
func (r *Repository) ReleaseStats(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseStats, error) {
	const q = `SELECT
			COUNT(*) FILTER (WHERE event_type = 'view'),
			COUNT(*) FILTER (WHERE event_type = 'dismiss'),
			COUNT(*) FILTER (WHERE event_type = 'click'),
			COUNT(DISTINCT end_user_id)
		FROM sdk_events e
		WHERE e.release_id = $1
			AND e.project_id = (SELECT project_id FROM releases WHERE id = $1)`
	stats := models.ReleaseStats{ReleaseID: releaseID}
	err := r.pool.QueryRow(ctx, q, releaseID).Scan(&stats.Views, &stats.Dismissals, &stats.Clicks, &stats.UniqueUsers)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Summary is a project's widget activity since a point in time.
type Summary struct {
	Since                time.Time `json:"since"`
	Views                int64     `json:"views"`
	Dismissals           int64     `json:"dismissals"`
	Clicks               int64     `json:"clicks"`
	ChecklistCompletions int64     `json:"checklistCompletions"`
	UniqueUsers          int64     `json:"uniqueUsers"`
}

// ProjectSummary aggregates a project's events since the given time.
func (r *Repository) ProjectSummary(ctx context.Context, projectID uuid.UUID, since time.Time) (*Summary, error) {
	const q = `SELECT
			COUNT(*) FILTER (WHERE event_type = 'view'),
			COUNT(*) FILTER (WHERE event_type = 'dismiss'),
			COUNT(*) FILTER (WHERE event_type = 'click'),
			COUNT(*) FILTER (WHERE event_type = 'checklist_complete'),
			COUNT(DISTINCT end_user_id)
		FROM sdk_events WHERE project_id = $1 AND occurred_at >= $2`
	s := Summary{Since: since}
	err := r.pool.QueryRow(ctx, q, projectID, since).
		Scan(&s.Views, &s.Dismissals, &s.Clicks, &s.ChecklistCompletions, &s.UniqueUsers)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CompletedTrackEvents returns the checklist track events an end user has completed in a project.
func (r *Repository) CompletedTrackEvents(ctx context.Context, projectID uuid.UUID, endUserID string) (map[string]bool, error) {
	const q = `SELECT DISTINCT track_event FROM sdk_events
		WHERE project_id = $1 AND end_user_id = $2 AND event_type = 'checklist_complete' AND track_event IS NOT NULL`
	return r.stringSet(ctx, q, projectID, endUserID)
}

// SeenReleases returns the ids of releases the end user already viewed or dismissed.
func (r *Repository) SeenReleases(ctx context.Context, projectID uuid.UUID, endUserID string) (map[uuid.UUID]bool, error) {
	const q = `SELECT DISTINCT release_id FROM sdk_events
		WHERE project_id = $1 AND end_user_id = $2 AND event_type IN ('view', 'dismiss') AND release_id IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, projectID, endUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

func (r *Repository) stringSet(ctx context.Context, q string, args ...any) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := map[string]bool{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		set[s] = true
	}
	return set, rows.Err()
}
