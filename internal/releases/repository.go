package releases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// Repository handles release persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a releases repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Transition is a release whose status the scheduler changed.
type Transition struct {
	ReleaseID uuid.UUID
	ProjectID uuid.UUID
}

const releaseColumns = `id, project_id, title, slug, status, display_type, show_once, publish_at, unpublish_at,
	target_traits, content_md, content_html, content_ai, created_at, updated_at`

func scanRelease(row pgx.Row) (*models.Release, error) {
	var r models.Release
	var traits []byte
	err := row.Scan(&r.ID, &r.ProjectID, &r.Title, &r.Slug, &r.Status, &r.DisplayType, &r.ShowOnce,
		&r.PublishAt, &r.UnpublishAt, &traits, &r.ContentMd, &r.ContentHTML, &r.ContentAI,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	if len(traits) > 0 {
		r.TargetTraits = traits
	}
	return &r, nil
}

func collect(rows pgx.Rows) ([]models.Release, error) {
	defer rows.Close()
	list := []models.Release{}
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

func traitsArg(traits []byte) any {
	if len(traits) == 0 {
		return nil
	}
	return string(traits)
}

// Create inserts a release.
func (r *Repository) Create(ctx context.Context, rel *models.Release) error {
	const q = `INSERT INTO releases (project_id, title, slug, status, display_type, show_once, publish_at,
			unpublish_at, target_traits, content_md, content_html, content_ai)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rel.ProjectID, rel.Title, rel.Slug, rel.Status, rel.DisplayType, rel.ShowOnce,
		rel.PublishAt, rel.UnpublishAt, traitsArg(rel.TargetTraits), rel.ContentMd, rel.ContentHTML, rel.ContentAI).
		Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt)
}

// Import inserts a release mirrored from an external source. It reports false when the
// source ref or slug already exists in the project.
func (r *Repository) Import(ctx context.Context, rel *models.Release, sourceRef string) (bool, error) {
	const q = `INSERT INTO releases (project_id, title, slug, status, display_type, show_once, publish_at,
			content_md, content_html, source_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, rel.ProjectID, rel.Title, rel.Slug, rel.Status, rel.DisplayType, rel.ShowOnce,
		rel.PublishAt, rel.ContentMd, rel.ContentHTML, sourceRef).
		Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByID returns a release by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	q := `SELECT ` + releaseColumns + ` FROM releases WHERE id = $1`
	return scanRelease(r.pool.QueryRow(ctx, q, id))
}

// OrganizationIDOf returns the organization owning a release.
func (r *Repository) OrganizationIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT p.organization_id FROM releases r INNER JOIN projects p ON p.id = r.project_id WHERE r.id = $1`
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).Scan(&orgID)
	return orgID, database.NotFound(err)
}

// ListByProject returns a project's releases, newest first, optionally filtered by status.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID, status models.ReleaseStatus) ([]models.Release, error) {
	q := `SELECT ` + releaseColumns + ` FROM releases
		WHERE project_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, projectID, string(status))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListLive returns the releases that may be visible to end users: published, or scheduled
// with a publish time. Window checks happen at read time.
func (r *Repository) ListLive(ctx context.Context, projectID uuid.UUID) ([]models.Release, error) {
	q := `SELECT ` + releaseColumns + ` FROM releases
		WHERE project_id = $1
			AND (status = 'published' OR (status = 'scheduled' AND publish_at IS NOT NULL))
		ORDER BY COALESCE(publish_at, EXTRACT(EPOCH FROM created_at)::BIGINT) DESC`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Update saves every mutable field.
func (r *Repository) Update(ctx context.Context, rel *models.Release) error {
	const q = `UPDATE releases SET title = $2, slug = $3, status = $4, display_type = $5, show_once = $6,
			publish_at = $7, unpublish_at = $8, target_traits = $9, content_md = $10, content_html = $11,
			content_ai = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, rel.ID, rel.Title, rel.Slug, rel.Status, rel.DisplayType, rel.ShowOnce,
		rel.PublishAt, rel.UnpublishAt, traitsArg(rel.TargetTraits), rel.ContentMd, rel.ContentHTML, rel.ContentAI).
		Scan(&rel.UpdatedAt)
	return database.NotFound(err)
}

// Delete removes a release.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM releases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// PublishDue moves scheduled releases whose publish time has come to published.
func (r *Repository) PublishDue(ctx context.Context, now int64) ([]Transition, error) {
	const q = `UPDATE releases SET status = 'published', updated_at = NOW()
		WHERE status = 'scheduled' AND publish_at IS NOT NULL AND publish_at <= $1
			AND (unpublish_at IS NULL OR unpublish_at > $1)
		RETURNING id, project_id`
	return r.transitions(ctx, q, now)
}

// ArchiveExpired archives visible or scheduled releases whose unpublish time has passed.
func (r *Repository) ArchiveExpired(ctx context.Context, now int64) ([]Transition, error) {
	const q = `UPDATE releases SET status = 'archived', updated_at = NOW()
		WHERE status IN ('published', 'scheduled') AND unpublish_at IS NOT NULL AND unpublish_at <= $1
		RETURNING id, project_id`
	return r.transitions(ctx, q, now)
}

func (r *Repository) transitions(ctx context.Context, q string, now int64) ([]Transition, error) {
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ReleaseID, &t.ProjectID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
