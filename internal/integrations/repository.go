package integrations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// Repository handles integration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an integrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const integrationColumns = `id, project_id, type, config, is_active, created_at, updated_at`

func scanIntegration(row pgx.Row) (*models.Integration, error) {
	var in models.Integration
	var config []byte
	if err := row.Scan(&in.ID, &in.ProjectID, &in.Type, &config, &in.IsActive, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	in.Config = config
	return &in, nil
}

func collect(rows pgx.Rows) ([]models.Integration, error) {
	defer rows.Close()
	list := []models.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *in)
	}
	return list, rows.Err()
}

// Create inserts an integration.
func (r *Repository) Create(ctx context.Context, in *models.Integration) error {
	const q = `INSERT INTO integrations (project_id, type, config, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, in.ProjectID, in.Type, string(in.Config), in.IsActive).
		Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
}

// GetByID returns an integration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	q := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`
	return scanIntegration(r.pool.QueryRow(ctx, q, id))
}

// OrganizationIDOf returns the organization owning an integration.
func (r *Repository) OrganizationIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT p.organization_id FROM integrations i INNER JOIN projects p ON p.id = i.project_id WHERE i.id = $1`
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).Scan(&orgID)
	return orgID, database.NotFound(err)
}

// ListByProject returns every integration of a project.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Integration, error) {
	q := `SELECT ` + integrationColumns + ` FROM integrations WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListActiveByProject returns the active integrations of a project with one of the given types.
func (r *Repository) ListActiveByProject(ctx context.Context, projectID uuid.UUID, types ...models.IntegrationType) ([]models.Integration, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	q := `SELECT ` + integrationColumns + ` FROM integrations
		WHERE project_id = $1 AND is_active AND type = ANY($2)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, projectID, names)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Update saves config and active flag.
func (r *Repository) Update(ctx context.Context, in *models.Integration) error {
	const q = `UPDATE integrations SET config = $2, is_active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, in.ID, string(in.Config), in.IsActive).Scan(&in.UpdatedAt)
	return database.NotFound(err)
}

// Delete removes an integration.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
