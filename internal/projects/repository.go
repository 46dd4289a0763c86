package projects

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// SdkKeyPrefix marks public project keys.
const SdkKeyPrefix = "rl_pk_"

// NewSdkKey returns a fresh public key: rl_pk_ followed by 32 hex characters.
func NewSdkKey() string {
	return SdkKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Repository handles project persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a projects repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, organization_id, name, slug, sdk_key, custom_domain, domain_status, created_at, updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Slug, &p.SdkKey,
		&p.CustomDomain, &p.DomainStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &p, nil
}

// Create inserts a project with a new SDK key.
func (r *Repository) Create(ctx context.Context, p *models.Project) error {
	p.SdkKey = NewSdkKey()
	p.DomainStatus = models.DomainStatusNone
	const q = `INSERT INTO projects (organization_id, name, slug, sdk_key, domain_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.OrganizationID, p.Name, p.Slug, p.SdkKey, p.DomainStatus).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a project by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.pool.QueryRow(ctx, q, id))
}

// GetBySdkKey returns the project addressed by a public SDK key.
func (r *Repository) GetBySdkKey(ctx context.Context, key string) (*models.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE sdk_key = $1`
	return scanProject(r.pool.QueryRow(ctx, q, key))
}

// OrganizationIDOf returns the organization owning a project.
func (r *Repository) OrganizationIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT organization_id FROM projects WHERE id = $1`, id).Scan(&orgID)
	return orgID, database.NotFound(err)
}

// ListByOrganization returns an organization's projects by name.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE organization_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// CountByOrganization returns how many projects the organization owns.
func (r *Repository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

// Update saves name and slug.
func (r *Repository) Update(ctx context.Context, p *models.Project) error {
	const q = `UPDATE projects SET name = $2, slug = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return database.NotFound(r.pool.QueryRow(ctx, q, p.ID, p.Name, p.Slug).Scan(&p.UpdatedAt))
}

// SetDomain stores the custom domain and its verification status. A nil domain clears it.
func (r *Repository) SetDomain(ctx context.Context, p *models.Project) error {
	const q = `UPDATE projects SET custom_domain = $2, domain_status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return database.NotFound(r.pool.QueryRow(ctx, q, p.ID, p.CustomDomain, p.DomainStatus).Scan(&p.UpdatedAt))
}

// RotateSdkKey replaces the project's SDK key; the old key stops working immediately.
func (r *Repository) RotateSdkKey(ctx context.Context, p *models.Project) error {
	key := NewSdkKey()
	const q = `UPDATE projects SET sdk_key = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, q, p.ID, key).Scan(&p.UpdatedAt); err != nil {
		return database.NotFound(err)
	}
	p.SdkKey = key
	return nil
}

// Delete removes a project and, through cascades, everything it owns.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
