package organizations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// Repository handles organization and organization_user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, slug, plan, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Plan,
		&org.StripeCustomerID, &org.StripeSubscriptionID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &org, nil
}

// Create inserts an organization on the free plan and its owner membership in one transaction.
func (r *Repository) Create(ctx context.Context, org *models.Organization, owner *models.OrganizationUser) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO organizations (name, slug, plan)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`
		if org.Plan == "" {
			org.Plan = models.PlanFree
		}
		if err := tx.QueryRow(ctx, q, org.Name, org.Slug, org.Plan).
			Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
		owner.OrganizationID = org.ID
		owner.Role = models.OrgRoleOwner
		const m = `INSERT INTO organization_users (organization_id, user_id, email, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`
		if err := tx.QueryRow(ctx, m, owner.OrganizationID, owner.UserID, owner.Email, owner.Role).
			Scan(&owner.ID, &owner.CreatedAt); err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		return nil
	})
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(r.pool.QueryRow(ctx, q, id))
}

// GetUserRole returns the user's role in the organization, or database.ErrNotFound if not a member.
func (r *Repository) GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	const q = `SELECT role FROM organization_users WHERE organization_id = $1 AND user_id = $2`
	var role string
	if err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&role); err != nil {
		return "", database.NotFound(err)
	}
	return role, nil
}

// ListForUser returns organizations the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.plan, o.stripe_customer_id, o.stripe_subscription_id, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_users ou ON ou.organization_id = o.id
		WHERE ou.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *org)
	}
	return list, rows.Err()
}

// ListMembers returns the members of an organization, oldest first.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationUser, error) {
	const q = `SELECT id, organization_id, user_id, email, role, created_at
		FROM organization_users
		WHERE organization_id = $1
		ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.OrganizationUser{}
	for rows.Next() {
		var m models.OrganizationUser
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CountProjects returns how many projects the organization owns.
func (r *Repository) CountProjects(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

// Plan returns the organization's current plan.
func (r *Repository) Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error) {
	var plan models.Plan
	err := r.pool.QueryRow(ctx, `SELECT plan FROM organizations WHERE id = $1`, orgID).Scan(&plan)
	return plan, database.NotFound(err)
}
