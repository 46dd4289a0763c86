package checklists

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// Repository handles checklist and checklist item persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a checklists repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const checklistColumns = `id, project_id, title, description, is_active, target_traits, created_at, updated_at`

func scanChecklist(row pgx.Row) (*models.Checklist, error) {
	var cl models.Checklist
	var traits []byte
	err := row.Scan(&cl.ID, &cl.ProjectID, &cl.Title, &cl.Description, &cl.IsActive, &traits, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	if len(traits) > 0 {
		cl.TargetTraits = traits
	}
	cl.Items = []models.ChecklistItem{}
	return &cl, nil
}

func traitsArg(traits []byte) any {
	if len(traits) == 0 {
		return nil
	}
	return string(traits)
}

// Create inserts a checklist and its items in one transaction. Items are numbered in slice order.
func (r *Repository) Create(ctx context.Context, cl *models.Checklist) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO checklists (project_id, title, description, is_active, target_traits)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, q, cl.ProjectID, cl.Title, cl.Description, cl.IsActive, traitsArg(cl.TargetTraits)).
			Scan(&cl.ID, &cl.CreatedAt, &cl.UpdatedAt); err != nil {
			return fmt.Errorf("insert checklist: %w", err)
		}
		return insertItems(ctx, tx, cl)
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, cl *models.Checklist) error {
	if len(cl.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const q = `INSERT INTO checklist_items (checklist_id, title, description, action_url, track_event, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	for i := range cl.Items {
		item := &cl.Items[i]
		item.ChecklistID = cl.ID
		item.SortOrder = i
		batch.Queue(q, cl.ID, item.Title, item.Description, item.ActionURL, item.TrackEvent, item.SortOrder).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&item.ID)
			})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert checklist items: %w", err)
	}
	return nil
}

// GetByID returns a checklist with its items.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Checklist, error) {
	q := `SELECT ` + checklistColumns + ` FROM checklists WHERE id = $1`
	cl, err := scanChecklist(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*models.Checklist{cl}); err != nil {
		return nil, err
	}
	return cl, nil
}

// OrganizationIDOf returns the organization owning a checklist.
func (r *Repository) OrganizationIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT p.organization_id FROM checklists c INNER JOIN projects p ON p.id = c.project_id WHERE c.id = $1`
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).Scan(&orgID)
	return orgID, database.NotFound(err)
}

// ListByProject returns a project's checklists with items, oldest first.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Checklist, error) {
	return r.list(ctx, `SELECT `+checklistColumns+` FROM checklists WHERE project_id = $1 ORDER BY created_at`, projectID)
}

// ListActive returns a project's active checklists with items, oldest first.
func (r *Repository) ListActive(ctx context.Context, projectID uuid.UUID) ([]models.Checklist, error) {
	return r.list(ctx, `SELECT `+checklistColumns+` FROM checklists WHERE project_id = $1 AND is_active ORDER BY created_at`, projectID)
}

func (r *Repository) list(ctx context.Context, q string, projectID uuid.UUID) ([]models.Checklist, error) {
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	var ptrs []*models.Checklist
	for rows.Next() {
		cl, err := scanChecklist(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, cl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, ptrs); err != nil {
		return nil, err
	}
	list := make([]models.Checklist, 0, len(ptrs))
	for _, cl := range ptrs {
		list = append(list, *cl)
	}
	return list, nil
}

func (r *Repository) attachItems(ctx context.Context, lists []*models.Checklist) error {
	if len(lists) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(lists))
	byID := make(map[uuid.UUID]*models.Checklist, len(lists))
	for _, cl := range lists {
		ids = append(ids, cl.ID)
		byID[cl.ID] = cl
	}
	const q = `SELECT id, checklist_id, title, description, action_url, track_event, sort_order
		FROM checklist_items WHERE checklist_id = ANY($1)
		ORDER BY checklist_id, sort_order`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.ChecklistItem
		if err := rows.Scan(&it.ID, &it.ChecklistID, &it.Title, &it.Description, &it.ActionURL, &it.TrackEvent, &it.SortOrder); err != nil {
			return err
		}
		if cl := byID[it.ChecklistID]; cl != nil {
			cl.Items = append(cl.Items, it)
		}
	}
	return rows.Err()
}

// Update saves checklist fields. When replaceItems is set the item list is replaced as a whole.
func (r *Repository) Update(ctx context.Context, cl *models.Checklist, replaceItems bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `UPDATE checklists SET title = $2, description = $3, is_active = $4, target_traits = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`
		if err := tx.QueryRow(ctx, q, cl.ID, cl.Title, cl.Description, cl.IsActive, traitsArg(cl.TargetTraits)).
			Scan(&cl.UpdatedAt); err != nil {
			return database.NotFound(err)
		}
		if !replaceItems {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM checklist_items WHERE checklist_id = $1`, cl.ID); err != nil {
			return fmt.Errorf("clear checklist items: %w", err)
		}
		return insertItems(ctx, tx, cl)
	})
}

// Delete removes a checklist and its items.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM checklists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
