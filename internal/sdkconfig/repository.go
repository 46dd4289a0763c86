package sdkconfig

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releaselayer/backend/internal/models"
)

// Repository handles widget presentation settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an sdk config repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the project's config, or the defaults when none was saved.
func (r *Repository) Get(ctx context.Context, projectID uuid.UUID) (*models.SdkConfig, error) {
	const q = `SELECT project_id, theme, position, z_index, custom_css, updated_at
		FROM sdk_configs WHERE project_id = $1`
	var cfg models.SdkConfig
	var theme []byte
	err := r.pool.QueryRow(ctx, q, projectID).
		Scan(&cfg.ProjectID, &theme, &cfg.Position, &cfg.ZIndex, &cfg.CustomCSS, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		def := models.DefaultSdkConfig(projectID)
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Theme = theme
	return &cfg, nil
}

// Upsert saves the whole config.
func (r *Repository) Upsert(ctx context.Context, cfg *models.SdkConfig) error {
	const q = `INSERT INTO sdk_configs (project_id, theme, position, z_index, custom_css)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO UPDATE SET theme = EXCLUDED.theme, position = EXCLUDED.position,
			z_index = EXCLUDED.z_index, custom_css = EXCLUDED.custom_css, updated_at = NOW()
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, cfg.ProjectID, string(cfg.Theme), cfg.Position, cfg.ZIndex, cfg.CustomCSS).
		Scan(&cfg.UpdatedAt)
}
