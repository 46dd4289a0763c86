package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

// ErrUnknownKey is returned when no project owns an SDK key.
var ErrUnknownKey = errors.New("unknown sdk key")

// Snapshot is everything the widget endpoints need about one project. It holds no per-user
// state so it can be cached and shared between end users.
type Snapshot struct {
	ProjectID      uuid.UUID          `json:"projectId"`
	SdkKey         string             `json:"sdkKey"`
	OrganizationID uuid.UUID          `json:"organizationId"`
	Plan           models.Plan        `json:"plan"`
	Releases       []models.Release   `json:"releases"`
	Checklists     []models.Checklist `json:"checklists"`
	Config         models.SdkConfig   `json:"config"`
}

// ProjectFinder resolves projects.
type ProjectFinder interface {
	GetBySdkKey(ctx context.Context, key string) (*models.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// ReleaseLister lists releases that may be visible.
type ReleaseLister interface {
	ListLive(ctx context.Context, projectID uuid.UUID) ([]models.Release, error)
}

// ChecklistLister lists active checklists with their items.
type ChecklistLister interface {
	ListActive(ctx context.Context, projectID uuid.UUID) ([]models.Checklist, error)
}

// ConfigReader returns a project's widget presentation settings.
type ConfigReader interface {
	Get(ctx context.Context, projectID uuid.UUID) (*models.SdkConfig, error)
}

// PlanLookup returns an organization's plan.
type PlanLookup interface {
	Plan(ctx context.Context, orgID uuid.UUID) (models.Plan, error)
}

// Cache stores serialized snapshots per project and SDK key lookups.
type Cache interface {
	Get(ctx context.Context, projectID uuid.UUID) ([]byte, bool, error)
	Set(ctx context.Context, projectID uuid.UUID, data []byte) error
	ProjectForKey(ctx context.Context, sdkKey string) (uuid.UUID, bool, error)
	RememberKey(ctx context.Context, sdkKey string, projectID uuid.UUID) error
	ForgetKey(ctx context.Context, sdkKey string) error
}

// Loader builds snapshots from the database, going through Cache when one is set.
type Loader struct {
	Projects   ProjectFinder
	Releases   ReleaseLister
	Checklists ChecklistLister
	Configs    ConfigReader
	Plans      PlanLookup
	Cache      Cache
	Logger     *zap.Logger
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// Load returns the snapshot of the project owning sdkKey.
func (l *Loader) Load(ctx context.Context, sdkKey string) (*Snapshot, error) {
	if l.Cache == nil {
		p, err := l.Projects.GetBySdkKey(ctx, sdkKey)
		if err != nil {
			return nil, keyError(err)
		}
		return l.build(ctx, p)
	}

	projectID, known, err := l.Cache.ProjectForKey(ctx, sdkKey)
	if err != nil {
		l.logger().Warn("sdk key cache read failed", zap.Error(err))
	}
	if known {
		// A snapshot built for another key means the key was rotated.
		if snap, ok := l.cached(ctx, projectID); ok && snap.SdkKey == sdkKey {
			return snap, nil
		}
	}

	var p *models.Project
	if known {
		p, err = l.Projects.GetByID(ctx, projectID)
		if err == nil && p.SdkKey != sdkKey {
			err = database.ErrNotFound
		}
		if errors.Is(err, database.ErrNotFound) {
			_ = l.Cache.ForgetKey(ctx, sdkKey)
			p, err = l.Projects.GetBySdkKey(ctx, sdkKey)
		}
	} else {
		p, err = l.Projects.GetBySdkKey(ctx, sdkKey)
	}
	if err != nil {
		return nil, keyError(err)
	}
	if err := l.Cache.RememberKey(ctx, sdkKey, p.ID); err != nil {
		l.logger().Warn("sdk key cache write failed", zap.Error(err))
	}

	snap, err := l.build(ctx, p)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(snap); err == nil {
		if err := l.Cache.Set(ctx, p.ID, data); err != nil {
			l.logger().Warn("sdk snapshot cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

func (l *Loader) cached(ctx context.Context, projectID uuid.UUID) (*Snapshot, bool) {
	data, ok, err := l.Cache.Get(ctx, projectID)
	if err != nil {
		l.logger().Warn("sdk snapshot cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		l.logger().Warn("discarding unreadable sdk snapshot", zap.Error(err), zap.String("project_id", projectID.String()))
		return nil, false
	}
	return &snap, true
}

func keyError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrUnknownKey
	}
	return fmt.Errorf("resolve sdk key: %w", err)
}

func (l *Loader) build(ctx context.Context, p *models.Project) (*Snapshot, error) {
	plan, err := l.Plans.Plan(ctx, p.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	releases, err := l.Releases.ListLive(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	checklists, err := l.Checklists.ListActive(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	cfg, err := l.Configs.Get(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load sdk config: %w", err)
	}
	return &Snapshot{
		ProjectID:      p.ID,
		SdkKey:         p.SdkKey,
		OrganizationID: p.OrganizationID,
		Plan:           plan,
		Releases:       releases,
		Checklists:     checklists,
		Config:         *cfg,
	}, nil
}
