package projects_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/storage"
)

type mockStore struct {
	projects map[uuid.UUID]*models.Project
	count    int64

	createFn    func(ctx context.Context, p *models.Project) error
	setDomainFn func(ctx context.Context, p *models.Project) error
	deleted     []uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{projects: map[uuid.UUID]*models.Project{}}
}

func (m *mockStore) Create(ctx context.Context, p *models.Project) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = uuid.New()
	p.SdkKey = "rl_pk_test"
	p.DomainStatus = models.DomainStatusNone
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]models.Project, error) {
	list := []models.Project{}
	for _, p := range m.projects {
		if p.OrganizationID == orgID {
			list = append(list, *p)
		}
	}
	return list, nil
}

func (m *mockStore) CountByOrganization(context.Context, uuid.UUID) (int64, error) {
	return m.count, nil
}

func (m *mockStore) Update(_ context.Context, p *models.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) SetDomain(ctx context.Context, p *models.Project) error {
	if m.setDomainFn != nil {
		return m.setDomainFn(ctx, p)
	}
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) RotateSdkKey(_ context.Context, p *models.Project) error {
	p.SdkKey = "rl_pk_rotated"
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.projects[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.projects, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type fixedPlan models.Plan

func (f fixedPlan) Plan(context.Context, uuid.UUID) (models.Plan, error) {
	return models.Plan(f), nil
}

type fakeAssets struct {
	purged []uuid.UUID
}

func (f *fakeAssets) PresignAssetUpload(_ context.Context, projectID uuid.UUID, filename, contentType string) (*storage.Upload, error) {
	key := storage.AssetKey(projectID, filename, contentType)
	return &storage.Upload{UploadURL: "https://bucket.example.com/" + key + "?sig=1", PublicURL: "https://cdn.example.com/" + key, Key: key}, nil
}

func (f *fakeAssets) DeleteProjectAssets(_ context.Context, projectID uuid.UUID) (int, error) {
	f.purged = append(f.purged, projectID)
	return 1, nil
}

type fakeKeyCache struct {
	forgotten   []string
	invalidated []uuid.UUID
}

func (f *fakeKeyCache) ForgetKey(_ context.Context, sdkKey string) error {
	f.forgotten = append(f.forgotten, sdkKey)
	return nil
}

func (f *fakeKeyCache) Invalidate(_ context.Context, projectID uuid.UUID) error {
	f.invalidated = append(f.invalidated, projectID)
	return nil
}
