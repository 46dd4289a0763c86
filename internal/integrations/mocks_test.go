package integrations_test

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/integrations"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

type memStore struct {
	items map[uuid.UUID]*models.Integration
}

func newMemStore() *memStore {
	return &memStore{items: map[uuid.UUID]*models.Integration{}}
}

func (m *memStore) Create(_ context.Context, in *models.Integration) error {
	in.ID = uuid.New()
	cp := *in
	m.items[in.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Integration, error) {
	in, ok := m.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *memStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]models.Integration, error) {
	list := []models.Integration{}
	for _, in := range m.items {
		if in.ProjectID == projectID {
			list = append(list, *in)
		}
	}
	return list, nil
}

func (m *memStore) Update(_ context.Context, in *models.Integration) error {
	if _, ok := m.items[in.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *in
	m.items[in.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type fixedPlan models.Plan

func (p fixedPlan) Plan(context.Context, uuid.UUID) (models.Plan, error) {
	return models.Plan(p), nil
}

type fakeSource struct {
	releases []integrations.ExternalRelease
	err      error
	got      models.GitLabConfig
}

func (f *fakeSource) Releases(_ context.Context, cfg models.GitLabConfig) ([]integrations.ExternalRelease, error) {
	f.got = cfg
	return f.releases, f.err
}

var errUpstream = errors.New("upstream down")

type memImporter struct {
	refs     map[string]bool
	imported []*models.Release
}

func (m *memImporter) Import(_ context.Context, rel *models.Release, sourceRef string) (bool, error) {
	if m.refs[sourceRef] {
		return false, nil
	}
	m.refs[sourceRef] = true
	rel.ID = uuid.New()
	m.imported = append(m.imported, rel)
	return true, nil
}

type passthroughRenderer struct{}

func (passthroughRenderer) Render(md string) (string, error) {
	return "<p>" + md + "</p>", nil
}
