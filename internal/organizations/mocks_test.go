package organizations_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

type mockStore struct {
	createFn        func(ctx context.Context, org *models.Organization, owner *models.OrganizationUser) error
	getByIDFn       func(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	listForUserFn   func(ctx context.Context, userID uuid.UUID) ([]models.Organization, error)
	listMembersFn   func(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationUser, error)
	countProjectsFn func(ctx context.Context, orgID uuid.UUID) (int64, error)
}

func (m *mockStore) Create(ctx context.Context, org *models.Organization, owner *models.OrganizationUser) error {
	if m.createFn != nil {
		return m.createFn(ctx, org, owner)
	}
	return nil
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []models.Organization{}, nil
}

func (m *mockStore) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationUser, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, orgID)
	}
	return []models.OrganizationUser{}, nil
}

func (m *mockStore) CountProjects(ctx context.Context, orgID uuid.UUID) (int64, error) {
	if m.countProjectsFn != nil {
		return m.countProjectsFn(ctx, orgID)
	}
	return 0, nil
}

type mockMembers struct {
	roles map[uuid.UUID]string
}

func (m *mockMembers) GetUserRole(_ context.Context, _ uuid.UUID, userID uuid.UUID) (string, error) {
	if role, ok := m.roles[userID]; ok {
		return role, nil
	}
	return "", database.ErrNotFound
}

type fakeUsage struct {
	mau, impressions, rewrites int64
}

func (f fakeUsage) MonthlyUsers(context.Context, uuid.UUID) (int64, error) { return f.mau, nil }
func (f fakeUsage) Impressions(context.Context, uuid.UUID) (int64, error)  { return f.impressions, nil }
func (f fakeUsage) AIRewrites(context.Context, uuid.UUID) (int64, error)   { return f.rewrites, nil }
