package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/organization"
)

var organizationComparators = comparators[organization.Organization]{
	"name":       func(a, b organization.Organization) int { return strings.Compare(a.Name, b.Name) },
	"created_at": func(a, b organization.Organization) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

type organizationRepository struct {
	db *DB
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *DB) organization.Repository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) CreateOrganization(_ context.Context, org organization.Organization, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	org.ID = uuid.New().String()
	repo.db.orgs.insert(org.ID, org)
	return org, nil
}

func (repo *organizationRepository) GetOrganization(_ context.Context, id string, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if org, ok := repo.db.orgs.get(id); ok {
		return org, nil
	}
	return organization.Organization{}, organization.ErrNotFound
}

func (repo *organizationRepository) QueryOrganizations(_ context.Context, filter *organization.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]organization.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	orgs := repo.db.orgs.all()
	if filter != nil {
		search := strings.ToLower(filter.Search)
		orgs = filterRows(orgs, func(o organization.Organization) bool {
			if search != "" && !strings.Contains(strings.ToLower(o.Name), search) {
				return false
			}
			return filter.HasHead == nil || o.HasHead() == *filter.HasHead
		})
	}
	sortRows(orgs, ordering, organizationComparators)
	return orgs, nil
}

func (repo *organizationRepository) UpdateOrganization(_ context.Context, org organization.Organization, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.orgs.set(org.ID, org) {
		return organization.Organization{}, organization.ErrNotFound
	}
	return org, nil
}

func (repo *organizationRepository) DeleteOrganization(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.orgs.delete(id) {
		return organization.ErrNotFound
	}
	return nil
}
