package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
)

var aspectComparators = comparators[aspect.Aspect]{
	"aspect_name":    func(a, b aspect.Aspect) int { return strings.Compare(a.Name, b.Name) },
	"category":       func(a, b aspect.Aspect) int { return strings.Compare(a.Category, b.Category) },
	"category_order": func(a, b aspect.Aspect) int { return a.CategoryOrder - b.CategoryOrder },
	"weight":         func(a, b aspect.Aspect) int { return a.Weight.Cmp(b.Weight) },
	"display_order":  func(a, b aspect.Aspect) int { return a.DisplayOrder - b.DisplayOrder },
	"is_active":      func(a, b aspect.Aspect) int { return compareBool(a.IsActive, b.IsActive) },
	"created_at":     func(a, b aspect.Aspect) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

type aspectRepository struct {
	db *DB
}

var _ aspect.Repository = (*aspectRepository)(nil) // interface compliance check

func NewAspectRepository(db *DB) aspect.Repository {
	return &aspectRepository{db: db}
}

func (repo *aspectRepository) CreateAspect(_ context.Context, a aspect.Aspect, _ ...core.DBExecutor) (aspect.Aspect, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = uuid.New().String()
	repo.db.aspects.insert(a.ID, a)
	return a, nil
}

func (repo *aspectRepository) GetAspect(_ context.Context, id string, _ ...core.DBExecutor) (aspect.Aspect, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.aspects.get(id); ok {
		return a, nil
	}
	return aspect.Aspect{}, aspect.ErrNotFound
}

func (repo *aspectRepository) QueryAspects(_ context.Context, filter *aspect.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]aspect.Aspect, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	aspects := repo.db.aspects.all()
	if filter != nil && filter.WithDeleted {
		aspects = repo.db.aspects.unscoped()
	}
	if filter != nil {
		aspects = filterRows(aspects, func(a aspect.Aspect) bool {
			if filter.Category != "" && a.Category != filter.Category {
				return false
			}
			if filter.IsActive != nil && a.IsActive != *filter.IsActive {
				return false
			}
			return filter.IDs == nil || contains(filter.IDs, a.ID)
		})
	}
	sortRows(aspects, ordering, aspectComparators)
	return aspects, nil
}

func (repo *aspectRepository) UpdateAspect(_ context.Context, a aspect.Aspect, _ ...core.DBExecutor) (aspect.Aspect, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.aspects.set(a.ID, a) {
		return aspect.Aspect{}, aspect.ErrNotFound
	}
	return a, nil
}

func (repo *aspectRepository) DeleteAspect(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.aspects.softDelete(id) {
		return aspect.ErrNotFound
	}
	return nil
}
