package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
)

var periodComparators = comparators[period.Period]{
	"academic_year": func(a, b period.Period) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
	"semester":      func(a, b period.Period) int { return strings.Compare(a.Semester, b.Semester) },
	"start_date":    func(a, b period.Period) int { return compareTime(a.StartDate, b.StartDate) },
	"end_date":      func(a, b period.Period) int { return compareTime(a.EndDate, b.EndDate) },
	"is_active":     func(a, b period.Period) int { return compareBool(a.IsActive, b.IsActive) },
	"created_at":    func(a, b period.Period) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

type periodRepository struct {
	db *DB
}

var _ period.Repository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db *DB) period.Repository {
	return &periodRepository{db: db}
}

func (repo *periodRepository) collides(p period.Period) bool {
	for _, other := range repo.db.periods.all() {
		if other.ID != p.ID && other.AcademicYear == p.AcademicYear && other.Semester == p.Semester {
			return true
		}
	}
	return false
}

func (repo *periodRepository) CreatePeriod(_ context.Context, p period.Period, _ ...core.DBExecutor) (period.Period, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = uuid.New().String()
	if repo.collides(p) {
		return period.Period{}, period.ErrExists
	}
	p.StartDate = core.Date(p.StartDate)
	p.EndDate = core.Date(p.EndDate)
	repo.db.periods.insert(p.ID, p)
	return p, nil
}

func (repo *periodRepository) GetPeriod(_ context.Context, id string, _ ...core.DBExecutor) (period.Period, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.periods.get(id); ok {
		return p, nil
	}
	return period.Period{}, period.ErrNotFound
}

func (repo *periodRepository) QueryPeriods(_ context.Context, filter *period.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]period.Period, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	periods := repo.db.periods.all()
	if filter != nil {
		periods = filterRows(periods, func(p period.Period) bool {
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				return false
			}
			if filter.AcademicYear != "" && p.AcademicYear != filter.AcademicYear {
				return false
			}
			if filter.Semester != "" && p.Semester != filter.Semester {
				return false
			}
			if !filter.Date.IsZero() {
				d := core.Date(filter.Date)
				if d.Before(p.StartDate) || d.After(p.EndDate) {
					return false
				}
			}
			return true
		})
	}
	sortRows(periods, ordering, periodComparators)
	return periods, nil
}

func (repo *periodRepository) UpdatePeriod(_ context.Context, p period.Period, _ ...core.DBExecutor) (period.Period, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.periods.get(p.ID); !ok {
		return period.Period{}, period.ErrNotFound
	}
	if repo.collides(p) {
		return period.Period{}, period.ErrExists
	}
	p.StartDate = core.Date(p.StartDate)
	p.EndDate = core.Date(p.EndDate)
	repo.db.periods.set(p.ID, p)
	return p, nil
}

func (repo *periodRepository) DeactivateOthers(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := core.Now()
	for _, p := range repo.db.periods.all() {
		if p.ID != id && p.IsActive {
			p.IsActive = false
			p.UpdatedAt = now
			repo.db.periods.set(p.ID, p)
		}
	}
	return nil
}

func (repo *periodRepository) IsReferenced(_ context.Context, id string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.submissions.all() {
		if s.PeriodID == id {
			return true, nil
		}
	}
	for _, ev := range repo.db.evaluations.all() {
		if ev.PeriodID == id {
			return true, nil
		}
	}
	return false, nil
}

func (repo *periodRepository) DeletePeriod(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.periods.delete(id) {
		return period.ErrNotFound
	}
	return nil
}
