package period

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("period")
	ErrNoActive   = core.NewNotFoundError("active period")
	ErrExists     = core.NewConflictError("a period with this academic year and semester already exists")
	ErrReferenced = core.NewConflictError("period is referenced by RPP submissions or evaluations")
)

// OrderingFields are the fields periods can be ordered by.
var OrderingFields = []string{"academic_year", "semester", "start_date", "end_date", "is_active", "created_at"}

var defaultOrdering = []core.DBOrdering{{Field: "start_date"}}

type (
	Repository interface {
		// CreatePeriod returns ErrExists if a live period has the same academic year and semester.
		CreatePeriod(ctx context.Context, p Period, exec ...core.DBExecutor) (Period, error)
		GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (Period, error)
		QueryPeriods(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Period, error)
		// UpdatePeriod returns ErrExists if the change collides with another live period.
		UpdatePeriod(ctx context.Context, p Period, exec ...core.DBExecutor) (Period, error)
		// DeactivateOthers sets is_active to false on every live period but id.
		DeactivateOthers(ctx context.Context, id string, exec ...core.DBExecutor) error
		// IsReferenced reports whether live RPP submissions or evaluations point to the period.
		IsReferenced(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		DeletePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx   core.Transactor
		repo Repository
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	return &Service{tx: tx, repo: repo}
}

func (svc *Service) Create(ctx context.Context, np NewPeriod) (Period, error) {
	now := core.Now()
	p := Period{
		AcademicYear: np.AcademicYear,
		Semester:     np.Semester,
		StartDate:    np.start,
		EndDate:      np.end,
		Description:  np.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.StartDate.IsZero() { // not validated
		p.StartDate, p.EndDate = parseDate(np.StartDate), parseDate(np.EndDate)
	}
	if !p.StartDate.Before(p.EndDate) {
		return Period{}, datesError()
	}

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.CreatePeriod(ctx, p, exec); err != nil {
			return err
		}
		if np.IsActive {
			p, err = svc.activate(ctx, p, exec)
		}
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Period, error) {
	return svc.repo.GetPeriod(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Period, error) {
	ordering = core.CleanOrdering(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	return svc.repo.QueryPeriods(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdatePeriod) (Period, error) {
	var p Period
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetPeriod(ctx, id, exec)
		if err != nil {
			return err
		}
		if p, err = up.apply(orig); err != nil {
			return err
		}
		p.UpdatedAt = core.Now()
		p, err = svc.repo.UpdatePeriod(ctx, p, exec)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

// Activate makes id the only active period.
func (svc *Service) Activate(ctx context.Context, id string) (Period, error) {
	var p Period
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPeriod(ctx, id, exec); err != nil {
			return err
		}
		p, err = svc.activate(ctx, p, exec)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

func (svc *Service) activate(ctx context.Context, p Period, exec core.DBExecutor) (Period, error) {
	if err := svc.repo.DeactivateOthers(ctx, p.ID, exec); err != nil {
		return Period{}, errors.Wrap(err, "deactivating other periods")
	}
	p.IsActive = true
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePeriod(ctx, p, exec)
}

func (svc *Service) Deactivate(ctx context.Context, id string) (Period, error) {
	p, err := svc.repo.GetPeriod(ctx, id)
	if err != nil {
		return Period{}, err
	}
	if !p.IsActive {
		return p, nil
	}
	p.IsActive = false
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePeriod(ctx, p)
}

// GetActive returns ErrNoActive when no period is active.
func (svc *Service) GetActive(ctx context.Context) (Period, error) {
	active := true
	periods, err := svc.repo.QueryPeriods(ctx, &QueryFilter{IsActive: &active}, defaultOrdering)
	if err != nil {
		return Period{}, errors.Wrap(err, "querying active period")
	}
	if len(periods) == 0 {
		return Period{}, ErrNoActive
	}
	return periods[len(periods)-1], nil
}

// Current returns the periods whose dates include today.
func (svc *Service) Current(ctx context.Context, today time.Time) ([]Period, error) {
	return svc.repo.QueryPeriods(ctx, &QueryFilter{Date: core.Date(today)}, defaultOrdering)
}

// Delete soft deletes the period. Periods still referenced cannot be deleted.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetPeriod(ctx, id, exec); err != nil {
			return err
		}
		referenced, err := svc.repo.IsReferenced(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "checking period references")
		}
		if referenced {
			return ErrReferenced
		}
		return svc.repo.DeletePeriod(ctx, id, exec)
	})
}
