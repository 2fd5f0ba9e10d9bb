package aspect

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
)

var ErrNotFound = core.NewNotFoundError("evaluation aspect")

// OrderingFields are the fields aspects can be ordered by.
var OrderingFields = []string{"aspect_name", "category", "category_order", "weight", "display_order", "is_active", "created_at"}

var catalogOrdering = []core.DBOrdering{
	{Field: "category_order", Ascending: true},
	{Field: "category", Ascending: true},
	{Field: "display_order", Ascending: true},
	{Field: "aspect_name", Ascending: true},
}

type (
	Repository interface {
		CreateAspect(ctx context.Context, a Aspect, exec ...core.DBExecutor) (Aspect, error)
		GetAspect(ctx context.Context, id string, exec ...core.DBExecutor) (Aspect, error)
		QueryAspects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Aspect, error)
		UpdateAspect(ctx context.Context, a Aspect, exec ...core.DBExecutor) (Aspect, error)
		DeleteAspect(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create never checks the catalog weight sum, see ValidateWeights.
func (svc *Service) Create(ctx context.Context, na NewAspect) (Aspect, error) {
	a := na.aspect()
	if err := a.check(); err != nil {
		return Aspect{}, err
	}
	now := core.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	return svc.repo.CreateAspect(ctx, a)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Aspect, error) {
	return svc.repo.GetAspect(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Aspect, error) {
	ordering = core.CleanOrdering(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = catalogOrdering
	}
	return svc.repo.QueryAspects(ctx, filter, ordering)
}

// GetActive returns the active aspects in catalog order (category rank, category, display order, name).
func (svc *Service) GetActive(ctx context.Context) ([]Aspect, error) {
	active := true
	return svc.repo.QueryAspects(ctx, &QueryFilter{IsActive: &active}, catalogOrdering)
}

func (svc *Service) Update(ctx context.Context, id string, ua UpdateAspect) (Aspect, error) {
	a, err := svc.repo.GetAspect(ctx, id)
	if err != nil {
		return Aspect{}, err
	}
	if a, err = ua.apply(a); err != nil {
		return Aspect{}, err
	}
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAspect(ctx, a)
}

func (svc *Service) Activate(ctx context.Context, id string) (Aspect, error) {
	return svc.setActive(ctx, id, true)
}

func (svc *Service) Deactivate(ctx context.Context, id string) (Aspect, error) {
	return svc.setActive(ctx, id, false)
}

func (svc *Service) setActive(ctx context.Context, id string, active bool) (Aspect, error) {
	a, err := svc.repo.GetAspect(ctx, id)
	if err != nil {
		return Aspect{}, err
	}
	if a.IsActive == active {
		return a, nil
	}
	a.IsActive = active
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAspect(ctx, a)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetAspect(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteAspect(ctx, id)
}

// ValidateWeights reports whether the active aspect weights add up to 100.
func (svc *Service) ValidateWeights(ctx context.Context) (WeightReport, error) {
	aspects, err := svc.GetActive(ctx)
	if err != nil {
		return WeightReport{}, errors.Wrap(err, "querying active aspects")
	}
	return CheckWeights(aspects), nil
}
