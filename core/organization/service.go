package organization

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/user"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("organization")
	ErrHasMembers = core.NewConflictError("organization still has members")
)

// OrderingFields are the fields organizations can be ordered by.
var OrderingFields = []string{"name", "created_at"}

type (
	Repository interface {
		CreateOrganization(ctx context.Context, org Organization, exec ...core.DBExecutor) (Organization, error)
		GetOrganization(ctx context.Context, id string, exec ...core.DBExecutor) (Organization, error)
		// QueryOrganizations does a case-insensitive match of QueryFilter.Search on the name.
		QueryOrganizations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Organization, error)
		UpdateOrganization(ctx context.Context, org Organization, exec ...core.DBExecutor) (Organization, error)
		DeleteOrganization(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx    core.Transactor
		repo  Repository
		users user.Repository
	}
)

func NewService(tx core.Transactor, repo Repository, users user.Repository) *Service {
	return &Service{tx: tx, repo: repo, users: users}
}

func (svc *Service) Create(ctx context.Context, no NewOrganization) (Organization, error) {
	now := core.Now()
	org := Organization{
		Name:        no.Name,
		Description: no.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if org, err = svc.repo.CreateOrganization(ctx, org, exec); err != nil {
			return err
		}
		if no.HeadID != "" {
			org, err = svc.setHead(ctx, org, no.HeadID, exec)
		}
		return err
	})
	if err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Organization, error) {
	return svc.repo.QueryOrganizations(ctx, filter, core.CleanOrdering(ordering, OrderingFields...))
}

// WithHead returns the organizations that have a head.
func (svc *Service) WithHead(ctx context.Context) ([]Organization, error) {
	hasHead := true
	return svc.repo.QueryOrganizations(ctx, &QueryFilter{HasHead: &hasHead}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
}

func (svc *Service) Update(ctx context.Context, id string, uo UpdateOrganization) (Organization, error) {
	var org Organization
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if org, err = svc.repo.GetOrganization(ctx, id, exec); err != nil {
			return err
		}
		if uo.Name != nil {
			org.Name = *uo.Name
		}
		if uo.Description != nil {
			org.Description = *uo.Description
		}
		if uo.HeadID != nil && *uo.HeadID != org.HeadID {
			if *uo.HeadID == "" {
				org.HeadID = ""
			} else if org, err = svc.setHead(ctx, org, *uo.HeadID, exec); err != nil {
				return err
			}
		}
		org.UpdatedAt = core.Now()
		org, err = svc.repo.UpdateOrganization(ctx, org, exec)
		return err
	})
	if err != nil {
		return Organization{}, err
	}
	return org, nil
}

// setHead makes the kepala_sekolah headID the head of org and moves them into it.
func (svc *Service) setHead(ctx context.Context, org Organization, headID string, exec core.DBExecutor) (Organization, error) {
	invalid := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "head_id", Error: msg})
	}

	head, err := svc.users.GetUser(ctx, user.GetFilter{ID: headID}, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return Organization{}, invalid("user not found")
		}
		return Organization{}, errors.Wrap(err, "getting head")
	}
	if !head.IsKepalaSekolah() {
		return Organization{}, invalid("head must be a kepala_sekolah")
	}
	if head.OrganizationID != "" && head.OrganizationID != org.ID {
		return Organization{}, invalid("head belongs to another organization")
	}

	if head.OrganizationID != org.ID {
		head.OrganizationID = org.ID
		head.UpdatedAt = core.Now()
		if _, err := svc.users.UpdateUser(ctx, head, exec); err != nil {
			return Organization{}, errors.Wrap(err, "moving head into organization")
		}
	}
	org.HeadID = head.ID
	org.UpdatedAt = core.Now()
	return svc.repo.UpdateOrganization(ctx, org, exec)
}

// Delete soft deletes the organization. Organizations with members cannot be deleted.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetOrganization(ctx, id, exec); err != nil {
			return err
		}
		members, err := svc.users.QueryUsers(ctx, &user.QueryFilter{OrganizationID: id}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying members")
		}
		if len(members) > 0 {
			return ErrHasMembers
		}
		return svc.repo.DeleteOrganization(ctx, id, exec)
	})
}
