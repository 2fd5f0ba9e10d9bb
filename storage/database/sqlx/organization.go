package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/organization"
)

const organizationsTable = "organizations"

var organizationColumns = []string{
	"organizations.id", "organizations.name", "organizations.description", "organizations.head_id",
	"organizations.created_at", "organizations.updated_at",
}

type organizationRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Description null.String `db:"description"`
	HeadID      null.String `db:"head_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toOrganizationRow(org organization.Organization) organizationRow {
	return organizationRow{
		ID:          org.ID,
		Name:        org.Name,
		Description: null.NewString(org.Description, org.Description != ""),
		HeadID:      null.NewString(org.HeadID, org.HeadID != ""),
		CreatedAt:   org.CreatedAt.UTC(),
		UpdatedAt:   org.UpdatedAt.UTC(),
	}
}

func (row organizationRow) organization() organization.Organization {
	return organization.Organization{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description.String,
		HeadID:      row.HeadID.String,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type organizationRepository struct {
	repo
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *sqlx.DB) organization.Repository {
	return &organizationRepository{repo{db: db}}
}

func (r *organizationRepository) selectOrganizations() sq.SelectBuilder {
	return live(psql.Select(organizationColumns...).From(organizationsTable), organizationsTable)
}

func (r *organizationRepository) CreateOrganization(ctx context.Context, org organization.Organization, exec ...core.DBExecutor) (organization.Organization, error) {
	org.ID = uuid.New().String()
	row := toOrganizationRow(org)
	b := psql.Insert(organizationsTable).
		Columns("id", "name", "description", "head_id", "created_at", "updated_at").
		Values(row.ID, row.Name, row.Description, row.HeadID, row.CreatedAt, row.UpdatedAt)
	if _, err := execute(ctx, r.getExec(exec), b); err != nil {
		return organization.Organization{}, errors.Wrap(err, "inserting organization")
	}
	return org, nil
}

func (r *organizationRepository) GetOrganization(ctx context.Context, id string, exec ...core.DBExecutor) (organization.Organization, error) {
	b := r.selectOrganizations().Where(sq.Eq{"organizations.id": id})
	row, err := selectOne[organizationRow](ctx, r.getExec(exec), b, organization.ErrNotFound)
	if err != nil {
		if err == organization.ErrNotFound {
			return organization.Organization{}, err
		}
		return organization.Organization{}, errors.Wrap(err, "getting organization")
	}
	return row.organization(), nil
}

func (r *organizationRepository) QueryOrganizations(ctx context.Context, filter *organization.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]organization.Organization, error) {
	b := r.selectOrganizations()
	if filter != nil {
		if filter.Search != "" {
			b = b.Where(sq.ILike{"organizations.name": "%" + filter.Search + "%"})
		}
		if filter.HasHead != nil {
			if *filter.HasHead {
				b = b.Where(sq.NotEq{"organizations.head_id": nil})
			} else {
				b = b.Where(sq.Eq{"organizations.head_id": nil})
			}
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	b = orderBy(b, ordering, organizationsTable)

	var rows []organizationRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying organizations")
	}
	orgs := make([]organization.Organization, 0, len(rows))
	for _, row := range rows {
		orgs = append(orgs, row.organization())
	}
	return orgs, nil
}

func (r *organizationRepository) UpdateOrganization(ctx context.Context, org organization.Organization, exec ...core.DBExecutor) (organization.Organization, error) {
	row := toOrganizationRow(org)
	b := psql.Update(organizationsTable).
		SetMap(map[string]interface{}{
			"name":        row.Name,
			"description": row.Description,
			"head_id":     row.HeadID,
			"updated_at":  row.UpdatedAt,
		}).
		Where(sq.Eq{"id": org.ID, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return organization.Organization{}, errors.Wrap(err, "updating organization")
	}
	if n == 0 {
		return organization.Organization{}, organization.ErrNotFound
	}
	return org, nil
}

func (r *organizationRepository) DeleteOrganization(ctx context.Context, id string, exec ...core.DBExecutor) error {
	b := psql.Update(organizationsTable).
		Set("deleted_at", core.Now()).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return errors.Wrap(err, "deleting organization")
	}
	if n == 0 {
		return organization.ErrNotFound
	}
	return nil
}
