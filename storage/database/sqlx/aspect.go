package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
)

const aspectsTable = "evaluation_aspects"

var aspectColumns = []string{
	"evaluation_aspects.id", "evaluation_aspects.aspect_name", "evaluation_aspects.category",
	"evaluation_aspects.category_order", "evaluation_aspects.description", "evaluation_aspects.weight",
	"evaluation_aspects.min_score", "evaluation_aspects.max_score", "evaluation_aspects.display_order",
	"evaluation_aspects.is_active", "evaluation_aspects.created_at", "evaluation_aspects.updated_at",
}

type aspectRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"aspect_name"`
	Category      string          `db:"category"`
	CategoryOrder int             `db:"category_order"`
	Description   null.String     `db:"description"`
	Weight        decimal.Decimal `db:"weight"`
	MinScore      int             `db:"min_score"`
	MaxScore      int             `db:"max_score"`
	DisplayOrder  int             `db:"display_order"`
	IsActive      bool            `db:"is_active"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toAspectRow(a aspect.Aspect) aspectRow {
	return aspectRow{
		ID:            a.ID,
		Name:          a.Name,
		Category:      a.Category,
		CategoryOrder: a.CategoryOrder,
		Description:   null.NewString(a.Description, a.Description != ""),
		Weight:        a.Weight,
		MinScore:      a.MinScore,
		MaxScore:      a.MaxScore,
		DisplayOrder:  a.DisplayOrder,
		IsActive:      a.IsActive,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

func (row aspectRow) aspect() aspect.Aspect {
	return aspect.Aspect{
		ID:            row.ID,
		Name:          row.Name,
		Category:      row.Category,
		CategoryOrder: row.CategoryOrder,
		Description:   row.Description.String,
		Weight:        row.Weight,
		MinScore:      row.MinScore,
		MaxScore:      row.MaxScore,
		DisplayOrder:  row.DisplayOrder,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

type aspectRepository struct {
	repo
}

var _ aspect.Repository = (*aspectRepository)(nil) // interface compliance check

func NewAspectRepository(db *sqlx.DB) aspect.Repository {
	return &aspectRepository{repo{db: db}}
}

func (r *aspectRepository) selectAspects() sq.SelectBuilder {
	return live(psql.Select(aspectColumns...).From(aspectsTable), aspectsTable)
}

func (r *aspectRepository) CreateAspect(ctx context.Context, a aspect.Aspect, exec ...core.DBExecutor) (aspect.Aspect, error) {
	a.ID = uuid.New().String()
	row := toAspectRow(a)
	b := psql.Insert(aspectsTable).
		Columns("id", "aspect_name", "category", "category_order", "description", "weight", "min_score", "max_score",
			"display_order", "is_active", "created_at", "updated_at").
		Values(row.ID, row.Name, row.Category, row.CategoryOrder, row.Description, row.Weight, row.MinScore, row.MaxScore,
			row.DisplayOrder, row.IsActive, row.CreatedAt, row.UpdatedAt)
	if _, err := execute(ctx, r.getExec(exec), b); err != nil {
		return aspect.Aspect{}, errors.Wrap(err, "inserting aspect")
	}
	return a, nil
}

func (r *aspectRepository) GetAspect(ctx context.Context, id string, exec ...core.DBExecutor) (aspect.Aspect, error) {
	b := r.selectAspects().Where(sq.Eq{"evaluation_aspects.id": id})
	row, err := selectOne[aspectRow](ctx, r.getExec(exec), b, aspect.ErrNotFound)
	if err != nil {
		if err == aspect.ErrNotFound {
			return aspect.Aspect{}, err
		}
		return aspect.Aspect{}, errors.Wrap(err, "getting aspect")
	}
	return row.aspect(), nil
}

func (r *aspectRepository) QueryAspects(ctx context.Context, filter *aspect.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]aspect.Aspect, error) {
	b := r.selectAspects()
	if filter != nil && filter.WithDeleted {
		b = psql.Select(aspectColumns...).From(aspectsTable)
	}
	if filter != nil {
		if filter.Category != "" {
			b = b.Where(sq.Eq{"evaluation_aspects.category": filter.Category})
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"evaluation_aspects.is_active": *filter.IsActive})
		}
		if filter.IDs != nil {
			b = b.Where(sq.Eq{"evaluation_aspects.id": filter.IDs})
		}
	}
	b = orderBy(b, ordering, aspectsTable)

	var rows []aspectRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying aspects")
	}
	aspects := make([]aspect.Aspect, 0, len(rows))
	for _, row := range rows {
		aspects = append(aspects, row.aspect())
	}
	return aspects, nil
}

func (r *aspectRepository) UpdateAspect(ctx context.Context, a aspect.Aspect, exec ...core.DBExecutor) (aspect.Aspect, error) {
	row := toAspectRow(a)
	b := psql.Update(aspectsTable).
		SetMap(map[string]interface{}{
			"aspect_name":    row.Name,
			"category":       row.Category,
			"category_order": row.CategoryOrder,
			"description":    row.Description,
			"weight":         row.Weight,
			"min_score":      row.MinScore,
			"max_score":      row.MaxScore,
			"display_order":  row.DisplayOrder,
			"is_active":      row.IsActive,
			"updated_at":     row.UpdatedAt,
		}).
		Where(sq.Eq{"id": a.ID, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return aspect.Aspect{}, errors.Wrap(err, "updating aspect")
	}
	if n == 0 {
		return aspect.Aspect{}, aspect.ErrNotFound
	}
	return a, nil
}

func (r *aspectRepository) DeleteAspect(ctx context.Context, id string, exec ...core.DBExecutor) error {
	b := psql.Update(aspectsTable).
		Set("deleted_at", core.Now()).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return errors.Wrap(err, "deleting aspect")
	}
	if n == 0 {
		return aspect.ErrNotFound
	}
	return nil
}
