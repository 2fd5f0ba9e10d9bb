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
	"github.com/trezcool/kinerja/core/period"
)

const periodsTable = "periods"

var periodColumns = []string{
	"periods.id", "periods.academic_year", "periods.semester", "periods.start_date", "periods.end_date",
	"periods.is_active", "periods.description", "periods.created_at", "periods.updated_at",
}

type periodRow struct {
	ID           string      `db:"id"`
	AcademicYear string      `db:"academic_year"`
	Semester     string      `db:"semester"`
	StartDate    time.Time   `db:"start_date"`
	EndDate      time.Time   `db:"end_date"`
	IsActive     bool        `db:"is_active"`
	Description  null.String `db:"description"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toPeriodRow(p period.Period) periodRow {
	return periodRow{
		ID:           p.ID,
		AcademicYear: p.AcademicYear,
		Semester:     p.Semester,
		StartDate:    core.Date(p.StartDate),
		EndDate:      core.Date(p.EndDate),
		IsActive:     p.IsActive,
		Description:  null.NewString(p.Description, p.Description != ""),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (row periodRow) period() period.Period {
	return period.Period{
		ID:           row.ID,
		AcademicYear: row.AcademicYear,
		Semester:     row.Semester,
		StartDate:    core.Date(row.StartDate),
		EndDate:      core.Date(row.EndDate),
		IsActive:     row.IsActive,
		Description:  row.Description.String,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type periodRepository struct {
	repo
}

var _ period.Repository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db *sqlx.DB) period.Repository {
	return &periodRepository{repo{db: db}}
}

func (r *periodRepository) selectPeriods() sq.SelectBuilder {
	return live(psql.Select(periodColumns...).From(periodsTable), periodsTable)
}

func (r *periodRepository) trapUniqueErr(err error, msg string) error {
	if _, ok := uniqueConstraint(err); ok {
		return period.ErrExists
	}
	return errors.Wrap(err, msg)
}

func (r *periodRepository) CreatePeriod(ctx context.Context, p period.Period, exec ...core.DBExecutor) (period.Period, error) {
	p.ID = uuid.New().String()
	row := toPeriodRow(p)
	b := psql.Insert(periodsTable).
		Columns("id", "academic_year", "semester", "start_date", "end_date", "is_active", "description",
			"created_at", "updated_at").
		Values(row.ID, row.AcademicYear, row.Semester, row.StartDate, row.EndDate, row.IsActive, row.Description,
			row.CreatedAt, row.UpdatedAt)
	if _, err := execute(ctx, r.getExec(exec), b); err != nil {
		return period.Period{}, r.trapUniqueErr(err, "inserting period")
	}
	return row.period(), nil
}

func (r *periodRepository) GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (period.Period, error) {
	b := r.selectPeriods().Where(sq.Eq{"periods.id": id})
	row, err := selectOne[periodRow](ctx, r.getExec(exec), b, period.ErrNotFound)
	if err != nil {
		if err == period.ErrNotFound {
			return period.Period{}, err
		}
		return period.Period{}, errors.Wrap(err, "getting period")
	}
	return row.period(), nil
}

func (r *periodRepository) QueryPeriods(ctx context.Context, filter *period.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]period.Period, error) {
	b := r.selectPeriods()
	if filter != nil {
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"periods.is_active": *filter.IsActive})
		}
		if filter.AcademicYear != "" {
			b = b.Where(sq.Eq{"periods.academic_year": filter.AcademicYear})
		}
		if filter.Semester != "" {
			b = b.Where(sq.Eq{"periods.semester": filter.Semester})
		}
		if !filter.Date.IsZero() {
			d := core.Date(filter.Date)
			b = b.Where(sq.LtOrEq{"periods.start_date": d}).Where(sq.GtOrEq{"periods.end_date": d})
		}
	}
	b = orderBy(b, ordering, periodsTable)

	var rows []periodRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying periods")
	}
	periods := make([]period.Period, 0, len(rows))
	for _, row := range rows {
		periods = append(periods, row.period())
	}
	return periods, nil
}

func (r *periodRepository) UpdatePeriod(ctx context.Context, p period.Period, exec ...core.DBExecutor) (period.Period, error) {
	row := toPeriodRow(p)
	b := psql.Update(periodsTable).
		SetMap(map[string]interface{}{
			"academic_year": row.AcademicYear,
			"semester":      row.Semester,
			"start_date":    row.StartDate,
			"end_date":      row.EndDate,
			"is_active":     row.IsActive,
			"description":   row.Description,
			"updated_at":    row.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return period.Period{}, r.trapUniqueErr(err, "updating period")
	}
	if n == 0 {
		return period.Period{}, period.ErrNotFound
	}
	return row.period(), nil
}

func (r *periodRepository) DeactivateOthers(ctx context.Context, id string, exec ...core.DBExecutor) error {
	b := psql.Update(periodsTable).
		Set("is_active", false).
		Set("updated_at", core.Now()).
		Where(sq.NotEq{"id": id}).
		Where(sq.Eq{"is_active": true, "deleted_at": nil})
	if _, err := execute(ctx, r.getExec(exec), b); err != nil {
		return errors.Wrap(err, "deactivating periods")
	}
	return nil
}

func (r *periodRepository) IsReferenced(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	for _, table := range []string{submissionsTable, evaluationsTable} {
		b := live(psql.Select("1").From(table).Where(sq.Eq{table + ".period_id": id}), table)
		ok, err := exists(ctx, r.getExec(exec), b)
		if err != nil {
			return false, errors.Wrap(err, "checking "+table)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *periodRepository) DeletePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	b := psql.Update(periodsTable).
		Set("deleted_at", core.Now()).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return errors.Wrap(err, "deleting period")
	}
	if n == 0 {
		return period.ErrNotFound
	}
	return nil
}
