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
	"github.com/trezcool/kinerja/core/evaluation"
)

const (
	evaluationsTable     = "teacher_evaluations"
	evaluationItemsTable = "teacher_evaluation_items"
)

var (
	evaluationColumns = []string{
		"teacher_evaluations.id", "teacher_evaluations.teacher_id", "teacher_evaluations.evaluator_id",
		"teacher_evaluations.period_id", "teacher_evaluations.final_notes", "teacher_evaluations.total_score",
		"teacher_evaluations.average_score", "teacher_evaluations.final_grade", "teacher_evaluations.last_updated",
		"teacher_evaluations.created_at", "teacher_evaluations.updated_at",
		"users.name AS teacher_name", "users.organization_id",
	}
	evaluationItemColumns = []string{
		"id", "teacher_evaluation_id", "aspect_id", "grade", "score", "notes", "evaluated_at", "created_at", "updated_at",
	}
)

type evaluationRow struct {
	ID             string          `db:"id"`
	TeacherID      string          `db:"teacher_id"`
	EvaluatorID    string          `db:"evaluator_id"`
	PeriodID       string          `db:"period_id"`
	FinalNotes     null.String     `db:"final_notes"`
	TotalScore     int             `db:"total_score"`
	AverageScore   decimal.Decimal `db:"average_score"`
	FinalGrade     decimal.Decimal `db:"final_grade"`
	LastUpdated    time.Time       `db:"last_updated"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	TeacherName    string          `db:"teacher_name"`
	OrganizationID null.String     `db:"organization_id"`
}

func toEvaluationRow(ev evaluation.Evaluation) evaluationRow {
	return evaluationRow{
		ID:           ev.ID,
		TeacherID:    ev.TeacherID,
		EvaluatorID:  ev.EvaluatorID,
		PeriodID:     ev.PeriodID,
		FinalNotes:   null.NewString(ev.FinalNotes, ev.FinalNotes != ""),
		TotalScore:   ev.TotalScore,
		AverageScore: ev.AverageScore,
		FinalGrade:   ev.FinalGrade,
		LastUpdated:  ev.LastUpdated.UTC(),
		CreatedAt:    ev.CreatedAt.UTC(),
		UpdatedAt:    ev.UpdatedAt.UTC(),
	}
}

func (row evaluationRow) evaluation() evaluation.Evaluation {
	return evaluation.Evaluation{
		ID:             row.ID,
		TeacherID:      row.TeacherID,
		EvaluatorID:    row.EvaluatorID,
		PeriodID:       row.PeriodID,
		FinalNotes:     row.FinalNotes.String,
		TotalScore:     row.TotalScore,
		AverageScore:   row.AverageScore,
		FinalGrade:     row.FinalGrade,
		LastUpdated:    row.LastUpdated,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		TeacherName:    row.TeacherName,
		OrganizationID: row.OrganizationID.String,
	}
}

type evaluationItemRow struct {
	ID           string      `db:"id"`
	EvaluationID string      `db:"teacher_evaluation_id"`
	AspectID     string      `db:"aspect_id"`
	Grade        string      `db:"grade"`
	Score        int         `db:"score"`
	Notes        null.String `db:"notes"`
	EvaluatedAt  time.Time   `db:"evaluated_at"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toEvaluationItemRow(it evaluation.Item) evaluationItemRow {
	return evaluationItemRow{
		ID:           it.ID,
		EvaluationID: it.EvaluationID,
		AspectID:     it.AspectID,
		Grade:        it.Grade,
		Score:        it.Score,
		Notes:        null.NewString(it.Notes, it.Notes != ""),
		EvaluatedAt:  it.EvaluatedAt.UTC(),
		CreatedAt:    it.CreatedAt.UTC(),
		UpdatedAt:    it.UpdatedAt.UTC(),
	}
}

func (row evaluationItemRow) item() evaluation.Item {
	return evaluation.Item{
		ID:           row.ID,
		EvaluationID: row.EvaluationID,
		AspectID:     row.AspectID,
		Grade:        row.Grade,
		Score:        row.Score,
		Notes:        row.Notes.String,
		EvaluatedAt:  row.EvaluatedAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type evaluationRepository struct {
	repo
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *sqlx.DB) evaluation.Repository {
	return &evaluationRepository{repo{db: db}}
}

func (r *evaluationRepository) selectEvaluations() sq.SelectBuilder {
	b := psql.Select(evaluationColumns...).
		From(evaluationsTable).
		Join("users ON users.id = teacher_evaluations.teacher_id")
	return live(b, evaluationsTable)
}

func (r *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation, exec ...core.DBExecutor) (evaluation.Evaluation, error) {
	e := r.getExec(exec)

	ev.ID = uuid.New().String()
	row := toEvaluationRow(ev)
	b := psql.Insert(evaluationsTable).
		Columns("id", "teacher_id", "evaluator_id", "period_id", "final_notes", "total_score", "average_score",
			"final_grade", "last_updated", "created_at", "updated_at").
		Values(row.ID, row.TeacherID, row.EvaluatorID, row.PeriodID, row.FinalNotes, row.TotalScore,
			row.AverageScore, row.FinalGrade, row.LastUpdated, row.CreatedAt, row.UpdatedAt).
		Suffix("ON CONFLICT (teacher_id, period_id) WHERE deleted_at IS NULL DO NOTHING")
	n, err := execute(ctx, e, b)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	if n == 0 {
		return evaluation.Evaluation{}, evaluation.ErrExists
	}
	return r.GetEvaluation(ctx, ev.ID, e)
}

func (r *evaluationRepository) getEvaluation(ctx context.Context, b sq.SelectBuilder, exec core.DBExecutor) (evaluation.Evaluation, error) {
	row, err := selectOne[evaluationRow](ctx, exec, b, evaluation.ErrNotFound)
	if err != nil {
		if err == evaluation.ErrNotFound {
			return evaluation.Evaluation{}, err
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "getting evaluation")
	}
	return row.evaluation(), nil
}

func (r *evaluationRepository) GetEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) (evaluation.Evaluation, error) {
	b := r.selectEvaluations().Where(sq.Eq{"teacher_evaluations.id": id})
	return r.getEvaluation(ctx, b, r.getExec(exec))
}

func (r *evaluationRepository) LockEvaluation(ctx context.Context, id string, exec core.DBExecutor) (evaluation.Evaluation, error) {
	b := r.selectEvaluations().
		Where(sq.Eq{"teacher_evaluations.id": id}).
		Suffix("FOR UPDATE OF teacher_evaluations")
	return r.getEvaluation(ctx, b, r.getExec([]core.DBExecutor{exec}))
}

func (r *evaluationRepository) QueryEvaluations(ctx context.Context, filter *evaluation.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]evaluation.Evaluation, error) {
	b := r.selectEvaluations()
	if filter != nil {
		if filter.TeacherID != "" {
			b = b.Where(sq.Eq{"teacher_evaluations.teacher_id": filter.TeacherID})
		}
		if filter.EvaluatorID != "" {
			b = b.Where(sq.Eq{"teacher_evaluations.evaluator_id": filter.EvaluatorID})
		}
		if filter.PeriodID != "" {
			b = b.Where(sq.Eq{"teacher_evaluations.period_id": filter.PeriodID})
		}
		if filter.OrganizationID != "" {
			b = b.Where(sq.Eq{"users.organization_id": filter.OrganizationID})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	b = orderBy(b, ordering, evaluationsTable)

	var rows []evaluationRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	evs := make([]evaluation.Evaluation, 0, len(rows))
	for _, row := range rows {
		evs = append(evs, row.evaluation())
	}
	return evs, nil
}

func (r *evaluationRepository) UpdateEvaluation(ctx context.Context, ev evaluation.Evaluation, exec ...core.DBExecutor) (evaluation.Evaluation, error) {
	e := r.getExec(exec)
	row := toEvaluationRow(ev)
	b := psql.Update(evaluationsTable).
		SetMap(map[string]interface{}{
			"final_notes":   row.FinalNotes,
			"total_score":   row.TotalScore,
			"average_score": row.AverageScore,
			"final_grade":   row.FinalGrade,
			"last_updated":  row.LastUpdated,
			"updated_at":    row.UpdatedAt,
		}).
		Where(sq.Eq{"id": ev.ID, "deleted_at": nil})
	n, err := execute(ctx, e, b)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "updating evaluation")
	}
	if n == 0 {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	return r.GetEvaluation(ctx, ev.ID, e)
}

func (r *evaluationRepository) CreateItem(ctx context.Context, it evaluation.Item, exec ...core.DBExecutor) (evaluation.Item, error) {
	it.ID = uuid.New().String()
	row := toEvaluationItemRow(it)
	b := psql.Insert(evaluationItemsTable).
		Columns(evaluationItemColumns...).
		Values(row.ID, row.EvaluationID, row.AspectID, row.Grade, row.Score, row.Notes, row.EvaluatedAt,
			row.CreatedAt, row.UpdatedAt).
		Suffix("ON CONFLICT (teacher_evaluation_id, aspect_id) WHERE deleted_at IS NULL DO NOTHING")
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return evaluation.Item{}, errors.Wrap(err, "inserting item")
	}
	if n == 0 {
		return evaluation.Item{}, evaluation.ErrItemExists
	}
	return it, nil
}

func (r *evaluationRepository) selectItems() sq.SelectBuilder {
	return live(psql.Select(evaluationItemColumns...).From(evaluationItemsTable), evaluationItemsTable)
}

func (r *evaluationRepository) GetItem(ctx context.Context, id string, exec ...core.DBExecutor) (evaluation.Item, error) {
	b := r.selectItems().Where(sq.Eq{"id": id})
	row, err := selectOne[evaluationItemRow](ctx, r.getExec(exec), b, evaluation.ErrItemNotFound)
	if err != nil {
		if err == evaluation.ErrItemNotFound {
			return evaluation.Item{}, err
		}
		return evaluation.Item{}, errors.Wrap(err, "getting item")
	}
	return row.item(), nil
}

func (r *evaluationRepository) QueryItems(ctx context.Context, evaluationIDs []string, exec ...core.DBExecutor) ([]evaluation.Item, error) {
	b := r.selectItems().
		Where(sq.Eq{"teacher_evaluation_id": evaluationIDs}).
		OrderBy("teacher_evaluation_id", "created_at")

	var rows []evaluationItemRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying items")
	}
	items := make([]evaluation.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

func (r *evaluationRepository) UpdateItem(ctx context.Context, it evaluation.Item, exec ...core.DBExecutor) (evaluation.Item, error) {
	row := toEvaluationItemRow(it)
	b := psql.Update(evaluationItemsTable).
		SetMap(map[string]interface{}{
			"grade":        row.Grade,
			"score":        row.Score,
			"notes":        row.Notes,
			"evaluated_at": row.EvaluatedAt,
			"updated_at":   row.UpdatedAt,
		}).
		Where(sq.Eq{"id": it.ID, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return evaluation.Item{}, errors.Wrap(err, "updating item")
	}
	if n == 0 {
		return evaluation.Item{}, evaluation.ErrItemNotFound
	}
	return it, nil
}

func (r *evaluationRepository) DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	b := psql.Update(evaluationItemsTable).
		Set("deleted_at", core.Now()).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return errors.Wrap(err, "deleting item")
	}
	if n == 0 {
		return evaluation.ErrItemNotFound
	}
	return nil
}

func (r *evaluationRepository) DeleteEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	e := r.getExec(exec)
	now := core.Now()
	b := psql.Update(evaluationsTable).
		Set("deleted_at", now).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, e, b)
	if err != nil {
		return errors.Wrap(err, "deleting evaluation")
	}
	if n == 0 {
		return evaluation.ErrNotFound
	}
	ib := psql.Update(evaluationItemsTable).
		Set("deleted_at", now).
		Where(sq.Eq{"teacher_evaluation_id": id, "deleted_at": nil})
	if _, err = execute(ctx, e, ib); err != nil {
		return errors.Wrap(err, "deleting items")
	}
	return nil
}
