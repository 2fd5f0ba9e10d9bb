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
	"github.com/trezcool/kinerja/core/rpp"
)

const (
	submissionsTable     = "rpp_submissions"
	submissionItemsTable = "rpp_submission_items"
)

var (
	submissionColumns = []string{
		"rpp_submissions.id", "rpp_submissions.teacher_id", "rpp_submissions.period_id", "rpp_submissions.status",
		"rpp_submissions.reviewer_id", "rpp_submissions.review_notes", "rpp_submissions.submitted_at",
		"rpp_submissions.reviewed_at", "rpp_submissions.created_at", "rpp_submissions.updated_at",
		"users.name AS teacher_name", "users.organization_id",
	}
	submissionItemColumns = []string{
		"id", "teacher_id", "period_id", "rpp_submission_id", "rpp_type", "file_id", "uploaded_at",
		"created_at", "updated_at",
	}
)

type submissionRow struct {
	ID             string      `db:"id"`
	TeacherID      string      `db:"teacher_id"`
	PeriodID       string      `db:"period_id"`
	Status         string      `db:"status"`
	ReviewerID     null.String `db:"reviewer_id"`
	ReviewNotes    null.String `db:"review_notes"`
	SubmittedAt    null.Time   `db:"submitted_at"`
	ReviewedAt     null.Time   `db:"reviewed_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	TeacherName    string      `db:"teacher_name"`
	OrganizationID null.String `db:"organization_id"`
}

func toSubmissionRow(s rpp.Submission) submissionRow {
	return submissionRow{
		ID:          s.ID,
		TeacherID:   s.TeacherID,
		PeriodID:    s.PeriodID,
		Status:      s.Status,
		ReviewerID:  null.NewString(s.ReviewerID, s.ReviewerID != ""),
		ReviewNotes: null.NewString(s.ReviewNotes, s.ReviewNotes != ""),
		SubmittedAt: null.NewTime(s.SubmittedAt.UTC(), !s.SubmittedAt.IsZero()),
		ReviewedAt:  null.NewTime(s.ReviewedAt.UTC(), !s.ReviewedAt.IsZero()),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (row submissionRow) submission() rpp.Submission {
	return rpp.Submission{
		ID:             row.ID,
		TeacherID:      row.TeacherID,
		PeriodID:       row.PeriodID,
		Status:         row.Status,
		ReviewerID:     row.ReviewerID.String,
		ReviewNotes:    row.ReviewNotes.String,
		SubmittedAt:    row.SubmittedAt.Time,
		ReviewedAt:     row.ReviewedAt.Time,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		TeacherName:    row.TeacherName,
		OrganizationID: row.OrganizationID.String,
	}
}

type submissionItemRow struct {
	ID           string      `db:"id"`
	TeacherID    string      `db:"teacher_id"`
	PeriodID     string      `db:"period_id"`
	SubmissionID string      `db:"rpp_submission_id"`
	Type         string      `db:"rpp_type"`
	FileID       null.String `db:"file_id"`
	UploadedAt   null.Time   `db:"uploaded_at"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toSubmissionItemRow(it rpp.Item) submissionItemRow {
	return submissionItemRow{
		ID:           it.ID,
		TeacherID:    it.TeacherID,
		PeriodID:     it.PeriodID,
		SubmissionID: it.SubmissionID,
		Type:         it.Type,
		FileID:       null.NewString(it.FileID, it.FileID != ""),
		UploadedAt:   null.NewTime(it.UploadedAt.UTC(), !it.UploadedAt.IsZero()),
		CreatedAt:    it.CreatedAt.UTC(),
		UpdatedAt:    it.UpdatedAt.UTC(),
	}
}

func (row submissionItemRow) item() rpp.Item {
	return rpp.Item{
		ID:           row.ID,
		TeacherID:    row.TeacherID,
		PeriodID:     row.PeriodID,
		SubmissionID: row.SubmissionID,
		Type:         row.Type,
		FileID:       row.FileID.String,
		UploadedAt:   row.UploadedAt.Time,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type rppRepository struct {
	repo
}

var _ rpp.Repository = (*rppRepository)(nil) // interface compliance check

func NewRPPRepository(db *sqlx.DB) rpp.Repository {
	return &rppRepository{repo{db: db}}
}

// selectSubmissions joins the teacher for the denormalized fields.
func (r *rppRepository) selectSubmissions(columns ...string) sq.SelectBuilder {
	if len(columns) == 0 {
		columns = submissionColumns
	}
	b := psql.Select(columns...).
		From(submissionsTable).
		Join("users ON users.id = rpp_submissions.teacher_id")
	return live(b, submissionsTable)
}

func filterSubmissions(b sq.SelectBuilder, filter *rpp.QueryFilter) sq.SelectBuilder {
	if filter == nil {
		return b
	}
	if filter.TeacherID != "" {
		b = b.Where(sq.Eq{"rpp_submissions.teacher_id": filter.TeacherID})
	}
	if filter.PeriodID != "" {
		b = b.Where(sq.Eq{"rpp_submissions.period_id": filter.PeriodID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"rpp_submissions.status": filter.Status})
	}
	if filter.ReviewerID != "" {
		b = b.Where(sq.Eq{"rpp_submissions.reviewer_id": filter.ReviewerID})
	}
	if filter.OrganizationID != "" {
		b = b.Where(sq.Eq{"users.organization_id": filter.OrganizationID})
	}
	if filter.TeacherRole != "" {
		b = b.Where("? = ANY(users.roles)", filter.TeacherRole)
	}
	return b
}

func (r *rppRepository) CreateSubmission(ctx context.Context, s rpp.Submission, items []rpp.Item, exec ...core.DBExecutor) (rpp.Submission, error) {
	e := r.getExec(exec)

	s.ID = uuid.New().String()
	row := toSubmissionRow(s)
	b := psql.Insert(submissionsTable).
		Columns("id", "teacher_id", "period_id", "status", "reviewer_id", "review_notes", "submitted_at",
			"reviewed_at", "created_at", "updated_at").
		Values(row.ID, row.TeacherID, row.PeriodID, row.Status, row.ReviewerID, row.ReviewNotes, row.SubmittedAt,
			row.ReviewedAt, row.CreatedAt, row.UpdatedAt).
		Suffix("ON CONFLICT (teacher_id, period_id) WHERE deleted_at IS NULL DO NOTHING")
	n, err := execute(ctx, e, b)
	if err != nil {
		return rpp.Submission{}, errors.Wrap(err, "inserting submission")
	}
	if n == 0 {
		return rpp.Submission{}, rpp.ErrExists
	}

	if len(items) > 0 {
		ib := psql.Insert(submissionItemsTable).Columns(submissionItemColumns...)
		for _, it := range items {
			it.ID = uuid.New().String()
			it.SubmissionID = s.ID
			ir := toSubmissionItemRow(it)
			ib = ib.Values(ir.ID, ir.TeacherID, ir.PeriodID, ir.SubmissionID, ir.Type, ir.FileID, ir.UploadedAt,
				ir.CreatedAt, ir.UpdatedAt)
		}
		if _, err = execute(ctx, e, ib); err != nil {
			return rpp.Submission{}, errors.Wrap(trapUniqueErr(err, "duplicate RPP type in submission"), "inserting items")
		}
	}
	return r.GetSubmission(ctx, s.ID, e)
}

func (r *rppRepository) getSubmission(ctx context.Context, b sq.SelectBuilder, exec core.DBExecutor) (rpp.Submission, error) {
	row, err := selectOne[submissionRow](ctx, exec, b, rpp.ErrNotFound)
	if err != nil {
		if err == rpp.ErrNotFound {
			return rpp.Submission{}, err
		}
		return rpp.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.submission(), nil
}

func (r *rppRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (rpp.Submission, error) {
	b := r.selectSubmissions().Where(sq.Eq{"rpp_submissions.id": id})
	return r.getSubmission(ctx, b, r.getExec(exec))
}

func (r *rppRepository) LockSubmission(ctx context.Context, id string, exec core.DBExecutor) (rpp.Submission, error) {
	b := r.selectSubmissions().
		Where(sq.Eq{"rpp_submissions.id": id}).
		Suffix("FOR UPDATE OF rpp_submissions")
	return r.getSubmission(ctx, b, r.getExec([]core.DBExecutor{exec}))
}

func (r *rppRepository) QuerySubmissions(ctx context.Context, filter *rpp.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]rpp.Submission, error) {
	b := filterSubmissions(r.selectSubmissions(), filter)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	b = orderBy(b, ordering, submissionsTable)

	var rows []submissionRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]rpp.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (r *rppRepository) UpdateSubmissionStatus(ctx context.Context, s rpp.Submission, expected string, exec ...core.DBExecutor) (rpp.Submission, error) {
	e := r.getExec(exec)
	row := toSubmissionRow(s)
	b := psql.Update(submissionsTable).
		SetMap(map[string]interface{}{
			"status":       row.Status,
			"reviewer_id":  row.ReviewerID,
			"review_notes": row.ReviewNotes,
			"submitted_at": row.SubmittedAt,
			"reviewed_at":  row.ReviewedAt,
			"updated_at":   row.UpdatedAt,
		}).
		Where(sq.Eq{"id": s.ID, "status": expected, "deleted_at": nil})
	n, err := execute(ctx, e, b)
	if err != nil {
		return rpp.Submission{}, errors.Wrap(err, "updating submission status")
	}
	if n == 0 {
		return rpp.Submission{}, rpp.ErrStatusChanged
	}
	return r.GetSubmission(ctx, s.ID, e)
}

func (r *rppRepository) CountByStatus(ctx context.Context, filter *rpp.QueryFilter, exec ...core.DBExecutor) (map[string]int, error) {
	b := filterSubmissions(r.selectSubmissions("rpp_submissions.status", "COUNT(*)"), filter).
		GroupBy("rpp_submissions.status")
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := r.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "counting submissions")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rows.Close()

	counts := make(map[string]int, len(rpp.AllStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err = rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scanning counts")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "counting submissions")
}

func (r *rppRepository) QueryItems(ctx context.Context, filter rpp.ItemFilter, exec ...core.DBExecutor) ([]rpp.Item, error) {
	b := live(psql.Select(submissionItemColumns...).From(submissionItemsTable), submissionItemsTable)
	if filter.SubmissionIDs != nil {
		b = b.Where(sq.Eq{"rpp_submission_id": filter.SubmissionIDs})
	}
	if filter.TeacherID != "" {
		b = b.Where(sq.Eq{"teacher_id": filter.TeacherID})
	}
	if filter.PeriodID != "" {
		b = b.Where(sq.Eq{"period_id": filter.PeriodID})
	}
	if filter.Type != "" {
		b = b.Where(sq.Eq{"rpp_type": filter.Type})
	}
	b = b.OrderBy("rpp_submission_id", "rpp_type")

	var rows []submissionItemRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying items")
	}
	items := make([]rpp.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

func (r *rppRepository) UpdateItem(ctx context.Context, it rpp.Item, exec ...core.DBExecutor) (rpp.Item, error) {
	row := toSubmissionItemRow(it)
	b := psql.Update(submissionItemsTable).
		SetMap(map[string]interface{}{
			"file_id":     row.FileID,
			"uploaded_at": row.UploadedAt,
			"updated_at":  row.UpdatedAt,
		}).
		Where(sq.Eq{"id": it.ID, "deleted_at": nil})
	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return rpp.Item{}, errors.Wrap(err, "updating item")
	}
	if n == 0 {
		return rpp.Item{}, rpp.ErrItemNotFound
	}
	return it, nil
}

func (r *rppRepository) DeleteSubmission(ctx context.Context, id string, exec ...core.DBExecutor) error {
	e := r.getExec(exec)
	now := core.Now()
	b := psql.Update(submissionsTable).
		Set("deleted_at", now).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	n, err := execute(ctx, e, b)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if n == 0 {
		return rpp.ErrNotFound
	}
	ib := psql.Update(submissionItemsTable).
		Set("deleted_at", now).
		Where(sq.Eq{"rpp_submission_id": id, "deleted_at": nil})
	if _, err = execute(ctx, e, ib); err != nil {
		return errors.Wrap(err, "deleting items")
	}
	return nil
}
