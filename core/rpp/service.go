package rpp

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
)

const metricsEntity = "rpp_submission"

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("RPP submission")
	ErrItemNotFound   = core.NewNotFoundError("RPP submission item")
	ErrExists         = core.NewConflictError("an RPP submission already exists for this teacher and period")
	ErrStatusChanged  = core.NewConflictError("RPP submission status changed concurrently")
	ErrUnderReview    = core.NewConflictError("RPP files cannot change while the submission is pending or approved")
	ErrNotAllUploaded = core.NewValidationError(nil, core.FieldError{Field: "items", Error: "not all RPP types uploaded"})
)

// OrderingFields are the fields submissions can be ordered by.
var OrderingFields = []string{"status", "submitted_at", "reviewed_at", "created_at", "updated_at"}

type (
	Repository interface {
		// CreateSubmission inserts s and its items. It returns ErrExists when a live submission
		// already exists for the teacher and period, without failing the transaction.
		CreateSubmission(ctx context.Context, s Submission, items []Item, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// LockSubmission reads the submission and locks its row until the end of the transaction.
		LockSubmission(ctx context.Context, id string, exec core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Submission, error)
		// UpdateSubmissionStatus writes the status and review fields of s only if the stored status
		// still is expected. It returns ErrStatusChanged otherwise.
		UpdateSubmissionStatus(ctx context.Context, s Submission, expected string, exec ...core.DBExecutor) (Submission, error)
		// CountByStatus returns {status: count} of the submissions matching filter.
		CountByStatus(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (map[string]int, error)
		QueryItems(ctx context.Context, filter ItemFilter, exec ...core.DBExecutor) ([]Item, error)
		UpdateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
		// DeleteSubmission soft deletes the submission and its items.
		DeleteSubmission(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		users    user.Repository
		periods  period.Repository
		notifier *notifier
		recorder core.Recorder
		logger   core.Logger
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	users user.Repository,
	periods period.Repository,
	mailSvc core.EmailService,
	recorder core.Recorder,
	logger core.Logger,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		users:    users,
		periods:  periods,
		notifier: &notifier{users: users, periods: periods, mailSvc: mailSvc, logger: logger},
		recorder: recorder,
		logger:   logger,
	}
}

func newItems(s Submission) []Item {
	items := make([]Item, 0, len(RequiredTypes))
	for _, typ := range RequiredTypes {
		items = append(items, Item{
			TeacherID: s.TeacherID,
			PeriodID:  s.PeriodID,
			Type:      typ,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return items
}

func (svc *Service) create(ctx context.Context, teacherID, periodID string, exec core.DBExecutor) (Submission, error) {
	now := core.Now()
	s := Submission{
		TeacherID: teacherID,
		PeriodID:  periodID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSubmission(ctx, s, newItems(s), exec)
}

// CreateSubmission creates the draft submission of a teacher for a period, with its items.
func (svc *Service) CreateSubmission(ctx context.Context, ns NewSubmission) (Detail, error) {
	var d Detail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		teacher, err := svc.users.GetUser(ctx, user.GetFilter{ID: ns.TeacherID}, exec)
		if err != nil {
			return err
		}
		if !teacher.IsGuru() && !teacher.IsKepalaSekolah() {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "user is not a teacher"})
		}
		if _, err = svc.periods.GetPeriod(ctx, ns.PeriodID, exec); err != nil {
			return err
		}

		s, err := svc.create(ctx, teacher.ID, ns.PeriodID, exec)
		if err != nil {
			return err
		}
		items, err := svc.repo.QueryItems(ctx, ItemFilter{SubmissionIDs: []string{s.ID}}, exec)
		if err != nil {
			return errors.Wrap(err, "querying items")
		}
		d = newDetail(s, items)
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

// GenerateForPeriod creates a draft submission for every active teacher of the period that has none.
// Each submission is created in its own transaction; failures are reported, not returned.
func (svc *Service) GenerateForPeriod(ctx context.Context, periodID string) (GenerateResult, error) {
	res := GenerateResult{ItemsPerSubmission: len(RequiredTypes), Errors: []string{}}

	if _, err := svc.periods.GetPeriod(ctx, periodID); err != nil {
		return res, err
	}

	active := true
	teachers, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: user.TeacherRoles, IsActive: &active}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying teachers")
	}
	res.Total = len(teachers)

	existing, err := svc.repo.QuerySubmissions(ctx, &QueryFilter{PeriodID: periodID}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying existing submissions")
	}
	covered := make(map[string]bool, len(existing))
	for _, s := range existing {
		covered[s.TeacherID] = true
	}

	for _, teacher := range teachers {
		if covered[teacher.ID] {
			res.Skipped++
			continue
		}
		err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
			_, err := svc.create(ctx, teacher.ID, periodID, exec)
			return err
		})
		switch {
		case err == nil:
			res.Generated++
			res.ItemsCreated += len(RequiredTypes)
		case errors.Cause(err) == ErrExists: // generated concurrently
			res.Skipped++
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("teacher %s: %v", teacher.ID, err))
			svc.logger.Error(fmt.Sprintf("generating RPP submission of teacher %s: %v", teacher.ID, err), err)
		}
	}

	svc.recorder.RecordOutcome("rpp_generate", "generated", res.Generated)
	svc.recorder.RecordOutcome("rpp_generate", "skipped", res.Skipped)
	svc.recorder.RecordOutcome("rpp_generate", "failed", len(res.Errors))
	return res, nil
}

// UploadFile attaches fileID to the item of the given RPP type.
// Only the teacher or an admin may upload, and only while the submission is a draft or rejected.
func (svc *Service) UploadFile(ctx context.Context, id user.Identity, up Upload) (Item, error) {
	teacherID := up.TeacherID
	if teacherID == "" {
		teacherID = id.UserID
	}
	if teacherID != id.UserID && !id.IsAdmin() {
		return Item{}, core.NewAuthorizationError("only the teacher can upload their RPP files")
	}
	if !isRequiredType(up.Type) {
		return Item{}, core.NewValidationError(nil, core.FieldError{Field: "rpp_type", Error: rppTypeText})
	}
	if up.FileID == "" {
		return Item{}, core.NewValidationError(nil, core.FieldError{Field: "file_id", Error: "this field is required"})
	}

	var it Item
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		items, err := svc.repo.QueryItems(ctx, ItemFilter{TeacherID: teacherID, PeriodID: up.PeriodID, Type: up.Type}, exec)
		if err != nil {
			return errors.Wrap(err, "querying items")
		}
		if len(items) == 0 {
			return ErrItemNotFound
		}
		it = items[0]

		s, err := svc.repo.LockSubmission(ctx, it.SubmissionID, exec)
		if err != nil {
			return err
		}
		if s.Status == StatusPending || s.Status == StatusApproved {
			return ErrUnderReview
		}

		now := core.Now()
		it.FileID = up.FileID
		it.UploadedAt = now
		it.UpdatedAt = now
		it, err = svc.repo.UpdateItem(ctx, it, exec)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// Submit sends the caller's submission for review.
func (svc *Service) Submit(ctx context.Context, id user.Identity, submissionID string) (Detail, error) {
	var (
		d    Detail
		from string
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.repo.LockSubmission(ctx, submissionID, exec)
		if err != nil {
			return err
		}
		if s.TeacherID != id.UserID {
			return core.NewAuthorizationError("only the teacher can submit their RPP submission")
		}
		to, err := Transition(s.Status, EventSubmit)
		if err != nil {
			return err
		}
		items, err := svc.repo.QueryItems(ctx, ItemFilter{SubmissionIDs: []string{s.ID}}, exec)
		if err != nil {
			return errors.Wrap(err, "querying items")
		}
		if !CanBeSubmitted(s, items) {
			return ErrNotAllUploaded
		}

		from = s.Status
		now := core.Now()
		s.Status = to
		s.SubmittedAt = now
		s.UpdatedAt = now
		s.ReviewerID = ""
		s.ReviewNotes = ""
		s.ReviewedAt = time.Time{}
		if s, err = svc.repo.UpdateSubmissionStatus(ctx, s, from, exec); err != nil {
			return err
		}
		d = newDetail(s, items)
		return nil
	})
	if err != nil {
		return Detail{}, err
	}

	svc.recorder.RecordTransition(metricsEntity, from, d.Status)
	svc.notifier.submitted(ctx, d.Submission)
	return d, nil
}

// Review applies the reviewer decision to a pending submission.
func (svc *Service) Review(ctx context.Context, id user.Identity, submissionID string, rv Review) (Detail, error) {
	if !isDecision(rv.Decision) {
		return Detail{}, core.NewValidationError(nil, core.FieldError{Field: "decision", Error: decisionText})
	}
	if err := checkReviewNotes(rv.Decision, rv.Notes); err != nil {
		return Detail{}, err
	}

	var (
		d    Detail
		from string
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.repo.LockSubmission(ctx, submissionID, exec)
		if err != nil {
			return err
		}
		teacher, err := svc.users.GetUser(ctx, user.GetFilter{ID: s.TeacherID}, exec)
		if err != nil {
			return errors.Wrap(err, "getting teacher")
		}
		if !CanReview(id, teacher) {
			return core.NewAuthorizationError("not allowed to review this submission")
		}
		to, err := Transition(s.Status, rv.Decision)
		if err != nil {
			return err
		}

		from = s.Status
		now := core.Now()
		s.Status = to
		s.ReviewerID = id.UserID
		s.ReviewNotes = rv.Notes
		s.ReviewedAt = now
		s.UpdatedAt = now
		if s, err = svc.repo.UpdateSubmissionStatus(ctx, s, from, exec); err != nil {
			return err
		}
		items, err := svc.repo.QueryItems(ctx, ItemFilter{SubmissionIDs: []string{s.ID}}, exec)
		if err != nil {
			return errors.Wrap(err, "querying items")
		}
		d = newDetail(s, items)
		return nil
	})
	if err != nil {
		return Detail{}, err
	}

	svc.recorder.RecordTransition(metricsEntity, from, d.Status)
	svc.notifier.reviewed(ctx, d.Submission)
	return d, nil
}

// BulkReview applies the same decision to every submission, each in its own transaction.
// A failed review is counted and reported; it does not stop the others.
func (svc *Service) BulkReview(ctx context.Context, id user.Identity, br BulkReview) (BulkReviewResult, error) {
	res := BulkReviewResult{Errors: []string{}}
	if !isDecision(br.Decision) {
		return res, core.NewValidationError(nil, core.FieldError{Field: "decision", Error: decisionText})
	}
	if err := checkReviewNotes(br.Decision, br.Notes); err != nil {
		return res, err
	}

	for _, submissionID := range br.SubmissionIDs {
		if _, err := svc.Review(ctx, id, submissionID, br.Review); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("submission %s: %v", submissionID, err))
			continue
		}
		res.Reviewed++
	}
	svc.recorder.RecordOutcome("rpp_bulk_review", "reviewed", res.Reviewed)
	svc.recorder.RecordOutcome("rpp_bulk_review", "failed", res.Failed)
	return res, nil
}

// Delete soft deletes the submission with its items.
func (svc *Service) Delete(ctx context.Context, submissionID string) error {
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.LockSubmission(ctx, submissionID, exec); err != nil {
			return err
		}
		return svc.repo.DeleteSubmission(ctx, submissionID, exec)
	})
}

// CanReview reports whether id may review the submissions of teacher:
// admins review the kepala_sekolah, a kepala_sekolah reviews the guru of their organization.
// Nobody reviews themselves.
func CanReview(id user.Identity, teacher user.User) bool {
	if id.UserID != "" && id.UserID == teacher.ID {
		return false
	}
	if id.IsAdmin() && teacher.IsKepalaSekolah() {
		return true
	}
	return id.IsKepalaSekolah() && teacher.IsGuru() && id.HeadsOrganization(teacher.OrganizationID)
}

// canRead reports whether id may see submissions of a teacher of orgID.
func canRead(id user.Identity, teacherID, orgID string) bool {
	return id.IsAdmin() || id.UserID == teacherID || id.HeadsOrganization(orgID)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// Detail returns the submission with its items, if id may read it.
func (svc *Service) Detail(ctx context.Context, id user.Identity, submissionID string) (Detail, error) {
	s, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Detail{}, err
	}
	if !canRead(id, s.TeacherID, s.OrganizationID) {
		return Detail{}, core.NewAuthorizationError("not allowed to read this submission")
	}
	items, err := svc.Items(ctx, s.ID)
	if err != nil {
		return Detail{}, err
	}
	return newDetail(s, items), nil
}

func (svc *Service) Items(ctx context.Context, submissionID string) ([]Item, error) {
	items, err := svc.repo.QueryItems(ctx, ItemFilter{SubmissionIDs: []string{submissionID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying items")
	}
	return items, nil
}

// Scope narrows filter to what id may read.
func Scope(id user.Identity, filter *QueryFilter) *QueryFilter {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case id.IsAdmin():
	case id.IsKepalaSekolah() && id.OrganizationID != "":
		filter.OrganizationID = id.OrganizationID
	default:
		filter.TeacherID = id.UserID
	}
	return filter
}

func (svc *Service) Query(ctx context.Context, id user.Identity, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, Scope(id, filter), core.CleanOrdering(ordering, OrderingFields...))
}

// PendingReviews returns the pending submissions id may review.
func (svc *Service) PendingReviews(ctx context.Context, id user.Identity) ([]Submission, error) {
	filter := &QueryFilter{Status: StatusPending}
	switch {
	case id.IsAdmin():
		filter.TeacherRole = user.RoleKepalaSekolah
	case id.IsKepalaSekolah() && id.OrganizationID != "":
		filter.TeacherRole = user.RoleGuru
		filter.OrganizationID = id.OrganizationID
	default:
		return []Submission{}, nil
	}

	subs, err := svc.repo.QuerySubmissions(ctx, filter, []core.DBOrdering{{Field: "submitted_at", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying pending submissions")
	}
	pending := make([]Submission, 0, len(subs))
	for _, s := range subs {
		if s.TeacherID != id.UserID {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// Stats counts the submissions matching filter by status.
func (svc *Service) Stats(ctx context.Context, filter *QueryFilter) (Stats, error) {
	counts, err := svc.repo.CountByStatus(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting submissions")
	}
	return computeStats(counts), nil
}
