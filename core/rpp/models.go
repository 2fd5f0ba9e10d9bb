package rpp

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinerja/core"
)

// Statuses
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// RPP types; every submission has exactly one item per type.
const (
	TypeHarian   = "harian"   // daily lesson plan
	TypeSemester = "semester" // semester plan
	TypeTahunan  = "tahunan"  // yearly plan
)

var (
	AllStatuses   = []string{StatusDraft, StatusPending, StatusApproved, StatusRejected}
	RequiredTypes = []string{TypeHarian, TypeSemester, TypeTahunan}
)

// Submission is the per teacher, per period container of the RPP items.
// TeacherName and OrganizationID are read from the teacher and never written.
type Submission struct {
	ID             string    `json:"id"`
	TeacherID      string    `json:"teacher_id"`
	PeriodID       string    `json:"period_id"`
	Status         string    `json:"status"`
	ReviewerID     string    `json:"reviewer_id,omitempty"`
	ReviewNotes    string    `json:"review_notes,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"` // UTC
	ReviewedAt     time.Time `json:"reviewed_at"`  // UTC
	CreatedAt      time.Time `json:"created_at"`   // UTC
	UpdatedAt      time.Time `json:"updated_at"`   // UTC
	TeacherName    string    `json:"teacher_name,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

type Item struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacher_id"`
	PeriodID     string    `json:"period_id"`
	SubmissionID string    `json:"rpp_submission_id"`
	Type         string    `json:"rpp_type"`
	FileID       string    `json:"file_id,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"` // UTC
	CreatedAt    time.Time `json:"created_at"`  // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC
}

func (i Item) IsUploaded() bool { return i.FileID != "" }

// Detail is a submission with its items and derived progress.
type Detail struct {
	Submission
	Items                []Item  `json:"items"`
	CompletionPercentage float64 `json:"completion_percentage"`
	CanBeSubmitted       bool    `json:"can_be_submitted"`
}

func newDetail(s Submission, items []Item) Detail {
	return Detail{
		Submission:           s,
		Items:                items,
		CompletionPercentage: CompletionPercentage(items),
		CanBeSubmitted:       CanBeSubmitted(s, items),
	}
}

type Upload struct {
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"` // defaults to the caller
	PeriodID  string `json:"period_id" validate:"required,uuid"`
	Type      string `json:"rpp_type" validate:"required,rpptype"`
	FileID    string `json:"file_id" validate:"required,max=255"`
}

func (u *Upload) Validate(validate *validator.Validate) error {
	u.TeacherID = core.CleanString(u.TeacherID)
	u.PeriodID = core.CleanString(u.PeriodID)
	u.Type = core.CleanString(u.Type, true /* lower */)
	u.FileID = core.CleanString(u.FileID)
	return validate.Struct(u)
}

type Review struct {
	Decision string `json:"decision" validate:"required,decision"`
	Notes    string `json:"notes" validate:"omitempty,max=5000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Decision = core.CleanString(r.Decision, true /* lower */)
	r.Notes = core.CleanString(r.Notes)
	if err := validate.Struct(r); err != nil {
		return err
	}
	return checkReviewNotes(r.Decision, r.Notes)
}

// BulkReview applies one decision to several submissions.
type BulkReview struct {
	SubmissionIDs []string `json:"submission_ids" validate:"required,min=1,dive,uuid"`
	Review
}

func (br *BulkReview) Validate(validate *validator.Validate) error {
	for i, id := range br.SubmissionIDs {
		br.SubmissionIDs[i] = core.CleanString(id)
	}
	br.Decision = core.CleanString(br.Decision, true /* lower */)
	br.Notes = core.CleanString(br.Notes)
	if err := validate.Struct(br); err != nil {
		return err
	}
	return checkReviewNotes(br.Decision, br.Notes)
}

type BulkReviewResult struct {
	Reviewed int      `json:"reviewed"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

type NewSubmission struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
	PeriodID  string `json:"period_id" validate:"required,uuid"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error { return validate.Struct(ns) }

type QueryFilter struct {
	TeacherID      string `query:"teacher_id"`
	PeriodID       string `query:"period_id"`
	Status         string `query:"status"`
	ReviewerID     string `query:"reviewer_id"`
	OrganizationID string `query:"organization_id"`
	TeacherRole    string `query:"-"` // submissions of teachers holding this role
}

func (qf *QueryFilter) Clean() {
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.PeriodID = core.CleanString(qf.PeriodID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.ReviewerID = core.CleanString(qf.ReviewerID)
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
}

type ItemFilter struct {
	SubmissionIDs []string
	TeacherID     string
	PeriodID      string
	Type          string
}

type Stats struct {
	Total          int     `json:"total"`
	Draft          int     `json:"draft"`
	Pending        int     `json:"pending"`
	Approved       int     `json:"approved"`
	Rejected       int     `json:"rejected"`
	CompletionRate float64 `json:"completion_rate"` // reviewed share, in percent
}

type GenerateResult struct {
	Generated          int      `json:"generated"`
	Skipped            int      `json:"skipped"`
	Total              int      `json:"total"`
	ItemsPerSubmission int      `json:"items_per_submission"`
	ItemsCreated       int      `json:"items_created"`
	Errors             []string `json:"errors"`
}
