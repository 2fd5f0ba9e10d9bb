package evaluation

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
)

// Evaluation is the per teacher, per period assessment made by an evaluator.
// The aggregates are derived from the items by Aggregate and never set directly.
// TeacherName and OrganizationID are read from the teacher and never written.
type Evaluation struct {
	ID             string          `json:"id"`
	TeacherID      string          `json:"teacher_id"`
	EvaluatorID    string          `json:"evaluator_id"`
	PeriodID       string          `json:"period_id"`
	FinalNotes     string          `json:"final_notes,omitempty"`
	TotalScore     int             `json:"total_score"`
	AverageScore   decimal.Decimal `json:"average_score"`
	FinalGrade     decimal.Decimal `json:"final_grade"` // 0-100
	LastUpdated    time.Time       `json:"last_updated"` // UTC
	CreatedAt      time.Time       `json:"created_at"`   // UTC
	UpdatedAt      time.Time       `json:"updated_at"`   // UTC
	TeacherName    string          `json:"teacher_name,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
}

func (ev *Evaluation) setAggregates(agg Aggregates) {
	ev.TotalScore = agg.TotalScore
	ev.AverageScore = agg.AverageScore
	ev.FinalGrade = agg.FinalGrade
}

// Item grades one aspect. Score always derives from Grade.
type Item struct {
	ID           string    `json:"id"`
	EvaluationID string    `json:"teacher_evaluation_id"`
	AspectID     string    `json:"aspect_id"`
	Grade        string    `json:"grade"`
	Score        int       `json:"score"`
	Notes        string    `json:"notes,omitempty"`
	EvaluatedAt  time.Time `json:"evaluated_at"` // UTC
	CreatedAt    time.Time `json:"created_at"`   // UTC
	UpdatedAt    time.Time `json:"updated_at"`   // UTC
}

// setGrade is the only way an item grade changes.
func (it *Item) setGrade(grade string) error {
	score, err := ScoreForGrade(grade)
	if err != nil {
		return err
	}
	it.Grade = grade
	it.Score = score
	return nil
}

type Detail struct {
	Evaluation
	Items []Item `json:"items"`
}

type NewEvaluation struct {
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
	EvaluatorID string `json:"evaluator_id" validate:"omitempty,uuid"` // defaults to the caller
	PeriodID    string `json:"period_id" validate:"required,uuid"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.TeacherID = core.CleanString(ne.TeacherID)
	ne.EvaluatorID = core.CleanString(ne.EvaluatorID)
	ne.PeriodID = core.CleanString(ne.PeriodID)
	return validate.Struct(ne)
}

type NewItem struct {
	AspectID string `json:"aspect_id" validate:"required,uuid"`
	Grade    string `json:"grade" validate:"required,grade"`
	Notes    string `json:"notes" validate:"omitempty,max=5000"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Grade = core.CleanString(ni.Grade)
	ni.Notes = core.CleanString(ni.Notes)
	return validate.Struct(ni)
}

// UpdateItem holds the fields to change; nil fields are left untouched.
type UpdateItem struct {
	Grade *string `json:"grade" validate:"omitempty,grade"`
	Notes *string `json:"notes" validate:"omitempty,max=5000"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error { return validate.Struct(ui) }

func (ui UpdateItem) apply(it Item, now time.Time) (Item, error) {
	if ui.Grade != nil {
		if err := it.setGrade(core.CleanString(*ui.Grade)); err != nil {
			return Item{}, err
		}
	}
	if ui.Notes != nil {
		it.Notes = core.CleanString(*ui.Notes)
	}
	it.EvaluatedAt = now
	it.UpdatedAt = now
	return it, nil
}

// ItemUpdate is one change of a bulk update.
type ItemUpdate struct {
	ItemID string `json:"item_id" validate:"required,uuid"`
	UpdateItem
}

type BulkUpdate struct {
	Items []ItemUpdate `json:"items" validate:"required,min=1,dive"`
}

func (bu *BulkUpdate) Validate(validate *validator.Validate) error { return validate.Struct(bu) }

type Finalize struct {
	FinalNotes string `json:"final_notes" validate:"omitempty,max=5000"`
}

func (f *Finalize) Validate(validate *validator.Validate) error {
	f.FinalNotes = core.CleanString(f.FinalNotes)
	return validate.Struct(f)
}

type QueryFilter struct {
	TeacherID      string `query:"teacher_id"`
	EvaluatorID    string `query:"evaluator_id"`
	PeriodID       string `query:"period_id"`
	OrganizationID string `query:"organization_id"`
}

func (qf *QueryFilter) Clean() {
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.EvaluatorID = core.CleanString(qf.EvaluatorID)
	qf.PeriodID = core.CleanString(qf.PeriodID)
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
}

type AssignResult struct {
	Created      int      `json:"created"`
	Skipped      int      `json:"skipped"`
	ItemsCreated int      `json:"items_created"`
	Errors       []string `json:"errors"`
}

type Stats struct {
	Total             int            `json:"total"`
	AverageFinalGrade float64        `json:"average_final_grade"`
	GradeDistribution map[string]int `json:"grade_distribution"` // by LetterBand
}

// Result is the on demand rollup of an evaluation.
type Result struct {
	EvaluationID     string          `json:"evaluation_id"`
	TeacherID        string          `json:"teacher_id"`
	EvaluatorID      string          `json:"evaluator_id"`
	PeriodID         string          `json:"period_id"`
	PeriodName       string          `json:"period_name"`
	TotalScore       int             `json:"total_score"`
	MaxScore         int             `json:"max_score"`
	ScorePercentage  decimal.Decimal `json:"score_percentage"`
	PerformanceValue decimal.Decimal `json:"performance_value"`
	GradeCategory    string          `json:"grade_category"`
	FinalGrade       decimal.Decimal `json:"final_grade"`
	FinalNotes       string          `json:"final_notes,omitempty"`
}
