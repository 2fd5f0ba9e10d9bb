package period

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinerja/core"
)

// Semesters
const (
	SemesterGanjil = "Ganjil" // odd, starts in July
	SemesterGenap  = "Genap"  // even, starts in January
)

const dateLayout = "2006-01-02"

// Period is an academic year/semester window. Dates are UTC midnights, EndDate is inclusive.
type Period struct {
	ID           string
	AcademicYear string
	Semester     string
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p Period) Name() string {
	return p.AcademicYear + " - " + p.Semester
}

// IsCurrent reports whether today falls within the period.
func (p Period) IsCurrent(today time.Time) bool {
	d := core.Date(today)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

type periodJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AcademicYear string    `json:"academic_year"`
	Semester     string    `json:"semester"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	IsActive     bool      `json:"is_active"`
	IsCurrent    bool      `json:"is_current"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		ID:           p.ID,
		Name:         p.Name(),
		AcademicYear: p.AcademicYear,
		Semester:     p.Semester,
		StartDate:    p.StartDate.Format(dateLayout),
		EndDate:      p.EndDate.Format(dateLayout),
		IsActive:     p.IsActive,
		IsCurrent:    p.IsCurrent(time.Now()),
		Description:  p.Description,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var pj periodJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, pj.StartDate)
	if err != nil {
		return err
	}
	end, err := time.Parse(dateLayout, pj.EndDate)
	if err != nil {
		return err
	}
	*p = Period{
		ID:           pj.ID,
		AcademicYear: pj.AcademicYear,
		Semester:     pj.Semester,
		StartDate:    start,
		EndDate:      end,
		IsActive:     pj.IsActive,
		Description:  pj.Description,
		CreatedAt:    pj.CreatedAt,
		UpdatedAt:    pj.UpdatedAt,
	}
	return nil
}

func datesError() error {
	return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must be after start date"})
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s) // format already validated
	return core.Date(t)
}

type NewPeriod struct {
	AcademicYear string `json:"academic_year" validate:"required,academic_year"`
	Semester     string `json:"semester" validate:"required,oneof=Ganjil Genap"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsActive     bool   `json:"is_active"`
	Description  string `json:"description" validate:"omitempty,max=2000"`

	start, end time.Time
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	np.AcademicYear = core.CleanString(np.AcademicYear)
	np.Semester = core.CleanString(np.Semester)
	np.Description = core.CleanString(np.Description)

	if err := validate.Struct(np); err != nil {
		return err
	}
	np.start, np.end = parseDate(np.StartDate), parseDate(np.EndDate)
	if !np.start.Before(np.end) {
		return datesError()
	}
	return nil
}

// UpdatePeriod holds the fields to change; nil fields are left untouched.
// Activation goes through Service.Activate and Service.Deactivate.
type UpdatePeriod struct {
	AcademicYear *string `json:"academic_year" validate:"omitempty,academic_year"`
	Semester     *string `json:"semester" validate:"omitempty,oneof=Ganjil Genap"`
	StartDate    *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

func (up *UpdatePeriod) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

// apply changes p and re-validates its dates.
func (up UpdatePeriod) apply(p Period) (Period, error) {
	if up.AcademicYear != nil {
		p.AcademicYear = core.CleanString(*up.AcademicYear)
	}
	if up.Semester != nil {
		p.Semester = core.CleanString(*up.Semester)
	}
	if up.StartDate != nil {
		p.StartDate = parseDate(*up.StartDate)
	}
	if up.EndDate != nil {
		p.EndDate = parseDate(*up.EndDate)
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	if !p.StartDate.Before(p.EndDate) {
		return Period{}, datesError()
	}
	return p, nil
}

type QueryFilter struct {
	IsActive     *bool     `query:"is_active"`
	AcademicYear string    `query:"academic_year"`
	Semester     string    `query:"semester"`
	Date         time.Time `query:"-"` // periods including this day
}

func (qf *QueryFilter) Clean() {
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.Semester = core.CleanString(qf.Semester)
	if !qf.Date.IsZero() {
		qf.Date = core.Date(qf.Date)
	}
}
