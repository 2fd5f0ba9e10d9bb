package aspect

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
)

// Score bounds given to aspects created without explicit ones.
const (
	DefaultMinScore = 1
	DefaultMaxScore = 4
)

var (
	minWeight = decimal.Zero
	maxWeight = decimal.NewFromInt(100)
)

// Aspect is a scored evaluation dimension. Aspects are shared by every organization.
type Aspect struct {
	ID            string          `json:"id"`
	Name          string          `json:"aspect_name"`
	Category      string          `json:"category"`
	CategoryOrder int             `json:"category_order"` // ranks categories in the catalog
	Description   string          `json:"description,omitempty"`
	Weight        decimal.Decimal `json:"weight"` // percentage
	MinScore      int             `json:"min_score"`
	MaxScore      int             `json:"max_score"`
	DisplayOrder  int             `json:"display_order"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

// check validates the invariants shared by creates and updates.
func (a Aspect) check() error {
	var flds []core.FieldError
	if a.Weight.LessThan(minWeight) || a.Weight.GreaterThan(maxWeight) {
		flds = append(flds, core.FieldError{Field: "weight", Error: "weight must be between 0 and 100"})
	}
	if !a.Weight.Equal(a.Weight.Round(2)) {
		flds = append(flds, core.FieldError{Field: "weight", Error: "weight must have at most 2 decimal places"})
	}
	if a.MinScore >= a.MaxScore {
		flds = append(flds, core.FieldError{Field: "max_score", Error: "max score must be greater than min score"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type NewAspect struct {
	Name          string          `json:"aspect_name" validate:"required,max=255"`
	Category      string          `json:"category" validate:"required,max=100"`
	CategoryOrder int             `json:"category_order" validate:"min=0"`
	Description   string          `json:"description" validate:"omitempty,max=2000"`
	Weight        decimal.Decimal `json:"weight"`
	MinScore      *int            `json:"min_score" validate:"omitempty,min=0"`
	MaxScore      *int            `json:"max_score" validate:"omitempty,min=1"`
	DisplayOrder  int             `json:"display_order" validate:"min=0"`
	IsActive      *bool           `json:"is_active"`
}

func (na *NewAspect) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Category = core.CleanString(na.Category)
	na.Description = core.CleanString(na.Description)
	if err := validate.Struct(na); err != nil {
		return err
	}
	return na.aspect().check()
}

func (na NewAspect) aspect() Aspect {
	a := Aspect{
		Name:          na.Name,
		Category:      na.Category,
		CategoryOrder: na.CategoryOrder,
		Description:   na.Description,
		Weight:        na.Weight,
		MinScore:      DefaultMinScore,
		MaxScore:      DefaultMaxScore,
		DisplayOrder:  na.DisplayOrder,
		IsActive:      true,
	}
	if na.MinScore != nil {
		a.MinScore = *na.MinScore
	}
	if na.MaxScore != nil {
		a.MaxScore = *na.MaxScore
	}
	if na.IsActive != nil {
		a.IsActive = *na.IsActive
	}
	return a
}

// UpdateAspect holds the fields to change; nil fields are left untouched.
type UpdateAspect struct {
	Name          *string          `json:"aspect_name" validate:"omitempty,min=1,max=255"`
	Category      *string          `json:"category" validate:"omitempty,min=1,max=100"`
	CategoryOrder *int             `json:"category_order" validate:"omitempty,min=0"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
	Weight        *decimal.Decimal `json:"weight"`
	MinScore      *int             `json:"min_score" validate:"omitempty,min=0"`
	MaxScore      *int             `json:"max_score" validate:"omitempty,min=1"`
	DisplayOrder  *int             `json:"display_order" validate:"omitempty,min=0"`
}

func (ua *UpdateAspect) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

func (ua UpdateAspect) apply(a Aspect) (Aspect, error) {
	if ua.Name != nil {
		a.Name = core.CleanString(*ua.Name)
	}
	if ua.Category != nil {
		a.Category = core.CleanString(*ua.Category)
	}
	if ua.CategoryOrder != nil {
		a.CategoryOrder = *ua.CategoryOrder
	}
	if ua.Description != nil {
		a.Description = core.CleanString(*ua.Description)
	}
	if ua.Weight != nil {
		a.Weight = *ua.Weight
	}
	if ua.MinScore != nil {
		a.MinScore = *ua.MinScore
	}
	if ua.MaxScore != nil {
		a.MaxScore = *ua.MaxScore
	}
	if ua.DisplayOrder != nil {
		a.DisplayOrder = *ua.DisplayOrder
	}
	if err := a.check(); err != nil {
		return Aspect{}, err
	}
	return a, nil
}

type QueryFilter struct {
	Category string   `query:"category"`
	IsActive *bool    `query:"is_active"`
	IDs      []string `query:"id"`

	// WithDeleted includes the soft deleted aspects, which past evaluation items still refer to.
	WithDeleted bool `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category)
}
