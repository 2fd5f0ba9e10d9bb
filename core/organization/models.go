package organization

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinerja/core"
)

// Organization is a school. HeadID references its kepala_sekolah.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	HeadID      string    `json:"head_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (o Organization) HasHead() bool { return o.HeadID != "" }

type NewOrganization struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	HeadID      string `json:"head_id" validate:"omitempty,uuid"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	no.Description = core.CleanString(no.Description)
	no.HeadID = core.CleanString(no.HeadID)
	return validate.Struct(no)
}

// UpdateOrganization holds the fields to change; nil fields are left untouched.
// An empty HeadID removes the head.
type UpdateOrganization struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	HeadID      *string `json:"head_id" validate:"omitempty,uuid|len=0"`
}

func (uo *UpdateOrganization) Validate(validate *validator.Validate) error {
	if uo.Name != nil {
		name := core.CleanString(*uo.Name)
		uo.Name = &name
	}
	if uo.HeadID != nil {
		head := core.CleanString(*uo.HeadID)
		uo.HeadID = &head
	}
	return validate.Struct(uo)
}

type QueryFilter struct {
	Search  string `query:"search"`
	HasHead *bool  `query:"has_head"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
