package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kinerja/core"
)

// Roles
const (
	RoleAdmin         = "admin"
	RoleKepalaSekolah = "kepala_sekolah" // school head (principal)
	RoleGuru          = "guru"           // teacher
)

var (
	AllRoles = []string{RoleAdmin, RoleKepalaSekolah, RoleGuru}

	// TeacherRoles are the roles whose holders get RPP submissions and evaluations.
	TeacherRoles = []string{RoleKepalaSekolah, RoleGuru}

	rolePriorities = map[string]int{
		RoleAdmin:         30,
		RoleKepalaSekolah: 20,
		RoleGuru:          10,
	}

	Roles = []Role{
		{Name: "Guru", Value: RoleGuru},
		{Name: "Kepala Sekolah", Value: RoleKepalaSekolah},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile holds the optional personal details of a user.
// Subject only makes sense for teachers (guru).
type Profile struct {
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address  string `json:"address,omitempty" validate:"omitempty,max=255"`
	Position string `json:"position,omitempty" validate:"omitempty,max=100"`
	Subject  string `json:"subject,omitempty" validate:"omitempty,max=100"`
}

func (p Profile) IsZero() bool { return p == Profile{} }

type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	NIP            string    `json:"nip,omitempty"` // civil servant ID
	IsActive       bool      `json:"is_active"`
	Roles          []string  `json:"roles"`
	Profile        Profile   `json:"profile"`
	PasswordHash   []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
	LastLogin      time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasRole(role string) bool {
	return hasRole(u.Roles, role)
}

func (u User) IsAdmin() bool         { return u.HasRole(RoleAdmin) }
func (u User) IsKepalaSekolah() bool { return u.HasRole(RoleKepalaSekolah) }
func (u User) IsGuru() bool          { return u.HasRole(RoleGuru) }

// Identity returns the caller context of u.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Roles: u.Roles, OrganizationID: u.OrganizationID}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	OrganizationID  string   `json:"organization_id" validate:"omitempty,uuid"`
	Name            string   `json:"name" validate:"required,max=255"`
	Username        string   `json:"username" validate:"omitempty,min=4,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	NIP             string   `json:"nip" validate:"omitempty,numeric,max=30"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"required,allroles"`
	Profile         Profile  `json:"profile"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.NIP = core.CleanString(nu.NIP)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	OrganizationID  *string  `json:"organization_id" validate:"omitempty,uuid"`
	Name            string   `json:"name" validate:"omitempty,max=255"`
	Username        string   `json:"username" validate:"omitempty,min=4,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	NIP             *string  `json:"nip" validate:"omitempty,numeric,max=30"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Profile         *Profile `json:"profile"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Username, uu.Email, origUsr.ID)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single user. Exactly one field should be set.
type GetFilter struct {
	ID              string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search         string    `query:"search"`
	Roles          []string  `query:"role"`
	IsActive       *bool     `query:"is_active"`
	OrganizationID string    `query:"organization_id"`
	IDs            []string  `query:"id"`
	CreatedFrom    time.Time `query:"created_from"`
	CreatedTo      time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.OrganizationID == "" &&
		qf.IDs == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
}
