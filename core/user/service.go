package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when a live user other than excludedIDs
		// already has username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  *tokenGenerator
	}
)

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"name", "username", "email", "is_active", "created_at", "last_login"}

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		OrganizationID: nu.OrganizationID,
		Name:           nu.Name,
		Username:       nu.Username,
		Email:          nu.Email,
		NIP:            nu.NIP,
		IsActive:       true,
		Roles:          nu.Roles,
		Profile:        nu.Profile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrdering(ordering, OrderingFields...))
}

// ActiveTeachers returns the active users holding one of roles, optionally limited to an organization.
func (svc *Service) ActiveTeachers(ctx context.Context, orgID string, roles ...string) ([]User, error) {
	if len(roles) == 0 {
		roles = TeacherRoles
	}
	active := true
	filter := &QueryFilter{Roles: roles, IsActive: &active, OrganizationID: orgID}
	return svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: true}})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.OrganizationID != nil {
		usr.OrganizationID = *uu.OrganizationID
	}
	if uu.NIP != nil {
		usr.NIP = *uu.NIP
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Profile != nil {
		usr.Profile = *uu.Profile
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword replaces the password of usr without running the password policy (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids)
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive || usr.Email == "" {
		return ErrNotFound
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.make(usr),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "token", Error: msg})
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid(errInvalidToken.Error())
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid(errInvalidToken.Error())
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := svc.tokens.verify(usr, data.Token); err != nil {
		return invalid(err.Error())
	}

	if _, err := svc.SetPassword(ctx, usr, data.Password); err != nil {
		return errors.Wrap(err, fmt.Sprintf("resetting password of user %s", usr.ID))
	}
	return nil
}
