package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/user"
)

const usersTable = "users"

var userColumns = []string{
	"users.id", "users.organization_id", "users.name", "users.username", "users.email", "users.nip",
	"users.is_active", "users.roles", "users.profile", "users.password_hash", "users.last_login",
	"users.created_at", "users.updated_at",
}

type userRow struct {
	ID             string         `db:"id"`
	OrganizationID null.String    `db:"organization_id"`
	Name           string         `db:"name"`
	Username       null.String    `db:"username"`
	Email          null.String    `db:"email"`
	NIP            null.String    `db:"nip"`
	IsActive       bool           `db:"is_active"`
	Roles          pq.StringArray `db:"roles"`
	Profile        null.JSON      `db:"profile"`
	PasswordHash   []byte         `db:"password_hash"`
	LastLogin      null.Time      `db:"last_login"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func toUserRow(usr user.User) (userRow, error) {
	row := userRow{
		ID:             usr.ID,
		OrganizationID: null.NewString(usr.OrganizationID, usr.OrganizationID != ""),
		Name:           usr.Name,
		Username:       null.NewString(usr.Username, usr.Username != ""),
		Email:          null.NewString(usr.Email, usr.Email != ""),
		NIP:            null.NewString(usr.NIP, usr.NIP != ""),
		IsActive:       usr.IsActive,
		Roles:          usr.Roles,
		PasswordHash:   usr.PasswordHash,
		LastLogin:      null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
	}
	if row.Roles == nil {
		row.Roles = pq.StringArray{}
	}
	if !usr.Profile.IsZero() {
		profile, err := json.Marshal(usr.Profile)
		if err != nil {
			return userRow{}, errors.Wrap(err, "encoding profile")
		}
		row.Profile = null.JSONFrom(profile)
	}
	return row, nil
}

func (row userRow) user() (user.User, error) {
	usr := user.User{
		ID:             row.ID,
		OrganizationID: row.OrganizationID.String,
		Name:           row.Name,
		Username:       row.Username.String,
		Email:          row.Email.String,
		NIP:            row.NIP.String,
		IsActive:       row.IsActive,
		Roles:          row.Roles,
		PasswordHash:   row.PasswordHash,
		LastLogin:      row.LastLogin.Time,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.Profile.Valid {
		if err := row.Profile.Unmarshal(&usr.Profile); err != nil {
			return user.User{}, errors.Wrap(err, "decoding profile")
		}
	}
	return usr, nil
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repo{db: db}}
}

func (r *userRepository) selectUsers() sq.SelectBuilder {
	return live(psql.Select(userColumns...).From(usersTable), usersTable)
}

// trapUniqueErr maps the username and email unique violations.
func (r *userRepository) trapUniqueErr(err error, msg string) error {
	switch name, _ := uniqueConstraint(err); name {
	case "users_username_uniq":
		return core.NewConflictError(user.ErrUsernameExists.Error())
	case "users_email_uniq":
		return core.NewConflictError(user.ErrEmailExists.Error())
	}
	return errors.Wrap(err, msg)
}

func (r *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs []string, exec ...core.DBExecutor) error {
	match := sq.Or{}
	if username != "" {
		match = append(match, sq.Eq{"users.username": username})
	}
	if email != "" {
		match = append(match, sq.Eq{"users.email": email})
	}
	if len(match) == 0 {
		return nil
	}
	b := r.selectUsers().Where(match)
	if len(excludedIDs) > 0 {
		b = b.Where(sq.NotEq{"users.id": excludedIDs})
	}

	var rows []userRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (r *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	b := psql.Insert(usersTable).
		Columns("id", "organization_id", "name", "username", "email", "nip", "is_active", "roles", "profile",
			"password_hash", "last_login", "created_at", "updated_at").
		Values(row.ID, row.OrganizationID, row.Name, row.Username, row.Email, row.NIP, row.IsActive, row.Roles,
			row.Profile, row.PasswordHash, row.LastLogin, row.CreatedAt, row.UpdatedAt)
	if _, err = execute(ctx, r.getExec(exec), b); err != nil {
		return user.User{}, r.trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (r *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	b := r.selectUsers()
	switch {
	case filter.ID != "":
		b = b.Where(sq.Eq{"users.id": filter.ID})
	case filter.UsernameOrEmail != "":
		b = b.Where(sq.Or{
			sq.Eq{"users.username": filter.UsernameOrEmail},
			sq.Eq{"users.email": filter.UsernameOrEmail},
		})
	default:
		return user.User{}, user.ErrNotFound
	}

	row, err := selectOne[userRow](ctx, r.getExec(exec), b.Limit(1), user.ErrNotFound)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.user()
}

func (r *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	b := r.selectUsers()
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			b = b.Where(sq.Or{
				sq.ILike{"users.name": val},
				sq.ILike{"users.username": val},
				sq.ILike{"users.email": val},
			})
		}
		// users holding any of the roles
		if len(filter.Roles) > 0 {
			b = b.Where("users.roles && ?", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"users.is_active": *filter.IsActive})
		}
		if filter.OrganizationID != "" {
			b = b.Where(sq.Eq{"users.organization_id": filter.OrganizationID})
		}
		if filter.IDs != nil {
			b = b.Where(sq.Eq{"users.id": filter.IDs})
		}
		if !filter.CreatedFrom.IsZero() {
			b = b.Where(sq.GtOrEq{"users.created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			b = b.Where(sq.LtOrEq{"users.created_at": filter.CreatedTo.UTC()})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	b = orderBy(b, ordering, usersTable)

	var rows []userRow
	if err := selectAll(ctx, r.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := row.user()
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (r *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	b := psql.Update(usersTable).
		SetMap(map[string]interface{}{
			"organization_id": row.OrganizationID,
			"name":            row.Name,
			"username":        row.Username,
			"email":           row.Email,
			"nip":             row.NIP,
			"is_active":       row.IsActive,
			"roles":           row.Roles,
			"profile":         row.Profile,
			"password_hash":   row.PasswordHash,
			"last_login":      row.LastLogin,
			"updated_at":      row.UpdatedAt,
		}).
		Where(sq.Eq{"id": usr.ID, "deleted_at": nil})

	n, err := execute(ctx, r.getExec(exec), b)
	if err != nil {
		return user.User{}, r.trapUniqueErr(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (r *userRepository) DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	b := psql.Update(usersTable).
		Set("deleted_at", core.Now()).
		Where(sq.Eq{"id": ids, "deleted_at": nil})
	if _, err := execute(ctx, r.getExec(exec), b); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
