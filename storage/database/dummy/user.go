package dummydb

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/user"
)

var userComparators = comparators[user.User]{
	"name":       func(a, b user.User) int { return strings.Compare(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return strings.Compare(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return compareBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	"last_login": func(a, b user.User) int { return compareTime(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// clash returns the uniqueness error usr would cause, if any.
func (repo *userRepository) clash(username, email string, excludedIDs ...string) error {
	for _, u := range repo.db.users.all() {
		if contains(excludedIDs, u.ID) {
			continue
		}
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && u.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs []string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.clash(username, email, excludedIDs...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.clash(usr.Username, usr.Email); err != nil {
		return user.User{}, core.NewConflictError(err.Error())
	}
	usr.ID = uuid.New().String()
	usr.Roles = slices.Clone(usr.Roles)
	repo.db.users.insert(usr.ID, usr)
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users.get(filter.ID); ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.UsernameOrEmail != "" {
		for _, usr := range repo.db.users.all() {
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := repo.db.users.all()
	if filter != nil {
		search := strings.ToLower(filter.Search)
		users = filterRows(users, func(u user.User) bool {
			if search != "" &&
				!strings.Contains(strings.ToLower(u.Name), search) &&
				!strings.Contains(strings.ToLower(u.Username), search) &&
				!strings.Contains(strings.ToLower(u.Email), search) {
				return false
			}
			if len(filter.Roles) > 0 && !slices.ContainsFunc(filter.Roles, u.HasRole) {
				return false
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				return false
			}
			if filter.OrganizationID != "" && u.OrganizationID != filter.OrganizationID {
				return false
			}
			if filter.IDs != nil && !contains(filter.IDs, u.ID) {
				return false
			}
			if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
				return false
			}
			if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
				return false
			}
			return true
		})
	}
	sortRows(users, ordering, userComparators)
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users.get(usr.ID); !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.clash(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, core.NewConflictError(err.Error())
	}
	usr.Roles = slices.Clone(usr.Roles)
	repo.db.users.set(usr.ID, usr)
	return usr, nil
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		repo.db.users.delete(id)
	}
	return nil
}
