package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/rpp"
)

var submissionComparators = comparators[rpp.Submission]{
	"status":       func(a, b rpp.Submission) int { return strings.Compare(a.Status, b.Status) },
	"submitted_at": func(a, b rpp.Submission) int { return compareTime(a.SubmittedAt, b.SubmittedAt) },
	"reviewed_at":  func(a, b rpp.Submission) int { return compareTime(a.ReviewedAt, b.ReviewedAt) },
	"created_at":   func(a, b rpp.Submission) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	"updated_at":   func(a, b rpp.Submission) int { return compareTime(a.UpdatedAt, b.UpdatedAt) },
}

type rppRepository struct {
	db *DB
}

var _ rpp.Repository = (*rppRepository)(nil) // interface compliance check

func NewRPPRepository(db *DB) rpp.Repository {
	return &rppRepository{db: db}
}

// withTeacher fills the fields read from the teacher.
func (repo *rppRepository) withTeacher(s rpp.Submission) rpp.Submission {
	teacher, _ := repo.db.users.get(s.TeacherID)
	s.TeacherName = teacher.Name
	s.OrganizationID = teacher.OrganizationID
	return s
}

func (repo *rppRepository) CreateSubmission(_ context.Context, s rpp.Submission, items []rpp.Item, _ ...core.DBExecutor) (rpp.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.submissions.all() {
		if other.TeacherID == s.TeacherID && other.PeriodID == s.PeriodID {
			return rpp.Submission{}, rpp.ErrExists
		}
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.Type] {
			return rpp.Submission{}, core.NewConflictError("duplicate RPP type in submission")
		}
		seen[it.Type] = true
	}

	s.ID = uuid.New().String()
	s.TeacherName, s.OrganizationID = "", ""
	repo.db.submissions.insert(s.ID, s)
	for _, it := range items {
		it.ID = uuid.New().String()
		it.SubmissionID = s.ID
		repo.db.submissionItems.insert(it.ID, it)
	}
	return repo.withTeacher(s), nil
}

func (repo *rppRepository) getSubmission(id string) (rpp.Submission, error) {
	if s, ok := repo.db.submissions.get(id); ok {
		return repo.withTeacher(s), nil
	}
	return rpp.Submission{}, rpp.ErrNotFound
}

func (repo *rppRepository) GetSubmission(_ context.Context, id string, _ ...core.DBExecutor) (rpp.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.getSubmission(id)
}

// LockSubmission only reads: transactions are already serialized.
func (repo *rppRepository) LockSubmission(_ context.Context, id string, _ core.DBExecutor) (rpp.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.getSubmission(id)
}

func (repo *rppRepository) query(filter *rpp.QueryFilter) []rpp.Submission {
	subs := repo.db.submissions.all()
	for i := range subs {
		subs[i] = repo.withTeacher(subs[i])
	}
	if filter == nil {
		return subs
	}
	return filterRows(subs, func(s rpp.Submission) bool {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			return false
		}
		if filter.PeriodID != "" && s.PeriodID != filter.PeriodID {
			return false
		}
		if filter.Status != "" && s.Status != filter.Status {
			return false
		}
		if filter.ReviewerID != "" && s.ReviewerID != filter.ReviewerID {
			return false
		}
		if filter.OrganizationID != "" && s.OrganizationID != filter.OrganizationID {
			return false
		}
		if filter.TeacherRole != "" {
			teacher, _ := repo.db.users.get(s.TeacherID)
			if !teacher.HasRole(filter.TeacherRole) {
				return false
			}
		}
		return true
	})
}

func (repo *rppRepository) QuerySubmissions(_ context.Context, filter *rpp.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]rpp.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := repo.query(filter)
	sortRows(subs, ordering, submissionComparators)
	return subs, nil
}

func (repo *rppRepository) UpdateSubmissionStatus(_ context.Context, s rpp.Submission, expected string, _ ...core.DBExecutor) (rpp.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.submissions.get(s.ID)
	if !ok {
		return rpp.Submission{}, rpp.ErrNotFound
	}
	if stored.Status != expected {
		return rpp.Submission{}, rpp.ErrStatusChanged
	}
	stored.Status = s.Status
	stored.ReviewerID = s.ReviewerID
	stored.ReviewNotes = s.ReviewNotes
	stored.SubmittedAt = s.SubmittedAt
	stored.ReviewedAt = s.ReviewedAt
	stored.UpdatedAt = s.UpdatedAt
	repo.db.submissions.set(s.ID, stored)
	return repo.withTeacher(stored), nil
}

func (repo *rppRepository) CountByStatus(_ context.Context, filter *rpp.QueryFilter, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int, len(rpp.AllStatuses))
	for _, s := range repo.query(filter) {
		counts[s.Status]++
	}
	return counts, nil
}

func (repo *rppRepository) QueryItems(_ context.Context, filter rpp.ItemFilter, _ ...core.DBExecutor) ([]rpp.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return filterRows(repo.db.submissionItems.all(), func(it rpp.Item) bool {
		if filter.SubmissionIDs != nil && !contains(filter.SubmissionIDs, it.SubmissionID) {
			return false
		}
		if filter.TeacherID != "" && it.TeacherID != filter.TeacherID {
			return false
		}
		if filter.PeriodID != "" && it.PeriodID != filter.PeriodID {
			return false
		}
		return filter.Type == "" || it.Type == filter.Type
	}), nil
}

func (repo *rppRepository) UpdateItem(_ context.Context, it rpp.Item, _ ...core.DBExecutor) (rpp.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.submissionItems.set(it.ID, it) {
		return rpp.Item{}, rpp.ErrItemNotFound
	}
	return it, nil
}

func (repo *rppRepository) DeleteSubmission(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.submissions.softDelete(id) {
		return rpp.ErrNotFound
	}
	for _, it := range repo.db.submissionItems.all() {
		if it.SubmissionID == id {
			repo.db.submissionItems.softDelete(it.ID)
		}
	}
	return nil
}
