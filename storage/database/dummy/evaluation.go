package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/evaluation"
)

var evaluationComparators = comparators[evaluation.Evaluation]{
	"total_score":   func(a, b evaluation.Evaluation) int { return a.TotalScore - b.TotalScore },
	"average_score": func(a, b evaluation.Evaluation) int { return a.AverageScore.Cmp(b.AverageScore) },
	"final_grade":   func(a, b evaluation.Evaluation) int { return a.FinalGrade.Cmp(b.FinalGrade) },
	"last_updated":  func(a, b evaluation.Evaluation) int { return compareTime(a.LastUpdated, b.LastUpdated) },
	"created_at":    func(a, b evaluation.Evaluation) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

type evaluationRepository struct {
	db *DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func (repo *evaluationRepository) withTeacher(ev evaluation.Evaluation) evaluation.Evaluation {
	teacher, _ := repo.db.users.get(ev.TeacherID)
	ev.TeacherName = teacher.Name
	ev.OrganizationID = teacher.OrganizationID
	return ev
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation, _ ...core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.evaluations.all() {
		if other.TeacherID == ev.TeacherID && other.PeriodID == ev.PeriodID {
			return evaluation.Evaluation{}, evaluation.ErrExists
		}
	}
	ev.ID = uuid.New().String()
	ev.TeacherName, ev.OrganizationID = "", ""
	repo.db.evaluations.insert(ev.ID, ev)
	return repo.withTeacher(ev), nil
}

func (repo *evaluationRepository) getEvaluation(id string) (evaluation.Evaluation, error) {
	if ev, ok := repo.db.evaluations.get(id); ok {
		return repo.withTeacher(ev), nil
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, id string, _ ...core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.getEvaluation(id)
}

// LockEvaluation only reads: transactions are already serialized.
func (repo *evaluationRepository) LockEvaluation(_ context.Context, id string, _ core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.getEvaluation(id)
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter *evaluation.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]evaluation.Evaluation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evs := repo.db.evaluations.all()
	for i := range evs {
		evs[i] = repo.withTeacher(evs[i])
	}
	if filter != nil {
		evs = filterRows(evs, func(ev evaluation.Evaluation) bool {
			if filter.TeacherID != "" && ev.TeacherID != filter.TeacherID {
				return false
			}
			if filter.EvaluatorID != "" && ev.EvaluatorID != filter.EvaluatorID {
				return false
			}
			if filter.PeriodID != "" && ev.PeriodID != filter.PeriodID {
				return false
			}
			return filter.OrganizationID == "" || ev.OrganizationID == filter.OrganizationID
		})
	}
	sortRows(evs, ordering, evaluationComparators)
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluation(_ context.Context, ev evaluation.Evaluation, _ ...core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.evaluations.get(ev.ID)
	if !ok {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	stored.FinalNotes = ev.FinalNotes
	stored.TotalScore = ev.TotalScore
	stored.AverageScore = ev.AverageScore
	stored.FinalGrade = ev.FinalGrade
	stored.LastUpdated = ev.LastUpdated
	stored.UpdatedAt = ev.UpdatedAt
	repo.db.evaluations.set(ev.ID, stored)
	return repo.withTeacher(stored), nil
}

func (repo *evaluationRepository) CreateItem(_ context.Context, it evaluation.Item, _ ...core.DBExecutor) (evaluation.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.evaluationItems.all() {
		if other.EvaluationID == it.EvaluationID && other.AspectID == it.AspectID {
			return evaluation.Item{}, evaluation.ErrItemExists
		}
	}
	it.ID = uuid.New().String()
	repo.db.evaluationItems.insert(it.ID, it)
	return it, nil
}

func (repo *evaluationRepository) GetItem(_ context.Context, id string, _ ...core.DBExecutor) (evaluation.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if it, ok := repo.db.evaluationItems.get(id); ok {
		return it, nil
	}
	return evaluation.Item{}, evaluation.ErrItemNotFound
}

func (repo *evaluationRepository) QueryItems(_ context.Context, evaluationIDs []string, _ ...core.DBExecutor) ([]evaluation.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return filterRows(repo.db.evaluationItems.all(), func(it evaluation.Item) bool {
		return contains(evaluationIDs, it.EvaluationID)
	}), nil
}

func (repo *evaluationRepository) UpdateItem(_ context.Context, it evaluation.Item, _ ...core.DBExecutor) (evaluation.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.evaluationItems.set(it.ID, it) {
		return evaluation.Item{}, evaluation.ErrItemNotFound
	}
	return it, nil
}

func (repo *evaluationRepository) DeleteItem(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.evaluationItems.softDelete(id) {
		return evaluation.ErrItemNotFound
	}
	return nil
}

func (repo *evaluationRepository) DeleteEvaluation(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.db.evaluations.softDelete(id) {
		return evaluation.ErrNotFound
	}
	for _, it := range repo.db.evaluationItems.all() {
		if it.EvaluationID == id {
			repo.db.evaluationItems.softDelete(it.ID)
		}
	}
	return nil
}
