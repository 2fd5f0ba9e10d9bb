package evaluation

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("teacher evaluation")
	ErrItemNotFound = core.NewNotFoundError("teacher evaluation item")
	ErrExists       = core.NewConflictError("an evaluation already exists for this teacher and period")
	ErrItemExists   = core.NewConflictError("this aspect is already graded in the evaluation")
	ErrInactive     = core.NewValidationError(nil, core.FieldError{Field: "aspect_id", Error: "aspect is not active"})
)

// OrderingFields are the fields evaluations can be ordered by.
var OrderingFields = []string{"total_score", "average_score", "final_grade", "last_updated", "created_at"}

type (
	Repository interface {
		// CreateEvaluation returns ErrExists when a live evaluation exists for the teacher and period.
		CreateEvaluation(ctx context.Context, ev Evaluation, exec ...core.DBExecutor) (Evaluation, error)
		GetEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) (Evaluation, error)
		// LockEvaluation reads the evaluation and locks its row until the end of the transaction.
		LockEvaluation(ctx context.Context, id string, exec core.DBExecutor) (Evaluation, error)
		QueryEvaluations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Evaluation, error)
		// UpdateEvaluation writes the aggregates, final notes and last update.
		UpdateEvaluation(ctx context.Context, ev Evaluation, exec ...core.DBExecutor) (Evaluation, error)
		// CreateItem returns ErrItemExists when the aspect is already graded in the evaluation.
		CreateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
		GetItem(ctx context.Context, id string, exec ...core.DBExecutor) (Item, error)
		QueryItems(ctx context.Context, evaluationIDs []string, exec ...core.DBExecutor) ([]Item, error)
		UpdateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
		DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error
		// DeleteEvaluation soft deletes the evaluation and its items.
		DeleteEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx           core.Transactor
		repo         Repository
		users        user.Repository
		orgs         organization.Repository
		periods      period.Repository
		aspects      aspect.Repository
		recorder     core.Recorder
		logger       core.Logger
		defaultGrade string
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	users user.Repository,
	orgs organization.Repository,
	periods period.Repository,
	aspects aspect.Repository,
	recorder core.Recorder,
	logger core.Logger,
	conf *core.Config,
) *Service {
	grade := conf.Evaluation.DefaultGrade
	if !isGrade(grade) {
		logger.Warn(fmt.Sprintf("invalid default evaluation grade %q, using %s", grade, GradeC))
		grade = GradeC
	}
	return &Service{
		tx:           tx,
		repo:         repo,
		users:        users,
		orgs:         orgs,
		periods:      periods,
		aspects:      aspects,
		recorder:     recorder,
		logger:       logger,
		defaultGrade: grade,
	}
}

// canWrite reports whether id may grade ev: its evaluator, an admin, or the head of the teacher's organization.
func canWrite(id user.Identity, ev Evaluation) bool {
	return id.IsAdmin() || (id.UserID != "" && id.UserID == ev.EvaluatorID) || id.HeadsOrganization(ev.OrganizationID)
}

// canRead also lets the teacher see their own evaluation.
func canRead(id user.Identity, ev Evaluation) bool {
	return canWrite(id, ev) || (id.UserID != "" && id.UserID == ev.TeacherID)
}

func forbidden() error {
	return core.NewAuthorizationError("not allowed to grade this evaluation")
}

// recompute re-reads the items of ev, aggregates them and saves ev. It runs within the mutation's transaction.
func (svc *Service) recompute(ctx context.Context, ev Evaluation, exec core.DBExecutor) (Detail, error) {
	items, err := svc.repo.QueryItems(ctx, []string{ev.ID}, exec)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying items")
	}
	aspects, err := svc.aspectsOf(ctx, items, exec)
	if err != nil {
		return Detail{}, err
	}

	ev.setAggregates(Aggregate(items, aspects))
	now := core.Now()
	ev.LastUpdated = now
	ev.UpdatedAt = now
	if ev, err = svc.repo.UpdateEvaluation(ctx, ev, exec); err != nil {
		return Detail{}, errors.Wrap(err, "saving aggregates")
	}
	svc.recorder.RecordOutcome("evaluation_recompute", "ok", 1)
	return Detail{Evaluation: ev, Items: items}, nil
}

// aspectsOf returns the aspects of items by ID. Soft deleted aspects are included
// so that deleting an aspect never changes the grade of past evaluations.
func (svc *Service) aspectsOf(ctx context.Context, items []Item, exec ...core.DBExecutor) (map[string]aspect.Aspect, error) {
	aspects := make(map[string]aspect.Aspect, len(items))
	if len(items) == 0 {
		return aspects, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AspectID)
	}
	list, err := svc.aspects.QueryAspects(ctx, &aspect.QueryFilter{IDs: ids, WithDeleted: true}, nil, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying aspects")
	}
	for _, a := range list {
		aspects[a.ID] = a
	}
	return aspects, nil
}

// mutate runs fn on the locked evaluation and recomputes its aggregates in the same transaction.
func (svc *Service) mutate(ctx context.Context, id user.Identity, evaluationID string, fn func(ev Evaluation, exec core.DBExecutor) error) (Detail, error) {
	var d Detail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		ev, err := svc.repo.LockEvaluation(ctx, evaluationID, exec)
		if err != nil {
			return err
		}
		if !canWrite(id, ev) {
			return forbidden()
		}
		if err = fn(ev, exec); err != nil {
			return err
		}
		d, err = svc.recompute(ctx, ev, exec)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (svc *Service) Create(ctx context.Context, id user.Identity, ne NewEvaluation) (Evaluation, error) {
	evaluatorID := ne.EvaluatorID
	if evaluatorID == "" {
		evaluatorID = id.UserID
	}

	var ev Evaluation
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		teacher, err := svc.users.GetUser(ctx, user.GetFilter{ID: ne.TeacherID}, exec)
		if err != nil {
			return err
		}
		if !id.IsAdmin() && !id.HeadsOrganization(teacher.OrganizationID) {
			return core.NewAuthorizationError("not allowed to evaluate this teacher")
		}
		if _, err = svc.users.GetUser(ctx, user.GetFilter{ID: evaluatorID}, exec); err != nil {
			return err
		}
		if _, err = svc.periods.GetPeriod(ctx, ne.PeriodID, exec); err != nil {
			return err
		}
		ev, err = svc.create(ctx, teacher.ID, evaluatorID, ne.PeriodID, exec)
		return err
	})
	if err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

func (svc *Service) create(ctx context.Context, teacherID, evaluatorID, periodID string, exec core.DBExecutor) (Evaluation, error) {
	now := core.Now()
	ev := Evaluation{
		TeacherID:   teacherID,
		EvaluatorID: evaluatorID,
		PeriodID:    periodID,
		LastUpdated: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ev.setAggregates(Aggregate(nil, nil))
	return svc.repo.CreateEvaluation(ctx, ev, exec)
}

func (svc *Service) GetByID(ctx context.Context, evaluationID string) (Evaluation, error) {
	return svc.repo.GetEvaluation(ctx, evaluationID)
}

// Detail returns the evaluation with its items, if id may read it.
func (svc *Service) Detail(ctx context.Context, id user.Identity, evaluationID string) (Detail, error) {
	ev, err := svc.repo.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Detail{}, err
	}
	if !canRead(id, ev) {
		return Detail{}, core.NewAuthorizationError("not allowed to read this evaluation")
	}
	items, err := svc.Items(ctx, ev.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Evaluation: ev, Items: items}, nil
}

func (svc *Service) Items(ctx context.Context, evaluationID string) ([]Item, error) {
	items, err := svc.repo.QueryItems(ctx, []string{evaluationID})
	if err != nil {
		return nil, errors.Wrap(err, "querying items")
	}
	return items, nil
}

// Scope narrows filter to what id may read.
func Scope(id user.Identity, filter *QueryFilter) *QueryFilter {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case id.IsAdmin():
	case id.IsKepalaSekolah() && id.OrganizationID != "":
		filter.OrganizationID = id.OrganizationID
	default:
		filter.TeacherID = id.UserID
	}
	return filter
}

func (svc *Service) Query(ctx context.Context, id user.Identity, filter *QueryFilter, ordering []core.DBOrdering) ([]Evaluation, error) {
	return svc.repo.QueryEvaluations(ctx, Scope(id, filter), core.CleanOrdering(ordering, OrderingFields...))
}

// CreateItem grades an active aspect in the evaluation.
func (svc *Service) CreateItem(ctx context.Context, id user.Identity, evaluationID string, ni NewItem) (Detail, error) {
	return svc.mutate(ctx, id, evaluationID, func(ev Evaluation, exec core.DBExecutor) error {
		_, err := svc.createItem(ctx, ev.ID, ni, exec)
		return err
	})
}

func (svc *Service) createItem(ctx context.Context, evaluationID string, ni NewItem, exec core.DBExecutor) (Item, error) {
	a, err := svc.aspects.GetAspect(ctx, ni.AspectID, exec)
	if err != nil {
		return Item{}, err
	}
	if !a.IsActive {
		return Item{}, ErrInactive
	}

	now := core.Now()
	it := Item{
		EvaluationID: evaluationID,
		AspectID:     a.ID,
		Notes:        ni.Notes,
		EvaluatedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = it.setGrade(ni.Grade); err != nil {
		return Item{}, err
	}
	if err = checkScoreRange(it.Score, a); err != nil {
		return Item{}, err
	}
	return svc.repo.CreateItem(ctx, it, exec)
}

// itemOf returns the item if it belongs to the evaluation.
func (svc *Service) itemOf(ctx context.Context, evaluationID, itemID string, exec core.DBExecutor) (Item, error) {
	it, err := svc.repo.GetItem(ctx, itemID, exec)
	if err != nil {
		return Item{}, err
	}
	if it.EvaluationID != evaluationID {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (svc *Service) updateItem(ctx context.Context, it Item, ui UpdateItem, exec core.DBExecutor) error {
	it, err := ui.apply(it, core.Now())
	if err != nil {
		return err
	}
	if ui.Grade != nil {
		a, err := svc.aspects.GetAspect(ctx, it.AspectID, exec)
		switch {
		case core.IsNotFound(err):
			return ErrInactive
		case err != nil:
			return errors.Wrap(err, "getting aspect")
		case !a.IsActive:
			return ErrInactive
		}
		if err = checkScoreRange(it.Score, a); err != nil {
			return err
		}
	}
	_, err = svc.repo.UpdateItem(ctx, it, exec)
	return err
}

// UpdateItem changes the grade or notes of an item. The score follows the grade.
func (svc *Service) UpdateItem(ctx context.Context, id user.Identity, itemID string, ui UpdateItem) (Detail, error) {
	it, err := svc.repo.GetItem(ctx, itemID)
	if err != nil {
		return Detail{}, err
	}
	return svc.mutate(ctx, id, it.EvaluationID, func(ev Evaluation, exec core.DBExecutor) error {
		it, err := svc.itemOf(ctx, ev.ID, itemID, exec)
		if err != nil {
			return err
		}
		return svc.updateItem(ctx, it, ui, exec)
	})
}

func (svc *Service) DeleteItem(ctx context.Context, id user.Identity, itemID string) (Detail, error) {
	it, err := svc.repo.GetItem(ctx, itemID)
	if err != nil {
		return Detail{}, err
	}
	return svc.mutate(ctx, id, it.EvaluationID, func(ev Evaluation, exec core.DBExecutor) error {
		if _, err := svc.itemOf(ctx, ev.ID, itemID, exec); err != nil {
			return err
		}
		return svc.repo.DeleteItem(ctx, itemID, exec)
	})
}

// Delete soft deletes the evaluation with its items.
func (svc *Service) Delete(ctx context.Context, evaluationID string) error {
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.LockEvaluation(ctx, evaluationID, exec); err != nil {
			return err
		}
		return svc.repo.DeleteEvaluation(ctx, evaluationID, exec)
	})
}

// BulkUpdateItems applies every update or none, then recomputes the aggregates once.
func (svc *Service) BulkUpdateItems(ctx context.Context, id user.Identity, evaluationID string, updates []ItemUpdate) (Detail, error) {
	return svc.mutate(ctx, id, evaluationID, func(ev Evaluation, exec core.DBExecutor) error {
		for i, up := range updates {
			it, err := svc.itemOf(ctx, ev.ID, up.ItemID, exec)
			if err != nil {
				return err
			}
			if err = svc.updateItem(ctx, it, up.UpdateItem, exec); err != nil {
				return errors.Wrap(err, fmt.Sprintf("updating item %d", i))
			}
		}
		return nil
	})
}

// Finalize sets the closing notes of the evaluation.
func (svc *Service) Finalize(ctx context.Context, id user.Identity, evaluationID string, f Finalize) (Detail, error) {
	var d Detail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		ev, err := svc.repo.LockEvaluation(ctx, evaluationID, exec)
		if err != nil {
			return err
		}
		if !canWrite(id, ev) {
			return forbidden()
		}
		ev.FinalNotes = f.FinalNotes
		ev.UpdatedAt = core.Now()
		if ev, err = svc.repo.UpdateEvaluation(ctx, ev, exec); err != nil {
			return err
		}
		items, err := svc.repo.QueryItems(ctx, []string{ev.ID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying items")
		}
		d = Detail{Evaluation: ev, Items: items}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

// Result computes the rollup of the evaluation.
func (svc *Service) Result(ctx context.Context, id user.Identity, evaluationID string) (Result, error) {
	d, err := svc.Detail(ctx, id, evaluationID)
	if err != nil {
		return Result{}, err
	}
	p, err := svc.periods.GetPeriod(ctx, d.PeriodID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting period")
	}
	aspects, err := svc.aspectsOf(ctx, d.Items)
	if err != nil {
		return Result{}, err
	}
	return computeResult(d, aspects, p.Name()), nil
}

func computeResult(d Detail, aspects map[string]aspect.Aspect, periodName string) Result {
	res := Result{
		EvaluationID: d.ID,
		TeacherID:    d.TeacherID,
		EvaluatorID:  d.EvaluatorID,
		PeriodID:     d.PeriodID,
		PeriodName:   periodName,
		TotalScore:   d.TotalScore,
		FinalGrade:   d.FinalGrade,
		FinalNotes:   d.FinalNotes,
	}
	for _, it := range d.Items {
		if a, ok := aspects[it.AspectID]; ok {
			res.MaxScore += a.MaxScore
		} else {
			res.MaxScore += aspect.DefaultMaxScore
		}
	}
	res.ScorePercentage = decimal.Zero
	if res.MaxScore > 0 {
		res.ScorePercentage = decimal.NewFromInt(int64(res.TotalScore)).
			Div(decimal.NewFromInt(int64(res.MaxScore))).Mul(hundred).Round(2)
	}
	res.PerformanceValue = PerformanceValue(res.TotalScore)
	res.GradeCategory = GradeCategory(res.PerformanceValue)
	return res
}

// AssignTeachersToPeriod creates the evaluations of the period: the head of each organization
// evaluates its active guru, the first active admin evaluates the heads.
// Every evaluation gets one item per active aspect with the default grade, in its own transaction.
func (svc *Service) AssignTeachersToPeriod(ctx context.Context, periodID string) (AssignResult, error) {
	res := AssignResult{Errors: []string{}}

	if _, err := svc.periods.GetPeriod(ctx, periodID); err != nil {
		return res, err
	}
	hasHead := true
	orgs, err := svc.orgs.QueryOrganizations(ctx, &organization.QueryFilter{HasHead: &hasHead}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return res, errors.Wrap(err, "querying organizations")
	}
	active := true
	activeAspects, err := svc.aspects.QueryAspects(ctx, &aspect.QueryFilter{IsActive: &active}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying active aspects")
	}
	admins, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}, IsActive: &active},
		[]core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return res, errors.Wrap(err, "querying admins")
	}
	existing, err := svc.repo.QueryEvaluations(ctx, &QueryFilter{PeriodID: periodID}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying existing evaluations")
	}
	covered := make(map[string]bool, len(existing))
	for _, ev := range existing {
		covered[ev.TeacherID] = true
	}

	assign := func(teacherID, evaluatorID string) {
		if covered[teacherID] {
			res.Skipped++
			return
		}
		var items int
		err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
			items = 0
			ev, err := svc.create(ctx, teacherID, evaluatorID, periodID, exec)
			if err != nil {
				return err
			}
			for _, a := range activeAspects {
				if _, err = svc.createItem(ctx, ev.ID, NewItem{AspectID: a.ID, Grade: svc.defaultGrade}, exec); err != nil {
					return errors.Wrap(err, fmt.Sprintf("grading aspect %s", a.ID))
				}
				items++
			}
			_, err = svc.recompute(ctx, ev, exec)
			return err
		})
		switch {
		case err == nil:
			covered[teacherID] = true
			res.Created++
			res.ItemsCreated += items
		case errors.Cause(err) == ErrExists: // assigned concurrently
			res.Skipped++
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("teacher %s: %v", teacherID, err))
			svc.logger.Error(fmt.Sprintf("assigning evaluation of teacher %s: %v", teacherID, err), err)
		}
	}

	for _, org := range orgs {
		head, err := svc.users.GetUser(ctx, user.GetFilter{ID: org.HeadID})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("organization %s: head: %v", org.ID, err))
			continue
		}

		gurus, err := svc.users.QueryUsers(ctx, &user.QueryFilter{
			Roles:          []string{user.RoleGuru},
			IsActive:       &active,
			OrganizationID: org.ID,
		}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("organization %s: teachers: %v", org.ID, err))
			continue
		}
		for _, guru := range gurus {
			if guru.ID != head.ID {
				assign(guru.ID, head.ID)
			}
		}

		if !head.IsActive {
			continue
		}
		if evaluator := firstOther(admins, head.ID); evaluator != "" {
			assign(head.ID, evaluator)
		} else if !covered[head.ID] {
			res.Errors = append(res.Errors, fmt.Sprintf("organization %s: no active admin to evaluate the head", org.ID))
		}
	}

	svc.recorder.RecordOutcome("evaluation_assign", "created", res.Created)
	svc.recorder.RecordOutcome("evaluation_assign", "skipped", res.Skipped)
	svc.recorder.RecordOutcome("evaluation_assign", "failed", len(res.Errors))
	return res, nil
}

func firstOther(users []user.User, id string) string {
	for _, u := range users {
		if u.ID != id {
			return u.ID
		}
	}
	return ""
}

// Stats summarizes the evaluations matching filter.
func (svc *Service) Stats(ctx context.Context, filter *QueryFilter) (Stats, error) {
	evs, err := svc.repo.QueryEvaluations(ctx, filter, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying evaluations")
	}
	return computeStats(evs), nil
}

func computeStats(evs []Evaluation) Stats {
	st := Stats{
		Total:             len(evs),
		GradeDistribution: map[string]int{GradeA: 0, GradeB: 0, GradeC: 0, GradeD: 0},
	}
	if len(evs) == 0 {
		return st
	}
	sum := decimal.Zero
	for _, ev := range evs {
		sum = sum.Add(ev.FinalGrade)
		st.GradeDistribution[LetterBand(ev.FinalGrade)]++
	}
	st.AverageFinalGrade, _ = sum.Div(decimal.NewFromInt(int64(len(evs)))).Round(2).Float64()
	return st
}
