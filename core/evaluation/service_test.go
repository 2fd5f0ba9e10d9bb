package evaluation_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
	"github.com/trezcool/kinerja/tests"
)

type fixture struct {
	env         *testutil.Env
	period      period.Period
	admin       user.User
	head        user.User
	guru        user.User
	stranger    user.User // guru of a school without head
	pedagogi    aspect.Aspect
	kepribadian aspect.Aspect
	inactive    aspect.Aspect
}

func setUp(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	org, head := testutil.CreateSchool(t, env.UserRepo, env.OrganizationRepo, "SMPN 3 Bogor", "kepala")
	headless := testutil.CreateOrg(t, env.OrganizationRepo, "SMPN 4 Bogor")

	return fixture{
		env:         env,
		period:      testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", period.SemesterGenap, "2025-01-06", "2025-06-20", true),
		admin:       testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.id", "", []string{user.RoleAdmin}, true),
		head:        head,
		guru:        testutil.CreateMember(t, env.UserRepo, org.ID, "Pak Guru", "guru", user.RoleGuru),
		stranger:    testutil.CreateMember(t, env.UserRepo, headless.ID, "Bu Guru", "guru2", user.RoleGuru),
		pedagogi:    testutil.CreateAspect(t, env.AspectRepo, "Kompetensi Pedagogik", "Pedagogik", 60, true),
		kepribadian: testutil.CreateAspect(t, env.AspectRepo, "Kompetensi Kepribadian", "Kepribadian", 40, true),
		inactive:    testutil.CreateAspect(t, env.AspectRepo, "Kompetensi Sosial", "Sosial", 0, false),
	}
}

func strPtr(s string) *string { return &s }

func itemOf(t *testing.T, d evaluation.Detail, aspectID string) evaluation.Item {
	for _, it := range d.Items {
		if it.AspectID == aspectID {
			return it
		}
	}
	t.Fatalf("no item for aspect %s", aspectID)
	return evaluation.Item{}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), append([]interface{}{"want %s; got %s", want, got}, msgAndArgs...)...)
}

func TestService_Create(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc

	ev, err := svc.Create(ctx, f.head.Identity(), evaluation.NewEvaluation{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	assert.Equal(t, f.head.ID, ev.EvaluatorID, "evaluator defaults to the caller")
	assert.Zero(t, ev.TotalScore)
	assertDecimal(t, "0", ev.FinalGrade)

	tests := []struct {
		name  string
		id    user.Identity
		data  evaluation.NewEvaluation
		check func(error) bool
	}{
		{
			name: "duplicate", id: f.admin.Identity(),
			data:  evaluation.NewEvaluation{TeacherID: f.guru.ID, EvaluatorID: f.admin.ID, PeriodID: f.period.ID},
			check: core.IsConflict,
		},
		{
			name: "guru cannot evaluate", id: f.guru.Identity(),
			data:  evaluation.NewEvaluation{TeacherID: f.head.ID, PeriodID: f.period.ID},
			check: core.IsAuthorization,
		},
		{
			name: "head of another school", id: f.head.Identity(),
			data:  evaluation.NewEvaluation{TeacherID: f.stranger.ID, PeriodID: f.period.ID},
			check: core.IsAuthorization,
		},
		{
			name: "unknown period", id: f.admin.Identity(),
			data:  evaluation.NewEvaluation{TeacherID: f.stranger.ID, PeriodID: "nope"},
			check: core.IsNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.id, tt.data)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestService_AssignTeachersToPeriod(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc

	res, err := svc.AssignTeachersToPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluation.AssignResult{Created: 2, ItemsCreated: 4, Errors: []string{}}, res)

	evs, err := svc.Query(ctx, f.admin.Identity(), &evaluation.QueryFilter{PeriodID: f.period.ID}, nil)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	evaluators := map[string]string{}
	for _, ev := range evs {
		evaluators[ev.TeacherID] = ev.EvaluatorID
		assert.Equal(t, 4, ev.TotalScore, "default grade C on both aspects")
		assertDecimal(t, "50", ev.FinalGrade)
	}
	assert.Equal(t, map[string]string{f.guru.ID: f.head.ID, f.head.ID: f.admin.ID}, evaluators)

	// idempotent
	res, err = svc.AssignTeachersToPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluation.AssignResult{Skipped: 2, Errors: []string{}}, res)

	_, err = svc.AssignTeachersToPeriod(ctx, "nope")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_Items(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc
	head := f.head.Identity()

	ev, err := svc.Create(ctx, head, evaluation.NewEvaluation{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)

	d, err := svc.CreateItem(ctx, head, ev.ID, evaluation.NewItem{AspectID: f.pedagogi.ID, Grade: evaluation.GradeA})
	require.NoError(t, err)
	assert.Equal(t, 4, d.TotalScore)
	assertDecimal(t, "100", d.FinalGrade)

	d, err = svc.CreateItem(ctx, head, ev.ID, evaluation.NewItem{AspectID: f.kepribadian.ID, Grade: evaluation.GradeC, Notes: "cukup"})
	require.NoError(t, err)
	assert.Equal(t, 6, d.TotalScore)
	assertDecimal(t, "3", d.AverageScore)
	assertDecimal(t, "80", d.FinalGrade)

	t.Run("create errors", func(t *testing.T) {
		tests := []struct {
			name  string
			id    user.Identity
			data  evaluation.NewItem
			check func(error) bool
		}{
			{name: "aspect already graded", id: head, data: evaluation.NewItem{AspectID: f.pedagogi.ID, Grade: evaluation.GradeB}, check: core.IsConflict},
			{name: "inactive aspect", id: head, data: evaluation.NewItem{AspectID: f.inactive.ID, Grade: evaluation.GradeB}, check: core.IsValidation},
			{name: "unknown aspect", id: head, data: evaluation.NewItem{AspectID: "nope", Grade: evaluation.GradeB}, check: core.IsNotFound},
			{name: "teacher cannot grade", id: f.guru.Identity(), data: evaluation.NewItem{AspectID: f.inactive.ID, Grade: evaluation.GradeB}, check: core.IsAuthorization},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateItem(ctx, tt.id, ev.ID, tt.data)
				assert.True(t, tt.check(err), "got %v", err)
			})
		}
	})

	t.Run("update grade", func(t *testing.T) {
		it := itemOf(t, d, f.kepribadian.ID)
		d, err := svc.UpdateItem(ctx, head, it.ID, evaluation.UpdateItem{Grade: strPtr(evaluation.GradeB)})
		require.NoError(t, err)
		assert.Equal(t, 3, itemOf(t, d, f.kepribadian.ID).Score)
		assert.Equal(t, "cukup", itemOf(t, d, f.kepribadian.ID).Notes)
		assert.Equal(t, 7, d.TotalScore)
		assertDecimal(t, "90", d.FinalGrade)
	})

	t.Run("bulk update is atomic", func(t *testing.T) {
		it := itemOf(t, d, f.kepribadian.ID)
		_, err := svc.BulkUpdateItems(ctx, head, ev.ID, []evaluation.ItemUpdate{
			{ItemID: it.ID, UpdateItem: evaluation.UpdateItem{Grade: strPtr(evaluation.GradeD)}},
			{ItemID: "nope", UpdateItem: evaluation.UpdateItem{Grade: strPtr(evaluation.GradeD)}},
		})
		assert.True(t, core.IsNotFound(err), "got %v", err)

		d, err := svc.Detail(ctx, head, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, itemOf(t, d, f.kepribadian.ID).Score)
		assert.Equal(t, 7, d.TotalScore)
	})

	t.Run("bulk update", func(t *testing.T) {
		d, err := svc.BulkUpdateItems(ctx, f.admin.Identity(), ev.ID, []evaluation.ItemUpdate{
			{ItemID: itemOf(t, d, f.pedagogi.ID).ID, UpdateItem: evaluation.UpdateItem{Grade: strPtr(evaluation.GradeD)}},
			{ItemID: itemOf(t, d, f.kepribadian.ID).ID, UpdateItem: evaluation.UpdateItem{Grade: strPtr(evaluation.GradeD), Notes: strPtr("perlu pembinaan")}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, d.TotalScore)
		assertDecimal(t, "1", d.AverageScore)
		assertDecimal(t, "25", d.FinalGrade)
	})

	t.Run("teacher cannot update", func(t *testing.T) {
		_, err := svc.UpdateItem(ctx, f.guru.Identity(), itemOf(t, d, f.pedagogi.ID).ID, evaluation.UpdateItem{Grade: strPtr(evaluation.GradeA)})
		assert.True(t, core.IsAuthorization(err), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		itemID := itemOf(t, d, f.kepribadian.ID).ID
		d, err := svc.DeleteItem(ctx, head, itemID)
		require.NoError(t, err)
		assert.Len(t, d.Items, 1)
		assert.Equal(t, 1, d.TotalScore)
		assertDecimal(t, "25", d.FinalGrade)

		_, err = svc.DeleteItem(ctx, head, itemID)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})
}

func TestService_FinalizeAndResult(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc

	_, err := svc.AssignTeachersToPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	evs, err := svc.Query(ctx, f.guru.Identity(), nil, nil)
	require.NoError(t, err)
	require.Len(t, evs, 1, "teachers only see their own evaluation")
	ev := evs[0]

	_, err = svc.Finalize(ctx, f.guru.Identity(), ev.ID, evaluation.Finalize{FinalNotes: "mantap"})
	assert.True(t, core.IsAuthorization(err), "got %v", err)

	d, err := svc.Finalize(ctx, f.head.Identity(), ev.ID, evaluation.Finalize{FinalNotes: "Pertahankan"})
	require.NoError(t, err)
	assert.Equal(t, "Pertahankan", d.FinalNotes)
	assert.Len(t, d.Items, 2)

	res, err := svc.Result(ctx, f.guru.Identity(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, f.period.Name(), res.PeriodName)
	assert.Equal(t, 4, res.TotalScore)
	assert.Equal(t, 8, res.MaxScore)
	assertDecimal(t, "50", res.ScorePercentage)
	assertDecimal(t, "5", res.PerformanceValue)
	assert.Equal(t, evaluation.CategoryNeedsImprovement, res.GradeCategory)
	assert.Equal(t, "Pertahankan", res.FinalNotes)

	_, err = svc.Result(ctx, f.stranger.Identity(), ev.ID)
	assert.True(t, core.IsAuthorization(err), "got %v", err)

	st, err := svc.Stats(ctx, evaluation.Scope(f.head.Identity(), nil))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 50.0, st.AverageFinalGrade)
	assert.Equal(t, 2, st.GradeDistribution[evaluation.GradeC])
}

func TestService_AspectChanges(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc
	head := f.head.Identity()

	ev, err := svc.Create(ctx, head, evaluation.NewEvaluation{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, head, ev.ID, evaluation.NewItem{AspectID: f.pedagogi.ID, Grade: evaluation.GradeA})
	require.NoError(t, err)
	d, err := svc.CreateItem(ctx, head, ev.ID, evaluation.NewItem{AspectID: f.kepribadian.ID, Grade: evaluation.GradeD})
	require.NoError(t, err)
	assertDecimal(t, "70", d.FinalGrade)

	t.Run("deleted aspect keeps its weight", func(t *testing.T) {
		require.NoError(t, f.env.AspectSvc.Delete(ctx, f.kepribadian.ID))

		d, err := svc.UpdateItem(ctx, head, itemOf(t, d, f.pedagogi.ID).ID, evaluation.UpdateItem{Notes: strPtr("baik")})
		require.NoError(t, err)
		assert.Len(t, d.Items, 2)
		assert.Equal(t, 5, d.TotalScore)
		assertDecimal(t, "70", d.FinalGrade)

		_, err = svc.UpdateItem(ctx, head, itemOf(t, d, f.kepribadian.ID).ID, evaluation.UpdateItem{Grade: strPtr(evaluation.GradeA)})
		assert.True(t, core.IsValidation(err), "got %v", err)
	})

	t.Run("deactivated aspect cannot be regraded", func(t *testing.T) {
		_, err := f.env.AspectSvc.Deactivate(ctx, f.pedagogi.ID)
		require.NoError(t, err)

		it := itemOf(t, d, f.pedagogi.ID)
		_, err = svc.UpdateItem(ctx, head, it.ID, evaluation.UpdateItem{Grade: strPtr(evaluation.GradeB)})
		assert.True(t, core.IsValidation(err), "got %v", err)

		d, err := svc.UpdateItem(ctx, head, it.ID, evaluation.UpdateItem{Notes: strPtr("catatan")})
		require.NoError(t, err)
		assert.Equal(t, evaluation.GradeA, itemOf(t, d, f.pedagogi.ID).Grade)
	})
}

func TestService_Delete(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.EvaluationSvc

	_, err := svc.AssignTeachersToPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	evs, err := svc.Query(ctx, f.guru.Identity(), nil, nil)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	d, err := svc.Detail(ctx, f.guru.Identity(), evs[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, d.Items)

	require.NoError(t, svc.Delete(ctx, d.ID))
	_, err = svc.GetByID(ctx, d.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)
	items, err := svc.Items(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, core.IsNotFound(svc.Delete(ctx, d.ID)))

	// the teacher can be assigned again
	res, err := svc.AssignTeachersToPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
}
