package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func TestService_Summary(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.DashboardSvc

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	org, head := testutil.CreateSchool(t, env.UserRepo, env.OrganizationRepo, "SDN 1", "kepala")
	guru := testutil.CreateMember(t, env.UserRepo, org.ID, "Guru", "guru", user.RoleGuru)
	active := testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", "Ganjil", "2024-07-15", "2024-12-20", true)
	old := testutil.CreatePeriod(t, env.PeriodRepo, "2023/2024", "Genap", "2024-01-08", "2024-06-21", false)
	testutil.CreateAspect(t, env.AspectRepo, "Pedagogik", "Kompetensi", 100, true)

	_, err := env.RPPSvc.GenerateForPeriod(ctx, active.ID)
	require.NoError(t, err)
	_, err = env.EvaluationSvc.AssignTeachersToPeriod(ctx, active.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		usr       user.User
		wantScope string
		wantOrg   string
		wantRPP   int
		wantEvals int
	}{
		{name: "admin", usr: admin, wantScope: dashboard.ScopeAll, wantRPP: 2, wantEvals: 2},
		{name: "kepala_sekolah", usr: head, wantScope: dashboard.ScopeOrganization, wantOrg: org.ID, wantRPP: 2, wantEvals: 2},
		{name: "guru", usr: guru, wantScope: dashboard.ScopeTeacher, wantRPP: 1, wantEvals: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := svc.Summary(ctx, tt.usr.Identity(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, sum.Scope)
			assert.Equal(t, tt.wantOrg, sum.OrganizationID)
			require.NotNil(t, sum.Period)
			assert.Equal(t, active.ID, sum.Period.ID)
			assert.Equal(t, tt.wantRPP, sum.RPP.Total)
			assert.Equal(t, tt.wantRPP, sum.RPP.Draft)
			assert.Equal(t, tt.wantEvals, sum.Evaluations.Total)
			assert.Zero(t, sum.PendingReviews)
			if tt.wantScope == dashboard.ScopeTeacher {
				assert.Equal(t, guru.ID, sum.TeacherID)
			}
		})
	}

	t.Run("other period", func(t *testing.T) {
		sum, err := svc.Summary(ctx, admin.Identity(), old.ID)
		require.NoError(t, err)
		require.NotNil(t, sum.Period)
		assert.Equal(t, old.ID, sum.Period.ID)
		assert.Zero(t, sum.RPP.Total)
		assert.Zero(t, sum.Evaluations.Total)

		_, err = svc.Summary(ctx, admin.Identity(), "unknown")
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("cached", func(t *testing.T) {
		first, err := svc.Summary(ctx, admin.Identity(), active.ID)
		require.NoError(t, err)

		testutil.CreateMember(t, env.UserRepo, org.ID, "Guru Baru", "gurubaru", user.RoleGuru)
		_, err = env.RPPSvc.GenerateForPeriod(ctx, active.ID)
		require.NoError(t, err)

		second, err := svc.Summary(ctx, admin.Identity(), active.ID)
		require.NoError(t, err)
		assert.Equal(t, first.RPP.Total, second.RPP.Total)
		assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))

		// the head's summary was cached by the role table above
		sum, err := svc.Summary(ctx, head.Identity(), active.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.RPP.Total)

		// the cache is per user
		deputy := testutil.CreateMember(t, env.UserRepo, org.ID, "Kepala Baru", "kepalabaru", user.RoleKepalaSekolah)
		sum, err = svc.Summary(ctx, deputy.Identity(), active.ID)
		require.NoError(t, err)
		assert.Equal(t, dashboard.ScopeOrganization, sum.Scope)
		assert.Equal(t, 3, sum.RPP.Total)
	})

	t.Run("no active period", func(t *testing.T) {
		_, err := env.PeriodSvc.Deactivate(ctx, active.ID)
		require.NoError(t, err)

		sum, err := svc.Summary(ctx, guru.Identity(), "")
		require.NoError(t, err)
		assert.Nil(t, sum.Period)
		assert.Equal(t, 1, sum.RPP.Total)
	})
}

func TestService_SummaryWithoutCache(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := dashboard.NewService(env.RPPSvc, env.EvaluationSvc, env.PeriodSvc, nil, env.Conf, env.Logger)

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	p := testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", "Ganjil", "2024-07-15", "2024-12-20", true)
	testutil.CreateUser(t, env.UserRepo, "Guru", "guru", "guru@sekolah.id", "", []string{user.RoleGuru}, true)
	testutil.CreateAspect(t, env.AspectRepo, "Pedagogik", "Kompetensi", 100, true)

	sum, err := svc.Summary(ctx, admin.Identity(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.RPP.Total)

	_, err = env.RPPSvc.GenerateForPeriod(ctx, p.ID)
	require.NoError(t, err)

	sum, err = svc.Summary(ctx, admin.Identity(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RPP.Total)
}
