package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func Test_dashboardApi(t *testing.T) {
	app := setup(t)
	env := app.env

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	org, head := testutil.CreateSchool(t, env.UserRepo, env.OrganizationRepo, "SDN 1", "kepala")
	guru := testutil.CreateMember(t, env.UserRepo, org.ID, "Guru", "guru", user.RoleGuru)
	testutil.CreateUser(t, env.UserRepo, "Luar", "luar", "luar@sekolah.id", "", []string{user.RoleGuru}, true)
	p := testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", "Ganjil", "2024-07-15", "2024-12-20", true)

	adminToken := app.token(t, admin)
	app.decode(t, http.StatusOK, nil, http.MethodPost, "/v1/rpp/generate", adminToken, marshallObj(t, map[string]string{"period_id": p.ID}))

	runHTTPTests(t, app, []httpTest{
		{name: "requires token", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "unknown period", path: "/v1/dashboard?period_id=unknown", token: adminToken, wantCode: http.StatusNotFound},
	})

	tests := []struct {
		name      string
		token     string
		wantScope string
		wantTotal int
	}{
		{name: "admin sees everything", token: adminToken, wantScope: dashboard.ScopeAll, wantTotal: 3},
		{name: "head sees the school", token: app.token(t, head), wantScope: dashboard.ScopeOrganization, wantTotal: 2},
		{name: "guru sees themselves", token: app.token(t, guru), wantScope: dashboard.ScopeTeacher, wantTotal: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sum dashboard.Summary
			app.decode(t, http.StatusOK, &sum, http.MethodGet, "/v1/dashboard", tt.token)
			assert.Equal(t, tt.wantScope, sum.Scope)
			require.NotNil(t, sum.Period)
			assert.Equal(t, p.ID, sum.Period.ID)
			assert.Equal(t, tt.wantTotal, sum.RPP.Total)
			assert.Equal(t, tt.wantTotal, sum.RPP.Draft)
			assert.Zero(t, sum.PendingReviews)
		})
	}
}
