package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func Test_aspectApi(t *testing.T) {
	app := setup(t)
	env := app.env

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	guru := testutil.CreateUser(t, env.UserRepo, "Guru", "guru", "guru@sekolah.id", "", []string{user.RoleGuru}, true)
	adminToken := app.token(t, admin)
	guruToken := app.token(t, guru)

	pedagogik := []byte(`{"aspect_name": "Pedagogik", "category": "Kompetensi", "weight": 60, "display_order": 1}`)

	runHTTPTests(t, app, []httpTest{
		{name: "empty catalog", path: "/v1/aspects", token: guruToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/aspects", token: guruToken, body: pedagogik,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermission),
		},
		{
			name: "weight out of range", method: http.MethodPost, path: "/v1/aspects", token: adminToken,
			body:     []byte(`{"aspect_name": "Sosial", "category": "Kompetensi", "weight": 120}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"weight": "weight must be between 0 and 100"}),
		},
		{
			name: "scores", method: http.MethodPost, path: "/v1/aspects", token: adminToken,
			body:     []byte(`{"aspect_name": "Sosial", "category": "Kompetensi", "weight": 10, "min_score": 4, "max_score": 4}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"max_score": "max score must be greater than min score"}),
		},
		{name: "weights admin only", path: "/v1/aspects/weights/validate", token: guruToken, wantCode: http.StatusForbidden},
	})

	var ped aspect.Aspect
	app.decode(t, http.StatusCreated, &ped, http.MethodPost, "/v1/aspects", adminToken, pedagogik)
	assert.True(t, ped.IsActive)
	assert.Equal(t, aspect.DefaultMaxScore, ped.MaxScore)

	t.Run("weights", func(t *testing.T) {
		var report aspect.WeightReport
		app.decode(t, http.StatusOK, &report, http.MethodGet, "/v1/aspects/weights/validate", adminToken)
		assert.Equal(t, aspect.WeightsWarning, report.Status)
		assert.Equal(t, 1, report.ActiveCount)

		var sosial aspect.Aspect
		app.decode(t, http.StatusCreated, &sosial, http.MethodPost, "/v1/aspects", adminToken,
			[]byte(`{"aspect_name": "Sosial", "category": "Kompetensi", "weight": "40", "display_order": 2}`))
		app.decode(t, http.StatusOK, &report, http.MethodGet, "/v1/aspects/weights/validate", adminToken)
		assert.Equal(t, aspect.WeightsValid, report.Status)

		app.decode(t, http.StatusOK, &sosial, http.MethodPost, "/v1/aspects/"+sosial.ID+"/deactivate", adminToken)
		assert.False(t, sosial.IsActive)

		var active []aspect.Aspect
		app.decode(t, http.StatusOK, &active, http.MethodGet, "/v1/aspects?is_active=true", guruToken)
		require.Len(t, active, 1)
		assert.Equal(t, ped.ID, active[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		var got aspect.Aspect
		app.decode(t, http.StatusOK, &got, http.MethodPut, "/v1/aspects/"+ped.ID, adminToken, []byte(`{"weight": 100}`))
		assert.Equal(t, "100", got.Weight.String())

		rec := app.do(http.MethodPut, "/v1/aspects/"+ped.ID, adminToken, []byte(`{"weight": 12.345}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/aspects/"+ped.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/aspects/"+ped.ID, guruToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
