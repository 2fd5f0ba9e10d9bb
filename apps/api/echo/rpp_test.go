package echoapi_test

import (
	"net/http"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func Test_rppApi_workflow(t *testing.T) {
	app := setup(t)
	env := app.env

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	org, head := testutil.CreateSchool(t, env.UserRepo, env.OrganizationRepo, "SDN 1", "kepala")
	guru := testutil.CreateMember(t, env.UserRepo, org.ID, "Guru", "guru", user.RoleGuru)
	other := testutil.CreateUser(t, env.UserRepo, "Luar", "luar", "luar@sekolah.id", "", []string{user.RoleGuru}, true)
	p := testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", "Ganjil", "2024-07-15", "2024-12-20", true)

	adminToken := app.token(t, admin)
	headToken := app.token(t, head)
	guruToken := app.token(t, guru)
	otherToken := app.token(t, other)
	periodReq := marshallObj(t, map[string]string{"period_id": p.ID})

	runHTTPTests(t, app, []httpTest{
		{
			name: "generate requires admin", method: http.MethodPost, path: "/v1/rpp/generate", token: headToken, body: periodReq,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermission),
		},
		{
			name: "generate unknown period", method: http.MethodPost, path: "/v1/rpp/generate", token: adminToken,
			body: []byte(`{"period_id": "4a1e9c55-8f5c-4a3f-b9f1-3c2a7e0d9b21"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "generate", method: http.MethodPost, path: "/v1/rpp/generate", token: adminToken, body: periodReq,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, rpp.GenerateResult{
				Generated: 3, Total: 3, ItemsPerSubmission: 3, ItemsCreated: 9, Errors: []string{},
			}),
		},
	})

	var subs []rpp.Submission
	app.decode(t, http.StatusOK, &subs, http.MethodGet, "/v1/rpp/submissions", guruToken)
	require.Len(t, subs, 1)
	sub := subs[0]
	assert.Equal(t, guru.ID, sub.TeacherID)
	assert.Equal(t, rpp.StatusDraft, sub.Status)
	submitPath := "/v1/rpp/submissions/" + sub.ID + "/submit"
	reviewPath := "/v1/rpp/submissions/" + sub.ID + "/review"

	t.Run("scoping", func(t *testing.T) {
		app.decode(t, http.StatusOK, &subs, http.MethodGet, "/v1/rpp/submissions", headToken)
		assert.Len(t, subs, 2)
		app.decode(t, http.StatusOK, &subs, http.MethodGet, "/v1/rpp/submissions", adminToken)
		assert.Len(t, subs, 3)

		rec := app.do(http.MethodGet, "/v1/rpp/submissions/"+sub.ID, otherToken)
		assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, rec.Code)
		rec = app.do(http.MethodPost, submitPath, otherToken)
		assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, rec.Code)
	})

	t.Run("submit incomplete", func(t *testing.T) {
		rec := app.do(http.MethodPost, submitPath, guruToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("upload", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/rpp/upload", guruToken, []byte(`{"period_id": "`+p.ID+`", "rpp_type": "mingguan", "file_id": "f"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		for _, typ := range rpp.RequiredTypes {
			var item rpp.Item
			body := marshallObj(t, map[string]string{"period_id": p.ID, "rpp_type": typ, "file_id": "drive/" + typ + ".pdf"})
			app.decode(t, http.StatusOK, &item, http.MethodPost, "/v1/rpp/upload", guruToken, body)
			assert.Equal(t, typ, item.Type)
			assert.True(t, item.IsUploaded())
		}

		var d rpp.Detail
		app.decode(t, http.StatusOK, &d, http.MethodGet, "/v1/rpp/submissions/"+sub.ID, guruToken)
		assert.Equal(t, float64(100), d.CompletionPercentage)
		assert.True(t, d.CanBeSubmitted)
	})

	t.Run("submit", func(t *testing.T) {
		var d rpp.Detail
		app.decode(t, http.StatusOK, &d, http.MethodPost, submitPath, guruToken)
		assert.Equal(t, rpp.StatusPending, d.Status)
		assert.False(t, d.SubmittedAt.IsZero())

		rec := app.do(http.MethodPost, submitPath, guruToken)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var pending []rpp.Submission
		app.decode(t, http.StatusOK, &pending, http.MethodGet, "/v1/rpp/submissions/pending", headToken)
		require.Len(t, pending, 1)
		assert.Equal(t, sub.ID, pending[0].ID)
	})

	t.Run("review", func(t *testing.T) {
		rec := app.do(http.MethodPost, reviewPath, guruToken, []byte(`{"decision": "approve"}`))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = app.do(http.MethodPost, reviewPath, headToken, []byte(`{"decision": "reject"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "notes")

		rec = app.do(http.MethodPost, reviewPath, headToken, []byte(`{"decision": "maybe"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var d rpp.Detail
		app.decode(t, http.StatusOK, &d, http.MethodPost, reviewPath, headToken, []byte(`{"decision": "approve", "notes": "Lengkap"}`))
		assert.Equal(t, rpp.StatusApproved, d.Status)
		assert.Equal(t, head.ID, d.ReviewerID)

		rec = app.do(http.MethodPost, reviewPath, headToken, []byte(`{"decision": "reject", "notes": "late"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		var st rpp.Stats
		app.decode(t, http.StatusOK, &st, http.MethodGet, "/v1/rpp/submissions/stats?period_id="+p.ID, headToken)
		assert.Equal(t, 2, st.Total)
		assert.Equal(t, 1, st.Approved)
		assert.Equal(t, 1, st.Draft)

		app.decode(t, http.StatusOK, &st, http.MethodGet, "/v1/rpp/submissions/stats", guruToken)
		assert.Equal(t, 1, st.Total)
		assert.Equal(t, 1, st.Approved)
	})

	t.Run("metrics recorded", func(t *testing.T) {
		n, err := promtestutil.GatherAndCount(env.Recorder.Gatherer(), "kinerja_http_requests_total")
		require.NoError(t, err)
		assert.Positive(t, n)
	})
}

func Test_rppApi_bulkReviewAndDelete(t *testing.T) {
	app := setup(t)
	env := app.env

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@dinas.id", "", []string{user.RoleAdmin}, true)
	org, head := testutil.CreateSchool(t, env.UserRepo, env.OrganizationRepo, "SDN 1", "kepala")
	guru1 := testutil.CreateMember(t, env.UserRepo, org.ID, "Guru Satu", "guru1", user.RoleGuru)
	guru2 := testutil.CreateMember(t, env.UserRepo, org.ID, "Guru Dua", "guru2", user.RoleGuru)
	p := testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", "Ganjil", "2024-07-15", "2024-12-20", true)

	adminToken := app.token(t, admin)
	headToken := app.token(t, head)

	app.decode(t, http.StatusOK, nil, http.MethodPost, "/v1/rpp/generate", adminToken, marshallObj(t, map[string]string{"period_id": p.ID}))

	var ids []string
	for _, guru := range []user.User{guru1, guru2} {
		guruToken := app.token(t, guru)
		for _, typ := range rpp.RequiredTypes {
			body := marshallObj(t, map[string]string{"period_id": p.ID, "rpp_type": typ, "file_id": guru.Username + "/" + typ})
			app.decode(t, http.StatusOK, nil, http.MethodPost, "/v1/rpp/upload", guruToken, body)
		}
		var subs []rpp.Submission
		app.decode(t, http.StatusOK, &subs, http.MethodGet, "/v1/rpp/submissions", guruToken)
		require.Len(t, subs, 1)
		app.decode(t, http.StatusOK, nil, http.MethodPost, "/v1/rpp/submissions/"+subs[0].ID+"/submit", guruToken)
		ids = append(ids, subs[0].ID)
	}

	t.Run("bulk reject needs notes", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/rpp/submissions/bulk/review", headToken,
			marshallObj(t, map[string]interface{}{"submission_ids": ids, "decision": "reject"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bulk approve", func(t *testing.T) {
		var res rpp.BulkReviewResult
		body := marshallObj(t, map[string]interface{}{"submission_ids": ids, "decision": "approve", "notes": "Lengkap"})
		app.decode(t, http.StatusOK, &res, http.MethodPost, "/v1/rpp/submissions/bulk/review", headToken, body)
		assert.Equal(t, 2, res.Reviewed)
		assert.Equal(t, 0, res.Failed)

		app.decode(t, http.StatusOK, &res, http.MethodPost, "/v1/rpp/submissions/bulk/review", headToken, body)
		assert.Equal(t, 0, res.Reviewed)
		assert.Equal(t, 2, res.Failed)
		assert.Len(t, res.Errors, 2)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/rpp/submissions/"+ids[0], headToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = app.do(http.MethodDelete, "/v1/rpp/submissions/"+ids[0], adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodGet, "/v1/rpp/submissions/"+ids[0], adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// the head's own draft is listed too
		var subs []rpp.Submission
		app.decode(t, http.StatusOK, &subs, http.MethodGet, "/v1/rpp/submissions", adminToken)
		listed := make([]string, 0, len(subs))
		for _, sub := range subs {
			listed = append(listed, sub.ID)
		}
		assert.Len(t, listed, 2)
		assert.NotContains(t, listed, ids[0])
		assert.Contains(t, listed, ids[1])
	})
}
