package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/kinerja/apps/api/echo"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

var (
	errMissingToken  = httpErr{Error: "missing or malformed jwt"}
	errPermission    = httpErr{Error: "permission denied"}
	errAuthFailed    = httpErr{Error: "authentication failed"}
	errDeactivated   = httpErr{Error: "account deactivated"}
	errNotAuthedUser = httpErr{Error: "user not authenticated"}
)

type testApp struct {
	env    *testutil.Env
	server *echoapi.Server
}

func setup(t *testing.T) *testApp {
	t.Helper()

	env := testutil.NewEnv(t)
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		Validate:        env.Validate,
		Translator:      env.Translator,
		Observer:        env.Recorder,
		UserSvc:         env.UserSvc,
		OrganizationSvc: env.OrganizationSvc,
		PeriodSvc:       env.PeriodSvc,
		AspectSvc:       env.AspectSvc,
		RPPSvc:          env.RPPSvc,
		EvaluationSvc:   env.EvaluationSvc,
		DashboardSvc:    env.DashboardSvc,
	})
	t.Cleanup(func() { _ = server.Close() })
	return &testApp{env: env, server: server}
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	auth := app.server.Auth()
	token, err := auth.GenerateToken(auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

// decode serves the request, checks the status code and unmarshals the response into dest.
func (app *testApp) decode(t *testing.T, wantCode int, dest interface{}, method, path, token string, data ...[]byte) {
	t.Helper()
	rec := app.do(method, path, token, data...)
	require.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
