package metricsvc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()

	rec.RecordTransition("rpp_submission", "draft", "pending")
	rec.RecordTransition("rpp_submission", "draft", "pending")
	rec.RecordOutcome("rpp_generate", "created", 3)
	rec.RecordOutcome("rpp_generate", "skipped", 0)
	rec.ObserveRequest(http.MethodGet, "/api/v1/periods", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.transitions.WithLabelValues("rpp_submission", "draft", "pending")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.outcomes.WithLabelValues("rpp_generate", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requests.WithLabelValues(http.MethodGet, "/api/v1/periods", "200")))

	t.Run("zero outcomes are not recorded", func(t *testing.T) {
		assert.Equal(t, 1, testutil.CollectAndCount(rec.outcomes, "kinerja_batch_outcomes_total"))
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		rec.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.Contains(rr.Body.String(), "kinerja_workflow_transitions_total"))
	})
}
