package metrics

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

func TestMetricsRecordAndExpose(t *testing.T) {
	m := New()
	m.ObserveGeneration("analysis", "Gemini", "success", 2*time.Second)
	m.ObserveGeneration("analysis", "Gemini", "success", time.Second)
	m.ScoutOutcome("blocked")
	m.AddInFlight("image", 2)
	m.AddInFlight("image", -1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generationTotal.WithLabelValues("analysis", "Gemini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoutTotal.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("image")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "campaign_ops_scout_results_total"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGeneration("x", "", "error", time.Millisecond)
	m.ScoutOutcome("found")
	m.SetCircuitOpen(true)
	m.RunsCanceled("mode_switch", 2)
	m.CacheLookup(true)
	m.AddInFlight("audio", 1)
	m.ObserveHTTP("/api/session", http.MethodGet, http.StatusOK, time.Millisecond)
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/mode", http.MethodPost, http.StatusBadRequest, 5*time.Millisecond)
	m.ObserveHTTP("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/mode", "POST", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))
}
