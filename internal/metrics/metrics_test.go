package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLogEvent("query", "delivered")
	m.ObserveProviderRequest("search", "ok", time.Second)
	m.SetActiveSessions(3)
	m.ObserveAssignment("GMO__WebSearch")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveLogEvent("query", "delivered")
	m.ObserveLogEvent("query", "delivered")
	m.ObserveLogEvent("click", "dropped")
	m.SetActiveSessions(2)
	m.ObserveAssignment("GMO__WebSearch")

	require.Equal(t, 2.0, testutil.ToFloat64(m.logEvents.WithLabelValues("query", "delivered")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.logEvents.WithLabelValues("click", "dropped")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.activeSessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("GMO__WebSearch")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/task/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/task/abc", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, testutil.CollectAndCount(m.httpRequests))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `searchstudy_http_request_duration_seconds_count{method="GET",route="/api/task/{id}",status="202"} 1`)
}
