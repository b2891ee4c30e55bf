package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Code, rec.Body.String()
}

func TestLifecycleCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveCreated("MT")
	m.ObserveCreated("MT")
	m.ObserveCreated("ST")
	m.ObserveTransition("Pending", "In Progress")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.created.WithLabelValues("MT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.created.WithLabelValues("ST")))

	code, body := scrape(t, m)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `helpdesk_request_transitions_total{from="Pending",to="In Progress"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpTotal.WithLabelValues("/api/requests/{id}", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))

	_, body := scrape(t, m)
	assert.Contains(t, body, `helpdesk_http_request_duration_seconds_bucket{route="/api/requests/{id}"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCreated("MT")
	m.ObserveTransition("Pending", "Cancelled")

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	code, _ := scrape(t, m)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
