package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(AdmittedTotal)
	AdmittedTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AdmittedTotal))

	ReviewsTotal.WithLabelValues("heuristic", "ok").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ReviewsTotal.WithLabelValues("heuristic", "ok")), 1.0)

	CorpusEntries.Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(CorpusEntries))
}

func TestHandlerExposesMetrics(t *testing.T) {
	StaleTotal.Inc()
	HTTPRequestsTotal.WithLabelValues("/v1/entries/{id}", "GET", "200").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ladder_entries_stale_total")
	assert.Contains(t, body, `ladder_http_requests_total{method="GET",route="/v1/entries/{id}",status="200"}`)
}
