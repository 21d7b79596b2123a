package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.PagesExportedTotal.Inc()
	a.AssetsStoredTotal.WithLabelValues("true").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PagesExportedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PagesExportedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.AssetsStoredTotal.WithLabelValues("true")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RunsTotal.WithLabelValues("migrate", "succeeded").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `glossary_runs_total{stage="migrate",status="succeeded"} 1`))
}
