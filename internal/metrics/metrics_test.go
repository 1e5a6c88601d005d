package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *PrometheusMetrics
	assert.NotPanics(t, func() {
		m.ObserveScrape(OutcomeOK)
		m.ObserveLinks(3)
		m.ObserveArticle(ResultContent)
		m.ObserveFetch(TargetSeed, time.Second)
		m.ObserveBatch(time.Second)
		m.ObserveHTTP("/api/scrape", http.StatusOK)
		m.RegisterQueueDepth(func() int { return 1 })
	})
}

func TestMetricsExposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, reg)
	m.RegisterQueueDepth(func() int { return 7 })

	m.ObserveScrape(OutcomeOK)
	m.ObserveScrape(OutcomeOK)
	m.ObserveArticle("http_status:404")
	m.ObserveFetch(TargetArticle, 120*time.Millisecond)

	m.ObserveHTTP("/api/scrape", http.StatusUnprocessableEntity)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "scrapehub_worker_queue_depth 7")
	assert.Contains(t, string(body), `scrapehub_scrape_requests_total{outcome="ok"} 2`)
	assert.Contains(t, string(body), `scrapehub_article_results_total{result="http_status:404"} 1`)
	assert.Contains(t, string(body), `scrapehub_http_requests_total{code="422",route="/api/scrape"} 1`)
	assert.Contains(t, string(body), `scrapehub_fetch_duration_seconds_count{target="article"} 1`)
}
