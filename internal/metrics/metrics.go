package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for scrape requests.
const (
	OutcomeOK          = "ok"
	OutcomeInvalidSeed = "invalid_seed"
	OutcomeSeedFailed  = "seed_failed"
)

// Fetch targets.
const (
	TargetSeed    = "seed"
	TargetArticle = "article"
)

// ResultContent labels an article that yielded content.
const ResultContent = "content"

// PrometheusMetrics groups the service's collectors. A nil *PrometheusMetrics
// is valid and records nothing.
type PrometheusMetrics struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	ScrapeRequests  *prometheus.CounterVec
	LinksDiscovered prometheus.Histogram
	ArticleResults  *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	BatchDuration   prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the collectors on reg; gatherer backs Handler.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		registerer: reg,
		gatherer:   gatherer,
		ScrapeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapehub_scrape_requests_total",
				Help: "Scrape requests by outcome",
			},
			[]string{"outcome"},
		),
		LinksDiscovered: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrapehub_links_discovered",
				Help:    "Article links discovered per seed page",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		ArticleResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapehub_article_results_total",
				Help: "Per-link results by outcome (content or failure kind)",
			},
			[]string{"result"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapehub_fetch_duration_seconds",
				Help:    "Time taken to download a page",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"target"},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrapehub_batch_duration_seconds",
				Help:    "Wall-clock time of a whole scrape batch",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapehub_http_requests_total",
				Help: "API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// RegisterQueueDepth exposes the worker queue length as a gauge.
func (m *PrometheusMetrics) RegisterQueueDepth(depth func() int) {
	if m == nil || m.registerer == nil || depth == nil {
		return
	}
	promauto.With(m.registerer).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scrapehub_worker_queue_depth",
			Help: "Jobs waiting in the shared worker queue",
		},
		func() float64 { return float64(depth()) },
	)
}

// Handler serves the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveScrape counts a finished scrape request by outcome.
func (m *PrometheusMetrics) ObserveScrape(outcome string) {
	if m == nil {
		return
	}
	m.ScrapeRequests.WithLabelValues(outcome).Inc()
}

// ObserveLinks records how many article links one seed yielded.
func (m *PrometheusMetrics) ObserveLinks(n int) {
	if m == nil {
		return
	}
	m.LinksDiscovered.Observe(float64(n))
}

// ObserveArticle counts a per-link result: content or a failure kind.
func (m *PrometheusMetrics) ObserveArticle(result string) {
	if m == nil {
		return
	}
	m.ArticleResults.WithLabelValues(result).Inc()
}

// ObserveFetch records one fetch latency for a seed or article target.
func (m *PrometheusMetrics) ObserveFetch(target string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(target).Observe(d.Seconds())
}

// ObserveBatch records the wall time of a whole scrape.
func (m *PrometheusMetrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// ObserveHTTP counts an HTTP response by route pattern and status code.
func (m *PrometheusMetrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
