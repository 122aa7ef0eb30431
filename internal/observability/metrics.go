package observability

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for chatscan_extractions_total.
const (
	OutcomeOK                   = "ok"
	OutcomeInvalidConfiguration = "invalid_configuration"
	OutcomeUnsupportedImage     = "unsupported_image"
	OutcomeEngineUnavailable    = "engine_unavailable"
	OutcomeCanceled             = "canceled"
	OutcomeError                = "error"
)

// Reason labels for chatscan_region_failures_total.
const (
	ReasonError   = "error"
	ReasonTimeout = "timeout"
)

// Result labels for chatscan_cache_lookups_total.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the Prometheus collectors for the pipeline and the HTTP
// layer. A nil *Metrics records nothing.
type Metrics struct {
	// Pipeline metrics
	extractionsTotal   *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	regionsDetected    prometheus.Histogram
	regionFailures     *prometheus.CounterVec
	fallbackTotal      prometheus.Counter

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheLookups *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. Tests pass a
// fresh prometheus.NewRegistry() so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		extractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatscan_extractions_total",
				Help: "Total number of extraction runs by outcome",
			},
			[]string{"outcome"},
		),
		extractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatscan_extraction_duration_seconds",
				Help:    "End-to-end extraction latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
			},
		),
		regionsDetected: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatscan_regions_detected",
				Help:    "Number of text regions detected per image",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		regionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatscan_region_failures_total",
				Help: "Total number of regions whose recognition failed",
			},
			[]string{"reason"},
		),
		fallbackTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatscan_fallback_total",
				Help: "Total number of extractions that recognized the whole image because no region was detected",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatscan_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatscan_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatscan_cache_lookups_total",
				Help: "Total number of result cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordExtraction records one finished extraction run.
func (m *Metrics) RecordExtraction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(outcome).Inc()
	m.extractionDuration.Observe(duration.Seconds())
}

// RecordRegions records how many regions the detector found.
func (m *Metrics) RecordRegions(count int) {
	if m == nil {
		return
	}
	m.regionsDetected.Observe(float64(count))
}

// RecordRegionFailure records a region whose recognition failed.
func (m *Metrics) RecordRegionFailure(reason string) {
	if m == nil {
		return
	}
	m.regionFailures.WithLabelValues(reason).Inc()
}

// RecordFallback records a whole-image recognition pass.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbackTotal.Inc()
}

// RecordCacheLookup records a result cache lookup.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}

		start := time.Now()
		path := normalizePath(c.Path())
		method := c.Method()

		err := c.Next()

		// The app error handler has not run yet, so take the status from err.
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		m.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
		m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving the exposition of gatherer.
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// normalizePath keeps the path label bounded.
func normalizePath(path string) string {
	if len(path) > 50 {
		return "long_path"
	}
	return path
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
