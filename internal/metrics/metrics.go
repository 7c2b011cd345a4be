package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/appgrove/appgrove-server/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal prometheus.Counter

	profilingActive prometheus.Gauge

	// ingestion pipeline
	importsTotal            *prometheus.CounterVec
	validationFailuresTotal *prometheus.CounterVec
	bundleSizeBytes         prometheus.Histogram

	// moderation and catalog
	moderationTransitions *prometheus.CounterVec
	likesTotal            prometheus.Counter
	xpAwardedTotal        *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics.
// Safe labels only (method, route, code) to avoid path/cardinality explosions.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		importsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_imports_total",
			Help: "Total import attempts by method and outcome (published|duplicate|validation_failed)",
		}, []string{"method", "outcome"}),
		validationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_validation_failures_total",
			Help: "Total validation gate failures by reason",
		}, []string{"reason"}),
		bundleSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_bundle_size_bytes",
			Help:    "Extracted size of accepted bundles",
			Buckets: []float64{65536, 262144, 1048576, 5242880, 10485760, 20971520},
		}),
		moderationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_transitions_total",
			Help: "Total moderation status transitions by target status",
		}, []string{"to"}),
		likesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_likes_total",
			Help: "Total likes recorded",
		}),
		xpAwardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_xp_awarded_total",
			Help: "Total XP points awarded by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.errorsTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.profilingActive,
		m.importsTotal,
		m.validationFailuresTotal,
		m.bundleSizeBytes,
		m.moderationTransitions,
		m.likesTotal,
		m.xpAwardedTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) IncHttpPanic() { m.httpPanicTotal.Inc() }

func (m *ServerMetrics) IncRateLimitDenied() { m.ratelimitDeniedTotal.Inc() }

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        app,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"go_version": vi.GoVersion,
		"vcs_dirty":  dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncImport(method, outcome string) {
	m.importsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *ServerMetrics) IncValidationFailure(reason string) {
	m.validationFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) ObserveBundleSize(bytes int64) {
	m.bundleSizeBytes.Observe(float64(bytes))
}

func (m *ServerMetrics) IncModerationTransition(to string) {
	m.moderationTransitions.WithLabelValues(to).Inc()
}

func (m *ServerMetrics) IncLike() { m.likesTotal.Inc() }

func (m *ServerMetrics) AddXP(reason string, points int) {
	m.xpAwardedTotal.WithLabelValues(reason).Add(float64(points))
}
