package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StockMovements    *prometheus.CounterVec
	ReversalsTotal    *prometheus.CounterVec
	ReversalDuration  prometheus.Histogram
	SkippedReturnLine prometheus.Counter
}

type Config struct {
	Namespace string
	Subsystem string
}

func DefaultConfig() *Config {
	return &Config{Namespace: "omnipos", Subsystem: "ledger"}
}

func New(cfg *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.StockMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_movements_total",
			Help:      "Stock movements written, by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	m.ReversalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "order_reversals_total",
			Help:      "Reversal transactions, by order outcome status and result",
		},
		[]string{"order_status", "result"},
	)

	m.ReversalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "order_reversal_duration_seconds",
			Help:      "Duration of reversal transactions",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.SkippedReturnLine = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reversal_skipped_lines_total",
			Help:      "Order lines skipped during reversal because the variant could not be resolved",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StockMovements,
		m.ReversalsTotal,
		m.ReversalDuration,
		m.SkippedReturnLine,
	)

	return m
}

func (m *Metrics) RecordMovement(kind, reason string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) RecordReversal(orderStatus string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "committed"
	if err != nil {
		result = "rolled_back"
	}
	m.ReversalsTotal.WithLabelValues(orderStatus, result).Inc()
	m.ReversalDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordSkippedLines(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedReturnLine.Add(float64(n))
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
