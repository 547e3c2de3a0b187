package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xaenox/doc-analyzer/internal/models"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	schemaMismatches prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_analyses_total",
			Help: "Document analyses by path and outcome",
		}, []string{"path", "outcome"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_analysis_duration_seconds",
			Help:    "Document analysis duration",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"path"}),
		schemaMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "document_analysis_schema_mismatch_total",
			Help: "Results that did not validate against the caller's schema",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.analyses,
		m.analysisDuration,
		m.schemaMismatches,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes metrics in Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func (m *Metrics) observeRequest(method, route, status string, latency time.Duration) {
	if route == "/metrics" {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

func (m *Metrics) observeAnalysis(path string, outcome models.Outcome, took time.Duration) {
	m.analyses.WithLabelValues(path, string(outcome)).Inc()
	m.analysisDuration.WithLabelValues(path).Observe(took.Seconds())
}

func (m *Metrics) schemaMismatch() {
	m.schemaMismatches.Inc()
}

// outcomeFor maps the handler status onto the analysis outcome label
func outcomeFor(status int) models.Outcome {
	switch status {
	case http.StatusOK:
		return models.OutcomeSucceeded
	case http.StatusNoContent:
		return models.OutcomeEmpty
	case http.StatusGatewayTimeout:
		return models.OutcomeTimedOut
	case statusClientClosedRequest:
		return models.OutcomeCanceled
	default:
		return models.OutcomeFailed
	}
}
