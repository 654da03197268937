package services

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	aiRequests         *prometheus.CounterVec
	aiTokens           *prometheus.CounterVec
	creditsConsumed    prometheus.Counter
	purchasesCompleted prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "LLM provider calls by provider, feature and outcome.",
		}, []string{"provider", "feature", "outcome"}),
		aiTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "LLM tokens by provider and kind (prompt or completion).",
		}, []string{"provider", "kind"}),
		creditsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Credits consumed by completed analyses.",
		}),
		purchasesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "purchases_completed_total",
			Help: "Credit purchases confirmed as paid.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.aiRequests,
		m.aiTokens,
		m.creditsConsumed,
		m.purchasesCompleted,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by chi route pattern so path parameters do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveAI(provider, feature string, success bool, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.aiRequests.WithLabelValues(provider, feature, outcome).Inc()
	if promptTokens > 0 {
		m.aiTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.aiTokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

func (m *Metrics) CreditConsumed() {
	if m == nil {
		return
	}
	m.creditsConsumed.Inc()
}

func (m *Metrics) PurchaseCompleted() {
	if m == nil {
		return
	}
	m.purchasesCompleted.Inc()
}
