package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Get("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/plain", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	tests := []struct {
		route    string
		status   string
		expected float64
	}{
		{"/items/{id}", "418", 2},
		{"/plain", "200", 1},
		{"unmatched", "404", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", tt.route, tt.status))
		if got != tt.expected {
			t.Errorf("requests{route=%q,status=%s} = %v, expected %v", tt.route, tt.status, got, tt.expected)
		}
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveAI(ProviderGemini, "analysis", true, 100, 40)
	m.ObserveAI(ProviderGemini, "analysis", false, 0, 0)
	m.CreditConsumed()
	m.PurchaseCompleted()

	if got := testutil.ToFloat64(m.aiRequests.WithLabelValues(ProviderGemini, "analysis", "failure")); got != 1 {
		t.Errorf("failures = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.aiTokens.WithLabelValues(ProviderGemini, "prompt")); got != 100 {
		t.Errorf("prompt tokens = %v, expected 100", got)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	for _, s := range []string{"credits_consumed_total 1", "purchases_completed_total 1", "ai_tokens_total"} {
		if !strings.Contains(w.Body.String(), s) {
			t.Errorf("exposition missing %q", s)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAI(ProviderOpenAI, "analysis", true, 1, 1)
	m.CreditConsumed()
	m.PurchaseCompleted()
}
