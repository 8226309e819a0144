package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RequestsCreated.Inc()
	m.Adjudications.WithLabelValues("accept").Add(2)

	if got := testutil.ToFloat64(m.RequestsCreated); got != 1 {
		t.Errorf("expected 1 request created, got %v", got)
	}
	if got := testutil.ToFloat64(m.Adjudications.WithLabelValues("accept")); got != 2 {
		t.Errorf("expected 2 accepts, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "blood_connect_blood_requests_created_total 1") {
		t.Errorf("exposition missing counter:\n%s", rec.Body.String())
	}
}

func TestNewWithRuntime(t *testing.T) {
	m := NewWithRuntime()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected go runtime metrics")
	}
}
