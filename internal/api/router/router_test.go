package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"blood-connect/backend/config"
	"blood-connect/backend/internal/api/handler"
	"blood-connect/backend/pkg/jwt"
	"blood-connect/backend/pkg/metrics"
)

func setupTestRouter(t *testing.T) (http.Handler, *jwt.Manager) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{BodyLimitBytes: 1 << 20},
		Auth:   config.AuthConfig{JWTSecret: "router-test-secret-000", AccessTokenTTL: time.Hour},
	}
	mgr := jwt.NewManager(&cfg.Auth)
	// services are never reached by these requests
	h := &handler.Handler{
		BloodRequest: handler.NewBloodRequestHandler(nil),
		Export:       handler.NewExportHandler(nil),
	}
	return Setup(cfg, h, mgr, nil, metrics.New(prometheus.NewRegistry()), nil, zap.NewNop()), mgr
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "blood_connect_http_requests_total") {
		t.Error("metrics output should include the HTTP request counter")
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/blood-requests", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRouter_AdminRequiresAdminRole(t *testing.T) {
	r, mgr := setupTestRouter(t)
	token, err := mgr.GenerateAccessToken("h1", "hospital")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reconcile-indices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
