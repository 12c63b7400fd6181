package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axonops/axonops-schema-registry/internal/api/handlers"
	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/config"
	"github.com/axonops/axonops-schema-registry/internal/registry"
	"github.com/axonops/axonops-schema-registry/internal/schema"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	schemaParser := schema.NewRegistry()
	state := registry.NewState(schemaParser, compatibility.ModeBackward, slog.Default())
	return NewServer(cfg, slog.Default(), WithLogReplay(state, nil, compatibility.NewChecker(), schemaParser, handlers.Config{
		ClusterID: "test-cluster",
		Version:   "0.0.0-test",
	}))
}

func TestNewServer_PanicsWithoutLogReplay(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewServer to panic when WithLogReplay is not supplied")
		}
	}()
	NewServer(config.DefaultConfig(), slog.Default())
}

func TestServer_HealthCheck(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_LivenessCheck(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health/live = %d, want %d", rec.Code, http.StatusOK)
	}
}

// ReadinessCheck and StartupCheck report 503 until the reader loop marks
// state ready; no reader loop runs in this test, so state starts and stays
// not-ready.
func TestServer_ReadinessCheck_NotReadyUntilStateCatchesUp(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health/ready", "/health/startup"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestServer_GetSchemaTypes(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/schemas/types", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /schemas/types = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_DocsDisabledByDefault(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /docs with DocsEnabled=false = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_Address(t *testing.T) {
	srv := newTestServer(t)
	if got := srv.Address(); got == "" {
		t.Fatal("Address() returned empty string")
	}
}
