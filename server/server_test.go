package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/tdm-reports/config"
	"github.com/giygas/tdm-reports/logging"
)

// MockHTTPHandler implements interfaces.HTTPHandler and echoes the route it served
type MockHTTPHandler struct{}

func (m *MockHTTPHandler) reply(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", name)
		w.Header().Set("X-Params", chi.URLParam(r, "id")+chi.URLParam(r, "file"))
		w.WriteHeader(http.StatusOK)
	}
}

func (m *MockHTTPHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	m.reply("ListResults")(w, r)
}
func (m *MockHTTPHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	m.reply("GetResult")(w, r)
}
func (m *MockHTTPHandler) UploadResult(w http.ResponseWriter, r *http.Request) {
	m.reply("UploadResult")(w, r)
}
func (m *MockHTTPHandler) ExportResult(w http.ResponseWriter, r *http.Request) {
	m.reply("ExportResult")(w, r)
}
func (m *MockHTTPHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	m.reply("ListExports")(w, r)
}
func (m *MockHTTPHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	m.reply("DownloadReport")(w, r)
}
func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	m.reply("HealthCheck")(w, r)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "8080",
		Address:              "localhost",
		Env:                  config.EnvTest,
		LogLevel:             "info",
		MaxRequestBody:       1048576,
		MaxHeaderSize:        1048576,
		PDFConversionTimeout: 60 * time.Second,
	}
}

func TestNewServer(t *testing.T) {
	logging.InitLogger("")
	cfg := testConfig()

	s := NewServer(cfg, &MockHTTPHandler{})

	if s.server.Addr != "localhost:8080" {
		t.Errorf("Expected address localhost:8080, got %s", s.server.Addr)
	}
	if s.server.WriteTimeout != 75*time.Second {
		t.Errorf("Expected write timeout to cover PDF conversion, got %v", s.server.WriteTimeout)
	}
	if s.config != cfg {
		t.Error("Config should be set correctly")
	}
}

func TestServerRoutes(t *testing.T) {
	logging.InitLogger("")
	s := NewServer(testConfig(), &MockHTTPHandler{})

	tests := []struct {
		method  string
		target  string
		handler string
		params  string
	}{
		{"GET", "/health", "HealthCheck", ""},
		{"GET", "/v1/results", "ListResults", ""},
		{"POST", "/v1/results", "UploadResult", ""},
		{"GET", "/v1/results/rif-001", "GetResult", "rif-001"},
		{"POST", "/v1/results/rif-001/export?format=pdf", "ExportResult", "rif-001"},
		{"GET", "/v1/exports", "ListExports", ""},
		{"GET", "/v1/reports/rifampicin_1_20240305T100000.000000.xml", "DownloadReport", "rifampicin_1_20240305T100000.000000.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.RemoteAddr = "127.0.0.1:5000"
			rr := httptest.NewRecorder()
			s.Router().ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rr.Code)
			}
			if got := rr.Header().Get("X-Handler"); got != tt.handler {
				t.Errorf("Expected handler %s, got %s", tt.handler, got)
			}
			if got := rr.Header().Get("X-Params"); got != tt.params {
				t.Errorf("Expected params %q, got %q", tt.params, got)
			}
			if rr.Header().Get("X-RateLimit-Remaining") == "" {
				t.Error("Rate limiter should run on every route")
			}
		})
	}
}

func TestServerNotFoundAndMethods(t *testing.T) {
	logging.InitLogger("")
	s := NewServer(testConfig(), &MockHTTPHandler{})

	tests := []struct {
		method   string
		target   string
		expected int
	}{
		{"GET", "/v1/unknown", http.StatusNotFound},
		{"DELETE", "/v1/results", http.StatusMethodNotAllowed},
		{"GET", "/v1/results/rif-001/export", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		req.RemoteAddr = "127.0.0.1:5000"
		rr := httptest.NewRecorder()
		s.Router().ServeHTTP(rr, req)
		if rr.Code != tt.expected {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.target, tt.expected, rr.Code)
		}
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	logging.InitLogger("")
	s := NewServer(testConfig(), &MockHTTPHandler{})

	// one request so the HTTP counters have a sample
	warm := httptest.NewRequest("GET", "/v1/results", nil)
	warm.RemoteAddr = "127.0.0.1:5000"
	s.Router().ServeHTTP(httptest.NewRecorder(), warm)

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"http_request_total", "results_loaded"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestServerBlocksDirectAccess(t *testing.T) {
	logging.InitLogger("")
	s := NewServer(testConfig(), &MockHTTPHandler{})

	req := httptest.NewRequest("GET", "/v1/results", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rr.Code)
	}
}

func TestServerShutdown(t *testing.T) {
	logging.InitLogger("")
	cfg := testConfig()
	cfg.Port = "0"
	s := NewServer(cfg, &MockHTTPHandler{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
