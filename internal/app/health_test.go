package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected a generated X-Request-ID header")
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "ready" {
		t.Errorf("expected status=ready, got %v", response["status"])
	}
	checks, _ := response["checks"].(map[string]any)
	db, _ := checks["database"].(map[string]any)
	if db["status"] != "ok" {
		t.Errorf("expected database status ok, got %v", db["status"])
	}
}

func TestReadyEndpoint_DatabaseDown(t *testing.T) {
	fs := newFakeStore()
	fs.pingErr = errors.New("connection refused")
	server := NewHTTPServer(newTestService(fs, &fakeCompleter{}), "*", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["ok"] != false || response["status"] != "not_ready" {
		t.Errorf("expected not_ready, got %v", response)
	}
	checks, _ := response["checks"].(map[string]any)
	db, _ := checks["database"].(map[string]any)
	if db["error"] != "connection refused" {
		t.Errorf("expected ping error in checks, got %v", db["error"])
	}
}

func TestOptionsPreflightReturnsCORSHeaders(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "https://app.example", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
