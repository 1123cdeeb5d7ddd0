package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestNewServerRequiresAddr(t *testing.T) {
	_, err := NewServer(context.Background(), Config{
		DBPath:         filepath.Join(t.TempDir(), "studio.db"),
		EngineEndpoint: "http://127.0.0.1:8080/sparql",
	})
	if err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestNewServerRequiresEngineEndpoint(t *testing.T) {
	_, err := NewServer(context.Background(), Config{
		HTTPAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "studio.db"),
	})
	if err == nil {
		t.Fatal("expected error for missing engine endpoint")
	}
}

func TestServerServesOnlyProtectedRoute(t *testing.T) {
	server, err := NewServer(context.Background(), Config{
		HTTPAddr:       "127.0.0.1:0",
		DBPath:         filepath.Join(t.TempDir(), "studio.db"),
		EngineEndpoint: "http://127.0.0.1:8080/sparql",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for root, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, ProtectedPath, nil)
	rec = httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on protected route, got %d", rec.Code)
	}
}
