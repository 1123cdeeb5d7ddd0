package studio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewServerRequiresAddr(t *testing.T) {
	_, err := NewServer(context.Background(), Config{
		DBPath: filepath.Join(t.TempDir(), "studio.db"),
	})
	if err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestNewServerRejectsBadEngineConfig(t *testing.T) {
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "engine.yaml")
	if err := os.WriteFile(badConfig, []byte("{{{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := NewServer(context.Background(), Config{
		HTTPAddr:         "127.0.0.1:0",
		DBPath:           filepath.Join(dir, "studio.db"),
		EngineConfigPath: badConfig,
	})
	if err == nil {
		t.Fatal("expected error for invalid engine config")
	}
}

func TestServerMountsProtectedRoute(t *testing.T) {
	server, err := NewServer(context.Background(), Config{
		HTTPAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "studio.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	req := httptest.NewRequest(http.MethodGet, "/sparql-protected", nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on protected route, got %d", rec.Code)
	}
}
