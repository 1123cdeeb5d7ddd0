// Package studio hosts the OBDA workbench: CSV dataset management, the
// mapping editor, engine supervision, and the SPARQL consoles.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hereditary-eu/obda-studio/internal/engine"
	platformconfig "github.com/hereditary-eu/obda-studio/internal/platform/config"
	"github.com/hereditary-eu/obda-studio/internal/platform/timeouts"
	"github.com/hereditary-eu/obda-studio/internal/services/gateway"
	"github.com/hereditary-eu/obda-studio/internal/services/gateway/token"
	studiosqlite "github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite"
	"github.com/hereditary-eu/obda-studio/internal/sparql"
)

// defaultStaticDir serves the bundled stylesheet when no override is set.
const defaultStaticDir = "internal/services/studio/static"

// studioServerEnv captures startup defaults for the studio process.
type studioServerEnv struct {
	DBPath    string `env:"OBDA_STUDIO_DB_PATH"`
	UploadDir string `env:"OBDA_STUDIO_UPLOAD_DIR"`
}

func loadStudioServerEnv() studioServerEnv {
	var cfg studioServerEnv
	_ = platformconfig.ParseEnv(&cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "studio.db")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join("data", "uploads")
	}
	return cfg
}

// Config defines the inputs for the studio process.
type Config struct {
	HTTPAddr string
	DBPath   string
	// EngineConfigPath points at the engine.yaml describing the external
	// SPARQL engine. Engine controls are disabled when empty.
	EngineConfigPath string
	// UploadDir keeps the original uploaded CSV files.
	UploadDir string
	StaticDir string
	// TokenSecret enables bearer token checks on the mounted protected
	// route when set.
	TokenSecret string
	TokenIssuer string
}

// Server hosts the studio HTTP surface and owns the engine supervisor.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	store      *studiosqlite.Store
	supervisor *engine.Supervisor
}

// NewServer builds a configured studio server.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}

	serverEnv := loadStudioServerEnv()
	dbPath := strings.TrimSpace(config.DBPath)
	if dbPath == "" {
		dbPath = serverEnv.DBPath
	}
	uploadDir := strings.TrimSpace(config.UploadDir)
	if uploadDir == "" {
		uploadDir = serverEnv.UploadDir
	}
	store, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}

	engineCfg := engine.Config{}
	if path := strings.TrimSpace(config.EngineConfigPath); path != "" {
		engineCfg, err = engine.LoadConfig(path)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load engine config: %w", err)
		}
	}

	client := sparql.NewClient(engineCfg.Endpoint, nil)
	supervisor := engine.New(engineCfg, client)

	var verifier *token.Verifier
	if secret := strings.TrimSpace(config.TokenSecret); secret != "" {
		verifier = token.NewVerifier(config.TokenIssuer, []byte(secret))
	}
	protected := gateway.NewHandler(store, store, client, verifier)

	staticDir := strings.TrimSpace(config.StaticDir)
	if staticDir == "" {
		staticDir = defaultStaticDir
	}

	handler := NewHandler(store, supervisor, client, engineCfg.TemplatePath, engineCfg.MappingPath, uploadDir, staticDir, protected)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
		store:      store,
		supervisor: supervisor,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("studio server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("studio listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the store and the engine supervisor. The engine process
// itself is left running so it survives web-tier restarts.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.supervisor != nil {
		if err := s.supervisor.Close(); err != nil {
			log.Printf("close engine supervisor: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close studio store: %v", err)
		}
	}
}

func openStore(path string) (*studiosqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := studiosqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open studio sqlite store: %w", err)
	}
	return store, nil
}
