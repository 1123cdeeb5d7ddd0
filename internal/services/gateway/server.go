package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	platformconfig "github.com/hereditary-eu/obda-studio/internal/platform/config"
	"github.com/hereditary-eu/obda-studio/internal/platform/timeouts"
	"github.com/hereditary-eu/obda-studio/internal/services/gateway/token"
	studiosqlite "github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite"
	"github.com/hereditary-eu/obda-studio/internal/sparql"
)

// Config defines the inputs for the gateway process.
//
// The gateway is a sidecar that exposes only the protected SPARQL route.
// It shares the studio database for the allowed-query catalog and the
// selected access level, and relays approved queries to the engine.
type Config struct {
	HTTPAddr       string
	DBPath         string
	EngineEndpoint string
	// TokenSecret enables bearer token checks when set.
	TokenSecret string
	TokenIssuer string
}

// gatewayServerEnv captures startup defaults for the gateway process.
type gatewayServerEnv struct {
	DBPath string `env:"OBDA_STUDIO_DB_PATH"`
}

func loadGatewayServerEnv() gatewayServerEnv {
	var cfg gatewayServerEnv
	_ = platformconfig.ParseEnv(&cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "studio.db")
	}
	return cfg
}

// Server hosts the protected SPARQL endpoint.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	store      *studiosqlite.Store
}

// NewServer builds a configured gateway server.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	endpoint := strings.TrimSpace(config.EngineEndpoint)
	if endpoint == "" {
		return nil, errors.New("engine endpoint is required")
	}

	dbPath := strings.TrimSpace(config.DBPath)
	if dbPath == "" {
		dbPath = loadGatewayServerEnv().DBPath
	}
	store, err := studiosqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open gateway store: %w", err)
	}

	var verifier *token.Verifier
	if secret := strings.TrimSpace(config.TokenSecret); secret != "" {
		verifier = token.NewVerifier(config.TokenIssuer, []byte(secret))
	}

	client := sparql.NewClient(endpoint, nil)
	handler := NewHandler(store, store, client, verifier)

	mux := http.NewServeMux()
	mux.Handle(ProtectedPath, handler)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("gateway server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("gateway listening on %s", s.httpAddr)
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

// Close releases resources held by the server.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close gateway store: %v", err)
		}
	}
}
