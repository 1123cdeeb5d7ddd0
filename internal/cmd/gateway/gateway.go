// Package gateway wires configuration for the protected SPARQL sidecar.
package gateway

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hereditary-eu/obda-studio/internal/services/gateway"
)

const (
	defaultHTTPAddr       = ":8001"
	defaultEngineEndpoint = "http://127.0.0.1:8080/sparql"
)

// Config holds the gateway command configuration.
type Config struct {
	HTTPAddr       string
	DBPath         string
	EngineEndpoint string
	TokenSecret    string
	TokenIssuer    string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr:       envOrDefault(lookup, "OBDA_STUDIO_GATEWAY_ADDR", defaultHTTPAddr),
		DBPath:         envOrDefault(lookup, "OBDA_STUDIO_DB_PATH", filepath.Join("data", "studio.db")),
		EngineEndpoint: envOrDefault(lookup, "OBDA_STUDIO_ENGINE_ENDPOINT", defaultEngineEndpoint),
		TokenSecret:    envOrDefault(lookup, "OBDA_STUDIO_TOKEN_SECRET", ""),
		TokenIssuer:    envOrDefault(lookup, "OBDA_STUDIO_TOKEN_ISSUER", "obda-studio"),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database shared with the studio")
	fs.StringVar(&cfg.EngineEndpoint, "engine-endpoint", cfg.EngineEndpoint, "SPARQL engine endpoint URL")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Run starts the gateway server.
func Run(ctx context.Context, cfg Config) error {
	server, err := gateway.NewServer(ctx, gateway.Config{
		HTTPAddr:       cfg.HTTPAddr,
		DBPath:         cfg.DBPath,
		EngineEndpoint: cfg.EngineEndpoint,
		TokenSecret:    cfg.TokenSecret,
		TokenIssuer:    cfg.TokenIssuer,
	})
	if err != nil {
		return fmt.Errorf("init gateway server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve gateway: %w", err)
	}
	return nil
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup != nil {
		if value, ok := lookup(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
