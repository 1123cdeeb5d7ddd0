// Package studio wires configuration for the studio web process.
package studio

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hereditary-eu/obda-studio/internal/services/studio"
)

const defaultHTTPAddr = ":8000"

// Config holds the studio command configuration.
type Config struct {
	HTTPAddr         string
	DBPath           string
	EngineConfigPath string
	UploadDir        string
	StaticDir        string
	TokenSecret      string
	TokenIssuer      string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr:         envOrDefault(lookup, "OBDA_STUDIO_ADDR", defaultHTTPAddr),
		DBPath:           envOrDefault(lookup, "OBDA_STUDIO_DB_PATH", filepath.Join("data", "studio.db")),
		EngineConfigPath: envOrDefault(lookup, "OBDA_STUDIO_ENGINE_CONFIG", ""),
		UploadDir:        envOrDefault(lookup, "OBDA_STUDIO_UPLOAD_DIR", filepath.Join("data", "uploads")),
		StaticDir:        envOrDefault(lookup, "OBDA_STUDIO_STATIC_DIR", ""),
		TokenSecret:      envOrDefault(lookup, "OBDA_STUDIO_TOKEN_SECRET", ""),
		TokenIssuer:      envOrDefault(lookup, "OBDA_STUDIO_TOKEN_ISSUER", "obda-studio"),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.StringVar(&cfg.EngineConfigPath, "engine-config", cfg.EngineConfigPath, "path to engine.yaml (engine controls disabled when empty)")
	fs.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "directory keeping the original uploaded CSV files")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "override for the static asset directory")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Run starts the studio server.
func Run(ctx context.Context, cfg Config) error {
	server, err := studio.NewServer(ctx, studio.Config{
		HTTPAddr:         cfg.HTTPAddr,
		DBPath:           cfg.DBPath,
		EngineConfigPath: cfg.EngineConfigPath,
		UploadDir:        cfg.UploadDir,
		StaticDir:        cfg.StaticDir,
		TokenSecret:      cfg.TokenSecret,
		TokenIssuer:      cfg.TokenIssuer,
	})
	if err != nil {
		return fmt.Errorf("init studio server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve studio: %w", err)
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
