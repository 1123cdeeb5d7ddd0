// Package loadqueries imports an allowed-query markdown catalog into the
// studio database.
package loadqueries

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hereditary-eu/obda-studio/internal/catalog"
	studiosqlite "github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite"
)

// Config holds the importer configuration.
type Config struct {
	CatalogPath string
	DBPath      string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		DBPath: envOrDefault(lookup, "OBDA_STUDIO_DB_PATH", filepath.Join("data", "studio.db")),
	}

	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "path to the allowed-query markdown catalog")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.CatalogPath) == "" {
		return Config{}, fmt.Errorf("-catalog is required")
	}
	return cfg, nil
}

// Run parses the catalog file and stores its entries.
func Run(ctx context.Context, cfg Config) error {
	text, err := os.ReadFile(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	entries, err := catalog.Parse(string(text))
	if err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	store, err := studiosqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open studio sqlite store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	if err := catalog.Store(ctx, store, entries); err != nil {
		return fmt.Errorf("store catalog: %w", err)
	}

	log.Printf("loaded %d allowed queries from %s", len(entries), cfg.CatalogPath)
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
