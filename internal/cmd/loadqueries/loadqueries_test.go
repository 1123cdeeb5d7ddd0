package loadqueries

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/hereditary-eu/obda-studio/internal/catalog"
	studiosqlite "github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite"
)

const testCatalog = "# Allowed Queries\n\n" +
	"## Level 0\n\n```sparql\nASK { ?s a <http://example.org/Patient> }\n```\n\n" +
	"## Level 2\n\n```sparql\nSELECT (COUNT(?s) AS ?n) WHERE { ?s a <http://example.org/Patient> }\n```\n"

func TestParseConfigRequiresCatalog(t *testing.T) {
	fs := flag.NewFlagSet("load-queries", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil, nil); err == nil {
		t.Fatal("expected error for missing catalog path")
	}
}

func TestRunImportsCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "queries.md")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	dbPath := filepath.Join(dir, "studio.db")

	fs := flag.NewFlagSet("load-queries", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-catalog", catalogPath, "-db-path", dbPath}, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run import: %v", err)
	}

	store, err := studiosqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	hash := catalog.HashQuery("ASK { ?s a <http://example.org/Patient> }")
	entry, ok, err := store.AllowedQuery(context.Background(), hash)
	if err != nil {
		t.Fatalf("allowed query: %v", err)
	}
	if !ok {
		t.Fatal("expected level 0 query to be stored")
	}
	if entry.Level != 0 {
		t.Fatalf("unexpected level %d", entry.Level)
	}
}
