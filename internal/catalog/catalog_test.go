package catalog

import (
	"context"
	"strings"
	"testing"
)

const sampleCatalog = "# Allowed queries\n\n" +
	"## Level 0\n\n" +
	"Boolean check.\n\n" +
	"```sparql\nASK { ?p a bto:Patient }\n```\n\n" +
	"## Level 2\n\n" +
	"```sparql\nSELECT (AVG(?age) AS ?avg) WHERE { ?p bto:age ?age }\n```\n\n" +
	"```sparql\nSELECT (COUNT(?p) AS ?n) WHERE { ?p a bto:Patient }\n```\n"

func TestParseCatalog(t *testing.T) {
	entries, err := Parse(sampleCatalog)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Level != 0 {
		t.Fatalf("expected first entry level 0, got %d", entries[0].Level)
	}
	if entries[0].Query != "ASK { ?p a bto:Patient }" {
		t.Fatalf("unexpected first query %q", entries[0].Query)
	}
	if entries[1].Level != 2 || entries[2].Level != 2 {
		t.Fatalf("expected level 2 entries, got %d and %d", entries[1].Level, entries[2].Level)
	}

	for _, entry := range entries {
		if entry.Hash != HashQuery(entry.Query) {
			t.Fatalf("entry hash does not match query text")
		}
		if len(entry.Hash) != 128 {
			t.Fatalf("expected hex sha-512 hash, got %d chars", len(entry.Hash))
		}
	}
}

func TestParseCatalogRejectsEmptyDocuments(t *testing.T) {
	if _, err := Parse("# nothing here\n"); err == nil {
		t.Fatal("expected error for catalog without level sections")
	}
	if _, err := Parse("## Level 1\n\nprose only\n"); err == nil {
		t.Fatal("expected error for catalog without sparql fences")
	}
}

func TestHashQueryIsExact(t *testing.T) {
	a := HashQuery("ASK { ?p a bto:Patient }")
	b := HashQuery("ASK  { ?p a bto:Patient }")
	if a == b {
		t.Fatal("expected hash to be sensitive to exact text")
	}
}

func TestNormalizeSpace(t *testing.T) {
	got := NormalizeSpace("  SELECT ?p\n\tWHERE {\r\n ?p a bto:Patient }  ")
	want := "SELECT ?p WHERE { ?p a bto:Patient }"
	if got != want {
		t.Fatalf("NormalizeSpace = %q, want %q", got, want)
	}
}

type recordingWriter struct {
	hashes []string
}

func (w *recordingWriter) PutAllowedQuery(_ context.Context, hash string, _ int, _ string) error {
	w.hashes = append(w.hashes, hash)
	return nil
}

func TestStoreWritesAllEntries(t *testing.T) {
	entries, err := Parse(sampleCatalog)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	writer := &recordingWriter{}
	if err := Store(context.Background(), writer, entries); err != nil {
		t.Fatalf("store entries: %v", err)
	}
	if len(writer.hashes) != len(entries) {
		t.Fatalf("expected %d writes, got %d", len(entries), len(writer.hashes))
	}
	if !strings.EqualFold(writer.hashes[0], entries[0].Hash) {
		t.Fatalf("expected first hash %q, got %q", entries[0].Hash, writer.hashes[0])
	}
}
