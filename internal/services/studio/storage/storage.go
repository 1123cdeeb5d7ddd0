// Package storage defines persistence interfaces for the studio service.
package storage

import (
	"context"
	"io"
)

// Table describes a user dataset table and its columns.
type Table struct {
	Name    string
	Columns []string
}

// IngestReport summarizes a completed CSV import.
type IngestReport struct {
	Table    string
	Columns  []string
	Rows     int
	Appended bool
}

// QueryResult holds the outcome of an ad-hoc SQL query. Values are
// stringified for display; NULL becomes the empty string.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// AllowedQuery is a pre-approved SPARQL query keyed by its template hash.
type AllowedQuery struct {
	Hash  string
	Level int
	Query string
}

// DatasetStore manages user-uploaded tables.
type DatasetStore interface {
	// IngestCSV creates table (or appends when the header matches an
	// existing table) from CSV data read from r.
	IngestCSV(ctx context.Context, table string, r io.Reader) (IngestReport, error)
	// Schema lists all user tables with their columns.
	Schema(ctx context.Context) ([]Table, error)
	// Columns lists the column names of a single table.
	Columns(ctx context.Context, table string) ([]string, error)
	// DropTable removes a user table.
	DropTable(ctx context.Context, table string) error
	// RunQuery executes a read-only SQL statement against the datasets.
	RunQuery(ctx context.Context, query string) (QueryResult, error)
}

// LevelStore persists the currently selected access level.
type LevelStore interface {
	Level(ctx context.Context) (string, error)
	SetLevel(ctx context.Context, level string) error
}

// AllowedQueryStore persists the catalog of pre-approved queries.
type AllowedQueryStore interface {
	PutAllowedQuery(ctx context.Context, hash string, level int, query string) error
	// AllowedQuery looks up an entry by hash. The boolean reports whether
	// the hash was found.
	AllowedQuery(ctx context.Context, hash string) (AllowedQuery, bool, error)
}

// Store aggregates the persistence interfaces backed by a single database.
type Store interface {
	DatasetStore
	LevelStore
	AllowedQueryStore

	Close() error
}
