package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	sqlitemigrate "github.com/hereditary-eu/obda-studio/internal/platform/storage/sqlitemigrate"
	"github.com/hereditary-eu/obda-studio/internal/services/shared/accesslevel"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/storage"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const levelOptionKey = "access_level"

// internalTables are bookkeeping tables hidden from the dataset schema.
var internalTables = map[string]bool{
	"schema_migrations": true,
	"options":           true,
	"allowed_queries":   true,
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store provides a SQLite-backed store implementing studio storage interfaces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// runMigrations runs embedded SQL migrations.
func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// SanitizeIdentifier converts a raw name into a safe SQL identifier:
// lowercased, non-alphanumeric runs collapsed to underscores, and a
// leading underscore prepended when the name starts with a digit.
func SanitizeIdentifier(name string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastUnderscore = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "", apperrors.New(apperrors.CodeDatasetNameInvalid, "name has no usable characters")
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if !identifierRe.MatchString(out) {
		return "", apperrors.New(apperrors.CodeDatasetNameInvalid, fmt.Sprintf("invalid identifier %q", name))
	}
	return out, nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IngestCSV imports CSV data into table. When the table already exists
// with the same columns the rows are appended; otherwise a new table is
// created with column types inferred from the data.
func (s *Store) IngestCSV(ctx context.Context, table string, r io.Reader) (storage.IngestReport, error) {
	if err := ctx.Err(); err != nil {
		return storage.IngestReport{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.IngestReport{}, fmt.Errorf("storage is not configured")
	}

	name, err := SanitizeIdentifier(table)
	if err != nil {
		return storage.IngestReport{}, err
	}
	if internalTables[name] || strings.HasPrefix(name, "sqlite_") {
		return storage.IngestReport{}, apperrors.New(apperrors.CodeDatasetNameInvalid, fmt.Sprintf("table name %q is reserved", name))
	}

	// The reader enforces the header's field count, so ragged rows fail
	// the ingest instead of losing cells.
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return storage.IngestReport{}, apperrors.New(apperrors.CodeDatasetEmptyUpload, "csv file is empty")
	}
	if err != nil {
		return storage.IngestReport{}, apperrors.Wrap(apperrors.CodeDatasetMalformedCSV, "read csv header", err)
	}

	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		col, err := SanitizeIdentifier(raw)
		if err != nil {
			return storage.IngestReport{}, apperrors.New(apperrors.CodeDatasetMalformedCSV,
				fmt.Sprintf("header column %d has no usable name", i+1))
		}
		for seen[col] {
			col += "_"
		}
		seen[col] = true
		columns = append(columns, col)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return storage.IngestReport{}, apperrors.Wrap(apperrors.CodeDatasetMalformedCSV, "read csv row", err)
		}
		rows = append(rows, record)
	}

	existing, err := s.tableColumns(ctx, name)
	if err != nil && apperrors.CodeOf(err) != apperrors.CodeDatasetNotFound {
		return storage.IngestReport{}, err
	}

	appended := false
	switch {
	case len(existing) == 0:
		types := inferColumnTypes(columns, rows)
		defs := make([]string, len(columns))
		for i, col := range columns {
			defs[i] = quoteIdentifier(col) + " " + types[i]
		}
		create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdentifier(name), strings.Join(defs, ", "))
		if _, err := s.sqlDB.ExecContext(ctx, create); err != nil {
			return storage.IngestReport{}, fmt.Errorf("create table %s: %w", name, err)
		}
	case sameColumns(existing, columns):
		appended = true
	default:
		return storage.IngestReport{}, apperrors.New(apperrors.CodeDatasetSchemaMismatch,
			fmt.Sprintf("table %s exists with a different schema", name))
	}

	if len(rows) > 0 {
		if err := s.insertRows(ctx, name, columns, rows); err != nil {
			return storage.IngestReport{}, err
		}
	}

	return storage.IngestReport{
		Table:    name,
		Columns:  columns,
		Rows:     len(rows),
		Appended: appended,
	}, nil
}

func (s *Store) insertRows(ctx context.Context, table string, columns []string, rows [][]string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
		marks[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, cell := range row {
			if cell == "" {
				args[i] = nil
			} else {
				args[i] = cell
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

// inferColumnTypes picks INTEGER, REAL, or TEXT per column based on the
// values present. Empty cells do not constrain the type.
func inferColumnTypes(columns []string, rows [][]string) []string {
	types := make([]string, len(columns))
	for i := range columns {
		isInt, isReal, hasValue := true, true, false
		for _, row := range rows {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			hasValue = true
			if isInt {
				if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
					isInt = false
				}
			}
			if !isInt && isReal {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					isReal = false
				}
			}
			if !isInt && !isReal {
				break
			}
		}
		switch {
		case !hasValue:
			types[i] = "TEXT"
		case isInt:
			types[i] = "INTEGER"
		case isReal:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return types
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Schema lists user tables with their columns, excluding bookkeeping
// tables and SQLite internals.
func (s *Store) Schema(ctx context.Context) ([]storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if internalTables[name] {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	tables := make([]storage.Table, 0, len(names))
	for _, name := range names {
		columns, err := s.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, storage.Table{Name: name, Columns: columns})
	}
	return tables, nil
}

// Columns lists the column names of a single user table.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	name, err := SanitizeIdentifier(table)
	if err != nil {
		return nil, err
	}
	if internalTables[name] || strings.HasPrefix(name, "sqlite_") {
		return nil, apperrors.New(apperrors.CodeDatasetNotFound, fmt.Sprintf("table %s not found", name))
	}
	return s.tableColumns(ctx, name)
}

func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column info: %w", err)
	}
	if len(columns) == 0 {
		return nil, apperrors.New(apperrors.CodeDatasetNotFound, fmt.Sprintf("table %s not found", table))
	}
	return columns, nil
}

// DropTable removes a user table.
func (s *Store) DropTable(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	name, err := SanitizeIdentifier(table)
	if err != nil {
		return err
	}
	if internalTables[name] || strings.HasPrefix(name, "sqlite_") {
		return apperrors.New(apperrors.CodeDatasetNotFound, fmt.Sprintf("table %s not found", name))
	}
	if _, err := s.tableColumns(ctx, name); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, "DROP TABLE "+quoteIdentifier(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

// RunQuery executes an ad-hoc SQL statement and returns stringified rows.
func (s *Store) RunQuery(ctx context.Context, query string) (storage.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.QueryResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.QueryResult{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return storage.QueryResult{}, apperrors.New(apperrors.CodeQueryMissing, "query is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return storage.QueryResult{}, apperrors.Wrap(apperrors.CodeStorageSQLInvalid, "run query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return storage.QueryResult{}, fmt.Errorf("query columns: %w", err)
	}

	result := storage.QueryResult{Columns: columns}
	values := make([]sql.NullString, len(columns))
	scan := make([]any, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return storage.QueryResult{}, fmt.Errorf("scan query row: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return storage.QueryResult{}, fmt.Errorf("iterate query rows: %w", err)
	}
	return result, nil
}

// Level returns the stored access level, or the default when unset.
func (s *Store) Level(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}

	var level string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT value FROM options WHERE key = ?", levelOptionKey).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return accesslevel.Default(), nil
	}
	if err != nil {
		return "", fmt.Errorf("read access level: %w", err)
	}
	if !accesslevel.Valid(level) {
		return accesslevel.Default(), nil
	}
	return level, nil
}

// SetLevel persists the selected access level.
func (s *Store) SetLevel(ctx context.Context, level string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if !accesslevel.Valid(level) {
		return apperrors.New(apperrors.CodeLevelInvalid, fmt.Sprintf("unknown access level %q", level))
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO options (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		levelOptionKey, level)
	if err != nil {
		return fmt.Errorf("write access level: %w", err)
	}
	return nil
}

// PutAllowedQuery upserts a pre-approved query entry.
func (s *Store) PutAllowedQuery(ctx context.Context, hash string, level int, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(hash) == "" {
		return fmt.Errorf("query hash is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO allowed_queries (hash, level, query) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET level = excluded.level, query = excluded.query`,
		hash, level, query)
	if err != nil {
		return fmt.Errorf("write allowed query: %w", err)
	}
	return nil
}

// AllowedQuery looks up a pre-approved query by hash.
func (s *Store) AllowedQuery(ctx context.Context, hash string) (storage.AllowedQuery, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.AllowedQuery{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.AllowedQuery{}, false, fmt.Errorf("storage is not configured")
	}

	var entry storage.AllowedQuery
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT hash, level, query FROM allowed_queries WHERE hash = ?", hash).
		Scan(&entry.Hash, &entry.Level, &entry.Query)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.AllowedQuery{}, false, nil
	}
	if err != nil {
		return storage.AllowedQuery{}, false, fmt.Errorf("read allowed query: %w", err)
	}
	return entry, true, nil
}

var _ storage.Store = (*Store)(nil)
