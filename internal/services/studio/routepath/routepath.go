// Package routepath centralizes studio URL path constants.
package routepath

import "strings"

const (
	Root = "/"
)

const (
	StaticPrefix = "/static/"
)

const (
	UploadCSV    = "/upload-csv"
	Query        = "/query"
	GetColumns   = "/get-columns"
	SetLevel     = "/set-level"
	TablesPrefix = "/tables/"
)

const (
	MapFields = "/map-fields"
)

const (
	Engine       = "/engine"
	EngineStatus = "/engine/status"
	EngineLogs   = "/engine/logs"
)

const (
	SPARQL          = "/sparql"
	SPARQLProtected = "/sparql-protected"
)

// TableDelete builds the delete path for a table name.
func TableDelete(table string) string {
	return TablesPrefix + table + "/delete"
}

// TableFromDeletePath extracts the table name from a delete path. It
// returns false when the path does not match the delete pattern.
func TableFromDeletePath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, TablesPrefix)
	if !ok {
		return "", false
	}
	table, ok := strings.CutSuffix(rest, "/delete")
	if !ok || table == "" || strings.Contains(table, "/") {
		return "", false
	}
	return table, true
}
