// Package errors provides structured error handling with HTTP status mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Dataset errors
	CodeDatasetNotFound       Code = "DATASET_NOT_FOUND"
	CodeDatasetNameInvalid    Code = "DATASET_NAME_INVALID"
	CodeDatasetEmptyUpload    Code = "DATASET_EMPTY_UPLOAD"
	CodeDatasetMalformedCSV   Code = "DATASET_MALFORMED_CSV"
	CodeDatasetSchemaMismatch Code = "DATASET_SCHEMA_MISMATCH"

	// Mapping errors
	CodeMappingTemplateInvalid   Code = "MAPPING_TEMPLATE_INVALID"
	CodeMappingSelectionMissing  Code = "MAPPING_SELECTION_MISSING"
	CodeMappingUnknownTable      Code = "MAPPING_UNKNOWN_TABLE"
	CodeMappingUnknownColumn     Code = "MAPPING_UNKNOWN_COLUMN"
	CodeMappingWriteFailed       Code = "MAPPING_WRITE_FAILED"
	CodeMappingPlaceholderUnused Code = "MAPPING_PLACEHOLDER_UNUSED"

	// Engine errors
	CodeEngineAlreadyRunning Code = "ENGINE_ALREADY_RUNNING"
	CodeEngineNotRunning     Code = "ENGINE_NOT_RUNNING"
	CodeEngineStartFailed    Code = "ENGINE_START_FAILED"
	CodeEngineUnreachable    Code = "ENGINE_UNREACHABLE"

	// Query-gate errors
	CodeQueryMissing      Code = "QUERY_MISSING"
	CodeTemplateMismatch  Code = "TEMPLATE_MISMATCH"
	CodeLevelInvalid      Code = "LEVEL_INVALID"
	CodeTokenInvalid      Code = "TOKEN_INVALID"
	CodeMethodNotAllowed  Code = "METHOD_NOT_ALLOWED"
	CodeStorageSQLInvalid Code = "STORAGE_SQL_INVALID"
)

// HTTPStatus maps the code to an HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeDatasetNotFound:
		return http.StatusNotFound
	case CodeDatasetNameInvalid, CodeDatasetEmptyUpload, CodeDatasetMalformedCSV,
		CodeDatasetSchemaMismatch,
		CodeMappingTemplateInvalid, CodeMappingSelectionMissing,
		CodeMappingUnknownTable, CodeMappingUnknownColumn,
		CodeMappingPlaceholderUnused,
		CodeQueryMissing, CodeTemplateMismatch, CodeLevelInvalid,
		CodeStorageSQLInvalid:
		return http.StatusBadRequest
	case CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeEngineAlreadyRunning, CodeEngineNotRunning:
		return http.StatusConflict
	case CodeEngineUnreachable:
		return http.StatusBadGateway
	case CodeEngineStartFailed, CodeMappingWriteFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
