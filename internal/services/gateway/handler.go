// Package gateway serves the token-protected SPARQL endpoint. Clients
// submit the catalog template they instantiated together with the
// instantiated query; only templates in the allowed-query catalog, at or
// below the currently selected access level, get their query relayed to
// the engine.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/hereditary-eu/obda-studio/internal/catalog"
	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/gateway/token"
	"github.com/hereditary-eu/obda-studio/internal/services/shared/accesslevel"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/storage"
	"github.com/hereditary-eu/obda-studio/internal/sparql"
)

// ProtectedPath is the route the gateway serves.
const ProtectedPath = "/sparql-protected"

// emptyResults is returned when the submitted template is not in the
// catalog or the access level denies it. The response shape matches an
// empty SPARQL result set so callers cannot distinguish an unknown
// template from a denied one.
const emptyResults = `{"results":[]}`

// Relay forwards a SPARQL query to the engine and returns its raw answer.
type Relay interface {
	Raw(ctx context.Context, query string) (sparql.Response, error)
}

// Handler authorizes and relays protected SPARQL queries.
type Handler struct {
	queries  storage.AllowedQueryStore
	levels   storage.LevelStore
	relay    Relay
	verifier *token.Verifier
}

// NewHandler builds the protected query handler. A nil verifier disables
// bearer token checks.
func NewHandler(queries storage.AllowedQueryStore, levels storage.LevelStore, relay Relay, verifier *token.Verifier) *Handler {
	return &Handler{
		queries:  queries,
		levels:   levels,
		relay:    relay,
		verifier: verifier,
	}
}

// ServeHTTP handles a protected SPARQL request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "use POST"))
		return
	}

	if h.verifier != nil {
		tokenString, ok := token.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, apperrors.New(apperrors.CodeTokenInvalid, "bearer token is required"))
			return
		}
		if _, err := h.verifier.Verify(tokenString); err != nil {
			writeError(w, err)
			return
		}
	}

	template := strings.TrimSpace(r.PostFormValue("template"))
	query := strings.TrimSpace(r.PostFormValue("query"))
	if template == "" || query == "" {
		writeError(w, apperrors.New(apperrors.CodeQueryMissing, "supply both template and query"))
		return
	}

	entry, found, err := h.queries.AllowedQuery(r.Context(), catalog.HashQuery(template))
	if err != nil {
		log.Printf("gateway allowed query lookup: %v", err)
		writeError(w, err)
		return
	}
	if !found {
		writeEmptyResults(w)
		return
	}

	if catalog.NormalizeSpace(entry.Query) != catalog.NormalizeSpace(template) {
		writeError(w, apperrors.New(apperrors.CodeTemplateMismatch, "template does not match its catalog entry"))
		return
	}

	current, err := h.levels.Level(r.Context())
	if err != nil {
		log.Printf("gateway read access level: %v", err)
		writeError(w, err)
		return
	}
	if entry.Level > accesslevel.Numeric(current) {
		writeEmptyResults(w)
		return
	}

	resp, err := h.relay.Raw(r.Context(), query)
	if err != nil {
		log.Printf("gateway relay: %v", err)
		writeError(w, apperrors.Wrap(apperrors.CodeEngineUnreachable, "relay query", err))
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// writeEmptyResults answers with an empty SPARQL result set.
func writeEmptyResults(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/sparql-results+json")
	_, _ = w.Write([]byte(emptyResults))
}

// errorBody is the JSON error envelope for gateway responses.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Code = string(apperrors.CodeOf(err))
	body.Error.Message = err.Error()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(body)
}
