package studio

import (
	"log"
	"net/http"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/templates"
)

func (h *Handler) handleSPARQL(w http.ResponseWriter, r *http.Request) {
	view := templates.SPARQLView{}

	if r.Method == http.MethodPost {
		view.Query = r.PostFormValue("query")
		if view.Query == "" {
			view.Error = "Enter a SPARQL query."
		} else {
			results, err := h.sparql.Select(r.Context(), view.Query)
			if err != nil {
				log.Printf("studio sparql query: %v", err)
				view.Error = sparqlErrorMessage(err)
			} else {
				view.Vars = results.Vars
				view.Rows = results.Rows
				view.Ran = true
			}
		}
	}

	// Query failures render inline on the console page.
	h.renderPage(w, r, http.StatusOK, "SPARQL Console", routepath.SPARQL, templates.SPARQLPage(view))
}

// sparqlErrorMessage keeps engine diagnostics onscreen; the engine's own
// error bodies are the most useful signal when a query fails.
func sparqlErrorMessage(err error) string {
	if apperrors.CodeOf(err) == apperrors.CodeEngineUnreachable {
		return "The engine is not reachable. Start it from the Engine page."
	}
	return err.Error()
}
