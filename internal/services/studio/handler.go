package studio

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/engine"
	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/shared/accesslevel"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/storage"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/templates"
	"github.com/hereditary-eu/obda-studio/internal/sparql"
)

// engineLogLines caps how many log lines the engine page and the logs
// endpoint return.
const engineLogLines = 200

// engineController abstracts the supervisor for request handling.
type engineController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() engine.Status
	TailLog(n int) ([]string, error)
}

// queryClient submits SPARQL queries on behalf of the console page.
type queryClient interface {
	Select(ctx context.Context, query string) (sparql.Results, error)
}

// Handler routes studio requests.
type Handler struct {
	store        storage.Store
	engine       engineController
	sparql       queryClient
	templatePath string
	mappingPath  string
	uploadDir    string
	staticDir    string
	protected    http.Handler
}

// NewHandler wires the studio routes. The mapping page preloads the
// .obda template at templatePath when it is set; uploaded CSV files are
// kept under uploadDir when it is set.
func NewHandler(store storage.Store, controller engineController, client queryClient, templatePath, mappingPath, uploadDir, staticDir string, protected http.Handler) http.Handler {
	h := &Handler{
		store:        store,
		engine:       controller,
		sparql:       client,
		templatePath: templatePath,
		mappingPath:  mappingPath,
		uploadDir:    uploadDir,
		staticDir:    staticDir,
		protected:    protected,
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(routepath.StaticPrefix, http.StripPrefix(routepath.StaticPrefix, http.FileServer(http.Dir(h.staticDir))))
	mux.Handle(routepath.Root, http.HandlerFunc(h.handleRoot))
	mux.Handle(routepath.UploadCSV, http.HandlerFunc(h.handleUploadCSV))
	mux.Handle(routepath.TablesPrefix, http.HandlerFunc(h.handleTableRoutes))
	mux.Handle(routepath.GetColumns, http.HandlerFunc(h.handleGetColumns))
	mux.Handle(routepath.Query, http.HandlerFunc(h.handleQuery))
	mux.Handle(routepath.SetLevel, http.HandlerFunc(h.handleSetLevel))
	mux.Handle(routepath.MapFields, http.HandlerFunc(h.handleMapFields))
	mux.Handle(routepath.Engine, http.HandlerFunc(h.handleEngine))
	mux.Handle(routepath.EngineStatus, http.HandlerFunc(h.handleEngineStatus))
	mux.Handle(routepath.EngineLogs, http.HandlerFunc(h.handleEngineLogs))
	mux.Handle(routepath.SPARQL, http.HandlerFunc(h.handleSPARQL))
	if h.protected != nil {
		mux.Handle(routepath.SPARQLProtected, h.protected)
	}
	return mux
}

// renderPage writes a full page with the shared layout. The current
// access level rides along so every page shows the level selector.
func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, title, activePath string, body templ.Component) {
	level, err := h.store.Level(r.Context())
	if err != nil {
		log.Printf("studio read level: %v", err)
		level = accesslevel.Default()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Layout(title, activePath, level, accesslevel.Levels, body).Render(r.Context(), w); err != nil {
		log.Printf("studio render %s: %v", r.URL.Path, err)
	}
}

// writeJSON encodes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("studio encode json: %v", err)
	}
}

// writeJSONError encodes err with its mapped HTTP status.
func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), map[string]any{
		"error": map[string]string{
			"code":    string(apperrors.CodeOf(err)),
			"message": err.Error(),
		},
	})
}

// userMessage keeps application error messages onscreen and hides
// internal failures behind a generic line.
func userMessage(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Check the server logs."
}
