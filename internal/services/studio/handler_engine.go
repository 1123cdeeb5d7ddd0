package studio

import (
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/templates"
)

func (h *Handler) handleEngine(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.renderEngine(w, r, http.StatusOK, "")
	case http.MethodPost:
		h.handleEngineAction(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleEngineAction(w http.ResponseWriter, r *http.Request) {
	action := r.PostFormValue("action")

	var err error
	switch action {
	case "start":
		err = h.engine.Start(r.Context())
	case "stop":
		// Stopping an engine that is not running is a no-op.
		err = h.engine.Stop(r.Context())
		if apperrors.CodeOf(err) == apperrors.CodeEngineNotRunning {
			err = nil
		}
	case "restart":
		err = h.engine.Restart(r.Context())
	default:
		err = apperrors.New(apperrors.CodeUnknown, "unknown engine action")
	}
	if err != nil {
		log.Printf("studio engine %s: %v", action, err)
		h.renderEngine(w, r, apperrors.HTTPStatus(err), userMessage(err))
		return
	}
	http.Redirect(w, r, routepath.Engine, http.StatusSeeOther)
}

func (h *Handler) renderEngine(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	engineStatus := h.engine.Status()
	view := templates.EngineView{
		State: string(engineStatus.State),
		PID:   engineStatus.PID,
		Stale: engineStatus.Stale,
		Error: errMsg,
	}
	if !engineStatus.StartedAt.IsZero() {
		view.StartedAt = engineStatus.StartedAt.Format(time.RFC3339)
	}

	lines, err := h.engine.TailLog(engineLogLines)
	if err != nil {
		log.Printf("studio tail engine log: %v", err)
	}
	view.Logs = strings.Join(lines, "\n")

	h.renderPage(w, r, status, "Engine", routepath.Engine, templates.EnginePage(view))
}

func (h *Handler) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "use GET"))
		return
	}

	engineStatus := h.engine.Status()
	body := map[string]any{
		"status": string(engineStatus.State),
		"stale":  engineStatus.Stale,
	}
	if engineStatus.PID > 0 {
		body["pid"] = engineStatus.PID
	}
	if !engineStatus.StartedAt.IsZero() {
		body["started_at"] = engineStatus.StartedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleEngineLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "use GET"))
		return
	}

	lines, err := h.engine.TailLog(engineLogLines)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
}
