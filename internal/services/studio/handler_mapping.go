package studio

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/hereditary-eu/obda-studio/internal/obda"
	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/templates"
)

func (h *Handler) handleMapFields(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.renderMapping(w, r, http.StatusOK, h.mappingStartView())
	case http.MethodPost:
		if r.PostFormValue("action") == "render" {
			h.handleMappingRender(w, r)
			return
		}
		h.handleMappingParse(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// mappingStartView preloads the configured .obda template so the page
// opens straight on the field selection form. Without a configured
// template the page starts from an empty editor.
func (h *Handler) mappingStartView() templates.MappingView {
	if h.templatePath == "" {
		return templates.MappingView{}
	}

	raw, err := os.ReadFile(h.templatePath)
	if err != nil {
		log.Printf("studio read mapping template %s: %v", h.templatePath, err)
		return templates.MappingView{}
	}

	view := templates.MappingView{Template: string(raw)}
	template, err := obda.Parse(view.Template)
	if err != nil {
		log.Printf("studio parse mapping template %s: %v", h.templatePath, err)
		view.Error = userMessage(err)
		return view
	}
	for _, block := range template.Blocks {
		view.Blocks = append(view.Blocks, templates.MappingBlockView{
			MappingID:    block.MappingID,
			Target:       block.Target,
			Placeholders: block.Placeholders,
		})
	}
	return view
}

// renderMapping fills the table list and renders the mapping page.
func (h *Handler) renderMapping(w http.ResponseWriter, r *http.Request, status int, view templates.MappingView) {
	tables, err := h.store.Schema(r.Context())
	if err != nil {
		log.Printf("studio list schema: %v", err)
		if view.Error == "" {
			view.Error = userMessage(err)
		}
	}
	for _, table := range tables {
		view.Tables = append(view.Tables, table.Name)
	}

	h.renderPage(w, r, status, "Field Mapping", routepath.MapFields, templates.MappingPage(view))
}

func (h *Handler) handleMappingParse(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("template")
	view := templates.MappingView{Template: text}

	template, err := obda.Parse(text)
	if err != nil {
		view.Error = userMessage(err)
		h.renderMapping(w, r, apperrors.HTTPStatus(err), view)
		return
	}

	for _, block := range template.Blocks {
		view.Blocks = append(view.Blocks, templates.MappingBlockView{
			MappingID:    block.MappingID,
			Target:       block.Target,
			Placeholders: block.Placeholders,
		})
	}
	h.renderMapping(w, r, http.StatusOK, view)
}

func (h *Handler) handleMappingRender(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("template")
	view := templates.MappingView{Template: text}

	template, err := obda.Parse(text)
	if err != nil {
		view.Error = userMessage(err)
		h.renderMapping(w, r, apperrors.HTTPStatus(err), view)
		return
	}

	selections, err := h.collectSelections(r, template)
	if err != nil {
		view.Blocks = blockViews(template, r)
		view.Error = userMessage(err)
		h.renderMapping(w, r, apperrors.HTTPStatus(err), view)
		return
	}

	rendered, err := template.Render(selections)
	if err != nil {
		view.Blocks = blockViews(template, r)
		view.Error = userMessage(err)
		h.renderMapping(w, r, apperrors.HTTPStatus(err), view)
		return
	}

	view.Blocks = blockViews(template, r)
	view.Rendered = rendered
	for _, edge := range template.Graph(selections) {
		view.Edges = append(view.Edges, templates.GraphEdgeView{FromLabel: edge.FromLabel, ToLabel: edge.ToLabel})
	}

	if h.mappingPath != "" {
		if err := writeMappingFile(h.mappingPath, rendered); err != nil {
			log.Printf("studio write mapping: %v", err)
			view.Error = userMessage(apperrors.Wrap(apperrors.CodeMappingWriteFailed, "the mapping file could not be written", err))
			h.renderMapping(w, r, http.StatusInternalServerError, view)
			return
		}
		view.Flash = fmt.Sprintf("Mapping written to %s.", h.mappingPath)
	}

	h.renderMapping(w, r, http.StatusOK, view)
}

// collectSelections reads the per-block form fields and validates the
// chosen columns against the table schema.
func (h *Handler) collectSelections(r *http.Request, template *obda.Template) (map[string]obda.Selection, error) {
	selections := make(map[string]obda.Selection, len(template.Blocks))
	for _, block := range template.Blocks {
		table := r.PostFormValue("table__" + block.MappingID)
		if table == "" {
			return nil, apperrors.New(apperrors.CodeMappingSelectionMissing,
				fmt.Sprintf("select a table for mapping %s", block.MappingID))
		}

		available, err := h.store.Columns(r.Context(), table)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeDatasetNotFound {
				return nil, apperrors.New(apperrors.CodeMappingUnknownTable,
					fmt.Sprintf("table %s does not exist", table))
			}
			return nil, err
		}

		columns := make(map[string]string, len(block.Placeholders))
		for _, placeholder := range block.Placeholders {
			column := r.PostFormValue("col__" + block.MappingID + "__" + placeholder)
			if column == "" {
				return nil, apperrors.New(apperrors.CodeMappingSelectionMissing,
					fmt.Sprintf("select a column for %s in mapping %s", placeholder, block.MappingID))
			}
			if !slices.Contains(available, column) {
				return nil, apperrors.New(apperrors.CodeMappingUnknownColumn,
					fmt.Sprintf("table %s has no column %s", table, column))
			}
			columns[placeholder] = column
		}
		selections[block.MappingID] = obda.Selection{Table: table, Columns: columns}
	}
	return selections, nil
}

// blockViews rebuilds the block views with the submitted selections so a
// failed render keeps the user's choices onscreen.
func blockViews(template *obda.Template, r *http.Request) []templates.MappingBlockView {
	views := make([]templates.MappingBlockView, 0, len(template.Blocks))
	for _, block := range template.Blocks {
		view := templates.MappingBlockView{
			MappingID:       block.MappingID,
			Target:          block.Target,
			Placeholders:    block.Placeholders,
			SelectedTable:   r.PostFormValue("table__" + block.MappingID),
			SelectedColumns: make(map[string]string, len(block.Placeholders)),
		}
		for _, placeholder := range block.Placeholders {
			if column := r.PostFormValue("col__" + block.MappingID + "__" + placeholder); column != "" {
				view.SelectedColumns[placeholder] = column
			}
		}
		views = append(views, view)
	}
	return views
}

func writeMappingFile(path, rendered string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create mapping dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write mapping file: %w", err)
	}
	return nil
}
