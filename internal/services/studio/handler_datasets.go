package studio

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/storage"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/templates"
)

// uploadMemoryLimit bounds how much of a multipart upload is held in
// memory before spilling to disk.
const uploadMemoryLimit = 32 << 20

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routepath.Root {
		http.NotFound(w, r)
		return
	}
	h.renderHome(w, r, http.StatusOK, r.URL.Query().Get("flash"), "")
}

func (h *Handler) renderHome(w http.ResponseWriter, r *http.Request, status int, flash, errMsg string) {
	view := templates.HomeView{
		Flash: flash,
		Error: errMsg,
	}

	tables, err := h.store.Schema(r.Context())
	if err != nil {
		log.Printf("studio list schema: %v", err)
		if view.Error == "" {
			view.Error = userMessage(err)
		}
	}
	for _, table := range tables {
		view.Tables = append(view.Tables, templates.TableView{Name: table.Name, Columns: table.Columns})
	}

	h.renderPage(w, r, status, "Datasets", routepath.Root, templates.HomePage(view))
}

func (h *Handler) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		h.renderHome(w, r, http.StatusBadRequest, "", "The upload could not be read.")
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["csv_files"]
	}
	if len(files) == 0 {
		h.renderHome(w, r, http.StatusBadRequest, "", "Choose at least one CSV file to upload.")
		return
	}

	// A table name override only applies to a single-file upload; batches
	// derive names from the filenames.
	tableOverride := ""
	if len(files) == 1 {
		tableOverride = strings.TrimSpace(r.FormValue("table_name"))
	}

	uploadID := uuid.NewString()
	var flashes, failures []string
	for _, header := range files {
		table := tableOverride
		if table == "" {
			table = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}

		report, err := h.ingestUpload(r, uploadID, header, table)
		if err != nil {
			log.Printf("studio upload %s file %s failed: %v", uploadID, header.Filename, err)
			failures = append(failures, fmt.Sprintf("%s: %s", header.Filename, userMessage(err)))
			continue
		}
		log.Printf("studio upload %s: file=%s table=%s columns=%d rows=%d appended=%t",
			uploadID, header.Filename, report.Table, len(report.Columns), report.Rows, report.Appended)

		verb := "created"
		if report.Appended {
			verb = "extended"
		}
		flashes = append(flashes, fmt.Sprintf("Table %s %s with %d rows.", report.Table, verb, report.Rows))
	}

	if len(failures) > 0 {
		h.renderHome(w, r, http.StatusBadRequest, strings.Join(flashes, " "), strings.Join(failures, " "))
		return
	}
	http.Redirect(w, r, routepath.Root+"?flash="+url.QueryEscape(strings.Join(flashes, " ")), http.StatusSeeOther)
}

// ingestUpload stores one uploaded CSV under the uploads dir (when
// configured) and ingests it into the dataset table. Each upload batch
// gets its own subdirectory so repeated uploads of the same filename
// never clobber an earlier original.
func (h *Handler) ingestUpload(r *http.Request, uploadID string, header *multipart.FileHeader, table string) (storage.IngestReport, error) {
	file, err := header.Open()
	if err != nil {
		return storage.IngestReport{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	if h.uploadDir == "" {
		return h.store.IngestCSV(r.Context(), table, file)
	}

	saved, err := saveUpload(filepath.Join(h.uploadDir, uploadID), header.Filename, file)
	if err != nil {
		return storage.IngestReport{}, err
	}
	reader, err := os.Open(saved)
	if err != nil {
		return storage.IngestReport{}, fmt.Errorf("reopen upload %s: %w", saved, err)
	}
	defer reader.Close()
	return h.store.IngestCSV(r.Context(), table, reader)
}

// saveUpload copies an uploaded file into dir under its base filename.
func saveUpload(dir, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload %s: %w", path, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("save upload %s: %w", path, err)
	}
	return path, nil
}

func (h *Handler) handleTableRoutes(w http.ResponseWriter, r *http.Request) {
	table, ok := routepath.TableFromDeletePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if err := h.store.DropTable(r.Context(), table); err != nil {
		log.Printf("studio drop table %s: %v", table, err)
		h.renderHome(w, r, apperrors.HTTPStatus(err), "", userMessage(err))
		return
	}
	flash := fmt.Sprintf("Table %s deleted.", table)
	http.Redirect(w, r, routepath.Root+"?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}

func (h *Handler) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, apperrors.New(apperrors.CodeMethodNotAllowed, "use GET"))
		return
	}
	table := strings.TrimSpace(r.URL.Query().Get("table"))
	if table == "" {
		writeJSON(w, http.StatusOK, map[string][]string{"columns": {}})
		return
	}

	columns, err := h.store.Columns(r.Context(), table)
	if err != nil {
		// Unknown and unusable table names answer an empty list so the
		// mapping page's column loader degrades quietly.
		switch apperrors.CodeOf(err) {
		case apperrors.CodeDatasetNotFound, apperrors.CodeDatasetNameInvalid:
			writeJSON(w, http.StatusOK, map[string][]string{"columns": {}})
			return
		}
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"columns": columns})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	view := templates.QueryView{}
	status := http.StatusOK

	if r.Method == http.MethodPost {
		view.Query = r.PostFormValue("query")
		result, err := h.store.RunQuery(r.Context(), view.Query)
		if err != nil {
			log.Printf("studio sql query: %v", err)
			view.Error = userMessage(err)
			status = apperrors.HTTPStatus(err)
		} else {
			view.Columns = result.Columns
			view.Rows = result.Rows
			view.Ran = true
		}
	}

	h.renderPage(w, r, status, "SQL Console", routepath.Query, templates.QueryPage(view))
}

func (h *Handler) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	level := r.PostFormValue("level")
	if err := h.store.SetLevel(r.Context(), level); err != nil {
		h.renderHome(w, r, apperrors.HTTPStatus(err), "", userMessage(err))
		return
	}
	flash := fmt.Sprintf("Access level set to %s.", level)
	http.Redirect(w, r, backTo(r)+"?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}

// backTo picks the redirect target after a level change: the referring
// page when it is one of ours, the home page otherwise.
func backTo(r *http.Request) string {
	referer, err := url.Parse(r.Referer())
	if err != nil || referer.Path == "" {
		return routepath.Root
	}
	return referer.Path
}
