package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hereditary-eu/obda-studio/internal/engine"
	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
	studiosqlite "github.com/hereditary-eu/obda-studio/internal/services/studio/storage/sqlite"
	"github.com/hereditary-eu/obda-studio/internal/sparql"
)

type fakeController struct {
	status  engine.Status
	lines   []string
	actions []string
	err     error
}

func (f *fakeController) Start(ctx context.Context) error {
	f.actions = append(f.actions, "start")
	return f.err
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.actions = append(f.actions, "stop")
	return f.err
}

func (f *fakeController) Restart(ctx context.Context) error {
	f.actions = append(f.actions, "restart")
	return f.err
}

func (f *fakeController) Status() engine.Status { return f.status }

func (f *fakeController) TailLog(n int) ([]string, error) { return f.lines, nil }

type fakeQueryClient struct {
	results sparql.Results
	err     error
	queries []string
}

func (f *fakeQueryClient) Select(ctx context.Context, query string) (sparql.Results, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type handlerFixture struct {
	handler     http.Handler
	store       *studiosqlite.Store
	controller  *fakeController
	client      *fakeQueryClient
	mappingPath string
	uploadDir   string
}

func newFixture(t *testing.T) *handlerFixture {
	return newFixtureWithTemplate(t, "")
}

// newFixtureWithTemplate writes templateText to disk and configures the
// handler with its path; an empty text leaves the template unset.
func newFixtureWithTemplate(t *testing.T, templateText string) *handlerFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := studiosqlite.Open(filepath.Join(dir, "studio.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	templatePath := ""
	if templateText != "" {
		templatePath = filepath.Join(dir, "template.obda")
		if err := os.WriteFile(templatePath, []byte(templateText), 0o644); err != nil {
			t.Fatalf("write template: %v", err)
		}
	}

	controller := &fakeController{status: engine.Status{State: engine.StateStopped}}
	client := &fakeQueryClient{}
	mappingPath := filepath.Join(dir, "mapping.obda")
	uploadDir := filepath.Join(dir, "uploads")
	handler := NewHandler(store, controller, client, templatePath, mappingPath, uploadDir, dir, nil)
	return &handlerFixture{
		handler:     handler,
		store:       store,
		controller:  controller,
		client:      client,
		mappingPath: mappingPath,
		uploadDir:   uploadDir,
	}
}

func (f *handlerFixture) ingest(t *testing.T, table, csv string) {
	t.Helper()
	if _, err := f.store.IngestCSV(context.Background(), table, strings.NewReader(csv)); err != nil {
		t.Fatalf("ingest %s: %v", table, err)
	}
}

func (f *handlerFixture) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHomeListsTables(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "name,age\nAda,36\n")

	rec := f.get(t, routepath.Root)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "patients") {
		t.Fatal("expected table name on home page")
	}
	if !strings.Contains(body, "name, age") {
		t.Fatal("expected column list on home page")
	}
}

func TestHomeUnknownPathIs404(t *testing.T) {
	f := newFixture(t)
	if rec := f.get(t, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func (f *handlerFixture) postUpload(t *testing.T, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("csv_files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, routepath.UploadCSV, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadCSV(t *testing.T) {
	f := newFixture(t)

	rec := f.postUpload(t, map[string]string{"patients.csv": "name,age\nAda,36\nGrace,41\n"})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	columns, err := f.store.Columns(context.Background(), "patients")
	if err != nil {
		t.Fatalf("expected table after upload: %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("unexpected columns %v", columns)
	}

	saved, err := filepath.Glob(filepath.Join(f.uploadDir, "*", "patients.csv"))
	if err != nil {
		t.Fatalf("glob uploads: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected the original upload to be kept, got %v", saved)
	}
}

func TestUploadCSVKeepsOriginalsPerUpload(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		rec := f.postUpload(t, map[string]string{"patients.csv": "name,age\nAda,36\n"})
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}

	// Each upload gets its own directory, so the second original does
	// not overwrite the first.
	saved, err := filepath.Glob(filepath.Join(f.uploadDir, "*", "patients.csv"))
	if err != nil {
		t.Fatalf("glob uploads: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected both originals to be kept, got %v", saved)
	}
}

func TestUploadCSVBatch(t *testing.T) {
	f := newFixture(t)

	rec := f.postUpload(t, map[string]string{
		"patients.csv":  "name,age\nAda,36\n",
		"diagnoses.csv": "code\nC10\n",
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	for _, table := range []string{"patients", "diagnoses"} {
		if _, err := f.store.Columns(context.Background(), table); err != nil {
			t.Fatalf("expected table %s after batch upload: %v", table, err)
		}
	}
}

func TestUploadCSVBatchPartialFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.postUpload(t, map[string]string{
		"patients.csv": "name,age\nAda,36\n",
		"empty.csv":    "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "empty.csv") {
		t.Fatal("expected the failing file to be named")
	}

	// The valid file still ingested.
	if _, err := f.store.Columns(context.Background(), "patients"); err != nil {
		t.Fatalf("expected patients table despite batch failure: %v", err)
	}
}

func TestUploadCSVWithoutFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("table_name", "patients")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, routepath.UploadCSV, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestDeleteTable(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "name\nAda\n")

	rec := f.postForm(t, routepath.TableDelete("patients"), url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := f.store.Columns(context.Background(), "patients"); apperrors.CodeOf(err) != apperrors.CodeDatasetNotFound {
		t.Fatalf("expected table to be gone, got %v", err)
	}
}

func TestGetColumns(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "name,age\nAda,36\n")

	rec := f.get(t, routepath.GetColumns+"?table=patients")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode columns: %v", err)
	}
	if len(body.Columns) != 2 || body.Columns[0] != "name" {
		t.Fatalf("unexpected columns %v", body.Columns)
	}

	rec = f.get(t, routepath.GetColumns+"?table=missing")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown table, got %d", rec.Code)
	}
	body = struct {
		Columns []string `json:"columns"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode columns: %v", err)
	}
	if len(body.Columns) != 0 {
		t.Fatalf("expected empty column list, got %v", body.Columns)
	}

	// A table name with no usable characters degrades the same way.
	rec = f.get(t, routepath.GetColumns+"?table=---")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unusable table name, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"columns":[]`) {
		t.Fatalf("expected empty column list, got %s", rec.Body.String())
	}
}

func TestQueryConsole(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "name,age\nAda,36\n")

	rec := f.postForm(t, routepath.Query, url.Values{"query": {"SELECT name FROM patients"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<td>Ada</td>") {
		t.Fatal("expected query result row")
	}

	rec = f.postForm(t, routepath.Query, url.Values{"query": {"SELEC broken"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid sql, got %d", rec.Code)
	}
}

func TestSetLevel(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm(t, routepath.SetLevel, url.Values{"level": {"L3 - Grouped Data"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	level, err := f.store.Level(context.Background())
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if !strings.HasPrefix(level, "L3") {
		t.Fatalf("unexpected level %s", level)
	}

	if rec := f.postForm(t, routepath.SetLevel, url.Values{"level": {"L9 - Root"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", rec.Code)
	}
}

func TestSetLevelRedirectsToReferer(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"level": {"L1 - Simple COUNT Aggregations"}}
	req := httptest.NewRequest(http.MethodPost, routepath.SetLevel, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://studio.test"+routepath.Engine)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if location := rec.Header().Get("Location"); !strings.HasPrefix(location, routepath.Engine) {
		t.Fatalf("expected redirect back to the engine page, got %s", location)
	}
}

const testTemplate = `[PrefixDeclaration]
:       http://example.org/

[MappingDeclaration] @collection [[
mappingId patient-map
target :patient/{id} a :Patient ; :hasName {name} .
source SELECT id, name FROM "placeholder"
]]`

func TestMappingPageLoadsTemplateFromDisk(t *testing.T) {
	f := newFixtureWithTemplate(t, testTemplate)

	rec := f.get(t, routepath.MapFields)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "mappingId patient-map") {
		t.Fatal("expected preloaded template text in editor")
	}
	if !strings.Contains(body, `name="table__patient-map"`) {
		t.Fatal("expected selection form for preloaded template")
	}
}

func TestMappingPageWithoutTemplateShowsEditor(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, routepath.MapFields)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="template"`) {
		t.Fatal("expected template editor")
	}
	if strings.Contains(body, `name="table__`) {
		t.Fatal("expected no selection form without a template")
	}
}

func TestMappingParseShowsBlocks(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm(t, routepath.MapFields, url.Values{
		"action":   {"parse"},
		"template": {testTemplate},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="table__patient-map"`) {
		t.Fatal("expected table select for parsed block")
	}
}

func TestMappingRenderWritesFile(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "id,name\n1,Ada\n")

	rec := f.postForm(t, routepath.MapFields, url.Values{
		"action":                 {"render"},
		"template":               {testTemplate},
		"table__patient-map":     {"patients"},
		"col__patient-map__id":   {"id"},
		"col__patient-map__name": {"name"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	written, err := os.ReadFile(f.mappingPath)
	if err != nil {
		t.Fatalf("expected mapping file: %v", err)
	}
	if !strings.Contains(string(written), `FROM "patients"`) {
		t.Fatalf("expected rewritten FROM clause, got %s", written)
	}
}

func TestMappingRenderMissingSelection(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "id,name\n1,Ada\n")

	rec := f.postForm(t, routepath.MapFields, url.Values{
		"action":   {"render"},
		"template": {testTemplate},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing selection, got %d", rec.Code)
	}
}

func TestMappingRenderUnknownColumn(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "patients", "id,name\n1,Ada\n")

	rec := f.postForm(t, routepath.MapFields, url.Values{
		"action":                 {"render"},
		"template":               {testTemplate},
		"table__patient-map":     {"patients"},
		"col__patient-map__id":   {"id"},
		"col__patient-map__name": {"nope"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown column, got %d", rec.Code)
	}
}

func TestEngineActions(t *testing.T) {
	f := newFixture(t)

	for _, action := range []string{"start", "stop", "restart"} {
		rec := f.postForm(t, routepath.Engine, url.Values{"action": {action}})
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("unexpected status %d for action %s", rec.Code, action)
		}
	}
	if len(f.controller.actions) != 3 {
		t.Fatalf("unexpected actions %v", f.controller.actions)
	}
}

func TestEngineStopWhenStoppedRedirects(t *testing.T) {
	f := newFixture(t)
	f.controller.err = apperrors.New(apperrors.CodeEngineNotRunning, "engine is not running")

	rec := f.postForm(t, routepath.Engine, url.Values{"action": {"stop"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if location := rec.Header().Get("Location"); location != routepath.Engine {
		t.Fatalf("expected redirect to the engine page, got %s", location)
	}
}

func TestEngineActionFailureStaysOnPage(t *testing.T) {
	f := newFixture(t)
	f.controller.err = apperrors.New(apperrors.CodeEngineAlreadyRunning, "engine is already running")

	rec := f.postForm(t, routepath.Engine, url.Values{"action": {"start"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "engine is already running") {
		t.Fatal("expected error message on page")
	}
}

func TestEngineStatusJSON(t *testing.T) {
	f := newFixture(t)
	f.controller.status = engine.Status{
		State:     engine.StateRunning,
		PID:       1234,
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Stale:     true,
	}

	rec := f.get(t, routepath.EngineStatus)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		PID    int    `json:"pid"`
		Stale  bool   `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Status != "running" || body.PID != 1234 || !body.Stale {
		t.Fatalf("unexpected status body %+v", body)
	}
}

func TestEngineLogsJSON(t *testing.T) {
	f := newFixture(t)
	f.controller.lines = []string{"line one", "line two"}

	rec := f.get(t, routepath.EngineLogs)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(body.Lines) != 2 || body.Lines[0] != "line one" {
		t.Fatalf("unexpected lines %v", body.Lines)
	}
}

func TestSPARQLConsole(t *testing.T) {
	f := newFixture(t)
	f.client.results = sparql.Results{
		Vars: []string{"s"},
		Rows: [][]string{{"http://example.org/patient/1"}},
	}

	rec := f.postForm(t, routepath.SPARQL, url.Values{"query": {"SELECT ?s WHERE { ?s ?p ?o }"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http://example.org/patient/1") {
		t.Fatal("expected result value on page")
	}
	if len(f.client.queries) != 1 {
		t.Fatalf("expected one relayed query, got %d", len(f.client.queries))
	}
}

func TestSPARQLConsoleEngineDown(t *testing.T) {
	f := newFixture(t)
	f.client.err = apperrors.New(apperrors.CodeEngineUnreachable, "sparql endpoint unreachable")

	rec := f.postForm(t, routepath.SPARQL, url.Values{"query": {"ASK {}"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Start it from the Engine page") {
		t.Fatal("expected engine-down hint")
	}
}
