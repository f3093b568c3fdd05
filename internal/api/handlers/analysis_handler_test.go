package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/contractscan/backend/internal/analyze"
	"github.com/contractscan/backend/internal/cache"
	"github.com/contractscan/backend/internal/classify"
	"github.com/contractscan/backend/internal/extract"
	"github.com/contractscan/backend/internal/scan"
	"github.com/contractscan/backend/internal/storage/sqlite"
)

type stubCompleter struct {
	responses map[string]string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	for filename, resp := range s.responses {
		if strings.Contains(prompt, filename) {
			return resp, nil
		}
	}
	return "DOCUMENT_TYPE: CORRESPONDENCE\nIMPORTANCE: LOW\nSTATUS: UNKNOWN\nCONFIDENCE: MEDIUM\nSUMMARY: Letter.\nRECOMMENDATION: ARCHIVE", nil
}

func newTestApp(t *testing.T, oracle *stubCompleter) (*fiber.App, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatal(err)
	}

	scanner := scan.NewScanner([]string{"txt"}, 0.02, 2.0)
	classifier := classify.NewClassifier(oracle, 2000)
	orchestrator := analyze.NewOrchestrator(extract.NewRegistry(), classifier, cache.NewMemory(), analyze.Options{
		MinViableTextLength: 10,
		Concurrency:         2,
		CostPerDocument:     0.02,
	})

	handler := NewAnalysisHandler(scanner, orchestrator, store, time.Minute)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/scan", handler.ScanDirectory)
	api.Post("/analyze", handler.AnalyzeDirectory)
	api.Post("/analyze/identify", handler.IdentifyMainContract)
	api.Get("/runs", handler.ListRuns)
	api.Get("/runs/:id", handler.GetRun)

	return app, store
}

func jobDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "2315 - Route 9 Bridge")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"executed contract.txt": strings.Repeat("The parties agree to the terms herein. ", 5),
		"schedule update.txt":   strings.Repeat("Phase two begins in March. ", 5),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestAnalyzeEndpoint(t *testing.T) {
	oracle := &stubCompleter{responses: map[string]string{
		"executed contract.txt": "DOCUMENT_TYPE: PRIMARY_CONTRACT\nIMPORTANCE: CRITICAL\nSTATUS: EXECUTED_SIGNED\nCONFIDENCE: HIGH\nSUMMARY: Prime contract.\nRECOMMENDATION: ANALYZE_FULLY",
	}}
	app, store := newTestApp(t, oracle)
	dir := jobDir(t)

	resp := postJSON(t, app, "/api/v1/analyze", map[string]string{"directory_path": dir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var run analyze.AnalysisRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}

	if run.MainContract == nil || run.MainContract.Filename != "executed contract.txt" {
		t.Fatalf("MainContract = %+v", run.MainContract)
	}
	if len(run.RankedDocuments) != 2 {
		t.Errorf("RankedDocuments = %d", len(run.RankedDocuments))
	}
	if run.Job.Number != "2315" {
		t.Errorf("Job.Number = %q", run.Job.Number)
	}

	// The run is persisted and retrievable.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	getResp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("GET run status = %d", getResp.StatusCode)
	}

	saved, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if saved.ID != run.ID {
		t.Errorf("persisted ID = %q", saved.ID)
	}
}

func TestScanEndpoint(t *testing.T) {
	app, _ := newTestApp(t, &stubCompleter{})
	dir := jobDir(t)

	resp := postJSON(t, app, "/api/v1/scan", map[string]string{"directory_path": dir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result scan.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d", result.TotalFiles)
	}
	if !result.Files[0].Hints.LikelyExecuted {
		t.Errorf("first file hints = %+v", result.Files[0].Hints)
	}
}

func TestIdentifyEndpoint(t *testing.T) {
	oracle := &stubCompleter{responses: map[string]string{
		"executed contract.txt": "DOCUMENT_TYPE: PRIMARY_CONTRACT\nIMPORTANCE: CRITICAL\nSTATUS: EXECUTED_SIGNED\nCONFIDENCE: HIGH\nSUMMARY: Prime contract.\nRECOMMENDATION: ANALYZE_FULLY",
	}}
	app, _ := newTestApp(t, oracle)
	dir := jobDir(t)

	resp := postJSON(t, app, "/api/v1/analyze/identify", map[string]string{"directory_path": dir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var ident analyze.Identification
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		t.Fatal(err)
	}
	if !ident.Found {
		t.Fatal("Found = false")
	}
	if ident.MainContract.Filename != "executed contract.txt" {
		t.Errorf("MainContract = %q", ident.MainContract.Filename)
	}
	if ident.Confidence != classify.ConfidenceHigh {
		t.Errorf("Confidence = %q", ident.Confidence)
	}
}

func TestAnalyzeDirectoryErrors(t *testing.T) {
	app, _ := newTestApp(t, &stubCompleter{})

	resp := postJSON(t, app, "/api/v1/analyze", map[string]string{"directory_path": "/missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing dir status = %d, want 404", resp.StatusCode)
	}

	empty := t.TempDir()
	resp = postJSON(t, app, "/api/v1/analyze", map[string]string{"directory_path": empty})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty dir status = %d, want 422", resp.StatusCode)
	}

	resp = postJSON(t, app, "/api/v1/analyze", map[string]string{"directory_path": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank path status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	app, _ := newTestApp(t, &stubCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/ghost", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListRunsEndpoint(t *testing.T) {
	oracle := &stubCompleter{}
	app, store := newTestApp(t, oracle)

	run := &analyze.AnalysisRun{
		ID:        "run-abc",
		Job:       analyze.JobContext{Name: "Job"},
		Timestamp: time.Now().UTC(),
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d", body.Count)
	}
}
