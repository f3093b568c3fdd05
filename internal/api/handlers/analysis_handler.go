// Package handlers holds the HTTP and WebSocket surface. Handlers validate
// input, translate service errors to status codes, and record API metrics;
// all pipeline logic lives in the services they wrap.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/analyze"
	"github.com/contractscan/backend/internal/metrics"
	"github.com/contractscan/backend/internal/scan"
	"github.com/contractscan/backend/internal/storage/sqlite"
	"github.com/contractscan/backend/pkg/logger"
)

type AnalysisHandler struct {
	scanner      *scan.Scanner
	orchestrator *analyze.Orchestrator
	store        *sqlite.Client
	runTimeout   time.Duration
}

func NewAnalysisHandler(scanner *scan.Scanner, orchestrator *analyze.Orchestrator, store *sqlite.Client, runTimeout time.Duration) *AnalysisHandler {
	return &AnalysisHandler{
		scanner:      scanner,
		orchestrator: orchestrator,
		store:        store,
		runTimeout:   runTimeout,
	}
}

type analyzeRequest struct {
	DirectoryPath string `json:"directory_path"`
}

// ScanDirectory lists a directory's documents with hints and estimates, no
// oracle calls involved.
func (h *AnalysisHandler) ScanDirectory(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.scanner.Scan(req.DirectoryPath)
	if err != nil {
		return scanError(err)
	}

	return c.JSON(result)
}

// AnalyzeDirectory runs the full pipeline and persists the result.
func (h *AnalysisHandler) AnalyzeDirectory(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	scanResult, err := h.scanner.Scan(req.DirectoryPath)
	if err != nil {
		return scanError(err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.runTimeout)
	defer cancel()

	start := time.Now()
	run, err := h.orchestrator.Analyze(ctx, toDocuments(scanResult), jobContext(scanResult))
	metrics.AnalysisDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		if errors.Is(err, analyze.ErrNoDocumentsProcessed) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		logger.Error("analysis failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "analysis failed")
	}

	recordRunMetrics(run)

	if err := h.store.SaveRun(run); err != nil {
		logger.Error("failed to persist analysis run", zap.String("run_id", run.ID), zap.Error(err))
	}

	return c.JSON(run)
}

// IdentifyMainContract runs the quick-identify pipeline: main contract and
// confidence only.
func (h *AnalysisHandler) IdentifyMainContract(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	scanResult, err := h.scanner.Scan(req.DirectoryPath)
	if err != nil {
		return scanError(err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.runTimeout)
	defer cancel()

	start := time.Now()
	ident, err := h.orchestrator.QuickIdentify(ctx, toDocuments(scanResult), jobContext(scanResult))
	metrics.AnalysisDuration.WithLabelValues("identify").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		if errors.Is(err, analyze.ErrNoDocumentsProcessed) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		logger.Error("identification failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "identification failed")
	}

	metrics.AnalysisTotal.WithLabelValues("success").Inc()
	metrics.MainContractConfidence.WithLabelValues(string(ident.Confidence)).Inc()

	return c.JSON(ident)
}

// GetRun returns a persisted analysis run by ID.
func (h *AnalysisHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.store.GetRun(c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "run not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load run")
	}
	return c.JSON(run)
}

// ListRuns returns recent run summaries.
func (h *AnalysisHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list runs")
	}
	return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
}

func toDocuments(result *scan.Result) []analyze.Document {
	docs := make([]analyze.Document, 0, len(result.Files))
	for _, f := range result.Files {
		docs = append(docs, analyze.Document{
			Filename: f.Filename,
			Path:     f.FilePath,
			SizeKB:   f.FileSizeKB,
		})
	}
	return docs
}

func jobContext(result *scan.Result) analyze.JobContext {
	return analyze.JobContext{
		Name:          result.JobName,
		Number:        result.JobNumber,
		DirectoryPath: result.DirectoryPath,
	}
}

func scanError(err error) error {
	switch {
	case errors.Is(err, scan.ErrDirectoryNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, scan.ErrDirectoryEmpty):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scan.ErrInvalidPath):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "scan failed")
	}
}

func recordRunMetrics(run *analyze.AnalysisRun) {
	metrics.AnalysisTotal.WithLabelValues("success").Inc()
	metrics.ScanCost.Add(run.Stats.EstimatedScanCost)
	metrics.ClassificationFailures.Add(float64(len(run.Diagnostics)))
	metrics.ExtractionFailures.Add(float64(len(run.FailedFiles)))
	for _, doc := range run.RankedDocuments {
		metrics.DocumentsClassified.WithLabelValues(string(doc.DocumentType)).Inc()
	}
}
