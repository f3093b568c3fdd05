package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/classify"
	"github.com/contractscan/backend/pkg/logger"
	"github.com/contractscan/backend/pkg/utils"
)

// ErrNoDocumentsProcessed is the only run-fatal condition: every document
// failed. Runs with at least one success always return a result.
var ErrNoDocumentsProcessed = errors.New("no documents could be successfully processed")

// TextSource produces the raw text for a document. Extraction engines (PDF,
// OCR) live behind this interface.
type TextSource interface {
	Extract(ctx context.Context, path string) (string, error)
}

// TextCache holds extracted text for the lifetime of one run. It is cleared
// when the run completes so state never leaks across runs.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
	Clear(ctx context.Context) error
}

// Document is one input file to analyze.
type Document struct {
	Filename string
	Path     string
	SizeKB   int64
}

// JobContext identifies the construction job the documents belong to.
type JobContext struct {
	Name          string `json:"job_name"`
	Number        string `json:"job_number"`
	DirectoryPath string `json:"directory_path"`
}

// FailedFile records a document that produced no classification.
type FailedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// AnalysisRun is the complete result of one orchestration call. It is fully
// populated before being returned and never mutated afterwards.
type AnalysisRun struct {
	ID              string                            `json:"id"`
	Job             JobContext                        `json:"job_info"`
	Message         string                            `json:"message"`
	MainContract    *MainContract                     `json:"main_contract"`
	RankedDocuments []RankedDocument                  `json:"ranked_documents"`
	Stats           AnalysisStats                     `json:"stats"`
	Summary         ClassificationSummary             `json:"classification_summary"`
	FailedFiles     []FailedFile                      `json:"failed_files"`
	Diagnostics     []classify.DocumentClassification `json:"diagnostics"`
	Timestamp       time.Time                         `json:"timestamp"`
}

// Identification is the quick-identify result: just the main contract and a
// derived confidence grade.
type Identification struct {
	Found           bool          `json:"found"`
	Job             JobContext    `json:"job_info"`
	MainContract    *MainContract `json:"main_contract,omitempty"`
	Confidence      classify.Confidence `json:"confidence"`
	TotalDocuments  int           `json:"total_documents"`
	ScanTimeSeconds float64       `json:"scan_time_seconds"`
	Suggestion      string        `json:"suggestion,omitempty"`
}

type Options struct {
	MinViableTextLength int
	Concurrency         int
	CostPerDocument     float64
}

type Orchestrator struct {
	source          TextSource
	classifier      *classify.Classifier
	cache           TextCache
	minTextLength   int
	concurrency     int
	costPerDocument float64
}

func NewOrchestrator(source TextSource, classifier *classify.Classifier, cache TextCache, opts Options) *Orchestrator {
	if opts.MinViableTextLength <= 0 {
		opts.MinViableTextLength = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &Orchestrator{
		source:          source,
		classifier:      classifier,
		cache:           cache,
		minTextLength:   opts.MinViableTextLength,
		concurrency:     opts.Concurrency,
		costPerDocument: opts.CostPerDocument,
	}
}

// outcome is exactly one of: a classification, a diagnostic (oracle
// failure), or a failed file (extraction failure or timeout).
type outcome struct {
	classification *classify.DocumentClassification
	diagnostic     *classify.DocumentClassification
	failed         *FailedFile
}

// Analyze runs the full pipeline: extract, classify, score, rank,
// summarize. Per-document failures are recovered locally; the run itself
// fails only when nothing classified successfully.
func (o *Orchestrator) Analyze(ctx context.Context, docs []Document, job JobContext) (*AnalysisRun, error) {
	start := time.Now()

	logger.Info("starting directory analysis",
		zap.String("job_name", job.Name),
		zap.Int("documents", len(docs)),
	)

	outcomes := o.processAll(ctx, docs, job)

	if o.cache != nil {
		if err := o.cache.Clear(context.Background()); err != nil {
			logger.Warn("failed to clear run cache", zap.Error(err))
		}
	}

	var classifications []classify.DocumentClassification
	var diagnostics []classify.DocumentClassification
	failedFiles := []FailedFile{}

	for _, out := range outcomes {
		switch {
		case out.classification != nil:
			classifications = append(classifications, *out.classification)
		case out.diagnostic != nil:
			diagnostics = append(diagnostics, *out.diagnostic)
		case out.failed != nil:
			failedFiles = append(failedFiles, *out.failed)
		}
	}

	if len(classifications) == 0 {
		return nil, fmt.Errorf("%w: %d file(s), %d failed, %d classification error(s)",
			ErrNoDocumentsProcessed, len(docs), len(failedFiles), len(diagnostics))
	}

	ranked, main := RankDocuments(classifications)

	elapsed := time.Since(start).Seconds()
	estimatedCost := float64(len(docs)) * o.costPerDocument
	stats := ComputeStats(len(docs), classifications, len(failedFiles)+len(diagnostics), elapsed, estimatedCost)
	summary := Summarize(classifications)

	run := &AnalysisRun{
		ID:              uuid.New().String(),
		Job:             job,
		Message:         successMessage(len(classifications), len(docs), main),
		MainContract:    main,
		RankedDocuments: ranked,
		Stats:           stats,
		Summary:         summary,
		FailedFiles:     failedFiles,
		Diagnostics:     diagnostics,
		Timestamp:       time.Now().UTC(),
	}

	mainName := "not identified"
	if main != nil {
		mainName = main.Filename
	}
	logger.Info("directory analysis completed",
		zap.String("run_id", run.ID),
		zap.Float64("seconds", elapsed),
		zap.String("main_contract", mainName),
	)

	return run, nil
}

// processAll fans documents out to a bounded number of workers. Results are
// written back by input index so ranking tie-breaks see the original
// directory order, never completion order.
func (o *Orchestrator) processAll(ctx context.Context, docs []Document, job JobContext) []outcome {
	outcomes := make([]outcome, len(docs))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = outcome{failed: &FailedFile{Filename: doc.Filename, Reason: "timed out"}}
				return
			}

			outcomes[i] = o.processOne(ctx, doc, job)
		}(i, docs[i])
	}

	wg.Wait()
	return outcomes
}

func (o *Orchestrator) processOne(ctx context.Context, doc Document, job JobContext) outcome {
	if ctx.Err() != nil {
		return outcome{failed: &FailedFile{Filename: doc.Filename, Reason: "timed out"}}
	}

	text, err := o.loadText(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{failed: &FailedFile{Filename: doc.Filename, Reason: "timed out"}}
		}
		logger.Warn("text extraction failed",
			zap.String("filename", doc.Filename),
			zap.Error(err),
		)
		return outcome{failed: &FailedFile{Filename: doc.Filename, Reason: err.Error()}}
	}

	// Near-empty text means the document is unreadable; do not spend an
	// oracle call on it.
	if len(strings.TrimSpace(text)) < o.minTextLength {
		return outcome{failed: &FailedFile{
			Filename: doc.Filename,
			Reason:   fmt.Sprintf("insufficient text extracted (%d chars)", len(strings.TrimSpace(text))),
		}}
	}

	classification, err := o.classifier.Classify(ctx, text, doc.Filename, job.Name)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{failed: &FailedFile{Filename: doc.Filename, Reason: "timed out"}}
		}
		logger.Warn("classification failed",
			zap.String("filename", doc.Filename),
			zap.Error(err),
		)
		record := classify.ErrorRecord(doc.Filename, len(text), err)
		record.FilePath = doc.Path
		record.FileSizeKB = doc.SizeKB
		return outcome{diagnostic: &record}
	}

	classification.FilePath = doc.Path
	classification.FileSizeKB = doc.SizeKB

	return outcome{classification: &classification}
}

func (o *Orchestrator) loadText(ctx context.Context, doc Document) (string, error) {
	key := utils.DocumentID(doc.Path)

	if o.cache != nil {
		if text, ok, err := o.cache.Get(ctx, key); err == nil && ok {
			return text, nil
		}
	}

	text, err := o.source.Extract(ctx, doc.Path)
	if err != nil {
		return "", err
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, text); err != nil {
			logger.Warn("failed to cache document text", zap.Error(err))
		}
	}

	return text, nil
}

// QuickIdentify runs the same pipeline but reports only the main contract
// with a derived confidence grade.
func (o *Orchestrator) QuickIdentify(ctx context.Context, docs []Document, job JobContext) (*Identification, error) {
	start := time.Now()

	run, err := o.Analyze(ctx, docs, job)
	if err != nil {
		return nil, err
	}

	ident := &Identification{
		Job:             job,
		TotalDocuments:  run.Stats.TotalDocuments,
		ScanTimeSeconds: round2(time.Since(start).Seconds()),
	}

	if run.MainContract == nil {
		ident.Confidence = classify.ConfidenceLow
		ident.Suggestion = "Review documents manually or check if directory contains contract files"
		return ident, nil
	}

	ident.Found = true
	ident.MainContract = run.MainContract
	ident.Confidence = identificationConfidence(run.MainContract)

	return ident, nil
}

// identificationConfidence grades how certain the selection is: HIGH needs
// a strong score, a primary contract, and a confident oracle; MEDIUM needs
// a decent score and a primary contract; everything else is LOW.
func identificationConfidence(main *MainContract) classify.Confidence {
	switch {
	case main.ImportanceScore > 120 &&
		main.DocumentType == classify.TypePrimaryContract &&
		main.Confidence == classify.ConfidenceHigh:
		return classify.ConfidenceHigh
	case main.ImportanceScore > 80 &&
		main.DocumentType == classify.TypePrimaryContract:
		return classify.ConfidenceMedium
	default:
		return classify.ConfidenceLow
	}
}

func successMessage(successful, total int, main *MainContract) string {
	mainInfo := " Main contract: Not identified"
	if main != nil {
		mainInfo = fmt.Sprintf(" Main contract: %s", main.Filename)
	}
	return fmt.Sprintf("Successfully analyzed %d of %d documents.%s", successful, total, mainInfo)
}
