package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/contractscan/backend/pkg/logger"
)

// Completer is the classification oracle contract.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Classifier struct {
	oracle       Completer
	sampleLength int
}

// NewClassifier builds a classifier. sampleLength caps how much document
// text is sent to the oracle (classification runs on a sample, not the full
// document — a deliberate cost and latency trade-off).
func NewClassifier(oracle Completer, sampleLength int) *Classifier {
	if sampleLength <= 0 {
		sampleLength = 2000
	}
	return &Classifier{
		oracle:       oracle,
		sampleLength: sampleLength,
	}
}

// Classify sends a sample of the document to the oracle and parses the
// structured response. Oracle failures are returned as errors; callers
// convert them with ErrorRecord so one bad document never fails a run.
func (c *Classifier) Classify(ctx context.Context, documentText, filename, jobName string) (DocumentClassification, error) {
	sample := documentText
	if len(sample) > c.sampleLength {
		sample = sample[:c.sampleLength]
	}

	prompt := c.buildPrompt(sample, filename, jobName)

	logger.Debug("classifying document", zap.String("filename", filename))

	response, err := c.oracle.Complete(ctx, prompt)
	if err != nil {
		return DocumentClassification{}, fmt.Errorf("classification failed for %s: %w", filename, err)
	}

	classification := parseResponse(response, filename)
	classification.TextLength = len(documentText)

	logger.Info("document classified",
		zap.String("filename", filename),
		zap.String("document_type", string(classification.DocumentType)),
		zap.String("confidence", string(classification.Confidence)),
	)

	return classification, nil
}

func (c *Classifier) buildPrompt(sample, filename, jobName string) string {
	return fmt.Sprintf(`
Analyze this CONSTRUCTION contract document and classify it.

FILENAME: %s
JOB: %s

DOCUMENT SAMPLE:
%s

Respond in this EXACT format:

DOCUMENT_TYPE: [PRIMARY_CONTRACT, CHANGE_ORDER, LETTER_OF_INTENT, INSURANCE_DOCUMENT, SCHEDULE, AMENDMENT, PROPOSAL, INVOICE, CORRESPONDENCE, UNKNOWN]
IMPORTANCE: [CRITICAL, HIGH, MEDIUM, LOW]
STATUS: [EXECUTED_SIGNED, DRAFT_UNSIGNED, PROPOSAL, EXPIRED, UNKNOWN]
KEY_PARTIES: [Main companies mentioned]
DOLLAR_AMOUNT: [Any amounts, or NONE]
PROJECT_INFO: [Brief project description]
CONFIDENCE: [HIGH, MEDIUM, LOW]
SUMMARY: [One sentence description]
RECOMMENDATION: [ANALYZE_FULLY, REVIEW_MANUALLY, ARCHIVE, SKIP]
`, filename, jobName, sample)
}

// parseResponse walks the oracle output line by line. Unrecognized lines are
// ignored and missing fields keep their documented defaults, so partial or
// reordered output degrades gracefully.
func parseResponse(response, filename string) DocumentClassification {
	raw := map[string]string{}

	for _, line := range strings.Split(response, "\n") {
		if !strings.Contains(line, ":") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		key := strings.ToUpper(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch {
		case strings.Contains(key, "DOCUMENT_TYPE"):
			raw["document_type"] = value
		case strings.Contains(key, "IMPORTANCE"):
			raw["importance"] = value
		case strings.Contains(key, "STATUS"):
			raw["status"] = value
		case strings.Contains(key, "KEY_PARTIES"):
			raw["key_parties"] = value
		case strings.Contains(key, "DOLLAR_AMOUNT"):
			raw["dollar_amount"] = value
		case strings.Contains(key, "PROJECT_INFO"):
			raw["project_info"] = value
		case strings.Contains(key, "CONFIDENCE"):
			raw["confidence"] = value
		case strings.Contains(key, "SUMMARY"):
			raw["summary"] = value
		case strings.Contains(key, "RECOMMENDATION"):
			raw["recommendation"] = value
		}
	}

	dollarAmount := raw["dollar_amount"]
	if dollarAmount == "" {
		dollarAmount = "NONE"
	}

	return DocumentClassification{
		Filename:       filename,
		DocumentType:   ParseDocumentType(raw["document_type"]),
		Importance:     ParseImportance(raw["importance"]),
		Status:         ParseStatus(raw["status"]),
		Confidence:     ParseConfidence(raw["confidence"]),
		KeyParties:     raw["key_parties"],
		DollarAmount:   dollarAmount,
		ProjectInfo:    raw["project_info"],
		Summary:        raw["summary"],
		Recommendation: ParseRecommendation(raw["recommendation"]),
	}
}

// ErrorRecord builds the ERROR-typed classification that stands in for a
// document whose oracle call failed. Such records are excluded from scoring
// and ranking but stay visible on the run's diagnostics list.
func ErrorRecord(filename string, textLength int, err error) DocumentClassification {
	return DocumentClassification{
		Filename:       filename,
		DocumentType:   TypeError,
		Importance:     ImportanceMedium,
		Status:         StatusUnknown,
		Confidence:     ConfidenceLow,
		DollarAmount:   "NONE",
		Summary:        fmt.Sprintf("Classification failed: %v", err),
		Recommendation: RecommendReviewManually,
		TextLength:     textLength,
		Error:          err.Error(),
	}
}
