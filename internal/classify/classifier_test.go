package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeOracle struct {
	response string
	err      error
	prompt   string
}

func (f *fakeOracle) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

const fullResponse = `DOCUMENT_TYPE: PRIMARY_CONTRACT
IMPORTANCE: CRITICAL
STATUS: EXECUTED_SIGNED
KEY_PARTIES: Acme Builders, State DOT
DOLLAR_AMOUNT: $4,500,000
PROJECT_INFO: Route 9 bridge replacement
CONFIDENCE: HIGH
SUMMARY: Fully executed prime contract for the bridge replacement.
RECOMMENDATION: ANALYZE_FULLY`

func TestClassifyFullResponse(t *testing.T) {
	oracle := &fakeOracle{response: fullResponse}
	classifier := NewClassifier(oracle, 2000)

	got, err := classifier.Classify(context.Background(), "contract body text that is long enough", "contract.pdf", "Route 9")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if got.DocumentType != TypePrimaryContract {
		t.Errorf("DocumentType = %q", got.DocumentType)
	}
	if got.Importance != ImportanceCritical {
		t.Errorf("Importance = %q", got.Importance)
	}
	if got.Status != StatusExecutedSigned {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %q", got.Confidence)
	}
	if got.KeyParties != "Acme Builders, State DOT" {
		t.Errorf("KeyParties = %q", got.KeyParties)
	}
	if got.DollarAmount != "$4,500,000" {
		t.Errorf("DollarAmount = %q", got.DollarAmount)
	}
	if got.Recommendation != RecommendAnalyzeFully {
		t.Errorf("Recommendation = %q", got.Recommendation)
	}
	if got.Filename != "contract.pdf" {
		t.Errorf("Filename = %q", got.Filename)
	}
	if got.TextLength != len("contract body text that is long enough") {
		t.Errorf("TextLength = %d", got.TextLength)
	}
	if got.IsError() {
		t.Error("IsError() = true for a successful classification")
	}
}

func TestClassifyPartialResponseDefaults(t *testing.T) {
	oracle := &fakeOracle{response: "DOCUMENT_TYPE: SCHEDULE\nSUMMARY: Baseline schedule."}
	classifier := NewClassifier(oracle, 2000)

	got, err := classifier.Classify(context.Background(), "text", "sched.pdf", "Job")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if got.DocumentType != TypeSchedule {
		t.Errorf("DocumentType = %q", got.DocumentType)
	}
	if got.Importance != ImportanceMedium {
		t.Errorf("Importance default = %q, want MEDIUM", got.Importance)
	}
	if got.Status != StatusUnknown {
		t.Errorf("Status default = %q, want UNKNOWN", got.Status)
	}
	if got.Confidence != ConfidenceMedium {
		t.Errorf("Confidence default = %q, want MEDIUM", got.Confidence)
	}
	if got.Recommendation != RecommendReviewManually {
		t.Errorf("Recommendation default = %q, want REVIEW_MANUALLY", got.Recommendation)
	}
	if got.DollarAmount != "NONE" {
		t.Errorf("DollarAmount default = %q, want NONE", got.DollarAmount)
	}
}

func TestClassifyGarbageResponse(t *testing.T) {
	oracle := &fakeOracle{response: "I could not classify this document, sorry."}
	classifier := NewClassifier(oracle, 2000)

	got, err := classifier.Classify(context.Background(), "text", "odd.pdf", "Job")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if got.DocumentType != TypeUnknown {
		t.Errorf("DocumentType = %q, want UNKNOWN", got.DocumentType)
	}
	if got.Importance != ImportanceMedium {
		t.Errorf("Importance = %q, want MEDIUM", got.Importance)
	}
}

func TestClassifyBracketedTokens(t *testing.T) {
	oracle := &fakeOracle{response: "DOCUMENT_TYPE: [change_order]\nIMPORTANCE: [high]"}
	classifier := NewClassifier(oracle, 2000)

	got, err := classifier.Classify(context.Background(), "text", "co.pdf", "Job")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if got.DocumentType != TypeChangeOrder {
		t.Errorf("DocumentType = %q, want CHANGE_ORDER", got.DocumentType)
	}
	if got.Importance != ImportanceHigh {
		t.Errorf("Importance = %q, want HIGH", got.Importance)
	}
}

func TestClassifyTruncatesSample(t *testing.T) {
	oracle := &fakeOracle{response: fullResponse}
	classifier := NewClassifier(oracle, 100)

	fullText := strings.Repeat("x", 500)
	got, err := classifier.Classify(context.Background(), fullText, "big.pdf", "Job")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if strings.Contains(oracle.prompt, strings.Repeat("x", 101)) {
		t.Error("prompt contains more than the sample length of document text")
	}
	if !strings.Contains(oracle.prompt, strings.Repeat("x", 100)) {
		t.Error("prompt is missing the document sample")
	}
	// TextLength reflects the full extraction, not the truncated sample.
	if got.TextLength != 500 {
		t.Errorf("TextLength = %d, want 500", got.TextLength)
	}
}

func TestClassifyPromptContents(t *testing.T) {
	oracle := &fakeOracle{response: fullResponse}
	classifier := NewClassifier(oracle, 2000)

	if _, err := classifier.Classify(context.Background(), "body", "file.pdf", "Route 9"); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	for _, want := range []string{"FILENAME: file.pdf", "JOB: Route 9", "DOCUMENT_TYPE:", "RECOMMENDATION:"} {
		if !strings.Contains(oracle.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestClassifyOracleError(t *testing.T) {
	oracleErr := errors.New("overloaded")
	oracle := &fakeOracle{err: oracleErr}
	classifier := NewClassifier(oracle, 2000)

	_, err := classifier.Classify(context.Background(), "text", "doc.pdf", "Job")
	if err == nil {
		t.Fatal("Classify() error = nil, want wrapped oracle error")
	}
	if !errors.Is(err, oracleErr) {
		t.Errorf("error %v does not wrap the oracle error", err)
	}
	if !strings.Contains(err.Error(), "doc.pdf") {
		t.Errorf("error %v does not name the document", err)
	}
}

func TestErrorRecord(t *testing.T) {
	record := ErrorRecord("bad.pdf", 1234, errors.New("oracle unavailable"))

	if !record.IsError() {
		t.Fatal("IsError() = false")
	}
	if record.DocumentType != TypeError {
		t.Errorf("DocumentType = %q", record.DocumentType)
	}
	if record.Importance != ImportanceMedium {
		t.Errorf("Importance = %q, want MEDIUM", record.Importance)
	}
	if record.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %q, want LOW", record.Confidence)
	}
	if record.Recommendation != RecommendReviewManually {
		t.Errorf("Recommendation = %q", record.Recommendation)
	}
	if record.TextLength != 1234 {
		t.Errorf("TextLength = %d", record.TextLength)
	}
	if !strings.Contains(record.Summary, "oracle unavailable") {
		t.Errorf("Summary = %q", record.Summary)
	}
	if record.Error != "oracle unavailable" {
		t.Errorf("Error = %q", record.Error)
	}
}

func TestParseDefaults(t *testing.T) {
	if got := ParseDocumentType("nonsense"); got != TypeUnknown {
		t.Errorf("ParseDocumentType = %q", got)
	}
	if got := ParseImportance(""); got != ImportanceMedium {
		t.Errorf("ParseImportance = %q", got)
	}
	if got := ParseStatus("half-signed"); got != StatusUnknown {
		t.Errorf("ParseStatus = %q", got)
	}
	if got := ParseConfidence("?"); got != ConfidenceMedium {
		t.Errorf("ParseConfidence = %q", got)
	}
	if got := ParseRecommendation("shred"); got != RecommendReviewManually {
		t.Errorf("ParseRecommendation = %q", got)
	}
}
