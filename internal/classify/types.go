// Package classify defines the document classification model and the
// classifier that fills it from the oracle's structured response. Enum
// values are validated here, at the boundary; downstream scoring and ranking
// never see unrecognized tokens.
package classify

import "strings"

type DocumentType string

const (
	TypePrimaryContract   DocumentType = "PRIMARY_CONTRACT"
	TypeChangeOrder       DocumentType = "CHANGE_ORDER"
	TypeLetterOfIntent    DocumentType = "LETTER_OF_INTENT"
	TypeInsuranceDocument DocumentType = "INSURANCE_DOCUMENT"
	TypeSchedule          DocumentType = "SCHEDULE"
	TypeAmendment         DocumentType = "AMENDMENT"
	TypeProposal          DocumentType = "PROPOSAL"
	TypeInvoice           DocumentType = "INVOICE"
	TypeCorrespondence    DocumentType = "CORRESPONDENCE"
	TypeUnknown           DocumentType = "UNKNOWN"
	TypeError             DocumentType = "ERROR"
)

type Importance string

const (
	ImportanceCritical Importance = "CRITICAL"
	ImportanceHigh     Importance = "HIGH"
	ImportanceMedium   Importance = "MEDIUM"
	ImportanceLow      Importance = "LOW"
)

type Status string

const (
	StatusExecutedSigned Status = "EXECUTED_SIGNED"
	StatusDraftUnsigned  Status = "DRAFT_UNSIGNED"
	StatusProposal       Status = "PROPOSAL"
	StatusExpired        Status = "EXPIRED"
	StatusUnknown        Status = "UNKNOWN"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

type Recommendation string

const (
	RecommendAnalyzeFully   Recommendation = "ANALYZE_FULLY"
	RecommendReviewManually Recommendation = "REVIEW_MANUALLY"
	RecommendArchive        Recommendation = "ARCHIVE"
	RecommendSkip           Recommendation = "SKIP"
)

type PriorityLevel string

const (
	PriorityMainContract       PriorityLevel = "MAIN_CONTRACT"
	PriorityHigh               PriorityLevel = "HIGH_PRIORITY"
	PriorityAnalyzeRecommended PriorityLevel = "ANALYZE_RECOMMENDED"
	PrioritySupportingDocument PriorityLevel = "SUPPORTING_DOCUMENT"
)

// DocumentClassification is the per-document result of the oracle call.
// It is built once here and immutable afterwards.
type DocumentClassification struct {
	Filename       string         `json:"filename"`
	DocumentType   DocumentType   `json:"document_type"`
	Importance     Importance     `json:"importance"`
	Status         Status         `json:"status"`
	Confidence     Confidence     `json:"confidence"`
	KeyParties     string         `json:"key_parties"`
	DollarAmount   string         `json:"dollar_amount"`
	ProjectInfo    string         `json:"project_info"`
	Summary        string         `json:"summary"`
	Recommendation Recommendation `json:"recommendation"`
	TextLength     int            `json:"text_length"`
	FileSizeKB     int64          `json:"file_size_kb"`
	FilePath       string         `json:"file_path,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// IsError reports whether this record stands in for a failed classification.
func (c DocumentClassification) IsError() bool {
	return c.DocumentType == TypeError
}

func normalizeToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	return strings.ToUpper(strings.TrimSpace(s))
}

func ParseDocumentType(s string) DocumentType {
	switch DocumentType(normalizeToken(s)) {
	case TypePrimaryContract, TypeChangeOrder, TypeLetterOfIntent,
		TypeInsuranceDocument, TypeSchedule, TypeAmendment, TypeProposal,
		TypeInvoice, TypeCorrespondence, TypeError:
		return DocumentType(normalizeToken(s))
	default:
		return TypeUnknown
	}
}

func ParseImportance(s string) Importance {
	switch Importance(normalizeToken(s)) {
	case ImportanceCritical, ImportanceHigh, ImportanceLow:
		return Importance(normalizeToken(s))
	default:
		return ImportanceMedium
	}
}

func ParseStatus(s string) Status {
	switch Status(normalizeToken(s)) {
	case StatusExecutedSigned, StatusDraftUnsigned, StatusProposal, StatusExpired:
		return Status(normalizeToken(s))
	default:
		return StatusUnknown
	}
}

func ParseConfidence(s string) Confidence {
	switch Confidence(normalizeToken(s)) {
	case ConfidenceHigh, ConfidenceLow:
		return Confidence(normalizeToken(s))
	default:
		return ConfidenceMedium
	}
}

func ParseRecommendation(s string) Recommendation {
	switch Recommendation(normalizeToken(s)) {
	case RecommendAnalyzeFully, RecommendArchive, RecommendSkip:
		return Recommendation(normalizeToken(s))
	default:
		return RecommendReviewManually
	}
}
