package analyze

import (
	"math"

	"github.com/contractscan/backend/internal/classify"
)

// AnalysisStats are the aggregate numbers for one run.
type AnalysisStats struct {
	TotalDocuments    int     `json:"total_documents"`
	SuccessfulScans   int     `json:"successful_scans"`
	FailedScans       int     `json:"failed_scans"`
	SuccessRate       float64 `json:"success_rate"`
	CriticalDocuments int     `json:"critical_documents"`
	PrimaryContracts  int     `json:"primary_contracts"`
	ExecutedDocuments int     `json:"executed_documents"`
	EstimatedScanCost float64 `json:"estimated_scan_cost"`
	ScanTimeSeconds   float64 `json:"scan_time_seconds"`
}

// ClassificationSummary is the frequency breakdown over successful
// classifications. ERROR records are not counted.
type ClassificationSummary struct {
	TotalDocuments  int            `json:"total_documents"`
	ByType          map[string]int `json:"by_type"`
	ByImportance    map[string]int `json:"by_importance"`
	ByStatus        map[string]int `json:"by_status"`
	Recommendations map[string]int `json:"recommendations"`
}

func Summarize(classifications []classify.DocumentClassification) ClassificationSummary {
	summary := ClassificationSummary{
		TotalDocuments:  len(classifications),
		ByType:          map[string]int{},
		ByImportance:    map[string]int{},
		ByStatus:        map[string]int{},
		Recommendations: map[string]int{},
	}

	for _, c := range classifications {
		if c.IsError() {
			continue
		}
		summary.ByType[string(c.DocumentType)]++
		summary.ByImportance[string(c.Importance)]++
		summary.ByStatus[string(c.Status)]++
		summary.Recommendations[string(c.Recommendation)]++
	}

	return summary
}

func ComputeStats(totalFiles int, classifications []classify.DocumentClassification, failedCount int, scanTime, estimatedCost float64) AnalysisStats {
	successful := 0
	critical := 0
	primaries := 0
	executed := 0

	for _, c := range classifications {
		if c.IsError() {
			continue
		}
		successful++
		if c.Importance == classify.ImportanceCritical {
			critical++
		}
		if c.DocumentType == classify.TypePrimaryContract {
			primaries++
		}
		if c.Status == classify.StatusExecutedSigned {
			executed++
		}
	}

	successRate := 0.0
	if totalFiles > 0 {
		successRate = float64(successful) / float64(totalFiles) * 100
	}

	return AnalysisStats{
		TotalDocuments:    totalFiles,
		SuccessfulScans:   successful,
		FailedScans:       failedCount,
		SuccessRate:       round2(successRate),
		CriticalDocuments: critical,
		PrimaryContracts:  primaries,
		ExecutedDocuments: executed,
		EstimatedScanCost: round2(estimatedCost),
		ScanTimeSeconds:   round2(scanTime),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
