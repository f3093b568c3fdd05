// Package analyze holds the deterministic half of the pipeline: importance
// scoring, ranking, main-contract selection, and the orchestrator that
// drives extraction and classification across a document set.
package analyze

import (
	"strings"

	"github.com/contractscan/backend/internal/classify"
)

// Scoring weights. These are policy, not law — they were tuned against real
// job folders and the selection decision depends on the exact values, so
// changes belong here and nowhere else.
var (
	importanceScores = map[classify.Importance]int{
		classify.ImportanceCritical: 100,
		classify.ImportanceHigh:     70,
		classify.ImportanceMedium:   40,
		classify.ImportanceLow:      20,
	}

	typeScores = map[classify.DocumentType]int{
		classify.TypePrimaryContract:   50,
		classify.TypeChangeOrder:       30,
		classify.TypeAmendment:         25,
		classify.TypeLetterOfIntent:    20,
		classify.TypeInsuranceDocument: 15,
		classify.TypeSchedule:          10,
		classify.TypeCorrespondence:    10,
		classify.TypeProposal:          5,
		classify.TypeInvoice:           5,
	}

	executedIndicators = []string{"executed", "signed", "final", "fully executed"}
	cleanIndicators    = []string{"clean", "final copy", "executed copy"}
	contractIndicators = []string{"contract", "agreement", "ctdot"}
	draftIndicators    = []string{"markup", "mark up", "draft", "redline", "comments"}

	// Higher revisions outrank lower ones; only the first matching tier
	// counts.
	versionTiers = []struct {
		patterns []string
		points   int
	}{
		{[]string{"r3", "rev3", "revision 3"}, 22},
		{[]string{"r2", "rev2", "revision 2"}, 18},
		{[]string{"r1", "rev1", "revision 1"}, 15},
	}
)

// Score computes the additive importance score for a classification. It is
// pure and deterministic: identical inputs always produce identical scores,
// which is what keeps ranking stable across reruns.
func Score(c classify.DocumentClassification) int {
	score := 0

	if base, ok := importanceScores[c.Importance]; ok {
		score += base
	} else {
		score += importanceScores[classify.ImportanceMedium]
	}

	score += typeScores[c.DocumentType]

	switch c.Status {
	case classify.StatusExecutedSigned:
		score += 30
	case classify.StatusDraftUnsigned:
		score += 10
	case classify.StatusProposal:
		score += 5
	}

	filename := strings.ToLower(c.Filename)

	if containsAny(filename, executedIndicators) {
		score += 25
	}
	if containsAny(filename, cleanIndicators) {
		score += 20
	}
	for _, tier := range versionTiers {
		if containsAny(filename, tier.patterns) {
			score += tier.points
			break
		}
	}
	if containsAny(filename, contractIndicators) {
		score += 10
	}
	if containsAny(filename, draftIndicators) {
		score -= 10
	}

	// Larger extractions usually mean the comprehensive document, not a
	// one-page cover letter.
	switch {
	case c.TextLength > 100000:
		score += 15
	case c.TextLength > 50000:
		score += 10
	case c.TextLength > 20000:
		score += 5
	}

	switch c.Confidence {
	case classify.ConfidenceHigh:
		score += 5
	case classify.ConfidenceLow:
		score -= 5
	}

	if score < 0 {
		return 0
	}
	return score
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
