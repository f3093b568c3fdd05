package analyze

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/classify"
	"github.com/contractscan/backend/pkg/logger"
)

// strongIndicators mark a filename as the definitive version of a primary
// contract. Matching one overrides raw score among primary contracts.
var strongIndicators = []string{"executed", "clean", "final", "signed"}

// MainContract is the selected governing document plus the evidence for the
// choice.
type MainContract struct {
	classify.DocumentClassification
	ImportanceScore int    `json:"importance_score"`
	RankingReason   string `json:"ranking_reason"`
	TotalDocuments  int    `json:"total_documents_analyzed"`
}

// RankedDocument is a classification enriched with its position in the run.
type RankedDocument struct {
	classify.DocumentClassification
	ImportanceScore int                    `json:"importance_score"`
	Rank            int                    `json:"rank"`
	PriorityLevel   classify.PriorityLevel `json:"priority_level"`
	IsMainContract  bool                   `json:"is_main_contract"`
	RankingReason   string                 `json:"ranking_reason,omitempty"`
}

// SelectMain identifies the single main contract, or nil when no candidate
// exists (an empty result, not an error). Precedence:
//
//  1. ERROR records are dropped.
//  2. Among PRIMARY_CONTRACT entries, the first one (in classification
//     order) whose filename carries a strong indicator wins outright.
//  3. Otherwise the highest-scoring primary contract wins, first-in on ties.
//  4. With no primary contracts at all, the highest-scoring document of any
//     type wins, first-in on ties.
func SelectMain(classifications []classify.DocumentClassification) *MainContract {
	valid := make([]classify.DocumentClassification, 0, len(classifications))
	for _, c := range classifications {
		if c.IsError() {
			continue
		}
		valid = append(valid, c)
	}

	if len(valid) == 0 {
		logger.Warn("no valid classifications for main contract selection")
		return nil
	}

	var primaries []classify.DocumentClassification
	for _, c := range valid {
		if c.DocumentType == classify.TypePrimaryContract {
			primaries = append(primaries, c)
		}
	}

	var chosen classify.DocumentClassification
	var reason string

	switch {
	case len(primaries) > 0:
		if match, indicator, ok := firstWithIndicator(primaries); ok {
			chosen = match
			reason = fmt.Sprintf("Primary contract with '%s' indicator", indicator)
		} else {
			chosen = highestScoring(primaries)
			reason = fmt.Sprintf("Highest scoring among %d primary contracts", len(primaries))
		}
	default:
		chosen = highestScoring(valid)
		reason = fmt.Sprintf("Highest scoring document (type: %s) - no primary contracts found", chosen.DocumentType)
	}

	main := &MainContract{
		DocumentClassification: chosen,
		ImportanceScore:        Score(chosen),
		RankingReason:          reason,
		TotalDocuments:         len(classifications),
	}

	logger.Info("identified main contract",
		zap.String("filename", main.Filename),
		zap.Int("score", main.ImportanceScore),
		zap.String("reason", reason),
	)

	return main
}

func firstWithIndicator(docs []classify.DocumentClassification) (classify.DocumentClassification, string, bool) {
	for _, doc := range docs {
		filename := strings.ToLower(doc.Filename)
		for _, indicator := range strongIndicators {
			if strings.Contains(filename, indicator) {
				return doc, indicator, true
			}
		}
	}
	return classify.DocumentClassification{}, "", false
}

// highestScoring returns the best-scoring document; earlier entries win
// ties so results are stable for a given input order.
func highestScoring(docs []classify.DocumentClassification) classify.DocumentClassification {
	best := docs[0]
	bestScore := Score(best)
	for _, doc := range docs[1:] {
		if s := Score(doc); s > bestScore {
			best = doc
			bestScore = s
		}
	}
	return best
}

// RankDocuments scores and orders all non-ERROR classifications, assigning
// dense 1-based ranks and priority levels. The main contract is selected
// once and flagged in place. The sort is stable: equal scores keep their
// original classification order.
func RankDocuments(classifications []classify.DocumentClassification) ([]RankedDocument, *MainContract) {
	if len(classifications) == 0 {
		return []RankedDocument{}, nil
	}

	main := SelectMain(classifications)

	ranked := make([]RankedDocument, 0, len(classifications))
	flagged := false
	for _, c := range classifications {
		if c.IsError() {
			continue
		}

		doc := RankedDocument{
			DocumentClassification: c,
			ImportanceScore:        Score(c),
		}
		if !flagged && main != nil && c.Filename == main.Filename {
			doc.IsMainContract = true
			doc.RankingReason = main.RankingReason
			flagged = true
		}
		ranked = append(ranked, doc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImportanceScore > ranked[j].ImportanceScore
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].PriorityLevel = priorityLevel(ranked[i])
	}

	logger.Info("ranked documents", zap.Int("count", len(ranked)))
	return ranked, main
}

func priorityLevel(doc RankedDocument) classify.PriorityLevel {
	switch {
	case doc.IsMainContract:
		return classify.PriorityMainContract
	case doc.DocumentType == classify.TypePrimaryContract && doc.Rank <= 3:
		return classify.PriorityHigh
	case doc.Recommendation == classify.RecommendAnalyzeFully:
		return classify.PriorityAnalyzeRecommended
	default:
		return classify.PrioritySupportingDocument
	}
}
