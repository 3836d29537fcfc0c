package pipeline

import (
	"strings"

	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/retrieval"
)

const (
	lowConfWarning = "검증 가능한 출처가 부족하거나 유사도가 낮아 부정확할 수 있어요."
	decisionPrompt = "저신뢰 상태입니다. 1) 그대로 진행(정확도 낮음 허용), 2) 질문 다듬기 중 선택해 주세요."
	clarifyAnswer  = "질문을 조금 더 구체적으로 적어 주시겠어요? 요리 이름이나 궁금한 점(레시피, 보관, 대체재 등)을 함께 알려 주시면 정확히 답변드릴 수 있어요."
)

var suggestedActions = []string{"proceed_with_low_confidence", "clarify"}

// parseDecision maps a decision field or raw query to "proceed", "clarify"
// or "".
func parseDecision(decision, query string) string {
	token := strings.ToLower(strings.TrimSpace(decision))
	if token == "" {
		token = strings.ToLower(strings.TrimSpace(query))
	}
	switch token {
	case "proceed", "1", "진행", "계속":
		return "proceed"
	case "clarify", "2", "다듬기":
		return "clarify"
	}
	return ""
}

// isLowConfidence applies the configured mode. Similarity comparisons only
// make sense in distance space; in RRF mode the fused fractions are left out
// of the predicate.
func isLowConfidence(mode string, verdict model.Verdict, cands []retrieval.Candidate, scoreMode model.ScoreMode, threshold float64, minConfDocs int) bool {
	docCount := len(cands)
	maxSim, simKnown := maxSimilarity(cands)
	simComparable := simKnown && scoreMode != model.ScoreModeHybridRRF

	// lowSim: a standalone low-similarity trigger. RRF fractions never fire
	// it on their own; outside RRF mode an unknown similarity counts as low.
	lowSim := func(t float64) bool {
		if scoreMode == model.ScoreModeHybridRRF {
			return false
		}
		return !simKnown || maxSim < t
	}
	// simNotHigh: a relaxing term next to a verdict condition; unknown or
	// incomparable similarity does not rescue a weak verdict.
	simNotHigh := func(t float64) bool { return !simComparable || maxSim < t }

	switch mode {
	case "strict":
		return lowSim(threshold) || verdict.Branch != model.VerdictGrounded
	case "lenient":
		return docCount < 1
	default: // balanced
		if minConfDocs < 1 {
			minConfDocs = 1
		}
		notSure := verdict.Branch == model.VerdictNotSure
		weakConf := verdict.Confidence == model.ConfidenceWeak || verdict.Confidence == model.ConfidenceVeryWeak
		switch {
		case lowSim(threshold) && docCount < minConfDocs:
			return true
		case verdict.Branch == model.VerdictNotGrounded && simNotHigh(threshold+0.05):
			return true
		case notSure && (verdict.SupportRate < 0.30 || weakConf):
			return true
		case notSure && simNotHigh(threshold+0.05) && docCount < max(2, minConfDocs):
			return true
		}
		return false
	}
}

func maxSimilarity(cands []retrieval.Candidate) (float64, bool) {
	best, known := 0.0, false
	for _, c := range cands {
		if c.HasScore && (!known || c.Similarity > best) {
			best, known = c.Similarity, true
		}
	}
	return best, known
}
