package pipeline

import (
	"sort"

	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/retrieval"
)

// Request is one question against the pipeline.
type Request struct {
	Query              string `json:"query"`
	K                  int    `json:"k"`
	ModelHint          string `json:"model,omitempty"`
	EnableRewrite      *bool  `json:"enable_rewrite,omitempty"`
	AllowLowConfidence bool   `json:"allow_low_confidence"`
	Decision           string `json:"decision,omitempty"`
	SessionID          string `json:"session_id,omitempty"`
	IncludeImages      bool   `json:"include_images"`
	ImagePolicy        string `json:"image_policy,omitempty"` // strict | lenient | always
	MaxImages          int    `json:"max_images"`
}

// Response is the full answer payload, including the observability fields
// the HTTP surface passes straight through.
type Response struct {
	Answer          string         `json:"answer"`
	Intent          string         `json:"intent"`
	OriginalQuery   string         `json:"original_query"`
	RewrittenQuery  string         `json:"rewritten_query,omitempty"`
	ContextText     string         `json:"context_text"`
	ContextLen      int            `json:"context_len"`
	UsedDocs        int            `json:"used_docs"`
	RetrievedCount  int            `json:"retrieved_count"`
	RetrievedScores []float64      `json:"retrieved_scores,omitempty"`
	Sources         []model.Source `json:"sources"`
	ImageURLs       []string       `json:"image_urls"`

	Branch   string   `json:"branch"`
	Pipeline []string `json:"pipeline"`

	SessionID         string `json:"session_id"`
	IsNewSession      bool   `json:"is_new_session"`
	HistoryUsed       bool   `json:"history_used"`
	ConversationTurns int    `json:"conversation_turns"`

	JudgeVerdict1 *model.Verdict `json:"judge_verdict_1,omitempty"`
	JudgeVerdict2 *model.Verdict `json:"judge_verdict_2,omitempty"`
	Corrected     bool           `json:"corrected"`
	FinalPass     int            `json:"final_pass"`

	LowConfidence    bool     `json:"low_confidence"`
	Warning          string   `json:"warning,omitempty"`
	DecisionRequired bool     `json:"decision_required"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`

	LinkSanitized          bool     `json:"link_sanitized"`
	RemovedURLs            []string `json:"removed_urls,omitempty"`
	LinksInBodyRemoved     int      `json:"links_in_body_removed,omitempty"`
	StrippedSourcesSection bool     `json:"stripped_sources_section,omitempty"`

	RetrievalMetrics *RetrievalMetrics `json:"retrieval_metrics,omitempty"`
}

// ScoresSummary is the distribution of known similarities among kept docs.
type ScoresSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
}

// RetrievalMetrics captures per-request retrieval observability.
type RetrievalMetrics struct {
	ScoreMode           string         `json:"score_mode"`
	K                   int            `json:"k"`
	MMREnabled          bool           `json:"mmr_enabled"`
	MMRFetch            int            `json:"mmr_fetch"`
	MMRLambda           float64        `json:"mmr_lambda"`
	SimilarityThreshold float64        `json:"similarity_threshold"`
	DomainCap           int            `json:"domain_cap"`
	ScoresSummary       *ScoresSummary `json:"scores_summary,omitempty"`
	UniqueDomains       int            `json:"unique_domains"`
	VerifierMetrics1    *model.Verdict `json:"verifier_metrics_1,omitempty"`
	VerifierMetrics2    *model.Verdict `json:"verifier_metrics_2,omitempty"`
}

func summarizeScores(cands []retrieval.Candidate) *ScoresSummary {
	var scores []float64
	for _, c := range cands {
		if c.HasScore {
			scores = append(scores, c.Similarity)
		}
	}
	if len(scores) == 0 {
		return nil
	}
	sort.Float64s(scores)
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return &ScoresSummary{
		Count: len(scores),
		Min:   scores[0],
		Max:   scores[len(scores)-1],
		Avg:   sum / float64(len(scores)),
		P50:   percentile(scores, 0.50),
		P90:   percentile(scores, 0.90),
	}
}

// percentile over a sorted slice, nearest-rank.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func uniqueDomains(cands []retrieval.Candidate) int {
	seen := map[string]bool{}
	for _, c := range cands {
		if h := hostOf(c.URL); h != "" {
			seen[h] = true
		}
	}
	return len(seen)
}
