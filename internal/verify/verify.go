// Package verify implements the grounding check: every sentence of a draft
// answer is scored against snippets of the retrieved documents with a
// cross-encoder, and the support rate decides the verdict.
package verify

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

// delta widens the grounded threshold downward into the notSure band.
const delta = 0.05

// Params are the verifier knobs, copied from config at construction.
type Params struct {
	SentThreshold  float64 // per-sentence support cutoff
	SupportP       float64 // grounded support-rate cutoff
	MaxDocs        int
	SnippetsPerDoc int
}

// Verifier runs the sentence-vs-snippet grounding check.
type Verifier struct {
	reranker model.Reranker
	params   Params
	log      *logrus.Entry
}

func New(reranker model.Reranker, params Params, log *logrus.Entry) *Verifier {
	return &Verifier{reranker: reranker, params: params, log: log}
}

// neutralCues are generic disclaimer fragments excluded from scoring so a
// safety boilerplate sentence cannot drag the support rate down.
var neutralCues = []string{
	"식품 안전 수칙을 준수하세요",
	"알레르기가 있는 경우 전문가와 상담",
	"개인의 건강 상태에 따라 다를 수 있습니다",
}

// Verify checks answer against docs. Degenerate inputs (no sentences, no
// snippets, reranker unusable) yield notSure/unknown with support rate 0.
func (v *Verifier) Verify(ctx context.Context, answer string, docs []string) model.Verdict {
	sents := SplitSentences(answer)
	if len(sents) == 0 {
		return unknownVerdict("", 0)
	}

	targets := sents[:0:0]
	for _, s := range sents {
		if !isNeutralSentence(s) {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return unknownVerdict("", 0)
	}

	snippets := extractSnippets(docs, v.params.MaxDocs, v.params.SnippetsPerDoc)
	if len(snippets) == 0 {
		return unknownVerdict("문서 스니펫 없음", len(targets))
	}
	if v.reranker == nil {
		return unknownVerdict("검증 모델 사용 불가", len(targets))
	}

	normSnippets := make([]string, len(snippets))
	for i, sn := range snippets {
		normSnippets[i] = normalize(sn)
	}

	maxScores := make([]float64, len(targets))
	for i, sent := range targets {
		q := normalize(sent)
		pairs := make([][2]string, len(normSnippets))
		for j, sn := range normSnippets {
			pairs[j] = [2]string{q, sn}
		}
		scores, err := v.reranker.Score(ctx, pairs)
		if err != nil {
			if err == model.ErrRerankerUnavailable {
				return unknownVerdict("검증 모델 사용 불가", len(targets))
			}
			v.log.WithError(err).Debug("verifier scoring failed for sentence")
			continue
		}
		for _, s := range scores {
			if s > maxScores[i] {
				maxScores[i] = s
			}
		}
	}

	supported := 0
	for _, s := range maxScores {
		if s >= v.params.SentThreshold {
			supported++
		}
	}
	total := len(targets)
	rate := float64(supported) / float64(max(1, total))

	var avg float64
	for _, s := range maxScores {
		avg += s
	}
	avg /= float64(len(maxScores))
	sorted := append([]float64(nil), maxScores...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	verdict := model.Verdict{
		SupportRate: rate,
		Avg:         avg,
		Median:      median,
		Supported:   supported,
		Total:       total,
	}
	switch {
	case rate >= v.params.SupportP:
		verdict.Branch = model.VerdictGrounded
		verdict.Confidence = model.ConfidenceHigh
	case rate >= max(0, v.params.SupportP-delta):
		verdict.Branch = model.VerdictNotSure
		switch {
		case rate >= 0.40:
			verdict.Confidence = model.ConfidenceBorderline
		case rate >= 0.20:
			verdict.Confidence = model.ConfidenceWeak
		default:
			verdict.Confidence = model.ConfidenceVeryWeak
		}
	default:
		verdict.Branch = model.VerdictNotGrounded
		verdict.Confidence = model.ConfidenceNone
	}
	return verdict
}

func unknownVerdict(reasoning string, total int) model.Verdict {
	return model.Verdict{
		Branch:     model.VerdictNotSure,
		Confidence: model.ConfidenceUnknown,
		Total:      total,
		Reasoning:  reasoning,
	}
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?\n]+`)
	numberRe        = regexp.MustCompile(`\d+([.,]\d+)?`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// SplitSentences breaks text on sentence punctuation and newlines, drops
// fragments shorter than five runes, and de-duplicates on the leading 80
// runes.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, part := range sentenceSplitRe.Split(text, -1) {
		s := strings.TrimSpace(part)
		if len([]rune(s)) < 5 {
			continue
		}
		key := s
		if r := []rune(s); len(r) > 80 {
			key = string(r[:80])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// extractSnippets samples sentences evenly across each document so the
// snippet set covers the whole text, capping each snippet at 400 runes.
func extractSnippets(docs []string, maxDocs, perDoc int) []string {
	var snippets []string
	n := len(docs)
	if n > maxDocs {
		n = maxDocs
	}
	for _, d := range docs[:n] {
		sents := SplitSentences(d)
		if len(sents) == 0 {
			continue
		}
		var picks []string
		if len(sents) <= perDoc {
			picks = sents
		} else {
			step := len(sents) / perDoc
			if step < 1 {
				step = 1
			}
			for i := 0; i < len(sents) && len(picks) < perDoc; i += step {
				picks = append(picks, sents[i])
			}
		}
		for _, s := range picks {
			if r := []rune(s); len(r) > 400 {
				s = string(r[:400])
			}
			snippets = append(snippets, s)
		}
	}
	return snippets
}

// normalize lowercases, masks numbers with a sentinel, and collapses
// whitespace so surface variation does not defeat the cross-encoder.
func normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = numberRe.ReplaceAllString(t, "NUM")
	t = spaceRe.ReplaceAllString(t, " ")
	return t
}

func isNeutralSentence(sent string) bool {
	t := strings.ToLower(sent)
	for _, cue := range neutralCues {
		if strings.Contains(t, cue) {
			return true
		}
	}
	return false
}
