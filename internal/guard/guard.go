// Package guard gates incoming questions before routing: safety moderation,
// an embedding-centroid domain check, and an LLM tiebreak for queries that
// land near the domain boundary.
package guard

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

// Decision is the guard outcome for one query. Branch "out" carries the
// canned answer to return instead of running the pipeline.
type Decision struct {
	Branch string // "in" | "out"
	Answer string
	Score  float64
	Method string // "empty" | "moderation" | "embed" | "llm" | "error-permissive"
}

// Options hold the guard thresholds, copied from config.
type Options struct {
	EnableModeration bool
	ModerationModel  string
	CosThreshold     float64
	CosMargin        float64
	LLMModel         string
	LLMTemperature   float32
	PrototypesPath   string
}

// Guard runs the three-stage out-of-domain check.
type Guard struct {
	moderator model.Moderator
	embedder  model.Embedder
	llm       model.LLM
	opts      Options
	log       *logrus.Entry

	centroidOnce sync.Once
	centroid     []float32
}

func New(moderator model.Moderator, embedder model.Embedder, llm model.LLM, opts Options, log *logrus.Entry) *Guard {
	return &Guard{moderator: moderator, embedder: embedder, llm: llm, opts: opts, log: log}
}

// RefusalOffTopic is the canonical domain refusal, shared with the router's
// out_of_domain branch.
const RefusalOffTopic = "죄송해요. 해당 문의는 요리·레시피·조리·보관·영양 주제에 한해 답변해 드려요."

// moderationRules maps category flags to refusals, in priority order. Kept
// as a single table so new moderation categories are a one-line change.
var moderationRules = []struct {
	category string
	answer   string
}{
	{"sexual/minors", "정책상 미성년자가 포함된 성적 내용은 엄격히 금지되어 답변할 수 없습니다."},
	{"self-harm/instructions", "자해/자살과 관련된 방법이나 조언은 제공할 수 없습니다."},
	{"violence/graphic", "잔혹하거나 매우 폭력적인 내용에는 답변할 수 없습니다."},
	{"illicit/violent", "폭력적 불법 행위에 대한 조언은 제공할 수 없습니다."},
	{"illicit", "불법 행위에 대한 조언은 제공할 수 없습니다."},
	{"hate/threatening", "혐오·차별적 내용에는 답변할 수 없습니다. 다른 방식으로 질문해 주세요."},
	{"hate", "혐오·차별적 내용에는 답변할 수 없습니다. 다른 방식으로 질문해 주세요."},
	{"harassment/threatening", "폭력적·협박적 표현은 허용되지 않습니다. 정중한 표현으로 바꿔 주세요."},
	{"harassment", "모욕적 표현은 허용되지 않습니다. 정중한 표현으로 질문해 주세요."},
	{"sexual", "성적·음란한 내용에는 답변할 수 없습니다."},
}

// Check classifies query as in-domain or out. Moderation runs first; the
// centroid gate decides clear cases; the LLM arbitrates the borderline band.
// Provider errors resolve permissively so an outage never blocks cooking
// questions.
func (g *Guard) Check(ctx context.Context, query string) Decision {
	q := strings.TrimSpace(query)
	if q == "" {
		return Decision{
			Branch: "out",
			Answer: "질문을 입력해 주세요. 요리·레시피·조리·재료·영양 주제에 맞춰 도와드릴게요.",
			Method: "empty",
		}
	}

	if d, ok := g.moderate(ctx, q); ok {
		return d
	}

	if centroid := g.loadCentroid(ctx); centroid != nil {
		vec, err := g.embedder.EmbedQuery(ctx, q)
		if err == nil {
			score := cosine(vec, centroid)
			lo := g.opts.CosThreshold - g.opts.CosMargin
			hi := g.opts.CosThreshold + g.opts.CosMargin
			if score >= hi {
				return Decision{Branch: "in", Score: score, Method: "embed"}
			}
			if score <= lo {
				return Decision{Branch: "out", Answer: RefusalOffTopic, Score: score, Method: "embed"}
			}
			// borderline: fall through to the LLM
		} else {
			g.log.WithError(err).Debug("query embedding failed, skipping centroid gate")
		}
	}

	return g.llmTiebreak(ctx, q)
}

func (g *Guard) moderate(ctx context.Context, q string) (Decision, bool) {
	if !g.opts.EnableModeration || g.moderator == nil {
		return Decision{}, false
	}
	rep, err := g.moderator.Moderate(ctx, q)
	if err != nil {
		g.log.WithError(err).Debug("moderation unavailable")
		return Decision{}, false
	}
	for _, rule := range moderationRules {
		if rep.Categories[rule.category] {
			return Decision{Branch: "out", Answer: rule.answer, Method: "moderation"}, true
		}
	}
	if rep.Flagged {
		return Decision{Branch: "out", Answer: "안전 및 정책상 해당 문의에는 답변할 수 없습니다.", Method: "moderation"}, true
	}
	return Decision{}, false
}

const tiebreakPrompt = `너는 질문이 '요리/레시피/조리/재료/보관/영양' 주제인지 분류하는 분류기다.
규칙: 해당하면 in, 아니면 out 만 출력(설명 금지).
질문: `

func (g *Guard) llmTiebreak(ctx context.Context, q string) Decision {
	if g.llm == nil {
		return Decision{Branch: "in", Method: "error-permissive"}
	}
	verdict, err := g.llm.CompleteText(ctx, g.opts.LLMModel, g.opts.LLMTemperature, []model.ChatMessage{
		{Role: "user", Content: tiebreakPrompt + q},
	})
	if err != nil {
		g.log.WithError(err).Debug("ood tiebreak failed, admitting query")
		return Decision{Branch: "in", Method: "error-permissive"}
	}
	if strings.ToLower(strings.TrimSpace(verdict)) == "in" {
		return Decision{Branch: "in", Method: "llm"}
	}
	return Decision{Branch: "out", Answer: RefusalOffTopic, Method: "llm"}
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
