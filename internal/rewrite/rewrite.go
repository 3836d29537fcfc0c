// Package rewrite produces a retrieval-optimized reformulation of the user
// query, augmented with allergy and exclusion constraints detected in the
// query or the recent conversation.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

const rewritePrompt = `당신은 검색 최적화를 위한 쿼리 리라이터입니다.

원본 질문:
%s

검색에 적합한 형태가 되도록 핵심 의미를 유지하면서 간결하게 바꿔 주세요.

최종 질문:`

// Rewriter wraps the reformulation LLM call.
type Rewriter struct {
	llm         model.LLM
	modelName   string
	temperature float32
	log         *logrus.Entry
}

func New(llm model.LLM, modelName string, temperature float32, log *logrus.Entry) *Rewriter {
	return &Rewriter{llm: llm, modelName: modelName, temperature: temperature, log: log}
}

// Rewrite reformulates query for retrieval. When the query (or the recent
// context, if given) carries allergy/substitution triggers, the detected
// constraint clause is appended before rewriting. Failures return the
// original query unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, query, recentContext string) string {
	final := query + Augment(query, recentContext)

	if r.llm == nil {
		return strings.TrimSpace(final)
	}
	out, err := r.llm.CompleteText(ctx, r.modelName, r.temperature, []model.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(rewritePrompt, final)},
	})
	if err != nil {
		r.log.WithError(err).Debug("query rewrite failed, keeping original")
		return query
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return query
	}
	return out
}

// Augment returns the constraint clause ("\n\n제약: ...") for the query and
// recent context, or the empty string when no trigger is present.
func Augment(query, recentContext string) string {
	combined := strings.TrimSpace(recentContext)
	var scope string
	if combined != "" {
		scope = query + "\n" + combined
	} else {
		scope = query
	}
	if !DetectTriggers(scope) {
		return ""
	}
	ctext := BuildConstraintText(ExtractAllergens(scope))
	if ctext == "" {
		return ""
	}
	return "\n\n" + ctext
}
