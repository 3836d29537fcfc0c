// Package generate produces the grounded answer from (query, intent,
// context, recent history) using per-intent Korean prompt templates.
package generate

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/compose"
	"github.com/hansik-ai/hansik/internal/model"
)

// NoContextRefusal is returned verbatim when retrieval produced nothing and
// answering from general knowledge is disabled.
const NoContextRefusal = "컨텍스트(벡터 DB)에서 해당 내용을 찾지 못했어요.\n" +
	"출처가 있는 신뢰도 높은 답변을 위해 아래 중 하나를 시도해 주세요:\n" +
	"- 검색 기능이 활성화된 상태로 다시 질문,\n" +
	"- '추론 허용' 옵션을 명시해 일반 지식 기반 답변 허용"

// historyWindow bounds how many trailing messages of the session history
// ride along with the generation call (three user/assistant turns).
const historyWindow = 6

// Generator wraps the answer LLM.
type Generator struct {
	llm            model.LLM
	modelName      string
	temperature    float32
	allowNoContext bool
	log            *logrus.Entry
}

func New(llm model.LLM, modelName string, temperature float32, allowNoContext bool, log *logrus.Entry) *Generator {
	return &Generator{llm: llm, modelName: modelName, temperature: temperature, allowNoContext: allowNoContext, log: log}
}

// Generate answers query against contextText using the intent's template
// and up to the last three turns of history. An empty context yields the
// no-context refusal unless general-knowledge answers are allowed. LLM
// failures come back as a user-visible Korean error line, never a panic.
func (g *Generator) Generate(ctx context.Context, query string, intent model.Intent, contextText string, history []model.ChatMessage, modelOverride string) string {
	if contextText == "" && !g.allowNoContext {
		return NoContextRefusal
	}
	if contextText == "" {
		contextText = "컨텍스트가 비어 있으므로 보편적인 요리 지식으로 보완합니다."
	}

	modelName := g.modelName
	if modelOverride != "" {
		modelName = modelOverride
	}

	messages := make([]model.ChatMessage, 0, historyWindow+2)
	messages = append(messages, model.ChatMessage{Role: "system", Content: systemPromptFor(intent)})
	if n := len(history); n > 0 {
		start := n - historyWindow
		if start < 0 {
			start = 0
		}
		messages = append(messages, history[start:]...)
	}
	messages = append(messages, model.ChatMessage{Role: "user", Content: humanPromptFor(intent, contextText, query)})

	raw, err := g.llm.CompleteText(ctx, modelName, g.temperature, messages)
	if err != nil {
		g.log.WithError(err).Error("answer generation failed")
		return "응답 생성 중 오류가 발생했습니다: " + err.Error()
	}
	return compose.CleanNewlines(strings.TrimSpace(raw))
}
