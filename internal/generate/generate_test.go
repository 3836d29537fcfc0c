package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansik-ai/hansik/internal/model"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fakeLLM struct {
	text     string
	err      error
	messages []model.ChatMessage
	model    string
}

func (f *fakeLLM) CompleteText(ctx context.Context, m string, temp float32, msgs []model.ChatMessage) (string, error) {
	f.messages = msgs
	f.model = m
	return f.text, f.err
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, m string, temp float32, msgs []model.ChatMessage) (string, error) {
	return f.CompleteText(ctx, m, temp, msgs)
}

func TestGenerateNoContextRefusal(t *testing.T) {
	llm := &fakeLLM{text: "should not be called"}
	g := New(llm, "gpt-4o", 0, false, testLog())
	got := g.Generate(context.Background(), "김치찌개 레시피", model.IntentRecipe, "", nil, "")
	assert.Equal(t, NoContextRefusal, got)
	assert.Nil(t, llm.messages, "LLM must not be invoked")
}

func TestGenerateAllowNoContext(t *testing.T) {
	llm := &fakeLLM{text: "일반 지식 기반 답변"}
	g := New(llm, "gpt-4o", 0, true, testLog())
	got := g.Generate(context.Background(), "김치찌개 레시피", model.IntentRecipe, "", nil, "")
	assert.Equal(t, "일반 지식 기반 답변", got)
	require.NotEmpty(t, llm.messages)
	assert.Contains(t, llm.messages[len(llm.messages)-1].Content, "보편적인 요리 지식")
}

func TestGenerateUsesIntentTemplateAndHistory(t *testing.T) {
	llm := &fakeLLM{text: "김치찌개 보관법 안내"}
	g := New(llm, "gpt-4o", 0, false, testLog())

	history := make([]model.ChatMessage, 0, 8)
	for i := 0; i < 4; i++ {
		history = append(history,
			model.ChatMessage{Role: "user", Content: "질문"},
			model.ChatMessage{Role: "assistant", Content: "답변"},
		)
	}
	got := g.Generate(context.Background(), "얼마나 보관 가능해?", model.IntentStorage, "김치찌개는 냉장 3일 보관.", history, "")
	assert.Equal(t, "김치찌개 보관법 안내", got)

	// system + last 6 history + human
	require.Len(t, llm.messages, 8)
	assert.Equal(t, "system", llm.messages[0].Role)
	assert.Contains(t, llm.messages[0].Content, "보관 가이드")
	last := llm.messages[len(llm.messages)-1]
	assert.Contains(t, last.Content, "컨텍스트:\n김치찌개는 냉장 3일 보관.")
	assert.Contains(t, last.Content, "질문: 얼마나 보관 가능해?")
}

func TestGenerateModelOverride(t *testing.T) {
	llm := &fakeLLM{text: "ok"}
	g := New(llm, "gpt-4o", 0, false, testLog())
	g.Generate(context.Background(), "질문", model.IntentRecipe, "컨텍스트", nil, "gpt-4o-mini")
	assert.Equal(t, "gpt-4o-mini", llm.model)
}

func TestGenerateErrorSurfacesAsKoreanMessage(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	g := New(llm, "gpt-4o", 0, false, testLog())
	got := g.Generate(context.Background(), "질문", model.IntentRecipe, "컨텍스트", nil, "")
	assert.Contains(t, got, "응답 생성 중 오류가 발생했습니다")
}

func TestExtractTargetDish(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"김치찌개 레시피 알려줘", "김치찌개"},
		{"된장찌개는 만드는 법이 뭐야", "된장찌개"},
		{"비빔밥 칼로리 얼마나 돼?", "비빔밥"},
		{"갈비찜이 뭐야", "갈비찜"},
		{"뭐 먹지", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractTargetDish(tc.query), tc.query)
	}
}
