package rewrite

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/hansik-ai/hansik/internal/model"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fakeLLM struct {
	text   string
	err    error
	prompt string
}

func (f *fakeLLM) CompleteText(ctx context.Context, m string, temp float32, msgs []model.ChatMessage) (string, error) {
	f.prompt = msgs[len(msgs)-1].Content
	return f.text, f.err
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, m string, temp float32, msgs []model.ChatMessage) (string, error) {
	return f.CompleteText(ctx, m, temp, msgs)
}

func TestDetectTriggers(t *testing.T) {
	assert.True(t, DetectTriggers("계란 알레르기가 있어요"))
	assert.True(t, DetectTriggers("우유 없이 만들 수 있어?"))
	assert.True(t, DetectTriggers("돼지고기 빼고 해줘"))
	assert.True(t, DetectTriggers("can't eat peanuts"))
	assert.False(t, DetectTriggers("김치찌개 만드는 법"))
	assert.False(t, DetectTriggers(""))
}

func TestExtractAllergens(t *testing.T) {
	got := ExtractAllergens("계란이랑 우유 알레르기가 있어서 치즈도 못 먹어요")
	assert.Equal(t, []string{"egg", "milk"}, got)
}

func TestExtractAllergensEnglish(t *testing.T) {
	// "peanuts" also matches the tree_nut synonym "nut"; the recall-first
	// matcher keeps both.
	got := ExtractAllergens("I'm allergic to shrimp and peanuts")
	assert.Equal(t, []string{"crustacean", "peanut", "tree_nut"}, got)
}

func TestBuildConstraintText(t *testing.T) {
	assert.Equal(t, "", BuildConstraintText(nil))
	got := BuildConstraintText([]string{"egg", "milk"})
	assert.Equal(t, "제약: 알레르기/제외 대상 [egg, milk] 제외, 적절한 대체재를 반영해 검색 최적화.", got)
}

func TestRewriteAppendsConstraint(t *testing.T) {
	llm := &fakeLLM{text: "계란 없는 김치전 레시피"}
	r := New(llm, "gpt-4o", 0.5, testLog())
	out := r.Rewrite(context.Background(), "계란 알레르기가 있는데 김치전 만들 수 있어?", "")
	assert.Equal(t, "계란 없는 김치전 레시피", out)
	assert.Contains(t, llm.prompt, "제약: 알레르기/제외 대상 [egg]")
}

func TestRewriteUsesRecentContextTriggers(t *testing.T) {
	llm := &fakeLLM{text: "두부 없는 된장찌개"}
	r := New(llm, "gpt-4o", 0.5, testLog())
	_ = r.Rewrite(context.Background(), "된장찌개 레시피", "사용자: 콩 알레르기가 있어요")
	assert.Contains(t, llm.prompt, "[soy]")
}

func TestRewriteFailureReturnsOriginal(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	r := New(llm, "gpt-4o", 0.5, testLog())
	out := r.Rewrite(context.Background(), "김치찌개 레시피", "")
	assert.Equal(t, "김치찌개 레시피", out)
}

func TestRewriteEmptyOutputReturnsOriginal(t *testing.T) {
	llm := &fakeLLM{text: "   "}
	r := New(llm, "gpt-4o", 0.5, testLog())
	out := r.Rewrite(context.Background(), "김치찌개 레시피", "")
	assert.Equal(t, "김치찌개 레시피", out)
}

func TestAugmentNoTrigger(t *testing.T) {
	assert.Empty(t, Augment("김치찌개 끓이는 순서", ""))
}
