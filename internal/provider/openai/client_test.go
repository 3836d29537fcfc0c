package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL+"/v1", "text-embedding-3-large", "omni-moderation-latest", testLog())
}

func TestCompleteText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "김치찌개 레시피입니다."}},
			},
		})
	})

	got, err := c.CompleteText(context.Background(), "gpt-4o", 0.2, []model.ChatMessage{
		{Role: "system", Content: "넌 요리 도우미야."},
		{Role: "user", Content: "김치찌개 레시피 알려줘"},
	})
	require.NoError(t, err)
	assert.Equal(t, "김치찌개 레시피입니다.", got)
}

func TestCompleteJSONSetsResponseFormat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"intent":"recipe"}`}},
			},
		})
	})

	got, err := c.CompleteJSON(context.Background(), "gpt-4o", 0, []model.ChatMessage{{Role: "user", Content: "분류해"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"recipe"}`, got)
}

func TestEmbedDocuments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		})
	})

	vecs, err := c.EmbedDocuments(context.Background(), []string{"김치찌개", "된장찌개"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0], "vectors ordered by index, not arrival")
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	vecs, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestModerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/moderations", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"flagged":         true,
					"categories":      map[string]bool{"harassment": true, "sexual": false},
					"category_scores": map[string]float64{"harassment": 0.91, "sexual": 0.01},
				},
			},
		})
	})

	report, err := c.Moderate(context.Background(), "욕설 섞인 입력")
	require.NoError(t, err)
	assert.True(t, report.Flagged)
	assert.True(t, report.Categories["harassment"])
	assert.False(t, report.Categories["sexual"])
	assert.InDelta(t, 0.91, report.CategoryScores["harassment"], 1e-9)
}

func TestRateLimitMapsToRetryableProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error"}}`))
	})

	_, err := c.CompleteText(context.Background(), "gpt-4o", 0, []model.ChatMessage{{Role: "user", Content: "질문"}})
	require.Error(t, err)
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "OPENAI_CHAT_FAILED", pe.Code)
	assert.True(t, pe.Retryable)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
}

func TestNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	})
	_, err := c.CompleteText(context.Background(), "gpt-4o", 0, []model.ChatMessage{{Role: "user", Content: "질문"}})
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Retryable)
}
