// Package rerank provides the optional cross-encoder stage: an HTTP client
// for a hosted scoring endpoint and the top-N reordering applied to
// retrieval candidates.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

const defaultBatchSize = 32

// Client scores (query, passage) pairs against a hosted cross-encoder
// endpoint. A zero Endpoint means the reranker is unconfigured; Score then
// returns ErrRerankerUnavailable and callers pass through.
type Client struct {
	endpoint  string
	modelName string
	apiKey    string
	batchSize int
	http      *http.Client
	log       *logrus.Entry
}

func NewClient(endpoint, modelName, apiKey string, log *logrus.Entry) *Client {
	return &Client{
		endpoint:  endpoint,
		modelName: modelName,
		apiKey:    apiKey,
		batchSize: defaultBatchSize,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

// Score implements model.Reranker. Pairs are scored in batches; scores come
// back in input order.
func (c *Client) Score(ctx context.Context, pairs [][2]string) ([]float64, error) {
	if c.endpoint == "" {
		return nil, model.ErrRerankerUnavailable
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	scores := make([]float64, 0, len(pairs))
	for i := 0; i < len(pairs); i += c.batchSize {
		end := i + c.batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch, err := c.scoreBatch(ctx, pairs[i:end])
		if err != nil {
			return nil, err
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

func (c *Client) scoreBatch(ctx context.Context, pairs [][2]string) ([]float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": c.modelName,
		"pairs": pairs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Code: "RERANKER_UNREACHABLE", Message: err.Error(), Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &model.ProviderError{
			Code:       "RERANKER_HTTP",
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw)),
			Retryable:  resp.StatusCode >= 500,
			StatusCode: resp.StatusCode,
		}
	}

	var out struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(out.Scores) != len(pairs) {
		return nil, fmt.Errorf("reranker returned %d scores for %d pairs", len(out.Scores), len(pairs))
	}
	return out.Scores, nil
}
