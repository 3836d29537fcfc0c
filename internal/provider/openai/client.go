// Package openai adapts the OpenAI API to the model.LLM, model.Embedder
// and model.Moderator collaborator interfaces.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

type Client struct {
	api             *gopenai.Client
	embeddingModel  string
	moderationModel string
	log             *logrus.Entry
}

// NewClient builds a client against the given base URL (empty means the
// public API) with the embedding and moderation models fixed at
// construction time.
func NewClient(apiKey, baseURL, embeddingModel, moderationModel string, log *logrus.Entry) *Client {
	cfg := gopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:             gopenai.NewClientWithConfig(cfg),
		embeddingModel:  embeddingModel,
		moderationModel: moderationModel,
		log:             log,
	}
}

func (c *Client) CompleteText(ctx context.Context, modelName string, temperature float32, messages []model.ChatMessage) (string, error) {
	return c.complete(ctx, modelName, temperature, messages, nil)
}

// CompleteJSON forces a JSON-object response and returns the raw JSON text.
func (c *Client) CompleteJSON(ctx context.Context, modelName string, temperature float32, messages []model.ChatMessage) (string, error) {
	format := &gopenai.ChatCompletionResponseFormat{Type: gopenai.ChatCompletionResponseFormatTypeJSONObject}
	return c.complete(ctx, modelName, temperature, messages, format)
}

func (c *Client) complete(ctx context.Context, modelName string, temperature float32, messages []model.ChatMessage, format *gopenai.ChatCompletionResponseFormat) (string, error) {
	req := gopenai.ChatCompletionRequest{
		Model:          modelName,
		Temperature:    temperature,
		Messages:       make([]gopenai.ChatCompletionMessage, 0, len(messages)),
		ResponseFormat: format,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, gopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError("OPENAI_CHAT_FAILED", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", &model.ProviderError{Code: "OPENAI_CHAT_FAILED", Message: "chat completion returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
		Input: texts,
		Model: gopenai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, mapError("OPENAI_EMBED_FAILED", "embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &model.ProviderError{Code: "OPENAI_EMBED_FAILED", Message: "embedding count mismatch"}
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &model.ProviderError{Code: "OPENAI_EMBED_FAILED", Message: "embedding index out of range"}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) Moderate(ctx context.Context, text string) (model.ModerationReport, error) {
	resp, err := c.api.Moderations(ctx, gopenai.ModerationRequest{Input: text, Model: c.moderationModel})
	if err != nil {
		return model.ModerationReport{}, mapError("OPENAI_MODERATION_FAILED", "moderation request failed", err)
	}
	if len(resp.Results) == 0 {
		return model.ModerationReport{}, &model.ProviderError{Code: "OPENAI_MODERATION_FAILED", Message: "moderation returned no results"}
	}
	r := resp.Results[0]
	report := model.ModerationReport{
		Flagged:        r.Flagged,
		Categories:     categoriesMap(r.Categories),
		CategoryScores: scoresMap(r.CategoryScores),
	}
	return report, nil
}

// The SDK exposes moderation categories as a fixed struct; the guard wants
// them keyed by the wire names ("sexual/minors" etc.), so round-trip through
// the struct's JSON tags.
func categoriesMap(c gopenai.ResultCategories) map[string]bool {
	out := map[string]bool{}
	raw, err := json.Marshal(c)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func scoresMap(s gopenai.ResultCategoryScores) map[string]float64 {
	out := map[string]float64{}
	raw, err := json.Marshal(s)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func mapError(code, message string, err error) error {
	pe := &model.ProviderError{Code: code, Message: message, Cause: err}
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Retryable = apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
		if apiErr.Message != "" {
			pe.Message = message + ": " + apiErr.Message
		}
		return pe
	}
	// Transport-level failures are worth retrying.
	pe.Retryable = true
	return pe
}
