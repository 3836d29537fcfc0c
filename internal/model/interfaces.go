package model

import "context"

// VectorStore is the dense retrieval collaborator. Distances follow the
// store's own convention; similarity is derived as 1 - distance.
type VectorStore interface {
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]Document, []float64, error)
	// MaxMarginalRelevanceSearch returns documents without scores.
	MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int, lambda float64) ([]Document, error)
	// AllDocuments enumerates every (text, metadata) pair in the underlying
	// collection; used once to bootstrap the BM25 snapshot.
	AllDocuments(ctx context.Context) ([]Document, error)
}

// Embedder produces dense vectors for queries and documents.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatMessage is a single turn handed to the LLM provider.
type ChatMessage struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// LLM is the completion collaborator. CompleteJSON forces a JSON object
// response; the raw JSON text is returned for the caller to decode.
type LLM interface {
	CompleteText(ctx context.Context, model string, temperature float32, messages []ChatMessage) (string, error)
	CompleteJSON(ctx context.Context, model string, temperature float32, messages []ChatMessage) (string, error)
}

// ModerationReport is the safety classifier's result for one input.
type ModerationReport struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
}

// Moderator is the safety classification collaborator.
type Moderator interface {
	Moderate(ctx context.Context, text string) (ModerationReport, error)
}

// Reranker scores (query, passage) pairs with a cross-encoder. Scores are
// in [0,1], one per pair, in input order.
type Reranker interface {
	Score(ctx context.Context, pairs [][2]string) ([]float64, error)
}
