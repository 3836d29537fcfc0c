package model

import "errors"

var (
	// ErrEmptyQuery marks a request that arrived with no usable query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrRetrievalUnavailable means both dense and sparse retrieval failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrSessionNotFound covers missing and expired sessions alike.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRerankerUnavailable marks a reranker that is unconfigured or whose
	// endpoint could not be reached; callers pass through silently.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
)

// ProviderError wraps a failure from an external provider (embedding, LLM,
// moderation, reranker, vector store) with enough structure for the
// orchestrator to pick a fallback.
type ProviderError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
