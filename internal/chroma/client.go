// Package chroma is a thin HTTP client for a Chroma collection, exposing
// the dense retrieval operations the retriever needs.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

const pageSize = 500

type Store struct {
	baseURL    string
	collection string
	embedder   model.Embedder
	http       *http.Client
	log        *logrus.Entry

	idOnce sync.Once
	id     string
	idErr  error
}

func NewStore(baseURL, collection string, embedder model.Embedder, log *logrus.Entry) *Store {
	return &Store{
		baseURL:    baseURL,
		collection: collection,
		embedder:   embedder,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	Documents  [][]string         `json:"documents"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Distances  [][]float64        `json:"distances"`
	Embeddings [][][]float32      `json:"embeddings"`
}

type getRequest struct {
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Include []string `json:"include"`
}

type getResponse struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]model.Document, []float64, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.query(ctx, vec, k, []string{"documents", "metadatas", "distances"})
	if err != nil {
		return nil, nil, err
	}
	docs, dists, _ := flattenQuery(resp)
	return docs, dists, nil
}

func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int, lambda float64) ([]model.Document, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if fetchK < k {
		fetchK = k
	}
	resp, err := s.query(ctx, vec, fetchK, []string{"documents", "metadatas", "embeddings"})
	if err != nil {
		return nil, err
	}
	docs, _, embs := flattenQuery(resp)
	if len(embs) != len(docs) {
		// Without embeddings MMR degrades to the fetch order.
		if len(docs) > k {
			docs = docs[:k]
		}
		return docs, nil
	}
	order := mmrOrder(vec, embs, k, lambda)
	out := make([]model.Document, 0, len(order))
	for _, i := range order {
		out = append(out, docs[i])
	}
	return out, nil
}

func (s *Store) AllDocuments(ctx context.Context) ([]model.Document, error) {
	id, err := s.collectionID(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Document
	for offset := 0; ; offset += pageSize {
		req := getRequest{Limit: pageSize, Offset: offset, Include: []string{"documents", "metadatas"}}
		var resp getResponse
		if err := s.post(ctx, fmt.Sprintf("/api/v1/collections/%s/get", id), req, &resp); err != nil {
			return nil, err
		}
		for i, text := range resp.Documents {
			var meta map[string]any
			if i < len(resp.Metadatas) {
				meta = resp.Metadatas[i]
			}
			out = append(out, model.Document{Text: text, Metadata: stringMeta(meta)})
		}
		if len(resp.Documents) < pageSize {
			return out, nil
		}
	}
}

func (s *Store) query(ctx context.Context, vec []float32, n int, include []string) (*queryResponse, error) {
	id, err := s.collectionID(ctx)
	if err != nil {
		return nil, err
	}
	req := queryRequest{QueryEmbeddings: [][]float32{vec}, NResults: n, Include: include}
	var resp queryResponse
	if err := s.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// collectionID resolves the collection name once and caches it for the
// process lifetime.
func (s *Store) collectionID(ctx context.Context) (string, error) {
	s.idOnce.Do(func() {
		var resp struct {
			ID string `json:"id"`
		}
		s.idErr = s.get(ctx, "/api/v1/collections/"+s.collection, &resp)
		s.id = resp.ID
	})
	return s.id, s.idErr
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return &model.ProviderError{Code: "CHROMA_FAILED", Message: "failed to encode request", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return &model.ProviderError{Code: "CHROMA_FAILED", Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *Store) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return &model.ProviderError{Code: "CHROMA_FAILED", Message: "failed to build request", Cause: err}
	}
	return s.do(req, out)
}

func (s *Store) do(req *http.Request, out any) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return &model.ProviderError{Code: "CHROMA_UNREACHABLE", Message: "vector store request failed", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return &model.ProviderError{Code: "CHROMA_FAILED", Message: "failed to read response", Retryable: true, StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &model.ProviderError{
			Code:       "CHROMA_HTTP",
			Message:    fmt.Sprintf("vector store returned status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500,
			StatusCode: resp.StatusCode,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &model.ProviderError{Code: "CHROMA_FAILED", Message: "failed to decode response", StatusCode: resp.StatusCode, Cause: err}
	}
	return nil
}

// flattenQuery unwraps the single-query nesting of a Chroma query response.
func flattenQuery(resp *queryResponse) ([]model.Document, []float64, [][]float32) {
	if len(resp.Documents) == 0 {
		return nil, nil, nil
	}
	texts := resp.Documents[0]
	docs := make([]model.Document, len(texts))
	for i, text := range texts {
		var meta map[string]any
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta = resp.Metadatas[0][i]
		}
		docs[i] = model.Document{Text: text, Metadata: stringMeta(meta)}
	}
	var dists []float64
	if len(resp.Distances) > 0 {
		dists = resp.Distances[0]
	}
	var embs [][]float32
	if len(resp.Embeddings) > 0 {
		embs = resp.Embeddings[0]
	}
	return docs, dists, embs
}

func stringMeta(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
