package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f *fixedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func newTestStore(t *testing.T, mux *http.ServeMux) *Store {
	t.Helper()
	mux.HandleFunc("GET /api/v1/collections/recipes", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "recipes"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewStore(srv.URL, "recipes", &fixedEmbedder{vec: []float32{1, 0}}, testLog())
}

func TestSimilaritySearchWithScore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.NResults)
		require.Len(t, req.QueryEmbeddings, 1)
		_ = json.NewEncoder(w).Encode(queryResponse{
			Documents: [][]string{{"김치찌개 레시피 본문", "된장찌개 레시피 본문"}},
			Metadatas: [][]map[string]any{{
				{"title": "김치찌개", "source": "https://example.com/kimchi", "chunk": float64(3)},
				{"title": "된장찌개"},
			}},
			Distances: [][]float64{{0.12, 0.45}},
		})
	})
	s := newTestStore(t, mux)

	docs, dists, err := s.SimilaritySearchWithScore(context.Background(), "김치찌개", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "김치찌개", docs[0].Metadata["title"])
	assert.Equal(t, "3", docs[0].Metadata["chunk"], "numeric metadata flattened to string")
	assert.Equal(t, []float64{0.12, 0.45}, dists)
}

func TestMMRPrefersDiverseDocs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		// doc0 and doc1 are near-duplicates close to the query; doc2 is
		// orthogonal but still relevant enough to win the second slot.
		_ = json.NewEncoder(w).Encode(queryResponse{
			Documents:  [][]string{{"a", "b", "c"}},
			Metadatas:  [][]map[string]any{{{"t": "a"}, {"t": "b"}, {"t": "c"}}},
			Embeddings: [][][]float32{{{1, 0}, {0.99, 0.01}, {0.5, 0.86}}},
		})
	})
	s := newTestStore(t, mux)

	docs, err := s.MaxMarginalRelevanceSearch(context.Background(), "q", 2, 3, 0.3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Text)
	assert.Equal(t, "c", docs[1].Text, "near-duplicate b penalized")
}

func TestMMRWithoutEmbeddingsFallsBackToFetchOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queryResponse{
			Documents: [][]string{{"a", "b", "c"}},
		})
	})
	s := newTestStore(t, mux)

	docs, err := s.MaxMarginalRelevanceSearch(context.Background(), "q", 2, 3, 0.7)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Text)
	assert.Equal(t, "b", docs[1].Text)
}

func TestAllDocumentsPages(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		var req getRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := getResponse{}
		if calls.Add(1) == 1 {
			assert.Equal(t, 0, req.Offset)
			for i := 0; i < pageSize; i++ {
				resp.Documents = append(resp.Documents, "문서")
				resp.Metadatas = append(resp.Metadatas, map[string]any{"title": "t"})
			}
		} else {
			assert.Equal(t, pageSize, req.Offset)
			resp.Documents = []string{"마지막 문서"}
			resp.Metadatas = []map[string]any{{"title": "last"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	s := newTestStore(t, mux)

	docs, err := s.AllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, pageSize+1)
	assert.Equal(t, "last", docs[pageSize].Metadata["title"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestServerErrorMapsToProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	s := newTestStore(t, mux)

	_, _, err := s.SimilaritySearchWithScore(context.Background(), "q", 3)
	require.Error(t, err)
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "CHROMA_HTTP", pe.Code)
	assert.True(t, pe.Retryable)
}

func TestCollectionIDCached(t *testing.T) {
	var lookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/collections/cached", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-9"})
	})
	mux.HandleFunc("POST /api/v1/collections/col-9/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queryResponse{Documents: [][]string{{"x"}}, Distances: [][]float64{{0.1}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s := NewStore(srv.URL, "cached", &fixedEmbedder{vec: []float32{1}}, testLog())

	for i := 0; i < 3; i++ {
		_, _, err := s.SimilaritySearchWithScore(context.Background(), "q", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), lookups.Load())
}
