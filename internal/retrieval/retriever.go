// Package retrieval fuses dense vector search with the sparse BM25 index
// and applies the post-retrieval filters (length, similarity cutoff, domain
// cap, metadata enrichment).
package retrieval

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/bm25"
	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/model"
)

// Retriever runs one of three strategies depending on configuration:
// hybrid RRF, MMR, or plain scored similarity search.
type Retriever struct {
	store model.VectorStore
	bm25  *bm25.Builder
	cfg   *config.Config
	log   *logrus.Entry
}

func New(store model.VectorStore, sparse *bm25.Builder, cfg *config.Config, log *logrus.Entry) *Retriever {
	return &Retriever{store: store, bm25: sparse, cfg: cfg, log: log}
}

// Retrieve returns up to k scored documents plus the score mode the
// similarities live in. Hybrid failures degrade to dense; a dense-only
// failure after that surfaces ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.ScoredDoc, model.ScoreMode, error) {
	if query == "" {
		return nil, "", model.ErrEmptyQuery
	}

	if r.cfg.UseHybridSearch {
		docs, err := r.hybrid(ctx, query, k)
		if err == nil {
			return docs, model.ScoreModeHybridRRF, nil
		}
		if err == model.ErrRetrievalUnavailable {
			return nil, "", err
		}
		r.log.WithError(err).Warn("hybrid search failed, falling back to vector search")
	}

	if r.cfg.RerankMMR {
		fetchK := k
		if r.cfg.MMRFetch > fetchK {
			fetchK = r.cfg.MMRFetch
		}
		docs, err := r.store.MaxMarginalRelevanceSearch(ctx, query, k, fetchK, r.cfg.MMRLambda)
		if err != nil {
			return nil, "", model.ErrRetrievalUnavailable
		}
		out := make([]model.ScoredDoc, len(docs))
		for i, d := range docs {
			out[i] = model.ScoredDoc{Doc: d, Rank: i + 1}
		}
		return out, model.ScoreModeMMR, nil
	}

	docs, dists, err := r.store.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, "", model.ErrRetrievalUnavailable
	}
	// A store may omit distances; those docs keep rank order with unknown
	// scores rather than panicking on the index.
	scored := len(dists) == len(docs)
	out := make([]model.ScoredDoc, len(docs))
	for i, d := range docs {
		out[i] = model.ScoredDoc{Doc: d, Rank: i + 1}
		if scored {
			out[i].Similarity = 1 - dists[i]
			out[i].HasScore = true
		}
	}
	return out, model.ScoreModeDistance, nil
}
