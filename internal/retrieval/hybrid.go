package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hansik-ai/hansik/internal/bm25"
	"github.com/hansik-ai/hansik/internal/model"
)

// missingRank stands in for a document absent from one side's list, pushing
// its contribution from that side close to zero.
const missingRank = 1000

type fusionEntry struct {
	doc        model.Document
	denseRank  int // 0 = absent
	sparseRank int
	key        string
}

// hybrid fetches fetch_k candidates from both dense and sparse retrieval in
// parallel and fuses them with Reciprocal Rank Fusion. If one side fails the
// other carries the result alone; both failing is ErrRetrievalUnavailable.
func (r *Retriever) hybrid(ctx context.Context, query string, k int) ([]model.ScoredDoc, error) {
	fetchK := r.cfg.HybridFetchK
	if fetchK <= 0 {
		fetchK = 2 * k
	}

	var (
		denseDocs  []model.Document
		denseErr   error
		sparseHits []bm25.Result
		sparseErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		denseDocs, _, denseErr = r.store.SimilaritySearchWithScore(gctx, query, fetchK)
		return nil
	})
	g.Go(func() error {
		idx, err := r.bm25.Get(gctx)
		if err != nil {
			sparseErr = err
			return nil
		}
		sparseHits = idx.Search(query, fetchK)
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && sparseErr != nil {
		r.log.WithError(denseErr).WithField("sparse_error", sparseErr).Error("both retrieval sides failed")
		return nil, model.ErrRetrievalUnavailable
	}
	if denseErr != nil {
		r.log.WithError(denseErr).Warn("dense retrieval failed, using sparse only")
	}
	if sparseErr != nil {
		r.log.WithError(sparseErr).Warn("sparse retrieval failed, using dense only")
	}

	return fuseRRF(denseDocs, sparseHits, r.cfg.HybridAlpha, float64(r.cfg.HybridKRRF), k), nil
}

// fuseRRF merges the two ranked streams with Reciprocal Rank Fusion. alpha
// weights the dense side; fusing the swapped streams with 1-alpha yields the
// same ordering whenever the fused scores are distinct.
func fuseRRF(denseDocs []model.Document, sparseHits []bm25.Result, alpha, kRRF float64, k int) []model.ScoredDoc {
	entries := make(map[string]*fusionEntry)
	order := make([]string, 0, len(denseDocs)+len(sparseHits))

	upsert := func(doc model.Document) *fusionEntry {
		key := docKey(doc.Text, doc.Metadata)
		e, ok := entries[key]
		if !ok {
			e = &fusionEntry{doc: doc, key: key}
			entries[key] = e
			order = append(order, key)
		}
		return e
	}

	for i, d := range denseDocs {
		e := upsert(d)
		if e.denseRank == 0 {
			e.denseRank = i + 1
		}
	}
	for i, h := range sparseHits {
		e := upsert(model.Document{Text: h.Text, Metadata: h.Meta})
		if e.sparseRank == 0 {
			e.sparseRank = i + 1
		}
	}

	rrf := func(e *fusionEntry) float64 {
		dr, sr := e.denseRank, e.sparseRank
		if dr == 0 {
			dr = missingRank
		}
		if sr == 0 {
			sr = missingRank
		}
		return alpha/(kRRF+float64(dr)) + (1-alpha)/(kRRF+float64(sr))
	}

	fused := make([]*fusionEntry, 0, len(order))
	for _, key := range order {
		fused = append(fused, entries[key])
	}
	sort.SliceStable(fused, func(a, b int) bool {
		sa, sb := rrf(fused[a]), rrf(fused[b])
		if sa != sb {
			return sa > sb
		}
		ra, rb := rankOr(fused[a].denseRank), rankOr(fused[b].denseRank)
		if ra != rb {
			return ra < rb
		}
		ra, rb = rankOr(fused[a].sparseRank), rankOr(fused[b].sparseRank)
		if ra != rb {
			return ra < rb
		}
		return fused[a].key < fused[b].key
	})

	if len(fused) > k {
		fused = fused[:k]
	}
	out := make([]model.ScoredDoc, len(fused))
	for i, e := range fused {
		out[i] = model.ScoredDoc{Doc: e.doc, Similarity: rrf(e), HasScore: true, Rank: i + 1}
	}
	return out
}

func rankOr(r int) int {
	if r == 0 {
		return missingRank
	}
	return r
}

// docKey identifies a document across the dense and sparse result streams:
// source URL, title, and a hash of the leading text.
func docKey(text string, meta map[string]string) string {
	sig := text
	if len(sig) > 200 {
		sig = sig[:200]
	}
	h := fnv.New64a()
	h.Write([]byte(sig))

	var url, title string
	for _, k := range []string{"url", "source"} {
		if v := meta[k]; v != "" {
			url = v
			break
		}
	}
	for _, k := range []string{"title", "name"} {
		if v := meta[k]; v != "" {
			title = v
			break
		}
	}
	return fmt.Sprintf("%s|%s|%x", url, title, h.Sum64())
}
