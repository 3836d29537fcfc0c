package rerank

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/retrieval"
)

// Apply re-scores the first min(topN, len(docs)) candidates against the
// query and stable-sorts that head descending by score; the tail is
// concatenated untouched. Any scoring failure passes the input through
// silently.
func Apply(ctx context.Context, rr model.Reranker, log *logrus.Entry, query string, docs []retrieval.Candidate, topN int) []retrieval.Candidate {
	if rr == nil || len(docs) == 0 || topN <= 0 {
		return docs
	}
	n := topN
	if n > len(docs) {
		n = len(docs)
	}

	pairs := make([][2]string, n)
	for i := 0; i < n; i++ {
		pairs[i] = [2]string{query, docs[i].Text}
	}
	scores, err := rr.Score(ctx, pairs)
	if err != nil || len(scores) != n {
		if err != nil && err != model.ErrRerankerUnavailable {
			log.WithError(err).Warn("cross-encoder rerank failed, keeping retrieval order")
		}
		return docs
	}

	head := make([]retrieval.Candidate, n)
	copy(head, docs[:n])
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	out := make([]retrieval.Candidate, 0, len(docs))
	for _, i := range order {
		out = append(out, head[i])
	}
	out = append(out, docs[n:]...)
	return out
}
