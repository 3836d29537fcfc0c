// Package bm25 maintains the sparse lexical index over the recipe corpus.
// The index is built once from the vector store's documents, snapshotted to
// disk as a gob blob, and queried many times.
package bm25

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/tokenizer"
)

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Params are the Okapi BM25 free parameters, carried in the snapshot so a
// cached index keeps the values it was built with.
type Params struct {
	K1 float64
	B  float64
}

// Result is one sparse hit. Score is non-negative, higher is better.
type Result struct {
	Text  string
	Meta  map[string]string
	Score float64
}

// Index is an Okapi BM25 index over a fixed corpus. Safe for concurrent
// reads once built.
type Index struct {
	params    Params
	corpus    [][]string
	texts     []string
	metas     []map[string]string
	docFreq   map[string]int
	termFreq  []map[string]int
	docLen    []int
	avgDocLen float64
}

// Store provides the documents the index is built from. Satisfied by the
// vector store client.
type Store interface {
	AllDocuments(ctx context.Context) ([]model.Document, error)
}

// Builder constructs the index lazily and caches it, both in memory and on
// disk. Concurrent first callers share one construction.
type Builder struct {
	store        Store
	snapshotPath string
	log          *logrus.Entry

	group singleflight.Group
	idx   atomic.Pointer[Index]
}

func NewBuilder(store Store, snapshotPath string, log *logrus.Entry) *Builder {
	return &Builder{store: store, snapshotPath: snapshotPath, log: log}
}

// Get returns the shared index, building it on first use. Construction is
// single-flight; losers of the race wait and receive the winner's index.
func (b *Builder) Get(ctx context.Context) (*Index, error) {
	if idx := b.idx.Load(); idx != nil {
		return idx, nil
	}
	v, err, _ := b.group.Do("bm25", func() (interface{}, error) {
		if idx := b.idx.Load(); idx != nil {
			return idx, nil
		}
		idx, err := b.build(ctx)
		if err != nil {
			return nil, err
		}
		b.idx.Store(idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (b *Builder) build(ctx context.Context) (*Index, error) {
	if idx, err := loadSnapshot(b.snapshotPath); err == nil {
		b.log.WithField("docs", len(idx.texts)).Info("bm25 index loaded from snapshot")
		return idx, nil
	} else if b.log != nil {
		b.log.WithError(err).Debug("bm25 snapshot unusable, rebuilding")
	}

	docs, err := b.store.AllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(docs))
	metas := make([]map[string]string, 0, len(docs))
	corpus := make([][]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
		metas = append(metas, d.Metadata)
		corpus = append(corpus, tokenizer.Tokenize(d.Text))
	}
	idx := New(corpus, texts, metas, Params{K1: defaultK1, B: defaultB})

	if err := saveSnapshot(b.snapshotPath, idx); err != nil {
		b.log.WithError(err).Warn("bm25 snapshot write failed")
	} else {
		b.log.WithField("docs", len(texts)).Info("bm25 index built and snapshotted")
	}
	return idx, nil
}

// New builds an index from an already-tokenized corpus. The three slices
// must be the same length.
func New(corpus [][]string, texts []string, metas []map[string]string, p Params) *Index {
	idx := &Index{
		params:   p,
		corpus:   corpus,
		texts:    texts,
		metas:    metas,
		docFreq:  make(map[string]int),
		termFreq: make([]map[string]int, len(corpus)),
		docLen:   make([]int, len(corpus)),
	}
	var total int
	for i, toks := range corpus {
		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = len(toks)
		total += len(toks)
		for t := range tf {
			idx.docFreq[t]++
		}
	}
	if len(corpus) > 0 {
		idx.avgDocLen = float64(total) / float64(len(corpus))
	}
	return idx
}

// Len reports the corpus size.
func (idx *Index) Len() int { return len(idx.texts) }

// Search scores the query against every document and returns the top k hits
// with positive score. An empty corpus or an empty tokenized query yields an
// empty result without error.
func (idx *Index) Search(query string, k int) []Result {
	if idx.Len() == 0 || k <= 0 {
		return nil
	}
	qTokens := tokenizer.Tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}

	n := float64(idx.Len())
	scores := make([]float64, idx.Len())
	for _, term := range qTokens {
		df, ok := idx.docFreq[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i := range idx.corpus {
			tf := float64(idx.termFreq[i][term])
			if tf == 0 {
				continue
			}
			norm := idx.params.K1 * (1 - idx.params.B + idx.params.B*float64(idx.docLen[i])/idx.avgDocLen)
			scores[i] += idf * tf * (idx.params.K1 + 1) / (tf + norm)
		}
	}

	order := make([]int, idx.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	out := make([]Result, 0, k)
	for _, i := range order {
		if scores[i] <= 0 {
			break
		}
		out = append(out, Result{Text: idx.texts[i], Meta: idx.metas[i], Score: scores[i]})
		if len(out) == k {
			break
		}
	}
	return out
}
