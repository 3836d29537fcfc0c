package retrieval

import (
	"context"
	"hash/fnv"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hansik-ai/hansik/internal/model"
)

// Candidate is a retrieved document after filtering and metadata
// enrichment, ready for context building.
type Candidate struct {
	Text       string
	Similarity float64
	HasScore   bool
	Image      string
	Title      string
	URL        string
	Meta       map[string]string
}

var (
	imageLineRe = regexp.MustCompile(`(?im)^\s*image\s*:\s*(https?://\S+)`)
	imageExtRe  = regexp.MustCompile(`(?i)(https?://\S+\.(?:png|jpe?g|gif|webp|svg))`)
)

// Filter applies, in order: minimum length, score backfill for the MMR
// path, similarity cutoff (distance space only; RRF fractions are not
// comparable to the threshold), and the per-domain cap. Document order is
// otherwise preserved.
func (r *Retriever) Filter(ctx context.Context, query string, in []model.ScoredDoc, k int, mode model.ScoreMode) []Candidate {
	cands := make([]Candidate, 0, len(in))
	for _, sd := range in {
		if utf8.RuneCountInString(sd.Doc.Text) < r.cfg.MinDocLen {
			continue
		}
		c := Candidate{
			Text:       sd.Doc.Text,
			Similarity: sd.Similarity,
			HasScore:   sd.HasScore,
			Meta:       sd.Doc.Metadata,
			Title:      ExtractTitle(sd.Doc.Metadata),
			URL:        ExtractSourceURL(sd.Doc.Metadata),
		}
		c.Image = extractImage(sd.Doc.Metadata, sd.Doc.Text)
		cands = append(cands, c)
	}

	if mode == model.ScoreModeMMR && anyMissingScore(cands) {
		r.backfillScores(ctx, query, k, cands)
	}

	if r.cfg.SimilarityThreshold > 0 && mode != model.ScoreModeHybridRRF {
		kept := cands[:0]
		for _, c := range cands {
			if !c.HasScore || c.Similarity >= r.cfg.SimilarityThreshold {
				kept = append(kept, c)
			}
		}
		cands = kept
	}

	if r.cfg.DomainCap > 0 {
		seen := make(map[string]int)
		kept := cands[:0]
		for _, c := range cands {
			domain := hostOf(c.URL)
			if domain != "" && seen[domain] >= r.cfg.DomainCap {
				continue
			}
			if domain != "" {
				seen[domain]++
			}
			kept = append(kept, c)
		}
		cands = kept
	}

	return cands
}

// backfillScores runs a wide scored search and matches candidates by
// (url, title, text-prefix hash) to recover similarities the MMR search
// did not report. Failures leave the scores missing.
func (r *Retriever) backfillScores(ctx context.Context, query string, k int, cands []Candidate) {
	fetchN := k
	if r.cfg.MMRFetch > fetchN {
		fetchN = r.cfg.MMRFetch
	}
	docs, dists, err := r.store.SimilaritySearchWithScore(ctx, query, fetchN)
	if err != nil {
		r.log.WithError(err).Debug("score backfill search failed")
		return
	}
	scoreMap := make(map[string]float64, len(docs))
	for i, d := range docs {
		scoreMap[backfillKey(ExtractSourceURL(d.Metadata), ExtractTitle(d.Metadata), d.Text)] = 1 - dists[i]
	}
	for i := range cands {
		if cands[i].HasScore {
			continue
		}
		if s, ok := scoreMap[backfillKey(cands[i].URL, cands[i].Title, cands[i].Text)]; ok {
			cands[i].Similarity = s
			cands[i].HasScore = true
		}
	}
}

func backfillKey(url, title, text string) string {
	sig := text
	if len(sig) > 256 {
		sig = sig[:256]
	}
	h := fnv.New64a()
	h.Write([]byte(sig))
	return url + "|" + title + "|" + string(h.Sum(nil))
}

func anyMissingScore(cands []Candidate) bool {
	for _, c := range cands {
		if !c.HasScore {
			return true
		}
	}
	return false
}

// ExtractTitle picks the display title from metadata by key priority.
func ExtractTitle(meta map[string]string) string {
	for _, key := range []string{"title", "name", "recipe", "page_title"} {
		if v := strings.TrimSpace(meta[key]); v != "" {
			return v
		}
	}
	return ""
}

// ExtractSourceURL picks the citation URL from metadata by key priority.
func ExtractSourceURL(meta map[string]string) string {
	for _, key := range []string{"source", "url", "link"} {
		v := strings.TrimSpace(meta[key])
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	return ""
}

// extractImage prefers metadata keys, then an "Image: <url>" line in the
// text, then any URL with an image extension.
func extractImage(meta map[string]string, text string) string {
	for _, key := range []string{"image_url", "image", "img_url", "thumbnail", "thumb_url", "url"} {
		v := strings.TrimSpace(meta[key])
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	if m := imageLineRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := imageExtRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
