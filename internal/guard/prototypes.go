package guard

import (
	"context"
	"encoding/json"
	"os"
	"strings"
)

// defaultPrototypes is the built-in domain sample used when no prototypes
// file is configured. Korean and English phrasings keep the centroid useful
// for both.
var defaultPrototypes = []string{
	"이 요리는 어떻게 만들지?",
	"레시피 단계와 필요한 재료",
	"조리 시간과 온도는 어떻게 조절하지?",
	"남은 재료로 만들 수 있는 요리 추천",
	"보관 방법과 유통기한",
	"칼로리와 영양 성분 안내",
	"How to cook this dish?",
	"Recipe steps and ingredients list",
	"Cooking time and oven temperature",
	"Food storage and shelf life",
	"Calories and nutrition facts",
}

// loadPrototypes reads the prototypes file if present, falling back to the
// built-in list on any problem.
func (g *Guard) loadPrototypes() []string {
	if g.opts.PrototypesPath != "" {
		if data, err := os.ReadFile(g.opts.PrototypesPath); err == nil {
			var payload struct {
				PrototypesIn []string `json:"prototypes_in"`
			}
			if err := json.Unmarshal(data, &payload); err == nil {
				var out []string
				for _, s := range payload.PrototypesIn {
					if strings.TrimSpace(s) != "" {
						out = append(out, s)
					}
				}
				if len(out) > 0 {
					return out
				}
			} else {
				g.log.WithError(err).Warn("prototypes file unreadable, using defaults")
			}
		}
	}
	return defaultPrototypes
}

// loadCentroid embeds the prototypes once and averages them. Returns nil
// when the embedder is unavailable; the caller then skips the centroid gate.
func (g *Guard) loadCentroid(ctx context.Context) []float32 {
	g.centroidOnce.Do(func() {
		if g.embedder == nil {
			return
		}
		vecs, err := g.embedder.EmbedDocuments(ctx, g.loadPrototypes())
		if err != nil || len(vecs) == 0 {
			g.log.WithError(err).Warn("prototype embedding failed, centroid gate disabled")
			return
		}
		dim := len(vecs[0])
		acc := make([]float64, dim)
		count := 0
		for _, v := range vecs {
			if len(v) != dim {
				continue
			}
			for i, x := range v {
				acc[i] += float64(x)
			}
			count++
		}
		if count == 0 {
			return
		}
		centroid := make([]float32, dim)
		for i, x := range acc {
			centroid[i] = float32(x / float64(count))
		}
		g.centroid = centroid
	})
	return g.centroid
}
