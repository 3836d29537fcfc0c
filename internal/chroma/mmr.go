package chroma

import "math"

// mmrOrder selects up to k indices by maximal marginal relevance:
// lambda weighs query relevance against redundancy with already-picked docs.
func mmrOrder(query []float32, embs [][]float32, k int, lambda float64) []int {
	n := len(embs)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	rel := make([]float64, n)
	for i, e := range embs {
		rel[i] = cosine(query, e)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, n)
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range selected {
				if sim := cosine(embs[i], embs[j]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*rel[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
	}
	return selected
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
