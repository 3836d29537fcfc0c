package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/model"
)

func scored(title, url, text string, sim float64) model.ScoredDoc {
	return model.ScoredDoc{
		Doc:        doc(title, url, text),
		Similarity: sim,
		HasScore:   true,
	}
}

func TestFilterDropsShortDocs(t *testing.T) {
	cfg := config.Default()
	r := newRetriever(t, &fakeVS{}, &fakeVS{}, &cfg)

	in := []model.ScoredDoc{
		scored("짧음", "https://a.example/1", "too short", 0.9),
		scored("김치찌개", "https://a.example/2", strings.Repeat("김치찌개 만드는 법 ", 5), 0.9),
	}
	got := r.Filter(context.Background(), "김치찌개", in, 8, model.ScoreModeDistance)
	require.Len(t, got, 1)
	assert.Equal(t, "김치찌개", got[0].Title)
}

func TestFilterSimilarityCutoffDistanceMode(t *testing.T) {
	cfg := config.Default()
	r := newRetriever(t, &fakeVS{}, &fakeVS{}, &cfg)

	long := strings.Repeat("된장찌개 레시피 ", 5)
	in := []model.ScoredDoc{
		scored("낮음", "https://a.example/1", long, 0.01),
		scored("높음", "https://b.example/2", long, 0.5),
	}
	got := r.Filter(context.Background(), "된장찌개", in, 8, model.ScoreModeDistance)
	require.Len(t, got, 1)
	assert.Equal(t, "높음", got[0].Title)
}

func TestFilterNoCutoffInRRFMode(t *testing.T) {
	cfg := config.Default()
	r := newRetriever(t, &fakeVS{}, &fakeVS{}, &cfg)

	long := strings.Repeat("된장찌개 레시피 ", 5)
	// RRF fractions sit far below the distance-space threshold; they must
	// survive untouched.
	in := []model.ScoredDoc{
		scored("하나", "https://a.example/1", long, 0.016),
		scored("둘", "https://b.example/2", long, 0.008),
	}
	got := r.Filter(context.Background(), "된장찌개", in, 8, model.ScoreModeHybridRRF)
	assert.Len(t, got, 2)
}

func TestFilterDomainCap(t *testing.T) {
	cfg := config.Default()
	cfg.DomainCap = 2
	r := newRetriever(t, &fakeVS{}, &fakeVS{}, &cfg)

	long := strings.Repeat("김치찌개 만드는 법 ", 5)
	in := []model.ScoredDoc{
		scored("a1", "https://same.example/1", long, 0.9),
		scored("a2", "https://same.example/2", long, 0.8),
		scored("a3", "https://same.example/3", long, 0.7),
		scored("b1", "https://other.example/1", long, 0.6),
	}
	got := r.Filter(context.Background(), "김치찌개", in, 8, model.ScoreModeDistance)
	require.Len(t, got, 3)
	assert.Equal(t, "a1", got[0].Title)
	assert.Equal(t, "a2", got[1].Title)
	assert.Equal(t, "b1", got[2].Title)
}

func TestFilterExtractsImageFromMetaThenText(t *testing.T) {
	cfg := config.Default()
	r := newRetriever(t, &fakeVS{}, &fakeVS{}, &cfg)

	long := strings.Repeat("김치찌개 만드는 법 ", 5)
	withMetaImage := model.ScoredDoc{
		Doc: model.Document{
			Text: long,
			Metadata: map[string]string{
				"title": "메타 이미지", "source": "https://a.example/1",
				"image_url": "https://img.example/kimchi.jpg",
			},
		},
		Similarity: 0.9, HasScore: true,
	}
	withTextImage := model.ScoredDoc{
		Doc: model.Document{
			Text:     long + "\nImage: https://img.example/from-text.png",
			Metadata: map[string]string{"title": "본문 이미지", "source": "https://b.example/1"},
		},
		Similarity: 0.9, HasScore: true,
	}
	got := r.Filter(context.Background(), "김치찌개", []model.ScoredDoc{withMetaImage, withTextImage}, 8, model.ScoreModeDistance)
	require.Len(t, got, 2)
	assert.Equal(t, "https://img.example/kimchi.jpg", got[0].Image)
	assert.Equal(t, "https://img.example/from-text.png", got[1].Image)
}

func TestFilterBackfillsMMRScores(t *testing.T) {
	long := strings.Repeat("김치찌개 만드는 법 ", 5)
	d := doc("김치찌개", "https://a.example/1", long)
	vs := &fakeVS{docs: []model.Document{d}, dists: []float64{0.2}}

	cfg := config.Default()
	r := newRetriever(t, vs, &fakeVS{}, &cfg)

	in := []model.ScoredDoc{{Doc: d}} // no score, as the MMR path produces
	got := r.Filter(context.Background(), "김치찌개", in, 8, model.ScoreModeMMR)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasScore)
	assert.InDelta(t, 0.8, got[0].Similarity, 1e-9)
}

func TestFilterKeepsUnscoredWhenBackfillFails(t *testing.T) {
	long := strings.Repeat("김치찌개 만드는 법 ", 5)
	d := doc("김치찌개", "https://a.example/1", long)
	vs := &fakeVS{err: assertErr{}}

	cfg := config.Default()
	r := newRetriever(t, vs, &fakeVS{}, &cfg)

	in := []model.ScoredDoc{{Doc: d}}
	got := r.Filter(context.Background(), "김치찌개", in, 8, model.ScoreModeMMR)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasScore)
}

type assertErr struct{}

func (assertErr) Error() string { return "backfill down" }
