package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMarkdown(t *testing.T) {
	in := "# 김치찌개\n## Ingredients\n- 김치 250g\n## Steps\n1. 볶는다\nSource: https://a.example/1\nImage: https://img.example/1.jpg\n\n\n\n끝"
	got := FormatMarkdown(in)
	assert.Contains(t, got, "[제목] 김치찌개")
	assert.Contains(t, got, "[재료]")
	assert.Contains(t, got, "[조리]")
	assert.NotContains(t, got, "Source:")
	assert.NotContains(t, got, "Image:")
	assert.NotContains(t, got, "\n\n\n")
}

func TestCleanNewlines(t *testing.T) {
	assert.Equal(t, "a\n\nb", CleanNewlines("a\n\n\n\nb"))
	assert.Equal(t, "a\nb", CleanNewlines("a\nb"))
}

func longDoc(seed string) string {
	return seed + " " + strings.Repeat("재료와 조리 순서가 들어 있는 본문입니다. ", 3)
}

func TestBuildSelectsAndAlignsImages(t *testing.T) {
	docs := []string{
		longDoc("첫 번째 김치찌개 레시피"),
		"짧음", // dropped: under 20 runes
		longDoc("두 번째 된장찌개 레시피"),
	}
	images := []string{"https://img.example/1.jpg", "", "not-a-url"}

	got := Build(docs, images, 5, 6000)
	require.Len(t, got.SelectedDocs, 2)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, got.Images,
		"only images of selected docs with http URLs survive")
	assert.Contains(t, got.Text, "---")
}

func TestBuildDeduplicatesOnPrefix(t *testing.T) {
	d := longDoc("같은 레시피")
	got := Build([]string{d, d}, nil, 5, 6000)
	assert.Len(t, got.SelectedDocs, 1)
}

func TestBuildRespectsMaxDocs(t *testing.T) {
	docs := []string{longDoc("하나"), longDoc("둘"), longDoc("셋")}
	got := Build(docs, nil, 2, 6000)
	assert.Len(t, got.SelectedDocs, 2)
}

func TestBuildCapsLength(t *testing.T) {
	docs := []string{longDoc("하나"), longDoc("둘")}
	got := Build(docs, nil, 5, 30)
	assert.Equal(t, 30, len([]rune(got.Text)))
}

func TestBuildEmpty(t *testing.T) {
	got := Build(nil, nil, 5, 6000)
	assert.Empty(t, got.Text)
	assert.Empty(t, got.Images)
	assert.Empty(t, got.SelectedDocs)
}
