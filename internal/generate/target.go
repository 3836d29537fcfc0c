package generate

import (
	"regexp"
	"strings"
)

// targetCues are phrases whose left-hand side usually names the dish being
// asked about.
var targetCues = []string{
	"레시피", "만드는 법", "만드는 방법", "칼로리", "영양", "요약", "무엇", "뭐야",
}

var (
	trailingParticleRe = regexp.MustCompile(`[은는이가\s]+$`)
	tailQuestionRe     = regexp.MustCompile(`(.+?)(\?|\s*무엇|\s*뭐야)$`)
)

// ExtractTargetDish guesses the dish or item a question is about. Returns
// the empty string when no confident guess exists.
func ExtractTargetDish(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return ""
	}
	for _, cue := range targetCues {
		if idx := strings.Index(q, cue); idx >= 0 {
			left := trailingParticleRe.ReplaceAllString(strings.TrimSpace(q[:idx]), "")
			if len([]rune(left)) >= 2 {
				return left
			}
		}
	}
	if m := tailQuestionRe.FindStringSubmatch(q); m != nil {
		cand := trailingParticleRe.ReplaceAllString(strings.TrimSpace(m[1]), "")
		if len([]rune(cand)) >= 2 {
			return cand
		}
	}
	return ""
}
