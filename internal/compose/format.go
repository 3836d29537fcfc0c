// Package compose turns retrieved documents into the grounding context
// handed to the generator: markdown reshaping, dedup, length capping, and
// image alignment.
package compose

import (
	"regexp"
	"strings"
)

var (
	titleRe       = regexp.MustCompile(`(?m)^# (.+)$`)
	ingredientsRe = regexp.MustCompile(`(?m)^## Ingredients$`)
	stepsRe       = regexp.MustCompile(`(?m)^## Steps$`)
	sourceLineRe  = regexp.MustCompile(`(?m)^Source:.*$`)
	imageLineRe   = regexp.MustCompile(`(?m)^Image:.*$`)
	newlineRunRe  = regexp.MustCompile(`\n{3,}`)
)

// FormatMarkdown rewrites the builder's markdown into the reader-facing
// shape: headings become [제목]/[재료]/[조리] labels and the Source:/Image:
// meta lines disappear.
func FormatMarkdown(content string) string {
	content = titleRe.ReplaceAllString(content, "[제목] $1")
	content = ingredientsRe.ReplaceAllString(content, "[재료]")
	content = stepsRe.ReplaceAllString(content, "[조리]")
	content = sourceLineRe.ReplaceAllString(content, "")
	content = imageLineRe.ReplaceAllString(content, "")
	content = newlineRunRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// CleanNewlines collapses runs of three or more newlines.
func CleanNewlines(text string) string {
	return newlineRunRe.ReplaceAllString(text, "\n\n")
}
