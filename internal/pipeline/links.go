package pipeline

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hansik-ai/hansik/internal/model"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)
	rawURLRe       = regexp.MustCompile(`https?://[^\s)\]>"'」』]+`)
	sourcesHeadRe  = regexp.MustCompile(`(?mi)^\s*(?:#+\s*)?(?:\*\*)?(?:출처|sources?)(?:\*\*)?\s*[::]?\s*$`)
)

const linkPlaceholder = "[링크]"

// linkReport records what sanitization did, for the observability flags.
type linkReport struct {
	Sanitized       bool
	RemovedURLs     []string
	LinksInBody     int
	StrippedSources bool
}

// sanitizeLinks enforces the no-raw-URL contract on the answer body:
// non-source URLs are masked first, then every remaining URL (raw or inside
// a markdown link) is stripped, and a trailing 출처/Sources section is cut.
func sanitizeLinks(answer string, sources []model.Source) (string, linkReport) {
	var rep linkReport
	allowed := make(map[string]bool, len(sources))
	for _, s := range sources {
		allowed[s.URL] = true
	}

	out := rawURLRe.ReplaceAllStringFunc(answer, func(u string) string {
		if allowed[strings.TrimRight(u, ".,;")] {
			return u
		}
		rep.Sanitized = true
		rep.RemovedURLs = append(rep.RemovedURLs, u)
		rep.LinksInBody++
		return linkPlaceholder
	})

	if n := len(markdownLinkRe.FindAllString(out, -1)); n > 0 {
		rep.Sanitized = true
		rep.LinksInBody += n
		out = markdownLinkRe.ReplaceAllString(out, "$1")
	}
	if rawURLRe.MatchString(out) {
		rep.Sanitized = true
		for _, u := range rawURLRe.FindAllString(out, -1) {
			rep.RemovedURLs = append(rep.RemovedURLs, u)
			rep.LinksInBody++
		}
		out = rawURLRe.ReplaceAllString(out, "")
	}

	if loc := lastSourcesHeading(out); loc >= 0 {
		out = strings.TrimRight(out[:loc], " \n\t")
		rep.Sanitized = true
		rep.StrippedSources = true
	}

	return strings.TrimSpace(out), rep
}

// lastSourcesHeading returns the byte offset of a trailing 출처/Sources
// heading, or -1. Only a heading in the last quarter of the body counts as
// trailing; an early mention is part of the prose.
func lastSourcesHeading(body string) int {
	locs := sourcesHeadRe.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		return -1
	}
	last := locs[len(locs)-1]
	if last[0] < len(body)*3/4 {
		return -1
	}
	return last[0]
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
