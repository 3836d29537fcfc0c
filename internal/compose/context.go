package compose

import (
	"hash/fnv"
	"strings"
)

const (
	defaultMaxDocs   = 5
	defaultMaxLength = 6000
)

// Context is the assembled grounding material for one generation call.
// Images holds the URLs aligned with the documents actually selected, so
// outbound images never point at text the answer was not grounded on.
type Context struct {
	Text         string
	Images       []string
	SelectedDocs []string
}

// Build selects up to maxDocs documents (deduplicated on the leading 200
// runes), formats each, joins them with a separator, and caps the result at
// maxLength runes. images is aligned index-wise with docs; only images of
// selected docs survive.
func Build(docs, images []string, maxDocs, maxLength int) Context {
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocs
	}
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	var out Context
	seen := make(map[uint64]bool)
	var parts []string

	for i, content := range docs {
		if len([]rune(content)) < 20 {
			continue
		}
		h := prefixHash(content)
		if seen[h] {
			continue
		}
		seen[h] = true

		parts = append(parts, FormatMarkdown(content))
		out.SelectedDocs = append(out.SelectedDocs, content)

		if i < len(images) && strings.HasPrefix(images[i], "http") {
			out.Images = append(out.Images, images[i])
		}
		if len(parts) >= maxDocs {
			break
		}
	}

	text := strings.Join(parts, "\n\n---\n\n")
	if r := []rune(text); len(r) > maxLength {
		text = string(r[:maxLength])
	}
	out.Text = text
	return out
}

func prefixHash(content string) uint64 {
	r := []rune(content)
	if len(r) > 200 {
		r = r[:200]
	}
	h := fnv.New64a()
	h.Write([]byte(string(r)))
	return h.Sum64()
}
