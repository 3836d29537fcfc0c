package pipeline

import (
	"strings"

	"github.com/hansik-ai/hansik/internal/generate"
	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/retrieval"
)

// imageIntents are the intents for which attaching recipe images makes
// sense under the strict and lenient policies.
var imageIntents = map[model.Intent]bool{
	model.IntentRecipe:       true,
	model.IntentDishOverview: true,
	model.IntentSubstitution: true,
	model.IntentStorage:      true,
}

// imagePolicy normalizes the request field; anything unrecognized is the
// conservative default.
func imagePolicy(p string) string {
	switch p {
	case "lenient", "always":
		return p
	}
	return "strict"
}

// gateImages selects outbound image URLs from the candidates whose text the
// context builder kept. Policy "strict" additionally requires the image's
// doc to mention the target dish and the final verdict to be grounded.
func gateImages(policy string, intent model.Intent, answer, query string, cands []retrieval.Candidate, selected []string, verdict model.Verdict, maxImages int) []string {
	if maxImages <= 0 {
		return nil
	}
	selectedSet := make(map[string]bool, len(selected))
	for _, text := range selected {
		selectedSet[text] = true
	}

	switch policy {
	case "always":
	case "lenient":
		if !imageIntents[intent] {
			return nil
		}
	default: // strict
		if !imageIntents[intent] {
			return nil
		}
		if verdict.Branch != model.VerdictGrounded {
			return nil
		}
	}

	dish := ""
	if policy != "always" && policy != "lenient" {
		dish = generate.ExtractTargetDish(answer)
		if dish == "" {
			dish = generate.ExtractTargetDish(query)
		}
	}

	var out []string
	seen := map[string]bool{}
	for _, c := range cands {
		if c.Image == "" || !strings.HasPrefix(c.Image, "http") {
			continue
		}
		if len(selectedSet) > 0 && !selectedSet[c.Text] {
			continue
		}
		if dish != "" && !strings.Contains(c.Text, dish) {
			continue
		}
		if seen[c.Image] {
			continue
		}
		seen[c.Image] = true
		out = append(out, c.Image)
		if len(out) >= maxImages {
			break
		}
	}
	return out
}
