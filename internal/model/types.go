package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Document is an immutable unit produced by the external embedding builder.
// Text is the normalized recipe text (title + ingredients + steps plus
// Source:/Image: meta lines); Metadata carries title, source URL, image URL,
// parent id and chunk index.
type Document struct {
	Text     string
	Metadata map[string]string
}

// ID returns the stable identity of the document: the source URL when
// present, otherwise sha1 of the text.
func (d Document) ID() string {
	for _, key := range []string{"source", "url", "link"} {
		if v := strings.TrimSpace(d.Metadata[key]); v != "" {
			return v
		}
	}
	sum := sha1.Sum([]byte(d.Text))
	return hex.EncodeToString(sum[:])
}

// ScoredDoc pairs a Document with a similarity in [0,1] and its assigned
// rank. HasScore distinguishes a genuine 0 from "score unknown" (the MMR
// path returns documents without distances).
type ScoredDoc struct {
	Doc        Document
	Similarity float64
	HasScore   bool
	Rank       int
}

// ScoreMode tags which score space a list of similarities lives in. Dense
// distances, BM25 weights and RRF fractions are not comparable across modes.
type ScoreMode string

const (
	ScoreModeDistance  ScoreMode = "distance"
	ScoreModeHybridRRF ScoreMode = "hybrid_rrf"
	ScoreModeMMR       ScoreMode = "mmr"
)

// Intent is the fixed routing vocabulary.
type Intent string

const (
	IntentRecipe       Intent = "recipe"
	IntentDishOverview Intent = "dish_overview"
	IntentStorage      Intent = "storage"
	IntentSubstitution Intent = "substitution"
	IntentNutrition    Intent = "nutrition"
	IntentEquipment    Intent = "equipment"
	IntentShopping     Intent = "shopping"
	IntentUnknown      Intent = "unknown"
	IntentOutOfDomain  Intent = "out_of_domain"
	IntentClarify      Intent = "clarify"
)

// SupportedIntents lists every intent the router may emit. Clarify is part
// of the vocabulary even though it is never routed to as a retrieval intent.
var SupportedIntents = []Intent{
	IntentRecipe,
	IntentDishOverview,
	IntentStorage,
	IntentSubstitution,
	IntentNutrition,
	IntentEquipment,
	IntentShopping,
	IntentUnknown,
	IntentOutOfDomain,
	IntentClarify,
}

// IsSupportedIntent reports whether s is one of the allowed intent labels.
func IsSupportedIntent(s string) bool {
	for _, it := range SupportedIntents {
		if string(it) == s {
			return true
		}
	}
	return false
}

// Route is the router's decision for a query.
type Route struct {
	Intent         Intent `json:"intent"`
	NeedsRetrieval bool   `json:"needs_retrieval"`
	Notes          string `json:"notes"`
}

// VerdictBranch is the grounding verifier's tagged outcome.
type VerdictBranch string

const (
	VerdictGrounded    VerdictBranch = "grounded"
	VerdictNotSure     VerdictBranch = "notSure"
	VerdictNotGrounded VerdictBranch = "notGrounded"
)

// ConfidenceLevel refines the verdict, mostly inside the notSure band.
type ConfidenceLevel string

const (
	ConfidenceHigh       ConfidenceLevel = "high"
	ConfidenceBorderline ConfidenceLevel = "borderline"
	ConfidenceWeak       ConfidenceLevel = "weak"
	ConfidenceVeryWeak   ConfidenceLevel = "very_weak"
	ConfidenceNone       ConfidenceLevel = "none"
	ConfidenceUnknown    ConfidenceLevel = "unknown"
)

// Verdict is the verifier result for one answer against its grounding docs.
type Verdict struct {
	Branch      VerdictBranch   `json:"branch"`
	Confidence  ConfidenceLevel `json:"confidence_level"`
	SupportRate float64         `json:"support_rate"`
	Avg         float64         `json:"avg"`
	Median      float64         `json:"median"`
	Supported   int             `json:"supported"`
	Total       int             `json:"total"`
	Reasoning   string          `json:"reasoning,omitempty"`
}

// Source is one outbound citation in the response payload.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
