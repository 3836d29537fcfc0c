// Package route classifies a question into the fixed intent vocabulary and
// decides whether retrieval is needed. The LLM path asks for a JSON object;
// a keyword fallback covers malformed or off-vocabulary output.
package route

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/model"
)

const routerSystemPrompt = `당신은 요리 챗봇의 라우터입니다.
아래 질의를 보고 intent를 선택해 JSON으로 출력하세요.

가능한 intent: ['recipe','dish_overview','storage','substitution','nutrition','equipment','shopping','unknown','out_of_domain']
필드: intent(str), needs_retrieval(bool), notes(str; 선택).
요리/음식/조리/재료/보관/영양/도구/쇼핑 관련이면 적절한 intent, 아니면 out_of_domain.`

// Router wraps the intent classifier.
type Router struct {
	llm         model.LLM
	modelName   string
	temperature float32
	log         *logrus.Entry
}

func New(llm model.LLM, modelName string, temperature float32, log *logrus.Entry) *Router {
	return &Router{llm: llm, modelName: modelName, temperature: temperature, log: log}
}

// Route classifies query, optionally with recent conversation context. The
// JSON-object call is attempted twice before the keyword fallback takes
// over; an out_of_domain verdict for an obviously cooking-flavored query is
// overridden by the heuristic.
func (r *Router) Route(ctx context.Context, query, convContext string) model.Route {
	q := query
	if convContext != "" {
		q = query + "\n\n[참고맥락]\n" + convContext
	}

	data, ok := r.classify(ctx, q)
	if !ok || !model.IsSupportedIntent(string(data.Intent)) {
		fb := heuristicRoute(query)
		if data.Notes != "" {
			fb.Notes = data.Notes + " | " + fb.Notes
		}
		return fb
	}

	if data.Intent == model.IntentOutOfDomain && looksInDomain(query) {
		fb := heuristicRoute(query)
		fb.Notes = strings.TrimSpace(data.Notes + " | overridden_from_ood_by_heuristic")
		return fb
	}
	return data
}

func (r *Router) classify(ctx context.Context, q string) (model.Route, bool) {
	if r.llm == nil {
		return model.Route{}, false
	}
	messages := []model.ChatMessage{
		{Role: "system", Content: routerSystemPrompt},
		{Role: "user", Content: "질문: " + q + "\n\nJSON으로만 답하세요."},
	}
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := r.llm.CompleteJSON(ctx, r.modelName, r.temperature, messages)
		if err != nil {
			r.log.WithError(err).WithField("attempt", attempt+1).Debug("router completion failed")
			continue
		}
		var out struct {
			Intent         string `json:"intent"`
			NeedsRetrieval *bool  `json:"needs_retrieval"`
			Notes          string `json:"notes"`
		}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			r.log.WithError(err).Debug("router returned malformed JSON")
			continue
		}
		needs := true
		if out.NeedsRetrieval != nil {
			needs = *out.NeedsRetrieval
		}
		return model.Route{
			Intent:         model.Intent(strings.TrimSpace(out.Intent)),
			NeedsRetrieval: needs,
			Notes:          strings.TrimSpace(out.Notes),
		}, true
	}
	return model.Route{}, false
}

// fallbackPatterns map keyword cues to intents, checked in priority order.
var fallbackPatterns = []struct {
	re     *regexp.Regexp
	intent model.Intent
}{
	{regexp.MustCompile(`보관|온도|포장|냉동|보존|storage|shelf life|expire`), model.IntentStorage},
	{regexp.MustCompile(`대체|치환|없\s*이|substitut|replace|allerg`), model.IntentSubstitution},
	{regexp.MustCompile(`칼로리|영양|영양소|탄수|단백|지방|nutrition|calorie|macro|kcal`), model.IntentNutrition},
	{regexp.MustCompile(`도구|장비|에어\s*프라이어|팬|오븐|equipment|tool|pan|oven|air fryer`), model.IntentEquipment},
	{regexp.MustCompile(`구매|쇼핑|살까|사기|shopping|buy|purchase`), model.IntentShopping},
	{regexp.MustCompile(`무엇|뭐야|기원|유래|특징|overview|about`), model.IntentDishOverview},
	{regexp.MustCompile(`레시피|만드|어떻게|방법|steps|how to|make|cook`), model.IntentRecipe},
}

// heuristicRoute guesses the intent from keyword cues when the LLM output
// is unusable.
func heuristicRoute(query string) model.Route {
	t := strings.ToLower(query)
	for _, p := range fallbackPatterns {
		if p.re.MatchString(t) {
			return model.Route{Intent: p.intent, NeedsRetrieval: true, Notes: "semantic_fallback"}
		}
	}
	if looksInDomain(query) {
		return model.Route{Intent: model.IntentRecipe, NeedsRetrieval: true, Notes: "semantic_default"}
	}
	return model.Route{Intent: model.IntentOutOfDomain, NeedsRetrieval: false, Notes: "semantic_default"}
}

var domainCues = []string{
	"요리", "레시피", "만드는", "방법", "재료", "보관", "영양", "조리", "메뉴", "추천",
	"카레", "소스", "치킨", "수프", "찌개", "스튜", "볶음", "구이",
	"recipe", "cook", "cooking", "ingredients", "storage", "nutrition", "substitute", "dish",
}

func looksInDomain(text string) bool {
	t := strings.ToLower(text)
	for _, cue := range domainCues {
		if strings.Contains(t, cue) {
			return true
		}
	}
	return false
}
