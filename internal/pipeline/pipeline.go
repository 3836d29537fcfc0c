// Package pipeline runs the question-answering state machine: guard, route,
// rewrite, retrieve, generate, verify, and the corrective second pass, with
// the low-confidence decision protocol on top.
package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/compose"
	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/generate"
	"github.com/hansik-ai/hansik/internal/guard"
	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/rerank"
	"github.com/hansik-ai/hansik/internal/retrieval"
	"github.com/hansik-ai/hansik/internal/rewrite"
	"github.com/hansik-ai/hansik/internal/route"
	"github.com/hansik-ai/hansik/internal/session"
	"github.com/hansik-ai/hansik/internal/tokenizer"
	"github.com/hansik-ai/hansik/internal/verify"
)

const (
	noDocsAnswer = "관련 자료를 찾지 못했어요. 요리 이름이나 재료를 조금 더 구체적으로 적어 주시면 다시 찾아볼게요."

	internalErrorAnswer = "죄송해요. 요청을 처리하는 중 문제가 발생했어요. 잠시 후 다시 시도해 주세요."

	// summaryTurns is how many recent turns feed the router and rewriter as
	// conversational context.
	summaryTurns = 3
)

type Pipeline struct {
	cfg       *config.Config
	guard     *guard.Guard
	router    *route.Router
	rewriter  *rewrite.Rewriter
	retriever *retrieval.Retriever
	reranker  model.Reranker
	verifier  *verify.Verifier
	generator *generate.Generator
	sessions  session.Store
	log       *logrus.Entry
}

func New(
	cfg *config.Config,
	g *guard.Guard,
	router *route.Router,
	rewriter *rewrite.Rewriter,
	retriever *retrieval.Retriever,
	reranker model.Reranker,
	verifier *verify.Verifier,
	generator *generate.Generator,
	sessions session.Store,
	log *logrus.Entry,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		guard:     g,
		router:    router,
		rewriter:  rewriter,
		retriever: retriever,
		reranker:  reranker,
		verifier:  verifier,
		generator: generator,
		sessions:  sessions,
		log:       log,
	}
}

// Sessions exposes the session store for the HTTP surface.
func (p *Pipeline) Sessions() session.Store { return p.sessions }

// Ask runs one request end to end. It never returns an error to the caller;
// failures map to terminal branches in the response.
func (p *Pipeline) Ask(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("pipeline panic recovered")
			resp = &Response{
				Answer:        internalErrorAnswer,
				Intent:        string(model.IntentUnknown),
				OriginalQuery: strings.TrimSpace(req.Query),
				Branch:        "internal_error",
				FinalPass:     1,
				Sources:       []model.Source{},
				ImageURLs:     []string{},
			}
		}
	}()

	if p.cfg.RequestTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.RequestTimeoutSec)*time.Second)
		defer cancel()
	}

	query := strings.TrimSpace(req.Query)
	k := req.K
	if k <= 0 {
		k = p.cfg.KDefault
	}
	if k > 50 {
		k = 50
	}

	resp = &Response{
		Intent:        string(model.IntentUnknown),
		OriginalQuery: query,
		Branch:        "has_docs",
		FinalPass:     1,
		Sources:       []model.Source{},
		ImageURLs:     []string{},
	}

	sid, isNew := p.ensureSession(ctx, req.SessionID)
	resp.SessionID = sid
	resp.IsNewSession = isNew
	history, _ := p.sessions.History(ctx, sid)
	resp.ConversationTurns = len(history) / 2
	resp.HistoryUsed = len(history) > 0
	p.tag(resp, "session")

	allowLow := req.AllowLowConfidence

	// Pending-decision protocol: an active marker must be resolved or
	// re-prompted before anything else runs.
	if pending, _ := p.sessions.PendingDecision(ctx, sid); pending != nil && pending.Type == "low_confidence" {
		switch parseDecision(req.Decision, query) {
		case "proceed":
			_ = p.sessions.SetPendingDecision(ctx, sid, nil)
			allowLow = true
			query = pending.OriginalQuery
			resp.OriginalQuery = query
			p.tag(resp, "decision_proceed")
		case "clarify":
			_ = p.sessions.SetPendingDecision(ctx, sid, nil)
			resp.Branch = "decision_clarify"
			resp.Intent = string(model.IntentClarify)
			resp.Answer = clarifyAnswer
			return p.finish(ctx, resp, req.Query)
		default:
			resp.Branch = "decision_pending"
			resp.Answer = decisionPrompt
			resp.DecisionRequired = true
			resp.SuggestedActions = suggestedActions
			return p.finish(ctx, resp, req.Query)
		}
	}

	// A terse follow-up inside an ongoing conversation skips the OOD gate so
	// "그럼 보관은?" after a recipe answer is not misread as off-topic.
	if p.shortFollowUp(query, history) {
		p.tag(resp, "ood_bypass")
	} else {
		dec := p.guard.Check(ctx, query)
		p.tag(resp, "ood_guard")
		if dec.Branch == "out" {
			resp.Branch = "out_of_domain"
			resp.Intent = string(model.IntentOutOfDomain)
			resp.Answer = dec.Answer
			return p.finish(ctx, resp, req.Query)
		}
	}

	summary, _ := p.sessions.ContextSummary(ctx, sid, summaryTurns)

	rt := p.router.Route(ctx, query, summary)
	resp.Intent = string(rt.Intent)
	p.tag(resp, "router")
	if rt.Intent == model.IntentOutOfDomain {
		resp.Branch = "out_of_domain"
		resp.Answer = guard.RefusalOffTopic
		return p.finish(ctx, resp, req.Query)
	}

	if clarifyFirst(query, rt.Intent) {
		resp.Branch = "clarify_first"
		resp.Intent = string(model.IntentClarify)
		resp.Answer = clarifyAnswer
		return p.finish(ctx, resp, req.Query)
	}

	searchQuery := query
	if p.rewriteEnabled(req) && rt.NeedsRetrieval {
		if rw := p.rewriter.Rewrite(ctx, query, summary); rw != "" && rw != query {
			searchQuery = rw
			resp.RewrittenQuery = rw
		}
		p.tag(resp, "rewrite")
	}

	cands, mode, ok := p.retrieveAndFilter(ctx, resp, searchQuery, k)
	if !ok {
		return p.finish(ctx, resp, req.Query)
	}
	if len(cands) == 0 {
		resp.Branch = "no_docs"
		resp.Answer = noDocsAnswer
		resp.RetrievalMetrics = p.metrics(mode, k, cands, nil, nil)
		return p.finish(ctx, resp, req.Query)
	}

	built := buildContext(cands)
	p.tag(resp, "build_context")

	chatHist := session.ChatHistory(history)
	answer := p.generator.Generate(ctx, query, rt.Intent, built.Text, chatHist, req.ModelHint)
	p.tag(resp, "generate")

	v1 := p.verifier.Verify(ctx, answer, built.SelectedDocs)
	resp.JudgeVerdict1 = &v1
	p.tag(resp, "verify")
	final := v1

	if p.cfg.EnableCRAG && needsSecondPass(v1) {
		answer2, cands2, built2, v2, ran := p.secondPass(ctx, resp, query, built.Text, k, chatHist, rt.Intent, req.ModelHint)
		if ran {
			// Once the corrective pass completes, its output carries forward
			// regardless of how the two verdicts compare.
			resp.JudgeVerdict2 = &v2
			answer, cands, built, final = answer2, cands2, built2, v2
			resp.FinalPass = 2
			resp.Corrected = true
		}
	}

	low := isLowConfidence(p.cfg.LowConfMode, final, cands, mode, p.cfg.SimilarityThreshold, p.cfg.MinConfDocs)
	p.tag(resp, "lowconf_gate")
	resp.LowConfidence = low
	if low && !allowLow {
		_ = p.sessions.SetPendingDecision(ctx, sid, &session.PendingDecision{Type: "low_confidence", OriginalQuery: query})
		resp.Branch = "decision_pending"
		resp.Answer = decisionPrompt
		resp.DecisionRequired = true
		resp.SuggestedActions = suggestedActions
		resp.RetrievalMetrics = p.metrics(mode, k, cands, resp.JudgeVerdict1, resp.JudgeVerdict2)
		return p.finish(ctx, resp, req.Query)
	}
	if low {
		resp.Warning = lowConfWarning
	}

	resp.Sources = buildSources(cands, built.SelectedDocs, 3)

	if req.IncludeImages {
		maxImages := req.MaxImages
		if maxImages > 12 {
			maxImages = 12
		}
		resp.ImageURLs = gateImages(imagePolicy(req.ImagePolicy), rt.Intent, answer, query, cands, built.SelectedDocs, final, maxImages)
		if resp.ImageURLs == nil {
			resp.ImageURLs = []string{}
		}
		p.tag(resp, "image_gate")
	}

	if answer == generate.NoContextRefusal {
		resp.Sources = []model.Source{}
		resp.ImageURLs = []string{}
	}

	sanitized, rep := sanitizeLinks(answer, resp.Sources)
	resp.Answer = sanitized
	resp.LinkSanitized = rep.Sanitized
	resp.RemovedURLs = rep.RemovedURLs
	resp.LinksInBodyRemoved = rep.LinksInBody
	resp.StrippedSourcesSection = rep.StrippedSources
	p.tag(resp, "sanitize_links")

	resp.ContextText = built.Text
	resp.ContextLen = utf8.RuneCountInString(built.Text)
	resp.UsedDocs = len(built.SelectedDocs)
	resp.RetrievedCount = len(cands)
	resp.RetrievedScores = firstScores(cands, 5)
	resp.RetrievalMetrics = p.metrics(mode, k, cands, resp.JudgeVerdict1, resp.JudgeVerdict2)
	return p.finish(ctx, resp, req.Query)
}

// ensureSession reuses the caller's session when it is still alive and
// creates a fresh one otherwise.
func (p *Pipeline) ensureSession(ctx context.Context, sid string) (string, bool) {
	if sid != "" {
		if _, err := p.sessions.History(ctx, sid); err == nil {
			return sid, false
		}
	}
	id, err := p.sessions.Create(ctx)
	if err != nil {
		p.log.WithError(err).Warn("session create failed")
		return "", true
	}
	return id, true
}

// finish appends the exchanged turns and returns the response. Turns are
// only written here, after the answer is final, so a cancelled request
// leaves no partial state.
func (p *Pipeline) finish(ctx context.Context, resp *Response, rawQuery string) *Response {
	if resp.SessionID == "" {
		return resp
	}
	if q := strings.TrimSpace(rawQuery); q != "" {
		_ = p.sessions.AddMessage(ctx, resp.SessionID, "user", q)
	}
	if resp.Answer != "" {
		_ = p.sessions.AddMessage(ctx, resp.SessionID, "assistant", resp.Answer)
	}
	return resp
}

func (p *Pipeline) tag(resp *Response, stage string) {
	resp.Pipeline = append(resp.Pipeline, stage)
}

func (p *Pipeline) rewriteEnabled(req Request) bool {
	if !p.cfg.EnableQueryRewrite {
		return false
	}
	return req.EnableRewrite == nil || *req.EnableRewrite
}

func (p *Pipeline) shortFollowUp(query string, history []session.Message) bool {
	if len(history) == 0 {
		return false
	}
	if query == "" {
		return false
	}
	if utf8.RuneCountInString(query) <= 4 {
		return true
	}
	return len(tokenizer.Tokenize(query)) <= 2
}

func (p *Pipeline) retrieveAndFilter(ctx context.Context, resp *Response, query string, k int) ([]retrieval.Candidate, model.ScoreMode, bool) {
	docs, mode, err := p.retriever.Retrieve(ctx, query, k)
	p.tag(resp, "retrieve")
	if err != nil {
		p.tag(resp, "retrieve_error")
		resp.Branch = "no_docs"
		resp.Answer = noDocsAnswer
		return nil, mode, false
	}

	cands := p.retriever.Filter(ctx, query, docs, k, mode)
	p.tag(resp, "filter")

	if p.cfg.UseCERerank && p.reranker != nil {
		cands = rerank.Apply(ctx, p.reranker, p.log, query, cands, p.cfg.CETopN)
		p.tag(resp, "ce_rerank")
	}
	return cands, mode, true
}

func (p *Pipeline) secondPass(ctx context.Context, resp *Response, query, firstContext string, k int, chatHist []model.ChatMessage, intent model.Intent, modelHint string) (string, []retrieval.Candidate, compose.Context, model.Verdict, bool) {
	q2 := p.rewriter.Rewrite(ctx, query, firstContext)
	docs2, mode2, err := p.retriever.Retrieve(ctx, q2, k)
	if err != nil {
		p.log.WithError(err).Debug("corrective retrieval failed")
		return "", nil, compose.Context{}, model.Verdict{}, false
	}
	cands2 := p.retriever.Filter(ctx, q2, docs2, k, mode2)
	if p.cfg.UseCERerank && p.reranker != nil {
		cands2 = rerank.Apply(ctx, p.reranker, p.log, q2, cands2, p.cfg.CETopN)
	}
	if len(cands2) == 0 {
		return "", nil, compose.Context{}, model.Verdict{}, false
	}
	built2 := buildContext(cands2)
	answer2 := p.generator.Generate(ctx, query, intent, built2.Text, chatHist, modelHint)
	v2 := p.verifier.Verify(ctx, answer2, built2.SelectedDocs)
	p.tag(resp, "crag_second_pass")
	return answer2, cands2, built2, v2, true
}

func (p *Pipeline) metrics(mode model.ScoreMode, k int, cands []retrieval.Candidate, v1, v2 *model.Verdict) *RetrievalMetrics {
	return &RetrievalMetrics{
		ScoreMode:           string(mode),
		K:                   k,
		MMREnabled:          p.cfg.RerankMMR,
		MMRFetch:            p.cfg.MMRFetch,
		MMRLambda:           p.cfg.MMRLambda,
		SimilarityThreshold: p.cfg.SimilarityThreshold,
		DomainCap:           p.cfg.DomainCap,
		ScoresSummary:       summarizeScores(cands),
		UniqueDomains:       uniqueDomains(cands),
		VerifierMetrics1:    v1,
		VerifierMetrics2:    v2,
	}
}

func buildContext(cands []retrieval.Candidate) compose.Context {
	texts := make([]string, len(cands))
	images := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = c.Text
		images[i] = c.Image
	}
	return compose.Build(texts, images, 0, 0)
}

func buildSources(cands []retrieval.Candidate, selected []string, max int) []model.Source {
	selectedSet := make(map[string]bool, len(selected))
	for _, t := range selected {
		selectedSet[t] = true
	}
	out := []model.Source{}
	seen := map[string]bool{}
	for _, c := range cands {
		if c.URL == "" || !selectedSet[c.Text] || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, model.Source{Title: c.Title, URL: c.URL})
		if len(out) >= max {
			break
		}
	}
	return out
}

func firstScores(cands []retrieval.Candidate, n int) []float64 {
	var out []float64
	for _, c := range cands {
		if !c.HasScore {
			continue
		}
		out = append(out, c.Similarity)
		if len(out) >= n {
			break
		}
	}
	return out
}

var interrogatives = map[string]bool{
	"뭐": true, "무엇": true, "왜": true, "어떻게": true, "언제": true,
	"어디": true, "누구": true, "what": true, "how": true, "why": true,
}

// clarifyFirst catches queries too thin to retrieve on. Storage,
// substitution and nutrition questions are exempt because they are often
// legitimately short ("계란 보관").
func clarifyFirst(query string, intent model.Intent) bool {
	switch intent {
	case model.IntentStorage, model.IntentSubstitution, model.IntentNutrition:
		return false
	}
	if query == "" {
		return true
	}
	if interrogatives[strings.ToLower(query)] {
		return true
	}
	if utf8.RuneCountInString(query) <= 4 {
		return true
	}
	tokens := tokenizer.Tokenize(query)
	if len(tokens) == 1 && generate.ExtractTargetDish(query) == "" {
		return true
	}
	return false
}

// needsSecondPass flags verdicts weak enough to warrant corrective
// retrieval.
func needsSecondPass(v model.Verdict) bool {
	if v.Branch == model.VerdictNotGrounded {
		return true
	}
	if v.Branch != model.VerdictNotSure {
		return false
	}
	// "unknown" means the verifier itself was unavailable; a second pass
	// would be verified by the same unavailable model.
	if v.Confidence == model.ConfidenceUnknown {
		return false
	}
	if v.Confidence == model.ConfidenceWeak || v.Confidence == model.ConfidenceVeryWeak {
		return true
	}
	return v.SupportRate < 0.30
}
