package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays recognized environment variables onto cfg. Knob names
// follow the embedding builder and evaluation harness conventions.
func applyEnv(cfg *Config) {
	envString(&cfg.StateDir, "HANSIK_STATE_DIR")
	envString(&cfg.VectorDir, "VECTOR_DIR")
	envString(&cfg.CollectionName, "COLLECTION_NAME")
	envString(&cfg.PrototypesPath, "OOD_PROTOTYPES_PATH")
	envString(&cfg.ListenAddr, "HANSIK_LISTEN_ADDR")

	envString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envString(&cfg.ChromaBaseURL, "CHROMA_BASE_URL")
	envString(&cfg.RerankerBaseURL, "RERANKER_BASE_URL")

	envString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	envString(&cfg.RouterModel, "ROUTER_MODEL")
	envString(&cfg.GenerationModel, "GENERATION_MODEL")
	envString(&cfg.RewriteModel, "REWRITE_MODEL")
	envString(&cfg.OODModel, "OOD_MODEL")
	envString(&cfg.ModerationModel, "MODERATION_MODEL")
	envString(&cfg.CEModel, "CE_MODEL")

	envFloat32(&cfg.GenerationTemperature, "GENERATION_TEMPERATURE")
	envFloat32(&cfg.RouterTemperature, "ROUTER_TEMPERATURE")
	envFloat32(&cfg.RewriteTemperature, "REWRITE_TEMPERATURE")
	envFloat32(&cfg.OODTemperature, "OOD_TEMPERATURE")

	envInt(&cfg.KDefault, "K_DEFAULT")
	envFloat(&cfg.SimilarityThreshold, "SIMILARITY_THRESHOLD")
	envInt(&cfg.DomainCap, "DOMAIN_CAP")
	envInt(&cfg.MinDocLen, "MIN_DOC_LEN")
	envBool(&cfg.RerankMMR, "RERANK_MMR")
	envInt(&cfg.MMRFetch, "MMR_FETCH")
	envFloat(&cfg.MMRLambda, "MMR_LAMBDA")

	envBool(&cfg.UseHybridSearch, "USE_HYBRID_SEARCH")
	envFloat(&cfg.HybridAlpha, "HYBRID_ALPHA")
	envInt(&cfg.HybridKRRF, "HYBRID_K_RRF")
	envInt(&cfg.HybridFetchK, "HYBRID_FETCH_K")

	envBool(&cfg.UseCERerank, "USE_CE_RERANK")
	envInt(&cfg.CETopN, "CE_TOPN")
	envFloat(&cfg.CESentThreshold, "CE_SENT_T")
	envFloat(&cfg.CESupportP, "CE_SUPPORT_P")
	envInt(&cfg.CEMaxDocs, "CE_MAX_DOCS")
	envInt(&cfg.CESnippetsPerDoc, "CE_SNIPPETS_PER_DOC")

	envBool(&cfg.EnableCRAG, "ENABLE_CRAG")
	envString(&cfg.LowConfMode, "LOWCONF_MODE")
	envInt(&cfg.MinConfDocs, "MIN_CONF_DOCS")
	envBool(&cfg.AllowNoContextAnswer, "ALLOW_NO_CONTEXT_ANSWER")
	envBool(&cfg.EnableQueryRewrite, "ENABLE_QUERY_REWRITE")

	envBool(&cfg.EnableModeration, "ENABLE_MODERATION")
	envFloat(&cfg.OODCosThreshold, "OOD_COS_THRESHOLD")
	envFloat(&cfg.OODCosMargin, "OOD_COS_MARGIN")

	envString(&cfg.SessionBackend, "SESSION_BACKEND")
	envString(&cfg.RedisAddr, "REDIS_ADDR")
	envInt(&cfg.SessionMaxTurns, "SESSION_MAX_TURNS")
	envInt(&cfg.SessionTTLMin, "SESSION_TTL_MINUTES")

	envInt(&cfg.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC")

	cfg.LowConfMode = strings.ToLower(strings.TrimSpace(cfg.LowConfMode))
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envFloat32(dst *float32, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
			*dst = float32(f)
		}
	}
}

// envBool accepts 1/0, true/false, yes/no.
func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}
