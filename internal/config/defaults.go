package config

import "path/filepath"

// Default returns the built-in configuration. Threshold and cap values
// mirror the tuning the retrieval pipeline was evaluated with.
func Default() Config {
	return Config{
		StateDir:       filepath.Join(".", ".hansik"),
		VectorDir:      filepath.Join(".", "chroma_db"),
		CollectionName: "recipes-v1",
		PrototypesPath: filepath.Join(".", "config", "ood_prototypes.json"),

		ListenAddr: "127.0.0.1:8080",

		OpenAIBaseURL:   "",
		ChromaBaseURL:   "http://127.0.0.1:8000",
		RerankerBaseURL: "",

		EmbeddingModel:  "text-embedding-3-large",
		RouterModel:     "gpt-4o",
		GenerationModel: "gpt-4o",
		RewriteModel:    "gpt-4o",
		OODModel:        "gpt-4o",
		ModerationModel: "omni-moderation-latest",
		CEModel:         "BAAI/bge-reranker-base",

		GenerationTemperature: 0,
		RouterTemperature:     0,
		RewriteTemperature:    0.5,
		OODTemperature:        0,

		KDefault:            12,
		SimilarityThreshold: 0.08,
		DomainCap:           3,
		MinDocLen:           20,
		RerankMMR:           true,
		MMRFetch:            150,
		MMRLambda:           0.7,

		UseHybridSearch: true,
		HybridAlpha:     0.5,
		HybridKRRF:      60,
		HybridFetchK:    24,

		UseCERerank:      false,
		CETopN:           30,
		CESentThreshold:  0.15,
		CESupportP:       0.15,
		CEMaxDocs:        8,
		CESnippetsPerDoc: 3,

		EnableCRAG:           true,
		LowConfMode:          "balanced",
		MinConfDocs:          1,
		AllowNoContextAnswer: false,
		EnableQueryRewrite:   true,

		EnableModeration: true,
		OODCosThreshold:  0.35,
		OODCosMargin:     0.05,

		SessionBackend:  "memory",
		RedisAddr:       "127.0.0.1:6379",
		SessionMaxTurns: 5,
		SessionTTLMin:   30,

		RequestTimeoutSec: 120,
	}
}
