package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every knob the pipeline recognizes. Precedence when loading:
// defaults -> YAML file -> dotenv files -> environment variables.
type Config struct {
	// Paths
	StateDir       string `yaml:"state_dir"`
	VectorDir      string `yaml:"vector_dir"`
	CollectionName string `yaml:"collection_name"`
	PrototypesPath string `yaml:"ood_prototypes_path"`

	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Providers
	OpenAIAPIKey    string `yaml:"-"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	ChromaBaseURL   string `yaml:"chroma_base_url"`
	RerankerBaseURL string `yaml:"reranker_base_url"`

	// Models
	EmbeddingModel  string `yaml:"embedding_model"`
	RouterModel     string `yaml:"router_model"`
	GenerationModel string `yaml:"generation_model"`
	RewriteModel    string `yaml:"rewrite_model"`
	OODModel        string `yaml:"ood_model"`
	ModerationModel string `yaml:"moderation_model"`
	CEModel         string `yaml:"ce_model"`

	// Temperatures
	GenerationTemperature float32 `yaml:"generation_temperature"`
	RouterTemperature     float32 `yaml:"router_temperature"`
	RewriteTemperature    float32 `yaml:"rewrite_temperature"`
	OODTemperature        float32 `yaml:"ood_temperature"`

	// Retrieval
	KDefault            int     `yaml:"k_default"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DomainCap           int     `yaml:"domain_cap"`
	MinDocLen           int     `yaml:"min_doc_len"`
	RerankMMR           bool    `yaml:"rerank_mmr"`
	MMRFetch            int     `yaml:"mmr_fetch"`
	MMRLambda           float64 `yaml:"mmr_lambda"`

	// Hybrid search
	UseHybridSearch bool    `yaml:"use_hybrid_search"`
	HybridAlpha     float64 `yaml:"hybrid_alpha"`
	HybridKRRF      int     `yaml:"hybrid_k_rrf"`
	HybridFetchK    int     `yaml:"hybrid_fetch_k"`

	// Cross-encoder rerank + verifier
	UseCERerank      bool    `yaml:"use_ce_rerank"`
	CETopN           int     `yaml:"ce_topn"`
	CESentThreshold  float64 `yaml:"ce_sent_t"`
	CESupportP       float64 `yaml:"ce_support_p"`
	CEMaxDocs        int     `yaml:"ce_max_docs"`
	CESnippetsPerDoc int     `yaml:"ce_snippets_per_doc"`

	// Pipeline behavior
	EnableCRAG           bool   `yaml:"enable_crag"`
	LowConfMode          string `yaml:"lowconf_mode"`
	MinConfDocs          int    `yaml:"min_conf_docs"`
	AllowNoContextAnswer bool   `yaml:"allow_no_context_answer"`
	EnableQueryRewrite   bool   `yaml:"enable_query_rewrite"`

	// OOD guard
	EnableModeration bool    `yaml:"enable_moderation"`
	OODCosThreshold  float64 `yaml:"ood_cos_threshold"`
	OODCosMargin     float64 `yaml:"ood_cos_margin"`

	// Sessions
	SessionBackend  string `yaml:"session_backend"` // memory | redis
	RedisAddr       string `yaml:"redis_addr"`
	SessionMaxTurns int    `yaml:"session_max_turns"`
	SessionTTLMin   int    `yaml:"session_ttl_minutes"`

	// RequestTimeoutSec bounds a single /ask end to end; stage deadlines
	// derive from it.
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// Load builds config with precedence defaults -> file -> dotenv -> env.
// path may be empty, in which case "hansik.yaml" in the working directory
// is tried; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "hansik.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed YAML in %s: %w", path, err)
	}

	// Local dotenv files for developer ergonomics. Precedence stays:
	// explicit env > .env.local > .env, which is what godotenv.Load gives
	// us since it never overrides variables already set.
	for _, f := range []string{".env.local", ".env"} {
		if _, statErr := os.Stat(f); statErr == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load dotenv %s: %w", f, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SnapshotPath returns the on-disk location of the BM25 snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.StateDir, "bm25_cache", "bm25_index.gob")
}
