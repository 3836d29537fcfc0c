package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hansik-ai/hansik/internal/bm25"
	"github.com/hansik-ai/hansik/internal/chroma"
	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/generate"
	"github.com/hansik-ai/hansik/internal/guard"
	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/pipeline"
	"github.com/hansik-ai/hansik/internal/provider/openai"
	"github.com/hansik-ai/hansik/internal/rerank"
	"github.com/hansik-ai/hansik/internal/retrieval"
	"github.com/hansik-ai/hansik/internal/rewrite"
	"github.com/hansik-ai/hansik/internal/route"
	"github.com/hansik-ai/hansik/internal/server"
	"github.com/hansik-ai/hansik/internal/session"
	"github.com/hansik-ai/hansik/internal/verify"
)

const sessionCleanupInterval = 5 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP question-answering server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if globalFlags.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger)

	p, sessions, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(p, cfg, log).Router(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessionCleanupLoop(ctx, sessions, log)

	st := newStyles(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), st.Brand.Render("hansik"), "listening on", st.Key.Render(cfg.ListenAddr))
	fmt.Fprintln(cmd.OutOrStdout(), st.Dim.Render(fmt.Sprintf("collection=%s hybrid=%v crag=%v sessions=%s", cfg.CollectionName, cfg.UseHybridSearch, cfg.EnableCRAG, cfg.SessionBackend)))

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildPipeline wires every collaborator from configuration.
func buildPipeline(cfg *config.Config, log *logrus.Entry) (*pipeline.Pipeline, session.Store, error) {
	ai := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.ModerationModel, log)
	store := chroma.NewStore(cfg.ChromaBaseURL, cfg.CollectionName, ai, log)
	sparse := bm25.NewBuilder(store, cfg.SnapshotPath(), log)
	retriever := retrieval.New(store, sparse, cfg, log)

	var reranker model.Reranker
	if cfg.RerankerBaseURL != "" {
		reranker = rerank.NewClient(cfg.RerankerBaseURL, cfg.CEModel, "", log)
	}

	g := guard.New(ai, ai, ai, guard.Options{
		EnableModeration: cfg.EnableModeration,
		ModerationModel:  cfg.ModerationModel,
		CosThreshold:     cfg.OODCosThreshold,
		CosMargin:        cfg.OODCosMargin,
		LLMModel:         cfg.OODModel,
		LLMTemperature:   cfg.OODTemperature,
		PrototypesPath:   cfg.PrototypesPath,
	}, log)

	verifier := verify.New(reranker, verify.Params{
		SentThreshold:  cfg.CESentThreshold,
		SupportP:       cfg.CESupportP,
		MaxDocs:        cfg.CEMaxDocs,
		SnippetsPerDoc: cfg.CESnippetsPerDoc,
	}, log)

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(
		cfg,
		g,
		route.New(ai, cfg.RouterModel, cfg.RouterTemperature, log),
		rewrite.New(ai, cfg.RewriteModel, cfg.RewriteTemperature, log),
		retriever,
		reranker,
		verifier,
		generate.New(ai, cfg.GenerationModel, cfg.GenerationTemperature, cfg.AllowNoContextAnswer, log),
		sessions,
		log,
	)
	return p, sessions, nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	ttl := time.Duration(cfg.SessionTTLMin) * time.Minute
	switch cfg.SessionBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return session.NewRedisStore(client, cfg.SessionMaxTurns, ttl), nil
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionMaxTurns, ttl), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// sessionCleanupLoop periodically sweeps expired sessions; Count evicts as a
// side effect.
func sessionCleanupLoop(ctx context.Context, sessions session.Store, log *logrus.Entry) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sessions.Count(ctx); err == nil {
				log.WithField("active_sessions", n).Debug("session cleanup sweep")
			}
		}
	}
}
