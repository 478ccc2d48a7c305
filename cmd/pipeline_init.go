package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/artifact"
	"github.com/xavierjflanagan/Guardian-sub001/internal/codes"
	"github.com/xavierjflanagan/Guardian-sub001/internal/cost"
	"github.com/xavierjflanagan/Guardian-sub001/internal/detect"
	"github.com/xavierjflanagan/Guardian-sub001/internal/embed"
	"github.com/xavierjflanagan/Guardian-sub001/internal/pipeline"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
	"github.com/xavierjflanagan/Guardian-sub001/internal/translate"
	anthropicpkg "github.com/xavierjflanagan/Guardian-sub001/pkg/anthropic"
	"github.com/xavierjflanagan/Guardian-sub001/pkg/bucket"
	openaipkg "github.com/xavierjflanagan/Guardian-sub001/pkg/openai"
)

// pipelineEnv holds the initialized store, clients, and orchestrators the
// process/codes/serve commands share.
type pipelineEnv struct {
	Store     *store.PostgresStore
	Artifacts *artifact.Store
	Pass1     *pipeline.Pass1
	Pass15    *pipeline.Pass15
	Worker    *pipeline.Worker
	Searcher  *codes.Searcher
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline wires the full dependency graph. Every client is constructed
// here and passed down explicitly; nothing initializes lazily at call sites.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required (GUARDIAN_STORE_DATABASE_URL)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required (GUARDIAN_ANTHROPIC_KEY)")
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	objects := bucket.NewHTTP(cfg.Bucket.BaseURL, cfg.Bucket.Key, cfg.Bucket.Name)
	artifacts := artifact.New(objects, st)

	translator := translate.New(translate.Options{
		MaxTextLen:                cfg.Processing.MaxTextLen,
		ReviewConfidenceThreshold: cfg.Processing.ReviewConfidenceThreshold,
		ReviewAgreementThreshold:  cfg.Processing.ReviewAgreementThreshold,
	})
	calc := cost.NewCalculator(cost.DefaultRates())
	detector := detect.New(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		translator,
		calc,
		detect.Config{
			Model:              cfg.Anthropic.Model,
			MaxTokens:          cfg.Anthropic.MaxTokens,
			OCRConfidenceFloor: cfg.Processing.OCRConfidenceFloor,
			ContractRetries:    cfg.Processing.ContractRetries,
			Retry:              resilience.CompletionRetryConfig(),
		},
	)

	embedClient := openaipkg.NewClient(cfg.Embedding.Key, openaipkg.WithBaseURL(cfg.Embedding.BaseURL))
	generator := embed.NewGenerator(
		embedClient,
		embed.NewCache(time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour),
		resilience.NewCircuitBreaker(5, 30*time.Second),
		embed.Config{
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			Concurrency:       cfg.Embedding.BatchConcurrency,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			MinTextLen:        cfg.Embedding.MinTextLen,
			MaxTextLen:        cfg.Embedding.MaxTextLen,
			Retry:             resilience.EmbeddingRetryConfig(),
		},
	)

	searcher := codes.NewSearcher(st.Pool(), codes.SearchConfig{
		MinSimilarity: cfg.Codes.MinSimilarity,
		MaxPerTier:    cfg.Codes.MaxCandidates,
		Region:        cfg.Codes.Region,
	})
	resolver := codes.NewResolver(generator, searcher, codes.ResolverConfig{
		MaxCandidates: cfg.Codes.MaxCandidates,
	})

	pass1 := pipeline.NewPass1(detector, artifacts, st, pipeline.Pass1Config{
		Concurrency: cfg.Processing.BatchConcurrency,
		MaxRetries:  3,
	})
	pass15 := pipeline.NewPass15(resolver, st, 3)
	worker := pipeline.NewWorker(st, pass1, pass15, pipeline.DefaultWorkerConfig())

	return &pipelineEnv{
		Store:     st,
		Artifacts: artifacts,
		Pass1:     pass1,
		Pass15:    pass15,
		Worker:    worker,
		Searcher:  searcher,
	}, nil
}
