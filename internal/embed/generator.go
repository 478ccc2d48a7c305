package embed

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/pkg/openai"
)

// Config tunes a Generator.
type Config struct {
	Model      string
	Dimensions int
	// Concurrency is the fixed-size concurrent group for batch generation.
	Concurrency int
	// RequestsPerSecond throttles outbound embedding calls across the
	// whole batch.
	RequestsPerSecond float64
	MinTextLen        int
	MaxTextLen        int
	Retry             resilience.RetryConfig
}

// DefaultConfig mirrors production defaults.
func DefaultConfig() Config {
	return Config{
		Model:             "text-embedding-3-small",
		Dimensions:        1536,
		Concurrency:       5,
		RequestsPerSecond: 10,
		MinTextLen:        DefaultMinTextLen,
		MaxTextLen:        DefaultMaxTextLen,
		Retry:             resilience.EmbeddingRetryConfig(),
	}
}

// Result is the outcome of embedding one entity. Err is set when that
// entity failed; siblings in the batch are unaffected.
type Result struct {
	EntityID string
	Text     string
	Vector   []float32
	Err      error
}

// Generator turns entities into embedding vectors with caching, rate
// limiting, and a shared circuit breaker in front of the provider.
type Generator struct {
	client  openai.Client
	cache   *Cache
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	cfg     Config
	log     *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(client openai.Client, cache *Cache, breaker *resilience.CircuitBreaker, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Generator{
		client:  client,
		cache:   cache,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
		log:     zap.L(),
	}
}

// Generate embeds one entity, going through the cache first.
func (g *Generator) Generate(ctx context.Context, rec model.EntityAuditRecord) ([]float32, error) {
	text, err := PrepareText(SelectText(rec), g.cfg.MinTextLen, g.cfg.MaxTextLen)
	if err != nil {
		return nil, err
	}
	return g.embed(ctx, text)
}

func (g *Generator) embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)
	if vec, ok := g.cache.Get(key); ok {
		return vec, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "embed: rate limiter")
	}

	var vec []float32
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		cfg := g.cfg.Retry
		cfg.OnRetry = resilience.RetryLogger("openai", "embed")
		var callErr error
		vec, callErr = resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]float32, error) {
			v, err := g.client.Embed(ctx, openai.EmbedRequest{
				Model:      g.cfg.Model,
				Input:      text,
				Dimensions: g.cfg.Dimensions,
			})
			if err != nil {
				return nil, classifyProviderError(err)
			}
			return v, nil
		})
		return callErr
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: generate")
	}

	g.cache.Put(key, vec)
	return vec, nil
}

// GenerateBatch embeds a list of entities in fixed-size concurrent groups.
// One entity's failure is captured in its Result; the batch always returns
// one Result per input, in input order.
func (g *Generator) GenerateBatch(ctx context.Context, recs []model.EntityAuditRecord) []Result {
	results := make([]Result, len(recs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, rec := range recs {
		eg.Go(func() error {
			results[i] = g.generateOne(ctx, rec)
			return nil
		})
	}
	_ = eg.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		g.log.Warn("embedding batch completed with failures",
			zap.Int("total", len(recs)),
			zap.Int("failed", failed),
		)
	}
	return results
}

func (g *Generator) generateOne(ctx context.Context, rec model.EntityAuditRecord) Result {
	res := Result{EntityID: rec.EntityID}

	text, err := PrepareText(SelectText(rec), g.cfg.MinTextLen, g.cfg.MaxTextLen)
	if err != nil {
		res.Err = err
		return res
	}
	res.Text = text

	vec, err := g.embed(ctx, text)
	if err != nil {
		res.Err = err
		return res
	}
	res.Vector = vec
	return res
}

// CacheStats exposes the underlying cache's hit/miss counts.
func (g *Generator) CacheStats() (hits, misses int64) {
	return g.cache.Stats()
}

func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if eris.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientErrorWithHint(err, apiErr.StatusCode, apiErr.RetryAfter)
	}
	return err
}
