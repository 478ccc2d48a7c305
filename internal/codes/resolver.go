package codes

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierjflanagan/Guardian-sub001/internal/embed"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// Embedder is the embedding dependency the resolver needs.
type Embedder interface {
	Generate(ctx context.Context, rec model.EntityAuditRecord) ([]float32, error)
}

// CatalogSearcher is the vector-search dependency the resolver needs.
type CatalogSearcher interface {
	Search(ctx context.Context, vector []float32, entityType string) SearchResult
}

// ResolverConfig tunes batch resolution.
type ResolverConfig struct {
	// Concurrency bounds entities resolved in flight at once.
	Concurrency   int
	MaxCandidates int
}

// DefaultResolverConfig mirrors production defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{Concurrency: 3, MaxCandidates: 10}
}

// Resolver runs Pass 1.5: embedding generation plus dual catalog search
// plus candidate selection, per entity.
type Resolver struct {
	embedder Embedder
	searcher CatalogSearcher
	cfg      ResolverConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(embedder Embedder, searcher CatalogSearcher, cfg ResolverConfig) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	return &Resolver{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
		log:      zap.L(),
		now:      time.Now,
	}
}

// Resolvable reports whether an entity participates in code resolution.
// Only clinical events carry medical codes; context and structure entities
// are skipped entirely.
func Resolvable(rec model.EntityAuditRecord) bool {
	return rec.Category == model.CategoryClinicalEvent
}

// ResolveBatch resolves code candidates for every resolvable entity, in
// fixed-size concurrent groups. One entity's failure is recorded on its
// result and never aborts siblings; results come back in input order.
func (r *Resolver) ResolveBatch(ctx context.Context, sessionID string, recs []model.EntityAuditRecord) []model.CandidateResult {
	resolvable := make([]model.EntityAuditRecord, 0, len(recs))
	for _, rec := range recs {
		if Resolvable(rec) {
			resolvable = append(resolvable, rec)
		}
	}

	results := make([]model.CandidateResult, len(resolvable))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Concurrency)
	for i, rec := range resolvable {
		eg.Go(func() error {
			results[i] = r.resolveOne(ctx, sessionID, rec)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (r *Resolver) resolveOne(ctx context.Context, sessionID string, rec model.EntityAuditRecord) model.CandidateResult {
	result := model.CandidateResult{
		EntityID:   rec.EntityID,
		SessionID:  sessionID,
		Subtype:    rec.Subtype,
		ResolvedAt: r.now().UTC(),
	}

	vector, err := r.embedder.Generate(ctx, rec)
	if err != nil {
		// No embedding means no candidates; the entity still persists.
		result.FailureNote = "embedding failed: " + err.Error()
		r.log.Warn("code resolution skipped",
			zap.String("entity_id", rec.EntityID),
			zap.Error(err),
		)
		return result
	}
	result.SearchText = embed.SelectText(rec)

	search := r.searcher.Search(ctx, vector, string(rec.Subtype))
	if search.UniversalErr != nil && search.RegionalErr != nil {
		result.FailureNote = "both catalog searches failed"
		return result
	}

	result.Candidates = Select(search.Universal, search.Regional, rec.Subtype, r.cfg.MaxCandidates)
	return result
}
