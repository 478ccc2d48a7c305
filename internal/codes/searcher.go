// Package codes resolves detected entities to standardized medical code
// candidates via vector similarity search over the universal and regional
// catalogs.
package codes

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/db"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// SearchConfig tunes the vector searches.
type SearchConfig struct {
	MinSimilarity float64
	MaxPerTier    int
	// Region is the ISO country code for the regional catalog.
	Region string
}

// DefaultSearchConfig mirrors production defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinSimilarity: 0.50,
		MaxPerTier:    10,
		Region:        "AUS",
	}
}

// SearchResult holds both catalog sides for one lookup. A failed side
// carries its error and an empty candidate list; candidate retrieval is
// advisory and never blocks entity persistence.
type SearchResult struct {
	Universal    []model.CodeCandidate
	Regional     []model.CodeCandidate
	UniversalErr error
	RegionalErr  error
}

// Searcher runs similarity queries against the code catalogs.
type Searcher struct {
	pool db.Pool
	cfg  SearchConfig
	log  *zap.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(pool db.Pool, cfg SearchConfig) *Searcher {
	if cfg.MaxPerTier <= 0 {
		cfg = DefaultSearchConfig()
	}
	return &Searcher{pool: pool, cfg: cfg, log: zap.L()}
}

const universalSearchSQL = `
SELECT code_system, code_value, display_name,
       1 - (embedding <=> $1::vector) AS similarity
FROM universal_medical_codes
WHERE active = true
  AND ($2 = '' OR entity_type = $2)
  AND 1 - (embedding <=> $1::vector) >= $3
ORDER BY embedding <=> $1::vector
LIMIT $4`

const regionalSearchSQL = `
SELECT code_system, code_value, display_name,
       1 - (embedding <=> $1::vector) AS similarity,
       country_code, grouping_code, clinical_specificity
FROM regional_medical_codes
WHERE active = true
  AND country_code = $2
  AND ($3 = '' OR entity_type = $3)
  AND 1 - (embedding <=> $1::vector) >= $4
ORDER BY embedding <=> $1::vector
LIMIT $5`

// Search issues the universal and regional similarity queries concurrently.
// entityType optionally narrows each catalog to rows tagged for that entity
// type; empty means no filter.
func (s *Searcher) Search(ctx context.Context, vector []float32, entityType string) SearchResult {
	vec := db.VectorLiteral(vector)

	var res SearchResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Universal, res.UniversalErr = s.searchUniversal(ctx, vec, entityType)
	}()
	go func() {
		defer wg.Done()
		res.Regional, res.RegionalErr = s.searchRegional(ctx, vec, entityType)
	}()
	wg.Wait()

	if res.UniversalErr != nil {
		s.log.Warn("universal catalog search failed", zap.Error(res.UniversalErr))
	}
	if res.RegionalErr != nil {
		s.log.Warn("regional catalog search failed",
			zap.String("region", s.cfg.Region),
			zap.Error(res.RegionalErr),
		)
	}
	return res
}

func (s *Searcher) searchUniversal(ctx context.Context, vec, entityType string) ([]model.CodeCandidate, error) {
	rows, err := s.pool.Query(ctx, universalSearchSQL, vec, entityType, s.cfg.MinSimilarity, s.cfg.MaxPerTier)
	if err != nil {
		return nil, eris.Wrap(err, "codes: universal search")
	}
	defer rows.Close()

	var out []model.CodeCandidate
	for rows.Next() {
		var c model.CodeCandidate
		if err := rows.Scan(&c.System, &c.Code, &c.Display, &c.Similarity); err != nil {
			return nil, eris.Wrap(err, "codes: scan universal candidate")
		}
		c.Tier = model.TierUniversal
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "codes: universal rows")
	}
	return out, nil
}

func (s *Searcher) searchRegional(ctx context.Context, vec, entityType string) ([]model.CodeCandidate, error) {
	rows, err := s.pool.Query(ctx, regionalSearchSQL, vec, s.cfg.Region, entityType, s.cfg.MinSimilarity, s.cfg.MaxPerTier)
	if err != nil {
		return nil, eris.Wrap(err, "codes: regional search")
	}
	defer rows.Close()

	var out []model.CodeCandidate
	for rows.Next() {
		var c model.CodeCandidate
		if err := rows.Scan(&c.System, &c.Code, &c.Display, &c.Similarity, &c.CountryCode, &c.GroupingCode, &c.ClinicalSpecificity); err != nil {
			return nil, eris.Wrap(err, "codes: scan regional candidate")
		}
		c.Tier = model.TierRegional
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "codes: regional rows")
	}
	return out, nil
}

const selfTestSQL = `
SELECT count(*) FROM (
  SELECT 1 FROM universal_medical_codes WHERE active = true
  ORDER BY embedding <=> $1::vector LIMIT 1
) t`

// SelfTest verifies catalog reachability with a trivial similarity query
// against a zero vector. It needs no real embedding and returns an error
// only when the catalog cannot be queried at all.
func (s *Searcher) SelfTest(ctx context.Context, dimensions int) error {
	zero := make([]float32, dimensions)
	var n int
	if err := s.pool.QueryRow(ctx, selfTestSQL, db.VectorLiteral(zero)).Scan(&n); err != nil {
		return eris.Wrap(err, "codes: self test")
	}
	return nil
}
