package matching

import (
	"context"
	"fmt"
	"strings"

	"supplyaudit/internal"
	"supplyaudit/internal/catalog"
	"supplyaudit/internal/config"
	"supplyaudit/internal/embed"
	"supplyaudit/internal/util"
)

// Fixed tier scores. Exact SKU is the only way to reach 1.0.
const (
	scoreExact         = 1.0
	scoreFuzzyExact    = 0.95
	scoreFuzzyPartial  = 0.85
	fullTextScoreBase  = 0.70
	fullTextScoreRange = 0.25
)

// Matcher runs the tier cascade for one item at a time. Embedder and
// extractor are optional; missing collaborators skip their tiers.
type Matcher struct {
	cfg       config.Config
	catalog   catalog.Lookup
	embedder  embed.Provider
	extractor Extractor

	// ExpensiveAllowed gates embedding and AI calls; the orchestrator
	// wires it to a job-still-processing check. Nil means always
	// allowed.
	ExpensiveAllowed func() bool
}

func NewMatcher(cfg config.Config, lookup catalog.Lookup, embedder embed.Provider, extractor Extractor) *Matcher {
	return &Matcher{cfg: cfg, catalog: lookup, embedder: embedder, extractor: extractor}
}

func (m *Matcher) Match(ctx context.Context, item internal.RawLineItem) internal.MatchResult {
	result := internal.MatchResult{
		Item:     item,
		Method:   internal.MethodNone,
		Attempts: []internal.MatchAttempt{},
	}
	sawError := false

	record := func(method internal.MatchMethod, value string, score float64, p *internal.CatalogProduct, err error) {
		attempt := internal.MatchAttempt{Method: method, Value: value, Score: score}
		if p != nil {
			attempt.ProductID = util.IntPtr(p.ID)
		}
		if err != nil {
			attempt.Error = util.StringPtr(err.Error())
			sawError = true
		}
		result.Attempts = append(result.Attempts, attempt)
	}
	promote := func(method internal.MatchMethod, score float64, p *internal.CatalogProduct) {
		if p != nil && score > result.Score {
			result.Product = p
			result.Score = score
			result.Method = method
		}
	}

	// Tier 1: exact SKU equality across every namespace.
	for _, sku := range item.SKUCandidates {
		p, err := m.catalog.ExactLookup([]string{sku})
		record(internal.MethodExactSKU, sku, exactScoreOf(p), p, err)
		if err != nil {
			continue
		}
		if p != nil {
			promote(internal.MethodExactSKU, scoreExact, p)
			return result
		}
	}

	// Tier 2: normalization-tolerant SKU comparison.
	for _, sku := range item.SKUCandidates {
		hits, err := m.catalog.FuzzyLookup(sku)
		if err != nil {
			record(internal.MethodFuzzySKU, sku, 0, nil, err)
			continue
		}
		for i := range hits {
			p := &hits[i]
			score := fuzzyScore(sku, p)
			record(internal.MethodFuzzySKU, sku, score, p, nil)
			promote(internal.MethodFuzzySKU, score, p)
		}
		if result.Score >= m.cfg.FuzzyAcceptThreshold {
			return result
		}
	}

	description := strings.TrimSpace(item.Description)

	// Tier 3: SKU plus description combined text search, only when the
	// SKU tiers came up empty.
	if result.Product == nil && description != "" && len(item.SKUCandidates) > 0 {
		query := item.SKUCandidates[0] + " " + description
		score, p, err := m.textSearch(query)
		record(internal.MethodCombined, query, score, p, err)
		promote(internal.MethodCombined, score, p)
	}

	// Tier 4: full-text token overlap over the description alone.
	if description != "" && result.Score < m.cfg.FullTextCeiling {
		score, p, err := m.textSearch(description)
		record(internal.MethodFullText, description, score, p, err)
		promote(internal.MethodFullText, score, p)
	}

	// Tier 5: semantic nearest neighbor.
	if description != "" && result.Score < m.cfg.VectorCeiling && m.embedder != nil && m.expensiveAllowed() {
		score, p, err := m.vectorSearch(ctx, description)
		record(internal.MethodVector, description, score, p, err)
		promote(internal.MethodVector, score, p)
	}

	// Tier 6: AI attribute extraction, off unless configured on.
	if description != "" && result.Score < m.cfg.VectorCeiling && m.cfg.AIMatchEnabled && m.extractor != nil && m.expensiveAllowed() {
		score, p, err := m.aiSearch(ctx, description)
		record(internal.MethodAI, description, score, p, err)
		promote(internal.MethodAI, score, p)
	}

	if result.Product == nil {
		result.Score = 0
		if sawError {
			result.Method = internal.MethodError
		} else {
			result.Method = internal.MethodNone
		}
	}
	return result
}

func (m *Matcher) textSearch(query string) (float64, *internal.CatalogProduct, error) {
	hits, err := m.catalog.TextSearch(query)
	if err != nil || len(hits) == 0 {
		return 0, nil, err
	}
	top := hits[0]
	if top.Score <= 0 {
		return 0, nil, nil
	}
	score := fullTextScoreBase + fullTextScoreRange*top.Score
	return score, &top.Product, nil
}

func (m *Matcher) vectorSearch(ctx context.Context, description string) (float64, *internal.CatalogProduct, error) {
	vector, err := m.embedder.Embed(ctx, description)
	if err != nil {
		return 0, nil, fmt.Errorf("embed: %w", err)
	}
	hits, err := m.catalog.VectorSearch(vector)
	if err != nil || len(hits) == 0 {
		return 0, nil, err
	}
	top := hits[0]
	if top.Score < m.cfg.VectorFloor {
		return 0, nil, nil
	}
	// Cosine similarity can reach 1.0; that score is reserved for
	// exact SKU hits.
	score := top.Score
	if score > scoreFuzzyExact {
		score = scoreFuzzyExact
	}
	return score, &top.Product, nil
}

func (m *Matcher) expensiveAllowed() bool {
	return m.ExpensiveAllowed == nil || m.ExpensiveAllowed()
}

func exactScoreOf(p *internal.CatalogProduct) float64 {
	if p == nil {
		return 0
	}
	return scoreExact
}

// fuzzyScore distinguishes a normalized-exact hit from a partial
// substring hit. Every vendor-prefix strip length counts as exact.
func fuzzyScore(query string, p *internal.CatalogProduct) float64 {
	queries := []string{util.NormalizeSKU(query)}
	for _, strip := range util.VendorPrefixStrips(query) {
		if n := util.NormalizeSKU(strip); n != "" {
			queries = append(queries, n)
		}
	}
	for _, sku := range productSKUs(p) {
		for _, q := range queries {
			if sku == q {
				return scoreFuzzyExact
			}
		}
	}
	return scoreFuzzyPartial
}

func productSKUs(p *internal.CatalogProduct) []string {
	out := []string{util.NormalizeSKU(p.SKU)}
	for _, field := range []*string{p.OEMNumber, p.WholesalerCode, p.DistributorSKU, p.DepotCode} {
		if field != nil {
			out = append(out, util.NormalizeSKU(*field))
		}
	}
	return out
}
