package catalog

import (
	"supplyaudit/internal"
)

// ScoredProduct is a ranked search hit. For TextSearch the score is the
// token-overlap ratio in [0,1]; for VectorSearch it is cosine
// similarity.
type ScoredProduct struct {
	Product internal.CatalogProduct
	Score   float64
}

// Lookup is the read-only catalog boundary the matcher and optimizer
// depend on. All methods are idempotent; tests substitute an in-memory
// fake.
type Lookup interface {
	// ExactLookup checks every candidate against every SKU namespace
	// field and returns the first equality hit, or nil.
	ExactLookup(skuCandidates []string) (*internal.CatalogProduct, error)
	// FuzzyLookup returns products whose SKUs match after case,
	// whitespace, dash and vendor-prefix normalization, including
	// partial substring hits.
	FuzzyLookup(sku string) ([]internal.CatalogProduct, error)
	// TextSearch ranks products by token overlap with the query.
	TextSearch(query string) ([]ScoredProduct, error)
	// VectorSearch ranks products by cosine similarity of stored
	// embeddings against the query vector.
	VectorSearch(embedding []float32) ([]ScoredProduct, error)
	// FamilyLookup returns active products in a family/color group at
	// or above the given yield class.
	FamilyLookup(familySeries, color string, minYieldClass internal.YieldClass) ([]internal.CatalogProduct, error)
}
