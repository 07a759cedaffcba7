package catalog

import (
	"math"
	"sort"
	"strings"

	"supplyaudit/internal"
	"supplyaudit/internal/util"
)

const (
	textSearchLimit   = 10
	vectorSearchLimit = 10
)

// Index is the in-memory Lookup implementation built from the product
// table. The catalog is read-only during a run, so the index is built
// once and shared.
type Index struct {
	productsByID map[int]internal.CatalogProduct
	// byExactSKU keys are trimmed literal SKUs; byNormSKU keys are
	// case/whitespace/dash-flattened. Exact-tier equality must stay
	// literal so that normalization-only hits surface as fuzzy.
	byExactSKU map[string][]int
	byNormSKU  map[string][]int
	tokenToIDs map[string]map[int]struct{}
	tokensByID map[int][]string
	byFamily   map[string][]int
	embeddings map[int][]float32
}

var _ Lookup = (*Index)(nil)

func BuildIndex(products []internal.CatalogProduct) *Index {
	idx := &Index{
		productsByID: map[int]internal.CatalogProduct{},
		byExactSKU:   map[string][]int{},
		byNormSKU:    map[string][]int{},
		tokenToIDs:   map[string]map[int]struct{}{},
		tokensByID:   map[int][]string{},
		byFamily:     map[string][]int{},
		embeddings:   map[int][]float32{},
	}

	for _, p := range products {
		idx.productsByID[p.ID] = p

		addSKU := func(sku *string) {
			if sku == nil {
				return
			}
			exact := strings.TrimSpace(*sku)
			if exact == "" {
				return
			}
			idx.byExactSKU[exact] = append(idx.byExactSKU[exact], p.ID)
			if norm := util.NormalizeSKU(exact); norm != "" {
				idx.byNormSKU[norm] = append(idx.byNormSKU[norm], p.ID)
			}
		}
		primary := p.SKU
		addSKU(&primary)
		addSKU(p.OEMNumber)
		addSKU(p.WholesalerCode)
		addSKU(p.DistributorSKU)
		addSKU(p.DepotCode)

		tokens := util.Tokenize(searchableText(p))
		idx.tokensByID[p.ID] = tokens
		for _, token := range tokens {
			if _, ok := idx.tokenToIDs[token]; !ok {
				idx.tokenToIDs[token] = map[int]struct{}{}
			}
			idx.tokenToIDs[token][p.ID] = struct{}{}
		}

		if p.FamilySeries != nil {
			key := familyKey(*p.FamilySeries, derefOrEmpty(p.Color))
			idx.byFamily[key] = append(idx.byFamily[key], p.ID)
		}
	}

	return idx
}

// SetEmbedding attaches a stored description embedding to a product for
// vector search.
func (idx *Index) SetEmbedding(productID int, vector []float32) {
	if len(vector) > 0 {
		idx.embeddings[productID] = vector
	}
}

func (idx *Index) ExactLookup(skuCandidates []string) (*internal.CatalogProduct, error) {
	for _, sku := range skuCandidates {
		exact := strings.TrimSpace(sku)
		if exact == "" {
			continue
		}
		for _, id := range idx.byExactSKU[exact] {
			p := idx.productsByID[id]
			return &p, nil
		}
	}
	return nil, nil
}

func (idx *Index) FuzzyLookup(sku string) ([]internal.CatalogProduct, error) {
	norm := util.NormalizeSKU(sku)
	if norm == "" {
		return nil, nil
	}

	seen := map[int]struct{}{}
	out := []internal.CatalogProduct{}
	add := func(id int) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, idx.productsByID[id])
	}

	for _, id := range idx.byNormSKU[norm] {
		add(id)
	}
	// Vendor prefixes are ambiguous on letter-leading part numbers, so
	// every strip length is looked up.
	for _, strip := range util.VendorPrefixStrips(sku) {
		n := util.NormalizeSKU(strip)
		if n == "" || n == norm {
			continue
		}
		for _, id := range idx.byNormSKU[n] {
			add(id)
		}
	}

	// Partial hits: either side contains the other. Short queries are
	// excluded to avoid noise matches. Ordered by bigram similarity to
	// the query, then id, so results are stable across runs.
	if len(norm) >= 4 {
		type partialHit struct {
			id  int
			sim float64
		}
		partial := []partialHit{}
		for key, ids := range idx.byNormSKU {
			if key == norm {
				continue
			}
			if strings.Contains(key, norm) || strings.Contains(norm, key) {
				sim := util.DiceCoefficient(norm, key)
				for _, id := range ids {
					partial = append(partial, partialHit{id: id, sim: sim})
				}
			}
		}
		sort.Slice(partial, func(i, j int) bool {
			if partial[i].sim != partial[j].sim {
				return partial[i].sim > partial[j].sim
			}
			return partial[i].id < partial[j].id
		})
		for _, hit := range partial {
			add(hit.id)
		}
	}

	return out, nil
}

func (idx *Index) TextSearch(query string) ([]ScoredProduct, error) {
	queryTokens := searchTokens(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	ids := map[int]struct{}{}
	for _, token := range queryTokens {
		for id := range idx.tokenToIDs[token] {
			ids[id] = struct{}{}
		}
	}

	out := make([]ScoredProduct, 0, len(ids))
	for id := range ids {
		candidate := map[string]struct{}{}
		for _, t := range idx.tokensByID[id] {
			candidate[t] = struct{}{}
		}
		overlap := 0
		for _, t := range queryTokens {
			if _, ok := candidate[t]; ok {
				overlap++
			}
		}
		score := float64(overlap) / float64(len(queryTokens))
		out = append(out, ScoredProduct{Product: idx.productsByID[id], Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	if len(out) > textSearchLimit {
		out = out[:textSearchLimit]
	}
	return out, nil
}

func (idx *Index) VectorSearch(embedding []float32) ([]ScoredProduct, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	out := make([]ScoredProduct, 0, len(idx.embeddings))
	for id, stored := range idx.embeddings {
		sim := cosineSimilarity(embedding, stored)
		out = append(out, ScoredProduct{Product: idx.productsByID[id], Score: sim})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	if len(out) > vectorSearchLimit {
		out = out[:vectorSearchLimit]
	}
	return out, nil
}

func (idx *Index) FamilyLookup(familySeries, color string, minYieldClass internal.YieldClass) ([]internal.CatalogProduct, error) {
	key := familyKey(familySeries, color)
	ids := idx.byFamily[key]
	out := make([]internal.CatalogProduct, 0, len(ids))
	for _, id := range ids {
		p := idx.productsByID[id]
		if !p.Active || p.YieldClass < minYieldClass {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func searchableText(p internal.CatalogProduct) string {
	parts := []string{p.Name}
	if p.Brand != nil {
		parts = append(parts, *p.Brand)
	}
	if p.Model != nil {
		parts = append(parts, *p.Model)
	}
	return strings.Join(parts, " ")
}

// searchTokens keeps letter/digit tokens longer than one rune, capped
// at the first eight.
func searchTokens(query string) []string {
	tokens := util.Tokenize(query)
	if len(tokens) > 8 {
		tokens = tokens[:8]
	}
	return tokens
}

func familyKey(family, color string) string {
	return strings.ToUpper(strings.TrimSpace(family)) + "|" + strings.ToUpper(strings.TrimSpace(color))
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
