package matching

import (
	"context"
	"fmt"
	"strings"

	"supplyaudit/internal"
	"supplyaudit/internal/util"
)

// Attributes is the structured shape the AI tier extracts from a free
// text description to build a refined search query.
type Attributes struct {
	Brand       string `json:"brand"`
	ProductType string `json:"type"`
	Model       string `json:"model"`
	Color       string `json:"color"`
	Size        string `json:"size"`
}

// Extractor is the optional LLM collaborator behind the AI tier.
type Extractor interface {
	ExtractAttributes(ctx context.Context, description string) (Attributes, error)
}

func (a Attributes) query() string {
	parts := []string{}
	for _, v := range []string{a.Brand, a.Model, a.Color, a.ProductType, a.Size} {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	return strings.Join(parts, " ")
}

func (a Attributes) provided() int {
	n := 0
	for _, v := range []string{a.Brand, a.ProductType, a.Model, a.Color, a.Size} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// aiSearch extracts attributes, searches with the refined query, and
// re-ranks candidates by attribute overlap. The returned score is
// capped so an AI match can never pass for an exact one.
func (m *Matcher) aiSearch(ctx context.Context, description string) (float64, *internal.CatalogProduct, error) {
	attrs, err := m.extractor.ExtractAttributes(ctx, description)
	if err != nil {
		return 0, nil, fmt.Errorf("ai extract: %w", err)
	}
	query := attrs.query()
	if query == "" || attrs.provided() == 0 {
		return 0, nil, nil
	}

	hits, err := m.catalog.TextSearch(query)
	if err != nil || len(hits) == 0 {
		return 0, nil, err
	}

	var best *internal.CatalogProduct
	bestOverlap := 0.0
	for i := range hits {
		overlap := attributeOverlap(attrs, hits[i].Product)
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = &hits[i].Product
		}
	}
	if best == nil {
		return 0, nil, nil
	}

	score := 0.60 + 0.35*bestOverlap
	if score > m.cfg.AIScoreCap {
		score = m.cfg.AIScoreCap
	}
	return score, best, nil
}

// attributeOverlap is the fraction of extracted attributes found on the
// candidate product.
func attributeOverlap(attrs Attributes, p internal.CatalogProduct) float64 {
	total := attrs.provided()
	if total == 0 {
		return 0
	}

	haystack := util.NormalizeName(p.Name)
	if p.Brand != nil {
		haystack += " " + util.NormalizeName(*p.Brand)
	}
	if p.Model != nil {
		haystack += " " + util.NormalizeName(*p.Model)
	}
	haystack += " " + util.NormalizeSKU(p.SKU)

	hits := 0
	check := func(v string) {
		v = util.NormalizeName(v)
		if v != "" && strings.Contains(haystack, v) {
			hits++
		}
	}
	check(attrs.Brand)
	check(attrs.Model)
	check(attrs.ProductType)
	check(attrs.Size)

	if strings.TrimSpace(attrs.Color) != "" {
		if p.Color != nil && strings.EqualFold(strings.TrimSpace(attrs.Color), *p.Color) {
			hits++
		} else if strings.Contains(haystack, util.NormalizeName(attrs.Color)) {
			hits++
		}
	}

	return float64(hits) / float64(total)
}
