package savings

import (
	"fmt"
	"math"
	"sort"

	"supplyaudit/internal"
	"supplyaudit/internal/catalog"
	"supplyaudit/internal/config"
)

// Per-unit-avoided CO2-equivalent, kilograms. Toner cartridges are
// heavier and mostly plastic, so they dominate.
const (
	co2PerTonerUnit = 5.2
	co2PerInkUnit   = 1.2
	co2PerOtherUnit = 0.5
)

type Optimizer struct {
	cfg     config.Config
	catalog catalog.Lookup
}

func NewOptimizer(cfg config.Config, lookup catalog.Lookup) *Optimizer {
	return &Optimizer{cfg: cfg, catalog: lookup}
}

type resolvedPrice struct {
	amount float64
	source internal.PriceSource
}

// resolvePrice walks the ordered provider chain and returns the first
// present value with its provenance, or nil when no tier has a price.
func (o *Optimizer) resolvePrice(item internal.RawLineItem, p internal.CatalogProduct) *resolvedPrice {
	providers := []func() *resolvedPrice{
		func() *resolvedPrice {
			if item.UnitPrice > 0 {
				return &resolvedPrice{amount: item.UnitPrice, source: internal.PriceSourceCustomer}
			}
			return nil
		},
		func() *resolvedPrice {
			if p.ListPrice != nil && *p.ListPrice > 0 {
				return &resolvedPrice{amount: *p.ListPrice, source: internal.PriceSourceList}
			}
			return nil
		},
		func() *resolvedPrice {
			if p.ReferencePrice != nil && *p.ReferencePrice > 0 {
				return &resolvedPrice{amount: *p.ReferencePrice * o.cfg.ReferenceMarkup, source: internal.PriceSourceReference}
			}
			return nil
		},
	}
	for _, provide := range providers {
		if r := provide(); r != nil {
			return r
		}
	}
	return nil
}

// alternativePrice is the catalog-side price precedence used when
// costing a switch candidate.
func alternativePrice(p internal.CatalogProduct) *float64 {
	for _, price := range []*float64{p.ReferencePrice, p.ListPrice, p.RawCost} {
		if price != nil && *price > 0 {
			return price
		}
	}
	return nil
}

func costPerPage(price float64, pageYield *float64) *float64 {
	if pageYield == nil || *pageYield <= 0 {
		return nil
	}
	cpp := price / *pageYield
	return &cpp
}

// Optimize produces the verdict for one matched item. The result is
// never nil for a matched item: items with no improving option carry an
// explicit RecommendNone.
func (o *Optimizer) Optimize(match internal.MatchResult) *internal.Recommendation {
	if match.Product == nil {
		return nil
	}
	item := match.Item
	product := *match.Product

	none := &internal.Recommendation{
		Type:    internal.RecommendNone,
		Product: match.Product,
		Reason:  "no lower-cost option found",
	}

	price := o.resolvePrice(item, product)
	if price == nil {
		none.Reason = "no usable price on file or in catalog"
		return none
	}
	none.PriceSource = price.source
	none.CustomerPrice = price.amount
	currentTotal := price.amount * float64(item.Quantity)

	samePrice := o.samePriceRecommendation(item, product, *price)
	higherYield := o.higherYieldRecommendation(item, product, *price, currentTotal)

	switch {
	case higherYield != nil && (samePrice == nil || higherYield.Savings > samePrice.Savings):
		return higherYield
	case samePrice != nil:
		return samePrice
	default:
		return none
	}
}

// samePriceRecommendation repurchases the identical item at the
// catalog's reference price when that undercuts what the customer paid.
func (o *Optimizer) samePriceRecommendation(item internal.RawLineItem, product internal.CatalogProduct, price resolvedPrice) *internal.Recommendation {
	if product.ReferencePrice == nil || *product.ReferencePrice <= 0 {
		return nil
	}
	ref := *product.ReferencePrice
	if ref >= price.amount {
		return nil
	}
	savings := (price.amount - ref) * float64(item.Quantity)
	if savings <= 0 {
		return nil
	}
	return &internal.Recommendation{
		Type:          internal.RecommendBetterPrice,
		Product:       &product,
		Quantity:      item.Quantity,
		TotalCost:     ref * float64(item.Quantity),
		Savings:       savings,
		Reason:        fmt.Sprintf("same item at $%.2f instead of $%.2f per unit", ref, price.amount),
		PriceSource:   price.source,
		CustomerPrice: price.amount,
	}
}

// higherYieldRecommendation looks for a same-family, same-color variant
// with a materially better cost per page.
func (o *Optimizer) higherYieldRecommendation(item internal.RawLineItem, product internal.CatalogProduct, price resolvedPrice, currentTotal float64) *internal.Recommendation {
	if product.FamilySeries == nil || product.PageYield == nil || *product.PageYield <= 0 {
		return nil
	}
	currentCPP := costPerPage(price.amount, product.PageYield)
	if currentCPP == nil {
		return nil
	}

	color := ""
	if product.Color != nil {
		color = *product.Color
	}
	candidates, err := o.catalog.FamilyLookup(*product.FamilySeries, color, product.YieldClass)
	if err != nil {
		return nil
	}

	type scored struct {
		product internal.CatalogProduct
		price   float64
		cpp     float64
	}
	viable := []scored{}
	for _, c := range candidates {
		if c.ID == product.ID {
			continue
		}
		// Tolerance measured against the current item's yield, so
		// slightly lower page counts can still qualify.
		if c.PageYield == nil || *c.PageYield < o.cfg.YieldTolerance**product.PageYield {
			continue
		}
		altPrice := alternativePrice(c)
		if altPrice == nil {
			continue
		}
		cpp := costPerPage(*altPrice, c.PageYield)
		if cpp == nil {
			continue
		}
		viable = append(viable, scored{product: c, price: *altPrice, cpp: *cpp})
	}
	if len(viable) == 0 {
		return nil
	}
	sort.Slice(viable, func(i, j int) bool {
		if viable[i].cpp != viable[j].cpp {
			return viable[i].cpp < viable[j].cpp
		}
		return viable[i].product.ID < viable[j].product.ID
	})

	best := viable[0]
	if best.cpp > *currentCPP*(1-o.cfg.CPPImprovementMin) {
		return nil
	}
	annualSavings := (*currentCPP - best.cpp) * o.cfg.MonthlyPageVolume * 12
	if annualSavings <= o.cfg.AnnualSavingsFloor {
		return nil
	}

	totalPages := float64(item.Quantity) * *product.PageYield
	altQty := int(math.Ceil(totalPages / *best.product.PageYield))
	if altQty < 1 {
		altQty = 1
	}
	altTotal := float64(altQty) * best.price
	savings := currentTotal - altTotal
	if savings <= 0 {
		return nil
	}

	unitsAvoided := item.Quantity - altQty
	if unitsAvoided < 0 {
		unitsAvoided = 0
	}
	return &internal.Recommendation{
		Type:      internal.RecommendHigherYield,
		Product:   &best.product,
		Quantity:  altQty,
		TotalCost: altTotal,
		Savings:   savings,
		Reason: fmt.Sprintf("switch to %s: %.0f pages per unit at $%.4f/page vs $%.4f/page",
			best.product.SKU, *best.product.PageYield, best.cpp, *currentCPP),
		PriceSource:   price.source,
		CustomerPrice: price.amount,
		UnitsAvoided:  unitsAvoided,
		CO2SavedKg:    float64(unitsAvoided) * co2PerUnit(best.product.Category),
	}
}

func co2PerUnit(category internal.ProductCategory) float64 {
	switch category {
	case internal.CategoryToner:
		return co2PerTonerUnit
	case internal.CategoryInk:
		return co2PerInkUnit
	default:
		return co2PerOtherUnit
	}
}
