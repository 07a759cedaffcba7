package savings

import (
	"supplyaudit/internal"
)

// Fixed environmental conversion factors.
const (
	kgCO2PerTreeYear  = 21.77
	plasticKgPerToner = 0.90
	plasticKgPerInk   = 0.15
	plasticKgPerOther = 0.10
)

// ItemOutcome pairs a match with its optimizer verdict. Recommendation
// is nil only for unmatched items.
type ItemOutcome struct {
	Match          internal.MatchResult
	Recommendation *internal.Recommendation
}

// Summarize folds all per-item outcomes into the aggregate the report
// renderer consumes.
func Summarize(outcomes []ItemOutcome) internal.SavingsSummary {
	s := internal.SavingsSummary{TotalItems: len(outcomes)}

	for _, out := range outcomes {
		item := out.Match.Item
		if out.Match.Product != nil {
			s.MatchedItems++
		}

		current := item.UnitPrice * float64(item.Quantity)
		rec := out.Recommendation
		if rec != nil && rec.CustomerPrice > 0 {
			current = rec.CustomerPrice * float64(item.Quantity)
		}
		s.CurrentCost += current

		if rec == nil || rec.Type == internal.RecommendNone {
			s.OptimizedCost += current
			continue
		}

		s.ItemsWithSavings++
		s.OptimizedCost += rec.TotalCost
		s.TotalSavings += rec.Savings
		s.UnitsAvoided += rec.UnitsAvoided
		s.CO2SavedKg += rec.CO2SavedKg
		if rec.Product != nil {
			s.PlasticSavedKg += float64(rec.UnitsAvoided) * plasticPerUnit(rec.Product.Category)
		}
	}

	if s.CurrentCost > 0 {
		s.SavingsPercent = s.TotalSavings / s.CurrentCost * 100
	}
	s.TreesSaved = s.CO2SavedKg / kgCO2PerTreeYear
	return s
}

func plasticPerUnit(category internal.ProductCategory) float64 {
	switch category {
	case internal.CategoryToner:
		return plasticKgPerToner
	case internal.CategoryInk:
		return plasticKgPerInk
	default:
		return plasticKgPerOther
	}
}
