package savings

import (
	"math"
	"testing"

	"supplyaudit/internal"
)

func TestSummarize(t *testing.T) {
	toner := internal.CatalogProduct{ID: 2, SKU: "TN760", Category: internal.CategoryToner}

	outcomes := []ItemOutcome{
		{
			// Higher-yield switch: 3 units at 55 -> 2 units at 62.
			Match: internal.MatchResult{
				Item:    internal.RawLineItem{RowNumber: 1, Quantity: 3, UnitPrice: 55},
				Product: &toner, Score: 1, Method: internal.MethodExactSKU,
			},
			Recommendation: &internal.Recommendation{
				Type: internal.RecommendHigherYield, Product: &toner,
				Quantity: 2, TotalCost: 124, Savings: 41,
				CustomerPrice: 55, UnitsAvoided: 1, CO2SavedKg: 5.2,
			},
		},
		{
			// Matched but nothing improves.
			Match: internal.MatchResult{
				Item:    internal.RawLineItem{RowNumber: 2, Quantity: 1, UnitPrice: 10},
				Product: &toner, Score: 1, Method: internal.MethodExactSKU,
			},
			Recommendation: &internal.Recommendation{
				Type: internal.RecommendNone, Product: &toner, CustomerPrice: 10,
			},
		},
		{
			// Unmatched.
			Match: internal.MatchResult{
				Item:   internal.RawLineItem{RowNumber: 3, Quantity: 2, UnitPrice: 4, Description: "mystery"},
				Method: internal.MethodNone,
			},
		},
	}

	s := Summarize(outcomes)

	if s.TotalItems != 3 || s.MatchedItems != 2 || s.ItemsWithSavings != 1 {
		t.Fatalf("counts: %+v", s)
	}
	wantCurrent := 3*55.0 + 10 + 2*4
	if math.Abs(s.CurrentCost-wantCurrent) > 0.001 {
		t.Fatalf("current=%v want=%v", s.CurrentCost, wantCurrent)
	}
	wantOptimized := 124.0 + 10 + 8
	if math.Abs(s.OptimizedCost-wantOptimized) > 0.001 {
		t.Fatalf("optimized=%v want=%v", s.OptimizedCost, wantOptimized)
	}
	if math.Abs(s.TotalSavings-41) > 0.001 {
		t.Fatalf("savings=%v", s.TotalSavings)
	}
	if s.UnitsAvoided != 1 {
		t.Fatalf("units=%d", s.UnitsAvoided)
	}
	if math.Abs(s.CO2SavedKg-5.2) > 0.001 || s.TreesSaved <= 0 {
		t.Fatalf("co2=%v trees=%v", s.CO2SavedKg, s.TreesSaved)
	}
	if math.Abs(s.PlasticSavedKg-0.9) > 0.001 {
		t.Fatalf("plastic=%v", s.PlasticSavedKg)
	}
	wantPct := 41 / wantCurrent * 100
	if math.Abs(s.SavingsPercent-wantPct) > 0.001 {
		t.Fatalf("pct=%v want=%v", s.SavingsPercent, wantPct)
	}
	// Consistency: current - savings = optimized.
	if math.Abs(s.CurrentCost-s.TotalSavings-s.OptimizedCost) > 0.001 {
		t.Fatalf("cost identity broken: %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalItems != 0 || s.SavingsPercent != 0 {
		t.Fatalf("%+v", s)
	}
}
