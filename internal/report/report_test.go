package report

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"supplyaudit/internal"
	"supplyaudit/internal/savings"
)

func sampleOutcomes() []savings.ItemOutcome {
	product := internal.CatalogProduct{ID: 1, SKU: "TN730", Name: "Brother TN730 Toner"}
	alt := internal.CatalogProduct{ID: 2, SKU: "TN760", Name: "Brother TN760 High Yield Toner"}

	return []savings.ItemOutcome{
		{
			Match: internal.MatchResult{
				Item: internal.RawLineItem{
					RowNumber: 1, Description: "Brother toner", SKUCandidates: []string{"TN730"},
					Quantity: 3, UnitPrice: 55,
				},
				Product: &product, Score: 1, Method: internal.MethodExactSKU,
			},
			Recommendation: &internal.Recommendation{
				Type: internal.RecommendHigherYield, Product: &alt,
				Quantity: 2, TotalCost: 124, Savings: 41,
				Reason: "higher-yield alternative lowers cost per page",
			},
		},
		{
			Match: internal.MatchResult{
				Item:   internal.RawLineItem{RowNumber: 2, Description: "mystery widget", Quantity: 1, UnitPrice: 4},
				Method: internal.MethodNone,
			},
		},
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(sampleOutcomes())
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}

	first := rows[0]
	if first.MatchMethod != string(internal.MethodExactSKU) || first.MatchScore != 1 {
		t.Fatalf("match fields: %+v", first)
	}
	if first.ProductSKU == nil || *first.ProductSKU != "TN730" {
		t.Fatalf("product sku: %+v", first.ProductSKU)
	}
	if first.Recommendation != string(internal.RecommendHigherYield) {
		t.Fatalf("recommendation: %q", first.Recommendation)
	}
	if first.RecommendedSKU == nil || *first.RecommendedSKU != "TN760" {
		t.Fatalf("recommended sku: %+v", first.RecommendedSKU)
	}
	if first.RecommendedQty == nil || *first.RecommendedQty != 2 {
		t.Fatalf("recommended qty: %+v", first.RecommendedQty)
	}
	if first.Savings == nil || *first.Savings != 41 {
		t.Fatalf("savings: %+v", first.Savings)
	}

	second := rows[1]
	if second.MatchMethod != string(internal.MethodNone) {
		t.Fatalf("unmatched method: %q", second.MatchMethod)
	}
	if second.ProductSKU != nil || second.RecommendedSKU != nil || second.Savings != nil {
		t.Fatalf("unmatched row should have no product fields: %+v", second)
	}
	if second.Recommendation != string(internal.RecommendNone) {
		t.Fatalf("unmatched recommendation: %q", second.Recommendation)
	}
}

func TestXLSXRenderer(t *testing.T) {
	dir := t.TempDir()
	outcomes := sampleOutcomes()
	rows := BuildRows(outcomes)
	summary := savings.Summarize(outcomes)

	renderer := NewXLSXRenderer(dir)
	path, err := renderer.Render("invoice_march.csv", rows, summary)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".xlsx" {
		t.Fatalf("artifact path: %q", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Items", "H2")
	if err != nil || got != "TN730" {
		t.Fatalf("H2=%q err=%v", got, err)
	}
	got, err = f.GetCellValue("Items", "K2")
	if err != nil || got != "TN760" {
		t.Fatalf("K2=%q err=%v", got, err)
	}
	label, _ := f.GetCellValue("Summary", "A6")
	if label != "total_savings" {
		t.Fatalf("summary label: %q", label)
	}
}

func TestArtifactName(t *testing.T) {
	name := artifactName("/tmp/uploads/invoice_march.csv")
	if filepath.Ext(name) != ".xlsx" {
		t.Fatalf("ext: %q", name)
	}
	if name == "" || name[:13] != "invoice_march" {
		t.Fatalf("base: %q", name)
	}
}
