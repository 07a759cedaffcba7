package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"supplyaudit/internal"
)

// XLSXRenderer writes the per-item rows and the savings summary into a
// two-sheet workbook under OutputDir and returns the file path.
type XLSXRenderer struct {
	OutputDir string
}

func NewXLSXRenderer(outputDir string) *XLSXRenderer {
	return &XLSXRenderer{OutputDir: outputDir}
}

func (x *XLSXRenderer) Render(fileName string, rows []internal.ItemReportRow, summary internal.SavingsSummary) (string, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetName(sheet, "Items")

	headers := []string{
		"row_no", "description", "sku_candidates", "qty", "unit_price",
		"match_method", "match_score", "product_sku", "product_name",
		"recommendation", "recommended_sku", "recommended_qty", "savings", "reason",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue("Items", cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue("Items", cell, value)
		}

		set(1, row.RowNumber)
		set(2, row.Description)
		set(3, joinSKUs(row.SKUCandidates))
		set(4, row.Quantity)
		set(5, row.UnitPrice)
		set(6, row.MatchMethod)
		set(7, row.MatchScore)
		set(8, derefString(row.ProductSKU))
		set(9, derefString(row.ProductName))
		set(10, row.Recommendation)
		set(11, derefString(row.RecommendedSKU))
		set(12, derefInt(row.RecommendedQty))
		set(13, derefFloat(row.Savings))
		set(14, derefString(row.Reason))
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return "", err
	}
	writeSummarySheet(f, summary)

	outputPath := filepath.Join(x.OutputDir, artifactName(fileName))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	if err := f.SaveAs(outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func writeSummarySheet(f *excelize.File, s internal.SavingsSummary) {
	lines := []struct {
		label string
		value any
	}{
		{"total_items", s.TotalItems},
		{"matched_items", s.MatchedItems},
		{"items_with_savings", s.ItemsWithSavings},
		{"current_cost", s.CurrentCost},
		{"optimized_cost", s.OptimizedCost},
		{"total_savings", s.TotalSavings},
		{"savings_percent", s.SavingsPercent},
		{"units_avoided", s.UnitsAvoided},
		{"co2_saved_kg", s.CO2SavedKg},
		{"trees_saved", s.TreesSaved},
		{"plastic_saved_kg", s.PlasticSavedKg},
	}
	for i, line := range lines {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		_ = f.SetCellValue("Summary", labelCell, line.label)
		_ = f.SetCellValue("Summary", valueCell, line.value)
	}
}

func artifactName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" {
		base = "report"
	}
	return fmt.Sprintf("%s_savings_%s.xlsx", base, time.Now().Format("20060102_150405"))
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
