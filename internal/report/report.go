package report

import (
	"strings"

	"supplyaudit/internal"
	"supplyaudit/internal/savings"
)

// Renderer turns assembled report data into a stored artifact and
// returns an opaque reference to it (a file path for the xlsx renderer).
type Renderer interface {
	Render(fileName string, rows []internal.ItemReportRow, summary internal.SavingsSummary) (string, error)
}

// BuildRows flattens per-item outcomes into the export row shape,
// preserving input order.
func BuildRows(outcomes []savings.ItemOutcome) []internal.ItemReportRow {
	rows := make([]internal.ItemReportRow, 0, len(outcomes))
	for _, out := range outcomes {
		rows = append(rows, buildRow(out))
	}
	return rows
}

func buildRow(out savings.ItemOutcome) internal.ItemReportRow {
	item := out.Match.Item
	row := internal.ItemReportRow{
		RowNumber:      item.RowNumber,
		Description:    item.Description,
		SKUCandidates:  item.SKUCandidates,
		Quantity:       item.Quantity,
		UnitPrice:      item.UnitPrice,
		MatchMethod:    string(out.Match.Method),
		MatchScore:     out.Match.Score,
		Recommendation: string(internal.RecommendNone),
	}

	if p := out.Match.Product; p != nil {
		sku := p.SKU
		name := p.Name
		row.ProductSKU = &sku
		row.ProductName = &name
	}

	rec := out.Recommendation
	if rec == nil {
		return row
	}
	row.Recommendation = string(rec.Type)
	if rec.Reason != "" {
		reason := rec.Reason
		row.Reason = &reason
	}
	if rec.Type == internal.RecommendNone {
		return row
	}
	if rec.Product != nil {
		sku := rec.Product.SKU
		row.RecommendedSKU = &sku
	}
	qty := rec.Quantity
	sav := rec.Savings
	row.RecommendedQty = &qty
	row.Savings = &sav
	return row
}

func joinSKUs(skus []string) string {
	return strings.Join(skus, ", ")
}
