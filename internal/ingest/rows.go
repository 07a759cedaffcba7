package ingest

import (
	"regexp"
	"strings"

	"supplyaudit/internal"
	"supplyaudit/internal/util"
)

// Extraction-confidence weights for which fields a row carried.
const (
	weightDescription = 0.25
	weightSKU         = 0.35
	weightPrice       = 0.25
	weightQuantity    = 0.15
)

const inferenceSampleSize = 50

// skuHeaderPatterns maps header text to SKU namespaces, highest
// priority first. A column claimed by one namespace is not offered to
// the next.
var skuHeaderPatterns = []struct {
	namespace internal.SKUNamespace
	re        *regexp.Regexp
}{
	{internal.NamespaceOEM, regexp.MustCompile(`(?i)oem|mfr|mfg|manufacturer|part\s*(no|num|number|#)`)},
	{internal.NamespaceWholesaler, regexp.MustCompile(`(?i)wholesaler|supplier\s*(code|sku|item)|reseller`)},
	{internal.NamespaceDistributor, regexp.MustCompile(`(?i)dealer|distributor|vendor\s*(sku|item|code|no)`)},
	{internal.NamespaceDepot, regexp.MustCompile(`(?i)depot`)},
	{internal.NamespaceGeneric, regexp.MustCompile(`(?i)sku|item\s*(no|num|number|#|code)|catalog|product\s*(code|no|num|number)`)},
}

var (
	reNameHeader  = regexp.MustCompile(`(?i)desc|product|item\s*name|^name$|^item$`)
	reQtyHeader   = regexp.MustCompile(`(?i)qty|quantity|ordered`)
	rePriceHeader = regexp.MustCompile(`(?i)price|cost`)
	reTotalHeader = regexp.MustCompile(`(?i)total|ext`)
	reUOMHeader   = regexp.MustCompile(`(?i)uom|unit\s*of\s*measure|^unit$|measure`)
	reHasDigit    = regexp.MustCompile(`\d`)
)

// metadataPrefixes flag footer/summary rows by their leading token.
// The broad prefixes also begin real product names ("Invoice Books,
// 2-part"), so they only disqualify rows that carry no SKU candidate.
var (
	metadataPrefixes = []string{
		"account", "subtotal", "total", "page",
		"thank", "ship to", "bill to", "order summary",
	}
	broadMetadataPrefixes = []string{"customer", "invoice", "terms"}
)

type columnMap struct {
	name    int
	qty     int
	price   int
	uom     int
	skuCols []skuColumn
}

type skuColumn struct {
	index     int
	namespace internal.SKUNamespace
}

func extractItems(grid [][]string) ([]internal.RawLineItem, int, error) {
	headerIdx, headers, dataStart := detectHeader(grid)

	cols := mapNamedColumns(headers)
	if headerIdx < 0 || (cols.name < 0 && len(cols.skuCols) == 0) {
		end := dataStart + inferenceSampleSize
		if end > len(grid) {
			end = len(grid)
		}
		roles := InferColumnRoles(grid[dataStart:end])
		cols = mergeInferred(cols, roles)
	}

	items := make([]internal.RawLineItem, 0, len(grid)-dataStart)
	for i := dataStart; i < len(grid); i++ {
		row := grid[i]
		item := rowToItem(row, cols, i+1)
		if item == nil {
			continue
		}
		if isMetadataRow(row, len(item.SKUCandidates) > 0) {
			continue
		}
		items = append(items, *item)
	}

	return items, headerIdx, nil
}

func mapNamedColumns(headers []string) columnMap {
	cols := columnMap{name: -1, qty: -1, price: -1, uom: -1}
	claimed := map[int]bool{}

	for _, pattern := range skuHeaderPatterns {
		for i, h := range headers {
			if claimed[i] || !pattern.re.MatchString(h) {
				continue
			}
			cols.skuCols = append(cols.skuCols, skuColumn{index: i, namespace: pattern.namespace})
			claimed[i] = true
		}
	}

	for i, h := range headers {
		switch {
		case cols.name < 0 && !claimed[i] && reNameHeader.MatchString(h):
			cols.name = i
		case cols.qty < 0 && reQtyHeader.MatchString(h):
			cols.qty = i
		case cols.price < 0 && rePriceHeader.MatchString(h) && !reTotalHeader.MatchString(h):
			cols.price = i
		case cols.uom < 0 && reUOMHeader.MatchString(h):
			cols.uom = i
		}
	}
	return cols
}

func mergeInferred(cols columnMap, roles RoleAssignment) columnMap {
	if cols.name < 0 {
		cols.name = roles.Description
	}
	if cols.qty < 0 {
		cols.qty = roles.Quantity
	}
	if cols.price < 0 {
		cols.price = roles.Price
	}
	if len(cols.skuCols) == 0 && roles.SKU >= 0 {
		cols.skuCols = []skuColumn{{index: roles.SKU, namespace: internal.NamespaceGeneric}}
	}
	return cols
}

func rowToItem(row []string, cols columnMap, rowNumber int) *internal.RawLineItem {
	description := cell(row, cols.name)

	skus := make([]string, 0, len(cols.skuCols))
	seen := map[string]struct{}{}
	for _, sc := range cols.skuCols {
		value := cell(row, sc.index)
		if value == "" || !reHasDigit.MatchString(value) {
			continue
		}
		key := util.NormalizeSKU(value)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skus = append(skus, value)
	}

	// Rows with neither a name nor any SKU candidate carry nothing to
	// match on.
	if description == "" && len(skus) == 0 {
		return nil
	}

	qty := 1
	hasQty := false
	if raw := cell(row, cols.qty); raw != "" && reHasDigit.MatchString(raw) {
		qty = util.ParseQuantity(raw)
		hasQty = true
	}

	price := 0.0
	hasPrice := false
	if raw := cell(row, cols.price); raw != "" {
		price = util.ParsePrice(raw)
		hasPrice = price > 0
	}

	confidence := 0.0
	if description != "" {
		confidence += weightDescription
	}
	if len(skus) > 0 {
		confidence += weightSKU
	}
	if hasPrice {
		confidence += weightPrice
	}
	if hasQty {
		confidence += weightQuantity
	}

	item := internal.RawLineItem{
		RowNumber:     rowNumber,
		Description:   description,
		SKUCandidates: skus,
		Quantity:      qty,
		UnitPrice:     price,
		Confidence:    confidence,
	}
	if unit := cell(row, cols.uom); unit != "" {
		item.Unit = util.StringPtr(unit)
	}
	return &item
}

func isMetadataRow(row []string, hasSKU bool) bool {
	first := ""
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			first = strings.ToLower(strings.TrimSpace(c))
			break
		}
	}
	if first == "" {
		return true
	}
	for _, prefix := range metadataPrefixes {
		if strings.HasPrefix(first, prefix) {
			return true
		}
	}
	if hasSKU {
		return false
	}
	for _, prefix := range broadMetadataPrefixes {
		if strings.HasPrefix(first, prefix) {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
