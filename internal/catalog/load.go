package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"supplyaudit/internal"
	"supplyaudit/internal/util"
)

// LoadFile reads a master catalog export (csv or xlsx with a fixed
// header row) into product records for persistence.
func LoadFile(path string) ([]internal.CatalogProduct, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		rows, err = reader.ReadAll()
		if err != nil {
			return nil, err
		}
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog file: %s", path)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("catalog file %s has no data rows", path)
	}
	return FromRows(rows[0], rows[1:])
}

// FromRows converts a header row plus data rows into products. Column
// names are matched case-insensitively by exact name.
func FromRows(header []string, rows [][]string) ([]internal.CatalogProduct, error) {
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]internal.CatalogProduct, 0, len(rows))
	for n, row := range rows {
		sku := get(row, "sku")
		name := get(row, "name")
		if sku == "" || name == "" {
			continue
		}

		id, err := strconv.Atoi(get(row, "id"))
		if err != nil {
			id = n + 1
		}

		p := internal.CatalogProduct{
			ID:         id,
			SKU:        sku,
			Name:       name,
			Category:   parseCategory(get(row, "category")),
			YieldClass: internal.ParseYieldClass(get(row, "yield_class")),
			Active:     parseActive(get(row, "active")),
		}
		p.OEMNumber = optString(get(row, "oem_number"))
		p.WholesalerCode = optString(get(row, "wholesaler_code"))
		p.DistributorSKU = optString(get(row, "distributor_sku"))
		p.DepotCode = optString(get(row, "depot_code"))
		p.Brand = optString(get(row, "brand"))
		p.Model = optString(get(row, "model"))
		p.Color = optString(get(row, "color"))
		p.PageYield = optFloat(get(row, "page_yield"))
		p.ListPrice = optFloat(get(row, "list_price"))
		p.ReferencePrice = optFloat(get(row, "reference_price"))
		p.RawCost = optFloat(get(row, "raw_cost"))

		if fs := get(row, "family_series"); fs != "" {
			p.FamilySeries = util.StringPtr(fs)
		} else if p.Brand != nil && p.Model != nil {
			p.FamilySeries = util.StringPtr(util.FamilySeries(*p.Brand, *p.Model))
		}

		out = append(out, p)
	}
	return out, nil
}

func parseCategory(s string) internal.ProductCategory {
	switch strings.ToLower(s) {
	case "toner":
		return internal.CategoryToner
	case "ink":
		return internal.CategoryInk
	default:
		return internal.CategoryOther
	}
}

func parseActive(s string) bool {
	switch strings.ToLower(s) {
	case "", "1", "true", "yes", "y", "active":
		return true
	default:
		return false
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

func optFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return util.FloatPtr(v)
}
