package ingest

import (
	"strings"

	"supplyaudit/internal/util"
)

// RoleAssignment maps column roles to grid column indexes, -1 when the
// role could not be assigned. Price and quantity are never the same
// column.
type RoleAssignment struct {
	Description int
	Quantity    int
	Price       int
	SKU         int
}

type columnStats struct {
	samples        int
	fracNumeric    float64
	fracDecimalCur float64
	fracSKULike    float64
	meanMagnitude  float64
	avgLength      float64
	avgSpaces      float64
}

// InferColumnRoles classifies columns by the statistical shape of their
// values when headers are missing or generic. It is a pure function
// over a sample of data rows.
func InferColumnRoles(sample [][]string) RoleAssignment {
	assign := RoleAssignment{Description: -1, Quantity: -1, Price: -1, SKU: -1}
	if len(sample) == 0 {
		return assign
	}

	width := 0
	for _, row := range sample {
		if len(row) > width {
			width = len(row)
		}
	}

	stats := make([]columnStats, width)
	for col := 0; col < width; col++ {
		stats[col] = computeColumnStats(sample, col)
	}

	// Price: numeric with decimal points or currency symbols, plausible
	// unit-price magnitude. Prefer the most price-formatted column.
	bestPrice := -1.0
	for col, st := range stats {
		if st.samples == 0 || st.fracNumeric < 0.6 || st.fracDecimalCur < 0.4 {
			continue
		}
		if st.meanMagnitude <= 0 || st.meanMagnitude > 100000 {
			continue
		}
		if st.fracDecimalCur > bestPrice {
			bestPrice = st.fracDecimalCur
			assign.Price = col
		}
	}

	// Quantity: numeric, low magnitude, rarely fractional, and a
	// different column than price.
	bestQty := -1.0
	for col, st := range stats {
		if col == assign.Price || st.samples == 0 {
			continue
		}
		if st.fracNumeric < 0.6 || st.fracDecimalCur > 0.3 {
			continue
		}
		if st.meanMagnitude <= 0 || st.meanMagnitude >= 1000 {
			continue
		}
		if st.fracNumeric > bestQty {
			bestQty = st.fracNumeric
			assign.Quantity = col
		}
	}

	// Description: long free text with multiple words.
	bestLen := 0.0
	for col, st := range stats {
		if col == assign.Price || col == assign.Quantity || st.samples == 0 {
			continue
		}
		if st.avgLength < 15 || st.avgSpaces < 1.5 {
			continue
		}
		if st.avgLength > bestLen {
			bestLen = st.avgLength
			assign.Description = col
		}
	}

	// SKU: compact alphanumeric mixing letters and digits.
	bestSKU := -1.0
	for col, st := range stats {
		if col == assign.Price || col == assign.Quantity || col == assign.Description || st.samples == 0 {
			continue
		}
		if st.fracSKULike < 0.5 || st.avgSpaces > 0.5 {
			continue
		}
		if st.fracSKULike > bestSKU {
			bestSKU = st.fracSKULike
			assign.SKU = col
		}
	}

	return assign
}

func computeColumnStats(sample [][]string, col int) columnStats {
	st := columnStats{}
	magnitudeSum := 0.0
	numericCount := 0

	for _, row := range sample {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		st.samples++
		st.avgLength += float64(len(cell))
		st.avgSpaces += float64(strings.Count(cell, " "))

		if util.IsNumericCell(cell) {
			numericCount++
			magnitudeSum += util.ParsePrice(cell)
			if util.HasDecimalOrCurrency(cell) {
				st.fracDecimalCur++
			}
		} else if util.LooksLikeSKU(cell) {
			st.fracSKULike++
		}
	}

	if st.samples == 0 {
		return st
	}
	n := float64(st.samples)
	st.fracNumeric = float64(numericCount) / n
	st.fracDecimalCur /= n
	st.fracSKULike /= n
	st.avgLength /= n
	st.avgSpaces /= n
	if numericCount > 0 {
		st.meanMagnitude = magnitudeSum / float64(numericCount)
	}
	return st
}
