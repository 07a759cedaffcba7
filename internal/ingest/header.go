package ingest

import (
	"fmt"
	"strings"
)

// headerScanLimit bounds how deep into a noisy file the header hunt goes.
const headerScanLimit = 20

// headerKeywords is the vocabulary of column-role words a real header
// row is expected to contain at least two of.
var headerKeywords = []string{
	"date", "sku", "item", "product", "description", "desc",
	"quantity", "qty", "price", "cost", "part", "model", "uom",
	"unit", "brand", "color", "number", "code", "catalog", "total",
}

// detectHeader returns the grid index of the header row and its cell
// names. When no row qualifies it synthesizes positional names
// (Column_1, Column_2, ...) and returns headerIdx -1 with dataStart at
// the first sufficiently populated row.
func detectHeader(grid [][]string) (headerIdx int, headers []string, dataStart int) {
	limit := len(grid)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		hits := 0
		for _, cell := range grid[i] {
			if matchesHeaderKeyword(cell) {
				hits++
			}
		}
		if hits >= 2 {
			return i, fillBlankHeaders(grid[i]), i + 1
		}
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	headers = make([]string, width)
	for i := range headers {
		headers[i] = fmt.Sprintf("Column_%d", i+1)
	}

	dataStart = 0
	for i, row := range grid {
		if populatedCells(row) >= 2 {
			dataStart = i
			break
		}
	}
	return -1, headers, dataStart
}

func matchesHeaderKeyword(cell string) bool {
	c := strings.ToLower(strings.TrimSpace(cell))
	if c == "" {
		return false
	}
	for _, kw := range headerKeywords {
		if strings.Contains(c, kw) {
			return true
		}
	}
	return false
}

// fillBlankHeaders replaces empty header cells with unique placeholders
// so later field maps do not collide on "".
func fillBlankHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			cell = fmt.Sprintf("Blank_%d", i+1)
		}
		out[i] = cell
	}
	return out
}

func populatedCells(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
