package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"supplyaudit/internal"
)

// Parse extracts raw line items from an uploaded purchase file. The
// returned header row index is the 0-based grid row consumed as the
// header, or -1 when a synthetic header was used.
func Parse(fileBytes []byte, fileName string) ([]internal.RawLineItem, int, error) {
	grid, err := readGrid(fileBytes, fileName)
	if err != nil {
		return nil, -1, err
	}
	if len(grid) == 0 {
		return nil, -1, fmt.Errorf("no rows in %s", fileName)
	}
	return extractItems(grid)
}

func readGrid(fileBytes []byte, fileName string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".xlsx", ".xls":
		return readSpreadsheet(fileBytes)
	case ".csv", ".txt", ".tsv":
		return readDelimited(fileBytes)
	case ".html", ".htm":
		return readHTMLTable(fileBytes)
	case ".pdf":
		return readPDF(fileBytes)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// readSpreadsheet picks the sheet with the most rows; ties go to the
// first sheet in workbook order.
func readSpreadsheet(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	best := [][]string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) > len(best) {
			best = rows
		}
	}
	return normalizeGrid(best), nil
}

func readDelimited(content []byte) ([][]string, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return normalizeGrid(records), nil
}

func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	if c := strings.Count(line, ";"); c > bestCount {
		best, bestCount = ';', c
	}
	if c := strings.Count(line, "\t"); c > bestCount {
		best = '\t'
	}
	return best
}

// readHTMLTable takes the table with the most rows from an HTML
// purchase export.
func readHTMLTable(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	best := [][]string{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		grid := [][]string{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			grid = append(grid, cells)
		})
		if len(grid) > len(best) {
			best = grid
		}
	})

	if len(best) == 0 {
		return nil, fmt.Errorf("no table found in html input")
	}
	return best, nil
}

// readPDF splits each text line on runs of two or more spaces, which is
// how column boundaries survive plain-text extraction from invoices.
func readPDF(content []byte) ([][]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	splitter := regexp.MustCompile(`\s{2,}|\t`)
	grid := [][]string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cells := splitter.Split(line, -1)
			grid = append(grid, cells)
		}
	}
	return grid, nil
}

func normalizeGrid(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, normalizeSpaces(c))
		}
		out = append(out, cells)
	}
	return out
}

var reSpaces = regexp.MustCompile(`\s+`)

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
