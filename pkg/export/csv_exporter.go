package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// utf8BOM lets spreadsheet tools detect UTF-8 customer and employee names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset. Cells that a spreadsheet would
// evaluate as a formula are prefixed with a quote.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for i, row := range data.Rows {
		if err := w.Write(csvRecord(data.Headers, row)); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvRecord(headers []string, row map[string]string) []string {
	record := make([]string, len(headers))
	for i, header := range headers {
		record[i] = neutraliseFormula(row[header])
	}
	return record
}

func neutraliseFormula(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
