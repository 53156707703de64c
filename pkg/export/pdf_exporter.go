package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const landscapeWidth = 277.0

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title and table body.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	widths := columnWidths(data)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, tr(data.Title), "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	header()

	for _, row := range data.Rows {
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 6, tr(truncate(row[h], widths[i])), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(data Dataset) []float64 {
	widths := make([]float64, len(data.Headers))
	if len(data.Widths) != len(data.Headers) {
		for i := range widths {
			widths[i] = landscapeWidth / float64(len(widths))
		}
		return widths
	}
	var total float64
	for _, w := range data.Widths {
		total += w
	}
	for i, w := range data.Widths {
		widths[i] = landscapeWidth * w / total
	}
	return widths
}

// truncate keeps a cell on one line; roughly 2mm per character at 8pt.
func truncate(value string, width float64) string {
	limit := int(width / 1.8)
	runes := []rune(value)
	if limit < 4 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
