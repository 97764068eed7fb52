package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 277.0

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title, an optional subtitle line and
// the table body. Grouped datasets get a heading row per group.
func (e *PDFExporter) Render(data Dataset, title, subtitle string) ([]byte, error) {
	columns := data.columns()
	if len(columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	colWidth := pageWidth / float64(len(columns))
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, column := range columns {
			pdf.CellFormat(colWidth, 7, column, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Rows) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 8, "No conflicts found.", "", 1, "L", false, 0, "")
	}

	current := ""
	for i, row := range data.Rows {
		if data.GroupBy != "" && (i == 0 || row[data.GroupBy] != current) {
			current = row[data.GroupBy]
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, current, "", 1, "L", false, 0, "")
			header()
		} else if i == 0 {
			header()
		}
		pdf.SetFont("Arial", "", 8)
		for _, column := range columns {
			pdf.CellFormat(colWidth, 6, row[column], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columns returns the headers shown in table rows. The group column is
// already printed as a heading.
func (d Dataset) columns() []string {
	if d.GroupBy == "" {
		return d.Headers
	}
	out := make([]string, 0, len(d.Headers))
	for _, h := range d.Headers {
		if h != d.GroupBy {
			out = append(out, h)
		}
	}
	return out
}
