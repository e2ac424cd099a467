package reporter

import (
	"io"

	"conciliador/internal/models"
	"conciliador/pkg/errors"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// writePDF renders a table as a landscape A4 PDF. Core fonts only cover
// cp1252, which is enough for Portuguese histories.
func (g *Generator) writePDF(t *table, w io.Writer) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(g.config.Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(g.config.Title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(221, 235, 247)
		for i, header := range t.Headers {
			pdf.CellFormat(t.Widths[i], 7, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	for i, row := range t.Rows {
		if pdf.GetY() > pageHeight-22 {
			pdf.AddPage()
			writeHeader()
		}

		fill := t.highlighted(i)
		if fill {
			pdf.SetFillColor(255, 199, 206)
		}
		g.writePDFRow(pdf, tr, t, row, fill)
	}

	if t.Total != nil {
		pdf.SetFont("Helvetica", "B", 8)
		g.writePDFRow(pdf, tr, t, t.Total, false)
	}

	if err := pdf.Output(w); err != nil {
		return errors.InternalError("writing pdf", err)
	}
	return nil
}

func (g *Generator) writePDFRow(pdf *fpdf.Fpdf, tr func(string) string, t *table, row []interface{}, fill bool) {
	for i, value := range row {
		text, align := pdfCell(value)
		pdf.CellFormat(t.Widths[i], 6, tr(text), "1", 0, align, fill, 0, "")
	}
	pdf.Ln(-1)
}

func pdfCell(value interface{}) (text, align string) {
	switch v := value.(type) {
	case float64:
		return models.FormatBRAmount(decimal.NewFromFloat(v)), "R"
	case string:
		return v, "L"
	default:
		return "", "L"
	}
}
