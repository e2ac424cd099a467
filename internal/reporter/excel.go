package reporter

import (
	"io"

	"conciliador/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// numFmtAmount is the builtin "#,##0.00" number format.
const numFmtAmount = 4

// writeWorkbook renders a table as a single-sheet XLSX workbook with a bold
// header and highlighted rows.
func (g *Generator) writeWorkbook(t *table, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, t.Sheet); err != nil {
		return errors.InternalError("renaming sheet", err)
	}
	sheet = t.Sheet

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return errors.InternalError("creating header style", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return errors.InternalError("creating amount style", err)
	}
	highlightStyle, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		NumFmt: numFmtAmount,
	})
	if err != nil {
		return errors.InternalError("creating highlight style", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: numFmtAmount,
	})
	if err != nil {
		return errors.InternalError("creating total style", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
		return errors.InternalError("writing header row", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.Headers))
	if err != nil {
		return errors.InternalError("resolving last column", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return errors.InternalError("styling header row", err)
	}

	for i, row := range t.Rows {
		line := i + 2
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return errors.InternalError("resolving cell name", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.InternalError("writing data row", err)
		}

		style := amountStyle
		if t.highlighted(i) {
			style = highlightStyle
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), line)
		if err != nil {
			return errors.InternalError("resolving cell name", err)
		}
		if err := f.SetCellStyle(sheet, cell, last, style); err != nil {
			return errors.InternalError("styling data row", err)
		}
	}

	if t.Total != nil {
		line := len(t.Rows) + 2
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return errors.InternalError("resolving cell name", err)
		}
		if err := f.SetSheetRow(sheet, cell, &t.Total); err != nil {
			return errors.InternalError("writing total row", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), line)
		if err != nil {
			return errors.InternalError("resolving cell name", err)
		}
		if err := f.SetCellStyle(sheet, cell, last, totalStyle); err != nil {
			return errors.InternalError("styling total row", err)
		}
	}

	for i := range t.Headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return errors.InternalError("resolving column name", err)
		}
		if err := f.SetColWidth(sheet, col, col, 18); err != nil {
			return errors.InternalError("setting column width", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.InternalError("writing workbook", err)
	}
	return nil
}
