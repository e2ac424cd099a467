// Package parsers turns the two raw inputs of a reconciliation into
// transaction records: bank-statement text lines on one side, and
// general-ledger spreadsheet exports (xlsx, legacy xls, Latin-1 csv) on the
// other. Extraction is best-effort: rows the parser cannot read are dropped
// and counted, never fatal. Type-level failures (missing file, unreadable
// workbook) propagate as categorized errors.
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ParseStats summarizes one parsing pass over an input file.
type ParseStats struct {
	TotalRows int `json:"total_rows"`
	Parsed    int `json:"parsed"`
	Excluded  int `json:"excluded"`
	Dropped   int `json:"dropped"`

	// RowErrors collects the recoverable errors behind Dropped rows.
	RowErrors []*errors.RowError `json:"row_errors,omitempty"`
}

// AddRowError records a dropped row.
func (s *ParseStats) AddRowError(err *errors.RowError) {
	s.Dropped++
	s.RowErrors = append(s.RowErrors, err)
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// readFile loads a whole input file, mapping OS errors to the taxonomy.
func readFile(path string, log logger.Logger) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file_path", path).Error("Failed to read input file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return data, nil
}

// readWorkbookRows reads every row of the first sheet of a spreadsheet
// export. The extension picks the reader: excelize for .xlsx, xlsReader for
// legacy .xls, with a cross-check because ledger exports are routinely
// renamed to the wrong extension.
func readWorkbookRows(path string, data []byte) ([][]string, error) {
	reader := bytes.NewReader(data)

	if f, err := excelize.OpenReader(reader); err == nil {
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.FileError(errors.CodeFileCorrupted, path, nil).
				WithSuggestion("the workbook contains no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
		}
		return rows, nil
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	workbook, err := xls.OpenReader(reader)
	if err != nil {
		return nil, errors.FileError(errors.CodeUnsupportedFormat, path, err)
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, nil).
			WithSuggestion("the workbook contains no sheets")
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// readCSVRows reads a csv ledger export. Exports from the accounting system
// come in ISO8859-1; valid UTF-8 content passes through unchanged. The
// delimiter is sniffed from the first line.
func readCSVRows(path string, data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.ParseError(errors.CodeEncodingError, path, 0, "", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err)
	}
	return rows, nil
}

// sniffDelimiter picks the delimiter by frequency in the first line.
// Semicolon wins ties since Brazilian exports favor it.
func sniffDelimiter(data []byte) rune {
	firstLine := string(data)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	best, count := ';', strings.Count(firstLine, ";")
	for _, candidate := range []rune{',', '\t'} {
		if c := strings.Count(firstLine, string(candidate)); c > count {
			best, count = candidate, c
		}
	}
	return best
}

// cell returns the idx-th cell of a row, or "" when the row is short or the
// layout marks the column absent.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
