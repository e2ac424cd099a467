package reporter

import (
	"html/template"
	"io"

	"conciliador/internal/models"
	"conciliador/pkg/errors"

	"github.com/shopspring/decimal"
)

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; margin: 24px; }
table { border-collapse: collapse; width: 100%; }
th { background: #ddebf7; text-align: left; }
th, td { border: 1px solid #b0b0b0; padding: 4px 8px; font-size: 13px; }
td.amount { text-align: right; }
tr.diff td { background: #ffc7ce; }
tr.total td { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr{{if .Highlight}} class="diff"{{end}}>{{range .Cells}}<td{{if .Amount}} class="amount"{{end}}>{{.Text}}</td>{{end}}</tr>
{{end}}{{if .Total}}<tr class="total">{{range .Total}}<td{{if .Amount}} class="amount"{{end}}>{{.Text}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

type htmlCell struct {
	Text   string
	Amount bool
}

type htmlRow struct {
	Cells     []htmlCell
	Highlight bool
}

type htmlView struct {
	Title   string
	Headers []string
	Rows    []htmlRow
	Total   []htmlCell
}

func htmlCells(cells []interface{}) []htmlCell {
	out := make([]htmlCell, len(cells))
	for i, cell := range cells {
		switch v := cell.(type) {
		case float64:
			out[i] = htmlCell{Text: models.FormatBRAmount(decimal.NewFromFloat(v)), Amount: true}
		case string:
			out[i] = htmlCell{Text: v}
		}
	}
	return out
}

// writeHTML renders a table as a standalone HTML document with the same
// highlight semantics as the workbook output.
func (g *Generator) writeHTML(t *table, w io.Writer) error {
	view := htmlView{
		Title:   g.config.Title,
		Headers: t.Headers,
	}
	for i, row := range t.Rows {
		view.Rows = append(view.Rows, htmlRow{
			Cells:     htmlCells(row),
			Highlight: t.highlighted(i),
		})
	}
	if len(t.Total) > 0 {
		view.Total = htmlCells(t.Total)
	}

	if err := htmlTemplate.Execute(w, view); err != nil {
		return errors.InternalError("render html report", err)
	}
	return nil
}
