package rendering

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText writes an aligned plain-text table, or the empty-state message.
func WriteText(w io.Writer, t Table) error {
	if t.IsEmpty() {
		_, err := fmt.Fprintln(w, t.EmptyMessage())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, joinCells(t.Columns)); err != nil {
		return &RenderError{Message: "failed to write header", Cause: err}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, joinCells(row)); err != nil {
			return &RenderError{Message: "failed to write row", Cause: err}
		}
	}
	if err := tw.Flush(); err != nil {
		return &RenderError{Message: "failed to flush table", Cause: err}
	}
	return nil
}

func joinCells(cells []string) string {
	flat := make([]string, len(cells))
	for i, c := range cells {
		flat[i] = flattenCell(c)
	}
	return strings.Join(flat, "\t")
}

// WriteCSV writes the table as CSV. An empty table is written as a single
// record holding the context's empty-state message.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if t.IsEmpty() {
		if err := cw.Write([]string{t.EmptyMessage()}); err != nil {
			return &RenderError{Message: "failed to write empty state", Cause: err}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return &RenderError{Message: "failed to write empty state", Cause: err}
		}
		return nil
	}

	if err := cw.Write(t.Columns); err != nil {
		return &RenderError{Message: "failed to write header", Cause: err}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return &RenderError{Message: "failed to write rows", Cause: err}
	}
	return nil
}

const htmlTable = `<table class="{{.Class}}">
{{- if .Table.IsEmpty}}
<tr><td class="empty">{{.Table.EmptyMessage}}</td></tr>
{{- else}}
<thead><tr>{{range .Table.Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Table.Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
{{- end}}
</table>
`

var htmlTemplate = template.Must(template.New("table").Parse(htmlTable))

// WriteHTML writes the table as an HTML fragment. Cell text is escaped.
func WriteHTML(w io.Writer, t Table) error {
	data := struct {
		Class string
		Table Table
	}{
		Class: "report-" + string(t.Context),
		Table: t,
	}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return &TemplateError{Message: "failed to execute table template", Cause: err}
	}
	return nil
}

// Format selects an output writer.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Write renders t in the requested format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case FormatText, "":
		return WriteText(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatHTML:
		return WriteHTML(w, t)
	default:
		return &RenderError{Message: fmt.Sprintf("unknown output format %q", format)}
	}
}
