package render

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jpalmerr/reportboard/format"
)

// Table renders a column-described table.
//
// Payload shape:
//
//	{
//	  "chartTitle": "Top Hosts",
//	  "columns": [{"key": "host", "label": "Host"},
//	              {"key": "bytes", "label": "Bytes", "formatter": "formatBytes"}],
//	  "data": [{"host": "10.0.0.1", "bytes": 1536000}]
//	}
//
// Columns whose formatter is unknown display raw values. Cell text is escaped
// unless the column sets "allowHTML".
type Table struct {
	// Location is used by time formatters. Nil means local time.
	Location *time.Location
}

type tableColumn struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Formatter string `json:"formatter"`
	AllowHTML bool   `json:"allowHTML"`
}

type tablePayload struct {
	Title   string           `json:"chartTitle"`
	Columns []tableColumn    `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// Render implements [Renderer].
func (t Table) Render(c Container, data json.RawMessage) (string, error) {
	var p tablePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("invalid table payload: %w", err)
	}
	if len(p.Columns) == 0 {
		return "", fmt.Errorf("invalid table payload: no columns")
	}

	formatters := make([]format.Func, len(p.Columns))
	for i, col := range p.Columns {
		if format.Known(col.Formatter) {
			formatters[i] = format.ResolveIn(col.Formatter, t.Location)
		}
	}

	var b strings.Builder
	writeTitle(&b, c, p.Title)
	fmt.Fprintf(&b, `<div id="%s" class="widget-table" style="%s">`, html.EscapeString(c.ContentID()), contentStyle(c))
	fmt.Fprintf(&b, `<table id="%s-table"><thead><tr>`, html.EscapeString(c.ContentID()))
	for _, col := range p.Columns {
		label := col.Label
		if label == "" {
			label = col.Key
		}
		fmt.Fprintf(&b, `<th data-key="%s">%s</th>`, html.EscapeString(col.Key), html.EscapeString(label))
	}
	b.WriteString(`</tr></thead><tbody>`)

	for _, row := range p.Data {
		b.WriteString(`<tr>`)
		for i, col := range p.Columns {
			b.WriteString(`<td>`)
			b.WriteString(tableCell(row[col.Key], col, formatters[i]))
			b.WriteString(`</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></div>`)
	return b.String(), nil
}

// tableCell formats one cell. Numbers go through the column formatter when
// one was resolved; everything else is displayed as text.
func tableCell(v any, col tableColumn, f format.Func) string {
	if n, ok := v.(float64); ok && f != nil {
		return html.EscapeString(f(n, format.AutoPrecision))
	}
	text := displayValue(v)
	if col.AllowHTML {
		return text
	}
	return html.EscapeString(text)
}

// RawTable renders a bare array of rows, each an array of cells. Every cell
// is escaped.
type RawTable struct{}

// Render implements [Renderer].
func (RawTable) Render(c Container, data json.RawMessage) (string, error) {
	var rows [][]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("invalid raw table payload: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<table id="%s-table">`, html.EscapeString(c.ContentID()))
	for _, row := range rows {
		b.WriteString(`<tr>`)
		for _, cell := range row {
			b.WriteString(`<td>`)
			b.WriteString(html.EscapeString(displayValue(cell)))
			b.WriteString(`</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table>`)
	return b.String(), nil
}
