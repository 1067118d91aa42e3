package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/reportboard/format"
)

// Chart kinds.
const (
	KindTimeSeries = "timeseries"
	KindColumn     = "column"
	KindPie        = "pie"
)

// Chart renders chart payloads. Drawing is left to the page: the content
// element carries the payload as a data-chart attribute, followed by a data
// table whose values go through the axis label functions.
type Chart struct {
	// Kind is one of KindTimeSeries, KindColumn or KindPie.
	Kind string

	// Location is used by time formatters. Nil means local time.
	Location *time.Location
}

// TimeSeries returns a line/area chart backend.
func TimeSeries() Chart { return Chart{Kind: KindTimeSeries} }

// Column returns a bar chart backend.
func Column() Chart { return Chart{Kind: KindColumn} }

// Pie returns a pie chart backend.
func Pie() Chart { return Chart{Kind: KindPie} }

type chartSeries struct {
	XKey                string `json:"xKey"`
	XDisplayName        string `json:"xDisplayName"`
	YKey                string `json:"yKey"`
	YDisplayName        string `json:"yDisplayName"`
	CategoryKey         string `json:"categoryKey"`
	CategoryDisplayName string `json:"categoryDisplayName"`
	ValueKey            string `json:"valueKey"`
	ValueDisplayName    string `json:"valueDisplayName"`
}

type chartAxis struct {
	Keys         []string `json:"keys"`
	Formatter    string   `json:"formatter"`
	TickExponent *float64 `json:"tickExponent"`
	Type         string   `json:"type"`
}

type chartPayload struct {
	Title        string               `json:"chartTitle"`
	CategoryKey  string               `json:"categoryKey"`
	DataProvider []map[string]any     `json:"dataProvider"`
	Series       []chartSeries        `json:"seriesCollection"`
	Axes         map[string]chartAxis `json:"axes"`
}

// chartColumn is one column of the fallback data table.
type chartColumn struct {
	key   string
	label string
	text  func(v float64) string
}

// Render implements [Renderer].
func (ch Chart) Render(c Container, data json.RawMessage) (string, error) {
	var p chartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("invalid %s payload: %w", ch.Kind, err)
	}
	if len(p.Series) == 0 {
		return "", fmt.Errorf("invalid %s payload: no series", ch.Kind)
	}

	var config bytes.Buffer
	if err := json.Compact(&config, data); err != nil {
		return "", fmt.Errorf("invalid %s payload: %w", ch.Kind, err)
	}

	columns := ch.columns(p)

	var b strings.Builder
	writeTitle(&b, c, p.Title)
	fmt.Fprintf(&b, `<div id="%s" class="chart chart-%s" style="%s" data-chart="%s"></div>`,
		html.EscapeString(c.ContentID()), html.EscapeString(ch.Kind), contentStyle(c), html.EscapeString(config.String()))

	b.WriteString(`<table class="chart-data"><thead><tr>`)
	for _, col := range columns {
		fmt.Fprintf(&b, `<th>%s</th>`, html.EscapeString(col.label))
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range p.DataProvider {
		b.WriteString(`<tr>`)
		for _, col := range columns {
			b.WriteString(`<td>`)
			v := row[col.key]
			if n, ok := v.(float64); ok {
				b.WriteString(html.EscapeString(col.text(n)))
			} else {
				b.WriteString(html.EscapeString(displayValue(v)))
			}
			b.WriteString(`</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String(), nil
}

// columns derives the category column and one value column per series.
func (ch Chart) columns(p chartPayload) []chartColumn {
	first := p.Series[0]

	catKey, catLabel := p.CategoryKey, first.CategoryDisplayName
	if catKey == "" {
		catKey = first.CategoryKey
	}
	if catKey == "" {
		catKey, catLabel = first.XKey, first.XDisplayName
	}
	if catLabel == "" {
		catLabel = catKey
	}

	cols := []chartColumn{{key: catKey, label: catLabel, text: ch.labeler(p.Axes, catKey)}}
	for _, s := range p.Series {
		key, label := s.YKey, s.YDisplayName
		if key == "" {
			key, label = s.ValueKey, s.ValueDisplayName
		}
		if label == "" {
			label = key
		}
		cols = append(cols, chartColumn{key: key, label: label, text: ch.labeler(p.Axes, key)})
	}
	return cols
}

// labeler returns the tooltip label function for the axis that plots key.
//
// Axes with a known formatter use it at precision 2. Axes with a negative
// tick exponent print enough decimals to resolve one tick. Anything else is
// printed raw.
func (ch Chart) labeler(axes map[string]chartAxis, key string) func(float64) string {
	for _, a := range axes {
		if !containsKey(a.Keys, key) {
			continue
		}
		if format.Known(a.Formatter) {
			f := format.ResolveIn(a.Formatter, ch.Location)
			return func(v float64) string { return f(v, 2) }
		}
		if a.TickExponent != nil && *a.TickExponent < 0 {
			return tickLabeler(*a.TickExponent, true)
		}
		if a.Type == "time" {
			f := format.TimeIn(ch.Location)
			return func(v float64) string { return f(v, format.AutoPrecision) }
		}
	}
	return func(v float64) string { return format.Raw(v, format.AutoPrecision) }
}

// tickLabeler prints 1-exp decimals for axis ticks and 3-exp for tooltips,
// truncating fractional exponents.
func tickLabeler(exp float64, tooltip bool) func(float64) string {
	base := 1.0
	if tooltip {
		base = 3
	}
	decimals := int(math.Trunc(base - exp))
	return func(v float64) string {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
