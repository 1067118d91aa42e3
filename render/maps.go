package render

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/jpalmerr/reportboard/format"
)

// boundsPadding is the fraction added on every side of the fitted bounds.
const boundsPadding = 0.10

// Map renders circle markers and the bounds the map view should fit.
//
// Payload shape:
//
//	{
//	  "chartTitle": "Traffic by site",
//	  "minbounds": [[40.0, -75.0], [42.0, -70.0]],
//	  "circles": [{"center": [42.36, -71.06], "title": "Boston",
//	               "value": 1536000, "units": "B", "formatter": "formatBytes",
//	               "radius": 12}]
//	}
type Map struct{}

type mapCircle struct {
	Center    [2]float64 `json:"center"`
	Title     string     `json:"title"`
	Value     any        `json:"value"`
	Units     string     `json:"units"`
	Formatter string     `json:"formatter"`
	Radius    float64    `json:"radius"`
}

type mapPayload struct {
	Title     string       `json:"chartTitle"`
	MinBounds [][2]float64 `json:"minbounds"`
	Circles   []mapCircle  `json:"circles"`
}

// latLng is a point in degrees.
type latLng struct {
	Lat, Lng float64
}

// bounds is a south-west/north-east box. The zero value is empty.
type bounds struct {
	sw, ne latLng
	valid  bool
}

func (b *bounds) extend(p latLng) {
	if !b.valid {
		b.sw, b.ne, b.valid = p, p, true
		return
	}
	b.sw.Lat = math.Min(b.sw.Lat, p.Lat)
	b.sw.Lng = math.Min(b.sw.Lng, p.Lng)
	b.ne.Lat = math.Max(b.ne.Lat, p.Lat)
	b.ne.Lng = math.Max(b.ne.Lng, p.Lng)
}

// pad grows the box by ratio of its own height and width on each side.
func (b bounds) pad(ratio float64) bounds {
	if !b.valid {
		return b
	}
	dLat := math.Abs(b.sw.Lat-b.ne.Lat) * ratio
	dLng := math.Abs(b.sw.Lng-b.ne.Lng) * ratio
	return bounds{
		sw:    latLng{b.sw.Lat - dLat, b.sw.Lng - dLng},
		ne:    latLng{b.ne.Lat + dLat, b.ne.Lng + dLng},
		valid: true,
	}
}

func (b bounds) attr() string {
	if !b.valid {
		return ""
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return "[[" + f(b.sw.Lat) + "," + f(b.sw.Lng) + "],[" + f(b.ne.Lat) + "," + f(b.ne.Lng) + "]]"
}

// Render implements [Renderer].
func (Map) Render(c Container, data json.RawMessage) (string, error) {
	var p mapPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("invalid map payload: %w", err)
	}

	var box bounds
	if len(p.MinBounds) == 2 {
		box.extend(latLng{p.MinBounds[0][0], p.MinBounds[0][1]})
		box.extend(latLng{p.MinBounds[1][0], p.MinBounds[1][1]})
	}
	for _, circle := range p.Circles {
		box.extend(latLng{circle.Center[0], circle.Center[1]})
	}
	box = box.pad(boundsPadding)

	var b strings.Builder
	writeTitle(&b, c, p.Title)
	fmt.Fprintf(&b, `<div id="%s" class="mapcanvas" style="%s" data-bounds="%s">`,
		html.EscapeString(c.ContentID()), contentStyle(c), box.attr())
	for _, circle := range p.Circles {
		size := strconv.FormatFloat(circle.Radius*2, 'f', -1, 64)
		title := circle.Title + "\n" + circleValue(circle)
		fmt.Fprintf(&b, `<div class="circleMarker" data-lat="%s" data-lng="%s" style="width:%spx;height:%spx" title="%s"></div>`,
			strconv.FormatFloat(circle.Center[0], 'f', -1, 64),
			strconv.FormatFloat(circle.Center[1], 'f', -1, 64),
			size, size, html.EscapeString(title))
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

// circleValue formats the marker value with its formatter at precision 2 and
// appends the units.
func circleValue(c mapCircle) string {
	if n, ok := c.Value.(float64); ok && c.Formatter != "" {
		return format.Resolve(c.Formatter)(n, 2) + c.Units
	}
	return displayValue(c.Value) + c.Units
}
