// Package render turns completed report payloads into HTML fragments for a
// widget container.
//
// A [Renderer] is the only capability the poller needs from a widget type:
// it is handed the container the widget owns and the opaque payload of a
// completed job, and returns the markup to place in that container.
//
// Built-in backends:
//
//   - [HTML]: payload is a JSON string of markup, inserted as-is
//   - [Table]: column definitions plus row objects, with per-column formatters
//   - [RawTable]: array of arrays, every cell escaped
//   - [TimeSeries], [Column], [Pie]: chart scaffold plus a fallback data table
//   - [Map]: marker list with bounds fitted to every circle
//
// Backends are stateless and safe for concurrent use.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultWidth is used when a container does not declare a width.
	DefaultWidth = 600

	// DefaultHeight is used when a container does not declare a height.
	DefaultHeight = 300

	// content area insets, matching the title bar and margins of the page
	contentWidthInset  = 22
	contentHeightInset = 42
)

// Container describes the element a widget renders into.
type Container struct {
	// ID is the element id of the container.
	ID string

	// Width and Height are the container size in pixels. Zero means default.
	Width  int
	Height int
}

// ContentID returns the id of the inner content element.
func (c Container) ContentID() string {
	return c.ID + "_content"
}

// ContentSize returns the size available to the content element after the
// title bar and margins are removed.
func (c Container) ContentSize() (width, height int) {
	width, height = c.Width, c.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return max(width-contentWidthInset, 0), max(height-contentHeightInset, 0)
}

// Renderer produces the markup for a completed payload.
//
// Render is called at most once per completed job. Implementations must not
// retain data after returning.
type Renderer interface {
	Render(c Container, data json.RawMessage) (string, error)
}

// Func adapts an ordinary function to the [Renderer] interface.
type Func func(c Container, data json.RawMessage) (string, error)

// Render calls f(c, data).
func (f Func) Render(c Container, data json.RawMessage) (string, error) {
	return f(c, data)
}

// HTML renders payloads that are already markup. The payload must be a JSON
// string; its contents are inserted without escaping.
type HTML struct{}

// Render implements [Renderer].
func (HTML) Render(_ Container, data json.RawMessage) (string, error) {
	var markup string
	if err := json.Unmarshal(data, &markup); err != nil {
		return "", fmt.Errorf("html payload must be a JSON string: %w", err)
	}
	return markup, nil
}

var byName = map[string]func() Renderer{
	"html":       func() Renderer { return HTML{} },
	"table":      func() Renderer { return Table{} },
	"raw_table":  func() Renderer { return RawTable{} },
	"timeseries": func() Renderer { return TimeSeries() },
	"column":     func() Renderer { return Column() },
	"pie":        func() Renderer { return Pie() },
	"map":        func() Renderer { return Map{} },
}

// ErrUnknownRenderer is returned by [ByName] for unregistered names.
var ErrUnknownRenderer = errors.New("unknown renderer")

// ByName returns the backend registered under name. An empty name selects
// [HTML].
func ByName(name string) (Renderer, error) {
	if name == "" {
		return HTML{}, nil
	}
	ctor, ok := byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (expected one of %s)", ErrUnknownRenderer, name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names returns the registered backend names in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// writeTitle writes the title bar shared by every structured backend.
func writeTitle(b *strings.Builder, c Container, title string) {
	fmt.Fprintf(b, `<div id="%s-title" class="widget-title" style="height:20px;text-align:center">%s</div>`,
		html.EscapeString(c.ContentID()), html.EscapeString(title))
}

// contentStyle returns the inline style for the content element.
func contentStyle(c Container) string {
	w, h := c.ContentSize()
	return "margin:10px;width:" + strconv.Itoa(w) + "px;height:" + strconv.Itoa(h) + "px"
}

// displayValue renders a non-numeric cell value as plain text.
func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
