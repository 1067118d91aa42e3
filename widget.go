package reportboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/jpalmerr/reportboard/render"
)

const (
	defaultWidgetTimeout = 10 * time.Second
	defaultPollDelay     = time.Second
)

// Mode selects how a widget reaches its job.
type Mode string

const (
	// ModeSubmit posts the criteria to the widget URL and polls the job URL
	// the server returns. This is the default.
	ModeSubmit Mode = "submit"

	// ModeDirect polls the widget URL itself with a ts cursor fixed at start.
	ModeDirect Mode = "direct"
)

// Widget is one report container on a board.
//
// Widget is immutable after creation via [NewWidget]. Getters return copies
// of mutable data.
type Widget struct {
	id          string
	title       string
	url         string
	mode        Mode
	criteria    json.RawMessage
	widgetParam string
	renderer    render.Renderer
	codes       StatusCodes
	pollDelay   time.Duration
	timeout     time.Duration
	maxWait     time.Duration
	headers     map[string]string
	labels      map[string]string
	width       int
	height      int
	minHeight   int
}

// ID returns the container element id.
func (w Widget) ID() string {
	return w.id
}

// Title returns the display title. Defaults to the id.
func (w Widget) Title() string {
	return w.title
}

// URL returns the submit URL (ModeSubmit) or data URL (ModeDirect).
func (w Widget) URL() string {
	return w.url
}

// Mode returns how the widget reaches its job.
func (w Widget) Mode() Mode {
	return w.mode
}

// Criteria returns a copy of the JSON criteria posted on submit.
func (w Widget) Criteria() json.RawMessage {
	return append(json.RawMessage(nil), w.criteria...)
}

// WidgetParam returns the widget_id form value, or "" when none is sent.
func (w Widget) WidgetParam() string {
	return w.widgetParam
}

// Renderer returns the render backend. Defaults to [render.HTML].
func (w Widget) Renderer() render.Renderer {
	return w.renderer
}

// StatusCodes returns the wire status codes the widget's backend speaks.
func (w Widget) StatusCodes() StatusCodes {
	return w.codes.clone()
}

// PollDelay returns the wait between non-terminal replies and the next poll.
func (w Widget) PollDelay() time.Duration {
	return w.pollDelay
}

// Timeout returns the per-request HTTP timeout.
func (w Widget) Timeout() time.Duration {
	return w.timeout
}

// MaxWait returns the overall job deadline. Zero means poll until the
// server reports a terminal status.
func (w Widget) MaxWait() time.Duration {
	return w.maxWait
}

// Headers returns a copy of the custom request headers.
func (w Widget) Headers() map[string]string {
	return copyMap(w.headers)
}

// Labels returns a copy of the widget labels.
func (w Widget) Labels() map[string]string {
	return copyMap(w.labels)
}

// Width returns the declared container width, or 0 for the default.
func (w Widget) Width() int {
	return w.width
}

// Height returns the declared container height, or 0 when unset.
func (w Widget) Height() int {
	return w.height
}

// MinHeight returns the height used when no explicit height is set.
func (w Widget) MinHeight() int {
	return w.minHeight
}

// NewWidget creates a [Widget] rendering into the container id, fed by the
// report endpoint at rawURL.
//
// The id must be non-empty and contain no whitespace. rawURL must be an
// absolute http or https URL.
//
// Example:
//
//	w, err := reportboard.NewWidget("top-hosts", "https://reports.example.com/hosts/start",
//	    reportboard.WithCriteria(map[string]any{"limit": 10}),
//	    reportboard.WithRenderer(render.Table{}),
//	)
func NewWidget(id, rawURL string, opts ...WidgetOption) (Widget, error) {
	if id == "" {
		return Widget{}, errors.New("widget id cannot be empty")
	}
	if strings.ContainsFunc(id, unicode.IsSpace) {
		return Widget{}, fmt.Errorf("widget id %q must not contain whitespace", id)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Widget{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Widget{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return Widget{}, errors.New("URL must have a host")
	}

	cfg := &widgetConfig{
		mode:      ModeSubmit,
		criteria:  json.RawMessage(`{}`),
		renderer:  render.HTML{},
		codes:     PortalStatusCodes,
		pollDelay: defaultPollDelay,
		timeout:   defaultWidgetTimeout,
		headers:   make(map[string]string),
		labels:    make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Widget{}, err
		}
	}

	title := cfg.title
	if title == "" {
		title = id
	}

	return Widget{
		id:          id,
		title:       title,
		url:         rawURL,
		mode:        cfg.mode,
		criteria:    cfg.criteria,
		widgetParam: cfg.widgetParam,
		renderer:    cfg.renderer,
		codes:       cfg.codes.clone(),
		pollDelay:   cfg.pollDelay,
		timeout:     cfg.timeout,
		maxWait:     cfg.maxWait,
		headers:     cfg.headers,
		labels:      cfg.labels,
		width:       cfg.width,
		height:      cfg.height,
		minHeight:   cfg.minHeight,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
