package reportboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/reportboard/render"
)

const (
	minPollDelay = 10 * time.Millisecond
	maxPollDelay = time.Minute
)

// widgetConfig holds mutable state during widget construction.
type widgetConfig struct {
	title       string
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

// WidgetOption configures a [Widget] during construction.
//
// Options are applied in order and return an error if validation fails.
type WidgetOption func(*widgetConfig) error

// WithWidgetTitle sets the display title. Defaults to the widget id.
func WithWidgetTitle(title string) WidgetOption {
	return func(cfg *widgetConfig) error {
		cfg.title = title
		return nil
	}
}

// WithCriteria sets the criteria posted on submit. v is encoded as JSON.
//
// Example:
//
//	reportboard.WithCriteria(map[string]any{"limit": 10, "view": "hosts"})
func WithCriteria(v any) WidgetOption {
	return func(cfg *widgetConfig) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("criteria must be JSON encodable: %w", err)
		}
		cfg.criteria = raw
		return nil
	}
}

// WithRawCriteria sets already-encoded JSON criteria.
func WithRawCriteria(raw json.RawMessage) WidgetOption {
	return func(cfg *widgetConfig) error {
		if !json.Valid(raw) {
			return errors.New("criteria must be valid JSON")
		}
		cfg.criteria = append(json.RawMessage(nil), raw...)
		return nil
	}
}

// WithMode selects submit-then-poll ([ModeSubmit]) or direct polling
// ([ModeDirect]).
func WithMode(m Mode) WidgetOption {
	return func(cfg *widgetConfig) error {
		switch m {
		case ModeSubmit, ModeDirect:
			cfg.mode = m
			return nil
		default:
			return fmt.Errorf("mode must be %q or %q, got %q", ModeSubmit, ModeDirect, m)
		}
	}
}

// WithDirectPoll is shorthand for WithMode(ModeDirect).
func WithDirectPoll() WidgetOption {
	return WithMode(ModeDirect)
}

// WithWidgetParam sends value as the widget_id form field on submit.
func WithWidgetParam(value string) WidgetOption {
	return func(cfg *widgetConfig) error {
		cfg.widgetParam = value
		return nil
	}
}

// WithRenderer sets the render backend used once the job completes.
//
// Example:
//
//	reportboard.WithRenderer(render.TimeSeries())
//
// Returns an error if r is nil.
func WithRenderer(r render.Renderer) WidgetOption {
	return func(cfg *widgetConfig) error {
		if r == nil {
			return errors.New("renderer cannot be nil")
		}
		cfg.renderer = r
		return nil
	}
}

// WithStatusCodes sets the wire status codes of the widget's backend.
// Defaults to [PortalStatusCodes].
func WithStatusCodes(codes StatusCodes) WidgetOption {
	return func(cfg *widgetConfig) error {
		if err := codes.Validate(); err != nil {
			return err
		}
		cfg.codes = codes.clone()
		return nil
	}
}

// WithPollDelay sets the wait between a non-terminal reply and the next
// poll. Defaults to 1 second.
//
// Returns an error if d is outside 10ms..1m.
func WithPollDelay(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d < minPollDelay {
			return errors.New("poll delay must be at least 10ms")
		}
		if d > maxPollDelay {
			return errors.New("poll delay must not exceed 1 minute")
		}
		cfg.pollDelay = d
		return nil
	}
}

// WithTimeout sets the HTTP timeout of each request. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMaxWait bounds the whole job. When the deadline passes the widget ends
// in [StateTimeout]. Zero, the default, polls until the server reports a
// terminal status.
func WithMaxWait(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d < 0 {
			return errors.New("max wait cannot be negative")
		}
		cfg.maxWait = d
		return nil
	}
}

// WithHeaders adds HTTP headers to every request of the widget.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithHeaders(keyValues ...string) WidgetOption {
	return func(cfg *widgetConfig) error {
		return putPairs(cfg.headers, "WithHeaders", keyValues)
	}
}

// WithLabels adds metadata labels shown with the widget and carried on
// every [WidgetResult].
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithLabels(keyValues ...string) WidgetOption {
	return func(cfg *widgetConfig) error {
		return putPairs(cfg.labels, "WithLabels", keyValues)
	}
}

// WithWidth sets the container width in pixels. Defaults to 600.
func WithWidth(px int) WidgetOption {
	return func(cfg *widgetConfig) error {
		if px <= 0 {
			return errors.New("width must be positive")
		}
		cfg.width = px
		return nil
	}
}

// WithHeight sets the container height in pixels.
func WithHeight(px int) WidgetOption {
	return func(cfg *widgetConfig) error {
		if px <= 0 {
			return errors.New("height must be positive")
		}
		cfg.height = px
		return nil
	}
}

// WithMinHeight sets the height used when [WithHeight] is not given.
func WithMinHeight(px int) WidgetOption {
	return func(cfg *widgetConfig) error {
		if px <= 0 {
			return errors.New("min height must be positive")
		}
		cfg.minHeight = px
		return nil
	}
}

// putPairs stores alternating keys and values into dst. option names the
// caller in the error for an odd count.
func putPairs(dst map[string]string, option string, keyValues []string) error {
	if len(keyValues)%2 != 0 {
		return fmt.Errorf("%s requires an even number of arguments (key-value pairs), got %d", option, len(keyValues))
	}
	for i := 0; i < len(keyValues); i += 2 {
		dst[keyValues[i]] = keyValues[i+1]
	}
	return nil
}
