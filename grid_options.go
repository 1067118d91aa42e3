package reportboard

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// gridConfig holds configuration during widget grid construction.
type gridConfig struct {
	urlTemplate  string
	dimensions   map[string][]string
	title        string
	criteria     map[string]any
	staticLabels map[string]string
	headers      map[string]string
	timeout      time.Duration
	widgetOpts   []WidgetOption
}

// GridOption configures widget grid generation for [NewWidgetGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for widget generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithURLTemplate("https://reports.example.com/{{.site}}/start")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each value also becomes a criteria field and a label of its widget.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "site":     {"bos", "sfo"},
//	    "duration": {"1h", "1d"},
//	})
//
// Every dimension needs at least one value and values must be non-blank,
// since they end up in widget ids.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		copied := make(map[string][]string, len(dims))
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			if i := slices.IndexFunc(vals, func(v string) bool { return strings.TrimSpace(v) == "" }); i >= 0 {
				return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
			}
			copied[k] = slices.Clone(vals)
		}
		cfg.dimensions = copied
		return nil
	}
}

// WithGridTitle sets the base title. Defaults to the base id.
func WithGridTitle(title string) GridOption {
	return func(cfg *gridConfig) error {
		cfg.title = title
		return nil
	}
}

// WithGridCriteria sets criteria shared by every widget. Dimension values
// are merged on top, so a dimension named like a criteria key wins.
func WithGridCriteria(criteria map[string]any) GridOption {
	return func(cfg *gridConfig) error {
		cfg.criteria = maps.Clone(criteria)
		return nil
	}
}

// WithGridLabels adds static labels to all generated widgets.
// On collision, static labels take precedence over dimension labels.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		return putPairs(cfg.staticLabels, "WithGridLabels", keyValues)
	}
}

// WithGridHeaders adds HTTP headers to all generated widgets.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		return putPairs(cfg.headers, "WithGridHeaders", keyValues)
	}
}

// WithGridTimeout sets the HTTP request timeout for all generated widgets.
//
// A duration of zero means use the widget default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridWidgetOptions applies opts to every generated widget, after the
// grid's own options.
func WithGridWidgetOptions(opts ...WidgetOption) GridOption {
	return func(cfg *gridConfig) error {
		cfg.widgetOpts = append(cfg.widgetOpts, opts...)
		return nil
	}
}
