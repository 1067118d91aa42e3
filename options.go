package reportboard

import (
	"errors"
	"log/slog"

	"github.com/uber-go/tally/v4"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title           string
	widgets         []Widget
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	scope           tally.Scope
	statusCallbacks []func(WidgetResult)
}

// Option configures a [Board] during construction.
//
// Built-in options: [WithWidget], [WithWidgets], [WithPort],
// [WithMaxConcurrency], [WithLogger], [WithStatusCallback], [WithTitle],
// [WithMetricsScope].
type Option func(*boardConfig) error

// WithWidget adds a single [Widget] to the board.
//
// Can be called multiple times. Widgets are laid out in the order added.
func WithWidget(w Widget) Option {
	return func(cfg *boardConfig) error {
		cfg.widgets = append(cfg.widgets, w)
		return nil
	}
}

// WithWidgets adds multiple widgets, for example the output of
// [NewWidgetGrid].
//
// Example:
//
//	widgets, err := reportboard.NewWidgetGrid("hosts", ...)
//	board, err := reportboard.New(reportboard.WithWidgets(widgets...))
func WithWidgets(widgets ...Widget) Option {
	return func(cfg *boardConfig) error {
		cfg.widgets = append(cfg.widgets, widgets...)
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency caps the HTTP requests in flight across all widgets.
// Each widget never has more than one request in flight on its own.
// Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetricsScope sets the tally scope receiving job counters and poll
// latency timers. Defaults to [tally.NoopScope].
//
// Returns an error if the scope is nil.
func WithMetricsScope(scope tally.Scope) Option {
	return func(cfg *boardConfig) error {
		if scope == nil {
			return errors.New("metrics scope cannot be nil")
		}
		cfg.scope = scope
		return nil
	}
}

// WithStatusCallback registers a function called on every widget
// transition, after the dashboard view has been updated.
//
// Callbacks run synchronously on a single goroutine in registration order
// and must not block. Panics are recovered and logged.
//
// Example:
//
//	reportboard.WithStatusCallback(func(r reportboard.WidgetResult) {
//	    if r.State == reportboard.StateError {
//	        log.Printf("%s failed: %v", r.WidgetID, r.Err)
//	    }
//	})
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(WidgetResult)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "ReportBoard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}
