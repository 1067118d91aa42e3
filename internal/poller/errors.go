package poller

import (
	"errors"
	"fmt"
	"html"
)

// ErrMaxWaitExceeded is the cancellation cause when a widget's max wait
// elapses before its job reaches a terminal status.
var ErrMaxWaitExceeded = errors.New("max wait exceeded")

// TransportError reports a request that failed or was rejected at the
// network/HTTP layer.
type TransportError struct {
	Op         string // "submit" or "poll"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response that arrived but could not be understood:
// invalid JSON, missing fields or an unrecognized status code.
type ProtocolError struct {
	Op  string
	URL string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ServerReportedError is a job that finished with the error status.
type ServerReportedError struct {
	Code    int
	Message string
}

func (e *ServerReportedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job failed with status %d", e.Code)
	}
	return e.Message
}

// RenderError reports a renderer that failed or panicked on a completed
// payload. CorrelationID is set for panics and matches the logged stack.
type RenderError struct {
	CorrelationID string
	Err           error
}

func (e *RenderError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("render failed (correlation_id: %s): %v", e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ErrorHTML returns the escaped markup shown in a container for err.
func ErrorHTML(err error) string {
	return "<p>Server error: <pre>" + html.EscapeString(err.Error()) + "</pre></p>"
}
