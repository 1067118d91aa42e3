package reportboard

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/jpalmerr/reportboard/internal/poller"
)

// State is the lifecycle state of a widget.
//
// A widget moves constructing -> submitting -> polling, then ends in exactly
// one of [StateComplete], [StateError] or [StateTimeout]. Direct-poll
// widgets skip submitting.
type State string

const (
	StateConstructing State = "constructing"
	StateSubmitting   State = "submitting"
	StatePolling      State = "polling"
	StateComplete     State = "complete"
	StateError        State = "error"

	// StateTimeout is reached only when [WithMaxWait] is set.
	StateTimeout State = "timeout"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateTimeout
}

// StatusCodes maps the integer "status" field of poll replies to job states.
//
// Complete and Error are required and must differ. When Pending and Running
// are both empty, every other integer means the job is still going. When
// either is set, a code outside all four sets fails the widget with a
// protocol error.
type StatusCodes struct {
	Complete int
	Error    int
	Pending  []int
	Running  []int
}

var (
	// PortalStatusCodes: 3 complete, 4 error, anything else pending.
	PortalStatusCodes = StatusCodes{Complete: 3, Error: 4}

	// LegacyStatusCodes: 2 complete, 3 error, anything else pending.
	LegacyStatusCodes = StatusCodes{Complete: 2, Error: 3}
)

// Validate reports whether the codes are unambiguous.
func (c StatusCodes) Validate() error {
	return c.toPoller().Validate()
}

func (c StatusCodes) clone() StatusCodes {
	return StatusCodes{
		Complete: c.Complete,
		Error:    c.Error,
		Pending:  slices.Clone(c.Pending),
		Running:  slices.Clone(c.Running),
	}
}

func (c StatusCodes) toPoller() poller.StatusCodes {
	return poller.StatusCodes{
		Complete: c.Complete,
		Error:    c.Error,
		Pending:  slices.Clone(c.Pending),
		Running:  slices.Clone(c.Running),
	}
}

// WidgetResult is one observable transition of a widget, delivered to
// callbacks registered with [WithStatusCallback].
type WidgetResult struct {
	// WidgetID is the container element id.
	WidgetID string

	Title string

	// URL is the configured widget URL; JobURL is the URL being polled.
	URL    string
	JobURL string

	Labels map[string]string

	State State

	// Progress is the last progress reported by the server, 0..100.
	Progress int

	// HTML is the container content: rendered output on completion, escaped
	// error markup on failure, empty otherwise.
	HTML string

	// Payload is a copy of the completed job's data.
	Payload json.RawMessage

	// Err is set on [StateError] and [StateTimeout]. It unwraps to the
	// transport, protocol, server or render failure.
	Err error

	// Polls counts poll requests issued so far.
	Polls int

	At time.Time
}
