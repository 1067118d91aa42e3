package store

import "time"

// WidgetView is the stored state of one widget container.
//
// WidgetView is the storage representation used by the REST API and SSE.
// It is decoupled from the poller's internal types.
type WidgetView struct {
	// ID is the container element id.
	ID string `json:"id"`

	// Order is the position of the widget on the board.
	Order int `json:"order"`

	Title  string            `json:"title"`
	URL    string            `json:"url"`
	Labels map[string]string `json:"labels"`

	// State is the widget lifecycle state (e.g. "polling", "complete").
	State string `json:"state"`

	// Loading is true while the loading indicator should be shown.
	Loading bool `json:"loading"`

	// Progress is the last known job progress, 0..100.
	Progress int `json:"progress"`

	// HTML is the container content: rendered output or escaped error markup.
	HTML string `json:"html"`

	// Error is the error message for failed widgets.
	Error *string `json:"error"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Polls counts poll requests issued so far.
	Polls int `json:"polls"`

	UpdatedAt time.Time `json:"updated_at"`

	// Removed is set only on the notification sent by Remove.
	Removed bool `json:"removed,omitempty"`
}

// Store defines storage and subscription for widget views.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a view keyed by ID and notifies all subscribers.
	Update(view WidgetView)

	// Get returns the view for id.
	Get(id string) (WidgetView, bool)

	// GetAll returns a snapshot of all views ordered by Order, then ID.
	GetAll() []WidgetView

	// Remove deletes the view for id and notifies subscribers with a view
	// that has Removed set. Unknown ids are ignored.
	Remove(id string) bool

	// Subscribe returns a buffered channel of updates. Slow consumers may
	// miss updates. Callers must Unsubscribe when done.
	Subscribe() <-chan WidgetView

	// Unsubscribe removes a subscription and closes the channel.
	Unsubscribe(ch <-chan WidgetView)
}
