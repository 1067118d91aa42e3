// Package poller runs the asynchronous job state machine behind every
// widget.
//
// A widget in submit mode posts its criteria to a report endpoint, receives
// a job URL and polls it; a widget in direct mode polls its data endpoint
// with a fixed ts cursor. Both end in COMPLETE (the payload is handed to the
// widget's renderer exactly once), ERROR, or TIMEOUT when a max wait is set.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts and size limits
//   - [Job]: the per-widget state machine, one goroutine per widget
//   - [Runner]: supervises many jobs, shares a concurrency limit, supports
//     disposal and emits [Event] values on a channel
//   - [StatusCodes]: the configurable wire status mapping
//
// Users of the reportboard library should not need this package directly.
package poller
