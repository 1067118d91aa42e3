package reportboard

import "github.com/jpalmerr/reportboard/internal/poller"

// Failure kinds carried by [WidgetResult.Err]. Use errors.As to inspect them.
type (
	// TransportError is a network failure or non-2xx HTTP status.
	TransportError = poller.TransportError

	// ProtocolError is a reply the widget could not interpret, such as a
	// missing joburl or a non-integer status.
	ProtocolError = poller.ProtocolError

	// ServerReportedError is a reply carrying the error status code.
	ServerReportedError = poller.ServerReportedError

	// RenderError is a renderer failure or panic on completion.
	RenderError = poller.RenderError
)

// ErrMaxWaitExceeded is the cause of [StateTimeout].
var ErrMaxWaitExceeded = poller.ErrMaxWaitExceeded
