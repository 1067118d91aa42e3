// Package server serves the dashboard page and its HTTP API.
//
//   - Dashboard: the embedded page at "/", which lays out one container per
//     widget and fills it from the stream
//   - REST API: "/api/widgets" snapshot, per-widget lookup and disposal,
//     and "/api/resize" for viewport changes
//   - Server-Sent Events: view changes at "/api/sse"
//
// The server shuts down gracefully when its context is cancelled.
package server
