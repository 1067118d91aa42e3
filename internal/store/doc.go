// Package store holds the current view of every widget container and fans
// changes out to subscribers.
//
// The main components are:
//
//   - [Store]: interface for storage and subscription
//   - [MemoryStore]: in-memory implementation with non-blocking pub/sub
//   - [WidgetView]: what a container currently shows, including the loading
//     indicator and progress
//
// Users of the reportboard library should not need this package directly.
package store
