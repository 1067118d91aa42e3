package store

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Updates are sent to subscribers non-blocking; if a subscriber's buffer is
// full the update is dropped for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	views       map[string]WidgetView
	subscribers map[chan WidgetView]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		views:       make(map[string]WidgetView),
		subscribers: make(map[chan WidgetView]struct{}),
	}
}

// Update stores view under its ID and notifies subscribers.
func (m *MemoryStore) Update(view WidgetView) {
	view.Removed = false
	m.mu.Lock()
	m.views[view.ID] = view
	m.mu.Unlock()

	m.notifySubscribers(view)
}

// Get returns the view stored for id.
func (m *MemoryStore) Get(id string) (WidgetView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view, ok := m.views[id]
	return view, ok
}

// GetAll returns a snapshot of all views ordered by Order, then ID.
func (m *MemoryStore) GetAll() []WidgetView {
	m.mu.RLock()
	views := make([]WidgetView, 0, len(m.views))
	for _, view := range m.views {
		views = append(views, view)
	}
	m.mu.RUnlock()

	slices.SortFunc(views, func(a, b WidgetView) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views
}

// Remove deletes the view for id and tells subscribers it is gone.
func (m *MemoryStore) Remove(id string) bool {
	m.mu.Lock()
	_, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()

	if ok {
		m.notifySubscribers(WidgetView{ID: id, Removed: true, UpdatedAt: time.Now()})
	}
	return ok
}

// Subscribe creates a subscription with a buffer of 100 updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan WidgetView {
	ch := make(chan WidgetView, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan WidgetView) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(view WidgetView) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- view:
		default:
			// slow subscriber, drop
		}
	}
}
