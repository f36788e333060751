package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. States are keyed by widget id, with new
// states replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the entire
// system.
type MemoryStore struct {
	mu          sync.RWMutex
	widgets     map[string]WidgetStatus
	subscribers map[chan WidgetStatus]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		widgets:     make(map[string]WidgetStatus),
		subscribers: make(map[chan WidgetStatus]struct{}),
	}
}

// Update stores a [WidgetStatus] and notifies all subscribers.
//
// The state is stored using its WidgetID as the key. Subsequent updates
// with the same id replace the previous value. All subscribers receive the
// update (unless their buffer is full).
func (m *MemoryStore) Update(status WidgetStatus) {
	m.mu.Lock()
	m.widgets[status.WidgetID] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
}

// Remove deletes a widget's state and pushes a removal event to all
// subscribers. Removing an unknown widget is a no-op.
func (m *MemoryStore) Remove(widgetID string) {
	m.mu.Lock()
	_, existed := m.widgets[widgetID]
	delete(m.widgets, widgetID)
	m.mu.Unlock()

	if existed {
		m.notifySubscribers(WidgetStatus{WidgetID: widgetID, Removed: true})
	}
}

// GetAll returns a snapshot of all currently stored widget states.
//
// The returned slice is a copy; modifications do not affect the store.
// Order is not guaranteed.
func (m *MemoryStore) GetAll() []WidgetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]WidgetStatus, 0, len(m.widgets))
	for _, status := range m.widgets {
		states = append(states, status)
	}
	return states
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource
// leaks.
func (m *MemoryStore) Subscribe() <-chan WidgetStatus {
	ch := make(chan WidgetStatus, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown
// channel.
func (m *MemoryStore) Unsubscribe(ch <-chan WidgetStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the state to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the
// message is dropped for that subscriber rather than blocking the update
// path.
func (m *MemoryStore) notifySubscribers(status WidgetStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
