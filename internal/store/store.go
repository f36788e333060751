package store

import "time"

// WidgetStatus is the storage representation of one widget's render state,
// optimized for JSON serialization (used by the REST API and SSE). It is
// decoupled from the manager's internal types to allow independent
// evolution.
type WidgetStatus struct {
	// WidgetID identifies the widget.
	WidgetID string `json:"widget_id"`

	// State is the display state (e.g., "ok", "retrying", "connection_lost").
	State string `json:"state"`

	// Label is the short status label, empty when no value has been
	// observed yet.
	Label string `json:"label,omitempty"`

	// Message is the user-facing error text, empty when the widget is
	// healthy.
	Message string `json:"message,omitempty"`

	// CheckedAt is the timestamp of the poll outcome behind this state.
	CheckedAt time.Time `json:"checked_at"`

	// Removed marks a deletion event on the subscription stream: the
	// widget disappeared and clients should drop it.
	Removed bool `json:"removed,omitempty"`
}

// Store defines the interface for storing and subscribing to widget render
// states.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a widget's render state and notifies all subscribers.
	// States are keyed by WidgetID, so subsequent updates replace previous
	// values.
	Update(status WidgetStatus)

	// Remove deletes a widget's state and notifies subscribers with a
	// removal event. Removing an unknown widget is a no-op.
	Remove(widgetID string)

	// GetAll returns all currently stored widget states.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []WidgetStatus

	// Subscribe returns a channel that receives state updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan WidgetStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan WidgetStatus)
}
