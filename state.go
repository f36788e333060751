package statusdeck

import "time"

// WidgetState represents the display state of a widget.
//
// WidgetState is a string type that can hold one of five predefined values.
// Using a string type allows for easy JSON serialization and human-readable
// logging while maintaining type safety through the defined constants.
type WidgetState string

const (
	// StateOK indicates the last poll succeeded and Label holds the
	// current remote value.
	StateOK WidgetState = "ok"

	// StateRetrying indicates the last poll failed but polling continues;
	// Label still holds the last known value, if any.
	StateRetrying WidgetState = "retrying"

	// StateError indicates a durable failure (authentication, missing
	// resource) that retrying will not fix.
	StateError WidgetState = "error"

	// StateAwaitingConfig indicates the widget's settings are invalid or
	// incomplete; polling is blocked until they are corrected.
	StateAwaitingConfig WidgetState = "awaiting_configuration"

	// StateConnectionLost indicates too many consecutive polls failed and
	// polling has stopped; the widget must be reconfigured or reappear to
	// recover.
	StateConnectionLost WidgetState = "connection_lost"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s WidgetState) String() string {
	return string(s)
}

// Terminal reports whether the state will not self-recover without external
// intervention (reconfiguration or reappearance).
func (s WidgetState) Terminal() bool {
	return s == StateError || s == StateAwaitingConfig || s == StateConnectionLost
}

// RenderState is what the display layer receives after each poll outcome.
//
// Message is always a stable, user-facing string produced by the error
// classifier; raw error text never reaches the display layer.
type RenderState struct {
	// State is the widget's display state.
	State WidgetState

	// Label is the short status label: the current remote value for
	// StateOK, or the last known value while retrying. Empty when no
	// value has been observed yet.
	Label string

	// Message is the user-facing error text, empty for StateOK.
	Message string

	// CheckedAt is when the underlying poll outcome was produced.
	CheckedAt time.Time
}

// DisplayRenderer receives render updates for widgets. Render is
// fire-and-forget: it is called by the manager after each successful or
// failed poll, and a panicking or misbehaving renderer never affects
// polling state.
type DisplayRenderer interface {
	Render(widgetID string, state RenderState)
}

// RenderFunc adapts a function to the [DisplayRenderer] interface.
type RenderFunc func(widgetID string, state RenderState)

// Render implements [DisplayRenderer].
func (f RenderFunc) Render(widgetID string, state RenderState) {
	f(widgetID, state)
}
