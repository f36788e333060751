package statusdeck

import (
	"context"
	"time"
)

// EntityStatus is the result of one remote fetch: the current status of the
// tracked entity (a pipeline, issue, board, ...) reduced to a short label.
type EntityStatus struct {
	// EntityID identifies the fetched entity.
	EntityID string

	// Label is the short status text to display.
	Label string

	// Raw is the response payload the label was extracted from, kept for
	// debugging. May be nil.
	Raw []byte

	// FetchedAt is when the status was fetched.
	FetchedAt time.Time
}

// RemoteClient is the connection to one remote API. The manager consumes
// this interface; it never implements wire-level calls itself.
//
// Implementations must be safe for concurrent use: several widgets sharing
// one pooled connection fetch through the same client.
type RemoteClient interface {
	// Connect establishes the connection. Called once per pooled
	// connection, inside the retry executor's standard backoff profile.
	Connect(ctx context.Context) error

	// IsConnected reports whether the connection is currently live.
	IsConnected() bool

	// Disconnect tears the connection down. Called when the pool evicts
	// an idle connection or shuts down.
	Disconnect() error

	// FetchEntityStatus fetches the current status of an entity. It is
	// the operation run through the retry executor on every poll tick.
	FetchEntityStatus(ctx context.Context, entityID string) (EntityStatus, error)
}

// ClientFactory builds a RemoteClient for a connection configuration. The
// factory is called at most once per pooled connection; widgets with equal
// configuration fingerprints share the resulting client.
type ClientFactory func(cfg ConnectionConfig) RemoteClient
