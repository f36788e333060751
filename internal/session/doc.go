// Package session owns the per-widget runtime state: the poll cancel handle,
// the consecutive-failure counter, the generation counter used to discard
// stale in-flight results, the last observed remote value, and the last
// applied settings.
//
// The store is intentionally dumb: it holds state and keeps it consistent
// under concurrent access, but decides no policy. Every operation is safe to
// call for a widget id that does not exist yet (auto-create with defaults)
// or that has already been removed (no-op).
//
// The package also provides [Debouncer], a keyed trailing-edge debouncer
// that isolates the cancel-then-reschedule race from the orchestrator.
package session
