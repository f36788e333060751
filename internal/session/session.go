package session

import (
	"context"
	"sync"
	"time"

	"github.com/statusdeck/statusdeck/internal/pool"
)

// Value is the last successfully observed remote value for a widget.
type Value struct {
	// Label is the short status label to display.
	Label string

	// UpdatedAt is when the value was observed.
	UpdatedAt time.Time
}

// Session is the runtime record for one live widget. Exactly one Session
// exists per widget id; it is created on widget-appear and deleted on
// widget-disappear.
//
// Sessions returned by the store are snapshots; mutation goes through the
// store's setters so all access stays serialized.
type Session[S any] struct {
	// WidgetID keys the session.
	WidgetID string

	// Settings is the last applied settings payload.
	Settings S

	// Generation increments on every (re)initialization and stop. In-flight
	// work captures the generation it was started under and discards its
	// result when the stored generation has moved on.
	Generation uint64

	// Failures counts consecutive failed polls. Reset on any successful
	// poll. This is distinct from the retry executor's per-call attempt
	// count: one poll may retry several times internally before counting
	// as a single failure here.
	Failures int

	// Initializing is set while an initialization is in flight. A newer
	// initialization supersedes the flight by advancing Generation; the
	// superseded one's EndInit then no-ops.
	Initializing bool

	// LastValue is the most recent successful poll result, nil before the
	// first success.
	LastValue *Value

	// LastError is the user-facing message of the most recent failure,
	// empty after a success.
	LastError string

	// HasLease reports whether LeaseKey holds a live pool lease.
	HasLease bool

	// LeaseKey is the pool fingerprint of the held lease.
	LeaseKey pool.Key

	cancelPoll context.CancelFunc
}

// PollScheduled reports whether a periodic poll is currently scheduled.
func (s Session[S]) PollScheduled() bool {
	return s.cancelPoll != nil
}

// Store holds one Session per widget id and serializes all access.
type Store[S any] struct {
	mu       sync.Mutex
	sessions map[string]*Session[S]
}

// NewStore creates an empty session store.
func NewStore[S any]() *Store[S] {
	return &Store[S]{sessions: make(map[string]*Session[S])}
}

// getOrCreateLocked returns the session for id, creating it with defaults.
func (st *Store[S]) getOrCreateLocked(id string) *Session[S] {
	s, ok := st.sessions[id]
	if !ok {
		s = &Session[S]{WidgetID: id}
		st.sessions[id] = s
	}
	return s
}

// GetOrCreate returns a snapshot of the session for id, creating it with
// defaults when absent.
func (st *Store[S]) GetOrCreate(id string) Session[S] {
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.getOrCreateLocked(id)
}

// Get returns a snapshot of the session for id, if it exists.
func (st *Store[S]) Get(id string) (Session[S], bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return *s, true
	}
	var zero Session[S]
	return zero, false
}

// Remove deletes the session for id. No-op when absent.
func (st *Store[S]) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// IDs returns the ids of all live sessions.
func (st *Store[S]) IDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (st *Store[S]) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// SetSettings records the last applied settings for id.
func (st *Store[S]) SetSettings(id string, settings S) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreateLocked(id).Settings = settings
}

// BeginInit claims the initialization slot: it marks the session
// initializing, advances the generation, and returns the new generation.
// An earlier initialization still in flight is superseded, not waited for;
// its generation-guarded writes and its EndInit become no-ops.
func (st *Store[S]) BeginInit(id string) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.getOrCreateLocked(id)
	s.Initializing = true
	s.Generation++
	return s.Generation
}

// EndInit clears the Initializing flag, but only when the session is still
// at the given generation. A superseded initialization must not release the
// slot its successor holds.
func (st *Store[S]) EndInit(id string, generation uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && s.Generation == generation {
		s.Initializing = false
	}
}

// NextGeneration increments and returns the session's generation counter.
func (st *Store[S]) NextGeneration(id string) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.getOrCreateLocked(id)
	s.Generation++
	return s.Generation
}

// GenerationMatches reports whether the session still exists and is at the
// given generation. Stale in-flight results are discarded on a false return.
func (st *Store[S]) GenerationMatches(id string, generation uint64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return ok && s.Generation == generation
}

// Mutate runs fn on the session under the store lock, but only when the
// session still exists at the given generation. Returns false, without
// running fn, when the session is gone or has been reinitialized since.
// This is how async work applies its outcome without resurrecting a
// removed session or clobbering a newer one.
func (st *Store[S]) Mutate(id string, generation uint64, fn func(*Session[S])) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok || s.Generation != generation {
		return false
	}
	fn(s)
	return true
}

// SetPollCancel records the cancel handle for the session's periodic poll.
// Any previously stored handle is cancelled first, so a poll can never leak.
func (st *Store[S]) SetPollCancel(id string, cancel context.CancelFunc) {
	st.mu.Lock()
	s := st.getOrCreateLocked(id)
	prev := s.cancelPoll
	s.cancelPoll = cancel
	st.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// SetPollCancelIfCurrent stores the cancel handle only when the session
// still exists at the given generation, cancelling any previous handle.
// Returns false when the session was removed or reinitialized meanwhile; the
// caller then cancels the poll it was about to register.
func (st *Store[S]) SetPollCancelIfCurrent(id string, generation uint64, cancel context.CancelFunc) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok || s.Generation != generation {
		st.mu.Unlock()
		return false
	}
	prev := s.cancelPoll
	s.cancelPoll = cancel
	st.mu.Unlock()

	if prev != nil {
		prev()
	}
	return true
}

// ClearPollCancel removes and returns the stored cancel handle. The caller
// invokes it outside the store's lock. Returns nil when no poll is
// scheduled or the session is gone.
func (st *Store[S]) ClearPollCancel(id string) context.CancelFunc {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil
	}
	cancel := s.cancelPoll
	s.cancelPoll = nil
	return cancel
}

// IncrementFailures bumps the consecutive-failure counter and returns the
// new total.
func (st *Store[S]) IncrementFailures(id string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.getOrCreateLocked(id)
	s.Failures++
	return s.Failures
}

// ResetFailures zeroes the consecutive-failure counter. No-op when absent.
func (st *Store[S]) ResetFailures(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.Failures = 0
	}
}

// RecordValue stores a successful poll result and clears the last error.
func (st *Store[S]) RecordValue(id string, v Value) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.getOrCreateLocked(id)
	s.LastValue = &v
	s.LastError = ""
}

// RecordError stores the user-facing message of a failed poll.
func (st *Store[S]) RecordError(id string, message string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreateLocked(id).LastError = message
}

// SetLease records the pool lease held on behalf of the session.
func (st *Store[S]) SetLease(id string, key pool.Key) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.getOrCreateLocked(id)
	s.HasLease = true
	s.LeaseKey = key
}

// SetLeaseIfCurrent records the lease only when the session still exists at
// the given generation. Returns false otherwise; the caller then releases
// the lease it was about to record.
func (st *Store[S]) SetLeaseIfCurrent(id string, generation uint64, key pool.Key) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok || s.Generation != generation {
		return false
	}
	s.HasLease = true
	s.LeaseKey = key
	return true
}

// ClearLease removes the recorded lease and returns its key. The second
// return is false when no lease was held, making release exactly-once even
// if stop paths overlap.
func (st *Store[S]) ClearLease(id string) (pool.Key, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok || !s.HasLease {
		return pool.Key{}, false
	}
	s.HasLease = false
	key := s.LeaseKey
	s.LeaseKey = pool.Key{}
	return key, true
}
