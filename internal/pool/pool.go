package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/statusdeck/statusdeck/internal/retry"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("pool: closed")

const (
	defaultIdleTTL = 5 * time.Minute
	sweepDivisor   = 2
	minSweepPeriod = time.Second
)

// Key is the pooling fingerprint. Two configurations share a connection iff
// their Keys are equal: either the same named profile, or the same
// endpoint+credential+scope triple when no profile is set.
type Key struct {
	Profile    string
	Endpoint   string
	Credential string
	Scope      string
}

// Client is the minimal connection surface the pool manages. The concrete
// client type is supplied by the caller via the type parameter.
type Client interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Disconnect() error
}

// entry is one pooled connection. refs, lastUsed and err are guarded by the
// pool mutex; ready is closed once the initial connect has finished.
type entry[C Client] struct {
	client   C
	refs     int
	lastUsed time.Time
	ready    chan struct{}
	err      error
}

// Pool multiplexes many leases over a small set of live connections.
//
// Acquire and Release for the same Key are serialized by a single mutex, so
// two widgets appearing simultaneously with identical configuration can
// never race to create two underlying connections: the second caller waits
// for the first connect to finish and shares its client.
type Pool[C Client] struct {
	retryCfg retry.Config
	idleTTL  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[Key]*entry[C]
	closed  bool

	janitorOnce sync.Once
}

// New creates an empty pool. retryCfg is the standard backoff profile used
// for connection establishment; idleTTL <= 0 falls back to 5 minutes.
func New[C Client](retryCfg retry.Config, idleTTL time.Duration, logger *slog.Logger) *Pool[C] {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool[C]{
		retryCfg: retryCfg,
		idleTTL:  idleTTL,
		logger:   logger,
		entries:  make(map[Key]*entry[C]),
	}
}

// Acquire returns a leased, live client for the key, dialling a new one via
// dial when no pooled connection exists. Connection establishment runs
// through the retry executor with the pool's standard backoff profile.
//
// Every successful Acquire must be paired with exactly one Release.
func (p *Pool[C]) Acquire(ctx context.Context, key Key, dial func() C) (C, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		var zero C
		return zero, ErrClosed
	}
	if e, ok := p.entries[key]; ok {
		e.refs++
		ready := e.ready
		p.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			p.Release(key)
			var zero C
			return zero, ctx.Err()
		}

		// the connect failure path removes the entry before closing ready,
		// so a non-nil err means this lease died with the entry
		if e.err != nil {
			var zero C
			return zero, e.err
		}
		return e.client, nil
	}

	e := &entry[C]{
		client: dial(),
		refs:   1,
		ready:  make(chan struct{}),
	}
	p.entries[key] = e
	p.mu.Unlock()

	res := retry.Execute(ctx, p.retryCfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.client.Connect(ctx)
	}, nil)

	p.mu.Lock()
	if res.Err != nil {
		e.err = res.Err
		if p.entries[key] == e {
			delete(p.entries, key)
		}
	}
	close(e.ready)
	p.mu.Unlock()

	if res.Err != nil {
		p.logger.Warn("pooled connection failed",
			"endpoint", key.Endpoint,
			"profile", key.Profile,
			"attempts", res.Attempts,
			"error", res.Err)
		var zero C
		return zero, res.Err
	}

	p.logger.Debug("pooled connection established",
		"endpoint", key.Endpoint,
		"profile", key.Profile,
		"attempts", res.Attempts)
	return e.client, nil
}

// Release returns one lease for the key. When the last lease is returned the
// connection stays idle for quick re-acquisition until the janitor evicts
// it. Releasing an unknown key is a no-op.
func (p *Pool[C]) Release(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
	if e.refs == 0 {
		e.lastUsed = time.Now()
	}
}

// Leases returns the current lease count for the key, or 0 if no entry
// exists.
func (p *Pool[C]) Leases(key Key) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Size returns the number of pooled connections, leased or idle.
func (p *Pool[C]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// StartJanitor begins background eviction of idle connections. It is
// idempotent; the janitor runs until the context is cancelled.
func (p *Pool[C]) StartJanitor(ctx context.Context) {
	p.janitorOnce.Do(func() {
		period := p.idleTTL / sweepDivisor
		if period < minSweepPeriod {
			period = minSweepPeriod
		}

		go func() {
			ticker := time.NewTicker(period)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.evictIdle(time.Now())
				}
			}
		}()
	})
}

// evictIdle removes and disconnects entries idle longer than the TTL.
func (p *Pool[C]) evictIdle(now time.Time) {
	var evicted []*entry[C]

	p.mu.Lock()
	for key, e := range p.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) >= p.idleTTL {
			delete(p.entries, key)
			evicted = append(evicted, e)
			p.logger.Debug("evicting idle connection",
				"endpoint", key.Endpoint,
				"profile", key.Profile,
				"idle", now.Sub(e.lastUsed).String())
		}
	}
	p.mu.Unlock()

	// disconnect outside the lock; Disconnect may block briefly
	for _, e := range evicted {
		if err := e.client.Disconnect(); err != nil {
			p.logger.Warn("idle connection disconnect failed", "error", err)
		}
	}
}

// Close disconnects every pooled connection and empties the pool. Used on
// manager shutdown; the janitor goroutine stops separately when its context
// is cancelled.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	p.closed = true
	remaining := make([]*entry[C], 0, len(p.entries))
	for key, e := range p.entries {
		delete(p.entries, key)
		remaining = append(remaining, e)
	}
	p.mu.Unlock()

	for _, e := range remaining {
		select {
		case <-e.ready:
		default:
			// connect still in flight; skip, its entry is already removed
			continue
		}
		if e.err == nil {
			if err := e.client.Disconnect(); err != nil {
				p.logger.Warn("connection disconnect failed on close", "error", err)
			}
		}
	}
}
