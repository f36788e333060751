package statusdeck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statusdeck/statusdeck/internal/pool"
	"github.com/statusdeck/statusdeck/internal/retry"
	"github.com/statusdeck/statusdeck/internal/session"
)

const (
	defaultPollInterval    = 60 * time.Second
	minPollInterval        = 1 * time.Second
	maxPollInterval        = 1 * time.Hour
	defaultMaxPollFailures = 3
	defaultDebounceDelay   = 500 * time.Millisecond
	defaultIdleTTL         = 5 * time.Minute
)

// Manager is the polling lifecycle orchestrator.
//
// Manager owns the full lifecycle of per-widget polling sessions: it reacts
// to host events, validates settings, leases pooled connections, schedules
// periodic polls through the retry executor, and renders every outcome via
// the configured [DisplayRenderer]. It is created with [New], started with
// [Manager.Start], and shut down with [Manager.Stop].
//
// All host-event handlers are safe for concurrent use and return quickly;
// network work happens on background goroutines. Operations on a single
// widget id are totally ordered; operations across widget ids are
// independent.
type Manager struct {
	factory   ClientFactory
	renderer  DisplayRenderer
	validator ConfigValidator
	logger    *slog.Logger

	retryCfg        retry.Config
	retryObserver   RetryObserver
	maxPollFailures int
	defaultInterval time.Duration

	sessions *session.Store[Settings]
	debounce *session.Debouncer
	pool     *pool.Pool[RemoteClient]

	// lifeMu serializes lifecycle transitions (init, reconfigure, stop) so
	// host events for one widget cannot interleave mid-transition. Network
	// calls never run under it.
	lifeMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// New creates a [Manager] with the given options.
//
// A client factory is required via [WithClientFactory]. Other options have
// sensible defaults:
//   - Poll interval: 60 seconds, clamped to [1s, 1h]
//   - Max consecutive poll failures: 3
//   - Settings debounce: 500ms
//   - Idle connection TTL: 5 minutes
//   - Retry: 5 attempts, 1s base delay, 30s max delay
func New(opts ...Option) (*Manager, error) {
	cfg := &managerConfig{
		validator:       ValidatorFunc(ValidateSettings),
		defaultInterval: defaultPollInterval,
		maxPollFailures: defaultMaxPollFailures,
		debounceDelay:   defaultDebounceDelay,
		idleTTL:         defaultIdleTTL,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.factory == nil {
		return nil, errors.New("a client factory is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.renderer
	if renderer == nil {
		renderer = debugRenderer{logger: logger}
	}

	retryCfg := retry.DefaultConfig()
	if cfg.maxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.maxAttempts
		retryCfg.Backoff.Base = cfg.baseDelay
		retryCfg.Backoff.Max = cfg.maxDelay
	}

	return &Manager{
		factory:         cfg.factory,
		renderer:        renderer,
		validator:       cfg.validator,
		logger:          logger,
		retryCfg:        retryCfg,
		retryObserver:   cfg.retryObserver,
		maxPollFailures: cfg.maxPollFailures,
		defaultInterval: cfg.defaultInterval,
		sessions:        session.NewStore[Settings](),
		debounce:        session.NewDebouncer(cfg.debounceDelay),
		pool:            pool.New[RemoteClient](retryCfg, cfg.idleTTL, logger),
	}, nil
}

// Start makes the manager ready to accept host events and begins background
// eviction of idle pooled connections.
//
// Start is non-blocking and idempotent. The provided context bounds all
// polling work: cancelling it stops every session's timers and in-flight
// calls, though [Manager.Stop] should still be called to release pooled
// connections. If ctx is nil, context.Background() is used.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.pool.StartJanitor(m.ctx)
	m.started = true
	m.logger.Info("statusdeck manager started",
		"max_poll_failures", m.maxPollFailures,
		"default_interval", m.defaultInterval.String())
}

// Stop shuts the manager down: it cancels all timers and in-flight work,
// stops every session, and disconnects all pooled connections.
//
// Stop is idempotent and safe to call multiple times or before Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.debounce.Stop()
	for _, id := range m.sessions.IDs() {
		m.stopWidget(id)
	}
	m.pool.Close()
	m.logger.Info("statusdeck manager stopped")
}

// WidgetWillAppear handles a widget-appear host event. Settings are
// validated synchronously; connection and first fetch happen on a
// background goroutine.
func (m *Manager) WidgetWillAppear(widgetID string, s Settings) {
	ctx := m.runCtx()
	if ctx == nil {
		return
	}
	m.logger.Debug("widget appearing", "widget_id", widgetID)

	gen, ok := m.startInit(widgetID, s)
	if !ok {
		return
	}
	go m.connectAndPoll(ctx, widgetID, gen, s)
}

// WidgetWillDisappear handles a widget-disappear host event: it cancels the
// widget's timers, releases its pooled connection lease, and deletes its
// session. Safe to call multiple times; the second call is a no-op.
func (m *Manager) WidgetWillDisappear(widgetID string) {
	if m.runCtx() == nil {
		return
	}
	m.stopWidget(widgetID)
}

// SettingsChanged handles a settings-changed host event. Changes are
// debounced per widget id (trailing edge), so rapid successive edits
// collapse into one reinitialization using the last payload. A change that
// only touches display fields re-renders the cached value without
// reconnecting.
func (m *Manager) SettingsChanged(widgetID string, s Settings) {
	ctx := m.runCtx()
	if ctx == nil {
		return
	}
	m.logger.Debug("settings change queued", "widget_id", widgetID)
	m.debounce.Schedule(widgetID, func() {
		m.applySettings(ctx, widgetID, s)
	})
}

// ButtonPressed handles a button-pressed host event with an immediate
// out-of-band refresh of the widget. Ignored when the widget is not
// currently connected.
func (m *Manager) ButtonPressed(widgetID string) {
	ctx := m.runCtx()
	if ctx == nil {
		return
	}
	go m.refreshWidget(ctx, widgetID)
}

// Sessions returns the number of live widget sessions.
func (m *Manager) Sessions() int {
	return m.sessions.Len()
}

// Connections returns the number of pooled connections, leased or idle.
func (m *Manager) Connections() int {
	return m.pool.Size()
}

// runCtx returns the polling context, or nil (with a warning) when the
// manager is not running.
func (m *Manager) runCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		m.logger.Warn("host event ignored; manager not running")
		return nil
	}
	return m.ctx
}

// startInit validates settings and claims the session's initialization
// slot. It returns the new generation and true when the caller should
// proceed to connect. Invalid settings render a terminal
// awaiting-configuration state and block polling entirely.
func (m *Manager) startInit(widgetID string, s Settings) (uint64, bool) {
	if !m.checkSettings(widgetID, s) {
		return 0, false
	}
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.claimInit(widgetID, s), true
}

// checkSettings validates a settings payload. Invalid settings halt any
// running poll and render a terminal awaiting-configuration state.
func (m *Manager) checkSettings(widgetID string, s Settings) bool {
	res := m.validator.Validate(s)
	for _, w := range res.Warnings {
		m.logger.Warn("settings warning", "widget_id", widgetID, "warning", w)
	}
	if res.IsValid {
		return true
	}
	m.lifeMu.Lock()
	m.haltPolling(widgetID)
	m.sessions.SetSettings(widgetID, s)
	m.lifeMu.Unlock()

	msg := strings.Join(res.Errors, "; ")
	m.logger.Info("widget awaiting configuration", "widget_id", widgetID, "errors", msg)
	m.render(widgetID, RenderState{State: StateAwaitingConfig, Message: msg, CheckedAt: time.Now()})
	return false
}

// claimInit supersedes whatever the widget is doing now and claims the init
// slot for a new run: it cancels the running poll, releases the held lease,
// and advances the generation so any in-flight connect or fetch discards
// its result. A re-sent widget-appear therefore never leaks the previous
// lease, and a settings change landing mid-connect takes over instead of
// being dropped. Callers hold lifeMu.
func (m *Manager) claimInit(widgetID string, s Settings) uint64 {
	m.haltPolling(widgetID)
	gen := m.sessions.BeginInit(widgetID)
	m.sessions.SetSettings(widgetID, s)
	m.sessions.ResetFailures(widgetID)
	return gen
}

// connectAndPoll acquires a pooled connection, runs the first fetch, and
// schedules the periodic poll. It runs on a background goroutine; every
// state mutation is generation-guarded so a widget that disappeared or was
// reconfigured mid-flight discards this work instead of applying it.
func (m *Manager) connectAndPoll(ctx context.Context, widgetID string, gen uint64, s Settings) {
	defer m.sessions.EndInit(widgetID, gen)

	key := s.Connection.fingerprint()
	client, err := m.pool.Acquire(ctx, key, func() RemoteClient {
		return m.factory(s.Connection)
	})
	if err != nil {
		m.handlePollFailure(widgetID, gen, err)
		m.scheduleReconnect(ctx, widgetID, gen, s)
		return
	}
	if !m.sessions.SetLeaseIfCurrent(widgetID, gen, key) {
		m.pool.Release(key)
		m.logger.Debug("discarding connection for superseded session", "widget_id", widgetID)
		return
	}

	// first fetch happens immediately
	m.pollOnce(ctx, widgetID, gen, client, s.EntityID)

	snap, ok := m.sessions.Get(widgetID)
	if !ok || snap.Generation != gen || snap.Failures >= m.maxPollFailures {
		return
	}
	m.startPollLoop(ctx, widgetID, gen, client, s.EntityID, clampInterval(s.PollInterval, m.defaultInterval))
}

// startPollLoop schedules the periodic poll for the session.
func (m *Manager) startPollLoop(ctx context.Context, widgetID string, gen uint64, client RemoteClient, entityID string, interval time.Duration) {
	loopCtx, cancel := context.WithCancel(ctx)
	if !m.sessions.SetPollCancelIfCurrent(widgetID, gen, cancel) {
		cancel()
		return
	}
	m.logger.Debug("poll scheduled", "widget_id", widgetID, "interval", interval.String())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if !m.sessions.GenerationMatches(widgetID, gen) {
					return
				}
				m.pollOnce(loopCtx, widgetID, gen, client, entityID)
			}
		}
	}()
}

// scheduleReconnect arms a one-shot timer that re-runs the connect path
// after the widget's poll interval. Connection-acquire failures happen
// before the regular poll loop exists, so without this the widget would sit
// in a transient state with nothing left to drive it.
func (m *Manager) scheduleReconnect(ctx context.Context, widgetID string, gen uint64, s Settings) {
	snap, ok := m.sessions.Get(widgetID)
	if !ok || snap.Generation != gen || snap.Failures >= m.maxPollFailures {
		return
	}
	delay := clampInterval(s.PollInterval, m.defaultInterval)
	waitCtx, cancel := context.WithCancel(ctx)
	if !m.sessions.SetPollCancelIfCurrent(widgetID, gen, cancel) {
		cancel()
		return
	}
	m.logger.Debug("reconnect scheduled", "widget_id", widgetID, "delay", delay.String())

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-waitCtx.Done():
			return
		case <-timer.C:
			if !m.sessions.GenerationMatches(widgetID, gen) {
				return
			}
			// the parent context, not waitCtx: a later scheduling
			// cancels waitCtx and must not kill the new attempt
			m.connectAndPoll(ctx, widgetID, gen, s)
		}
	}()
}

// pollOnce runs one poll through the retry executor and applies the
// outcome.
func (m *Manager) pollOnce(ctx context.Context, widgetID string, gen uint64, client RemoteClient, entityID string) {
	pollID := uuid.NewString()
	m.logger.Debug("polling", "widget_id", widgetID, "entity", entityID, "poll_id", pollID)

	res := retry.Execute(ctx, m.retryCfg, func(ctx context.Context) (EntityStatus, error) {
		return client.FetchEntityStatus(ctx, entityID)
	}, retryLogger{m: m, widgetID: widgetID})

	if ctx.Err() != nil && res.Err != nil {
		// shutdown or supersession, not a remote failure
		m.logger.Debug("poll cancelled", "widget_id", widgetID, "poll_id", pollID)
		return
	}

	if res.Err == nil {
		status := res.Value
		applied := m.sessions.Mutate(widgetID, gen, func(s *session.Session[Settings]) {
			s.Failures = 0
			s.LastValue = &session.Value{Label: status.Label, UpdatedAt: status.FetchedAt}
			s.LastError = ""
		})
		if !applied {
			m.logger.Debug("discarding stale poll result", "widget_id", widgetID, "poll_id", pollID)
			return
		}
		m.logger.Debug("poll succeeded",
			"widget_id", widgetID, "poll_id", pollID,
			"attempts", res.Attempts, "label", status.Label)
		m.render(widgetID, RenderState{State: StateOK, Label: status.Label, CheckedAt: status.FetchedAt})
		return
	}

	m.handlePollFailure(widgetID, gen, res.Err)
}

// handlePollFailure applies one failed poll (or failed connection acquire)
// to the session: it bumps the consecutive-failure counter and either
// surfaces a transient retrying/error state or, once the counter crosses
// the maximum, stops the timer and surfaces a terminal connection-lost
// state.
func (m *Manager) handlePollFailure(widgetID string, gen uint64, err error) {
	msg := retry.DisplayMessage(err)

	var failures int
	var lastLabel string
	applied := m.sessions.Mutate(widgetID, gen, func(s *session.Session[Settings]) {
		s.Failures++
		s.LastError = msg
		failures = s.Failures
		if s.LastValue != nil {
			lastLabel = s.LastValue.Label
		}
	})
	if !applied {
		m.logger.Debug("discarding stale poll failure", "widget_id", widgetID)
		return
	}

	m.logger.Warn("poll failed",
		"widget_id", widgetID,
		"consecutive_failures", failures,
		"error", err)

	if failures >= m.maxPollFailures {
		if cancel := m.sessions.ClearPollCancel(widgetID); cancel != nil {
			cancel()
		}
		m.logger.Info("connection lost, polling stopped", "widget_id", widgetID, "failures", failures)
		m.render(widgetID, RenderState{State: StateConnectionLost, Label: lastLabel, Message: msg, CheckedAt: time.Now()})
		return
	}

	state := StateRetrying
	if !retry.IsRetryable(err) {
		state = StateError
	}
	m.render(widgetID, RenderState{State: state, Label: lastLabel, Message: msg, CheckedAt: time.Now()})
}

// applySettings is the debounced tail of SettingsChanged. A change for a
// widget with no session is dropped: sessions are created by widget-appear
// only, and a debounce callback racing widget-disappear must not resurrect
// the widget it was queued for.
func (m *Manager) applySettings(ctx context.Context, widgetID string, s Settings) {
	m.lifeMu.Lock()
	old, exists := m.sessions.Get(widgetID)
	if !exists {
		m.lifeMu.Unlock()
		m.logger.Debug("settings change for absent widget dropped", "widget_id", widgetID)
		return
	}
	if old.HasLease && old.PollScheduled() && old.Settings.pollRelevantEqual(s) {
		m.sessions.SetSettings(widgetID, s)
		snap, _ := m.sessions.Get(widgetID)
		m.lifeMu.Unlock()

		m.logger.Debug("display-only settings change, keeping connection", "widget_id", widgetID)
		m.renderCached(widgetID, snap)
		return
	}
	m.lifeMu.Unlock()

	if !m.checkSettings(widgetID, s) {
		return
	}

	m.lifeMu.Lock()
	if _, ok := m.sessions.Get(widgetID); !ok {
		m.lifeMu.Unlock()
		return
	}
	gen := m.claimInit(widgetID, s)
	m.lifeMu.Unlock()

	m.logger.Info("settings changed, reinitializing", "widget_id", widgetID)
	// already off the host event path; connect inline
	m.connectAndPoll(ctx, widgetID, gen, s)
}

// refreshWidget performs one immediate out-of-band poll for the widget.
func (m *Manager) refreshWidget(ctx context.Context, widgetID string) {
	snap, ok := m.sessions.Get(widgetID)
	if !ok || !snap.HasLease {
		m.logger.Debug("refresh ignored; widget not connected", "widget_id", widgetID)
		return
	}
	s := snap.Settings

	key := s.Connection.fingerprint()
	client, err := m.pool.Acquire(ctx, key, func() RemoteClient {
		return m.factory(s.Connection)
	})
	if err != nil {
		m.handlePollFailure(widgetID, snap.Generation, err)
		return
	}
	defer m.pool.Release(key)

	m.logger.Debug("manual refresh", "widget_id", widgetID)
	m.pollOnce(ctx, widgetID, snap.Generation, client, s.EntityID)
}

// stopWidget tears a widget's session down exactly once.
func (m *Manager) stopWidget(widgetID string) {
	m.debounce.Cancel(widgetID)

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if _, ok := m.sessions.Get(widgetID); !ok {
		m.logger.Debug("widget already stopped", "widget_id", widgetID)
		return
	}
	m.haltPolling(widgetID)
	m.sessions.Remove(widgetID)
	m.logger.Info("widget stopped", "widget_id", widgetID)
}

// haltPolling cancels the widget's periodic poll and releases its pool
// lease, keeping the session record. In-flight work is superseded by
// bumping the generation. Callers hold lifeMu.
func (m *Manager) haltPolling(widgetID string) {
	if _, ok := m.sessions.Get(widgetID); !ok {
		return
	}
	m.sessions.NextGeneration(widgetID)
	if cancel := m.sessions.ClearPollCancel(widgetID); cancel != nil {
		cancel()
	}
	if key, held := m.sessions.ClearLease(widgetID); held {
		m.pool.Release(key)
	}
}

// renderCached re-renders the widget's last known state without polling.
func (m *Manager) renderCached(widgetID string, snap session.Session[Settings]) {
	state := RenderState{State: StateOK, CheckedAt: time.Now()}
	switch {
	case snap.LastValue != nil:
		state.Label = snap.LastValue.Label
		state.CheckedAt = snap.LastValue.UpdatedAt
	case snap.LastError != "":
		state.State = StateRetrying
		state.Message = snap.LastError
	}
	m.render(widgetID, state)
}

// render delivers a render update with panic recovery. A panicking renderer
// is logged with a correlation ID and never affects polling state.
func (m *Manager) render(widgetID string, state RenderState) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("display renderer panicked",
				"correlation_id", correlationID,
				"widget_id", widgetID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
		}
	}()
	m.renderer.Render(widgetID, state)
}

// clampInterval resolves and clamps a widget's poll interval.
func clampInterval(d, fallback time.Duration) time.Duration {
	if d == 0 {
		d = fallback
	}
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}

// retryLogger bridges the retry executor's observer to the manager's
// logger and the optional user-registered [RetryObserver].
type retryLogger struct {
	m        *Manager
	widgetID string
}

// OnRetry implements the retry observer.
func (r retryLogger) OnRetry(err error, attempt int, nextDelay time.Duration) {
	r.m.logger.Debug("retrying remote call",
		"widget_id", r.widgetID,
		"attempt", attempt,
		"next_delay", nextDelay.String(),
		"error", err)
	if r.m.retryObserver != nil {
		r.m.retryObserver.OnRetry(r.widgetID, err, attempt, nextDelay)
	}
}

// debugRenderer is the default renderer: it logs updates at debug level.
type debugRenderer struct {
	logger *slog.Logger
}

// Render implements [DisplayRenderer].
func (r debugRenderer) Render(widgetID string, state RenderState) {
	r.logger.Debug("render",
		"widget_id", widgetID,
		"state", state.State.String(),
		"label", state.Label,
		"message", state.Message)
}
