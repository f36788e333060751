// Package statusdeck manages the polling lifecycle for fleets of status
// widgets backed by a remote project-management or CI API.
//
// A host application (a desk controller, an editor plugin, a dashboard
// shell) raises widget lifecycle events; statusdeck owns everything between
// those events and the display: it multiplexes per-widget polling sessions
// over a small pool of shared API connections, retries failed remote calls
// with bounded exponential backoff while distinguishing permanent from
// transient failures, and owns all per-widget runtime state so that
// resources are never leaked and reconfiguration never races with an
// in-flight poll.
//
// # Quick Start
//
// Construct a [Manager] with a client factory and a renderer, then feed it
// host events:
//
//	m, err := statusdeck.New(
//	    statusdeck.WithClientFactory(factory),
//	    statusdeck.WithRenderer(renderer),
//	)
//	if err != nil {
//	    slog.Error("failed to create manager", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx)
//	defer m.Stop()
//
//	m.WidgetWillAppear("build-badge", settings)
//
// # Lifecycle
//
// Each widget id maps to exactly one polling session. On widget-appear the
// manager validates the settings, leases a pooled connection, runs the
// first fetch immediately through the retry executor, and schedules a
// periodic poll. On widget-disappear it cancels the timer, releases the
// lease, and deletes the session, exactly once. Settings changes are
// debounced per widget; a change that only touches display fields re-renders
// the cached value without reconnecting.
//
// # Failure policy
//
// Two counters govern failure handling. The retry executor retries a single
// poll up to its attempt budget, skipping errors classified as durable
// (authentication, authorization, missing resource). Separately, the session
// counts consecutive failed polls; when that count crosses the configured
// maximum the timer stops and the widget surfaces a terminal
// connection-lost state until it is reconfigured or reappears.
//
// # Architecture
//
// The manager composes several internal packages:
//
//   - internal/retry: backoff calculator, error classifier, retry executor
//   - internal/pool: reference-counted connection pool keyed by fingerprint
//   - internal/session: per-widget runtime state and keyed debouncing
//   - internal/remote: a default HTTP RemoteClient implementation
//   - internal/store, internal/server: live render-state view for the CLI
//
// The internal packages are not part of the public API and may change
// without notice.
package statusdeck
