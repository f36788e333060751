package statusdeck

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// managerConfig holds mutable state during Manager construction.
type managerConfig struct {
	factory         ClientFactory
	renderer        DisplayRenderer
	validator       ConfigValidator
	logger          *slog.Logger
	defaultInterval time.Duration
	maxPollFailures int
	debounceDelay   time.Duration
	idleTTL         time.Duration
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	retryObserver   RetryObserver
}

// Option is a function that configures a [Manager] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*managerConfig) error

// WithClientFactory sets the factory used to build remote clients for new
// pooled connections. A factory is required; [New] fails without one.
func WithClientFactory(f ClientFactory) Option {
	return func(cfg *managerConfig) error {
		if f == nil {
			return errors.New("client factory cannot be nil")
		}
		cfg.factory = f
		return nil
	}
}

// WithRenderer sets the display renderer that receives widget render
// updates. When omitted, updates are logged at debug level and otherwise
// discarded.
func WithRenderer(r DisplayRenderer) Option {
	return func(cfg *managerConfig) error {
		if r == nil {
			return errors.New("renderer cannot be nil")
		}
		cfg.renderer = r
		return nil
	}
}

// WithValidator replaces the default settings validator,
// [ValidateSettings].
func WithValidator(v ConfigValidator) Option {
	return func(cfg *managerConfig) error {
		if v == nil {
			return errors.New("validator cannot be nil")
		}
		cfg.validator = v
		return nil
	}
}

// WithLogger sets the logger for manager events. Defaults to
// [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *managerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithDefaultPollInterval sets the poll interval used by widgets whose
// settings do not specify one. Defaults to 60 seconds. Clamped to
// [1s, 1h] like any per-widget interval.
func WithDefaultPollInterval(d time.Duration) Option {
	return func(cfg *managerConfig) error {
		if d <= 0 {
			return fmt.Errorf("default poll interval must be positive, got %s", d)
		}
		cfg.defaultInterval = d
		return nil
	}
}

// WithMaxPollFailures sets how many consecutive failed polls a widget
// tolerates before its timer stops and it surfaces a terminal
// connection-lost state. Defaults to 3.
//
// This counter is independent of the retry executor's per-call attempt
// budget: one poll may retry several times internally before counting as a
// single failure here.
func WithMaxPollFailures(n int) Option {
	return func(cfg *managerConfig) error {
		if n < 1 {
			return fmt.Errorf("max poll failures must be at least 1, got %d", n)
		}
		cfg.maxPollFailures = n
		return nil
	}
}

// WithDebounceDelay sets the trailing-edge delay applied to
// settings-changed events per widget, so rapid successive edits collapse
// into one reinitialization. Defaults to 500ms.
func WithDebounceDelay(d time.Duration) Option {
	return func(cfg *managerConfig) error {
		if d <= 0 {
			return fmt.Errorf("debounce delay must be positive, got %s", d)
		}
		cfg.debounceDelay = d
		return nil
	}
}

// WithIdleTTL sets how long an unleased pooled connection stays idle before
// the janitor evicts it. Defaults to 5 minutes.
func WithIdleTTL(d time.Duration) Option {
	return func(cfg *managerConfig) error {
		if d <= 0 {
			return fmt.Errorf("idle TTL must be positive, got %s", d)
		}
		cfg.idleTTL = d
		return nil
	}
}

// WithRetry sets the retry profile used for every remote call: the total
// attempt budget per poll and the base/cap of the exponential backoff.
// Defaults: 5 attempts, 1s base, 30s cap.
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(cfg *managerConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
		}
		if baseDelay <= 0 || maxDelay <= 0 {
			return errors.New("retry delays must be positive")
		}
		if maxDelay < baseDelay {
			return fmt.Errorf("max delay %s is below base delay %s", maxDelay, baseDelay)
		}
		cfg.maxAttempts = maxAttempts
		cfg.baseDelay = baseDelay
		cfg.maxDelay = maxDelay
		return nil
	}
}

// RetryObserver receives a notification each time a poll's remote call is
// about to be retried. Implementations must not block; they run inline
// between attempts. Useful for telemetry and tests.
type RetryObserver interface {
	OnRetry(widgetID string, err error, attempt int, nextDelay time.Duration)
}

// WithRetryObserver registers an observer for retry events. Retries are
// always logged at debug level regardless.
func WithRetryObserver(obs RetryObserver) Option {
	return func(cfg *managerConfig) error {
		if obs == nil {
			return errors.New("retry observer cannot be nil")
		}
		cfg.retryObserver = obs
		return nil
	}
}
