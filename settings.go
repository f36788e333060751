package statusdeck

import (
	"fmt"
	"net/url"
	"time"

	"github.com/statusdeck/statusdeck/internal/pool"
)

// ConnectionConfig identifies one remote API connection: where to connect,
// as whom, and in which project/organization scope. It is a value type used
// only as a pooling key and factory input; it is never mutated.
type ConnectionConfig struct {
	// Endpoint is the API base URL.
	Endpoint string

	// Credential is the API token or equivalent secret.
	Credential string

	// Scope is the project or organization the widget targets.
	Scope string

	// Profile optionally names a shared connection profile. When set, the
	// profile id alone decides connection sharing and the field values
	// above describe the resolved profile.
	Profile string
}

// fingerprint returns the pooling key: the profile id when set, otherwise
// the structural endpoint+credential+scope triple.
func (c ConnectionConfig) fingerprint() pool.Key {
	if c.Profile != "" {
		return pool.Key{Profile: c.Profile}
	}
	return pool.Key{
		Endpoint:   c.Endpoint,
		Credential: c.Credential,
		Scope:      c.Scope,
	}
}

// Equal reports whether two configurations resolve to the same pooled
// connection.
func (c ConnectionConfig) Equal(other ConnectionConfig) bool {
	return c.fingerprint() == other.fingerprint()
}

// Settings is the full per-widget configuration delivered by the host with
// widget-appear and settings-changed events.
type Settings struct {
	// Connection identifies the remote API connection.
	Connection ConnectionConfig

	// EntityID is the remote entity whose status the widget tracks.
	EntityID string

	// PollInterval is the time between polls. Zero means the manager
	// default; out-of-range values are clamped.
	PollInterval time.Duration

	// Title is a display-only caption. Changing it never triggers a
	// reconnect.
	Title string

	// Extra carries unknown fields passed through from an external
	// configuration UI, preserved for forward compatibility. Display-only.
	Extra map[string]string
}

// pollRelevantEqual reports whether a settings change can be absorbed
// without reinitializing: same connection identity, same entity, same
// interval. Title and Extra are display-only.
func (s Settings) pollRelevantEqual(other Settings) bool {
	return s.Connection.Equal(other.Connection) &&
		s.EntityID == other.EntityID &&
		s.PollInterval == other.PollInterval
}

// ValidationResult is the outcome of validating a settings payload.
type ValidationResult struct {
	// IsValid is true when the settings can drive a polling session.
	IsValid bool

	// Errors lists the problems that block polling.
	Errors []string

	// Warnings lists non-blocking issues (for example, a clamped
	// interval).
	Warnings []string
}

// ConfigValidator validates a settings payload. Validation is pure and
// synchronous; it runs before any connection is acquired.
type ConfigValidator interface {
	Validate(s Settings) ValidationResult
}

// ValidatorFunc adapts a function to the [ConfigValidator] interface.
type ValidatorFunc func(s Settings) ValidationResult

// Validate implements [ConfigValidator].
func (f ValidatorFunc) Validate(s Settings) ValidationResult {
	return f(s)
}

// ValidateSettings is the default validator. It requires a well-formed
// endpoint URL and an entity id, and warns about missing credentials and
// out-of-range intervals.
func ValidateSettings(s Settings) ValidationResult {
	var res ValidationResult

	if s.Connection.Endpoint == "" {
		res.Errors = append(res.Errors, "endpoint is required")
	} else {
		parsed, err := url.Parse(s.Connection.Endpoint)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("invalid endpoint: %v", err))
		case parsed.Scheme != "http" && parsed.Scheme != "https":
			res.Errors = append(res.Errors, "endpoint must use http or https")
		}
	}

	if s.EntityID == "" {
		res.Errors = append(res.Errors, "entity id is required")
	}

	if s.Connection.Credential == "" {
		res.Warnings = append(res.Warnings, "no credential set; only public resources will be reachable")
	}

	if s.PollInterval != 0 && (s.PollInterval < minPollInterval || s.PollInterval > maxPollInterval) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("poll interval %s outside [%s, %s], will be clamped",
				s.PollInterval, minPollInterval, maxPollInterval))
	}

	res.IsValid = len(res.Errors) == 0
	return res
}
