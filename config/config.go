// Package config provides YAML configuration parsing for statusdeck.
//
// This package enables running statusdeck as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	poll_interval: 60s
//	label_path: status
//
//	profiles:
//	  - id: prod-ci
//	    endpoint: https://ci.example.com
//	    credential: ${CI_TOKEN}
//	    scope: platform
//
//	widgets:
//	  - id: build
//	    profile: prod-ci
//	    entity: pipeline-42
//	    interval: 30s
//	    title: Main Build
//	  - id: standalone
//	    endpoint: https://other.example.com
//	    credential: ${OTHER_TOKEN:-}
//	    entity: job-7
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	minInterval = 1 * time.Second
	maxInterval = 1 * time.Hour
)

// Config is the root configuration structure for statusdeck.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the default time between polls for widgets that do
	// not specify their own interval. Accepts duration strings like "30s",
	// "1m". Defaults to 60s.
	PollInterval Duration `yaml:"poll_interval"`

	// LabelPath is the JSON dot-notation path used to extract display
	// labels from status documents. Empty means the built-in default.
	LabelPath string `yaml:"label_path"`

	// Profiles defines named connection profiles widgets can reference.
	Profiles []ProfileConfig `yaml:"profiles"`

	// Widgets defines the widgets to poll.
	Widgets []WidgetConfig `yaml:"widgets"`
}

// ProfileConfig is a named, shared connection profile. Widgets referencing
// the same profile share one pooled connection.
type ProfileConfig struct {
	// ID is the profile name widgets reference.
	ID string `yaml:"id"`

	// Endpoint is the API base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Endpoint string `yaml:"endpoint"`

	// Credential is the API token. Values support environment variable
	// substitution.
	Credential string `yaml:"credential"`

	// Scope is the project or organization scope.
	Scope string `yaml:"scope"`
}

// WidgetConfig defines a single widget.
//
// A widget either references a profile by name or carries its own inline
// endpoint/credential/scope.
type WidgetConfig struct {
	// ID identifies the widget. Must be unique.
	ID string `yaml:"id"`

	// Profile references a profile by id. Mutually exclusive with an
	// inline Endpoint.
	Profile string `yaml:"profile"`

	// Endpoint is the inline API base URL when no profile is used.
	// Supports environment variable substitution.
	Endpoint string `yaml:"endpoint"`

	// Credential is the inline API token. Supports environment variable
	// substitution.
	Credential string `yaml:"credential"`

	// Scope is the inline project or organization scope.
	Scope string `yaml:"scope"`

	// Entity is the remote entity whose status the widget tracks.
	Entity string `yaml:"entity"`

	// Interval is the custom polling interval for this widget.
	// If not specified, uses the global poll_interval.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// Title is a display-only caption.
	Title string `yaml:"title"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in endpoint and credential values.
// Defaults are applied for Port (8080) and PollInterval (60s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(60 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minInterval, c.PollInterval.Duration())
	}
	if c.PollInterval.Duration() > maxInterval {
		return fmt.Errorf("poll_interval must not exceed %s, got %s", maxInterval, c.PollInterval.Duration())
	}

	profileIDs := make(map[string]struct{}, len(c.Profiles))
	for i := range c.Profiles {
		p := &c.Profiles[i]

		if p.ID == "" {
			return fmt.Errorf("profiles[%d]: id is required", i)
		}
		if _, exists := profileIDs[p.ID]; exists {
			return fmt.Errorf("profiles[%d]: duplicate profile id %q", i, p.ID)
		}
		profileIDs[p.ID] = struct{}{}

		endpoint, err := expandAndValidateEndpoint(p.Endpoint, fmt.Sprintf("profiles[%d] (%s)", i, p.ID))
		if err != nil {
			return err
		}
		p.Endpoint = endpoint

		expanded, err := expandEnvVars(p.Credential)
		if err != nil {
			return fmt.Errorf("profiles[%d] (%s): credential: %w", i, p.ID, err)
		}
		p.Credential = expanded
	}

	widgetIDs := make(map[string]struct{}, len(c.Widgets))
	for i := range c.Widgets {
		w := &c.Widgets[i]

		if w.ID == "" {
			return fmt.Errorf("widgets[%d]: id is required", i)
		}
		if _, exists := widgetIDs[w.ID]; exists {
			return fmt.Errorf("widgets[%d]: duplicate widget id %q", i, w.ID)
		}
		widgetIDs[w.ID] = struct{}{}

		if w.Entity == "" {
			return fmt.Errorf("widgets[%d] (%s): entity is required", i, w.ID)
		}

		switch {
		case w.Profile != "" && w.Endpoint != "":
			return fmt.Errorf("widgets[%d] (%s): profile and endpoint are mutually exclusive", i, w.ID)
		case w.Profile != "":
			if _, exists := profileIDs[w.Profile]; !exists {
				return fmt.Errorf("widgets[%d] (%s): unknown profile %q", i, w.ID, w.Profile)
			}
		case w.Endpoint != "":
			endpoint, err := expandAndValidateEndpoint(w.Endpoint, fmt.Sprintf("widgets[%d] (%s)", i, w.ID))
			if err != nil {
				return err
			}
			w.Endpoint = endpoint

			expanded, err := expandEnvVars(w.Credential)
			if err != nil {
				return fmt.Errorf("widgets[%d] (%s): credential: %w", i, w.ID, err)
			}
			w.Credential = expanded
		default:
			return fmt.Errorf("widgets[%d] (%s): either profile or endpoint is required", i, w.ID)
		}

		if w.Interval != 0 {
			if w.Interval.Duration() < minInterval {
				return fmt.Errorf("widgets[%d] (%s): interval must be at least %s, got %s",
					i, w.ID, minInterval, w.Interval.Duration())
			}
			if w.Interval.Duration() > maxInterval {
				return fmt.Errorf("widgets[%d] (%s): interval must not exceed %s, got %s",
					i, w.ID, maxInterval, w.Interval.Duration())
			}
		}
	}

	if len(c.Widgets) == 0 {
		return errors.New("at least one widget must be defined")
	}

	return nil
}

// expandAndValidateEndpoint expands environment variables in an endpoint URL
// and checks it is a well-formed http(s) URL.
func expandAndValidateEndpoint(endpoint, context string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%s: endpoint is required", context)
	}

	expanded, err := expandEnvVars(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: endpoint: %w", context, err)
	}

	parsed, err := url.Parse(expanded)
	if err != nil {
		return "", fmt.Errorf("%s: invalid endpoint: %w", context, err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("%s: endpoint must have a scheme (http:// or https://)", context)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%s: endpoint scheme must be http or https, got %q", context, parsed.Scheme)
	}

	return expanded, nil
}
