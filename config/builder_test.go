package config

import (
	"testing"
	"time"

	"github.com/statusdeck/statusdeck"
)

func TestBuildWidgets_ProfileResolution(t *testing.T) {
	cfg, err := Parse([]byte(`
poll_interval: 45s

profiles:
  - id: prod-ci
    endpoint: https://ci.example.com
    credential: token123
    scope: platform

widgets:
  - id: build
    profile: prod-ci
    entity: pipeline-42
    title: Main Build
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}
	if len(widgets) != 1 {
		t.Fatalf("got %d widgets, want 1", len(widgets))
	}

	w := widgets[0]
	if w.ID != "build" {
		t.Errorf("ID = %q, want build", w.ID)
	}

	conn := w.Settings.Connection
	if conn.Profile != "prod-ci" {
		t.Errorf("Connection.Profile = %q, want prod-ci", conn.Profile)
	}
	if conn.Endpoint != "https://ci.example.com" {
		t.Errorf("Connection.Endpoint = %q, want resolved profile endpoint", conn.Endpoint)
	}
	if conn.Credential != "token123" {
		t.Errorf("Connection.Credential = %q, want resolved profile credential", conn.Credential)
	}
	if conn.Scope != "platform" {
		t.Errorf("Connection.Scope = %q, want platform", conn.Scope)
	}

	if w.Settings.EntityID != "pipeline-42" {
		t.Errorf("EntityID = %q, want pipeline-42", w.Settings.EntityID)
	}
	if w.Settings.Title != "Main Build" {
		t.Errorf("Title = %q, want Main Build", w.Settings.Title)
	}
	// no per-widget interval, inherits the global one
	if w.Settings.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", w.Settings.PollInterval)
	}
}

func TestBuildWidgets_InlineConnection(t *testing.T) {
	cfg, err := Parse([]byte(`
widgets:
  - id: standalone
    endpoint: https://other.example.com
    credential: other-token
    scope: team-b
    entity: job-7
    interval: 30s
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	w := widgets[0]
	conn := w.Settings.Connection
	if conn.Profile != "" {
		t.Errorf("Connection.Profile = %q, want empty", conn.Profile)
	}
	if conn.Endpoint != "https://other.example.com" {
		t.Errorf("Connection.Endpoint = %q", conn.Endpoint)
	}
	if conn.Credential != "other-token" {
		t.Errorf("Connection.Credential = %q", conn.Credential)
	}
	if w.Settings.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want per-widget 30s", w.Settings.PollInterval)
	}
}

func TestBuildWidgets_SharedProfileSharesFingerprint(t *testing.T) {
	cfg, err := Parse([]byte(`
profiles:
  - id: p
    endpoint: https://ci.example.com
    credential: tok

widgets:
  - id: w1
    profile: p
    entity: a
  - id: w2
    profile: p
    entity: b
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	if !widgets[0].Settings.Connection.Equal(widgets[1].Settings.Connection) {
		t.Error("widgets on the same profile should share a connection fingerprint")
	}
}

func TestBuildWidgets_SettingsPassValidation(t *testing.T) {
	cfg, err := Parse([]byte(`
widgets:
  - id: w
    endpoint: https://example.com
    credential: tok
    entity: e
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	res := statusdeck.ValidateSettings(widgets[0].Settings)
	if !res.IsValid {
		t.Errorf("built settings failed validation: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("built settings produced warnings: %v", res.Warnings)
	}
}
