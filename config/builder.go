package config

import (
	"fmt"

	"github.com/statusdeck/statusdeck"
)

// Widget pairs a widget id with its resolved SDK settings.
type Widget struct {
	ID       string
	Settings statusdeck.Settings
}

// BuildWidgets converts parsed configuration into per-widget SDK settings.
//
// Profile references are resolved into connection configurations carrying
// the profile id, so widgets on the same profile share a pooled connection.
// Widgets without their own interval inherit the global poll_interval.
func BuildWidgets(cfg *Config) ([]Widget, error) {
	profiles := make(map[string]ProfileConfig, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		profiles[p.ID] = p
	}

	widgets := make([]Widget, 0, len(cfg.Widgets))
	for _, wc := range cfg.Widgets {
		conn, err := buildConnection(wc, profiles)
		if err != nil {
			return nil, err
		}

		interval := wc.Interval
		if interval == 0 {
			interval = cfg.PollInterval
		}

		widgets = append(widgets, Widget{
			ID: wc.ID,
			Settings: statusdeck.Settings{
				Connection:   conn,
				EntityID:     wc.Entity,
				PollInterval: interval.Duration(),
				Title:        wc.Title,
			},
		})
	}

	return widgets, nil
}

// buildConnection resolves a widget's connection, either from its profile
// reference or its inline fields.
func buildConnection(wc WidgetConfig, profiles map[string]ProfileConfig) (statusdeck.ConnectionConfig, error) {
	if wc.Profile != "" {
		p, ok := profiles[wc.Profile]
		if !ok {
			// validation catches this, but keep the builder self-contained
			return statusdeck.ConnectionConfig{}, fmt.Errorf("widget %s: unknown profile %q", wc.ID, wc.Profile)
		}
		return statusdeck.ConnectionConfig{
			Profile:    p.ID,
			Endpoint:   p.Endpoint,
			Credential: p.Credential,
			Scope:      p.Scope,
		}, nil
	}

	return statusdeck.ConnectionConfig{
		Endpoint:   wc.Endpoint,
		Credential: wc.Credential,
		Scope:      wc.Scope,
	}, nil
}
