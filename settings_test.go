package statusdeck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateSettings(t *testing.T) {
	valid := Settings{
		Connection: ConnectionConfig{Endpoint: "https://ci.example.com", Credential: "tok"},
		EntityID:   "job-1",
	}

	t.Run("valid", func(t *testing.T) {
		res := ValidateSettings(valid)
		assert.True(t, res.IsValid)
		assert.Empty(t, res.Errors)
		assert.Empty(t, res.Warnings)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		s := valid
		s.Connection.Endpoint = ""
		res := ValidateSettings(s)
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors, "endpoint is required")
	})

	t.Run("bad scheme", func(t *testing.T) {
		s := valid
		s.Connection.Endpoint = "ftp://ci.example.com"
		res := ValidateSettings(s)
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors, "endpoint must use http or https")
	})

	t.Run("missing entity", func(t *testing.T) {
		s := valid
		s.EntityID = ""
		res := ValidateSettings(s)
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors, "entity id is required")
	})

	t.Run("missing credential warns only", func(t *testing.T) {
		s := valid
		s.Connection.Credential = ""
		res := ValidateSettings(s)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("out of range interval warns only", func(t *testing.T) {
		s := valid
		s.PollInterval = 10 * time.Millisecond
		res := ValidateSettings(s)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Warnings, 1)
	})
}

func TestConnectionConfigEqual(t *testing.T) {
	base := ConnectionConfig{Endpoint: "https://a", Credential: "t1", Scope: "s1"}

	t.Run("structural match", func(t *testing.T) {
		assert.True(t, base.Equal(base))
	})

	t.Run("credential change breaks structural match", func(t *testing.T) {
		other := base
		other.Credential = "t2"
		assert.False(t, base.Equal(other))
	})

	t.Run("profile wins over structure", func(t *testing.T) {
		a := ConnectionConfig{Profile: "prod", Endpoint: "https://a", Credential: "t1"}
		b := ConnectionConfig{Profile: "prod", Endpoint: "https://b", Credential: "t2"}
		assert.True(t, a.Equal(b))
	})

	t.Run("different profiles never match", func(t *testing.T) {
		a := ConnectionConfig{Profile: "prod"}
		b := ConnectionConfig{Profile: "staging"}
		assert.False(t, a.Equal(b))
	})

	t.Run("profiled never matches unprofiled", func(t *testing.T) {
		a := ConnectionConfig{Profile: "prod", Endpoint: "https://a", Credential: "t1", Scope: "s1"}
		assert.False(t, a.Equal(base))
	})
}

func TestSettingsPollRelevantEqual(t *testing.T) {
	base := Settings{
		Connection:   ConnectionConfig{Endpoint: "https://a", Credential: "t"},
		EntityID:     "job",
		PollInterval: time.Minute,
		Title:        "Build",
	}

	t.Run("title change is display only", func(t *testing.T) {
		other := base
		other.Title = "Renamed"
		other.Extra = map[string]string{"color": "green"}
		assert.True(t, base.pollRelevantEqual(other))
	})

	t.Run("entity change requires reinit", func(t *testing.T) {
		other := base
		other.EntityID = "job-2"
		assert.False(t, base.pollRelevantEqual(other))
	})

	t.Run("interval change requires reinit", func(t *testing.T) {
		other := base
		other.PollInterval = 2 * time.Minute
		assert.False(t, base.pollRelevantEqual(other))
	})

	t.Run("endpoint change requires reinit", func(t *testing.T) {
		other := base
		other.Connection.Endpoint = "https://b"
		assert.False(t, base.pollRelevantEqual(other))
	})
}

func TestWidgetStateTerminal(t *testing.T) {
	assert.False(t, StateOK.Terminal())
	assert.False(t, StateRetrying.Terminal())
	assert.True(t, StateError.Terminal())
	assert.True(t, StateAwaitingConfig.Terminal())
	assert.True(t, StateConnectionLost.Terminal())
}
