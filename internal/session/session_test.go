package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusdeck/statusdeck/internal/pool"
)

// settings is a stand-in for the orchestrator's settings payload.
type settings struct {
	Endpoint string
	Entity   string
}

func TestStore_GetOrCreateDefaults(t *testing.T) {
	st := NewStore[settings]()

	s := st.GetOrCreate("w1")
	assert.Equal(t, "w1", s.WidgetID)
	assert.Equal(t, 0, s.Failures)
	assert.False(t, s.Initializing)
	assert.Nil(t, s.LastValue)
	assert.False(t, s.PollScheduled())
	assert.Equal(t, 1, st.Len())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	st := NewStore[settings]()
	st.GetOrCreate("w1")

	st.Remove("w1")
	st.Remove("w1")
	assert.Equal(t, 0, st.Len())
}

func TestStore_SettersOnMissingSessionAutoCreate(t *testing.T) {
	st := NewStore[settings]()

	st.SetSettings("w1", settings{Endpoint: "https://x"})
	got, ok := st.Get("w1")
	require.True(t, ok)
	assert.Equal(t, "https://x", got.Settings.Endpoint)
}

func TestStore_ClearersOnMissingSessionAreNoOps(t *testing.T) {
	st := NewStore[settings]()

	st.ResetFailures("ghost")
	st.EndInit("ghost", 1)
	assert.Nil(t, st.ClearPollCancel("ghost"))
	_, held := st.ClearLease("ghost")
	assert.False(t, held)
	assert.Equal(t, 0, st.Len(), "clear operations must not resurrect sessions")
}

func TestStore_BeginInitSupersedes(t *testing.T) {
	st := NewStore[settings]()

	gen1 := st.BeginInit("w1")
	gen2 := st.BeginInit("w1")
	require.Greater(t, gen2, gen1, "a new init must advance the generation")

	// the superseded flight finishing must not release the newer slot
	st.EndInit("w1", gen1)
	s, _ := st.Get("w1")
	assert.True(t, s.Initializing)

	st.EndInit("w1", gen2)
	s, _ = st.Get("w1")
	assert.False(t, s.Initializing)
}

func TestStore_FailureCounter(t *testing.T) {
	st := NewStore[settings]()

	assert.Equal(t, 1, st.IncrementFailures("w1"))
	assert.Equal(t, 2, st.IncrementFailures("w1"))
	assert.Equal(t, 3, st.IncrementFailures("w1"))

	st.ResetFailures("w1")
	s, _ := st.Get("w1")
	assert.Equal(t, 0, s.Failures)
}

func TestStore_RecordValueClearsError(t *testing.T) {
	st := NewStore[settings]()

	st.RecordError("w1", "Service unavailable")
	s, _ := st.Get("w1")
	assert.Equal(t, "Service unavailable", s.LastError)

	st.RecordValue("w1", Value{Label: "Build #12 passed"})
	s, _ = st.Get("w1")
	require.NotNil(t, s.LastValue)
	assert.Equal(t, "Build #12 passed", s.LastValue.Label)
	assert.Empty(t, s.LastError)
}

func TestStore_Generations(t *testing.T) {
	st := NewStore[settings]()

	gen1 := st.NextGeneration("w1")
	assert.True(t, st.GenerationMatches("w1", gen1))

	gen2 := st.NextGeneration("w1")
	assert.False(t, st.GenerationMatches("w1", gen1), "old generation must be stale after reinit")
	assert.True(t, st.GenerationMatches("w1", gen2))

	st.Remove("w1")
	assert.False(t, st.GenerationMatches("w1", gen2), "removed session matches nothing")
	assert.Equal(t, 0, st.Len(), "the check must not resurrect the session")
}

func TestStore_PollCancelLifecycle(t *testing.T) {
	st := NewStore[settings]()

	ctx1, cancel1 := context.WithCancel(context.Background())
	st.SetPollCancel("w1", cancel1)
	s, _ := st.Get("w1")
	assert.True(t, s.PollScheduled())

	// storing a new handle cancels the previous one
	_, cancel2 := context.WithCancel(context.Background())
	st.SetPollCancel("w1", cancel2)
	assert.Error(t, ctx1.Err(), "replaced poll must have been cancelled")

	got := st.ClearPollCancel("w1")
	require.NotNil(t, got)
	got()

	s, _ = st.Get("w1")
	assert.False(t, s.PollScheduled())
	assert.Nil(t, st.ClearPollCancel("w1"))
}

func TestStore_LeaseClearedExactlyOnce(t *testing.T) {
	st := NewStore[settings]()
	key := pool.Key{Endpoint: "https://x", Credential: "t"}

	st.SetLease("w1", key)

	got, held := st.ClearLease("w1")
	require.True(t, held)
	assert.Equal(t, key, got)

	_, held = st.ClearLease("w1")
	assert.False(t, held, "second clear must report no lease")
}

func TestStore_MutateGuardedByGeneration(t *testing.T) {
	st := NewStore[settings]()
	gen := st.NextGeneration("w1")

	ok := st.Mutate("w1", gen, func(s *Session[settings]) { s.Failures = 7 })
	require.True(t, ok)
	s, _ := st.Get("w1")
	assert.Equal(t, 7, s.Failures)

	// stale generation: fn must not run
	st.NextGeneration("w1")
	ran := false
	ok = st.Mutate("w1", gen, func(s *Session[settings]) { ran = true })
	assert.False(t, ok)
	assert.False(t, ran)

	// removed session: no-op, no resurrection
	st.Remove("w1")
	assert.False(t, st.Mutate("w1", gen+1, func(s *Session[settings]) {}))
	assert.Equal(t, 0, st.Len())
}

func TestStore_SetLeaseIfCurrent(t *testing.T) {
	st := NewStore[settings]()
	key := pool.Key{Profile: "prod"}
	gen := st.NextGeneration("w1")

	require.True(t, st.SetLeaseIfCurrent("w1", gen, key))

	st.NextGeneration("w1")
	assert.False(t, st.SetLeaseIfCurrent("w1", gen, key), "stale generation must not record a lease")

	st.Remove("w1")
	assert.False(t, st.SetLeaseIfCurrent("w1", gen, key))
	assert.Equal(t, 0, st.Len())
}

func TestStore_SetPollCancelIfCurrent(t *testing.T) {
	st := NewStore[settings]()
	gen := st.NextGeneration("w1")

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, st.SetPollCancelIfCurrent("w1", gen, cancel))
	assert.NoError(t, ctx.Err())

	// stale set is rejected and does not disturb the stored handle
	_, staleCancel := context.WithCancel(context.Background())
	assert.False(t, st.SetPollCancelIfCurrent("w1", gen+1, staleCancel))

	s, _ := st.Get("w1")
	assert.True(t, s.PollScheduled())
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	st := NewStore[settings]()
	st.SetSettings("w1", settings{Entity: "PROJ-1"})

	snap, _ := st.Get("w1")
	snap.Settings.Entity = "PROJ-2"
	snap.Failures = 99

	fresh, _ := st.Get("w1")
	assert.Equal(t, "PROJ-1", fresh.Settings.Entity)
	assert.Equal(t, 0, fresh.Failures)
}
