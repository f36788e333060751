package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusdeck/statusdeck/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		Backoff:     retry.Backoff{Base: time.Microsecond, Max: time.Millisecond, Multiplier: 2.0, Jitter: 0},
	}
}

// fakeClient counts Connect/Disconnect calls and can fail on demand.
type fakeClient struct {
	connects    atomic.Int32
	disconnects atomic.Int32
	connectErr  error
	connected   atomic.Bool
	connectGate chan struct{} // when non-nil, Connect blocks until closed
}

func (f *fakeClient) Connect(ctx context.Context) error {
	if f.connectGate != nil {
		select {
		case <-f.connectGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.connects.Add(1)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeClient) IsConnected() bool { return f.connected.Load() }

func (f *fakeClient) Disconnect() error {
	f.disconnects.Add(1)
	f.connected.Store(false)
	return nil
}

func newTestPool(idleTTL time.Duration) *Pool[*fakeClient] {
	return New[*fakeClient](fastRetry(), idleTTL, testLogger())
}

var keyA = Key{Endpoint: "https://a.example.com", Credential: "tok", Scope: "proj"}

func TestPool_AcquireReleasePairing(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{}
	dial := func() *fakeClient { return client }

	_, err := p.Acquire(context.Background(), keyA, dial)
	require.NoError(t, err)
	_, err = p.Acquire(context.Background(), keyA, dial)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Leases(keyA))
	assert.Equal(t, int32(1), client.connects.Load(), "second acquire must reuse the connection")

	p.Release(keyA)
	assert.Equal(t, 1, p.Leases(keyA), "a single release must leave the connection leased")

	p.Release(keyA)
	assert.Equal(t, 0, p.Leases(keyA))
	// idle, not closed: eligible for eviction but still pooled
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, int32(0), client.disconnects.Load())
}

func TestPool_DistinctKeysGetDistinctConnections(t *testing.T) {
	p := newTestPool(time.Minute)
	keyB := Key{Endpoint: "https://b.example.com", Credential: "tok", Scope: "proj"}

	a, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return &fakeClient{} })
	require.NoError(t, err)
	b, err := p.Acquire(context.Background(), keyB, func() *fakeClient { return &fakeClient{} })
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, p.Size())
}

func TestPool_ProfileKeyedSharing(t *testing.T) {
	p := newTestPool(time.Minute)
	profile := Key{Profile: "prod"}

	dials := 0
	dial := func() *fakeClient { dials++; return &fakeClient{} }

	a, err := p.Acquire(context.Background(), profile, dial)
	require.NoError(t, err)
	b, err := p.Acquire(context.Background(), profile, dial)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, dials)
}

func TestPool_ConcurrentAcquireConnectsOnce(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{connectGate: make(chan struct{})}
	dial := func() *fakeClient { return client }

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Acquire(context.Background(), keyA, dial)
		}(i)
	}

	// let all goroutines reach the pool before the connect completes
	time.Sleep(20 * time.Millisecond)
	close(client.connectGate)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, int32(1), client.connects.Load())
	assert.Equal(t, goroutines, p.Leases(keyA))
}

func TestPool_ConnectFailurePropagatesAndCleansUp(t *testing.T) {
	p := newTestPool(time.Minute)
	boom := &retry.StatusError{Code: 401}
	client := &fakeClient{connectErr: boom}

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return client })
	require.Error(t, err)
	assert.ErrorIs(t, err, error(boom))

	// terminal error: one attempt, no entry left behind
	assert.Equal(t, int32(1), client.connects.Load())
	assert.Equal(t, 0, p.Size())

	// a later acquire starts fresh
	good := &fakeClient{}
	got, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return good })
	require.NoError(t, err)
	assert.Same(t, good, got)
}

func TestPool_ConnectRetriesTransientFailures(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{connectErr: errors.New("transient")}

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return client })
	require.Error(t, err)
	assert.Equal(t, int32(3), client.connects.Load(), "transient connect failures use the full attempt budget")
}

func TestPool_ReleaseUnknownKeyIsNoOp(t *testing.T) {
	p := newTestPool(time.Minute)
	p.Release(keyA)
	assert.Equal(t, 0, p.Size())
}

func TestPool_JanitorEvictsIdleConnections(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{}

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return client })
	require.NoError(t, err)
	p.Release(keyA)

	// drive eviction directly with a future clock instead of sleeping
	p.evictIdle(time.Now().Add(2 * time.Minute))

	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(1), client.disconnects.Load())
}

func TestPool_JanitorSparesLeasedConnections(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{}

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return client })
	require.NoError(t, err)

	p.evictIdle(time.Now().Add(time.Hour))

	assert.Equal(t, 1, p.Size())
	assert.Equal(t, int32(0), client.disconnects.Load())
}

func TestPool_IdleConnectionReacquiredBeforeEviction(t *testing.T) {
	p := newTestPool(time.Minute)
	client := &fakeClient{}
	dial := func() *fakeClient { return client }

	_, err := p.Acquire(context.Background(), keyA, dial)
	require.NoError(t, err)
	p.Release(keyA)

	// reconfigured widget with identical settings re-leases the idle entry
	got, err := p.Acquire(context.Background(), keyA, dial)
	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, int32(1), client.connects.Load())
}

func TestPool_CloseDisconnectsEverything(t *testing.T) {
	p := newTestPool(time.Minute)
	a := &fakeClient{}
	b := &fakeClient{}

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return a })
	require.NoError(t, err)
	_, err = p.Acquire(context.Background(), Key{Profile: "prod"}, func() *fakeClient { return b })
	require.NoError(t, err)

	p.Close()

	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(1), a.disconnects.Load())
	assert.Equal(t, int32(1), b.disconnects.Load())
}

func TestPool_JanitorStopsOnContextCancel(t *testing.T) {
	p := newTestPool(2 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	p.StartJanitor(ctx)
	p.StartJanitor(ctx) // idempotent
	cancel()
	// nothing to assert beyond "does not panic or leak"; give it a beat
	time.Sleep(10 * time.Millisecond)
}

func TestPool_AcquireAfterCloseFails(t *testing.T) {
	p := newTestPool(time.Minute)
	p.Close()

	_, err := p.Acquire(context.Background(), keyA, func() *fakeClient { return &fakeClient{} })
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, p.Size())
}
