package visit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/pkg/visit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails the first n flushes.
type flakyStore struct {
	*visit.MemoryStore
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *flakyStore) UpdateQueuedVisits(ctx context.Context, updates map[string]time.Time) error {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return errors.New("storage unavailable")
	}
	return s.MemoryStore.UpdateQueuedVisits(ctx, updates)
}

func TestNewManager_RequiresStore(t *testing.T) {
	t.Parallel()

	m, err := visit.NewManager(nil)
	require.ErrorIs(t, err, visit.ErrStoreRequired)
	require.Nil(t, m)
}

func TestManager_VisitLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	store := visit.NewMemoryStore(visit.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	m, err := visit.NewManager(store,
		visit.WithTimeout(20*time.Minute),
		visit.WithClock(clock.Now),
	)
	require.NoError(t, err)

	created, err := m.NewVisitWithKey(ctx, "abc")
	require.NoError(t, err)
	require.True(t, created.IsNew)
	require.Equal(t, clock.Now().Add(20*time.Minute), created.Expiry)

	t.Run("lookup before expiry is not new", func(t *testing.T) {
		clock.Advance(10 * time.Minute)
		v, err := m.VisitForKey(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.False(t, v.IsNew)
		assert.Equal(t, "abc", v.Key)
	})

	t.Run("lookup after expiry returns nil", func(t *testing.T) {
		// Stored expiry is still created+20m since nothing was flushed.
		clock.Advance(11 * time.Minute)
		v, err := m.VisitForKey(ctx, "abc")
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("replacement visit is new", func(t *testing.T) {
		v, err := m.NewVisitWithKey(ctx, "def")
		require.NoError(t, err)
		require.True(t, v.IsNew)
	})

	t.Run("unknown key returns nil", func(t *testing.T) {
		v, err := m.VisitForKey(ctx, "missing")
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		_, err := m.NewVisitWithKey(ctx, "def")
		require.ErrorIs(t, err, visit.ErrKeyExists)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		_, err := m.NewVisitWithKey(ctx, "")
		require.ErrorIs(t, err, visit.ErrEmptyKey)
	})
}

func TestManager_ShutdownFlushesPendingUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	store := visit.NewMemoryStore(visit.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	m, err := visit.NewManager(store,
		visit.WithClock(clock.Now),
		visit.WithFlushInterval(time.Hour),
	)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	_, err = m.NewVisitWithKey(ctx, "abc")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	v, err := m.VisitForKey(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, v)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))

	rec, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, v.Expiry, rec.Expiry)
}

func TestManager_PeriodicFlush(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := visit.NewMemoryStore(visit.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	m, err := visit.NewManager(store, visit.WithFlushInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	_, err = m.NewVisitWithKey(ctx, "abc")
	require.NoError(t, err)

	want := time.Now().Add(time.Hour)
	m.UpdateVisit("abc", want)

	require.Eventually(t, func() bool {
		rec, err := store.Lookup(ctx, "abc")
		return err == nil && rec.Expiry.Equal(want)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_RetriesFailedFlush(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &flakyStore{MemoryStore: visit.NewMemoryStore(visit.WithCleanupInterval(0))}
	store.failures.Store(2)
	t.Cleanup(func() { _ = store.Close() })

	m, err := visit.NewManager(store, visit.WithFlushInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	_, err = m.NewVisitWithKey(ctx, "abc")
	require.NoError(t, err)

	want := time.Now().Add(time.Hour)
	m.UpdateVisit("abc", want)

	require.Eventually(t, func() bool {
		rec, err := store.Lookup(ctx, "abc")
		return err == nil && rec.Expiry.Equal(want)
	}, 2*time.Second, 10*time.Millisecond)
	require.GreaterOrEqual(t, store.calls.Load(), int32(3))
}

func TestManager_UpdateVisitNeverBlocks(t *testing.T) {
	t.Parallel()

	m, err := visit.NewManager(visit.NewMemoryStore(visit.WithCleanupInterval(0)), visit.WithQueueSize(1))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			m.UpdateVisit("abc", time.Now())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateVisit blocked on a full queue")
	}
}

func TestManager_StartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := visit.NewManager(visit.NewMemoryStore(visit.WithCleanupInterval(0)))
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx), "shutdown before start is a no-op")
	require.Error(t, m.Healthcheck()(ctx))

	require.NoError(t, m.Start(ctx))
	require.ErrorIs(t, m.Start(ctx), visit.ErrAlreadyStarted)
	require.NoError(t, m.Healthcheck()(ctx))

	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx), "shutdown is idempotent")
	require.Error(t, m.Healthcheck()(ctx))
}

func TestNewKey(t *testing.T) {
	t.Parallel()

	a, err := visit.NewKey("127.0.0.1:5000")
	require.NoError(t, err)
	b, err := visit.NewKey("127.0.0.1:5000")
	require.NoError(t, err)

	require.Len(t, a, 40)
	require.Regexp(t, "^[0-9a-f]{40}$", a)
	require.NotEqual(t, a, b)
}
