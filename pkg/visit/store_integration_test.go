//go:build integration

package visit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/pkg/db"
	"github.com/gearshift/gearshift/pkg/redis"
	"github.com/gearshift/gearshift/pkg/visit"
)

func testStores(t *testing.T) map[string]visit.Store {
	t.Helper()
	ctx := context.Background()
	stores := map[string]visit.Store{}

	if url := os.Getenv("GEARSHIFT_TEST_DATABASE_URL"); url != "" {
		pool, err := db.Connect(ctx, db.Config{ConnectionString: url, RetryAttempts: 1, MaxOpenConns: 4, MinConns: 1})
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		stores["postgres"] = visit.NewPostgresStore(pool, nil)
	}
	if url := os.Getenv("GEARSHIFT_TEST_REDIS_URL"); url != "" {
		client, err := redis.Open(ctx, url, redis.WithRetry(1, time.Second))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		stores["redis"] = visit.NewRedisStore(client, visit.WithRedisPrefix("gearshift:test:visit:"))
	}
	if len(stores) == 0 {
		t.Skip("no integration backends configured")
	}
	return stores
}

func TestStores_Integration(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateModel(ctx))
			require.NoError(t, store.CreateModel(ctx), "create model is idempotent")

			key, err := visit.NewKey("127.0.0.1")
			require.NoError(t, err)

			now := time.Now().Truncate(time.Millisecond)
			rec := visit.Record{Key: key, Created: now, Expiry: now.Add(time.Minute)}
			require.NoError(t, store.NewVisit(ctx, rec))
			require.ErrorIs(t, store.NewVisit(ctx, rec), visit.ErrKeyExists)

			got, err := store.Lookup(ctx, key)
			require.NoError(t, err)
			require.True(t, got.Expiry.Equal(rec.Expiry))

			later := now.Add(time.Hour)
			require.NoError(t, store.UpdateQueuedVisits(ctx, map[string]time.Time{key: later}))
			got, err = store.Lookup(ctx, key)
			require.NoError(t, err)
			require.True(t, got.Expiry.Equal(later))

			_, err = store.Lookup(ctx, "does-not-exist")
			require.ErrorIs(t, err, visit.ErrNotFound)
		})
	}
}
