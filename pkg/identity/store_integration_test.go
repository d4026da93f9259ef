//go:build integration

package identity_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/pkg/db"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/redis"
)

func TestPostgresStore_Integration(t *testing.T) {
	url := os.Getenv("GEARSHIFT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GEARSHIFT_TEST_DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), db.Config{ConnectionString: url, RetryAttempts: 1, MaxOpenConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runStoreContract(t, identity.NewPostgresStore(pool, nil))
}

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("GEARSHIFT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GEARSHIFT_TEST_REDIS_URL not set")
	}

	client, err := redis.Open(context.Background(), url, redis.WithRetry(1, time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runStoreContract(t, identity.NewRedisStore(client, identity.WithRedisPrefix("gearshift:test:identity:")))
}
