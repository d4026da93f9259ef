package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty URL", func(t *testing.T) {
		t.Parallel()

		client, err := Open(ctx, "")
		require.ErrorIs(t, err, ErrEmptyConnectionURL)
		require.Nil(t, client)
	})

	testCases := []struct {
		name string
		url  string
	}{
		{name: "http scheme", url: "http://localhost:6379"},
		{name: "no scheme", url: "localhost:6379"},
		{name: "invalid port", url: "redis://localhost:notaport"},
		{name: "invalid database", url: "redis://localhost:6379/notanumber"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, err := Open(ctx, tc.url)
			require.ErrorIs(t, err, ErrFailedToParseURL)
			require.Nil(t, client)
		})
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := Config{PoolSize: 25, MinIdleConns: 4, RetryAttempts: 7, RetryInterval: time.Second}
	o := defaultOptions()
	for _, opt := range cfg.Options() {
		opt(o)
	}

	require.Equal(t, 25, o.poolSize)
	require.Equal(t, 4, o.minIdleConns)
	require.Equal(t, 7, o.retryAttempts)
	require.Equal(t, time.Second, o.retryInterval)

	require.Empty(t, Config{}.Options())
}

func TestWithTimeouts(t *testing.T) {
	t.Parallel()

	o := defaultOptions()
	WithTimeouts(time.Second, 0, 2*time.Second)(o)

	require.Equal(t, time.Second, o.dialTimeout)
	require.Equal(t, 3*time.Second, o.readTimeout)
	require.Equal(t, 2*time.Second, o.writeTimeout)
}

func TestHealthcheck_NilClient(t *testing.T) {
	t.Parallel()

	err := Healthcheck(nil)(context.Background())
	require.ErrorIs(t, err, ErrHealthcheckFailed)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("close error")
	c := &closer{err: closeErr}

	err := Shutdown(c)(context.Background())
	require.ErrorIs(t, err, closeErr)
	require.True(t, c.closed)
}

func TestWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.ErrorIs(t, wait(ctx, 10*time.Second), context.Canceled)
	require.Less(t, time.Since(start), time.Second)

	require.NoError(t, wait(context.Background(), time.Millisecond))
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}
