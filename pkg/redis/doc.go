// Package redis opens go-redis clients for the redis-backed visit and
// identity stores.
//
// [Open] validates the URL scheme, applies pool settings and pings the server,
// retrying while it starts up. [Config] carries the same settings from the
// environment (REDIS_URL, REDIS_POOL_SIZE, REDIS_MIN_IDLE_CONNS,
// REDIS_RETRY_ATTEMPTS, REDIS_RETRY_INTERVAL).
//
//	client, err := redis.Open(ctx, "redis://localhost:6379/0",
//		redis.WithPoolSize(20),
//		redis.WithRetry(5, time.Second),
//	)
//
// [Healthcheck] and [Shutdown] plug into the readiness endpoint and the
// application's shutdown hooks.
package redis
