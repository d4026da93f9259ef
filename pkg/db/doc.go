// Package db provides the PostgreSQL plumbing shared by the postgres-backed
// visit and identity stores.
//
// [Connect] opens a [github.com/jackc/pgx/v5/pgxpool] pool from [Config],
// retrying while the database starts up. [Migrate] applies an embedded goose
// migration set and records it under its own version table, so each store
// owns its schema:
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	sub, _ := fs.Sub(migrations, "migrations")
//	err := db.Migrate(ctx, pool, sub, "gearshift_visit_migrations", logger)
//
// [WithTx] runs a function inside a transaction and rolls back on error or
// panic. [Healthcheck] and [Shutdown] plug into the readiness endpoint and the
// application's shutdown hooks.
//
// Configuration comes from the environment:
//
//	DATABASE_CONN_URL           - PostgreSQL connection URL
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 2)
//	DATABASE_HEALTHCHECK_PERIOD - Health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
package db
