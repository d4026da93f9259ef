// Package config loads application settings from environment variables.
//
// Variables may also come from a .env file in the working directory; a
// missing file is not an error. Visit settings use the VISIT_ prefix and
// identity settings the IDENTITY_ prefix:
//
//	VISIT_BACKEND=redis
//	VISIT_TIMEOUT=30m
//	IDENTITY_ENABLED=true
//	IDENTITY_BACKEND=postgres
//	IDENTITY_SEED_FILE=users.yaml
//	DATABASE_CONN_URL=postgres://localhost/gearshift
//	REDIS_URL=redis://localhost:6379/0
//
// Load validates the result, so a returned Config can be wired directly:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
