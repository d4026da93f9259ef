package config

import "errors"

var (
	ErrLoadEnvFile           = errors.New("config: failed to load .env file")
	ErrParse                 = errors.New("config: failed to parse environment")
	ErrUnknownBackend        = errors.New("config: unknown storage backend")
	ErrInvalidVisitTimeout   = errors.New("config: visit timeout must be positive")
	ErrIdentityWithoutVisits = errors.New("config: identity management requires visit tracking")
	ErrLocalhostCookieDomain = errors.New("config: browsers reject cookies for domain localhost, leave the cookie domain empty")
	ErrInvalidLoginRate      = errors.New("config: login rate must not be negative")
	ErrCookieSecretTooShort  = errors.New("config: cookie secret must be at least 32 bytes")
	ErrDatabaseURLRequired   = errors.New("config: DATABASE_CONN_URL is required for the postgres backend")
	ErrRedisURLRequired      = errors.New("config: REDIS_URL is required for the redis backend")
)
