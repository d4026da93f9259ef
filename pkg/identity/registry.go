package identity

import (
	"time"

	"github.com/gearshift/gearshift/pkg/backend"
)

type registryConfig struct {
	linkTTL time.Duration
}

// RegistryOption configures the stores built by NewRegistry.
type RegistryOption func(*registryConfig)

// WithLinkTTL expires unused visit links after d in the memory and redis
// stores. Postgres links are removed by LinkPurgeTask instead.
func WithLinkTTL(d time.Duration) RegistryOption {
	return func(c *registryConfig) {
		c.linkTTL = d
	}
}

// NewRegistry returns a registry with the built-in identity stores bound to
// their storage kinds.
func NewRegistry(opts ...RegistryOption) *backend.Registry[Store] {
	var cfg registryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := backend.NewRegistry[Store]()
	reg.Register(backend.Memory, func(backend.Deps) (Store, error) {
		return NewMemoryStore(WithMemoryLinkTTL(cfg.linkTTL)), nil
	})
	reg.Register(backend.Postgres, func(d backend.Deps) (Store, error) {
		return NewPostgresStore(d.Pool, d.Logger), nil
	})
	reg.Register(backend.Redis, func(d backend.Deps) (Store, error) {
		return NewRedisStore(d.Redis, WithRedisLinkTTL(cfg.linkTTL)), nil
	})
	return reg
}
