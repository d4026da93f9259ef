package visit

import "github.com/gearshift/gearshift/pkg/backend"

// NewRegistry returns a registry with the built-in visit stores bound to
// their storage kinds.
func NewRegistry() *backend.Registry[Store] {
	reg := backend.NewRegistry[Store]()
	reg.Register(backend.Memory, func(backend.Deps) (Store, error) {
		return NewMemoryStore(), nil
	})
	reg.Register(backend.Postgres, func(d backend.Deps) (Store, error) {
		return NewPostgresStore(d.Pool, d.Logger), nil
	})
	reg.Register(backend.Redis, func(d backend.Deps) (Store, error) {
		return NewRedisStore(d.Redis), nil
	})
	return reg
}
