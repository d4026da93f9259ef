package backend

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Kind selects a storage engine.
type Kind string

// Supported storage engines.
const (
	Memory   Kind = "memory"
	Postgres Kind = "postgres"
	Redis    Kind = "redis"
)

// Kinds lists every known storage engine.
func Kinds() []Kind {
	return []Kind{Memory, Postgres, Redis}
}

// Parse converts a configuration value into a Kind.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Kinds(), k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Deps carries the shared connections a backend factory may need.
// Fields that a backend does not use can be left nil.
type Deps struct {
	Pool   *pgxpool.Pool
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// Factory builds a backend of type T from shared dependencies.
type Factory[T any] func(Deps) (T, error)

// Registry maps storage kinds to factories.
// It replaces string based implementation lookup with a typed table
// resolved once at startup.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[Kind]Factory[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[Kind]Factory[T])}
}

// Register binds a factory to a kind, replacing any previous binding.
func (r *Registry[T]) Register(kind Kind, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds in a stable order.
func (r *Registry[T]) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Open builds the backend registered for kind.
func (r *Registry[T]) Open(kind Kind, deps Deps) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()

	var zero T
	if !ok || f == nil {
		return zero, fmt.Errorf("%w: %q", ErrNotRegistered, kind)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	switch kind {
	case Postgres:
		if deps.Pool == nil {
			return zero, ErrPoolRequired
		}
	case Redis:
		if deps.Redis == nil {
			return zero, ErrRedisRequired
		}
	}

	return f(deps)
}
