package backend

import "errors"

var (
	ErrUnknownKind   = errors.New("backend: unknown storage kind")
	ErrNotRegistered = errors.New("backend: no factory registered for kind")
	ErrPoolRequired  = errors.New("backend: postgres pool is required")
	ErrRedisRequired = errors.New("backend: redis client is required")
)
