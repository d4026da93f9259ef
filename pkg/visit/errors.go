package visit

import "errors"

var (
	ErrNotFound        = errors.New("visit: not found")
	ErrKeyExists       = errors.New("visit: key already exists")
	ErrEmptyKey        = errors.New("visit: empty key")
	ErrStoreRequired   = errors.New("visit: store is required")
	ErrAlreadyStarted  = errors.New("visit: manager already started")
	ErrShutdownTimeout = errors.New("visit: manager failed to shut down")
	ErrLocalhostDomain = errors.New("visit: cookie domain must not be localhost")
	ErrCreateModel     = errors.New("visit: failed to create model")
	ErrHealthcheck     = errors.New("visit: healthcheck failed")
)
