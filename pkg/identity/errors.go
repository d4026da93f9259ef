package identity

import "errors"

var (
	ErrUserNotFound       = errors.New("identity: user not found")
	ErrUserExists         = errors.New("identity: user already exists")
	ErrNotLinked          = errors.New("identity: visit is not linked to a user")
	ErrForeignUserExists  = errors.New("identity: foreign user already linked")
	ErrEmptyUserName      = errors.New("identity: empty user name")
	ErrEmptyGroupName     = errors.New("identity: empty group name")
	ErrAnonymousLogin     = errors.New("identity: cannot log in an anonymous identity")
	ErrStoreRequired      = errors.New("identity: store is required")
	ErrProviderRequired   = errors.New("identity: provider is required")
	ErrInvalidSource      = errors.New("identity: invalid identity source")
	ErrCustomHashRequired = errors.New("identity: custom algorithm requires a hash function")
	ErrHashPassword       = errors.New("identity: failed to hash password")
	ErrCreateModel        = errors.New("identity: failed to create provider model")
	ErrInvalidSeed        = errors.New("identity: invalid seed data")
	ErrApplySeed          = errors.New("identity: failed to apply seed data")
	ErrVisitRequired      = errors.New("identity: visit tracking must be enabled")
	ErrMissingFailureURL  = errors.New("identity: failure url is not configured")
	ErrNotEnabled         = errors.New("identity: identity management is not enabled")
	ErrForeignSiteDenied  = errors.New("identity: no identity source accepts this foreign site")
)
