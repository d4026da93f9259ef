package authz

import "errors"

var ErrInvalidHostSpec = errors.New("authz: invalid host specification")
