package middlewares

import (
	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
)

// Require returns middleware that lets a request through only when pred
// grants access to the request identity. A denied request is sent to the
// failure page through Context.Fail; opts override the app-level failure
// configuration for the protected routes.
//
// Require needs identity resolution (WithIdentity). Without it every
// request is answered with a 500.
//
//	r.GET("/admin", h.dashboard, middlewares.Require(authz.InGroup("admin")))
func Require(pred authz.Predicate, opts ...internal.FailureOption) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if c.Identity() == nil {
				c.LogError("authorization requires identity resolution")
				return internal.ErrInternal("Identity management is not enabled", internal.WithError(identity.ErrNotEnabled))
			}
			if f := authz.Check(pred, c); f != nil {
				return c.Fail(f, opts...)
			}
			return next(c)
		}
	}
}

// RequireFunc is Require for a predicate that is only known at request
// time, such as one built from a URL parameter.
//
//	middlewares.RequireFunc(func(c gearshift.Context) authz.Predicate {
//	    return authz.InGroup("team-" + c.Param("team"))
//	})
func RequireFunc(fn func(c internal.Context) authz.Predicate, opts ...internal.FailureOption) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			return Require(fn(c), opts...)(next)(c)
		}
	}
}
