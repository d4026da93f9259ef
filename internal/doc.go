// Package internal provides the core types and implementation behind the
// gearshift root package.
//
// This package is internal and should not be used directly. Import
// "github.com/gearshift/gearshift" instead, which re-exports the public API.
//
// # Core Types
//
//   - App: routing, visit tracking, identity resolution and graceful shutdown
//   - Context: request/response access plus the request's Visit and Identity
//   - Router: interface handlers use to declare routes
//   - Handler: types that declare routes on a router
//   - HandlerFunc and Middleware: handler signature and wrapper
//   - HTTPError: status and message returned from handlers
//
// # Request Pipeline
//
// Global middleware runs first. Routes registered through handlers then pass
// through two built-in stages:
//
//  1. Visit tracking (WithVisits) reads the visit key from the configured
//     sources, looks it up or creates a new visit, and re-sends the visit
//     cookie.
//  2. Identity resolution (WithIdentity) tries the resolver's sources in
//     order and stores the resulting identity. Credentials submitted with a
//     login form are removed from the request form.
//
// Both stages are skipped for a request that already carries their result,
// which is the case for requests forwarded by Context.Forward.
//
//	func (h *ReportsHandler) list(c gearshift.Context) error {
//	    if c.Identity().Anonymous() {
//	        return c.Redirect(http.StatusFound, "/login")
//	    }
//	    return c.JSON(http.StatusOK, h.repo.For(c, c.Identity().UserName()))
//	}
//
// # Authorization Failures
//
// Context.Fail sends a denied request to the identity failure URL with the
// original parameters and forward_url. By default the request is forwarded
// internally as a GET and the failure is available through
// authz.FailureFromContext; the response status is 401 for anonymous users
// and 403 otherwise unless the failure page sets its own. With
// WithExternalRedirect the client gets a 302 instead and, when the cookie
// manager has a secret, the error messages travel in the identity_errors
// flash cookie.
//
// # Context as context.Context
//
// Context embeds context.Context, so it can be passed directly to any function
// that expects a standard library context. It also satisfies authz.Subject:
//
//	if f := authz.Check(authz.InGroup("admin"), c); f != nil {
//	    return c.Fail(f)
//	}
package internal
