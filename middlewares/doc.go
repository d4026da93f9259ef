// Package middlewares provides HTTP middleware for gearshift applications.
//
// # Request ID
//
// RequestID assigns an ID to each request for tracing. An ID arriving in
// X-Request-ID or X-Correlation-ID is kept; otherwise a UUIDv7 is generated.
// Use RequestIDExtractor with WithLogger to add request_id to every log line:
//
//	app := gearshift.New(
//	    gearshift.WithLogger("api", cfg.Log,
//	        middlewares.RequestIDExtractor(),
//	        gearshift.VisitKeyExtractor(),
//	        gearshift.UserNameExtractor(),
//	    ),
//	    gearshift.WithMiddleware(middlewares.RequestID()),
//	)
//
// # Recover
//
// Recover turns a handler panic into a *PanicError. The app error handler
// answers it with a 500 unless a custom ErrorHandler says otherwise:
//
//	gearshift.WithErrorHandler(func(c gearshift.Context, err error) error {
//	    if middlewares.IsPanicError(err) {
//	        return c.String(http.StatusInternalServerError, "Internal Server Error")
//	    }
//	    return c.String(http.StatusInternalServerError, err.Error())
//	})
//
// # Require
//
// Require guards routes with an authz predicate. It runs after visit
// tracking and identity resolution, so attach it to routes or route groups
// rather than to WithMiddleware:
//
//	func (h *Admin) Routes(r gearshift.Router) {
//	    r.Group(func(r gearshift.Router) {
//	        r.Use(middlewares.Require(authz.InGroup("admin")))
//	        r.GET("/admin", h.dashboard)
//	    })
//	}
//
// A denied anonymous user gets the failure page with status 401, a denied
// authenticated user with 403.
package middlewares
