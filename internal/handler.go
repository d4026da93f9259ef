package internal

// Handler declares routes on a router.
//
// Example:
//
//	type ReportsHandler struct {
//	    repo *reports.Repository
//	}
//
//	func (h *ReportsHandler) Routes(r gearshift.Router) {
//	    r.GET("/reports", h.list, middlewares.Require(authz.NotAnonymous()))
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers.
// It receives a Context and returns an error.
// Returning a non-nil error triggers the error handling middleware.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns.
// Middleware can inspect/modify the request, short-circuit processing,
// or wrap the response.
//
// Example:
//
//	func AdminOnly(next gearshift.HandlerFunc) gearshift.HandlerFunc {
//	    return func(c gearshift.Context) error {
//	        if !c.Identity().InGroup("admin") {
//	            return c.Fail(&authz.Failure{Errors: []string{"admins only"}})
//	        }
//	        return next(c)
//	    }
//	}
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler handles errors returned from handlers.
type ErrorHandler func(Context, error) error
