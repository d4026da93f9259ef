// Package gearshift is a small web framework built around visits,
// identities and declarative authorization.
//
// Every request is bound to a visit, a browser session identified by a
// random key carried in a cookie or form field. When identity management is
// enabled the visit can be linked to a user, and handlers see the resolved
// identity through Context.Identity.
//
// # Quick Start
//
//	visits, err := visit.NewManager(visit.NewMemoryStore())
//	provider, err := identity.NewStoreProvider(identity.NewMemoryStore())
//	resolver, err := identity.NewResolver(provider)
//
//	app := gearshift.New(
//	    gearshift.WithVisits(visits),
//	    gearshift.WithIdentity(resolver, gearshift.WithFailureURL("/login")),
//	    gearshift.WithHandlers(
//	        handlers.NewLogin(),
//	        admin.New(repo),
//	    ),
//	)
//
//	if err := app.Run(":8080", gearshift.Logger(log)); err != nil {
//	    log.Error("server stopped", "error", err)
//	}
//
// # Handlers
//
// Handlers implement the [Handler] interface to declare routes:
//
//	type Admin struct {
//	    repo *Repository
//	}
//
//	func (h *Admin) Routes(r gearshift.Router) {
//	    r.Route("/admin", func(r gearshift.Router) {
//	        r.Use(middlewares.Require(authz.InGroup("admin")))
//	        r.GET("/", h.dashboard)
//	    })
//	}
//
// # Authorization
//
// Predicates from package authz describe who may access a route. When a
// predicate fails, the client is sent to the failure URL: by default the
// request is forwarded internally with status 401 for anonymous users and
// 403 for everyone else, so the failure page can show the messages and
// offer a login form. With WithExternalRedirect the client gets a 302
// instead and the messages travel in a flash cookie.
//
// Handlers can also check predicates themselves:
//
//	if f := authz.Check(authz.HasPermission("edit"), c); f != nil {
//	    return c.Fail(f)
//	}
//
// # Logging
//
// VisitKeyExtractor and UserNameExtractor add visit_key and user_name to
// every log record written through the request context.
//
// # Shutdown
//
// The application handles SIGINT/SIGTERM for graceful shutdown. Pending
// visit updates are flushed after the HTTP server has drained. Register
// further cleanup with ShutdownHook:
//
//	app.Run(":8080", gearshift.ShutdownHook(db.Shutdown(pool)))
package gearshift
