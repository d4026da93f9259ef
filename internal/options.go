package internal

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/health"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/logger"
	"github.com/gearshift/gearshift/pkg/visit"
)

// Option configures the application.
type Option func(*App)

// WithMiddleware adds global middleware. It runs in the order given and
// before visit tracking, so it never sees c.Visit or c.Identity.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

// WithHandlers registers route groups. Their routes are tracked and
// identified when visits and identity are enabled.
func WithHandlers(h ...Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, h...)
	}
}

// WithStaticFiles serves subDir of fsys under pattern, outside visit
// tracking. Directory paths answer 404. It panics if subDir is invalid.
func WithStaticFiles(pattern string, fsys fs.FS, subDir string) Option {
	sub, err := fs.Sub(fsys, subDir)
	if err != nil {
		panic(err)
	}
	files := http.FileServerFS(sub)

	return WithUntrackedRoute(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	}))
}

// WithUntrackedRoute mounts a plain http.Handler that skips visit tracking
// and identity resolution, such as a metrics endpoint scraped by machines.
func WithUntrackedRoute(pattern string, h http.Handler) Option {
	return func(a *App) {
		a.staticRoutes = append(a.staticRoutes, staticRoute{h, pattern})
	}
}

// WithErrorHandler replaces the default error renderer. It receives every
// non-nil handler error, including the ones Require returns when identity is
// not enabled.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithNotFoundHandler sets a custom 404 handler.
func WithNotFoundHandler(h HandlerFunc) Option {
	return func(a *App) {
		a.notFoundHandler = h
	}
}

// WithMethodNotAllowedHandler sets a custom 405 handler.
func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return func(a *App) {
		a.methodNotAllowedHandler = h
	}
}

// WithHealthChecks mounts liveness and readiness endpoints outside visit
// tracking. Readiness runs every registered check, for example the visit
// manager flush loop and the store connections:
//
//	gearshift.WithHealthChecks(
//	    gearshift.WithReadinessCheck("visits", visits.Healthcheck()),
//	    gearshift.WithReadinessCheck("postgres", db.Healthcheck(pool)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
			checks:        make(health.Checks),
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}

// WithLogger builds the app logger from cfg, tagged with component.
// Extractors add request-scoped attributes such as visit_key and user_name.
func WithLogger(component string, cfg logger.Config, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.logger = logger.New(cfg, extractors...).With("component", component)
	}
}

// WithCustomLogger sets the app logger. A nil logger is ignored.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCookieOptions configures the cookie manager. With a secret the visit
// cookie is signed and the identity_errors flash can be set.
func WithCookieOptions(opts ...cookie.Option) Option {
	return func(a *App) {
		a.cookieManager = cookie.New(opts...)
	}
}

// WithVisits enables visit tracking backed by m. Every request routed to a
// handler gets a visit, and the visit cookie is refreshed on each response.
// App.Run starts and stops the manager.
//
// Example:
//
//	gearshift.WithVisits(visits,
//	    gearshift.WithVisitCookieSecure(true),
//	    gearshift.WithVisitSources("cookie", "form"),
//	)
func WithVisits(m *visit.Manager, opts ...VisitOption) Option {
	return func(a *App) {
		a.visitManager = m
		a.visitOptions = opts
	}
}

// WithIdentity enables identity resolution with r. Requires WithVisits.
// The failure options are the app-wide defaults for authorization failures;
// Require can override them per route.
//
// Example:
//
//	gearshift.WithIdentity(resolver,
//	    gearshift.WithFailureURL("/login"),
//	)
func WithIdentity(r *identity.Resolver, opts ...FailureOption) Option {
	return func(a *App) {
		a.identity = newIdentityResolver(r, opts...)
	}
}
