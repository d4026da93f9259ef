package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/health"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/logger"
	"github.com/gearshift/gearshift/pkg/visit"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// App orchestrates the application lifecycle.
// It manages HTTP routing, visit tracking, identity resolution and graceful shutdown.
// App is immutable after creation - all configuration is done via New().
type App struct {
	router                  chi.Router
	errorHandler            ErrorHandler
	notFoundHandler         HandlerFunc
	methodNotAllowedHandler HandlerFunc
	healthConfig            *healthConfig
	logger                  *slog.Logger
	cookieManager           *cookie.Manager
	visitManager            *visit.Manager
	visitOptions            []VisitOption
	visits                  *visitTracker
	identity                *identityResolver
	middlewares             []Middleware
	handlers                []Handler
	staticRoutes            []staticRoute
}

// staticRoute is a plain handler mounted outside visit tracking.
type staticRoute struct {
	handler http.Handler
	pattern string
}

// New creates a new application with the given options.
// The App is immutable after creation.
//
// Identity resolution needs a visit to link users to, so WithIdentity
// without WithVisits panics with identity.ErrVisitRequired. A visit cookie
// domain of "localhost" panics with visit.ErrLocalhostDomain.
//
// Example:
//
//	app := gearshift.New(
//	    gearshift.WithMiddleware(middlewares.RequestID(), middlewares.Recover(log)),
//	    gearshift.WithVisits(visits),
//	    gearshift.WithIdentity(resolver, gearshift.WithFailureURL("/login")),
//	    gearshift.WithHandlers(handlers.NewLogin()),
//	)
func New(opts ...Option) *App {
	a := &App{
		router:        chi.NewRouter(),
		logger:        logger.NewNope(), // Default: noop logger (before options)
		cookieManager: cookie.New(),     // Default: cookie manager (no secret)
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.identity != nil && a.visitManager == nil {
		panic(identity.ErrVisitRequired)
	}
	if a.visitManager != nil {
		a.visits = newVisitTracker(a.visitManager, a.cookieManager, a.logger, a.visitOptions...)
	}

	a.setupRoutes()
	return a
}

// Router returns the underlying chi.Router for the App.
func (a *App) Router() chi.Router {
	return a.router
}

// ServeHTTP makes the App an http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until shutdown.
// The visit manager's flush loop starts before serving requests and is
// flushed and stopped after the server has drained. The identity provider
// model is created at startup.
//
// Example:
//
//	err := app.Run(":8080", gearshift.Logger(log))
func (a *App) Run(addr string, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)

	var startup []func(context.Context) error
	if a.visitManager != nil {
		startup = append(startup, a.visitManager.StartFunc())
		cfg.shutdownHooks = append([]func(context.Context) error{a.visitManager.ShutdownFunc()}, cfg.shutdownHooks...)
	}
	if a.identity != nil {
		startup = append(startup, a.identity.resolver.Provider().CreateProviderModel)
	}
	cfg.startupHooks = append(startup, cfg.startupHooks...)

	return runServer(a.router, addr, cfg)
}

// setupRoutes configures the router with middleware and handlers.
// Global middleware runs before visit tracking and identity resolution, so
// authorization belongs on routes or groups.
func (a *App) setupRoutes() {
	if a.notFoundHandler != nil {
		a.router.NotFound(a.wrapHandler(a.notFoundHandler))
	}
	if a.methodNotAllowedHandler != nil {
		a.router.MethodNotAllowed(a.wrapHandler(a.methodNotAllowedHandler))
	}

	for _, mw := range a.middlewares {
		a.router.Use(a.adaptMiddleware(mw))
	}

	// Health, static and untracked routes skip visit tracking.
	for _, sr := range a.staticRoutes {
		a.router.Mount(sr.pattern, sr.handler)
	}
	if a.healthConfig != nil {
		a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
		a.router.Get(a.healthConfig.readinessPath,
			health.ReadinessHandler(a.healthConfig.checks, health.WithLogger(a.logger)))
	}

	a.router.Group(func(cr chi.Router) {
		if a.visits != nil {
			cr.Use(a.adaptMiddleware(a.visits.middleware))
		}
		if a.identity != nil {
			cr.Use(a.adaptMiddleware(a.identity.middleware))
		}

		r := &routerAdapter{router: cr, app: a}
		for _, h := range a.handlers {
			h.Routes(r)
		}
	})
}

// wrapHandler converts a HandlerFunc to http.HandlerFunc using the app's error handler.
func (a *App) wrapHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r, a)
		if err := h(c); err != nil {
			a.handleError(c, err)
		}
	}
}

// handleError handles errors from handlers using the configured error handler.
// Without one, an HTTPError is answered with its own status and message and
// anything else with a 500.
func (a *App) handleError(c Context, err error) {
	if c.Written() {
		return
	}
	if a.errorHandler != nil {
		_ = a.errorHandler(c, err)
		return
	}

	if he := AsHTTPError(err); he != nil {
		if he.Code >= http.StatusInternalServerError {
			c.LogError("request failed", slog.Int("status", he.Code), slog.Any("error", he.Unwrap()))
		}
		http.Error(c.Response(), he.Message, he.Code)
		return
	}

	c.LogError("request failed", slog.Any("error", err))
	http.Error(c.Response(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
}

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
// Defaults to "/health/live".
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
// Defaults to "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check.
// Checks run in parallel during the readiness check.
//
// Example:
//
//	gearshift.WithReadinessCheck("visits", visits.Healthcheck())
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if c.checks == nil {
			c.checks = make(health.Checks)
		}
		c.checks[name] = fn
	}
}
