package gearshift

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/health"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/logger"
	"github.com/gearshift/gearshift/pkg/visit"
)

// Type aliases - public API
type (
	// App orchestrates the application lifecycle.
	// It manages HTTP routing, middleware, visit tracking, identity
	// resolution and graceful shutdown.
	App = internal.App

	// Router is the interface handlers use to declare routes.
	Router = internal.Router

	// Context provides request/response access and helper methods.
	// It satisfies authz.Subject, so it can be passed to authz.Check.
	Context = internal.Context

	// Handler declares routes on a router.
	Handler = internal.Handler

	// HandlerFunc is the signature for route handlers.
	HandlerFunc = internal.HandlerFunc

	// Middleware wraps a HandlerFunc to add cross-cutting concerns.
	Middleware = internal.Middleware

	// ErrorHandler handles errors returned from handlers.
	ErrorHandler = internal.ErrorHandler

	// Option configures the application.
	Option = internal.Option

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// Component is the interface for renderable templates.
	Component = internal.Component

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// HTTPError is an error with an HTTP status for the client.
	HTTPError = internal.HTTPError

	// HTTPErrorOption configures an HTTPError.
	HTTPErrorOption = internal.HTTPErrorOption

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// CookieOption configures the cookie manager.
	CookieOption = cookie.Option

	// ResponseWriter wraps http.ResponseWriter with status tracking.
	ResponseWriter = internal.ResponseWriter

	// VisitOption configures the visit cookie and key lookup.
	VisitOption = internal.VisitOption

	// FailureOption configures where failed authorization sends the client.
	FailureOption = internal.FailureOption
)

// Constructors

// New creates a new application with the given options.
// The App is immutable after creation.
//
// Example:
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
//	err := app.Run(":8080", gearshift.Logger(log))
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// App options

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided, before visit tracking and
// identity resolution.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithHandlers registers handlers that declare routes.
// Each handler's Routes method is called during setup.
func WithHandlers(h ...Handler) Option {
	return internal.WithHandlers(h...)
}

// WithStaticFiles serves subDir of fsys under pattern without visit
// tracking. Directory listings are disabled.
func WithStaticFiles(pattern string, fsys fs.FS, subDir string) Option {
	return internal.WithStaticFiles(pattern, fsys, subDir)
}

// WithUntrackedRoute mounts h outside visit tracking and identity resolution.
func WithUntrackedRoute(pattern string, h http.Handler) Option {
	return internal.WithUntrackedRoute(pattern, h)
}

// WithErrorHandler sets a custom error handler for handler errors.
// Called when a handler returns a non-nil error.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithNotFoundHandler sets a custom 404 handler.
func WithNotFoundHandler(h HandlerFunc) Option {
	return internal.WithNotFoundHandler(h)
}

// WithMethodNotAllowedHandler sets a custom 405 handler.
func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return internal.WithMethodNotAllowedHandler(h)
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	gearshift.WithHealthChecks(
//	    gearshift.WithReadinessCheck("db", db.Healthcheck(pool)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithLogger creates a logger from cfg with a component name and optional
// extractors. Extractors pull values from context (request_id, visit_key,
// user_name).
//
// Example:
//
//	gearshift.New(
//	    gearshift.WithLogger("web", cfg.Log,
//	        gearshift.VisitKeyExtractor(),
//	        gearshift.UserNameExtractor(),
//	    ),
//	)
func WithLogger(component string, cfg logger.Config, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, cfg, extractors...)
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithCookieOptions configures the cookie manager.
// A secret enables signed cookies, flash messages and OAuth login.
//
// Example:
//
//	gearshift.New(
//	    gearshift.WithCookieOptions(
//	        gearshift.WithCookieSecret(cfg.Cookie.Secret),
//	        gearshift.WithCookieSecure(true),
//	    ),
//	)
func WithCookieOptions(opts ...CookieOption) Option {
	return internal.WithCookieOptions(opts...)
}

// WithVisits enables visit tracking. Every request is bound to a visit key
// read from the configured sources, or to a new visit.
//
// Example:
//
//	visits, err := visit.NewManager(store, visit.WithTimeout(cfg.Visit.Timeout))
//	gearshift.New(
//	    gearshift.WithVisits(visits, gearshift.WithVisitCookieSecure(true)),
//	)
func WithVisits(m *visit.Manager, opts ...VisitOption) Option {
	return internal.WithVisits(m, opts...)
}

// WithIdentity enables identity resolution. It requires WithVisits; New
// panics with identity.ErrVisitRequired otherwise.
func WithIdentity(r *identity.Resolver, opts ...FailureOption) Option {
	return internal.WithIdentity(r, opts...)
}

// Visit options

// WithVisitSources sets where the visit key is read from, in order:
// "cookie" and "form".
func WithVisitSources(sources ...string) VisitOption {
	return internal.WithVisitSources(sources...)
}

// WithVisitCookieName sets the visit cookie name. Defaults to "tg-visit".
func WithVisitCookieName(name string) VisitOption {
	return internal.WithVisitCookieName(name)
}

// WithVisitCookiePath sets the visit cookie path.
func WithVisitCookiePath(path string) VisitOption {
	return internal.WithVisitCookiePath(path)
}

// WithVisitCookieDomain sets the visit cookie domain.
func WithVisitCookieDomain(domain string) VisitOption {
	return internal.WithVisitCookieDomain(domain)
}

// WithVisitCookieSecure sets the Secure flag on the visit cookie.
func WithVisitCookieSecure(secure bool) VisitOption {
	return internal.WithVisitCookieSecure(secure)
}

// WithVisitCookiePermanent makes the visit cookie outlive the browser
// session for the visit timeout.
func WithVisitCookiePermanent(permanent bool) VisitOption {
	return internal.WithVisitCookiePermanent(permanent)
}

// WithVisitFormName sets the form field carrying the visit key.
func WithVisitFormName(name string) VisitOption {
	return internal.WithVisitFormName(name)
}

// Failure options

// WithFailureURL sets the page a failed authorization is sent to.
func WithFailureURL(u string) FailureOption {
	return internal.WithFailureURL(u)
}

// WithFailureURLFunc picks the failure page from the error messages.
func WithFailureURLFunc(fn func(errs []string) string) FailureOption {
	return internal.WithFailureURLFunc(fn)
}

// WithExternalRedirect answers failures with a 302 instead of an internal
// forward.
func WithExternalRedirect(external bool) FailureOption {
	return internal.WithExternalRedirect(external)
}

// Health check options

// WithLivenessPath sets a custom liveness endpoint path.
// Defaults to "/health/live".
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets a custom readiness endpoint path.
// Defaults to "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
// Checks run in parallel during the readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Run options

// Logger sets the logger for server lifecycle messages.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout sets the timeout for graceful shutdown.
// This applies to both the HTTP server and shutdown hooks.
// Defaults to 30 seconds.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook registers a function to run before the server accepts
// connections. A failing hook aborts startup.
//
// Example:
//
//	gearshift.StartupHook(jobs.StartFunc())
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook registers a cleanup function to run during shutdown.
// Hooks are called in the order they were registered.
//
// Example:
//
//	gearshift.ShutdownHook(db.Shutdown(pool))
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithContext sets a custom base context for signal handling.
// Defaults to context.Background() if not set.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// Logging

// VisitKeyExtractor adds the request's visit key to log records.
func VisitKeyExtractor() ContextExtractor {
	return internal.VisitKeyExtractor()
}

// UserNameExtractor adds the authenticated user name to log records.
func UserNameExtractor() ContextExtractor {
	return internal.UserNameExtractor()
}

// Context helpers

// ContextValue returns the value stored under key as a T, or the zero T.
func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// VisitFromContext returns the visit tracked for a request, or nil.
func VisitFromContext(ctx context.Context) *visit.Visit {
	return internal.VisitFromContext(ctx)
}

// IdentityFromContext returns the identity resolved for a request, or nil.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	return internal.IdentityFromContext(ctx)
}

// FailureFromContext returns the authorization failure a failure page was
// forwarded with.
func FailureFromContext(ctx context.Context) (*authz.Failure, bool) {
	return authz.FailureFromContext(ctx)
}

// ForwardURL returns the path that failed authorization, as seen by the
// failure page.
func ForwardURL(q url.Values) string {
	return q.Get(internal.ForwardURLParam)
}

// Errors

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}

// AsHTTPError returns the HTTPError in err's chain, or nil.
func AsHTTPError(err error) *HTTPError {
	return internal.AsHTTPError(err)
}

// ErrForwardLoop is returned when a failure page keeps failing authorization.
var ErrForwardLoop = internal.ErrForwardLoop

// Cookie options

// WithCookieSecret sets the secret for signing and encryption.
// Must be at least 32 bytes.
func WithCookieSecret(secret string) CookieOption {
	return cookie.WithSecret(secret)
}

// WithCookieDomain sets the cookie domain.
func WithCookieDomain(domain string) CookieOption {
	return cookie.WithDomain(domain)
}

// WithCookiePath sets the cookie path.
func WithCookiePath(path string) CookieOption {
	return cookie.WithPath(path)
}

// WithCookieSecure sets the Secure flag.
func WithCookieSecure(secure bool) CookieOption {
	return cookie.WithSecure(secure)
}

// WithCookieHTTPOnly sets the HttpOnly flag.
func WithCookieHTTPOnly(httpOnly bool) CookieOption {
	return cookie.WithHTTPOnly(httpOnly)
}

// WithCookieSameSite sets the SameSite attribute.
func WithCookieSameSite(ss http.SameSite) CookieOption {
	return cookie.WithSameSite(ss)
}

// Cookie errors for checking return values.
var (
	ErrCookieNotFound  = cookie.ErrNotFound
	ErrCookieNoSecret  = cookie.ErrNoSecret
	ErrCookieBadSecret = cookie.ErrBadSecret
	ErrCookieBadSig    = cookie.ErrBadSig
	ErrCookieDecrypt   = cookie.ErrDecrypt
)
