package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/clientip"
	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/visit"
)

// Component is the interface for renderable templates.
// This is compatible with templ.Component.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

// Context provides request/response access and helper methods.
// It also implements context.Context by delegating to the underlying request context,
// and authz.Subject, so it can be passed straight to authz.Check.
type Context interface {
	context.Context

	// Request returns the underlying *http.Request.
	Request() *http.Request

	// Response returns the underlying http.ResponseWriter.
	Response() http.ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// Param returns the URL parameter value by name.
	// Returns empty string if the parameter doesn't exist.
	Param(name string) string

	// Query returns the query parameter value by name.
	// Returns empty string if the parameter doesn't exist.
	Query(name string) string

	// QueryDefault returns the query parameter value or a default.
	QueryDefault(name, defaultValue string) string

	// Form returns the form value by name.
	// Login credentials consumed by identity resolution are no longer present.
	Form(name string) string

	// Header returns the request header value by name.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// JSON writes v as a JSON response with the given status code.
	JSON(code int, v any) error

	// String writes a plain text response.
	String(code int, s string) error

	// NoContent writes only the status code.
	NoContent(code int) error

	// Redirect sends an HTTP redirect to url.
	Redirect(code int, url string) error

	// Error builds an HTTPError for returning from a handler.
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError

	// Render writes component as HTML with the given status code.
	Render(code int, component Component) error

	// Written reports whether the response has been started.
	Written() bool

	// Logger returns the application logger.
	Logger() *slog.Logger

	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a value in the request context.
	Set(key, value any)

	// Get returns a value from the request context.
	Get(key any) any

	Cookie(name string) (string, error)
	SetCookie(name, value string, maxAge int)
	DeleteCookie(name string)
	CookieSigned(name string) (string, error)
	SetCookieSigned(name, value string, maxAge int) error
	CookieEncrypted(name string) (string, error)
	SetCookieEncrypted(name, value string, maxAge int) error

	// Flash reads and deletes a flash value into dest.
	Flash(key string, dest any) error

	// SetFlash stores a flash value for the next request.
	SetFlash(key string, value any) error

	// Visit returns the visit tracked for this request,
	// or nil when visit tracking is disabled.
	Visit() *visit.Visit

	// Identity returns the identity resolved for this request,
	// or nil when identity management is disabled.
	Identity() *identity.Identity

	// IdentityProvider returns the provider that resolved Identity.
	IdentityProvider() identity.Provider

	// LoginAttempted reports whether the request carried credentials,
	// whether or not they were valid.
	LoginAttempted() bool

	// RemoteHost returns the client address used for host predicates.
	RemoteHost() string

	// Login links the current visit to id and makes it the request's identity.
	Login(id *identity.Identity) error

	// LoginForeign logs the visit in as the local user linked to an account
	// an external site has proven, through the resolver's foreign sources.
	// It returns a nil identity when no local user is linked, and an error
	// wrapping identity.ErrForeignSiteDenied when no source accepts the site.
	LoginForeign(fl identity.ForeignLogin) (*identity.Identity, error)

	// Logout unlinks the current visit and replaces the request's identity
	// with an anonymous one.
	Logout() error

	// Forward re-dispatches the request through the app router as a GET to
	// path with the given query, writing into the current response.
	Forward(path string, query url.Values) error

	// Fail sends the client to the identity failure URL, either by
	// forwarding internally or by an external redirect.
	Fail(f *authz.Failure, opts ...FailureOption) error
}

// requestContext implements the Context interface.
type requestContext struct {
	response       http.ResponseWriter
	request        *http.Request
	responseWriter *ResponseWriter
	app            *App
	logger         *slog.Logger
	cookieManager  *cookie.Manager
}

// newContext wraps w unless it already is a *ResponseWriter, so a forwarded
// request keeps the implicit failure status set by Fail.
func newContext(w http.ResponseWriter, r *http.Request, app *App) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}

	return &requestContext{
		request:        r,
		response:       rw,
		responseWriter: rw,
		app:            app,
		logger:         app.logger,
		cookieManager:  app.cookieManager,
	}
}

func (c *requestContext) Request() *http.Request {
	return c.request
}

func (c *requestContext) Response() http.ResponseWriter {
	return c.response
}

func (c *requestContext) Context() context.Context {
	return c.request.Context()
}

func (c *requestContext) Param(name string) string {
	return chi.URLParam(c.request, name)
}

func (c *requestContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *requestContext) QueryDefault(name, defaultValue string) string {
	v := c.request.URL.Query().Get(name)
	if v == "" {
		return defaultValue
	}
	return v
}

func (c *requestContext) Form(name string) string {
	return c.request.FormValue(name)
}

func (c *requestContext) Deadline() (deadline time.Time, ok bool) {
	return c.request.Context().Deadline()
}

func (c *requestContext) Done() <-chan struct{} {
	return c.request.Context().Done()
}

func (c *requestContext) Err() error {
	return c.request.Context().Err()
}

func (c *requestContext) Value(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Header(name string) string {
	return c.request.Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) JSON(code int, v any) error {
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := io.WriteString(c.response, s)
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.response.WriteHeader(code)
	return nil
}

func (c *requestContext) Redirect(code int, url string) error {
	http.Redirect(c.response, c.request, url, code)
	return nil
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	err := NewHTTPError(code, message)
	for _, opt := range opts {
		opt(err)
	}
	return err
}

func (c *requestContext) Render(code int, component Component) error {
	c.response.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.response.WriteHeader(code)
	return component.Render(c.request.Context(), c.response)
}

func (c *requestContext) Written() bool {
	return c.responseWriter.Written()
}

func (c *requestContext) Logger() *slog.Logger {
	return c.logger
}

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.logger.DebugContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.logger.InfoContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.logger.WarnContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.logger.ErrorContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) Set(key, value any) {
	ctx := context.WithValue(c.request.Context(), key, value)
	c.request = c.request.WithContext(ctx)
}

func (c *requestContext) Get(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Cookie(name string) (string, error) {
	return c.cookieManager.Get(c.request, name)
}

func (c *requestContext) SetCookie(name, value string, maxAge int) {
	c.cookieManager.Set(c.response, name, value, maxAge)
}

func (c *requestContext) DeleteCookie(name string) {
	c.cookieManager.Delete(c.response, name)
}

func (c *requestContext) CookieSigned(name string) (string, error) {
	return c.cookieManager.GetSigned(c.request, name)
}

func (c *requestContext) SetCookieSigned(name, value string, maxAge int) error {
	return c.cookieManager.SetSigned(c.response, name, value, maxAge)
}

func (c *requestContext) CookieEncrypted(name string) (string, error) {
	return c.cookieManager.GetEncrypted(c.request, name)
}

func (c *requestContext) SetCookieEncrypted(name, value string, maxAge int) error {
	return c.cookieManager.SetEncrypted(c.response, name, value, maxAge)
}

func (c *requestContext) Flash(key string, dest any) error {
	return c.cookieManager.Flash(c.response, c.request, key, dest)
}

func (c *requestContext) SetFlash(key string, value any) error {
	return c.cookieManager.SetFlash(c.response, key, value)
}

func (c *requestContext) Visit() *visit.Visit {
	return VisitFromContext(c.request.Context())
}

func (c *requestContext) Identity() *identity.Identity {
	if st := identityStateFrom(c.request.Context()); st != nil {
		return st.current()
	}
	return nil
}

func (c *requestContext) IdentityProvider() identity.Provider {
	if st := identityStateFrom(c.request.Context()); st != nil {
		return st.provider
	}
	return nil
}

func (c *requestContext) LoginAttempted() bool {
	if st := identityStateFrom(c.request.Context()); st != nil {
		return st.loginAttempted
	}
	return false
}

func (c *requestContext) RemoteHost() string {
	return clientip.FromRequest(c.request)
}

func (c *requestContext) Login(id *identity.Identity) error {
	st := identityStateFrom(c.request.Context())
	if st == nil {
		return identity.ErrNotEnabled
	}
	if id != nil && id.VisitKey == "" {
		if v := c.Visit(); v != nil {
			bound := *id
			bound.VisitKey = v.Key
			id = &bound
		}
	}
	if err := st.provider.Login(c.request.Context(), id); err != nil {
		return err
	}
	st.set(id)
	return nil
}

func (c *requestContext) Logout() error {
	st := identityStateFrom(c.request.Context())
	if st == nil {
		return identity.ErrNotEnabled
	}
	anon, err := st.provider.Logout(c.request.Context(), st.current())
	if err != nil {
		return err
	}
	st.set(anon)
	return nil
}
