package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/metrics"
)

// FailureFlashKey names the flash value that carries identity errors across
// an external redirect.
const FailureFlashKey = "identity_errors"

// ForwardURLParam is the query parameter holding the path that failed
// authorization.
const ForwardURLParam = "forward_url"

// maxForwards bounds internal re-dispatch so a failure page that itself
// fails authorization cannot loop.
const maxForwards = 5

// ErrForwardLoop is returned when a request has been forwarded too many times.
var ErrForwardLoop = errors.New("internal: too many internal forwards")

// FailureConfig decides where a failed authorization sends the client.
type FailureConfig struct {
	// URL is the failure page.
	URL string
	// URLFunc, when set, picks the failure page from the error messages.
	// An empty result falls back to URL.
	URLFunc func(errs []string) string
	// External sends a 302 to the failure page instead of forwarding.
	External bool
}

// FailureOption configures failure handling.
type FailureOption func(*FailureConfig)

// WithFailureURL sets the failure page.
func WithFailureURL(u string) FailureOption {
	return func(c *FailureConfig) {
		c.URL = u
	}
}

// WithFailureURLFunc picks the failure page from the error messages.
func WithFailureURLFunc(fn func(errs []string) string) FailureOption {
	return func(c *FailureConfig) {
		c.URLFunc = fn
	}
}

// WithExternalRedirect switches between an HTTP redirect and an internal
// forward. Use it behind proxies that rewrite the request path.
func WithExternalRedirect(external bool) FailureOption {
	return func(c *FailureConfig) {
		c.External = external
	}
}

func (c FailureConfig) url(errs []string) string {
	if c.URLFunc != nil {
		if u := c.URLFunc(errs); u != "" {
			return u
		}
	}
	return c.URL
}

// identityState is the per-request identity. It is shared by pointer so a
// Login in a handler is visible to middleware that wrapped it.
type identityState struct {
	resolver       *identity.Resolver
	provider       identity.Provider
	failure        FailureConfig
	mu             sync.Mutex
	id             *identity.Identity
	loginAttempted bool
}

func (s *identityState) current() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *identityState) set(id *identity.Identity) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

type identityContextKey struct{}

func identityStateFrom(ctx context.Context) *identityState {
	st, _ := ctx.Value(identityContextKey{}).(*identityState)
	return st
}

// IdentityFromContext returns the identity resolved for the request, or nil.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if st := identityStateFrom(ctx); st != nil {
		return st.current()
	}
	return nil
}

// identityResolver runs the resolution pipeline once per request.
type identityResolver struct {
	resolver *identity.Resolver
	failure  FailureConfig
}

func newIdentityResolver(r *identity.Resolver, opts ...FailureOption) *identityResolver {
	ir := &identityResolver{resolver: r}
	for _, opt := range opts {
		opt(&ir.failure)
	}
	return ir
}

// middleware resolves the request identity. A storage error while resolving
// is reported to the client as an authorization failure.
func (ir *identityResolver) middleware(next HandlerFunc) HandlerFunc {
	return func(c Context) error {
		if identityStateFrom(c) != nil {
			return next(c)
		}

		var visitKey string
		if v := c.Visit(); v != nil {
			visitKey = v.Key
		}

		st := &identityState{
			resolver: ir.resolver,
			provider: ir.resolver.Provider(),
			failure:  ir.failure,
		}
		c.Set(identityContextKey{}, st)

		res, err := ir.resolver.Resolve(c, c.Request(), visitKey)
		st.loginAttempted = res.LoginAttempted
		if err != nil {
			c.LogError("identity resolution failed", slog.Any("error", err))
			st.set(identity.NewAnonymous(visitKey))
			return c.Fail(&authz.Failure{Errors: []string{err.Error()}, Anonymous: true})
		}
		st.set(res.Identity)

		return next(c)
	}
}

func (c *requestContext) LoginForeign(fl identity.ForeignLogin) (*identity.Identity, error) {
	st := identityStateFrom(c.request.Context())
	if st == nil {
		return nil, identity.ErrNotEnabled
	}
	v := c.Visit()
	if v == nil {
		return nil, identity.ErrVisitRequired
	}

	res, err := st.resolver.ResolveForeign(c, c.request, fl, v.Key)
	st.loginAttempted = st.loginAttempted || res.LoginAttempted
	if err != nil || res.Identity == nil {
		return nil, err
	}

	// The provider linked the visit while validating the foreign account.
	st.set(res.Identity)
	return res.Identity, nil
}

func (c *requestContext) Fail(f *authz.Failure, opts ...FailureOption) error {
	var cfg FailureConfig
	if st := identityStateFrom(c.request.Context()); st != nil {
		cfg = st.failure
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(f.Details) > 0 {
		c.LogDebug("authorization failure details", slog.Any("details", f.Details))
	}

	target := cfg.url(f.Errors)
	if target == "" {
		c.LogError("identity failure url is not configured")
		return ErrInternal("Identity failure URL is not configured", WithError(identity.ErrMissingFailureURL))
	}

	r := c.request
	// The original parameters are kept so the failure page can replay them.
	if err := r.ParseForm(); err != nil {
		c.LogWarn("failed to parse form", slog.Any("error", err))
	}
	params := url.Values{}
	for k, v := range r.Form {
		params[k] = append([]string(nil), v...)
	}
	params.Set(ForwardURLParam, r.URL.Path)

	if cfg.External {
		metrics.AuthzFailure("external")
		if c.cookieManager.HasSecret() {
			if err := c.SetFlash(FailureFlashKey, f.Errors); err != nil {
				c.LogWarn("failed to store identity errors", slog.Any("error", err))
			}
		}
		return c.Redirect(http.StatusFound, appendQuery(target, params))
	}

	metrics.AuthzFailure("internal")
	return c.forward(target, params, f.Status(), authz.WithFailure(r.Context(), f))
}

func (c *requestContext) Forward(path string, query url.Values) error {
	return c.forward(path, query, http.StatusOK, c.request.Context())
}

type forwardCountKey struct{}

// forward serves path through the app router as a fresh GET request. The
// response status defaults to status unless the target handler sets one.
func (c *requestContext) forward(path string, query url.Values, status int, ctx context.Context) error {
	n, _ := ctx.Value(forwardCountKey{}).(int)
	if n >= maxForwards {
		return ErrInternal("Too many internal forwards", WithError(ErrForwardLoop))
	}

	u, err := url.Parse(path)
	if err != nil {
		return ErrInternal("Invalid forward path", WithError(err))
	}
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}

	ctx = context.WithValue(ctx, forwardCountKey{}, n+1)
	// A nil route context makes chi route the request from scratch.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, nil)

	req := c.request.Clone(ctx)
	req.Method = http.MethodGet
	req.URL.Path = u.Path
	req.URL.RawPath = ""
	req.URL.RawQuery = q.Encode()
	req.RequestURI = req.URL.RequestURI()
	req.Body = http.NoBody
	req.ContentLength = 0
	req.Header.Del("Content-Type")
	req.Header.Del("Content-Length")
	req.Form = nil
	req.PostForm = nil
	req.MultipartForm = nil

	c.LogDebug("forwarding request", slog.String("path", u.Path), slog.Int("status", status))

	c.app.router.ServeHTTP(newResponseWriterWithStatus(c.response, status), req)
	return nil
}

func appendQuery(target string, params url.Values) string {
	if len(params) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params.Encode()
}
