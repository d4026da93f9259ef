package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gearshift/gearshift/pkg/clientip"
	"github.com/gearshift/gearshift/pkg/metrics"
)

// Source names where identity information is looked for on a request.
type Source string

const (
	SourceForm     Source = "form"
	SourceHTTPAuth Source = "http_auth"
	SourceVisit    Source = "visit"
	// SourceOAuth accepts any foreign login placed in the request context.
	SourceOAuth Source = "oauth"

	// ForeignSourcePrefix names a source restricted to one external site,
	// as in "foreign:github".
	ForeignSourcePrefix = "foreign:"
)

// Default form field names.
const (
	DefaultUserNameField = "user_name"
	DefaultPasswordField = "password"
	DefaultSubmitField   = "login"
)

// DefaultSources is the lookup order used when none is configured.
func DefaultSources() []Source {
	return []Source{SourceForm, SourceHTTPAuth, SourceVisit}
}

// ParseSources splits a comma separated source list and validates each name.
func ParseSources(s string) ([]Source, error) {
	var out []Source
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src := Source(part)
		if !src.valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSource, part)
		}
		out = append(out, src)
	}
	return out, nil
}

func (s Source) valid() bool {
	switch s {
	case SourceForm, SourceHTTPAuth, SourceVisit, SourceOAuth:
		return true
	}
	site, ok := strings.CutPrefix(string(s), ForeignSourcePrefix)
	return ok && site != ""
}

// Resolution is the outcome of resolving the identity of one request.
type Resolution struct {
	Identity       *Identity
	LoginAttempted bool
}

// Resolver turns a request into an Identity by trying each source in
// order. The first source that yields an identity wins.
type Resolver struct {
	provider      Provider
	sources       []Source
	userNameField string
	passwordField string
	submitField   string
	throttle      *loginThrottle
	logger        *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSources sets the lookup order. Default: form, http_auth, visit.
func WithSources(sources ...Source) ResolverOption {
	return func(r *Resolver) {
		if len(sources) > 0 {
			r.sources = sources
		}
	}
}

// WithFormFields overrides the login form field names. Empty names keep the default.
func WithFormFields(userName, password, submit string) ResolverOption {
	return func(r *Resolver) {
		if userName != "" {
			r.userNameField = userName
		}
		if password != "" {
			r.passwordField = password
		}
		if submit != "" {
			r.submitField = submit
		}
	}
}

// WithLoginThrottle limits credential checks per remote host to limit
// per second with the given burst.
func WithLoginThrottle(limit rate.Limit, burst int) ResolverOption {
	return func(r *Resolver) {
		if limit > 0 {
			r.throttle = newLoginThrottle(limit, burst)
		}
	}
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver builds a resolver for provider. It fails with ErrInvalidSource
// when a configured source is unknown.
func NewResolver(provider Provider, opts ...ResolverOption) (*Resolver, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	r := &Resolver{
		provider:      provider,
		sources:       DefaultSources(),
		userNameField: DefaultUserNameField,
		passwordField: DefaultPasswordField,
		submitField:   DefaultSubmitField,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, s := range r.sources {
		if !s.valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSource, s)
		}
	}
	return r, nil
}

func (r *Resolver) Provider() Provider { return r.provider }

func (r *Resolver) Sources() []Source { return append([]Source(nil), r.sources...) }

// Resolve finds the identity for req. When no source yields one, the
// provider's anonymous identity is returned bound to visitKey. A storage
// error from any source aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, visitKey string) (Resolution, error) {
	var res Resolution

	for _, src := range r.sources {
		id, attempted, err := r.fromSource(ctx, src, req, visitKey)
		res.LoginAttempted = res.LoginAttempted || attempted
		if err != nil {
			metrics.IdentityResolved("error")
			return res, err
		}
		if id != nil {
			res.Identity = id
			break
		}
	}

	if res.Identity == nil {
		r.logger.DebugContext(ctx, "no identity found")
		res.Identity = r.anonymous(visitKey)
	}

	if res.Identity.Anonymous() {
		metrics.IdentityResolved("anonymous")
	} else {
		metrics.IdentityResolved("authenticated")
	}
	return res, nil
}

// ResolveForeign runs the foreign sources for an account an external site
// has just proven, such as an OAuth callback. fl is stored in the request
// context where the oauth and foreign:<site> sources read it. Without any
// foreign source configured the oauth source is used.
//
// A nil Identity with a nil error means no local user is linked to fl.
// ErrForeignSiteDenied means no configured source accepts fl.SiteID.
func (r *Resolver) ResolveForeign(ctx context.Context, req *http.Request, fl ForeignLogin, visitKey string) (Resolution, error) {
	req = req.WithContext(WithForeignLogin(req.Context(), fl))

	var res Resolution
	for _, src := range r.foreignSources() {
		id, attempted, err := r.fromSource(ctx, src, req, visitKey)
		res.LoginAttempted = res.LoginAttempted || attempted
		if err != nil {
			return res, err
		}
		if id != nil {
			res.Identity = id
			return res, nil
		}
	}

	if !res.LoginAttempted {
		return res, fmt.Errorf("%w: %s", ErrForeignSiteDenied, fl.SiteID)
	}
	return res, nil
}

func (r *Resolver) foreignSources() []Source {
	var out []Source
	for _, src := range r.sources {
		if src == SourceOAuth || strings.HasPrefix(string(src), ForeignSourcePrefix) {
			out = append(out, src)
		}
	}
	if len(out) == 0 {
		return []Source{SourceOAuth}
	}
	return out
}

func (r *Resolver) anonymous(visitKey string) *Identity {
	id := r.provider.AnonymousIdentity()
	if id.VisitKey == visitKey {
		return id
	}
	bound := *id
	bound.VisitKey = visitKey
	return &bound
}

func (r *Resolver) fromSource(ctx context.Context, src Source, req *http.Request, visitKey string) (*Identity, bool, error) {
	switch src {
	case SourceForm:
		return r.fromForm(ctx, req, visitKey)
	case SourceHTTPAuth:
		return r.fromHTTPAuth(ctx, req, visitKey)
	case SourceVisit:
		if visitKey == "" {
			return nil, false, nil
		}
		id, err := r.provider.LoadIdentity(ctx, visitKey)
		return id, false, err
	default:
		site := strings.TrimPrefix(string(src), ForeignSourcePrefix)
		if src == SourceOAuth {
			site = ""
		}
		return r.fromForeign(ctx, req, site, visitKey)
	}
}

// fromForm reads credentials from a submitted login form. The credential
// and submit fields are removed from the form so handlers never see them.
func (r *Resolver) fromForm(ctx context.Context, req *http.Request, visitKey string) (*Identity, bool, error) {
	if err := parseForm(req); err != nil {
		r.logger.WarnContext(ctx, "failed to parse form", slog.String("error", err.Error()))
		return nil, false, nil
	}
	if !req.Form.Has(r.submitField) {
		return nil, false, nil
	}

	userName, hasUser := popField(req, r.userNameField)
	password, hasPassword := popField(req, r.passwordField)
	popField(req, r.submitField)
	popField(req, r.submitField+".x")
	popField(req, r.submitField+".y")

	if !hasUser || !hasPassword {
		r.logger.ErrorContext(ctx, "missing fields in login form")
		return nil, false, nil
	}

	id, err := r.checkCredentials(ctx, req, SourceForm, userName, password, visitKey)
	if err == nil && id == nil {
		r.logger.WarnContext(ctx, "the credentials specified were not valid")
	}
	return id, true, err
}

// fromHTTPAuth handles the Basic scheme only.
func (r *Resolver) fromHTTPAuth(ctx context.Context, req *http.Request, visitKey string) (*Identity, bool, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, false, nil
	}

	scheme, _, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "basic") {
		r.logger.ErrorContext(ctx, "http auth is not basic", slog.String("scheme", scheme))
		return nil, false, nil
	}

	userName, password, ok := req.BasicAuth()
	if !ok {
		r.logger.ErrorContext(ctx, "malformed basic auth credentials")
		return nil, false, nil
	}

	id, err := r.checkCredentials(ctx, req, SourceHTTPAuth, userName, password, visitKey)
	return id, true, err
}

func (r *Resolver) fromForeign(ctx context.Context, req *http.Request, site, visitKey string) (*Identity, bool, error) {
	fl, ok := ForeignLoginFromContext(req.Context())
	if !ok || (site != "" && fl.SiteID != site) {
		return nil, false, nil
	}

	id, err := r.provider.ValidateForeignUser(ctx, fl.SiteID, fl.ForeignID, visitKey)
	switch {
	case err != nil:
	case id == nil:
		metrics.LoginAttempt(fl.SiteID, "invalid")
	default:
		metrics.LoginAttempt(fl.SiteID, "success")
	}
	return id, true, err
}

func (r *Resolver) checkCredentials(ctx context.Context, req *http.Request, src Source, userName, password, visitKey string) (*Identity, error) {
	host := clientip.FromRequest(req)
	if !r.throttle.allow(host) {
		metrics.LoginAttempt(string(src), "throttled")
		r.logger.WarnContext(ctx, "login attempt throttled",
			slog.String("source", string(src)),
			slog.String("remote_host", host),
		)
		return nil, nil
	}

	id, err := r.provider.ValidateIdentity(ctx, userName, password, visitKey)
	switch {
	case err != nil:
	case id == nil:
		metrics.LoginAttempt(string(src), "invalid")
	default:
		metrics.LoginAttempt(string(src), "success")
	}
	return id, err
}

// maxFormMemory bounds the multipart login form kept in memory.
const maxFormMemory = 1 << 20

// parseForm parses url-encoded and multipart bodies alike.
func parseForm(req *http.Request) error {
	mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return req.ParseForm()
	}
	if req.MultipartForm != nil {
		return nil
	}
	err := req.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return req.ParseForm()
	}
	return err
}

func popField(req *http.Request, name string) (string, bool) {
	if !req.Form.Has(name) {
		return "", false
	}
	v := req.Form.Get(name)
	req.Form.Del(name)
	if req.PostForm != nil {
		req.PostForm.Del(name)
	}
	if req.MultipartForm != nil {
		delete(req.MultipartForm.Value, name)
	}
	return v, true
}
