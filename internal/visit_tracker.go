package internal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/visit"
)

// Visit key sources.
const (
	VisitSourceCookie = "cookie"
	VisitSourceForm   = "form"
)

// Visit cookie and form defaults.
const (
	DefaultVisitCookieName = "tg-visit"
	DefaultVisitCookiePath = "/"
	DefaultVisitFormName   = "tg_visit"
)

type visitContextKey struct{}

// VisitFromContext returns the visit tracked for the request, or nil.
func VisitFromContext(ctx context.Context) *visit.Visit {
	v, _ := ctx.Value(visitContextKey{}).(*visit.Visit)
	return v
}

// VisitConfig holds the visit cookie and key lookup settings.
type VisitConfig struct {
	Sources      []string
	CookieName   string
	CookiePath   string
	CookieDomain string
	FormName     string
	Secure       bool
	// Permanent sets the cookie Max-Age to the visit timeout.
	// Otherwise the cookie lasts for the browser session.
	Permanent bool
}

// VisitOption configures visit tracking.
type VisitOption func(*VisitConfig)

// WithVisitSources sets the ordered list of places a visit key is read
// from: "cookie" and "form". Default: cookie.
func WithVisitSources(sources ...string) VisitOption {
	return func(c *VisitConfig) {
		if len(sources) > 0 {
			c.Sources = sources
		}
	}
}

// WithVisitCookieName sets the visit cookie name. Default: tg-visit.
func WithVisitCookieName(name string) VisitOption {
	return func(c *VisitConfig) {
		if name != "" {
			c.CookieName = name
		}
	}
}

// WithVisitCookiePath sets the visit cookie path. Default: /.
func WithVisitCookiePath(path string) VisitOption {
	return func(c *VisitConfig) {
		if path != "" {
			c.CookiePath = path
		}
	}
}

// WithVisitCookieDomain sets the visit cookie domain.
// The domain "localhost" is rejected when the app is built.
func WithVisitCookieDomain(domain string) VisitOption {
	return func(c *VisitConfig) {
		c.CookieDomain = domain
	}
}

// WithVisitCookieSecure sets the Secure flag on the visit cookie.
func WithVisitCookieSecure(secure bool) VisitOption {
	return func(c *VisitConfig) {
		c.Secure = secure
	}
}

// WithVisitCookiePermanent makes the visit cookie outlive the browser session.
func WithVisitCookiePermanent(permanent bool) VisitOption {
	return func(c *VisitConfig) {
		c.Permanent = permanent
	}
}

// WithVisitFormName sets the request parameter read by the form source.
// Default: tg_visit.
func WithVisitFormName(name string) VisitOption {
	return func(c *VisitConfig) {
		if name != "" {
			c.FormName = name
		}
	}
}

func newVisitConfig(opts ...VisitOption) VisitConfig {
	cfg := VisitConfig{
		Sources:    []string{VisitSourceCookie},
		CookieName: DefaultVisitCookieName,
		CookiePath: DefaultVisitCookiePath,
		FormName:   DefaultVisitFormName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// visitTracker attaches a visit to every request and keeps its cookie alive.
type visitTracker struct {
	manager   *visit.Manager
	cookies   *cookie.Manager
	extractor Extractor
	cfg       VisitConfig
	logger    *slog.Logger
}

// newVisitTracker panics on a localhost cookie domain: browsers refuse such
// cookies, so every request would create a new visit.
func newVisitTracker(m *visit.Manager, cookies *cookie.Manager, logger *slog.Logger, opts ...VisitOption) *visitTracker {
	cfg := newVisitConfig(opts...)
	if strings.EqualFold(cfg.CookieDomain, "localhost") {
		panic(visit.ErrLocalhostDomain)
	}

	t := &visitTracker{
		manager: m,
		cookies: cookies,
		cfg:     cfg,
		logger:  logger,
	}

	var sources []ExtractorSource
	for _, name := range cfg.Sources {
		switch strings.TrimSpace(name) {
		case VisitSourceCookie:
			sources = append(sources, t.fromCookie)
		case VisitSourceForm:
			sources = append(sources, PopForm(cfg.FormName))
		default:
			logger.Warn("unknown visit source ignored", slog.String("source", name))
		}
	}
	t.extractor = NewExtractor(sources...)

	return t
}

// middleware resolves the visit before the handler runs. A request that is
// already tracked, such as a forwarded one, passes through untouched.
func (t *visitTracker) middleware(next HandlerFunc) HandlerFunc {
	return func(c Context) error {
		if c.Visit() != nil {
			return next(c)
		}

		v, err := t.track(c)
		if err != nil {
			c.LogError("visit tracking failed", slog.Any("error", err))
			return ErrInternal("Visit tracking failed", WithError(err))
		}

		c.Set(visitContextKey{}, v)
		t.setCookie(c.Response(), v)

		return next(c)
	}
}

func (t *visitTracker) track(c Context) (*visit.Visit, error) {
	if key, ok := t.extractor.Extract(c); ok {
		v, err := t.manager.VisitForKey(c, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}

	key, err := visit.NewKey(c.RemoteHost())
	if err != nil {
		return nil, err
	}
	v, err := t.manager.NewVisitWithKey(c, key)
	if err != nil {
		return nil, err
	}
	c.LogDebug("created new visit", slog.String("visit_key", key))
	return v, nil
}

// fromCookie reads the visit cookie, verifying its signature when the
// cookie manager has a secret.
func (t *visitTracker) fromCookie(c Context) (string, bool) {
	if t.cookies.HasSecret() {
		return FromCookieSigned(t.cfg.CookieName)(c)
	}
	return FromCookie(t.cfg.CookieName)(c)
}

func (t *visitTracker) setCookie(w http.ResponseWriter, v *visit.Visit) {
	value := v.Key
	if t.cookies.HasSecret() {
		signed, err := t.cookies.Sign(v.Key)
		if err != nil {
			t.logger.Error("failed to sign visit cookie", slog.Any("error", err))
			return
		}
		value = signed
	}

	ck := &http.Cookie{
		Name:     t.cfg.CookieName,
		Value:    value,
		Path:     t.cfg.CookiePath,
		Domain:   t.cfg.CookieDomain,
		Secure:   t.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if t.cfg.Permanent {
		ck.MaxAge = int(t.manager.Timeout() / time.Second)
	}
	http.SetCookie(w, ck)
}
