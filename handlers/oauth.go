package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/metrics"
	"github.com/gearshift/gearshift/pkg/oauth"
)

// stateMaxAge bounds the time a user may spend on the provider's consent
// page, in seconds.
const stateMaxAge = 600

const stateCookiePrefix = "oauth_state_"

type oauthConfig struct {
	prefix          string
	defaultRedirect string
	callbackBaseURL string
}

// OAuthOption configures the OAuth handler.
type OAuthOption func(*oauthConfig)

// WithOAuthPrefix mounts the handler somewhere other than /oauth.
func WithOAuthPrefix(prefix string) OAuthOption {
	return func(c *oauthConfig) {
		if prefix != "" {
			c.prefix = strings.TrimRight(prefix, "/")
		}
	}
}

// WithOAuthDefaultRedirect sets where a login without forward_url ends up.
func WithOAuthDefaultRedirect(path string) OAuthOption {
	return func(c *oauthConfig) {
		if path != "" {
			c.defaultRedirect = path
		}
	}
}

// WithCallbackBaseURL derives each provider's redirect URI from baseURL
// instead of the provider configuration, as in
// baseURL + "/oauth/github/callback".
func WithCallbackBaseURL(baseURL string) OAuthOption {
	return func(c *oauthConfig) {
		c.callbackBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// OAuth logs users in through third-party providers. The provider name is
// the foreign site ID, so a user is linked to a GitHub account with the
// foreign login (github, <github user id>).
type OAuth struct {
	providers *oauth.Registry
	cfg       oauthConfig
}

// NewOAuth creates the OAuth handler for the providers in registry.
func NewOAuth(registry *oauth.Registry, opts ...OAuthOption) *OAuth {
	cfg := oauthConfig{
		prefix:          "/oauth",
		defaultRedirect: "/",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OAuth{providers: registry, cfg: cfg}
}

// Routes implements internal.Handler.
func (h *OAuth) Routes(r internal.Router) {
	r.Route(h.cfg.prefix, func(r internal.Router) {
		r.GET("/{provider}", h.begin)
		r.GET("/{provider}/callback", h.callback)
	})
}

func (h *OAuth) begin(c internal.Context) error {
	p, err := h.provider(c)
	if err != nil {
		return err
	}

	state, err := oauth.NewState()
	if err != nil {
		return err
	}
	forward := localRedirect(c.Query(internal.ForwardURLParam), h.cfg.defaultRedirect)
	if err := c.SetCookieSigned(stateCookiePrefix+p.Name(), state+"|"+forward, stateMaxAge); err != nil {
		return internal.ErrInternal("OAuth login requires a cookie secret", internal.WithError(err))
	}

	var opts []oauth2.AuthCodeOption
	if u := h.callbackURL(p.Name()); u != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", u))
	}
	return c.Redirect(http.StatusFound, p.AuthCodeURL(state, opts...))
}

func (h *OAuth) callback(c internal.Context) error {
	p, err := h.provider(c)
	if err != nil {
		return err
	}

	cookieName := stateCookiePrefix + p.Name()
	stored, err := c.CookieSigned(cookieName)
	c.DeleteCookie(cookieName)
	if err != nil {
		c.LogWarn("oauth state cookie missing", slog.String("provider", p.Name()), slog.Any("error", err))
		return c.Error(http.StatusBadRequest, "Invalid OAuth state", internal.WithError(oauth.ErrStateMismatch))
	}
	issued, forward, _ := strings.Cut(stored, "|")
	if err := oauth.VerifyState(issued, c.Query("state")); err != nil {
		c.LogWarn("oauth state mismatch", slog.String("provider", p.Name()))
		return c.Error(http.StatusBadRequest, "Invalid OAuth state", internal.WithError(err))
	}

	if reason := c.Query("error"); reason != "" {
		metrics.LoginAttempt(p.Name(), "denied")
		return c.Fail(&authz.Failure{Errors: []string{p.Name() + " login was cancelled: " + reason}, Anonymous: true})
	}

	token, err := p.Exchange(c, c.Query("code"), h.callbackURL(p.Name()))
	if err != nil {
		c.LogError("oauth code exchange failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return c.Error(http.StatusBadGateway, "OAuth code exchange failed", internal.WithError(err))
	}
	info, err := p.FetchUserInfo(c, token)
	if err != nil {
		if errors.Is(err, oauth.ErrEmailNotVerified) {
			return c.Fail(&authz.Failure{Errors: []string{"Your " + p.Name() + " account has no verified email address"}, Anonymous: true})
		}
		c.LogError("oauth user info failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return c.Error(http.StatusBadGateway, "Failed to fetch OAuth account", internal.WithError(err))
	}

	fl := info.ForeignLogin(p.Name())
	id, err := c.LoginForeign(fl)
	switch {
	case errors.Is(err, identity.ErrNotEnabled):
		return internal.ErrInternal("Identity management is not enabled", internal.WithError(err))
	case errors.Is(err, identity.ErrVisitRequired):
		return internal.ErrInternal("Visit tracking is not enabled", internal.WithError(err))
	case errors.Is(err, identity.ErrForeignSiteDenied):
		c.LogWarn("foreign site not accepted by identity sources", slog.String("provider", p.Name()))
		return c.Fail(&authz.Failure{Errors: []string{"Login with " + p.Name() + " is not enabled"}, Anonymous: true})
	case err != nil:
		c.LogError("foreign login failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return c.Fail(&authz.Failure{Errors: []string{err.Error()}, Anonymous: true})
	case id == nil:
		c.LogWarn("unknown foreign account", slog.String("provider", p.Name()), slog.String("foreign_id", fl.ForeignID))
		return c.Fail(&authz.Failure{Errors: []string{"No account is linked to this " + p.Name() + " login"}, Anonymous: true})
	}

	c.LogInfo("user logged in", slog.String("provider", p.Name()))
	return c.Redirect(http.StatusSeeOther, localRedirect(forward, h.cfg.defaultRedirect))
}

func (h *OAuth) provider(c internal.Context) (oauth.Provider, error) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		return nil, c.Error(http.StatusNotFound, "Unknown OAuth provider", internal.WithError(err))
	}
	return p, nil
}

func (h *OAuth) callbackURL(name string) string {
	if h.cfg.callbackBaseURL == "" {
		return ""
	}
	return h.cfg.callbackBaseURL + h.cfg.prefix + "/" + name + "/callback"
}
