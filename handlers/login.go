package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
)

// Messages shown on the login page.
const (
	MsgBadCredentials = "The credentials you supplied were not correct or did not grant access to this resource."
	MsgPleaseLogIn    = "Please log in."
)

// LoginView renders the login page.
type LoginView func(LoginPage) templ.Component

type loginConfig struct {
	path            string
	logoutPath      string
	defaultRedirect string
	userNameField   string
	passwordField   string
	submitField     string
	view            LoginView
	providers       []string
}

// LoginOption configures the Login handler.
type LoginOption func(*loginConfig)

// WithLoginPath mounts the login form somewhere other than /login.
func WithLoginPath(path string) LoginOption {
	return func(c *loginConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithLogoutPath mounts logout somewhere other than /logout.
func WithLogoutPath(path string) LoginOption {
	return func(c *loginConfig) {
		if path != "" {
			c.logoutPath = path
		}
	}
}

// WithDefaultRedirect sets where a login without forward_url and every
// logout end up. Default: "/".
func WithDefaultRedirect(path string) LoginOption {
	return func(c *loginConfig) {
		if path != "" {
			c.defaultRedirect = path
		}
	}
}

// WithLoginFormFields names the form fields. They must match the fields the
// identity resolver reads.
func WithLoginFormFields(userName, password, submit string) LoginOption {
	return func(c *loginConfig) {
		if userName != "" {
			c.userNameField = userName
		}
		if password != "" {
			c.passwordField = password
		}
		if submit != "" {
			c.submitField = submit
		}
	}
}

// WithLoginView replaces the built-in login page.
func WithLoginView(v LoginView) LoginOption {
	return func(c *loginConfig) {
		if v != nil {
			c.view = v
		}
	}
}

// WithOAuthLinks lists OAuth providers to offer on the login page.
func WithOAuthLinks(names ...string) LoginOption {
	return func(c *loginConfig) {
		c.providers = append(c.providers, names...)
	}
}

// Login serves the login form and the logout action. Credentials are
// checked by the identity pipeline before the handler runs, so POST only
// has to look at the outcome.
type Login struct {
	cfg loginConfig
}

// NewLogin creates the login handler.
func NewLogin(opts ...LoginOption) *Login {
	cfg := loginConfig{
		path:            "/login",
		logoutPath:      "/logout",
		defaultRedirect: "/",
		userNameField:   identity.DefaultUserNameField,
		passwordField:   identity.DefaultPasswordField,
		submitField:     identity.DefaultSubmitField,
		view:            DefaultLoginView,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Login{cfg: cfg}
}

// Routes implements internal.Handler.
func (h *Login) Routes(r internal.Router) {
	r.GET(h.cfg.path, h.form)
	r.POST(h.cfg.path, h.login)
	r.POST(h.cfg.logoutPath, h.logout)
}

// form shows the login page. When reached through a failed authorization
// the failure decides the status and the messages.
func (h *Login) form(c internal.Context) error {
	status := http.StatusOK
	var errs []string
	if f, ok := authz.FailureFromContext(c); ok {
		status = f.Status()
		errs = f.Errors
	} else {
		// External redirects carry the messages in a flash cookie.
		_ = c.Flash(internal.FailureFlashKey, &errs)
	}
	return c.Render(status, h.cfg.view(h.page(c.Query(internal.ForwardURLParam), errs)))
}

func (h *Login) login(c internal.Context) error {
	id := c.Identity()
	if id == nil {
		return internal.ErrInternal("Identity management is not enabled", internal.WithError(identity.ErrNotEnabled))
	}

	forward := c.Form(internal.ForwardURLParam)
	if !id.Anonymous() {
		c.LogInfo("user logged in")
		return c.Redirect(http.StatusSeeOther, localRedirect(forward, h.cfg.defaultRedirect))
	}

	msg := MsgPleaseLogIn
	if c.LoginAttempted() {
		msg = MsgBadCredentials
	}
	return c.Render(http.StatusUnauthorized, h.cfg.view(h.page(forward, []string{msg})))
}

func (h *Login) logout(c internal.Context) error {
	if err := c.Logout(); err != nil {
		if errors.Is(err, identity.ErrNotEnabled) {
			return internal.ErrInternal("Identity management is not enabled", internal.WithError(err))
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, h.cfg.defaultRedirect)
}

func (h *Login) page(forward string, errs []string) LoginPage {
	return LoginPage{
		Action:        h.cfg.path,
		ForwardURL:    forward,
		Errors:        errs,
		UserNameField: h.cfg.userNameField,
		PasswordField: h.cfg.passwordField,
		SubmitField:   h.cfg.submitField,
		Providers:     h.cfg.providers,
	}
}

// localRedirect returns target when it is a path on this site, otherwise
// fallback. Browsers drop tabs and newlines from URLs and treat a
// backslash as a slash, so "/\t/host" and "/\\host" both leave the site.
func localRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.ContainsFunc(target, isControl) {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
