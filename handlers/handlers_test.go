package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gearshift/gearshift/handlers"
	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/middlewares"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/oauth"
	"github.com/gearshift/gearshift/pkg/visit"
)

const seed = `
groups:
  - name: admin
  - name: peon
users:
  - user_name: admin
    password: secret
    groups: [admin]
    foreign:
      - site: fake
        id: "42"
  - user_name: peon
    password: secret
    groups: [peon]
`

var testSecret = strings.Repeat("k", 32)

type adminArea struct{}

func (adminArea) Routes(r internal.Router) {
	r.GET("/admin", func(c internal.Context) error {
		return c.String(http.StatusOK, "admin area for "+c.Identity().UserName())
	}, middlewares.Require(authz.InGroup("admin")))
}

func newApp(t *testing.T, failure []internal.FailureOption, hs ...internal.Handler) *internal.App {
	t.Helper()
	return newAppWithSources(t, nil, failure, hs...)
}

func newAppWithSources(t *testing.T, sources []identity.Source, failure []internal.FailureOption, hs ...internal.Handler) *internal.App {
	t.Helper()

	store := visit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	visits, err := visit.NewManager(store)
	require.NoError(t, err)

	provider, err := identity.NewStoreProvider(identity.NewMemoryStore())
	require.NoError(t, err)
	s, err := identity.LoadSeed(strings.NewReader(seed))
	require.NoError(t, err)
	require.NoError(t, provider.ApplySeed(t.Context(), s))

	resolver, err := identity.NewResolver(provider, identity.WithSources(sources...))
	require.NoError(t, err)

	if failure == nil {
		failure = []internal.FailureOption{internal.WithFailureURL("/login")}
	}
	return internal.New(
		internal.WithCookieOptions(cookie.WithSecret(testSecret)),
		internal.WithVisits(visits),
		internal.WithIdentity(resolver, failure...),
		internal.WithHandlers(append([]internal.Handler{adminArea{}}, hs...)...),
	)
}

// browser replays cookies between requests.
type browser struct {
	app     http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(app http.Handler) *browser {
	return &browser{app: app, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range b.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	w := httptest.NewRecorder()
	b.app.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return w
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func credentials(user, password string, extra ...string) url.Values {
	form := url.Values{
		identity.DefaultUserNameField: {user},
		identity.DefaultPasswordField: {password},
		identity.DefaultSubmitField:   {"Login"},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		form.Set(extra[i], extra[i+1])
	}
	return form
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("plain login page", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin(handlers.WithOAuthLinks("fake"))))
		w := b.get("/login")

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `action="/login"`)
		assert.Contains(t, body, `name="user_name"`)
		assert.Contains(t, body, `name="password"`)
		assert.Contains(t, body, `href="/oauth/fake"`)
		assert.NotContains(t, body, `class="errors"`)
	})

	t.Run("anonymous is forwarded with 401", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin()))
		w := b.get("/admin")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "<li>Not member of group: admin</li>")
		assert.Contains(t, w.Body.String(), `name="forward_url" value="/admin"`)
	})

	t.Run("in_group admin and peon", func(t *testing.T) {
		t.Parallel()

		app := newApp(t, nil, handlers.NewLogin())

		admin := newBrowser(app)
		w := admin.post("/login", credentials("admin", "secret", "forward_url", "/admin"))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))

		w = admin.get("/admin")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "admin area for admin", w.Body.String())

		peon := newBrowser(app)
		w = peon.post("/login", credentials("peon", "secret"))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))

		w = peon.get("/admin")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Not member of group: admin")
	})

	t.Run("wrong password re-renders with 401", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin()))
		w := b.post("/login", credentials("admin", "nope", "forward_url", "/admin"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), handlers.MsgBadCredentials)
		assert.Contains(t, w.Body.String(), `value="/admin"`)
	})

	t.Run("post without credentials asks to log in", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin()))
		w := b.post("/login", url.Values{})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), handlers.MsgPleaseLogIn)
	})

	t.Run("forward url must stay on site", func(t *testing.T) {
		t.Parallel()

		offsite := []string{
			"//evil.test/x",
			"https://evil.test",
			"/\\evil.test",
			"/\t/evil.test",
			"/\n/evil.test",
			"/\r\n/evil.test",
			"/admin\x7f",
			"evil.test",
		}
		for _, target := range offsite {
			b := newBrowser(newApp(t, nil, handlers.NewLogin(handlers.WithDefaultRedirect("/home"))))
			w := b.post("/login", credentials("admin", "secret", "forward_url", target))
			require.Equal(t, http.StatusSeeOther, w.Code, "%q", target)
			assert.Equal(t, "/home", w.Header().Get("Location"), "%q", target)
		}

		b := newBrowser(newApp(t, nil, handlers.NewLogin(handlers.WithDefaultRedirect("/home"))))
		w := b.post("/login", credentials("admin", "secret", "forward_url", "/admin?tab=users&page=2"))
		assert.Equal(t, "/admin?tab=users&page=2", w.Header().Get("Location"))
	})

	t.Run("oauth links keep the whole forward url", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin(handlers.WithOAuthLinks("fake"))))
		w := b.get("/login?forward_url=" + url.QueryEscape("/a?x=1&y=2"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `href="/oauth/fake?forward_url=%2Fa%3Fx%3D1%26y%3D2"`)
	})

	t.Run("logout", func(t *testing.T) {
		t.Parallel()

		b := newBrowser(newApp(t, nil, handlers.NewLogin()))
		require.Equal(t, http.StatusSeeOther, b.post("/login", credentials("admin", "secret")).Code)
		require.Equal(t, http.StatusOK, b.get("/admin").Code)

		w := b.post("/logout", nil)
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))

		assert.Equal(t, http.StatusUnauthorized, b.get("/admin").Code)
	})

	t.Run("external redirect carries errors in a flash", func(t *testing.T) {
		t.Parallel()

		failure := []internal.FailureOption{internal.WithFailureURL("/login"), internal.WithExternalRedirect(true)}
		b := newBrowser(newApp(t, failure, handlers.NewLogin()))

		w := b.get("/admin")
		require.Equal(t, http.StatusFound, w.Code)
		loc := w.Header().Get("Location")
		assert.True(t, strings.HasPrefix(loc, "/login?"))

		w = b.get(loc)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Not member of group: admin")
		assert.Contains(t, w.Body.String(), `value="/admin"`)

		// The flash is consumed.
		w = b.get("/login")
		assert.NotContains(t, w.Body.String(), "Not member of group")
	})

	t.Run("custom view", func(t *testing.T) {
		t.Parallel()

		view := func(p handlers.LoginPage) templ.Component {
			return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
				_, err := io.WriteString(w, "custom:"+strings.Join(p.Errors, ","))
				return err
			})
		}
		b := newBrowser(newApp(t, nil, handlers.NewLogin(handlers.WithLoginView(view))))
		w := b.get("/admin")
		assert.Equal(t, "custom:Not member of group: admin", w.Body.String())
	})
}

type fakeProvider struct {
	foreignID string
	fetchErr  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code, _ string) (*oauth2.Token, error) {
	if code != "good" {
		return nil, errors.New("bad code")
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (p *fakeProvider) FetchUserInfo(context.Context, *oauth2.Token) (*oauth.UserInfo, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return &oauth.UserInfo{ID: p.foreignID, Email: "someone@example.com"}, nil
}

func startOAuth(t *testing.T, b *browser, target string) string {
	t.Helper()

	w := b.get(target)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.test", loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuth(t *testing.T) {
	t.Parallel()

	newOAuthApp := func(t *testing.T, p *fakeProvider) *browser {
		t.Helper()
		return newBrowser(newApp(t, nil, handlers.NewLogin(), handlers.NewOAuth(oauth.NewRegistry(p))))
	}

	t.Run("linked account logs in", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		state := startOAuth(t, b, "/oauth/fake?forward_url=/admin")

		w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))

		w = b.get("/admin")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "admin area for admin", w.Body.String())
	})

	t.Run("forward url with a query survives the round trip", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		state := startOAuth(t, b, "/oauth/fake?forward_url=%2Fa%3Fx%3D1%26y%3D2")

		w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/a?x=1&y=2", w.Header().Get("Location"))
	})

	t.Run("offsite forward url falls back", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		state := startOAuth(t, b, "/oauth/fake?forward_url="+url.QueryEscape("/\t/evil.test"))

		w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("identity sources decide which sites may log in", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			sources  []identity.Source
			wantCode int
			wantBody string
		}{
			{name: "named site", sources: []identity.Source{"form", "foreign:fake", "visit"}, wantCode: http.StatusSeeOther},
			{name: "any site", sources: []identity.Source{"oauth", "visit"}, wantCode: http.StatusSeeOther},
			{name: "other site only", sources: []identity.Source{"form", "foreign:github", "visit"}, wantCode: http.StatusUnauthorized, wantBody: "Login with fake is not enabled"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				app := newAppWithSources(t, tt.sources, nil,
					handlers.NewLogin(), handlers.NewOAuth(oauth.NewRegistry(&fakeProvider{foreignID: "42"})))
				b := newBrowser(app)
				state := startOAuth(t, b, "/oauth/fake?forward_url=/admin")

				w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
				assert.Equal(t, tt.wantCode, w.Code)
				assert.Contains(t, w.Body.String(), tt.wantBody)
				if tt.wantCode == http.StatusSeeOther {
					assert.Equal(t, http.StatusOK, b.get("/admin").Code)
				}
			})
		}
	})

	t.Run("unknown account is a failure", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "7"})
		state := startOAuth(t, b, "/oauth/fake")

		w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "No account is linked to this fake login")
		assert.Equal(t, http.StatusUnauthorized, b.get("/admin").Code)
	})

	t.Run("unverified email is a failure", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{fetchErr: oauth.ErrEmailNotVerified})
		state := startOAuth(t, b, "/oauth/fake")

		w := b.get("/oauth/fake/callback?code=good&state=" + url.QueryEscape(state))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "no verified email address")
	})

	t.Run("state mismatch", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		startOAuth(t, b, "/oauth/fake")

		w := b.get("/oauth/fake/callback?code=good&state=forged")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("callback without state cookie", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		w := b.get("/oauth/fake/callback?code=good&state=anything")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad code", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		state := startOAuth(t, b, "/oauth/fake")

		w := b.get("/oauth/fake/callback?code=bad&state=" + url.QueryEscape(state))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("provider denied access", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{foreignID: "42"})
		state := startOAuth(t, b, "/oauth/fake")

		w := b.get("/oauth/fake/callback?error=access_denied&state=" + url.QueryEscape(state))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "fake login was cancelled: access_denied")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		b := newOAuthApp(t, &fakeProvider{})
		assert.Equal(t, http.StatusNotFound, b.get("/oauth/other").Code)
	})
}
