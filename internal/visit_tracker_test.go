package internal_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/cookie"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/visit"
)

const testCookieSecret = "this-is-a-32-byte-secret-key!!!!"

func newVisitManager(t *testing.T, opts ...visit.Option) *visit.Manager {
	t.Helper()

	store := visit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	m, err := visit.NewManager(store, opts...)
	require.NoError(t, err)
	return m
}

func visitCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == internal.DefaultVisitCookieName {
			return ck
		}
	}
	t.Fatal("visit cookie not set")
	return nil
}

func TestVisitTracking(t *testing.T) {
	t.Parallel()

	t.Run("first request creates a visit and sets the cookie", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{internal.WithVisits(newVisitManager(t))}

		var got *visit.Visit
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, opts, func(c internal.Context) {
			got = c.Visit()
		})

		require.NotNil(t, got)
		assert.True(t, got.IsNew)
		assert.Len(t, got.Key, 40)

		ck := visitCookie(t, w)
		assert.Equal(t, got.Key, ck.Value)
		assert.Equal(t, "/", ck.Path)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
		assert.Zero(t, ck.MaxAge)
	})

	t.Run("returning cookie keeps the visit", func(t *testing.T) {
		t.Parallel()

		app := internal.New(internal.WithVisits(newVisitManager(t)), internal.WithHandlers(&visitEcho{}))

		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visit", nil))
		first := w.Body.String()
		ck := visitCookie(t, w)

		req := httptest.NewRequest(http.MethodGet, "/visit", nil)
		req.AddCookie(ck)
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.Equal(t, first[:40]+" old", w.Body.String())
	})

	t.Run("unknown key is replaced", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{internal.WithVisits(newVisitManager(t))}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: internal.DefaultVisitCookieName, Value: "unknown"})

		requestVia(t, req, opts, func(c internal.Context) {
			require.NotNil(t, c.Visit())
			assert.True(t, c.Visit().IsNew)
			assert.NotEqual(t, "unknown", c.Visit().Key)
		})
	})

	t.Run("expired visit is replaced", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		clock := func() time.Time { return now }
		m := newVisitManager(t, visit.WithClock(func() time.Time { return clock() }), visit.WithTimeout(time.Minute))
		app := internal.New(internal.WithVisits(m), internal.WithHandlers(&visitEcho{}))

		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visit", nil))
		ck := visitCookie(t, w)

		later := now.Add(2 * time.Minute)
		clock = func() time.Time { return later }

		req := httptest.NewRequest(http.MethodGet, "/visit", nil)
		req.AddCookie(ck)
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.NotContains(t, w.Body.String(), ck.Value)
		assert.Contains(t, w.Body.String(), " new")
	})

	t.Run("signed cookie with secret", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithCookieOptions(cookie.WithSecret(testCookieSecret)),
			internal.WithVisits(newVisitManager(t)),
			internal.WithHandlers(&visitEcho{}),
		)

		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visit", nil))
		key := w.Body.String()[:40]
		ck := visitCookie(t, w)
		assert.NotEqual(t, key, ck.Value)

		req := httptest.NewRequest(http.MethodGet, "/visit", nil)
		req.AddCookie(ck)
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)
		assert.Equal(t, key+" old", w.Body.String())

		// An unsigned key is not trusted.
		req = httptest.NewRequest(http.MethodGet, "/visit", nil)
		req.AddCookie(&http.Cookie{Name: internal.DefaultVisitCookieName, Value: key})
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)
		assert.Contains(t, w.Body.String(), " new")
	})

	t.Run("form source is consumed", func(t *testing.T) {
		t.Parallel()

		m := newVisitManager(t)
		existing, err := m.NewVisitWithKey(t.Context(), "form-visit-key")
		require.NoError(t, err)

		opts := []internal.Option{
			internal.WithVisits(m, internal.WithVisitSources("form", "cookie")),
		}
		req := httptest.NewRequest(http.MethodGet, "/?tg_visit="+existing.Key, nil)

		requestVia(t, req, opts, func(c internal.Context) {
			require.NotNil(t, c.Visit())
			assert.Equal(t, existing.Key, c.Visit().Key)
			assert.False(t, c.Visit().IsNew)
			assert.Empty(t, c.Form(internal.DefaultVisitFormName))
		})
	})

	t.Run("permanent cookie lasts for the timeout", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{
			internal.WithVisits(newVisitManager(t, visit.WithTimeout(20*time.Minute)),
				internal.WithVisitCookiePermanent(true),
				internal.WithVisitCookieSecure(true),
				internal.WithVisitCookieName("sid"),
				internal.WithVisitCookiePath("/app"),
			),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, opts, func(internal.Context) {})

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "sid", cookies[0].Name)
		assert.Equal(t, "/app", cookies[0].Path)
		assert.Equal(t, 1200, cookies[0].MaxAge)
		assert.True(t, cookies[0].Secure)
	})

	t.Run("visit disabled", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, nil, func(c internal.Context) {
			assert.Nil(t, c.Visit())
		})
		assert.Empty(t, w.Result().Cookies())
	})
}

func TestVisitConfigurationErrors(t *testing.T) {
	t.Parallel()

	t.Run("localhost cookie domain", func(t *testing.T) {
		t.Parallel()

		m := newVisitManager(t)
		require.PanicsWithValue(t, visit.ErrLocalhostDomain, func() {
			internal.New(internal.WithVisits(m, internal.WithVisitCookieDomain("localhost")))
		})
	})

	t.Run("identity without visits", func(t *testing.T) {
		t.Parallel()

		r := newTestResolver(t)
		require.PanicsWithValue(t, identity.ErrVisitRequired, func() {
			internal.New(internal.WithIdentity(r))
		})
	})
}

// visitEcho answers GET /visit with the visit key and whether it is new.
type visitEcho struct{}

func (visitEcho) Routes(r internal.Router) {
	r.GET("/visit", func(c internal.Context) error {
		state := "old"
		if c.Visit().IsNew {
			state = "new"
		}
		return c.String(http.StatusOK, c.Visit().Key+" "+state)
	})
}
