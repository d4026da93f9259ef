package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/middlewares"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/visit"
)

func member(groups ...string) *identity.Identity {
	u := &identity.User{UserName: "someone"}
	for _, g := range groups {
		u.Groups = append(u.Groups, identity.Group{Name: g})
	}
	return identity.NewAuthenticated(u, "visit-key")
}

func TestRequire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   *identity.Identity
		pred       authz.Predicate
		wantCalled bool
		wantStatus int
		wantErrors []string
	}{
		{
			name:       "member passes",
			identity:   member("admin"),
			pred:       authz.InGroup("admin"),
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "anonymous gets 401",
			identity:   identity.NewAnonymous("visit-key"),
			pred:       authz.InGroup("admin"),
			wantStatus: http.StatusUnauthorized,
			wantErrors: []string{"Not member of group: admin"},
		},
		{
			name:       "other group gets 403",
			identity:   member("peon"),
			pred:       authz.InGroup("admin"),
			wantStatus: http.StatusForbidden,
			wantErrors: []string{"Not member of group: admin"},
		},
		{
			name:       "any group",
			identity:   member("peon"),
			pred:       authz.InAnyGroup("admin", "peon"),
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "not anonymous",
			identity:   identity.NewAnonymous(""),
			pred:       authz.NotAnonymous(),
			wantStatus: http.StatusUnauthorized,
			wantErrors: []string{"Anonymous access denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			c := newTestContext(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
			c.identity = tt.identity

			var called bool
			err := middlewares.Require(tt.pred)(func(c internal.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			})(c)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantErrors != nil {
				require.Len(t, c.failures, 1)
				assert.Equal(t, tt.wantErrors, c.failures[0].Errors)
			} else {
				assert.Empty(t, c.failures)
			}
		})
	}

	t.Run("identity disabled is a server error", func(t *testing.T) {
		t.Parallel()

		c := newTestContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		err := middlewares.Require(authz.NotAnonymous())(func(internal.Context) error {
			t.Fatal("handler must not run")
			return nil
		})(c)

		require.ErrorIs(t, err, identity.ErrNotEnabled)
		he := internal.AsHTTPError(err)
		require.NotNil(t, he)
		assert.Equal(t, http.StatusInternalServerError, he.Code)
	})

	t.Run("predicate from request", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		c := newTestContext(rec, httptest.NewRequest(http.MethodGet, "/?team=red", nil))
		c.identity = member("team-red")

		mw := middlewares.RequireFunc(func(c internal.Context) authz.Predicate {
			return authz.InGroup("team-" + c.Query("team"))
		})
		err := mw(func(c internal.Context) error { return c.NoContent(http.StatusAccepted) })(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

type protectedSite struct{}

func (protectedSite) Routes(r internal.Router) {
	r.GET("/secret", func(c internal.Context) error {
		return c.String(http.StatusOK, "secret")
	}, middlewares.Require(authz.NotAnonymous()))

	r.GET("/elsewhere", func(c internal.Context) error {
		return c.String(http.StatusOK, "secret")
	}, middlewares.Require(authz.NotAnonymous(), internal.WithFailureURL("/denied"), internal.WithExternalRedirect(true)))

	r.GET("/login", func(c internal.Context) error {
		f, _ := authz.FailureFromContext(c)
		_, err := c.Response().Write([]byte("login: " + strings.Join(f.Errors, ",") + " from " + c.Query("forward_url")))
		return err
	})
}

func TestRequireForwardsThroughApp(t *testing.T) {
	t.Parallel()

	store := visit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	visits, err := visit.NewManager(store)
	require.NoError(t, err)

	provider, err := identity.NewStoreProvider(identity.NewMemoryStore())
	require.NoError(t, err)
	resolver, err := identity.NewResolver(provider)
	require.NoError(t, err)

	app := internal.New(
		internal.WithVisits(visits),
		internal.WithIdentity(resolver, internal.WithFailureURL("/login")),
		internal.WithHandlers(protectedSite{}),
	)

	t.Run("internal forward", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/secret?page=2", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "login: Anonymous access denied from /secret", rec.Body.String())
	})

	t.Run("route options override the app failure url", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere?page=2", nil))

		require.Equal(t, http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/denied", loc.Path)
		assert.Equal(t, "2", loc.Query().Get("page"))
		assert.Equal(t, "/elsewhere", loc.Query().Get("forward_url"))
	})
}
