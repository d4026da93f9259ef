package internal_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/cookie"
)

func TestExtractor(t *testing.T) {
	t.Parallel()

	t.Run("empty sources returns false", func(t *testing.T) {
		t.Parallel()

		ext := internal.NewExtractor()
		requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), nil, func(c internal.Context) {
			v, ok := ext.Extract(c)
			require.False(t, ok)
			require.Empty(t, v)
		})
	})

	t.Run("first source wins", func(t *testing.T) {
		t.Parallel()

		ext := internal.NewExtractor(
			internal.FromCookie("tg-visit"),
			internal.PopForm("tg_visit"),
		)

		req := httptest.NewRequest(http.MethodGet, "/?tg_visit=from-form", nil)
		req.AddCookie(&http.Cookie{Name: "tg-visit", Value: "from-cookie"})

		requestVia(t, req, nil, func(c internal.Context) {
			v, ok := ext.Extract(c)
			require.True(t, ok)
			require.Equal(t, "from-cookie", v)
		})
	})

	t.Run("falls through when first misses", func(t *testing.T) {
		t.Parallel()

		ext := internal.NewExtractor(
			internal.FromCookie("tg-visit"),
			internal.PopForm("tg_visit"),
		)

		req := httptest.NewRequest(http.MethodGet, "/?tg_visit=from-form", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			v, ok := ext.Extract(c)
			require.True(t, ok)
			require.Equal(t, "from-form", v)
		})
	})
}

func TestFromCookieSigned(t *testing.T) {
	t.Parallel()

	opts := []internal.Option{
		internal.WithCookieOptions(cookie.WithSecret(strings.Repeat("x", 32))),
	}
	src := internal.FromCookieSigned("tg-visit")

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()

		w := requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), opts, func(c internal.Context) {
			require.NoError(t, c.SetCookieSigned("tg-visit", "abc123", 3600))
		})
		cookies := w.Result().Cookies()
		require.NotEmpty(t, cookies)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		requestVia(t, req, opts, func(c internal.Context) {
			v, ok := src(c)
			require.True(t, ok)
			require.Equal(t, "abc123", v)
		})
	})

	t.Run("tampered cookie is a miss", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "tg-visit", Value: "abc123.forged"})
		requestVia(t, req, opts, func(c internal.Context) {
			v, ok := src(c)
			require.False(t, ok)
			require.Empty(t, v)
		})
	})
}

func TestPopForm(t *testing.T) {
	t.Parallel()

	t.Run("query parameter is removed", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/?tg_visit=abc&q=1", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			v, ok := internal.PopForm("tg_visit")(c)
			require.True(t, ok)
			require.Equal(t, "abc", v)
			require.Empty(t, c.Form("tg_visit"))
			require.Equal(t, "1", c.Form("q"))
		})
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), nil, func(c internal.Context) {
			_, ok := internal.PopForm("tg_visit")(c)
			require.False(t, ok)
		})
	})
}
