package internal_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/identity"
)

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	t.Run("wrapped error keeps its sentinel", func(t *testing.T) {
		t.Parallel()

		httpErr := internal.ErrInternal("Identity management is not enabled", internal.WithError(identity.ErrNotEnabled))
		err := fmt.Errorf("logout: %w", httpErr)

		got := internal.AsHTTPError(err)
		require.NotNil(t, got)
		assert.Equal(t, http.StatusInternalServerError, got.Code)
		assert.True(t, internal.IsHTTPError(err))
		assert.ErrorIs(t, err, identity.ErrNotEnabled)
	})

	t.Run("plain and nil errors", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, internal.AsHTTPError(errors.New("boom")))
		assert.Nil(t, internal.AsHTTPError(nil))
		assert.False(t, internal.IsHTTPError(nil))
	})
}

func TestDefaultErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "http error keeps status and message",
			err:      internal.ErrBadRequest("OAuth state mismatch"),
			wantCode: http.StatusBadRequest,
			wantBody: "OAuth state mismatch",
		},
		{
			name:     "wrapped http error",
			err:      fmt.Errorf("callback: %w", internal.NewHTTPError(http.StatusBadGateway, "Provider unavailable")),
			wantCode: http.StatusBadGateway,
			wantBody: "Provider unavailable",
		},
		{
			name:     "plain error hides details",
			err:      errors.New("pq: connection refused"),
			wantCode: http.StatusInternalServerError,
			wantBody: http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := internal.New(internal.WithHandlers(&errorRoute{err: tt.err}))
			w := httptest.NewRecorder()
			app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestCustomErrorHandler(t *testing.T) {
	t.Parallel()

	var got error
	app := internal.New(
		internal.WithErrorHandler(func(c internal.Context, err error) error {
			got = err
			return c.String(http.StatusTeapot, "custom")
		}),
		internal.WithHandlers(&errorRoute{err: internal.ErrNotFound("missing")}),
	)

	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "custom", w.Body.String())
	require.NotNil(t, internal.AsHTTPError(got))
	assert.Equal(t, http.StatusNotFound, internal.AsHTTPError(got).Code)
}

type errorRoute struct {
	err error
}

func (h *errorRoute) Routes(r internal.Router) {
	r.GET("/", func(internal.Context) error { return h.err })
}
