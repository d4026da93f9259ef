package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseWriterStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		implicit  int
		writeCode int
		want      int
	}{
		{name: "plain body", implicit: http.StatusOK, want: http.StatusOK},
		{name: "forwarded anonymous failure", implicit: http.StatusUnauthorized, want: http.StatusUnauthorized},
		{name: "forwarded page overrides status", implicit: http.StatusForbidden, writeCode: http.StatusOK, want: http.StatusOK},
		{name: "explicit error status", implicit: http.StatusOK, writeCode: http.StatusTeapot, want: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			rw := newResponseWriterWithStatus(rec, tt.implicit)
			assert.False(t, rw.Written())

			if tt.writeCode != 0 {
				rw.WriteHeader(tt.writeCode)
			}
			n, err := rw.Write([]byte("login"))
			require.NoError(t, err)

			assert.Equal(t, 5, n)
			assert.True(t, rw.Written())
			assert.Equal(t, tt.want, rw.Status())
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, int64(5), rw.Size())
		})
	}
}

func TestResponseWriterHeaderSentOnce(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.Header().Set("X-Visit", "abc")

	rw.WriteHeader(http.StatusFound)
	rw.WriteHeader(http.StatusInternalServerError)
	_, _ = rw.Write([]byte("a"))
	_, _ = rw.Write([]byte("bc"))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, http.StatusFound, rw.Status())
	assert.Equal(t, "abc", rec.Header().Get("X-Visit"))
	assert.Equal(t, "abc", rec.Body.String())
	assert.Equal(t, int64(3), rw.Size())
}

func TestResponseWriterPassthrough(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.Flush()
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, rw.Unwrap())

	_, _, err := rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}
