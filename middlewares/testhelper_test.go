package middlewares_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gearshift/gearshift/internal"
	"github.com/gearshift/gearshift/pkg/authz"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/visit"
)

// testContext is a minimal internal.Context for exercising middleware
// without an App.
type testContext struct {
	response http.ResponseWriter
	request  *http.Request
	identity *identity.Identity
	logged   []string
	failures []*authz.Failure
}

func newTestContext(w http.ResponseWriter, r *http.Request) *testContext {
	return &testContext{response: w, request: r}
}

func (c *testContext) Request() *http.Request        { return c.request }
func (c *testContext) Response() http.ResponseWriter { return c.response }
func (c *testContext) Context() context.Context      { return c.request.Context() }
func (c *testContext) Param(string) string           { return "" }
func (c *testContext) Query(name string) string      { return c.request.URL.Query().Get(name) }
func (c *testContext) QueryDefault(name, def string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return def
}
func (c *testContext) Form(name string) string      { return c.request.FormValue(name) }
func (c *testContext) Header(name string) string    { return c.request.Header.Get(name) }
func (c *testContext) SetHeader(name, value string) { c.response.Header().Set(name, value) }
func (c *testContext) JSON(code int, _ any) error   { c.response.WriteHeader(code); return nil }
func (c *testContext) String(code int, s string) error {
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}
func (c *testContext) NoContent(code int) error { c.response.WriteHeader(code); return nil }
func (c *testContext) Redirect(code int, url string) error {
	http.Redirect(c.response, c.request, url, code)
	return nil
}
func (c *testContext) Error(code int, message string, opts ...internal.HTTPErrorOption) *internal.HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}
func (c *testContext) Render(code int, component internal.Component) error {
	c.response.WriteHeader(code)
	return component.Render(c.request.Context(), c.response)
}
func (c *testContext) Written() bool             { return false }
func (c *testContext) Logger() *slog.Logger      { return slog.New(slog.DiscardHandler) }
func (c *testContext) LogDebug(string, ...any)   {}
func (c *testContext) LogInfo(string, ...any)    {}
func (c *testContext) LogWarn(string, ...any)    {}
func (c *testContext) LogError(msg string, _ ...any) { c.logged = append(c.logged, msg) }

func (c *testContext) Set(key, value any) {
	c.request = c.request.WithContext(context.WithValue(c.request.Context(), key, value))
}
func (c *testContext) Get(key any) any { return c.request.Context().Value(key) }

func (c *testContext) Cookie(name string) (string, error) {
	ck, err := c.request.Cookie(name)
	if err != nil {
		return "", err
	}
	return ck.Value, nil
}
func (c *testContext) SetCookie(name, value string, maxAge int) {
	http.SetCookie(c.response, &http.Cookie{Name: name, Value: value, MaxAge: maxAge})
}
func (c *testContext) DeleteCookie(name string) {
	http.SetCookie(c.response, &http.Cookie{Name: name, MaxAge: -1})
}
func (c *testContext) CookieSigned(string) (string, error)            { return "", nil }
func (c *testContext) SetCookieSigned(string, string, int) error      { return nil }
func (c *testContext) CookieEncrypted(string) (string, error)         { return "", nil }
func (c *testContext) SetCookieEncrypted(string, string, int) error   { return nil }
func (c *testContext) Flash(string, any) error                        { return nil }
func (c *testContext) SetFlash(string, any) error                     { return nil }
func (c *testContext) Visit() *visit.Visit                            { return nil }
func (c *testContext) Identity() *identity.Identity                   { return c.identity }
func (c *testContext) IdentityProvider() identity.Provider            { return nil }
func (c *testContext) LoginAttempted() bool                           { return false }
func (c *testContext) RemoteHost() string                             { return "192.0.2.1" }
func (c *testContext) Login(id *identity.Identity) error              { c.identity = id; return nil }
func (c *testContext) LoginForeign(identity.ForeignLogin) (*identity.Identity, error) { return nil, identity.ErrNotEnabled }
func (c *testContext) Logout() error                                  { c.identity = identity.NewAnonymous(""); return nil }
func (c *testContext) Forward(string, url.Values) error               { return nil }
func (c *testContext) Deadline() (time.Time, bool)                    { return c.request.Context().Deadline() }
func (c *testContext) Done() <-chan struct{}                          { return c.request.Context().Done() }
func (c *testContext) Err() error                                     { return c.request.Context().Err() }
func (c *testContext) Value(key any) any                              { return c.request.Context().Value(key) }

func (c *testContext) Fail(f *authz.Failure, _ ...internal.FailureOption) error {
	c.failures = append(c.failures, f)
	c.response.WriteHeader(f.Status())
	return nil
}
