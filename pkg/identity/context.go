package identity

import "context"

// ForeignLogin is an account proven by an external site, such as an OAuth
// provider, for the current request.
type ForeignLogin struct {
	SiteID    string
	ForeignID string
}

type foreignLoginKey struct{}

// WithForeignLogin stores a proven external account in ctx for the oauth
// identity source.
func WithForeignLogin(ctx context.Context, fl ForeignLogin) context.Context {
	return context.WithValue(ctx, foreignLoginKey{}, fl)
}

// ForeignLoginFromContext returns the external account stored by WithForeignLogin.
func ForeignLoginFromContext(ctx context.Context) (ForeignLogin, bool) {
	fl, ok := ctx.Value(foreignLoginKey{}).(ForeignLogin)
	return fl, ok && fl.SiteID != "" && fl.ForeignID != ""
}
