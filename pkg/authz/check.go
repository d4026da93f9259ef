package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/gearshift/gearshift/pkg/identity"
)

// Failure describes a denied request.
type Failure struct {
	// Errors are shown to the user on the failure page.
	Errors []string
	// Details are the suppressed messages of failing Any nodes, for logs.
	Details []string
	// Anonymous is true when the denied identity had no user.
	Anonymous bool
}

func (f *Failure) Error() string {
	if len(f.Errors) == 0 {
		return "authorization failed"
	}
	return "authorization failed: " + strings.Join(f.Errors, "; ")
}

// Status is 401 for anonymous identities and 403 otherwise.
func (f *Failure) Status() int {
	if f.Anonymous {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// Check evaluates pred against s. It returns nil when access is granted.
func Check(pred Predicate, s Subject) *Failure {
	var r Report
	if pred.Eval(s, &r) {
		return nil
	}
	return &Failure{
		Errors:    r.Errors,
		Details:   r.Details,
		Anonymous: s.Identity().Anonymous(),
	}
}

type subject struct {
	id   *identity.Identity
	host string
}

func (s subject) Identity() *identity.Identity { return s.id }
func (s subject) RemoteHost() string { return s.host }

// NewSubject pairs an identity with a remote host.
func NewSubject(id *identity.Identity, remoteHost string) Subject {
	return subject{id: id, host: remoteHost}
}

type failureKey struct{}

// WithFailure stores f in ctx for the failure page.
func WithFailure(ctx context.Context, f *Failure) context.Context {
	return context.WithValue(ctx, failureKey{}, f)
}

// FailureFromContext returns the failure that led to the current request
// being forwarded, if any.
func FailureFromContext(ctx context.Context) (*Failure, bool) {
	f, ok := ctx.Value(failureKey{}).(*Failure)
	return f, ok && f != nil
}
