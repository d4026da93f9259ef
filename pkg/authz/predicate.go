package authz

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gearshift/gearshift/pkg/identity"
)

// Subject is what a predicate is evaluated against.
type Subject interface {
	Identity() *identity.Identity
	RemoteHost() string
}

// Report accumulates human readable reasons for a denial. Errors are meant
// for the user; Details hold the messages an Any node suppressed.
type Report struct {
	Errors  []string
	Details []string
}

func (r *Report) add(msg string) {
	if r != nil {
		r.Errors = append(r.Errors, msg)
	}
}

// Predicate is a boolean access rule. Eval appends a message to r, which may
// be nil, whenever it returns false. Predicates hold no state after
// construction and are safe for concurrent use.
type Predicate interface {
	Eval(s Subject, r *Report) bool
}

const (
	msgAnonymous   = "Anonymous access denied"
	msgHostDenied  = "Access from this host is not permitted."
	msgAnyFailed   = "No predicates were able to grant access"
	msgNotInGroup  = "Not member of group: %s"
	msgNoGroup     = "Not member of any group: %s"
	msgPermission  = "Permission denied: %s"
	msgNoPermsList = "No matching permissions: %s"
)

type allOf []Predicate

// All is true when every predicate is. Evaluation stops at the first false
// predicate, so later ones record nothing.
func All(preds ...Predicate) Predicate {
	return allOf(preds)
}

func (a allOf) Eval(s Subject, r *Report) bool {
	for _, p := range a {
		if !p.Eval(s, r) {
			return false
		}
	}
	return true
}

type anyOf struct {
	preds   []Predicate
	message string
}

// Any is true when at least one predicate is. Sub-predicate messages are
// not shown to the user; only the aggregate message is recorded when all of
// them fail.
func Any(preds ...Predicate) Predicate {
	return anyOf{preds: preds, message: msgAnyFailed}
}

func (a anyOf) Eval(s Subject, r *Report) bool {
	var scratch *Report
	if r != nil {
		scratch = &Report{}
	}
	for _, p := range a.preds {
		if p.Eval(s, scratch) {
			return true
		}
	}
	if r != nil {
		r.Errors = append(r.Errors, a.message)
		r.Details = append(r.Details, scratch.Errors...)
		r.Details = append(r.Details, scratch.Details...)
	}
	return false
}

type inGroup string

// InGroup requires membership in group.
func InGroup(group string) Predicate { return inGroup(group) }

func (g inGroup) Eval(s Subject, r *Report) bool {
	if s.Identity().InGroup(string(g)) {
		return true
	}
	r.add(fmt.Sprintf(msgNotInGroup, string(g)))
	return false
}

// InAllGroups requires membership in every group.
func InAllGroups(groups ...string) Predicate {
	preds := make([]Predicate, len(groups))
	for i, g := range groups {
		preds[i] = InGroup(g)
	}
	return All(preds...)
}

// InAnyGroup requires membership in at least one group.
func InAnyGroup(groups ...string) Predicate {
	preds := make([]Predicate, len(groups))
	for i, g := range groups {
		preds[i] = InGroup(g)
	}
	return anyOf{preds: preds, message: fmt.Sprintf(msgNoGroup, strings.Join(groups, ", "))}
}

type hasPermission string

// HasPermission requires permission.
func HasPermission(permission string) Predicate { return hasPermission(permission) }

func (p hasPermission) Eval(s Subject, r *Report) bool {
	if s.Identity().HasPermission(string(p)) {
		return true
	}
	r.add(fmt.Sprintf(msgPermission, string(p)))
	return false
}

// HasAllPermissions requires every permission.
func HasAllPermissions(permissions ...string) Predicate {
	preds := make([]Predicate, len(permissions))
	for i, p := range permissions {
		preds[i] = HasPermission(p)
	}
	return All(preds...)
}

// HasAnyPermission requires at least one permission.
func HasAnyPermission(permissions ...string) Predicate {
	preds := make([]Predicate, len(permissions))
	for i, p := range permissions {
		preds[i] = HasPermission(p)
	}
	return anyOf{preds: preds, message: fmt.Sprintf(msgNoPermsList, strings.Join(permissions, ", "))}
}

type notAnonymous struct{}

// NotAnonymous requires an authenticated user.
func NotAnonymous() Predicate { return notAnonymous{} }

func (notAnonymous) Eval(s Subject, r *Report) bool {
	if !s.Identity().Anonymous() {
		return true
	}
	r.add(msgAnonymous)
	return false
}

type fromHost netip.Prefix

// FromHost requires the remote host to match spec, an exact address such as
// "10.0.0.1" or a prefix such as "10.0.0.0/8". IPv4-mapped IPv6 addresses
// are compared as IPv4. It panics if spec does not parse; host rules are
// static configuration.
func FromHost(spec string) Predicate {
	prefix, err := ParseHostSpec(spec)
	if err != nil {
		panic(err)
	}
	return fromHost(prefix)
}

// ParseHostSpec parses an address or address/prefix into a prefix.
func ParseHostSpec(spec string) (netip.Prefix, error) {
	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, "/") {
		p, err := netip.ParsePrefix(spec)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidHostSpec, spec)
		}
		addr := p.Addr()
		bits := p.Bits()
		if addr.Is4In6() && bits >= 96 {
			addr, bits = addr.Unmap(), bits-96
		}
		return netip.PrefixFrom(addr, bits).Masked(), nil
	}
	addr, err := netip.ParseAddr(spec)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidHostSpec, spec)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (h fromHost) Eval(s Subject, r *Report) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s.RemoteHost()))
	if err == nil && netip.Prefix(h).Contains(addr.WithZone("").Unmap()) {
		return true
	}
	r.add(msgHostDenied)
	return false
}

// FromAnyHost requires the remote host to match one of specs.
func FromAnyHost(specs ...string) Predicate {
	preds := make([]Predicate, len(specs))
	for i, spec := range specs {
		preds[i] = FromHost(spec)
	}
	return anyOf{preds: preds, message: msgHostDenied}
}
