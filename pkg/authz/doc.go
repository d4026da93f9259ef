// Package authz evaluates access rules against the identity of a request.
//
// Predicates compose with [All] and [Any]:
//
//	adminOnly := authz.All(
//		authz.NotAnonymous(),
//		authz.Any(authz.InGroup("admin"), authz.FromHost("10.0.0.0/8")),
//	)
//	if f := authz.Check(adminOnly, authz.NewSubject(id, host)); f != nil {
//		// f.Errors holds the messages for the failure page.
//	}
//
// Host rules match the client address against an exact address or a CIDR
// prefix, comparing IPv4-mapped IPv6 addresses as IPv4.
package authz
