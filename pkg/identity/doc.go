// Package identity resolves who is making a request.
//
// A [Provider] validates credentials and loads the identity linked to a
// visit. [StoreProvider] implements it on top of a [Store]; memory, postgres
// and redis stores are bound to their [backend.Kind] by [NewRegistry].
// Passwords are checked with a [Hasher] (none, md5, sha1, custom or bcrypt).
//
// A [Resolver] tries the configured sources in order for every request:
//
//   - form: a submitted login form (user_name, password and login fields)
//   - http_auth: an Authorization: Basic header
//   - visit: the user linked to the request's visit key
//   - oauth or foreign:<site>: an external account placed in the request
//     context with [WithForeignLogin]
//
// The first source that yields an identity wins; otherwise the provider's
// anonymous identity is used. A wrong user name and a wrong password are
// indistinguishable to the caller.
//
//	store := identity.NewMemoryStore()
//	provider, _ := identity.NewStoreProvider(store, identity.WithHasher(hasher))
//	resolver, _ := identity.NewResolver(provider, identity.WithSources(identity.DefaultSources()...))
//	res, err := resolver.Resolve(ctx, r, visitKey)
package identity
