// Package oauth implements the OAuth2 authorization code flow for Google
// and GitHub. A verified account becomes a foreign login: the provider name
// is the site ID and the account ID is the foreign ID passed to
// identity.Provider.ValidateForeignUser.
//
// # Usage
//
//	github, err := oauth.NewGitHubProvider(cfg.OAuth.GitHub)
//	if err != nil {
//		return err
//	}
//	providers := oauth.NewRegistry(github)
//
//	// Start the flow.
//	state, err := oauth.NewState()
//	url := github.AuthCodeURL(state)
//
//	// In the callback.
//	if err := oauth.VerifyState(issued, r.URL.Query().Get("state")); err != nil {
//		return err
//	}
//	token, err := github.Exchange(ctx, r.URL.Query().Get("code"), "")
//	info, err := github.FetchUserInfo(ctx, token)
//	id, err := identities.ValidateForeignUser(ctx, github.Name(), info.ID, visitKey)
//
// The handlers package wires this flow to routes, keeping the state in a
// signed cookie.
//
// # Custom Providers
//
// Implement the Provider interface to add support for other OAuth2 providers:
//
//	type MyProvider struct { /* ... */ }
//
//	func (p *MyProvider) Name() string { return "my-provider" }
//	func (p *MyProvider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string { /* ... */ }
//	func (p *MyProvider) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) { /* ... */ }
//	func (p *MyProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*oauth.UserInfo, error) { /* ... */ }
//
// # Testing
//
// Use WithHTTPClient with a RoundTripper that answers from an http.Handler
// to test without network access.
//
// # Error Handling
//
// The package provides sentinel errors for specific failure modes:
//
//   - ErrMissingClientID: Constructor called without client ID
//   - ErrMissingClientSecret: Constructor called without client secret
//   - ErrEmailNotVerified: Provider reports unverified email
//   - ErrFetchFailed: HTTP request to provider failed
//   - ErrUnknownProvider: Registry lookup of an unregistered name
//   - ErrStateMismatch: Callback state differs from the issued one
//   - ErrRequestFailed: Provider returned non-OK HTTP status
//   - ErrDecodeFailed: Failed to decode provider JSON response
//
// Use errors.Is for checking:
//
//	if errors.Is(err, oauth.ErrEmailNotVerified) {
//		// ask user to verify email
//	}
//
// # Security
//
// Both providers refuse accounts without a verified email. State values
// are compared in constant time.
package oauth
