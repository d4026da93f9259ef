package oauth

import (
	"context"
	"sort"

	"golang.org/x/oauth2"

	"github.com/gearshift/gearshift/pkg/identity"
)

// UserInfo is the provider-agnostic account returned by a userinfo endpoint.
type UserInfo struct {
	ID      string // Provider's unique user identifier
	Email   string
	Name    string
	Picture string
}

// ForeignLogin names the account for identity.Provider.ValidateForeignUser.
// The provider name is the foreign site ID.
func (u *UserInfo) ForeignLogin(provider string) identity.ForeignLogin {
	return identity.ForeignLogin{SiteID: provider, ForeignID: u.ID}
}

// Provider abstracts provider-specific OAuth operations.
type Provider interface {
	// Name returns the provider identifier, used as the foreign site ID.
	Name() string

	// AuthCodeURL generates the authorization URL for the OAuth flow.
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string

	// Exchange trades an authorization code for tokens. A non-empty
	// redirectURI overrides the configured one.
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// FetchUserInfo retrieves the account behind token. Accounts without a
	// verified email yield ErrEmailNotVerified.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// Registry looks providers up by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by Name. Nil providers are skipped so
// optional providers can be passed straight from configuration.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns the provider called name or ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int { return len(r.providers) }
