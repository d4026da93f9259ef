package oauth

import (
	"context"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

const (
	// GoogleProviderName is the identifier for Google OAuth provider.
	GoogleProviderName = "google"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleDefaultScopes returns the default scopes for Google OAuth.
func GoogleDefaultScopes() []string {
	return []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
}

// GoogleProvider implements Provider for Google OAuth.
type GoogleProvider struct {
	client
}

// NewGoogleProvider creates a new Google OAuth provider.
// Returns an error if ClientID or ClientSecret is empty.
func NewGoogleProvider(cfg GoogleConfig, opts ...Option) (*GoogleProvider, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = GoogleDefaultScopes()
	}
	c, err := newClient(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, scopes, googleOAuth.Endpoint, opts)
	if err != nil {
		return nil, err
	}
	return &GoogleProvider{client: c}, nil
}

func (p *GoogleProvider) Name() string {
	return GoogleProviderName
}

// FetchUserInfo retrieves the Google account. Unverified emails are rejected.
func (p *GoogleProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	var u googleUserInfo
	if err := p.getJSON(ctx, token, googleUserInfoURL, &u); err != nil {
		return nil, err
	}
	if !u.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}
	return &UserInfo{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}, nil
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}
