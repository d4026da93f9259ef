package oauth

import (
	"context"
	"strconv"

	"golang.org/x/oauth2"
	githubOAuth "golang.org/x/oauth2/github"
)

const (
	// GitHubProviderName is the identifier for GitHub OAuth provider.
	GitHubProviderName = "github"
	githubUserURL      = "https://api.github.com/user"
	githubEmailsURL    = "https://api.github.com/user/emails"
)

// GitHubDefaultScopes returns the default scopes for GitHub OAuth.
func GitHubDefaultScopes() []string {
	return []string{"read:user", "user:email"}
}

// GitHubProvider implements Provider for GitHub OAuth.
type GitHubProvider struct {
	client
}

// NewGitHubProvider creates a new GitHub OAuth provider.
// Returns an error if ClientID or ClientSecret is empty.
func NewGitHubProvider(cfg GitHubConfig, opts ...Option) (*GitHubProvider, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = GitHubDefaultScopes()
	}
	c, err := newClient(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, scopes, githubOAuth.Endpoint, opts)
	if err != nil {
		return nil, err
	}
	return &GitHubProvider{client: c}, nil
}

func (p *GitHubProvider) Name() string {
	return GitHubProviderName
}

// FetchUserInfo retrieves the GitHub account. The primary verified email is
// preferred, then any verified one.
func (p *GitHubProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	var user githubUser
	if err := p.getJSON(ctx, token, githubUserURL, &user); err != nil {
		return nil, err
	}

	var emails []githubEmail
	if err := p.getJSON(ctx, token, githubEmailsURL, &emails); err != nil {
		return nil, err
	}

	email, ok := verifiedEmail(emails)
	if !ok {
		return nil, ErrEmailNotVerified
	}

	return &UserInfo{
		ID:      strconv.FormatInt(user.ID, 10),
		Email:   email,
		Name:    user.Name,
		Picture: user.AvatarURL,
	}, nil
}

func verifiedEmail(emails []githubEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	return "", false
}

type githubUser struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	ID        int64  `json:"id"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}
