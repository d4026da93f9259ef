package oauth

// GoogleConfig holds Google OAuth configuration. The provider is enabled
// when both the client ID and secret are set.
type GoogleConfig struct {
	ClientID     string   `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string   `env:"GOOGLE_OAUTH_REDIRECT_URL"`
	Scopes       []string `env:"GOOGLE_OAUTH_SCOPES" envSeparator:","`
}

func (c GoogleConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// GitHubConfig holds GitHub OAuth configuration. The provider is enabled
// when both the client ID and secret are set.
type GitHubConfig struct {
	ClientID     string   `env:"GITHUB_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	RedirectURL  string   `env:"GITHUB_OAUTH_REDIRECT_URL"`
	Scopes       []string `env:"GITHUB_OAUTH_SCOPES" envSeparator:","`
}

func (c GitHubConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }
