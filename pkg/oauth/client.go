package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// client holds the oauth2 configuration shared by the concrete providers.
type client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func newClient(id, secret, redirect string, scopes []string, endpoint oauth2.Endpoint, opts []Option) (client, error) {
	if id == "" {
		return client{}, ErrMissingClientID
	}
	if secret == "" {
		return client{}, ErrMissingClientSecret
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return client{
		config: &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			RedirectURL:  redirect,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: o.httpClient,
	}, nil
}

// AuthCodeURL generates the authorization URL.
func (c client) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return c.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens.
func (c client) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	cfg := c.config
	if redirectURI != "" {
		cp := *c.config
		cp.RedirectURL = redirectURI
		cfg = &cp
	}
	return cfg.Exchange(c.withHTTPClient(ctx), code)
}

func (c client) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}

// getJSON fetches url with the token's credentials and decodes the body into dest.
func (c client) getJSON(ctx context.Context, token *oauth2.Token, url string, dest any) error {
	ctx = c.withHTTPClient(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Join(ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.config.Client(ctx, token).Do(req)
	if err != nil {
		return errors.Join(ErrFetchFailed, fmt.Errorf("get %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Join(ErrRequestFailed, fmt.Errorf("get %s: status=%d body=%s", url, resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Join(ErrDecodeFailed, fmt.Errorf("decode %s: %w", url, err))
	}
	return nil
}
