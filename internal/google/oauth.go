package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/insuratask/insuratask/internal/config"
)

// ErrNotConfigured is returned when no OAuth client credentials are set.
var ErrNotConfigured = errors.New("google oauth client is not configured")

// NewOAuthConfig returns the OAuth2 configuration for the calendar client.
func NewOAuthConfig(cfg config.GoogleConfig) (*oauth2.Config, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       DefaultOAuthScopes,
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AuthURL returns the consent page URL. Offline access with forced consent
// makes Google return a refresh token on every connect.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	t, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return t, nil
}

// newHTTPClient returns an HTTP client authorised by ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func newHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}
