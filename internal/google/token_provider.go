package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"

	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/store"
)

// ErrNoToken is returned when no Google account is connected.
var ErrNoToken = errors.New("no google account connected")

// cacheKey is the token store key of the single connected account.
const cacheKey = "default"

// SettingsStore persists the token.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string, v any) (bool, error)
	PutSetting(ctx context.Context, key string, v any) error
	DeleteSetting(ctx context.Context, key string) error
}

// TokenProvider provides the token of the connected account. It reads through
// an in-memory token store and writes through to the settings table.
type TokenProvider struct {
	settings SettingsStore
	cache    storage.TokenStore
	conf     *oauth2.Config
	logger   *slog.Logger
}

// NewTokenProvider creates a TokenProvider. conf may be nil when OAuth is not
// configured; the provider then only reports and deletes stored tokens.
func NewTokenProvider(settings SettingsStore, cache storage.TokenStore, conf *oauth2.Config, logger *slog.Logger) *TokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenProvider{
		settings: settings,
		cache:    cache,
		conf:     conf,
		logger:   logging.WithComponent(logger, "google"),
	}
}

// Configured reports whether an OAuth client is available.
func (p *TokenProvider) Configured() bool {
	return p.conf != nil
}

// GetToken returns the stored token or ErrNoToken.
func (p *TokenProvider) GetToken(ctx context.Context) (*oauth2.Token, error) {
	if t, err := p.cache.GetToken(ctx, cacheKey); err == nil && t != nil {
		return t, nil
	}

	var t oauth2.Token
	ok, err := p.settings.GetSetting(ctx, store.SettingGoogleToken, &t)
	if err != nil {
		return nil, err
	}
	if !ok || (t.AccessToken == "" && t.RefreshToken == "") {
		return nil, ErrNoToken
	}

	if err := p.cache.SaveToken(ctx, cacheKey, &t); err != nil {
		p.logger.Warn("failed to cache google token", logging.Err(err))
	}
	return &t, nil
}

// HasToken reports whether an account is connected.
func (p *TokenProvider) HasToken(ctx context.Context) bool {
	_, err := p.GetToken(ctx)
	return err == nil
}

// SaveToken persists t and refreshes the cache.
func (p *TokenProvider) SaveToken(ctx context.Context, t *oauth2.Token) error {
	if t == nil {
		return fmt.Errorf("token is nil")
	}
	if err := p.settings.PutSetting(ctx, store.SettingGoogleToken, t); err != nil {
		return fmt.Errorf("failed to persist google token: %w", err)
	}
	if err := p.cache.SaveToken(ctx, cacheKey, t); err != nil {
		p.logger.Warn("failed to cache google token", logging.Err(err))
	}
	return nil
}

// DeleteToken forgets the connected account.
func (p *TokenProvider) DeleteToken(ctx context.Context) error {
	if err := p.settings.DeleteSetting(ctx, store.SettingGoogleToken); err != nil {
		return err
	}
	if err := p.cache.DeleteToken(ctx, cacheKey); err != nil {
		p.logger.Debug("google token was not cached", logging.Err(err))
	}
	return nil
}

// AuthURL returns the consent page URL for state.
func (p *TokenProvider) AuthURL(state string) (string, error) {
	if p.conf == nil {
		return "", ErrNotConfigured
	}
	return AuthURL(p.conf, state), nil
}

// Connect exchanges code for a token and stores it.
func (p *TokenProvider) Connect(ctx context.Context, code string) error {
	if p.conf == nil {
		return ErrNotConfigured
	}
	t, err := Exchange(ctx, p.conf, code)
	if err != nil {
		return err
	}
	if t.RefreshToken == "" {
		p.logger.Warn("google did not return a refresh token; access ends when the token expires")
	}
	if err := p.SaveToken(ctx, t); err != nil {
		return err
	}
	p.logger.Info("google account connected", slog.String("token", logging.SanitizeToken(t.AccessToken)))
	return nil
}

// TokenSource returns a refreshing token source that persists refreshed
// tokens.
func (p *TokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if p.conf == nil {
		return nil, ErrNotConfigured
	}
	t, err := p.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		base:     p.conf.TokenSource(context.WithoutCancel(ctx), t),
		provider: p,
		last:     t.AccessToken,
	}, nil
}

// HTTPClient returns an HTTP client authorised as the connected account.
func (p *TokenProvider) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return newHTTPClient(ctx, ts), nil
}

// persistingTokenSource saves every token the base source refreshes.
type persistingTokenSource struct {
	base     oauth2.TokenSource
	provider *TokenProvider

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		if err := s.provider.SaveToken(context.Background(), t); err != nil {
			s.provider.logger.Error("failed to persist refreshed google token", logging.Err(err))
		} else {
			s.provider.logger.Debug("google token refreshed")
		}
	}
	return t, nil
}
