package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/store"
)

// newTokenServer fakes Google's token endpoint. Every request issues a new
// access token.
func newTokenServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var issued int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		n := atomic.AddInt32(&issued, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + string(rune('0'+n)),
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &issued
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3001/api/calendar/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenURL},
		Scopes:       DefaultOAuthScopes,
	}
}

func newTestProvider(t *testing.T, conf *oauth2.Config) (*TokenProvider, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "google.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := memory.New()
	t.Cleanup(func() { cache.Stop() })

	return NewTokenProvider(db, cache, conf, nil), db
}

func TestNewOAuthConfig(t *testing.T) {
	_, err := NewOAuthConfig(config.GoogleConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	conf, err := NewOAuthConfig(config.GoogleConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "id", conf.ClientID)
	assert.Equal(t, "http://localhost/cb", conf.RedirectURL)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar"}, conf.Scopes)
}

func TestAuthURL(t *testing.T) {
	raw := AuthURL(testOAuthConfig("http://unused"), "state-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "auth/calendar")
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestExchange(t *testing.T) {
	srv, _ := newTokenServer(t)
	conf := testOAuthConfig(srv.URL)

	_, err := Exchange(context.Background(), conf, "  ")
	assert.Error(t, err)

	tok, err := Exchange(context.Background(), conf, "code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-token", tok.RefreshToken)
}

func TestTokenProvider_ConnectAndPersist(t *testing.T) {
	srv, _ := newTokenServer(t)
	conf := testOAuthConfig(srv.URL)
	p, db := newTestProvider(t, conf)
	ctx := context.Background()

	_, err := p.GetToken(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, p.HasToken(ctx))

	require.NoError(t, p.Connect(ctx, "code"))
	assert.True(t, p.HasToken(ctx))

	// a fresh provider with an empty cache reads the persisted token
	cache := memory.New()
	defer cache.Stop()
	fresh := NewTokenProvider(db, cache, conf, nil)
	tok, err := fresh.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	require.NoError(t, p.DeleteToken(ctx))
	assert.False(t, p.HasToken(ctx))
	require.NoError(t, p.DeleteToken(ctx))
}

func TestTokenProvider_NotConfigured(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	assert.False(t, p.Configured())
	_, err := p.AuthURL("s")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, p.Connect(ctx, "code"), ErrNotConfigured)
	_, err = p.HTTPClient(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTokenSource_PersistsRefreshedToken(t *testing.T) {
	srv, issued := newTokenServer(t)
	p, db := newTestProvider(t, testOAuthConfig(srv.URL))
	ctx := context.Background()

	require.NoError(t, p.SaveToken(ctx, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	ts, err := p.TokenSource(ctx)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(issued))

	var stored oauth2.Token
	ok, err := db.GetSetting(ctx, store.SettingGoogleToken, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-1", stored.AccessToken)

	// a valid token is reused without another refresh
	_, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(issued))
}
