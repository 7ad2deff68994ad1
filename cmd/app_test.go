package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuratask/insuratask/internal/config"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "insuratask.db")
	cfg.Scheduler.Timezone = "UTC"

	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), appOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewApp(t *testing.T) {
	a := newTestApp(t)

	assert.Equal(t, "UTC", a.loc.String())
	assert.False(t, a.tokens.Configured())
	require.NoError(t, a.db.Ping(context.Background()))

	st, err := a.sync.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Configured)
	assert.False(t, st.Connected)

	require.NoError(t, a.Close())
	// closing twice is a no-op
	require.NoError(t, a.Close())
}

func TestNewApp_WithGoogleCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "insuratask.db")
	cfg.Google.ClientID = "client"
	cfg.Google.ClientSecret = "secret"

	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), appOptions{})
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.tokens.Configured())
	url, err := a.tokens.AuthURL("state123")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state123")
	assert.Contains(t, url, "client_id=client")
}
