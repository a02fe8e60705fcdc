package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:3000/ws", cfg.Server.URL)
	assert.Equal(t, uint16(7070), cfg.Bridge.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.TypingIdle)
	assert.Equal(t, 3*time.Second, cfg.Session.NoticeTTL)
	assert.Equal(t, 30*time.Second, cfg.Negotiation.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.IdentityCache.TTL)
	assert.Equal(t, "zap", cfg.Logger.Logger)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  url: ws://chat.example:9000/ws
session:
  typing_idle: 2s
negotiation:
  cooldown: 0s
logger:
  logger: zerolog
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://chat.example:9000/ws", cfg.Server.URL)
	assert.Equal(t, 2*time.Second, cfg.Session.TypingIdle)
	assert.Equal(t, time.Duration(0), cfg.Negotiation.Cooldown)
	assert.Equal(t, "zerolog", cfg.Logger.Logger)
	// untouched keys keep their defaults
	assert.Equal(t, 3*time.Second, cfg.Session.NoticeTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOUNGE_SERVER_URL", "ws://env:1/ws")
	t.Setenv("LOUNGE_BRIDGE_PORT", "9191")
	t.Setenv("LOUNGE_DECLINE_COOLDOWN", "0s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ws://env:1/ws", cfg.Server.URL)
	assert.Equal(t, uint16(9191), cfg.Bridge.Port)
	assert.Equal(t, time.Duration(0), cfg.Negotiation.Cooldown)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
