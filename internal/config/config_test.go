package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "ws://localhost:3001", cfg.Transport.URL)
	assert.Equal(t, 1000, cfg.Transport.Backoff.InitialMs)
	assert.Equal(t, 1.5, cfg.Transport.Backoff.Factor)
	assert.Equal(t, 30000, cfg.Transport.Backoff.MaxMs)
	assert.Equal(t, 0.0, cfg.Transport.Backoff.Jitter)
	assert.True(t, cfg.Transport.Backoff.GiveUpEnabled())
	assert.Equal(t, "http://localhost:3001", cfg.API.BaseURL)
	assert.Equal(t, "consumer", cfg.Identity.Role)
	assert.Equal(t, 3001, cfg.Relay.Port)
	assert.Equal(t, "loopback", cfg.Relay.Bind)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "pretty", cfg.Logging.ConsoleStyle)
}

func TestDurations(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, time.Second, cfg.Transport.Backoff.Initial())
	assert.Equal(t, 30*time.Second, cfg.Transport.Backoff.Max())
	assert.Equal(t, 10*time.Second, cfg.Transport.HandshakeTimeout())
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout())
	assert.Equal(t, 15*time.Second, cfg.API.Timeout())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, "ws://localhost:3001", cfg.Transport.URL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
transport:
  url: wss://chat.example.com/socket
  backoff:
    initialMs: 500
    factor: 2
    maxMs: 8000
    giveUp: false
api:
  baseUrl: https://api.example.com
  token: abc
identity:
  id: admin-7
  role: admin
relay:
  port: 4000
  bind: lan
  allowedOrigins:
    - https://app.example.com
logging:
  level: debug
  consoleStyle: json
hooks:
  givenUp:
    - command: notify-send "chat offline"
      timeout: 2000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/socket", cfg.Transport.URL)
	assert.Equal(t, 500, cfg.Transport.Backoff.InitialMs)
	assert.Equal(t, 2.0, cfg.Transport.Backoff.Factor)
	assert.Equal(t, 8000, cfg.Transport.Backoff.MaxMs)
	assert.False(t, cfg.Transport.Backoff.GiveUpEnabled())
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "abc", cfg.API.Token)
	assert.Equal(t, "admin-7", cfg.Identity.ID)
	assert.Equal(t, "admin", cfg.Identity.Role)
	assert.Equal(t, 4000, cfg.Relay.Port)
	assert.Equal(t, "lan", cfg.Relay.Bind)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	require.Len(t, cfg.Hooks.GivenUp, 1)
	assert.Equal(t, 2000, cfg.Hooks.GivenUp[0].Timeout)

	// Unset fields still get defaults
	assert.Equal(t, 10000, cfg.Transport.HandshakeTimeoutMs)
	assert.Equal(t, 90000, cfg.Transport.IdleTimeoutMs)
	assert.Equal(t, 15, cfg.API.TimeoutSeconds)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SLOTCHAT_TRANSPORT_URL", "ws://relay:9000")
	t.Setenv("SLOTCHAT_API_URL", "http://relay:9000")
	t.Setenv("SLOTCHAT_IDENTITY_ID", "u42")
	t.Setenv("SLOTCHAT_IDENTITY_ROLE", "PUBLISHER")
	t.Setenv("SLOTCHAT_RELAY_PORT", "12345")
	t.Setenv("SLOTCHAT_RELAY_TOKEN", "relay-secret")
	t.Setenv("SLOTCHAT_LOG_LEVEL", "TRACE")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ws://relay:9000", cfg.Transport.URL)
	assert.Equal(t, "http://relay:9000", cfg.API.BaseURL)
	assert.Equal(t, "u42", cfg.Identity.ID)
	assert.Equal(t, "publisher", cfg.Identity.Role)
	assert.Equal(t, 12345, cfg.Relay.Port)
	assert.Equal(t, "relay-secret", cfg.Relay.Token)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoadExpandsToken(t *testing.T) {
	t.Setenv("MARKET_CHAT_TOKEN", "s3cret")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  token: ${MARKET_CHAT_TOKEN}\nrelay:\n  token: ${MARKET_CHAT_TOKEN}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.API.Token)
	assert.Equal(t, "s3cret", cfg.Relay.Token)
}

func TestExpandEnvVarsLeavesUnset(t *testing.T) {
	assert.Equal(t, "${SLOTCHAT_SURELY_UNSET_VAR}", expandEnvVars("${SLOTCHAT_SURELY_UNSET_VAR}"))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"relay": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := Lookup(loaded, Key{"relay", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestLoadRawMissingAndEmpty(t *testing.T) {
	raw, err := LoadRaw("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Empty(t, raw)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	raw, err = LoadRaw(path)
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
