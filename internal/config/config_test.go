package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7345", cfg.ListenAddr)
	assert.Equal(t, "ws://localhost:8080/channels", cfg.BackendURL)
	assert.Equal(t, time.Second, cfg.Policy.BaseDelay)
	assert.Equal(t, 10, cfg.Policy.MaxAttempts)
	assert.Empty(t, cfg.Channels)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OVERCHAT_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("OVERCHAT_RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("OVERCHAT_RECONNECT_MAX_ATTEMPTS", "4")
	t.Setenv("OVERCHAT_SETTLE_DELAY", "100ms")
	t.Setenv("OVERCHAT_CHANNELS", "Alpha=room-7f, beta")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.Policy.BaseDelay)
	assert.Equal(t, 4, cfg.Policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "room-7f", cfg.Channels["alpha"])
	assert.Equal(t, "beta", cfg.Channels["beta"])
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("OVERCHAT_RECONNECT_BASE_DELAY", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OVERCHAT_RECONNECT_BASE_DELAY")
}

func TestLoadInvalidMaxAttempts(t *testing.T) {
	t.Setenv("OVERCHAT_RECONNECT_MAX_ATTEMPTS", "many")
	_, err := Load()
	require.Error(t, err)
}

func TestParseChannels(t *testing.T) {
	dir, err := ParseChannels("alpha=room-1,,beta , Gamma=Room-3")
	require.NoError(t, err)
	assert.Equal(t, "room-1", dir["alpha"])
	assert.Equal(t, "beta", dir["beta"])
	assert.Equal(t, "Room-3", dir["gamma"])

	_, err = ParseChannels("=route")
	assert.Error(t, err)
}

func TestDirectoryFallsBackToPassthrough(t *testing.T) {
	cfg := &Config{}
	_, found, err := cfg.Directory().Lookup(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, found)
}
