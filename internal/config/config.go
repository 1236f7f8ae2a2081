// Package config loads environment variables into the typed Config used
// across the daemon. Defaults are chosen so the binary runs locally with no
// setup; a .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/overchat/overchat/internal/channel"
	"github.com/overchat/overchat/internal/session"
)

type Config struct {
	// ListenAddr is the bridge server bind address.
	ListenAddr string

	// BackendURL is the websocket endpoint prefix of the backend message
	// source, e.g. "ws://localhost:8080/channels".
	BackendURL string

	// Policy is the shared reconnect/heartbeat policy.
	Policy session.Policy

	// SettleDelay debounces host page disruption bursts.
	SettleDelay time.Duration

	// Channels optionally restricts and routes channels by name. Empty
	// means every resolved channel routes by its own key.
	Channels channel.StaticDirectory

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
}

// Load reads OVERCHAT_* environment variables and applies defaults. A .env
// file is loaded best-effort first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  envDefault("OVERCHAT_LISTEN_ADDR", "127.0.0.1:7345"),
		BackendURL:  envDefault("OVERCHAT_BACKEND_URL", "ws://localhost:8080/channels"),
		Policy:      session.DefaultPolicy(),
		SettleDelay: 250 * time.Millisecond,
		LogLevel:    envDefault("OVERCHAT_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Policy.BaseDelay, err = envDuration("OVERCHAT_RECONNECT_BASE_DELAY", cfg.Policy.BaseDelay); err != nil {
		return nil, err
	}
	if cfg.Policy.HeartbeatInterval, err = envDuration("OVERCHAT_HEARTBEAT_INTERVAL", cfg.Policy.HeartbeatInterval); err != nil {
		return nil, err
	}
	if cfg.Policy.MaxAttempts, err = envInt("OVERCHAT_RECONNECT_MAX_ATTEMPTS", cfg.Policy.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = envDuration("OVERCHAT_SETTLE_DELAY", cfg.SettleDelay); err != nil {
		return nil, err
	}

	if v := os.Getenv("OVERCHAT_CHANNELS"); v != "" {
		dir, err := ParseChannels(v)
		if err != nil {
			return nil, err
		}
		cfg.Channels = dir
	}

	return cfg, nil
}

// Directory returns the configured channel directory, or a passthrough when
// none is set.
func (c *Config) Directory() channel.Directory {
	if len(c.Channels) == 0 {
		return channel.PassthroughDirectory{}
	}
	return c.Channels
}

// ParseChannels parses a "name=route,name2=route2" list. A name without a
// route maps to itself.
func ParseChannels(raw string) (channel.StaticDirectory, error) {
	dir := channel.StaticDirectory{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, route, found := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("invalid OVERCHAT_CHANNELS entry %q", part)
		}
		if !found || strings.TrimSpace(route) == "" {
			route = name
		}
		dir[name] = strings.TrimSpace(route)
	}
	return dir, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
