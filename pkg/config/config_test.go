package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestDefaultConfig_RoomDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Rooms.StaleAfter != 30*time.Minute {
		t.Errorf("expected stale_after 30m, got %v", cfg.Rooms.StaleAfter)
	}
	if cfg.Rooms.SweepInterval != 5*time.Minute {
		t.Errorf("expected sweep_interval 5m, got %v", cfg.Rooms.SweepInterval)
	}
	if cfg.Client.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected handshake_timeout 10s, got %v", cfg.Client.HandshakeTimeout)
	}
	if cfg.Client.Reconnect.MaxAttempts != 3 {
		t.Errorf("expected 3 reconnect attempts, got %d", cfg.Client.Reconnect.MaxAttempts)
	}
	if len(cfg.WebRTC.ICEServers) == 0 {
		t.Error("expected default ICE servers to be configured")
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty server address",
			mutate: func(c *Config) { c.Server.Address = "" },
		},
		{
			name:   "stale_after must be > 0",
			mutate: func(c *Config) { c.Rooms.StaleAfter = 0 },
		},
		{
			name:   "sweep_interval must be > 0",
			mutate: func(c *Config) { c.Rooms.SweepInterval = -time.Minute },
		},
		{
			name:   "pong timeout must exceed ping interval",
			mutate: func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval },
		},
		{
			name:   "handshake timeout must be > 0",
			mutate: func(c *Config) { c.Client.HandshakeTimeout = 0 },
		},
		{
			name: "reconnect attempts must be > 0 when enabled",
			mutate: func(c *Config) {
				c.Client.Reconnect.Enabled = true
				c.Client.Reconnect.MaxAttempts = 0
			},
		},
		{
			name: "ice server urls must not be empty",
			mutate: func(c *Config) {
				c.WebRTC.ICEServers = append(c.WebRTC.ICEServers, ICEServer{})
			},
		},
		{
			name: "redis address required when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "http rps must be > 0 when rate limiting enabled",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address, got %s", cfg.Server.Address)
	}
}

func TestLoad_FromYAML(t *testing.T) {
	yaml := `
server:
  address: ":9999"
rooms:
  stale_after: 10m
  sweep_interval: 1m
webrtc:
  ice_servers:
    - urls: ["stun:stun.example.com:3478"]
    - urls: ["turn:turn.example.com:443"]
      username: "u"
      credential: "c"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.Server.Address != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.Server.Address)
	}
	if cfg.Rooms.StaleAfter != 10*time.Minute {
		t.Errorf("expected 10m, got %v", cfg.Rooms.StaleAfter)
	}
	if len(cfg.WebRTC.ICEServers) != 2 {
		t.Fatalf("expected 2 ICE servers, got %d", len(cfg.WebRTC.ICEServers))
	}
	if cfg.WebRTC.ICEServers[1].Username != "u" {
		t.Errorf("expected TURN username to survive load, got %q", cfg.WebRTC.ICEServers[1].Username)
	}
	// Unset sections keep defaults.
	if cfg.Signal.PingInterval != 30*time.Second {
		t.Errorf("expected default ping interval, got %v", cfg.Signal.PingInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAIRLINK_SERVER_ADDRESS", ":7070")
	t.Setenv("PAIRLINK_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":7070" {
		t.Errorf("expected env override :7070, got %s", cfg.Server.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override debug, got %s", cfg.Logging.Level)
	}
}
