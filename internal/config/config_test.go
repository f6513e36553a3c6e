package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.False(t, cfg.Audio.Dual)
	assert.Equal(t, "#ff3b30", cfg.Drawing.Color)
	assert.Equal(t, 5.0, cfg.Drawing.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Replay.DriftTolerance)
	assert.Equal(t, 300*time.Millisecond, cfg.Replay.HardDrift)
	assert.Equal(t, 3, cfg.Replay.DesyncWarnAfter)
	assert.False(t, cfg.Replay.StrictTransport)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
store:
  backend: redis
redis:
  addr: cache:6379
  ttl: 72h
audio:
  dual: true
drawing:
  color: "#00ff00"
  duration: 2.5
replay:
  hard_drift: 500ms
  strict_transport: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 72*time.Hour, cfg.Redis.TTL)
	assert.True(t, cfg.Audio.Dual)
	assert.Equal(t, "#00ff00", cfg.Drawing.Color)
	assert.Equal(t, 2.5, cfg.Drawing.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Replay.HardDrift)
	assert.True(t, cfg.Replay.StrictTransport)

	// untouched keys keep their defaults
	assert.Equal(t, 100*time.Millisecond, cfg.Replay.DriftTolerance)
	assert.Equal(t, "critvid", cfg.Redis.Prefix)

	opts := cfg.StoreOptions()
	assert.Equal(t, "redis", opts.Backend)
	assert.Equal(t, "cache:6379", opts.RedisAddr)
	assert.Equal(t, 72*time.Hour, opts.RedisTTL)

	dc := cfg.DrawingEngine()
	assert.Equal(t, "#00ff00", dc.Color)
	assert.Equal(t, 2.5, dc.Duration)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "store:\n  backend: redis\n")
	t.Setenv("CRITVID_STORE_BACKEND", "memory")
	t.Setenv("CRITVID_REPLAY_DESYNC_WARN_AFTER", "5")
	t.Setenv("CRITVID_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Replay.DesyncWarnAfter)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"width", func(c *Config) { c.Drawing.Width = -1 }},
		{"duration", func(c *Config) { c.Drawing.Duration = 0 }},
		{"drift order", func(c *Config) { c.Replay.HardDrift = 50 * time.Millisecond }},
		{"warn after", func(c *Config) { c.Replay.DesyncWarnAfter = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "store:\n  backend: etcd\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "store.backend")
}

func TestStudioSettings(t *testing.T) {
	path := writeFile(t, "replay:\n  drift_tolerance: 80ms\n  hard_drift: 400ms\n  strict_transport: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.Studio()
	assert.Equal(t, 80*time.Millisecond, sc.DriftTolerance)
	assert.Equal(t, 400*time.Millisecond, sc.HardDrift)
	assert.Equal(t, 3, sc.DesyncWarnAfter)
	assert.True(t, sc.StrictTransport)
}
