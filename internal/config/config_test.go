// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9000"
log_level: debug
ffmpeg_path: /opt/ffmpeg/bin/ffmpeg
pool:
  max_gpu_memory_mb: 4096
  min_pool_size: 4
  max_pool_size: 32
  preload: true
cache:
  max_size: 250
telemetry:
  enabled: true
  exporter: grpc
  endpoint: collector:4317
  sampling_rate: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 4096, cfg.Pool.MaxGPUMemoryMB)
	assert.Equal(t, 4, cfg.Pool.MinPoolSize)
	assert.Equal(t, 32, cfg.Pool.MaxPoolSize)
	assert.True(t, cfg.Pool.Preload)
	assert.Equal(t, 250, cfg.Cache.MaxSize)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Exporter)

	// Unset fields keep their defaults.
	assert.Equal(t, Default().VAAPIDevice, cfg.VAAPIDevice)
	assert.Equal(t, Default().Pool.SweepSeconds, cfg.Pool.SweepSeconds)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o644))

	t.Setenv("FRAMECORE_LISTEN", ":7000")
	t.Setenv("FRAMECORE_MAX_GPU_MEMORY_MB", "1024")
	t.Setenv("FRAMECORE_CACHE_SIZE", "10")
	t.Setenv("FRAMECORE_PRELOAD", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 1024, cfg.Pool.MaxGPUMemoryMB)
	assert.Equal(t, 10, cfg.Cache.MaxSize)
	assert.True(t, cfg.Pool.Preload)
}

func TestEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("FRAMECORE_MAX_GPU_MEMORY_MB", "lots")
	t.Setenv("FRAMECORE_PRELOAD", "kinda")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Pool.MaxGPUMemoryMB, cfg.Pool.MaxGPUMemoryMB)
	assert.False(t, cfg.Pool.Preload)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero budget", func(c *Config) { c.Pool.MaxGPUMemoryMB = 0 }, false},
		{"negative budget", func(c *Config) { c.Pool.MaxGPUMemoryMB = -1 }, false},
		{"zero max pool", func(c *Config) { c.Pool.MaxPoolSize = 0 }, false},
		{"min above max", func(c *Config) { c.Pool.MinPoolSize = 20; c.Pool.MaxPoolSize = 10 }, false},
		{"negative min", func(c *Config) { c.Pool.MinPoolSize = -1 }, false},
		{"zero cache", func(c *Config) { c.Cache.MaxSize = 0 }, false},
		{"bad exporter", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "udp" }, false},
		{"bad exporter but disabled", func(c *Config) { c.Telemetry.Exporter = "udp" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDerivedValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(2048)<<20, cfg.MaxGPUMemoryBytes())
	assert.Equal(t, 5*time.Second, cfg.SweepInterval())
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())
}
