// SPDX-License-Identifier: MIT

// Package config loads framecore configuration from a YAML file with
// FRAMECORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	LogLevel    string `yaml:"log_level"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	VAAPIDevice string `yaml:"vaapi_device"`
	DataDir     string `yaml:"data_dir"`

	Pool      PoolConfig      `yaml:"pool"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PoolConfig configures the frame pool.
type PoolConfig struct {
	MaxGPUMemoryMB int  `yaml:"max_gpu_memory_mb"`
	MinPoolSize    int  `yaml:"min_pool_size"`
	MaxPoolSize    int  `yaml:"max_pool_size"`
	SweepSeconds   int  `yaml:"sweep_seconds"`
	IdleMinutes    int  `yaml:"idle_minutes"`
	Preload        bool `yaml:"preload"`
}

// CacheConfig configures the semantic frame cache.
type CacheConfig struct {
	MaxSize int `yaml:"max_size"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "grpc" or "http"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Listen:      ":8780",
		LogLevel:    "info",
		FFmpegPath:  "ffmpeg",
		VAAPIDevice: "/dev/dri/renderD128",
		DataDir:     "data",
		Pool: PoolConfig{
			MaxGPUMemoryMB: 2048,
			MinPoolSize:    2,
			MaxPoolSize:    16,
			SweepSeconds:   5,
			IdleMinutes:    5,
			Preload:        false,
		},
		Cache: CacheConfig{MaxSize: 100},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 0.1,
		},
	}
}

// Load reads the config file at path (a missing file is fine: defaults
// apply) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults + env only
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("FRAMECORE_LISTEN", &c.Listen)
	envString("FRAMECORE_LOG_LEVEL", &c.LogLevel)
	envString("FRAMECORE_FFMPEG", &c.FFmpegPath)
	envString("FRAMECORE_VAAPI_DEVICE", &c.VAAPIDevice)
	envString("FRAMECORE_DATA_DIR", &c.DataDir)
	envInt("FRAMECORE_MAX_GPU_MEMORY_MB", &c.Pool.MaxGPUMemoryMB)
	envInt("FRAMECORE_MIN_POOL_SIZE", &c.Pool.MinPoolSize)
	envInt("FRAMECORE_MAX_POOL_SIZE", &c.Pool.MaxPoolSize)
	envInt("FRAMECORE_CACHE_SIZE", &c.Cache.MaxSize)
	envBool("FRAMECORE_PRELOAD", &c.Pool.Preload)
	envBool("FRAMECORE_OTEL_ENABLED", &c.Telemetry.Enabled)
	envString("FRAMECORE_OTEL_EXPORTER", &c.Telemetry.Exporter)
	envString("FRAMECORE_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Pool.MaxGPUMemoryMB <= 0 {
		return fmt.Errorf("pool.max_gpu_memory_mb must be positive, got %d", c.Pool.MaxGPUMemoryMB)
	}
	if c.Pool.MaxPoolSize <= 0 {
		return fmt.Errorf("pool.max_pool_size must be positive, got %d", c.Pool.MaxPoolSize)
	}
	if c.Pool.MinPoolSize < 0 || c.Pool.MinPoolSize > c.Pool.MaxPoolSize {
		return fmt.Errorf("pool.min_pool_size %d out of range [0, %d]", c.Pool.MinPoolSize, c.Pool.MaxPoolSize)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter != "grpc" && c.Telemetry.Exporter != "http" {
		return fmt.Errorf("telemetry.exporter must be grpc or http, got %q", c.Telemetry.Exporter)
	}
	return nil
}

// MaxGPUMemoryBytes returns the pool budget in bytes.
func (c *Config) MaxGPUMemoryBytes() int64 {
	return int64(c.Pool.MaxGPUMemoryMB) << 20
}

// SweepInterval returns the pool sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pool.SweepSeconds) * time.Second
}

// IdleTimeout returns the pool idle eviction window.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Pool.IdleMinutes) * time.Minute
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
