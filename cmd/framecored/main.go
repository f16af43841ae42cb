// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediaforge/framecore/internal/api"
	"github.com/mediaforge/framecore/internal/cache"
	"github.com/mediaforge/framecore/internal/codec"
	"github.com/mediaforge/framecore/internal/config"
	"github.com/mediaforge/framecore/internal/device"
	fclog "github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/pool"
	"github.com/mediaforge/framecore/internal/telemetry"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "caps":
			os.Exit(runCapsCLI(os.Args[2:]))
		case "stats":
			os.Exit(runStatsCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	fclog.Configure(fclog.Config{Level: "info", Service: "framecore"})
	logger := fclog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("path", *configPath).
		Str("listen", cfg.Listen).
		Msg("configuration loaded")

	holder := config.NewHolder(cfg, *configPath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config hot reload unavailable")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "framecore",
		ServiceVersion: version,
		Environment:    "production",
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}

	gpus, err := device.Discover("/sys", logger)
	if err != nil {
		logger.Warn().Err(err).Msg("gpu discovery failed")
	}
	for _, gpu := range gpus {
		logger.Info().
			Str(fclog.FieldDevice, gpu.ID).
			Str("name", gpu.Name).
			Str("render_node", gpu.RenderNode).
			Msg("gpu detected")
	}

	var store *codec.Store
	if cfg.DataDir != "" {
		store, err = codec.OpenStore(filepath.Join(cfg.DataDir, "codec-cache"))
		if err != nil {
			logger.Warn().Err(err).Msg("codec probe cache unavailable")
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	codecs := codec.NewManager(codec.Config{
		FFmpegPath:  cfg.FFmpegPath,
		VAAPIDevice: cfg.VAAPIDevice,
		Store:       store,
	})
	if err := codecs.Detect(ctx); err != nil {
		// The daemon still serves pool and cache workloads without ffmpeg.
		logger.Warn().Err(err).Msg("codec detection failed, decode and encode disabled")
	}

	framePool := pool.New(device.NewSystemAllocator(0), pool.Config{
		MaxGPUMemory:  cfg.MaxGPUMemoryBytes(),
		MinPoolSize:   cfg.Pool.MinPoolSize,
		MaxPoolSize:   cfg.Pool.MaxPoolSize,
		SweepInterval: cfg.SweepInterval(),
		IdleTimeout:   cfg.IdleTimeout(),
	})
	frameCache := cache.New(cfg.Cache.MaxSize)

	if cfg.Pool.Preload {
		if err := framePool.PreloadCommonFormats(ctx); err != nil {
			logger.Warn().Err(err).Msg("pool preload incomplete")
		}
	}

	// Apply pool and cache sizing on config reload. Budget and listen
	// address changes need a restart.
	reloads := make(chan config.Config, 1)
	holder.RegisterListener(reloads)
	go func() {
		prev := cfg
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				framePool.SetDefaultBucketLimits(next.Pool.MinPoolSize, next.Pool.MaxPoolSize)
				frameCache.Resize(next.Cache.MaxSize)
				fclog.SetLevel(next.LogLevel)
				if next.Pool.MaxGPUMemoryMB != prev.Pool.MaxGPUMemoryMB {
					logger.Warn().
						Int("current_mb", prev.Pool.MaxGPUMemoryMB).
						Int("requested_mb", next.Pool.MaxGPUMemoryMB).
						Msg("memory budget change requires restart")
				}
				if next.Listen != prev.Listen {
					logger.Warn().
						Str("current", prev.Listen).
						Str("requested", next.Listen).
						Msg("listen address change requires restart")
				}
				prev = next
			}
		}
	}()

	server := api.New(cfg.Listen, api.Deps{
		Pool:    framePool,
		Cache:   frameCache,
		Codecs:  codecs,
		GPUs:    gpus,
		Version: version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}

		holder.Stop()
		frameCache.Clear()
		framePool.Close()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("shutdown complete")
}
