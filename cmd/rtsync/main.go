// Package main replays a scene script through the ray-tracing scene
// synchronizer against the in-memory reference backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/rtsync/internal/camera"
	"github.com/Faultbox/rtsync/internal/config"
	"github.com/Faultbox/rtsync/internal/frame"
	"github.com/Faultbox/rtsync/internal/logger"
	"github.com/Faultbox/rtsync/internal/scene"
	"github.com/Faultbox/rtsync/internal/shader"
	"github.com/Faultbox/rtsync/internal/upload"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
		fileCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		fileCfg.MaxBackups = cfg.Logging.MaxBackups
		fileCfg.MaxAgeDays = cfg.Logging.MaxAgeDays
	}
	sink, err := logger.New(cfg.Logging.Level, fileCfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	log := sink.Log
	log.Info("=== rtsync ===")
	sink.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sink); err != nil {
		log.Error("replay failed", zap.Error(err))
		sink.Close()
		os.Exit(1)
	}
	log.Info("replay finished")
}

func run(ctx context.Context, cfg *config.Config, sink *logger.Sink) error {
	log := sink.Log

	bridge := logger.NewBridge(logger.DefaultBridgeBacklog)
	bridge.Attach(sink.Named("native"))
	defer bridge.Detach()

	backend := upload.NewBackend(bridge, len(cfg.Shaders.Slots))

	n, err := shader.LoadDir(cfg.Shaders.Dir, cfg.Shaders.Slots, backend, sink.Named("shader"))
	if err != nil {
		log.Warn("some shaders failed to load", zap.Error(err))
	}
	log.Info("shaders loaded", zap.Int("slots", n), zap.Int("of", len(cfg.Shaders.Slots)))

	var reloads *shader.Queue
	if cfg.Shaders.Watch {
		reloads = shader.NewQueue()
		go func() {
			err := shader.Watch(ctx, cfg.Shaders.Dir, cfg.Shaders.Slots, reloads, sink.Named("shader"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("shader hot reload stopped", zap.Error(err))
			}
		}()
	}

	script, err := scene.Load(cfg.Scene.Script)
	if err != nil {
		return err
	}

	player := scene.NewPlayer(script, frame.Config{
		Tolerance: cfg.Sync.Tolerance,
		Convention: camera.Convention{
			FlipY:          cfg.Sync.FlipY,
			DepthZeroToOne: cfg.Sync.DepthZeroToOne,
		},
	}, backend, sink.Named("sync"))

	frames := cfg.Scene.Frames
	if frames <= 0 {
		frames = script.FrameCount()
	}
	log.Info("replaying scene",
		zap.String("script", cfg.Scene.Script),
		zap.String("name", script.Name),
		zap.Int("frames", frames),
	)

	failures := 0
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			log.Info("interrupted", zap.Int("frame", i))
			break
		}
		if reloads != nil {
			if _, err := reloads.Flush(backend); err != nil {
				log.Warn("shader reload rejected", zap.Error(err))
			}
		}

		rep, err := player.Step()
		if err != nil {
			log.Warn("scene events rejected", zap.Uint64("frame", rep.Frame), zap.Error(err))
		}
		failures += len(rep.Failures)
		log.Info("frame", rep.Fields()...)
	}

	meshes, instances, lights := backend.Counts()
	log.Info("backend state",
		zap.Int("meshes", meshes),
		zap.Int("tlas_entries", instances),
		zap.Int("lights", lights),
		zap.Uint64("frames", backend.Frames),
		zap.Uint64("rebuilds", backend.Rebuilds),
		zap.Uint64("refits", backend.Refits),
		zap.Int("failures", failures),
	)
	return nil
}
