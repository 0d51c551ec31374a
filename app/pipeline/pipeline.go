// Package pipeline assembles a capture service from runtime configuration.
// It carries no UI dependency so the GUI and the headless command share it.
package pipeline

import (
	"log/slog"

	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/debug"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/perf"
	"github.com/soocke/framepipe/domain/resource"
	"github.com/soocke/framepipe/source"
)

// Options translates cfg into service options.
func Options(cfg *config.Config, logger *slog.Logger, cb capture.Callbacks) capture.Options {
	opts := capture.DefaultOptions()
	opts.TargetFPS = cfg.TargetFPS
	opts.TickHz = cfg.TickHz
	opts.BufferCapacity = cfg.BufferCapacity
	opts.AsyncCapture = cfg.AsyncCapture
	opts.Pool = cfg.PoolConfig()
	opts.Perf.FrameDropEnabled = cfg.FrameDrop
	opts.Perf.MemoryMonitoring = cfg.MemoryMonitoring
	opts.MemoryProbe = debug.NewProbe(cfg.MemoryProbe, logger)
	opts.Logger = logger
	opts.Callbacks = cb
	return opts
}

// New validates cfg and builds a service reading from the configured source.
func New(cfg *config.Config, logger *slog.Logger, cb capture.Callbacks) (*capture.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return capture.NewService(source.Open(cfg, logger), Options(cfg, logger, cb))
}

// LogCallbacks returns callbacks that report every notification through
// logger. Hosts without a UI use them as the notification collaborator.
func LogCallbacks(logger *slog.Logger) capture.Callbacks {
	return capture.Callbacks{
		OnPerformanceWarning: func(s perf.Stats) {
			logger.Warn("perf.warning", "avg_fps", s.AverageFPS, "avg_frame_ms", s.AverageFrameTimeMS, "memory_mb", s.CurrentMemoryMB)
		},
		OnPerformanceCritical: func(s perf.Stats) {
			logger.Error("perf.critical", "avg_fps", s.AverageFPS, "avg_frame_ms", s.AverageFrameTimeMS, "memory_mb", s.CurrentMemoryMB)
		},
		OnDropStart: func(s perf.Stats) { logger.Info("perf.drop_start", "fps", s.CurrentFPS) },
		OnDropStop:  func(s perf.Stats) { logger.Info("perf.drop_stop", "fps", s.CurrentFPS) },
		OnMemoryWarning: func(s resource.Stats) {
			logger.Warn("memory.warning", "memory_mb", s.MemoryMB, "level", s.Level)
		},
		OnMemoryCritical: func(s resource.Stats) {
			logger.Error("memory.critical", "memory_mb", s.MemoryMB, "level", s.Level, "emergency", s.Emergency)
		},
		OnLeak: func(l resource.LeakRecord) {
			logger.Warn("memory.leak", "growth_mb", l.GrowthMB, "span", l.Span, "rate_mb_s", l.RateMBPerSec)
		},
		OnCleanup: func(r resource.CleanupReport) {
			logger.Debug("resource.cleanup", "pool_removed", r.PoolRemoved, "expired", r.ExpiredEntries, "emergency", r.Emergency)
		},
		OnError: func(err error) { logger.Warn("capture.error", "error", err) },
	}
}

// LoadConfig loads the config at path, or at config.DefaultPath() when path
// is empty, and returns the path used. On error the defaults are returned
// alongside it.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.DefaultConfig(), "", err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.DefaultConfig(), path, err
	}
	return cfg, path, nil
}
