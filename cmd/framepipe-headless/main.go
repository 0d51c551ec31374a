// Command framepipe-headless runs the capture pipeline without a UI, logging
// notifications and optionally serving the snapshot feed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/framepipe/app/pipeline"
	"github.com/soocke/framepipe/debug"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/ui/feed"
)

func main() {
	var (
		cfgFlag  = flag.String("config", "", "config file (.json, .yaml); defaults to the user config dir")
		source   = flag.String("source", "", "override the capture source (screen, camera, pattern)")
		fps      = flag.Float64("fps", 0, "override the target fps")
		feedAddr = flag.String("feed", "", "override the snapshot feed address, e.g. :8080")
		duration = flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
		dump     = flag.Bool("json", false, "print the final snapshot as JSON on exit")
	)
	flag.Parse()

	cfg, cfgPath, cfgErr := pipeline.LoadConfig(*cfgFlag)
	if *source != "" {
		cfg.Source = *source
	}
	if *fps > 0 {
		cfg.TargetFPS = *fps
	}
	if *feedAddr != "" {
		cfg.FeedAddr = *feedAddr
	}
	logger := debug.NewLogger(cfg.Level(), os.Stderr)
	if cfgErr != nil {
		logger.Error("config load failed, using defaults", "path", cfgPath, "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	if cfg.Debug {
		debug.StartMemLogger(ctx, 2*time.Second, logger)
		debug.StartGoroutineLogger(ctx, 5*time.Second, logger)
	}

	svc, err := pipeline.New(cfg, logger, pipeline.LogCallbacks(logger))
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		logger.Error("capture start failed", "error", err)
		os.Exit(1)
	}
	if cfg.FeedAddr != "" {
		f := feed.New[capture.Snapshot](svc, cfg.FeedInterval(), logger)
		go func() {
			if err := f.Serve(ctx, cfg.FeedAddr); err != nil {
				logger.Error("feed stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	svc.Stop()
	snap := svc.Snapshot()
	if err := svc.Close(); err != nil {
		logger.Warn("close capture service", "error", err)
	}
	logger.Info("capture.done",
		"captures", snap.Capture.Captures,
		"dropped", snap.Perf.FramesDropped,
		"skipped", snap.Perf.FramesSkipped,
		"failures", snap.Capture.Failures,
		"avg_fps", snap.Perf.AverageFPS,
	)
	if *dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			logger.Error("encode snapshot", "error", err)
		}
	}
}
