package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/soocke/framepipe/app"
	"github.com/soocke/framepipe/app/pipeline"
	"github.com/soocke/framepipe/debug"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (.json, .yaml); defaults to the user config dir")
	flag.Parse()

	cfg, cfgPath, cfgErr := pipeline.LoadConfig(*cfgFlag)
	logger := debug.NewLogger(cfg.Level(), os.Stdout)
	if cfgErr != nil {
		logger.Error("config load failed, using defaults", "path", cfgPath, "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Debug {
		debug.StartMemLogger(ctx, 2*time.Second, logger)
		debug.StartGoroutineLogger(ctx, 5*time.Second, logger)
	}

	c, err := app.BuildContainer(ctx, cfg, cfgPath, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}
	app.NewApp(ctx, "framepipe", 1040, 780, c).Start()
}
