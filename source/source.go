// Package source provides the capture backends: the screen, a local camera
// and a synthetic test pattern.
package source

import (
	"fmt"
	"log/slog"

	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/pool"
)

// Open returns a capture.SourceFunc building the backend named by
// cfg.Source. The backend draws its pixel buffers from the pool handed to it
// by the service.
func Open(cfg *config.Config, logger *slog.Logger) capture.SourceFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(p *pool.Pool) (capture.Source, error) {
		format, err := cfg.PixelFormat()
		if err != nil {
			return nil, err
		}
		switch cfg.Source {
		case config.SourceScreen:
			return NewScreen(p, cfg.Region(), format, logger), nil
		case config.SourceCamera:
			return OpenCamera(p, CameraConfig{
				DeviceID: cfg.CameraDevice,
				Width:    cfg.CameraWidth,
				Height:   cfg.CameraHeight,
				FPS:      cfg.TargetFPS,
				Format:   format,
			}, logger)
		case config.SourcePattern:
			return NewPattern(p, uint32(cfg.PatternWidth), uint32(cfg.PatternHeight), format)
		default:
			return nil, fmt.Errorf("%w: source %q", config.ErrInvalid, cfg.Source)
		}
	}
}
