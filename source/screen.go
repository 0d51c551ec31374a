package source

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/vova616/screenshot"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// Screen captures the whole primary screen or a fixed region of it.
type Screen struct {
	pool   *pool.Pool
	region image.Rectangle
	format frame.PixelFormat
	logger *slog.Logger
	closed atomic.Bool
}

// NewScreen returns a screen source. An empty region captures the full
// screen.
func NewScreen(p *pool.Pool, region image.Rectangle, format frame.PixelFormat, logger *slog.Logger) *Screen {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screen{pool: p, region: region.Canon(), format: format, logger: logger}
}

func (s *Screen) Name() string {
	if s.region.Empty() {
		return "screen"
	}
	return fmt.Sprintf("screen:%dx%d+%d+%d", s.region.Dx(), s.region.Dy(), s.region.Min.X, s.region.Min.Y)
}

// Capture grabs the screen and packs it into a pooled buffer.
func (s *Screen) Capture(ctx context.Context) (capture.Capture, error) {
	if s.closed.Load() {
		return capture.Capture{}, capture.ErrSourceClosed
	}
	if err := ctx.Err(); err != nil {
		return capture.Capture{}, err
	}
	img, err := s.grab()
	if err != nil {
		return capture.Capture{}, err
	}
	buf, w, h := packImage(s.pool, img, s.format)
	if buf == nil {
		return capture.Capture{}, capture.ErrNoPayload
	}
	return capture.Capture{
		Buffer: buf,
		Width:  w,
		Height: h,
		Format: s.format,
		Metadata: map[string]any{
			"origin_x": img.Rect.Min.X,
			"origin_y": img.Rect.Min.Y,
		},
	}, nil
}

func (s *Screen) grab() (*image.RGBA, error) {
	if s.region.Empty() {
		return screenshot.CaptureScreen()
	}
	return screenshot.CaptureRect(s.region)
}

func (s *Screen) Close() error {
	s.closed.Store(true)
	return nil
}

// ScreenBounds returns the primary screen rectangle.
func ScreenBounds() (image.Rectangle, error) { return screenshot.ScreenRect() }
