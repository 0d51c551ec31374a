package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// ErrInjected is returned by a Pattern on its configured failing frames.
var ErrInjected = errors.New("pattern: injected failure")

// Pattern is a synthetic source producing a moving gradient with a vertical
// bar. Frame n is identical on every run.
type Pattern struct {
	pool   *pool.Pool
	width  uint32
	height uint32
	format frame.PixelFormat
	// FailEvery makes every FailEvery-th call fail. Zero never fails.
	FailEvery uint64

	calls  atomic.Uint64
	closed atomic.Bool
}

// NewPattern returns a synthetic source of the given size.
func NewPattern(p *pool.Pool, width, height uint32, format frame.PixelFormat) (*Pattern, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("pattern: invalid size %dx%d", width, height)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("pattern: unknown pixel format %v", format)
	}
	return &Pattern{pool: p, width: width, height: height, format: format}, nil
}

func (p *Pattern) Name() string { return fmt.Sprintf("pattern:%dx%d", p.width, p.height) }

// Capture renders the next frame.
func (p *Pattern) Capture(ctx context.Context) (capture.Capture, error) {
	if p.closed.Load() {
		return capture.Capture{}, capture.ErrSourceClosed
	}
	if err := ctx.Err(); err != nil {
		return capture.Capture{}, err
	}
	n := p.calls.Add(1)
	if p.FailEvery > 0 && n%p.FailEvery == 0 {
		return capture.Capture{}, ErrInjected
	}

	bpp := p.format.BytesPerPixel()
	buf := p.pool.AcquirePixelBuffer(int(frame.ByteSize(p.width, p.height, p.format)))
	bar := uint32(n*4) % p.width
	for y := range p.height {
		for x := range p.width {
			r, g, b := byte(x+uint32(n)), byte(y), byte(n)
			if x >= bar && x < bar+4 {
				r, g, b = 0xff, 0xff, 0xff
			}
			i := int(y*p.width+x) * bpp
			switch p.format {
			case frame.RGBA:
				buf.Data[i], buf.Data[i+1], buf.Data[i+2], buf.Data[i+3] = r, g, b, 0xff
			case frame.RGB:
				buf.Data[i], buf.Data[i+1], buf.Data[i+2] = r, g, b
			case frame.Gray:
				buf.Data[i] = luma(r, g, b)
			}
		}
	}
	return capture.Capture{
		Buffer:   buf,
		Width:    p.width,
		Height:   p.height,
		Format:   p.format,
		Metadata: map[string]any{"pattern_frame": n},
	}, nil
}

// Calls returns the number of Capture calls so far.
func (p *Pattern) Calls() uint64 { return p.calls.Load() }

func (p *Pattern) Close() error {
	p.closed.Store(true)
	return nil
}
