package frame

import (
	"fmt"
	"maps"
	"time"
)

// PixelFormat describes the pixel layout of a frame payload.
type PixelFormat uint8

const (
	RGBA PixelFormat = iota
	RGB
	Gray
)

func (f PixelFormat) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case RGB:
		return "RGB"
	case Gray:
		return "GRAY"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// BytesPerPixel returns the number of bytes per pixel, or 0 for an unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGBA:
		return 4
	case RGB:
		return 3
	case Gray:
		return 1
	default:
		return 0
	}
}

// Valid reports whether f is one of the known formats.
func (f PixelFormat) Valid() bool { return f.BytesPerPixel() > 0 }

// ParsePixelFormat maps an upper- or lower-case format name to its value.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "RGBA", "rgba":
		return RGBA, nil
	case "RGB", "rgb":
		return RGB, nil
	case "GRAY", "gray":
		return Gray, nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// Frame is one decoded video frame. Payload is owned by whoever holds the
// Frame; frames handed out by the frame buffer must be cloned before they
// leave the tick goroutine.
type Frame struct {
	Payload   []byte
	Width     uint32
	Height    uint32
	Format    PixelFormat
	Timestamp time.Time
	Sequence  uint64
	Metadata  map[string]any
}

// ByteSize returns width x height x bytes-per-pixel. It is computed from the
// dimensions, not from len(Payload).
func ByteSize(width, height uint32, format PixelFormat) int64 {
	return int64(width) * int64(height) * int64(format.BytesPerPixel())
}

// Size returns the accounted byte size of f.
func (f *Frame) Size() int64 {
	if f == nil {
		return 0
	}
	return ByteSize(f.Width, f.Height, f.Format)
}

// Reset returns f to its zero state while keeping the payload capacity and
// metadata map for reuse.
func (f *Frame) Reset() {
	f.Payload = f.Payload[:0]
	f.Width = 0
	f.Height = 0
	f.Format = RGBA
	f.Timestamp = time.Time{}
	f.Sequence = 0
	if f.Metadata != nil {
		clear(f.Metadata)
	}
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() Frame {
	out := *f
	out.Payload = append([]byte(nil), f.Payload...)
	if f.Metadata != nil {
		out.Metadata = maps.Clone(f.Metadata)
	}
	return out
}
