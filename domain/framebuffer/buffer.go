// Package framebuffer holds the most recent frames in a fixed-capacity ring.
//
// A Buffer is owned by a single goroutine (the capture tick loop); it does no
// locking of its own.
package framebuffer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 3

var (
	ErrInvalidCapacity   = errors.New("frame buffer capacity must be positive")
	ErrNilPayload        = errors.New("frame payload is nil")
	ErrInvalidDimensions = errors.New("frame dimensions must be positive")
	ErrInvalidFormat     = errors.New("unknown pixel format")
)

// Buffer is a circular store of frames with byte accounting. Writes go to
// the slot at a 1-based cursor; once every slot holds a frame, each further
// write evicts the oldest and counts as a dropped frame.
type Buffer struct {
	slots   []*pool.FrameData
	cursor  int
	count   int
	memory  int64
	dropped uint64
	writes  uint64
	seq     uint64

	pool    *pool.Pool
	pooling bool

	clock   clock.Clock
	collect func()
	logger  *slog.Logger
}

// Option customises a Buffer.
type Option func(*Buffer)

// WithClock sets the source of frame timestamps.
func WithClock(c clock.Clock) Option { return func(b *Buffer) { b.clock = clock.OrSystem(c) } }

// WithCollector replaces the collection hint issued by Clear.
func WithCollector(fn func()) Option {
	return func(b *Buffer) {
		if fn != nil {
			b.collect = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Buffer) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns an empty buffer with the given capacity. Frames are drawn from
// p; a nil p means every frame is allocated directly.
func New(capacity int, p *pool.Pool, opts ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	b := &Buffer{
		slots:   make([]*pool.FrameData, capacity),
		cursor:  1,
		pool:    p,
		pooling: p != nil,
		clock:   clock.System{},
		collect: runtime.GC,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Add copies payload and metadata into a new frame at the cursor. It fails
// only on invalid input; a full buffer overwrites its oldest frame.
func (b *Buffer) Add(payload []byte, width, height uint32, format frame.PixelFormat, metadata map[string]any) error {
	switch {
	case payload == nil:
		return ErrNilPayload
	case width == 0 || height == 0:
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	case !format.Valid():
		return fmt.Errorf("%w: %v", ErrInvalidFormat, format)
	}

	idx := b.cursor - 1
	if old := b.slots[idx]; old != nil {
		b.memory -= old.Size()
		b.release(old)
		b.slots[idx] = nil
	}
	if b.count == len(b.slots) {
		b.dropped++
	} else {
		b.count++
	}

	fd := b.framePool().AcquireFrame(len(payload))
	fd.Payload = append(fd.Payload[:0], payload...)
	fd.Width = width
	fd.Height = height
	fd.Format = format
	fd.Timestamp = b.clock.Now()
	b.seq++
	fd.Sequence = b.seq
	for k, v := range metadata {
		fd.Metadata[k] = v
	}

	b.slots[idx] = fd
	b.memory += fd.Size()
	b.writes++
	b.cursor = b.cursor%len(b.slots) + 1
	return nil
}

// framePool is where new frames come from.
func (b *Buffer) framePool() *pool.Pool {
	if !b.pooling {
		return nil
	}
	return b.pool
}

// release hands a displaced frame back to the pool that produced it, which
// discards it if it was a direct allocation. Frames allocated while pooling
// was off are simply dropped.
func (b *Buffer) release(fd *pool.FrameData) {
	if b.pool.Owns(fd) {
		b.pool.Release(fd)
	}
}

// Latest returns the most recently added frame.
func (b *Buffer) Latest() (*frame.Frame, bool) { return b.ByAge(0) }

// ByAge returns the frame written k steps before the latest one. k must be
// below Len; older slots are never returned even if they once held data.
//
// The frame stays owned by the buffer and is only valid until the next Add,
// Clear or Resize. Use Clone to keep it.
func (b *Buffer) ByAge(k int) (*frame.Frame, bool) {
	if k < 0 || k >= b.count {
		return nil, false
	}
	n := len(b.slots)
	idx := ((b.cursor-2-k)%n + n) % n
	fd := b.slots[idx]
	if fd == nil {
		return nil, false
	}
	return &fd.Frame, true
}

// Clear releases every frame, resets the cursor and the counters, and
// requests a collection.
func (b *Buffer) Clear() {
	b.releaseAll()
	b.collect()
}

func (b *Buffer) releaseAll() {
	for i, fd := range b.slots {
		if fd != nil {
			b.release(fd)
			b.slots[i] = nil
		}
	}
	b.cursor = 1
	b.count = 0
	b.memory = 0
	b.dropped = 0
}

// Resize clears the buffer and replaces its capacity. Held frames are lost.
func (b *Buffer) Resize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	b.releaseAll()
	b.slots = make([]*pool.FrameData, capacity)
	b.logger.Debug("framebuffer.resize", "capacity", capacity)
	b.collect()
	return nil
}

// SetPooling selects whether new frames are drawn from the pool.
func (b *Buffer) SetPooling(on bool) { b.pooling = on && b.pool != nil }

// Pooling reports whether new frames are drawn from the pool.
func (b *Buffer) Pooling() bool { return b.pooling }

// Capacity returns the number of slots.
func (b *Buffer) Capacity() int { return len(b.slots) }

// Len returns the number of frames held.
func (b *Buffer) Len() int { return b.count }

// MemoryBytes returns the accounted size of all held frames.
func (b *Buffer) MemoryBytes() int64 { return b.memory }

// Dropped returns the number of frames evicted by overwrites since the last
// Clear.
func (b *Buffer) Dropped() uint64 { return b.dropped }

// Stats is a point-in-time view of a Buffer.
type Stats struct {
	Capacity    int    `json:"capacity"`
	Count       int    `json:"count"`
	Cursor      int    `json:"cursor"`
	MemoryBytes int64  `json:"memory_bytes"`
	Dropped     uint64 `json:"dropped"`
	TotalWrites uint64 `json:"total_writes"`
	Pooling     bool   `json:"pooling"`
}

// Stats returns the buffer counters. TotalWrites survives Clear.
func (b *Buffer) Stats() Stats {
	return Stats{
		Capacity:    len(b.slots),
		Count:       b.count,
		Cursor:      b.cursor,
		MemoryBytes: b.memory,
		Dropped:     b.dropped,
		TotalWrites: b.writes,
		Pooling:     b.pooling,
	}
}
