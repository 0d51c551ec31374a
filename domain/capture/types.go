package capture

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// Capture is one successful backend result. Buffer comes from the pool and
// is released by whoever consumes the capture.
type Capture struct {
	Buffer   *pool.PixelBuffer
	Width    uint32
	Height   uint32
	Format   frame.PixelFormat
	Metadata map[string]any
}

// Source produces raw frames. Capture is called at most once per tick and
// must not be called concurrently.
type Source interface {
	io.Closer
	Name() string
	Capture(ctx context.Context) (Capture, error)
}

// DropPolicy decides whether a due frame is declined and records forfeited
// schedule slots. *perf.Monitor implements it.
type DropPolicy interface {
	ShouldDropFrame() bool
	RecordSkippedFrames(n uint64)
}

// FrameSink stores captured frames. *framebuffer.Buffer implements it.
type FrameSink interface {
	Add(payload []byte, width, height uint32, format frame.PixelFormat, metadata map[string]any) error
}

// Tracker records the lifetime of in-flight resources.
// *resource.Manager implements it.
type Tracker interface {
	Track(resourceType string, metadata map[string]any) uuid.UUID
	Untrack(id uuid.UUID) bool
}

// FrameSource provides read-only access to captured frames.
// Latest returns a copy of the freshest frame while Running reports activity.
type FrameSource interface {
	Latest() (frame.Frame, bool)
	Running() bool
}

// SnapshotSource exposes the polled observability snapshot.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// ServiceContract is the lifecycle and runtime control surface used by
// presenters.
type ServiceContract interface {
	FrameSource
	SnapshotSource
	Start(ctx context.Context) error
	Stop()
	Pause()
	Resume()
	Paused() bool
	SetTargetFPS(fps float64) error
	SetFrameDropEnabled(on bool)
	SetMemoryMonitoring(on bool)
	SetPooling(on bool)
	ResizeBuffer(capacity int) error
}

// TickOutcome is what one controller tick did.
type TickOutcome uint8

const (
	OutcomeIdle TickOutcome = iota
	OutcomeCaptured
	OutcomeDropped
	OutcomeFailed
	OutcomePending
	OutcomePaused
)

func (o TickOutcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeCaptured:
		return "captured"
	case OutcomeDropped:
		return "dropped"
	case OutcomeFailed:
		return "failed"
	case OutcomePending:
		return "pending"
	case OutcomePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// TickResult reports one tick. Skipped is the number of schedule slots
// forfeited before the outcome was decided.
type TickResult struct {
	Outcome TickOutcome
	Skipped uint64
	Err     error
}

// CaptureStats summarises capture loop behaviour for instrumentation.
type CaptureStats struct {
	Interval       time.Duration `json:"interval"`
	NextCapture    time.Time     `json:"next_capture"`
	Captures       uint64        `json:"captures"`
	Failures       uint64        `json:"failures"`
	Pending        uint64        `json:"pending"`
	Drops          uint64        `json:"drops"`
	Skipped        uint64        `json:"skipped"`
	Paused         bool          `json:"paused"`
	AvgCapture     time.Duration `json:"avg_capture"`
	LastCapture    time.Time     `json:"last_capture"`
	LatestFrameAge time.Duration `json:"latest_frame_age"`
	LastError      string        `json:"last_error,omitempty"`
}
