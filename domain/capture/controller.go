package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/pool"
	"github.com/soocke/framepipe/domain/resource"
)

// Controller turns wall-clock ticks into capture, skip and drop decisions.
// It is owned by the tick goroutine and does no locking.
type Controller struct {
	source  Source
	sink    FrameSink
	policy  DropPolicy
	pool    *pool.Pool
	tracker Tracker
	onError func(error)
	clock   clock.Clock
	logger  *slog.Logger

	interval time.Duration
	next     time.Time
	anchored bool
	paused   bool

	captures     uint64
	failures     uint64
	pending      uint64
	drops        uint64
	skipped      uint64
	captureNanos uint64
	lastCapture  time.Time
	lastErr      error
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithPool sets the pool for per-capture metadata and the pixel buffers
// returned by the source.
func WithPool(p *pool.Pool) ControllerOption { return func(c *Controller) { c.pool = p } }

// WithTracker records each in-flight pixel buffer as a temporary resource.
func WithTracker(t Tracker) ControllerOption { return func(c *Controller) { c.tracker = t } }

// WithErrorHandler receives every backend failure as a *CaptureError.
func WithErrorHandler(fn func(error)) ControllerOption {
	return func(c *Controller) { c.onError = fn }
}

// WithControllerClock sets the clock used to time backend calls.
func WithControllerClock(clk clock.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock.OrSystem(clk) }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController returns a controller capturing from src at targetFPS.
func NewController(src Source, sink FrameSink, policy DropPolicy, targetFPS float64, opts ...ControllerOption) (*Controller, error) {
	if src == nil || sink == nil || policy == nil {
		return nil, errors.New("capture controller needs a source, a sink and a drop policy")
	}
	c := &Controller{
		source: src,
		sink:   sink,
		policy: policy,
		clock:  clock.System{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.SetTargetFPS(targetFPS); err != nil {
		return nil, err
	}
	return c, nil
}

// SetTargetFPS changes the capture interval. The current schedule is kept.
func (c *Controller) SetTargetFPS(fps float64) error {
	if !(fps > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	c.interval = time.Duration(float64(time.Second) / fps)
	if c.interval <= 0 {
		c.interval = 1
	}
	return nil
}

// Interval returns the time between scheduled captures.
func (c *Controller) Interval() time.Duration { return c.interval }

// Start anchors the schedule so the first capture is due at now. A paused
// controller stays paused until Resume.
func (c *Controller) Start(now time.Time) {
	c.next = now
	c.anchored = true
}

// Pause freezes the schedule. Ticks do nothing until Resume.
func (c *Controller) Pause() { c.paused = true }

// Resume re-anchors the schedule one interval after now so the pause does
// not turn into a burst of catch-up captures.
func (c *Controller) Resume(now time.Time) {
	if !c.paused {
		return
	}
	c.paused = false
	c.next = now.Add(c.interval)
	c.anchored = true
}

// Paused reports whether the schedule is frozen.
func (c *Controller) Paused() bool { return c.paused }

// Tick runs one scheduling step for now. At most one backend call happens per
// tick, and a tick either skips slots, drops a frame or neither.
func (c *Controller) Tick(ctx context.Context, now time.Time) TickResult {
	if c.paused {
		return TickResult{Outcome: OutcomePaused}
	}
	if !c.anchored {
		c.Start(now)
	}
	if now.Before(c.next) {
		return TickResult{Outcome: OutcomeIdle}
	}

	var res TickResult
	if behind := now.Sub(c.next); behind > c.interval {
		n := uint64(behind / c.interval)
		c.policy.RecordSkippedFrames(n)
		c.skipped += n
		c.next = c.next.Add(time.Duration(n) * c.interval)
		res.Skipped = n
		c.logger.Debug("capture.skip", "slots", n, "behind", behind)
	}

	if res.Skipped == 0 && c.policy.ShouldDropFrame() {
		c.next = c.next.Add(c.interval)
		c.drops++
		res.Outcome = OutcomeDropped
		return res
	}

	c.next = c.next.Add(c.interval)
	res.Outcome, res.Err = c.capture(ctx)
	return res
}

func (c *Controller) capture(ctx context.Context) (TickOutcome, error) {
	start := c.clock.Now()
	got, err := c.source.Capture(ctx)
	if errors.Is(err, ErrNotReady) {
		c.pending++
		return OutcomePending, nil
	}
	if err == nil && (got.Buffer == nil || got.Buffer.Data == nil) {
		err = ErrNoPayload
	}
	if err != nil {
		if got.Buffer != nil {
			c.pool.Release(got.Buffer)
		}
		return OutcomeFailed, c.fail(err)
	}

	untrack := c.track(got)
	md := c.pool.AcquireMetadata()
	for k, v := range got.Metadata {
		md.Values[k] = v
	}
	md.Values["source"] = c.source.Name()
	err = c.sink.Add(got.Buffer.Data, got.Width, got.Height, got.Format, md.Values)
	c.pool.Release(md)
	c.pool.Release(got.Buffer)
	untrack()
	if err != nil {
		return OutcomeFailed, c.fail(err)
	}

	end := c.clock.Now()
	c.captures++
	c.captureNanos += uint64(max(end.Sub(start), 0))
	c.lastCapture = end
	return OutcomeCaptured, nil
}

// track registers the pixel buffer and returns the matching untrack.
func (c *Controller) track(got Capture) func() {
	if c.tracker == nil {
		return func() {}
	}
	id := c.tracker.Track(resource.TypeTemporary, map[string]any{
		"kind":   pool.KindPixelBuffer.String(),
		"bytes":  len(got.Buffer.Data),
		"source": c.source.Name(),
	})
	return func() { c.tracker.Untrack(id) }
}

func (c *Controller) fail(err error) error {
	c.failures++
	cerr := &CaptureError{Source: c.source.Name(), Err: err}
	c.lastErr = cerr
	c.logger.Debug("capture.failed", "source", cerr.Source, "error", err)
	if c.onError != nil {
		c.onError(cerr)
	}
	return cerr
}

// Stats returns the controller counters.
func (c *Controller) Stats() CaptureStats {
	st := CaptureStats{
		Interval:    c.interval,
		NextCapture: c.next,
		Captures:    c.captures,
		Failures:    c.failures,
		Pending:     c.pending,
		Drops:       c.drops,
		Skipped:     c.skipped,
		Paused:      c.paused,
		LastCapture: c.lastCapture,
	}
	if c.captures > 0 {
		st.AvgCapture = time.Duration(c.captureNanos / c.captures)
	}
	if !c.lastCapture.IsZero() {
		st.LatestFrameAge = c.clock.Now().Sub(c.lastCapture)
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
