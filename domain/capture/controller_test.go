package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/framebuffer"
	"github.com/soocke/framepipe/domain/pool"
)

// fakeSource returns a 2x2 RGBA frame per call, or err when set.
type fakeSource struct {
	pool   *pool.Pool
	calls  int
	err    error
	closed bool
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) Capture(context.Context) (Capture, error) {
	f.calls++
	if f.err != nil {
		return Capture{}, f.err
	}
	buf := f.pool.AcquirePixelBuffer(16)
	buf.Data[0] = byte(f.calls)
	return Capture{Buffer: buf, Width: 2, Height: 2, Metadata: map[string]any{"call": f.calls}}, nil
}

// fakePolicy drops while drop is set and counts skips.
type fakePolicy struct {
	drop    bool
	asked   int
	skipped uint64
}

func (p *fakePolicy) ShouldDropFrame() bool {
	p.asked++
	return p.drop
}

func (p *fakePolicy) RecordSkippedFrames(n uint64) { p.skipped += n }

type controllerHarness struct {
	ctrl   *Controller
	src    *fakeSource
	policy *fakePolicy
	buf    *framebuffer.Buffer
	pool   *pool.Pool
	errs   []error
	t0     time.Time
}

func newControllerHarness(t *testing.T, fps float64) *controllerHarness {
	t.Helper()
	p, err := pool.New(pool.DefaultConfig(), pool.WithCollector(func() {}))
	require.NoError(t, err)
	buf, err := framebuffer.New(3, p, framebuffer.WithCollector(func() {}))
	require.NoError(t, err)
	h := &controllerHarness{
		src:    &fakeSource{pool: p},
		policy: &fakePolicy{},
		buf:    buf,
		pool:   p,
		t0:     time.Unix(1000, 0),
	}
	h.ctrl, err = NewController(h.src, buf, h.policy, fps,
		WithPool(p),
		WithErrorHandler(func(err error) { h.errs = append(h.errs, err) }),
		WithControllerClock(clock.NewManual(h.t0)),
	)
	require.NoError(t, err)
	h.ctrl.Start(h.t0)
	return h
}

func (h *controllerHarness) tick(offset time.Duration) TickResult {
	return h.ctrl.Tick(context.Background(), h.t0.Add(offset))
}

func TestTickCapturesOnSchedule(t *testing.T) {
	h := newControllerHarness(t, 10)

	res := h.tick(0)
	assert.Equal(t, OutcomeCaptured, res.Outcome)
	assert.Equal(t, 1, h.src.calls)

	res = h.tick(50 * time.Millisecond)
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, 1, h.src.calls)

	res = h.tick(100 * time.Millisecond)
	assert.Equal(t, OutcomeCaptured, res.Outcome)
	assert.Equal(t, 2, h.buf.Len())

	f, ok := h.buf.Latest()
	require.True(t, ok)
	assert.Equal(t, byte(2), f.Payload[0])
	assert.Equal(t, "fake", f.Metadata["source"])
	assert.Equal(t, 2, f.Metadata["call"])
	assert.Equal(t, h.t0.Add(200*time.Millisecond), h.ctrl.Stats().NextCapture)
}

func TestTickSkipsMissedSlots(t *testing.T) {
	h := newControllerHarness(t, 30)
	require.Equal(t, OutcomeCaptured, h.tick(0).Outcome)
	next := h.ctrl.Stats().NextCapture

	// 200ms behind the next scheduled capture.
	res := h.ctrl.Tick(context.Background(), next.Add(200*time.Millisecond))
	assert.Equal(t, uint64(6), res.Skipped)
	assert.Equal(t, uint64(6), h.policy.skipped)
	assert.Equal(t, OutcomeCaptured, res.Outcome)
	assert.Equal(t, 2, h.src.calls, "one backend call for the tick, none for skipped slots")
	assert.Zero(t, h.policy.asked-1, "no drop check on a tick that skipped")
	assert.Equal(t, next.Add(7*h.ctrl.Interval()), h.ctrl.Stats().NextCapture)
}

func TestTickWithinOneIntervalDoesNotSkip(t *testing.T) {
	h := newControllerHarness(t, 10)
	h.tick(0)
	res := h.tick(190 * time.Millisecond)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, OutcomeCaptured, res.Outcome)
	assert.Equal(t, h.t0.Add(200*time.Millisecond), h.ctrl.Stats().NextCapture)
}

func TestTickDropsWithoutCallingBackend(t *testing.T) {
	h := newControllerHarness(t, 10)
	h.policy.drop = true

	res := h.tick(0)
	assert.Equal(t, OutcomeDropped, res.Outcome)
	assert.Zero(t, h.src.calls)
	assert.Equal(t, uint64(1), h.ctrl.Stats().Drops)
	assert.Equal(t, h.t0.Add(100*time.Millisecond), h.ctrl.Stats().NextCapture)
}

func TestTickFailureAdvancesSchedule(t *testing.T) {
	h := newControllerHarness(t, 10)
	boom := errors.New("device gone")
	h.src.err = boom

	res := h.tick(0)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, boom)
	var cerr *CaptureError
	require.ErrorAs(t, res.Err, &cerr)
	assert.Equal(t, "fake", cerr.Source)
	require.Len(t, h.errs, 1)

	// No retry within the same slot.
	res = h.tick(10 * time.Millisecond)
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, 1, h.src.calls)

	st := h.ctrl.Stats()
	assert.Equal(t, uint64(1), st.Failures)
	assert.Zero(t, st.Drops)
	assert.Zero(t, st.Skipped)
	assert.Contains(t, st.LastError, "device gone")
}

func TestTickNotReadyIsPending(t *testing.T) {
	h := newControllerHarness(t, 10)
	h.src.err = ErrNotReady
	res := h.tick(0)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Empty(t, h.errs)
	st := h.ctrl.Stats()
	assert.Equal(t, uint64(1), st.Pending)
	assert.Zero(t, st.Failures)
}

func TestPauseFreezesAndResumeReanchors(t *testing.T) {
	h := newControllerHarness(t, 10)
	h.tick(0)
	h.ctrl.Pause()

	res := h.tick(5 * time.Second)
	assert.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, 1, h.src.calls)

	h.ctrl.Resume(h.t0.Add(5 * time.Second))
	res = h.tick(5 * time.Second)
	assert.Equal(t, OutcomeIdle, res.Outcome)
	res = h.tick(5*time.Second + 100*time.Millisecond)
	assert.Equal(t, OutcomeCaptured, res.Outcome)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, h.policy.skipped)
}

func TestStartKeepsPause(t *testing.T) {
	h := newControllerHarness(t, 10)
	h.ctrl.Pause()
	h.ctrl.Start(h.t0.Add(time.Second))

	assert.True(t, h.ctrl.Paused())
	assert.Equal(t, OutcomePaused, h.tick(2*time.Second).Outcome)
	assert.Zero(t, h.src.calls)

	h.ctrl.Resume(h.t0.Add(2 * time.Second))
	assert.Equal(t, OutcomeCaptured, h.tick(2*time.Second+100*time.Millisecond).Outcome)
}

func TestPixelBuffersReturnToPool(t *testing.T) {
	h := newControllerHarness(t, 10)
	for i := range 20 {
		h.tick(time.Duration(i) * 100 * time.Millisecond)
	}
	pb := h.pool.Stats().Kind(pool.KindPixelBuffer)
	assert.Zero(t, pb.InUse)
	assert.Zero(t, pb.Misuse)
	md := h.pool.Stats().Kind(pool.KindMetadata)
	assert.Zero(t, md.InUse)
	assert.Equal(t, uint64(20), h.ctrl.Stats().Captures)
}

func TestSetTargetFPS(t *testing.T) {
	h := newControllerHarness(t, 30)
	assert.Equal(t, time.Duration(33333333), h.ctrl.Interval())
	require.ErrorIs(t, h.ctrl.SetTargetFPS(0), ErrInvalidFPS)
	require.NoError(t, h.ctrl.SetTargetFPS(50))
	assert.Equal(t, 20*time.Millisecond, h.ctrl.Interval())
}
