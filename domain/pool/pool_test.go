package pool

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/frame"
)

func newTestPool(t *testing.T, cfg Config, clk clock.Clock, collects *int) *Pool {
	t.Helper()
	p, err := New(cfg,
		WithClock(clk),
		WithCollector(func() { *collects++ }),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	require.NoError(t, err)
	return p
}

func TestNewPrefillsInitialSize(t *testing.T) {
	var collects int
	p := newTestPool(t, DefaultConfig(), clock.NewManual(time.Unix(0, 0)), &collects)

	st := p.Stats()
	assert.True(t, st.Enabled)
	for _, k := range Kinds {
		ks := st.Kind(k)
		assert.Equal(t, DefaultConfig().For(k).InitialSize, ks.Available, k.String())
		assert.Equal(t, uint64(ks.Available), ks.TotalCreated, k.String())
		assert.Zero(t, ks.InUse)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metadata.InitialSize = 50
	cfg.TempBuffer.ShrinkThreshold = 0
	_, err := New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "metadata")
	assert.Contains(t, err.Error(), "temp_buffer")
}

func TestAcquireReusesReleasedObject(t *testing.T) {
	var collects int
	cfg := DefaultConfig()
	cfg.FrameData.InitialSize = 0
	p := newTestPool(t, cfg, clock.NewManual(time.Unix(0, 0)), &collects)

	f := p.AcquireFrame(64)
	f.Payload = append(f.Payload, 1, 2, 3)
	f.Width, f.Height = 3, 1
	f.Format = frame.Gray
	f.Metadata["k"] = "v"
	p.Release(f)

	again := p.AcquireFrame(16)
	assert.Same(t, f, again)
	assert.Empty(t, again.Payload)
	assert.Zero(t, again.Width)
	assert.Zero(t, again.Height)
	assert.Equal(t, frame.RGBA, again.Format)
	assert.True(t, again.Timestamp.IsZero())
	assert.Empty(t, again.Metadata)
	assert.GreaterOrEqual(t, cap(again.Payload), 64)

	ks := p.Stats().Kind(KindFrameData)
	assert.Equal(t, uint64(1), ks.TotalCreated)
	assert.Equal(t, uint64(1), ks.TotalReused)
	assert.Equal(t, uint64(1), ks.Misses)
	assert.Equal(t, 1, ks.InUse)
}

func TestBuffersAreZeroedOnAcquire(t *testing.T) {
	var collects int
	p := newTestPool(t, DefaultConfig(), clock.NewManual(time.Unix(0, 0)), &collects)

	b := p.AcquirePixelBuffer(8)
	for i := range b.Data {
		b.Data[i] = 0xff
	}
	p.Release(b)

	b = p.AcquirePixelBuffer(4)
	assert.Equal(t, []byte{0, 0, 0, 0}, b.Data)

	tmp := p.AcquireTempBuffer(3)
	assert.Len(t, tmp.Data, 3)

	md := p.AcquireMetadata()
	md.Values["a"] = 1
	p.Release(md)
	assert.Empty(t, p.AcquireMetadata().Values)
}

func TestInUseCapAllocatesDirectly(t *testing.T) {
	var collects int
	cfg := DefaultConfig()
	cfg.TempBuffer = KindConfig{InitialSize: 0, MaxSize: 2, GrowthFactor: 1, ShrinkThreshold: 1, CleanupInterval: time.Second}
	p := newTestPool(t, cfg, clock.NewManual(time.Unix(0, 0)), &collects)

	a := p.AcquireTempBuffer(1)
	b := p.AcquireTempBuffer(1)
	c := p.AcquireTempBuffer(1)

	ks := p.Stats().Kind(KindTempBuffer)
	assert.Equal(t, 2, ks.InUse)
	assert.Equal(t, uint64(1), ks.Direct)
	assert.Equal(t, uint64(3), ks.Misses)

	// Releasing the direct allocation is silent, not misuse.
	p.Release(c)
	p.Release(a)
	p.Release(b)
	ks = p.Stats().Kind(KindTempBuffer)
	assert.Zero(t, ks.Misuse)
	assert.Equal(t, 2, ks.Available)
	assert.Zero(t, ks.InUse)
}

func TestReleaseUntrackedIsDiagnosed(t *testing.T) {
	var collects int
	var logs bytes.Buffer
	p, err := New(DefaultConfig(),
		WithClock(clock.NewManual(time.Unix(0, 0))),
		WithCollector(func() { collects++ }),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)

	buf := p.AcquirePixelBuffer(4)
	p.Release(buf)
	p.Release(buf)
	p.Release(&PixelBuffer{Data: make([]byte, 4)})

	ks := p.Stats().Kind(KindPixelBuffer)
	assert.Equal(t, uint64(2), ks.Misuse)
	assert.Equal(t, DefaultConfig().PixelBuffer.InitialSize, ks.Available)
	assert.Contains(t, logs.String(), "pool.release_untracked")
}

func TestReleaseBeyondMaxAbandons(t *testing.T) {
	var collects int
	cfg := DefaultConfig()
	cfg.Metadata = KindConfig{InitialSize: 0, MaxSize: 1, GrowthFactor: 1, ShrinkThreshold: 1, CleanupInterval: time.Second}
	p := newTestPool(t, cfg, clock.NewManual(time.Unix(0, 0)), &collects)

	a := p.AcquireMetadata()
	p.Release(a)
	a = p.AcquireMetadata()
	b := p.AcquireMetadata() // direct, cap reached
	p.Release(a)
	p.Release(b)

	ks := p.Stats().Kind(KindMetadata)
	assert.Equal(t, 1, ks.Available)
	assert.Equal(t, uint64(1), ks.Direct)
	assert.Zero(t, ks.Misuse)
}

func TestCleanupShrinksOncePerInterval(t *testing.T) {
	var collects int
	clk := clock.NewManual(time.Unix(0, 0))
	p := newTestPool(t, DefaultConfig(), clk, &collects)

	held := make([]*FrameData, 0, 10)
	for range 10 {
		held = append(held, p.AcquireFrame(0))
	}
	for _, f := range held {
		p.Release(f)
	}
	require.Equal(t, 10, p.Stats().Kind(KindFrameData).Available)

	// Interval not yet elapsed.
	rep := p.Cleanup()
	assert.Zero(t, rep.Total())
	assert.Zero(t, collects)

	clk.Advance(30 * time.Second)
	rep = p.Cleanup()
	assert.Equal(t, 5, rep.Removed[KindFrameData])
	assert.True(t, rep.Collected)
	assert.Equal(t, 1, collects)
	assert.Equal(t, 5, p.Stats().Kind(KindFrameData).Available)

	// Second call inside the same interval is a no-op.
	rep = p.Cleanup()
	assert.Zero(t, rep.Total())
	assert.Equal(t, 1, collects)

	// Never shrinks below the initial size.
	clk.Advance(30 * time.Second)
	p.Cleanup()
	clk.Advance(30 * time.Second)
	p.Cleanup()
	assert.Equal(t, 3, p.Stats().Kind(KindFrameData).Available)
}

func TestCleanupSingleCollectAcrossKinds(t *testing.T) {
	var collects int
	clk := clock.NewManual(time.Unix(0, 0))
	p := newTestPool(t, DefaultConfig(), clk, &collects)

	var frames []*FrameData
	var bufs []*PixelBuffer
	for range 8 {
		frames = append(frames, p.AcquireFrame(0))
		bufs = append(bufs, p.AcquirePixelBuffer(0))
	}
	for i := range frames {
		p.Release(frames[i])
		p.Release(bufs[i])
	}

	clk.Advance(time.Minute)
	rep := p.Cleanup()
	assert.Equal(t, 4, rep.Removed[KindFrameData])
	assert.Equal(t, 4, rep.Removed[KindPixelBuffer])
	assert.Equal(t, 1, collects)
}

func TestShrinkReturnsToInitial(t *testing.T) {
	var collects int
	p := newTestPool(t, DefaultConfig(), clock.NewManual(time.Unix(0, 0)), &collects)

	var held []*TempBuffer
	for range 6 {
		held = append(held, p.AcquireTempBuffer(0))
	}
	for _, b := range held {
		p.Release(b)
	}
	assert.Equal(t, 4, p.Shrink(KindTempBuffer))
	assert.Equal(t, 2, p.Stats().Kind(KindTempBuffer).Available)
	assert.Zero(t, collects)
}

func TestDisableAbandonsEverything(t *testing.T) {
	var collects int
	p := newTestPool(t, DefaultConfig(), clock.NewManual(time.Unix(0, 0)), &collects)

	held := p.AcquireFrame(0)
	p.SetEnabled(false)
	assert.False(t, p.Enabled())
	assert.Equal(t, 1, collects)

	for _, ks := range p.Stats().Kinds {
		assert.Zero(t, ks.Available, ks.Kind)
		assert.Zero(t, ks.InUse, ks.Kind)
	}

	// Late release of a detached object is a silent no-op.
	p.Release(held)
	assert.Zero(t, p.Stats().Kind(KindFrameData).Misuse)

	direct := p.AcquireFrame(0)
	p.Release(direct)
	ks := p.Stats().Kind(KindFrameData)
	assert.Zero(t, ks.Available)
	assert.Equal(t, uint64(1), ks.Direct)

	p.SetEnabled(true)
	assert.Equal(t, 3, p.Stats().Kind(KindFrameData).Available)
}

func TestSuggestedSize(t *testing.T) {
	var collects int
	p := newTestPool(t, DefaultConfig(), clock.NewManual(time.Unix(0, 0)), &collects)
	assert.Equal(t, 5, p.SuggestedSize(KindFrameData))  // ceil(3*1.5)
	assert.Equal(t, 10, p.SuggestedSize(KindMetadata))  // 5*2
	assert.Equal(t, 3, p.SuggestedSize(KindTempBuffer)) // 2*1.5
}

func TestNilPoolAllocatesDirectly(t *testing.T) {
	var p *Pool
	f := p.AcquireFrame(10)
	require.NotNil(t, f)
	assert.GreaterOrEqual(t, cap(f.Payload), 10)
	p.Release(f)
	assert.Zero(t, p.Cleanup().Total())
	assert.False(t, p.Enabled())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "frame_data", KindFrameData.String())
	assert.Equal(t, "temp_buffer", KindTempBuffer.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
