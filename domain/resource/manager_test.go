package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/pool"
)

type memFixture struct{ mb float64 }

func (f *memFixture) MemoryMB() float64 { return f.mb }

type harness struct {
	m        *Manager
	clk      *clock.Manual
	mem      *memFixture
	collects int
	warnings int
	critical int
	leaks    []LeakRecord
	cleanups []CleanupReport
	// afterGC is the memory reading once a forced collection ran.
	afterGC float64
}

func newHarness(t *testing.T, cfg Config, p *pool.Pool) *harness {
	t.Helper()
	return newHarnessAt(t, cfg, p, clock.NewManual(time.Unix(0, 0)))
}

// newPooledHarness shares one manual clock between the manager and a pool.
func newPooledHarness(t *testing.T) (*harness, *pool.Pool) {
	t.Helper()
	clk := clock.NewManual(time.Unix(0, 0))
	p, err := pool.New(pool.DefaultConfig(), pool.WithClock(clk), pool.WithCollector(func() {}))
	require.NoError(t, err)
	return newHarnessAt(t, DefaultConfig(), p, clk), p
}

func newHarnessAt(t *testing.T, cfg Config, p *pool.Pool, clk *clock.Manual) *harness {
	t.Helper()
	h := &harness{clk: clk, mem: &memFixture{mb: 80}, afterGC: -1}
	m, err := NewManager(cfg, p,
		WithClock(h.clk),
		WithMemoryProbe(h.mem),
		WithCollector(func() {
			h.collects++
			if h.afterGC >= 0 {
				h.mem.mb = h.afterGC
			}
		}),
		WithCallbacks(Callbacks{
			OnMemoryWarning:  func(Stats) { h.warnings++ },
			OnMemoryCritical: func(Stats) { h.critical++ },
			OnLeak:           func(r LeakRecord) { h.leaks = append(h.leaks, r) },
			OnCleanup:        func(r CleanupReport) { h.cleanups = append(h.cleanups, r) },
		}),
	)
	require.NoError(t, err)
	h.m = m
	return h
}

// step advances the clock by d, sets the memory reading and runs Update.
func (h *harness) step(d time.Duration, mb float64) {
	h.clk.Advance(d)
	h.mem.mb = mb
	h.m.Update()
}

func TestAggressiveModeFollowsMemory(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Update()
	assert.False(t, h.m.Aggressive())
	assert.Equal(t, 60*time.Second, h.m.CleanupInterval())

	h.step(time.Second, 320)
	assert.True(t, h.m.Aggressive())
	assert.Equal(t, 15*time.Second, h.m.CleanupInterval())
	assert.Equal(t, 1, h.critical)

	h.step(time.Second, 200)
	assert.True(t, h.m.Aggressive(), "stays on until below the warning tier")

	h.step(time.Second, 90)
	assert.False(t, h.m.Aggressive())
	assert.Equal(t, 60*time.Second, h.m.CleanupInterval())
}

func TestEmergencyCollectsRegardlessOfInterval(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Update()

	h.step(time.Second, 550)
	assert.True(t, h.m.Emergency())
	assert.Equal(t, 1, h.collects)
	assert.Equal(t, 5*time.Second, h.m.CleanupInterval())

	h.step(time.Second, 550)
	assert.Equal(t, 2, h.collects)

	h.step(time.Second, 400)
	assert.False(t, h.m.Emergency())
	assert.True(t, h.m.Aggressive())
	assert.Equal(t, 15*time.Second, h.m.CleanupInterval())
}

func TestForcedCollectionRules(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Update()
	require.Equal(t, 80.0, h.m.Stats().BaselineMB)

	// Growth of 55MB but inside the minimum interval.
	h.step(5*time.Second, 135)
	assert.Zero(t, h.collects)

	h.afterGC = 90
	h.step(5*time.Second, 135)
	assert.Equal(t, 1, h.collects)
	assert.Equal(t, 90.0, h.m.Stats().BaselineMB, "baseline re-read after collection")
	assert.Equal(t, 90.0, h.m.MemoryMB())

	// Small growth, below warning: nothing.
	h.afterGC = -1
	h.step(5*time.Second, 120)
	assert.Equal(t, 1, h.collects)

	// Above the warning tier, collected once the interval elapsed.
	h.step(time.Second, 160)
	assert.Equal(t, 1, h.collects)
	assert.Equal(t, 1, h.warnings)
	h.step(4*time.Second, 160)
	assert.Equal(t, 2, h.collects)
	assert.Equal(t, uint64(2), h.m.Stats().GCCount)
}

func TestMemoryCallbacksOnlyOnRise(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Update()
	h.step(time.Second, 160)
	h.step(time.Second, 170)
	assert.Equal(t, 1, h.warnings)
	h.step(time.Second, 310)
	assert.Equal(t, 1, h.critical)
	h.step(time.Second, 520)
	assert.Equal(t, 2, h.critical, "emergency re-fires critical")
	h.step(time.Second, 100)
	h.step(time.Second, 160)
	assert.Equal(t, 2, h.warnings)
	assert.Equal(t, LevelWarning, h.m.Stats().Level)
}

func TestLeakDetection(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.mem.mb = 50
	h.m.Update()
	for i := 1; i <= 30; i++ {
		h.step(time.Second, 50+float64(i))
	}
	require.Len(t, h.leaks, 1)
	rec := h.leaks[0]
	assert.InDelta(t, 30.0, rec.GrowthMB, 1e-9)
	assert.Equal(t, 30*time.Second, rec.Span)
	assert.InDelta(t, 1.0, rec.RateMBPerSec, 1e-9)
	assert.Equal(t, time.Unix(30, 0), rec.ObservedAt)
	assert.Zero(t, h.collects, "leak detection never remediates")

	// Flat memory for the next window: no new record.
	for range 30 {
		h.step(time.Second, 80)
	}
	assert.Len(t, h.leaks, 1)
	assert.Len(t, h.m.Leaks(), 1)
}

func TestSlowGrowthIsNotALeak(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.mem.mb = 50
	h.m.Update()
	for i := 1; i <= 60; i++ {
		h.step(time.Second, 50+float64(i)*0.5)
	}
	assert.Empty(t, h.leaks)
}

func TestLeakHistoryExpires(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.mem.mb = 50
	h.m.Update()
	for i := 1; i <= 30; i++ {
		h.step(time.Second, 50+float64(i))
	}
	require.Len(t, h.m.Leaks(), 1)

	for range 630 {
		h.step(time.Second, 80)
	}
	assert.Empty(t, h.m.Leaks())
	var trimmed int
	for _, r := range h.cleanups {
		trimmed += r.LeaksTrimmed
	}
	assert.Equal(t, 1, trimmed)
}

func TestTrackingTTL(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	tmp := h.m.Track(TypeTemporary, map[string]any{"bytes": 64})
	fb := h.m.Track(TypeFrameBuffer, nil)
	other := h.m.Track("custom", nil)
	assert.Equal(t, map[string]int{TypeTemporary: 1, TypeFrameBuffer: 1, "custom": 1}, h.m.TrackedCount())

	e, ok := h.m.Tracked(tmp)
	require.True(t, ok)
	assert.Equal(t, 64, e.Metadata["bytes"])

	h.step(60*time.Second, 80)
	require.Len(t, h.cleanups, 1)
	assert.Equal(t, 1, h.cleanups[0].ExpiredEntries)
	_, ok = h.m.Tracked(tmp)
	assert.False(t, ok)

	for range 4 {
		h.step(60*time.Second, 80)
	}
	_, ok = h.m.Tracked(fb)
	assert.False(t, ok)
	_, ok = h.m.Tracked(other)
	assert.True(t, ok, "types without a TTL never expire")
	assert.True(t, h.m.Untrack(other))
	assert.False(t, h.m.Untrack(other))
}

func TestTrackingIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTracked = 2
	h := newHarness(t, cfg, nil)
	first := h.m.Track(TypeTemporary, nil)
	h.m.Track(TypeTemporary, nil)
	h.m.Track(TypeTemporary, nil)
	assert.Equal(t, 2, h.m.TrackedCount()[TypeTemporary])
	_, ok := h.m.Tracked(first)
	assert.False(t, ok)
}

func TestCleanupDelegatesToPool(t *testing.T) {
	h, p := newPooledHarness(t)

	var held []*pool.PixelBuffer
	for range 8 {
		held = append(held, p.AcquirePixelBuffer(16))
	}
	for _, b := range held {
		p.Release(b)
	}

	h.step(60*time.Second, 80)
	require.Len(t, h.cleanups, 1)
	assert.Equal(t, 4, h.cleanups[0].PoolRemoved)
	assert.Equal(t, 4, p.Stats().Kind(pool.KindPixelBuffer).Available)
}

func TestEmergencyCleanupShrinksPool(t *testing.T) {
	h, p := newPooledHarness(t)
	h.m.Update()

	var held []*pool.FrameData
	for range 10 {
		held = append(held, p.AcquireFrame(0))
	}
	for _, f := range held {
		p.Release(f)
	}

	h.step(time.Second, 600)
	h.step(5*time.Second, 600)
	require.NotEmpty(t, h.cleanups)
	last := h.cleanups[len(h.cleanups)-1]
	assert.True(t, last.Emergency)
	assert.Equal(t, 7, last.PoolShrunk)
	assert.Equal(t, 3, p.Stats().Kind(pool.KindFrameData).Available)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.CriticalMB = 100
	cfg.MaxTracked = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewManager(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmergencyCleanupCollectsOnce(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	var h *harness
	p, err := pool.New(pool.DefaultConfig(), pool.WithClock(clk), pool.WithCollector(func() {
		h.m.Collect("pool_cleanup")
	}))
	require.NoError(t, err)
	h = newHarnessAt(t, DefaultConfig(), p, clk)
	h.m.Update()

	var held []*pool.FrameData
	for range 10 {
		held = append(held, p.AcquireFrame(0))
	}
	for _, f := range held {
		p.Release(f)
	}

	h.step(time.Second, 600)
	require.True(t, h.m.Emergency())

	clk.Advance(31 * time.Second)
	before := h.collects
	rep := h.m.Cleanup()
	assert.True(t, rep.Emergency)
	assert.Equal(t, 7, rep.PoolShrunk)
	assert.Equal(t, 1, h.collects-before)
	assert.Equal(t, 3, p.Stats().Kind(pool.KindFrameData).Available)
}

func TestMonitoringOffSilencesMemoryChecks(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Update()

	h.m.SetMonitoring(false)
	assert.False(t, h.m.Stats().Monitoring)
	h.step(time.Second, 600)
	h.step(time.Second, 600)
	assert.False(t, h.m.Emergency())
	assert.Equal(t, LevelNormal, h.m.Stats().Level)
	assert.Zero(t, h.collects)
	assert.Zero(t, h.critical)

	h.m.SetMonitoring(true)
	h.step(time.Second, 600)
	assert.True(t, h.m.Emergency())
	assert.Equal(t, 1, h.critical)
	assert.Equal(t, 1, h.collects)
}
