package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/domain/pool"
)

// gatedSource blocks each capture until the test sends on gate.
type gatedSource struct {
	pool   *pool.Pool
	gate   chan struct{}
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
	closed atomic.Bool
}

func (g *gatedSource) Name() string { return "gated" }

func (g *gatedSource) Close() error {
	g.closed.Store(true)
	return nil
}

func (g *gatedSource) Capture(ctx context.Context) (Capture, error) {
	g.calls.Add(1)
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-g.gate:
	case <-ctx.Done():
		return Capture{}, ctx.Err()
	}
	buf := g.pool.AcquirePixelBuffer(4)
	return Capture{Buffer: buf, Width: 1, Height: 1}, nil
}

func TestAsyncSourceKeepsOneCaptureInFlight(t *testing.T) {
	p, err := pool.New(pool.DefaultConfig(), pool.WithCollector(func() {}))
	require.NoError(t, err)
	src := &gatedSource{pool: p, gate: make(chan struct{})}
	a := NewAsyncSource(src, p)
	ctx := context.Background()

	_, err = a.Capture(ctx)
	require.ErrorIs(t, err, ErrNotReady)
	_, err = a.Capture(ctx)
	require.ErrorIs(t, err, ErrNotReady)
	assert.True(t, a.InFlight())

	src.gate <- struct{}{}
	require.Eventually(t, func() bool { return !a.InFlight() }, time.Second, time.Millisecond)

	got, err := a.Capture(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.Buffer)
	assert.Len(t, got.Buffer.Data, 4)
	p.Release(got.Buffer)

	// Collecting a result starts the next capture right away.
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), src.peak.Load())

	require.NoError(t, a.Close())
	assert.True(t, src.closed.Load())
	_, err = a.Capture(ctx)
	require.ErrorIs(t, err, ErrSourceClosed)
	assert.Zero(t, p.Stats().Kind(pool.KindPixelBuffer).InUse)
}

func TestAsyncSourceCloseReleasesUncollectedResult(t *testing.T) {
	p, err := pool.New(pool.DefaultConfig(), pool.WithCollector(func() {}))
	require.NoError(t, err)
	src := &gatedSource{pool: p, gate: make(chan struct{}, 1)}
	src.gate <- struct{}{}
	a := NewAsyncSource(src, p)

	_, err = a.Capture(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
	require.Eventually(t, func() bool { return !a.InFlight() }, time.Second, time.Millisecond)

	require.NoError(t, a.Close())
	assert.Zero(t, p.Stats().Kind(pool.KindPixelBuffer).InUse)
	assert.NoError(t, a.Close(), "second close is a no-op")
}
