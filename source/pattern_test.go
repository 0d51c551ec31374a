package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

func newPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New(pool.DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestPatternRejectsInvalidInput(t *testing.T) {
	p := newPool(t)
	_, err := NewPattern(p, 0, 10, frame.RGBA)
	require.Error(t, err)
	_, err = NewPattern(p, 10, 10, frame.PixelFormat(99))
	require.Error(t, err)
}

func TestPatternIsDeterministic(t *testing.T) {
	a, err := NewPattern(newPool(t), 16, 8, frame.RGB)
	require.NoError(t, err)
	b, err := NewPattern(newPool(t), 16, 8, frame.RGB)
	require.NoError(t, err)
	assert.Equal(t, "pattern:16x8", a.Name())

	ctx := context.Background()
	for range 3 {
		ca, err := a.Capture(ctx)
		require.NoError(t, err)
		cb, err := b.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, ca.Buffer.Data, cb.Buffer.Data)
		assert.Len(t, ca.Buffer.Data, 16*8*3)
		assert.Equal(t, frame.RGB, ca.Format)
	}
	c, err := a.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), c.Metadata["pattern_frame"])
	assert.Equal(t, uint64(4), a.Calls())
}

func TestPatternBarMoves(t *testing.T) {
	src, err := NewPattern(newPool(t), 32, 1, frame.Gray)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := src.Capture(ctx)
	require.NoError(t, err)
	second, err := src.Capture(ctx)
	require.NoError(t, err)
	// frame 1 has the bar at x 4..7, frame 2 at x 8..11
	assert.Equal(t, byte(0xff), first.Buffer.Data[4])
	assert.Equal(t, byte(0xff), second.Buffer.Data[8])
	assert.NotEqual(t, byte(0xff), second.Buffer.Data[4])
}

func TestPatternInjectedFailures(t *testing.T) {
	src, err := NewPattern(newPool(t), 4, 4, frame.RGBA)
	require.NoError(t, err)
	src.FailEvery = 3
	ctx := context.Background()

	var failed int
	for range 9 {
		if _, err := src.Capture(ctx); err != nil {
			require.ErrorIs(t, err, ErrInjected)
			failed++
		}
	}
	assert.Equal(t, 3, failed)
}

func TestPatternClosedAndCancelled(t *testing.T) {
	src, err := NewPattern(newPool(t), 4, 4, frame.RGBA)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Capture(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, src.Close())
	_, err = src.Capture(context.Background())
	require.ErrorIs(t, err, capture.ErrSourceClosed)
}

func TestOpenBuildsConfiguredSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source = config.SourcePattern
	cfg.PatternWidth, cfg.PatternHeight = 8, 6
	cfg.Format = "gray"

	src, err := Open(cfg, nil)(newPool(t))
	require.NoError(t, err)
	pat, ok := src.(*Pattern)
	require.True(t, ok)
	assert.Equal(t, frame.Gray, pat.format)
	assert.Equal(t, "pattern:8x6", src.Name())

	cfg.Source = config.SourceScreen
	cfg.SelectionW, cfg.SelectionH = 100, 50
	src, err = Open(cfg, nil)(newPool(t))
	require.NoError(t, err)
	assert.Equal(t, "screen:100x50+0+0", src.Name())

	cfg.Source = "tape"
	_, err = Open(cfg, nil)(newPool(t))
	require.ErrorIs(t, err, config.ErrInvalid)

	cfg.Source = config.SourcePattern
	cfg.Format = "cmyk"
	_, err = Open(cfg, nil)(newPool(t))
	require.Error(t, err)
}

func TestPatternFeedsService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source = config.SourcePattern
	cfg.PatternWidth, cfg.PatternHeight = 4, 4

	opts := capture.DefaultOptions()
	opts.Pool = cfg.PoolConfig()
	svc, err := capture.NewService(Open(cfg, nil), opts)
	require.NoError(t, err)
	defer svc.Close()

	res := svc.Update(context.Background(), svc.Snapshot().TakenAt)
	require.NoError(t, res.Err)
	f, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, uint32(4), f.Width)
	assert.Len(t, f.Payload, 4*4*4)
}
