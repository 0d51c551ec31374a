package model

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/perf"
)

func TestCaptureModel(t *testing.T) {
	var m CaptureModel
	assert.Equal(t, "off", m.Status())
	m.SetPaused(true)
	assert.False(t, m.Paused(), "pause ignored while disabled")

	m.SetEnabled(true)
	assert.Equal(t, "capturing", m.Status())
	m.SetPaused(true)
	assert.Equal(t, "paused", m.Status())

	m.SetEnabled(false)
	m.SetEnabled(true)
	assert.False(t, m.Paused(), "disable clears the pause")

	var nilModel *CaptureModel
	assert.False(t, nilModel.Enabled())
	nilModel.SetEnabled(true)
}

func TestRegionModel(t *testing.T) {
	m := NewRegionModel(image.Rect(0, 0, 1920, 1080))
	assert.True(t, m.FullScreen())

	assert.True(t, m.SetRegion(image.Rect(10, 10, 110, 60)))
	assert.Equal(t, image.Rect(10, 10, 110, 60), m.Region())

	assert.False(t, m.SetRegion(image.Rect(1800, 1000, 2000, 1200)))
	assert.Equal(t, image.Rect(1800, 1000, 1920, 1080), m.Region())

	assert.False(t, m.SetRegion(image.Rect(3000, 3000, 3100, 3100)))
	assert.True(t, m.FullScreen())

	assert.True(t, m.SetRegion(image.Rectangle{}))
	assert.True(t, m.FullScreen())

	free := NewRegionModel(image.Rectangle{})
	assert.True(t, free.SetRegion(image.Rect(-50, -50, 10, 10)))
}

func snap(at time.Time, running, paused bool) capture.Snapshot {
	return capture.Snapshot{TakenAt: at, Running: running, Paused: paused}
}

func TestStatsModelDurations(t *testing.T) {
	m := NewStatsModel()
	base := time.Unix(0, 0)

	m.OnSnapshot(snap(base, true, false))
	m.OnSnapshot(snap(base.Add(5*time.Second), true, false))
	session, total := m.Durations()
	assert.Equal(t, 5*time.Second, session)
	assert.Equal(t, 5*time.Second, total)

	// paused time does not count
	m.OnSnapshot(snap(base.Add(6*time.Second), true, true))
	m.OnSnapshot(snap(base.Add(9*time.Second), true, true))
	m.OnSnapshot(snap(base.Add(9*time.Second), true, false))
	m.OnSnapshot(snap(base.Add(10*time.Second), true, false))
	session, total = m.Durations()
	assert.Equal(t, 7*time.Second, session)
	assert.Equal(t, 7*time.Second, total)

	// stop, then a new session starts from zero
	m.OnSnapshot(snap(base.Add(12*time.Second), false, false))
	m.OnSnapshot(snap(base.Add(20*time.Second), false, false))
	session, total = m.Durations()
	assert.Equal(t, 9*time.Second, session)
	assert.Equal(t, 9*time.Second, total)

	m.OnSnapshot(snap(base.Add(30*time.Second), true, false))
	m.OnSnapshot(snap(base.Add(33*time.Second), true, false))
	session, total = m.Durations()
	assert.Equal(t, 3*time.Second, session)
	assert.Equal(t, 12*time.Second, total)
}

func TestStatsModelLines(t *testing.T) {
	m := NewStatsModel()
	assert.Nil(t, m.Lines())
	assert.Equal(t, perf.Good, m.State())

	s := snap(time.Unix(0, 0), true, false)
	s.Source = "pattern:4x4"
	s.Perf.State = perf.Critical
	s.Perf.FramesProcessed = 12345
	s.Perf.Dropping = true
	s.Buffer.Capacity, s.Buffer.Count, s.Buffer.MemoryBytes = 3, 2, 2048
	m.OnSnapshot(s)

	assert.Equal(t, perf.Critical, m.State())
	lines := m.Lines()
	require.NotEmpty(t, lines)
	byLabel := map[string]string{}
	for _, l := range lines {
		byLabel[l.Label] = l.Value
	}
	assert.Equal(t, "pattern:4x4", byLabel["Source"])
	assert.Contains(t, byLabel["Frames"], "12,345 processed")
	assert.Contains(t, byLabel["Dropped"], "dropping yes")
	assert.Equal(t, "2/3, 2.0 KiB", byLabel["Buffer"])
}

func TestParseGeometry(t *testing.T) {
	r, ok := ParseGeometry(" 300x200+10+-5 ")
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, -5, 310, 195), r)

	for _, bad := range []string{"", "300x200", "0x10+1+1", "axb+1+1"} {
		_, ok := ParseGeometry(bad)
		assert.False(t, ok, bad)
	}
}
