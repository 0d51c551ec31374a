package model

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/perf"
)

// StatsModel derives display values from polled pipeline snapshots. It
// accumulates active capture time across start/stop cycles; paused time does
// not count. The zero value is ready to use. Updates occur on the UI thread.
type StatsModel struct {
	last        capture.Snapshot
	have        bool
	active      bool
	activeSince time.Time
	session     time.Duration
	accumulated time.Duration
}

// NewStatsModel returns a pointer to a ready-to-use StatsModel.
func NewStatsModel() *StatsModel { return &StatsModel{} }

// OnSnapshot records snap.
func (m *StatsModel) OnSnapshot(snap capture.Snapshot) {
	if m == nil {
		return
	}
	now := snap.TakenAt
	capturing := snap.Running && !snap.Paused
	switch {
	case capturing && !m.active:
		m.active = true
		m.activeSince = now
		if !m.have || !m.last.Running {
			m.session = 0
		}
	case capturing:
		m.session += now.Sub(m.activeSince)
		m.accumulated += now.Sub(m.activeSince)
		m.activeSince = now
	case m.active:
		m.session += now.Sub(m.activeSince)
		m.accumulated += now.Sub(m.activeSince)
		m.active = false
	}
	m.last = snap
	m.have = true
}

// Snapshot returns the most recent snapshot.
func (m *StatsModel) Snapshot() (capture.Snapshot, bool) {
	if m == nil {
		return capture.Snapshot{}, false
	}
	return m.last, m.have
}

// Durations returns the active time of the current session and of every
// session so far.
func (m *StatsModel) Durations() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	return m.session, m.accumulated
}

// State returns the performance state of the latest snapshot.
func (m *StatsModel) State() perf.State {
	if m == nil || !m.have {
		return perf.Good
	}
	return m.last.Perf.State
}

// StatLine is one labelled value of the stats panel.
type StatLine struct {
	Label string
	Value string
}

// Lines formats the latest snapshot for the stats panel.
func (m *StatsModel) Lines() []StatLine {
	if m == nil || !m.have {
		return nil
	}
	s := m.last
	p := s.Perf
	dropping := "no"
	if p.Dropping {
		dropping = "yes"
	}
	level := s.Resources.Level.String()
	if s.Resources.Aggressive {
		level += " (aggressive)"
	}
	return []StatLine{
		{"Source", s.Source},
		{"FPS", humanize.FtoaWithDigits(p.CurrentFPS, 1) + " / avg " + humanize.FtoaWithDigits(p.AverageFPS, 1) + " / target " + humanize.Ftoa(p.TargetFPS)},
		{"Frame time", humanize.FtoaWithDigits(p.AverageFrameTimeMS, 1) + " ms avg, " + humanize.FtoaWithDigits(p.MaxFrameTimeMS, 1) + " ms max"},
		{"Frames", humanize.Comma(int64(p.FramesProcessed)) + " processed, " + humanize.Comma(int64(s.Capture.Captures)) + " captured"},
		{"Dropped", humanize.Comma(int64(p.FramesDropped)) + " (" + humanize.FtoaWithDigits(p.DropRate, 1) + "%), dropping " + dropping},
		{"Skipped", humanize.Comma(int64(p.FramesSkipped)) + " (" + humanize.FtoaWithDigits(p.SkipRate, 1) + "%)"},
		{"Failures", humanize.Comma(int64(s.Capture.Failures))},
		{"Buffer", humanize.Comma(int64(s.Buffer.Count)) + "/" + humanize.Comma(int64(s.Buffer.Capacity)) + ", " + humanize.IBytes(uint64(s.Buffer.MemoryBytes))},
		{"Memory", humanize.FtoaWithDigits(s.Resources.MemoryMB, 1) + " MB, " + level},
		{"GC", humanize.Comma(int64(s.Resources.GCCount)) + " forced, " + humanize.Comma(int64(len(s.Resources.Leaks))) + " leak records"},
	}
}
