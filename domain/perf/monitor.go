// Package perf tracks frame rate, frame time and memory over rolling windows,
// classifies overall performance and decides when frames should be dropped.
package perf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/soocke/framepipe/domain/clock"
)

// ErrInvalidTargetFPS is returned for a non-positive target frame rate.
var ErrInvalidTargetFPS = errors.New("target fps must be positive")

// MemoryProbe reports current memory use in megabytes.
type MemoryProbe interface {
	MemoryMB() float64
}

// MemoryProbeFunc adapts a function to MemoryProbe.
type MemoryProbeFunc func() float64

func (f MemoryProbeFunc) MemoryMB() float64 { return f() }

// Config holds the monitor constants.
type Config struct {
	TargetFPS float64
	// MaxFPS caps 1/frame_time before it enters the FPS window.
	MaxFPS float64

	FPSWindow       int
	FrameTimeWindow int
	MemoryWindow    int

	EvalInterval   time.Duration
	MemoryInterval time.Duration

	// DropEnterCount is the number of net slow frames that turns dropping on.
	// The counter saturates there, so one good frame turns dropping off.
	DropEnterCount int
	// DropEvery drops one frame in every DropEvery processed frames while
	// dropping.
	DropEvery uint64

	FrameDropEnabled bool
	MemoryMonitoring bool

	Thresholds Thresholds
}

// DefaultConfig returns the standard monitor settings for a 30 fps target.
func DefaultConfig() Config {
	return Config{
		TargetFPS:        30,
		MaxFPS:           1000,
		FPSWindow:        60,
		FrameTimeWindow:  60,
		MemoryWindow:     30,
		EvalInterval:     100 * time.Millisecond,
		MemoryInterval:   time.Second,
		DropEnterCount:   3,
		DropEvery:        2,
		FrameDropEnabled: true,
		MemoryMonitoring: true,
		Thresholds:       DefaultThresholds(),
	}
}

// Validate rejects settings the monitor cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TargetFPS <= 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidTargetFPS, c.TargetFPS))
	}
	if c.MaxFPS <= 0 {
		errs = append(errs, fmt.Errorf("max fps must be positive: %v", c.MaxFPS))
	}
	if c.FPSWindow < 1 || c.FrameTimeWindow < 1 || c.MemoryWindow < 1 {
		errs = append(errs, errors.New("sample windows must hold at least one sample"))
	}
	if c.EvalInterval <= 0 || c.MemoryInterval <= 0 {
		errs = append(errs, errors.New("evaluation and memory intervals must be positive"))
	}
	if c.DropEnterCount < 1 {
		errs = append(errs, fmt.Errorf("drop enter count must be at least 1: %d", c.DropEnterCount))
	}
	if c.DropEvery < 1 {
		errs = append(errs, errors.New("drop every must be at least 1"))
	}
	return errors.Join(errs...)
}

// Callbacks are fired synchronously from Update and the setters. Warning and
// critical fire only when the state changes into them.
type Callbacks struct {
	OnWarning   func(Stats)
	OnCritical  func(Stats)
	OnDropStart func(Stats)
	OnDropStop  func(Stats)
}

// Monitor is owned by the tick goroutine and does no locking.
type Monitor struct {
	cfg Config
	cb  Callbacks

	fps       *Window
	frameTime *Window
	memory    *Window

	state       State
	dropping    bool
	slowFrames  int
	processed   uint64
	dropped     uint64
	skipped     uint64
	started     time.Time
	lastEval    time.Time
	lastMemory  time.Time
	memorySeen  bool
	transitions uint64

	probe  MemoryProbe
	clock  clock.Clock
	logger *slog.Logger
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock sets the time source for the evaluation and memory cadences.
func WithClock(c clock.Clock) Option { return func(m *Monitor) { m.clock = clock.OrSystem(c) } }

// WithMemoryProbe sets the memory source. Without one no memory samples are
// taken.
func WithMemoryProbe(p MemoryProbe) Option { return func(m *Monitor) { m.probe = p } }

// WithCallbacks registers the collaborator callbacks.
func WithCallbacks(cb Callbacks) Option { return func(m *Monitor) { m.cb = cb } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor validates cfg and returns a monitor in the good state.
func NewMonitor(cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		cfg:       cfg,
		fps:       NewWindow(cfg.FPSWindow),
		frameTime: NewWindow(cfg.FrameTimeWindow),
		memory:    NewWindow(cfg.MemoryWindow),
		clock:     clock.System{},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.started = m.clock.Now()
	m.lastEval = m.started
	return m, nil
}

// SetCallbacks replaces the registered callbacks.
func (m *Monitor) SetCallbacks(cb Callbacks) { m.cb = cb }

// Update records one host frame that took dt. It samples memory at most
// once per MemoryInterval and re-evaluates the state at most once per
// EvalInterval.
func (m *Monitor) Update(dt time.Duration) {
	now := m.clock.Now()
	m.processed++

	fps := m.cfg.MaxFPS
	if dt > 0 {
		fps = math.Min(1/dt.Seconds(), m.cfg.MaxFPS)
	}
	m.fps.Add(fps)
	m.frameTime.Add(durationMS(dt))

	if m.cfg.Thresholds.slow(fps, dt, m.cfg.TargetFPS) {
		m.slowFrames = min(m.slowFrames+1, m.cfg.DropEnterCount)
	} else if m.slowFrames > 0 {
		m.slowFrames--
	}
	m.updateDropping()

	if m.cfg.MemoryMonitoring && m.probe != nil && (!m.memorySeen || now.Sub(m.lastMemory) >= m.cfg.MemoryInterval) {
		m.memory.Add(m.probe.MemoryMB())
		m.lastMemory = now
		m.memorySeen = true
	}

	if now.Sub(m.lastEval) >= m.cfg.EvalInterval {
		m.lastEval = now
		m.evaluate()
	}
}

func (m *Monitor) updateDropping() {
	should := m.cfg.FrameDropEnabled && m.slowFrames >= m.cfg.DropEnterCount
	if should == m.dropping {
		return
	}
	m.dropping = should
	st := m.Stats()
	if should {
		m.logger.Info("perf.drop_start", "slow_frames", m.slowFrames, "fps", st.CurrentFPS)
		if m.cb.OnDropStart != nil {
			m.cb.OnDropStart(st)
		}
		return
	}
	m.logger.Info("perf.drop_stop", "dropped", m.dropped)
	if m.cb.OnDropStop != nil {
		m.cb.OnDropStop(st)
	}
}

func (m *Monitor) evaluate() {
	next := m.cfg.Thresholds.Classify(m.fps.Current(), msDuration(m.frameTime.Current()), m.currentMemory(), m.cfg.TargetFPS)
	if next == m.state {
		return
	}
	prev := m.state
	m.state = next
	m.transitions++
	st := m.Stats()
	switch next {
	case Warning:
		m.logger.Warn("perf.state", "from", prev.String(), "to", next.String(), "fps", st.CurrentFPS, "frame_ms", st.CurrentFrameTimeMS, "memory_mb", st.CurrentMemoryMB)
		if m.cb.OnWarning != nil {
			m.cb.OnWarning(st)
		}
	case Critical:
		m.logger.Warn("perf.state", "from", prev.String(), "to", next.String(), "fps", st.CurrentFPS, "frame_ms", st.CurrentFrameTimeMS, "memory_mb", st.CurrentMemoryMB)
		if m.cb.OnCritical != nil {
			m.cb.OnCritical(st)
		}
	default:
		m.logger.Info("perf.state", "from", prev.String(), "to", next.String())
	}
}

func (m *Monitor) currentMemory() float64 {
	if !m.cfg.MemoryMonitoring {
		return 0
	}
	return m.memory.Current()
}

// ShouldDropFrame reports whether the frame due now should be declined.
// While dropping it returns true for every DropEvery-th processed frame and
// counts each true result as a dropped frame.
func (m *Monitor) ShouldDropFrame() bool {
	if !m.dropping || m.processed%m.cfg.DropEvery != 0 {
		return false
	}
	m.dropped++
	return true
}

// RecordSkippedFrames counts n schedule slots forfeited because time had
// already passed them. Skips are never counted as drops.
func (m *Monitor) RecordSkippedFrames(n uint64) { m.skipped += n }

// RecordSkippedFrame counts one forfeited slot.
func (m *Monitor) RecordSkippedFrame() { m.RecordSkippedFrames(1) }

// SetTargetFPS changes the target used by the classifier and the hysteresis.
func (m *Monitor) SetTargetFPS(fps float64) error {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTargetFPS, fps)
	}
	m.cfg.TargetFPS = fps
	return nil
}

// TargetFPS returns the current target frame rate.
func (m *Monitor) TargetFPS() float64 { return m.cfg.TargetFPS }

// SetFrameDropEnabled turns drop decisions on or off. Turning them off stops
// an active drop phase immediately.
func (m *Monitor) SetFrameDropEnabled(on bool) {
	m.cfg.FrameDropEnabled = on
	m.updateDropping()
}

// FrameDropEnabled reports whether drop decisions are enabled.
func (m *Monitor) FrameDropEnabled() bool { return m.cfg.FrameDropEnabled }

// SetMemoryMonitoring turns memory sampling on or off. While off, memory
// does not influence the state.
func (m *Monitor) SetMemoryMonitoring(on bool) {
	m.cfg.MemoryMonitoring = on
	if on {
		m.memorySeen = false
	}
}

// MemoryMonitoring reports whether memory is sampled.
func (m *Monitor) MemoryMonitoring() bool { return m.cfg.MemoryMonitoring }

// State returns the last evaluated state.
func (m *Monitor) State() State { return m.state }

// Dropping reports whether a drop phase is active.
func (m *Monitor) Dropping() bool { return m.dropping }

// SlowFrames returns the hysteresis counter.
func (m *Monitor) SlowFrames() int { return m.slowFrames }

// Reset clears every window and counter and restarts the session. Callbacks
// and settings are kept; no callbacks fire.
func (m *Monitor) Reset() {
	m.fps.Reset()
	m.frameTime.Reset()
	m.memory.Reset()
	m.state = Good
	m.dropping = false
	m.slowFrames = 0
	m.processed = 0
	m.dropped = 0
	m.skipped = 0
	m.transitions = 0
	m.memorySeen = false
	m.started = m.clock.Now()
	m.lastEval = m.started
}

func durationMS(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func msDuration(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }
