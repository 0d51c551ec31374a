// Package resource bounds memory growth of the capture pipeline. A Manager
// wraps the object pool and, driven by Update on every tick, forces
// collections, runs adaptive cleanup passes and flags sustained growth as a
// suspected leak.
package resource

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/pool"
)

// MemoryProbe reports current memory use in megabytes.
type MemoryProbe interface {
	MemoryMB() float64
}

// Level is the memory tier of the latest sample.
type Level uint8

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// MarshalText renders the level by name in JSON snapshots.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// LeakRecord describes one period of sustained growth.
type LeakRecord struct {
	GrowthMB float64       `json:"growth_mb"`
	Span     time.Duration `json:"span"`
	// RateMBPerSec is GrowthMB / Span.
	RateMBPerSec float64   `json:"rate_mb_per_sec"`
	ObservedAt   time.Time `json:"observed_at"`
}

// CleanupReport describes one routine cleanup pass.
type CleanupReport struct {
	At             time.Time     `json:"at"`
	Interval       time.Duration `json:"interval"`
	PoolRemoved    int           `json:"pool_removed"`
	PoolShrunk     int           `json:"pool_shrunk"`
	ExpiredEntries int           `json:"expired_entries"`
	LeaksTrimmed   int           `json:"leaks_trimmed"`
	Emergency      bool          `json:"emergency"`
}

// Callbacks are fired synchronously from Update. Memory warning and critical
// fire when the level rises into them; critical also fires on entering the
// emergency tier.
type Callbacks struct {
	OnMemoryWarning  func(Stats)
	OnMemoryCritical func(Stats)
	OnLeak           func(LeakRecord)
	OnCleanup        func(CleanupReport)
}

type sample struct {
	at time.Time
	mb float64
}

// Manager is owned by the tick goroutine and does no locking.
type Manager struct {
	cfg  Config
	pool *pool.Pool
	cb   Callbacks

	probe   MemoryProbe
	clock   clock.Clock
	collect func()
	logger  *slog.Logger

	samples    []sample
	sampled    bool
	paused     bool
	lastSample time.Time
	currentMB  float64
	level      Level
	aggressive bool
	emergency  bool

	lastGC     time.Time
	baselineMB float64
	gcCount    uint64

	lastCleanup   time.Time
	cleanups      uint64
	lastLeakCheck time.Time
	leaks         []LeakRecord

	tracked *lru.Cache[uuid.UUID, Entry]
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock sets the time source for every cadence.
func WithClock(c clock.Clock) Option { return func(m *Manager) { m.clock = clock.OrSystem(c) } }

// WithMemoryProbe sets the memory source. Without one the manager only runs
// its routine cleanup.
func WithMemoryProbe(p MemoryProbe) Option { return func(m *Manager) { m.probe = p } }

// WithCollector replaces runtime.GC as the forced collection.
func WithCollector(fn func()) Option {
	return func(m *Manager) {
		if fn != nil {
			m.collect = fn
		}
	}
}

// WithCallbacks registers the collaborator callbacks.
func WithCallbacks(cb Callbacks) Option { return func(m *Manager) { m.cb = cb } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager around p. p may be nil.
func NewManager(cfg Config, p *pool.Pool, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracked, err := lru.New[uuid.UUID, Entry](cfg.MaxTracked)
	if err != nil {
		return nil, fmt.Errorf("tracking cache: %w", err)
	}
	m := &Manager{
		cfg:     cfg,
		pool:    p,
		clock:   clock.System{},
		collect: runtime.GC,
		logger:  slog.Default(),
		tracked: tracked,
	}
	for _, o := range opts {
		o(m)
	}
	now := m.clock.Now()
	m.lastGC = now
	m.lastCleanup = now
	m.lastLeakCheck = now
	return m, nil
}

// SetCallbacks replaces the registered callbacks.
func (m *Manager) SetCallbacks(cb Callbacks) { m.cb = cb }

// SetMonitoring turns memory sampling on or off. While off, no levels,
// memory callbacks, forced collections or leak checks happen; routine
// cleanup keeps running. Turning it off clears the current level and modes.
func (m *Manager) SetMonitoring(on bool) {
	if m.paused == !on {
		return
	}
	m.paused = !on
	if m.paused {
		m.level = LevelNormal
		m.aggressive = false
		m.emergency = false
		m.samples = m.samples[:0]
		m.sampled = false
	}
	m.logger.Info("resource.monitoring", "enabled", on)
}

// Monitoring reports whether memory sampling is on.
func (m *Manager) Monitoring() bool { return !m.paused }

// Pool returns the wrapped pool.
func (m *Manager) Pool() *pool.Pool { return m.pool }

// Update runs whichever of sampling, forced collection, cleanup and leak
// detection is due.
func (m *Manager) Update() {
	now := m.clock.Now()
	monitoring := m.probe != nil && !m.paused
	if monitoring && (!m.sampled || now.Sub(m.lastSample) >= m.cfg.SampleInterval) {
		m.takeSample(now)
		m.evaluateMemory(now)
	}
	if now.Sub(m.lastCleanup) >= m.CleanupInterval() {
		m.cleanup(now)
	}
	if monitoring && now.Sub(m.lastLeakCheck) >= m.cfg.LeakCheckInterval {
		m.checkLeak(now)
	}
}

func (m *Manager) takeSample(now time.Time) {
	mb := m.probe.MemoryMB()
	if !m.sampled {
		m.baselineMB = mb
	}
	m.sampled = true
	m.lastSample = now
	m.currentMB = mb
	m.samples = append(m.samples, sample{at: now, mb: mb})
	// One extra sample so the window spans LeakWindowSamples intervals.
	if over := len(m.samples) - (m.cfg.LeakWindowSamples + 1); over > 0 {
		m.samples = slices.Delete(m.samples, 0, over)
	}
}

func (m *Manager) evaluateMemory(now time.Time) {
	mb := m.currentMB

	m.emergency = mb >= m.cfg.EmergencyMB
	switch {
	case mb >= m.cfg.CriticalMB:
		if !m.aggressive {
			m.logger.Warn("resource.aggressive_on", "memory_mb", mb)
		}
		m.aggressive = true
	case mb < m.cfg.WarningMB && m.aggressive:
		m.aggressive = false
		m.logger.Info("resource.aggressive_off", "memory_mb", mb)
	}

	m.setLevel(m.levelFor(mb))

	growth := mb - m.baselineMB
	since := now.Sub(m.lastGC)
	switch {
	case m.emergency:
		m.forceCollect(now, "emergency")
	case since >= m.cfg.GCMinInterval && growth >= m.cfg.GCGrowthMB:
		m.forceCollect(now, "growth")
	case since >= m.cfg.GCMinInterval && mb >= m.cfg.WarningMB:
		m.forceCollect(now, "warning")
	case since >= m.cfg.GCMinInterval && m.aggressive && growth >= m.cfg.AggressiveGCGrowthMB:
		m.forceCollect(now, "aggressive_growth")
	}
}

func (m *Manager) levelFor(mb float64) Level {
	switch {
	case mb >= m.cfg.EmergencyMB:
		return LevelEmergency
	case mb >= m.cfg.CriticalMB:
		return LevelCritical
	case mb >= m.cfg.WarningMB:
		return LevelWarning
	default:
		return LevelNormal
	}
}

func (m *Manager) setLevel(next Level) {
	prev := m.level
	m.level = next
	if next <= prev {
		return
	}
	st := m.Stats()
	switch next {
	case LevelWarning:
		m.logger.Warn("resource.memory_warning", "memory", humanizeMB(st.MemoryMB))
		if m.cb.OnMemoryWarning != nil {
			m.cb.OnMemoryWarning(st)
		}
	case LevelCritical, LevelEmergency:
		m.logger.Warn("resource.memory_critical", "memory", humanizeMB(st.MemoryMB), "level", next.String())
		if m.cb.OnMemoryCritical != nil {
			m.cb.OnMemoryCritical(st)
		}
	}
}

// Collect forces a collection now and resets the growth baseline. Pool and
// frame buffer collection hints are routed here so every forced collection
// is counted in one place.
func (m *Manager) Collect(reason string) { m.forceCollect(m.clock.Now(), reason) }

func (m *Manager) forceCollect(now time.Time, reason string) {
	before := m.currentMB
	m.collect()
	m.gcCount++
	m.lastGC = now
	if m.probe != nil {
		m.baselineMB = m.probe.MemoryMB()
		m.currentMB = m.baselineMB
	}
	m.logger.Info("resource.gc",
		"reason", reason,
		"before", humanizeMB(before),
		"after", humanizeMB(m.currentMB),
	)
}

// CleanupInterval returns the routine cleanup cadence for the current mode.
func (m *Manager) CleanupInterval() time.Duration {
	return m.cfg.cleanupInterval(m.aggressive, m.emergency)
}

// Cleanup runs a routine cleanup pass immediately.
func (m *Manager) Cleanup() CleanupReport { return m.cleanup(m.clock.Now()) }

func (m *Manager) cleanup(now time.Time) CleanupReport {
	rep := CleanupReport{At: now, Interval: m.CleanupInterval(), Emergency: m.emergency}
	if m.pool != nil {
		if m.emergency {
			for _, k := range pool.Kinds {
				rep.PoolShrunk += m.pool.Shrink(k)
			}
		}
		// The pool's own collection, when it issues one, covers the shrinks.
		pr := m.pool.Cleanup()
		rep.PoolRemoved = pr.Total()
		if rep.PoolShrunk > 0 && !pr.Collected {
			m.forceCollect(now, "emergency_shrink")
		}
	}
	rep.ExpiredEntries = m.purgeExpired(now)
	rep.LeaksTrimmed = m.trimLeaks(now)

	m.lastCleanup = now
	m.cleanups++
	m.logger.Debug("resource.cleanup",
		"pool_removed", rep.PoolRemoved,
		"pool_shrunk", rep.PoolShrunk,
		"expired", rep.ExpiredEntries,
		"interval", rep.Interval,
	)
	if m.cb.OnCleanup != nil {
		m.cb.OnCleanup(rep)
	}
	return rep
}

func (m *Manager) trimLeaks(now time.Time) int {
	cut := 0
	for cut < len(m.leaks) && now.Sub(m.leaks[cut].ObservedAt) > m.cfg.LeakHistory {
		cut++
	}
	m.leaks = slices.Delete(m.leaks, 0, cut)
	return cut
}

// checkLeak compares the newest sample against the oldest one still in the
// window. It only reports; nothing is reclaimed.
func (m *Manager) checkLeak(now time.Time) {
	m.lastLeakCheck = now
	if len(m.samples) < 2 {
		return
	}
	oldest, newest := m.samples[0], m.samples[len(m.samples)-1]
	span := newest.at.Sub(oldest.at)
	growth := newest.mb - oldest.mb
	if span < m.cfg.LeakMinSpan || growth < m.cfg.LeakThresholdMB {
		return
	}
	rec := LeakRecord{
		GrowthMB:     growth,
		Span:         span,
		RateMBPerSec: growth / span.Seconds(),
		ObservedAt:   now,
	}
	m.leaks = append(m.leaks, rec)
	m.trimLeaks(now)
	m.logger.Warn("resource.leak_suspected",
		"growth", humanizeMB(growth),
		"span", span,
		"rate_mb_s", rec.RateMBPerSec,
	)
	if m.cb.OnLeak != nil {
		m.cb.OnLeak(rec)
	}
}

// Leaks returns the leak records still inside the history window.
func (m *Manager) Leaks() []LeakRecord { return slices.Clone(m.leaks) }

// Aggressive reports whether aggressive mode is active.
func (m *Manager) Aggressive() bool { return m.aggressive }

// Emergency reports whether the latest sample was in the emergency tier.
func (m *Manager) Emergency() bool { return m.emergency }

// MemoryMB returns the most recent memory reading.
func (m *Manager) MemoryMB() float64 { return m.currentMB }

// Stats is a point-in-time view of a Manager.
type Stats struct {
	MemoryMB        float64        `json:"memory_mb"`
	BaselineMB      float64        `json:"baseline_mb"`
	Level           Level          `json:"level"`
	Aggressive      bool           `json:"aggressive"`
	Emergency       bool           `json:"emergency"`
	Monitoring      bool           `json:"monitoring"`
	CleanupInterval time.Duration  `json:"cleanup_interval"`
	GCCount         uint64         `json:"gc_count"`
	Cleanups        uint64         `json:"cleanups"`
	LastGC          time.Time      `json:"last_gc"`
	LastCleanup     time.Time      `json:"last_cleanup"`
	Leaks           []LeakRecord   `json:"leaks"`
	Tracked         map[string]int `json:"tracked"`
}

// Stats returns the current snapshot.
func (m *Manager) Stats() Stats {
	return Stats{
		MemoryMB:        m.currentMB,
		BaselineMB:      m.baselineMB,
		Level:           m.level,
		Aggressive:      m.aggressive,
		Emergency:       m.emergency,
		Monitoring:      !m.paused,
		CleanupInterval: m.CleanupInterval(),
		GCCount:         m.gcCount,
		Cleanups:        m.cleanups,
		LastGC:          m.lastGC,
		LastCleanup:     m.lastCleanup,
		Leaks:           m.Leaks(),
		Tracked:         m.TrackedCount(),
	}
}

func humanizeMB(mb float64) string {
	if mb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(mb * 1024 * 1024))
}
