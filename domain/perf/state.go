package perf

import (
	"fmt"
	"time"
)

// State classifies current pipeline performance.
type State uint8

const (
	Good State = iota
	Warning
	Critical
)

func (s State) String() string {
	switch s {
	case Good:
		return "good"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Thresholds are the classifier limits. Only the target frame rate is
// adjustable at runtime; these stay fixed for the life of a Monitor.
type Thresholds struct {
	CriticalFPS       float64
	CriticalFrameTime time.Duration
	CriticalMemoryMB  float64

	// WarningFPSRatio is applied to the target frame rate.
	WarningFPSRatio  float64
	WarningFrameTime time.Duration
	WarningMemoryMB  float64
}

// DefaultThresholds returns the standard classifier limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalFPS:       15,
		CriticalFrameTime: 100 * time.Millisecond,
		CriticalMemoryMB:  200,
		WarningFPSRatio:   0.9,
		WarningFrameTime:  50 * time.Millisecond,
		WarningMemoryMB:   100,
	}
}

// Classify returns the state for one set of readings.
func (t Thresholds) Classify(fps float64, frameTime time.Duration, memoryMB, targetFPS float64) State {
	switch {
	case fps < t.CriticalFPS || frameTime > t.CriticalFrameTime || memoryMB > t.CriticalMemoryMB:
		return Critical
	case fps < targetFPS*t.WarningFPSRatio || frameTime > t.WarningFrameTime || memoryMB > t.WarningMemoryMB:
		return Warning
	default:
		return Good
	}
}

// slow reports whether a single frame counts toward the drop hysteresis.
func (t Thresholds) slow(fps float64, frameTime time.Duration, targetFPS float64) bool {
	return frameTime > t.WarningFrameTime || fps < targetFPS*t.WarningFPSRatio
}
