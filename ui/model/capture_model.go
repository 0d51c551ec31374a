package model

import (
	"sync/atomic"
)

// CaptureModel tracks whether capture is enabled and whether it is paused.
// The zero value is disabled, unpaused and usable. Concurrency-safe because
// Tk callbacks and the service callbacks may race.
type CaptureModel struct {
	enabled atomic.Bool
	paused  atomic.Bool
}

// Enabled reports whether capture is currently enabled.
func (m *CaptureModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag. Disabling also clears the pause.
func (m *CaptureModel) SetEnabled(b bool) {
	if m == nil {
		return
	}
	m.enabled.Store(b)
	if !b {
		m.paused.Store(false)
	}
}

// Paused reports whether an enabled capture is paused.
func (m *CaptureModel) Paused() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load() && m.paused.Load()
}

// SetPaused stores the pause flag; it is ignored while disabled.
func (m *CaptureModel) SetPaused(b bool) {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.paused.Store(b)
}

// Status returns "off", "paused" or "capturing".
func (m *CaptureModel) Status() string {
	switch {
	case !m.Enabled():
		return "off"
	case m.Paused():
		return "paused"
	default:
		return "capturing"
	}
}
