package resource

import (
	"errors"
	"fmt"
	"time"
)

// Resource types with a default TTL.
const (
	TypeFrameBuffer = "frame_buffer"
	TypeTemporary   = "temporary"
)

// ErrInvalidConfig is returned for settings the manager cannot run with.
var ErrInvalidConfig = errors.New("invalid resource manager config")

// Config holds the manager thresholds and cadences. Memory values are MB.
type Config struct {
	SampleInterval time.Duration

	GCMinInterval        time.Duration
	GCGrowthMB           float64
	AggressiveGCGrowthMB float64

	WarningMB   float64
	CriticalMB  float64
	EmergencyMB float64

	CleanupInterval           time.Duration
	AggressiveCleanupInterval time.Duration
	EmergencyCleanupInterval  time.Duration

	LeakCheckInterval time.Duration
	LeakWindowSamples int
	LeakThresholdMB   float64
	LeakMinSpan       time.Duration
	LeakHistory       time.Duration

	// TTLs maps a resource type to its lifetime. Types without an entry
	// never expire.
	TTLs       map[string]time.Duration
	MaxTracked int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SampleInterval:            time.Second,
		GCMinInterval:             10 * time.Second,
		GCGrowthMB:                50,
		AggressiveGCGrowthMB:      20,
		WarningMB:                 150,
		CriticalMB:                300,
		EmergencyMB:               500,
		CleanupInterval:           60 * time.Second,
		AggressiveCleanupInterval: 15 * time.Second,
		EmergencyCleanupInterval:  5 * time.Second,
		LeakCheckInterval:         30 * time.Second,
		LeakWindowSamples:         30,
		LeakThresholdMB:           20,
		LeakMinSpan:               30 * time.Second,
		LeakHistory:               10 * time.Minute,
		TTLs: map[string]time.Duration{
			TypeFrameBuffer: 300 * time.Second,
			TypeTemporary:   60 * time.Second,
		},
		MaxTracked: 4096,
	}
}

// Validate checks ordering of the memory tiers and that every cadence is
// positive.
func (c Config) Validate() error {
	var errs []error
	if !(c.WarningMB > 0 && c.WarningMB < c.CriticalMB && c.CriticalMB < c.EmergencyMB) {
		errs = append(errs, fmt.Errorf("%w: memory tiers must satisfy 0 < warning < critical < emergency", ErrInvalidConfig))
	}
	for name, d := range map[string]time.Duration{
		"sample_interval":             c.SampleInterval,
		"cleanup_interval":            c.CleanupInterval,
		"aggressive_cleanup_interval": c.AggressiveCleanupInterval,
		"emergency_cleanup_interval":  c.EmergencyCleanupInterval,
		"leak_check_interval":         c.LeakCheckInterval,
		"leak_history":                c.LeakHistory,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name))
		}
	}
	if c.GCMinInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: gc_min_interval must not be negative", ErrInvalidConfig))
	}
	if c.LeakWindowSamples < 2 {
		errs = append(errs, fmt.Errorf("%w: leak window needs at least 2 samples", ErrInvalidConfig))
	}
	if c.MaxTracked < 1 {
		errs = append(errs, fmt.Errorf("%w: max_tracked must be positive", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// cleanupInterval returns the cadence for the current mode.
func (c Config) cleanupInterval(aggressive, emergency bool) time.Duration {
	switch {
	case emergency:
		return c.EmergencyCleanupInterval
	case aggressive:
		return c.AggressiveCleanupInterval
	default:
		return c.CleanupInterval
	}
}
