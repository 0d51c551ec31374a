package pool

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for pool configurations that cannot be honoured.
var ErrInvalidConfig = errors.New("invalid pool config")

// KindConfig configures one kind. GrowthFactor is advice for callers sizing
// their own batches (see SuggestedSize); the pool never grows on its own.
type KindConfig struct {
	InitialSize     int
	MaxSize         int
	GrowthFactor    float64
	ShrinkThreshold float64
	CleanupInterval time.Duration
}

// Validate rejects impossible sizes and ratios.
func (c KindConfig) Validate() error {
	switch {
	case c.InitialSize < 0:
		return fmt.Errorf("%w: initial_size %d < 0", ErrInvalidConfig, c.InitialSize)
	case c.MaxSize < 1:
		return fmt.Errorf("%w: max_size %d < 1", ErrInvalidConfig, c.MaxSize)
	case c.InitialSize > c.MaxSize:
		return fmt.Errorf("%w: initial_size %d > max_size %d", ErrInvalidConfig, c.InitialSize, c.MaxSize)
	case c.GrowthFactor < 1:
		return fmt.Errorf("%w: growth_factor %.2f < 1", ErrInvalidConfig, c.GrowthFactor)
	case c.ShrinkThreshold <= 0 || c.ShrinkThreshold > 1:
		return fmt.Errorf("%w: shrink_threshold %.2f outside (0,1]", ErrInvalidConfig, c.ShrinkThreshold)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("%w: cleanup_interval %v <= 0", ErrInvalidConfig, c.CleanupInterval)
	}
	return nil
}

// Config holds the per-kind configurations and the global pooling switch.
type Config struct {
	Enabled     bool
	FrameData   KindConfig
	PixelBuffer KindConfig
	Metadata    KindConfig
	TempBuffer  KindConfig
}

// DefaultConfig returns pooling enabled with conservative per-kind sizes.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		FrameData: KindConfig{
			InitialSize: 3, MaxSize: 10, GrowthFactor: 1.5, ShrinkThreshold: 0.5, CleanupInterval: 30 * time.Second,
		},
		PixelBuffer: KindConfig{
			InitialSize: 2, MaxSize: 8, GrowthFactor: 1.5, ShrinkThreshold: 0.5, CleanupInterval: 30 * time.Second,
		},
		Metadata: KindConfig{
			InitialSize: 5, MaxSize: 20, GrowthFactor: 2, ShrinkThreshold: 0.5, CleanupInterval: 60 * time.Second,
		},
		TempBuffer: KindConfig{
			InitialSize: 2, MaxSize: 6, GrowthFactor: 1.5, ShrinkThreshold: 0.5, CleanupInterval: 15 * time.Second,
		},
	}
}

// For returns the configuration of kind k.
func (c Config) For(k Kind) KindConfig {
	switch k {
	case KindFrameData:
		return c.FrameData
	case KindPixelBuffer:
		return c.PixelBuffer
	case KindMetadata:
		return c.Metadata
	default:
		return c.TempBuffer
	}
}

// Validate checks every kind and reports all failures together.
func (c Config) Validate() error {
	var errs []error
	for _, k := range Kinds {
		if err := c.For(k).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
