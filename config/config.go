package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// Source names accepted in Config.Source.
const (
	SourceScreen  = "screen"
	SourceCamera  = "camera"
	SourcePattern = "pattern"
)

// Memory probe names accepted in Config.MemoryProbe.
const (
	ProbeHeap = "heap"
	ProbeRSS  = "rss"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// PoolKind configures one pooled object kind.
type PoolKind struct {
	InitialSize        int     `json:"initial_size" yaml:"initial_size"`
	MaxSize            int     `json:"max_size" yaml:"max_size"`
	GrowthFactor       float64 `json:"growth_factor" yaml:"growth_factor"`
	ShrinkThreshold    float64 `json:"shrink_threshold" yaml:"shrink_threshold"`
	CleanupIntervalSec float64 `json:"cleanup_interval_s" yaml:"cleanup_interval_s"`
}

// Pools holds the per-kind pool settings.
type Pools struct {
	FrameData   PoolKind `json:"frame_data" yaml:"frame_data"`
	PixelBuffer PoolKind `json:"pixel_buffer" yaml:"pixel_buffer"`
	Metadata    PoolKind `json:"metadata" yaml:"metadata"`
	TempBuffer  PoolKind `json:"temp_buffer" yaml:"temp_buffer"`
}

// Config holds runtime configuration for the capture pipeline.
// Fields may be loaded from a JSON or YAML file and overridden by
// command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Capture source
	Source string `json:"source" yaml:"source"`
	Format string `json:"format" yaml:"format"`
	// Screen region; zero width or height captures the full screen.
	SelectionX int `json:"selection_x" yaml:"selection_x"`
	SelectionY int `json:"selection_y" yaml:"selection_y"`
	SelectionW int `json:"selection_w" yaml:"selection_w"`
	SelectionH int `json:"selection_h" yaml:"selection_h"`

	CameraDevice  string `json:"camera_device" yaml:"camera_device"`
	CameraWidth   int    `json:"camera_width" yaml:"camera_width"`
	CameraHeight  int    `json:"camera_height" yaml:"camera_height"`
	PatternWidth  int    `json:"pattern_width" yaml:"pattern_width"`
	PatternHeight int    `json:"pattern_height" yaml:"pattern_height"`

	// Pipeline
	TargetFPS        float64 `json:"target_fps" yaml:"target_fps"`
	TickHz           float64 `json:"tick_hz" yaml:"tick_hz"`
	BufferCapacity   int     `json:"buffer_capacity" yaml:"buffer_capacity"`
	Pooling          bool    `json:"pooling" yaml:"pooling"`
	FrameDrop        bool    `json:"frame_drop" yaml:"frame_drop"`
	MemoryMonitoring bool    `json:"memory_monitoring" yaml:"memory_monitoring"`
	MemoryProbe      string  `json:"memory_probe" yaml:"memory_probe"`
	AsyncCapture     bool    `json:"async_capture" yaml:"async_capture"`
	Pools            Pools   `json:"pools" yaml:"pools"`

	// Snapshot feed; empty address disables it.
	FeedAddr       string `json:"feed_addr" yaml:"feed_addr"`
	FeedIntervalMS int    `json:"feed_interval_ms" yaml:"feed_interval_ms"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	pc := pool.DefaultConfig()
	return &Config{
		Debug:            false,
		LogLevel:         "info",
		Source:           SourceScreen,
		Format:           frame.RGBA.String(),
		PatternWidth:     320,
		PatternHeight:    240,
		TargetFPS:        30,
		TickHz:           0,
		BufferCapacity:   3,
		Pooling:          pc.Enabled,
		FrameDrop:        true,
		MemoryMonitoring: true,
		MemoryProbe:      ProbeHeap,
		AsyncCapture:     false,
		Pools: Pools{
			FrameData:   fromKind(pc.FrameData),
			PixelBuffer: fromKind(pc.PixelBuffer),
			Metadata:    fromKind(pc.Metadata),
			TempBuffer:  fromKind(pc.TempBuffer),
		},
		FeedIntervalMS: 500,
	}
}

func fromKind(k pool.KindConfig) PoolKind {
	return PoolKind{
		InitialSize:        k.InitialSize,
		MaxSize:            k.MaxSize,
		GrowthFactor:       k.GrowthFactor,
		ShrinkThreshold:    k.ShrinkThreshold,
		CleanupIntervalSec: k.CleanupInterval.Seconds(),
	}
}

func (k PoolKind) toKind() pool.KindConfig {
	return pool.KindConfig{
		InitialSize:     k.InitialSize,
		MaxSize:         k.MaxSize,
		GrowthFactor:    k.GrowthFactor,
		ShrinkThreshold: k.ShrinkThreshold,
		CleanupInterval: time.Duration(k.CleanupIntervalSec * float64(time.Second)),
	}
}

// PoolConfig returns the object pool configuration.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		Enabled:     c.Pooling,
		FrameData:   c.Pools.FrameData.toKind(),
		PixelBuffer: c.Pools.PixelBuffer.toKind(),
		Metadata:    c.Pools.Metadata.toKind(),
		TempBuffer:  c.Pools.TempBuffer.toKind(),
	}
}

// Region returns the configured screen region, empty for the full screen.
func (c *Config) Region() image.Rectangle {
	if c.SelectionW <= 0 || c.SelectionH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.SelectionX, c.SelectionY, c.SelectionX+c.SelectionW, c.SelectionY+c.SelectionH)
}

// PixelFormat returns the parsed output pixel format.
func (c *Config) PixelFormat() (frame.PixelFormat, error) { return frame.ParsePixelFormat(c.Format) }

// Level returns the slog level named by LogLevel; Debug forces debug.
func (c *Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// FeedInterval returns the snapshot feed push interval.
func (c *Config) FeedInterval() time.Duration {
	return time.Duration(c.FeedIntervalMS) * time.Millisecond
}

// Validate reports every invalid field. Values are never adjusted.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	switch c.Source {
	case SourceScreen, SourceCamera, SourcePattern:
	default:
		bad("source %q", c.Source)
	}
	if _, err := c.PixelFormat(); err != nil {
		bad("format %q", c.Format)
	}
	if c.SelectionW < 0 || c.SelectionH < 0 {
		bad("selection size %dx%d", c.SelectionW, c.SelectionH)
	}
	if c.CameraWidth < 0 || c.CameraHeight < 0 {
		bad("camera size %dx%d", c.CameraWidth, c.CameraHeight)
	}
	if c.Source == SourcePattern && (c.PatternWidth <= 0 || c.PatternHeight <= 0) {
		bad("pattern size %dx%d", c.PatternWidth, c.PatternHeight)
	}
	if !(c.TargetFPS > 0) {
		bad("target_fps %v", c.TargetFPS)
	}
	if c.TickHz < 0 {
		bad("tick_hz %v", c.TickHz)
	}
	if c.BufferCapacity <= 0 {
		bad("buffer_capacity %d", c.BufferCapacity)
	}
	switch c.MemoryProbe {
	case ProbeHeap, ProbeRSS:
	default:
		bad("memory_probe %q", c.MemoryProbe)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		bad("log_level %q", c.LogLevel)
	}
	if c.FeedAddr != "" && c.FeedIntervalMS <= 0 {
		bad("feed_interval_ms %d", c.FeedIntervalMS)
	}
	if err := c.PoolConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: pools: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("framepipe", "config.json"))
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads configuration from path, as YAML for .yaml/.yml files and JSON
// otherwise. A missing file yields DefaultConfig(). On a decode or
// validation error the partially loaded config is returned with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save validates the configuration and writes it to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
