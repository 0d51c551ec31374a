package presenter

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/framepipe/config"
)

// RuntimeControls are the settings a running pipeline accepts without a
// restart.
type RuntimeControls interface {
	SetTargetFPS(fps float64) error
	SetFrameDropEnabled(on bool)
	SetMemoryMonitoring(on bool)
	SetPooling(on bool)
	ResizeBuffer(capacity int) error
}

// ConfigField is one editable row of the config panel. Runtime fields stay
// editable while capturing.
type ConfigField struct {
	ID      string
	Label   string
	Value   string
	Runtime bool
}

// ConfigPresenter parses config panel input, applies runtime settings to the
// pipeline and persists the result.
type ConfigPresenter struct {
	cfg      *config.Config
	path     string
	controls RuntimeControls
	logger   *slog.Logger
}

// NewConfigPresenter binds cfg. An empty path skips persisting.
func NewConfigPresenter(cfg *config.Config, path string, controls RuntimeControls, logger *slog.Logger) *ConfigPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigPresenter{cfg: cfg, path: path, controls: controls, logger: logger}
}

// Fields returns the rows to display with their current values.
func (p *ConfigPresenter) Fields() []ConfigField {
	c := p.cfg
	return []ConfigField{
		{"source", "Source (screen/camera/pattern)", c.Source, false},
		{"format", "Pixel Format (RGBA/RGB/GRAY)", c.Format, false},
		{"camera_device", "Camera Device", c.CameraDevice, false},
		{"target_fps", "Target FPS", strconv.FormatFloat(c.TargetFPS, 'f', -1, 64), true},
		{"tick_hz", "Tick Hz (0 = target fps)", strconv.FormatFloat(c.TickHz, 'f', -1, 64), false},
		{"buffer_capacity", "Buffer Capacity", strconv.Itoa(c.BufferCapacity), true},
		{"pooling", "Pooling (true/false)", strconv.FormatBool(c.Pooling), true},
		{"frame_drop", "Frame Drop (true/false)", strconv.FormatBool(c.FrameDrop), true},
		{"memory_monitoring", "Memory Monitoring (true/false)", strconv.FormatBool(c.MemoryMonitoring), true},
		{"memory_probe", "Memory Probe (heap/rss)", c.MemoryProbe, false},
		{"async_capture", "Async Capture (true/false)", strconv.FormatBool(c.AsyncCapture), false},
		{"feed_addr", "Feed Address", c.FeedAddr, false},
	}
}

// Apply parses values keyed by field ID into the config. Nothing changes
// unless every value parses and the result validates. It reports whether a
// changed setting only takes effect after a restart.
func (p *ConfigPresenter) Apply(values map[string]string) (restart bool, err error) {
	next := *p.cfg
	var errs []error
	str := func(id string, dst *string) {
		if v, ok := values[id]; ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(id string, dst *float64) {
		if v, ok := values[id]; ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", id, v))
				return
			}
			*dst = f
		}
	}
	integer := func(id string, dst *int) {
		if v, ok := values[id]; ok {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", id, v))
				return
			}
			*dst = i
		}
	}
	boolean := func(id string, dst *bool) {
		if v, ok := values[id]; ok {
			b, ok := parseBoolLoose(v)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", id, v))
				return
			}
			*dst = b
		}
	}
	str("source", &next.Source)
	str("format", &next.Format)
	str("camera_device", &next.CameraDevice)
	num("target_fps", &next.TargetFPS)
	num("tick_hz", &next.TickHz)
	integer("buffer_capacity", &next.BufferCapacity)
	boolean("pooling", &next.Pooling)
	boolean("frame_drop", &next.FrameDrop)
	boolean("memory_monitoring", &next.MemoryMonitoring)
	str("memory_probe", &next.MemoryProbe)
	boolean("async_capture", &next.AsyncCapture)
	str("feed_addr", &next.FeedAddr)
	if err := errors.Join(errs...); err != nil {
		return false, err
	}
	if err := next.Validate(); err != nil {
		return false, err
	}

	prev := *p.cfg
	if p.controls != nil {
		if next.TargetFPS != prev.TargetFPS {
			if err := p.controls.SetTargetFPS(next.TargetFPS); err != nil {
				return false, err
			}
		}
		if next.BufferCapacity != prev.BufferCapacity {
			if err := p.controls.ResizeBuffer(next.BufferCapacity); err != nil {
				return false, err
			}
		}
		if next.Pooling != prev.Pooling {
			p.controls.SetPooling(next.Pooling)
		}
		if next.FrameDrop != prev.FrameDrop {
			p.controls.SetFrameDropEnabled(next.FrameDrop)
		}
		if next.MemoryMonitoring != prev.MemoryMonitoring {
			p.controls.SetMemoryMonitoring(next.MemoryMonitoring)
		}
	}
	restart = next.Source != prev.Source || next.Format != prev.Format ||
		next.CameraDevice != prev.CameraDevice || next.TickHz != prev.TickHz ||
		next.MemoryProbe != prev.MemoryProbe || next.AsyncCapture != prev.AsyncCapture ||
		next.FeedAddr != prev.FeedAddr

	*p.cfg = next
	if p.path != "" {
		if err := p.cfg.Save(p.path); err != nil {
			p.logger.Error("config save failed", "error", err)
			return restart, err
		}
		p.logger.Info("config saved", "path", p.path, "restart_required", restart)
	}
	return restart, nil
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
