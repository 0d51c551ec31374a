package debug

import (
	"errors"
	"log/slog"
	"runtime/metrics"
	"sync"
)

const bytesPerMB = 1024 * 1024

var errRSSUnsupported = errors.New("rss not supported on this platform")

// Probe reports current memory use in megabytes.
type Probe interface {
	MemoryMB() float64
}

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// HeapProbe reports live heap object bytes from runtime/metrics.
type HeapProbe struct {
	mu     sync.Mutex
	sample []metrics.Sample
}

// NewHeapProbe returns a heap probe.
func NewHeapProbe() *HeapProbe {
	return &HeapProbe{sample: []metrics.Sample{{Name: heapObjectsMetric}}}
}

func (h *HeapProbe) MemoryMB() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	metrics.Read(h.sample)
	if h.sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return float64(h.sample[0].Value.Uint64()) / bytesPerMB
}

// RSSProbe reports the process resident set size. Where the platform offers
// no reading it falls back to the heap probe and logs that once.
type RSSProbe struct {
	heap   *HeapProbe
	logger *slog.Logger
	once   sync.Once
}

// NewRSSProbe returns an RSS probe.
func NewRSSProbe(logger *slog.Logger) *RSSProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSProbe{heap: NewHeapProbe(), logger: logger}
}

func (r *RSSProbe) MemoryMB() float64 {
	rss, err := readRSS()
	if err != nil {
		r.once.Do(func() {
			r.logger.Warn("memprobe.rss_unavailable", "error", err)
		})
		return r.heap.MemoryMB()
	}
	return float64(rss) / bytesPerMB
}

// NewProbe returns the probe named "heap" or "rss". Unknown names get the
// heap probe.
func NewProbe(name string, logger *slog.Logger) Probe {
	if name == "rss" {
		return NewRSSProbe(logger)
	}
	return NewHeapProbe()
}
