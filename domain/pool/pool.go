// Package pool recycles the short-lived objects of the capture pipeline:
// frames, pixel buffers, metadata bags and scratch buffers.
package pool

import (
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/soocke/framepipe/domain/clock"
)

type kindPool struct {
	cfg         KindConfig
	available   []Object
	inUse       map[Object]struct{}
	lastCleanup time.Time

	created   uint64
	reused    uint64
	misses    uint64
	direct    uint64
	abandoned uint64
	misuse    uint64
	shrinks   uint64
}

// Pool is safe for concurrent use. A nil *Pool allocates directly and
// ignores releases.
type Pool struct {
	mu      sync.Mutex
	enabled bool
	kinds   [kindCount]*kindPool

	clock   clock.Clock
	collect func()
	logger  *slog.Logger
}

// Option customises a Pool.
type Option func(*Pool)

// WithClock sets the time source used for cleanup scheduling.
func WithClock(c clock.Clock) Option { return func(p *Pool) { p.clock = clock.OrSystem(c) } }

// WithCollector replaces the collection hint issued after a shrink.
// The default is runtime.GC.
func WithCollector(fn func()) Option {
	return func(p *Pool) {
		if fn != nil {
			p.collect = fn
		}
	}
}

// WithLogger sets the logger for misuse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New validates cfg and pre-creates InitialSize objects of each kind.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		enabled: cfg.Enabled,
		clock:   clock.System{},
		collect: runtime.GC,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	now := p.clock.Now()
	for _, k := range Kinds {
		p.kinds[k] = &kindPool{
			cfg:         cfg.For(k),
			inUse:       make(map[Object]struct{}),
			lastCleanup: now,
		}
	}
	if p.enabled {
		p.prefillLocked()
	}
	return p, nil
}

func (p *Pool) prefillLocked() {
	for _, k := range Kinds {
		kp := p.kinds[k]
		for len(kp.available) < kp.cfg.InitialSize {
			obj := newObject(k)
			*obj.base() = header{owner: p, state: stateAvailable}
			kp.available = append(kp.available, obj)
			kp.created++
		}
	}
}

// Acquire returns a reset object of kind k. sizeHint sizes byte buffers
// (and the payload capacity of frames); it is ignored for metadata.
//
// Once MaxSize objects of a kind are in use, further acquisitions are
// allocated directly and are not tracked.
func (p *Pool) Acquire(k Kind, sizeHint int) Object {
	if p == nil || !k.valid() {
		obj := newObject(k)
		obj.reset(sizeHint)
		return obj
	}
	p.mu.Lock()
	obj := p.acquireLocked(k)
	p.mu.Unlock()
	obj.reset(sizeHint)
	return obj
}

func (p *Pool) acquireLocked(k Kind) Object {
	kp := p.kinds[k]
	if !p.enabled {
		kp.direct++
		obj := newObject(k)
		*obj.base() = header{owner: p, state: stateDirect}
		return obj
	}
	if n := len(kp.available); n > 0 {
		obj := kp.available[n-1]
		kp.available[n-1] = nil
		kp.available = kp.available[:n-1]
		obj.base().state = stateInUse
		kp.inUse[obj] = struct{}{}
		kp.reused++
		return obj
	}
	kp.misses++
	obj := newObject(k)
	if len(kp.inUse) >= kp.cfg.MaxSize {
		kp.direct++
		*obj.base() = header{owner: p, state: stateDirect}
		return obj
	}
	kp.created++
	*obj.base() = header{owner: p, state: stateInUse}
	kp.inUse[obj] = struct{}{}
	return obj
}

// AcquireFrame returns a reset frame whose payload can hold payloadSize bytes
// without reallocating.
func (p *Pool) AcquireFrame(payloadSize int) *FrameData {
	return p.Acquire(KindFrameData, payloadSize).(*FrameData)
}

// AcquirePixelBuffer returns a zeroed buffer of length n.
func (p *Pool) AcquirePixelBuffer(n int) *PixelBuffer {
	return p.Acquire(KindPixelBuffer, n).(*PixelBuffer)
}

// AcquireMetadata returns an empty metadata bag.
func (p *Pool) AcquireMetadata() *Metadata {
	return p.Acquire(KindMetadata, 0).(*Metadata)
}

// AcquireTempBuffer returns a zeroed scratch buffer of length n.
func (p *Pool) AcquireTempBuffer(n int) *TempBuffer {
	return p.Acquire(KindTempBuffer, n).(*TempBuffer)
}

// Release hands obj back. Objects the pool allocated directly are dropped
// silently; objects it never handed out (or already got back) are logged
// and counted as misuse, and otherwise ignored.
func (p *Pool) Release(obj Object) {
	if p == nil || obj == nil || !obj.Kind().valid() {
		return
	}
	h := obj.base()
	p.mu.Lock()
	kp := p.kinds[obj.Kind()]
	if h.owner == p && h.state == stateDirect {
		p.mu.Unlock()
		return
	}
	if _, ok := kp.inUse[obj]; !ok || h.owner != p {
		kp.misuse++
		p.mu.Unlock()
		p.logger.Warn("pool.release_untracked", "kind", obj.Kind().String(), "foreign", h.owner != p)
		return
	}
	delete(kp.inUse, obj)
	if p.enabled && len(kp.available) < kp.cfg.MaxSize {
		h.state = stateAvailable
		kp.available = append(kp.available, obj)
	} else {
		h.state = stateDirect
		kp.abandoned++
	}
	p.mu.Unlock()
}

// Owns reports whether obj was handed out by p, tracked or not.
func (p *Pool) Owns(obj Object) bool {
	if p == nil || obj == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return obj.base().owner == p
}

// CleanupReport summarises one Cleanup call.
type CleanupReport struct {
	// Removed counts idle objects dropped per kind.
	Removed   map[Kind]int
	Collected bool
}

// Total returns the number of objects dropped across all kinds.
func (r CleanupReport) Total() int {
	n := 0
	for _, v := range r.Removed {
		n += v
	}
	return n
}

// Cleanup shrinks each kind whose cleanup interval has elapsed to
// max(InitialSize, floor(available*ShrinkThreshold)) idle objects. If any
// kind shrank, a single collection hint is issued.
func (p *Pool) Cleanup() CleanupReport {
	rep := CleanupReport{Removed: map[Kind]int{}}
	if p == nil {
		return rep
	}
	p.mu.Lock()
	now := p.clock.Now()
	for _, k := range Kinds {
		kp := p.kinds[k]
		if now.Sub(kp.lastCleanup) < kp.cfg.CleanupInterval {
			continue
		}
		kp.lastCleanup = now
		target := max(kp.cfg.InitialSize, int(math.Floor(float64(len(kp.available))*kp.cfg.ShrinkThreshold)))
		if n := kp.trimLocked(target); n > 0 {
			rep.Removed[k] = n
		}
	}
	p.mu.Unlock()
	if rep.Total() > 0 {
		p.collect()
		rep.Collected = true
	}
	return rep
}

// Shrink drops idle objects of kind k down to InitialSize regardless of the
// cleanup schedule. It returns the number dropped and issues no collection
// hint; callers batching several shrinks collect once themselves.
func (p *Pool) Shrink(k Kind) int {
	if p == nil || !k.valid() {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	kp := p.kinds[k]
	return kp.trimLocked(kp.cfg.InitialSize)
}

func (kp *kindPool) trimLocked(target int) int {
	n := len(kp.available) - target
	if n <= 0 {
		return 0
	}
	for i := target; i < len(kp.available); i++ {
		kp.available[i].base().state = stateDirect
		kp.available[i] = nil
	}
	kp.available = kp.available[:target]
	kp.abandoned += uint64(n)
	kp.shrinks++
	return n
}

// SetEnabled toggles pooling. Disabling abandons every idle and in-use
// object; in-use objects become untracked and their later release is a
// silent no-op. Re-enabling pre-creates InitialSize objects again.
func (p *Pool) SetEnabled(on bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.enabled == on {
		p.mu.Unlock()
		return
	}
	p.enabled = on
	if on {
		p.prefillLocked()
		p.mu.Unlock()
		return
	}
	dropped := 0
	for _, k := range Kinds {
		kp := p.kinds[k]
		dropped += kp.trimLocked(0)
		for obj := range kp.inUse {
			obj.base().state = stateDirect
			kp.abandoned++
			dropped++
		}
		clear(kp.inUse)
	}
	p.mu.Unlock()
	if dropped > 0 {
		p.collect()
	}
}

// Enabled reports whether pooling is on.
func (p *Pool) Enabled() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SuggestedSize returns the advisory size for kind k: its current
// population scaled by GrowthFactor, capped at MaxSize.
func (p *Pool) SuggestedSize(k Kind) int {
	if p == nil || !k.valid() {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	kp := p.kinds[k]
	live := max(len(kp.available)+len(kp.inUse), kp.cfg.InitialSize, 1)
	return min(int(math.Ceil(float64(live)*kp.cfg.GrowthFactor)), kp.cfg.MaxSize)
}

// KindConfig returns the configuration of kind k.
func (p *Pool) KindConfig(k Kind) KindConfig {
	if p == nil || !k.valid() {
		return KindConfig{}
	}
	return p.kinds[k].cfg
}
