package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/soocke/framepipe/domain/clock"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/framebuffer"
	"github.com/soocke/framepipe/domain/perf"
	"github.com/soocke/framepipe/domain/pool"
	"github.com/soocke/framepipe/domain/resource"
)

const captureStatsLogInterval = 5 * time.Second

// MemoryProbe reports current memory use in megabytes.
type MemoryProbe interface {
	MemoryMB() float64
}

// Callbacks are the collaborator notifications. They run on the tick
// goroutine after the tick's state changes are complete, in the order the
// events occurred, and must not block.
type Callbacks struct {
	OnPerformanceWarning  func(perf.Stats)
	OnPerformanceCritical func(perf.Stats)
	OnDropStart           func(perf.Stats)
	OnDropStop            func(perf.Stats)
	OnMemoryWarning       func(resource.Stats)
	OnMemoryCritical      func(resource.Stats)
	OnLeak                func(resource.LeakRecord)
	OnCleanup             func(resource.CleanupReport)
	OnError               func(error)
}

// Options configures a Service.
type Options struct {
	TargetFPS float64
	// TickHz is the host loop rate. Zero ticks at TargetFPS.
	TickHz         float64
	BufferCapacity int
	// AsyncCapture runs the source on a worker goroutine.
	AsyncCapture bool

	Pool     pool.Config
	Perf     perf.Config
	Resource resource.Config

	MemoryProbe MemoryProbe
	Clock       clock.Clock
	Logger      *slog.Logger
	Callbacks   Callbacks
}

// DefaultOptions returns a 30 fps pipeline with a three-frame buffer.
func DefaultOptions() Options {
	return Options{
		TargetFPS:      30,
		BufferCapacity: framebuffer.DefaultCapacity,
		Pool:           pool.DefaultConfig(),
		Perf:           perf.DefaultConfig(),
		Resource:       resource.DefaultConfig(),
	}
}

// Snapshot is the polled observability surface of a running pipeline.
type Snapshot struct {
	SessionID       uuid.UUID         `json:"session_id"`
	Source          string            `json:"source"`
	Running         bool              `json:"running"`
	Paused          bool              `json:"paused"`
	TakenAt         time.Time         `json:"taken_at"`
	SessionDuration time.Duration     `json:"session_duration"`
	Perf            perf.Stats        `json:"perf"`
	Capture         CaptureStats      `json:"capture"`
	Buffer          framebuffer.Stats `json:"buffer"`
	Pool            pool.Stats        `json:"pool"`
	Resources       resource.Stats    `json:"resources"`
}

// Service owns the pipeline components and drives them from a single tick
// goroutine. All methods are safe for concurrent use. Use NewService to
// construct an instance.
type Service struct {
	mu        sync.Mutex
	source    Source
	pool      *pool.Pool
	buffer    *framebuffer.Buffer
	monitor   *perf.Monitor
	resources *resource.Manager
	ctrl      *Controller

	tickHz      float64
	followFPS   bool
	lastTick    time.Time
	bufferEntry uuid.UUID
	sessionID   uuid.UUID
	started     time.Time
	queued      []func()
	cb          Callbacks

	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	tickRate chan time.Duration

	clock  clock.Clock
	logger *slog.Logger
}

// SourceFunc opens a source that draws its pixel buffers from p.
type SourceFunc func(p *pool.Pool) (Source, error)

// NewService builds the pipeline and opens its source with open. With
// AsyncCapture set, the source is wrapped in an AsyncSource.
func NewService(open SourceFunc, opts Options) (*Service, error) {
	if open == nil {
		return nil, fmt.Errorf("capture service: nil source opener")
	}
	if !(opts.TargetFPS > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFPS, opts.TargetFPS)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		tickHz:    opts.TickHz,
		followFPS: opts.TickHz <= 0,
		sessionID: uuid.New(),
		cb:        opts.Callbacks,
		tickRate:  make(chan time.Duration, 1),
		clock:     clock.OrSystem(opts.Clock),
		logger:    logger,
	}
	if s.followFPS {
		s.tickHz = opts.TargetFPS
	}

	var err error
	// Collection hints from the pool and the buffer are counted by the
	// resource manager, which is built after them.
	collect := func(reason string) func() {
		return func() {
			if s.resources != nil {
				s.resources.Collect(reason)
			}
		}
	}
	s.pool, err = pool.New(opts.Pool,
		pool.WithClock(s.clock),
		pool.WithCollector(collect("pool_cleanup")),
		pool.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	s.buffer, err = framebuffer.New(opts.BufferCapacity, s.pool,
		framebuffer.WithClock(s.clock),
		framebuffer.WithCollector(collect("buffer_clear")),
		framebuffer.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	s.buffer.SetPooling(opts.Pool.Enabled)

	perfCfg := opts.Perf
	perfCfg.TargetFPS = opts.TargetFPS
	perfOpts := []perf.Option{
		perf.WithClock(s.clock),
		perf.WithLogger(logger),
		perf.WithCallbacks(s.perfCallbacks()),
	}
	resOpts := []resource.Option{
		resource.WithClock(s.clock),
		resource.WithLogger(logger),
		resource.WithCallbacks(s.resourceCallbacks()),
	}
	if opts.MemoryProbe != nil {
		perfOpts = append(perfOpts, perf.WithMemoryProbe(opts.MemoryProbe))
		resOpts = append(resOpts, resource.WithMemoryProbe(opts.MemoryProbe))
	}
	if s.monitor, err = perf.NewMonitor(perfCfg, perfOpts...); err != nil {
		return nil, err
	}
	if s.resources, err = resource.NewManager(opts.Resource, s.pool, resOpts...); err != nil {
		return nil, err
	}
	s.resources.SetMonitoring(perfCfg.MemoryMonitoring)

	src, err := open(s.pool)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	s.source = src
	if opts.AsyncCapture {
		s.source = NewAsyncSource(src, s.pool)
	}
	s.ctrl, err = NewController(s.source, s.buffer, s.monitor, opts.TargetFPS,
		WithPool(s.pool),
		WithTracker(s.resources),
		WithErrorHandler(s.queueError),
		WithControllerClock(s.clock),
		WithControllerLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	s.trackBuffer()
	s.started = s.clock.Now()
	s.lastTick = s.started
	return s, nil
}

func (s *Service) perfCallbacks() perf.Callbacks {
	return perf.Callbacks{
		OnWarning:   func(st perf.Stats) { enqueue(s, s.cb.OnPerformanceWarning, st) },
		OnCritical:  func(st perf.Stats) { enqueue(s, s.cb.OnPerformanceCritical, st) },
		OnDropStart: func(st perf.Stats) { enqueue(s, s.cb.OnDropStart, st) },
		OnDropStop:  func(st perf.Stats) { enqueue(s, s.cb.OnDropStop, st) },
	}
}

func (s *Service) resourceCallbacks() resource.Callbacks {
	return resource.Callbacks{
		OnMemoryWarning:  func(st resource.Stats) { enqueue(s, s.cb.OnMemoryWarning, st) },
		OnMemoryCritical: func(st resource.Stats) { enqueue(s, s.cb.OnMemoryCritical, st) },
		OnLeak:           func(r resource.LeakRecord) { enqueue(s, s.cb.OnLeak, r) },
		OnCleanup:        func(r resource.CleanupReport) { enqueue(s, s.cb.OnCleanup, r) },
	}
}

// enqueue defers fn(v) until s.mu is released. Callers hold s.mu.
func enqueue[T any](s *Service, fn func(T), v T) {
	if fn == nil {
		return
	}
	s.queued = append(s.queued, func() { fn(v) })
}

func (s *Service) queueError(err error) { enqueue(s, s.cb.OnError, err) }

// unlockAndDispatch releases s.mu and runs the callbacks queued while it was
// held.
func (s *Service) unlockAndDispatch() {
	q := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, fn := range q {
		fn()
	}
}

func (s *Service) trackBuffer() {
	if s.bufferEntry != uuid.Nil {
		s.resources.Untrack(s.bufferEntry)
	}
	s.bufferEntry = s.resources.Track(resource.TypeFrameBuffer, map[string]any{
		"capacity": s.buffer.Capacity(),
	})
}

// Start launches the tick goroutine. The first capture is due immediately.
func (s *Service) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	now := s.clock.Now()
	s.ctrl.Start(now)
	s.lastTick = now
	s.cancel = cancel
	s.done = make(chan struct{})
	hz := s.tickHz
	done := s.done
	s.mu.Unlock()

	s.logger.Info("capture.start", "source", s.source.Name(), "session", s.sessionID, "tick_hz", hz)
	go s.loop(ctx, done, hzInterval(hz))
	return nil
}

// Stop ends the tick goroutine and waits for it. Frames stay in the buffer.
func (s *Service) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	cancel()
	<-done
	s.logger.Info("capture.stop", "session", s.sessionID)
}

// Close stops the service, closes the source and releases every frame.
func (s *Service) Close() error {
	s.Stop()
	s.mu.Lock()
	s.buffer.Clear()
	s.unlockAndDispatch()
	return s.source.Close()
}

// Running reports whether the tick goroutine is active.
func (s *Service) Running() bool { return s.running.Load() }

func (s *Service) loop(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.tickRate:
			ticker.Reset(d)
		case <-ticker.C:
			s.Update(ctx, s.clock.Now())
		case <-logTicker.C:
			s.logStats()
		}
	}
}

// Update runs one tick at now: performance sampling, the capture decision
// and resource upkeep, then the queued callbacks. The tick goroutine calls
// it; hosts running their own loop may call it instead of Start.
func (s *Service) Update(ctx context.Context, now time.Time) TickResult {
	s.mu.Lock()
	dt := now.Sub(s.lastTick)
	s.lastTick = now
	s.monitor.Update(dt)
	res := s.ctrl.Tick(ctx, now)
	s.resources.Update()
	s.unlockAndDispatch()
	return res
}

// Latest returns a copy of the newest frame.
func (s *Service) Latest() (frame.Frame, bool) { return s.ByAge(0) }

// ByAge returns a copy of the frame k steps older than the newest.
func (s *Service) ByAge(k int) (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.buffer.ByAge(k)
	if !ok {
		return frame.Frame{}, false
	}
	return f.Clone(), true
}

// Snapshot returns the current statistics of every component.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return Snapshot{
		SessionID:       s.sessionID,
		Source:          s.source.Name(),
		Running:         s.running.Load(),
		Paused:          s.ctrl.Paused(),
		TakenAt:         now,
		SessionDuration: now.Sub(s.started),
		Perf:            s.monitor.Stats(),
		Capture:         s.ctrl.Stats(),
		Buffer:          s.buffer.Stats(),
		Pool:            s.pool.Stats(),
		Resources:       s.resources.Stats(),
	}
}

// Pause freezes the capture schedule. Statistics keep updating.
func (s *Service) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Pause()
}

// Resume restarts the schedule one interval from now.
func (s *Service) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Resume(s.clock.Now())
}

// Paused reports whether the schedule is frozen.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Paused()
}

// SetTargetFPS changes the capture rate, and the tick rate when it follows
// the capture rate.
func (s *Service) SetTargetFPS(fps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.monitor.SetTargetFPS(fps); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	if err := s.ctrl.SetTargetFPS(fps); err != nil {
		return err
	}
	if s.followFPS {
		s.tickHz = fps
		select {
		case <-s.tickRate:
		default:
		}
		s.tickRate <- hzInterval(fps)
	}
	s.logger.Info("capture.target_fps", "fps", fps)
	return nil
}

// SetFrameDropEnabled turns adaptive frame dropping on or off.
func (s *Service) SetFrameDropEnabled(on bool) {
	s.mu.Lock()
	s.monitor.SetFrameDropEnabled(on)
	s.unlockAndDispatch()
}

// SetMemoryMonitoring turns memory sampling on or off in both the
// performance monitor and the resource manager.
func (s *Service) SetMemoryMonitoring(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor.SetMemoryMonitoring(on)
	s.resources.SetMonitoring(on)
}

// SetPooling turns object pooling on or off. Turning it off abandons every
// pooled object.
func (s *Service) SetPooling(on bool) {
	s.mu.Lock()
	s.pool.SetEnabled(on)
	s.buffer.SetPooling(on)
	s.unlockAndDispatch()
}

// ResizeBuffer replaces the frame buffer capacity. Held frames are dropped.
func (s *Service) ResizeBuffer(capacity int) error {
	s.mu.Lock()
	if err := s.buffer.Resize(capacity); err != nil {
		s.mu.Unlock()
		return err
	}
	s.trackBuffer()
	s.unlockAndDispatch()
	return nil
}

// Cleanup runs a resource cleanup pass now.
func (s *Service) Cleanup() resource.CleanupReport {
	s.mu.Lock()
	rep := s.resources.Cleanup()
	s.unlockAndDispatch()
	return rep
}

func (s *Service) logStats() {
	snap := s.Snapshot()
	s.logger.Info("capture.stats",
		"captures", snap.Capture.Captures,
		"skipped", snap.Perf.FramesSkipped,
		"dropped", snap.Perf.FramesDropped,
		"failures", snap.Capture.Failures,
		"fps", fmt.Sprintf("%.1f", snap.Perf.AverageFPS),
		"state", snap.Perf.State.String(),
		"avg_capture", snap.Capture.AvgCapture,
		"age", snap.Capture.LatestFrameAge,
		"buffer", humanize.IBytes(uint64(max(snap.Buffer.MemoryBytes, 0))),
		"memory_mb", fmt.Sprintf("%.1f", snap.Resources.MemoryMB),
	)
}

func hzInterval(hz float64) time.Duration {
	if !(hz > 0) {
		return time.Second
	}
	return max(time.Duration(float64(time.Second)/hz), time.Millisecond)
}
