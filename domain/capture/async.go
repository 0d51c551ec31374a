package capture

import (
	"context"
	"sync"

	"github.com/soocke/framepipe/domain/pool"
)

type asyncResult struct {
	capture Capture
	err     error
}

// AsyncSource runs a blocking Source on a worker goroutine so the tick loop
// never waits on it. Capture never blocks: it hands back a completed result
// if there is one and keeps exactly one capture in flight.
type AsyncSource struct {
	src  Source
	pool *pool.Pool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight bool
	ready    *asyncResult
	closed   bool
}

// NewAsyncSource wraps src. Pixel buffers of results nobody collected are
// released to p on Close.
func NewAsyncSource(src Source, p *pool.Pool) *AsyncSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncSource{src: src, pool: p, ctx: ctx, cancel: cancel}
}

// Name returns the wrapped source's name.
func (a *AsyncSource) Name() string { return a.src.Name() }

// Capture returns the completed result, if any, and starts the next capture.
// With nothing completed it returns ErrNotReady.
func (a *AsyncSource) Capture(context.Context) (Capture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Capture{}, ErrSourceClosed
	}
	r := a.ready
	a.ready = nil
	if !a.inflight {
		a.inflight = true
		a.wg.Add(1)
		go a.run()
	}
	if r == nil {
		return Capture{}, ErrNotReady
	}
	return r.capture, r.err
}

func (a *AsyncSource) run() {
	defer a.wg.Done()
	c, err := a.src.Capture(a.ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight = false
	if a.closed {
		a.releaseLocked(c)
		return
	}
	a.ready = &asyncResult{capture: c, err: err}
}

// InFlight reports whether a capture is running.
func (a *AsyncSource) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight
}

// Close cancels the in-flight capture, waits for the worker and closes the
// wrapped source.
func (a *AsyncSource) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.ready != nil {
		a.releaseLocked(a.ready.capture)
		a.ready = nil
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	return a.src.Close()
}

func (a *AsyncSource) releaseLocked(c Capture) {
	if c.Buffer != nil {
		a.pool.Release(c.Buffer)
	}
}
