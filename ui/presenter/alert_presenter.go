package presenter

import (
	"fmt"
	"sync"
	"time"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/perf"
	"github.com/soocke/framepipe/domain/resource"
)

const maxPendingAlerts = 32

// AlertView shows pipeline notifications.
type AlertView interface {
	AppendAlert(text string)
}

// AlertPresenter receives service callbacks on the tick goroutine and hands
// them to the view on the UI thread. Only the newest maxPendingAlerts are
// kept between ticks.
type AlertPresenter struct {
	mu      sync.Mutex
	pending []string
	view    AlertView
	now     func() time.Time
}

// NewAlertPresenter returns a presenter writing to view.
func NewAlertPresenter(view AlertView) *AlertPresenter {
	return &AlertPresenter{view: view, now: time.Now}
}

// Callbacks returns service callbacks feeding this presenter.
func (p *AlertPresenter) Callbacks() capture.Callbacks {
	return capture.Callbacks{
		OnPerformanceWarning: func(s perf.Stats) {
			p.push("performance warning: %.1f fps, %.1f ms", s.AverageFPS, s.AverageFrameTimeMS)
		},
		OnPerformanceCritical: func(s perf.Stats) {
			p.push("performance critical: %.1f fps, %.1f ms", s.AverageFPS, s.AverageFrameTimeMS)
		},
		OnDropStart: func(s perf.Stats) { p.push("frame dropping started at %.1f fps", s.CurrentFPS) },
		OnDropStop:  func(s perf.Stats) { p.push("frame dropping stopped at %.1f fps", s.CurrentFPS) },
		OnMemoryWarning: func(s resource.Stats) {
			p.push("memory warning: %.1f MB", s.MemoryMB)
		},
		OnMemoryCritical: func(s resource.Stats) {
			p.push("memory critical: %.1f MB", s.MemoryMB)
		},
		OnLeak: func(l resource.LeakRecord) {
			p.push("possible leak: +%.1f MB over %s", l.GrowthMB, l.Span.Round(time.Second))
		},
		OnCleanup: func(r resource.CleanupReport) {
			if r.Emergency {
				p.push("emergency cleanup: %d pooled objects released", r.PoolRemoved+r.PoolShrunk)
			}
		},
		OnError: func(err error) { p.push("capture error: %v", err) },
	}
}

func (p *AlertPresenter) push(format string, args ...any) {
	msg := p.now().Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, msg)
	if over := len(p.pending) - maxPendingAlerts; over > 0 {
		p.pending = append(p.pending[:0], p.pending[over:]...)
	}
}

// Tick flushes pending alerts to the view in arrival order.
func (p *AlertPresenter) Tick() {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, msg := range pending {
		p.view.AppendAlert(msg)
	}
}
