package presenter

import (
	"time"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/perf"
	"github.com/soocke/framepipe/ui/model"
)

// StatsView displays the polled pipeline statistics.
type StatsView interface {
	SetStateLabel(text string, state perf.State)
	SetStats(lines []model.StatLine)
	SetSession(session, total time.Duration)
}

// StatsPresenter polls the snapshot surface into the stats model and pushes
// the formatted values to the view.
type StatsPresenter struct {
	source capture.SnapshotSource
	stats  *model.StatsModel
	view   StatsView
	last   perf.State
	shown  bool
}

// NewStatsPresenter returns a new StatsPresenter.
func NewStatsPresenter(source capture.SnapshotSource, stats *model.StatsModel, view StatsView) *StatsPresenter {
	return &StatsPresenter{source: source, stats: stats, view: view}
}

// Tick takes one snapshot and updates the view. The state label is only
// reconfigured when the performance state changes.
func (p *StatsPresenter) Tick() {
	if p == nil || p.source == nil || p.stats == nil || p.view == nil {
		return
	}
	p.stats.OnSnapshot(p.source.Snapshot())
	if st := p.stats.State(); !p.shown || st != p.last {
		p.last, p.shown = st, true
		p.view.SetStateLabel("Performance: "+st.String(), st)
	}
	p.view.SetStats(p.stats.Lines())
	p.view.SetSession(p.stats.Durations())
}
