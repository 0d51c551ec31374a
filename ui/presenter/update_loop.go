package presenter

// Loop aggregates feature presenters and drives periodic updates.
//
// It calls Tick/ProcessFrame on the sub-presenters and invokes a
// scheduler callback. The zero value is usable (methods are nil-safe).
type Loop struct {
	Stats    *StatsPresenter
	Preview  *PreviewPresenter
	Alerts   *AlertPresenter
	Schedule func()
}

func NewLoop(stats *StatsPresenter, preview *PreviewPresenter, alerts *AlertPresenter, schedule func()) *Loop {
	return &Loop{Stats: stats, Preview: preview, Alerts: alerts, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	l.Stats.Tick()
	l.Preview.ProcessFrame()
	l.Alerts.Tick()
	if l.Schedule != nil {
		l.Schedule()
	}
}
