package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/framepipe/domain/perf"
	"github.com/soocke/framepipe/ui/model"
	"github.com/soocke/framepipe/ui/presenter"
	"github.com/soocke/framepipe/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews and implements the presenter view contracts.
type RootView struct {
	logger *slog.Logger

	// Subviews
	Stats       StatsPanel
	ConfigPanel ConfigPanel
	CapturePrev CapturePreview
	Alerts      AlertLog

	// Widgets
	StateLabel  *LabelWidget
	StatusLabel *LabelWidget
	pauseBtn    *ButtonWidget
}

// Handlers are the user actions wired by the application.
type Handlers struct {
	ToggleCapture func()
	TogglePause   func()
	SelectRegion  func()
	Cleanup       func()
	ToggleDark    func()
	Exit          func()
	ApplyConfig   func(values map[string]string)
}

// Compile-time checks against the presenter contracts.
var (
	_ presenter.CaptureView = (*RootView)(nil)
	_ presenter.StatsView   = (*RootView)(nil)
	_ presenter.PreviewView = (*RootView)(nil)
	_ presenter.AlertView   = (*RootView)(nil)
)

func NewRootView(logger *slog.Logger) *RootView {
	return &RootView{logger: logger}
}

// Build constructs the layout. fields are the config panel rows.
func (rv *RootView) Build(fields []presenter.ConfigField, h Handlers) {
	if rv == nil {
		return
	}
	// Row 0: state label, capture status, buttons frame
	rv.StateLabel = Label(Txt("Performance: <none>"), Borderwidth(1), Relief("ridge"), Foreground("white"), Background(theme.StateColor(perf.Good)))
	Grid(rv.StateLabel, Row(0), Column(0), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.StatusLabel = Label(Txt("Capture: off"), Borderwidth(1), Relief("ridge"))
	Grid(rv.StatusLabel, Row(0), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(2), Columnspan(2), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	buttons := []struct {
		text string
		fn   func()
	}{
		{"Toggle Capture", h.ToggleCapture},
		{"Pause / Resume", h.TogglePause},
		{"Capture Region", h.SelectRegion},
		{"Cleanup Now", h.Cleanup},
		{"Dark Mode", h.ToggleDark},
		{"Exit", h.Exit},
	}
	for i, b := range buttons {
		if b.fn == nil {
			continue
		}
		btn := Button(Txt(b.text), Command(b.fn))
		Grid(btn, In(btnFrame), Row(i/3), Column(i%3), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
		if b.text == "Pause / Resume" {
			rv.pauseBtn = btn
			btn.Configure(State("disabled"))
		}
	}

	// Config panel rows in columns 0-1, stats beside them
	rv.ConfigPanel = NewConfigPanel(fields, h.ApplyConfig)
	endRow := rv.ConfigPanel.Build(1)
	rv.Stats = NewStatsPanel(1, 2, endRow-1)

	rv.CapturePrev = NewCapturePreview(endRow)
	rv.Alerts = NewAlertLog(endRow + 1)
}

// SetStateLabel updates the performance state label text and colour.
func (rv *RootView) SetStateLabel(text string, st perf.State) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text), Background(theme.StateColor(st)))
	}
}

// SetCaptureStatus updates the capture status label and the pause button.
func (rv *RootView) SetCaptureStatus(status string) {
	if rv == nil || rv.StatusLabel == nil {
		return
	}
	rv.StatusLabel.Configure(Txt("Capture: " + status))
	if rv.pauseBtn != nil {
		state := "normal"
		if status == "off" {
			state = "disabled"
		}
		rv.pauseBtn.Configure(State(state))
	}
}

// SetConfigMessage shows the outcome of the last config apply.
func (rv *RootView) SetConfigMessage(text string) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetMessage(text)
	}
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

// UpdatePreview proxies to the capture preview view.
func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.UpdatePreview(img)
	}
}

// PreviewReset clears the capture preview.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.Reset()
	}
}

// SetStats proxies to the stats panel.
func (rv *RootView) SetStats(lines []model.StatLine) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetStats(lines)
	}
}

// SetSession updates both session and total capture durations.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetSession(session, total)
	}
}

// AppendAlert proxies to the alert log.
func (rv *RootView) AppendAlert(text string) {
	if rv != nil && rv.Alerts != nil {
		rv.Alerts.AppendAlert(text)
	}
}
