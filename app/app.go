package app

import (
	"context"
	"fmt"
	"time"

	. "modernc.org/tk9.0"

	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/ui/feed"
	"github.com/soocke/framepipe/ui/presenter"
	"github.com/soocke/framepipe/ui/theme"
	"github.com/soocke/framepipe/ui/view"
)

const (
	tick = 100 * time.Millisecond
)

type app struct {
	c       *AppContainer
	ctx     context.Context
	cancel  context.CancelFunc
	afterID string
	overlay view.SelectionOverlay
	exited  bool
}

// NewApp sizes the main window. The returned app runs until the window is
// closed or ctx is done.
func NewApp(ctx context.Context, title string, width, height int, c *AppContainer) *app {
	a := &app{c: c}
	a.ctx, a.cancel = context.WithCancel(ctx)

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the UI, wires the presenter loop and blocks in the Tk event
// loop.
func (a *app) Start() {
	c := a.c
	theme.InitStyles()
	a.overlay = view.NewSelectionOverlay(c.Config, c.ConfigPath, c.Region, c.Screen, c.Logger)
	c.RootView.Build(c.ConfigPresenter.Fields(), view.Handlers{
		ToggleCapture: a.toggleCapture,
		TogglePause:   c.CapturePresenter.TogglePause,
		SelectRegion:  a.selectRegion,
		Cleanup:       a.cleanup,
		ToggleDark:    func() { theme.ToggleDark() },
		Exit:          a.exitHandler,
		ApplyConfig:   a.applyConfig,
	})
	c.Loop = presenter.NewLoop(c.StatsPresenter, c.PreviewPresenter, c.Alerts, a.scheduleUpdate)

	if c.Config.FeedAddr != "" {
		f := feed.New[capture.Snapshot](c.Service, c.Config.FeedInterval(), c.Logger)
		go func() {
			if err := f.Serve(a.ctx, c.Config.FeedAddr); err != nil {
				c.Logger.Error("feed stopped", "error", err)
			}
		}()
	}
	a.scheduleUpdate()
	App.Wait()
}

func (a *app) scheduleUpdate() {
	// An interrupt cancels ctx off the Tk thread; exit from here instead.
	if a.ctx.Err() != nil {
		a.exitHandler()
		return
	}
	// Schedule the next update using TclAfter to stay on Tk's event loop thread.
	a.afterID = TclAfter(tick, a.c.Loop.Tick)
}

func (a *app) toggleCapture() {
	a.c.CapturePresenter.Toggle()
	if !a.c.Capture.Enabled() {
		a.c.PreviewPresenter.Reset()
	}
}

func (a *app) selectRegion() {
	if a.c.Config.Source != config.SourceScreen {
		a.c.RootView.SetConfigMessage("region selection applies to the screen source")
		return
	}
	a.overlay.OpenOrFocus()
}

func (a *app) cleanup() {
	rep := a.c.Service.Cleanup()
	a.c.RootView.AppendAlert(fmt.Sprintf("%s cleanup: %d pooled objects released, %d entries expired",
		time.Now().Format("15:04:05"), rep.PoolRemoved+rep.PoolShrunk, rep.ExpiredEntries))
}

func (a *app) applyConfig(values map[string]string) {
	restart, err := a.c.ConfigPresenter.Apply(values)
	switch {
	case err != nil:
		a.c.RootView.SetConfigMessage("not applied: " + err.Error())
	case restart:
		a.c.RootView.SetConfigMessage("saved; source settings apply after restart")
	default:
		a.c.RootView.SetConfigMessage("applied")
	}
}

func (a *app) exitHandler() {
	if a.exited {
		return
	}
	a.exited = true
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
		a.afterID = ""
	}
	a.cancel()
	a.c.CapturePresenter.Disable()
	if err := a.c.Service.Close(); err != nil {
		a.c.Logger.Warn("close capture service", "error", err)
	}
	Destroy(App)
}
