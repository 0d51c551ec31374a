package presenter

import (
	"context"
	"log/slog"
)

// CaptureModel provides enabled and paused state access.
type CaptureModel interface {
	Enabled() bool
	SetEnabled(bool)
	Paused() bool
	SetPaused(bool)
	Status() string
}

// LifecycleContract narrows what presenter needs from the capture layer.
type LifecycleContract interface {
	Start(ctx context.Context) error
	Stop()
	Pause()
	Resume()
}

// CaptureView updates UI elements affected by capture toggling.
type CaptureView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetCaptureStatus(string)
}

// CapturePresenter owns presentation logic for toggling capture state.
type CapturePresenter struct {
	ctx     context.Context
	model   CaptureModel
	service LifecycleContract
	view    CaptureView
	logger  *slog.Logger
}

// NewCapturePresenter returns a presenter starting the service under ctx.
func NewCapturePresenter(ctx context.Context, model CaptureModel, service LifecycleContract, view CaptureView, logger *slog.Logger) *CapturePresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapturePresenter{ctx: ctx, model: model, service: service, view: view, logger: logger}
}

func (c *CapturePresenter) ready() bool {
	return c != nil && c.model != nil && c.service != nil && c.view != nil
}

// Enable starts the capture service and locks the config panel. Idempotent.
func (c *CapturePresenter) Enable() {
	if !c.ready() || c.model.Enabled() {
		return
	}
	if err := c.service.Start(c.ctx); err != nil {
		c.logger.Error("capture start failed", "error", err)
		c.view.SetCaptureStatus("error: " + err.Error())
		return
	}
	c.model.SetEnabled(true)
	c.view.ConfigEditable(false)
	c.view.SetCaptureStatus(c.model.Status())
}

// Disable stops the capture service, resetting the preview. A paused
// service is resumed first so the next Enable captures. Idempotent.
func (c *CapturePresenter) Disable() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	if c.model.Paused() {
		c.service.Resume()
	}
	c.service.Stop()
	c.model.SetEnabled(false)
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
	c.view.SetCaptureStatus(c.model.Status())
}

// Toggle flips enabled state delegating to Enable/Disable.
func (c *CapturePresenter) Toggle() {
	if !c.ready() {
		return
	}
	if c.model.Enabled() {
		c.Disable()
		return
	}
	c.Enable()
}

// TogglePause pauses or resumes an enabled capture. Disabled capture is left
// alone.
func (c *CapturePresenter) TogglePause() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	if c.model.Paused() {
		c.service.Resume()
		c.model.SetPaused(false)
	} else {
		c.service.Pause()
		c.model.SetPaused(true)
	}
	c.view.SetCaptureStatus(c.model.Status())
}
