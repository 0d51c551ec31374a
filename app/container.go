package app

import (
	"context"
	"image"
	"log/slog"

	"github.com/soocke/framepipe/app/pipeline"
	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/source"
	"github.com/soocke/framepipe/ui/model"
	"github.com/soocke/framepipe/ui/presenter"
	"github.com/soocke/framepipe/ui/view"
)

// AppContainer assembles models, the capture service, presenters and the
// root view.
type AppContainer struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Capture    *model.CaptureModel
	Stats      *model.StatsModel
	Region     *model.RegionModel
	Service    *capture.Service
	RootView   *view.RootView
	Screen     image.Rectangle

	// Presenters
	Alerts           *presenter.AlertPresenter
	CapturePresenter *presenter.CapturePresenter
	StatsPresenter   *presenter.StatsPresenter
	PreviewPresenter *presenter.PreviewPresenter
	ConfigPresenter  *presenter.ConfigPresenter
	Loop             *presenter.Loop
}

// BuildContainer constructs all components. The service is built but not
// started; ctx bounds its tick goroutine once started.
func BuildContainer(ctx context.Context, cfg *config.Config, cfgPath string, logger *slog.Logger) (*AppContainer, error) {
	c := &AppContainer{Config: cfg, ConfigPath: cfgPath, Logger: logger}
	c.Capture = &model.CaptureModel{}
	c.Stats = model.NewStatsModel()
	if bounds, err := source.ScreenBounds(); err == nil {
		c.Screen = bounds
	} else {
		logger.Warn("screen bounds unavailable", "error", err)
	}
	c.Region = model.NewRegionModel(c.Screen)
	c.RootView = view.NewRootView(logger)

	// Callbacks reach the view through the alert presenter, so it exists
	// before the service.
	c.Alerts = presenter.NewAlertPresenter(c.RootView)
	svc, err := pipeline.New(cfg, logger, c.Alerts.Callbacks())
	if err != nil {
		return nil, err
	}
	c.Service = svc

	c.CapturePresenter = presenter.NewCapturePresenter(ctx, c.Capture, svc, c.RootView, logger)
	c.StatsPresenter = presenter.NewStatsPresenter(svc, c.Stats, c.RootView)
	c.PreviewPresenter = presenter.NewPreviewPresenter(c.Capture.Enabled, svc, c.RootView, logger)
	c.ConfigPresenter = presenter.NewConfigPresenter(cfg, cfgPath, svc, logger)
	return c, nil
}
