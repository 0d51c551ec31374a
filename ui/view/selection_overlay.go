package view

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/framepipe/config"
	"github.com/soocke/framepipe/ui/model"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// SelectionOverlay manages the optional selection window allowing the user
// to constrain screen capture to a rectangle. The region applies from the
// next capture start.
type SelectionOverlay interface {
	OpenOrFocus()
	Clear()
}

type selectionOverlay struct {
	logger  *slog.Logger
	cfg     *config.Config
	cfgPath string
	region  *model.RegionModel
	screen  image.Rectangle
	win     *ToplevelWidget
}

// NewSelectionOverlay creates a new overlay manager for a screen of the
// given bounds.
func NewSelectionOverlay(cfg *config.Config, cfgPath string, region *model.RegionModel, screen image.Rectangle, logger *slog.Logger) SelectionOverlay {
	v := &selectionOverlay{logger: logger, cfg: cfg, cfgPath: cfgPath, region: region, screen: screen}
	region.SetRegion(cfg.Region())
	return v
}

func (v *selectionOverlay) OpenOrFocus() {
	if v.win != nil {
		WmGeometry(v.win.Window)
		return
	}
	win := App.Toplevel(Borderwidth(2), Background("#008080"))
	win.WmTitle("Capture Region")
	v.win = win
	geom := v.region.Region()
	if geom.Empty() {
		screenW, screenH := v.screen.Dx(), v.screen.Dy()
		if screenW <= 0 || screenH <= 0 {
			screenW, screenH = 1920, 1080
		}
		initW, initH := max(screenW*2/3, 1), max(screenH*5/9, 1)
		x, y := (screenW-initW)/2, (screenH-initH)/2
		geom = image.Rect(x, y, x+initW, y+initH)
	}
	WmGeometry(win.Window, fmt.Sprintf("%dx%d+%d+%d", geom.Dx(), geom.Dy(), geom.Min.X, geom.Min.Y))
	WmAttributes(win.Window, "-topmost", 1)
	WmAttributes(win.Window, "-alpha", 0.5)
	GridRowConfigure(win.Window, 0, Weight(1))
	GridColumnConfigure(win.Window, 0, Weight(0))
	GridColumnConfigure(win.Window, 1, Weight(1))
	GridColumnConfigure(win.Window, 2, Weight(0))
	left := win.Frame(Width(4), Background("#FFFFFF"))
	Grid(left, Row(0), Column(0), Sticky("ns"))
	center := win.Frame(Background("#008080"))
	Grid(center, Row(0), Column(1), Sticky("nsew"))
	right := win.Frame(Width(4), Background("#FFFFFF"))
	Grid(right, Row(0), Column(2), Sticky("ns"))
	controls := win.Frame()
	Grid(controls, Row(1), Column(0), Columnspan(3), Sticky("we"))
	confirm := win.Button(Txt("Confirm [Enter]"), Command(v.confirm))
	Grid(confirm, In(controls), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	cancel := win.Button(Txt("Cancel [Esc]"), Command(v.cancel))
	Grid(cancel, In(controls), Row(0), Column(1), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	clear := win.Button(Txt("Full Screen"), Command(v.Clear))
	Grid(clear, In(controls), Row(0), Column(2), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	Bind(win, "<Return>", Command(v.confirm))
	Bind(win, "<Escape>", Command(v.cancel))
}

func (v *selectionOverlay) Clear() {
	v.region.SetRegion(image.Rectangle{})
	v.store()
	v.destroy()
}

func (v *selectionOverlay) confirm() {
	if v.win == nil {
		return
	}
	if rect, ok := model.ParseGeometry(WmGeometry(v.win.Window)); ok {
		if !v.region.SetRegion(rect) {
			v.logger.Info("selection clipped to screen", "requested", rect, "region", v.region.Region())
		}
		v.store()
	}
	v.destroy()
}

func (v *selectionOverlay) store() {
	r := v.region.Region()
	v.cfg.SelectionX, v.cfg.SelectionY = r.Min.X, r.Min.Y
	v.cfg.SelectionW, v.cfg.SelectionH = r.Dx(), r.Dy()
	if v.cfgPath == "" {
		return
	}
	if err := v.cfg.Save(v.cfgPath); err != nil {
		v.logger.Error("config save failed", "error", err)
	}
}

func (v *selectionOverlay) cancel() { v.destroy() }

func (v *selectionOverlay) destroy() {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
}
