package theme

// Light and dark palettes for the preview window and the colours of the
// performance state label.

import (
	"github.com/soocke/framepipe/domain/perf"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

type palette struct {
	bg       string
	surface  string
	primary  string
	text     string
	good     string
	warning  string
	critical string
}

var (
	light = palette{
		bg:       "#f7f9fb",
		surface:  "#ffffff",
		primary:  "#2563eb",
		text:     "#1e293b",
		good:     "#10b981",
		warning:  "#f59e0b",
		critical: "#dc2626",
	}
	dark = palette{
		bg:       "#0f172a",
		surface:  "#1e293b",
		primary:  "#3b82f6",
		text:     "#f1f5f9",
		good:     "#10b981",
		warning:  "#d97706",
		critical: "#ef4444",
	}
)

var darkMode bool

func current() palette {
	if darkMode {
		return dark
	}
	return light
}

// StateColor returns the state label background for a performance state.
func StateColor(st perf.State) string {
	p := current()
	switch st {
	case perf.Critical:
		return p.critical
	case perf.Warning:
		return p.warning
	default:
		return p.good
	}
}

// InitStyles applies the styles of the current mode.
func InitStyles() { apply(current()) }

// ToggleDark flips dark mode, reapplies styles and returns the new mode.
func ToggleDark() bool {
	darkMode = !darkMode
	apply(current())
	return darkMode
}

func apply(p palette) {
	_ = ActivateTheme("azure light")
	App.Configure(Background(p.bg))
	StyleConfigure("TButton",
		Background(p.primary),
		Foreground("white"),
		Padding("4p 3p"),
		Borderwidth(1),
		Relief("ridge"),
	)
	StyleConfigure("TLabel", Foreground(p.text), Background(p.surface))
	StyleConfigure("TFrame", Background(p.surface))
}
