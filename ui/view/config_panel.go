package view

import (
	"strings"

	"github.com/soocke/framepipe/ui/presenter"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the configuration form widgets. Parsing and
// applying are left to the config presenter.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	SetEditable(enabled bool)
	SetMessage(text string)
}

type configPanel struct {
	fields   []presenter.ConfigField
	onApply  func(values map[string]string)
	applyBtn *ButtonWidget
	message  *LabelWidget
	widgets  map[string]*TextWidget // keyed by field id
}

// NewConfigPanel creates the view for fields. onApply receives the entered
// text keyed by field id.
func NewConfigPanel(fields []presenter.ConfigField, onApply func(values map[string]string)) ConfigPanel {
	return &configPanel{fields: fields, onApply: onApply, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	row = startRow
	for _, f := range v.fields {
		lbl := Label(Txt(f.Label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(16))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", f.Value)
		v.widgets[f.ID] = w
		row++
	}
	v.applyBtn = Button(Txt("Apply Changes"), Command(v.apply))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	v.message = Label(Anchor("w"), Txt(""))
	Grid(v.message, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"))
	row++
	return row
}

// SetEditable toggles the fields that need a restart. Runtime fields and the
// apply button stay enabled while capturing.
func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, f := range v.fields {
		if w := v.widgets[f.ID]; w != nil && !f.Runtime {
			w.Configure(State(state))
		}
	}
}

func (v *configPanel) SetMessage(text string) {
	if v.message != nil {
		v.message.Configure(Txt(text))
	}
}

func (v *configPanel) apply() {
	if v.onApply == nil {
		return
	}
	values := make(map[string]string, len(v.widgets))
	for id, w := range v.widgets {
		values[id] = strings.TrimSpace(strings.Join(w.Get("1.0", END), ""))
	}
	v.onApply(values)
}
