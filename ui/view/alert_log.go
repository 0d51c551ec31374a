package view

import (
	"strconv"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const maxAlertLines = 200

// AlertLog lists pipeline notifications, newest first.
type AlertLog interface {
	AppendAlert(text string)
}

type alertLog struct {
	text  *TextWidget
	lines int
}

// NewAlertLog creates a read-only text area spanning columns 0-3 of row.
func NewAlertLog(row int) AlertLog {
	t := Text(Height(5), Width(80))
	Grid(t, Row(row), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	t.Configure(State("disabled"))
	return &alertLog{text: t}
}

func (a *alertLog) AppendAlert(msg string) {
	if a == nil || a.text == nil {
		return
	}
	a.text.Configure(State("normal"))
	a.text.Insert("1.0", msg+"\n")
	a.lines++
	if a.lines > maxAlertLines {
		a.text.Delete(strconv.Itoa(maxAlertLines+1)+".0", END)
		a.lines = maxAlertLines
	}
	a.text.Configure(State("disabled"))
}
