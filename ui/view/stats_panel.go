package view

import (
	"fmt"
	"time"

	"github.com/soocke/framepipe/ui/model"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// StatsPanel shows session durations and the labelled pipeline statistics.
type StatsPanel interface {
	SetSession(session, total time.Duration)
	SetStats(lines []model.StatLine)
}

type statsPanel struct {
	frame      *FrameWidget
	sessionLbl *LabelWidget
	totalLbl   *LabelWidget
	labels     []*LabelWidget
	values     []*LabelWidget
}

// NewStatsPanel creates the panel inside a frame gridded at (row, col),
// spanning rowspan rows.
func NewStatsPanel(row, col, rowspan int) StatsPanel {
	p := &statsPanel{frame: Frame(Borderwidth(1), Relief("groove"))}
	Grid(p.frame, Row(row), Column(col), Rowspan(rowspan), Columnspan(2), Sticky("nwe"), Padx("0.4m"), Pady("0.3m"))
	p.sessionLbl = Label(Width(16), Anchor("w"), Txt("Session: 00:00"))
	p.totalLbl = Label(Width(16), Anchor("w"), Txt("Total: 00:00"))
	Grid(p.sessionLbl, In(p.frame), Row(0), Column(0), Sticky("w"), Padx("0.2m"))
	Grid(p.totalLbl, In(p.frame), Row(0), Column(1), Sticky("w"), Padx("0.2m"))
	return p
}

func hms(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (p *statsPanel) SetSession(session, total time.Duration) {
	if p == nil || p.sessionLbl == nil {
		return
	}
	p.sessionLbl.Configure(Txt("Session: " + hms(session)))
	p.totalLbl.Configure(Txt("Total: " + hms(total)))
}

// SetStats updates the value labels, creating rows as new labels appear.
func (p *statsPanel) SetStats(lines []model.StatLine) {
	if p == nil || p.frame == nil {
		return
	}
	for i, l := range lines {
		if i == len(p.labels) {
			lbl := Label(Anchor("w"))
			val := Label(Anchor("w"), Width(36))
			Grid(lbl, In(p.frame), Row(i+1), Column(0), Sticky("w"), Padx("0.2m"))
			Grid(val, In(p.frame), Row(i+1), Column(1), Sticky("w"), Padx("0.2m"))
			p.labels = append(p.labels, lbl)
			p.values = append(p.values, val)
		}
		p.labels[i].Configure(Txt(l.Label + ":"))
		p.values[i].Configure(Txt(l.Value))
	}
}
