package model

import (
	"image"
	"regexp"
	"strconv"
	"strings"
)

// RegionModel holds the screen region the screen source captures. The zero
// value means the full screen and is usable. Updates occur on the UI thread.
type RegionModel struct {
	region image.Rectangle
	bounds image.Rectangle
}

// NewRegionModel returns a model limited to screen bounds. Empty bounds
// disable clamping.
func NewRegionModel(bounds image.Rectangle) *RegionModel { return &RegionModel{bounds: bounds} }

// SetRegion stores r clipped to the screen bounds. Empty or degenerate
// rectangles select the full screen. It reports whether r was used as given.
func (m *RegionModel) SetRegion(r image.Rectangle) bool {
	if m == nil {
		return false
	}
	r = r.Canon()
	clipped := r
	if !m.bounds.Empty() {
		clipped = r.Intersect(m.bounds)
	}
	if clipped.Empty() {
		m.region = image.Rectangle{}
		return r.Empty()
	}
	m.region = clipped
	return clipped == r
}

// Region returns the selected rectangle, empty for the full screen.
func (m *RegionModel) Region() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return m.region
}

// FullScreen reports whether no region is selected.
func (m *RegionModel) FullScreen() bool { return m.Region().Empty() }

// geomRe matches window geometry strings in the format "WIDTHxHEIGHT+X+Y".
var geomRe = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)

// ParseGeometry parses a Tk geometry string into a rectangle.
func ParseGeometry(g string) (image.Rectangle, bool) {
	m := geomRe.FindStringSubmatch(strings.TrimSpace(g))
	if len(m) != 5 {
		return image.Rectangle{}, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}
