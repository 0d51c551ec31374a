package presenter

import (
	"image"
	"log/slog"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/ui/images"
)

// PreviewView shows the latest captured frame.
type PreviewView interface {
	UpdatePreview(img image.Image)
}

// PreviewPresenter converts the newest buffered frame for the preview. A
// frame already shown is not converted again.
type PreviewPresenter struct {
	Enabled func() bool
	source  capture.FrameSource
	view    PreviewView
	logger  *slog.Logger
	lastSeq uint64
	shown   bool
}

// NewPreviewPresenter constructs a preview presenter.
func NewPreviewPresenter(enabled func() bool, source capture.FrameSource, view PreviewView, logger *slog.Logger) *PreviewPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewPresenter{Enabled: enabled, source: source, view: view, logger: logger}
}

// Reset forgets the last shown frame.
func (p *PreviewPresenter) Reset() {
	if p != nil {
		p.shown = false
		p.lastSeq = 0
	}
}

// ProcessFrame pulls the latest frame and pushes it to the view when new.
func (p *PreviewPresenter) ProcessFrame() {
	if p == nil || p.source == nil || p.view == nil {
		return
	}
	if p.Enabled != nil && !p.Enabled() {
		return
	}
	f, ok := p.source.Latest()
	if !ok || (p.shown && f.Sequence == p.lastSeq) {
		return
	}
	img, err := images.FrameImage(f)
	if err != nil {
		p.logger.Debug("preview.convert", "error", err, "seq", f.Sequence)
		return
	}
	p.lastSeq, p.shown = f.Sequence, true
	p.view.UpdatePreview(img)
}
