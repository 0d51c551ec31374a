package view

import (
	"image"

	"github.com/soocke/framepipe/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// CapturePreview shows the latest captured frame scaled to fit.
type CapturePreview interface {
	UpdatePreview(img image.Image)
	Reset()
}

type capturePreview struct {
	label     *LabelWidget
	prevPhoto *Img // last Tk photo image instance
}

// Old photos are deleted before replacement so off-screen image data does
// not accumulate.

// NewCapturePreview creates the preview label spanning columns 0-3 of row.
func NewCapturePreview(row int) CapturePreview {
	photo := placeholderPhoto()
	label := Label(Image(photo), Borderwidth(1), Relief("sunken"))
	Grid(label, Row(row), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return &capturePreview{label: label, prevPhoto: photo}
}

const (
	// Max preview dimensions; scaling is proportional.
	maxPreviewW = 480
	maxPreviewH = 270
)

func placeholderPhoto() *Img {
	return NewPhoto(Data(images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 240, 135)))))
}

func (v *capturePreview) replace(photo *Img) {
	if v.prevPhoto != nil {
		v.prevPhoto.Delete()
	}
	v.prevPhoto = photo
	v.label.Configure(Image(photo))
}

func (v *capturePreview) UpdatePreview(img image.Image) {
	if v.label == nil || img == nil {
		return
	}
	scaled := images.ScaleToFit(img, maxPreviewW, maxPreviewH)
	v.replace(NewPhoto(Data(images.EncodePNG(scaled))))
}

func (v *capturePreview) Reset() {
	if v.label != nil {
		v.replace(placeholderPhoto())
	}
}
