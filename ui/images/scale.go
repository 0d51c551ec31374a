package images

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/soocke/framepipe/domain/frame"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit scales src so that it fits within maxW x maxH preserving aspect
// ratio. If the source already fits, the original is returned.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, max(maxW, 1), max(maxH, 1), imaging.Linear)
}

// FrameImage wraps the payload of f as an image without copying. The image
// aliases f.Payload, so pass a frame the caller owns.
func FrameImage(f frame.Frame) (image.Image, error) {
	w, h := int(f.Width), int(f.Height)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("frame image: empty frame %dx%d", w, h)
	}
	if int64(len(f.Payload)) < frame.ByteSize(f.Width, f.Height, f.Format) {
		return nil, fmt.Errorf("frame image: payload %d bytes short for %dx%d %s", len(f.Payload), w, h, f.Format)
	}
	rect := image.Rect(0, 0, w, h)
	switch f.Format {
	case frame.RGBA:
		return &image.RGBA{Pix: f.Payload, Stride: 4 * w, Rect: rect}, nil
	case frame.Gray:
		return &image.Gray{Pix: f.Payload, Stride: w, Rect: rect}, nil
	case frame.RGB:
		out := image.NewNRGBA(rect)
		for i, j := 0, 0; j < len(out.Pix); i, j = i+3, j+4 {
			out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = f.Payload[i], f.Payload[i+1], f.Payload[i+2], 0xff
		}
		return out, nil
	default:
		return nil, fmt.Errorf("frame image: unsupported format %v", f.Format)
	}
}
