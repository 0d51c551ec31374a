package source

import (
	"image"
	"image/draw"

	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// packImage copies img into a pooled pixel buffer laid out as format.
// Images that are not tightly packed RGBA are first drawn into pooled
// scratch space.
func packImage(p *pool.Pool, img image.Image, format frame.PixelFormat) (*pool.PixelBuffer, uint32, uint32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}

	rgba, tight := img.(*image.RGBA)
	tight = tight && rgba.Stride == 4*w
	var scratch *pool.TempBuffer
	if !tight {
		scratch = p.AcquireTempBuffer(4 * w * h)
		rgba = &image.RGBA{Pix: scratch.Data, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
		defer p.Release(scratch)
	}
	src := rgba.Pix[:4*w*h]

	out := p.AcquirePixelBuffer(int(frame.ByteSize(uint32(w), uint32(h), format)))
	switch format {
	case frame.RGBA:
		copy(out.Data, src)
	case frame.RGB:
		for i, j := 0, 0; i < len(src); i, j = i+4, j+3 {
			out.Data[j], out.Data[j+1], out.Data[j+2] = src[i], src[i+1], src[i+2]
		}
	case frame.Gray:
		for i, j := 0, 0; i < len(src); i, j = i+4, j+1 {
			out.Data[j] = luma(src[i], src[i+1], src[i+2])
		}
	}
	return out, uint32(w), uint32(h)
}

// luma is the Rec. 601 weighted sum in integer arithmetic.
func luma(r, g, b byte) byte {
	return byte((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}
