package pool

import (
	"fmt"

	"github.com/soocke/framepipe/domain/frame"
)

// Kind enumerates the object kinds the pool manages. The set is closed.
type Kind uint8

const (
	KindFrameData Kind = iota
	KindPixelBuffer
	KindMetadata
	KindTempBuffer

	kindCount
)

// Kinds lists every pooled kind in declaration order.
var Kinds = [...]Kind{KindFrameData, KindPixelBuffer, KindMetadata, KindTempBuffer}

func (k Kind) String() string {
	switch k {
	case KindFrameData:
		return "frame_data"
	case KindPixelBuffer:
		return "pixel_buffer"
	case KindMetadata:
		return "metadata"
	case KindTempBuffer:
		return "temp_buffer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool { return k < kindCount }

// Object is implemented only by the four pooled types in this package.
type Object interface {
	Kind() Kind
	reset(sizeHint int)
	base() *header
}

type objectState uint8

const (
	// stateDirect marks objects the pool does not track: allocated while
	// pooling was off or over the in-use cap, or abandoned by a shrink.
	stateDirect objectState = iota
	stateInUse
	stateAvailable
)

type header struct {
	owner *Pool
	state objectState
}

func (h *header) base() *header { return h }

// FrameData is a pooled frame. The embedded Frame is what the frame buffer
// stores and hands out.
type FrameData struct {
	frame.Frame
	header
}

func (*FrameData) Kind() Kind { return KindFrameData }

func (f *FrameData) reset(sizeHint int) {
	f.Frame.Reset()
	if sizeHint > cap(f.Payload) {
		f.Payload = make([]byte, 0, sizeHint)
	}
	if f.Metadata == nil {
		f.Metadata = make(map[string]any)
	}
}

// PixelBuffer holds raw pixel bytes produced by a capture backend.
type PixelBuffer struct {
	Data []byte
	header
}

func (*PixelBuffer) Kind() Kind { return KindPixelBuffer }

func (b *PixelBuffer) reset(sizeHint int) { b.Data = zeroed(b.Data, sizeHint) }

// Metadata is a reusable key/value bag for per-capture source metadata.
type Metadata struct {
	Values map[string]any
	header
}

func (*Metadata) Kind() Kind { return KindMetadata }

func (m *Metadata) reset(int) {
	if m.Values == nil {
		m.Values = make(map[string]any)
		return
	}
	clear(m.Values)
}

// TempBuffer is scratch space, e.g. for format conversion.
type TempBuffer struct {
	Data []byte
	header
}

func (*TempBuffer) Kind() Kind { return KindTempBuffer }

func (b *TempBuffer) reset(sizeHint int) { b.Data = zeroed(b.Data, sizeHint) }

// zeroed returns a slice of length n with every byte cleared, reusing buf's
// backing array when it is large enough.
func zeroed(buf []byte, n int) []byte {
	if n < 0 {
		n = 0
	}
	if cap(buf) < n {
		return make([]byte, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func newObject(k Kind) Object {
	switch k {
	case KindFrameData:
		return &FrameData{}
	case KindPixelBuffer:
		return &PixelBuffer{}
	case KindMetadata:
		return &Metadata{}
	default:
		return &TempBuffer{}
	}
}
