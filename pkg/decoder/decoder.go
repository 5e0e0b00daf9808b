// Package decoder implements the decoder contract a session drives: feed it
// NAL units or whole access units, get decoded frames back. The actual H.264
// bitstream decoding is an assumed external capability; this package stands
// in for it with a deterministic test-pattern generator, exactly as the
// system it's grounded on does.
package decoder

import (
	"errors"

	"github.com/shadowmesh/harmonydesk/pkg/frame"
)

// ErrNotInitialized is returned by every operation before Initialize is
// called.
var ErrNotInitialized = errors.New("decoder: not initialized")

// Config configures a Decoder instance.
type Config struct {
	Width                      uint32
	Height                     uint32
	EnableHardwareAcceleration bool
	ThreadCount                int
}

// DefaultConfig matches the dimensions a session assumes before any
// VideoConfig/VideoFrame has been observed.
func DefaultConfig() Config {
	return Config{Width: 1920, Height: 1080, EnableHardwareAcceleration: false, ThreadCount: 4}
}

// Decoder is a stateful H.264-shaped decoder. It is not safe for concurrent
// use; a session drives it from a single goroutine.
type Decoder struct {
	config      Config
	initialized bool
	frameCount  uint64
}

// New constructs a Decoder; call Initialize before using it.
func New(cfg Config) *Decoder {
	return &Decoder{config: cfg}
}

// Initialize is a one-shot setup call. Calling it again is a no-op.
func (d *Decoder) Initialize() error {
	d.initialized = true
	return nil
}

// isKeyFrame reports whether a NAL unit (with a 4-byte Annex B start code)
// begins with an SPS (0x67) or IDR (0x65) NAL header byte.
func isKeyFrame(nal []byte) bool {
	return len(nal) > 4 && (nal[4] == 0x67 || nal[4] == 0x65)
}

// DecodeNAL feeds one NAL unit to the decoder. It returns a frame only when
// the unit is a key frame (SPS or IDR); otherwise it returns (nil, nil).
func (d *Decoder) DecodeNAL(nal []byte) (*frame.Frame, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if !isKeyFrame(nal) {
		return nil, nil
	}
	return d.nextFrame(), nil
}

// DecodeFrame feeds a complete access unit and always returns a frame. An
// empty access unit is still a valid unit here: a video packet may carry no
// compressed bytes at all, and the contract is unconditional success.
func (d *Decoder) DecodeFrame(data []byte) (*frame.Frame, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	return d.nextFrame(), nil
}

// Flush drains any buffered frame. This decoder never buffers ahead of the
// caller, so Flush always returns (nil, nil).
func (d *Decoder) Flush() (*frame.Frame, error) {
	return nil, nil
}

// Reset clears decode state without discarding configuration.
func (d *Decoder) Reset() {
	d.initialized = false
	d.frameCount = 0
}

// Reconfigure updates the dimensions frames are produced at, for when the
// wire stream negotiates a size different from the one the decoder was
// constructed with. It does not touch frameCount or initialized state.
func (d *Decoder) Reconfigure(width, height uint32) {
	d.config.Width = width
	d.config.Height = height
}

// nextFrame synthesizes an RGBA test pattern sized to the configured
// dimensions, stamped with the running frame counter.
func (d *Decoder) nextFrame() *frame.Frame {
	f := frame.New(d.config.Width, d.config.Height, frame.RGBA, d.frameCount)
	generateTestPattern(f)
	d.frameCount++
	return f
}

// generateTestPattern fills f with a checkerboard plus a white rectangle in
// the upper-left quadrant, giving callers a visibly non-uniform frame to
// exercise rendering paths against without a real codec.
func generateTestPattern(f *frame.Frame) {
	w, h := int(f.Width), int(f.Height)
	const tile = 32

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			o := (i*w + j) * 4
			if (i/tile+j/tile)%2 == 0 {
				f.Data[o], f.Data[o+1], f.Data[o+2] = 200, 200, 200
			} else {
				f.Data[o], f.Data[o+1], f.Data[o+2] = 40, 40, 40
			}
			f.Data[o+3] = 255
		}
	}

	rectW, rectH := w/4, h/4
	for i := 0; i < rectH && i < h; i++ {
		for j := 0; j < rectW && j < w; j++ {
			o := (i*w + j) * 4
			f.Data[o], f.Data[o+1], f.Data[o+2], f.Data[o+3] = 255, 255, 255, 255
		}
	}
}
