package backend

import (
	"image"
	"sync"
)

// Surface receives finished frames from a software compositor. The
// host implements it to blit frames to a window, a terminal cell
// buffer or a file.
type Surface interface {
	// Present hands over a finished frame. The pixel buffer is reused
	// for the next frame, so implementations must copy what they keep.
	// info.Dirty bounds the changed region; a surface may present only
	// that region.
	Present(frame *image.RGBA, info Frame) error

	// FrameLatency returns the pacing feedback channel: one receive per
	// consumed frame. A nil channel means the surface gives no feedback
	// and presentation is never throttled.
	FrameLatency() <-chan struct{}
}

// ImageSurface is an in-memory Surface retaining the last presented
// frame. It acknowledges every frame immediately, which makes it
// suitable for headless rendering and tests.
type ImageSurface struct {
	mu      sync.Mutex
	last    *image.RGBA
	frames  int
	latency chan struct{}
}

// NewImageSurface returns an empty in-memory surface.
func NewImageSurface() *ImageSurface {
	return &ImageSurface{latency: make(chan struct{}, 1)}
}

// Present copies the frame and signals the pacing channel.
func (s *ImageSurface) Present(frame *image.RGBA, info Frame) error {
	s.mu.Lock()
	if s.last == nil || s.last.Bounds() != frame.Bounds() {
		s.last = image.NewRGBA(frame.Bounds())
	}
	copy(s.last.Pix, frame.Pix)
	s.frames++
	s.mu.Unlock()

	select {
	case s.latency <- struct{}{}:
	default:
	}
	return nil
}

// FrameLatency implements Surface.
func (s *ImageSurface) FrameLatency() <-chan struct{} { return s.latency }

// Last returns a copy of the most recently presented frame, or nil
// when nothing was presented yet.
func (s *ImageSurface) Last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := image.NewRGBA(s.last.Bounds())
	copy(out.Pix, s.last.Pix)
	return out
}

// Presented returns the number of frames presented so far.
func (s *ImageSurface) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
