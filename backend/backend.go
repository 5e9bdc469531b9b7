package backend

import (
	"errors"
)

// ErrNoTarget is returned by operations on the zero Target.
var ErrNoTarget = errors.New("backend: no render target configured")

// Kind enumerates the closed set of backends.
type Kind uint8

const (
	// KindNone is the zero value: rendering is disabled.
	KindNone Kind = iota
	// KindSoftware composites frames on the CPU.
	KindSoftware
	// KindGPU hands draw lists to a host compositor over a shared device.
	KindGPU
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSoftware:
		return "software"
	case KindGPU:
		return "gpu"
	}
	return "unknown"
}

// Target is the tagged union of the backend kinds. The set is closed:
// every operation dispatches by an explicit switch on the tag, so a new
// kind fails to compile until each switch handles it.
type Target struct {
	kind     Kind
	software *SoftwareCompositor
	gpu      *GPUTarget
}

// NewSoftwareTarget returns a CPU target presenting to surface.
func NewSoftwareTarget(surface Surface) Target {
	return Target{kind: KindSoftware, software: NewSoftwareCompositor(surface)}
}

// NewGPUTarget returns a target driving the host compositor in t.
func NewGPUTarget(t *GPUTarget) Target {
	return Target{kind: KindGPU, gpu: t}
}

// Kind returns the target's tag.
func (t *Target) Kind() Kind { return t.kind }

// Compositor returns the active draw-list consumer.
func (t *Target) Compositor() (Compositor, error) {
	switch t.kind {
	case KindSoftware:
		return t.software, nil
	case KindGPU:
		if t.gpu.Compositor == nil {
			return nil, ErrNoTarget
		}
		return t.gpu.Compositor, nil
	}
	return nil, ErrNoTarget
}

// FrameLatency returns the pacing feedback channel for the target, or
// nil when the target provides none.
func (t *Target) FrameLatency() <-chan struct{} {
	switch t.kind {
	case KindSoftware:
		return t.software.surface.FrameLatency()
	case KindGPU:
		return t.gpu.FrameLatency
	}
	return nil
}

// CheckDevice verifies the target can accept a frame right now.
func (t *Target) CheckDevice() error {
	switch t.kind {
	case KindSoftware:
		return nil
	case KindGPU:
		return t.gpu.CheckDevice()
	}
	return ErrNoTarget
}
