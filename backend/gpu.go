package backend

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ErrDeviceAbsent reports that the GPU target has no usable device.
// It covers both a device that was never provided and one the host
// lost; either way the frame cannot be rendered until the handle
// resolves to a live device again.
var ErrDeviceAbsent = errors.New("backend: gpu device unavailable")

// DeviceHandle provides GPU device access from the host application.
//
// The engine RECEIVES the device from the host, it does not create
// one: the same device renders the terminal and whatever else the host
// draws. DeviceHandle is an alias for gpucontext.DeviceProvider so any
// gpucontext host plugs in directly.
type DeviceHandle = gpucontext.DeviceProvider

// AtlasTextureFormat is the pixel format of the glyph atlas texture.
// BGRA8 matches the common swapchain format, so passthrough color
// glyphs blit without conversion.
const AtlasTextureFormat = gputypes.TextureFormatBGRA8Unorm

// TextureDescriptor describes a texture the host compositor should
// create. It mirrors the WebGPU GPUTextureDescriptor.
type TextureDescriptor struct {
	Label         string
	Size          gputypes.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// AtlasTextureDescriptor returns the descriptor a GPU compositor uses
// for a w x h atlas texture upload target.
func AtlasTextureDescriptor(w, h int) TextureDescriptor {
	return TextureDescriptor{
		Label: "termatlas-glyph-atlas",
		Size: gputypes.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        AtlasTextureFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}
}

// GPUTarget bundles the host-side pieces of a GPU backend: the shared
// device, the host's draw-list compositor and its pacing feedback.
type GPUTarget struct {
	// Handle is the shared device. May resolve to a nil device while
	// the host is recreating it after loss.
	Handle DeviceHandle

	// Compositor consumes the engine's draw lists, typically by
	// uploading the atlas via AtlasTextureDescriptor and rendering the
	// quads as instanced geometry.
	Compositor Compositor

	// FrameLatency is the host's pacing feedback, one receive per
	// consumed frame. Nil disables pacing.
	FrameLatency <-chan struct{}
}

// CheckDevice verifies the handle resolves to a live device.
func (t *GPUTarget) CheckDevice() error {
	if t.Handle == nil || t.Handle.Device() == nil {
		return ErrDeviceAbsent
	}
	return nil
}

// SurfaceFormat returns the host swapchain format, or the atlas format
// when the handle does not report one.
func (t *GPUTarget) SurfaceFormat() gputypes.TextureFormat {
	if t.Handle != nil {
		if f := t.Handle.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			return f
		}
	}
	return AtlasTextureFormat
}
