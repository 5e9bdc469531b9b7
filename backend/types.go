package backend

import (
	"image"
	"image/color"
)

// Shading selects how a quad's pixels are produced.
type Shading uint8

const (
	// ShadingBackground fills Dst with Color, ignoring Tex.
	ShadingBackground Shading = iota
	// ShadingText samples the atlas as a coverage mask tinted with Color.
	ShadingText
	// ShadingPassthrough blits the atlas rect as-is (color glyphs).
	ShadingPassthrough
	// ShadingGridLine fills Dst with Color (underlines, strikethrough,
	// borders). Kept distinct from ShadingBackground so compositors can
	// batch decorations separately.
	ShadingGridLine
	// ShadingSelection alpha-blends Color over Dst.
	ShadingSelection
	// ShadingCursor draws the cursor; compositors may invert instead of
	// blending when Color has zero alpha.
	ShadingCursor
)

// Quad is one draw-list instance: a destination rectangle in target
// pixels, a source rectangle in atlas texels, a packed RGBA color and a
// shading mode. The layout mirrors the per-instance vertex data a GPU
// compositor consumes.
type Quad struct {
	Dst     image.Rectangle
	Tex     image.Rectangle
	Color   uint32
	Shading Shading
}

// Frame carries the per-frame parameters accompanying a draw list.
type Frame struct {
	// TargetSize is the output surface size in pixels.
	TargetSize image.Point
	// CellSize is the glyph cell size in pixels.
	CellSize image.Point
	// Dirty is the changed region in pixels; compositors may present
	// only this region. A full-target rect means "redraw everything".
	Dirty image.Rectangle
	// ScrollOffsetPx is the vertical scroll hint in pixels, positive
	// when content moved down.
	ScrollOffsetPx int
	// Background is the packed RGBA clear color.
	Background uint32
}

// ColorFromU32 unpacks 0xAABBGGRR into a color.RGBA (non-premultiplied
// channel order r, g, b, a).
func ColorFromU32(c uint32) color.RGBA {
	return color.RGBA{
		R: uint8(c),
		G: uint8(c >> 8),
		B: uint8(c >> 16),
		A: uint8(c >> 24),
	}
}
