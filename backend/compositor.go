package backend

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Compositor consumes the engine's per-frame draw list. The software
// implementation below rasterizes it on the CPU; a GPU host provides
// its own implementation that uploads the atlas and renders the quads
// as instanced geometry.
type Compositor interface {
	// UpdateAtlas replaces the atlas pixels. generation changes whenever
	// the atlas was cleared or resized, invalidating prior Tex rects.
	UpdateAtlas(surface *image.RGBA, generation uint32) error

	// Composite clears the dirty region to the frame background and
	// draws the quads in order.
	Composite(frame Frame, quads []Quad) error
}

// SoftwareCompositor renders draw lists into an RGBA frame with
// golang.org/x/image/draw and presents it to a Surface.
type SoftwareCompositor struct {
	surface Surface
	frame   *image.RGBA
	atlas   *image.RGBA
}

// NewSoftwareCompositor returns a compositor presenting to surface.
func NewSoftwareCompositor(surface Surface) *SoftwareCompositor {
	return &SoftwareCompositor{surface: surface}
}

// UpdateAtlas implements Compositor. The pixels are shared, not
// copied; the engine only appends to the surface between generations.
func (c *SoftwareCompositor) UpdateAtlas(surface *image.RGBA, generation uint32) error {
	c.atlas = surface
	return nil
}

// Composite implements Compositor.
func (c *SoftwareCompositor) Composite(frame Frame, quads []Quad) error {
	bounds := image.Rect(0, 0, frame.TargetSize.X, frame.TargetSize.Y)
	if c.frame == nil || c.frame.Bounds() != bounds {
		c.frame = image.NewRGBA(bounds)
	} else if frame.ScrollOffsetPx != 0 {
		c.scroll(frame.ScrollOffsetPx)
	}
	dirty := frame.Dirty.Intersect(bounds)

	xdraw.Draw(c.frame, dirty, image.NewUniform(premul(frame.Background)), image.Point{}, xdraw.Src)

	for _, q := range quads {
		dst := q.Dst.Intersect(bounds)
		if dst.Empty() {
			continue
		}
		switch q.Shading {
		case ShadingBackground, ShadingGridLine:
			xdraw.Draw(c.frame, dst, image.NewUniform(premul(q.Color)), image.Point{}, xdraw.Src)
		case ShadingText:
			if c.atlas == nil {
				continue
			}
			// The atlas stores coverage in the alpha channel; use it as
			// the mask for a uniform foreground fill.
			xdraw.DrawMask(c.frame, dst,
				image.NewUniform(premul(q.Color)), image.Point{},
				c.atlas, q.Tex.Min, xdraw.Over)
		case ShadingPassthrough:
			if c.atlas == nil {
				continue
			}
			xdraw.Draw(c.frame, dst, c.atlas, q.Tex.Min, xdraw.Over)
		case ShadingSelection:
			xdraw.Draw(c.frame, dst, image.NewUniform(premul(q.Color)), image.Point{}, xdraw.Over)
		case ShadingCursor:
			if q.Color>>24 == 0 {
				c.invert(dst)
			} else {
				xdraw.Draw(c.frame, dst, image.NewUniform(premul(q.Color)), image.Point{}, xdraw.Src)
			}
		}
	}

	return c.surface.Present(c.frame, frame)
}

// scroll shifts the retained frame pixels vertically by dy pixels so
// the dirty region stays limited to the newly exposed rows. Positive
// dy moves content down.
func (c *SoftwareCompositor) scroll(dy int) {
	h := c.frame.Bounds().Dy()
	stride := c.frame.Stride
	if dy >= h || -dy >= h {
		return
	}
	if dy > 0 {
		copy(c.frame.Pix[dy*stride:], c.frame.Pix[:(h-dy)*stride])
	} else {
		copy(c.frame.Pix, c.frame.Pix[-dy*stride:])
	}
}

// invert flips the color channels inside r for the inverted cursor.
func (c *SoftwareCompositor) invert(r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := c.frame.Pix[c.frame.PixOffset(r.Min.X, y):c.frame.PixOffset(r.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			row[i] = 0xff - row[i]
			row[i+1] = 0xff - row[i+1]
			row[i+2] = 0xff - row[i+2]
		}
	}
}

// premul converts a packed straight-alpha color to the premultiplied
// color.RGBA the image/draw model expects.
func premul(c uint32) color.RGBA {
	rgba := ColorFromU32(c)
	a := uint32(rgba.A)
	return color.RGBA{
		R: uint8(uint32(rgba.R) * a / 0xff),
		G: uint8(uint32(rgba.G) * a / 0xff),
		B: uint8(uint32(rgba.B) * a / 0xff),
		A: rgba.A,
	}
}
