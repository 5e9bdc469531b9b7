package backend

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	otf "github.com/go-text/typesetting/font"
	xdraw "golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/termatlas/shaping"
)

// RasterGlyph is the pixel output for one glyph. Exactly one of Mask
// and Img is set for a non-empty glyph: Mask is a coverage mask for
// outline glyphs (tinted with the foreground color at composite time),
// Img carries the glyph's own colors for bitmap glyphs such as emoji.
// A glyph with neither set draws nothing (spaces, missing outlines).
type RasterGlyph struct {
	Mask *image.Alpha
	Img  image.Image

	// OffsetX, OffsetY position the bitmap's top-left corner relative
	// to the glyph's baseline origin. OffsetY is negative above the
	// baseline (the y axis points down).
	OffsetX, OffsetY int
}

// ColorGlyph reports whether the glyph carries its own colors.
func (g *RasterGlyph) ColorGlyph() bool { return g.Img != nil }

// Bounds returns the pixel size of the rasterized glyph.
func (g *RasterGlyph) Bounds() (w, h int) {
	switch {
	case g.Mask != nil:
		b := g.Mask.Bounds()
		return b.Dx(), b.Dy()
	case g.Img != nil:
		b := g.Img.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}

// Rasterizer renders individual glyphs to pixels for atlas upload.
// Outlines are loaded with x/image/font/sfnt and filled with
// x/image/vector; embedded bitmap glyphs (CBDT/sbix) are decoded and
// scaled to the requested em size. Parsed fonts are cached per face
// handle and the sfnt buffer is reused across calls, so a Rasterizer
// must not be shared between goroutines.
type Rasterizer struct {
	arena *shaping.FaceArena
	fonts map[shaping.FaceID]*sfnt.Font
	buf   sfnt.Buffer
}

// NewRasterizer returns a rasterizer resolving face handles through arena.
func NewRasterizer(arena *shaping.FaceArena) *Rasterizer {
	return &Rasterizer{
		arena: arena,
		fonts: make(map[shaping.FaceID]*sfnt.Font),
	}
}

// Rasterize renders glyph from the given face at pixelsPerEm.
// With binarize set, coverage is thresholded to full on/off pixels
// (aliased mode); otherwise the mask keeps grayscale antialiasing.
func (r *Rasterizer) Rasterize(id shaping.FaceID, glyph uint16, pixelsPerEm float32, binarize bool) (RasterGlyph, error) {
	face := r.arena.Face(id)
	if face == nil {
		return RasterGlyph{}, shaping.ErrUnknownFace
	}

	if data, ok := face.GlyphData(otf.GID(glyph)).(otf.GlyphBitmap); ok {
		if g, ok := r.rasterizeBitmap(id, data, pixelsPerEm); ok {
			return g, nil
		}
		// Undecodable bitmap formats fall through to the outline, which
		// may still exist as a monochrome fallback.
	}

	return r.rasterizeOutline(id, glyph, pixelsPerEm, binarize)
}

// Forget drops the cached parsed font for a face that left the arena.
func (r *Rasterizer) Forget(id shaping.FaceID) { delete(r.fonts, id) }

func (r *Rasterizer) font(id shaping.FaceID) (*sfnt.Font, error) {
	if f, ok := r.fonts[id]; ok {
		return f, nil
	}
	data := r.arena.Data(id)
	if data == nil {
		return nil, shaping.ErrUnknownFace
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("backend: parse face %d: %w", id, err)
	}
	r.fonts[id] = f
	return f, nil
}

func (r *Rasterizer) rasterizeOutline(id shaping.FaceID, glyph uint16, pixelsPerEm float32, binarize bool) (RasterGlyph, error) {
	f, err := r.font(id)
	if err != nil {
		return RasterGlyph{}, err
	}

	ppem := fixed.Int26_6(pixelsPerEm * 64)
	segments, err := f.LoadGlyph(&r.buf, sfnt.GlyphIndex(glyph), ppem, nil)
	if err != nil {
		if err == sfnt.ErrColoredGlyph {
			// Layered color formats without an embedded bitmap are not
			// rasterized; the glyph cell stays empty.
			return RasterGlyph{}, nil
		}
		return RasterGlyph{}, fmt.Errorf("backend: load glyph %d: %w", glyph, err)
	}
	if len(segments) == 0 {
		return RasterGlyph{}, nil
	}

	minX, minY, maxX, maxY := segmentBounds(segments)
	left := int(math.Floor(float64(minX)))
	top := int(math.Floor(float64(minY)))
	w := int(math.Ceil(float64(maxX))) - left
	h := int(math.Ceil(float64(maxY))) - top
	if w <= 0 || h <= 0 {
		return RasterGlyph{}, nil
	}

	ras := vector.NewRasterizer(w, h)
	dx, dy := -float32(left), -float32(top)
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			ras.MoveTo(f26(seg.Args[0].X)+dx, f26(seg.Args[0].Y)+dy)
		case sfnt.SegmentOpLineTo:
			ras.LineTo(f26(seg.Args[0].X)+dx, f26(seg.Args[0].Y)+dy)
		case sfnt.SegmentOpQuadTo:
			ras.QuadTo(
				f26(seg.Args[0].X)+dx, f26(seg.Args[0].Y)+dy,
				f26(seg.Args[1].X)+dx, f26(seg.Args[1].Y)+dy,
			)
		case sfnt.SegmentOpCubeTo:
			ras.CubeTo(
				f26(seg.Args[0].X)+dx, f26(seg.Args[0].Y)+dy,
				f26(seg.Args[1].X)+dx, f26(seg.Args[1].Y)+dy,
				f26(seg.Args[2].X)+dx, f26(seg.Args[2].Y)+dy,
			)
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	ras.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	if binarize {
		for i, a := range mask.Pix {
			if a >= 0x80 {
				mask.Pix[i] = 0xff
			} else {
				mask.Pix[i] = 0
			}
		}
	}

	return RasterGlyph{Mask: mask, OffsetX: left, OffsetY: top}, nil
}

// rasterizeBitmap decodes an embedded bitmap strike and scales it to
// the requested em size. ok is false when the format cannot be decoded.
func (r *Rasterizer) rasterizeBitmap(id shaping.FaceID, data otf.GlyphBitmap, pixelsPerEm float32) (RasterGlyph, bool) {
	if data.Format != otf.PNG && data.Format != otf.JPG {
		return RasterGlyph{}, false
	}
	src, _, err := image.Decode(bytes.NewReader(data.Data))
	if err != nil {
		return RasterGlyph{}, false
	}

	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return RasterGlyph{}, false
	}
	h := int(math.Round(float64(pixelsPerEm)))
	if h < 1 {
		h = 1
	}
	w := sb.Dx() * h / sb.Dy()
	if w < 1 {
		w = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)

	// Sit the bitmap on the baseline by the face ascent so it lines up
	// with outline glyphs of the same em size.
	top := -h
	if f, err := r.font(id); err == nil {
		if m, err := f.Metrics(&r.buf, fixed.Int26_6(pixelsPerEm*64), xfont.HintingNone); err == nil {
			top = -m.Ascent.Ceil()
		}
	}

	return RasterGlyph{Img: dst, OffsetY: top}, true
}

func segmentBounds(segments []sfnt.Segment) (minX, minY, maxX, maxY float32) {
	minX, minY = math.MaxFloat32, math.MaxFloat32
	maxX, maxY = -math.MaxFloat32, -math.MaxFloat32
	update := func(p fixed.Point26_6) {
		x, y := f26(p.X), f26(p.Y)
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo, sfnt.SegmentOpLineTo:
			update(seg.Args[0])
		case sfnt.SegmentOpQuadTo:
			update(seg.Args[0])
			update(seg.Args[1])
		case sfnt.SegmentOpCubeTo:
			update(seg.Args[0])
			update(seg.Args[1])
			update(seg.Args[2])
		}
	}
	return minX, minY, maxX, maxY
}

// f26 converts fixed.Int26_6 to float32 pixels.
func f26(x fixed.Int26_6) float32 {
	return float32(x) / 64.0
}
