package termatlas

import (
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/backend"
	"github.com/gogpu/termatlas/shaping"
)

// Present renders the private snapshot through the configured backend.
// Device-loss-class failures discard all device-derived state (the
// glyph atlas included) and return an error unwrapping to
// ErrDeviceLost: skip this frame and retry the next cycle. Renderer
// role; never call concurrently with StartPaint or another Present.
func (e *Engine) Present(ctx context.Context) error {
	if e.closed {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r := &e.r
	if r.target.Kind() == backend.KindNone {
		return ErrNoSurface
	}
	if err := r.target.CheckDevice(); err != nil {
		e.resetDeviceState()
		return &DeviceLossError{Cause: err}
	}
	comp, err := r.target.Compositor()
	if err != nil {
		return ErrNoSurface
	}

	// An atlas reset mid-build invalidates every quad built so far;
	// rebuild against the fresh (possibly grown) surface. Two resets in
	// one frame mean the glyphs cannot coexist even at the size cap.
	var quads []backend.Quad
	for attempt := 0; ; attempt++ {
		var reset bool
		quads, reset, err = e.buildDrawList()
		if err != nil {
			return err
		}
		if !reset {
			break
		}
		if attempt == 2 {
			return fmt.Errorf("termatlas: glyph atlas thrashing, frame aborted")
		}
	}

	if !r.uploaded || r.uploadedGen != r.atlas.Generation() {
		if err := comp.UpdateAtlas(r.atlasSurface, r.atlas.Generation()); err != nil {
			e.resetDeviceState()
			return &DeviceLossError{Cause: err}
		}
		r.uploaded = true
		r.uploadedGen = r.atlas.Generation()
	}

	p := &e.p
	f := p.Settings.Font.Get()
	ch := f.CellSize.Height
	// The compositor repaints whole rows; widen the dirty bound to full
	// rows so overlapping glyph quads never double-blend.
	var dirtyPx image.Rectangle
	if !p.DirtyRect.Empty() {
		dirtyPx = image.Rect(0, p.DirtyRect.Top*ch, p.Settings.TargetSize.Width, p.DirtyRect.Bottom*ch)
	}
	frame := backend.Frame{
		TargetSize:     image.Pt(p.Settings.TargetSize.Width, p.Settings.TargetSize.Height),
		CellSize:       image.Pt(f.CellSize.Width, ch),
		Dirty:          dirtyPx,
		ScrollOffsetPx: p.ScrollOffset * ch,
		Background:     p.Settings.Misc.Get().BackgroundColor,
	}
	if err := comp.Composite(frame, quads); err != nil {
		e.resetDeviceState()
		return &DeviceLossError{Cause: err}
	}
	r.pacer.NotifyPresented()
	return nil
}

// WaitUntilCanRender blocks (bounded, at most 100ms) on the frame
// pacing signal before new rasterization work starts. At most one wait
// is consumed per presented frame. Renderer role.
func (e *Engine) WaitUntilCanRender(ctx context.Context) error {
	if e.closed {
		return ErrEngineClosed
	}
	return e.r.pacer.Wait(ctx)
}

// RequiresContinuousRedraw reports whether the host must drive frames
// continuously instead of on damage, which is the case while a custom
// pixel shader or the retro effect runs.
func (e *Engine) RequiresContinuousRedraw() bool {
	m := e.settings.Misc.Get()
	return m.RetroEffect || m.CustomShaderPath != ""
}

// SetProportionalMode disables cell-grid advance normalization and uses
// true font metrics instead. Glyph columns may drift off the cell grid;
// debug aid for inspecting raw shaper output.
func (e *Engine) SetProportionalMode(on bool) {
	e.r.proportional = on
}

// resetDeviceState is the device-loss fallback: every device-derived
// resource is dropped and the next cycle rebuilds from scratch. Only
// renderer-private state is written here; the full redraw reaches the
// invalidation accumulator at the next StartPaint hand-off.
func (e *Engine) resetDeviceState() {
	e.r.atlas.Clear()
	e.r.uploaded = false
	e.r.forceFullRedraw = true
}

// buildDrawList reduces the dirty rows of the snapshot to a quad list
// over the atlas, rasterizing missing glyphs on the way. reset reports
// that the atlas was cleared mid-build and the list must be rebuilt.
func (e *Engine) buildDrawList() (quads []backend.Quad, reset bool, err error) {
	r := &e.r
	p := &e.p
	f := p.Settings.Font.Get()
	misc := p.Settings.Misc.Get()
	cw, ch := f.CellSize.Width, f.CellSize.Height
	cols, rows := p.Settings.CellCount.Width, p.Settings.CellCount.Height
	ppd := r.deps.pixelPerDIP
	binarize := misc.Antialiasing == AntialiasNone

	e.ensureAtlasSurface()

	quads = r.quads[:0]
	defer func() { r.quads = quads[:0] }()

	top := clamp(p.DirtyRect.Top, 0, rows)
	bottom := clamp(p.DirtyRect.Bottom, 0, rows)

	for y := top; y < bottom; y++ {
		rowTop := y * ch
		base := cellIndex(0, y, cols)

		// Coalesce runs of equal background color into single quads.
		for x := 0; x < cols; {
			c := p.BackgroundBitmap[base+x]
			x2 := x + 1
			for x2 < cols && p.BackgroundBitmap[base+x2] == c {
				x2++
			}
			if c != 0 && c != misc.BackgroundColor {
				quads = append(quads, backend.Quad{
					Dst:     image.Rect(x*cw, rowTop, x2*cw, rowTop+ch),
					Color:   c,
					Shading: backend.ShadingBackground,
				})
			}
			x = x2
		}

		row := p.Rows[y]
		baseline := rowTop + f.Baseline
		pen := row.PenStart
		for _, m := range row.Mappings {
			ppem := m.EmSize * ppd
			for gi := m.GlyphsFrom; gi < m.GlyphsTo; gi++ {
				glyph := row.GlyphIndices[gi]
				entry, inserted := r.atlas.FindOrInsert(m.Face, glyph)
				if inserted {
					var didReset bool
					didReset, err = e.fillAtlasEntry(entry, m.Face, glyph, ppem, binarize)
					if err != nil {
						return nil, false, err
					}
					if didReset {
						return nil, true, nil
					}
				}
				if entry.W > 0 {
					off := row.GlyphOffsets[gi]
					gx := roundPx((pen+off.Advance)*ppd) + int(entry.OffsetX)
					gy := baseline - roundPx(off.Ascender*ppd) + int(entry.OffsetY)
					q := backend.Quad{
						Dst:     image.Rect(gx, gy, gx+int(entry.W), gy+int(entry.H)),
						Tex:     image.Rect(int(entry.X), int(entry.Y), int(entry.X)+int(entry.W), int(entry.Y)+int(entry.H)),
						Color:   row.Colors[gi],
						Shading: backend.ShadingText,
					}
					if entry.ColorGlyph {
						q.Shading = backend.ShadingPassthrough
					}
					quads = append(quads, q)
				}
				pen += row.GlyphAdvances[gi]
			}
		}

		quads = e.appendGridLineQuads(quads, row, f, rowTop, cw, ch)

		if row.SelectionTo > row.SelectionFrom {
			quads = append(quads, backend.Quad{
				Dst:     image.Rect(row.SelectionFrom*cw, rowTop, row.SelectionTo*cw, rowTop+ch),
				Color:   misc.SelectionColor,
				Shading: backend.ShadingSelection,
			})
		}
	}

	if !p.CursorRect.Empty() {
		quads = e.appendCursorQuads(quads, f, cw, ch)
	}
	return quads, false, nil
}

func (e *Engine) appendGridLineQuads(quads []backend.Quad, row *ShapedRow, f *FontSettings, rowTop, cw, ch int) []backend.Quad {
	thin := max(1, f.ThinLine)
	for _, lr := range row.GridLineRanges {
		x0, x1 := lr.From*cw, lr.To*cw
		line := func(dst image.Rectangle) {
			quads = append(quads, backend.Quad{Dst: dst, Color: lr.Color, Shading: backend.ShadingGridLine})
		}
		if lr.Lines&GridLineLeft != 0 {
			line(image.Rect(x0, rowTop, x0+thin, rowTop+ch))
		}
		if lr.Lines&GridLineTop != 0 {
			line(image.Rect(x0, rowTop, x1, rowTop+thin))
		}
		if lr.Lines&GridLineRight != 0 {
			line(image.Rect(x1-thin, rowTop, x1, rowTop+ch))
		}
		if lr.Lines&GridLineBottom != 0 {
			line(image.Rect(x0, rowTop+ch-thin, x1, rowTop+ch))
		}
		ut := max(1, f.Underline.Thickness)
		if lr.Lines&GridLineUnderline != 0 {
			line(image.Rect(x0, rowTop+f.Underline.Position, x1, rowTop+f.Underline.Position+ut))
		}
		if lr.Lines&GridLineDoubleUnderline != 0 {
			line(image.Rect(x0, rowTop+f.Underline.Position, x1, rowTop+f.Underline.Position+ut))
			second := f.Underline.Position + 2*ut
			line(image.Rect(x0, rowTop+second, x1, rowTop+second+ut))
		}
		if lr.Lines&GridLineStrikethrough != 0 {
			st := max(1, f.Strikethru.Thickness)
			line(image.Rect(x0, rowTop+f.Strikethru.Position, x1, rowTop+f.Strikethru.Position+st))
		}
	}
	return quads
}

func (e *Engine) appendCursorQuads(quads []backend.Quad, f *FontSettings, cw, ch int) []backend.Quad {
	p := &e.p
	cur := p.Settings.Cursor.Get()
	rect := p.CursorRect
	x0, y0 := rect.Left*cw, rect.Top*ch
	x1, y1 := rect.Right*cw, rect.Bottom*ch
	thin := max(1, f.ThinLine)
	ut := max(1, f.Underline.Thickness)

	add := func(dst image.Rectangle) {
		quads = append(quads, backend.Quad{Dst: dst, Color: cur.Color, Shading: backend.ShadingCursor})
	}
	switch cur.Shape {
	case CursorLegacy:
		h := ch * int(cur.HeightPercent) / 100
		if h < 1 {
			h = 1
		}
		add(image.Rect(x0, y1-h, x1, y1))
	case CursorVerticalBar:
		add(image.Rect(x0, y0, x0+thin, y1))
	case CursorUnderscore:
		add(image.Rect(x0, y0+f.Underline.Position, x1, y0+f.Underline.Position+ut))
	case CursorDoubleUnderscore:
		add(image.Rect(x0, y0+f.Underline.Position, x1, y0+f.Underline.Position+ut))
		add(image.Rect(x0, y1-ut, x1, y1))
	case CursorEmptyBox:
		add(image.Rect(x0, y0, x1, y0+thin))
		add(image.Rect(x0, y1-thin, x1, y1))
		add(image.Rect(x0, y0+thin, x0+thin, y1-thin))
		add(image.Rect(x1-thin, y0+thin, x1, y1-thin))
	default: // CursorFullBox
		add(image.Rect(x0, y0, x1, y1))
	}
	return quads
}

// fillAtlasEntry rasterizes a freshly inserted glyph and records its
// placement. reset reports the atlas had to clear to make room.
func (e *Engine) fillAtlasEntry(entry *atlas.Entry, face shaping.FaceID, glyph uint16, ppem float32, binarize bool) (reset bool, err error) {
	r := &e.r
	rg, rerr := r.raster.Rasterize(face, glyph, ppem, binarize)
	if rerr != nil {
		// The entry stays cached empty so the failure is not retried
		// every frame.
		Logger().Warn("termatlas: glyph rasterization failed",
			"face", face, "glyph", glyph, "err", rerr)
		entry.W, entry.H = 0, 0
		return false, nil
	}
	w, h := rg.Bounds()
	if w == 0 || h == 0 {
		entry.W, entry.H = 0, 0
		return false, nil
	}

	x, y, didReset, err := r.atlas.Place(w, h)
	if err != nil {
		return false, err
	}
	if didReset {
		e.ensureAtlasSurface()
		return true, nil
	}
	entry.X, entry.Y = uint16(x), uint16(y)
	entry.W, entry.H = uint16(w), uint16(h)
	entry.OffsetX, entry.OffsetY = int16(rg.OffsetX), int16(rg.OffsetY)
	entry.ColorGlyph = rg.ColorGlyph()
	e.blitGlyph(rg, x, y)
	r.uploaded = false
	return false, nil
}

// ensureAtlasSurface keeps the CPU-side atlas pixels in sync with the
// atlas dimensions and generation.
func (e *Engine) ensureAtlasSurface() {
	r := &e.r
	w, h := r.atlas.Size()
	if r.atlasSurface == nil || r.atlasSurface.Bounds().Dx() != w || r.atlasSurface.Bounds().Dy() != h {
		r.atlasSurface = image.NewRGBA(image.Rect(0, 0, w, h))
		r.surfaceGen = r.atlas.Generation()
		r.uploaded = false
		return
	}
	if r.surfaceGen != r.atlas.Generation() {
		clear(r.atlasSurface.Pix)
		r.surfaceGen = r.atlas.Generation()
		r.uploaded = false
	}
}

// blitGlyph copies a rasterized glyph into the atlas surface. Coverage
// masks are stored as premultiplied white so compositors can either
// tint them (software) or sample them as a stencil (GPU).
func (e *Engine) blitGlyph(rg backend.RasterGlyph, x, y int) {
	dst := e.r.atlasSurface
	if rg.Img != nil {
		b := rg.Img.Bounds()
		xdraw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), rg.Img, b.Min, xdraw.Src)
		return
	}
	mask := rg.Mask
	b := mask.Bounds()
	for yy := 0; yy < b.Dy(); yy++ {
		for xx := 0; xx < b.Dx(); xx++ {
			a := mask.Pix[yy*mask.Stride+xx]
			o := dst.PixOffset(x+xx, y+yy)
			dst.Pix[o] = a
			dst.Pix[o+1] = a
			dst.Pix[o+2] = a
			dst.Pix[o+3] = a
		}
	}
}

func roundPx(v float32) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
