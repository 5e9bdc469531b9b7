package termatlas

// Payload is the renderer-private frame snapshot. StartPaint fills it
// from the mutator's accumulated state under the caller's external
// serialization; afterwards the paint calls and Present operate on it
// exclusively, so the mutator may already accumulate the next frame's
// invalidations concurrently.
type Payload struct {
	// Settings is the value snapshot taken at the hand-off. Subsections
	// are replaced wholesale by the mutator, so the shared slices inside
	// (font faces, axes) are never mutated after the snapshot.
	Settings Settings

	// Rows holds one ShapedRow per terminal row.
	Rows []*ShapedRow

	// BackgroundBitmap and ForegroundBitmap hold one packed RGBA color
	// per cell, row-major.
	BackgroundBitmap []uint32
	ForegroundBitmap []uint32

	// CursorRect is the cursor's cell rectangle, empty when hidden.
	CursorRect Rect

	// DirtyRect bounds the cells that changed this frame. Union-only
	// within a frame; it never shrinks until the next hand-off.
	DirtyRect Rect

	// ScrollOffset is the applied scroll for this frame in rows,
	// positive when content moved down.
	ScrollOffset int
}

// cell returns the bitmap index for (x, y) on a cols-wide grid.
func cellIndex(x, y, cols int) int { return y*cols + x }

// resize adapts the payload to a new grid, dropping stale content.
// Returns true when anything was reallocated.
func (p *Payload) resize(cols, rows int) bool {
	if len(p.Rows) == rows && len(p.BackgroundBitmap) == cols*rows {
		return false
	}
	prev := p.Rows
	p.Rows = make([]*ShapedRow, rows)
	for i := range p.Rows {
		if i < len(prev) && prev[i] != nil {
			p.Rows[i] = prev[i]
			p.Rows[i].clear()
		} else {
			p.Rows[i] = &ShapedRow{}
		}
	}
	p.BackgroundBitmap = make([]uint32, cols*rows)
	p.ForegroundBitmap = make([]uint32, cols*rows)
	return true
}

// scrollRows shifts row contents and the cell bitmaps by offset rows.
// offset < 0 moves content up (row i+|offset| becomes row i), offset > 0
// moves it down. Rows scrolled out re-enter at the exposed edge cleared;
// rows outside the exposed range keep their storage untouched.
func (p *Payload) scrollRows(offset, cols int) {
	rows := len(p.Rows)
	if offset == 0 || rows == 0 {
		return
	}

	if offset < 0 {
		n := -offset
		scratch := append([]*ShapedRow(nil), p.Rows[:n]...)
		copy(p.Rows, p.Rows[n:])
		copy(p.Rows[rows-n:], scratch)
		for _, r := range p.Rows[rows-n:] {
			r.clear()
		}
		copy(p.BackgroundBitmap, p.BackgroundBitmap[n*cols:])
		copy(p.ForegroundBitmap, p.ForegroundBitmap[n*cols:])
	} else {
		n := offset
		scratch := append([]*ShapedRow(nil), p.Rows[rows-n:]...)
		copy(p.Rows[n:], p.Rows[:rows-n])
		copy(p.Rows, scratch)
		for _, r := range p.Rows[:n] {
			r.clear()
		}
		copy(p.BackgroundBitmap[n*cols:], p.BackgroundBitmap[:(rows-n)*cols])
		copy(p.ForegroundBitmap[n*cols:], p.ForegroundBitmap[:(rows-n)*cols])
	}
}
