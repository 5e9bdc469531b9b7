package termatlas

import "math"

// rowRange is a half-open dirty row interval. The empty value used for
// "nothing invalid" is {max, 0} so that any union replaces it.
type rowRange struct {
	from, to int
}

func noRows() rowRange { return rowRange{from: math.MaxInt32, to: 0} }

func (r rowRange) empty() bool { return r.from >= r.to }

func (r rowRange) union(o rowRange) rowRange {
	if o.empty() {
		return r
	}
	if r.empty() {
		return o
	}
	return rowRange{from: min(r.from, o.from), to: max(r.to, o.to)}
}

func (r rowRange) clamp(rows int) rowRange {
	if r.empty() {
		return noRows()
	}
	r.from = clamp(r.from, 0, rows)
	r.to = clamp(r.to, r.from, rows)
	return r
}

// invalidationState is the mutator-role accumulation of damage between
// two StartPaint hand-offs. All fields reset at the hand-off.
type invalidationState struct {
	rows         rowRange
	cursorArea   Rect
	scrollOffset int
	all          bool
	title        bool
}

func newInvalidationState() invalidationState {
	return invalidationState{rows: noRows()}
}

// Invalidate marks a cell rectangle as needing redraw. The input is
// clamped at the hand-off, not here, since the grid may resize before
// the next frame.
func (e *Engine) Invalidate(r Rect) {
	e.api.rows = e.api.rows.union(rowRange{from: r.Top, to: r.Bottom})
}

// InvalidateRows marks the half-open row interval [from, to) dirty.
func (e *Engine) InvalidateRows(from, to int) {
	e.api.rows = e.api.rows.union(rowRange{from: from, to: to})
}

// InvalidateCursor marks the cursor's previous cell area dirty so a
// moved or hidden cursor leaves no trail.
func (e *Engine) InvalidateCursor(r Rect) {
	e.api.cursorArea = e.api.cursorArea.Union(r)
}

// InvalidateAll forces a full-grid redraw: background or palette
// changes, an active custom shader, or an explicit host request.
func (e *Engine) InvalidateAll() {
	e.api.all = true
}

// InvalidateScroll records that the cell contents moved by delta rows
// (delta.Y > 0 moves content down). Any horizontal component cannot be
// expressed as a row shift and degrades to a full redraw. The newly
// exposed rows become dirty; when nothing was dirty yet the exposed
// range replaces the accumulator instead of widening a stale union.
func (e *Engine) InvalidateScroll(delta Point) {
	if delta.X != 0 {
		e.api.all = true
		return
	}
	if delta.Y == 0 {
		return
	}

	rows := e.settings.CellCount.Height
	offset := clamp(e.api.scrollOffset+delta.Y, -rows, rows)
	e.api.scrollOffset = offset

	var exposed rowRange
	if delta.Y < 0 {
		exposed = rowRange{from: rows + delta.Y, to: rows}
	} else {
		exposed = rowRange{from: 0, to: delta.Y}
	}
	if e.api.rows.empty() {
		e.api.rows = exposed
	} else {
		// The pre-existing dirty rows moved with the content.
		shifted := rowRange{from: e.api.rows.from + delta.Y, to: e.api.rows.to + delta.Y}
		e.api.rows = shifted.clamp(rows).union(exposed)
	}
}

// InvalidateTitle records that the window title changed; the host polls
// TitleChanged once per frame.
func (e *Engine) InvalidateTitle() {
	e.api.title = true
}

// TitleChanged reports and clears the pending title change.
func (e *Engine) TitleChanged() bool {
	t := e.api.title
	e.api.title = false
	return t
}
