package termatlas

// Point is a position on the cell grid, x in columns and y in rows.
type Point struct {
	X, Y int
}

// Size is a width/height pair, in cells or pixels depending on context.
type Size struct {
	Width, Height int
}

// Rect is a half-open rectangle [Left,Right) x [Top,Bottom) on the cell grid.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool {
	return r.Left >= r.Right || r.Top >= r.Bottom
}

// Union returns the bounding rectangle of r and o.
// An empty rectangle acts as the identity element.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Clamp restricts the rectangle to the grid [0,cols) x [0,rows),
// preserving the Left<=Right and Top<=Bottom ordering.
//
// Invalidation inputs may race a concurrent resize, so they are never
// trusted to be in range.
func (r Rect) Clamp(cols, rows int) Rect {
	r.Left = clamp(r.Left, 0, cols)
	r.Top = clamp(r.Top, 0, rows)
	r.Right = clamp(r.Right, r.Left, cols)
	r.Bottom = clamp(r.Bottom, r.Top, rows)
	return r
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
