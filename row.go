package termatlas

import "github.com/gogpu/termatlas/shaping"

// GridLines is the set of decoration lines drawn over one column range.
type GridLines uint16

const (
	GridLineLeft GridLines = 1 << iota
	GridLineTop
	GridLineRight
	GridLineBottom
	GridLineUnderline
	GridLineDoubleUnderline
	GridLineStrikethrough
	// GridLineHyperlink marks a hovered hyperlink; it promotes to an
	// underline even when the cell has none of its own.
	GridLineHyperlink
)

// FontMapping tags a contiguous glyph range of a row with the face and
// em size it was shaped with. The mappings of a row partition its glyph
// sequence in ascending order with no gaps or overlaps.
type FontMapping struct {
	Face   shaping.FaceID
	EmSize float32 // DIPs, fallback scale applied
	// GlyphsFrom, GlyphsTo index the row's glyph arrays, half-open.
	GlyphsFrom, GlyphsTo int
}

// LineRange is one grid-line paint command attached to a row.
type LineRange struct {
	// From, To are columns, half-open.
	From, To int
	Lines    GridLines
	Color    uint32
}

// ShapedRow is the shaped output for one terminal row: parallel glyph
// arrays partitioned by font mappings, plus the row's decoration and
// selection state. The mutator rebuilds invalidated rows in place each
// paint cycle; between cycles the renderer reads them without copying.
type ShapedRow struct {
	GlyphIndices  []uint16
	GlyphAdvances []float32 // DIPs
	GlyphOffsets  []shaping.GlyphOffset
	Colors        []uint32 // packed RGBA foreground per glyph

	Mappings       []FontMapping
	GridLineRanges []LineRange

	// PenStart is the x position in DIPs where the first glyph begins,
	// nonzero when the row's first painted cluster sits past column 0.
	PenStart float32

	// SelectionFrom, SelectionTo span the selected columns, half-open.
	// An empty span (From >= To) means no selection on this row.
	SelectionFrom, SelectionTo int
}

// GlyphCount returns the number of shaped glyphs in the row.
func (r *ShapedRow) GlyphCount() int { return len(r.GlyphIndices) }

// clear empties the row for repainting, keeping allocations.
func (r *ShapedRow) clear() {
	r.GlyphIndices = r.GlyphIndices[:0]
	r.GlyphAdvances = r.GlyphAdvances[:0]
	r.GlyphOffsets = r.GlyphOffsets[:0]
	r.Colors = r.Colors[:0]
	r.Mappings = r.Mappings[:0]
	r.GridLineRanges = r.GridLineRanges[:0]
	r.PenStart = 0
	r.SelectionFrom = 0
	r.SelectionTo = 0
}
