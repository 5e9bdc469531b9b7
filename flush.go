package termatlas

import (
	"errors"

	"github.com/gogpu/termatlas/shaping"
)

// maxShapeRetries bounds the grow-and-retry loop around Shape. A row
// that still reports insufficient buffers afterwards is skipped.
const maxShapeRetries = 8

// flushRow shapes the accumulated characters of the current row into
// its ShapedRow. It runs at every flush boundary; an empty accumulation
// is a no-op. The row assembly keeps its position so accumulation can
// continue in the same row after an attribute change.
func (e *Engine) flushRow() error {
	r := &e.r
	a := &r.row
	if len(a.text) == 0 {
		return nil
	}
	defer a.resetText()

	p := &e.p
	row := p.Rows[a.y]
	a.columns = append(a.columns, a.col) // past-the-end sentinel

	f := p.Settings.Font.Get()
	sel := shaping.Selection{Faces: f.Faces, Bold: r.bold, Italic: r.italic}
	cellWidth := r.deps.cellSizeDIP[0]
	flushGlyphs := row.GlyphCount()
	flushMappings := len(row.Mappings)

	if row.GlyphCount() == 0 {
		row.PenStart = float32(a.columns[0]) * cellWidth
	}

	for pos := 0; pos < len(a.text); {
		face, mapped, scale, err := e.shaper.MapFallbackFont(a.text, pos, sel)
		if err != nil {
			return err
		}
		if mapped < 1 {
			mapped = 1
		}
		if face == 0 {
			// No face in the chain covers these characters; they
			// contribute zero glyphs.
			pos += mapped
			continue
		}
		emSize := f.SizeInDIP * scale
		glyphsBefore := row.GlyphCount()

		for off := 0; off < mapped; {
			span := a.text[pos+off : pos+mapped]
			if len(r.glyphScratch) < len(span) {
				r.glyphScratch = make([]uint16, shaping.Grow15(len(r.glyphScratch), len(span)))
			}
			simple, n, err := e.shaper.ClassifyComplexity(span, face, r.glyphScratch)
			if err != nil {
				return err
			}
			if simple {
				e.appendSimple(row, pos+off, n, face, emSize, cellWidth)
			} else if err := e.appendComplex(row, pos+off, n, face, emSize, cellWidth); err != nil {
				var sbe *ShapingBufferError
				if errors.As(err, &sbe) {
					// Shaping failure is fatal for this row only. Undo
					// everything this flush appended so no glyph is left
					// without a covering font mapping.
					rollbackRow(row, flushGlyphs)
					row.Mappings = row.Mappings[:flushMappings]
					Logger().Warn("termatlas: row shaping skipped",
						"row", a.y, "attempts", sbe.Attempts, "needed", sbe.Needed)
					return nil
				}
				return err
			}
			off += n
		}

		if g := row.GlyphCount(); g > glyphsBefore {
			row.Mappings = append(row.Mappings, FontMapping{
				Face:       face,
				EmSize:     emSize,
				GlyphsFrom: glyphsBefore,
				GlyphsTo:   g,
			})
		}
		pos += mapped
	}
	return nil
}

// appendSimple emits one glyph per character with cell-grid advances.
// The cell width of a column group goes to its last character; earlier
// characters packed into the same column advance by zero.
func (e *Engine) appendSimple(row *ShapedRow, charPos, n int, face shaping.FaceID, emSize, cellWidth float32) {
	r := &e.r
	a := &r.row
	for j := 0; j < n; j++ {
		i := charPos + j
		glyph := r.glyphScratch[j]
		var adv float32
		if r.proportional {
			if m, err := e.shaper.GlyphDesignMetrics(face, glyph); err == nil && m.UnitsPerEm > 0 {
				adv = m.AdvanceWidth / float32(m.UnitsPerEm) * emSize
			}
		} else if a.columns[i+1] > a.columns[i] {
			adv = float32(a.columns[i+1]-a.columns[i]) * cellWidth
		}
		row.GlyphIndices = append(row.GlyphIndices, glyph)
		row.GlyphAdvances = append(row.GlyphAdvances, adv)
		row.GlyphOffsets = append(row.GlyphOffsets, shaping.GlyphOffset{})
		row.Colors = append(row.Colors, e.colorAt(i))
	}
}

// appendComplex runs script analysis, shaping and placement for the
// characters [charPos, charPos+n), then snaps every character cluster
// back onto the cell grid: the signed difference between the cluster's
// expected width and its summed advances lands on its last glyph, so
// columns never drift regardless of font metrics.
func (e *Engine) appendComplex(row *ShapedRow, charPos, n int, face shaping.FaceID, emSize, cellWidth float32) error {
	r := &e.r
	a := &r.row
	runs, err := e.shaper.AnalyzeScript(a.text, charPos, n)
	if err != nil {
		return err
	}
	rollback := row.GlyphCount()

	for _, run := range runs {
		buf := &r.buf
		buf.Ensure(run.Length, run.Length)

		var glyphCount int
		attempts := 0
		for {
			glyphCount, err = e.shaper.Shape(a.text, run, face, buf)
			if err == nil {
				break
			}
			var ib *shaping.InsufficientBufferError
			if !errors.As(err, &ib) {
				rollbackRow(row, rollback)
				return err
			}
			attempts++
			if attempts >= maxShapeRetries {
				rollbackRow(row, rollback)
				return &ShapingBufferError{Row: a.y, Attempts: attempts, Needed: ib.Needed}
			}
			buf.Ensure(run.Length, ib.Needed)
		}
		if err := e.shaper.Place(a.text, run, face, emSize, glyphCount, buf); err != nil {
			rollbackRow(row, rollback)
			return err
		}

		base := row.GlyphCount()
		for g := 0; g < glyphCount; g++ {
			row.GlyphIndices = append(row.GlyphIndices, buf.GlyphIndices[g])
			row.GlyphAdvances = append(row.GlyphAdvances, buf.Advances[g])
			row.GlyphOffsets = append(row.GlyphOffsets, buf.Offsets[g])
			row.Colors = append(row.Colors, 0)
		}

		// Walk the cluster map: chars of one cluster share the index of
		// its first glyph, the sentinel entry closes the last cluster.
		cm := buf.ClusterMap
		for c0 := 0; c0 < run.Length; {
			g0 := int(cm[c0])
			c1 := c0 + 1
			for c1 < run.Length && int(cm[c1]) == g0 {
				c1++
			}
			g1 := int(cm[c1])

			color := e.colorAt(run.Position + c0)
			for g := g0; g < g1; g++ {
				row.Colors[base+g] = color
			}
			if !r.proportional && g1 > g0 {
				expected := float32(a.columns[run.Position+c1]-a.columns[run.Position+c0]) * cellWidth
				var actual float32
				for g := g0; g < g1; g++ {
					actual += row.GlyphAdvances[base+g]
				}
				row.GlyphAdvances[base+g1-1] += expected - actual
			}
			c0 = c1
		}
	}
	return nil
}

func rollbackRow(row *ShapedRow, n int) {
	row.GlyphIndices = row.GlyphIndices[:n]
	row.GlyphAdvances = row.GlyphAdvances[:n]
	row.GlyphOffsets = row.GlyphOffsets[:n]
	row.Colors = row.Colors[:n]
}

// colorAt returns the foreground color at character i's column.
func (e *Engine) colorAt(i int) uint32 {
	a := &e.r.row
	cols := e.p.Settings.CellCount.Width
	col := clamp(a.columns[i], 0, cols-1)
	return e.p.ForegroundBitmap[cellIndex(col, a.y, cols)]
}
