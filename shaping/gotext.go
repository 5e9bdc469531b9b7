package shaping

import (
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	gotext "github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// GoTextShaper implements Shaper on go-text/typesetting's HarfBuzz port.
//
// Glyph indices do not depend on the requested size, so Shape runs
// HarfBuzz in design units (size = units per em) and Place scales the
// resulting advances and offsets to DIPs. The HarfbuzzShaper instances
// are pooled since they carry internal mutable buffers and are not safe
// for concurrent use.
type GoTextShaper struct {
	arena *FaceArena

	shaperPool sync.Pool

	// pending holds the output of the last Shape call; Place consumes
	// it. Valid only under the mutator role's serialization.
	pending    gotext.Output
	pendingRun ScriptRun
	pendingID  FaceID

	// scratch for MapFallbackFont, reused across the per-row hot loop.
	faceScratch []*font.Face
	idScratch   []FaceID
}

// NewGoTextShaper returns a shaper resolving face handles through arena.
func NewGoTextShaper(arena *FaceArena) *GoTextShaper {
	return &GoTextShaper{
		arena: arena,
		shaperPool: sync.Pool{
			New: func() any {
				return &gotext.HarfbuzzShaper{}
			},
		},
	}
}

// MapFallbackFont implements Shaper. Coverage is decided by each face's
// nominal glyph table, the same rule go-text uses to split inputs across
// fallback fonts.
func (s *GoTextShaper) MapFallbackFont(text []rune, position int, sel Selection) (FaceID, int, float32, error) {
	if position >= len(text) {
		return 0, 0, 1, nil
	}
	rest := text[position:]

	faces := s.faceScratch[:0]
	ids := s.idScratch[:0]
	for _, id := range sel.Faces {
		if f := s.arena.Face(id); f != nil {
			faces = append(faces, f)
			ids = append(ids, id)
		}
	}
	s.faceScratch, s.idScratch = faces, ids
	if len(faces) == 0 {
		return 0, len(rest), 1, nil
	}

	input := gotext.Input{
		Text:     rest,
		RunStart: 0,
		RunEnd:   len(rest),
	}
	split := gotext.SplitByFontGlyphs(input, faces)
	if len(split) == 0 {
		return 0, len(rest), 1, nil
	}

	first := split[0]
	mapped := first.RunEnd - first.RunStart
	if mapped <= 0 {
		mapped = 1
	}

	id := FaceID(0)
	for i, f := range faces {
		if f == first.Face {
			id = ids[i]
			break
		}
	}
	// SplitByFontGlyphs assigns uncovered runes to the first face rather
	// than reporting a miss. Treat a segment whose first rune has no
	// nominal glyph as unmapped; the engine skips those characters.
	if id != 0 {
		if _, ok := first.Face.NominalGlyph(rest[0]); !ok {
			id = 0
		}
	}
	return id, mapped, 1, nil
}

// ClassifyComplexity implements Shaper.
func (s *GoTextShaper) ClassifyComplexity(text []rune, id FaceID, glyphs []uint16) (bool, int, error) {
	if len(text) == 0 {
		return true, 0, nil
	}
	if len(glyphs) < len(text) {
		return false, 0, &InsufficientBufferError{Needed: len(text)}
	}
	face := s.arena.Face(id)
	if face == nil {
		return false, len(text), ErrUnknownFace
	}

	simple := s.runeIsSimple(face, text[0])
	n := 1
	if simple {
		gid, _ := face.NominalGlyph(text[0])
		glyphs[0] = uint16(gid)
	}
	for n < len(text) && s.runeIsSimple(face, text[n]) == simple {
		if simple {
			gid, _ := face.NominalGlyph(text[n])
			glyphs[n] = uint16(gid)
		}
		n++
	}
	return simple, n, nil
}

func (s *GoTextShaper) runeIsSimple(face *font.Face, r rune) bool {
	if !isSimpleRune(r) {
		return false
	}
	gid, ok := face.NominalGlyph(r)
	// Glyph indices are stored as uint16 throughout the row pipeline.
	return ok && gid <= 0xffff
}

// Shape implements Shaper.
func (s *GoTextShaper) Shape(text []rune, run ScriptRun, id FaceID, buf *Buffers) (int, error) {
	face := s.arena.Face(id)
	if face == nil {
		return 0, ErrUnknownFace
	}
	if run.Length <= 0 || run.Position < 0 || run.Position+run.Length > len(text) {
		return 0, nil
	}
	if len(buf.ClusterMap) < run.Length+1 {
		return 0, &InsufficientBufferError{Needed: run.Length + 1}
	}

	dir := di.DirectionLTR
	if run.RTL {
		dir = di.DirectionRTL
	}
	input := gotext.Input{
		Text:      text[run.Position : run.Position+run.Length],
		RunStart:  0,
		RunEnd:    run.Length,
		Direction: dir,
		Face:      face,
		Size:      fixed.I(int(face.Upem())),
		Script:    run.Script,
		Language:  language.NewLanguage("en"),
	}

	hb := s.shaperPool.Get().(*gotext.HarfbuzzShaper)
	out := hb.Shape(input)
	s.shaperPool.Put(hb)

	// The engine's row pipeline is strictly column-ordered: normalize RTL
	// output to logical (ascending cluster) glyph order. Cell positions
	// come from the cluster map, not from visual reordering.
	if run.RTL {
		reverseGlyphs(out.Glyphs)
	}

	n := len(out.Glyphs)
	if len(buf.GlyphIndices) < n || len(buf.GlyphProps) < n {
		return 0, &InsufficientBufferError{Needed: n}
	}

	fillClusterMap(buf.ClusterMap, out.Glyphs, run.Length)
	for i, g := range out.Glyphs {
		buf.GlyphIndices[i] = uint16(g.GlyphID)
		var p GlyphProp
		if i == 0 || g.ClusterIndex != out.Glyphs[i-1].ClusterIndex {
			p |= GlyphPropClusterStart
		}
		if g.XAdvance == 0 {
			p |= GlyphPropDiacritic
		}
		buf.GlyphProps[i] = p
	}

	s.pending = out
	s.pendingRun = run
	s.pendingID = id
	return n, nil
}

// Place implements Shaper.
func (s *GoTextShaper) Place(text []rune, run ScriptRun, id FaceID, emSize float32, glyphCount int, buf *Buffers) error {
	if run != s.pendingRun || id != s.pendingID || glyphCount != len(s.pending.Glyphs) {
		return ErrPlaceWithoutShape
	}
	if len(buf.Advances) < glyphCount || len(buf.Offsets) < glyphCount {
		return &InsufficientBufferError{Needed: glyphCount}
	}
	face := s.arena.Face(id)
	if face == nil {
		return ErrUnknownFace
	}

	// Shape ran in design units; scale to DIPs here.
	scale := emSize / float32(face.Upem())
	for i, g := range s.pending.Glyphs {
		buf.Advances[i] = fixedToFloat(g.XAdvance) * scale
		buf.Offsets[i] = GlyphOffset{
			Advance:  fixedToFloat(g.XOffset) * scale,
			Ascender: fixedToFloat(g.YOffset) * scale,
		}
	}
	return nil
}

// GlyphDesignMetrics implements Shaper.
func (s *GoTextShaper) GlyphDesignMetrics(id FaceID, glyph uint16) (Metrics, error) {
	face := s.arena.Face(id)
	if face == nil {
		return Metrics{}, ErrUnknownFace
	}
	m := Metrics{
		AdvanceWidth: face.HorizontalAdvance(font.GID(glyph)),
		UnitsPerEm:   face.Upem(),
	}
	if ext, ok := face.GlyphExtents(font.GID(glyph)); ok {
		m.LeftSideBearing = ext.XBearing
	}
	return m, nil
}

// fillClusterMap writes the character-to-first-glyph map for a run of
// textLen characters, including the past-the-end entry cm[textLen].
// Glyphs must be in ascending cluster order.
func fillClusterMap(cm []uint16, glyphs []gotext.Glyph, textLen int) {
	if len(glyphs) == 0 {
		for i := 0; i <= textLen; i++ {
			cm[i] = 0
		}
		return
	}
	for gi := 0; gi < len(glyphs); {
		c0 := glyphs[gi].ClusterIndex
		next := gi + 1
		for next < len(glyphs) && glyphs[next].ClusterIndex == c0 {
			next++
		}
		c1 := textLen
		if next < len(glyphs) {
			c1 = glyphs[next].ClusterIndex
		}
		for c := c0; c < c1 && c < textLen; c++ {
			cm[c] = uint16(gi)
		}
		gi = next
	}
	cm[textLen] = uint16(len(glyphs))
}

func reverseGlyphs(glyphs []gotext.Glyph) {
	for i, j := 0, len(glyphs)-1; i < j; i, j = i+1, j-1 {
		glyphs[i], glyphs[j] = glyphs[j], glyphs[i]
	}
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64.0
}
