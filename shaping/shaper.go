package shaping

import (
	"errors"
	"fmt"

	"github.com/go-text/typesetting/language"
)

// ErrInsufficientBuffer is the retryable condition reported when a
// caller-owned output buffer is too small for the produced glyphs.
// Callers grow the buffers (by at least 1.5x) and retry.
var ErrInsufficientBuffer = errors.New("shaping: insufficient buffer")

// InsufficientBufferError carries the size the failed call required.
// It unwraps to ErrInsufficientBuffer.
type InsufficientBufferError struct {
	Needed int
}

func (e *InsufficientBufferError) Error() string {
	return fmt.Sprintf("shaping: insufficient buffer, need %d entries", e.Needed)
}

func (e *InsufficientBufferError) Unwrap() error { return ErrInsufficientBuffer }

// ErrPlaceWithoutShape is returned by Place when it does not follow a
// successful Shape call for the same run.
var ErrPlaceWithoutShape = errors.New("shaping: Place must follow Shape for the same run")

// Selection describes what the engine wants a character mapped to:
// an ordered fallback chain plus the attribute state of the current row.
type Selection struct {
	// Faces is the fallback chain, base face first.
	Faces []FaceID
	Bold  bool
	Italic bool
}

// ScriptRun is a maximal run of text sharing one script and bidi level.
type ScriptRun struct {
	// Position is the rune offset of the run within the analyzed text.
	Position int
	Length   int
	Script   language.Script
	// RTL is set for odd bidi embedding levels.
	RTL bool
}

// GlyphOffset is the placement adjustment of one glyph relative to the
// pen position: Advance along the baseline, Ascender perpendicular to it.
type GlyphOffset struct {
	Advance  float32
	Ascender float32
}

// GlyphProp carries per-glyph shaping properties.
type GlyphProp uint16

const (
	// GlyphPropClusterStart marks the first glyph of a character cluster.
	GlyphPropClusterStart GlyphProp = 1 << iota
	// GlyphPropDiacritic marks zero-width combining glyphs.
	GlyphPropDiacritic
)

// Metrics are design-space measurements of a single glyph.
// Values are in font units; scale by emSize/UnitsPerEm for DIPs.
type Metrics struct {
	AdvanceWidth    float32
	LeftSideBearing float32
	UnitsPerEm      uint16
}

// Buffers is the caller-owned scratch space Shape and Place write into.
// The engine reuses one Buffers value across rows, growing slices only
// when a call reports ErrInsufficientBuffer.
//
// After a successful Shape of a run with length n producing g glyphs:
// ClusterMap[0..n] maps each character to the first glyph of its cluster
// with ClusterMap[n] == g, and GlyphIndices/GlyphProps[0..g) are filled.
// After Place, Advances/Offsets[0..g) are filled in DIPs.
type Buffers struct {
	ClusterMap   []uint16
	GlyphIndices []uint16
	GlyphProps   []GlyphProp
	Advances     []float32
	Offsets      []GlyphOffset
}

// Grow15 returns a capacity grown by at least 1.5x and at least need.
// Shared growth rule for all shaping scratch buffers.
func Grow15(have, need int) int {
	n := have + have>>1
	if n < need {
		n = need
	}
	return n
}

// Ensure grows the buffers so that a Shape/Place of a run with chars
// characters producing up to glyphs glyphs fits, applying the Grow15
// rule. Existing contents are not preserved.
func (b *Buffers) Ensure(chars, glyphs int) {
	if need := chars + 1; len(b.ClusterMap) < need {
		b.ClusterMap = make([]uint16, Grow15(len(b.ClusterMap), need))
	}
	if len(b.GlyphIndices) < glyphs {
		n := Grow15(len(b.GlyphIndices), glyphs)
		b.GlyphIndices = make([]uint16, n)
		b.GlyphProps = make([]GlyphProp, n)
		b.Advances = make([]float32, n)
		b.Offsets = make([]GlyphOffset, n)
	}
}

// Shaper is the text-shaping capability the engine consumes.
//
// Implementations are not required to be safe for concurrent use: all
// calls happen under the mutator role's external serialization.
type Shaper interface {
	// MapFallbackFont maps the longest possible prefix of text[position:]
	// to a single face from the selection. It returns the face handle
	// (zero when no face in the chain covers the prefix), the mapped
	// length in runes (always >= 1 for non-empty input), and the size
	// scale to apply for that face.
	MapFallbackFont(text []rune, position int, sel Selection) (FaceID, int, float32, error)

	// ClassifyComplexity splits off the longest prefix of text that is
	// uniformly simple or uniformly complex for the given face. For a
	// simple prefix it also writes the nominal glyph index of each
	// character into glyphs, which must hold at least len(text) entries.
	ClassifyComplexity(text []rune, id FaceID, glyphs []uint16) (simple bool, length int, err error)

	// AnalyzeScript splits text[position:position+length] into maximal
	// script runs with resolved bidi levels.
	AnalyzeScript(text []rune, position, length int) ([]ScriptRun, error)

	// Shape shapes one script run and fills buf.ClusterMap,
	// buf.GlyphIndices and buf.GlyphProps, returning the glyph count.
	// Reports *InsufficientBufferError when the buffers are too small.
	Shape(text []rune, run ScriptRun, id FaceID, buf *Buffers) (int, error)

	// Place computes advances and offsets in DIPs for the glyphs of the
	// immediately preceding Shape call with the same run and face.
	// emSize is the font size in DIPs.
	Place(text []rune, run ScriptRun, id FaceID, emSize float32, glyphCount int, buf *Buffers) error

	// GlyphDesignMetrics reports design-space metrics for one glyph.
	GlyphDesignMetrics(id FaceID, glyph uint16) (Metrics, error)
}
