package termatlas

import "github.com/gogpu/termatlas/shaping"

// Generation is a monotonically increasing version number attached to a
// settings subsection. Consumers cache the value they last acted on and
// rebuild dependent resources exactly when it differs.
type Generation uint32

// Generational pairs a settings subsection with its generation counter.
// Any mutation must go through Write so the counter is bumped as part of
// the same externally-serialized step; the zero Generation is reserved
// for "never seen" consumers.
type Generational[T any] struct {
	gen Generation
	val T
}

// NewGenerational returns v at generation 1, so that consumers starting
// from the zero Generation observe an initial change.
func NewGenerational[T any](v T) Generational[T] {
	return Generational[T]{gen: 1, val: v}
}

// Generation returns the current generation counter.
func (g *Generational[T]) Generation() Generation { return g.gen }

// Get returns the current value for reading. Callers must not retain the
// pointer across a Write.
func (g *Generational[T]) Get() *T { return &g.val }

// Write applies mutate to the value and bumps the generation.
// Callers that cannot cheaply tell whether the mutation is a no-op should
// compare first; Write always counts as a change.
func (g *Generational[T]) Write(mutate func(*T)) {
	mutate(&g.val)
	g.gen++
}

// TargetSettings describes the output surface. A generation change forces
// the renderer to recreate its backend.
type TargetSettings struct {
	TransparentBackground bool
	SoftwareRendering     bool
}

// FontAxis is an OpenType variation axis value, e.g. {"wght", 700}.
type FontAxis struct {
	Tag   string
	Value float32
}

// FontSettings describes the font stack and the cell metrics derived from
// it. A generation change invalidates every glyph the renderer has cached:
// face identities from the previous generation are no longer valid.
type FontSettings struct {
	// Faces is the ordered fallback chain, base face first. The handles
	// come from the shaping.FaceArena the engine was built with.
	Faces []shaping.FaceID

	Family     string
	SizeInDIP  float32
	DPI        int
	Weight     int
	Axes       []FontAxis
	CellSize   Size // in pixels
	Baseline   int  // in pixels from the cell top
	Underline  LinePlacement
	Strikethru LinePlacement
	ThinLine   int
}

// LinePlacement positions a decoration line inside the cell.
type LinePlacement struct {
	Position  int
	Thickness int
}

// CursorShape selects the cursor glyph drawn by the backend.
type CursorShape uint16

const (
	CursorLegacy CursorShape = iota
	CursorVerticalBar
	CursorUnderscore
	CursorEmptyBox
	CursorFullBox
	CursorDoubleUnderscore
)

// CursorSettings describes the cursor. Comparable, so callers can skip
// spurious generation bumps.
type CursorSettings struct {
	Color         uint32
	Shape         CursorShape
	HeightPercent uint8
}

// AntialiasMode selects how glyphs are antialiased when rasterized.
type AntialiasMode uint8

const (
	AntialiasGrayscale AntialiasMode = iota
	AntialiasSubpixel
	AntialiasNone
)

// MiscSettings collects the remaining render-affecting options.
type MiscSettings struct {
	BackgroundColor  uint32
	SelectionColor   uint32
	Antialiasing     AntialiasMode
	CustomShaderPath string
	RetroEffect      bool
}

// Settings is the full, independently versioned engine configuration.
// The mutator owns it; the renderer receives a value copy at the
// StartPaint hand-off and compares generations against its own records.
type Settings struct {
	Target Generational[TargetSettings]
	Font   Generational[FontSettings]
	Cursor Generational[CursorSettings]
	Misc   Generational[MiscSettings]

	// TargetSize is the surface size in pixels, CellCount the grid size.
	// Both are versioned through Target and Font indirectly: changing
	// either goes through SetWindowSize/UpdateFont which recompute them.
	TargetSize Size
	CellCount  Size
}

// NewSettings returns settings with every subsection at generation 1 and
// conservative defaults matching a classic terminal.
func NewSettings() Settings {
	return Settings{
		Target: NewGenerational(TargetSettings{}),
		Font:   NewGenerational(FontSettings{SizeInDIP: 12, DPI: 96, Weight: 400, CellSize: Size{Width: 8, Height: 16}, Baseline: 12}),
		Cursor: NewGenerational(CursorSettings{Color: 0xffffffff, HeightPercent: 20}),
		Misc:   NewGenerational(MiscSettings{SelectionColor: 0x7fffffff}),
	}
}

// fontDependents caches values derived from the font subsection, rebuilt
// whenever its generation changes.
type fontDependents struct {
	dipPerPixel float32
	pixelPerDIP float32
	cellSizeDIP [2]float32
}

func computeFontDependents(f *FontSettings) fontDependents {
	const defaultDPI = 96
	dpi := f.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	d := fontDependents{
		dipPerPixel: float32(defaultDPI) / float32(dpi),
		pixelPerDIP: float32(dpi) / float32(defaultDPI),
	}
	d.cellSizeDIP[0] = float32(f.CellSize.Width) * d.dipPerPixel
	d.cellSizeDIP[1] = float32(f.CellSize.Height) * d.dipPerPixel
	return d
}
