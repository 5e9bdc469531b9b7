package termatlas

import (
	"errors"
	"image"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/backend"
	"github.com/gogpu/termatlas/shaping"
)

// Config configures an Engine. Zero fields take defaults: a fresh face
// arena, the go-text shaper, the default atlas sizing and no render
// target (Present fails with ErrNoSurface until one is set).
type Config struct {
	Arena  *shaping.FaceArena
	Shaper shaping.Shaper
	Target backend.Target
	Atlas  atlas.Config
}

// Engine turns per-row terminal paint commands into shaped, cached,
// atlas-backed glyph data and presents frames through a backend.
//
/// Concurrency contract: the engine distinguishes a mutator role
// (Invalidate*, Set*/Update* settings calls) and a renderer role
// (StartPaint, Paint*, EndPaint, Present, WaitUntilCanRender).
// StartPaint is the only cross-role synchronization point; the caller
// must hold its external serialization across every mutator call and
// across StartPaint itself. After StartPaint returns, the renderer
// operates on its private snapshot only, so mutator calls for the next
// frame may proceed concurrently. The renderer role itself is
// sequential: never run two renderer calls concurrently.
type Engine struct {
	arena  *shaping.FaceArena
	shaper shaping.Shaper

	// mutator-owned state, guarded by the caller's serialization
	settings Settings
	api      invalidationState
	// pendingTarget is a backend swap requested by the mutator; the
	// renderer adopts it at the StartPaint hand-off.
	pendingTarget *backend.Target

	// renderer-private state
	p Payload
	r renderState

	closed bool
}

type renderState struct {
	targetGen Generation
	fontGen   Generation
	cursorGen Generation
	miscGen   Generation
	deps      fontDependents

	atlas        *atlas.Atlas
	atlasSurface *image.RGBA
	surfaceGen   uint32 // atlas generation the surface pixels belong to
	uploaded     bool
	uploadedGen  uint32

	raster *backend.Rasterizer
	target backend.Target
	pacer  *backend.Pacer

	// forceFullRedraw is the renderer-private record of a device loss;
	// it folds into the invalidation state at the next hand-off instead
	// of touching the mutator's accumulator from the renderer role.
	forceFullRedraw bool

	row          rowAssembly
	buf          shaping.Buffers
	glyphScratch []uint16
	quads        []backend.Quad

	// current brush state
	fg, bg       uint32
	bold, italic bool

	// proportional disables cell-grid advance normalization (debug aid)
	proportional bool
}

// rowAssembly is the per-row scratch the paint calls accumulate into
// until a flush boundary (row switch, attribute change, EndPaint).
type rowAssembly struct {
	text []rune
	// columns holds the starting column of each character; the flush
	// appends the past-the-end column as a sentinel.
	columns []int
	y       int
	col     int
	active  bool
}

func (a *rowAssembly) resetText() {
	a.text = a.text[:0]
	a.columns = a.columns[:0]
}

// New returns an engine. Register font faces through Arena, configure
// them with UpdateFont, then drive paint cycles.
func New(cfg Config) *Engine {
	arena := cfg.Arena
	if arena == nil {
		arena = shaping.NewFaceArena()
	}
	sh := cfg.Shaper
	if sh == nil {
		sh = shaping.NewGoTextShaper(arena)
	}
	e := &Engine{
		arena:    arena,
		shaper:   sh,
		settings: NewSettings(),
		api:      newInvalidationState(),
	}
	e.r.atlas = atlas.New(arena, cfg.Atlas)
	e.r.raster = backend.NewRasterizer(arena)
	e.r.target = cfg.Target
	e.r.pacer = backend.NewPacer(e.r.target.FrameLatency())
	e.r.fg = 0xffffffff
	e.r.bg = 0xff000000
	return e
}

// Arena returns the face arena the engine resolves font handles in.
func (e *Engine) Arena() *shaping.FaceArena { return e.arena }

// Close releases the engine's cached state. Further calls fail with
// ErrEngineClosed.
func (e *Engine) Close() error {
	if e.closed {
		return ErrEngineClosed
	}
	e.closed = true
	e.r.atlas.Clear()
	return nil
}

// SetRenderTarget swaps the presentation backend. Mutator role: the
// renderer keeps presenting to the old target until the next StartPaint
// adopts the new one, so the swap never races an in-flight Present.
func (e *Engine) SetRenderTarget(t backend.Target) {
	e.pendingTarget = &t
	e.settings.Target.Write(func(*TargetSettings) {})
}

// SetWindowSize sets the output surface size in pixels and derives the
// cell grid from the current font's cell size. Mutator role.
func (e *Engine) SetWindowSize(px Size) {
	if e.settings.TargetSize == px {
		return
	}
	e.settings.TargetSize = px
	e.recomputeCellCount()
}

// UpdateFont replaces the font subsection wholesale and bumps its
// generation: the renderer drops every cached glyph on the next frame.
// Mutator role.
func (e *Engine) UpdateFont(f FontSettings) error {
	if f.CellSize.Width <= 0 || f.CellSize.Height <= 0 {
		return errors.New("termatlas: font cell size must be positive")
	}
	if f.SizeInDIP <= 0 {
		return errors.New("termatlas: font size must be positive")
	}
	e.settings.Font.Write(func(p *FontSettings) { *p = f })
	e.recomputeCellCount()
	return nil
}

// SetCursorStyle replaces the cursor subsection; a no-op when nothing
// changed, so the generation bumps only on real change. Mutator role.
func (e *Engine) SetCursorStyle(c CursorSettings) {
	if *e.settings.Cursor.Get() == c {
		return
	}
	e.settings.Cursor.Write(func(p *CursorSettings) { *p = c })
}

// SetAntialiasingMode selects glyph antialiasing. Mutator role.
func (e *Engine) SetAntialiasingMode(m AntialiasMode) {
	if e.settings.Misc.Get().Antialiasing == m {
		return
	}
	e.settings.Misc.Write(func(p *MiscSettings) { p.Antialiasing = m })
}

// SetSelectionColor sets the selection overlay color. Mutator role.
func (e *Engine) SetSelectionColor(c uint32) {
	if e.settings.Misc.Get().SelectionColor == c {
		return
	}
	e.settings.Misc.Write(func(p *MiscSettings) { p.SelectionColor = c })
}

// SetBackgroundColor sets the frame clear color. Mutator role.
func (e *Engine) SetBackgroundColor(c uint32) {
	if e.settings.Misc.Get().BackgroundColor == c {
		return
	}
	e.settings.Misc.Write(func(p *MiscSettings) { p.BackgroundColor = c })
}

// SetRetroTerminalEffect toggles the retro shader effect. Mutator role.
func (e *Engine) SetRetroTerminalEffect(on bool) {
	if e.settings.Misc.Get().RetroEffect == on {
		return
	}
	e.settings.Misc.Write(func(p *MiscSettings) { p.RetroEffect = on })
}

// SetPixelShaderPath points the GPU backend at a custom shader.
// Mutator role.
func (e *Engine) SetPixelShaderPath(path string) {
	if e.settings.Misc.Get().CustomShaderPath == path {
		return
	}
	e.settings.Misc.Write(func(p *MiscSettings) { p.CustomShaderPath = path })
}

// EnableTransparentBackground toggles surface transparency. Mutator role.
func (e *Engine) EnableTransparentBackground(on bool) {
	if e.settings.Target.Get().TransparentBackground == on {
		return
	}
	e.settings.Target.Write(func(p *TargetSettings) { p.TransparentBackground = on })
}

// SetSoftwareRendering requests the CPU compositing path. Mutator role.
func (e *Engine) SetSoftwareRendering(on bool) {
	if e.settings.Target.Get().SoftwareRendering == on {
		return
	}
	e.settings.Target.Write(func(p *TargetSettings) { p.SoftwareRendering = on })
}

func (e *Engine) recomputeCellCount() {
	f := e.settings.Font.Get()
	cols := e.settings.TargetSize.Width / f.CellSize.Width
	rows := e.settings.TargetSize.Height / f.CellSize.Height
	e.settings.CellCount = Size{Width: max(1, cols), Height: max(1, rows)}
}

// StartPaint is the hand-off from the mutator to the renderer: it
// snapshots the settings, consumes the accumulated invalidations,
// applies pending scroll shifting and clears the rows about to be
// repainted. It returns the cell rectangle the host must repaint.
//
// The caller must hold the same external serialization here that it
// holds across mutator calls; it is the only cross-role sync point.
func (e *Engine) StartPaint() (Rect, error) {
	if e.closed {
		return Rect{}, ErrEngineClosed
	}

	s := e.settings
	inv := e.api
	e.api = newInvalidationState()
	e.api.title = inv.title // survives until the host polls TitleChanged

	r := &e.r
	p := &e.p

	if r.forceFullRedraw {
		r.forceFullRedraw = false
		inv.all = true
	}
	if g := s.Target.Generation(); g != r.targetGen {
		r.targetGen = g
		if e.pendingTarget != nil {
			r.target = *e.pendingTarget
			r.pacer = backend.NewPacer(r.target.FrameLatency())
			r.uploaded = false
			e.pendingTarget = nil
		}
		inv.all = true
	}
	if g := s.Font.Generation(); g != r.fontGen {
		r.fontGen = g
		r.deps = computeFontDependents(s.Font.Get())
		// Old-generation face identities are invalid keys now.
		r.atlas.Clear()
		inv.all = true
	}
	if g := s.Cursor.Generation(); g != r.cursorGen {
		r.cursorGen = g
		inv.cursorArea = inv.cursorArea.Union(p.CursorRect)
	}
	if g := s.Misc.Generation(); g != r.miscGen {
		r.miscGen = g
		inv.all = true
	}

	cols, rows := s.CellCount.Width, s.CellCount.Height
	if p.resize(cols, rows) {
		inv.all = true
	}
	prevCursor := p.CursorRect
	p.Settings = s

	scroll := 0
	var dirtyRows rowRange
	if inv.all {
		dirtyRows = rowRange{from: 0, to: rows}
	} else {
		dirtyRows = inv.rows.clamp(rows)
		scroll = clamp(inv.scrollOffset, -rows, rows)
		if scroll != 0 {
			p.scrollRows(scroll, cols)
		}
		cursorDamage := inv.cursorArea.Union(prevCursor).Clamp(cols, rows)
		if !cursorDamage.Empty() {
			dirtyRows = dirtyRows.union(rowRange{from: cursorDamage.Top, to: cursorDamage.Bottom})
		}
	}

	for y := dirtyRows.from; y < dirtyRows.to; y++ {
		p.Rows[y].clear()
	}

	var dirty Rect
	if !dirtyRows.empty() {
		dirty = Rect{Left: 0, Top: dirtyRows.from, Right: cols, Bottom: dirtyRows.to}
	}
	p.DirtyRect = dirty
	p.ScrollOffset = scroll
	r.row = rowAssembly{text: r.row.text[:0], columns: r.row.columns[:0]}

	return dirty, nil
}

// UpdateDrawingBrushes sets the attribute state for subsequent PaintRow
// calls. A bold or italic change is a flush boundary because it can
// select a different face for the same characters. Renderer role.
func (e *Engine) UpdateDrawingBrushes(fg, bg uint32, bold, italic bool) error {
	r := &e.r
	if r.row.active && (bold != r.bold || italic != r.italic) {
		if err := e.flushRow(); err != nil {
			return err
		}
	}
	r.fg, r.bg, r.bold, r.italic = fg, bg, bold, italic
	return nil
}

// PaintRow appends paint clusters at pos, accumulating characters and
// their columns until the row's flush boundary. Cell colors are taken
// from the current brushes. Renderer role.
func (e *Engine) PaintRow(clusters []Cluster, pos Point) error {
	if e.closed {
		return ErrEngineClosed
	}
	r := &e.r
	p := &e.p
	cols, rows := p.Settings.CellCount.Width, p.Settings.CellCount.Height
	if pos.Y < 0 || pos.Y >= rows {
		return nil
	}
	if r.row.active && r.row.y != pos.Y {
		if err := e.flushRow(); err != nil {
			return err
		}
		r.row.active = false
	}
	if !r.row.active {
		r.row.active = true
		r.row.y = pos.Y
	}
	r.row.col = clamp(pos.X, 0, cols)

	base := cellIndex(0, pos.Y, cols)
	for _, c := range clusters {
		if r.row.col >= cols {
			break
		}
		for _, ch := range c.Text {
			r.row.text = append(r.row.text, ch)
			r.row.columns = append(r.row.columns, r.row.col)
		}
		width := min(c.Width, cols-r.row.col)
		for x := r.row.col; x < r.row.col+width; x++ {
			p.ForegroundBitmap[base+x] = r.fg
			p.BackgroundBitmap[base+x] = r.bg
		}
		r.row.col += width
	}
	p.DirtyRect = p.DirtyRect.Union(Rect{Left: pos.X, Top: pos.Y, Right: r.row.col, Bottom: pos.Y + 1})
	return nil
}

// PaintGridLines attaches decoration lines to the columns [from, to)
// of row y. A hovered hyperlink without an underline of its own is
// promoted to a plain underline. Renderer role.
func (e *Engine) PaintGridLines(lines GridLines, color uint32, from, to, y int) {
	p := &e.p
	cols, rows := p.Settings.CellCount.Width, p.Settings.CellCount.Height
	if y < 0 || y >= rows {
		return
	}
	from = clamp(from, 0, cols)
	to = clamp(to, from, cols)
	if from >= to || lines == 0 {
		return
	}
	if lines&GridLineHyperlink != 0 && lines&(GridLineUnderline|GridLineDoubleUnderline) == 0 {
		lines |= GridLineUnderline
	}
	p.Rows[y].GridLineRanges = append(p.Rows[y].GridLineRanges, LineRange{From: from, To: to, Lines: lines, Color: color})
	p.DirtyRect = p.DirtyRect.Union(Rect{Left: from, Top: y, Right: to, Bottom: y + 1})
}

// PaintSelection sets the selection span for every row the rectangle
// covers. Renderer role.
func (e *Engine) PaintSelection(rect Rect) {
	p := &e.p
	rect = rect.Clamp(p.Settings.CellCount.Width, p.Settings.CellCount.Height)
	if rect.Empty() {
		return
	}
	for y := rect.Top; y < rect.Bottom; y++ {
		p.Rows[y].SelectionFrom = rect.Left
		p.Rows[y].SelectionTo = rect.Right
	}
	p.DirtyRect = p.DirtyRect.Union(rect)
}

// CursorOptions positions the cursor for the frame.
type CursorOptions struct {
	At      Point
	Width   int // columns covered, >= 1 (wide glyphs)
	Visible bool
}

// PaintCursor places or hides the cursor. Out-of-bounds positions are
// clamped to the grid rather than rejected. Renderer role.
func (e *Engine) PaintCursor(opts CursorOptions) {
	p := &e.p
	cols, rows := p.Settings.CellCount.Width, p.Settings.CellCount.Height
	var rect Rect
	if opts.Visible {
		w := max(1, opts.Width)
		rect = Rect{Left: opts.At.X, Top: opts.At.Y, Right: opts.At.X + w, Bottom: opts.At.Y + 1}.Clamp(cols, rows)
	}
	p.DirtyRect = p.DirtyRect.Union(p.CursorRect).Union(rect)
	p.CursorRect = rect
}

// EndPaint flushes the pending row and ends the paint cycle.
// Renderer role.
func (e *Engine) EndPaint() error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.r.row.active {
		if err := e.flushRow(); err != nil {
			return err
		}
		e.r.row.active = false
	}
	return nil
}
