package termatlas

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/termatlas/backend"
	"github.com/gogpu/termatlas/shaping"
)

const (
	testCellW = 8
	testCellH = 16
	testCols  = 80
	testRows  = 24
)

// testEngine returns an engine on an 80x24 grid of 8x16 cells rendering
// Go Mono to an in-memory surface.
func testEngine(t *testing.T) (*Engine, *backend.ImageSurface) {
	t.Helper()
	surface := backend.NewImageSurface()
	e := New(Config{Target: backend.NewSoftwareTarget(surface)})

	id, err := e.Arena().Add(gomono.TTF)
	if err != nil {
		t.Fatalf("Add(gomono): %v", err)
	}
	e.SetWindowSize(Size{Width: testCols * testCellW, Height: testRows * testCellH})
	err = e.UpdateFont(FontSettings{
		Faces:      []shaping.FaceID{id},
		Family:     "Go Mono",
		SizeInDIP:  12,
		DPI:        96,
		Weight:     400,
		CellSize:   Size{Width: testCellW, Height: testCellH},
		Baseline:   12,
		Underline:  LinePlacement{Position: 13, Thickness: 1},
		Strikethru: LinePlacement{Position: 7, Thickness: 1},
		ThinLine:   1,
	})
	if err != nil {
		t.Fatalf("UpdateFont: %v", err)
	}
	return e, surface
}

// paintString runs one full paint cycle drawing s at pos.
func paintString(t *testing.T, e *Engine, s string, pos Point) Rect {
	t.Helper()
	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if err := e.UpdateDrawingBrushes(0xffffffff, 0xff000000, false, false); err != nil {
		t.Fatalf("UpdateDrawingBrushes: %v", err)
	}
	if err := e.PaintRow(MakeClusters(s), pos); err != nil {
		t.Fatalf("PaintRow: %v", err)
	}
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}
	return dirty
}

func TestEngine_FirstFrameFullyDirty(t *testing.T) {
	e, _ := testEngine(t)
	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	want := Rect{Left: 0, Top: 0, Right: testCols, Bottom: testRows}
	if dirty != want {
		t.Errorf("first frame dirty = %+v, want %+v", dirty, want)
	}
	if e.p.Settings.CellCount != (Size{Width: testCols, Height: testRows}) {
		t.Errorf("CellCount = %+v, want %dx%d", e.p.Settings.CellCount, testCols, testRows)
	}
}

func TestEngine_PaintRowShapesGlyphs(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "AB", Point{})

	row := e.p.Rows[0]
	if row.GlyphCount() != 2 {
		t.Fatalf("GlyphCount = %d, want 2", row.GlyphCount())
	}
	if len(row.GlyphAdvances) != 2 || len(row.GlyphOffsets) != 2 || len(row.Colors) != 2 {
		t.Fatalf("parallel arrays out of step: %d advances, %d offsets, %d colors",
			len(row.GlyphAdvances), len(row.GlyphOffsets), len(row.Colors))
	}

	if len(row.Mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(row.Mappings))
	}
	m := row.Mappings[0]
	if m.GlyphsFrom != 0 || m.GlyphsTo != 2 {
		t.Errorf("mapping covers [%d,%d), want [0,2)", m.GlyphsFrom, m.GlyphsTo)
	}
	if m.Face == 0 {
		t.Error("mapping has no face")
	}
	if m.EmSize != 12 {
		t.Errorf("EmSize = %v, want 12", m.EmSize)
	}

	// Cell-grid normalization: each glyph advances exactly one cell.
	for i, adv := range row.GlyphAdvances {
		if adv != testCellW {
			t.Errorf("advance[%d] = %v, want %d", i, adv, testCellW)
		}
	}
	for i, c := range row.Colors {
		if c != 0xffffffff {
			t.Errorf("color[%d] = %#x, want the brush foreground", i, c)
		}
	}

	if e.p.ForegroundBitmap[0] != 0xffffffff || e.p.BackgroundBitmap[1] != 0xff000000 {
		t.Error("cell color bitmaps were not filled from the brushes")
	}
}

func TestEngine_PenStartAtColumn(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "X", Point{X: 5, Y: 0})

	row := e.p.Rows[0]
	if row.GlyphCount() != 1 {
		t.Fatalf("GlyphCount = %d, want 1", row.GlyphCount())
	}
	if want := float32(5 * testCellW); row.PenStart != want {
		t.Errorf("PenStart = %v, want %v", row.PenStart, want)
	}
}

func TestEngine_BrushChangeSplitsMappings(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.StartPaint(); err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if err := e.UpdateDrawingBrushes(0xffffffff, 0xff000000, false, false); err != nil {
		t.Fatalf("UpdateDrawingBrushes: %v", err)
	}
	if err := e.PaintRow(MakeClusters("A"), Point{}); err != nil {
		t.Fatalf("PaintRow: %v", err)
	}
	// Bold can select a different face, so it is a flush boundary.
	if err := e.UpdateDrawingBrushes(0xffffffff, 0xff000000, true, false); err != nil {
		t.Fatalf("UpdateDrawingBrushes(bold): %v", err)
	}
	if err := e.PaintRow(MakeClusters("B"), Point{X: 1}); err != nil {
		t.Fatalf("PaintRow: %v", err)
	}
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}

	row := e.p.Rows[0]
	if row.GlyphCount() != 2 {
		t.Fatalf("GlyphCount = %d, want 2", row.GlyphCount())
	}
	if len(row.Mappings) != 2 {
		t.Fatalf("got %d mappings, want 2 (one per flush)", len(row.Mappings))
	}
	if row.Mappings[0].GlyphsTo != row.Mappings[1].GlyphsFrom {
		t.Errorf("mappings do not partition: [%d,%d) then [%d,%d)",
			row.Mappings[0].GlyphsFrom, row.Mappings[0].GlyphsTo,
			row.Mappings[1].GlyphsFrom, row.Mappings[1].GlyphsTo)
	}
}

func TestEngine_FallbackMissSkipsCharacters(t *testing.T) {
	e, _ := testEngine(t)
	// Go Mono has no CJK coverage; the characters contribute no glyphs
	// but the paint cycle must complete.
	paintString(t, e, "中文", Point{})
	if got := e.p.Rows[0].GlyphCount(); got != 0 {
		t.Errorf("GlyphCount = %d, want 0 for unmapped characters", got)
	}
}

func TestEngine_DoubleEndPaintIsNoop(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "A", Point{})
	before := e.p.Rows[0].GlyphCount()
	if err := e.EndPaint(); err != nil {
		t.Fatalf("second EndPaint: %v", err)
	}
	if got := e.p.Rows[0].GlyphCount(); got != before {
		t.Errorf("GlyphCount after redundant EndPaint = %d, want %d", got, before)
	}
}

func TestEngine_CleanFrameNotDirty(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "A", Point{})

	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if !dirty.Empty() {
		t.Errorf("dirty = %+v, want empty without invalidations", dirty)
	}
	if got := e.p.Rows[0].GlyphCount(); got != 1 {
		t.Errorf("clean row was cleared: GlyphCount = %d, want 1", got)
	}
}

func TestEngine_InvalidateRowsClearsOnlyThose(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if err := e.UpdateDrawingBrushes(0xffffffff, 0xff000000, false, false); err != nil {
		t.Fatalf("UpdateDrawingBrushes: %v", err)
	}
	for y := 0; y < 3; y++ {
		if err := e.PaintRow(MakeClusters("row"), Point{Y: y}); err != nil {
			t.Fatalf("PaintRow: %v", err)
		}
	}
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}

	e.InvalidateRows(1, 2)
	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if (dirty != Rect{Left: 0, Top: 1, Right: testCols, Bottom: 2}) {
		t.Errorf("dirty = %+v, want row 1 only", dirty)
	}
	if e.p.Rows[0].GlyphCount() == 0 || e.p.Rows[2].GlyphCount() == 0 {
		t.Error("rows outside the invalidation were cleared")
	}
	if e.p.Rows[1].GlyphCount() != 0 {
		t.Error("invalidated row was not cleared")
	}
}

func TestEngine_ScrollShiftsRows(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if err := e.UpdateDrawingBrushes(0xffffffff, 0xff102030, false, false); err != nil {
		t.Fatalf("UpdateDrawingBrushes: %v", err)
	}
	for y := 0; y < 3; y++ {
		if err := e.PaintRow(MakeClusters("abc"), Point{Y: y}); err != nil {
			t.Fatalf("PaintRow: %v", err)
		}
	}
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}
	movedRow := e.p.Rows[2]

	// Content moves up one row.
	e.InvalidateScroll(Point{Y: -1})
	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}

	if e.p.ScrollOffset != -1 {
		t.Errorf("ScrollOffset = %d, want -1", e.p.ScrollOffset)
	}
	if e.p.Rows[1] != movedRow {
		t.Error("row storage did not shift with the scroll")
	}
	if e.p.Rows[1].GlyphCount() != 3 {
		t.Errorf("moved row GlyphCount = %d, want 3", e.p.Rows[1].GlyphCount())
	}
	if e.p.BackgroundBitmap[cellIndex(0, 1, testCols)] != 0xff102030 {
		t.Error("cell bitmaps did not shift with the scroll")
	}
	if dirty.Top > testRows-1 || dirty.Bottom != testRows {
		t.Errorf("dirty = %+v, want the exposed bottom row", dirty)
	}
	if e.p.Rows[testRows-1].GlyphCount() != 0 {
		t.Error("exposed row was not cleared")
	}
}

func TestEngine_CursorRepaintsItsRow(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	e.PaintCursor(CursorOptions{At: Point{X: 2, Y: 5}, Width: 1, Visible: true})
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}
	if (e.p.CursorRect != Rect{Left: 2, Top: 5, Right: 3, Bottom: 6}) {
		t.Fatalf("CursorRect = %+v", e.p.CursorRect)
	}

	// A visible cursor keeps its row dirty so it never leaves a trail.
	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if dirty.Top > 5 || dirty.Bottom < 6 {
		t.Errorf("dirty = %+v, want the cursor row included", dirty)
	}
}

func TestEngine_GridLinesAndSelection(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	e.PaintGridLines(GridLineHyperlink, 0xff00ffff, 2, 6, 0)
	e.PaintSelection(Rect{Left: 1, Top: 0, Right: 4, Bottom: 2})
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}

	row := e.p.Rows[0]
	if len(row.GridLineRanges) != 1 {
		t.Fatalf("got %d grid line ranges, want 1", len(row.GridLineRanges))
	}
	lr := row.GridLineRanges[0]
	if lr.Lines&GridLineUnderline == 0 {
		t.Error("hovered hyperlink was not promoted to an underline")
	}
	if lr.From != 2 || lr.To != 6 {
		t.Errorf("range = [%d,%d), want [2,6)", lr.From, lr.To)
	}
	if row.SelectionFrom != 1 || row.SelectionTo != 4 {
		t.Errorf("selection = [%d,%d), want [1,4)", row.SelectionFrom, row.SelectionTo)
	}
	if e.p.Rows[1].SelectionTo != 4 {
		t.Error("selection did not cover the second row")
	}
	if e.p.Rows[2].SelectionTo != 0 {
		t.Error("selection leaked past its rectangle")
	}
}

func TestEngine_PresentSoftware(t *testing.T) {
	e, surface := testEngine(t)
	e.SetBackgroundColor(0xff000000)
	paintString(t, e, "AB", Point{})

	if err := e.Present(context.Background()); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if surface.Presented() != 1 {
		t.Fatalf("Presented = %d, want 1", surface.Presented())
	}

	// White glyphs over a black background: some pixel in the first row
	// band must have turned on.
	frame := surface.Last()
	lit := 0
	for y := 0; y < testCellH; y++ {
		for x := 0; x < 2*testCellW; x++ {
			if r, _, _, _ := frame.At(x, y).RGBA(); r > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no glyph pixels reached the surface")
	}

	// The surface acknowledged the frame, so pacing does not block.
	start := time.Now()
	if err := e.WaitUntilCanRender(context.Background()); err != nil {
		t.Fatalf("WaitUntilCanRender: %v", err)
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("WaitUntilCanRender blocked for %v after an acknowledged frame", d)
	}
}

func TestEngine_PresentWithoutTarget(t *testing.T) {
	e := New(Config{})
	if err := e.Present(context.Background()); !errors.Is(err, ErrNoSurface) {
		t.Errorf("Present = %v, want ErrNoSurface", err)
	}
}

func TestEngine_PresentDeviceLoss(t *testing.T) {
	e := New(Config{Target: backend.NewGPUTarget(&backend.GPUTarget{})})
	err := e.Present(context.Background())
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Present = %v, want ErrDeviceLost", err)
	}
	var dle *DeviceLossError
	if !errors.As(err, &dle) {
		t.Fatal("error should carry the device loss cause")
	}
}

func TestEngine_DeviceLossStaysRendererPrivate(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "A", Point{})

	// Device loss is recorded by the renderer role; the mutator's
	// accumulator must stay untouched until the StartPaint hand-off.
	e.resetDeviceState()
	if e.api.all {
		t.Fatal("device loss wrote the mutator-owned accumulator")
	}

	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	want := Rect{Left: 0, Top: 0, Right: testCols, Bottom: testRows}
	if dirty != want {
		t.Errorf("dirty after device loss = %+v, want the full grid", dirty)
	}
	if err := e.EndPaint(); err != nil {
		t.Fatalf("EndPaint: %v", err)
	}

	// The pending redraw is consumed, not sticky.
	dirty, err = e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if !dirty.Empty() {
		t.Errorf("dirty = %+v, want empty once the redraw was paid", dirty)
	}
}

func TestEngine_SetRenderTargetAppliesAtHandOff(t *testing.T) {
	e, _ := testEngine(t)
	paintString(t, e, "A", Point{})

	e.SetRenderTarget(backend.NewGPUTarget(&backend.GPUTarget{}))
	// The renderer keeps its target until the next hand-off so the swap
	// cannot race an in-flight Present.
	if e.r.target.Kind() != backend.KindSoftware {
		t.Fatal("target swapped outside the StartPaint hand-off")
	}

	dirty, err := e.StartPaint()
	if err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if e.r.target.Kind() != backend.KindGPU {
		t.Error("hand-off did not adopt the pending target")
	}
	want := Rect{Left: 0, Top: 0, Right: testCols, Bottom: testRows}
	if dirty != want {
		t.Errorf("dirty after target swap = %+v, want the full grid", dirty)
	}
	if e.pendingTarget != nil {
		t.Error("pending target not cleared after adoption")
	}
}

func TestEngine_Closed(t *testing.T) {
	e, _ := testEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := e.StartPaint(); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("StartPaint = %v, want ErrEngineClosed", err)
	}
	if err := e.Present(context.Background()); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Present = %v, want ErrEngineClosed", err)
	}
	if err := e.Close(); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("second Close = %v, want ErrEngineClosed", err)
	}
}

func TestEngine_TitleChanged(t *testing.T) {
	e, _ := testEngine(t)
	if e.TitleChanged() {
		t.Error("TitleChanged = true before any change")
	}
	e.InvalidateTitle()
	if _, err := e.StartPaint(); err != nil {
		t.Fatalf("StartPaint: %v", err)
	}
	if !e.TitleChanged() {
		t.Error("title change did not survive the hand-off")
	}
	if e.TitleChanged() {
		t.Error("TitleChanged did not clear after polling")
	}
}

func TestEngine_RequiresContinuousRedraw(t *testing.T) {
	e, _ := testEngine(t)
	if e.RequiresContinuousRedraw() {
		t.Error("continuous redraw required by default")
	}
	e.SetRetroTerminalEffect(true)
	if !e.RequiresContinuousRedraw() {
		t.Error("retro effect should force continuous redraw")
	}
	e.SetRetroTerminalEffect(false)
	e.SetPixelShaderPath("glow.wgsl")
	if !e.RequiresContinuousRedraw() {
		t.Error("a custom shader should force continuous redraw")
	}
}

func TestEngine_UpdateFontValidation(t *testing.T) {
	e, _ := testEngine(t)
	if err := e.UpdateFont(FontSettings{SizeInDIP: 12}); err == nil {
		t.Error("UpdateFont with a zero cell size should fail")
	}
	if err := e.UpdateFont(FontSettings{CellSize: Size{Width: 8, Height: 16}}); err == nil {
		t.Error("UpdateFont with a zero font size should fail")
	}
}
