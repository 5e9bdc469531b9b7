// Package termatlas turns streams of terminal paint commands into shaped,
// cached, GPU-ready glyph data.
//
// The engine sits between a terminal driver (the mutator, issuing per-row
// paint and invalidation commands) and a presentation loop (the renderer,
// periodically presenting frames). Text is assembled row by row, shaped
// through the shaping package, and referenced out of a packed glyph atlas
// maintained by the atlas package so that previously seen glyphs are never
// rasterized twice.
//
// # Concurrency contract
//
// All mutator-role calls (the Invalidate and Set/Update methods) must be
// externally serialized by the caller, typically under the terminal buffer
// lock. StartPaint is the single hand-off point: called under that same
// lock, it moves the accumulated state into the renderer's private payload.
// The remaining renderer-role calls (Paint* through EndPaint, Present,
// WaitUntilCanRender) then operate exclusively on the private payload and
// may run concurrently with mutator calls accumulating the next frame, as
// long as the renderer role itself stays sequential.
package termatlas
