// Package atlas maintains the glyph atlas: an open-addressing cache from
// (font face, glyph index) to a placement inside a shared rectangular
// surface, plus the 2-D packing of that surface.
//
// The cache never rasterizes. A miss hands the caller a fresh entry to
// fill after rasterizing through its backend; a hit returns the stored
// placement. Atlas exhaustion is handled by growing the surface or by
// clearing the cache for lazy re-rasterization, never by dropping a
// requested glyph.
package atlas
