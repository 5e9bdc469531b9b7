// Package shaping defines the text-shaping capability consumed by the
// termatlas engine and provides an implementation backed by
// go-text/typesetting's HarfBuzz port.
//
// The engine never talks to a font library directly. It sees four
// operations: mapping a character run to a fallback font face,
// classifying a run's shaping complexity, analyzing script runs, and
// shaping/placing glyphs into caller-owned growable buffers. Face
// identities are small handles issued by a FaceArena, which owns face
// lifetime explicitly instead of relying on reference counting inside
// the font objects.
package shaping
