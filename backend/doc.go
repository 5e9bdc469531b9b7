// Package backend contains the presentation-side collaborators of the
// termatlas engine: the closed set of rendering backends, the software
// glyph rasterizer, the presentation surface contract, and the
// frame-pacing primitive.
//
// The engine reduces every frame to a draw list of textured quads over
// the glyph atlas. The software backend composites that list on the CPU
// with golang.org/x/image; the GPU backend hands it, together with the
// atlas surface, to a host-provided compositor over a shared
// gpucontext device. The set of backend kinds is fixed at build time
// and dispatched by tag, not by open-ended virtual interfaces.
package backend
