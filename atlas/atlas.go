package atlas

import (
	"errors"
	"fmt"

	"github.com/gogpu/termatlas/shaping"
)

// ErrGlyphTooLarge is returned when a single glyph exceeds the maximum
// atlas surface size and can never be packed.
var ErrGlyphTooLarge = errors.New("atlas: glyph larger than maximum atlas size")

// Config sizes the atlas surface.
type Config struct {
	// InitialSize is the starting edge length in pixels. Default: 1024.
	InitialSize int
	// MaxSize caps growth. Default: 8192 (a common texture size limit).
	MaxSize int
}

// DefaultConfig returns the default atlas configuration.
func DefaultConfig() Config {
	return Config{InitialSize: 1024, MaxSize: 8192}
}

// Atlas combines the glyph cache with the packing of the shared surface
// and owns the exhaustion policy: when packing fails, the surface grows
// (doubling, up to Config.MaxSize) and the cache is cleared so glyphs
// re-rasterize lazily; at the cap it clears without growing. A requested
// glyph is never dropped.
type Atlas struct {
	cache  *Map
	packer *Packer
	cfg    Config

	// generation increments on every clear/resize so surface owners know
	// to reallocate and previously returned placements are invalid.
	generation uint32
}

// New returns an atlas backed by arena for face pinning.
func New(arena *shaping.FaceArena, cfg Config) *Atlas {
	if cfg.InitialSize <= 0 {
		cfg.InitialSize = DefaultConfig().InitialSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.MaxSize < cfg.InitialSize {
		cfg.MaxSize = cfg.InitialSize
	}
	return &Atlas{
		cache:  NewMap(arena),
		packer: NewPacker(cfg.InitialSize, cfg.InitialSize),
		cfg:    cfg,
	}
}

// Size returns the current surface edge lengths.
func (a *Atlas) Size() (int, int) { return a.packer.Size() }

// Generation identifies the current surface contents. It changes when
// the atlas is cleared or resized, telling the owner to reallocate the
// surface and discard old placements.
func (a *Atlas) Generation() uint32 { return a.generation }

// FindOrInsert returns the cached placement for (face, glyph), or a
// fresh inserted entry the caller must rasterize and fill.
func (a *Atlas) FindOrInsert(face shaping.FaceID, glyph uint16) (*Entry, bool) {
	return a.cache.FindOrInsert(face, glyph)
}

// Place reserves a w x h rectangle on the surface for a newly inserted
// entry. reset reports that the atlas was cleared (and possibly grown)
// to make room: all previously returned entries are invalid, the caller
// must reallocate its surface, re-insert the current key and rasterize
// again.
func (a *Atlas) Place(w, h int) (x, y int, reset bool, err error) {
	if x, y, ok := a.packer.Pack(w, h); ok {
		return x, y, false, nil
	}

	width, height := a.packer.Size()
	if w > a.cfg.MaxSize || h > a.cfg.MaxSize {
		return 0, 0, false, fmt.Errorf("%w: %dx%d", ErrGlyphTooLarge, w, h)
	}

	// Grow (doubling) until the rect fits, then clear for a repack.
	// At the cap this degrades to evict-and-reset without growth.
	if width < a.cfg.MaxSize {
		width *= 2
		height *= 2
		for (width < w || height < h) && width < a.cfg.MaxSize {
			width *= 2
			height *= 2
		}
		if width > a.cfg.MaxSize {
			width, height = a.cfg.MaxSize, a.cfg.MaxSize
		}
	}

	a.cache.Clear()
	a.packer.Reset(width, height)
	a.generation++

	x, y, ok := a.packer.Pack(w, h)
	if !ok {
		return 0, 0, true, fmt.Errorf("%w: %dx%d", ErrGlyphTooLarge, w, h)
	}
	return x, y, true, nil
}

// Clear empties the cache and packer without resizing. Mandatory when
// the font settings generation changes or after device loss.
func (a *Atlas) Clear() {
	w, h := a.packer.Size()
	a.cache.Clear()
	a.packer.Reset(w, h)
	a.generation++
}

// Len returns the number of cached glyphs.
func (a *Atlas) Len() int { return a.cache.Len() }
