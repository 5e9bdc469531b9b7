package atlas

import (
	"github.com/gogpu/termatlas/shaping"
)

// Entry is one cached glyph placement. The face handle doubles as the
// occupancy marker: a zero Face means the slot is empty.
type Entry struct {
	Face  shaping.FaceID
	Glyph uint16

	// X, Y, W, H place the rasterized glyph inside the atlas surface.
	X, Y uint16
	W, H uint16

	// OffsetX, OffsetY align the bitmap's top-left corner relative to
	// the glyph's baseline origin.
	OffsetX, OffsetY int16

	// ColorGlyph marks glyphs that carried their own colors (emoji,
	// bitmap or SVG formats) and must be blitted as-is instead of being
	// tinted with the foreground color.
	ColorGlyph bool
}

// initialMapSize is the starting slot count. Must be a power of two.
const initialMapSize = 256

// Map is an open-addressing hash table from (face, glyph index) to
// atlas placements. Capacity is always a power of two, collisions
// resolve by forward linear probing with wraparound, and the load
// factor never exceeds 50%: the table doubles once size reaches half
// the slot count, rehashing every entry.
//
// The map pins each entry's face in the arena for as long as the entry
// exists, so face handles stored here stay valid without any implicit
// lifetime extension. Clear releases all pins; it is mandatory whenever
// the font settings generation changes.
//
// Map is confined to the renderer role and needs no locking.
type Map struct {
	arena *shaping.FaceArena
	slots []Entry
	mask  uint64
	size  int
}

// NewMap returns an empty map resolving face pins through arena.
func NewMap(arena *shaping.FaceArena) *Map {
	return &Map{
		arena: arena,
		slots: make([]Entry, initialMapSize),
		mask:  initialMapSize - 1,
	}
}

func hashKey(face shaping.FaceID, glyph uint16) uint64 {
	// Multiply-combine in the spirit of FNV; the table is power-of-two
	// sized so the low bits must be well mixed.
	h := uint64(face)*0x9e3779b97f4a7c15 + uint64(glyph)
	h ^= h >> 29
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 32
	return h
}

// FindOrInsert returns the entry for the key, inserting an empty one on
// miss. inserted tells the caller whether it must rasterize the glyph
// and fill in the placement. The returned pointer is valid until the
// next FindOrInsert or Clear.
func (m *Map) FindOrInsert(face shaping.FaceID, glyph uint16) (entry *Entry, inserted bool) {
	h := hashKey(face, glyph)
	for i := h; ; i++ {
		e := &m.slots[i&m.mask]
		if e.Face == face && e.Glyph == glyph {
			return e, false
		}
		if e.Face == 0 {
			return m.insert(face, glyph, h), true
		}
	}
}

func (m *Map) insert(face shaping.FaceID, glyph uint16, h uint64) *Entry {
	if m.size >= len(m.slots)/2 {
		m.grow()
		h = hashKey(face, glyph)
	}
	m.size++
	if m.arena != nil {
		_ = m.arena.Pin(face)
	}
	for i := h; ; i++ {
		e := &m.slots[i&m.mask]
		if e.Face == 0 {
			e.Face = face
			e.Glyph = glyph
			return e
		}
	}
}

// grow doubles the slot count and rehashes every entry in place.
// No entry is dropped.
func (m *Map) grow() {
	newSlots := make([]Entry, len(m.slots)*2)
	newMask := uint64(len(newSlots) - 1)
	for _, e := range m.slots {
		if e.Face == 0 {
			continue
		}
		for i := hashKey(e.Face, e.Glyph); ; i++ {
			n := &newSlots[i&newMask]
			if n.Face == 0 {
				*n = e
				break
			}
		}
	}
	m.slots = newSlots
	m.mask = newMask
}

// Clear removes every entry and releases the face pins. The slot
// allocation is kept so a cleared cache refills without reallocating.
func (m *Map) Clear() {
	for i := range m.slots {
		if m.slots[i].Face != 0 && m.arena != nil {
			m.arena.Unpin(m.slots[i].Face)
		}
		m.slots[i] = Entry{}
	}
	m.size = 0
}

// Len returns the number of cached entries.
func (m *Map) Len() int { return m.size }

// Capacity returns the current slot count.
func (m *Map) Capacity() int { return len(m.slots) }
