package atlas

// shelf is one horizontal strip of the atlas surface.
type shelf struct {
	y, height, x int
}

// Packer is a shelf-style rectangle packer over a fixed surface.
// Rectangles are placed left to right on shelves; a new shelf opens
// below the last one when no existing shelf fits. Freeing individual
// rectangles is not supported: the cache model clears wholesale.
type Packer struct {
	width, height int
	shelves       []shelf
	nextY         int
}

// NewPacker returns a packer for a width x height surface.
func NewPacker(width, height int) *Packer {
	return &Packer{width: width, height: height}
}

// Size returns the surface dimensions.
func (p *Packer) Size() (int, int) { return p.width, p.height }

// Pack places a w x h rectangle and returns its origin.
// ok is false when no space remains; the caller decides between growing
// the surface and clearing the cache.
func (p *Packer) Pack(w, h int) (x, y int, ok bool) {
	if w <= 0 || h <= 0 || w > p.width || h > p.height {
		return 0, 0, false
	}

	// Prefer the tightest existing shelf to limit vertical waste.
	best := -1
	for i := range p.shelves {
		s := &p.shelves[i]
		if h > s.height || s.x+w > p.width {
			continue
		}
		if best < 0 || s.height < p.shelves[best].height {
			best = i
		}
	}
	if best >= 0 {
		s := &p.shelves[best]
		x, y = s.x, s.y
		s.x += w
		return x, y, true
	}

	if p.nextY+h > p.height {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: p.nextY, height: h, x: w})
	x, y = 0, p.nextY
	p.nextY += h
	return x, y, true
}

// Reset empties the packer, optionally adopting a new surface size.
func (p *Packer) Reset(width, height int) {
	p.width = width
	p.height = height
	p.shelves = p.shelves[:0]
	p.nextY = 0
}
