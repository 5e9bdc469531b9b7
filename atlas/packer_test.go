package atlas

import (
	"image"
	"testing"
)

func TestPacker_PlacementsDisjoint(t *testing.T) {
	p := NewPacker(64, 64)
	sizes := [][2]int{{10, 12}, {20, 12}, {8, 5}, {30, 12}, {16, 20}, {40, 7}}

	var rects []image.Rectangle
	for _, s := range sizes {
		x, y, ok := p.Pack(s[0], s[1])
		if !ok {
			t.Fatalf("Pack(%d, %d) failed with space remaining", s[0], s[1])
		}
		r := image.Rect(x, y, x+s[0], y+s[1])
		if !r.In(image.Rect(0, 0, 64, 64)) {
			t.Fatalf("rect %v escapes the surface", r)
		}
		for _, prev := range rects {
			if r.Overlaps(prev) {
				t.Fatalf("rect %v overlaps %v", r, prev)
			}
		}
		rects = append(rects, r)
	}
}

func TestPacker_ReusesShelves(t *testing.T) {
	p := NewPacker(64, 16)
	if _, _, ok := p.Pack(16, 16); !ok {
		t.Fatal("first pack failed")
	}
	// Same height fits on the same shelf even though no new shelf fits.
	if _, _, ok := p.Pack(16, 16); !ok {
		t.Fatal("second pack should reuse the open shelf")
	}
}

func TestPacker_Full(t *testing.T) {
	p := NewPacker(32, 32)
	if _, _, ok := p.Pack(32, 32); !ok {
		t.Fatal("exact-fit pack failed")
	}
	if _, _, ok := p.Pack(1, 1); ok {
		t.Error("pack on a full surface should fail")
	}
}

func TestPacker_RejectsOversized(t *testing.T) {
	p := NewPacker(32, 32)
	if _, _, ok := p.Pack(33, 1); ok {
		t.Error("pack wider than the surface should fail")
	}
	if _, _, ok := p.Pack(0, 5); ok {
		t.Error("pack with zero width should fail")
	}
}

func TestPacker_Reset(t *testing.T) {
	p := NewPacker(32, 32)
	p.Pack(32, 32)
	p.Reset(64, 64)
	if w, h := p.Size(); w != 64 || h != 64 {
		t.Fatalf("Size = %dx%d, want 64x64", w, h)
	}
	x, y, ok := p.Pack(40, 40)
	if !ok || x != 0 || y != 0 {
		t.Errorf("Pack after Reset = (%d, %d, %v), want (0, 0, true)", x, y, ok)
	}
}
