package shaping

import (
	"bytes"
	"errors"
	"sync"

	"github.com/go-text/typesetting/font"
)

// FaceID is a handle to a font face registered in a FaceArena.
// The zero value means "no face". Handles stay valid until the arena
// removes the face, which is only allowed once every pin is released;
// this replaces implicit lifetime extension via reference-counted font
// objects with an explicit ownership table.
type FaceID uint32

// Arena errors.
var (
	ErrUnknownFace = errors.New("shaping: unknown face handle")
	ErrFacePinned  = errors.New("shaping: face still pinned")
)

type faceEntry struct {
	face *font.Face
	data []byte
	pins int
	live bool
}

// FaceArena owns parsed font faces and issues FaceID handles for them.
// Consumers that store a handle beyond a single call (such as the glyph
// cache) must Pin it and Unpin when done; Remove fails while pins exist.
//
// FaceArena is safe for concurrent use.
type FaceArena struct {
	mu      sync.RWMutex
	entries []faceEntry
}

// NewFaceArena returns an empty arena.
func NewFaceArena() *FaceArena {
	return &FaceArena{}
}

// Add parses TTF/OTF data and registers the face, returning its handle.
// The data slice is retained: rasterizers fetch it via Data to parse the
// same font with their own libraries.
func (a *FaceArena) Add(data []byte) (FaceID, error) {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return a.AddFace(face, data), nil
}

// AddFace registers an already-parsed face. data may be nil when no
// rasterizer needs the raw bytes.
func (a *FaceArena) AddFace(face *font.Face, data []byte) FaceID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, faceEntry{face: face, data: data, live: true})
	return FaceID(len(a.entries))
}

func (a *FaceArena) lookup(id FaceID) *faceEntry {
	i := int(id) - 1
	if i < 0 || i >= len(a.entries) || !a.entries[i].live {
		return nil
	}
	return &a.entries[i]
}

// Face returns the parsed face for id, or nil for an unknown handle.
func (a *FaceArena) Face(id FaceID) *font.Face {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e := a.lookup(id); e != nil {
		return e.face
	}
	return nil
}

// Data returns the raw font bytes for id, or nil.
func (a *FaceArena) Data(id FaceID) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e := a.lookup(id); e != nil {
		return e.data
	}
	return nil
}

// Pin marks id as in use. Every Pin must be paired with an Unpin.
func (a *FaceArena) Pin(id FaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookup(id)
	if e == nil {
		return ErrUnknownFace
	}
	e.pins++
	return nil
}

// Unpin releases one pin on id. Unpinning an unknown or unpinned face
// is a no-op so that bulk-release paths need no bookkeeping.
func (a *FaceArena) Unpin(id FaceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.lookup(id); e != nil && e.pins > 0 {
		e.pins--
	}
}

// Pins returns the current pin count for id.
func (a *FaceArena) Pins(id FaceID) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e := a.lookup(id); e != nil {
		return e.pins
	}
	return 0
}

// Remove drops the face. It fails with ErrFacePinned while consumers
// still hold pins; the handle is never reused afterwards.
func (a *FaceArena) Remove(id FaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookup(id)
	if e == nil {
		return ErrUnknownFace
	}
	if e.pins > 0 {
		return ErrFacePinned
	}
	e.live = false
	e.face = nil
	e.data = nil
	return nil
}

// Len returns the number of live faces.
func (a *FaceArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for i := range a.entries {
		if a.entries[i].live {
			n++
		}
	}
	return n
}
