package cood

import (
	"errors"

	"github.com/samsamfire/coodcore/pkg/cood/object"
)

// ErrEmptyHandle is returned when Object() is called on a handle that
// does not reference anything.
var ErrEmptyHandle = errors.New("cood: dereferencing an empty ObjectHandle")

// ObjectHandle is the smart handle described in §3/§4.C: it carries a
// reference into the dictionary and holds one of the dictionary's
// read-locks for its entire lifetime, so no registration or removal can
// proceed on that dictionary while the handle exists (I2). The design
// note's index-into-slab suggestion is realized here by slot, which
// stays reachable (and thus safely dereferenceable) independent of
// subsequent map mutations once the write-lock is released.
//
// ObjectHandle is not safe for concurrent use by multiple goroutines
// (mirroring the original's "not thread safe" ObjectPtr); each handle
// should be owned by a single goroutine, copied via Clone when another
// goroutine needs its own reference.
type ObjectHandle struct {
	dict *ObjectDictionary
	slot *slot
}

// IsEmpty reports whether the handle references no object.
func (h ObjectHandle) IsEmpty() bool {
	return h.dict == nil
}

// Index returns the referenced object's index. Panics on an empty
// handle.
func (h ObjectHandle) Index() uint16 {
	if h.IsEmpty() {
		panic("cood: Index() on an empty ObjectHandle")
	}
	return h.slot.index
}

// Object returns the referenced Object. Returns ErrEmptyHandle if the
// handle is empty.
func (h ObjectHandle) Object() (*object.Object, error) {
	if h.IsEmpty() {
		return nil, ErrEmptyHandle
	}
	return h.slot.obj, nil
}

// Clone takes one additional read-lock on the same dictionary and
// returns a new handle referencing the same object. The caller owns
// both handles independently and must Close each of them.
func (h ObjectHandle) Clone() ObjectHandle {
	if h.IsEmpty() {
		return ObjectHandle{}
	}
	h.dict.mu.RLock()
	return ObjectHandle{dict: h.dict, slot: h.slot}
}

// Close releases the handle's held read-lock. A no-op on an empty or
// already-closed handle. After Close, the handle must not be used again
// (mirrors the original's "operations on a moved-from handle" contract
// violation — Go has no move semantics, so this is enforced by
// discipline, not the type system).
func (h *ObjectHandle) Close() {
	if h.IsEmpty() {
		return
	}
	h.dict.mu.RUnlock()
	h.dict = nil
	h.slot = nil
}

// Reassign replaces h's referenced object with other's, releasing h's
// old read-lock only after acquiring a read-lock for the new reference.
// This acquire-before-release order is required when h and other
// reference the same dictionary via independent paths: releasing first
// could transiently drop the dictionary's reader count to zero and let
// a blocked writer proceed between the release and the new acquire,
// which the original ObjectPtr::operator=(&) avoids by sequencing a
// fresh IncReadLock() before the old DecReadLock() (see DESIGN.md, Open
// Question #1). other is left usable by the caller; Reassign takes its
// own clone of other's reference rather than consuming it.
func (h *ObjectHandle) Reassign(other ObjectHandle) {
	cloned := other.Clone()
	old := *h
	*h = cloned
	old.Close()
}

// Increment moves the handle to the next-highest registered index in
// its dictionary, or to the empty state if this was the last entry
// (§3 "ObjectHandle... incremented to the next object (releases the
// lock if it moves past the last entry)").
func (h *ObjectHandle) Increment() {
	if h.IsEmpty() {
		return
	}
	if h.slot.index == ^uint16(0) {
		h.Close()
		return
	}
	next := h.dict.GetNextNearest(h.slot.index + 1)
	old := *h
	*h = next
	old.Close()
}
