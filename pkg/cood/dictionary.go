// Package cood implements the Object Dictionary container (§4.C): a
// sorted index→object map guarded by a reader-writer lock, issuing
// ObjectHandle values that carry a read-lock for their lifetime.
//
// The map shape is grounded on pkg/od/od.go's ObjectDictionary
// (entriesByIndexValue map[uint16]*Entry), generalized from a single
// EDS-loading mutex-free map to a sync.RWMutex-guarded one where
// outstanding ObjectHandles hold a real RLock for their lifetime,
// enforcing invariant I2 (no registration/removal while any handle is
// outstanding) directly through Go's RWMutex semantics.
package cood

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samsamfire/coodcore/pkg/cood/object"
)

// ErrIndexInUse is returned by Register when index already holds an
// object (invariant I1).
var ErrIndexInUse = errors.New("cood: index already in use")

// slot is the arena cell an ObjectHandle ultimately points at. It
// outlives a single map lookup so that a handle obtained before a
// concurrent Remove still safely dereferences the object it was handed
// (Go's GC keeps *slot and its Object alive as long as any handle
// references it; the RWMutex prevents Remove from even starting while a
// handle is outstanding, so this is a belt-and-braces safety net, not
// the primary invariant).
type slot struct {
	index      uint16
	obj        *object.Object
	generation uint64
}

// ObjectDictionary is the index→Object container described in §4.C.
type ObjectDictionary struct {
	mu      sync.RWMutex
	entries map[uint16]*slot
	nextGen uint64
	logger  *slog.Logger
}

// New returns an empty ObjectDictionary.
func New(opts ...func(*ObjectDictionary)) *ObjectDictionary {
	od := &ObjectDictionary{
		entries: map[uint16]*slot{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(od)
	}
	return od
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) func(*ObjectDictionary) {
	return func(od *ObjectDictionary) { od.logger = l }
}

// Register inserts obj under index. Ownership of obj transfers to the
// dictionary on success only (§3 "Object Dictionary").
func (od *ObjectDictionary) Register(index uint16, obj *object.Object) error {
	od.mu.Lock()
	defer od.mu.Unlock()

	if _, exists := od.entries[index]; exists {
		return ErrIndexInUse
	}
	od.nextGen++
	od.entries[index] = &slot{index: index, obj: obj, generation: od.nextGen}
	od.logger.Debug("registered object", "index", index, "name", obj.Name())
	return nil
}

// Remove deletes the object at index. No-op if not present.
func (od *ObjectDictionary) Remove(index uint16) {
	od.mu.Lock()
	defer od.mu.Unlock()
	delete(od.entries, index)
}

// Clear removes every object.
func (od *ObjectDictionary) Clear() {
	od.mu.Lock()
	defer od.mu.Unlock()
	od.entries = map[uint16]*slot{}
}

// Count returns the number of registered objects.
func (od *ObjectDictionary) Count() int {
	od.mu.RLock()
	defer od.mu.RUnlock()
	return len(od.entries)
}

// Indices returns every registered index, strictly ascending (P2).
func (od *ObjectDictionary) Indices() []uint16 {
	od.mu.RLock()
	defer od.mu.RUnlock()
	out := make([]uint16, 0, len(od.entries))
	for idx := range od.entries {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// First returns a handle on the lowest registered index, or an empty
// handle if the dictionary has no objects.
func (od *ObjectDictionary) First() ObjectHandle {
	od.mu.RLock()
	if len(od.entries) == 0 {
		od.mu.RUnlock()
		return ObjectHandle{}
	}
	var best *slot
	for _, s := range od.entries {
		if best == nil || s.index < best.index {
			best = s
		}
	}
	// RLock is kept: it becomes the handle's held read-lock.
	return ObjectHandle{dict: od, slot: best}
}

// Get returns a handle on index, or an empty handle if not present.
func (od *ObjectDictionary) Get(index uint16) ObjectHandle {
	od.mu.RLock()
	s, ok := od.entries[index]
	if !ok {
		od.mu.RUnlock()
		return ObjectHandle{}
	}
	return ObjectHandle{dict: od, slot: s}
}

// GetNextNearest returns a handle on the object with the smallest index
// >= index, or an empty handle if none exists (P3).
func (od *ObjectDictionary) GetNextNearest(index uint16) ObjectHandle {
	od.mu.RLock()
	var best *slot
	for _, s := range od.entries {
		if s.index < index {
			continue
		}
		if best == nil || s.index < best.index {
			best = s
		}
	}
	if best == nil {
		od.mu.RUnlock()
		return ObjectHandle{}
	}
	return ObjectHandle{dict: od, slot: best}
}

// Destroy tears the dictionary down. Per §4.C "Destruction", this
// requires a successful try-acquire of the write lock (i.e. no
// outstanding handles); failure is a contract violation and panics.
func (od *ObjectDictionary) Destroy() {
	if !od.mu.TryLock() {
		panic("cood: destroying object dictionary while ObjectHandles are still outstanding")
	}
	defer od.mu.Unlock()
	od.entries = nil
}
