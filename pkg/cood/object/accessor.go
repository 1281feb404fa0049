package object

import "fmt"

// NativeAccessor is implemented by the producer of an object's native
// data. The object has no owning link to this data (§3: "Object
// ownership & storage") — the accessor is how the Object layer reaches
// across that boundary to get/set a single subindex's Go value in the
// producer's own representation (a plain field, a struct field reached
// via byte+bit offset, a slice element, ...). Implementations are called
// with the object's data mutex held and must not block on it again.
type NativeAccessor interface {
	// Get returns the current native value of subindex si, in the Go
	// type codec.Encode expects for that subindex's DataType (bool,
	// intN, uintN, floatN, string or []byte).
	Get(si uint8) (any, error)
	// Set commits value (as produced by codec.Decode) to subindex si.
	Set(si uint8, value any) error
}

// MapAccessor is a NativeAccessor backed by a plain map, convenient for
// tests and for small, code-driven objects that do not need a bespoke
// producer struct.
type MapAccessor struct {
	values map[uint8]any
}

// NewMapAccessor returns a MapAccessor seeded with initial values.
func NewMapAccessor(initial map[uint8]any) *MapAccessor {
	if initial == nil {
		initial = map[uint8]any{}
	}
	return &MapAccessor{values: initial}
}

func (a *MapAccessor) Get(si uint8) (any, error) {
	v, ok := a.values[si]
	if !ok {
		return nil, fmt.Errorf("object: no value stored for subindex %d", si)
	}
	return v, nil
}

func (a *MapAccessor) Set(si uint8, value any) error {
	a.values[si] = value
	return nil
}
