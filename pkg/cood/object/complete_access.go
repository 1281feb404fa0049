package object

import (
	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
)

// CompleteRead performs a Complete Access read of every subindex from 1
// up to the object's current count (§4.B "Complete Access read/write").
// VARIABLE objects do not support Complete Access.
func (o *Object) CompleteRead(includeSI0 bool, si0As16 bool, perms Attribute, w codec.BitStreamWriter) abortcode.Code {
	if o.kind == KindVariable {
		return abortcode.UnsupportedAccess
	}

	n := o.NSubindices()

	hookSI := uint8(1)
	if includeSI0 {
		hookSI = 0
	}
	if code := o.hooks.callBeforeRead(hookSI, true, false); code != abortcode.OK {
		return code
	}

	if includeSI0 {
		if err := writeSI0(w, n-1, si0As16); err != nil {
			return abortcode.General
		}
	}

	for si := uint8(1); si < n; si++ {
		d, err := o.descriptor(si)
		if err != nil {
			continue // empty RECORD subindex: skip entirely
		}

		if !codec.IsBitBased(d.DataType) {
			if err := w.AlignToByteBoundary(0); err != nil {
				return abortcode.General
			}
		}

		if d.Gap {
			bits, _ := d.maxSizeBits()
			if err := w.WriteBits(0, bits); err != nil {
				return abortcode.General
			}
			continue
		}

		if !IsReadable(d.Attr) {
			// pure write-only subindex participating in a read: emit
			// zeros of the proper width, no permission check needed.
			bits, _ := d.maxSizeBits()
			if err := w.WriteBits(0, bits); err != nil {
				return abortcode.General
			}
			continue
		}

		if !CanRead(d.Attr, perms) {
			return abortcode.UnsupportedAccess
		}

		native, err := o.accessor.Get(si)
		if err != nil {
			return abortcode.General
		}
		if err := codec.Encode(w, native, d.DataType, d.NElements, true); err != nil {
			return abortcode.General
		}
	}
	return abortcode.OK
}

func writeSI0(w codec.BitStreamWriter, count uint8, si0As16 bool) error {
	if si0As16 {
		return w.WriteUint16(uint16(count))
	}
	return w.WriteUint8(count)
}

type pendingWrite struct {
	si      uint8
	value   any
}

// CompleteWrite performs a Complete Access write (§4.B). It decodes
// every participating subindex into a scratch value before invoking the
// before-write hook and committing anything (design note §9: "build
// native image in a scratch buffer, then commit"), so a failing
// before-write or a permission error leaves no partial state.
func (o *Object) CompleteWrite(includeSI0 bool, si0As16 bool, perms Attribute, r codec.BitStreamReader, expectedRemainingBits int) abortcode.Code {
	if o.kind == KindVariable {
		return abortcode.UnsupportedAccess
	}

	var newCount uint8
	haveNewSI0 := false

	if includeSI0 {
		count, err := readSI0(r, si0As16)
		if err != nil {
			return abortcode.DataShort
		}
		switch o.kind {
		case KindRecord:
			if count != o.MaxSubindices() {
				return abortcode.InvalidValue
			}
		case KindArray:
			if IsWritable(o.arraySI0.Attr) {
				if count > o.arrayMax {
					return abortcode.ValueHigh
				}
				haveNewSI0 = true
			} else if count != o.NSubindices()-1 {
				return abortcode.ReadOnly
			}
		}
		newCount = count
	} else {
		newCount = o.NSubindices() - 1
	}

	hookSI := uint8(1)
	if includeSI0 {
		hookSI = 0
	}

	pending := make([]pendingWrite, 0, newCount)
	for si := uint8(1); si <= newCount; si++ {
		d, err := o.descriptor(si)
		if err != nil {
			continue // empty RECORD subindex: no bits in the stream
		}

		if !codec.IsBitBased(d.DataType) {
			if err := r.AlignToByteBoundary(); err != nil {
				return abortcode.DataShort
			}
		}

		if d.Gap {
			bits, _ := d.maxSizeBits()
			if _, err := r.ReadBits(bits); err != nil {
				return abortcode.DataShort
			}
			continue
		}

		if !IsWritable(d.Attr) {
			// pure read-only subindex participating in a write: consume
			// the bits without applying them.
			bits, _ := d.maxSizeBits()
			if _, err := r.ReadBits(bits); err != nil {
				return abortcode.DataShort
			}
			continue
		}

		if !CanWrite(d.Attr, perms) {
			return abortcode.UnsupportedAccess
		}

		v, err := codec.Decode(r, d.DataType, d.NElements, true)
		if err != nil {
			return abortcode.DataShort
		}
		pending = append(pending, pendingWrite{si: si, value: v})
	}

	if r.RemainingBits() < expectedRemainingBits {
		return abortcode.DataShort
	}

	if code := o.hooks.callBeforeWrite(hookSI, true, pending); code != abortcode.OK {
		return code
	}

	if haveNewSI0 {
		if err := o.accessor.Set(0, newCount); err != nil {
			return abortcode.General
		}
	}
	for _, p := range pending {
		if err := o.accessor.Set(p.si, p.value); err != nil {
			return abortcode.General
		}
	}
	o.hooks.callAfterWrite(hookSI, true)
	return abortcode.OK
}

func readSI0(r codec.BitStreamReader, si0As16 bool) (uint8, error) {
	if si0As16 {
		v, err := r.ReadUint16()
		return uint8(v), err
	}
	return r.ReadUint8()
}
