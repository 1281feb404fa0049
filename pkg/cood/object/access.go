package object

import (
	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
)

// SubindexActualSizeBits invokes the before-read hook with a size-query
// flag (so a producer backing a flexible-length type, e.g. a
// VISIBLE_STRING, may refresh its data) and returns the subindex's
// actual current CANopen bit size.
func (o *Object) SubindexActualSizeBits(si uint8) (int, error) {
	d, err := o.descriptor(si)
	if err != nil {
		return 0, err
	}
	if code := o.hooks.callBeforeRead(si, false, true); code != abortcode.OK {
		return 0, code
	}
	if !codec.IsString(d.DataType) {
		return d.maxSizeBits()
	}
	v, err := o.accessor.Get(si)
	if err != nil {
		return 0, err
	}
	switch s := v.(type) {
	case string:
		units := len([]byte(s))
		if d.DataType == codec.UnicodeString {
			units = len([]rune(s)) // Encode writes one 16-bit unit per rune
		}
		n, _ := codec.SizeOfBits(d.DataType, units)
		return n, nil
	case []byte:
		n, _ := codec.SizeOfBits(d.DataType, len(s))
		return n, nil
	default:
		return d.maxSizeBits()
	}
}

// ObjectStreamSizeBits returns the total CANopen bit size of the object
// in Complete Access, with SI0 counted as either 8 or 16 bits, matching
// the byte-alignment rule applied during CompleteRead/CompleteWrite.
func (o *Object) ObjectStreamSizeBits(si0As16 bool) (int, error) {
	total := 0
	if si0As16 {
		total = 16
	} else {
		total = 8
	}
	n := o.NSubindices()
	for si := uint8(1); si < n; si++ {
		d, err := o.descriptor(si)
		if err != nil {
			continue // empty subindex contributes nothing
		}
		if !codec.IsBitBased(d.DataType) && total%8 != 0 {
			total += 8 - total%8
		}
		bits, err := d.maxSizeBits()
		if err != nil {
			return 0, err
		}
		total += bits
	}
	return total, nil
}

// Read performs a single-subindex read (§4.B "Read algorithm").
func (o *Object) Read(si uint8, perms Attribute, w codec.BitStreamWriter) abortcode.Code {
	if o.kind == KindRecord {
		if int(si) >= len(o.recordSI) {
			return abortcode.SubUnknown
		}
	}
	d, err := o.descriptor(si)
	if err != nil {
		if si == 0 {
			return abortcode.NotExist
		}
		return abortcode.SubUnknown
	}

	if d.Gap {
		// §4.B "Write algorithm": neither hook is invoked for a gap;
		// data read from it is zero (mirrors complete_access.go's
		// CompleteRead gap branch, generalized to single access).
		bits, _ := d.maxSizeBits()
		if err := w.WriteBits(0, bits); err != nil {
			return abortcode.General
		}
		return abortcode.OK
	}

	if !CanRead(d.Attr, perms) {
		if IsWritable(d.Attr) && !IsReadable(d.Attr) {
			return abortcode.WriteOnly
		}
		return abortcode.UnsupportedAccess
	}

	if code := o.hooks.callBeforeRead(si, false, false); code != abortcode.OK {
		return code
	}

	native, err := o.accessor.Get(si)
	if err != nil {
		return abortcode.General
	}
	if encErr := codec.Encode(w, native, d.DataType, d.NElements, false); encErr != nil {
		return abortcode.General
	}
	return abortcode.OK
}

// Write performs a single-subindex write (§4.B "Write algorithm").
func (o *Object) Write(si uint8, perms Attribute, r codec.BitStreamReader) abortcode.Code {
	d, err := o.descriptor(si)
	if err != nil {
		if si == 0 {
			return abortcode.NotExist
		}
		return abortcode.SubUnknown
	}

	if d.Gap {
		// §4.B: neither hook is invoked; reader bits equal to the
		// gap's width are consumed and discarded (mirrors
		// complete_access.go's CompleteWrite gap branch).
		bits, _ := d.maxSizeBits()
		if _, err := r.ReadBits(bits); err != nil {
			return abortcode.DataShort
		}
		return abortcode.OK
	}

	if o.kind == KindArray && si == 0 {
		// SI0 writes on ARRAY change the element count; only legal if
		// SI0 itself is writable.
		if !IsWritable(d.Attr) {
			return abortcode.ReadOnly
		}
	}
	if o.kind == KindRecord && si == 0 {
		return abortcode.SI0MustBeZero
	}

	if !CanWrite(d.Attr, perms) {
		// Read-only either by attribute or from the caller's view (the
		// caller's permissions grant read but not write).
		if IsReadable(d.Attr) && (!IsWritable(d.Attr) || CanRead(d.Attr, perms)) {
			return abortcode.ReadOnly
		}
		return abortcode.UnsupportedAccess
	}

	scratch, decErr := codec.Decode(r, d.DataType, d.NElements, false)
	if decErr != nil {
		return abortcode.DataShort
	}
	if rem := r.RemainingClass(); rem == codec.RemainingMoreThanSeven {
		return abortcode.DataLong
	}

	if code := o.hooks.callBeforeWrite(si, false, scratch); code != abortcode.OK {
		return code
	}

	if err := o.accessor.Set(si, scratch); err != nil {
		return abortcode.General
	}
	o.hooks.callAfterWrite(si, false)
	return abortcode.OK
}
