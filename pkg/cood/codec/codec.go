package codec

import (
	"fmt"
	"math"
)

// Encode writes native (a Go value matching dataType's canonical
// representation) to w as little-endian CANopen bytes. Bit-based types
// are written stuffed (no byte alignment); byte-based types are expected
// to already be aligned by the caller before Encode is invoked for that
// subindex (the object layer aligns at subindex boundaries during
// Complete Access; see object.CompleteRead).
//
// completeAccess only affects the three string types: on a single
// subindex access the actual string/slice length is written; on a
// complete access transfer, trailing NUL (VisibleString/UnicodeString)
// or zero (OctetString) bytes pad the output to nElements.
func Encode(w BitStreamWriter, native any, dataType DataType, nElements int, completeAccess bool) error {
	switch dataType {
	case Boolean:
		v, ok := native.(bool)
		if !ok {
			return typeErr(dataType, native)
		}
		if v {
			return w.WriteUint8(1)
		}
		return w.WriteUint8(0)

	case Integer8:
		v, ok := native.(int8)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint8(uint8(v))
	case Integer16:
		v, ok := native.(int16)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint16(uint16(v))
	case Integer32:
		v, ok := native.(int32)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint32(uint32(v))
	case Integer64:
		v, ok := native.(int64)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint64(uint64(v))

	case Unsigned8:
		v, ok := native.(uint8)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint8(v)
	case Unsigned16:
		v, ok := native.(uint16)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint16(v)
	case Unsigned32:
		v, ok := native.(uint32)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint32(v)
	case Unsigned64:
		v, ok := native.(uint64)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint64(v)

	case Real32:
		v, ok := native.(float32)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint32(math.Float32bits(v))
	case Real64:
		v, ok := native.(float64)
		if !ok {
			return typeErr(dataType, native)
		}
		return w.WriteUint64(math.Float64bits(v))

	case VisibleString:
		s, ok := native.(string)
		if !ok {
			return typeErr(dataType, native)
		}
		return encodeVisibleString(w, s, nElements, completeAccess)

	case OctetString:
		b, ok := native.([]byte)
		if !ok {
			return typeErr(dataType, native)
		}
		return encodeOctetString(w, b, nElements, completeAccess)

	case UnicodeString:
		s, ok := native.(string)
		if !ok {
			return typeErr(dataType, native)
		}
		return encodeUnicodeString(w, s, nElements, completeAccess)

	case Bit1, Bit2, Bit3, Bit4, Bit5, Bit6, Bit7, Bit8:
		v, ok := toUint64(native)
		if !ok {
			return typeErr(dataType, native)
		}
		width := fixedBits[dataType]
		return w.WriteBits(v, width)

	case BooleanNativeBit1:
		v, ok := native.(bool)
		if !ok {
			return typeErr(dataType, native)
		}
		if v {
			return w.WriteBits(1, 1)
		}
		return w.WriteBits(0, 1)

	case Null:
		return nil

	default:
		return fmt.Errorf("codec: unsupported data type %s", dataType)
	}
}

// Decode reads dataType's canonical representation from r. completeAccess
// controls how strings terminate: on a single subindex access the string
// runs to the end of the supplied reader; on a complete access transfer
// nElements bytes/units are always consumed. For VisibleString and
// UnicodeString, trailing filler past the first NUL/zero is discarded
// from the returned value but still consumed from r; an OctetString is
// returned with all nElements bytes.
func Decode(r BitStreamReader, dataType DataType, nElements int, completeAccess bool) (any, error) {
	switch dataType {
	case Boolean:
		v, err := r.ReadUint8()
		return v != 0, err

	case Integer8:
		v, err := r.ReadUint8()
		return int8(v), err
	case Integer16:
		v, err := r.ReadUint16()
		return int16(v), err
	case Integer32:
		v, err := r.ReadUint32()
		return int32(v), err
	case Integer64:
		v, err := r.ReadUint64()
		return int64(v), err

	case Unsigned8:
		return r.ReadUint8()
	case Unsigned16:
		return r.ReadUint16()
	case Unsigned32:
		return r.ReadUint32()
	case Unsigned64:
		return r.ReadUint64()

	case Real32:
		v, err := r.ReadUint32()
		return math.Float32frombits(v), err
	case Real64:
		v, err := r.ReadUint64()
		return math.Float64frombits(v), err

	case VisibleString:
		return decodeVisibleString(r, nElements, completeAccess)
	case OctetString:
		return decodeOctetString(r, nElements, completeAccess)
	case UnicodeString:
		return decodeUnicodeString(r, nElements, completeAccess)

	case Bit1, Bit2, Bit3, Bit4, Bit5, Bit6, Bit7, Bit8:
		width := fixedBits[dataType]
		v, err := r.ReadBits(width)
		return uint8(v), err

	case BooleanNativeBit1:
		v, err := r.ReadBits(1)
		return v != 0, err

	case Null:
		return nil, nil

	default:
		return nil, fmt.Errorf("codec: unsupported data type %s", dataType)
	}
}

func toUint64(native any) (uint64, bool) {
	switch v := native.(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		return uint64(v), true
	default:
		return 0, false
	}
}

func typeErr(dataType DataType, native any) error {
	return fmt.Errorf("codec: value %v (%T) does not match data type %s", native, native, dataType)
}

func encodeVisibleString(w BitStreamWriter, s string, nElements int, completeAccess bool) error {
	b := []byte(s)
	if !completeAccess {
		return w.WriteBytes(b)
	}
	if len(b) > nElements {
		return fmt.Errorf("codec: visible string longer than declared max %d", nElements)
	}
	if err := w.WriteBytes(b); err != nil {
		return err
	}
	for i := len(b); i < nElements; i++ {
		if err := w.WriteUint8(0); err != nil {
			return err
		}
	}
	return nil
}

func decodeVisibleString(r BitStreamReader, nElements int, completeAccess bool) (any, error) {
	if !completeAccess {
		n := r.RemainingBits() / 8
		b, err := r.ReadBytes(n)
		return string(b), err
	}
	b, err := r.ReadBytes(nElements)
	if err != nil {
		return nil, err
	}
	return string(trimTrailingNUL(b)), nil
}

func encodeOctetString(w BitStreamWriter, b []byte, nElements int, completeAccess bool) error {
	if !completeAccess {
		return w.WriteBytes(b)
	}
	if len(b) > nElements {
		return fmt.Errorf("codec: octet string longer than declared max %d", nElements)
	}
	if err := w.WriteBytes(b); err != nil {
		return err
	}
	for i := len(b); i < nElements; i++ {
		if err := w.WriteUint8(0); err != nil {
			return err
		}
	}
	return nil
}

func decodeOctetString(r BitStreamReader, nElements int, completeAccess bool) (any, error) {
	if !completeAccess {
		n := r.RemainingBits() / 8
		return r.ReadBytes(n)
	}
	return r.ReadBytes(nElements)
}

func encodeUnicodeString(w BitStreamWriter, s string, nElements int, completeAccess bool) error {
	units := []rune(s)
	if completeAccess && len(units) > nElements {
		return fmt.Errorf("codec: unicode string longer than declared max %d", nElements)
	}
	for _, u := range units {
		if err := w.WriteUint16(uint16(u)); err != nil {
			return err
		}
	}
	if completeAccess {
		for i := len(units); i < nElements; i++ {
			if err := w.WriteUint16(0); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeUnicodeString(r BitStreamReader, nElements int, completeAccess bool) (any, error) {
	count := nElements
	if !completeAccess {
		count = r.RemainingBits() / 16
	}
	runes := make([]rune, 0, count)
	for i := 0; i < count; i++ {
		u, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if completeAccess && u == 0 {
			// consume remaining filler units but stop extending the string
			for j := i + 1; j < count; j++ {
				if _, err := r.ReadUint16(); err != nil {
					return nil, err
				}
			}
			break
		}
		runes = append(runes, rune(u))
	}
	return string(runes), nil
}

func trimTrailingNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
