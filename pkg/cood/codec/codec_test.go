package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeOfBitsFixed(t *testing.T) {
	bits, err := SizeOfBits(Unsigned32, 1)
	require.NoError(t, err)
	assert.Equal(t, 32, bits)

	bits, err = SizeOfBits(Bit3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, bits)
}

func TestSizeOfBitsString(t *testing.T) {
	bits, err := SizeOfBits(VisibleString, 10)
	require.NoError(t, err)
	assert.Equal(t, 80, bits)
}

func TestIsBitBased(t *testing.T) {
	assert.True(t, IsBitBased(Bit1))
	assert.True(t, IsBitBased(BooleanNativeBit1))
	assert.False(t, IsBitBased(Unsigned8))
}

func TestEncodeDecodeRoundTripUnsigned32(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, uint32(0xDEADBEEF), Unsigned32, 1, false))
	r := NewBitReader(w.Bytes())
	out, err := Decode(r, Unsigned32, 1, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), out)
}

func TestEncodeLittleEndian(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, uint32(0x01020304), Unsigned32, 1, false))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, w.Bytes())
}

func TestEncodeDecodeBitPacked(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, w.WriteBits(0x5, 3))
	require.NoError(t, Encode(w, uint8(0x2), Bit2, 1, false))
	require.NoError(t, w.AlignToByteBoundary(0))

	r := NewBitReader(w.Bytes())
	low, err := r.ReadBits(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0x5, low)
	mid, err := Decode(r, Bit2, 1, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0x2, mid)
}

func TestVisibleStringSingleAccessWritesActualLength(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, "hi", VisibleString, 10, false))
	assert.Len(t, w.Bytes(), 2)
}

func TestVisibleStringCompleteAccessPadsToMax(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, "hi", VisibleString, 10, true))
	assert.Len(t, w.Bytes(), 10)

	r := NewBitReader(w.Bytes())
	out, err := Decode(r, VisibleString, 10, true)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestVisibleStringTooLongForDeclaredMax(t *testing.T) {
	w := NewBitWriter()
	err := Encode(w, "too long for four", VisibleString, 4, true)
	assert.Error(t, err)
}

func TestOctetStringRoundTrip(t *testing.T) {
	w := NewBitWriter()
	payload := []byte{0x01, 0x02, 0x03}
	require.NoError(t, Encode(w, payload, OctetString, 3, false))
	r := NewBitReader(w.Bytes())
	out, err := Decode(r, OctetString, 3, false)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestRemainingClassBuckets(t *testing.T) {
	r := NewBitReader([]byte{0x00})
	assert.Equal(t, RemainingMoreThanSeven, r.RemainingClass())
	_, _ = r.ReadBits(4)
	assert.Equal(t, RemainingOneToSeven, r.RemainingClass())
	_, _ = r.ReadBits(4)
	assert.Equal(t, RemainingZero, r.RemainingClass())
}

func TestDecodeUnderflow(t *testing.T) {
	r := NewBitReader([]byte{0x01})
	_, err := Decode(r, Unsigned32, 1, false)
	assert.ErrorIs(t, err, ErrStreamShort)
}

func TestBooleanRoundTrip(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, true, Boolean, 1, false))
	r := NewBitReader(w.Bytes())
	out, err := Decode(r, Boolean, 1, false)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestRealRoundTrip(t *testing.T) {
	w := NewBitWriter()
	require.NoError(t, Encode(w, float32(3.25), Real32, 1, false))
	r := NewBitReader(w.Bytes())
	out, err := Decode(r, Real32, 1, false)
	require.NoError(t, err)
	assert.InDelta(t, float32(3.25), out, 1e-6)
}
