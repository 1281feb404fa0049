package object

import (
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableReadWriteU8(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(0x00)})
	v := NewVariable(0x2000, "testVar", SubindexDescriptor{
		DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite, NElements: 1,
	}, acc)

	w := codec.NewBitWriter()
	require.NoError(t, w.WriteUint8(0x42))
	code := v.Write(0, AttrRead|AttrWrite, codec.NewBitReader(w.Bytes()))
	assert.Equal(t, abortcode.OK, code)

	out := codec.NewBitWriter()
	code = v.Read(0, AttrRead|AttrWrite, out)
	assert.Equal(t, abortcode.OK, code)
	assert.Equal(t, []byte{0x42}, out.Bytes())
}

func TestVariableWriteRejectedWithoutPermission(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(0x00)})
	v := NewVariable(0x2000, "testVar", SubindexDescriptor{
		DataType: codec.Unsigned8, Attr: AttrRead, NElements: 1,
	}, acc)

	w := codec.NewBitWriter()
	require.NoError(t, w.WriteUint8(0x42))
	code := v.Write(0, AttrRead|AttrWrite, codec.NewBitReader(w.Bytes()))
	assert.Equal(t, abortcode.ReadOnly, code)
}

func TestVariableUnsupportedCompleteAccess(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(0)})
	v := NewVariable(0x2000, "testVar", SubindexDescriptor{DataType: codec.Unsigned8, Attr: AttrRead, NElements: 1}, acc)
	w := codec.NewBitWriter()
	code := v.CompleteRead(true, false, AllPermissions, w)
	assert.Equal(t, abortcode.UnsupportedAccess, code)
}

func TestRecordCompleteReadWrite(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{
		0: uint8(2),
		1: uint8(0x11),
		2: uint16(0x2233),
	})
	rec := NewRecord(0x3000, "testRecord", []SubindexDescriptor{
		{DataType: codec.Unsigned8, Attr: AttrReadConst},
		{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite, Name: "first"},
		{DataType: codec.Unsigned16, Attr: AttrRead | AttrWrite, Name: "second"},
	}, acc)

	w := codec.NewBitWriter()
	code := rec.CompleteRead(true, false, AllPermissions, w)
	require.Equal(t, abortcode.OK, code)
	assert.Equal(t, []byte{0x02, 0x11, 0x33, 0x22}, w.Bytes())

	r := codec.NewBitReader([]byte{0x02, 0xAA, 0x44, 0x55})
	code = rec.CompleteWrite(true, false, AllPermissions, r, 0)
	require.Equal(t, abortcode.OK, code)

	v1, _ := acc.Get(1)
	v2, _ := acc.Get(2)
	assert.EqualValues(t, 0xAA, v1)
	assert.EqualValues(t, 0x5544, v2)
}

func TestRecordCompleteWriteRejectsMismatchedSI0(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(1), 1: uint8(0)})
	rec := NewRecord(0x3000, "r", []SubindexDescriptor{
		{DataType: codec.Unsigned8, Attr: AttrReadConst},
		{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite},
	}, acc)

	r := codec.NewBitReader([]byte{0x05, 0x01})
	code := rec.CompleteWrite(true, false, AllPermissions, r, 0)
	assert.Equal(t, abortcode.InvalidValue, code)
}

func TestRecordGapSubindexSkipped(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(2), 2: uint8(0x99)})
	rec := NewRecord(0x3000, "r", []SubindexDescriptor{
		{DataType: codec.Unsigned8, Attr: AttrReadConst},
		{DataType: codec.Unsigned8, Gap: true},
		{DataType: codec.Unsigned8, Attr: AttrRead, Name: "second"},
	}, acc)

	w := codec.NewBitWriter()
	code := rec.CompleteRead(true, false, AllPermissions, w)
	require.Equal(t, abortcode.OK, code)
	assert.Equal(t, []byte{0x02, 0x00, 0x99}, w.Bytes())
}

func TestRecordGapSingleSubindexReadWrite(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(2), 2: uint8(0x99)})
	rec := NewRecord(0x3000, "r", []SubindexDescriptor{
		{DataType: codec.Unsigned8, Attr: AttrReadConst},
		{DataType: codec.Unsigned8, Gap: true},
		{DataType: codec.Unsigned8, Attr: AttrRead, Name: "second"},
	}, acc)

	out := codec.NewBitWriter()
	code := rec.Read(1, AllPermissions, out)
	require.Equal(t, abortcode.OK, code)
	assert.Equal(t, []byte{0x00}, out.Bytes())

	code = rec.Write(1, AllPermissions, codec.NewBitReader([]byte{0x7F}))
	require.Equal(t, abortcode.OK, code)
	_, err := acc.Get(1)
	assert.Error(t, err, "a gap write must never reach the accessor")
}

func TestArrayWritableSI0GrowsCount(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(1), 1: uint8(0xAA), 2: uint8(0xBB)})
	arr := NewArray(0x4000, "arr", 2,
		SubindexDescriptor{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite},
		SubindexDescriptor{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite},
		acc,
	)
	assert.EqualValues(t, 2, arr.NSubindices())

	r := codec.NewBitReader([]byte{0x02, 0x01, 0x02})
	code := arr.CompleteWrite(true, false, AllPermissions, r, 0)
	require.Equal(t, abortcode.OK, code)
	assert.EqualValues(t, 3, arr.NSubindices())
}

func TestHooksInvoked(t *testing.T) {
	var beforeReadCalls, beforeWriteCalls, afterWriteCalls int
	acc := NewMapAccessor(map[uint8]any{0: uint8(0)})
	v := NewVariable(0x2000, "hooked", SubindexDescriptor{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite}, acc,
		WithHooks(Hooks{
			BeforeRead: func(si uint8, ca, sizeQuery bool) abortcode.Code {
				beforeReadCalls++
				return abortcode.OK
			},
			BeforeWrite: func(si uint8, ca bool, scratch any) abortcode.Code {
				beforeWriteCalls++
				return abortcode.OK
			},
			AfterWrite: func(si uint8, ca bool) {
				afterWriteCalls++
			},
		}))

	out := codec.NewBitWriter()
	v.Read(0, AllPermissions, out)
	assert.Equal(t, 1, beforeReadCalls)

	w := codec.NewBitWriter()
	require.NoError(t, w.WriteUint8(1))
	v.Write(0, AllPermissions, codec.NewBitReader(w.Bytes()))
	assert.Equal(t, 1, beforeWriteCalls)
	assert.Equal(t, 1, afterWriteCalls)
}

func TestBeforeWriteVetoPreventsMutation(t *testing.T) {
	acc := NewMapAccessor(map[uint8]any{0: uint8(0x00)})
	v := NewVariable(0x2000, "vetoed", SubindexDescriptor{DataType: codec.Unsigned8, Attr: AttrRead | AttrWrite}, acc,
		WithHooks(Hooks{
			BeforeWrite: func(si uint8, ca bool, scratch any) abortcode.Code {
				return abortcode.InvalidValue
			},
		}))

	w := codec.NewBitWriter()
	require.NoError(t, w.WriteUint8(0x55))
	code := v.Write(0, AllPermissions, codec.NewBitReader(w.Bytes()))
	assert.Equal(t, abortcode.InvalidValue, code)

	got, _ := acc.Get(0)
	assert.EqualValues(t, 0x00, got)
}
