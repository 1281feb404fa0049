package remote

import (
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnStackPushPopPreservesBudget(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)

	before := req.MaxResponseSize()
	req.Push(ReturnStackItem{ID: 1, Info: 2})
	assert.Equal(t, before+ReturnStackItemSize, req.MaxResponseSize())

	popped := req.Pop()
	assert.Equal(t, ReturnStackItem{ID: 1, Info: 2}, popped)
	assert.Equal(t, before, req.MaxResponseSize())
	assert.Empty(t, req.ReturnStack())
}

func TestPushPanicsAtStackCeiling(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)
	for i := 0; i < 255; i++ {
		req.Push(ReturnStackItem{ID: uint32(i)})
	}
	assert.Panics(t, func() { req.Push(ReturnStackItem{ID: 999}) })
}

func TestPopPanicsWhenEmpty(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)
	assert.Panics(t, func() { req.Pop() })
}

func TestPingRoundTrip(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)
	req.Push(ReturnStackItem{ID: 7, Info: 0xABCD})

	parsed, err := FromBinary(req.ToBinary())
	require.NoError(t, err)
	got, ok := parsed.(*PingRequest)
	require.True(t, ok)
	assert.Equal(t, req.ReturnStack(), got.ReturnStack())
	assert.Equal(t, req.MaxResponseSize(), got.MaxResponseSize())
}

func TestReadRequestRoundTrip(t *testing.T) {
	req, err := NewReadRequest(MinUsefulResponseSize, AccessCompleteAccessSI0_8bit, 0x2000, 3, 0x3F)
	require.NoError(t, err)

	parsed, err := FromBinary(req.ToBinary())
	require.NoError(t, err)
	got := parsed.(*ReadRequest)
	assert.Equal(t, req.AccessType, got.AccessType)
	assert.Equal(t, req.Index, got.Index)
	assert.Equal(t, req.Subindex, got.Subindex)
	assert.Equal(t, req.Permissions, got.Permissions)
}

func TestReadRequestRejectsInvalidAccessType(t *testing.T) {
	_, err := NewReadRequest(MinUsefulResponseSize, AccessType(99), 0, 0, 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadResponseRoundTrip(t *testing.T) {
	resp := NewReadResponse(abortcode.OK, nil, []byte{1, 2, 3, 4})
	parsed, err := ResponseFromBinary(resp.ToBinary())
	require.NoError(t, err)
	got := parsed.(*ReadResponse)
	assert.Equal(t, resp.Data, got.Data)
	assert.Equal(t, abortcode.OK, got.Result)
}

func TestReadResponseFailureCarriesNoData(t *testing.T) {
	resp := NewReadResponse(abortcode.SubUnknown, nil, nil)
	parsed, err := ResponseFromBinary(resp.ToBinary())
	require.NoError(t, err)
	got := parsed.(*ReadResponse)
	assert.Equal(t, abortcode.SubUnknown, got.Result)
	assert.Empty(t, got.Data)
}

func TestWriteRequestRoundTrip(t *testing.T) {
	req, err := NewWriteRequest(MinUsefulResponseSize, AccessSingleSubindex, 0x2001, 1, 0x3F, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	parsed, err := FromBinary(req.ToBinary())
	require.NoError(t, err)
	got := parsed.(*WriteRequest)
	assert.Equal(t, req.Data, got.Data)
	assert.Equal(t, req.Index, got.Index)
}

func TestWriteResponseRoundTrip(t *testing.T) {
	resp := NewWriteResponse(abortcode.ReadOnly, []ReturnStackItem{{ID: 1, Info: 2}})
	parsed, err := ResponseFromBinary(resp.ToBinary())
	require.NoError(t, err)
	got := parsed.(*WriteResponse)
	assert.Equal(t, abortcode.ReadOnly, got.Result)
	assert.Equal(t, resp.ReturnStack(), got.ReturnStack())
}

func TestObjectEnumRequestRejectsBadRange(t *testing.T) {
	_, err := NewObjectEnumRequest(MinUsefulResponseSize, 0x2000, 0x1000, 0xFFFF)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewObjectEnumRequest(MinUsefulResponseSize, 0x1000, 0x2000, 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestObjectEnumResponsePagination(t *testing.T) {
	candidates := []uint16{0x1000, 0x1001, 0x1002, 0x1003, 0x1004}
	resp := NewObjectEnumResponse(nil, candidates, objectEnumResponseFixedSize+2*2)

	var next uint16
	complete := resp.IsComplete(&next)
	assert.False(t, complete)
	assert.Equal(t, candidates[len(resp.Indices)-1]+1, next)
	assert.True(t, len(resp.Indices) >= 1)

	// Round-trip through binary.
	parsed, err := ResponseFromBinary(resp.ToBinary())
	require.NoError(t, err)
	got := parsed.(*ObjectEnumResponse)
	assert.Equal(t, resp.Indices, got.Indices)
	assert.False(t, got.IsComplete(new(uint16)))
}

func TestObjectEnumResponseAlwaysIncludesOne(t *testing.T) {
	candidates := []uint16{0x1000, 0x1001}
	resp := NewObjectEnumResponse(nil, candidates, 0)
	assert.Len(t, resp.Indices, 1)
}

func TestObjectInfoResponseRoundTrip(t *testing.T) {
	meta := ObjectMeta{Index: 0x3000, Kind: 2, MaxNbSI: 3, Name: "testRecord"}
	descs := []SubindexMeta{
		{SI: 1, DataType: 5, Attributes: 0x3F, MaxSizeBits: 8, Name: "first"},
		{SI: 2, DataType: 6, Attributes: 0x3F, MaxSizeBits: 16, Name: "second"},
	}
	resp := NewObjectInfoResponse(nil, meta, true, false, descs, 4096)
	assert.True(t, resp.IsComplete(2, nil))

	parsed, err := ResponseFromBinary(resp.ToBinary())
	require.NoError(t, err)
	got := parsed.(*ObjectInfoResponse)

	gotMeta, err := got.ObjectMeta()
	require.NoError(t, err)
	assert.Equal(t, meta, gotMeta)

	gotSI, err := got.Subindices()
	require.NoError(t, err)
	assert.Equal(t, descs, gotSI)
}

func TestObjectInfoResponseFragmentationAndMerge(t *testing.T) {
	meta := ObjectMeta{Index: 0x3000, Kind: 2, MaxNbSI: 4}
	descs := []SubindexMeta{
		{SI: 1, DataType: 5, MaxSizeBits: 8},
		{SI: 2, DataType: 5, MaxSizeBits: 8},
		{SI: 3, DataType: 5, MaxSizeBits: 8},
		{SI: 4, DataType: 5, MaxSizeBits: 8},
	}

	// Budget for exactly one descriptor beyond the meta overhead.
	first := NewObjectInfoResponse(nil, meta, false, false, descs, objectInfoMetaSize(meta, false)+1+subindexMetaSize(descs[0], false, false))

	var next uint8
	complete := first.IsComplete(4, &next)
	require.False(t, complete)

	merged := first
	for !complete {
		remaining := descs[next-1:]
		frag := NewObjectInfoResponse(nil, meta, false, false, remaining, objectInfoMetaSize(meta, false)+1+subindexMetaSize(remaining[0], false, false))
		require.NoError(t, merged.AddFragment(frag))
		complete = merged.IsComplete(4, &next)
	}

	full := NewObjectInfoResponse(nil, meta, false, false, descs, 4096)
	gotSI, err := merged.Subindices()
	require.NoError(t, err)
	wantSI, err := full.Subindices()
	require.NoError(t, err)
	assert.Equal(t, wantSI, gotSI)
}

func TestObjectInfoResponseUnsuccessfulAccessorsFail(t *testing.T) {
	resp := NewFailedObjectInfoResponse(abortcode.NotExist, nil)
	_, err := resp.ObjectMeta()
	assert.ErrorIs(t, err, ErrUnsuccessfulResponse)
	_, err = resp.Subindices()
	assert.ErrorIs(t, err, ErrUnsuccessfulResponse)
}

func TestFromBinaryRejectsWrongVersion(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)
	data := req.ToBinary()
	data[0] = FormatVersion + 1
	_, err = FromBinary(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestFromBinaryRejectsUnknownType(t *testing.T) {
	req, err := NewPingRequest(MinUsefulResponseSize)
	require.NoError(t, err)
	data := req.ToBinary()
	data[1] = 0xFF
	_, err = FromBinary(data)
	assert.ErrorIs(t, err, ErrUnknownRequestType)
}
