package server

import (
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood"
	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/samsamfire/coodcore/pkg/cood/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDict(t *testing.T) *cood.ObjectDictionary {
	dict := cood.New()
	accessor := object.NewMapAccessor(map[uint8]any{0: uint8(0x42)})
	obj := object.NewVariable(0x2000, "testVar", object.SubindexDescriptor{
		DataType:  codec.Unsigned8,
		Attr:      object.AttrRead | object.AttrWrite,
		NElements: 1,
		Name:      "value",
	}, accessor)
	require.NoError(t, dict.Register(0x2000, obj))
	return dict
}

func TestServePing(t *testing.T) {
	s := New(newTestDict(t))
	req, err := remote.NewPingRequest(remote.MinUsefulResponseSize)
	require.NoError(t, err)
	resp := s.Serve(req)
	assert.Equal(t, abortcode.OK, resp.Base().Result)
}

func TestServeReadSingleSubindex(t *testing.T) {
	s := New(newTestDict(t))
	req, err := remote.NewReadRequest(remote.MinUsefulResponseSize, remote.AccessSingleSubindex, 0x2000, 0, uint16(object.AllPermissions))
	require.NoError(t, err)
	resp := s.Serve(req).(*remote.ReadResponse)
	require.Equal(t, abortcode.OK, resp.Result)
	assert.Equal(t, []byte{0x42}, resp.Data)
}

func TestServeReadMissingIndex(t *testing.T) {
	s := New(newTestDict(t))
	req, err := remote.NewReadRequest(remote.MinUsefulResponseSize, remote.AccessSingleSubindex, 0x9999, 0, uint16(object.AllPermissions))
	require.NoError(t, err)
	resp := s.Serve(req).(*remote.ReadResponse)
	assert.Equal(t, abortcode.NotExist, resp.Result)
}

func TestServeWriteThenReadRoundTrips(t *testing.T) {
	dict := newTestDict(t)
	s := New(dict)

	wreq, err := remote.NewWriteRequest(remote.MinUsefulResponseSize, remote.AccessSingleSubindex, 0x2000, 0, uint16(object.AllPermissions), []byte{0x7A})
	require.NoError(t, err)
	wresp := s.Serve(wreq).(*remote.WriteResponse)
	require.Equal(t, abortcode.OK, wresp.Result)

	rreq, err := remote.NewReadRequest(remote.MinUsefulResponseSize, remote.AccessSingleSubindex, 0x2000, 0, uint16(object.AllPermissions))
	require.NoError(t, err)
	rresp := s.Serve(rreq).(*remote.ReadResponse)
	assert.Equal(t, []byte{0x7A}, rresp.Data)
}

func TestServeWriteDeniedWithoutWritePermission(t *testing.T) {
	s := New(newTestDict(t))
	wreq, err := remote.NewWriteRequest(remote.MinUsefulResponseSize, remote.AccessSingleSubindex, 0x2000, 0, uint16(object.AttrRead), []byte{0x01})
	require.NoError(t, err)
	resp := s.Serve(wreq).(*remote.WriteResponse)
	assert.Equal(t, abortcode.ReadOnly, resp.Result)
}

func TestServeObjectEnumFiltersByAttribute(t *testing.T) {
	s := New(newTestDict(t))
	req, err := remote.NewObjectEnumRequest(remote.MinUsefulResponseSize, 0, 0xFFFF, uint16(object.AttrRead))
	require.NoError(t, err)
	resp := s.Serve(req).(*remote.ObjectEnumResponse)
	assert.Equal(t, []uint16{0x2000}, resp.Indices)
}

func TestServeObjectInfoDescribesSubindex(t *testing.T) {
	s := New(newTestDict(t))
	req, err := remote.NewObjectInfoRequest(remote.MinUsefulResponseSize, 0x2000, 0, 0, true, false)
	require.NoError(t, err)
	resp := s.Serve(req).(*remote.ObjectInfoResponse)
	require.Equal(t, abortcode.OK, resp.Result)
	subs, err := resp.Subindices()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "value", subs[0].Name)
}
