package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
)

// WriteRequest requests that data be written to a single subindex, or
// performs a Complete Access write to an object (§4.D "Write").
type WriteRequest struct {
	Request
	AccessType  AccessType
	Index       uint16
	Subindex    uint8
	Permissions uint16
	Data        []byte
}

// NewWriteRequest builds a Write request.
func NewWriteRequest(maxResponseSize uint32, accessType AccessType, index uint16, subindex uint8, permissions uint16, data []byte) (*WriteRequest, error) {
	if !accessType.valid() {
		return nil, fmt.Errorf("%w: invalid access type %d", ErrMalformed, accessType)
	}
	base, err := NewRequest(RequestWrite, maxResponseSize)
	if err != nil {
		return nil, err
	}
	return &WriteRequest{
		Request: base, AccessType: accessType, Index: index, Subindex: subindex,
		Permissions: permissions, Data: append([]byte(nil), data...),
	}, nil
}

func (r *WriteRequest) RequestType() RequestType { return RequestWrite }
func (r *WriteRequest) Base() *Request           { return &r.Request }

func (r *WriteRequest) ToBinary() []byte {
	header := r.headerToBinary()
	buf := make([]byte, len(header)+readWritePayloadSize+4+len(r.Data))
	copy(buf, header)
	off := len(header)
	buf[off] = uint8(r.AccessType)
	binary.LittleEndian.PutUint16(buf[off+1:off+3], r.Index)
	buf[off+3] = r.Subindex
	binary.LittleEndian.PutUint16(buf[off+4:off+6], r.Permissions)
	off += readWritePayloadSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Data)))
	copy(buf[off+4:], r.Data)
	return buf
}

func writeRequestFromBinary(data []byte) (*WriteRequest, error) {
	base, off, err := parseHeader(data, RequestWrite)
	if err != nil {
		return nil, err
	}
	if len(data) < off+readWritePayloadSize {
		return nil, fmt.Errorf("%w: write request payload truncated", ErrMalformed)
	}
	accessType := AccessType(data[off])
	if !accessType.valid() {
		return nil, fmt.Errorf("%w: invalid access type %d", ErrMalformed, accessType)
	}
	index := binary.LittleEndian.Uint16(data[off+1 : off+3])
	subindex := data[off+3]
	permissions := binary.LittleEndian.Uint16(data[off+4 : off+6])
	off += readWritePayloadSize
	if len(data) < off+4 {
		return nil, fmt.Errorf("%w: write request length field truncated", ErrMalformed)
	}
	n := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if uint64(off)+uint64(n) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: write request data truncated", ErrMalformed)
	}
	return &WriteRequest{
		Request: base, AccessType: accessType, Index: index, Subindex: subindex,
		Permissions: permissions, Data: append([]byte(nil), data[off:off+int(n)]...),
	}, nil
}

// WriteResponse carries only the overall result (§4.D).
type WriteResponse struct {
	Response
}

// NewWriteResponse builds a Write response.
func NewWriteResponse(result abortcode.Code, returnStack []ReturnStackItem) *WriteResponse {
	return &WriteResponse{Response: NewResponse(RequestWrite, result, returnStack)}
}

func (r *WriteResponse) ResponseType() RequestType { return RequestWrite }
func (r *WriteResponse) Base() *Response           { return &r.Response }
func (r *WriteResponse) ToBinary() []byte          { return r.headerToBinary() }

func writeResponseFromBinary(data []byte) (*WriteResponse, error) {
	base, _, err := parseResponseHeader(data, RequestWrite)
	if err != nil {
		return nil, err
	}
	return &WriteResponse{Response: base}, nil
}
