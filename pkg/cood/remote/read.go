package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
)

// AccessType selects whether a Read/Write targets a single subindex
// or performs a Complete Access transfer (§4.D).
type AccessType uint8

const (
	AccessSingleSubindex AccessType = iota
	AccessCompleteAccessSI0_8bit
	AccessCompleteAccessSI0_16bit
)

func (a AccessType) valid() bool {
	return a == AccessSingleSubindex || a == AccessCompleteAccessSI0_8bit || a == AccessCompleteAccessSI0_16bit
}

// readWritePayloadSize is the size, in bytes, of the fixed
// {access_type, index, subindex, permissions} quad shared by Read and
// the fixed portion of Write.
const readWritePayloadSize = 1 + 2 + 1 + 2

// ReadRequest requests the value of one subindex, or a Complete Access
// transfer of an object, be read and returned (§4.D "Read").
type ReadRequest struct {
	Request
	AccessType  AccessType
	Index       uint16
	Subindex    uint8
	Permissions uint16
}

// NewReadRequest builds a Read request.
func NewReadRequest(maxResponseSize uint32, accessType AccessType, index uint16, subindex uint8, permissions uint16) (*ReadRequest, error) {
	if !accessType.valid() {
		return nil, fmt.Errorf("%w: invalid access type %d", ErrMalformed, accessType)
	}
	base, err := NewRequest(RequestRead, maxResponseSize)
	if err != nil {
		return nil, err
	}
	return &ReadRequest{Request: base, AccessType: accessType, Index: index, Subindex: subindex, Permissions: permissions}, nil
}

func (r *ReadRequest) RequestType() RequestType { return RequestRead }
func (r *ReadRequest) Base() *Request           { return &r.Request }

func (r *ReadRequest) ToBinary() []byte {
	header := r.headerToBinary()
	buf := make([]byte, len(header)+readWritePayloadSize)
	copy(buf, header)
	off := len(header)
	buf[off] = uint8(r.AccessType)
	binary.LittleEndian.PutUint16(buf[off+1:off+3], r.Index)
	buf[off+3] = r.Subindex
	binary.LittleEndian.PutUint16(buf[off+4:off+6], r.Permissions)
	return buf
}

func readRequestFromBinary(data []byte) (*ReadRequest, error) {
	base, off, err := parseHeader(data, RequestRead)
	if err != nil {
		return nil, err
	}
	if len(data) < off+readWritePayloadSize {
		return nil, fmt.Errorf("%w: read request payload truncated", ErrMalformed)
	}
	accessType := AccessType(data[off])
	if !accessType.valid() {
		return nil, fmt.Errorf("%w: invalid access type %d", ErrMalformed, accessType)
	}
	index := binary.LittleEndian.Uint16(data[off+1 : off+3])
	subindex := data[off+3]
	permissions := binary.LittleEndian.Uint16(data[off+4 : off+6])
	return &ReadRequest{Request: base, AccessType: accessType, Index: index, Subindex: subindex, Permissions: permissions}, nil
}

// ReadResponse carries either the decoded data bytes of a successful
// read or, on failure, just the overall result.
type ReadResponse struct {
	Response
	Data []byte
}

// NewReadResponse builds a Read response. data is ignored (and must be
// empty) if result is not abortcode.OK.
func NewReadResponse(result abortcode.Code, returnStack []ReturnStackItem, data []byte) *ReadResponse {
	resp := &ReadResponse{Response: NewResponse(RequestRead, result, returnStack)}
	if result == abortcode.OK {
		resp.Data = append([]byte(nil), data...)
	}
	return resp
}

func (r *ReadResponse) ResponseType() RequestType { return RequestRead }
func (r *ReadResponse) Base() *Response           { return &r.Response }

func (r *ReadResponse) ToBinary() []byte {
	header := r.headerToBinary()
	if r.Result != abortcode.OK {
		return header
	}
	buf := make([]byte, len(header)+4+len(r.Data))
	copy(buf, header)
	off := len(header)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Data)))
	copy(buf[off+4:], r.Data)
	return buf
}

func readResponseFromBinary(data []byte) (*ReadResponse, error) {
	base, off, err := parseResponseHeader(data, RequestRead)
	if err != nil {
		return nil, err
	}
	resp := &ReadResponse{Response: base}
	if base.Result != abortcode.OK {
		return resp, nil
	}
	if len(data) < off+4 {
		return nil, fmt.Errorf("%w: read response length field truncated", ErrMalformed)
	}
	n := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if uint64(off)+uint64(n) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: read response data truncated", ErrMalformed)
	}
	resp.Data = append([]byte(nil), data[off:off+int(n)]...)
	return resp, nil
}
