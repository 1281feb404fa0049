package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
)

// ObjectEnumRequest asks for every registered index in [StartIndex,
// LastIndex] whose object's SI0 attributes intersect AttrFilter
// (§4.D "ObjectEnum").
type ObjectEnumRequest struct {
	Request
	StartIndex uint16
	LastIndex  uint16
	AttrFilter uint16
}

const objectEnumRequestPayloadSize = 2 + 2 + 2

// NewObjectEnumRequest builds an ObjectEnum request. startIndex must be
// <= lastIndex and attrFilter must be non-zero.
func NewObjectEnumRequest(maxResponseSize uint32, startIndex, lastIndex, attrFilter uint16) (*ObjectEnumRequest, error) {
	if startIndex > lastIndex {
		return nil, fmt.Errorf("%w: startIndex > lastIndex", ErrMalformed)
	}
	if attrFilter == 0 {
		return nil, fmt.Errorf("%w: attrFilter must be non-zero", ErrMalformed)
	}
	base, err := NewRequest(RequestObjectEnum, maxResponseSize)
	if err != nil {
		return nil, err
	}
	return &ObjectEnumRequest{Request: base, StartIndex: startIndex, LastIndex: lastIndex, AttrFilter: attrFilter}, nil
}

func (r *ObjectEnumRequest) RequestType() RequestType { return RequestObjectEnum }
func (r *ObjectEnumRequest) Base() *Request           { return &r.Request }

func (r *ObjectEnumRequest) ToBinary() []byte {
	header := r.headerToBinary()
	buf := make([]byte, len(header)+objectEnumRequestPayloadSize)
	copy(buf, header)
	off := len(header)
	binary.LittleEndian.PutUint16(buf[off:off+2], r.StartIndex)
	binary.LittleEndian.PutUint16(buf[off+2:off+4], r.LastIndex)
	binary.LittleEndian.PutUint16(buf[off+4:off+6], r.AttrFilter)
	return buf
}

func objectEnumRequestFromBinary(data []byte) (*ObjectEnumRequest, error) {
	base, off, err := parseHeader(data, RequestObjectEnum)
	if err != nil {
		return nil, err
	}
	if len(data) < off+objectEnumRequestPayloadSize {
		return nil, fmt.Errorf("%w: object enum request payload truncated", ErrMalformed)
	}
	start := binary.LittleEndian.Uint16(data[off : off+2])
	last := binary.LittleEndian.Uint16(data[off+2 : off+4])
	filter := binary.LittleEndian.Uint16(data[off+4 : off+6])
	if start > last {
		return nil, fmt.Errorf("%w: startIndex > lastIndex", ErrMalformed)
	}
	if filter == 0 {
		return nil, fmt.Errorf("%w: attrFilter must be non-zero", ErrMalformed)
	}
	return &ObjectEnumRequest{Request: base, StartIndex: start, LastIndex: last, AttrFilter: filter}, nil
}

// ObjectEnumResponse carries the matching indices, possibly only a
// page of them (SUPPLEMENTED FEATURES: "ObjectEnumResponse streaming
// enumeration", grounded on ObjectEnumRequest.cpp's fragmented-response
// story, the same shape as ObjectInfoResponse's fragmentation).
// Indices are u16 entries, the response budget permitting; a consumer
// detects truncation via IsComplete and resumes with a new request
// whose StartIndex is the returned resume cursor.
type ObjectEnumResponse struct {
	Response
	Indices []uint16
	// complete is true when Indices covers every matching index up to
	// and including the original request's LastIndex.
	complete bool
}

const objectEnumResponseFixedSize = 1 + 2 // u8 complete, u16 nbIndices

// NewObjectEnumResponse builds a successful ObjectEnumResponse,
// greedily including as many of the candidate indices as fit within
// budgetBytes (the response's total serialized size, excluding the
// common header which the caller has already accounted for). At least
// one index is always included if candidates is non-empty, matching
// "the minimum useful budget always includes at least one descriptor"
// (§4.D "Size budgets").
func NewObjectEnumResponse(returnStack []ReturnStackItem, candidates []uint16, budgetBytes int) *ObjectEnumResponse {
	maxIndices := (budgetBytes - objectEnumResponseFixedSize) / 2
	if maxIndices < 1 {
		maxIndices = 1
	}
	complete := true
	indices := candidates
	if len(candidates) > maxIndices {
		indices = candidates[:maxIndices]
		complete = false
	}
	return &ObjectEnumResponse{
		Response: NewResponse(RequestObjectEnum, abortcode.OK, returnStack),
		Indices:  append([]uint16(nil), indices...),
		complete: complete,
	}
}

// NewFailedObjectEnumResponse builds an unsuccessful response carrying
// only the overall result.
func NewFailedObjectEnumResponse(result abortcode.Code, returnStack []ReturnStackItem) *ObjectEnumResponse {
	return &ObjectEnumResponse{Response: NewResponse(RequestObjectEnum, result, returnStack), complete: true}
}

// IsComplete reports whether every matching index has been delivered.
// If not, *nextStartIndex is set to the index the follow-up request
// should use as its StartIndex (mirroring ObjectInfoResponse's
// IsComplete(&next_si) shape).
func (r *ObjectEnumResponse) IsComplete(nextStartIndex *uint16) bool {
	if r.complete {
		return true
	}
	if nextStartIndex != nil && len(r.Indices) > 0 {
		*nextStartIndex = r.Indices[len(r.Indices)-1] + 1
	}
	return false
}

func (r *ObjectEnumResponse) ResponseType() RequestType { return RequestObjectEnum }
func (r *ObjectEnumResponse) Base() *Response           { return &r.Response }

func (r *ObjectEnumResponse) ToBinary() []byte {
	header := r.headerToBinary()
	if r.Result != abortcode.OK {
		return header
	}
	buf := make([]byte, len(header)+objectEnumResponseFixedSize+2*len(r.Indices))
	copy(buf, header)
	off := len(header)
	if r.complete {
		buf[off] = 1
	}
	off++
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(r.Indices)))
	off += 2
	for _, idx := range r.Indices {
		binary.LittleEndian.PutUint16(buf[off:off+2], idx)
		off += 2
	}
	return buf
}

func objectEnumResponseFromBinary(data []byte) (*ObjectEnumResponse, error) {
	base, off, err := parseResponseHeader(data, RequestObjectEnum)
	if err != nil {
		return nil, err
	}
	resp := &ObjectEnumResponse{Response: base, complete: true}
	if base.Result != abortcode.OK {
		return resp, nil
	}
	if len(data) < off+objectEnumResponseFixedSize {
		return nil, fmt.Errorf("%w: object enum response length field truncated", ErrMalformed)
	}
	resp.complete = data[off] != 0
	off++
	n := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+2*n {
		return nil, fmt.Errorf("%w: object enum response indices truncated", ErrMalformed)
	}
	indices := make([]uint16, n)
	for i := 0; i < n; i++ {
		indices[i] = binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
	}
	resp.Indices = indices
	return resp, nil
}
