package remote

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
)

// ObjectInfoRequest asks for per-subindex metadata of one object,
// optionally restricted to [FirstSI, LastSI] and optionally including
// names and application-specific metadata (§4.D "ObjectInfo (request)").
type ObjectInfoRequest struct {
	Request
	Index      uint16
	FirstSI    uint8
	LastSI     uint8
	InclNames  bool
	InclASM    bool
}

const objectInfoRequestPayloadSize = 2 + 1 + 1 + 1 + 1

// NewObjectInfoRequest builds an ObjectInfo request.
func NewObjectInfoRequest(maxResponseSize uint32, index uint16, firstSI, lastSI uint8, inclNames, inclASM bool) (*ObjectInfoRequest, error) {
	if firstSI > lastSI {
		return nil, fmt.Errorf("%w: firstSI > lastSI", ErrMalformed)
	}
	base, err := NewRequest(RequestObjectInfo, maxResponseSize)
	if err != nil {
		return nil, err
	}
	return &ObjectInfoRequest{Request: base, Index: index, FirstSI: firstSI, LastSI: lastSI, InclNames: inclNames, InclASM: inclASM}, nil
}

func (r *ObjectInfoRequest) RequestType() RequestType { return RequestObjectInfo }
func (r *ObjectInfoRequest) Base() *Request           { return &r.Request }

func (r *ObjectInfoRequest) ToBinary() []byte {
	header := r.headerToBinary()
	buf := make([]byte, len(header)+objectInfoRequestPayloadSize)
	copy(buf, header)
	off := len(header)
	binary.LittleEndian.PutUint16(buf[off:off+2], r.Index)
	buf[off+2] = r.FirstSI
	buf[off+3] = r.LastSI
	buf[off+4] = boolToByte(r.InclNames)
	buf[off+5] = boolToByte(r.InclASM)
	return buf
}

func objectInfoRequestFromBinary(data []byte) (*ObjectInfoRequest, error) {
	base, off, err := parseHeader(data, RequestObjectInfo)
	if err != nil {
		return nil, err
	}
	if len(data) < off+objectInfoRequestPayloadSize {
		return nil, fmt.Errorf("%w: object info request payload truncated", ErrMalformed)
	}
	index := binary.LittleEndian.Uint16(data[off : off+2])
	firstSI := data[off+2]
	lastSI := data[off+3]
	if firstSI > lastSI {
		return nil, fmt.Errorf("%w: firstSI > lastSI", ErrMalformed)
	}
	inclNames := data[off+4] != 0
	inclASM := data[off+5] != 0
	return &ObjectInfoRequest{Request: base, Index: index, FirstSI: firstSI, LastSI: lastSI, InclNames: inclNames, InclASM: inclASM}, nil
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ObjectMeta describes the object-level metadata included once at the
// front of a successful ObjectInfoResponse (name and kind never vary
// per-subindex).
type ObjectMeta struct {
	Index   uint16
	Kind    uint8 // object.Kind, kept decoupled from the object package
	MaxNbSI uint8
	Name    string
}

// SubindexMeta describes one subindex's metadata as carried in an
// ObjectInfoResponse.
type SubindexMeta struct {
	SI         uint8
	DataType   uint8 // codec.DataType
	Attributes uint16
	MaxSizeBits int
	Name       string // empty unless InclNames
	ASM        []byte // nil unless InclASM
}

// ErrUnsuccessfulResponse is returned by accessors on an
// ObjectInfoResponse whose Result is not abortcode.OK (§4.D:
// "Unsuccessful responses carry only result; accessors ... fail with a
// well-defined error").
var ErrUnsuccessfulResponse = errors.New("remote: accessor called on an unsuccessful ObjectInfoResponse")

// ObjectInfoResponse carries per-subindex metadata for a possibly
// partial range of an object's subindices, with flags recording
// whether names/ASM were requested and a fragmentation story for
// oversized objects (§4.D "Fragmentation (ObjectInfoResponse)").
type ObjectInfoResponse struct {
	Response
	InclNames bool
	InclASM   bool

	meta        ObjectMeta
	haveMeta    bool
	firstSI     uint8
	lastSI      uint8
	haveRange   bool
	subindices  []SubindexMeta
}

// NewObjectInfoResponse builds a successful response describing
// subindices [firstSI, lastSI] of meta, filling descriptors greedily
// in ascending SI order until budgetBytes is exhausted (§4.D "Size
// budgets": "the minimum useful budget always includes at least one
// descriptor").
func NewObjectInfoResponse(returnStack []ReturnStackItem, meta ObjectMeta, inclNames, inclASM bool, descriptors []SubindexMeta, budgetBytes int) *ObjectInfoResponse {
	resp := &ObjectInfoResponse{
		Response:  NewResponse(RequestObjectInfo, abortcode.OK, returnStack),
		InclNames: inclNames,
		InclASM:   inclASM,
		meta:      meta,
		haveMeta:  true,
	}
	if len(descriptors) == 0 {
		resp.haveRange = true
		return resp
	}

	remaining := budgetBytes - objectInfoMetaSize(meta, inclNames)
	included := 0
	for i, d := range descriptors {
		sz := subindexMetaSize(d, inclNames, inclASM)
		if i > 0 && sz > remaining {
			break
		}
		remaining -= sz
		included++
	}
	if included == 0 {
		included = 1
	}
	resp.subindices = append([]SubindexMeta(nil), descriptors[:included]...)
	resp.firstSI = descriptors[0].SI
	resp.lastSI = descriptors[included-1].SI
	resp.haveRange = true
	return resp
}

// NewFailedObjectInfoResponse builds an unsuccessful response carrying
// only the overall result.
func NewFailedObjectInfoResponse(result abortcode.Code, returnStack []ReturnStackItem) *ObjectInfoResponse {
	return &ObjectInfoResponse{Response: NewResponse(RequestObjectInfo, result, returnStack)}
}

func (r *ObjectInfoResponse) ResponseType() RequestType { return RequestObjectInfo }
func (r *ObjectInfoResponse) Base() *Response           { return &r.Response }

// ObjectMeta returns the object-level metadata. Fails on an
// unsuccessful response.
func (r *ObjectInfoResponse) ObjectMeta() (ObjectMeta, error) {
	if r.Result != abortcode.OK {
		return ObjectMeta{}, ErrUnsuccessfulResponse
	}
	return r.meta, nil
}

// Subindices returns the descriptors carried by this fragment. Fails
// on an unsuccessful response.
func (r *ObjectInfoResponse) Subindices() ([]SubindexMeta, error) {
	if r.Result != abortcode.OK {
		return nil, ErrUnsuccessfulResponse
	}
	return append([]SubindexMeta(nil), r.subindices...), nil
}

// IsComplete reports whether this response (possibly after merging
// fragments) covers the full requested range, or, for an ARRAY
// described without ASM, holds a representative subindex >= 1 that
// stands for every element (§4.D). If not, *nextSI is set
// to the resume subindex the follow-up request should use as FirstSI
// (§4.D "Fragmentation").
func (r *ObjectInfoResponse) IsComplete(requestedLastSI uint8, nextSI *uint8) bool {
	if r.Result != abortcode.OK || !r.haveRange {
		return true
	}
	if r.lastSI >= requestedLastSI {
		return true
	}
	const kindArray = 1 // object.KindArray
	if r.meta.Kind == kindArray && !r.InclASM && r.lastSI >= 1 {
		return true
	}
	if nextSI != nil {
		*nextSI = r.lastSI + 1
	}
	return false
}

// AddFragment merges a subsequent fragment into r, per §4.D "Merging":
// both responses must be successful, describe the same object (meta
// compared field-by-field), carry identical InclNames/InclASM flags,
// and other.firstSI must equal r.lastSI+1. On success, r.lastSI is
// extended and other's descriptors are appended.
func (r *ObjectInfoResponse) AddFragment(other *ObjectInfoResponse) error {
	if r.Result != abortcode.OK || other.Result != abortcode.OK {
		return fmt.Errorf("%w: AddFragment requires two successful responses", ErrMalformed)
	}
	if r.meta != other.meta {
		return fmt.Errorf("%w: AddFragment: object mismatch", ErrMalformed)
	}
	if r.InclNames != other.InclNames || r.InclASM != other.InclASM {
		return fmt.Errorf("%w: AddFragment: flag mismatch", ErrMalformed)
	}
	if other.firstSI != r.lastSI+1 {
		return fmt.Errorf("%w: AddFragment: non-contiguous range", ErrMalformed)
	}
	r.subindices = append(r.subindices, other.subindices...)
	r.lastSI = other.lastSI
	return nil
}

func objectInfoMetaSize(m ObjectMeta, inclNames bool) int {
	// index(2) + kind(1) + maxNbSI(1) + [nameLen(2)+name]
	size := 2 + 1 + 1
	if inclNames {
		size += 2 + len(m.Name)
	}
	return size
}

func subindexMetaSize(d SubindexMeta, inclNames, inclASM bool) int {
	// si(1) + dataType(1) + attrs(2) + maxSizeBits(4)
	size := 1 + 1 + 2 + 4
	if inclNames {
		size += 2 + len(d.Name)
	}
	if inclASM {
		size += 4 + len(d.ASM)
	}
	return size
}

func (r *ObjectInfoResponse) ToBinary() []byte {
	header := r.headerToBinary()
	if r.Result != abortcode.OK {
		return header
	}

	var payload []byte
	payload = append(payload, boolToByte(r.InclNames), boolToByte(r.InclASM))

	metaBuf := make([]byte, 4)
	binary.LittleEndian.PutUint16(metaBuf[0:2], r.meta.Index)
	metaBuf[2] = r.meta.Kind
	metaBuf[3] = r.meta.MaxNbSI
	payload = append(payload, metaBuf...)
	if r.InclNames {
		payload = append(payload, encodeString(r.meta.Name)...)
	}

	payload = append(payload, boolToByte(r.haveRange))
	if r.haveRange {
		payload = append(payload, r.firstSI, r.lastSI)
	}

	nbSI := make([]byte, 2)
	binary.LittleEndian.PutUint16(nbSI, uint16(len(r.subindices)))
	payload = append(payload, nbSI...)
	for _, d := range r.subindices {
		entry := make([]byte, 1+1+2+4)
		entry[0] = d.SI
		entry[1] = d.DataType
		binary.LittleEndian.PutUint16(entry[2:4], d.Attributes)
		binary.LittleEndian.PutUint32(entry[4:8], uint32(d.MaxSizeBits))
		payload = append(payload, entry...)
		if r.InclNames {
			payload = append(payload, encodeString(d.Name)...)
		}
		if r.InclASM {
			payload = append(payload, encodeBytes(d.ASM)...)
		}
	}

	return append(header, payload...)
}

func encodeString(s string) []byte {
	buf := make([]byte, 2+len(s))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(s)))
	copy(buf[2:], s)
	return buf
}

func decodeString(data []byte, off int) (string, int, error) {
	if len(data) < off+2 {
		return "", 0, fmt.Errorf("%w: string length field truncated", ErrMalformed)
	}
	n := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+n {
		return "", 0, fmt.Errorf("%w: string bytes truncated", ErrMalformed)
	}
	return string(data[off : off+n]), off + n, nil
}

func encodeBytes(b []byte) []byte {
	buf := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	copy(buf[4:], b)
	return buf
}

func decodeBytes(data []byte, off int) ([]byte, int, error) {
	if len(data) < off+4 {
		return nil, 0, fmt.Errorf("%w: byte-string length field truncated", ErrMalformed)
	}
	n := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if n < 0 || uint64(off)+uint64(n) > uint64(len(data)) {
		return nil, 0, fmt.Errorf("%w: byte-string bytes truncated", ErrMalformed)
	}
	out := append([]byte(nil), data[off:off+n]...)
	return out, off + n, nil
}

func objectInfoResponseFromBinary(data []byte) (*ObjectInfoResponse, error) {
	base, off, err := parseResponseHeader(data, RequestObjectInfo)
	if err != nil {
		return nil, err
	}
	resp := &ObjectInfoResponse{Response: base}
	if base.Result != abortcode.OK {
		return resp, nil
	}

	if len(data) < off+2 {
		return nil, fmt.Errorf("%w: object info response flags truncated", ErrMalformed)
	}
	resp.InclNames = data[off] != 0
	resp.InclASM = data[off+1] != 0
	off += 2

	if len(data) < off+4 {
		return nil, fmt.Errorf("%w: object info response meta truncated", ErrMalformed)
	}
	resp.meta.Index = binary.LittleEndian.Uint16(data[off : off+2])
	resp.meta.Kind = data[off+2]
	resp.meta.MaxNbSI = data[off+3]
	off += 4
	resp.haveMeta = true
	if resp.InclNames {
		name, newOff, err := decodeString(data, off)
		if err != nil {
			return nil, err
		}
		resp.meta.Name = name
		off = newOff
	}

	if len(data) < off+1 {
		return nil, fmt.Errorf("%w: object info response range flag truncated", ErrMalformed)
	}
	resp.haveRange = data[off] != 0
	off++
	if resp.haveRange {
		if len(data) < off+2 {
			return nil, fmt.Errorf("%w: object info response range truncated", ErrMalformed)
		}
		resp.firstSI = data[off]
		resp.lastSI = data[off+1]
		off += 2
	}

	if len(data) < off+2 {
		return nil, fmt.Errorf("%w: object info response nbSI truncated", ErrMalformed)
	}
	nbSI := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if nbSI > int(resp.meta.MaxNbSI) {
		return nil, fmt.Errorf("%w: object info response nbSI exceeds max subindices", ErrMalformed)
	}

	subindices := make([]SubindexMeta, 0, nbSI)
	prevSI := -1
	for i := 0; i < nbSI; i++ {
		if len(data) < off+8 {
			return nil, fmt.Errorf("%w: object info response subindex entry truncated", ErrMalformed)
		}
		var d SubindexMeta
		d.SI = data[off]
		d.DataType = data[off+1]
		d.Attributes = binary.LittleEndian.Uint16(data[off+2 : off+4])
		d.MaxSizeBits = int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if int(d.SI) <= prevSI {
			return nil, fmt.Errorf("%w: object info response subindex ordering violated", ErrMalformed)
		}
		prevSI = int(d.SI)

		if resp.InclNames {
			name, newOff, err := decodeString(data, off)
			if err != nil {
				return nil, err
			}
			d.Name = name
			off = newOff
		}
		if resp.InclASM {
			asm, newOff, err := decodeBytes(data, off)
			if err != nil {
				return nil, err
			}
			d.ASM = asm
			off = newOff
		}
		subindices = append(subindices, d)
	}
	resp.subindices = subindices
	return resp, nil
}
