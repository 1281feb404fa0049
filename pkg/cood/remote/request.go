// Package remote implements the serializable remote-access request/
// response family described in §4.D: a tagged union over
// {ObjectEnum, ObjectInfo, Ping, Read, Write}, a common header carrying
// a max-response-size budget and a LIFO return-stack for hop-by-hop
// routing, and bit-exact little-endian wire encoding.
//
// Wire shapes are grounded on original_source/src/cood/remote_access/
// requests_and_responses/RequestBase.cpp (ToBinary/FromBinary, Push/
// Pop budget arithmetic); logging and bitfield-parsing style are
// grounded on pkg/sdo/requests.go.
package remote

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// FormatVersion is the only wire version this package understands.
// FromBinary rejects anything else (§6 "Message binary format").
const FormatVersion uint8 = 1

// Size budgets carried forward from RequestBase::minimumUsefulRequestSize
// / maxRequestSize and their response-side counterparts (SUPPLEMENTED
// FEATURES).
const (
	MinUsefulRequestSize  = baseRequestBinarySize + 1
	MaxRequestSize        = 1024 * 1024
	MinUsefulResponseSize = baseResponseBinarySize + 1
	MaxResponseSize       = 1024 * 1024
)

const (
	// version(1) + type(1) + maxResponseSize(4) + returnStackCount(1)
	baseRequestBinarySize = 7
	// version(1) + type(1) + result(4) + returnStackCount(1)
	baseResponseBinarySize = 7
)

var (
	// ErrUnsupportedVersion is returned by FromBinary when the leading
	// version byte does not match FormatVersion.
	ErrUnsupportedVersion = errors.New("remote: unsupported format version")
	// ErrMalformed is returned when a message cannot be parsed from the
	// supplied bytes (short buffer, invalid type byte, invariant
	// violation on a field).
	ErrMalformed = errors.New("remote: malformed message")
	// ErrUnknownRequestType is returned by FromBinary for an
	// unrecognized type byte.
	ErrUnknownRequestType = errors.New("remote: unknown request type")
)

// RequestType tags the union of request payloads (§4.D).
type RequestType uint8

const (
	RequestPing RequestType = iota
	RequestRead
	RequestWrite
	RequestObjectEnum
	RequestObjectInfo
)

func (t RequestType) String() string {
	switch t {
	case RequestPing:
		return "Ping"
	case RequestRead:
		return "Read"
	case RequestWrite:
		return "Write"
	case RequestObjectEnum:
		return "ObjectEnum"
	case RequestObjectInfo:
		return "ObjectInfo"
	default:
		return fmt.Sprintf("RequestType(%d)", uint8(t))
	}
}

// ReturnStackItemSize is the serialized size, in bytes, of one
// ReturnStackItem.
const ReturnStackItemSize = 8

// ReturnStackItem is a single hop-by-hop routing entry pushed onto a
// request's return stack by an intermediate router (e.g. a
// multiplexer port) and popped again when the matching response comes
// back (§4.D, GLOSSARY "Return-stack item").
type ReturnStackItem struct {
	ID   uint32
	Info uint32
}

func (i ReturnStackItem) toBinary(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], i.ID)
	binary.LittleEndian.PutUint32(b[4:8], i.Info)
}

func returnStackItemFromBinary(b []byte) ReturnStackItem {
	return ReturnStackItem{
		ID:   binary.LittleEndian.Uint32(b[0:4]),
		Info: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// Request is the common header shared by every concrete request type.
// Concrete requests embed Request and add their own payload, matching
// RequestBase's "derived classes append their own binary" contract.
type Request struct {
	Type            RequestType
	maxResponseSize uint32
	returnStack     []ReturnStackItem
}

// NewRequest builds the common header for a request of the given type
// with the caller-supplied response-size budget. maxResponseSize must
// be within [MinUsefulResponseSize, MaxResponseSize].
func NewRequest(t RequestType, maxResponseSize uint32) (Request, error) {
	if maxResponseSize < MinUsefulResponseSize || maxResponseSize > MaxResponseSize {
		return Request{}, fmt.Errorf("%w: maxResponseSize %d out of range", ErrMalformed, maxResponseSize)
	}
	return Request{Type: t, maxResponseSize: maxResponseSize}, nil
}

// MaxResponseSize returns the budget the requester is willing to
// receive, inflated by any ReturnStackItems currently pushed.
func (r *Request) MaxResponseSize() uint32 { return r.maxResponseSize }

// ReturnStack returns the current stack, top (most recently pushed)
// last.
func (r *Request) ReturnStack() []ReturnStackItem {
	out := make([]ReturnStackItem, len(r.returnStack))
	copy(out, r.returnStack)
	return out
}

// Push adds a routing item to the top of the return stack and raises
// maxResponseSize by ReturnStackItemSize, so that the response path
// has room for the item once it is echoed back (§4.D "Size budgets").
// Panics if the stack already holds 255 items or if maxResponseSize
// would overflow MaxResponseSize — both are contract violations, not
// recoverable conditions (design note "Return-stack budget
// arithmetic").
func (r *Request) Push(item ReturnStackItem) {
	if len(r.returnStack) == 255 {
		panic("remote: Push on a return stack already at maximum size")
	}
	if r.maxResponseSize > MaxResponseSize-ReturnStackItemSize {
		panic("remote: Push would overflow maxResponseSize")
	}
	r.returnStack = append(r.returnStack, item)
	r.maxResponseSize += ReturnStackItemSize
}

// Pop removes the most recently pushed return-stack item and reverts
// the maxResponseSize increase Push made for it. Panics if the stack
// is empty.
func (r *Request) Pop() ReturnStackItem {
	if len(r.returnStack) == 0 {
		panic("remote: Pop on an empty return stack")
	}
	last := len(r.returnStack) - 1
	item := r.returnStack[last]
	r.returnStack = r.returnStack[:last]
	r.maxResponseSize -= ReturnStackItemSize
	return item
}

// GetReturnStackSize returns the serialized size, in bytes, of the
// return stack alone.
func (r *Request) GetReturnStackSize() int {
	return len(r.returnStack) * ReturnStackItemSize
}

// ExtractReturnStack empties the request's return stack and returns
// what was removed, mirroring RequestBase::ExtractReturnStack (used by
// a multiplexer port to inspect/replace routing state before
// forwarding).
func (r *Request) ExtractReturnStack() []ReturnStackItem {
	out := r.returnStack
	r.returnStack = nil
	return out
}

// binarySize returns the size, in bytes, of the common header alone.
func (r *Request) binarySize() int {
	return baseRequestBinarySize + r.GetReturnStackSize()
}

func (r *Request) headerToBinary() []byte {
	buf := make([]byte, r.binarySize())
	buf[0] = FormatVersion
	buf[1] = uint8(r.Type)
	binary.LittleEndian.PutUint32(buf[2:6], r.maxResponseSize)
	buf[6] = uint8(len(r.returnStack))
	off := baseRequestBinarySize
	for _, item := range r.returnStack {
		item.toBinary(buf[off : off+ReturnStackItemSize])
		off += ReturnStackItemSize
	}
	return buf
}

// AnyRequest is the interface every concrete request type satisfies,
// used by FromBinary's dispatch and by transports that need to
// serialize an arbitrary request without a type switch.
type AnyRequest interface {
	RequestType() RequestType
	ToBinary() []byte
	Base() *Request
}

// FromBinary parses a request from its wire representation, dispatching
// to the concrete decoder for the encoded type (RequestBase::FromBinary).
func FromBinary(data []byte) (AnyRequest, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: header too short", ErrMalformed)
	}
	if data[0] != FormatVersion {
		return nil, ErrUnsupportedVersion
	}
	t := RequestType(data[1])
	switch t {
	case RequestPing:
		return pingRequestFromBinary(data)
	case RequestRead:
		return readRequestFromBinary(data)
	case RequestWrite:
		return writeRequestFromBinary(data)
	case RequestObjectEnum:
		return objectEnumRequestFromBinary(data)
	case RequestObjectInfo:
		return objectInfoRequestFromBinary(data)
	default:
		log.WithField("type", t).Debug("remote: FromBinary saw an unrecognized request type byte")
		return nil, fmt.Errorf("%w: %d", ErrUnknownRequestType, t)
	}
}

// parseHeader reads the common header starting at data[0] and returns
// the populated Request plus the offset of the first byte following
// the header (where a concrete request's own payload begins).
func parseHeader(data []byte, wantType RequestType) (Request, int, error) {
	if len(data) < baseRequestBinarySize {
		return Request{}, 0, fmt.Errorf("%w: header too short", ErrMalformed)
	}
	if data[0] != FormatVersion {
		return Request{}, 0, ErrUnsupportedVersion
	}
	if RequestType(data[1]) != wantType {
		return Request{}, 0, fmt.Errorf("%w: type mismatch", ErrMalformed)
	}
	maxResponseSize := binary.LittleEndian.Uint32(data[2:6])
	if maxResponseSize < MinUsefulResponseSize || maxResponseSize > MaxResponseSize {
		return Request{}, 0, fmt.Errorf("%w: maxResponseSize out of range", ErrMalformed)
	}
	n := int(data[6])
	off := baseRequestBinarySize
	if len(data) < off+n*ReturnStackItemSize {
		return Request{}, 0, fmt.Errorf("%w: return stack truncated", ErrMalformed)
	}
	stack := make([]ReturnStackItem, n)
	for i := 0; i < n; i++ {
		stack[i] = returnStackItemFromBinary(data[off : off+ReturnStackItemSize])
		off += ReturnStackItemSize
	}
	return Request{Type: wantType, maxResponseSize: maxResponseSize, returnStack: stack}, off, nil
}
