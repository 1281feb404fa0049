package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
)

// ResponseType mirrors RequestType; every response carries the type of
// the request it answers.
type ResponseType = RequestType

// Response is the common header shared by every concrete response
// type: the return stack it inherited from the request (with the top
// item already popped by each router hop on the way back) and the
// overall abort-code result.
type Response struct {
	Type        RequestType
	Result      abortcode.Code
	returnStack []ReturnStackItem
}

// NewResponse builds a response header answering a request of type t
// with the given overall result, inheriting the request's return
// stack unchanged (the caller pops/forwards hops explicitly via
// Push/Pop, same as Request).
func NewResponse(t RequestType, result abortcode.Code, returnStack []ReturnStackItem) Response {
	stack := make([]ReturnStackItem, len(returnStack))
	copy(stack, returnStack)
	return Response{Type: t, Result: result, returnStack: stack}
}

// ReturnStack returns the response's current return stack.
func (r *Response) ReturnStack() []ReturnStackItem {
	out := make([]ReturnStackItem, len(r.returnStack))
	copy(out, r.returnStack)
	return out
}

// Push and Pop mirror Request's, used by routers walking a response
// back towards the original requester.
func (r *Response) Push(item ReturnStackItem) {
	if len(r.returnStack) == 255 {
		panic("remote: Push on a return stack already at maximum size")
	}
	r.returnStack = append(r.returnStack, item)
}

func (r *Response) Pop() ReturnStackItem {
	if len(r.returnStack) == 0 {
		panic("remote: Pop on an empty return stack")
	}
	last := len(r.returnStack) - 1
	item := r.returnStack[last]
	r.returnStack = r.returnStack[:last]
	return item
}

func (r *Response) binarySize() int {
	return baseResponseBinarySize + len(r.returnStack)*ReturnStackItemSize
}

func (r *Response) headerToBinary() []byte {
	buf := make([]byte, r.binarySize())
	buf[0] = FormatVersion
	buf[1] = uint8(r.Type)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(r.Result))
	buf[6] = uint8(len(r.returnStack))
	off := baseResponseBinarySize
	for _, item := range r.returnStack {
		item.toBinary(buf[off : off+ReturnStackItemSize])
		off += ReturnStackItemSize
	}
	return buf
}

// AnyResponse is the interface every concrete response type satisfies.
type AnyResponse interface {
	ResponseType() RequestType
	ToBinary() []byte
	Base() *Response
}

// ResponseFromBinary parses a response from its wire representation.
func ResponseFromBinary(data []byte) (AnyResponse, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: header too short", ErrMalformed)
	}
	if data[0] != FormatVersion {
		return nil, ErrUnsupportedVersion
	}
	t := RequestType(data[1])
	switch t {
	case RequestPing:
		return pingResponseFromBinary(data)
	case RequestRead:
		return readResponseFromBinary(data)
	case RequestWrite:
		return writeResponseFromBinary(data)
	case RequestObjectEnum:
		return objectEnumResponseFromBinary(data)
	case RequestObjectInfo:
		return objectInfoResponseFromBinary(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRequestType, t)
	}
}

func parseResponseHeader(data []byte, wantType RequestType) (Response, int, error) {
	if len(data) < baseResponseBinarySize {
		return Response{}, 0, fmt.Errorf("%w: header too short", ErrMalformed)
	}
	if data[0] != FormatVersion {
		return Response{}, 0, ErrUnsupportedVersion
	}
	if RequestType(data[1]) != wantType {
		return Response{}, 0, fmt.Errorf("%w: type mismatch", ErrMalformed)
	}
	result := abortcode.Code(binary.LittleEndian.Uint32(data[2:6]))
	n := int(data[6])
	off := baseResponseBinarySize
	if len(data) < off+n*ReturnStackItemSize {
		return Response{}, 0, fmt.Errorf("%w: return stack truncated", ErrMalformed)
	}
	stack := make([]ReturnStackItem, n)
	for i := 0; i < n; i++ {
		stack[i] = returnStackItemFromBinary(data[off : off+ReturnStackItemSize])
		off += ReturnStackItemSize
	}
	return Response{Type: wantType, Result: result, returnStack: stack}, off, nil
}
