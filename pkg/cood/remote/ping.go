package remote

import "github.com/samsamfire/coodcore/pkg/cood/abortcode"

// PingRequest carries no payload beyond the common header. It is used
// by multiplexer ports to detect that all responses from a previous
// session have drained (§4.E "Ping lifecycle").
type PingRequest struct {
	Request
}

// NewPingRequest builds a Ping request with the given response-size
// budget.
func NewPingRequest(maxResponseSize uint32) (*PingRequest, error) {
	base, err := NewRequest(RequestPing, maxResponseSize)
	if err != nil {
		return nil, err
	}
	return &PingRequest{Request: base}, nil
}

func (r *PingRequest) RequestType() RequestType { return RequestPing }
func (r *PingRequest) Base() *Request           { return &r.Request }
func (r *PingRequest) ToBinary() []byte         { return r.headerToBinary() }

func pingRequestFromBinary(data []byte) (*PingRequest, error) {
	base, _, err := parseHeader(data, RequestPing)
	if err != nil {
		return nil, err
	}
	return &PingRequest{Request: base}, nil
}

// PingResponse carries no payload beyond the common header's overall
// result.
type PingResponse struct {
	Response
}

// NewPingResponse builds a successful (or failed) Ping response.
func NewPingResponse(result abortcode.Code, returnStack []ReturnStackItem) *PingResponse {
	return &PingResponse{Response: NewResponse(RequestPing, result, returnStack)}
}

func (r *PingResponse) ResponseType() RequestType { return RequestPing }
func (r *PingResponse) Base() *Response           { return &r.Response }
func (r *PingResponse) ToBinary() []byte          { return r.headerToBinary() }

func pingResponseFromBinary(data []byte) (*PingResponse, error) {
	base, _, err := parseResponseHeader(data, RequestPing)
	if err != nil {
		return nil, err
	}
	return &PingResponse{Response: base}, nil
}
