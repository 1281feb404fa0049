// Package server implements the server side of §2's control flow: "a
// transport delivers a request message (D) to a server that uses C+B to
// serve it, and returns a response (D)". It is the glue between the
// wire-level remote-access request/response family (pkg/cood/remote)
// and the Object Dictionary + Object model (pkg/cood, pkg/cood/object):
// every request type is dispatched to the matching ObjectHandle/Object
// operation and the abort code (or data) it produces is wrapped back
// into the matching response type.
//
// Dispatch-by-type-byte is grounded on pkg/sdo/server.go's command-byte
// switch in its segmented/block transfer state machine, generalized
// here to the remote package's five request types instead of SDO's
// upload/download command specifiers.
package server

import (
	"log/slog"

	"github.com/samsamfire/coodcore/pkg/cood"
	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/samsamfire/coodcore/pkg/cood/remote"
)

// Server dispatches remote-access requests against an ObjectDictionary.
type Server struct {
	dict   *cood.ObjectDictionary
	logger *slog.Logger
}

// New returns a Server backed by dict.
func New(dict *cood.ObjectDictionary, opts ...func(*Server)) *Server {
	s := &Server{dict: dict, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) func(*Server) {
	return func(s *Server) { s.logger = l }
}

// Serve dispatches req and returns the matching response. The response
// always carries req's return stack unchanged; a transport or
// multiplexer hop wraps/unwraps the stack around this call as needed.
func (s *Server) Serve(req remote.AnyRequest) remote.AnyResponse {
	stack := req.Base().ReturnStack()
	switch r := req.(type) {
	case *remote.PingRequest:
		return remote.NewPingResponse(abortcode.OK, stack)
	case *remote.ReadRequest:
		return s.serveRead(r, stack)
	case *remote.WriteRequest:
		return s.serveWrite(r, stack)
	case *remote.ObjectEnumRequest:
		return s.serveObjectEnum(r, stack)
	case *remote.ObjectInfoRequest:
		return s.serveObjectInfo(r, stack)
	default:
		s.logger.Warn("server: unhandled request type", "type", req.RequestType())
		return remote.NewPingResponse(abortcode.General, stack)
	}
}

func (s *Server) serveRead(r *remote.ReadRequest, stack []remote.ReturnStackItem) remote.AnyResponse {
	h := s.dict.Get(r.Index)
	defer h.Close()
	if h.IsEmpty() {
		return remote.NewReadResponse(abortcode.NotExist, stack, nil)
	}
	obj, err := h.Object()
	if err != nil {
		return remote.NewReadResponse(abortcode.General, stack, nil)
	}
	unlock := obj.LockData()
	defer unlock()

	w := codec.NewBitWriter()
	perms := object.Attribute(r.Permissions)
	var code abortcode.Code
	switch r.AccessType {
	case remote.AccessSingleSubindex:
		code = obj.Read(r.Subindex, perms, w)
	case remote.AccessCompleteAccessSI0_8bit:
		code = obj.CompleteRead(true, false, perms, w)
	case remote.AccessCompleteAccessSI0_16bit:
		code = obj.CompleteRead(true, true, perms, w)
	default:
		code = abortcode.General
	}
	if code != abortcode.OK {
		return remote.NewReadResponse(code, stack, nil)
	}
	return remote.NewReadResponse(abortcode.OK, stack, w.Bytes())
}

func (s *Server) serveWrite(r *remote.WriteRequest, stack []remote.ReturnStackItem) remote.AnyResponse {
	h := s.dict.Get(r.Index)
	defer h.Close()
	if h.IsEmpty() {
		return remote.NewWriteResponse(abortcode.NotExist, stack)
	}
	obj, err := h.Object()
	if err != nil {
		return remote.NewWriteResponse(abortcode.General, stack)
	}
	unlock := obj.LockData()
	defer unlock()

	reader := codec.NewBitReader(r.Data)
	perms := object.Attribute(r.Permissions)
	var code abortcode.Code
	switch r.AccessType {
	case remote.AccessSingleSubindex:
		code = obj.Write(r.Subindex, perms, reader)
	case remote.AccessCompleteAccessSI0_8bit:
		// The wire request supplies exactly the bytes to be written, so
		// no bits should remain once every subindex has been decoded.
		code = obj.CompleteWrite(true, false, perms, reader, 0)
	case remote.AccessCompleteAccessSI0_16bit:
		code = obj.CompleteWrite(true, true, perms, reader, 0)
	default:
		code = abortcode.General
	}
	return remote.NewWriteResponse(code, stack)
}

func (s *Server) serveObjectEnum(r *remote.ObjectEnumRequest, stack []remote.ReturnStackItem) remote.AnyResponse {
	filter := object.Attribute(r.AttrFilter)
	var candidates []uint16
	for _, idx := range s.dict.Indices() {
		if idx < r.StartIndex || idx > r.LastIndex {
			continue
		}
		h := s.dict.Get(idx)
		obj, err := h.Object()
		if err != nil {
			h.Close()
			continue
		}
		attr, attrErr := obj.Attributes(0)
		h.Close()
		if attrErr != nil || attr&filter == 0 {
			continue
		}
		candidates = append(candidates, idx)
	}
	// NewObjectEnumResponse's budget excludes the common response
	// header, which is the whole of a PingResponse's encoding.
	header := len(remote.NewPingResponse(abortcode.OK, stack).ToBinary())
	budget := int(r.MaxResponseSize()) - header
	return remote.NewObjectEnumResponse(stack, candidates, budget)
}

func (s *Server) serveObjectInfo(r *remote.ObjectInfoRequest, stack []remote.ReturnStackItem) remote.AnyResponse {
	h := s.dict.Get(r.Index)
	defer h.Close()
	if h.IsEmpty() {
		return remote.NewFailedObjectInfoResponse(abortcode.NotExist, stack)
	}
	obj, err := h.Object()
	if err != nil {
		return remote.NewFailedObjectInfoResponse(abortcode.General, stack)
	}

	meta := remote.ObjectMeta{
		Index:   obj.Index(),
		Kind:    uint8(obj.Kind()),
		MaxNbSI: obj.MaxSubindices(),
		Name:    obj.Name(),
	}

	lastSI := r.LastSI
	if lastSI > obj.MaxSubindices() {
		lastSI = obj.MaxSubindices()
	}
	if r.FirstSI > lastSI {
		return remote.NewObjectInfoResponse(stack, meta, r.InclNames, r.InclASM, nil, int(r.MaxResponseSize()))
	}

	descriptors := collapsibleSubindexRange(obj, r.FirstSI, lastSI, r.InclASM)
	var metas []remote.SubindexMeta
	for _, si := range descriptors {
		d, derr := obj.DataTypeOf(si)
		if derr != nil {
			continue
		}
		attr, _ := obj.Attributes(si)
		maxBits, _ := obj.MaxSizeBits(si)
		meta := remote.SubindexMeta{SI: si, DataType: uint8(d), Attributes: uint16(attr), MaxSizeBits: maxBits}
		if r.InclNames {
			meta.Name, _ = obj.NameOf(si)
		}
		if r.InclASM {
			meta.ASM, _ = asmOf(obj, si)
		}
		metas = append(metas, meta)
	}
	return remote.NewObjectInfoResponse(stack, meta, r.InclNames, r.InclASM, metas, int(r.MaxResponseSize()))
}

func asmOf(obj *object.Object, si uint8) ([]byte, error) {
	b, ok := obj.AppSpecificMetadata(si)
	if !ok {
		return nil, nil
	}
	return b, nil
}

// collapsibleSubindexRange returns the SIs to actually describe for
// [first,last]: for an ARRAY with inclASM==false, every SI>=1 shares
// identical metadata, so only a single representative SI (the smallest
// one in range) need be produced (§4.D "Representative SI
// optimization"); consumers must accept this collapsed range.
func collapsibleSubindexRange(obj *object.Object, first, last uint8, inclASM bool) []uint8 {
	if obj.Kind() == object.KindArray && !inclASM && first >= 1 {
		return []uint8{first}
	}
	out := make([]uint8, 0, int(last)-int(first)+1)
	for si := first; ; si++ {
		out = append(out, si)
		if si == last {
			break
		}
	}
	return out
}
