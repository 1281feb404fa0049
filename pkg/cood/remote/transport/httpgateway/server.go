// Package httpgateway exposes the remote-access request/response family
// (pkg/cood/remote, served via pkg/cood/server) as an HTTP surface,
// paralleling CiA 309-5's mapping of SDO-style operations onto REST
// routes.
//
// Requests are dispatched by matching the URL path against a fixed set
// of regexps (ping, enum, info, read/write); an unmatched path gets a
// 404. Errors are written as a JSON body carrying the abort code and a
// description. The regexp-matched-URL dispatch is grounded on
// pkg/gateway/http/handlers.go's newRequestFromRaw/handleRequest, and
// the JSON error shape on the same file's NewResponseError.
package httpgateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/samsamfire/coodcore/pkg/cood/remote"
	"github.com/samsamfire/coodcore/pkg/cood/server"
)

// uriPattern matches /od/{index}/{subindex}[/ca] with an optional
// trailing Complete-Access marker, e.g. "/od/0x2000/0x1" or
// "/od/0x2000/0x0/ca16".
var uriPattern = regexp.MustCompile(`^/od/(0x[0-9A-Fa-f]{1,4}|\d{1,5})/(0x[0-9A-Fa-f]{1,2}|\d{1,3})(?:/(ca8|ca16))?$`)
var infoPattern = regexp.MustCompile(`^/od/(0x[0-9A-Fa-f]{1,4}|\d{1,5})/info$`)
var enumPattern = regexp.MustCompile(`^/od$`)
var pingPattern = regexp.MustCompile(`^/ping$`)

// Server adapts an HTTP listener to a pkg/cood/server.Server,
// translating each request into the matching remote.AnyRequest and
// rendering the response as JSON.
type Server struct {
	backend  *server.Server
	logger   *slog.Logger
	serveMux *http.ServeMux
}

// New wires an HTTP surface over backend.
func New(backend *server.Server, opts ...func(*Server)) *Server {
	s := &Server{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.serveMux = http.NewServeMux()
	s.serveMux.HandleFunc("/", s.handle)
	return s
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) func(*Server) {
	return func(s *Server) { s.logger = l }
}

// ListenAndServe blocks, serving the gateway on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.serveMux)
}

type errorBody struct {
	AbortCode   uint32 `json:"abortCode"`
	Description string `json:"description"`
}

type readBody struct {
	Result abortcode.Code `json:"result"`
	DataHex string        `json:"dataHex,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case pingPattern.MatchString(r.URL.Path):
		s.handlePing(w, r)
	case enumPattern.MatchString(r.URL.Path):
		s.handleEnum(w, r)
	case infoPattern.MatchString(r.URL.Path):
		s.handleInfo(w, r, infoPattern.FindStringSubmatch(r.URL.Path))
	default:
		if m := uriPattern.FindStringSubmatch(r.URL.Path); m != nil {
			s.handleReadWrite(w, r, m)
			return
		}
		writeError(w, http.StatusNotFound, fmt.Errorf("httpgateway: no route for %s", r.URL.Path))
	}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	req, err := remote.NewPingRequest(remote.MinUsefulResponseSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := s.backend.Serve(req).(*remote.PingResponse)
	writeJSON(w, http.StatusOK, map[string]any{"result": resp.Result})
}

func (s *Server) handleEnum(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := parseHexOrDecDefault(q.Get("start"), 0)
	last := parseHexOrDecDefault(q.Get("last"), 0xFFFF)
	filter := parseHexOrDecDefault(q.Get("filter"), uint64(object.AllPermissions))

	req, err := remote.NewObjectEnumRequest(remote.MaxResponseSize, uint16(start), uint16(last), uint16(filter))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := s.backend.Serve(req).(*remote.ObjectEnumResponse)
	if resp.Result != abortcode.OK {
		writeError(w, http.StatusInternalServerError, resp.Result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": resp.Indices})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, m []string) {
	index, err := strconv.ParseUint(m[1], 0, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	inclNames := r.URL.Query().Get("names") != "0"
	req, err := remote.NewObjectInfoRequest(remote.MaxResponseSize, uint16(index), 0, 255, inclNames, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := s.backend.Serve(req).(*remote.ObjectInfoResponse)
	if resp.Result != abortcode.OK {
		writeError(w, http.StatusNotFound, resp.Result)
		return
	}
	meta, _ := resp.ObjectMeta()
	subs, _ := resp.Subindices()
	writeJSON(w, http.StatusOK, map[string]any{"object": meta, "subindices": subs})
}

func (s *Server) handleReadWrite(w http.ResponseWriter, r *http.Request, m []string) {
	index, err := strconv.ParseUint(m[1], 0, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	subindex, err := strconv.ParseUint(m[2], 0, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	accessType := remote.AccessSingleSubindex
	switch m[3] {
	case "ca8":
		accessType = remote.AccessCompleteAccessSI0_8bit
	case "ca16":
		accessType = remote.AccessCompleteAccessSI0_16bit
	}
	perms := uint16(object.AllPermissions)

	switch r.Method {
	case http.MethodGet:
		req, err := remote.NewReadRequest(remote.MaxResponseSize, accessType, uint16(index), uint8(subindex), perms)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp := s.backend.Serve(req).(*remote.ReadResponse)
		body := readBody{Result: resp.Result}
		if resp.Result == abortcode.OK {
			body.DataHex = fmt.Sprintf("%x", resp.Data)
		}
		status := http.StatusOK
		if resp.Result != abortcode.OK {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, body)
	case http.MethodPut, http.MethodPost:
		var payload struct {
			DataHex string `json:"dataHex"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		data, err := decodeHex(payload.DataHex)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req, err := remote.NewWriteRequest(remote.MaxResponseSize, accessType, uint16(index), uint8(subindex), perms, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp := s.backend.Serve(req).(*remote.WriteResponse)
		status := http.StatusOK
		if resp.Result != abortcode.OK {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"result": resp.Result})
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpgateway: method %s not supported on /od", r.Method))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	var code abortcode.Code
	if c, ok := err.(abortcode.Code); ok {
		code = c
	} else {
		code = abortcode.General
	}
	writeJSON(w, status, errorBody{AbortCode: uint32(code), Description: err.Error()})
}

func parseHexOrDecDefault(s string, def uint64) uint64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return def
	}
	return v
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
