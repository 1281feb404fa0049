package mux

import (
	"errors"

	"github.com/samsamfire/coodcore/pkg/cood/remote"
)

// ErrAlreadyRegistered reports a second notifiable registration. Port's
// RegisterNotifiable does not return it: a new registration there
// replaces the previous notifiable.
var ErrAlreadyRegistered = errors.New("mux: port already has a registered notifiable")

// Port is a downstream client's view of one multiplexer slot: it
// implements RODAClient (§6), forwarding Send calls upstream through
// the owning Multiplexer with this port's routing item pushed onto the
// request's return stack, and delivering upstream responses/
// notifications back to whatever RODANotifiable the client registered.
type Port struct {
	mux        *Multiplexer
	p          *port
	generation uint64
}

// checkLive panics if this handle's generation has been recycled out
// from under it by a later NewPort at the same index — the Go stand-in
// for the original's "operations on a moved-from handle" contract
// violation (§7), now extended to "operations on a recycled port slot".
func (pt *Port) checkLive() {
	pt.p.mu.Lock()
	gen := pt.p.generation
	pt.p.mu.Unlock()
	if gen != pt.generation {
		panic("mux: use of a Port handle whose slot has been recycled")
	}
}

// Index returns the port's fixed index within its multiplexer.
func (pt *Port) Index() uint8 { return pt.p.index }

// State returns the port's current readiness.
func (pt *Port) State() PortState {
	pt.checkLive()
	pt.p.mu.Lock()
	defer pt.p.mu.Unlock()
	return pt.p.state
}

// RegisterNotifiable implements RODAClient. The port holds one
// notifiable; registering another replaces the previous one.
func (pt *Port) RegisterNotifiable(n RODANotifiable) {
	pt.checkLive()
	pt.p.mu.Lock()
	defer pt.p.mu.Unlock()
	pt.p.client = n
}

// Unregister implements RODAClient, clearing the registered notifiable.
// Clients must call this before destroying their notifiable (§6).
func (pt *Port) Unregister() {
	pt.checkLive()
	pt.p.mu.Lock()
	defer pt.p.mu.Unlock()
	pt.p.client = nil
}

// Send implements RODAClient: forwards req upstream through the owning
// multiplexer, with this port's routing item pushed onto the return
// stack so the eventual response can be routed back (§4.E "Routing via
// the return-stack").
func (pt *Port) Send(req remote.AnyRequest) error {
	pt.checkLive()
	return pt.mux.forward(pt.p, req, false)
}

// SendPing sends a Ping request tagged my_ping=true, used to detect
// that all responses from a previous session have drained (§4.E "Ping
// lifecycle"). When the matching PingResponse is routed back,
// OnRequestProcessed advances this port's oldest-used session ID.
func (pt *Port) SendPing(req remote.AnyRequest) error {
	pt.checkLive()
	return pt.mux.forward(pt.p, req, true)
}

// RequestExecutionContext marks this port as wanting a
// LoanExecutionContext callback next time the multiplexer receives one
// from upstream. It only sets that mark; nothing is delivered from
// within this call.
func (pt *Port) RequestExecutionContext() {
	pt.checkLive()
	pt.p.mu.Lock()
	defer pt.p.mu.Unlock()
	pt.p.pendingExec = true
}

// Close releases the port, recycling its slot in the owning
// multiplexer (§4.E, "Multiplexer port recycling" per SPEC_FULL.md).
// After Close the Port must not be used again — doing so panics via
// checkLive, since a subsequent NewPort at the same index bumps the
// slot's generation. Per §4.E "Failure semantics", a Multiplexer
// cannot be Destroyed while any port slot remains un-recycled.
func (pt *Port) Close() {
	pt.checkLive()
	pt.mux.releasePort(pt.p.index)
}
