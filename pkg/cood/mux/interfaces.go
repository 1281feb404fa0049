package mux

import "github.com/samsamfire/coodcore/pkg/cood/remote"

// RODAClient is the client-facing half of the remote-OD-access
// interface pair (§6 "Remote-OD-access interface pair"): send a
// request upstream; the eventual response (or disconnection) arrives
// as a callback on the RODANotifiable the caller registered.
type RODAClient interface {
	Send(req remote.AnyRequest) error
	RegisterNotifiable(n RODANotifiable)
	Unregister()
}

// RODANotifiable is the callback interface an upstream RODAClient
// invokes. Implementations must not throw/panic from these methods in
// normal operation (a panicking client callback is logged and dropped
// by the multiplexer, never propagated — §4.E "Failure semantics").
type RODANotifiable interface {
	OnReady(maxRequestSize, maxResponseSize uint32)
	OnDisconnected()
	OnRequestProcessed(resp remote.AnyResponse)
	LoanExecutionContext()
}
