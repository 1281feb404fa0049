package mux

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samsamfire/coodcore/pkg/cood/remote"
)

// MaxPorts is the fixed port-array size N from §3 "Multiplexer state".
const MaxPorts = 256

// State is the multiplexer's own connection state machine (§4.E
// "State machine (multiplexer)").
type State uint8

const (
	NotConnected State = iota
	NotReady
	Ready
	Disconnecting
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case NotReady:
		return "NotReady"
	case Ready:
		return "Ready"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// PortState is a single port's readiness, independent of the
// multiplexer's own state.
type PortState uint8

const (
	PortNoClient PortState = iota
	PortNotReady
	PortReady
)

var (
	// ErrAlreadyConnected is returned by Connect when the multiplexer
	// already has an upstream.
	ErrAlreadyConnected = errors.New("mux: already connected")
	// ErrTooManyPorts is returned by NewPort once MaxPorts ports exist
	// (§4.E "Failure semantics": "Creating a port beyond maxNbOfPorts").
	ErrTooManyPorts = errors.New("mux: maximum number of ports reached")
	// ErrPortHasClient is returned by NewPort when asked to reuse an
	// index that is already occupied.
	ErrPortHasClient = errors.New("mux: port index already has a client")
)

// port is the multiplexer-side bookkeeping for one downstream client
// (§3 "Multiplexer state": per-port session ID, oldest-used session
// ID, pending LoanExecutionContext flag, client notifiable pointer).
//
// generation and recycled implement the original's port-slot recycling
// (SPEC_FULL.md "Multiplexer port recycling"): the C++ source recycles a
// dropped port slot once its external reference count drops to 1 (only
// the multiplexer itself still holds it). Go has no reference counting,
// so generation is the idiomatic substitute — Close marks the slot
// recycled without erasing it, and NewPort reusing that index bumps
// generation rather than allocating a fresh *port. A Port handle
// captures the generation it was issued against and refuses to operate
// once the slot has moved on to a later generation.
type port struct {
	mu                sync.Mutex
	index             uint8
	state             PortState
	sessionID         uint8
	oldestUsedSession uint8
	pendingExec       bool
	client            RODANotifiable
	generation        uint64
	recycled          bool
}

// Multiplexer fans one upstream remote-OD-access link out to up to
// MaxPorts downstream client ports (§4.E). It implements RODANotifiable
// itself (registered with the upstream RODAClient on Connect) and hands
// out Port handles that implement RODAClient for each downstream
// client.
//
// Grounded bit-exact on original_source/.../Multiplexer.cpp for the
// state machine and the return-stack routing-item bit layout;
// per-port registration/fan-out style generalized from
// pkg/network/network.go's controllers-map-keyed-by-id idiom (the
// closest analogue in the pack to "one upstream link, N registered
// clients").
type Multiplexer struct {
	mu       sync.Mutex
	state    State
	upstream RODAClient
	ownerID  uint32
	maxReq   uint32
	maxResp  uint32
	ports    [MaxPorts]*port
	logger   *slog.Logger
}

// New returns a disconnected Multiplexer identified by ownerID, the u32
// embedded in every return-stack item this multiplexer pushes so it can
// recognize responses addressed to it (§4.E "Routing via the
// return-stack").
func New(ownerID uint32, opts ...func(*Multiplexer)) *Multiplexer {
	m := &Multiplexer{
		state:   NotConnected,
		ownerID: ownerID,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) func(*Multiplexer) {
	return func(m *Multiplexer) { m.logger = l }
}

// State returns the multiplexer's current connection state.
func (m *Multiplexer) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect attaches an upstream RODAClient and registers the
// multiplexer as its notifiable, transitioning NotConnected -> NotReady.
func (m *Multiplexer) Connect(upstream RODAClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != NotConnected {
		return ErrAlreadyConnected
	}
	m.upstream = upstream
	m.state = NotReady
	upstream.RegisterNotifiable(m)
	m.logger.Debug("mux: connected to upstream")
	return nil
}

// Disconnect tears down the upstream link. A no-op from NotConnected
// (§4.E: "disconnect() from here is a no-op"), otherwise unregisters and
// returns to NotConnected via the transient Disconnecting state so that
// any upstream notification arriving mid-teardown is ignored.
func (m *Multiplexer) Disconnect() {
	m.mu.Lock()
	if m.state == NotConnected {
		m.mu.Unlock()
		return
	}
	m.state = Disconnecting
	upstream := m.upstream
	m.mu.Unlock()

	if upstream != nil {
		upstream.Unregister()
	}

	m.mu.Lock()
	m.upstream = nil
	m.state = NotConnected
	m.mu.Unlock()
}

// Destroy releases all resources. Per §4.E "Failure semantics",
// destroying a still-connected multiplexer, or one with any port handle
// still externally referenced, is a contract violation and panics.
func (m *Multiplexer) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != NotConnected {
		panic("mux: destroying a still-connected multiplexer")
	}
	for _, p := range m.ports {
		if p == nil {
			continue
		}
		p.mu.Lock()
		recycled := p.recycled
		p.mu.Unlock()
		if !recycled {
			panic("mux: destroying a multiplexer with an externally referenced port")
		}
	}
}

// ---- RODANotifiable (upstream -> multiplexer) ----

// OnReady implements RODANotifiable: NotReady -> Ready. Ports presently
// NotReady flip to Ready and their clients are notified in turn (§4.E).
func (m *Multiplexer) OnReady(maxRequestSize, maxResponseSize uint32) {
	m.mu.Lock()
	if m.state != NotReady {
		m.mu.Unlock()
		return
	}
	m.state = Ready
	m.maxReq = maxRequestSize
	m.maxResp = maxResponseSize
	ports := m.snapshotPorts()
	m.mu.Unlock()

	for _, p := range ports {
		p.mu.Lock()
		if p.state == PortNotReady {
			p.state = PortReady
			p.sessionID++
			client := p.client
			p.mu.Unlock()
			notifySafely(m.logger, client, func() { client.OnReady(maxRequestSize, maxResponseSize) })
			continue
		}
		p.mu.Unlock()
	}
}

// OnDisconnected implements RODANotifiable: Ready -> NotReady. Every
// Ready port flips to NotReady (clients notified), pending-exec flags
// reset, and each port remembers its current session ID as the
// oldest-used boundary for subsequent stale-response rejection (§4.E).
func (m *Multiplexer) OnDisconnected() {
	m.mu.Lock()
	if m.state != Ready {
		m.mu.Unlock()
		return
	}
	m.state = NotReady
	ports := m.snapshotPorts()
	m.mu.Unlock()

	for _, p := range ports {
		p.mu.Lock()
		p.pendingExec = false
		if p.state == PortReady {
			p.state = PortNotReady
			p.oldestUsedSession = p.sessionID
			client := p.client
			p.mu.Unlock()
			notifySafely(m.logger, client, client.OnDisconnected)
			continue
		}
		p.mu.Unlock()
	}
}

// LoanExecutionContext implements RODANotifiable. Ports NotReady flip to
// Ready and are notified; Ready ports with a pending execution-context
// request have the flag cleared and the call forwarded (§4.E).
func (m *Multiplexer) LoanExecutionContext() {
	m.mu.Lock()
	ports := m.snapshotPorts()
	m.mu.Unlock()

	for _, p := range ports {
		p.mu.Lock()
		switch {
		case p.state == PortNotReady:
			p.state = PortReady
			p.sessionID++
			client := p.client
			p.mu.Unlock()
			notifySafely(m.logger, client, client.LoanExecutionContext)
		case p.state == PortReady && p.pendingExec:
			p.pendingExec = false
			client := p.client
			p.mu.Unlock()
			notifySafely(m.logger, client, client.LoanExecutionContext)
		default:
			p.mu.Unlock()
		}
	}
}

// OnRequestProcessed implements RODANotifiable: a response arrived from
// upstream. The multiplexer pops its own return-stack item, verifies it
// against ownerID and a zero gap, and routes to the addressed port if
// the session ID still matches; otherwise the response is silently
// dropped (§4.E "Routing via the return-stack", "Session IDs").
func (m *Multiplexer) OnRequestProcessed(resp remote.AnyResponse) {
	base := resp.Base()
	stack := base.ReturnStack()
	if len(stack) == 0 {
		m.logger.Debug("mux: dropping response with empty return stack")
		return
	}
	item := base.Pop()
	if item.ID != m.ownerID {
		m.logger.Debug("mux: dropping response addressed to a different owner", "id", item.ID)
		return
	}
	info := unpackRoutingInfo(item.Info)
	if !info.gapZero {
		m.logger.Debug("mux: dropping response with nonzero routing gap")
		return
	}

	m.mu.Lock()
	p := m.ports[info.portIndex]
	m.mu.Unlock()
	if p == nil {
		m.logger.Debug("mux: dropping response addressed to an unknown port", "port", info.portIndex)
		return
	}

	p.mu.Lock()
	if p.state != PortReady || info.sessionID != p.sessionID || sessionOlderThan(info.sessionID, p.oldestUsedSession) {
		p.mu.Unlock()
		m.logger.Debug("mux: dropping stale or mismatched-session response", "port", info.portIndex)
		return
	}
	if info.myPing {
		p.oldestUsedSession = info.sessionID
	}
	client := p.client
	p.mu.Unlock()

	notifySafely(m.logger, client, func() { client.OnRequestProcessed(resp) })
}

func (m *Multiplexer) snapshotPorts() []*port {
	out := make([]*port, 0, MaxPorts)
	for _, p := range m.ports {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// notifySafely invokes fn and recovers a panic, logging and dropping it
// per §4.E "Port's client throwing from a callback -> dropped (logged;
// multiplexer never throws from notifications, which are noexcept)".
func notifySafely(logger *slog.Logger, client RODANotifiable, fn func()) {
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("mux: client notifiable panicked, dropping", "panic", r)
		}
	}()
	fn()
}

// NewPort creates a downstream client port at the given index, which
// must be < MaxPorts (ErrTooManyPorts otherwise) and not already
// occupied by a live client (ErrPortHasClient otherwise). If index was
// previously used and then Close'd, its recycled slot is reused in
// place (generation bumped) rather than allocated fresh.
func (m *Multiplexer) NewPort(index uint8) (*Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(index) >= MaxPorts {
		return nil, ErrTooManyPorts
	}

	initialState := PortNotReady
	if m.state == Ready {
		initialState = PortReady
	}

	p := m.ports[index]
	if p == nil {
		p = &port{index: index, generation: 1}
		m.ports[index] = p
	} else {
		p.mu.Lock()
		if !p.recycled {
			p.mu.Unlock()
			return nil, ErrPortHasClient
		}
		p.recycled = false
		p.generation++
		p.client = nil
		p.pendingExec = false
		p.sessionID = 0
		p.oldestUsedSession = 0
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.state = initialState
	gen := p.generation
	p.mu.Unlock()

	return &Port{mux: m, p: p, generation: gen}, nil
}

// releasePort marks the port slot recycled, called by Port.Close. The
// slot's bookkeeping is kept (not nilled) so a subsequent NewPort at
// the same index reuses it under a new generation instead of
// allocating a fresh *port; once that happens, any other Port handle
// still holding the old generation panics on its next use (see Port's
// generation check).
func (m *Multiplexer) releasePort(index uint8) {
	m.mu.Lock()
	p := m.ports[index]
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	p.recycled = true
	p.state = PortNoClient
	p.client = nil
	p.mu.Unlock()
}

// forward pushes this multiplexer's routing item onto req's return
// stack and forwards it upstream (§4.E "Routing via the return-stack").
func (m *Multiplexer) forward(p *port, req remote.AnyRequest, myPing bool) error {
	m.mu.Lock()
	upstream := m.upstream
	state := m.state
	m.mu.Unlock()
	if state != Ready || upstream == nil {
		return fmt.Errorf("mux: not ready")
	}

	p.mu.Lock()
	sid := p.sessionID
	p.mu.Unlock()

	info := packRoutingInfo(p.index, myPing, sid)
	req.Base().Push(remote.ReturnStackItem{ID: m.ownerID, Info: info})
	return upstream.Send(req)
}
