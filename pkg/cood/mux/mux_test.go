package mux

import (
	"sync"
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream is an in-process stand-in for a transport's RODAClient,
// letting tests drive the multiplexer's notifiable callbacks directly
// and inspect what gets sent upstream.
type fakeUpstream struct {
	mu    sync.Mutex
	n     RODANotifiable
	sent  []remote.AnyRequest
}

func (f *fakeUpstream) Send(req remote.AnyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}
func (f *fakeUpstream) RegisterNotifiable(n RODANotifiable) { f.n = n }
func (f *fakeUpstream) Unregister()                         { f.n = nil }

func (f *fakeUpstream) lastSent() remote.AnyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// fakeClient is an in-process RODANotifiable recording what it was
// told.
type fakeClient struct {
	mu           sync.Mutex
	readyCount   int
	disconnected int
	responses    []remote.AnyResponse
	loaned       int
}

func (c *fakeClient) OnReady(maxReq, maxResp uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyCount++
}
func (c *fakeClient) OnDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
}
func (c *fakeClient) OnRequestProcessed(resp remote.AnyResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
}
func (c *fakeClient) LoanExecutionContext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaned++
}

func TestMultiplexerConnectAndReadyFansOutToPorts(t *testing.T) {
	m := New(0xC0FFEE)
	up := &fakeUpstream{}
	require.NoError(t, m.Connect(up))
	assert.Equal(t, NotReady, m.State())

	portA, err := m.NewPort(0)
	require.NoError(t, err)
	portB, err := m.NewPort(1)
	require.NoError(t, err)
	clientA, clientB := &fakeClient{}, &fakeClient{}
	portA.RegisterNotifiable(clientA)
	portB.RegisterNotifiable(clientB)

	m.OnReady(1024, 1024)
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, 1, clientA.readyCount)
	assert.Equal(t, 1, clientB.readyCount)
	assert.Equal(t, PortReady, portA.State())
	assert.Equal(t, PortReady, portB.State())
}

func TestMultiplexerRoutesResponseToCorrectPortOnly(t *testing.T) {
	m := New(0xC0FFEE)
	up := &fakeUpstream{}
	require.NoError(t, m.Connect(up))
	portA, _ := m.NewPort(0)
	portB, _ := m.NewPort(1)
	clientA, clientB := &fakeClient{}, &fakeClient{}
	portA.RegisterNotifiable(clientA)
	portB.RegisterNotifiable(clientB)
	m.OnReady(1024, 1024)

	pingA, err := remote.NewPingRequest(remote.MinUsefulResponseSize)
	require.NoError(t, err)
	require.NoError(t, portA.SendPing(pingA))

	sentA := up.lastSent()
	require.NotNil(t, sentA)
	stack := sentA.Base().ReturnStack()
	require.Len(t, stack, 1)
	assert.Equal(t, uint32(0xC0FFEE), stack[0].ID)

	resp := remote.NewPingResponse(abortcode.OK, stack)
	m.OnRequestProcessed(resp)

	assert.Len(t, clientA.responses, 1)
	assert.Empty(t, clientB.responses)
}

func TestMultiplexerDropsResponseFromStaleSession(t *testing.T) {
	m := New(1)
	up := &fakeUpstream{}
	require.NoError(t, m.Connect(up))
	portA, _ := m.NewPort(0)
	clientA := &fakeClient{}
	portA.RegisterNotifiable(clientA)
	m.OnReady(1024, 1024)

	req, err := remote.NewPingRequest(remote.MinUsefulResponseSize)
	require.NoError(t, err)
	require.NoError(t, portA.Send(req))
	stack := up.lastSent().Base().ReturnStack()

	// Disconnect/reconnect bumps the port's session ID, so the
	// in-flight response above is now stale.
	m.OnDisconnected()
	m.OnReady(1024, 1024)

	resp := remote.NewPingResponse(abortcode.OK, stack)
	m.OnRequestProcessed(resp)

	assert.Empty(t, clientA.responses)
}

func TestMultiplexerOnDisconnectedNotifiesReadyPorts(t *testing.T) {
	m := New(1)
	up := &fakeUpstream{}
	require.NoError(t, m.Connect(up))
	portA, _ := m.NewPort(0)
	clientA := &fakeClient{}
	portA.RegisterNotifiable(clientA)
	m.OnReady(1024, 1024)

	m.OnDisconnected()
	assert.Equal(t, NotReady, m.State())
	assert.Equal(t, 1, clientA.disconnected)
	assert.Equal(t, PortNotReady, portA.State())
}

func TestNewPortRejectsIndexBeyondMaxPorts(t *testing.T) {
	m := New(1)
	_, err := m.NewPort(MaxPorts)
	assert.ErrorIs(t, err, ErrTooManyPorts)
}

func TestNewPortRejectsOccupiedIndex(t *testing.T) {
	m := New(1)
	_, err := m.NewPort(5)
	require.NoError(t, err)
	_, err = m.NewPort(5)
	assert.ErrorIs(t, err, ErrPortHasClient)
}

func TestDestroyPanicsWhileConnected(t *testing.T) {
	m := New(1)
	require.NoError(t, m.Connect(&fakeUpstream{}))
	assert.Panics(t, func() { m.Destroy() })
}

func TestDestroyPanicsWithOutstandingPort(t *testing.T) {
	m := New(1)
	_, err := m.NewPort(0)
	require.NoError(t, err)
	assert.Panics(t, func() { m.Destroy() })
}

func TestDestroySucceedsWhenClean(t *testing.T) {
	m := New(1)
	p, err := m.NewPort(0)
	require.NoError(t, err)
	p.Close()
	assert.NotPanics(t, func() { m.Destroy() })
}

func TestNewPortRecyclesClosedSlot(t *testing.T) {
	m := New(1)
	p1, err := m.NewPort(5)
	require.NoError(t, err)
	p1.Close()

	p2, err := m.NewPort(5)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), p2.Index())

	// The first handle's slot has moved on to a new generation; using
	// it now is a contract violation (mirrors "operations on a
	// moved-from handle", §7).
	assert.Panics(t, func() { p1.State() })
	assert.NotPanics(t, func() { p2.State() })
}

func TestSessionOlderThanIsWrapSafe(t *testing.T) {
	assert.True(t, sessionOlderThan(10, 20))
	assert.False(t, sessionOlderThan(20, 10))
	assert.False(t, sessionOlderThan(5, 5))
	// wrap-around: 250 -> 5 should read as 250 older than 5.
	assert.True(t, sessionOlderThan(250, 5))
	assert.False(t, sessionOlderThan(5, 250))
}

func TestRoutingInfoRoundTrip(t *testing.T) {
	info := packRoutingInfo(200, true, 0x5A)
	got := unpackRoutingInfo(info)
	assert.Equal(t, uint8(200), got.portIndex)
	assert.True(t, got.myPing)
	assert.True(t, got.gapZero)
	assert.Equal(t, uint8(0x5A), got.sessionID)
}
