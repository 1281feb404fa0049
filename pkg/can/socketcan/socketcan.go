// Package socketcan wraps github.com/brutella/can as a pkg/can.Bus,
// letting candgram (and anything else built against the Bus interface)
// run over a real Linux SocketCAN interface. Logging and error
// wrapping follow the rest of this module's components (a per-struct
// *slog.Logger field, errors wrapped with %w and enough context to
// trace back to the failing frame) rather than the teacher's bare
// passthrough, since this Bus is now candgram's production backend
// rather than a standalone example.
package socketcan

import (
	"fmt"
	"log/slog"

	sockcan "github.com/brutella/can"

	can "github.com/samsamfire/coodcore/pkg/can"
)

func init() {
	can.RegisterInterface("socketcan", func(channel string) (can.Bus, error) {
		return NewSocketCanBus(channel)
	})
}

// Bus adapts a *brutella_can.Bus to pkg/can.Bus.
type Bus struct {
	bus        *sockcan.Bus
	name       string
	rxCallback can.FrameListener
	logger     *slog.Logger
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// Connect implements can.Bus: starts the underlying SocketCAN read/
// publish loop in the background, matching brutella/can's
// fire-and-forget ConnectAndPublish contract (it logs its own
// connection errors since it offers no synchronous failure path).
func (b *Bus) Connect(...any) error {
	b.logger.Debug("socketcan: connecting", "interface", b.name)
	go b.bus.ConnectAndPublish()
	return nil
}

// Disconnect implements can.Bus.
func (b *Bus) Disconnect() error {
	if err := b.bus.Disconnect(); err != nil {
		return fmt.Errorf("socketcan: disconnecting %s: %w", b.name, err)
	}
	return nil
}

// Send implements can.Bus.
func (b *Bus) Send(frame can.Frame) error {
	if err := b.bus.Publish(sockcan.Frame{
		ID:     frame.ID,
		Length: frame.DLC,
		Flags:  frame.Flags,
		Data:   frame.Data,
	}); err != nil {
		return fmt.Errorf("socketcan: publish frame id=0x%X on %s: %w", frame.ID, b.name, err)
	}
	return nil
}

// Subscribe implements can.Bus.
func (b *Bus) Subscribe(rxCallback can.FrameListener) error {
	b.rxCallback = rxCallback
	b.bus.Subscribe(b)
	b.logger.Debug("socketcan: subscribed for inbound frames", "interface", b.name)
	return nil
}

// Handle satisfies brutella/can's own Handler interface, translating a
// received frame back into a pkg/can.Frame before forwarding it. A nil
// rxCallback (Handle invoked before Subscribe) is logged and dropped
// rather than panicking, since brutella/can delivers frames from its
// own goroutine outside this package's control.
func (b *Bus) Handle(frame sockcan.Frame) {
	if b.rxCallback == nil {
		b.logger.Warn("socketcan: frame received before Subscribe, dropping", "interface", b.name, "id", frame.ID)
		return
	}
	b.rxCallback.Handle(can.Frame{ID: frame.ID, DLC: frame.Length, Flags: frame.Flags, Data: frame.Data})
}

// NewSocketCanBus opens the named SocketCAN interface (e.g. "can0",
// "vcan0").
func NewSocketCanBus(name string, opts ...Option) (can.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, fmt.Errorf("socketcan: opening interface %s: %w", name, err)
	}
	b := &Bus{bus: bus, name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}
