// Package can is the raw CAN transport abstraction candgram (pkg/cood/
// remote/transport/candgram) fragments the remote-access request/
// response family across. It is deliberately thin — a Bus interface
// plus backend registry — but RemoteAccessCOBIDs below ties it to the
// one convention this module's domain actually needs from a CAN
// identifier: the predefined client/server pair a candgram.Link binds
// to. The NMT/PDO-era bit flags and identifier masks the teacher's
// original carried here (CanRtrFlag, CanErrorPdoLate, and friends) are
// dropped — nothing under pkg/cood/... is a PDO or NMT consumer, and
// an unused CAN-error bitmask would just be dead weight in a module
// whose only transport is candgram's request/response fragmentation.
package can

import (
	"fmt"
	"log/slog"
)

// A CAN frame
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
	slog.Debug("can: registered bus backend", "interface", interfaceType)
}

type NewInterfaceFunc func(channel string) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// Create a new CAN bus with given interface
// Only registered backends are available; in this module that is
// socketcan, once its package is blank-imported.
func NewBus(canInterface string, channel string, bitrate int) (Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("can: unsupported interface %q (backend not blank-imported?)", canInterface)
	}
	return createInterface(channel)
}

// sdoClientBaseID and sdoServerBaseID are CANopen's predefined
// connection set base identifiers for the client->server and
// server->client SDO channels (grounded on pkg/sdo/common.go's
// ClientBaseId/ServerBaseId, 0x600/0x580): the same pair candgram's
// fragmentation transport rides on, since a remote-access exchange is
// the SDO-shaped request/response pattern this module generalizes.
const (
	sdoClientBaseID uint32 = 0x600
	sdoServerBaseID uint32 = 0x580
)

// RemoteAccessCOBIDs returns the request (client->server) and response
// (server->client) CAN identifiers a candgram.Link should bind to for
// the given CANopen node ID, following the predefined connection set
// convention every COB-ID in this stack derives from. nodeID must be in
// 1..127; callers that need nonstandard identifiers (e.g. from an EDS's
// [1280] SDO client parameter section) should bypass this helper and
// supply their own.
func RemoteAccessCOBIDs(nodeID uint8) (request, response uint32, err error) {
	if nodeID < 1 || nodeID > 127 {
		return 0, 0, fmt.Errorf("can: node ID %d out of range 1..127", nodeID)
	}
	return sdoClientBaseID + uint32(nodeID), sdoServerBaseID + uint32(nodeID), nil
}
