// Package abortcode defines the fixed registry of CANopen/EtherCAT SDO
// abort codes shared by the object model and the remote access layer.
package abortcode

import "fmt"

// Code is a 32-bit SDO abort code as carried on the wire.
type Code uint32

// OK is the zero value, meaning "no error".
const OK Code = 0

const (
	ToggleBit         Code = 0x05030000
	Timeout           Code = 0x05040000
	Cmd               Code = 0x05040001
	BlockSize         Code = 0x05040002
	SeqNum            Code = 0x05040003
	CRC               Code = 0x05040004
	OutOfMem          Code = 0x05040005
	UnsupportedAccess Code = 0x06010000
	WriteOnly         Code = 0x06010001
	ReadOnly          Code = 0x06010002
	SI0MustBeZero     Code = 0x06010003
	CANotSupported    Code = 0x06010004
	LengthExceedsMbx  Code = 0x06010005
	MappedToRPDO      Code = 0x06010006
	NotExist          Code = 0x06020000
	NoMap             Code = 0x06040041
	MapLen            Code = 0x06040042
	ParamIncompat     Code = 0x06040043
	DeviceIncompat    Code = 0x06040047
	Hardware          Code = 0x06060000
	TypeMismatch      Code = 0x06070010
	DataLong          Code = 0x06070012
	DataShort         Code = 0x06070013
	SubUnknown        Code = 0x06090011
	InvalidValue      Code = 0x06090030
	ValueHigh         Code = 0x06090031
	ValueLow          Code = 0x06090032
	ModuleMismatch    Code = 0x06090033
	MaxLessMin        Code = 0x06090036
	NoResource        Code = 0x060A0023
	General           Code = 0x08000000
	DataTransfer      Code = 0x08000020
	DataLocalControl  Code = 0x08000021
	DataDeviceState   Code = 0x08000022
	ODMissing         Code = 0x08000023
	NoData            Code = 0x08000024
)

var descriptions = map[Code]string{
	OK:                "no error",
	ToggleBit:         "toggle bit not altered",
	Timeout:           "SDO protocol timed out",
	Cmd:               "command specifier not valid or unknown",
	BlockSize:         "invalid block size in block mode",
	SeqNum:            "invalid sequence number in block mode",
	CRC:               "CRC error (block mode only)",
	OutOfMem:          "out of memory",
	UnsupportedAccess: "unsupported access to an object",
	WriteOnly:         "attempt to read a write only object",
	ReadOnly:          "attempt to write a read only object",
	SI0MustBeZero:     "subindex cannot be written, SI0 must be 0 for write access with unspecified number of elements",
	CANotSupported:    "complete access not supported for objects with variable length",
	LengthExceedsMbx:  "object length exceeds mailbox size",
	MappedToRPDO:      "object mapped to RxPDO, SDO download blocked",
	NotExist:          "object does not exist in the object dictionary",
	NoMap:             "object cannot be mapped to the PDO",
	MapLen:            "number and length of objects to be mapped exceeds PDO length",
	ParamIncompat:     "general parameter incompatibility reason",
	DeviceIncompat:    "general internal incompatibility in the device",
	Hardware:          "access failed due to a hardware error",
	TypeMismatch:      "data type does not match, length of service parameter does not match",
	DataLong:          "data type does not match, length of service parameter too high",
	DataShort:         "data type does not match, length of service parameter too low",
	SubUnknown:        "subindex does not exist",
	InvalidValue:      "invalid value for parameter (download only)",
	ValueHigh:         "value of parameter written too high",
	ValueLow:          "value of parameter written too low",
	ModuleMismatch:    "configured module list does not match detected modules",
	MaxLessMin:        "maximum value is less than minimum value",
	NoResource:        "resource not available: SDO connection",
	General:           "general error",
	DataTransfer:      "data cannot be transferred or stored to the application",
	DataLocalControl:  "data cannot be transferred because of local control",
	DataDeviceState:   "data cannot be transferred because of the present device state",
	ODMissing:         "object dictionary dynamic generation fails or no object dictionary is present",
	NoData:            "no data available",
}

// Description returns a human-readable description of the code, falling
// back to the General error's description for unknown values.
func (c Code) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[General]
}

func (c Code) Error() string {
	return fmt.Sprintf("0x%08X: %s", uint32(c), c.Description())
}

// IsOK reports whether the code denotes success.
func (c Code) IsOK() bool {
	return c == OK
}
