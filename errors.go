package ecat

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("no such master, slave or index")
	ErrAlreadyActivated = errors.New("master is already activated")
	ErrNotActivated     = errors.New("master is not activated")
	ErrInvalidConfig    = errors.New("unsupported PDO or sync manager configuration, or slave identity mismatch")
	ErrTimeout          = errors.New("timed out waiting for state transition")
	ErrMailboxTimeout   = errors.New("slave did not answer within the mailbox timeout")
	ErrIO               = errors.New("transport channel failure")
)

// Common CoE abort codes, ETG.1000.6 / CiA 301
const (
	AbortToggleBit         uint32 = 0x05030000
	AbortSdoTimeout        uint32 = 0x05040000
	AbortOutOfMemory       uint32 = 0x05040005
	AbortUnsupportedAccess uint32 = 0x06010000
	AbortWriteOnly         uint32 = 0x06010001
	AbortReadOnly          uint32 = 0x06010002
	AbortObjectMissing     uint32 = 0x06020000
	AbortNoPdoMapping      uint32 = 0x06040041
	AbortLengthMismatch    uint32 = 0x06070010
	AbortSubindexMissing   uint32 = 0x06090011
	AbortGeneral           uint32 = 0x08000000
	AbortDataTransfer      uint32 = 0x08000020
)

// FoE error codes, ETG.1000.5
const (
	FoeNotDefined    uint32 = 0x8000
	FoeNotFound      uint32 = 0x8001
	FoeAccessDenied  uint32 = 0x8002
	FoeDiskFull      uint32 = 0x8003
	FoeIllegal       uint32 = 0x8004
	FoePacketNumber  uint32 = 0x8005
	FoeAlreadyExists uint32 = 0x8006
)

var abortDescription = map[uint32]string{
	AbortToggleBit:         "toggle bit not alternated",
	AbortSdoTimeout:        "SDO protocol timed out",
	AbortOutOfMemory:       "out of memory",
	AbortUnsupportedAccess: "unsupported access to an object",
	AbortWriteOnly:         "attempt to read a write only object",
	AbortReadOnly:          "attempt to write a read only object",
	AbortObjectMissing:     "object does not exist in the object dictionary",
	AbortNoPdoMapping:      "object cannot be mapped to the PDO",
	AbortLengthMismatch:    "data type does not match, length of service parameter does not match",
	AbortSubindexMissing:   "sub-index does not exist",
	AbortGeneral:           "general error",
	AbortDataTransfer:      "data cannot be transferred or stored to the application",
	FoeNotDefined:          "FoE error not defined",
	FoeNotFound:            "FoE file not found",
	FoeAccessDenied:        "FoE access denied",
	FoeDiskFull:            "FoE disk full",
	FoeIllegal:             "FoE illegal operation",
	FoePacketNumber:        "FoE wrong packet number",
	FoeAlreadyExists:       "FoE file already exists",
}

// AbortError is a CoE or FoE abort reported by a slave.
// The code is carried through unmodified.
type AbortError struct {
	Code uint32
}

func (e *AbortError) Error() string {
	desc, ok := abortDescription[e.Code]
	if !ok {
		desc = "unknown abort code"
	}
	return fmt.Sprintf("slave aborted transfer : %v (x%08x)", desc, e.Code)
}

// AlStateError is reported when a master or slave signals an error flag
// alongside its AL state during a state transition.
type AlStateError struct {
	State AlState
	Code  uint16
}

func (e *AlStateError) Error() string {
	return fmt.Sprintf("AL state error in state %v, status code x%04x", e.State, e.Code)
}
