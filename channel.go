package ecat

import "fmt"

// Opcode selects the operation of a transport channel command
type Opcode uint16

const (
	OpOpen Opcode = iota + 1
	OpReserve
	OpCreateDomain
	OpCreateSlaveConfig
	OpConfigSync
	OpConfigWatchdog
	OpConfigDc
	OpActivate
	OpDeactivate
	OpReset
	OpSend
	OpReceive
	OpDomainQueue
	OpDomainProcess
	OpMasterState
	OpMasterInfo
	OpSlaveInfo
	OpConfigState
	OpRequestAlState
	OpSdoDownload
	OpSdoUpload
	OpFoeRead
	OpFoeWrite
	OpSyncRefClock
	OpSyncSlaveClocks
)

// Status is the result code of a transport channel command
type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusBusy
	StatusAborted
	StatusTimeout
	StatusInvalid
	StatusIO
)

// Err maps a status code to the package error taxonomy.
// StatusAborted carries its abort code in Response.Value and is mapped
// by the caller, which has access to it.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNotFound:
		return ErrNotFound
	case StatusBusy:
		return ErrMailboxTimeout
	case StatusTimeout:
		return ErrTimeout
	case StatusInvalid:
		return ErrInvalidConfig
	default:
		return ErrIO
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT-FOUND"
	case StatusBusy:
		return "BUSY"
	case StatusAborted:
		return "ABORTED"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusInvalid:
		return "INVALID"
	case StatusIO:
		return "IO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// Request is the fixed layout command record accepted by a transport
// channel. Fields are interpreted per opcode : Alias/Position address a
// slave, Index selects an object, domain or sync manager, Value carries a
// scalar argument and Data a variable sized payload.
type Request struct {
	Op       Opcode
	Alias    uint16
	Position uint16
	Index    uint16
	Subindex uint8
	Flags    uint8
	Value    uint64
	Data     []byte
}

// Request flag bits
const (
	FlagCompleteAccess uint8 = 1 << 0 // SDO complete access transfer
	FlagLastChunk      uint8 = 1 << 1 // final chunk of an FoE transfer
)

// Response is the fixed layout result record of a transport channel
// command : a status code, a scalar output and an output buffer.
type Response struct {
	Status Status
	Value  uint64
	Data   []byte
}

// Channel is the privileged command channel to the underlying master
// driver. It is the only point of contact with the driver, implementations
// substitute their own mechanism (ioctl, simulation, remote bridge).
//
// Do must be safe for concurrent use : the cyclic path and the mailbox
// path share one channel.
type Channel interface {
	Do(req *Request) (*Response, error)
	Close() error
}
