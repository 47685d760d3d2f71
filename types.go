// Package ecat holds the shared data model of the EtherCAT master stack :
// application-layer states, slave addressing, PDO/sync-manager configuration
// and the transport channel record contract.
package ecat

import "fmt"

// AlState is the EtherCAT application-layer state of a master or slave.
// Values match the AL status register encoding.
type AlState uint8

const (
	AlStateInit   AlState = 1
	AlStatePreOp  AlState = 2
	AlStateSafeOp AlState = 4
	AlStateOp     AlState = 8
)

var alStateDescription = map[AlState]string{
	AlStateInit:   "INIT",
	AlStatePreOp:  "PRE-OP",
	AlStateSafeOp: "SAFE-OP",
	AlStateOp:     "OP",
}

func (s AlState) String() string {
	desc, ok := alStateDescription[s]
	if ok {
		return desc
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

// Valid returns true if s is one of the four defined AL states
func (s AlState) Valid() bool {
	_, ok := alStateDescription[s]
	return ok
}

// Next returns the next state on the forward bring-up path towards target.
// Transitions towards a lower state are always done in one step.
func (s AlState) Next(target AlState) AlState {
	if target <= s {
		return target
	}
	switch s {
	case AlStateInit:
		return AlStatePreOp
	case AlStatePreOp:
		return AlStateSafeOp
	case AlStateSafeOp:
		return AlStateOp
	default:
		return s
	}
}

// SlaveAddr identifies a slave either by absolute ring position or by
// position relative to a station alias.
type SlaveAddr struct {
	Alias    uint16
	Position uint16
}

// ByPosition addresses a slave by its absolute position in the ring
func ByPosition(position uint16) SlaveAddr {
	return SlaveAddr{Alias: 0, Position: position}
}

// ByAlias addresses a slave by station alias and offset from that alias
func ByAlias(alias uint16, position uint16) SlaveAddr {
	return SlaveAddr{Alias: alias, Position: position}
}

func (a SlaveAddr) String() string {
	if a.Alias != 0 {
		return fmt.Sprintf("alias %v + %v", a.Alias, a.Position)
	}
	return fmt.Sprintf("position %v", a.Position)
}

// SlaveId is the expected identity of a slave device
type SlaveId struct {
	VendorId    uint32
	ProductCode uint32
}

func (id SlaveId) String() string {
	return fmt.Sprintf("vendor x%x product x%x", id.VendorId, id.ProductCode)
}

// SyncDirection is the transfer direction of a sync manager
type SyncDirection uint8

const (
	DirectionInvalid SyncDirection = iota
	DirectionOutput
	DirectionInput
)

// WatchdogMode controls the sync manager watchdog of a slave
type WatchdogMode uint8

const (
	WatchdogDefault WatchdogMode = iota
	WatchdogEnable
	WatchdogDisable
)

// PdoEntryInfo identifies one object dictionary entry mapped inside a PDO
type PdoEntryInfo struct {
	Index     uint16
	Subindex  uint8
	BitLength uint16
}

// PdoCfg is the requested mapping of one PDO
type PdoCfg struct {
	Index   uint16
	Entries []PdoEntryInfo
}

// SyncCfg groups the PDO assignments of one sync manager
type SyncCfg struct {
	Index     uint8
	Direction SyncDirection
	Watchdog  WatchdogMode
	Pdos      []PdoCfg
}

// DcConfig holds the distributed clock parameters of a slave :
// the AssignActivate word and the SYNC0/SYNC1 signal cycle and shift times
// in nanoseconds.
type DcConfig struct {
	AssignActivate uint16
	Sync0CycleTime uint32
	Sync0ShiftTime int32
	Sync1CycleTime uint32
	Sync1ShiftTime int32
}

// Offset is a byte and bit position inside a domain process image
type Offset struct {
	Byte int
	Bit  uint8
}

func (o Offset) String() string {
	return fmt.Sprintf("byte %v bit %v", o.Byte, o.Bit)
}

// MasterState is the aggregated bus status of a master
type MasterState struct {
	SlavesResponding uint32
	AlStates         AlState
	LinkUp           bool
}

// MasterInfo holds general information about a master instance
type MasterInfo struct {
	SlaveCount uint32
	LinkUp     bool
	ScanBusy   bool
	AppTime    uint64
}

// SlaveInfo describes one slave as found on the bus
type SlaveInfo struct {
	Name      string
	RingPos   uint16
	Alias     uint16
	Id        SlaveId
	AlState   AlState
	ErrorFlag bool
	ErrorCode uint16
}

// SlaveConfigState is the runtime state of a configured slave
type SlaveConfigState struct {
	Online      bool
	Operational bool
	AlState     AlState
}

// WcState classifies the working counter of a domain exchange
type WcState uint8

const (
	WcStateZero       WcState = 0 // no slave processed the datagram
	WcStateIncomplete WcState = 1 // some but not all slaves responded
	WcStateComplete   WcState = 2 // all expected slaves responded
)

func (w WcState) String() string {
	switch w {
	case WcStateZero:
		return "ZERO"
	case WcStateIncomplete:
		return "INCOMPLETE"
	case WcStateComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(w))
	}
}

// DomainState is the result of the last cyclic exchange of a domain
type DomainState struct {
	WorkingCounter   uint32
	WcState          WcState
	RedundancyActive bool
}
