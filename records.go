package ecat

import "encoding/binary"

// Binary layouts of the operation specific records exchanged over the
// transport channel. Shared between the master core and channel
// implementations. All fields are little endian.

// MarshalSlaveId packs a slave identity into a command scalar
func MarshalSlaveId(id SlaveId) uint64 {
	return uint64(id.VendorId)<<32 | uint64(id.ProductCode)
}

// UnmarshalSlaveId unpacks a slave identity from a command scalar
func UnmarshalSlaveId(v uint64) SlaveId {
	return SlaveId{VendorId: uint32(v >> 32), ProductCode: uint32(v)}
}

// MarshalSlaveInfo encodes a slave info record into an output buffer
func MarshalSlaveInfo(info SlaveInfo) []byte {
	buf := make([]byte, 16+len(info.Name))
	binary.LittleEndian.PutUint16(buf[0:], info.RingPos)
	binary.LittleEndian.PutUint16(buf[2:], info.Alias)
	binary.LittleEndian.PutUint32(buf[4:], info.Id.VendorId)
	binary.LittleEndian.PutUint32(buf[8:], info.Id.ProductCode)
	buf[12] = uint8(info.AlState)
	if info.ErrorFlag {
		buf[13] = 1
	}
	binary.LittleEndian.PutUint16(buf[14:], info.ErrorCode)
	copy(buf[16:], info.Name)
	return buf
}

// UnmarshalSlaveInfo decodes a slave info record
func UnmarshalSlaveInfo(buf []byte) (SlaveInfo, error) {
	if len(buf) < 16 {
		return SlaveInfo{}, ErrIO
	}
	info := SlaveInfo{
		RingPos: binary.LittleEndian.Uint16(buf[0:]),
		Alias:   binary.LittleEndian.Uint16(buf[2:]),
		Id: SlaveId{
			VendorId:    binary.LittleEndian.Uint32(buf[4:]),
			ProductCode: binary.LittleEndian.Uint32(buf[8:]),
		},
		AlState:   AlState(buf[12]),
		ErrorFlag: buf[13] != 0,
		ErrorCode: binary.LittleEndian.Uint16(buf[14:]),
		Name:      string(buf[16:]),
	}
	return info, nil
}

// MarshalMasterInfo encodes a master info record
func MarshalMasterInfo(info MasterInfo) []byte {
	buf := make([]byte, 13)
	binary.LittleEndian.PutUint32(buf[0:], info.SlaveCount)
	if info.LinkUp {
		buf[4] |= 1
	}
	if info.ScanBusy {
		buf[4] |= 2
	}
	binary.LittleEndian.PutUint64(buf[5:], info.AppTime)
	return buf
}

// UnmarshalMasterInfo decodes a master info record
func UnmarshalMasterInfo(buf []byte) (MasterInfo, error) {
	if len(buf) < 13 {
		return MasterInfo{}, ErrIO
	}
	return MasterInfo{
		SlaveCount: binary.LittleEndian.Uint32(buf[0:]),
		LinkUp:     buf[4]&1 != 0,
		ScanBusy:   buf[4]&2 != 0,
		AppTime:    binary.LittleEndian.Uint64(buf[5:]),
	}, nil
}

// MarshalMasterState packs an aggregated master state and the optional
// error indication into a command scalar
func MarshalMasterState(state MasterState, errFlag bool, errCode uint16) uint64 {
	v := uint64(state.SlavesResponding)
	v |= uint64(state.AlStates) << 32
	if state.LinkUp {
		v |= 1 << 40
	}
	if errFlag {
		v |= 1 << 41
	}
	v |= uint64(errCode) << 48
	return v
}

// UnmarshalMasterState unpacks an aggregated master state scalar
func UnmarshalMasterState(v uint64) (state MasterState, errFlag bool, errCode uint16) {
	state = MasterState{
		SlavesResponding: uint32(v),
		AlStates:         AlState(v >> 32),
		LinkUp:           v&(1<<40) != 0,
	}
	return state, v&(1<<41) != 0, uint16(v >> 48)
}

// MarshalSyncCfg encodes the PDO assignment of one sync manager into a
// configure-sync command payload : direction, watchdog mode, then the PDO
// list with each mapped entry.
func MarshalSyncCfg(sync SyncCfg) []byte {
	buf := []byte{sync.Index, uint8(sync.Direction), uint8(sync.Watchdog), uint8(len(sync.Pdos))}
	for _, pdo := range sync.Pdos {
		buf = binary.LittleEndian.AppendUint16(buf, pdo.Index)
		buf = append(buf, uint8(len(pdo.Entries)))
		for _, entry := range pdo.Entries {
			buf = binary.LittleEndian.AppendUint16(buf, entry.Index)
			buf = append(buf, entry.Subindex)
			buf = binary.LittleEndian.AppendUint16(buf, entry.BitLength)
		}
	}
	return buf
}

// UnmarshalSyncCfg decodes a configure-sync command payload
func UnmarshalSyncCfg(buf []byte) (SyncCfg, error) {
	if len(buf) < 4 {
		return SyncCfg{}, ErrIO
	}
	sync := SyncCfg{
		Index:     buf[0],
		Direction: SyncDirection(buf[1]),
		Watchdog:  WatchdogMode(buf[2]),
	}
	nPdos := int(buf[3])
	pos := 4
	for i := 0; i < nPdos; i++ {
		if len(buf) < pos+3 {
			return SyncCfg{}, ErrIO
		}
		pdo := PdoCfg{Index: binary.LittleEndian.Uint16(buf[pos:])}
		nEntries := int(buf[pos+2])
		pos += 3
		for j := 0; j < nEntries; j++ {
			if len(buf) < pos+5 {
				return SyncCfg{}, ErrIO
			}
			pdo.Entries = append(pdo.Entries, PdoEntryInfo{
				Index:     binary.LittleEndian.Uint16(buf[pos:]),
				Subindex:  buf[pos+2],
				BitLength: binary.LittleEndian.Uint16(buf[pos+3:]),
			})
			pos += 5
		}
		sync.Pdos = append(sync.Pdos, pdo)
	}
	return sync, nil
}

// MarshalDcConfig encodes distributed clock parameters into a
// configure-dc command payload
func MarshalDcConfig(dc DcConfig) []byte {
	buf := make([]byte, 18)
	binary.LittleEndian.PutUint16(buf[0:], dc.AssignActivate)
	binary.LittleEndian.PutUint32(buf[2:], dc.Sync0CycleTime)
	binary.LittleEndian.PutUint32(buf[6:], uint32(dc.Sync0ShiftTime))
	binary.LittleEndian.PutUint32(buf[10:], dc.Sync1CycleTime)
	binary.LittleEndian.PutUint32(buf[14:], uint32(dc.Sync1ShiftTime))
	return buf
}

// UnmarshalDcConfig decodes a configure-dc command payload
func UnmarshalDcConfig(buf []byte) (DcConfig, error) {
	if len(buf) < 18 {
		return DcConfig{}, ErrIO
	}
	return DcConfig{
		AssignActivate: binary.LittleEndian.Uint16(buf[0:]),
		Sync0CycleTime: binary.LittleEndian.Uint32(buf[2:]),
		Sync0ShiftTime: int32(binary.LittleEndian.Uint32(buf[6:])),
		Sync1CycleTime: binary.LittleEndian.Uint32(buf[10:]),
		Sync1ShiftTime: int32(binary.LittleEndian.Uint32(buf[14:])),
	}, nil
}

// MarshalDomainState packs a domain exchange result into a command scalar
func MarshalDomainState(state DomainState) uint64 {
	v := uint64(state.WorkingCounter)
	v |= uint64(state.WcState) << 32
	if state.RedundancyActive {
		v |= 1 << 40
	}
	return v
}

// UnmarshalDomainState unpacks a domain exchange result scalar
func UnmarshalDomainState(v uint64) DomainState {
	return DomainState{
		WorkingCounter:   uint32(v),
		WcState:          WcState(v >> 32 & 0xFF),
		RedundancyActive: v&(1<<40) != 0,
	}
}
