package master

import (
	ecat "github.com/fieldworks/goecat"
	log "github.com/sirupsen/logrus"
)

const maxSyncManagers = 16

// A SlaveConfig holds the desired configuration of one slave : its
// expected identity, sync manager PDO assignments, watchdog and
// distributed clock parameters. It is owned by its Master and becomes
// immutable once the master is activated.
type SlaveConfig struct {
	master   *Master
	index    uint32
	addr     ecat.SlaveAddr
	expected ecat.SlaveId
	syncs    []ecat.SyncCfg
	dc       *ecat.DcConfig
	watchdog *watchdogConfig
}

type watchdogConfig struct {
	divider   uint16
	intervals uint16
}

// Addr returns the bus address this configuration applies to
func (sc *SlaveConfig) Addr() ecat.SlaveAddr {
	return sc.addr
}

// ConfigPdos declares the sync manager PDO assignments of the slave.
// The mapping is validated and pushed to the driver at activation.
func (sc *SlaveConfig) ConfigPdos(syncs []ecat.SyncCfg) error {
	sc.master.mu.Lock()
	defer sc.master.mu.Unlock()
	if sc.master.activated {
		return ecat.ErrAlreadyActivated
	}
	for _, sync := range syncs {
		if sync.Index >= maxSyncManagers {
			log.Errorf("[MASTER] sync manager index %v out of range for slave at %v", sync.Index, sc.addr)
			return ecat.ErrInvalidConfig
		}
		if sync.Direction != ecat.DirectionInput && sync.Direction != ecat.DirectionOutput {
			return ecat.ErrInvalidConfig
		}
	}
	sc.syncs = syncs
	return nil
}

// ConfigDc sets the distributed clock parameters of the slave
func (sc *SlaveConfig) ConfigDc(dc ecat.DcConfig) error {
	sc.master.mu.Lock()
	defer sc.master.mu.Unlock()
	if sc.master.activated {
		return ecat.ErrAlreadyActivated
	}
	sc.dc = &dc
	return nil
}

// ConfigWatchdog sets the sync manager watchdog divider and intervals
func (sc *SlaveConfig) ConfigWatchdog(divider uint16, intervals uint16) error {
	sc.master.mu.Lock()
	defer sc.master.mu.Unlock()
	if sc.master.activated {
		return ecat.ErrAlreadyActivated
	}
	sc.watchdog = &watchdogConfig{divider: divider, intervals: intervals}
	return nil
}

// State queries the runtime state of the configured slave
func (sc *SlaveConfig) State() (ecat.SlaveConfigState, error) {
	resp, err := sc.master.channel.Do(&ecat.Request{
		Op:    ecat.OpConfigState,
		Index: uint16(sc.index),
	})
	if err != nil {
		return ecat.SlaveConfigState{}, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return ecat.SlaveConfigState{}, resp.Status.Err()
	}
	return ecat.SlaveConfigState{
		Online:      resp.Value&1 != 0,
		Operational: resp.Value&2 != 0,
		AlState:     ecat.AlState(resp.Value >> 8),
	}, nil
}

// push sends the stored sync, watchdog and DC configuration to the driver.
// Called with the master lock held during activation.
func (sc *SlaveConfig) push() error {
	for _, sync := range sc.syncs {
		resp, err := sc.master.channel.Do(&ecat.Request{
			Op:    ecat.OpConfigSync,
			Index: uint16(sc.index),
			Data:  ecat.MarshalSyncCfg(sync),
		})
		if err != nil {
			return ecat.ErrIO
		}
		if resp.Status != ecat.StatusOK {
			log.Errorf("[MASTER] slave at %v rejected sync manager %v configuration", sc.addr, sync.Index)
			return resp.Status.Err()
		}
	}
	if sc.watchdog != nil {
		resp, err := sc.master.channel.Do(&ecat.Request{
			Op:    ecat.OpConfigWatchdog,
			Index: uint16(sc.index),
			Value: uint64(sc.watchdog.divider)<<16 | uint64(sc.watchdog.intervals),
		})
		if err != nil {
			return ecat.ErrIO
		}
		if resp.Status != ecat.StatusOK {
			return resp.Status.Err()
		}
	}
	if sc.dc != nil {
		resp, err := sc.master.channel.Do(&ecat.Request{
			Op:    ecat.OpConfigDc,
			Index: uint16(sc.index),
			Data:  ecat.MarshalDcConfig(*sc.dc),
		})
		if err != nil {
			return ecat.ErrIO
		}
		if resp.Status != ecat.StatusOK {
			return resp.Status.Err()
		}
	}
	return nil
}

// findEntry looks up a mapped PDO entry in the declared sync configuration
func (sc *SlaveConfig) findEntry(index uint16, subindex uint8) (ecat.PdoEntryInfo, ecat.SyncDirection, bool) {
	for _, sync := range sc.syncs {
		for _, pdo := range sync.Pdos {
			for _, entry := range pdo.Entries {
				if entry.Index == index && entry.Subindex == subindex {
					return entry, sync.Direction, true
				}
			}
		}
	}
	return ecat.PdoEntryInfo{}, ecat.DirectionInvalid, false
}
