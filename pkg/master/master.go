// Package master implements the EtherCAT master handle : slave
// configuration, process data domains, activation, the cyclic exchange and
// distributed clock synchronization. All bus access goes through the
// transport channel given at Open.
package master

import (
	"fmt"
	"sync"
	"time"

	ecat "github.com/fieldworks/goecat"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultStateTimeout bounds AL state transition polling
	DefaultStateTimeout = 5 * time.Second
	// DefaultPollInterval is the period between two state polls
	DefaultPollInterval = 10 * time.Millisecond
)

// A Master owns the slave configurations and domains of one master
// instance. Configuration calls are only valid before Activate, the cyclic
// Send/Receive pair only after. The cyclic path expects a single caller,
// typically a dedicated real time loop.
type Master struct {
	mu           sync.Mutex
	channel      ecat.Channel
	index        uint
	slaves       []*SlaveConfig
	domains      []*Domain
	activated    bool
	reserved     bool
	stateTimeout time.Duration
	pollInterval time.Duration
}

// Open binds to the master instance at the given index.
// The returned handle is usable for status queries, Reserve acquires
// exclusive control for configuration.
func Open(channel ecat.Channel, index uint) (*Master, error) {
	resp, err := channel.Do(&ecat.Request{Op: ecat.OpOpen, Value: uint64(index)})
	if err != nil {
		return nil, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return nil, resp.Status.Err()
	}
	log.Infof("[MASTER] opened master %v", index)
	return &Master{
		channel:      channel,
		index:        index,
		stateTimeout: DefaultStateTimeout,
		pollInterval: DefaultPollInterval,
	}, nil
}

// Close releases the handle and its underlying transport channel. The
// master is not usable afterwards.
func (m *Master) Close() error {
	return m.channel.Close()
}

// Reserve acquires exclusive control of the master for configuration
func (m *Master) Reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpReserve})
	if err != nil {
		return ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return resp.Status.Err()
	}
	m.reserved = true
	return nil
}

// SetStateTimeout changes the bound on AL state transition polling
func (m *Master) SetStateTimeout(timeout time.Duration) {
	m.stateTimeout = timeout
}

// SetPollInterval changes the period between two state polls
func (m *Master) SetPollInterval(interval time.Duration) {
	m.pollInterval = interval
}

// ConfigureSlave registers the expected identity of the slave at the given
// address. Mismatched hardware at that address is a fatal activation
// error, not a silent skip.
func (m *Master) ConfigureSlave(addr ecat.SlaveAddr, expected ecat.SlaveId) (*SlaveConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activated {
		return nil, ecat.ErrAlreadyActivated
	}
	resp, err := m.channel.Do(&ecat.Request{
		Op:       ecat.OpCreateSlaveConfig,
		Alias:    addr.Alias,
		Position: addr.Position,
		Value:    ecat.MarshalSlaveId(expected),
	})
	if err != nil {
		return nil, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return nil, resp.Status.Err()
	}
	sc := &SlaveConfig{
		master:   m,
		index:    uint32(resp.Value),
		addr:     addr,
		expected: expected,
	}
	m.slaves = append(m.slaves, sc)
	log.Infof("[MASTER] configured slave at %v expecting %v", addr, expected)
	return sc, nil
}

// CreateDomain allocates an empty process data domain bound to this master
func (m *Master) CreateDomain() (*Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activated {
		return nil, ecat.ErrAlreadyActivated
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpCreateDomain})
	if err != nil {
		return nil, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return nil, resp.Status.Err()
	}
	d := &Domain{master: m, index: uint32(resp.Value)}
	m.domains = append(m.domains, d)
	return d, nil
}

// Activate freezes the configuration, verifies slave identities, pushes
// all sync manager and PDO mappings to the driver and computes the memory
// layout of every domain. Either the whole activation succeeds or the
// master is left in its pre-activation state.
func (m *Master) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activated {
		return ecat.ErrAlreadyActivated
	}
	for _, sc := range m.slaves {
		if err := m.verifyIdentity(sc); err != nil {
			return err
		}
	}
	for _, sc := range m.slaves {
		if err := sc.push(); err != nil {
			return err
		}
	}
	for _, d := range m.domains {
		d.computeLayout()
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpActivate})
	if err != nil {
		return ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return resp.Status.Err()
	}
	m.activated = true
	log.Infof("[MASTER] activated with %v slave(s), %v domain(s)", len(m.slaves), len(m.domains))
	return nil
}

// verifyIdentity compares the expected identity of a slave configuration
// against the hardware found at its address
func (m *Master) verifyIdentity(sc *SlaveConfig) error {
	resp, err := m.channel.Do(&ecat.Request{
		Op:       ecat.OpSlaveInfo,
		Alias:    sc.addr.Alias,
		Position: sc.addr.Position,
	})
	if err != nil {
		return ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return resp.Status.Err()
	}
	info, err := ecat.UnmarshalSlaveInfo(resp.Data)
	if err != nil {
		return err
	}
	if info.Id != sc.expected {
		log.Errorf("[MASTER] identity mismatch at %v : expected %v, found %v", sc.addr, sc.expected, info.Id)
		return ecat.ErrInvalidConfig
	}
	return nil
}

// Deactivate reverses Activate. It must not be called while a cyclic
// exchange is in flight.
func (m *Master) Deactivate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.activated {
		return ecat.ErrNotActivated
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpDeactivate})
	if err != nil {
		return ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return resp.Status.Err()
	}
	m.activated = false
	for _, d := range m.domains {
		d.data = nil
		d.queued = false
	}
	log.Infof("[MASTER] deactivated")
	return nil
}

// Reset requests a bus rescan and reconfiguration from the driver
func (m *Master) Reset() error {
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpReset})
	if err != nil {
		return ecat.ErrIO
	}
	return resp.Status.Err()
}

// Send pushes the output buffers of all queued domains to the bus.
// One half of the cyclic exchange, the other half is Receive.
func (m *Master) Send() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.activated {
		return ecat.ErrNotActivated
	}
	for _, d := range m.domains {
		if !d.queued {
			continue
		}
		resp, err := m.channel.Do(&ecat.Request{
			Op:    ecat.OpDomainQueue,
			Index: uint16(d.index),
			Data:  d.data,
		})
		if err != nil {
			return ecat.ErrIO
		}
		if resp.Status != ecat.StatusOK {
			return resp.Status.Err()
		}
		d.queued = false
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpSend})
	if err != nil {
		return ecat.ErrIO
	}
	return resp.Status.Err()
}

// Receive pulls the frames of the current cycle from the bus. Input data
// becomes visible in a domain after its Process call.
func (m *Master) Receive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.activated {
		return ecat.ErrNotActivated
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpReceive})
	if err != nil {
		return ecat.ErrIO
	}
	return resp.Status.Err()
}

// State returns the aggregated link status, responding slave count and
// overall AL state. Side effect free.
func (m *Master) State() (ecat.MasterState, error) {
	state, _, _, err := m.masterState()
	return state, err
}

func (m *Master) masterState() (ecat.MasterState, bool, uint16, error) {
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpMasterState})
	if err != nil {
		return ecat.MasterState{}, false, 0, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return ecat.MasterState{}, false, 0, resp.Status.Err()
	}
	state, errFlag, errCode := ecat.UnmarshalMasterState(resp.Value)
	return state, errFlag, errCode, nil
}

// Info returns general information about the master instance
func (m *Master) Info() (ecat.MasterInfo, error) {
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpMasterInfo})
	if err != nil {
		return ecat.MasterInfo{}, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return ecat.MasterInfo{}, resp.Status.Err()
	}
	return ecat.UnmarshalMasterInfo(resp.Data)
}

// SlaveInfo returns the description of the slave at the given ring position
func (m *Master) SlaveInfo(position uint16) (ecat.SlaveInfo, error) {
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpSlaveInfo, Position: position})
	if err != nil {
		return ecat.SlaveInfo{}, ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return ecat.SlaveInfo{}, resp.Status.Err()
	}
	return ecat.UnmarshalSlaveInfo(resp.Data)
}

// RequestState asynchronously requests an AL state transition for the
// whole bus. The bus advances one state per cycle, observe progress with
// State or WaitForState.
func (m *Master) RequestState(target ecat.AlState) error {
	if !target.Valid() {
		return fmt.Errorf("invalid AL state %v", target)
	}
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpRequestAlState, Value: uint64(target)})
	if err != nil {
		return ecat.ErrIO
	}
	log.Debugf("[MASTER] requested AL state %v", target)
	return resp.Status.Err()
}

// WaitForState polls the master state until the bus reports the target AL
// state. An error flag observed alongside a state is returned as an
// AlStateError, exceeding the configured state timeout as ErrTimeout.
func (m *Master) WaitForState(target ecat.AlState) error {
	deadline := time.Now().Add(m.stateTimeout)
	for {
		state, errFlag, errCode, err := m.masterState()
		if err != nil {
			return err
		}
		if errFlag {
			return &ecat.AlStateError{State: state.AlStates, Code: errCode}
		}
		if state.AlStates == target {
			log.Debugf("[MASTER] bus reached AL state %v", target)
			return nil
		}
		if time.Now().After(deadline) {
			log.Warnf("[MASTER] timed out waiting for AL state %v, still in %v", target, state.AlStates)
			return ecat.ErrTimeout
		}
		time.Sleep(m.pollInterval)
	}
}
