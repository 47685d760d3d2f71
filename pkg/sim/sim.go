// Package sim provides a simulated transport channel. It models a bus of
// slaves with object dictionary and file stores, hardware style AL state
// bring-up latency (one forward step per state poll) and loopback process
// data exchange. Used by the tests and the ecat command line tool.
package sim

import (
	"sync"

	ecat "github.com/fieldworks/goecat"
	log "github.com/sirupsen/logrus"
)

// ObjectKey addresses one entry of a simulated object dictionary
type ObjectKey struct {
	Index    uint16
	Subindex uint8
}

// SlaveOptions describes one simulated slave
type SlaveOptions struct {
	Name         string
	Alias        uint16
	Position     uint16
	Id           ecat.SlaveId
	SyncManagers uint8 // number of supported sync managers, defaults to 4
	Objects      map[ObjectKey][]byte
	Files        map[string][]byte
	BusyPolls    int  // answer this many mailbox commands with busy first
	Unresponsive bool // slave does not contribute to the working counter
}

type slave struct {
	opts      SlaveOptions
	alState   ecat.AlState
	errorFlag bool
	errorCode uint16
	busyLeft  int
	objects   map[ObjectKey][]byte
	readOnly  map[ObjectKey]bool
	files     map[string][]byte
	syncs     []ecat.SyncCfg
	watchdog  uint64
	dc        ecat.DcConfig
	dcTime    uint64
}

type config struct {
	alias    uint16
	position uint16
	expected ecat.SlaveId
}

type domain struct {
	output []byte
	input  []byte
	state  ecat.DomainState
}

// Channel is a simulated implementation of ecat.Channel
type Channel struct {
	mu          sync.Mutex
	slaves      []*slave
	configs     []*config
	domains     []*domain
	open        bool
	reserved    bool
	activated   bool
	busState    ecat.AlState
	busTarget   ecat.AlState
	appTime     uint64
	refSyncs    int
	slaveSyncs  int
	sends       int
	receives    int
	masterCount uint
}

// NewChannel creates a simulated channel exposing a single master instance
func NewChannel() *Channel {
	return &Channel{
		busState:    ecat.AlStateInit,
		busTarget:   ecat.AlStateInit,
		masterCount: 1,
	}
}

// AddSlave attaches a simulated slave to the bus
func (c *Channel) AddSlave(opts SlaveOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opts.SyncManagers == 0 {
		opts.SyncManagers = 4
	}
	s := &slave{
		opts:     opts,
		alState:  ecat.AlStateInit,
		busyLeft: opts.BusyPolls,
		objects:  map[ObjectKey][]byte{},
		readOnly: map[ObjectKey]bool{},
		files:    map[string][]byte{},
	}
	for k, v := range opts.Objects {
		s.objects[k] = append([]byte(nil), v...)
	}
	for name, data := range opts.Files {
		s.files[name] = append([]byte(nil), data...)
	}
	c.slaves = append(c.slaves, s)
	log.Debugf("[SIM] added slave %v at alias %v position %v", opts.Name, opts.Alias, opts.Position)
}

// MarkReadOnly makes writes to the given object abort with a read only code
func (c *Channel) MarkReadOnly(position uint16, index uint16, subindex uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.slaveAt(0, position); s != nil {
		s.readOnly[ObjectKey{Index: index, Subindex: subindex}] = true
	}
}

// SetSlaveError injects an AL status error for the slave at position
func (c *Channel) SetSlaveError(position uint16, code uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.slaveAt(0, position); s != nil {
		s.errorFlag = true
		s.errorCode = code
	}
}

// SetResponding toggles whether the slave contributes to the working counter
func (c *Channel) SetResponding(position uint16, responding bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.slaveAt(0, position); s != nil {
		s.opts.Unresponsive = !responding
	}
}

// File returns a copy of a simulated slave's stored file
func (c *Channel) File(position uint16, name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slaveAt(0, position)
	if s == nil {
		return nil, false
	}
	data, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// ReferenceTime returns the last time written to the reference clock and
// the number of reference and slave sync commands seen
func (c *Channel) ReferenceTime() (uint64, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appTime, c.refSyncs, c.slaveSyncs
}

// Close implements ecat.Channel
func (c *Channel) Close() error {
	return nil
}

// slaveAt resolves an address. Alias zero addresses by absolute ring
// position regardless of the slave's own alias.
func (c *Channel) slaveAt(alias uint16, position uint16) *slave {
	for _, s := range c.slaves {
		if alias == 0 {
			if s.opts.Position == position {
				return s
			}
			continue
		}
		if s.opts.Alias == alias && s.opts.Position == position {
			return s
		}
	}
	return nil
}

func (c *Channel) responding() uint32 {
	var n uint32
	for _, s := range c.slaves {
		if !s.opts.Unresponsive {
			n++
		}
	}
	return n
}

func ok() *ecat.Response {
	return &ecat.Response{Status: ecat.StatusOK}
}

func fail(status ecat.Status) *ecat.Response {
	return &ecat.Response{Status: status}
}

// Do implements ecat.Channel
func (c *Channel) Do(req *ecat.Request) (*ecat.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch req.Op {
	case ecat.OpOpen:
		if uint(req.Value) >= c.masterCount {
			return fail(ecat.StatusNotFound), nil
		}
		c.open = true
		return ok(), nil

	case ecat.OpReserve:
		c.reserved = true
		return ok(), nil

	case ecat.OpCreateDomain:
		c.domains = append(c.domains, &domain{})
		return &ecat.Response{Status: ecat.StatusOK, Value: uint64(len(c.domains) - 1)}, nil

	case ecat.OpCreateSlaveConfig:
		c.configs = append(c.configs, &config{
			alias:    req.Alias,
			position: req.Position,
			expected: ecat.UnmarshalSlaveId(req.Value),
		})
		return &ecat.Response{Status: ecat.StatusOK, Value: uint64(len(c.configs) - 1)}, nil

	case ecat.OpConfigSync:
		return c.doConfigSync(req), nil

	case ecat.OpConfigWatchdog:
		s, resp := c.configSlave(req.Index)
		if s == nil {
			return resp, nil
		}
		s.watchdog = req.Value
		return ok(), nil

	case ecat.OpConfigDc:
		s, resp := c.configSlave(req.Index)
		if s == nil {
			return resp, nil
		}
		dc, err := ecat.UnmarshalDcConfig(req.Data)
		if err != nil {
			return fail(ecat.StatusInvalid), nil
		}
		s.dc = dc
		return ok(), nil

	case ecat.OpActivate:
		if c.activated {
			return fail(ecat.StatusInvalid), nil
		}
		c.activated = true
		return ok(), nil

	case ecat.OpDeactivate:
		c.activated = false
		return ok(), nil

	case ecat.OpReset:
		c.busState = ecat.AlStateInit
		c.busTarget = ecat.AlStateInit
		for _, s := range c.slaves {
			s.alState = ecat.AlStateInit
		}
		return ok(), nil

	case ecat.OpSend:
		c.sends++
		return ok(), nil

	case ecat.OpReceive:
		c.receives++
		for _, d := range c.domains {
			// Loopback device : inputs mirror the queued outputs
			d.input = append(d.input[:0], d.output...)
			d.state = c.exchangeState()
		}
		return ok(), nil

	case ecat.OpDomainQueue:
		if int(req.Index) >= len(c.domains) {
			return fail(ecat.StatusNotFound), nil
		}
		d := c.domains[req.Index]
		d.output = append(d.output[:0], req.Data...)
		return ok(), nil

	case ecat.OpDomainProcess:
		if int(req.Index) >= len(c.domains) {
			return fail(ecat.StatusNotFound), nil
		}
		d := c.domains[req.Index]
		return &ecat.Response{
			Status: ecat.StatusOK,
			Value:  ecat.MarshalDomainState(d.state),
			Data:   append([]byte(nil), d.input...),
		}, nil

	case ecat.OpMasterState:
		return c.doMasterState(), nil

	case ecat.OpMasterInfo:
		info := ecat.MasterInfo{
			SlaveCount: uint32(len(c.slaves)),
			LinkUp:     true,
			AppTime:    c.appTime,
		}
		return &ecat.Response{Status: ecat.StatusOK, Data: ecat.MarshalMasterInfo(info)}, nil

	case ecat.OpSlaveInfo:
		s := c.slaveAt(req.Alias, req.Position)
		if s == nil {
			return fail(ecat.StatusNotFound), nil
		}
		info := ecat.SlaveInfo{
			Name:      s.opts.Name,
			RingPos:   s.opts.Position,
			Alias:     s.opts.Alias,
			Id:        s.opts.Id,
			AlState:   s.alState,
			ErrorFlag: s.errorFlag,
			ErrorCode: s.errorCode,
		}
		return &ecat.Response{Status: ecat.StatusOK, Data: ecat.MarshalSlaveInfo(info)}, nil

	case ecat.OpConfigState:
		s, resp := c.configSlave(req.Index)
		if s == nil {
			return resp, nil
		}
		var v uint64
		if !s.opts.Unresponsive {
			v |= 1
		}
		if s.alState == ecat.AlStateOp {
			v |= 2
		}
		v |= uint64(s.alState) << 8
		return &ecat.Response{Status: ecat.StatusOK, Value: v}, nil

	case ecat.OpRequestAlState:
		target := ecat.AlState(req.Value)
		if !target.Valid() {
			return fail(ecat.StatusInvalid), nil
		}
		c.busTarget = target
		return ok(), nil

	case ecat.OpSdoDownload:
		return c.doSdoDownload(req), nil

	case ecat.OpSdoUpload:
		return c.doSdoUpload(req), nil

	case ecat.OpFoeWrite:
		return c.doFoeWrite(req), nil

	case ecat.OpFoeRead:
		return c.doFoeRead(req), nil

	case ecat.OpSyncRefClock:
		c.appTime = req.Value
		c.refSyncs++
		return ok(), nil

	case ecat.OpSyncSlaveClocks:
		c.slaveSyncs++
		for _, s := range c.slaves {
			s.dcTime = c.appTime
		}
		return ok(), nil

	default:
		return fail(ecat.StatusInvalid), nil
	}
}

func (c *Channel) configSlave(configIndex uint16) (*slave, *ecat.Response) {
	if int(configIndex) >= len(c.configs) {
		return nil, fail(ecat.StatusNotFound)
	}
	cfg := c.configs[configIndex]
	s := c.slaveAt(cfg.alias, cfg.position)
	if s == nil {
		return nil, fail(ecat.StatusNotFound)
	}
	return s, nil
}

func (c *Channel) doConfigSync(req *ecat.Request) *ecat.Response {
	s, resp := c.configSlave(req.Index)
	if s == nil {
		return resp
	}
	sync, err := ecat.UnmarshalSyncCfg(req.Data)
	if err != nil {
		return fail(ecat.StatusInvalid)
	}
	if sync.Index >= s.opts.SyncManagers {
		log.Warnf("[SIM] slave %v rejects sync manager %v (supports %v)", s.opts.Name, sync.Index, s.opts.SyncManagers)
		return fail(ecat.StatusInvalid)
	}
	if sync.Direction != ecat.DirectionInput && sync.Direction != ecat.DirectionOutput {
		return fail(ecat.StatusInvalid)
	}
	s.syncs = append(s.syncs, sync)
	return ok()
}

// doMasterState reports the aggregated state and advances the simulated
// bus exactly one forward step per poll, modelling hardware bring-up
// latency. Transitions to a lower state are taken immediately.
func (c *Channel) doMasterState() *ecat.Response {
	state := ecat.MasterState{
		SlavesResponding: c.responding(),
		AlStates:         c.busState,
		LinkUp:           true,
	}
	var errFlag bool
	var errCode uint16
	for _, s := range c.slaves {
		if s.errorFlag {
			errFlag = true
			errCode = s.errorCode
		}
	}
	if c.busState != c.busTarget && !errFlag {
		next := c.busState.Next(c.busTarget)
		log.Debugf("[SIM] bus AL state %v -> %v (target %v)", c.busState, next, c.busTarget)
		c.busState = next
		for _, s := range c.slaves {
			s.alState = s.alState.Next(c.busTarget)
		}
	}
	return &ecat.Response{
		Status: ecat.StatusOK,
		Value:  ecat.MarshalMasterState(state, errFlag, errCode),
	}
}

func (c *Channel) exchangeState() ecat.DomainState {
	responding := c.responding()
	state := ecat.DomainState{WorkingCounter: responding}
	switch {
	case responding == 0:
		state.WcState = ecat.WcStateZero
	case responding < uint32(len(c.slaves)):
		state.WcState = ecat.WcStateIncomplete
	default:
		state.WcState = ecat.WcStateComplete
	}
	return state
}
