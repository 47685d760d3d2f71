package master

import (
	"testing"
	"time"

	ecat "github.com/fieldworks/goecat"
	"github.com/fieldworks/goecat/pkg/sim"
	"github.com/stretchr/testify/assert"
)

var testId = ecat.SlaveId{VendorId: 0x2, ProductCode: 0x1234}

var testSyncs = []ecat.SyncCfg{
	{
		Index:     0,
		Direction: ecat.DirectionOutput,
		Pdos: []ecat.PdoCfg{
			{
				Index: 0x1600,
				Entries: []ecat.PdoEntryInfo{
					{Index: 0x7000, Subindex: 0x01, BitLength: 3},
					{Index: 0x7000, Subindex: 0x02, BitLength: 13},
					{Index: 0x7000, Subindex: 0x03, BitLength: 1},
				},
			},
		},
	},
}

func createChannel() *sim.Channel {
	channel := sim.NewChannel()
	channel.AddSlave(sim.SlaveOptions{
		Name:     "EL2004",
		Position: 0,
		Id:       testId,
	})
	return channel
}

func createMaster(t *testing.T, channel *sim.Channel) *Master {
	m, err := Open(channel, 0)
	if err != nil {
		t.Fatal(err)
	}
	m.SetPollInterval(time.Millisecond)
	return m
}

func TestOpenNotFound(t *testing.T) {
	channel := createChannel()
	_, err := Open(channel, 1)
	assert.Equal(t, ecat.ErrNotFound, err)
}

func TestDomainLayout(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, err := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, err)
	assert.Nil(t, sc.ConfigPdos(testSyncs))
	domain, err := m.CreateDomain()
	assert.Nil(t, err)

	e1, err := domain.Register(sc, 0x7000, 0x01)
	assert.Nil(t, err)
	e2, err := domain.Register(sc, 0x7000, 0x02)
	assert.Nil(t, err)

	t.Run("3 and 13 bits occupy 2 bytes", func(t *testing.T) {
		assert.Nil(t, m.Activate())
		assert.Equal(t, 2, domain.Size())
		assert.Equal(t, ecat.Offset{Byte: 0, Bit: 0}, e1.Offset())
		assert.Equal(t, ecat.Offset{Byte: 0, Bit: 3}, e2.Offset())
	})

	t.Run("offsets are stable across reactivation", func(t *testing.T) {
		assert.Nil(t, m.Deactivate())
		assert.Nil(t, m.Activate())
		assert.Equal(t, 2, domain.Size())
		assert.Equal(t, ecat.Offset{Byte: 0, Bit: 0}, e1.Offset())
		assert.Equal(t, ecat.Offset{Byte: 0, Bit: 3}, e2.Offset())
	})

	t.Run("one more bit pushes buffer to 3 bytes", func(t *testing.T) {
		assert.Nil(t, m.Deactivate())
		e3, err := domain.Register(sc, 0x7000, 0x03)
		assert.Nil(t, err)
		assert.Nil(t, m.Activate())
		assert.Equal(t, 3, domain.Size())
		assert.Equal(t, ecat.Offset{Byte: 2, Bit: 0}, e3.Offset())
	})
}

func TestRegisterUnmappedEntry(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, sc.ConfigPdos(testSyncs))
	domain, _ := m.CreateDomain()
	_, err := domain.Register(sc, 0x6000, 0x01)
	assert.Equal(t, ecat.ErrNotFound, err)
}

func TestActivateIdentityMismatch(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	_, err := m.ConfigureSlave(ecat.ByPosition(0), ecat.SlaveId{VendorId: 0x2, ProductCode: 0x9999})
	assert.Nil(t, err)
	assert.Equal(t, ecat.ErrInvalidConfig, m.Activate())
	// Master must remain in its pre-activation state
	assert.Equal(t, ecat.ErrNotActivated, m.Send())
	_, err = m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, err)
}

func TestActivateMissingSlave(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	_, err := m.ConfigureSlave(ecat.ByPosition(7), testId)
	assert.Nil(t, err)
	assert.Equal(t, ecat.ErrNotFound, m.Activate())
}

func TestActivateTwice(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	assert.Nil(t, m.Activate())
	assert.Equal(t, ecat.ErrAlreadyActivated, m.Activate())
}

func TestLifecycleMisuse(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	assert.Equal(t, ecat.ErrNotActivated, m.Send())
	assert.Equal(t, ecat.ErrNotActivated, m.Receive())
	assert.Equal(t, ecat.ErrNotActivated, m.Deactivate())
	assert.Nil(t, m.Activate())
	_, err := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Equal(t, ecat.ErrAlreadyActivated, err)
	_, err = m.CreateDomain()
	assert.Equal(t, ecat.ErrAlreadyActivated, err)
}

func TestConfigPdosInvalidSyncManager(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	err := sc.ConfigPdos([]ecat.SyncCfg{{Index: 16, Direction: ecat.DirectionOutput}})
	assert.Equal(t, ecat.ErrInvalidConfig, err)
}

func TestActivateUnsupportedSyncManager(t *testing.T) {
	channel := sim.NewChannel()
	channel.AddSlave(sim.SlaveOptions{
		Name:         "EL1008",
		Position:     0,
		Id:           testId,
		SyncManagers: 2,
	})
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	syncs := []ecat.SyncCfg{{Index: 3, Direction: ecat.DirectionInput, Pdos: testSyncs[0].Pdos}}
	assert.Nil(t, sc.ConfigPdos(syncs))
	assert.Equal(t, ecat.ErrInvalidConfig, m.Activate())
	assert.Equal(t, ecat.ErrNotActivated, m.Send())
}

func TestStateAdvancesOneStepPerPoll(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	assert.Nil(t, m.RequestState(ecat.AlStateOp))

	var observed []ecat.AlState
	for i := 0; i < 6; i++ {
		state, err := m.State()
		assert.Nil(t, err)
		observed = append(observed, state.AlStates)
		if state.AlStates == ecat.AlStateOp {
			break
		}
	}
	assert.Equal(t, []ecat.AlState{
		ecat.AlStateInit, ecat.AlStatePreOp, ecat.AlStateSafeOp, ecat.AlStateOp,
	}, observed)
}

func TestWaitForState(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	assert.Nil(t, m.RequestState(ecat.AlStateOp))
	assert.Nil(t, m.WaitForState(ecat.AlStateOp))

	state, err := m.State()
	assert.Nil(t, err)
	assert.Equal(t, ecat.AlStateOp, state.AlStates)
}

func TestWaitForStateTimeout(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	m.SetStateTimeout(20 * time.Millisecond)
	// No transition was requested, the bus stays in INIT
	assert.Equal(t, ecat.ErrTimeout, m.WaitForState(ecat.AlStateOp))
}

func TestWaitForStateError(t *testing.T) {
	channel := createChannel()
	channel.SetSlaveError(0, 0x001E)
	m := createMaster(t, channel)
	assert.Nil(t, m.RequestState(ecat.AlStateOp))
	err := m.WaitForState(ecat.AlStateOp)
	alErr, ok := err.(*ecat.AlStateError)
	if assert.True(t, ok) {
		assert.EqualValues(t, 0x001E, alErr.Code)
	}
}

func TestCyclicExchange(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, sc.ConfigPdos(testSyncs))
	domain, _ := m.CreateDomain()
	small, _ := domain.Register(sc, 0x7000, 0x01)
	wide, _ := domain.Register(sc, 0x7000, 0x02)
	assert.Nil(t, m.Activate())

	small.SetUint(0b101)
	wide.SetUint(0x14AF)
	assert.Nil(t, domain.Queue())
	assert.Nil(t, m.Send())
	assert.Nil(t, m.Receive())
	assert.Nil(t, domain.Process())

	// Simulated bus is a loopback : inputs mirror the queued outputs
	assert.EqualValues(t, 0b101, small.Uint())
	assert.EqualValues(t, 0x14AF&0x1FFF, wide.Uint())
	assert.Equal(t, ecat.WcStateComplete, domain.State().WcState)
	assert.EqualValues(t, 1, domain.State().WorkingCounter)
}

func TestCyclicDegradedExchange(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, sc.ConfigPdos(testSyncs))
	domain, _ := m.CreateDomain()
	_, err := domain.Register(sc, 0x7000, 0x01)
	assert.Nil(t, err)
	assert.Nil(t, m.Activate())

	channel.SetResponding(0, false)
	assert.Nil(t, domain.Queue())
	assert.Nil(t, m.Send())
	assert.Nil(t, m.Receive())
	assert.Nil(t, domain.Process())
	assert.Equal(t, ecat.WcStateZero, domain.State().WcState)
	assert.EqualValues(t, 0, domain.State().WorkingCounter)
}

func TestDcSync(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, sc.ConfigDc(ecat.DcConfig{AssignActivate: 0x0300, Sync0CycleTime: 1000000}))
	assert.Nil(t, m.Activate())

	now := time.Now()
	assert.Nil(t, m.SyncReferenceClockTo(now))
	assert.Nil(t, m.SyncSlaveClocks())
	appTime, refSyncs, slaveSyncs := channel.ReferenceTime()
	assert.EqualValues(t, now.UnixNano(), appTime)
	assert.Equal(t, 1, refSyncs)
	assert.Equal(t, 1, slaveSyncs)
}

func TestSlaveInfo(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	info, err := m.SlaveInfo(0)
	assert.Nil(t, err)
	assert.Equal(t, "EL2004", info.Name)
	assert.Equal(t, testId, info.Id)

	_, err = m.SlaveInfo(9)
	assert.Equal(t, ecat.ErrNotFound, err)
}

func TestMasterInfo(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	assert.Nil(t, m.Reserve())
	info, err := m.Info()
	assert.Nil(t, err)
	assert.EqualValues(t, 1, info.SlaveCount)
	assert.True(t, info.LinkUp)
}

func TestSlaveConfigState(t *testing.T) {
	channel := createChannel()
	m := createMaster(t, channel)
	sc, _ := m.ConfigureSlave(ecat.ByPosition(0), testId)
	assert.Nil(t, m.Activate())
	assert.Nil(t, m.RequestState(ecat.AlStateOp))
	assert.Nil(t, m.WaitForState(ecat.AlStateOp))

	state, err := sc.State()
	assert.Nil(t, err)
	assert.True(t, state.Online)
	assert.True(t, state.Operational)
	assert.Equal(t, ecat.AlStateOp, state.AlState)
}
