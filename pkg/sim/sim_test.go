package sim

import (
	"testing"

	ecat "github.com/fieldworks/goecat"
	"github.com/stretchr/testify/assert"
)

func createBus() *Channel {
	channel := NewChannel()
	channel.AddSlave(SlaveOptions{
		Name:     "EL1008",
		Position: 0,
		Id:       ecat.SlaveId{VendorId: 0x2, ProductCode: 0x3F03052},
	})
	channel.AddSlave(SlaveOptions{
		Name:     "EL2004",
		Position: 1,
		Id:       ecat.SlaveId{VendorId: 0x2, ProductCode: 0x7D43052},
	})
	return channel
}

func masterState(t *testing.T, channel *Channel) ecat.MasterState {
	resp, err := channel.Do(&ecat.Request{Op: ecat.OpMasterState})
	assert.Nil(t, err)
	assert.Equal(t, ecat.StatusOK, resp.Status)
	state, _, _ := ecat.UnmarshalMasterState(resp.Value)
	return state
}

func TestAlStateAdvancesOneStepPerPoll(t *testing.T) {
	channel := createBus()
	_, err := channel.Do(&ecat.Request{Op: ecat.OpRequestAlState, Value: uint64(ecat.AlStateOp)})
	assert.Nil(t, err)

	assert.Equal(t, ecat.AlStateInit, masterState(t, channel).AlStates)
	assert.Equal(t, ecat.AlStatePreOp, masterState(t, channel).AlStates)
	assert.Equal(t, ecat.AlStateSafeOp, masterState(t, channel).AlStates)
	assert.Equal(t, ecat.AlStateOp, masterState(t, channel).AlStates)
	// Stays there once reached
	assert.Equal(t, ecat.AlStateOp, masterState(t, channel).AlStates)
}

func TestAlStateDropIsImmediate(t *testing.T) {
	channel := createBus()
	channel.Do(&ecat.Request{Op: ecat.OpRequestAlState, Value: uint64(ecat.AlStateOp)})
	for i := 0; i < 4; i++ {
		masterState(t, channel)
	}
	channel.Do(&ecat.Request{Op: ecat.OpRequestAlState, Value: uint64(ecat.AlStateInit)})
	masterState(t, channel) // reports OP, takes the drop
	assert.Equal(t, ecat.AlStateInit, masterState(t, channel).AlStates)
}

func TestInvalidAlStateRequest(t *testing.T) {
	channel := createBus()
	resp, err := channel.Do(&ecat.Request{Op: ecat.OpRequestAlState, Value: 3})
	assert.Nil(t, err)
	assert.Equal(t, ecat.StatusInvalid, resp.Status)
}

func TestWorkingCounterDegradation(t *testing.T) {
	channel := createBus()
	channel.Do(&ecat.Request{Op: ecat.OpCreateDomain})
	channel.Do(&ecat.Request{Op: ecat.OpDomainQueue, Index: 0, Data: []byte{0xAA}})
	channel.Do(&ecat.Request{Op: ecat.OpReceive})
	resp, _ := channel.Do(&ecat.Request{Op: ecat.OpDomainProcess, Index: 0})
	state := ecat.UnmarshalDomainState(resp.Value)
	assert.Equal(t, ecat.WcStateComplete, state.WcState)
	assert.EqualValues(t, 2, state.WorkingCounter)
	assert.Equal(t, []byte{0xAA}, resp.Data)

	channel.SetResponding(1, false)
	channel.Do(&ecat.Request{Op: ecat.OpReceive})
	resp, _ = channel.Do(&ecat.Request{Op: ecat.OpDomainProcess, Index: 0})
	state = ecat.UnmarshalDomainState(resp.Value)
	assert.Equal(t, ecat.WcStateIncomplete, state.WcState)
	assert.EqualValues(t, 1, state.WorkingCounter)
}

func TestSlaveInfoLookup(t *testing.T) {
	channel := createBus()
	resp, _ := channel.Do(&ecat.Request{Op: ecat.OpSlaveInfo, Position: 1})
	assert.Equal(t, ecat.StatusOK, resp.Status)
	info, err := ecat.UnmarshalSlaveInfo(resp.Data)
	assert.Nil(t, err)
	assert.Equal(t, "EL2004", info.Name)

	resp, _ = channel.Do(&ecat.Request{Op: ecat.OpSlaveInfo, Position: 5})
	assert.Equal(t, ecat.StatusNotFound, resp.Status)
}

func TestDoubleActivationRejected(t *testing.T) {
	channel := createBus()
	resp, _ := channel.Do(&ecat.Request{Op: ecat.OpActivate})
	assert.Equal(t, ecat.StatusOK, resp.Status)
	resp, _ = channel.Do(&ecat.Request{Op: ecat.OpActivate})
	assert.Equal(t, ecat.StatusInvalid, resp.Status)
}
