package mailbox

import (
	"bytes"
	"testing"
	"time"

	ecat "github.com/fieldworks/goecat"
	"github.com/fieldworks/goecat/pkg/sim"
	"github.com/stretchr/testify/assert"
)

func createChannel() *sim.Channel {
	channel := sim.NewChannel()
	channel.AddSlave(sim.SlaveOptions{
		Name:     "EK1100",
		Position: 0,
		Id:       ecat.SlaveId{VendorId: 0x2, ProductCode: 0x44C2C52},
		Objects: map[sim.ObjectKey][]byte{
			{Index: 0x1018, Subindex: 0x01}: {0x02, 0x00, 0x00, 0x00},
		},
	})
	return channel
}

func createClient(channel *sim.Channel) *Client {
	client := NewClient(channel)
	client.SetRetryInterval(time.Millisecond)
	return client
}

func TestSdoRoundTrip(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	down, err := client.SdoDownload(0, 0x8000, 0x01, payload, false)
	assert.Nil(t, err)
	assert.Nil(t, down.Wait(time.Second))
	assert.Equal(t, StatusSuccess, down.Status())

	up, err := client.SdoUpload(0, 0x8000, 0x01, false)
	assert.Nil(t, err)
	assert.Nil(t, up.Wait(time.Second))
	data, err := up.Result()
	assert.Nil(t, err)
	assert.True(t, bytes.Equal(payload, data))
}

func TestCompleteAccessRoundTrip(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	payload := []byte{0x03, 0x11, 0x22, 0x33}
	down, _ := client.SdoDownload(0, 0x8010, 0x00, payload, true)
	assert.Nil(t, down.Wait(time.Second))

	up, _ := client.SdoUpload(0, 0x8010, 0x00, true)
	assert.Nil(t, up.Wait(time.Second))
	data, err := up.Result()
	assert.Nil(t, err)
	assert.Equal(t, payload, data)
}

func TestQueuedRequestsCompleteInOrder(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	// Submit both without waiting : the second must observe the first
	payload := []byte{0x42}
	down, err := client.SdoDownload(0, 0x9000, 0x01, payload, false)
	assert.Nil(t, err)
	up, err := client.SdoUpload(0, 0x9000, 0x01, false)
	assert.Nil(t, err)

	assert.Nil(t, down.Wait(time.Second))
	assert.Nil(t, up.Wait(time.Second))
	data, err := up.Result()
	assert.Nil(t, err)
	assert.Equal(t, payload, data)
}

func TestAbortCodePassthrough(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	t.Run("missing object", func(t *testing.T) {
		up, _ := client.SdoUpload(0, 0x5555, 0x01, false)
		err := up.Wait(time.Second)
		abortErr, ok := err.(*ecat.AbortError)
		if assert.True(t, ok) {
			assert.Equal(t, ecat.AbortObjectMissing, abortErr.Code)
		}
		assert.Equal(t, StatusError, up.Status())
	})

	t.Run("read only object", func(t *testing.T) {
		channel.MarkReadOnly(0, 0x1018, 0x01)
		down, _ := client.SdoDownload(0, 0x1018, 0x01, []byte{0x00}, false)
		err := down.Wait(time.Second)
		abortErr, ok := err.(*ecat.AbortError)
		if assert.True(t, ok) {
			assert.Equal(t, ecat.AbortReadOnly, abortErr.Code)
		}
	})
}

func TestMailboxTimeout(t *testing.T) {
	channel := sim.NewChannel()
	channel.AddSlave(sim.SlaveOptions{
		Name:      "slow",
		Position:  0,
		BusyPolls: 100000,
	})
	client := createClient(channel)
	defer client.Close()
	client.SetTimeout(20 * time.Millisecond)

	up, _ := client.SdoUpload(0, 0x1018, 0x01, false)
	assert.Equal(t, ecat.ErrMailboxTimeout, up.Wait(time.Second))
}

func TestMailboxBusyThenSuccess(t *testing.T) {
	channel := sim.NewChannel()
	channel.AddSlave(sim.SlaveOptions{
		Name:      "wakesUp",
		Position:  0,
		BusyPolls: 3,
		Objects: map[sim.ObjectKey][]byte{
			{Index: 0x1000, Subindex: 0x00}: {0x92, 0x01, 0x02, 0x00},
		},
	})
	client := createClient(channel)
	defer client.Close()

	up, _ := client.SdoUpload(0, 0x1000, 0x00, false)
	assert.Nil(t, up.Wait(time.Second))
	data, err := up.Result()
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x92, 0x01, 0x02, 0x00}, data)
}

func TestFoeRoundTrip(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	// Three chunks : 512 + 512 + 276
	firmware := make([]byte, 1300)
	for i := range firmware {
		firmware[i] = byte(i)
	}
	write, err := client.FoeWrite(0, "firmware.bin", firmware)
	assert.Nil(t, err)
	assert.Nil(t, write.Wait(time.Second))

	stored, found := channel.File(0, "firmware.bin")
	assert.True(t, found)
	assert.True(t, bytes.Equal(firmware, stored))

	read, err := client.FoeRead(0, "firmware.bin")
	assert.Nil(t, err)
	assert.Nil(t, read.Wait(time.Second))
	data, err := read.Result()
	assert.Nil(t, err)
	assert.True(t, bytes.Equal(firmware, data))
}

func TestFoeReadMissingFile(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	read, _ := client.FoeRead(0, "nope.bin")
	err := read.Wait(time.Second)
	abortErr, ok := err.(*ecat.AbortError)
	if assert.True(t, ok) {
		assert.Equal(t, ecat.FoeNotFound, abortErr.Code)
	}
}

func TestUnknownSlave(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	up, _ := client.SdoUpload(9, 0x1018, 0x01, false)
	assert.Equal(t, ecat.ErrNotFound, up.Wait(time.Second))
}

func TestRequestIds(t *testing.T) {
	channel := createChannel()
	client := createClient(channel)
	defer client.Close()

	a, _ := client.SdoUpload(0, 0x1018, 0x01, false)
	b, _ := client.SdoUpload(0, 0x1018, 0x01, false)
	assert.NotEqual(t, a.ID(), b.ID())
}
