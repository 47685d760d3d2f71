package master

import (
	"time"

	ecat "github.com/fieldworks/goecat"
)

// Distributed clock synchronization. Both operations are best effort and
// report only transport level failure : clock convergence is a property of
// the physical bus and cannot be verified synchronously at this layer.

// SyncReferenceClockTo writes the master's notion of wall time into the
// reference clock register. Typically called once per designated interval,
// not every cycle, to bound bus overhead.
func (m *Master) SyncReferenceClockTo(t time.Time) error {
	resp, err := m.channel.Do(&ecat.Request{
		Op:    ecat.OpSyncRefClock,
		Value: uint64(t.UnixNano()),
	})
	if err != nil {
		return ecat.ErrIO
	}
	return resp.Status.Err()
}

// SyncSlaveClocks triggers propagation of the reference clock time to the
// DC registers of all configured slaves
func (m *Master) SyncSlaveClocks() error {
	resp, err := m.channel.Do(&ecat.Request{Op: ecat.OpSyncSlaveClocks})
	if err != nil {
		return ecat.ErrIO
	}
	return resp.Status.Err()
}
