package master

import (
	ecat "github.com/fieldworks/goecat"
	"github.com/fieldworks/goecat/internal/bits"
	log "github.com/sirupsen/logrus"
)

// A Domain is a contiguous process image aggregating PDO entries from one
// or more slave configurations. Entries are laid out at activation in
// registration order, bit packed, and keep their offsets until the master
// is deactivated. A domain never retries a failed exchange, it reports a
// degraded working counter state and leaves retry policy to the caller.
type Domain struct {
	master  *Master
	index   uint32
	entries []*Entry
	data    []byte
	queued  bool
	state   ecat.DomainState
}

// An Entry is one PDO entry mapped into a domain. Its offset is assigned
// at activation, the typed accessors are valid from then on and can be
// reused every cycle without recomputation.
type Entry struct {
	domain    *Domain
	slave     *SlaveConfig
	info      ecat.PdoEntryInfo
	direction ecat.SyncDirection
	offset    ecat.Offset
}

// Register maps the given object dictionary entry of a slave into the
// domain. The entry must appear in the slave's declared PDO mapping.
// Only valid before activation.
func (d *Domain) Register(sc *SlaveConfig, index uint16, subindex uint8) (*Entry, error) {
	d.master.mu.Lock()
	defer d.master.mu.Unlock()
	if d.master.activated {
		return nil, ecat.ErrAlreadyActivated
	}
	info, direction, ok := sc.findEntry(index, subindex)
	if !ok {
		log.Errorf("[DOMAIN] entry x%04x:%02x is not mapped on slave at %v", index, subindex, sc.addr)
		return nil, ecat.ErrNotFound
	}
	entry := &Entry{domain: d, slave: sc, info: info, direction: direction}
	d.entries = append(d.entries, entry)
	return entry, nil
}

// computeLayout assigns offsets in registration order and sizes the
// buffer. No reordering for packing density, stable offsets across
// restarts matter more.
func (d *Domain) computeLayout() {
	bitPos := 0
	for _, entry := range d.entries {
		entry.offset = ecat.Offset{Byte: bitPos / 8, Bit: uint8(bitPos % 8)}
		bitPos += int(entry.info.BitLength)
	}
	size := (bitPos + 7) / 8
	d.data = make([]byte, size)
	log.Debugf("[DOMAIN] domain %v layout : %v entries, %v bits, %v bytes", d.index, len(d.entries), bitPos, size)
}

// Size returns the byte size of the process image, valid after activation
func (d *Domain) Size() int {
	return len(d.data)
}

// Data exposes the raw process image. The buffer must not be mutated
// between Queue and the completion of the following Receive.
func (d *Domain) Data() []byte {
	return d.data
}

// Queue marks the domain for exchange on the next master Send
func (d *Domain) Queue() error {
	d.master.mu.Lock()
	defer d.master.mu.Unlock()
	if !d.master.activated {
		return ecat.ErrNotActivated
	}
	d.queued = true
	return nil
}

// Process pulls the input data of the last exchange into the process image
// and updates the working counter statistics. Called after master Receive.
func (d *Domain) Process() error {
	d.master.mu.Lock()
	defer d.master.mu.Unlock()
	if !d.master.activated {
		return ecat.ErrNotActivated
	}
	resp, err := d.master.channel.Do(&ecat.Request{
		Op:    ecat.OpDomainProcess,
		Index: uint16(d.index),
	})
	if err != nil {
		return ecat.ErrIO
	}
	if resp.Status != ecat.StatusOK {
		return resp.Status.Err()
	}
	copy(d.data, resp.Data)
	d.state = ecat.UnmarshalDomainState(resp.Value)
	if d.state.WcState != ecat.WcStateComplete {
		log.Warnf("[DOMAIN] domain %v degraded exchange : wc %v (%v)", d.index, d.state.WorkingCounter, d.state.WcState)
	}
	return nil
}

// State returns the working counter statistics of the last exchange
func (d *Domain) State() ecat.DomainState {
	return d.state
}

// Offset returns the position of the entry inside the domain buffer.
// Stable from activation until deactivation.
func (e *Entry) Offset() ecat.Offset {
	return e.offset
}

// BitLength returns the mapped width of the entry in bits
func (e *Entry) BitLength() uint16 {
	return e.info.BitLength
}

// Uint reads the entry as an unsigned little endian value of up to 64 bits
func (e *Entry) Uint() uint64 {
	if e.domain.data == nil {
		return 0
	}
	return bits.Read(e.domain.data, e.offset.Byte, e.offset.Bit, e.info.BitLength)
}

// SetUint writes the entry as an unsigned little endian value
func (e *Entry) SetUint(value uint64) {
	if e.domain.data == nil {
		return
	}
	bits.Write(e.domain.data, e.offset.Byte, e.offset.Bit, e.info.BitLength, value)
}

// Bool reads a single bit entry
func (e *Entry) Bool() bool {
	return e.Uint() != 0
}

// SetBool writes a single bit entry
func (e *Entry) SetBool(value bool) {
	if value {
		e.SetUint(1)
	} else {
		e.SetUint(0)
	}
}

// Bytes copies the entry out of the process image, rounded up to whole
// bytes. Intended for entries wider than 64 bits.
func (e *Entry) Bytes() []byte {
	n := (int(e.info.BitLength) + 7) / 8
	out := make([]byte, n)
	if e.domain.data == nil {
		return out
	}
	bits.Copy(out, 0, e.domain.data, e.offset.Byte*8+int(e.offset.Bit), int(e.info.BitLength))
	return out
}

// SetBytes copies data into the entry's position in the process image
func (e *Entry) SetBytes(data []byte) {
	if e.domain.data == nil {
		return
	}
	length := int(e.info.BitLength)
	if len(data)*8 < length {
		length = len(data) * 8
	}
	bits.Copy(e.domain.data, e.offset.Byte*8+int(e.offset.Bit), data, 0, length)
}
