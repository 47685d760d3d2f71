package sim

import (
	ecat "github.com/fieldworks/goecat"
	log "github.com/sirupsen/logrus"
)

// Mailbox command handling of the simulated channel. SDO transfers operate
// on the per slave object store, FoE transfers on the file store. A slave
// configured with BusyPolls answers that many commands with a busy status
// before accepting, which lets tests exercise mailbox timeouts.

func abort(code uint32) *ecat.Response {
	return &ecat.Response{Status: ecat.StatusAborted, Value: uint64(code)}
}

func (c *Channel) mailboxSlave(position uint16) (*slave, *ecat.Response) {
	s := c.slaveAt(0, position)
	if s == nil {
		return nil, fail(ecat.StatusNotFound)
	}
	if s.busyLeft > 0 {
		s.busyLeft--
		return nil, fail(ecat.StatusBusy)
	}
	return s, nil
}

func (c *Channel) doSdoDownload(req *ecat.Request) *ecat.Response {
	s, resp := c.mailboxSlave(req.Position)
	if s == nil {
		return resp
	}
	key := ObjectKey{Index: req.Index, Subindex: req.Subindex}
	if req.Flags&ecat.FlagCompleteAccess != 0 {
		key.Subindex = 0
	}
	if s.readOnly[key] {
		return abort(ecat.AbortReadOnly)
	}
	s.objects[key] = append([]byte(nil), req.Data...)
	log.Debugf("[SIM] slave %v sdo download x%04x:%02x (%v bytes)", s.opts.Name, key.Index, key.Subindex, len(req.Data))
	return ok()
}

func (c *Channel) doSdoUpload(req *ecat.Request) *ecat.Response {
	s, resp := c.mailboxSlave(req.Position)
	if s == nil {
		return resp
	}
	key := ObjectKey{Index: req.Index, Subindex: req.Subindex}
	if req.Flags&ecat.FlagCompleteAccess != 0 {
		key.Subindex = 0
	}
	data, found := s.objects[key]
	if !found {
		return abort(ecat.AbortObjectMissing)
	}
	return &ecat.Response{Status: ecat.StatusOK, Data: append([]byte(nil), data...)}
}

// FoE payloads carry the file name length prefixed in Data, the chunk
// offset in Value and, for reads, the maximum chunk size in Index.
func splitFoeData(data []byte) (string, []byte, bool) {
	if len(data) < 1 {
		return "", nil, false
	}
	nameLen := int(data[0])
	if len(data) < 1+nameLen {
		return "", nil, false
	}
	return string(data[1 : 1+nameLen]), data[1+nameLen:], true
}

func (c *Channel) doFoeWrite(req *ecat.Request) *ecat.Response {
	s, resp := c.mailboxSlave(req.Position)
	if s == nil {
		return resp
	}
	name, chunk, valid := splitFoeData(req.Data)
	if !valid {
		return fail(ecat.StatusInvalid)
	}
	offset := int(req.Value)
	if offset == 0 {
		s.files[name] = nil
	}
	if offset != len(s.files[name]) {
		// Chunks must arrive in sequence
		return abort(ecat.AbortDataTransfer)
	}
	s.files[name] = append(s.files[name], chunk...)
	if req.Flags&ecat.FlagLastChunk != 0 {
		log.Debugf("[SIM] slave %v stored file %v (%v bytes)", s.opts.Name, name, len(s.files[name]))
	}
	return ok()
}

func (c *Channel) doFoeRead(req *ecat.Request) *ecat.Response {
	s, resp := c.mailboxSlave(req.Position)
	if s == nil {
		return resp
	}
	name, _, valid := splitFoeData(req.Data)
	if !valid {
		return fail(ecat.StatusInvalid)
	}
	data, found := s.files[name]
	if !found {
		return abort(ecat.FoeNotFound)
	}
	offset := int(req.Value)
	if offset >= len(data) {
		return &ecat.Response{Status: ecat.StatusOK}
	}
	max := int(req.Index)
	if max == 0 || offset+max > len(data) {
		max = len(data) - offset
	}
	return &ecat.Response{Status: ecat.StatusOK, Data: append([]byte(nil), data[offset:offset+max]...)}
}
