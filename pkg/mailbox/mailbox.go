// Package mailbox implements non cyclic object dictionary access (CoE SDO)
// and file transfer (FoE) over the transport channel. Transactions may take
// multiple bus cycles, so every operation is asynchronous : submission
// returns a request object immediately and completion is observed by
// polling its status or waiting on it. Submissions to the same slave are
// serialized, one transaction in flight per slave, queued in FIFO order.
package mailbox

import (
	"errors"
	"sync"
	"time"

	ecat "github.com/fieldworks/goecat"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds how long a slave may answer busy before the
	// transaction fails with ErrMailboxTimeout
	DefaultTimeout = 1 * time.Second
	// DefaultRetryInterval is the pause between two busy polls
	DefaultRetryInterval = 10 * time.Millisecond
	// queueSize bounds the number of pending requests per slave
	queueSize = 128
	// foeChunkSize is the payload size of one FoE transfer command
	foeChunkSize = 512
)

var ErrQueueFull = errors.New("mailbox queue for this slave is full")

// Status of a mailbox request
type Status uint8

const (
	StatusBusy    Status = iota // queued or in flight
	StatusSuccess               // transfer completed
	StatusError                 // transfer failed, see Err
)

type kind uint8

const (
	kindSdoDownload kind = iota
	kindSdoUpload
	kindFoeWrite
	kindFoeRead
)

// A Request is one mailbox transaction. It is created by a Client
// submission, polled until it leaves StatusBusy and then consumed :
// a completed request is never resubmitted.
type Request struct {
	id             uuid.UUID
	kind           kind
	slave          uint16
	index          uint16
	subindex       uint8
	completeAccess bool
	file           string
	payload        []byte

	mu     sync.Mutex
	status Status
	result []byte
	err    error
	done   chan struct{}
}

// ID returns the tracing identifier of the request
func (r *Request) ID() uuid.UUID {
	return r.id
}

// Status returns Busy until the transaction completed or failed
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the failure of a completed request, nil on success or while
// still busy
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Result returns the uploaded payload of a successful request
func (r *Request) Result() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusBusy:
		return nil, ecat.ErrMailboxTimeout
	case StatusError:
		return nil, r.err
	default:
		return r.result, nil
	}
}

// Done is closed once the request left the busy state
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until completion or the given bound
func (r *Request) Wait(timeout time.Duration) error {
	select {
	case <-r.done:
		return r.Err()
	case <-time.After(timeout):
		return ecat.ErrTimeout
	}
}

func (r *Request) complete(result []byte, err error) {
	r.mu.Lock()
	if err != nil {
		r.status = StatusError
		r.err = err
	} else {
		r.status = StatusSuccess
		r.result = result
	}
	r.mu.Unlock()
	close(r.done)
	if err != nil {
		log.Warnf("[MAILBOX] request %v on slave %v failed : %v", r.id, r.slave, err)
	} else {
		log.Debugf("[MAILBOX] request %v on slave %v complete", r.id, r.slave)
	}
}

// A Client multiplexes mailbox transactions over a transport channel
// shared with the cyclic path. Each slave gets its own FIFO worker.
type Client struct {
	channel       ecat.Channel
	mu            sync.Mutex
	queues        map[uint16]chan *Request
	wg            sync.WaitGroup
	closed        bool
	timeout       time.Duration
	retryInterval time.Duration
}

// NewClient creates a mailbox client on the given channel
func NewClient(channel ecat.Channel) *Client {
	return &Client{
		channel:       channel,
		queues:        map[uint16]chan *Request{},
		timeout:       DefaultTimeout,
		retryInterval: DefaultRetryInterval,
	}
}

// SetTimeout changes the per transaction mailbox timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetRetryInterval changes the pause between two busy polls
func (c *Client) SetRetryInterval(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryInterval = interval
}

// Close stops all slave workers after draining their queues
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, q := range c.queues {
		close(q)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// SdoDownload writes data to the object dictionary entry of a slave.
// With completeAccess the whole multi subindex object is transferred
// atomically as one block.
func (c *Client) SdoDownload(slave uint16, index uint16, subindex uint8, data []byte, completeAccess bool) (*Request, error) {
	return c.submit(&Request{
		kind:           kindSdoDownload,
		slave:          slave,
		index:          index,
		subindex:       subindex,
		completeAccess: completeAccess,
		payload:        append([]byte(nil), data...),
	})
}

// SdoUpload reads the object dictionary entry of a slave
func (c *Client) SdoUpload(slave uint16, index uint16, subindex uint8, completeAccess bool) (*Request, error) {
	return c.submit(&Request{
		kind:           kindSdoUpload,
		slave:          slave,
		index:          index,
		subindex:       subindex,
		completeAccess: completeAccess,
	})
}

// FoeWrite stores a file on a slave, chunked internally
func (c *Client) FoeWrite(slave uint16, name string, data []byte) (*Request, error) {
	return c.submit(&Request{
		kind:    kindFoeWrite,
		slave:   slave,
		file:    name,
		payload: append([]byte(nil), data...),
	})
}

// FoeRead retrieves a file from a slave, chunked internally.
// A read/write pair is not one transaction, each call is independent.
func (c *Client) FoeRead(slave uint16, name string) (*Request, error) {
	return c.submit(&Request{
		kind:  kindFoeRead,
		slave: slave,
		file:  name,
	})
}

func (c *Client) submit(req *Request) (*Request, error) {
	req.id = uuid.New()
	req.done = make(chan struct{})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ecat.ErrIO
	}
	q, ok := c.queues[req.slave]
	if !ok {
		q = make(chan *Request, queueSize)
		c.queues[req.slave] = q
		c.wg.Add(1)
		go c.worker(q)
	}
	select {
	case q <- req:
	default:
		return nil, ErrQueueFull
	}
	log.Debugf("[MAILBOX] queued request %v on slave %v", req.id, req.slave)
	return req, nil
}

func (c *Client) worker(q chan *Request) {
	defer c.wg.Done()
	for req := range q {
		c.execute(req)
	}
}

func (c *Client) execute(req *Request) {
	switch req.kind {
	case kindSdoDownload:
		flags := uint8(0)
		if req.completeAccess {
			flags = ecat.FlagCompleteAccess
		}
		_, err := c.transfer(&ecat.Request{
			Op:       ecat.OpSdoDownload,
			Position: req.slave,
			Index:    req.index,
			Subindex: req.subindex,
			Flags:    flags,
			Data:     req.payload,
		})
		req.complete(nil, err)

	case kindSdoUpload:
		flags := uint8(0)
		if req.completeAccess {
			flags = ecat.FlagCompleteAccess
		}
		resp, err := c.transfer(&ecat.Request{
			Op:       ecat.OpSdoUpload,
			Position: req.slave,
			Index:    req.index,
			Subindex: req.subindex,
			Flags:    flags,
		})
		if err != nil {
			req.complete(nil, err)
			return
		}
		req.complete(resp.Data, nil)

	case kindFoeWrite:
		req.complete(nil, c.foeWrite(req))

	case kindFoeRead:
		data, err := c.foeRead(req)
		req.complete(data, err)
	}
}

// transfer issues one mailbox command, polling through busy answers until
// the configured timeout
func (c *Client) transfer(cmd *ecat.Request) (*ecat.Response, error) {
	c.mu.Lock()
	timeout := c.timeout
	retry := c.retryInterval
	c.mu.Unlock()
	deadline := time.Now().Add(timeout)
	for {
		resp, err := c.channel.Do(cmd)
		if err != nil {
			return nil, ecat.ErrIO
		}
		switch resp.Status {
		case ecat.StatusOK:
			return resp, nil
		case ecat.StatusBusy:
			if time.Now().After(deadline) {
				return nil, ecat.ErrMailboxTimeout
			}
			time.Sleep(retry)
		case ecat.StatusAborted:
			return nil, &ecat.AbortError{Code: uint32(resp.Value)}
		default:
			return nil, resp.Status.Err()
		}
	}
}

func foeData(name string, chunk []byte) []byte {
	data := make([]byte, 0, 1+len(name)+len(chunk))
	data = append(data, uint8(len(name)))
	data = append(data, name...)
	return append(data, chunk...)
}

func (c *Client) foeWrite(req *Request) error {
	total := len(req.payload)
	for offset := 0; ; {
		end := offset + foeChunkSize
		if end > total {
			end = total
		}
		flags := uint8(0)
		if end == total {
			flags = ecat.FlagLastChunk
		}
		_, err := c.transfer(&ecat.Request{
			Op:       ecat.OpFoeWrite,
			Position: req.slave,
			Flags:    flags,
			Value:    uint64(offset),
			Data:     foeData(req.file, req.payload[offset:end]),
		})
		if err != nil {
			return err
		}
		if end == total {
			return nil
		}
		offset = end
	}
}

func (c *Client) foeRead(req *Request) ([]byte, error) {
	var data []byte
	for {
		resp, err := c.transfer(&ecat.Request{
			Op:       ecat.OpFoeRead,
			Position: req.slave,
			Index:    foeChunkSize,
			Value:    uint64(len(data)),
			Data:     foeData(req.file, nil),
		})
		if err != nil {
			return nil, err
		}
		data = append(data, resp.Data...)
		if len(resp.Data) < foeChunkSize {
			return data, nil
		}
	}
}
