// Package pipe provides the bounded message queues that the bus delivers
// into. Each pipe belongs to one receiving task; any number of publishers
// may send to it.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/transport/v3/packetio"
)

// ID identifies a pipe within a Registry. Valid IDs are 1..MaxPipes.
type ID uint16

// InvalidID means "no pipe".
const InvalidID ID = 0

// IsValid returns true if id is not the invalid sentinel.
func (id ID) IsValid() bool {
	return id != InvalidID
}

// String returns the ID in the "pipe-N" form used in logs.
func (id ID) String() string {
	if !id.IsValid() {
		return "pipe-invalid"
	}
	return fmt.Sprintf("pipe-%d", uint16(id))
}

// Receive timeouts.
const (
	// Poll returns immediately when the pipe is empty.
	Poll time.Duration = 0

	// PendForever blocks until a message arrives or the pipe is deleted.
	PendForever time.Duration = -1
)

// Limits.
const (
	// MaxDepth is the largest number of messages a pipe can hold.
	MaxDepth = 0xFFFF

	// MaxMessageSize is the largest message a pipe can carry.
	MaxMessageSize = 0xFFFF

	// MaxNameLength is the longest pipe name.
	MaxNameLength = 20
)

// Pipe is a bounded FIFO of whole messages.
//
// Send copies the message in; Receive copies it out. Messages are never
// merged or split.
//
// Thread Safety: Send is safe for concurrent use. Receive calls are
// serialized, matching the single owning reader of a pipe.
type Pipe struct {
	id    ID
	name  string
	depth int

	buf    *packetio.Buffer
	readMu sync.Mutex
	closed atomic.Bool
}

func newPipe(id ID, name string, depth int) *Pipe {
	buf := packetio.NewBuffer()
	buf.SetLimitCount(depth)
	return &Pipe{
		id:    id,
		name:  name,
		depth: depth,
		buf:   buf,
	}
}

// ID returns the pipe's ID.
func (p *Pipe) ID() ID {
	return p.id
}

// Name returns the pipe's name.
func (p *Pipe) Name() string {
	return p.name
}

// Depth returns the maximum number of queued messages.
func (p *Pipe) Depth() int {
	return p.depth
}

// Len returns the number of queued messages.
func (p *Pipe) Len() int {
	return p.buf.Count()
}

// Closed returns true once the pipe has been deleted.
func (p *Pipe) Closed() bool {
	return p.closed.Load()
}

// Send queues a copy of data. It never blocks.
func (p *Pipe) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	if p.closed.Load() {
		return ErrPipeClosed
	}

	_, err := p.buf.Write(data)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, packetio.ErrFull):
		return ErrPipeFull
	case errors.Is(err, io.ErrClosedPipe):
		return ErrPipeClosed
	default:
		return fmt.Errorf("pipe: send: %w", err)
	}
}

// Receive copies the oldest queued message into buf and returns its length.
//
// A timeout of Poll returns ErrTimeout at once when the pipe is empty;
// PendForever waits until a message arrives; any positive timeout waits at
// most that long. Messages queued before the pipe was deleted can still be
// received, after which ErrPipeClosed is returned.
func (p *Pipe) Receive(buf []byte, timeout time.Duration) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	switch {
	case timeout == Poll:
		_ = p.buf.SetReadDeadline(time.Time{})
		if p.buf.Count() == 0 {
			if p.closed.Load() {
				return 0, ErrPipeClosed
			}
			return 0, ErrTimeout
		}
	case timeout < 0:
		_ = p.buf.SetReadDeadline(time.Time{})
	default:
		_ = p.buf.SetReadDeadline(time.Now().Add(timeout))
	}

	n, err := p.buf.Read(buf)
	if err == nil {
		return n, nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return 0, ErrPipeClosed
	case errors.Is(err, io.ErrShortBuffer):
		return n, ErrShortBuffer
	case errors.As(err, &netErr) && netErr.Timeout():
		return 0, ErrTimeout
	default:
		return 0, fmt.Errorf("pipe: receive: %w", err)
	}
}

// close rejects further sends and wakes a pending receiver.
func (p *Pipe) close() {
	if p.closed.Swap(true) {
		return
	}
	_ = p.buf.Close()
}
