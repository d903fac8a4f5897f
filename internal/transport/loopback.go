package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// loopbackQueueDepth is the number of undelivered messages a loopback pair
// buffers per direction before Send blocks.
const loopbackQueueDepth = 256

func init() {
	Register("loopback", newLoopbackDevice)
}

// loopbackHub routes dials to listeners living in the same process.
var loopbackHub = struct {
	mu        sync.Mutex
	listeners map[string]*loopbackListener
	next      atomic.Uint64
}{listeners: make(map[string]*loopbackListener)}

// loopbackDevice connects participants that run as goroutines of one
// process. Addresses are only meaningful inside that process.
type loopbackDevice struct{}

func newLoopbackDevice(Attr) (Device, error) {
	return loopbackDevice{}, nil
}

func (loopbackDevice) Name() string { return "loopback" }

func (loopbackDevice) Listen() (Listener, error) {
	l := &loopbackListener{
		addr:    fmt.Sprintf("loopback-%d", loopbackHub.next.Add(1)),
		pending: make(chan Pair, 64),
		done:    make(chan struct{}),
	}
	loopbackHub.mu.Lock()
	loopbackHub.listeners[l.addr] = l
	loopbackHub.mu.Unlock()
	return l, nil
}

func (loopbackDevice) Dial(ctx context.Context, addr string) (Pair, error) {
	loopbackHub.mu.Lock()
	l, ok := loopbackHub.listeners[addr]
	loopbackHub.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("loopback dial %s: no such listener", addr)
	}

	ab := make(chan []byte, loopbackQueueDepth)
	ba := make(chan []byte, loopbackQueueDepth)
	closed := make(chan struct{})
	var once sync.Once
	local := &loopbackPair{in: ba, out: ab, closed: closed, closeOnce: &once}
	remote := &loopbackPair{in: ab, out: ba, closed: closed, closeOnce: &once}

	select {
	case l.pending <- remote:
		return local, nil
	case <-l.done:
		return nil, fmt.Errorf("loopback dial %s: %w", addr, ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (loopbackDevice) Close() error { return nil }

type loopbackListener struct {
	addr      string
	pending   chan Pair
	done      chan struct{}
	closeOnce sync.Once
}

func (l *loopbackListener) Addr() string { return l.addr }

func (l *loopbackListener) Accept() (Pair, error) {
	select {
	case p := <-l.pending:
		return p, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *loopbackListener) Close() error {
	l.closeOnce.Do(func() {
		loopbackHub.mu.Lock()
		delete(loopbackHub.listeners, l.addr)
		loopbackHub.mu.Unlock()
		close(l.done)
	})
	return nil
}

// loopbackPair is one end of an in-memory connection. Both ends share the
// closed channel, so closing either side closes the connection.
type loopbackPair struct {
	in        <-chan []byte
	out       chan<- []byte
	closed    chan struct{}
	closeOnce *sync.Once
	c         counters
}

func (p *loopbackPair) Send(msg []byte) error {
	buf := make([]byte, len(msg))
	copy(buf, msg)
	select {
	case <-p.closed:
		p.c.failed()
		return ErrClosed
	default:
	}
	select {
	case p.out <- buf:
		p.c.sent(len(buf))
		return nil
	case <-p.closed:
		p.c.failed()
		return ErrClosed
	}
}

func (p *loopbackPair) Recv() ([]byte, error) {
	select {
	case msg := <-p.in:
		p.c.received(len(msg))
		return msg, nil
	case <-p.closed:
		// Drain what the peer sent before closing.
		select {
		case msg := <-p.in:
			p.c.received(len(msg))
			return msg, nil
		default:
		}
		p.c.failed()
		return nil, ErrClosed
	}
}

func (p *loopbackPair) Stats() Stats { return p.c.snapshot() }

func (p *loopbackPair) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
