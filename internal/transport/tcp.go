package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// maxFrameSize bounds a single message on stream transports (1 GiB).
const maxFrameSize = 1 << 30

func init() {
	Register("tcp", newTCPDevice)
}

type tcpDevice struct {
	host string
}

func newTCPDevice(attr Attr) (Device, error) {
	host := attr.BindHost()
	return &tcpDevice{host: host}, nil
}

func (d *tcpDevice) Name() string { return "tcp" }

func (d *tcpDevice) Listen() (Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(d.host, "0"))
	if err != nil {
		return nil, fmt.Errorf("tcp listen: %w", err)
	}
	return &tcpListener{l: l}, nil
}

func (d *tcpDevice) Dial(ctx context.Context, addr string) (Pair, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", addr, err)
	}
	return newStreamPair(conn), nil
}

func (d *tcpDevice) Close() error { return nil }

type tcpListener struct {
	l net.Listener
}

func (t *tcpListener) Addr() string { return t.l.Addr().String() }

func (t *tcpListener) Accept() (Pair, error) {
	conn, err := t.l.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("tcp accept: %w", err)
	}
	return newStreamPair(conn), nil
}

func (t *tcpListener) Close() error { return t.l.Close() }

// streamPair frames messages over a byte stream with a 4-byte big-endian
// length prefix.
type streamPair struct {
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
	w    *bufio.Writer
	c    counters
}

func newStreamPair(conn net.Conn) *streamPair {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return &streamPair{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (p *streamPair) Send(msg []byte) error {
	if len(msg) > maxFrameSize {
		p.c.failed()
		return fmt.Errorf("message of %d bytes exceeds frame limit", len(msg))
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := p.w.Write(hdr[:]); err != nil {
		p.c.failed()
		return err
	}
	if _, err := p.w.Write(msg); err != nil {
		p.c.failed()
		return err
	}
	if err := p.w.Flush(); err != nil {
		p.c.failed()
		return err
	}
	p.c.sent(len(msg))
	return nil
}

func (p *streamPair) Recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
		p.c.failed()
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		p.c.failed()
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(p.r, msg); err != nil {
		p.c.failed()
		return nil, err
	}
	p.c.received(len(msg))
	return msg, nil
}

func (p *streamPair) Stats() Stats { return p.c.snapshot() }

func (p *streamPair) Close() error { return p.conn.Close() }
