package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPath             = "/pair"
	wsHandshakeTimeout = 30 * time.Second
	wsCloseGrace       = 5 * time.Second
)

func init() {
	Register("ws", newWSDevice)
}

// wsDevice carries pair traffic as binary WebSocket messages, for
// deployments where only HTTP ports are reachable between hosts.
type wsDevice struct {
	host   string
	dialer *websocket.Dialer
}

func newWSDevice(attr Attr) (Device, error) {
	host := attr.BindHost()
	return &wsDevice{
		host: host,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}, nil
}

func (d *wsDevice) Name() string { return "ws" }

func (d *wsDevice) Listen() (Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(d.host, "0"))
	if err != nil {
		return nil, fmt.Errorf("ws listen: %w", err)
	}
	wl := &wsListener{
		ln:    ln,
		pairs: make(chan Pair, 64),
		done:  make(chan struct{}),
	}
	upgrader := websocket.Upgrader{
		HandshakeTimeout: wsHandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		pair := newWSPair(conn)
		select {
		case wl.pairs <- pair:
		case <-wl.done:
			_ = pair.Close()
		}
	})
	wl.srv = &http.Server{Handler: mux, ReadHeaderTimeout: wsHandshakeTimeout}
	go func() {
		_ = wl.srv.Serve(ln)
	}()
	return wl, nil
}

func (d *wsDevice) Dial(ctx context.Context, addr string) (Pair, error) {
	conn, resp, err := d.dialer.DialContext(ctx, "ws://"+addr+wsPath, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s failed with status %d: %w", addr, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws dial %s: %w", addr, err)
	}
	return newWSPair(conn), nil
}

func (d *wsDevice) Close() error { return nil }

type wsListener struct {
	ln        net.Listener
	srv       *http.Server
	pairs     chan Pair
	done      chan struct{}
	closeOnce sync.Once
}

func (l *wsListener) Addr() string { return l.ln.Addr().String() }

func (l *wsListener) Accept() (Pair, error) {
	select {
	case p := <-l.pairs:
		return p, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close stops accepting. Upgraded connections are hijacked from the server
// and stay open.
func (l *wsListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.srv.Close()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	})
	return err
}

type wsPair struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	c    counters
}

func newWSPair(conn *websocket.Conn) *wsPair {
	conn.SetReadLimit(maxFrameSize)
	return &wsPair{conn: conn}
}

func (p *wsPair) Send(msg []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		p.c.failed()
		return fmt.Errorf("write message: %w", err)
	}
	p.c.sent(len(msg))
	return nil
}

func (p *wsPair) Recv() ([]byte, error) {
	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			p.c.failed()
			return nil, fmt.Errorf("read message: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		p.c.received(len(data))
		return data, nil
	}
}

func (p *wsPair) Stats() Stats { return p.c.snapshot() }

func (p *wsPair) Close() error {
	p.wmu.Lock()
	_ = p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseGrace),
	)
	p.wmu.Unlock()
	return p.conn.Close()
}
