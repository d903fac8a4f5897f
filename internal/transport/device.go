// Package transport provides the devices participants use to exchange
// messages, and a registry that resolves a device by transport name.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
)

const loopbackHost = "127.0.0.1"

// ErrUnknownTransport is returned when no backend is registered under a name.
var ErrUnknownTransport = errors.New("unknown transport")

// ErrClosed is returned by operations on a closed pair or listener.
var ErrClosed = errors.New("transport closed")

// Pair is a message-oriented, bidirectional connection to one peer.
// Messages are delivered whole and in order.
type Pair interface {
	Send(msg []byte) error
	Recv() ([]byte, error)
	Stats() Stats
	Close() error
}

// Listener accepts pairs dialed by peers.
type Listener interface {
	Addr() string
	Accept() (Pair, error)
	Close() error
}

// Device creates listeners and dials peers. A device is shared read-only by
// every group built on top of it.
type Device interface {
	Name() string
	Listen() (Listener, error)
	Dial(ctx context.Context, addr string) (Pair, error)
	Close() error
}

// Attr carries backend-specific device attributes.
type Attr struct {
	Hostname string // interface or host to bind listeners to; empty uses DefaultHostname
}

// BindHost returns the host listeners bind to and publish.
func (a Attr) BindHost() string {
	if a.Hostname != "" {
		return a.Hostname
	}
	return DefaultHostname()
}

// DefaultHostname returns the machine's hostname when it resolves and
// 127.0.0.1 otherwise.
func DefaultHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return loopbackHost
	}
	if addrs, err := net.LookupHost(name); err != nil || len(addrs) == 0 {
		return loopbackHost
	}
	return name
}

// Factory builds a device from attributes.
type Factory func(attr Attr) (Device, error)

// Registry maps transport names to device factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the device registered under name.
func (r *Registry) New(name string, attr Attr) (Device, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTransport, name, r.Names())
	}
	return f(attr)
}

// Names lists registered transport names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default holds every backend compiled into the binary.
var Default = NewRegistry()

// Register adds a backend to the default registry.
func Register(name string, f Factory) {
	Default.Register(name, f)
}

// New builds a device from the default registry.
func New(name string, attr Attr) (Device, error) {
	return Default.New(name, attr)
}
