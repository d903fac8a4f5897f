// Package mesh builds fully connected groups of participants.
package mesh

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/transport"
)

// Context is a fully connected group of Size participants. It owns one
// pair per peer and must be closed by the scope that created it.
type Context struct {
	rank   int
	size   int
	prefix string
	pairs  []transport.Pair
}

// Connect joins the group identified by store. Every participant publishes
// its listen address under its rank, dials all lower ranks and accepts one
// connection from each higher rank. It blocks until the mesh is complete.
func Connect(ctx context.Context, rank, size int, prefix string, store rendezvous.Store, dev transport.Device) (*Context, error) {
	if size < 1 {
		return nil, fmt.Errorf("mesh: size must be >= 1, got %d", size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("mesh: rank %d out of range [0, %d)", rank, size)
	}

	c := &Context{
		rank:   rank,
		size:   size,
		prefix: prefix,
		pairs:  make([]transport.Pair, size),
	}
	if size == 1 {
		return c, nil
	}

	l, err := dev.Listen()
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	defer l.Close()

	if err := store.Set(ctx, strconv.Itoa(rank), []byte(l.Addr())); err != nil {
		return nil, fmt.Errorf("mesh: publish address: %w", err)
	}

	for peer := 0; peer < rank; peer++ {
		addr, err := store.Get(ctx, strconv.Itoa(peer))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("mesh: lookup rank %d: %w", peer, err)
		}
		pair, err := dev.Dial(ctx, string(addr))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("mesh: connect rank %d: %w", peer, err)
		}
		c.pairs[peer] = pair
		if err := pair.Send(encodeHello(rank)); err != nil {
			c.Close()
			return nil, fmt.Errorf("mesh: hello to rank %d: %w", peer, err)
		}
	}

	for remaining := size - 1 - rank; remaining > 0; remaining-- {
		pair, err := l.Accept()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("mesh: accept: %w", err)
		}
		msg, err := pair.Recv()
		if err != nil {
			pair.Close()
			c.Close()
			return nil, fmt.Errorf("mesh: read hello: %w", err)
		}
		peer, err := decodeHello(msg)
		if err != nil {
			pair.Close()
			c.Close()
			return nil, err
		}
		if peer <= rank || peer >= size || c.pairs[peer] != nil {
			pair.Close()
			c.Close()
			return nil, fmt.Errorf("mesh: unexpected hello from rank %d", peer)
		}
		c.pairs[peer] = pair
	}
	return c, nil
}

// Rank returns this participant's rank.
func (c *Context) Rank() int { return c.rank }

// Size returns the number of participants.
func (c *Context) Size() int { return c.size }

// Prefix returns the rendezvous namespace the group was built under.
func (c *Context) Prefix() string { return c.prefix }

// Pair returns the connection to peer. It is nil for the local rank.
func (c *Context) Pair(peer int) transport.Pair { return c.pairs[peer] }

// Stats sums the traffic counters of every pair.
func (c *Context) Stats() transport.Stats {
	var total transport.Stats
	for _, p := range c.pairs {
		if p != nil {
			total = total.Add(p.Stats())
		}
	}
	return total
}

// Close closes every pair.
func (c *Context) Close() error {
	var errs []error
	for i, p := range c.pairs {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rank %d: %w", i, err))
		}
		c.pairs[i] = nil
	}
	return errors.Join(errs...)
}

func encodeHello(rank int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(rank))
	return buf
}

func decodeHello(msg []byte) (int, error) {
	if len(msg) != 4 {
		return 0, fmt.Errorf("mesh: malformed hello of %d bytes", len(msg))
	}
	return int(binary.BigEndian.Uint32(msg)), nil
}
