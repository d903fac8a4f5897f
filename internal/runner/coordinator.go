package runner

import (
	"encoding/binary"
	"fmt"

	"github.com/torosent/collbench/internal/collective"
	"github.com/torosent/collbench/internal/mesh"
)

// Coordinator carries the run-to-run synchronization of a Runner: the
// broadcast that agrees on an iteration count and the barrier that fences
// teardown. Every participant must call them in the same order.
type Coordinator interface {
	// Broadcast returns the root's value on every participant.
	Broadcast(v int64) (int64, error)
	Barrier() error
	Close() error
}

// groupCoordinator binds both primitives to one dedicated group. They share
// its pairs because calls never overlap.
type groupCoordinator struct {
	group     *mesh.Context
	broadcast *collective.Broadcast
	barrier   collective.Barrier
	buf       [8]byte
}

func newGroupCoordinator(group *mesh.Context, root int) (*groupCoordinator, error) {
	b, err := collective.NewBroadcast(group, root)
	if err != nil {
		return nil, err
	}
	return &groupCoordinator{
		group:     group,
		broadcast: b,
		barrier:   collective.NewBarrierAllToOne(group),
	}, nil
}

func (c *groupCoordinator) Broadcast(v int64) (int64, error) {
	binary.LittleEndian.PutUint64(c.buf[:], uint64(v))
	if err := c.broadcast.Run(c.buf[:]); err != nil {
		return 0, fmt.Errorf("coordinator: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(c.buf[:])), nil
}

func (c *groupCoordinator) Barrier() error {
	if err := c.barrier.Run(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}

func (c *groupCoordinator) Close() error { return c.group.Close() }
