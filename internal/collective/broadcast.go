// Package collective implements the collective operations the harness uses
// to coordinate participants and that the bundled workloads measure.
package collective

import (
	"fmt"

	"github.com/torosent/collbench/internal/mesh"
)

// Broadcast copies a buffer from the root participant to every other
// participant of a group.
type Broadcast struct {
	group *mesh.Context
	root  int
}

// NewBroadcast binds a one-to-all broadcast rooted at root to group.
func NewBroadcast(group *mesh.Context, root int) (*Broadcast, error) {
	if root < 0 || root >= group.Size() {
		return nil, fmt.Errorf("broadcast: root %d out of range [0, %d)", root, group.Size())
	}
	return &Broadcast{group: group, root: root}, nil
}

// Root returns the broadcasting rank.
func (b *Broadcast) Root() int { return b.root }

// Run sends buf from the root and overwrites buf on every other rank with
// the root's contents. All ranks must pass buffers of the same length.
func (b *Broadcast) Run(buf []byte) error {
	if b.group.Rank() == b.root {
		for peer := 0; peer < b.group.Size(); peer++ {
			if peer == b.root {
				continue
			}
			if err := b.group.Pair(peer).Send(buf); err != nil {
				return fmt.Errorf("broadcast: send to rank %d: %w", peer, err)
			}
		}
		return nil
	}

	msg, err := b.group.Pair(b.root).Recv()
	if err != nil {
		return fmt.Errorf("broadcast: receive from root: %w", err)
	}
	if len(msg) != len(buf) {
		return fmt.Errorf("broadcast: expected %d bytes from root, got %d", len(buf), len(msg))
	}
	copy(buf, msg)
	return nil
}
