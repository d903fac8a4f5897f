package collective

import (
	"fmt"

	"github.com/torosent/collbench/internal/mesh"
)

// Barrier blocks until every participant of a group has entered it.
type Barrier interface {
	Run() error
}

// BarrierAllToOne gathers a token from every rank at the root, then
// releases all ranks with a token from the root.
type BarrierAllToOne struct {
	group *mesh.Context
	root  int
}

// NewBarrierAllToOne binds a barrier coordinated by rank 0 to group.
func NewBarrierAllToOne(group *mesh.Context) *BarrierAllToOne {
	return &BarrierAllToOne{group: group}
}

func (b *BarrierAllToOne) Run() error {
	g := b.group
	if g.Rank() != b.root {
		if err := g.Pair(b.root).Send(nil); err != nil {
			return fmt.Errorf("barrier: notify root: %w", err)
		}
		if _, err := g.Pair(b.root).Recv(); err != nil {
			return fmt.Errorf("barrier: wait for release: %w", err)
		}
		return nil
	}

	for peer := 0; peer < g.Size(); peer++ {
		if peer == b.root {
			continue
		}
		if _, err := g.Pair(peer).Recv(); err != nil {
			return fmt.Errorf("barrier: wait for rank %d: %w", peer, err)
		}
	}
	for peer := 0; peer < g.Size(); peer++ {
		if peer == b.root {
			continue
		}
		if err := g.Pair(peer).Send(nil); err != nil {
			return fmt.Errorf("barrier: release rank %d: %w", peer, err)
		}
	}
	return nil
}

// BarrierAllToAll has every rank send a token to every other rank and wait
// for a token from each of them.
type BarrierAllToAll struct {
	group *mesh.Context
}

// NewBarrierAllToAll binds an all-to-all barrier to group.
func NewBarrierAllToAll(group *mesh.Context) *BarrierAllToAll {
	return &BarrierAllToAll{group: group}
}

func (b *BarrierAllToAll) Run() error {
	g := b.group
	for peer := 0; peer < g.Size(); peer++ {
		if peer == g.Rank() {
			continue
		}
		if err := g.Pair(peer).Send(nil); err != nil {
			return fmt.Errorf("barrier: notify rank %d: %w", peer, err)
		}
	}
	for peer := 0; peer < g.Size(); peer++ {
		if peer == g.Rank() {
			continue
		}
		if _, err := g.Pair(peer).Recv(); err != nil {
			return fmt.Errorf("barrier: wait for rank %d: %w", peer, err)
		}
	}
	return nil
}
