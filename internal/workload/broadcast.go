package workload

import (
	"fmt"
	"math"

	"github.com/torosent/collbench/internal/collective"
	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/runner"
)

// broadcastBench sends a float32 vector from rank 0 to every other rank.
type broadcastBench struct {
	group *mesh.Context
	op    *collective.Broadcast
	data  []float32
	wire  []byte
}

func newBroadcast(group *mesh.Context) (runner.Benchmark, error) {
	op, err := collective.NewBroadcast(group, 0)
	if err != nil {
		return nil, err
	}
	return &broadcastBench{group: group, op: op}, nil
}

func (b *broadcastBench) Initialize(elements int) error {
	b.data = make([]float32, elements)
	b.wire = make([]byte, 4*elements)
	if b.group.Rank() == 0 {
		for i := range b.data {
			b.data[i] = broadcastValue(i)
		}
	} else {
		for i := range b.data {
			b.data[i] = float32(math.NaN())
		}
	}
	return nil
}

func (b *broadcastBench) Run() error {
	if b.group.Rank() == 0 {
		collective.EncodeFloat32s(b.wire, b.data)
	}
	if err := b.op.Run(b.wire); err != nil {
		return err
	}
	if b.group.Rank() != 0 {
		collective.DecodeFloat32s(b.data, b.wire)
	}
	return nil
}

func (b *broadcastBench) Verify() error {
	for i, v := range b.data {
		if want := broadcastValue(i); v != want {
			return fmt.Errorf("element %d: got %v, want %v", i, v, want)
		}
	}
	return nil
}

func broadcastValue(i int) float32 { return float32(i % 4096) }
