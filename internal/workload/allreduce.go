package workload

import (
	"fmt"

	"github.com/torosent/collbench/internal/collective"
	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/runner"
)

// allreduceBench sums a float32 vector across the group in place. Every
// rank contributes rank+1 per element, so after the first Run each element
// holds size*(size+1)/2. Verify is only meaningful after exactly one Run.
type allreduceBench struct {
	group *mesh.Context
	op    *collective.Allreduce
	data  []float32
}

func newAllreduce(group *mesh.Context) (runner.Benchmark, error) {
	return &allreduceBench{group: group}, nil
}

func (b *allreduceBench) Initialize(elements int) error {
	op, err := collective.NewAllreduce(b.group, elements)
	if err != nil {
		return err
	}
	b.op = op
	b.data = make([]float32, elements)
	contribution := float32(b.group.Rank() + 1)
	for i := range b.data {
		b.data[i] = contribution
	}
	return nil
}

func (b *allreduceBench) Run() error { return b.op.Run(b.data) }

func (b *allreduceBench) Verify() error {
	n := b.group.Size()
	want := float32(n * (n + 1) / 2)
	for i, v := range b.data {
		if v != want {
			return fmt.Errorf("element %d: got %v, want %v", i, v, want)
		}
	}
	return nil
}
