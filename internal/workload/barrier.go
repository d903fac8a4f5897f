package workload

import (
	"github.com/torosent/collbench/internal/collective"
	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/runner"
)

// barrierBench measures a barrier. The element count does not apply and a
// barrier that returns has nothing left to verify.
type barrierBench struct {
	op collective.Barrier
}

func newBarrierAllToOne(group *mesh.Context) (runner.Benchmark, error) {
	return &barrierBench{op: collective.NewBarrierAllToOne(group)}, nil
}

func newBarrierAllToAll(group *mesh.Context) (runner.Benchmark, error) {
	return &barrierBench{op: collective.NewBarrierAllToAll(group)}, nil
}

func (b *barrierBench) Initialize(int) error { return nil }
func (b *barrierBench) Run() error           { return b.op.Run() }
func (b *barrierBench) Verify() error        { return nil }
