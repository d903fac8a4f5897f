// Package workload holds the benchmarks collbench can measure, selectable
// by name.
package workload

import (
	"errors"
	"fmt"
	"sort"

	"github.com/torosent/collbench/internal/runner"
)

// ErrUnknownBenchmark is returned by Lookup for names not in the catalog.
var ErrUnknownBenchmark = errors.New("unknown benchmark")

// Benchmark names.
const (
	BroadcastOneToAll = "broadcast_one_to_all"
	BarrierAllToOne   = "barrier_all_to_one"
	BarrierAllToAll   = "barrier_all_to_all"
	Allreduce         = "allreduce"
)

var catalog = map[string]runner.BenchmarkFactory{
	BroadcastOneToAll: newBroadcast,
	BarrierAllToOne:   newBarrierAllToOne,
	BarrierAllToAll:   newBarrierAllToAll,
	Allreduce:         newAllreduce,
}

// Lookup returns the factory registered under name.
func Lookup(name string) (runner.BenchmarkFactory, error) {
	f, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBenchmark, name, Names())
	}
	return f, nil
}

// Names lists the catalog in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
