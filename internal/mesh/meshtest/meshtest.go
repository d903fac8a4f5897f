// Package meshtest builds in-process groups for tests.
package meshtest

import (
	"context"
	"sync"
	"testing"

	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/transport"
)

// Group connects size participants over transportName and returns their
// contexts indexed by rank. Contexts are closed when the test ends.
func Group(t testing.TB, transportName string, size int) []*mesh.Context {
	t.Helper()
	dev, err := transport.New(transportName, transport.Attr{Hostname: "127.0.0.1"})
	if err != nil {
		t.Fatalf("transport %q: %v", transportName, err)
	}
	store := rendezvous.WithPrefix(t.Name(), rendezvous.NewHashStore())

	ctxs := make([]*mesh.Context, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	wg.Add(size)
	for rank := 0; rank < size; rank++ {
		go func(rank int) {
			defer wg.Done()
			ctxs[rank], errs[rank] = mesh.Connect(context.Background(), rank, size, t.Name(), store, dev)
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d connect: %v", rank, err)
		}
	}
	t.Cleanup(func() {
		for _, c := range ctxs {
			_ = c.Close()
		}
	})
	return ctxs
}

// Each runs fn once per rank concurrently and fails the test on the first
// error reported.
func Each(t testing.TB, ctxs []*mesh.Context, fn func(c *mesh.Context) error) {
	t.Helper()
	errs := make([]error, len(ctxs))
	var wg sync.WaitGroup
	wg.Add(len(ctxs))
	for i, c := range ctxs {
		go func(i int, c *mesh.Context) {
			defer wg.Done()
			errs[i] = fn(c)
		}(i, c)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}
}
