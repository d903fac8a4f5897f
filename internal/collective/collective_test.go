package collective_test

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/collbench/internal/collective"
	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/mesh/meshtest"
)

func TestBroadcastFromEachRoot(t *testing.T) {
	const size = 3
	ctxs := meshtest.Group(t, "loopback", size)
	for root := 0; root < size; root++ {
		meshtest.Each(t, ctxs, func(c *mesh.Context) error {
			b, err := collective.NewBroadcast(c, root)
			if err != nil {
				return err
			}
			buf := make([]byte, 8)
			if c.Rank() == root {
				binary.LittleEndian.PutUint64(buf, uint64(1000+root))
			}
			if err := b.Run(buf); err != nil {
				return err
			}
			if got := binary.LittleEndian.Uint64(buf); got != uint64(1000+root) {
				return fmt.Errorf("root %d: expected %d, got %d", root, 1000+root, got)
			}
			return nil
		})
	}
}

func TestBroadcastRejectsBadRoot(t *testing.T) {
	ctxs := meshtest.Group(t, "loopback", 2)
	if _, err := collective.NewBroadcast(ctxs[0], 2); err == nil {
		t.Fatal("expected error for root outside the group")
	}
}

func TestBroadcastLengthMismatch(t *testing.T) {
	ctxs := meshtest.Group(t, "loopback", 2)
	errs := make(chan error, 2)
	for _, c := range ctxs {
		go func(c *mesh.Context) {
			b, _ := collective.NewBroadcast(c, 0)
			buf := make([]byte, 4+4*c.Rank())
			errs <- b.Run(buf)
		}(c)
	}
	var failures int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected the receiving rank to fail, got %d failures", failures)
	}
}

func TestBarriersHoldUntilAllArrive(t *testing.T) {
	kinds := map[string]func(*mesh.Context) collective.Barrier{
		"all_to_one": func(c *mesh.Context) collective.Barrier { return collective.NewBarrierAllToOne(c) },
		"all_to_all": func(c *mesh.Context) collective.Barrier { return collective.NewBarrierAllToAll(c) },
	}
	for name, newBarrier := range kinds {
		t.Run(name, func(t *testing.T) {
			const size = 4
			ctxs := meshtest.Group(t, "loopback", size)
			var arrived int64
			meshtest.Each(t, ctxs, func(c *mesh.Context) error {
				// The last rank arrives late; nobody may leave before it.
				if c.Rank() == size-1 {
					time.Sleep(20 * time.Millisecond)
				}
				atomic.AddInt64(&arrived, 1)
				if err := newBarrier(c).Run(); err != nil {
					return err
				}
				if n := atomic.LoadInt64(&arrived); n != size {
					return fmt.Errorf("left barrier after %d of %d arrivals", n, size)
				}
				return nil
			})
		})
	}
}

func TestAllreduceSums(t *testing.T) {
	const size = 3
	const count = 1000
	ctxs := meshtest.Group(t, "loopback", size)
	meshtest.Each(t, ctxs, func(c *mesh.Context) error {
		ar, err := collective.NewAllreduce(c, count)
		if err != nil {
			return err
		}
		data := make([]float32, count)
		for i := range data {
			data[i] = float32(c.Rank() + i)
		}
		if err := ar.Run(data); err != nil {
			return err
		}
		for i, v := range data {
			want := float32(size*i + size*(size-1)/2)
			if v != want {
				return fmt.Errorf("element %d: expected %v, got %v", i, want, v)
			}
		}
		return nil
	})
}

func TestAllreduceRejectsWrongLength(t *testing.T) {
	ctxs := meshtest.Group(t, "loopback", 1)
	ar, err := collective.NewAllreduce(ctxs[0], 4)
	if err != nil {
		t.Fatalf("NewAllreduce() error = %v", err)
	}
	if err := ar.Run(make([]float32, 3)); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestFloat32Codec(t *testing.T) {
	src := []float32{0, -1.5, 3.25, 1e9}
	wire := make([]byte, 4*len(src))
	collective.EncodeFloat32s(wire, src)
	dst := make([]float32, len(src))
	collective.DecodeFloat32s(dst, wire)
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("element %d: expected %v, got %v", i, src[i], dst[i])
		}
	}
}
