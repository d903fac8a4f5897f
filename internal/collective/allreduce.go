package collective

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/torosent/collbench/internal/mesh"
)

// Allreduce sums a float32 vector element-wise across all ranks and leaves
// the result on every rank. Ranks send their input to rank 0, which reduces
// and broadcasts the sum.
type Allreduce struct {
	group *mesh.Context
	bcast *Broadcast
	wire  []byte
}

// NewAllreduce binds an allreduce over vectors of count elements to group.
func NewAllreduce(group *mesh.Context, count int) (*Allreduce, error) {
	bcast, err := NewBroadcast(group, 0)
	if err != nil {
		return nil, err
	}
	return &Allreduce{group: group, bcast: bcast, wire: make([]byte, 4*count)}, nil
}

// Run reduces data in place. len(data) must match the count the operation
// was built for.
func (a *Allreduce) Run(data []float32) error {
	if 4*len(data) != len(a.wire) {
		return fmt.Errorf("allreduce: expected %d elements, got %d", len(a.wire)/4, len(data))
	}
	g := a.group
	if g.Rank() != 0 {
		EncodeFloat32s(a.wire, data)
		if err := g.Pair(0).Send(a.wire); err != nil {
			return fmt.Errorf("allreduce: send to rank 0: %w", err)
		}
	} else {
		for peer := 1; peer < g.Size(); peer++ {
			msg, err := g.Pair(peer).Recv()
			if err != nil {
				return fmt.Errorf("allreduce: receive from rank %d: %w", peer, err)
			}
			if len(msg) != len(a.wire) {
				return fmt.Errorf("allreduce: rank %d sent %d bytes, expected %d", peer, len(msg), len(a.wire))
			}
			for i := range data {
				data[i] += math.Float32frombits(binary.LittleEndian.Uint32(msg[4*i:]))
			}
		}
		EncodeFloat32s(a.wire, data)
	}

	if err := a.bcast.Run(a.wire); err != nil {
		return fmt.Errorf("allreduce: %w", err)
	}
	DecodeFloat32s(data, a.wire)
	return nil
}

// EncodeFloat32s writes src into dst as little-endian IEEE 754 values.
func EncodeFloat32s(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
}

// DecodeFloat32s reads little-endian IEEE 754 values from src into dst.
func DecodeFloat32s(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
}
