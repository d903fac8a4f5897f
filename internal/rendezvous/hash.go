package rendezvous

import (
	"context"
	"fmt"
	"sync"
)

// HashStore is an in-memory store for participants that share a process.
type HashStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	waiters map[string][]chan struct{}
}

// NewHashStore returns an empty in-memory store.
func NewHashStore() *HashStore {
	return &HashStore{
		values:  make(map[string][]byte),
		waiters: make(map[string][]chan struct{}),
	}
}

func (h *HashStore) Set(_ context.Context, key string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.values[key]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	h.values[key] = append([]byte(nil), value...)
	for _, ch := range h.waiters[key] {
		close(ch)
	}
	delete(h.waiters, key)
	return nil
}

func (h *HashStore) Get(ctx context.Context, key string) ([]byte, error) {
	h.mu.Lock()
	if v, ok := h.values[key]; ok {
		h.mu.Unlock()
		return append([]byte(nil), v...), nil
	}
	ch := make(chan struct{})
	h.waiters[key] = append(h.waiters[key], ch)
	h.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.values[key]...), nil
}

// Close is a no-op so one HashStore can back every group of a process.
func (h *HashStore) Close() error { return nil }

// Len reports the number of keys set.
func (h *HashStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}
