// Package rendezvous provides the key-value stores participants use to
// exchange connection endpoints before a group is connected.
package rendezvous

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrKeyExists is returned when a key is set twice in the same namespace.
var ErrKeyExists = errors.New("rendezvous key already exists")

// DefaultPollInterval paces how often a blocking Get re-checks a store
// that cannot push notifications.
const DefaultPollInterval = 10 * time.Millisecond

// Store is a write-once key-value namespace shared by all participants.
type Store interface {
	// Set publishes value under key. Keys are written once.
	Set(ctx context.Context, key string, value []byte) error
	// Get blocks until key is present and returns its value.
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// PrefixStore namespaces every key of an underlying store.
type PrefixStore struct {
	prefix string
	inner  Store
}

// WithPrefix returns a store whose keys are "<prefix>/<key>" in inner.
// Closing it closes inner.
func WithPrefix(prefix string, inner Store) *PrefixStore {
	return &PrefixStore{prefix: prefix, inner: inner}
}

func (p *PrefixStore) key(k string) string { return p.prefix + "/" + k }

func (p *PrefixStore) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.key(key), value)
}

func (p *PrefixStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.key(key))
}

// Prefix returns the namespace prefix.
func (p *PrefixStore) Prefix() string { return p.prefix }

func (p *PrefixStore) Close() error { return p.inner.Close() }

// pollUntil calls lookup until it reports the key as found, waiting on
// limiter between attempts.
func pollUntil(ctx context.Context, limiter *rate.Limiter, lookup func() ([]byte, bool, error)) ([]byte, error) {
	for {
		value, ok, err := lookup()
		if err != nil {
			return nil, err
		}
		if ok {
			return value, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

func newPollLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
