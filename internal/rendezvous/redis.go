package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisClient is the subset of the go-redis client the store needs.
// *redis.Client satisfies it.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	Host         string
	Port         int
	Password     string
	DB           int
	KeyTTL       time.Duration // 0 keeps keys until deleted by an operator
	PollInterval time.Duration // 0 uses DefaultPollInterval
}

// RedisStore keeps rendezvous keys in a Redis server.
type RedisStore struct {
	client  RedisClient
	ttl     time.Duration
	limiter *rate.Limiter
}

// NewRedisStore connects to the Redis server described by opts.
func NewRedisStore(opts RedisOptions) *RedisStore {
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port == 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client RedisClient, opts RedisOptions) *RedisStore {
	return &RedisStore{
		client:  client,
		ttl:     opts.KeyTTL,
		limiter: newPollLimiter(opts.PollInterval),
	}
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	ok, err := r.client.SetNX(ctx, key, value, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return pollUntil(ctx, r.limiter, func() ([]byte, bool, error) {
		val, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("redis get %s: %w", key, err)
		}
		return val, true, nil
	})
}

func (r *RedisStore) Close() error { return r.client.Close() }
