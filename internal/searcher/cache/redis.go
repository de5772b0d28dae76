package cache

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// RedisBackend stores encoded results in Redis behind a circuit breaker so
// an unavailable Redis degrades to local-only caching instead of adding
// latency to every query.
type RedisBackend struct {
	client  *pkgredis.Client
	breaker *resilience.CircuitBreaker
}

func NewRedisBackend(client *pkgredis.Client, breaker *resilience.CircuitBreaker) *RedisBackend {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{})
	}
	return &RedisBackend{client: client, breaker: breaker}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	found := false
	err := b.breaker.Execute(func() error {
		v, err := b.client.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		data, found = v, true
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, false, nil
	}
	return data, found, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.breaker.Execute(func() error {
		return b.client.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil
	}
	return err
}

func (b *RedisBackend) Flush(ctx context.Context, prefix string) (int64, error) {
	return b.client.FlushByPattern(ctx, prefix+"*")
}
