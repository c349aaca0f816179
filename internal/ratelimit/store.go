package ratelimit

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultPrefix namespaces limiter keys in Redis.
const DefaultPrefix = "ratelimit"

// NewStore returns a Redis-backed limiter store, or an in-process store when
// no client is configured.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// New builds a limiter allowing max events per window.
func New(store limiter.Store, window time.Duration, max int) *limiter.Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)})
}
