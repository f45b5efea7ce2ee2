package session

import (
	"time"
)

// StoreType names a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

const defaultRedisTTL = 24 * time.Hour

// NewStore creates a store of the given type. The Redis driver requires
// WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	switch storeType {
	case StoreTypeMemory, "":
		return newMemoryStore(cfg.now), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = defaultRedisTTL
		}
		return newRedisStore(cfg.redisClient, ttl, cfg.now), nil
	default:
		return nil, ErrInvalidStoreType
	}
}
