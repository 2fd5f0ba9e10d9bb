// Package cache provides the core.Cache implementations: Redis when configured, an in-process LRU otherwise.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/kinerja/core"
)

const keyPrefix = "kinerja:"

// New returns a Redis cache if conf.Redis.Addr is set and Redis answers, a memory cache otherwise.
func New(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Addr == "" {
		return NewMemory(conf.Cache.Size, conf.Cache.TTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable at %s, falling back to in-memory cache: %v", conf.Redis.Addr, err))
		_ = client.Close()
		return NewMemory(conf.Cache.Size, conf.Cache.TTL)
	}
	return NewRedis(client)
}

type redisCache struct {
	client *redis.Client
}

var _ core.Cache = (*redisCache)(nil) // interface compliance check

func NewRedis(client *redis.Client) core.Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, val, ttl).Err(), "redis set")
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	return errors.Wrap(c.client.Del(ctx, prefixed...).Err(), "redis del")
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// memoryCache bounds entries by size and by the default ttl; shorter ttls given to Set are honored on Get.
type memoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time // mockable
}

var _ core.Cache = (*memoryCache)(nil) // interface compliance check

func NewMemory(size int, ttl time.Duration) core.Cache {
	if size <= 0 {
		size = 512
	}
	return &memoryCache{lru: expirable.NewLRU[string, memoryEntry](size, nil, ttl), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := memoryEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}
