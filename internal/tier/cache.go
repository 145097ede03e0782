// Copyright 2026 The DealRoom Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dealroomhq/dealroom/internal/entitlement"
)

// Cache stores resolved tiers per organization with a TTL. Entries are
// self-expiring; concurrent writers for the same key race and the last
// write wins.
type Cache interface {
	Get(ctx context.Context, orgID string) (entitlement.Tier, bool, error)
	Set(ctx context.Context, orgID string, t entitlement.Tier) error
	Invalidate(ctx context.Context, orgID string) error
}

// memoryCacheSize bounds the process-wide cache; one entry per organization
// seen within the TTL window.
const memoryCacheSize = 4096

// MemoryCache is the in-process cache backend.
type MemoryCache struct {
	lru *expirable.LRU[string, entitlement.Tier]
}

// NewMemoryCache creates a cache with the configured TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, entitlement.Tier](memoryCacheSize, nil, ttl),
	}
}

func (c *MemoryCache) Get(ctx context.Context, orgID string) (entitlement.Tier, bool, error) {
	t, ok := c.lru.Get(orgID)
	return t, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, orgID string, t entitlement.Tier) error {
	c.lru.Add(orgID, t)
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, orgID string) error {
	c.lru.Remove(orgID)
	return nil
}

// RedisCache is the external cache backend for multi-process deployments.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "tier:"

// NewRedisCache creates a redis-backed tier cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, orgID string) (entitlement.Tier, bool, error) {
	val, err := c.client.Get(ctx, redisKeyPrefix+orgID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tier cache get %s: %w", orgID, err)
	}
	t := entitlement.Tier(val)
	if !entitlement.ValidTier(t) {
		// Stale or corrupt entry, treat as miss.
		return "", false, nil
	}
	return t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, orgID string, t entitlement.Tier) error {
	if err := c.client.Set(ctx, redisKeyPrefix+orgID, string(t), c.ttl).Err(); err != nil {
		return fmt.Errorf("tier cache set %s: %w", orgID, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, orgID string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+orgID).Err(); err != nil {
		return fmt.Errorf("tier cache invalidate %s: %w", orgID, err)
	}
	return nil
}
