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

package tier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/provider"
	"github.com/dealroomhq/dealroom/internal/tier"
)

// fakeProvider implements provider.Client with canned answers.
type fakeProvider struct {
	tiers   map[string]string // orgID -> raw subscription_tier
	err     error
	fetches int
}

func (f *fakeProvider) Organization(ctx context.Context, orgID string) (*provider.OrganizationRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.tiers[orgID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &provider.OrganizationRecord{
		ID:             orgID,
		PublicMetadata: map[string]any{"subscription_tier": raw},
	}, nil
}

// failingCache implements tier.Cache and always errors on Get.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, orgID string) (entitlement.Tier, bool, error) {
	return "", false, errors.New("cache backend down")
}
func (failingCache) Set(ctx context.Context, orgID string, t entitlement.Tier) error { return nil }
func (failingCache) Invalidate(ctx context.Context, orgID string) error              { return nil }

func TestResolveFetchesAndCaches(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{"org_1": "Professional"}}
	r := tier.NewResolver(tier.NewMemoryCache(time.Minute), fp, 0)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierProfessional, got)
	assert.Equal(t, 1, fp.fetches)

	// Within the TTL, no further provider fetches.
	for i := 0; i < 5; i++ {
		got, err = r.Resolve(ctx, "org_1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.TierProfessional, got)
	}
	assert.Equal(t, 1, fp.fetches)
}

func TestResolveRefetchesAfterTTL(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{"org_1": "premium"}}
	r := tier.NewResolver(tier.NewMemoryCache(30*time.Millisecond), fp, 0)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	require.Equal(t, 1, fp.fetches)

	time.Sleep(50 * time.Millisecond)

	_, err = r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, 2, fp.fetches, "expired entry must trigger a provider fetch")
}

func TestResolveUnknownOrgDefaultsToStarter(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{}}
	r := tier.NewResolver(tier.NewMemoryCache(time.Minute), fp, 0)

	got, err := r.Resolve(context.Background(), "org_missing")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, got)
}

func TestResolveInvalidTierDefaultsToStarter(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{"org_1": "diamond"}}
	r := tier.NewResolver(tier.NewMemoryCache(time.Minute), fp, 0)

	got, err := r.Resolve(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, got)
}

func TestResolveProviderFailureIsTierLookupError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("upstream 500")}
	r := tier.NewResolver(tier.NewMemoryCache(time.Minute), fp, 0)

	_, err := r.Resolve(context.Background(), "org_1")
	require.Error(t, err)
	assert.Equal(t, autherr.KindTierLookup, autherr.KindOf(err))
}

func TestResolveCacheFailureDegradesToStarter(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{"org_1": "enterprise"}}
	r := tier.NewResolver(failingCache{}, fp, 0)

	got, err := r.Resolve(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, got)
	assert.Equal(t, 0, fp.fetches, "degraded path must not hit the provider")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fp := &fakeProvider{tiers: map[string]string{"org_1": "premium"}}
	r := tier.NewResolver(tier.NewMemoryCache(time.Minute), fp, 0)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	require.Equal(t, 1, fp.fetches)

	// Subscription change webhook downgrades the org.
	fp.tiers["org_1"] = "starter"
	r.Invalidate(ctx, "org_1")

	got, err := r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, got)
	assert.Equal(t, 2, fp.fetches)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*tier.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return tier.NewRedisCache(client, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "org_1", entitlement.TierPremium))
	got, hit, err := cache.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entitlement.TierPremium, got)

	require.NoError(t, cache.Invalidate(ctx, "org_1"))
	_, hit, err = cache.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := newRedisCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org_1", entitlement.TierEnterprise))
	mr.FastForward(2 * time.Second)

	_, hit, err := cache.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheCorruptValueIsMiss(t *testing.T) {
	cache, mr := newRedisCache(t, time.Minute)
	require.NoError(t, mr.Set("tier:org_1", "not-a-tier"))

	_, hit, err := cache.Get(context.Background(), "org_1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestResolverWithRedisBackend(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)
	fp := &fakeProvider{tiers: map[string]string{"org_1": "enterprise"}}
	r := tier.NewResolver(cache, fp, 0)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierEnterprise, got)

	got, err = r.Resolve(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierEnterprise, got)
	assert.Equal(t, 1, fp.fetches)
}
