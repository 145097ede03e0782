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

// Package tier resolves an organization's subscription tier: cache first,
// identity provider second, starter as the fail-safe floor.
package tier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/observability/metrics"
	"github.com/dealroomhq/dealroom/internal/provider"
)

// DefaultTTL is the cache lifetime for resolved tiers.
const DefaultTTL = 300 * time.Second

// DefaultCacheBudget bounds a single cache read. Exhausting the budget
// degrades to starter rather than stalling the request.
const DefaultCacheBudget = 250 * time.Millisecond

// Resolver resolves and caches subscription tiers.
type Resolver struct {
	cache       Cache
	provider    provider.Client
	cacheBudget time.Duration
	metrics     *metrics.AuthorizationMetrics
}

// NewResolver creates a resolver. A zero cacheBudget selects the default.
func NewResolver(cache Cache, client provider.Client, cacheBudget time.Duration) *Resolver {
	if cacheBudget <= 0 {
		cacheBudget = DefaultCacheBudget
	}
	return &Resolver{cache: cache, provider: client, cacheBudget: cacheBudget}
}

// WithMetrics attaches the access-layer instrument set.
func (r *Resolver) WithMetrics(m *metrics.AuthorizationMetrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve returns the organization's current tier. A not-found or
// metadata-less organization degrades to starter; any other provider
// failure is a TierLookup error for the caller to surface as a gateway
// failure.
func (r *Resolver) Resolve(ctx context.Context, orgID string) (entitlement.Tier, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.cacheBudget)
	t, hit, err := r.cache.Get(cacheCtx, orgID)
	cancel()
	if err != nil {
		// Budget exhausted or backend down: serve the floor tier rather
		// than stalling or hammering the provider.
		slog.WarnContext(ctx, "tier cache read failed, defaulting to starter",
			slog.String("organization_id", orgID),
			slog.Any("error", err),
		)
		return entitlement.TierStarter, nil
	}
	if hit {
		return t, nil
	}

	start := time.Now()
	record, err := r.provider.Organization(ctx, orgID)
	if r.metrics != nil {
		r.metrics.TierLookups.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			slog.WarnContext(ctx, "organization unknown to identity provider, defaulting to starter",
				slog.String("organization_id", orgID),
			)
			return r.store(ctx, orgID, entitlement.TierStarter), nil
		}
		return "", autherr.TierLookup(err)
	}

	resolved := entitlement.NormalizeTier(record.SubscriptionTier())
	return r.store(ctx, orgID, resolved), nil
}

// Invalidate drops the cached tier, typically on a subscription webhook.
func (r *Resolver) Invalidate(ctx context.Context, orgID string) {
	if err := r.cache.Invalidate(ctx, orgID); err != nil {
		slog.WarnContext(ctx, "tier cache invalidation failed",
			slog.String("organization_id", orgID),
			slog.Any("error", err),
		)
	}
}

func (r *Resolver) store(ctx context.Context, orgID string, t entitlement.Tier) entitlement.Tier {
	if err := r.cache.Set(ctx, orgID, t); err != nil {
		slog.WarnContext(ctx, "tier cache write failed",
			slog.String("organization_id", orgID),
			slog.Any("error", err),
		)
	}
	return t
}
