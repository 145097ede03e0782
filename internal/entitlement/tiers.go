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

package entitlement

import "strings"

// Tier is an organization's subscription plan. The ordered tiers form the
// upgrade ladder; the specialty tiers (fpa_subscriber, community) carry no
// ordering and participate only in the entitlement matrix.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierPremium      Tier = "premium"
	TierEnterprise   Tier = "enterprise"

	// Specialty bundles, unordered.
	TierFPASubscriber Tier = "fpa_subscriber"
	TierCommunity     Tier = "community"
)

// tierLevels orders the upgrade ladder. Specialty tiers are absent and have
// level 0.
var tierLevels = map[Tier]int{
	TierStarter:      1,
	TierProfessional: 2,
	TierPremium:      3,
	TierEnterprise:   4,
}

var tierLabels = map[Tier]string{
	TierStarter:       "Starter",
	TierProfessional:  "Professional",
	TierPremium:       "Premium",
	TierEnterprise:    "Enterprise",
	TierFPASubscriber: "FP&A Subscriber",
	TierCommunity:     "Community",
}

// TierLevel returns the tier's position on the upgrade ladder, or 0 for
// specialty and unknown tiers.
func TierLevel(t Tier) int {
	return tierLevels[t]
}

// ValidTier reports whether t is one of the enumerated tiers (ordered or
// specialty).
func ValidTier(t Tier) bool {
	_, ok := tierLabels[t]
	return ok
}

// NormalizeTier maps a free-form tier string (identity provider metadata) to
// the closed enum, defaulting to starter on anything unknown. Normalization
// is lowercase per the provider contract.
func NormalizeTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if ValidTier(t) {
		return t
	}
	return TierStarter
}

// TierLabel returns the human label for a tier, falling back to the raw
// value for unknown tiers.
func TierLabel(t Tier) string {
	if label, ok := tierLabels[t]; ok {
		return label
	}
	return string(t)
}
