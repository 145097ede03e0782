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

import (
	"errors"
	"fmt"
)

// Feature names a gated capability of the platform.
type Feature string

const (
	FeatureDealManagement     Feature = "deal_management"
	FeatureDataRoom           Feature = "data_room"
	FeatureFPAModule          Feature = "fpa_module"
	FeaturePodcastAudio       Feature = "podcast_audio"
	FeaturePodcastVideo       Feature = "podcast_video"
	FeatureYouTubeIntegration Feature = "youtube_integration"
	FeatureLiveStreaming      Feature = "live_streaming"
	FeatureTranscriptionBasic Feature = "transcription_basic"
	FeatureAdvancedAnalytics  Feature = "advanced_analytics"
	FeatureWhiteLabel         Feature = "white_label"
	FeatureCommunityAccess    Feature = "community_access"
	FeatureAPIAccess          Feature = "api_access"
)

// ErrUnknownFeature is returned by IsAllowed for features outside the matrix.
var ErrUnknownFeature = errors.New("unknown feature")

var featureLabels = map[Feature]string{
	FeatureDealManagement:     "Deal management",
	FeatureDataRoom:           "Data room",
	FeatureFPAModule:          "FP&A module",
	FeaturePodcastAudio:       "Podcast publishing",
	FeaturePodcastVideo:       "Video podcasts",
	FeatureYouTubeIntegration: "YouTube integration",
	FeatureLiveStreaming:      "Live streaming",
	FeatureTranscriptionBasic: "Transcription",
	FeatureAdvancedAnalytics:  "Advanced analytics",
	FeatureWhiteLabel:         "White labeling",
	FeatureCommunityAccess:    "Community access",
	FeatureAPIAccess:          "API access",
}

// Matrix maps features to the tiers that grant them. The table is versioned:
// revisions replace the whole table rather than patching individual rows, so
// a deployed matrix version fully describes its entitlements.
type Matrix struct {
	version string
	entries map[Feature][]Tier
}

// NewMatrix builds a matrix from an explicit entry table. Each feature's
// tier list is declared in ascending plan order, with specialty add-on
// tiers after the ordered ladder; RequiredTier relies on that ordering
// when no ladder tier grants the feature.
func NewMatrix(version string, entries map[Feature][]Tier) *Matrix {
	m := &Matrix{version: version, entries: make(map[Feature][]Tier, len(entries))}
	for f, tiers := range entries {
		m.entries[f] = append([]Tier(nil), tiers...)
	}
	return m
}

// Default returns the current shipped entitlement table.
func Default() *Matrix {
	return NewMatrix("2026-08", map[Feature][]Tier{
		FeatureDealManagement:     {TierStarter, TierProfessional, TierPremium, TierEnterprise},
		FeatureDataRoom:           {TierStarter, TierProfessional, TierPremium, TierEnterprise},
		FeatureTranscriptionBasic: {TierProfessional, TierPremium, TierEnterprise},
		FeaturePodcastAudio:       {TierProfessional, TierPremium, TierEnterprise},
		FeaturePodcastVideo:       {TierPremium, TierEnterprise},
		FeatureYouTubeIntegration: {TierPremium, TierEnterprise},
		FeatureAdvancedAnalytics:  {TierPremium, TierEnterprise},
		FeatureLiveStreaming:      {TierEnterprise},
		FeatureWhiteLabel:         {TierEnterprise},
		FeatureAPIAccess:          {TierEnterprise},
		FeatureFPAModule:          {TierPremium, TierEnterprise, TierFPASubscriber},
		FeatureCommunityAccess:    {TierProfessional, TierPremium, TierEnterprise, TierCommunity},
	})
}

// Version returns the matrix revision tag.
func (m *Matrix) Version() string {
	return m.version
}

// Features returns all features present in the matrix.
func (m *Matrix) Features() []Feature {
	out := make([]Feature, 0, len(m.entries))
	for f := range m.entries {
		out = append(out, f)
	}
	return out
}

// IsAllowed reports whether the tier grants the feature. Unknown features
// are an error; callers must gate only on features the matrix knows.
func (m *Matrix) IsAllowed(t Tier, f Feature) (bool, error) {
	tiers, ok := m.entries[f]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	for _, allowed := range tiers {
		if allowed == t {
			return true, nil
		}
	}
	return false, nil
}

// FeaturesForTier returns the set of features the tier grants.
func (m *Matrix) FeaturesForTier(t Tier) map[Feature]struct{} {
	out := make(map[Feature]struct{})
	for f, tiers := range m.entries {
		for _, allowed := range tiers {
			if allowed == t {
				out[f] = struct{}{}
				break
			}
		}
	}
	return out
}

// RequiredTier returns the cheapest tier granting the feature: the lowest
// tier on the upgrade ladder when any ordered tier grants it. For features
// granted only by specialty tiers the last listed tier wins, which is the
// highest by the declaration order NewMatrix requires.
func (m *Matrix) RequiredTier(f Feature) (Tier, error) {
	tiers, ok := m.entries[f]
	if !ok || len(tiers) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}

	var lowest Tier
	for _, t := range tiers {
		if TierLevel(t) == 0 {
			continue
		}
		if lowest == "" || TierLevel(t) < TierLevel(lowest) {
			lowest = t
		}
	}
	if lowest != "" {
		return lowest, nil
	}
	return tiers[len(tiers)-1], nil
}

// UpgradeMessage builds the human-facing denial sentence for a feature the
// current tier does not grant. Unknown features get a generic message rather
// than an error; this path renders user-visible copy and must not fail.
func (m *Matrix) UpgradeMessage(f Feature, current Tier) string {
	required, err := m.RequiredTier(f)
	if err != nil {
		return "A subscription upgrade is required to access this feature."
	}

	label, ok := featureLabels[f]
	if !ok {
		label = string(f)
	}

	return fmt.Sprintf("%s requires the %s plan. Your current plan is %s; please upgrade your subscription.",
		label, TierLabel(required), TierLabel(current))
}

// FeatureLabel returns the short human label for a feature.
func FeatureLabel(f Feature) string {
	if label, ok := featureLabels[f]; ok {
		return label
	}
	return string(f)
}
