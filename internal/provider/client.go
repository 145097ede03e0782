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

// Package provider is the thin read client for the external identity
// provider's management API. Only the pieces the authorization core needs
// live here; full provider integration is out of scope.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound reports an organization the provider does not know.
var ErrNotFound = errors.New("provider: organization not found")

// OrganizationRecord is the provider's view of an organization.
type OrganizationRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

// SubscriptionTier extracts public_metadata.subscription_tier, empty when
// absent or not a string.
func (r *OrganizationRecord) SubscriptionTier() string {
	if r.PublicMetadata == nil {
		return ""
	}
	if s, ok := r.PublicMetadata["subscription_tier"].(string); ok {
		return s
	}
	return ""
}

// Client reads organization records from the identity provider.
type Client interface {
	Organization(ctx context.Context, orgID string) (*OrganizationRecord, error)
}

// HTTPClient talks to the provider's management API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Organization fetches one organization record.
func (c *HTTPClient) Organization(ctx context.Context, orgID string) (*OrganizationRecord, error) {
	url := fmt.Sprintf("%s/v1/organizations/%s", c.baseURL, orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: fetch organization %s: %w", orgID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("provider: organization %s: unexpected status %d", orgID, resp.StatusCode)
	}

	var record OrganizationRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("provider: decode organization %s: %w", orgID, err)
	}
	return &record, nil
}
