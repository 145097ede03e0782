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

package directory

import (
	"context"
	"strings"
	"time"

	"github.com/dealroomhq/dealroom/internal/entitlement"
)

// Organization is the unit of data isolation. An inactive organization
// blocks all tenant operations.
type Organization struct {
	ID        string
	Name      string
	Slug      string // unique, url-safe
	Tier      entitlement.Tier
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganizationRepository defines organization persistence.
type OrganizationRepository interface {
	// GetByID retrieves an organization by id, including inactive ones.
	GetByID(ctx context.Context, id string) (*Organization, error)

	// GetBySlug retrieves an organization by its unique slug.
	GetBySlug(ctx context.Context, slug string) (*Organization, error)

	// Upsert creates or updates an organization by id. A slug owned by a
	// different organization returns ErrSlugTaken.
	Upsert(ctx context.Context, org *Organization) error

	// SlugInUse reports whether slug belongs to an organization other than
	// excludeID.
	SlugInUse(ctx context.Context, slug, excludeID string) (bool, error)

	// SetActive flips the soft-delete flag.
	SetActive(ctx context.Context, id string, active bool) error
}

// Slugify derives a url-safe slug from a display name: lowercase, runs of
// non-alphanumerics collapsed to single hyphens, trimmed. An empty result
// falls back to "org".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "org"
	}
	return slug
}
