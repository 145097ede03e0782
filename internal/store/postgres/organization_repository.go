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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dealroomhq/dealroom/internal/directory"
)

// OrganizationRepository implements directory.OrganizationRepository.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func scanOrganization(row pgx.Row) (*directory.Organization, error) {
	var org directory.Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &org.Tier, &org.Active,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// GetByID retrieves an organization by id, including inactive ones.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*directory.Organization, error) {
	return scanOrganization(r.db.pool.QueryRow(ctx, `
		SELECT id, name, slug, tier, active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id))
}

// GetBySlug retrieves an organization by its unique slug.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*directory.Organization, error) {
	return scanOrganization(r.db.pool.QueryRow(ctx, `
		SELECT id, name, slug, tier, active, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`, slug))
}

// Upsert creates or updates an organization by id.
func (r *OrganizationRepository) Upsert(ctx context.Context, org *directory.Organization) error {
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, slug, tier, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			tier = EXCLUDED.tier,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, org.ID, org.Name, org.Slug, org.Tier, org.Active, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return directory.ErrSlugTaken
		}
		return fmt.Errorf("failed to upsert organization: %w", err)
	}
	return nil
}

// SlugInUse reports whether slug belongs to an organization other than excludeID.
func (r *OrganizationRepository) SlugInUse(ctx context.Context, slug, excludeID string) (bool, error) {
	var inUse bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organizations WHERE slug = $1 AND id <> $2
		)
	`, slug, excludeID).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return inUse, nil
}

// SetActive flips the soft-delete flag.
func (r *OrganizationRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE organizations SET active = $2, updated_at = NOW()
		WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update organization active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrOrganizationNotFound
	}
	return nil
}
