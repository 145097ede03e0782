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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// UserRepository implements directory.UserRepository.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, subject_id, email, first_name, last_name, avatar_url,
	role, organization_id, active, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (*directory.User, error) {
	var user directory.User
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID, &user.SubjectID, &user.Email, &user.FirstName, &user.LastName,
		&user.AvatarURL, &user.Role, &user.OrganizationID, &user.Active,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return &user, nil
}

// GetByID retrieves a user by internal id, including inactive users.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*directory.User, error) {
	return scanUser(r.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

// GetBySubject retrieves a user by identity provider subject id.
func (r *UserRepository) GetBySubject(ctx context.Context, subjectID string) (*directory.User, error) {
	return scanUser(r.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE subject_id = $1
	`, subjectID))
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*directory.User, error) {
	return scanUser(r.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

// Upsert creates or updates a user keyed by subject id.
func (r *UserRepository) Upsert(ctx context.Context, user *directory.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, subject_id, email, first_name, last_name, avatar_url,
			role, organization_id, active, created_at, updated_at, last_login_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (subject_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role,
			organization_id = EXCLUDED.organization_id,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`,
		user.ID, user.SubjectID, user.Email, user.FirstName, user.LastName,
		user.AvatarURL, user.Role, user.OrganizationID, user.Active,
		user.CreatedAt, user.UpdatedAt, user.LastLoginAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation; the subject conflict is handled above,
		// so the only remaining unique column is email.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return directory.ErrEmailTaken
		}
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag by internal id.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET active = $2, updated_at = NOW()
		WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

// SetActiveBySubject flips the soft-delete flag by subject id.
func (r *UserRepository) SetActiveBySubject(ctx context.Context, subjectID string, active bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET active = $2, updated_at = NOW()
		WHERE subject_id = $1
	`, subjectID, active)
	if err != nil {
		return fmt.Errorf("failed to update user active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

// UpdateRole changes the stored role by internal id.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role rbac.Role) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1
	`, id, role)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

// RecordLogin stamps the last-login time by subject id.
func (r *UserRepository) RecordLogin(ctx context.Context, subjectID string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $2, updated_at = NOW()
		WHERE subject_id = $1
	`, subjectID, at)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}
