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

// Package directory is the local mirror of the identity provider: users and
// organizations, synced by webhook, read by every authenticated request.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/dealroomhq/dealroom/internal/rbac"
)

// Domain errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrEmailTaken           = errors.New("email already in use")
	ErrSlugTaken            = errors.New("slug already in use")
)

// User mirrors an identity provider user. Users are never hard-deleted;
// Active=false is the soft delete and an inactive user is absent for
// authorization purposes.
type User struct {
	ID             string
	SubjectID      string // identity provider subject, unique
	Email          string
	FirstName      string
	LastName       string
	AvatarURL      string
	Role           rbac.Role
	OrganizationID string // empty for master admins, who own no tenant
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    *time.Time
}

// UserRepository defines user persistence.
type UserRepository interface {
	// GetByID retrieves a user by internal id, including inactive users.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetBySubject retrieves a user by identity provider subject id,
	// including inactive users. Callers decide how inactivity is treated.
	GetBySubject(ctx context.Context, subjectID string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Upsert creates or updates a user keyed by subject id. A conflicting
	// email owned by a different subject returns ErrEmailTaken.
	Upsert(ctx context.Context, user *User) error

	// SetActive flips the soft-delete flag by internal id.
	SetActive(ctx context.Context, id string, active bool) error

	// SetActiveBySubject flips the soft-delete flag by subject id.
	SetActiveBySubject(ctx context.Context, subjectID string, active bool) error

	// UpdateRole changes the stored role by internal id.
	UpdateRole(ctx context.Context, id string, role rbac.Role) error

	// RecordLogin stamps the last-login time by subject id.
	RecordLogin(ctx context.Context, subjectID string, at time.Time) error
}
