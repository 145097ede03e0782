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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// UserPayload is the identity provider's user event data, reduced to the
// fields the directory stores.
type UserPayload struct {
	SubjectID string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
	Role      string // public metadata role, free-form
}

// OrganizationPayload is the identity provider's organization event data.
type OrganizationPayload struct {
	ID   string
	Name string
	Tier string // public_metadata.subscription_tier, free-form
}

// Service applies identity provider events to the directory and carries the
// back-office user management operations.
type Service struct {
	users   UserRepository
	orgs    OrganizationRepository
	auditor audit.Recorder
}

// NewService creates a directory service.
func NewService(users UserRepository, orgs OrganizationRepository, auditor audit.Recorder) *Service {
	return &Service{users: users, orgs: orgs, auditor: auditor}
}

// GetUserBySubject returns the user for an identity provider subject id,
// inactive users included. Callers treat Active=false as absent for
// authorization.
func (s *Service) GetUserBySubject(ctx context.Context, subjectID string) (*User, error) {
	return s.users.GetBySubject(ctx, subjectID)
}

// GetUserByID returns a user by internal id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetOrganization returns an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

// UpsertUserFromIdentity applies a user.created/user.updated event. The
// operation is idempotent; missing optional fields never clear stored
// values.
func (s *Service) UpsertUserFromIdentity(ctx context.Context, payload UserPayload) (*User, error) {
	if payload.SubjectID == "" {
		return nil, fmt.Errorf("identity payload has no subject id")
	}

	now := time.Now().UTC()
	existing, err := s.users.GetBySubject(ctx, payload.SubjectID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("load user %s: %w", payload.SubjectID, err)
	}

	user := existing
	if user == nil {
		user = &User{
			ID:        uuid.NewString(),
			SubjectID: payload.SubjectID,
			Role:      rbac.RoleSolo,
			Active:    true,
			CreatedAt: now,
		}
	}

	if payload.Email != "" {
		user.Email = payload.Email
	}
	if payload.FirstName != "" {
		user.FirstName = payload.FirstName
	}
	if payload.LastName != "" {
		user.LastName = payload.LastName
	}
	if payload.AvatarURL != "" {
		user.AvatarURL = payload.AvatarURL
	}
	if role, ok := rbac.Normalize(payload.Role); ok {
		user.Role = role
	}
	user.UpdatedAt = now

	if err := s.users.Upsert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, autherr.Conflict("Email is already in use by another account")
		}
		return nil, fmt.Errorf("upsert user %s: %w", payload.SubjectID, err)
	}
	return user, nil
}

// AttachUserToOrganization records the user's organization membership, as
// delivered by organizationMembership events.
func (s *Service) AttachUserToOrganization(ctx context.Context, subjectID, orgID string) error {
	user, err := s.users.GetBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	user.OrganizationID = orgID
	user.UpdatedAt = time.Now().UTC()
	return s.users.Upsert(ctx, user)
}

// MarkUserInactive applies a user.deleted event as a soft delete.
func (s *Service) MarkUserInactive(ctx context.Context, subjectID string) error {
	if err := s.users.SetActiveBySubject(ctx, subjectID, false); err != nil {
		return err
	}
	return nil
}

// RecordLogin applies a session.created event.
func (s *Service) RecordLogin(ctx context.Context, subjectID string, at time.Time) error {
	return s.users.RecordLogin(ctx, subjectID, at)
}

// UpsertOrganizationFromIdentity applies an organization.created/updated
// event, generating a unique slug deterministically from the display name
// and normalizing the subscription tier.
func (s *Service) UpsertOrganizationFromIdentity(ctx context.Context, payload OrganizationPayload) (*Organization, error) {
	if payload.ID == "" {
		return nil, fmt.Errorf("identity payload has no organization id")
	}

	now := time.Now().UTC()
	existing, err := s.orgs.GetByID(ctx, payload.ID)
	if err != nil && !errors.Is(err, ErrOrganizationNotFound) {
		return nil, fmt.Errorf("load organization %s: %w", payload.ID, err)
	}

	org := existing
	if org == nil {
		org = &Organization{
			ID:        payload.ID,
			Active:    true,
			CreatedAt: now,
		}
	}

	if payload.Name != "" && payload.Name != org.Name {
		org.Name = payload.Name
		slug, err := s.uniqueSlug(ctx, Slugify(payload.Name), org.ID)
		if err != nil {
			return nil, err
		}
		org.Slug = slug
	}
	org.Tier = entitlement.NormalizeTier(payload.Tier)
	org.UpdatedAt = now

	if err := s.orgs.Upsert(ctx, org); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, autherr.Conflict("Organization slug is already in use")
		}
		return nil, fmt.Errorf("upsert organization %s: %w", payload.ID, err)
	}
	return org, nil
}

// uniqueSlug returns base, or base-1, base-2, ... until a free slug is
// found. Bounded so that pathological data cannot loop forever.
func (s *Service) uniqueSlug(ctx context.Context, base, orgID string) (string, error) {
	slug := base
	for i := 0; i <= 100; i++ {
		if i > 0 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		inUse, err := s.orgs.SlugInUse(ctx, slug, orgID)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", slug, err)
		}
		if !inUse {
			return slug, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after 100 attempts", base)
}

// DeactivateOrganization applies an organization.deleted event.
func (s *Service) DeactivateOrganization(ctx context.Context, id string) error {
	return s.orgs.SetActive(ctx, id, false)
}

// ChangeUserRole is the back-office role change. Admins may only manage
// users of their own organization; only a master admin may grant or revoke
// master_admin.
func (s *Service) ChangeUserRole(ctx context.Context, actor *User, targetID string, newRole rbac.Role) (*User, error) {
	if !rbac.Valid(newRole) {
		return nil, autherr.BadRequest(fmt.Sprintf("unknown role %q", newRole))
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, autherr.NotFound("user not found")
		}
		return nil, err
	}

	if !rbac.IsMasterAdmin(actor.Role) && target.OrganizationID != actor.OrganizationID {
		// Masked: admins learn nothing about other tenants' users.
		return nil, autherr.NotFound("user not found")
	}
	if (newRole == rbac.RoleMasterAdmin || target.Role == rbac.RoleMasterAdmin) && !rbac.IsMasterAdmin(actor.Role) {
		return nil, autherr.ForbiddenPermission("master_admin role changes require master admin access")
	}

	oldRole := target.Role
	if err := s.users.UpdateRole(ctx, target.ID, newRole); err != nil {
		return nil, fmt.Errorf("update role for %s: %w", target.ID, err)
	}
	target.Role = newRole

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:    actor.ID,
		TargetUserID:   target.ID,
		OrganizationID: target.OrganizationID,
		Action:         audit.ActionRoleChange,
		Detail:         fmt.Sprintf("role changed from %s to %s", oldRole, newRole),
	})
	return target, nil
}

// DeactivateUser soft-deletes a user from the back office.
func (s *Service) DeactivateUser(ctx context.Context, actor *User, targetID string) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return autherr.NotFound("user not found")
		}
		return err
	}
	if !rbac.IsMasterAdmin(actor.Role) && target.OrganizationID != actor.OrganizationID {
		return autherr.NotFound("user not found")
	}

	if err := s.users.SetActive(ctx, target.ID, false); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:    actor.ID,
		TargetUserID:   target.ID,
		OrganizationID: target.OrganizationID,
		Action:         audit.ActionUserDeleted,
	})
	return nil
}

// RestoreUser reverses a soft delete.
func (s *Service) RestoreUser(ctx context.Context, actor *User, targetID string) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return autherr.NotFound("user not found")
		}
		return err
	}
	if !rbac.IsMasterAdmin(actor.Role) && target.OrganizationID != actor.OrganizationID {
		return autherr.NotFound("user not found")
	}

	if err := s.users.SetActive(ctx, target.ID, true); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:    actor.ID,
		TargetUserID:   target.ID,
		OrganizationID: target.OrganizationID,
		Action:         audit.ActionUserRestored,
	})
	return nil
}
