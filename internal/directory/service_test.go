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

package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// mockUserRepo implements directory.UserRepository in memory.
type mockUserRepo struct {
	users map[string]*directory.User // by internal id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*directory.User{}}
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*directory.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, directory.ErrUserNotFound
}

func (m *mockUserRepo) GetBySubject(ctx context.Context, subjectID string) (*directory.User, error) {
	for _, u := range m.users {
		if u.SubjectID == subjectID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, directory.ErrUserNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*directory.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, directory.ErrUserNotFound
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *directory.User) error {
	for _, u := range m.users {
		if u.Email == user.Email && u.SubjectID != user.SubjectID {
			return directory.ErrEmailTaken
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return directory.ErrUserNotFound
	}
	u.Active = active
	return nil
}

func (m *mockUserRepo) SetActiveBySubject(ctx context.Context, subjectID string, active bool) error {
	for _, u := range m.users {
		if u.SubjectID == subjectID {
			u.Active = active
			return nil
		}
	}
	return directory.ErrUserNotFound
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role rbac.Role) error {
	u, ok := m.users[id]
	if !ok {
		return directory.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) RecordLogin(ctx context.Context, subjectID string, at time.Time) error {
	for _, u := range m.users {
		if u.SubjectID == subjectID {
			u.LastLoginAt = &at
			return nil
		}
	}
	return directory.ErrUserNotFound
}

// mockOrgRepo implements directory.OrganizationRepository in memory. When
// slugAvailable is set, SlugInUse always reports the slug free, leaving the
// uniqueness constraint in Upsert as the only check.
type mockOrgRepo struct {
	orgs          map[string]*directory.Organization
	slugAvailable bool
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: map[string]*directory.Organization{}}
}

func (m *mockOrgRepo) GetByID(ctx context.Context, id string) (*directory.Organization, error) {
	if o, ok := m.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, directory.ErrOrganizationNotFound
}

func (m *mockOrgRepo) GetBySlug(ctx context.Context, slug string) (*directory.Organization, error) {
	for _, o := range m.orgs {
		if o.Slug == slug {
			cp := *o
			return &cp, nil
		}
	}
	return nil, directory.ErrOrganizationNotFound
}

func (m *mockOrgRepo) Upsert(ctx context.Context, org *directory.Organization) error {
	for _, o := range m.orgs {
		if o.Slug == org.Slug && o.ID != org.ID {
			return directory.ErrSlugTaken
		}
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

func (m *mockOrgRepo) SlugInUse(ctx context.Context, slug, excludeID string) (bool, error) {
	if m.slugAvailable {
		return false, nil
	}
	for _, o := range m.orgs {
		if o.Slug == slug && o.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrgRepo) SetActive(ctx context.Context, id string, active bool) error {
	o, ok := m.orgs[id]
	if !ok {
		return directory.ErrOrganizationNotFound
	}
	o.Active = active
	return nil
}

// captureRecorder implements audit.Recorder.
type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, entry audit.Entry) {
	c.entries = append(c.entries, entry)
}

func newService() (*directory.Service, *mockUserRepo, *mockOrgRepo, *captureRecorder) {
	users := newMockUserRepo()
	orgs := newMockOrgRepo()
	rec := &captureRecorder{}
	return directory.NewService(users, orgs, rec), users, orgs, rec
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Acme   Corp  ", "acme-corp"},
		{"Müller & Müller GmbH", "m-ller-m-ller-gmbh"},
		{"ALL CAPS", "all-caps"},
		{"123 Capital", "123-capital"},
		{"---", "org"},
		{"", "org"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, directory.Slugify(tt.in), "input %q", tt.in)
	}
}

func TestUpsertUserCreatesWithDefaults(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	user, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{
		SubjectID: "user_2abc",
		Email:     "jane@acme.com",
		FirstName: "Jane",
		Role:      "not-a-role",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, rbac.RoleSolo, user.Role, "unknown role falls back to solo")
	assert.True(t, user.Active)
}

// Identity sync idempotency: applying the same event N times converges to
// the same stored state as applying it once.
func TestUpsertUserIdempotent(t *testing.T) {
	svc, users, _, _ := newService()
	ctx := context.Background()

	payload := directory.UserPayload{
		SubjectID: "user_2abc",
		Email:     "jane@acme.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      "growth",
	}

	first, err := svc.UpsertUserFromIdentity(ctx, payload)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.UpsertUserFromIdentity(ctx, payload)
		require.NoError(t, err)
	}

	assert.Len(t, users.users, 1)
	stored, err := svc.GetUserBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, rbac.RoleGrowth, stored.Role)
}

func TestUpsertUserDoesNotClearMissingFields(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{
		SubjectID: "user_2abc",
		Email:     "jane@acme.com",
		FirstName: "Jane",
		LastName:  "Doe",
		AvatarURL: "https://img.example.com/jane.png",
		Role:      "enterprise",
	})
	require.NoError(t, err)

	// Sparse update: only email present.
	updated, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{
		SubjectID: "user_2abc",
		Email:     "jane.doe@acme.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@acme.com", updated.Email)
	assert.Equal(t, "Jane", updated.FirstName)
	assert.Equal(t, "https://img.example.com/jane.png", updated.AvatarURL)
	assert.Equal(t, rbac.RoleEnterprise, updated.Role)
}

func TestMarkUserInactive(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{SubjectID: "user_2abc", Email: "j@a.com"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUserInactive(ctx, "user_2abc"))

	stored, err := svc.GetUserBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestRecordLogin(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{SubjectID: "user_2abc", Email: "j@a.com"})
	require.NoError(t, err)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RecordLogin(ctx, "user_2abc", at))

	stored, err := svc.GetUserBySubject(ctx, "user_2abc")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, at, *stored.LastLoginAt)
}

func TestUpsertOrganizationNormalizesTier(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	org, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{
		ID:   "org_1",
		Name: "Acme Corp",
		Tier: "PROFESSIONAL",
	})
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierProfessional, org.Tier)
	assert.Equal(t, "acme-corp", org.Slug)

	org, err = svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{
		ID:   "org_2",
		Name: "Beta LLC",
		Tier: "gold-plated",
	})
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierStarter, org.Tier, "unknown tier defaults to starter")
}

// Slug collision: same display name on two organizations yields acme-corp
// and acme-corp-1.
func TestUpsertOrganizationSlugCollision(t *testing.T) {
	svc, _, orgs, _ := newService()
	ctx := context.Background()

	a, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{ID: "org_a", Name: "Acme Corp"})
	require.NoError(t, err)
	b, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{ID: "org_b", Name: "Acme Corp"})
	require.NoError(t, err)
	c, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{ID: "org_c", Name: "Acme Corp"})
	require.NoError(t, err)

	assert.Equal(t, "acme-corp", a.Slug)
	assert.Equal(t, "acme-corp-1", b.Slug)
	assert.Equal(t, "acme-corp-2", c.Slug)

	seen := map[string]bool{}
	for _, o := range orgs.orgs {
		assert.False(t, seen[o.Slug], "duplicate slug %s", o.Slug)
		seen[o.Slug] = true
	}
}

// Re-upserting the same organization keeps its slug stable.
func TestUpsertOrganizationIdempotentSlug(t *testing.T) {
	svc, _, orgs, _ := newService()
	ctx := context.Background()

	payload := directory.OrganizationPayload{ID: "org_a", Name: "Acme Corp", Tier: "premium"}
	for i := 0; i < 3; i++ {
		_, err := svc.UpsertOrganizationFromIdentity(ctx, payload)
		require.NoError(t, err)
	}

	assert.Len(t, orgs.orgs, 1)
	stored, err := svc.GetOrganization(ctx, "org_a")
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", stored.Slug)
}

func TestDeactivateOrganization(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{ID: "org_a", Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateOrganization(ctx, "org_a"))

	stored, err := svc.GetOrganization(ctx, "org_a")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func seedUser(t *testing.T, svc *directory.Service, subject, email, org string, role rbac.Role) *directory.User {
	t.Helper()
	u, err := svc.UpsertUserFromIdentity(context.Background(), directory.UserPayload{
		SubjectID: subject, Email: email, Role: string(role),
	})
	require.NoError(t, err)
	if org != "" {
		require.NoError(t, svc.AttachUserToOrganization(context.Background(), subject, org))
		u.OrganizationID = org
	}
	return u
}

func TestChangeUserRole(t *testing.T) {
	svc, _, _, rec := newService()
	ctx := context.Background()

	admin := seedUser(t, svc, "user_admin", "admin@acme.com", "org_a", rbac.RoleAdmin)
	target := seedUser(t, svc, "user_solo", "solo@acme.com", "org_a", rbac.RoleSolo)

	updated, err := svc.ChangeUserRole(ctx, admin, target.ID, rbac.RoleGrowth)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleGrowth, updated.Role)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionRoleChange, rec.entries[0].Action)
	assert.Equal(t, admin.ID, rec.entries[0].ActorUserID)
	assert.Equal(t, target.ID, rec.entries[0].TargetUserID)
	assert.Contains(t, rec.entries[0].Detail, "solo")
	assert.Contains(t, rec.entries[0].Detail, "growth")
}

func TestChangeUserRoleCrossOrgMasked(t *testing.T) {
	svc, _, _, rec := newService()
	ctx := context.Background()

	admin := seedUser(t, svc, "user_admin", "admin@acme.com", "org_a", rbac.RoleAdmin)
	target := seedUser(t, svc, "user_other", "x@beta.com", "org_b", rbac.RoleSolo)

	_, err := svc.ChangeUserRole(ctx, admin, target.ID, rbac.RoleGrowth)
	require.Error(t, err)
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))
	assert.Empty(t, rec.entries)
}

func TestChangeUserRoleMasterOnlyForMasterGrants(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	admin := seedUser(t, svc, "user_admin", "admin@acme.com", "org_a", rbac.RoleAdmin)
	target := seedUser(t, svc, "user_solo", "solo@acme.com", "org_a", rbac.RoleSolo)

	_, err := svc.ChangeUserRole(ctx, admin, target.ID, rbac.RoleMasterAdmin)
	require.Error(t, err)
	assert.Equal(t, autherr.KindForbiddenPermission, autherr.KindOf(err))
}

func TestDeactivateAndRestoreUser(t *testing.T) {
	svc, _, _, rec := newService()
	ctx := context.Background()

	admin := seedUser(t, svc, "user_admin", "admin@acme.com", "org_a", rbac.RoleAdmin)
	target := seedUser(t, svc, "user_solo", "solo@acme.com", "org_a", rbac.RoleSolo)

	require.NoError(t, svc.DeactivateUser(ctx, admin, target.ID))
	stored, err := svc.GetUserByID(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	require.NoError(t, svc.RestoreUser(ctx, admin, target.ID))
	stored, err = svc.GetUserByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, audit.ActionUserDeleted, rec.entries[0].Action)
	assert.Equal(t, audit.ActionUserRestored, rec.entries[1].Action)
}

// A taken email surfaces as a conflict the transport maps to 409.
func TestUpsertUserEmailConflict(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.UpsertUserFromIdentity(ctx, directory.UserPayload{
		SubjectID: "user_first",
		Email:     "jane@acme.com",
	})
	require.NoError(t, err)

	_, err = svc.UpsertUserFromIdentity(ctx, directory.UserPayload{
		SubjectID: "user_second",
		Email:     "jane@acme.com",
	})
	require.Error(t, err)
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))
}

func TestUpsertOrganizationSlugConflict(t *testing.T) {
	svc, _, orgs, _ := newService()
	ctx := context.Background()

	// A stored organization already holds the slug; SlugInUse misses it so
	// the repository's uniqueness check is the last line of defense.
	orgs.orgs["org_taken"] = &directory.Organization{ID: "org_taken", Name: "Acme Corp", Slug: "acme-corp", Active: true}
	orgs.slugAvailable = true

	_, err := svc.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{
		ID:   "org_new",
		Name: "Acme Corp",
	})
	require.Error(t, err)
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))
}
