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

// Package system provides integration tests that run against a real PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
package system

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/deal"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/rbac"
	"github.com/dealroomhq/dealroom/internal/resource"
	"github.com/dealroomhq/dealroom/internal/scope"
	"github.com/dealroomhq/dealroom/internal/store/postgres"
)

// testDB is the shared database connection for integration tests
var testDB *postgres.DB

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	// Skip if not integration test
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	// Setup database
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "dealroom"),
		Password:     getEnvOrDefault("DB_PASSWORD", "dealroom_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "dealroom"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	// Apply migrations
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		// Ignore errors for already existing tables
		_ = err
	}

	// Run tests
	code := m.Run()

	// Cleanup
	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// fixture wires the real repositories into the guard and scope builder.
type fixture struct {
	users  *postgres.UserRepository
	orgs   *postgres.OrganizationRepository
	deals  *postgres.DealRepository
	perms  *postgres.PermissionRepository
	audits *postgres.AuditRepository
	sink   *audit.Sink
	guard  *resource.Guard
	scopes *scope.Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := postgres.NewUserRepository(testDB)
	orgs := postgres.NewOrganizationRepository(testDB)
	deals := postgres.NewDealRepository(testDB)
	perms := postgres.NewPermissionRepository(testDB)
	audits := postgres.NewAuditRepository(testDB)
	sink := audit.NewSink(audits, nil)

	registry := resource.NewRegistry()
	deals.RegisterAccessors(registry)

	return &fixture{
		users:  users,
		orgs:   orgs,
		deals:  deals,
		perms:  perms,
		audits: audits,
		sink:   sink,
		guard:  resource.NewGuard(registry, perms, sink, resource.DefaultMaxFolderDepth),
		scopes: scope.NewBuilder(users, orgs, sink),
	}
}

func (f *fixture) createOrganization(t *testing.T, ctx context.Context, name string) *directory.Organization {
	t.Helper()
	org := &directory.Organization{
		ID:        "org_" + uuid.NewString(),
		Name:      name,
		Slug:      "slug-" + uuid.NewString(),
		Tier:      entitlement.TierStarter,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.orgs.Upsert(ctx, org))
	return org
}

func (f *fixture) createUser(t *testing.T, ctx context.Context, orgID string, role rbac.Role) *directory.User {
	t.Helper()
	id := uuid.NewString()
	user := &directory.User{
		ID:             "user_" + id,
		SubjectID:      "subj_" + id,
		Email:          id + "@system.test",
		Role:           role,
		OrganizationID: orgID,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.users.Upsert(ctx, user))
	return user
}

func (f *fixture) createDeal(t *testing.T, ctx context.Context, orgID string) *deal.Deal {
	t.Helper()
	d := &deal.Deal{
		ID:             "deal_" + uuid.NewString(),
		OrganizationID: orgID,
		Name:           "System Test Deal",
		Status:         "active",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.deals.CreateDeal(ctx, d))
	return d
}

func (f *fixture) createDocument(t *testing.T, ctx context.Context, orgID, dealID, uploaderID string) *deal.Document {
	t.Helper()
	doc := &deal.Document{
		ID:             "doc_" + uuid.NewString(),
		OrganizationID: orgID,
		DealID:         dealID,
		Name:           "cim.pdf",
		UploadedBy:     uploaderID,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.deals.CreateDocument(ctx, doc))
	return doc
}

func (f *fixture) scopeFor(t *testing.T, ctx context.Context, user *directory.User) *scope.AccessScope {
	t.Helper()
	sc, err := f.scopes.Build(ctx, user, "", "")
	require.NoError(t, err)
	return sc
}

func TestCrossTenantDealIsMasked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orgA := f.createOrganization(t, ctx, "Acme Corp")
	orgB := f.createOrganization(t, ctx, "Beta LLC")
	userA := f.createUser(t, ctx, orgA.ID, rbac.RoleSolo)
	dealB := f.createDeal(t, ctx, orgB.ID)

	sc := f.scopeFor(t, ctx, userA)
	_, err := f.guard.Check(ctx, sc, resource.KindDeal, dealB.ID, resource.CheckOptions{})
	require.Error(t, err)

	authErr, ok := autherr.As(err)
	require.True(t, ok)
	assert.Equal(t, autherr.KindNotFound, authErr.Kind, "cross-tenant access must read as absence")

	entries, listErr := f.sink.List(ctx, audit.Filter{
		OrganizationID: orgA.ID,
		Action:         audit.ActionResourceScopeViolation,
	})
	require.NoError(t, listErr)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Detail, dealB.ID)
}

func TestMasterAdminCrossesTenants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orgB := f.createOrganization(t, ctx, "Beta LLC")
	master := f.createUser(t, ctx, "", rbac.RoleMasterAdmin)
	dealB := f.createDeal(t, ctx, orgB.ID)

	sc, err := f.scopes.Build(ctx, master, orgB.ID, "")
	require.NoError(t, err)

	entity, err := f.guard.Check(ctx, sc, resource.KindDeal, dealB.ID, resource.CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, dealB.ID, entity.EntityID())
}

func TestFolderGrantCascadesThroughHierarchy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	org := f.createOrganization(t, ctx, "Acme Corp")
	owner := f.createUser(t, ctx, org.ID, rbac.RoleSolo)
	reader := f.createUser(t, ctx, org.ID, rbac.RoleSolo)
	d := f.createDeal(t, ctx, org.ID)

	parent := &deal.Folder{
		ID:             "folder_" + uuid.NewString(),
		OrganizationID: org.ID,
		DealID:         d.ID,
		Name:           "Diligence",
		CreatedAt:      time.Now().UTC(),
	}
	child := &deal.Folder{
		ID:             "folder_" + uuid.NewString(),
		OrganizationID: org.ID,
		DealID:         d.ID,
		ParentID:       parent.ID,
		Name:           "Financials",
		CreatedAt:      time.Now().UTC(),
	}
	_, err := testDB.Pool().Exec(ctx,
		`INSERT INTO folders (id, organization_id, deal_id, parent_folder_id, name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12)`,
		parent.ID, parent.OrganizationID, parent.DealID, "", parent.Name, parent.CreatedAt,
		child.ID, child.OrganizationID, child.DealID, child.ParentID, child.Name, child.CreatedAt)
	require.NoError(t, err)

	doc := f.createDocument(t, ctx, org.ID, d.ID, owner.ID)
	_, err = testDB.Pool().Exec(ctx,
		`UPDATE documents SET folder_id = $1 WHERE id = $2`, child.ID, doc.ID)
	require.NoError(t, err)

	// Grant on the top-level folder only; the document sits two levels down.
	require.NoError(t, f.perms.UpsertGrant(ctx, &resource.Grant{
		ID:             uuid.NewString(),
		FolderID:       parent.ID,
		UserID:         reader.ID,
		Level:          resource.LevelViewer,
		OrganizationID: org.ID,
		GrantedBy:      owner.ID,
		CreatedAt:      time.Now().UTC(),
	}))

	sc := f.scopeFor(t, ctx, reader)
	_, err = f.guard.Check(ctx, sc, resource.KindDocument, doc.ID, resource.CheckOptions{
		MinLevel: resource.LevelViewer,
		Action:   resource.ActionView,
	})
	require.NoError(t, err)

	// The same grant does not satisfy an editor requirement.
	_, err = f.guard.Check(ctx, sc, resource.KindDocument, doc.ID, resource.CheckOptions{
		MinLevel: resource.LevelEditor,
	})
	require.Error(t, err)
	authErr, ok := autherr.As(err)
	require.True(t, ok)
	assert.Equal(t, autherr.KindForbiddenPermission, authErr.Kind)
}

func TestAccessLogPersistsOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	org := f.createOrganization(t, ctx, "Acme Corp")
	user := f.createUser(t, ctx, org.ID, rbac.RoleSolo)
	d := f.createDeal(t, ctx, org.ID)
	doc := f.createDocument(t, ctx, org.ID, d.ID, user.ID)

	require.NoError(t, f.perms.UpsertGrant(ctx, &resource.Grant{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		UserID:         user.ID,
		Level:          resource.LevelOwner,
		OrganizationID: org.ID,
		GrantedBy:      user.ID,
		CreatedAt:      time.Now().UTC(),
	}))

	sc := f.scopeFor(t, ctx, user)
	_, err := f.guard.Check(ctx, sc, resource.KindDocument, doc.ID, resource.CheckOptions{
		MinLevel:  resource.LevelViewer,
		Action:    resource.ActionDownload,
		IPAddress: "203.0.113.7",
	})
	require.NoError(t, err)

	var count int
	row := testDB.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM document_access_logs WHERE document_id = $1 AND user_id = $2 AND action = $3`,
		doc.ID, user.ID, string(resource.ActionDownload))
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRoleChangeWritesAuditRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	org := f.createOrganization(t, ctx, "Acme Corp")
	admin := f.createUser(t, ctx, org.ID, rbac.RoleAdmin)
	target := f.createUser(t, ctx, org.ID, rbac.RoleSolo)

	svc := directory.NewService(f.users, f.orgs, f.sink)
	updated, err := svc.ChangeUserRole(ctx, admin, target.ID, rbac.RoleGrowth)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleGrowth, updated.Role)

	entries, err := f.sink.List(ctx, audit.Filter{
		OrganizationID: org.ID,
		Action:         audit.ActionRoleChange,
	})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, admin.ID, entries[0].ActorUserID)
	assert.Equal(t, target.ID, entries[0].TargetUserID)
}
