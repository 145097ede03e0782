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

	"github.com/dealroomhq/dealroom/internal/resource"
)

// PermissionRepository implements resource.PermissionStore and
// resource.GrantStore on the document_permissions and
// document_access_logs tables.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// DocumentGrant returns the user's document-level grant, if any.
func (r *PermissionRepository) DocumentGrant(ctx context.Context, documentID, userID string) (resource.Level, bool, error) {
	var level resource.Level
	err := r.db.pool.QueryRow(ctx, `
		SELECT level FROM document_permissions
		WHERE document_id = $1 AND user_id = $2
	`, documentID, userID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get document grant: %w", err)
	}
	return level, true, nil
}

// FolderGrant returns the user's grant on one folder, if any.
func (r *PermissionRepository) FolderGrant(ctx context.Context, folderID, userID string) (resource.Level, bool, error) {
	var level resource.Level
	err := r.db.pool.QueryRow(ctx, `
		SELECT level FROM document_permissions
		WHERE folder_id = $1 AND user_id = $2
	`, folderID, userID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get folder grant: %w", err)
	}
	return level, true, nil
}

// ParentFolderID returns a folder's parent id, empty at the root. A missing
// folder also reads as empty so that a dangling reference ends traversal
// instead of failing it.
func (r *PermissionRepository) ParentFolderID(ctx context.Context, folderID string) (string, error) {
	var parent string
	err := r.db.pool.QueryRow(ctx, `
		SELECT parent_folder_id FROM folders WHERE id = $1
	`, folderID).Scan(&parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get folder parent: %w", err)
	}
	return parent, nil
}

// LogAccess appends one access log row.
func (r *PermissionRepository) LogAccess(ctx context.Context, log *resource.AccessLog) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO document_access_logs (
			id, document_id, user_id, organization_id, action, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, log.ID, log.DocumentID, log.UserID, log.OrganizationID, log.Action, log.IPAddress, log.UserAgent, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// UpsertGrant creates or replaces a grant for its document or folder target.
func (r *PermissionRepository) UpsertGrant(ctx context.Context, grant *resource.Grant) error {
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	conflictTarget := "(document_id, user_id) WHERE document_id <> ''"
	if grant.DocumentID == "" {
		conflictTarget = "(folder_id, user_id) WHERE folder_id <> ''"
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO document_permissions (
			id, document_id, folder_id, user_id, level, organization_id, granted_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT `+conflictTarget+` DO UPDATE SET
			level = EXCLUDED.level,
			granted_by = EXCLUDED.granted_by
	`, grant.ID, grant.DocumentID, grant.FolderID, grant.UserID, grant.Level,
		grant.OrganizationID, grant.GrantedBy, grant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// RevokeGrant removes a user's grant on a document or folder.
func (r *PermissionRepository) RevokeGrant(ctx context.Context, documentID, folderID, userID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM document_permissions
		WHERE document_id = $1 AND folder_id = $2 AND user_id = $3
	`, documentID, folderID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	return nil
}
