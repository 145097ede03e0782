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

package resource

import (
	"context"
	"time"
)

// Level is a document/folder permission level. viewer < editor < owner.
type Level string

const (
	LevelViewer Level = "viewer"
	LevelEditor Level = "editor"
	LevelOwner  Level = "owner"
)

var levelRanks = map[Level]int{
	LevelViewer: 1,
	LevelEditor: 2,
	LevelOwner:  3,
}

// LevelRank returns the level's position in the total order, 0 for unknown.
func LevelRank(l Level) int {
	return levelRanks[l]
}

// maxLevel returns the higher of two levels, treating "" as no level.
func maxLevel(a, b Level) Level {
	if LevelRank(b) > LevelRank(a) {
		return b
	}
	return a
}

// AccessAction enumerates the logged document operations.
type AccessAction string

const (
	ActionView             AccessAction = "view"
	ActionDownload         AccessAction = "download"
	ActionUpload           AccessAction = "upload"
	ActionDelete           AccessAction = "delete"
	ActionPermissionChange AccessAction = "permission_change"
)

// AccessLog is one row of the document access trail, written only on
// successful checks.
type AccessLog struct {
	ID             string
	DocumentID     string
	UserID         string
	OrganizationID string
	Action         AccessAction
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

// Grant is a document- or folder-level permission grant. Exactly one of
// DocumentID and FolderID is set.
type Grant struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id,omitempty"`
	FolderID       string    `json:"folder_id,omitempty"`
	UserID         string    `json:"user_id"`
	Level          Level     `json:"level"`
	OrganizationID string    `json:"organization_id"`
	GrantedBy      string    `json:"granted_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// GrantStore manages grants. Used by the permission administration
// endpoints; the guard itself only reads.
type GrantStore interface {
	// UpsertGrant creates or replaces the grant for the grant's target and
	// user. The stronger of old and new level does not win; the write is
	// authoritative.
	UpsertGrant(ctx context.Context, grant *Grant) error

	// RevokeGrant removes a user's grant on a document or folder. Exactly
	// one of documentID and folderID is non-empty. Revoking an absent
	// grant is a no-op.
	RevokeGrant(ctx context.Context, documentID, folderID, userID string) error
}

// PermissionStore reads grants and folder topology and writes access logs.
type PermissionStore interface {
	// DocumentGrant returns the user's document-level grant, if any.
	DocumentGrant(ctx context.Context, documentID, userID string) (Level, bool, error)

	// FolderGrant returns the user's grant on one folder, if any.
	FolderGrant(ctx context.Context, folderID, userID string) (Level, bool, error)

	// ParentFolderID returns a folder's parent id, empty at the root.
	ParentFolderID(ctx context.Context, folderID string) (string, error)

	// LogAccess appends one access log row.
	LogAccess(ctx context.Context, log *AccessLog) error
}
