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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/rbac"
	"github.com/dealroomhq/dealroom/internal/scope"
)

// DefaultMaxFolderDepth bounds ancestor traversal. Deeper nesting (or a
// cycle) is treated as data corruption.
const DefaultMaxFolderDepth = 32

// CheckOptions parameterizes one guard evaluation.
type CheckOptions struct {
	// DealID is the deal id from the URL for deal-scoped sub-resources.
	// When set, the entity's own deal id must match.
	DealID string

	// MinLevel is the required permission level for documents and folders.
	// Empty skips the level check (non-document kinds).
	MinLevel Level

	// AllowEditorForOwn treats the document's uploader as owner when the
	// minimum is editor.
	AllowEditorForOwn bool

	// Action, when set on a document check, is written to the access log
	// after a successful evaluation.
	Action    AccessAction
	IPAddress string
	UserAgent string
}

// Guard validates resource ownership and permission levels.
type Guard struct {
	registry *Registry
	perms    PermissionStore
	auditor  audit.Recorder
	maxDepth int
}

// NewGuard creates a guard. maxDepth <= 0 selects the default.
func NewGuard(registry *Registry, perms PermissionStore, auditor audit.Recorder, maxDepth int) *Guard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxFolderDepth
	}
	return &Guard{registry: registry, perms: perms, auditor: auditor, maxDepth: maxDepth}
}

// Check loads the entity and enforces, in order: organization ownership,
// deal scope, and the document/folder permission level. Cross-tenant access
// is audited and masked as NotFound. The access log row is written only
// when every check has passed.
func (g *Guard) Check(ctx context.Context, sc *scope.AccessScope, kind Kind, id string, opts CheckOptions) (Entity, error) {
	accessor, ok := g.registry.Accessor(kind)
	if !ok {
		return nil, fmt.Errorf("resource: no accessor registered for kind %q", kind)
	}

	orgID, err := sc.RequireOrganizationID()
	if err != nil {
		return nil, err
	}

	entity, err := accessor.LoadByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, autherr.NotFound(fmt.Sprintf("%s not found", kind))
		}
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}

	if entity.OwnerOrganizationID() != orgID {
		g.auditor.Record(ctx, audit.Entry{
			ActorUserID:    sc.Actor.ID,
			OrganizationID: orgID,
			Action:         audit.ActionResourceScopeViolation,
			Detail: fmt.Sprintf("%s %s belongs to organization %s, requested under %s",
				kind, id, entity.OwnerOrganizationID(), orgID),
		})
		return nil, autherr.NotFound(fmt.Sprintf("%s not found", kind))
	}

	if opts.DealID != "" && entity.ParentDealID() != opts.DealID {
		g.auditor.Record(ctx, audit.Entry{
			ActorUserID:    sc.Actor.ID,
			OrganizationID: orgID,
			Action:         audit.ActionResourceScopeViolation,
			Detail: fmt.Sprintf("%s %s belongs to deal %s, requested under deal %s",
				kind, id, entity.ParentDealID(), opts.DealID),
		})
		return nil, autherr.NotFound(fmt.Sprintf("%s not found", kind))
	}

	if opts.MinLevel != "" {
		effective, err := g.effectiveLevel(ctx, sc, entity, opts)
		if err != nil {
			return nil, err
		}
		if LevelRank(effective) < LevelRank(opts.MinLevel) {
			return nil, autherr.ForbiddenPermission("Insufficient permissions")
		}
	}

	if doc, ok := entity.(Document); ok && opts.Action != "" {
		log := &AccessLog{
			ID:             uuid.NewString(),
			DocumentID:     doc.EntityID(),
			UserID:         sc.Actor.ID,
			OrganizationID: orgID,
			Action:         opts.Action,
			IPAddress:      opts.IPAddress,
			UserAgent:      opts.UserAgent,
			CreatedAt:      time.Now().UTC(),
		}
		if err := g.perms.LogAccess(ctx, log); err != nil {
			return nil, fmt.Errorf("write access log for document %s: %w", doc.EntityID(), err)
		}
	}

	return entity, nil
}

// effectiveLevel computes the caller's strongest level on a document or
// folder: explicit grant, cascaded folder grant, uploader ownership, or the
// organization-wide DOCUMENT_ADMIN permission.
func (g *Guard) effectiveLevel(ctx context.Context, sc *scope.AccessScope, entity Entity, opts CheckOptions) (Level, error) {
	userID := sc.Actor.ID
	var effective Level

	if rbac.HasPermission(sc.Actor.Role, rbac.PermDocumentAdmin) {
		return LevelOwner, nil
	}

	var startFolder string
	switch e := entity.(type) {
	case Document:
		if e.UploadedByUserID() == userID && opts.AllowEditorForOwn && opts.MinLevel == LevelEditor {
			return LevelOwner, nil
		}
		level, ok, err := g.perms.DocumentGrant(ctx, e.EntityID(), userID)
		if err != nil {
			return "", fmt.Errorf("document grant lookup: %w", err)
		}
		if ok {
			effective = maxLevel(effective, level)
		}
		startFolder = e.ContainingFolderID()
	case Folder:
		startFolder = e.EntityID()
	default:
		return "", fmt.Errorf("resource: kind %q does not carry permission levels", entityKindName(entity))
	}

	cascaded, err := g.cascadedFolderLevel(ctx, startFolder, userID)
	if err != nil {
		return "", err
	}
	return maxLevel(effective, cascaded), nil
}

// cascadedFolderLevel walks ancestors from folderID to the root, taking the
// strongest grant seen. Traversal is iterative and bounded; a repeated
// folder id means the tree is corrupt and the resource is reported absent.
func (g *Guard) cascadedFolderLevel(ctx context.Context, folderID, userID string) (Level, error) {
	var effective Level
	visited := make(map[string]bool)

	for depth := 0; folderID != ""; depth++ {
		if depth >= g.maxDepth || visited[folderID] {
			slog.ErrorContext(ctx, "folder hierarchy cycle or excessive depth, treating as corrupt",
				slog.String("folder_id", folderID),
				slog.Int("depth", depth),
			)
			return "", autherr.NotFound("folder not found")
		}
		visited[folderID] = true

		level, ok, err := g.perms.FolderGrant(ctx, folderID, userID)
		if err != nil {
			return "", fmt.Errorf("folder grant lookup %s: %w", folderID, err)
		}
		if ok {
			effective = maxLevel(effective, level)
		}

		parent, err := g.perms.ParentFolderID(ctx, folderID)
		if err != nil {
			return "", fmt.Errorf("folder parent lookup %s: %w", folderID, err)
		}
		folderID = parent
	}
	return effective, nil
}

func entityKindName(e Entity) string {
	return fmt.Sprintf("%T", e)
}
