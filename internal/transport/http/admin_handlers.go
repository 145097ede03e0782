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

package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/rbac"
	"github.com/dealroomhq/dealroom/internal/resource"
)

// ChangeRoleRequest is the role change payload.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeUserRole updates a user's stored role. master_admin grants are
// reserved to master admins; cross-tenant targets read as absent.
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	role, ok := rbac.Normalize(req.Role)
	if !ok {
		respondAuthError(w, r, autherr.BadRequest("Unknown role: "+req.Role))
		return
	}

	user, err := h.directory.ChangeUserRole(r.Context(), sc.Actor, chi.URLParam(r, "userID"), role)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})
}

// DeactivateUser soft-deletes a user.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	if err := h.directory.DeactivateUser(r.Context(), sc.Actor, chi.URLParam(r, "userID")); err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}

// RestoreUser reverses a soft delete.
func (h *Handler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	if err := h.directory.RestoreUser(r.Context(), sc.Actor, chi.URLParam(r, "userID")); err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user restored"})
}

// ListAuditEntries queries the audit trail. Non-master admins are pinned to
// their own organization regardless of the filter they send.
func (h *Handler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	filter := audit.Filter{
		OrganizationID: r.URL.Query().Get("organization_id"),
		ActorUserID:    r.URL.Query().Get("actor_user_id"),
		Action:         audit.Action(r.URL.Query().Get("action")),
	}
	if !sc.IsMasterAdmin() {
		filter.OrganizationID = sc.Actor.OrganizationID
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = ts
		}
	}

	entries, err := h.audits.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GrantPermissionRequest assigns a level to a user on a document.
type GrantPermissionRequest struct {
	UserID string `json:"user_id"`
	Level  string `json:"level"`
}

// GrantDocumentPermission creates or replaces a grant. Requires owner level
// on the document, which DOCUMENT_ADMIN holders always have.
func (h *Handler) GrantDocumentPermission(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	documentID := chi.URLParam(r, "documentID")

	entity, err := h.guard.Check(r.Context(), sc, resource.KindDocument, documentID, resource.CheckOptions{
		MinLevel:  resource.LevelOwner,
		Action:    resource.ActionPermissionChange,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	var req GrantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "A user id and level are required")
		return
	}
	level := resource.Level(req.Level)
	if resource.LevelRank(level) == 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "Unknown permission level: "+req.Level)
		return
	}

	grant := &resource.Grant{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		UserID:         req.UserID,
		Level:          level,
		OrganizationID: entity.OwnerOrganizationID(),
		GrantedBy:      sc.Actor.ID,
	}
	if err := h.grants.UpsertGrant(r.Context(), grant); err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusCreated, grant)
}

// RevokeDocumentPermission removes a user's grant on a document.
func (h *Handler) RevokeDocumentPermission(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	documentID := chi.URLParam(r, "documentID")

	_, err := h.guard.Check(r.Context(), sc, resource.KindDocument, documentID, resource.CheckOptions{
		MinLevel:  resource.LevelOwner,
		Action:    resource.ActionPermissionChange,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	if err := h.grants.RevokeGrant(r.Context(), documentID, "", chi.URLParam(r, "userID")); err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "permission revoked"})
}
