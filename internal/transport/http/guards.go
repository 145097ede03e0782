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
	"net/http"

	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// RequireMinRole gates a route on the role hierarchy. Admin roles pass every
// check below their own level.
func (h *Handler) RequireMinRole(min rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := GetScope(r.Context())
			if sc == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !rbac.HasMinRole(sc.Actor.Role, min) {
				respondAuthError(w, r, autherr.ForbiddenRole("Insufficient role for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on an exact role. Administrative roles pass
// regardless of the required role.
func (h *Handler) RequireRole(role rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := GetScope(r.Context())
			if sc == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !rbac.SatisfiesRole(sc.Actor.Role, role) {
				respondAuthError(w, r, autherr.ForbiddenRole("Insufficient role for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a route on a named capability.
func (h *Handler) RequirePermission(p rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := GetScope(r.Context())
			if sc == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !rbac.HasPermission(sc.Actor.Role, p) {
				respondAuthError(w, r, autherr.ForbiddenPermission("Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFeature gates a route on the organization's subscription tier. The
// denial carries the lowest qualifying tier and an upgrade message.
func (h *Handler) RequireFeature(f entitlement.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := GetScope(r.Context())
			if sc == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			orgID, err := sc.RequireOrganizationID()
			if err != nil {
				respondAuthError(w, r, err)
				return
			}

			tier, err := h.tiers.Resolve(r.Context(), orgID)
			if err != nil {
				respondAuthError(w, r, err)
				return
			}

			allowed, err := h.matrix.IsAllowed(tier, f)
			if err != nil {
				// Unknown feature means a route was wired against a matrix
				// that does not define it.
				respondAuthError(w, r, err)
				return
			}
			if !allowed {
				required, _ := h.matrix.RequiredTier(f)
				respondAuthError(w, r, autherr.ForbiddenFeature(
					h.matrix.UpgradeMessage(f, tier), string(required),
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
