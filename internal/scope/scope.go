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

// Package scope computes the effective tenant context of a request: who is
// acting, and against which organization and customer. Master admins may
// redirect the scope onto any tenant via the impersonation headers; everyone
// else acts strictly within their own organization.
package scope

import (
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// AccessScope is immutable for the lifetime of a request.
//
// Invariants: when both TargetOrg and TargetCustomer are set, the customer
// belongs to the target organization; for non-master actors both targets are
// always nil.
type AccessScope struct {
	Actor          *directory.User
	TargetOrg      *directory.Organization
	TargetCustomer *directory.User
}

// OrganizationID is the effective organization of the request: the
// impersonated organization when present, otherwise the actor's own. Empty
// for a master admin acting without tenant context.
func (s *AccessScope) OrganizationID() string {
	if s.TargetOrg != nil {
		return s.TargetOrg.ID
	}
	return s.Actor.OrganizationID
}

// CustomerID is the impersonated customer's id, empty when the request is
// not customer-scoped.
func (s *AccessScope) CustomerID() string {
	if s.TargetCustomer != nil {
		return s.TargetCustomer.ID
	}
	return ""
}

// IsMasterAdmin reports whether the actor holds the back-office role.
func (s *AccessScope) IsMasterAdmin() bool {
	return rbac.IsMasterAdmin(s.Actor.Role)
}

// RequireOrganizationID returns the effective organization id, failing when
// the request carries no organization context. Organization-scoped endpoints
// call this before touching tenant data.
func (s *AccessScope) RequireOrganizationID() (string, error) {
	orgID := s.OrganizationID()
	if orgID == "" {
		return "", autherr.BadRequest("Organization context is required")
	}
	return orgID, nil
}
