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

package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/rbac"
)

// Builder assembles access scopes from the authenticated actor and the
// optional master impersonation headers.
type Builder struct {
	users   directory.UserRepository
	orgs    directory.OrganizationRepository
	auditor audit.Recorder
}

// NewBuilder creates a scope builder.
func NewBuilder(users directory.UserRepository, orgs directory.OrganizationRepository, auditor audit.Recorder) *Builder {
	return &Builder{users: users, orgs: orgs, auditor: auditor}
}

// Build computes the access scope. tenantID and customerID are the values
// of the master headers, empty when absent. A non-master actor supplying
// either header is denied and audited; a master actor's impersonation is
// audited on success.
func (b *Builder) Build(ctx context.Context, actor *directory.User, tenantID, customerID string) (*AccessScope, error) {
	if tenantID == "" && customerID == "" {
		if actor.OrganizationID != "" {
			org, err := b.orgs.GetByID(ctx, actor.OrganizationID)
			if err != nil {
				if errors.Is(err, directory.ErrOrganizationNotFound) {
					return nil, autherr.Unauthorized("Organization is deactivated")
				}
				return nil, fmt.Errorf("load organization %s: %w", actor.OrganizationID, err)
			}
			// An inactive organization blocks every tenant operation,
			// regardless of the individual user's state.
			if !org.Active {
				return nil, autherr.Unauthorized("Organization is deactivated")
			}
		}
		return &AccessScope{Actor: actor}, nil
	}

	if !rbac.IsMasterAdmin(actor.Role) {
		b.auditor.Record(ctx, audit.Entry{
			ActorUserID:    actor.ID,
			OrganizationID: actor.OrganizationID,
			Action:         audit.ActionPermissionDenied,
			Detail:         fmt.Sprintf("permission=%s tenant_id=%s customer_id=%s", rbac.PermMasterImpersonate, tenantID, customerID),
		})
		return nil, autherr.ForbiddenPermission("Master admin access required to override tenant context")
	}

	sc := &AccessScope{Actor: actor}

	if tenantID != "" {
		org, err := b.orgs.GetByID(ctx, tenantID)
		if err != nil {
			if errors.Is(err, directory.ErrOrganizationNotFound) {
				return nil, autherr.NotFound("organization not found")
			}
			return nil, fmt.Errorf("load organization %s: %w", tenantID, err)
		}
		// Deactivated tenants read as absent, even to master admins.
		if !org.Active {
			return nil, autherr.NotFound("organization not found")
		}
		sc.TargetOrg = org
	}

	if customerID != "" {
		customer, err := b.users.GetByID(ctx, customerID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return nil, autherr.NotFound("customer not found")
			}
			return nil, fmt.Errorf("load customer %s: %w", customerID, err)
		}

		if sc.TargetOrg != nil {
			if customer.OrganizationID != sc.TargetOrg.ID {
				return nil, autherr.BadRequest("customer does not belong to the specified tenant")
			}
		} else if customer.OrganizationID != "" {
			// Fill the tenant from the customer's own organization.
			org, err := b.orgs.GetByID(ctx, customer.OrganizationID)
			if err != nil {
				if errors.Is(err, directory.ErrOrganizationNotFound) {
					return nil, autherr.NotFound("organization not found")
				}
				return nil, fmt.Errorf("load organization %s: %w", customer.OrganizationID, err)
			}
			if !org.Active {
				return nil, autherr.NotFound("organization not found")
			}
			sc.TargetOrg = org
		}
		sc.TargetCustomer = customer
	}

	b.auditor.Record(ctx, audit.Entry{
		ActorUserID:    actor.ID,
		TargetUserID:   sc.CustomerID(),
		OrganizationID: sc.OrganizationID(),
		Action:         audit.ActionImpersonation,
		Detail:         fmt.Sprintf("tenant_id=%s customer_id=%s", tenantID, customerID),
	})
	return sc, nil
}
