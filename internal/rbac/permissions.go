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

package rbac

// Permission is an opaque capability string. The set is closed; callers use
// only these constants.
type Permission string

const (
	PermDealRead          Permission = "DEAL_READ"
	PermDealWrite         Permission = "DEAL_WRITE"
	PermDocumentRead      Permission = "DOCUMENT_READ"
	PermDocumentWrite     Permission = "DOCUMENT_WRITE"
	PermDocumentAdmin     Permission = "DOCUMENT_ADMIN"
	PermBillingManage     Permission = "BILLING_MANAGE"
	PermUserManage        Permission = "USER_MANAGE"
	PermMasterImpersonate Permission = "MASTER_IMPERSONATE"
	PermAuditRead         Permission = "AUDIT_READ"
)

// rolePermissions is fixed at build time. Changing a role's capabilities is
// a code change, not a data change.
var rolePermissions = map[Role][]Permission{
	RoleSolo: {
		PermDealRead,
		PermDealWrite,
		PermDocumentRead,
		PermDocumentWrite,
		PermBillingManage,
	},
	RoleGrowth: {
		PermDealRead,
		PermDealWrite,
		PermDocumentRead,
		PermDocumentWrite,
		PermBillingManage,
		PermUserManage,
	},
	RoleEnterprise: {
		PermDealRead,
		PermDealWrite,
		PermDocumentRead,
		PermDocumentWrite,
		PermDocumentAdmin,
		PermBillingManage,
		PermUserManage,
	},
	RoleAdmin: {
		PermDealRead,
		PermDealWrite,
		PermDocumentRead,
		PermDocumentWrite,
		PermDocumentAdmin,
		PermBillingManage,
		PermUserManage,
		PermAuditRead,
	},
	RoleMasterAdmin: {
		PermDealRead,
		PermDealWrite,
		PermDocumentRead,
		PermDocumentWrite,
		PermDocumentAdmin,
		PermBillingManage,
		PermUserManage,
		PermMasterImpersonate,
		PermAuditRead,
	},
}

// PermissionsFor returns the permission set for a role. The returned slice
// is a copy; callers may not mutate the table through it.
func PermissionsFor(r Role) []Permission {
	perms := rolePermissions[r]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether the role's fixed permission set contains p.
func HasPermission(r Role, p Permission) bool {
	for _, perm := range rolePermissions[r] {
		if perm == p {
			return true
		}
	}
	return false
}
