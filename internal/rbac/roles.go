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

import "strings"

// Role is a user's categorical permission bucket. The set is closed and
// ordered: solo < growth < enterprise < admin < master_admin.
type Role string

const (
	// RoleSolo is the entry-level customer role.
	RoleSolo Role = "solo"

	// RoleGrowth is the mid-tier customer role.
	RoleGrowth Role = "growth"

	// RoleEnterprise is the top customer role.
	RoleEnterprise Role = "enterprise"

	// RoleAdmin is an administrative role scoped to its own organization.
	RoleAdmin Role = "admin"

	// RoleMasterAdmin is the back-office role. It has no tenant of its own
	// and may impersonate any tenant via the master headers.
	RoleMasterAdmin Role = "master_admin"
)

// roleLevels is the authoritative ordering. The gap between customer roles
// and administrative roles is deliberate; new customer roles slot below 10.
var roleLevels = map[Role]int{
	RoleSolo:        1,
	RoleGrowth:      2,
	RoleEnterprise:  3,
	RoleAdmin:       10,
	RoleMasterAdmin: 20,
}

// Level returns the role's position in the hierarchy, or 0 for unknown roles.
// An unknown role therefore never satisfies any minimum.
func Level(r Role) int {
	return roleLevels[r]
}

// Valid reports whether r is one of the enumerated roles.
func Valid(r Role) bool {
	_, ok := roleLevels[r]
	return ok
}

// Normalize maps a free-form role string (e.g. from identity provider
// metadata) onto the closed enum. The boolean is false when the input does
// not name a known role.
func Normalize(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if Valid(r) {
		return r, true
	}
	return "", false
}

// HasMinRole reports whether role meets the minimum. Administrative roles
// satisfy every customer minimum by construction of the level table.
func HasMinRole(role, minimum Role) bool {
	return Level(role) >= Level(minimum)
}

// SatisfiesRole reports whether role matches required exactly. Administrative
// roles satisfy every required role.
func SatisfiesRole(role, required Role) bool {
	return role == required || IsAdmin(role)
}

// IsAdmin reports whether the role is administrative (admin or master_admin).
func IsAdmin(r Role) bool {
	return r == RoleAdmin || r == RoleMasterAdmin
}

// IsMasterAdmin reports whether the role is the back-office master role.
func IsMasterAdmin(r Role) bool {
	return r == RoleMasterAdmin
}

// AllRoles returns the enumerated roles in ascending level order.
func AllRoles() []Role {
	return []Role{RoleSolo, RoleGrowth, RoleEnterprise, RoleAdmin, RoleMasterAdmin}
}
