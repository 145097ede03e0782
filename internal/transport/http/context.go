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
	"context"

	"github.com/dealroomhq/dealroom/internal/authn"
	"github.com/dealroomhq/dealroom/internal/scope"
)

type contextKey string

const (
	scopeKey  contextKey = "access_scope"
	claimsKey contextKey = "claims"
)

// GetScope retrieves the resolved access scope from context. Nil on
// unauthenticated routes.
func GetScope(ctx context.Context) *scope.AccessScope {
	if val, ok := ctx.Value(scopeKey).(*scope.AccessScope); ok {
		return val
	}
	return nil
}

// GetClaims retrieves the verified token claims from context.
func GetClaims(ctx context.Context) *authn.Claims {
	if val, ok := ctx.Value(claimsKey).(*authn.Claims); ok {
		return val
	}
	return nil
}
