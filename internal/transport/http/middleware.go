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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/authn"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/observability/logger"
)

// Tenant Context Principles:
// 1. The effective organization comes from the stored user record, never
//    from client-supplied identifiers.
// 2. Master admin override headers are honored only for master_admin actors
//    and every use is audited.
// 3. Token claims are advisory; the database is authoritative for roles.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware verifies the bearer token, resolves the stored user, and
// builds the request's access scope. Inactive and unknown users fail with
// 401 exactly like bad credentials; a deleted user's still-valid token must
// not reveal that the account ever existed.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.verifier.VerifyAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			var authErr *authn.AuthError
			if errors.As(err, &authErr) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			slog.ErrorContext(r.Context(), "token verification failed", logger.Error(err))
			respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		user, err := h.directory.GetUserBySubject(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			slog.ErrorContext(r.Context(), "user lookup failed", logger.Error(err), logger.SubjectID(claims.Subject))
			respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
			return
		}
		if !user.Active {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		// The stored role wins over whatever the token carries. A mismatch
		// is recorded once so stale sessions surface in the audit trail.
		if claims.OrgRole != "" && claims.OrgRole != string(user.Role) {
			h.auditor.Record(r.Context(), audit.Entry{
				ActorUserID:    user.ID,
				OrganizationID: user.OrganizationID,
				Action:         audit.ActionClaimMismatch,
				Detail:         "token role " + claims.OrgRole + " differs from stored role " + string(user.Role),
				Claims:         audit.RedactClaims(claims.Raw),
			})
		}

		sc, err := h.scopes.Build(r.Context(), user,
			r.Header.Get(h.masterTenantHeader),
			r.Header.Get(h.masterCustomerHeader),
		)
		if err != nil {
			respondAuthError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, scopeKey, sc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
