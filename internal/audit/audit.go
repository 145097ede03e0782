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

// Package audit is the append-only trail of authorization decisions and
// scope changes. Entries are written synchronously with the decision; the
// optional outbound webhook is best-effort and never blocks a response.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealroomhq/dealroom/internal/observability/metrics"
)

// Action enumerates the auditable authorization events.
type Action string

const (
	ActionRoleChange            Action = "role_change"
	ActionUserDeleted           Action = "user_deleted"
	ActionUserRestored          Action = "user_restored"
	ActionClaimMismatch         Action = "claim_mismatch"
	ActionPermissionDenied      Action = "permission_denied"
	ActionImpersonation         Action = "impersonation"
	ActionResourceScopeViolation Action = "resource_scope_violation"
)

// redactedClaimKeys is the fixed projection applied to claim snapshots
// before storage. Everything else, PII included, is dropped.
var redactedClaimKeys = []string{"sub", "org_id", "org_role", "sid", "iss", "session_id"}

// Entry is one append-only audit row.
type Entry struct {
	ID             string         `json:"id"`
	ActorUserID    string         `json:"actor_user_id,omitempty"`
	TargetUserID   string         `json:"target_user_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Action         Action         `json:"action"`
	Detail         string         `json:"detail,omitempty"`
	Claims         map[string]any `json:"claims,omitempty"` // redacted snapshot
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Filter narrows a List query. Zero values mean "any".
type Filter struct {
	OrganizationID string
	ActorUserID    string
	Action         Action
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}

// Recorder is the write-side interface guards depend on.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// RedactClaims projects a raw claim set onto the fixed key subset.
func RedactClaims(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any)
	for _, key := range redactedClaimKeys {
		if v, ok := raw[key]; ok {
			out[key] = v
		}
	}
	return out
}

// Sink writes entries to the store, mirrors them to the structured log, and
// hands selected actions to the outbound emitter.
type Sink struct {
	store   Store
	emitter *WebhookEmitter
	metrics *metrics.AuthorizationMetrics
}

// NewSink creates a sink. emitter may be nil when no webhook is configured.
func NewSink(store Store, emitter *WebhookEmitter) *Sink {
	return &Sink{store: store, emitter: emitter}
}

// WithMetrics attaches the access-layer instrument set.
func (s *Sink) WithMetrics(m *metrics.AuthorizationMetrics) *Sink {
	s.metrics = m
	return s
}

// Record appends one entry. The id, timestamp and claim redaction are
// applied here so callers pass raw material. Store failures are logged, not
// returned: an audit write must never turn an authorization decision into a
// 500 after the decision itself succeeded.
func (s *Sink) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Claims = RedactClaims(entry.Claims)

	if err := s.store.Append(ctx, &entry); err != nil {
		slog.ErrorContext(ctx, "audit append failed",
			slog.String("action", string(entry.Action)),
			slog.String("actor_user_id", entry.ActorUserID),
			slog.Any("error", err),
		)
	}

	attrs := []any{
		slog.String("component", "audit"),
		slog.String("action", string(entry.Action)),
		slog.String("actor_user_id", entry.ActorUserID),
	}
	if entry.TargetUserID != "" {
		attrs = append(attrs, slog.String("target_user_id", entry.TargetUserID))
	}
	if entry.OrganizationID != "" {
		attrs = append(attrs, slog.String("organization_id", entry.OrganizationID))
	}
	if entry.Detail != "" {
		attrs = append(attrs, slog.String("detail", entry.Detail))
	}
	slog.InfoContext(ctx, "audit_event", attrs...)

	if s.metrics != nil {
		switch entry.Action {
		case ActionPermissionDenied:
			s.metrics.Denials.Add(ctx, 1)
		case ActionResourceScopeViolation:
			s.metrics.ScopeViolations.Add(ctx, 1)
		}
	}

	if s.emitter != nil {
		s.emitter.Emit(entry)
	}
}

// List reads back entries, newest first.
func (s *Sink) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	return s.store.List(ctx, filter)
}
