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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dealroomhq/dealroom/internal/audit"
)

// AuditRepository implements audit.Store on the rbac_audit_logs table.
// Rows are append-only; there is no update or delete path.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row.
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	claims, err := marshalJSONB(entry.Claims)
	if err != nil {
		return fmt.Errorf("failed to encode audit claims: %w", err)
	}
	metadata, err := marshalJSONB(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO rbac_audit_logs (
			id, actor_user_id, target_user_id, organization_id,
			action, detail, claims, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID, entry.ActorUserID, entry.TargetUserID, entry.OrganizationID,
		entry.Action, entry.Detail, claims, metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	var conditions []string
	var args []any

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.OrganizationID != "" {
		addCondition("organization_id = $%d", filter.OrganizationID)
	}
	if filter.ActorUserID != "" {
		addCondition("actor_user_id = $%d", filter.ActorUserID)
	}
	if filter.Action != "" {
		addCondition("action = $%d", filter.Action)
	}
	if !filter.Since.IsZero() {
		addCondition("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("created_at < $%d", filter.Until)
	}

	query := `
		SELECT id, actor_user_id, target_user_id, organization_id,
			action, detail, claims, metadata, created_at
		FROM rbac_audit_logs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var claims, metadata []byte
		err := rows.Scan(
			&entry.ID, &entry.ActorUserID, &entry.TargetUserID, &entry.OrganizationID,
			&entry.Action, &entry.Detail, &claims, &metadata, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := unmarshalJSONB(claims, &entry.Claims); err != nil {
			return nil, fmt.Errorf("failed to decode audit claims: %w", err)
		}
		if err := unmarshalJSONB(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return entries, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(data []byte, target *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
