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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dealroomhq/dealroom/internal/deal"
	"github.com/dealroomhq/dealroom/internal/resource"
)

// DealRepository implements deal.Repository. Lookups are by primary key;
// tenant scoping is the guard's job, not the store's.
type DealRepository struct {
	db *DB
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(db *DB) *DealRepository {
	return &DealRepository{db: db}
}

// GetDeal retrieves a deal by id.
func (r *DealRepository) GetDeal(ctx context.Context, id string) (*deal.Deal, error) {
	var d deal.Deal
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, status, created_by, created_at, updated_at
		FROM deals
		WHERE id = $1
	`, id).Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &d, nil
}

// ListDeals returns the organization's deals, newest first.
func (r *DealRepository) ListDeals(ctx context.Context, organizationID string) ([]*deal.Deal, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_id, name, status, created_by, created_at, updated_at
		FROM deals
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []*deal.Deal
	for rows.Next() {
		var d deal.Deal
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deals: %w", err)
	}
	return deals, nil
}

// CreateDeal inserts a deal.
func (r *DealRepository) CreateDeal(ctx context.Context, d *deal.Deal) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO deals (id, organization_id, name, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.OrganizationID, d.Name, d.Status, d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (r *DealRepository) GetDocument(ctx context.Context, id string) (*deal.Document, error) {
	var d deal.Document
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_id, deal_id, folder_id, name, content_type, size_bytes, uploaded_by, created_at
		FROM documents
		WHERE id = $1
	`, id).Scan(&d.ID, &d.OrganizationID, &d.DealID, &d.FolderID, &d.Name, &d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns a deal's documents, newest first.
func (r *DealRepository) ListDocuments(ctx context.Context, dealID string) ([]*deal.Document, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_id, deal_id, folder_id, name, content_type, size_bytes, uploaded_by, created_at
		FROM documents
		WHERE deal_id = $1
		ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*deal.Document
	for rows.Next() {
		var d deal.Document
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.DealID, &d.FolderID, &d.Name, &d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// CreateDocument inserts a document.
func (r *DealRepository) CreateDocument(ctx context.Context, d *deal.Document) error {
	d.CreatedAt = time.Now().UTC()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO documents (id, organization_id, deal_id, folder_id, name, content_type, size_bytes, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.ID, d.OrganizationID, d.DealID, d.FolderID, d.Name, d.ContentType, d.SizeBytes, d.UploadedBy, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and its grants.
func (r *DealRepository) DeleteDocument(ctx context.Context, id string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_permissions WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete document grants: %w", err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrNotFound
	}
	return tx.Commit(ctx)
}

// GetFolder retrieves a folder by id.
func (r *DealRepository) GetFolder(ctx context.Context, id string) (*deal.Folder, error) {
	var f deal.Folder
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_id, deal_id, parent_folder_id, name, created_at
		FROM folders
		WHERE id = $1
	`, id).Scan(&f.ID, &f.OrganizationID, &f.DealID, &f.ParentID, &f.Name, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &f, nil
}

// GetFinancialConnection retrieves a financial connection by id.
func (r *DealRepository) GetFinancialConnection(ctx context.Context, id string) (*deal.FinancialConnection, error) {
	var c deal.FinancialConnection
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_id, deal_id, provider, status, created_at
		FROM financial_connections
		WHERE id = $1
	`, id).Scan(&c.ID, &c.OrganizationID, &c.DealID, &c.Provider, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get financial connection: %w", err)
	}
	return &c, nil
}

// GetTask retrieves a task by id.
func (r *DealRepository) GetTask(ctx context.Context, id string) (*deal.Task, error) {
	var t deal.Task
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_id, deal_id, title, status, assignee_user_id, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`, id).Scan(&t.ID, &t.OrganizationID, &t.DealID, &t.Title, &t.Status, &t.AssigneeUserID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// Accessors adapt the repository to the guard's registry, one per kind.

type dealAccessor struct{ repo *DealRepository }

func (a dealAccessor) Kind() resource.Kind { return resource.KindDeal }
func (a dealAccessor) LoadByID(ctx context.Context, id string) (resource.Entity, error) {
	return a.repo.GetDeal(ctx, id)
}

type documentAccessor struct{ repo *DealRepository }

func (a documentAccessor) Kind() resource.Kind { return resource.KindDocument }
func (a documentAccessor) LoadByID(ctx context.Context, id string) (resource.Entity, error) {
	return a.repo.GetDocument(ctx, id)
}

type folderAccessor struct{ repo *DealRepository }

func (a folderAccessor) Kind() resource.Kind { return resource.KindFolder }
func (a folderAccessor) LoadByID(ctx context.Context, id string) (resource.Entity, error) {
	return a.repo.GetFolder(ctx, id)
}

type financialConnectionAccessor struct{ repo *DealRepository }

func (a financialConnectionAccessor) Kind() resource.Kind {
	return resource.KindFinancialConnection
}
func (a financialConnectionAccessor) LoadByID(ctx context.Context, id string) (resource.Entity, error) {
	return a.repo.GetFinancialConnection(ctx, id)
}

type taskAccessor struct{ repo *DealRepository }

func (a taskAccessor) Kind() resource.Kind { return resource.KindTask }
func (a taskAccessor) LoadByID(ctx context.Context, id string) (resource.Entity, error) {
	return a.repo.GetTask(ctx, id)
}

// RegisterAccessors wires every guarded kind into the registry.
func (r *DealRepository) RegisterAccessors(registry *resource.Registry) {
	registry.Register(dealAccessor{r})
	registry.Register(documentAccessor{r})
	registry.Register(folderAccessor{r})
	registry.Register(financialConnectionAccessor{r})
	registry.Register(taskAccessor{r})
}
