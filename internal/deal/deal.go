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

// Package deal holds the M&A workspace entities that the authorization
// guard protects: deals, their document tree, financial connections and
// tasks. The package carries data and persistence contracts only; access
// decisions live elsewhere.
package deal

import (
	"context"
	"time"
)

// Deal is one M&A transaction workspace owned by a single organization.
type Deal struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *Deal) EntityID() string            { return d.ID }
func (d *Deal) OwnerOrganizationID() string { return d.OrganizationID }
func (d *Deal) ParentDealID() string        { return "" }

// Document is a file inside a deal, optionally placed in a folder.
type Document struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	DealID         string    `json:"deal_id"`
	FolderID       string    `json:"folder_id,omitempty"`
	Name           string    `json:"name"`
	ContentType    string    `json:"content_type,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
	UploadedBy     string    `json:"uploaded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func (d *Document) EntityID() string            { return d.ID }
func (d *Document) OwnerOrganizationID() string { return d.OrganizationID }
func (d *Document) ParentDealID() string        { return d.DealID }
func (d *Document) ContainingFolderID() string  { return d.FolderID }
func (d *Document) UploadedByUserID() string    { return d.UploadedBy }

// Folder is a node of a deal's document tree. ParentID is empty at the root.
type Folder struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	DealID         string    `json:"deal_id"`
	ParentID       string    `json:"parent_id,omitempty"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

func (f *Folder) EntityID() string            { return f.ID }
func (f *Folder) OwnerOrganizationID() string { return f.OrganizationID }
func (f *Folder) ParentDealID() string        { return f.DealID }
func (f *Folder) ParentFolderID() string      { return f.ParentID }

// FinancialConnection links a deal to an external accounting system.
type FinancialConnection struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	DealID         string    `json:"deal_id,omitempty"`
	Provider       string    `json:"provider"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c *FinancialConnection) EntityID() string            { return c.ID }
func (c *FinancialConnection) OwnerOrganizationID() string { return c.OrganizationID }
func (c *FinancialConnection) ParentDealID() string        { return c.DealID }

// Task is a work item inside a deal.
type Task struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	DealID         string    `json:"deal_id,omitempty"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	AssigneeUserID string    `json:"assignee_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (t *Task) EntityID() string            { return t.ID }
func (t *Task) OwnerOrganizationID() string { return t.OrganizationID }
func (t *Task) ParentDealID() string        { return t.DealID }

// Repository persists deals and their contents. Loads are by id only; all
// tenant filtering happens in the authorization layer, which is why the
// queries deliberately carry no organization predicate.
type Repository interface {
	GetDeal(ctx context.Context, id string) (*Deal, error)
	ListDeals(ctx context.Context, organizationID string) ([]*Deal, error)
	CreateDeal(ctx context.Context, d *Deal) error

	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, dealID string) ([]*Document, error)
	CreateDocument(ctx context.Context, d *Document) error
	DeleteDocument(ctx context.Context, id string) error

	GetFolder(ctx context.Context, id string) (*Folder, error)

	GetFinancialConnection(ctx context.Context, id string) (*FinancialConnection, error)
	GetTask(ctx context.Context, id string) (*Task, error)
}
