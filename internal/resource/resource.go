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

// Package resource enforces that every accessed entity belongs to the
// request's effective organization, and that documents and folders are
// touched only at or above the caller's granted permission level. New
// resource kinds register one Accessor; the guard logic is kind-agnostic.
package resource

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by accessors for absent entities.
var ErrNotFound = errors.New("resource not found")

// Kind names a guarded resource type.
type Kind string

const (
	KindDeal                Kind = "deal"
	KindDocument            Kind = "document"
	KindFolder              Kind = "folder"
	KindFinancialConnection Kind = "financial_connection"
	KindTask                Kind = "task"
)

// Entity is the minimal surface the guard needs from any loaded resource.
type Entity interface {
	EntityID() string
	OwnerOrganizationID() string
	// ParentDealID is empty for resources that are not deal-scoped.
	ParentDealID() string
}

// Document is implemented by document entities; the guard uses it for the
// permission-level check and the uploader ownership rule.
type Document interface {
	Entity
	ContainingFolderID() string
	UploadedByUserID() string
}

// Folder is implemented by folder entities.
type Folder interface {
	Entity
	ParentFolderID() string
}

// Accessor loads entities of one kind.
type Accessor interface {
	Kind() Kind
	LoadByID(ctx context.Context, id string) (Entity, error)
}

// Registry maps kinds to accessors. Populated at startup, read-only after.
type Registry struct {
	accessors map[Kind]Accessor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{accessors: make(map[Kind]Accessor)}
}

// Register adds an accessor. Registering a kind twice is a programmer error.
func (r *Registry) Register(a Accessor) {
	if _, dup := r.accessors[a.Kind()]; dup {
		panic(fmt.Sprintf("resource: accessor for kind %q registered twice", a.Kind()))
	}
	r.accessors[a.Kind()] = a
}

// Accessor returns the accessor for a kind.
func (r *Registry) Accessor(k Kind) (Accessor, bool) {
	a, ok := r.accessors[k]
	return a, ok
}
