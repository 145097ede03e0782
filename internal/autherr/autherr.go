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

// Package autherr defines the kinded errors raised by the authorization
// core. Guards raise these; the HTTP transport is the single place where
// kinds become statuses.
package autherr

import (
	"errors"
	"fmt"
)

// Kind classifies an authorization failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbiddenRole
	KindForbiddenFeature
	KindForbiddenPermission
	KindNotFound
	KindBadRequest
	KindConflict
	KindTierLookup
)

// kindCodes are the machine-readable codes carried in response bodies.
var kindCodes = map[Kind]string{
	KindUnauthorized:        "unauthorized",
	KindForbiddenRole:       "forbidden_role",
	KindForbiddenFeature:    "forbidden_feature",
	KindForbiddenPermission: "forbidden_permission",
	KindNotFound:            "not_found",
	KindBadRequest:          "bad_request",
	KindConflict:            "conflict",
	KindTierLookup:          "tier_lookup_failed",
}

// Error is a kinded authorization failure. RequiredTier is populated only on
// feature denials so the transport can emit the X-Required-Tier header.
type Error struct {
	Kind         Kind
	Message      string
	RequiredTier string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the machine-readable code for the error kind.
func (e *Error) Code() string {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return "internal_error"
}

// Unauthorized reports a missing, invalid or expired credential, or an
// inactive user.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// ForbiddenRole reports an actor whose role does not satisfy the guard.
func ForbiddenRole(message string) *Error {
	return &Error{Kind: KindForbiddenRole, Message: message}
}

// ForbiddenFeature reports a feature outside the organization's tier.
func ForbiddenFeature(message, requiredTier string) *Error {
	return &Error{Kind: KindForbiddenFeature, Message: message, RequiredTier: requiredTier}
}

// ForbiddenPermission reports a missing named permission.
func ForbiddenPermission(message string) *Error {
	return &Error{Kind: KindForbiddenPermission, Message: message}
}

// NotFound reports an absent resource. Cross-tenant access is deliberately
// reported through this kind so existence is never revealed.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// BadRequest reports missing organization context or malformed impersonation
// headers.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Conflict reports a unique-constraint violation the caller must resolve.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// TierLookup reports a non-recoverable identity provider tier fetch failure.
func TierLookup(err error) *Error {
	return &Error{Kind: KindTierLookup, Message: "subscription tier lookup failed", Err: err}
}

// KindOf extracts the kind from an error chain, KindUnknown when the chain
// carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As unwraps err into *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
