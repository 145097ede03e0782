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

// Package authn verifies the credentials that accompany a request: the
// bearer token on API calls and the HMAC signature on identity provider
// webhooks. Verification is purely cryptographic plus structural extraction;
// this package never touches the database.
package authn

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrorKind classifies a credential failure.
type ErrorKind string

const (
	ErrMissing          ErrorKind = "missing"
	ErrMalformed        ErrorKind = "malformed"
	ErrInvalidSignature ErrorKind = "invalid_signature"
	ErrExpired          ErrorKind = "expired"
)

// AuthError is a credential verification failure.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("credential %s", e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Claims is the immutable per-request snapshot extracted from a verified
// token. Raw preserves every claim verbatim for downstream audit redaction.
type Claims struct {
	Subject   string
	OrgID     string
	OrgRole   string
	SessionID string
	Issuer    string
	ExpiresAt time.Time
	Raw       map[string]any
}

// Verifier validates bearer tokens against a configured signing key and
// algorithm.
type Verifier struct {
	alg    string
	hmac   []byte
	rsaPub *rsa.PublicKey
}

// NewVerifier builds a verifier for the configured algorithm. HS* algorithms
// treat the key as the shared secret; RS* algorithms expect a PEM-encoded
// public key.
func NewVerifier(signingKey []byte, alg string) (*Verifier, error) {
	v := &Verifier{alg: alg}
	switch {
	case strings.HasPrefix(alg, "HS"):
		if len(signingKey) == 0 {
			return nil, errors.New("authn: signing key is required")
		}
		v.hmac = signingKey
	case strings.HasPrefix(alg, "RS"):
		pub, err := jwt.ParseRSAPublicKeyFromPEM(signingKey)
		if err != nil {
			return nil, fmt.Errorf("authn: parse RSA public key: %w", err)
		}
		v.rsaPub = pub
	default:
		return nil, fmt.Errorf("authn: unsupported JWT algorithm %q", alg)
	}
	return v, nil
}

// VerifyAuthorizationHeader validates a raw Authorization header value and
// returns the claims snapshot.
func (v *Verifier) VerifyAuthorizationHeader(header string) (*Claims, error) {
	if header == "" {
		return nil, &AuthError{Kind: ErrMissing}
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, &AuthError{Kind: ErrMalformed, Err: errors.New("expected Bearer token")}
	}

	return v.VerifyToken(parts[1])
}

// VerifyToken validates a bare token string.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.alg}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &AuthError{Kind: ErrExpired, Err: err}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, &AuthError{Kind: ErrInvalidSignature, Err: err}
		default:
			return nil, &AuthError{Kind: ErrMalformed, Err: err}
		}
	}

	return snapshot(claims), nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	if v.hmac != nil {
		return v.hmac, nil
	}
	return v.rsaPub, nil
}

// snapshot extracts the structured fields and keeps the raw claim set for
// redacted audit capture. Unknown fields pass through untouched.
func snapshot(claims jwt.MapClaims) *Claims {
	raw := make(map[string]any, len(claims))
	for k, val := range claims {
		raw[k] = val
	}

	c := &Claims{
		Subject:   stringClaim(claims, "sub"),
		OrgID:     stringClaim(claims, "org_id"),
		OrgRole:   stringClaim(claims, "org_role"),
		SessionID: stringClaim(claims, "sid"),
		Issuer:    stringClaim(claims, "iss"),
		Raw:       raw,
	}
	if c.SessionID == "" {
		c.SessionID = stringClaim(claims, "session_id")
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
