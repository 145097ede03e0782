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

package authn_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroomhq/dealroom/internal/authn"
)

var testKey = []byte("test-signing-key-32-bytes-long!!")

func signToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newVerifier(t *testing.T) *authn.Verifier {
	t.Helper()
	v, err := authn.NewVerifier(testKey, "HS256")
	require.NoError(t, err)
	return v
}

func kindOf(t *testing.T, err error) authn.ErrorKind {
	t.Helper()
	var authErr *authn.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	return authErr.Kind
}

func TestVerifyValidToken(t *testing.T) {
	v := newVerifier(t)
	token := signToken(t, testKey, jwt.MapClaims{
		"sub":      "user_2abc",
		"org_id":   "org_9xyz",
		"org_role": "admin",
		"sid":      "sess_123",
		"iss":      "https://clerk.example.com",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"custom":   "kept-verbatim",
	})

	claims, err := v.VerifyAuthorizationHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.Subject)
	assert.Equal(t, "org_9xyz", claims.OrgID)
	assert.Equal(t, "admin", claims.OrgRole)
	assert.Equal(t, "sess_123", claims.SessionID)
	assert.Equal(t, "https://clerk.example.com", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	assert.Equal(t, "kept-verbatim", claims.Raw["custom"])
}

func TestVerifyMissingHeader(t *testing.T) {
	v := newVerifier(t)
	_, err := v.VerifyAuthorizationHeader("")
	assert.Equal(t, authn.ErrMissing, kindOf(t, err))
}

func TestVerifyMalformedHeader(t *testing.T) {
	v := newVerifier(t)
	for _, header := range []string{"Bearer", "Basic abc123", "Bearer "} {
		_, err := v.VerifyAuthorizationHeader(header)
		assert.Equal(t, authn.ErrMalformed, kindOf(t, err), "header %q", header)
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	v := newVerifier(t)
	_, err := v.VerifyAuthorizationHeader("Bearer not-a-jwt")
	assert.Equal(t, authn.ErrMalformed, kindOf(t, err))
}

func TestVerifyWrongKey(t *testing.T) {
	v := newVerifier(t)
	token := signToken(t, []byte("another-key-entirely-32-bytes!!!"), jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err := v.VerifyAuthorizationHeader("Bearer " + token)
	assert.Equal(t, authn.ErrInvalidSignature, kindOf(t, err))
}

func TestVerifyExpiredToken(t *testing.T) {
	v := newVerifier(t)
	token := signToken(t, testKey, jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	_, err := v.VerifyAuthorizationHeader("Bearer " + token)
	assert.Equal(t, authn.ErrExpired, kindOf(t, err))
}

func TestNewVerifierRejectsEmptyKey(t *testing.T) {
	_, err := authn.NewVerifier(nil, "HS256")
	assert.Error(t, err)
}

func TestNewVerifierRejectsUnsupportedAlg(t *testing.T) {
	_, err := authn.NewVerifier(testKey, "none")
	assert.Error(t, err)
}

func TestWebhookVerify(t *testing.T) {
	secret := []byte("whsec_shared")
	v := authn.NewWebhookVerifier(secret)
	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)

	assert.True(t, v.Verify(body, v.Sign(body)))
	assert.False(t, v.Verify(body, v.Sign([]byte("other body"))))
	assert.False(t, v.Verify(body, "zz-not-hex"))
	assert.False(t, v.Verify(body, ""))
}

func TestWebhookVerifyFailsClosedWithoutSecret(t *testing.T) {
	v := authn.NewWebhookVerifier(nil)
	body := []byte(`{}`)
	assert.False(t, v.Verify(body, v.Sign(body)))
}
