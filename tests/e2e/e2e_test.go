//go:build e2e

package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("DEALROOM_API_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"

	// Must match the running server's IDENTITY_SIGNING_KEY and
	// IDENTITY_WEBHOOK_SECRET.
	signingKey    = []byte(getEnv("DEALROOM_E2E_SIGNING_KEY", "e2e-signing-key"))
	webhookSecret = []byte(getEnv("DEALROOM_E2E_WEBHOOK_SECRET", "e2e-webhook-secret"))
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// TestClient sends authenticated requests as one user.
type TestClient struct {
	httpClient *http.Client
	token      string
}

func NewTestClient(t *testing.T, subject, orgID, role string) *TestClient {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      subject,
		"org_id":   orgID,
		"org_role": role,
		"iss":      "https://identity.e2e.test",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	})
	signed, err := token.SignedString(signingKey)
	require.NoError(t, err)

	return &TestClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      signed,
	}
}

func (c *TestClient) Do(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

// sendWebhook posts a signed identity provider event.
func sendWebhook(t *testing.T, payload string) *http.Response {
	t.Helper()

	mac := hmac.New(sha256.New, webhookSecret)
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest("POST", baseURL+"/webhooks/identity", bytes.NewBufferString(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestE2E_Workflows(t *testing.T) {
	suffix := time.Now().Unix()

	orgA := fmt.Sprintf("org_e2e_a_%d", suffix)
	orgB := fmt.Sprintf("org_e2e_b_%d", suffix)
	subjA := fmt.Sprintf("subj_e2e_a_%d", suffix)
	subjB := fmt.Sprintf("subj_e2e_b_%d", suffix)
	subjMaster := fmt.Sprintf("subj_e2e_master_%d", suffix)

	var dealAID, dealBID string

	// 1. Provisioning Flow: organizations and users arrive via webhooks.
	t.Run("Provisioning Flow", func(t *testing.T) {
		for _, payload := range []string{
			fmt.Sprintf(`{"type":"organization.created","data":{"id":%q,"name":"E2E Org A","public_metadata":{"subscription_tier":"starter"}}}`, orgA),
			fmt.Sprintf(`{"type":"organization.created","data":{"id":%q,"name":"E2E Org B","public_metadata":{"subscription_tier":"premium"}}}`, orgB),
			fmt.Sprintf(`{"type":"user.created","data":{"id":%q,"email_address":"a-%d@e2e.test","first_name":"Alice","public_metadata":{"role":"solo"}}}`, subjA, suffix),
			fmt.Sprintf(`{"type":"user.created","data":{"id":%q,"email_address":"b-%d@e2e.test","first_name":"Bob","public_metadata":{"role":"solo"}}}`, subjB, suffix),
			fmt.Sprintf(`{"type":"user.created","data":{"id":%q,"email_address":"ops-%d@e2e.test","first_name":"Ops","public_metadata":{"role":"master_admin"}}}`, subjMaster, suffix),
			fmt.Sprintf(`{"type":"organizationMembership.created","data":{"organization":{"id":%q},"public_user_data":{"user_id":%q}}}`, orgA, subjA),
			fmt.Sprintf(`{"type":"organizationMembership.created","data":{"organization":{"id":%q},"public_user_data":{"user_id":%q}}}`, orgB, subjB),
		} {
			resp := sendWebhook(t, payload)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}

		// Unsigned events are rejected.
		req, _ := http.NewRequest("POST", baseURL+"/webhooks/identity",
			bytes.NewBufferString(`{"type":"user.created","data":{}}`))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	// 2. Deal Flow: each tenant works inside its own deals.
	t.Run("Deal Flow", func(t *testing.T) {
		clientA := NewTestClient(t, subjA, orgA, "solo")
		clientB := NewTestClient(t, subjB, orgB, "solo")

		resp, err := clientA.Do("POST", apiBase+"/deals", map[string]string{"name": "Project Atlas"}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var dealA struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&dealA))
		resp.Body.Close()
		dealAID = dealA.ID

		resp, err = clientB.Do("POST", apiBase+"/deals", map[string]string{"name": "Project Borealis"}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var dealB struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&dealB))
		resp.Body.Close()
		dealBID = dealB.ID

		// Upload a document into deal A.
		resp, err = clientA.Do("POST", apiBase+"/deals/"+dealAID+"/documents", map[string]any{
			"name":         "cim.pdf",
			"content_type": "application/pdf",
			"size_bytes":   2048,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	})

	// 3. Tenant Isolation Flow: foreign resources read as absent.
	t.Run("Tenant Isolation Flow", func(t *testing.T) {
		require.NotEmpty(t, dealBID)
		clientA := NewTestClient(t, subjA, orgA, "solo")

		resp, err := clientA.Do("GET", apiBase+"/deals/"+dealBID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body struct {
			Detail struct {
				Code string `json:"code"`
			} `json:"detail"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, "not_found", body.Detail.Code)

		// The impersonation headers are inert for regular users.
		resp, err = clientA.Do("GET", apiBase+"/deals/"+dealBID, nil, map[string]string{
			"X-Master-Tenant-Id": orgB,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	// 4. Master Admin Flow: support staff cross tenants under audit.
	t.Run("Master Admin Flow", func(t *testing.T) {
		require.NotEmpty(t, dealBID)
		master := NewTestClient(t, subjMaster, "", "master_admin")

		resp, err := master.Do("GET", apiBase+"/deals/"+dealBID, nil, map[string]string{
			"X-Master-Tenant-Id": orgB,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		// Without a tenant header there is no scope to list in.
		resp, err = master.Do("GET", apiBase+"/deals", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	// 5. Entitlement Flow: starter tenants are told what to upgrade to.
	t.Run("Entitlement Flow", func(t *testing.T) {
		clientA := NewTestClient(t, subjA, orgA, "solo")
		clientB := NewTestClient(t, subjB, orgB, "solo")

		resp, err := clientA.Do("POST", apiBase+"/podcasts/episodes", map[string]string{"title": "Ep 1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "professional", resp.Header.Get("X-Required-Tier"))
		resp.Body.Close()

		resp, err = clientB.Do("POST", apiBase+"/podcasts/episodes", map[string]string{"title": "Ep 1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	})
}
