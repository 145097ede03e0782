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

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// defaultEmitActions is the minimum outbound set. Security teams watch for
// cross-tenant probing first.
var defaultEmitActions = []Action{ActionResourceScopeViolation}

// webhookPayload is the outbound JSON shape.
type webhookPayload struct {
	Action         Action         `json:"action"`
	ActorUserID    string         `json:"actor_user_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Detail         string         `json:"detail,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// WebhookEmitter posts selected audit actions to an external HTTP endpoint.
// Emission runs off the request path: a failed or cancelled delivery is
// retried once, then dropped with a local log.
type WebhookEmitter struct {
	url     string
	client  *http.Client
	actions map[Action]bool
	wg      sync.WaitGroup
}

// NewWebhookEmitter creates an emitter for the given URL. With no explicit
// actions the default set (resource scope violations) is used.
func NewWebhookEmitter(url string, actions ...Action) *WebhookEmitter {
	if len(actions) == 0 {
		actions = defaultEmitActions
	}
	set := make(map[Action]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return &WebhookEmitter{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		actions: set,
	}
}

// Emit schedules delivery of the entry if its action is selected. Returns
// immediately.
func (e *WebhookEmitter) Emit(entry Entry) {
	if !e.actions[entry.Action] {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(entry)
	}()
}

// Flush waits for in-flight deliveries. Used on shutdown and in tests.
func (e *WebhookEmitter) Flush() {
	e.wg.Wait()
}

func (e *WebhookEmitter) deliver(entry Entry) {
	body, err := json.Marshal(webhookPayload{
		Action:         entry.Action,
		ActorUserID:    entry.ActorUserID,
		OrganizationID: entry.OrganizationID,
		Detail:         entry.Detail,
		Metadata:       entry.Metadata,
		Timestamp:      entry.CreatedAt,
	})
	if err != nil {
		slog.Error("audit webhook marshal failed", slog.Any("error", err))
		return
	}

	// One retry, then drop.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = e.post(body); lastErr == nil {
			return
		}
	}
	slog.Error("audit webhook delivery dropped",
		slog.String("action", string(entry.Action)),
		slog.String("url", e.url),
		slog.Any("error", lastErr),
	)
}

func (e *WebhookEmitter) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
