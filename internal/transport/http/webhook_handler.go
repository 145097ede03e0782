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

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/observability/logger"
)

// webhookEvent is the identity provider's event envelope.
type webhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type webhookUserData struct {
	ID             string `json:"id"`
	Email          string `json:"email_address"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	PublicMetadata struct {
		Role string `json:"role"`
	} `json:"public_metadata"`
}

type webhookSessionData struct {
	UserID string `json:"user_id"`
}

type webhookMembershipData struct {
	Organization struct {
		ID string `json:"id"`
	} `json:"organization"`
	PublicUserData struct {
		UserID string `json:"user_id"`
	} `json:"public_user_data"`
}

type webhookOrgData struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PublicMetadata struct {
		SubscriptionTier string `json:"subscription_tier"`
	} `json:"public_metadata"`
}

// IdentityWebhook applies identity provider events to the directory. The
// body signature is checked before anything is parsed; unsigned deliveries
// are rejected outright. Unknown event types are acknowledged so the
// provider does not retry them forever.
func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Unreadable request body")
		return
	}

	if !h.webhookVerifier.Verify(body, r.Header.Get(h.webhookSigHeader)) {
		slog.WarnContext(r.Context(), "rejected webhook with bad signature", logger.RemoteAddr(r.RemoteAddr))
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid webhook signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Malformed webhook payload")
		return
	}

	if err := h.applyWebhookEvent(r, event); err != nil {
		slog.ErrorContext(r.Context(), "failed to apply webhook event",
			logger.Error(err), logger.String("event_type", event.Type))
		// Conflicts and other classified failures keep their status so the
		// provider's retry behavior matches the cause.
		if ae, ok := autherr.As(err); ok {
			respondAuthError(w, r, ae)
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) applyWebhookEvent(r *http.Request, event webhookEvent) error {
	ctx := r.Context()

	switch event.Type {
	case "user.created", "user.updated":
		var data webhookUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		_, err := h.directory.UpsertUserFromIdentity(ctx, directory.UserPayload{
			SubjectID: data.ID,
			Email:     data.Email,
			FirstName: data.FirstName,
			LastName:  data.LastName,
			AvatarURL: data.ImageURL,
			Role:      data.PublicMetadata.Role,
		})
		return err

	case "user.deleted":
		var data webhookUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		// Deletes can arrive before the create was ever seen.
		return ignoreNotFound(h.directory.MarkUserInactive(ctx, data.ID))

	case "session.created":
		var data webhookSessionData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		return ignoreNotFound(h.directory.RecordLogin(ctx, data.UserID, time.Now().UTC()))

	case "organizationMembership.created", "organizationMembership.updated":
		var data webhookMembershipData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		// Memberships can arrive before the user create was seen.
		return ignoreNotFound(h.directory.AttachUserToOrganization(ctx, data.PublicUserData.UserID, data.Organization.ID))

	case "organization.created", "organization.updated":
		var data webhookOrgData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		org, err := h.directory.UpsertOrganizationFromIdentity(ctx, directory.OrganizationPayload{
			ID:   data.ID,
			Name: data.Name,
			Tier: data.PublicMetadata.SubscriptionTier,
		})
		if err != nil {
			return err
		}
		// The update may carry a tier change; drop the cached value so the
		// next check sees the new plan.
		h.tiers.Invalidate(ctx, org.ID)
		return nil

	case "organization.deleted":
		var data webhookOrgData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if err := ignoreNotFound(h.directory.DeactivateOrganization(ctx, data.ID)); err != nil {
			return err
		}
		h.tiers.Invalidate(ctx, data.ID)
		return nil

	default:
		slog.DebugContext(ctx, "ignoring webhook event", logger.String("event_type", event.Type))
		return nil
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, directory.ErrUserNotFound) || errors.Is(err, directory.ErrOrganizationNotFound) {
		return nil
	}
	return err
}
