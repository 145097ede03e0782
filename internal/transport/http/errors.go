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
	"log/slog"
	"net/http"

	"github.com/dealroomhq/dealroom/internal/autherr"
	"github.com/dealroomhq/dealroom/internal/observability/logger"
)

// errorDetail is the wire shape shared by every failure response.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Detail errorDetail `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Detail: errorDetail{Code: code, Message: message}})
}

// statusForKind maps the domain error taxonomy to HTTP. This is the only
// place where authorization failures become status codes; inner layers
// never see HTTP.
func statusForKind(kind autherr.Kind) int {
	switch kind {
	case autherr.KindUnauthorized:
		return http.StatusUnauthorized
	case autherr.KindForbiddenRole, autherr.KindForbiddenFeature, autherr.KindForbiddenPermission:
		return http.StatusForbidden
	case autherr.KindNotFound:
		return http.StatusNotFound
	case autherr.KindBadRequest:
		return http.StatusBadRequest
	case autherr.KindConflict:
		return http.StatusConflict
	case autherr.KindTierLookup:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondAuthError translates a service-layer error into a response. Feature
// denials additionally carry the minimum tier in X-Required-Tier so clients
// can render upgrade prompts without parsing the message.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	authErr, ok := autherr.As(err)
	if !ok {
		slog.ErrorContext(r.Context(), "unhandled error", logger.Error(err), logger.Path(r.URL.Path))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	if authErr.Kind == autherr.KindForbiddenFeature && authErr.RequiredTier != "" {
		w.Header().Set("X-Required-Tier", authErr.RequiredTier)
	}
	respondError(w, statusForKind(authErr.Kind), authErr.Code(), authErr.Message)
}
