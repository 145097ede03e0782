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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/authn"
	"github.com/dealroomhq/dealroom/internal/deal"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/observability/logger"
	"github.com/dealroomhq/dealroom/internal/rbac"
	"github.com/dealroomhq/dealroom/internal/resource"
	"github.com/dealroomhq/dealroom/internal/scope"
	"github.com/dealroomhq/dealroom/internal/tier"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	verifier        *authn.Verifier
	webhookVerifier *authn.WebhookVerifier
	directory       *directory.Service
	scopes          *scope.Builder
	tiers           *tier.Resolver
	matrix          *entitlement.Matrix
	guard           *resource.Guard
	deals           deal.Repository
	grants          resource.GrantStore
	auditor         audit.Recorder
	audits          *audit.Sink

	masterTenantHeader   string
	masterCustomerHeader string
	webhookSigHeader     string
}

// Config wires the handler's dependencies.
type Config struct {
	Verifier        *authn.Verifier
	WebhookVerifier *authn.WebhookVerifier
	Directory       *directory.Service
	Scopes          *scope.Builder
	Tiers           *tier.Resolver
	Matrix          *entitlement.Matrix
	Guard           *resource.Guard
	Deals           deal.Repository
	Grants          resource.GrantStore
	Auditor         audit.Recorder
	Audits          *audit.Sink

	MasterTenantHeader   string
	MasterCustomerHeader string
	WebhookSigHeader     string
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg Config) *Handler {
	if cfg.MasterTenantHeader == "" {
		cfg.MasterTenantHeader = "X-Master-Tenant-Id"
	}
	if cfg.MasterCustomerHeader == "" {
		cfg.MasterCustomerHeader = "X-Master-Customer-Id"
	}
	if cfg.WebhookSigHeader == "" {
		cfg.WebhookSigHeader = "X-Webhook-Signature"
	}
	return &Handler{
		verifier:             cfg.Verifier,
		webhookVerifier:      cfg.WebhookVerifier,
		directory:            cfg.Directory,
		scopes:               cfg.Scopes,
		tiers:                cfg.Tiers,
		matrix:               cfg.Matrix,
		guard:                cfg.Guard,
		deals:                cfg.Deals,
		grants:               cfg.Grants,
		auditor:              cfg.Auditor,
		audits:               cfg.Audits,
		masterTenantHeader:   cfg.MasterTenantHeader,
		masterCustomerHeader: cfg.MasterCustomerHeader,
		webhookSigHeader:     cfg.WebhookSigHeader,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Identity provider webhooks (HMAC authenticated, no session)
	r.Post("/webhooks/identity", h.IdentityWebhook)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/me", h.GetCurrentUser)

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", h.ListDeals)
			r.Post("/", h.CreateDeal)
			r.Get("/{dealID}", h.GetDeal)
			r.Get("/{dealID}/documents", h.ListDealDocuments)
			r.Post("/{dealID}/documents", h.UploadDocument)
		})

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Get("/download", h.DownloadDocument)
			r.Delete("/", h.DeleteDocument)
			r.Route("/permissions", func(r chi.Router) {
				r.Post("/", h.GrantDocumentPermission)
				r.Delete("/{userID}", h.RevokeDocumentPermission)
			})
		})

		r.Get("/folders/{folderID}", h.GetFolder)

		r.With(h.RequirePermission(rbac.PermBillingManage)).
			Get("/billing/summary", h.BillingSummary)

		r.With(h.RequireFeature(entitlement.FeaturePodcastAudio)).
			Post("/podcasts/episodes", h.CreatePodcastEpisode)

		r.With(h.RequireFeature(entitlement.FeatureAdvancedAnalytics)).
			Get("/analytics/advanced", h.AdvancedAnalytics)

		// Administrative surface: organization admins and above.
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireMinRole(rbac.RoleAdmin))

			r.With(h.RequirePermission(rbac.PermUserManage)).
				Put("/users/{userID}/role", h.ChangeUserRole)
			r.With(h.RequirePermission(rbac.PermUserManage)).
				Delete("/users/{userID}", h.DeactivateUser)
			r.With(h.RequirePermission(rbac.PermUserManage)).
				Post("/users/{userID}/restore", h.RestoreUser)

			r.With(h.RequirePermission(rbac.PermAuditRead)).
				Get("/audit", h.ListAuditEntries)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dealroom",
	})
}

// GetCurrentUser returns the authenticated user and their effective scope.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	body := map[string]any{
		"user_id":         sc.Actor.ID,
		"email":           sc.Actor.Email,
		"role":            sc.Actor.Role,
		"organization_id": sc.Actor.OrganizationID,
	}
	if sc.IsMasterAdmin() && sc.OrganizationID() != sc.Actor.OrganizationID {
		body["effective_organization_id"] = sc.OrganizationID()
	}
	respondJSON(w, http.StatusOK, body)
}

// ListDeals returns the effective organization's deals.
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	orgID, err := sc.RequireOrganizationID()
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	deals, err := h.deals.ListDeals(r.Context(), orgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list deals", logger.Error(err), logger.OrganizationID(orgID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if deals == nil {
		deals = []*deal.Deal{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"deals": deals})
}

// CreateDealRequest is the create deal payload.
type CreateDealRequest struct {
	Name string `json:"name"`
}

// CreateDeal creates a deal in the effective organization.
func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	orgID, err := sc.RequireOrganizationID()
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	var req CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "A deal name is required")
		return
	}

	d := &deal.Deal{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           req.Name,
		Status:         "active",
		CreatedBy:      sc.Actor.ID,
	}
	if err := h.deals.CreateDeal(r.Context(), d); err != nil {
		slog.ErrorContext(r.Context(), "failed to create deal", logger.Error(err), logger.OrganizationID(orgID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// GetDeal returns one deal after the ownership check.
func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	entity, err := h.guard.Check(r.Context(), sc, resource.KindDeal, chi.URLParam(r, "dealID"), resource.CheckOptions{})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// ListDealDocuments returns a deal's documents after the deal passes the
// ownership check.
func (h *Handler) ListDealDocuments(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	dealID := chi.URLParam(r, "dealID")

	if _, err := h.guard.Check(r.Context(), sc, resource.KindDeal, dealID, resource.CheckOptions{}); err != nil {
		respondAuthError(w, r, err)
		return
	}

	docs, err := h.deals.ListDocuments(r.Context(), dealID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list documents", logger.Error(err), logger.ResourceID(dealID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if docs == nil {
		docs = []*deal.Document{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// UploadDocumentRequest is the document upload payload. The binary itself
// goes to object storage out of band; this registers the metadata.
type UploadDocumentRequest struct {
	Name        string `json:"name"`
	FolderID    string `json:"folder_id"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// UploadDocument registers a document under a deal.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	dealID := chi.URLParam(r, "dealID")

	entity, err := h.guard.Check(r.Context(), sc, resource.KindDeal, dealID, resource.CheckOptions{})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "A document name is required")
		return
	}

	if req.FolderID != "" {
		_, err := h.guard.Check(r.Context(), sc, resource.KindFolder, req.FolderID, resource.CheckOptions{
			DealID:   dealID,
			MinLevel: resource.LevelEditor,
		})
		if err != nil {
			respondAuthError(w, r, err)
			return
		}
	}

	doc := &deal.Document{
		ID:             uuid.NewString(),
		OrganizationID: entity.OwnerOrganizationID(),
		DealID:         dealID,
		FolderID:       req.FolderID,
		Name:           req.Name,
		ContentType:    req.ContentType,
		SizeBytes:      req.SizeBytes,
		UploadedBy:     sc.Actor.ID,
	}
	if err := h.deals.CreateDocument(r.Context(), doc); err != nil {
		slog.ErrorContext(r.Context(), "failed to create document", logger.Error(err), logger.ResourceID(dealID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	// The uploader owns the document from the start; delete and permission
	// administration on it need no separate grant.
	if err := h.grants.UpsertGrant(r.Context(), &resource.Grant{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		UserID:         sc.Actor.ID,
		Level:          resource.LevelOwner,
		OrganizationID: doc.OrganizationID,
		GrantedBy:      sc.Actor.ID,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to grant uploader ownership", logger.Error(err), logger.ResourceID(doc.ID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	// Re-check the fresh document to record the upload in the access log.
	// The uploader rule guarantees this passes.
	_, err = h.guard.Check(r.Context(), sc, resource.KindDocument, doc.ID, resource.CheckOptions{
		DealID:            dealID,
		MinLevel:          resource.LevelEditor,
		AllowEditorForOwn: true,
		Action:            resource.ActionUpload,
		IPAddress:         getIPAddress(r),
		UserAgent:         r.UserAgent(),
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to write access log", logger.Error(err), logger.ResourceID(doc.ID))
	}

	respondJSON(w, http.StatusCreated, doc)
}

// GetDocument returns document metadata; needs viewer access.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	entity, err := h.guard.Check(r.Context(), sc, resource.KindDocument, chi.URLParam(r, "documentID"), resource.CheckOptions{
		MinLevel:  resource.LevelViewer,
		Action:    resource.ActionView,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// DownloadDocument returns a download descriptor; needs viewer access.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	entity, err := h.guard.Check(r.Context(), sc, resource.KindDocument, chi.URLParam(r, "documentID"), resource.CheckOptions{
		MinLevel:  resource.LevelViewer,
		Action:    resource.ActionDownload,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	doc := entity.(*deal.Document)
	respondJSON(w, http.StatusOK, map[string]any{
		"document_id":  doc.ID,
		"name":         doc.Name,
		"content_type": doc.ContentType,
		"size_bytes":   doc.SizeBytes,
		"download_url": "/blobs/" + doc.ID,
	})
}

// DeleteDocument removes a document. Owner level is required; the uploader
// holds it through the grant written at upload time.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	documentID := chi.URLParam(r, "documentID")

	_, err := h.guard.Check(r.Context(), sc, resource.KindDocument, documentID, resource.CheckOptions{
		MinLevel:  resource.LevelOwner,
		Action:    resource.ActionDelete,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	if err := h.deals.DeleteDocument(r.Context(), documentID); err != nil {
		slog.ErrorContext(r.Context(), "failed to delete document", logger.Error(err), logger.ResourceID(documentID))
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "document deleted"})
}

// GetFolder returns folder metadata; needs viewer access, which cascades
// from ancestor folders.
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	entity, err := h.guard.Check(r.Context(), sc, resource.KindFolder, chi.URLParam(r, "folderID"), resource.CheckOptions{
		MinLevel: resource.LevelViewer,
	})
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// BillingSummary returns the effective organization's subscription view.
// Under master impersonation the organization id and tier are the target
// tenant's, which is the point of the override.
func (h *Handler) BillingSummary(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	orgID, err := sc.RequireOrganizationID()
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	t, err := h.tiers.Resolve(r.Context(), orgID)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	allowed := h.matrix.FeaturesForTier(t)
	features := make([]entitlement.Feature, 0, len(allowed))
	for _, f := range h.matrix.Features() {
		if _, ok := allowed[f]; ok {
			features = append(features, f)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"organization_id": orgID,
		"tier":            t,
		"tier_label":      entitlement.TierLabel(t),
		"features":        features,
	})
}

// CreatePodcastEpisodeRequest is the episode creation payload.
type CreatePodcastEpisodeRequest struct {
	Title string `json:"title"`
}

// CreatePodcastEpisode is a tier-gated content operation. The heavy lifting
// lives in the media pipeline; authorization is what this service owns.
func (h *Handler) CreatePodcastEpisode(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())

	var req CreatePodcastEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "An episode title is required")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"episode_id":      uuid.NewString(),
		"title":           req.Title,
		"organization_id": sc.OrganizationID(),
		"created_by":      sc.Actor.ID,
	})
}

// AdvancedAnalytics is a tier-gated read surface.
func (h *Handler) AdvancedAnalytics(w http.ResponseWriter, r *http.Request) {
	sc := GetScope(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"organization_id": sc.OrganizationID(),
		"reports":         []string{"deal_velocity", "document_engagement", "pipeline_conversion"},
	})
}

// Helper functions
func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
