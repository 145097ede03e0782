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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dealroomhq/dealroom/internal/audit"
	"github.com/dealroomhq/dealroom/internal/authn"
	"github.com/dealroomhq/dealroom/internal/config"
	"github.com/dealroomhq/dealroom/internal/directory"
	"github.com/dealroomhq/dealroom/internal/entitlement"
	"github.com/dealroomhq/dealroom/internal/observability/logger"
	"github.com/dealroomhq/dealroom/internal/observability/metrics"
	"github.com/dealroomhq/dealroom/internal/observability/tracing"
	"github.com/dealroomhq/dealroom/internal/provider"
	"github.com/dealroomhq/dealroom/internal/resource"
	"github.com/dealroomhq/dealroom/internal/scope"
	"github.com/dealroomhq/dealroom/internal/store/postgres"
	"github.com/dealroomhq/dealroom/internal/tier"
	transportHTTP "github.com/dealroomhq/dealroom/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting dealroom authorization service")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	authzMetrics, err := metrics.NewAuthorizationMetrics(meter)
	if err != nil {
		slog.Error("failed to create authorization metrics", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	orgRepo := postgres.NewOrganizationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	dealRepo := postgres.NewDealRepository(db)
	permRepo := postgres.NewPermissionRepository(db)

	// Audit sink, optionally mirrored to an external SIEM webhook
	var emitter *audit.WebhookEmitter
	if cfg.Audit.WebhookURL != "" {
		emitter = audit.NewWebhookEmitter(cfg.Audit.WebhookURL)
	}
	auditSink := audit.NewSink(auditRepo, emitter).WithMetrics(authzMetrics)

	// Token verification and webhook signatures
	verifier, err := authn.NewVerifier([]byte(cfg.Identity.SigningKey), cfg.Identity.SigningAlg)
	if err != nil {
		slog.Error("failed to initialize token verifier", logger.Error(err))
		os.Exit(1)
	}
	webhookVerifier := authn.NewWebhookVerifier([]byte(cfg.Identity.WebhookSecret))

	// Subscription tier resolution against the identity provider
	providerClient := provider.NewHTTPClient(cfg.Identity.ProviderBaseURL, cfg.Identity.ProviderAPIKey)

	var tierCache tier.Cache
	switch cfg.Tier.CacheBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Tier.RedisAddr,
			DB:   cfg.Tier.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		tierCache = tier.NewRedisCache(redisClient, cfg.Tier.CacheTTL)
	default:
		tierCache = tier.NewMemoryCache(cfg.Tier.CacheTTL)
	}
	tierResolver := tier.NewResolver(tierCache, providerClient, cfg.Tier.CacheBudget).WithMetrics(authzMetrics)

	// Initialize services
	directoryService := directory.NewService(userRepo, orgRepo, auditSink)
	scopeBuilder := scope.NewBuilder(userRepo, orgRepo, auditSink)

	registry := resource.NewRegistry()
	dealRepo.RegisterAccessors(registry)
	guard := resource.NewGuard(registry, permRepo, auditSink, resource.DefaultMaxFolderDepth)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(transportHTTP.Config{
		Verifier:             verifier,
		WebhookVerifier:      webhookVerifier,
		Directory:            directoryService,
		Scopes:               scopeBuilder,
		Tiers:                tierResolver,
		Matrix:               entitlement.Default(),
		Guard:                guard,
		Deals:                dealRepo,
		Grants:               permRepo,
		Auditor:              auditSink,
		Audits:               auditSink,
		MasterTenantHeader:   cfg.Master.TenantHeader,
		MasterCustomerHeader: cfg.Master.CustomerHeader,
		WebhookSigHeader:     cfg.Identity.WebhookSigHeader,
	})

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
