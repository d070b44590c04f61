package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/brightpath-labs/engage-sync-api/api/swagger"
	"github.com/brightpath-labs/engage-sync-api/internal/crm"
	"github.com/brightpath-labs/engage-sync-api/internal/handler"
	"github.com/brightpath-labs/engage-sync-api/internal/middleware"
	"github.com/brightpath-labs/engage-sync-api/internal/repository"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
	"github.com/brightpath-labs/engage-sync-api/pkg/cache"
	"github.com/brightpath-labs/engage-sync-api/pkg/config"
	"github.com/brightpath-labs/engage-sync-api/pkg/database"
	"github.com/brightpath-labs/engage-sync-api/pkg/logger"
	corsmiddleware "github.com/brightpath-labs/engage-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/brightpath-labs/engage-sync-api/pkg/middleware/requestid"
	"github.com/brightpath-labs/engage-sync-api/pkg/storage"
)

// @title Engage Sync API
// @version 0.1.0
// @description Engagement tag reconciliation between enrollments and the CRM tag directory
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
	}

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	runRepo := repository.NewRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Rules.CacheTTL, logr, cacheEnabled)
	ruleSvc := service.NewRuleService(ruleRepo, cacheSvc, cfg.Rules.CacheTTL, logr)

	directory, err := crm.NewClient(crm.Config{
		BaseURL:       cfg.CRM.BaseURL,
		APIKey:        cfg.CRM.APIKey,
		Timeout:       cfg.CRM.RequestTimeout,
		MaxRetries:    cfg.CRM.MaxRetries,
		RetryBackoff:  cfg.CRM.RetryBackoff,
		RatePerSecond: cfg.CRM.RatePerSecond,
		Logger:        logr,
		Observer:      metricsSvc,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to build tag directory client", "error", err)
	}

	engagementSvc := service.NewEngagementService(service.EngagementConfig{
		MilestoneStallDays:     cfg.Rules.MilestoneStallDays,
		ReactivationWindowDays: cfg.Batch.ReactivationWindowDays,
	})
	decisionSvc := service.NewDecisionService(logr)
	reconcileSvc := service.NewReconcileService(enrollmentRepo, ruleSvc, directory,
		engagementSvc, decisionSvc, cfg.Rules.ExtraManagedPrefixes, metricsSvc, logr)
	batchSvc := service.NewBatchService(enrollmentRepo, runRepo, reconcileSvc, service.BatchConfig{
		Workers:    cfg.Batch.Workers,
		PageSize:   cfg.Batch.PageSize,
		RunTimeout: cfg.Batch.RunTimeout,
	}, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.ResultTTL)
	exportSvc := service.NewExportService(batchSvc, exportStore, signer, cfg.Export.ResultTTL, logr, nil, nil)

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		OperatorEmail:        cfg.Auth.OperatorEmail,
		OperatorPasswordHash: cfg.Auth.OperatorPasswordHash,
		TokenSecret:          cfg.Auth.TokenSecret,
		TokenExpiry:          cfg.Auth.TokenExpiry,
		Issuer:               cfg.Auth.Issuer,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(reconcileSvc)
	reconcileHandler := handler.NewReconcileHandler(reconcileSvc)
	runHandler := handler.NewRunHandler(batchSvc, exportSvc)
	ruleHandler := handler.NewRuleHandler(ruleSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	go cleanupLoop(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// The download token is its own credential.
	api.GET("/runs/export/download", runHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/enrollments/preview", enrollmentHandler.Preview)
	protected.POST("/reconcile", reconcileHandler.Reconcile)
	protected.POST("/runs", runHandler.Start)
	protected.GET("/runs", runHandler.List)
	protected.GET("/runs/:id", runHandler.Get)
	protected.GET("/runs/:id/outcomes", runHandler.Outcomes)
	protected.GET("/runs/:id/export", runHandler.Export)
	protected.GET("/rules", ruleHandler.List)
	protected.GET("/system/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func cleanupLoop(exportSvc *service.ExportService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		exportSvc.CleanupExpired()
	}
}
