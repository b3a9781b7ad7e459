package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/api/rest"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/cache"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/collaborator"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/config"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/database"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/repository"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/telemetry"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
	"github.com/custodia-platform/custodia-backend/internal/service/authn"
	"github.com/custodia-platform/custodia-backend/internal/service/casemgmt"
	"github.com/custodia-platform/custodia-backend/internal/service/ledger"
	"github.com/custodia-platform/custodia-backend/internal/service/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "custodia-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("setting up infrastructure logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	tracing := telemetry.InitTracing("custodia-backend")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}()

	pool, err := database.NewConnectionPool(&cfg.Database, zapLogger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = pool.Close() }()

	redisClient, err := cache.NewClient(&cfg.Redis, zapLogger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	operatorRepo := repository.NewOperatorRepository(pool.Pool())
	caseRepo := repository.NewCaseRepository(pool.Pool())
	evidenceRepo := repository.NewEvidenceRepository(pool.Pool())
	auditRepo := repository.NewAuditRepository(pool.Pool())

	rateLimiter := cache.NewRedisRateLimiter(redisClient, zapLogger)
	sessionIndex := cache.NewRedisSessionIndex(redisClient, zapLogger)

	notifier := collaborator.NewBoundedNotifier(
		&collaborator.LogNotifier{Logger: zapLogger},
		cfg.Collaborator.NotifierTimeout, cfg.Collaborator.DispatchRate, zapLogger)
	contentStore := collaborator.NewBoundedContentStore(
		collaborator.NullContentStore{}, cfg.Collaborator.StorageTimeout, zapLogger)
	anchor := collaborator.NewBoundedAnchor(
		collaborator.NullAnchor{}, cfg.Collaborator.AnchorTimeout, zapLogger)
	classifier := collaborator.NewBoundedClassifier(
		collaborator.ExtensionClassifier{}, cfg.Collaborator.ClassifierTimeout, zapLogger)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	accessSvc := access.NewService(operatorRepo, caseRepo, auditRepo, zapLogger)
	authSvc := authn.NewService(operatorRepo, caseRepo, auditRepo,
		rateLimiter, sessionIndex, notifier, cfg.Security, zapLogger)
	workflowSvc := workflow.NewService(evidenceRepo, caseRepo, auditRepo, operatorRepo,
		accessSvc, contentStore, anchor, classifier, notifier, metrics, zapLogger)
	caseSvc := casemgmt.NewService(caseRepo, operatorRepo, auditRepo, accessSvc, zapLogger)
	ledgerSvc := ledger.NewService(auditRepo, evidenceRepo, operatorRepo, accessSvc, zapLogger)

	handler := rest.NewHandler(authSvc, accessSvc, workflowSvc, caseSvc, ledgerSvc, metrics)
	server := rest.NewServer(cfg, rest.ServerDeps{
		Handler: handler,
		Logger:  logger,
		Pool:    pool.Pool(),
		Redis:   redisClient,
	})

	return server.Start()
}
