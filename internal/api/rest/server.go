package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-platform/custodia-backend/internal/infrastructure/config"
)

// Server is the HTTP front of the service.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	handler    *Handler
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
}

// ServerDeps carries the wired dependencies into the server.
type ServerDeps struct {
	Handler *Handler
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// NewServer assembles routes and the middleware chain.
func NewServer(cfg *config.Config, deps ServerDeps) *Server {
	s := &Server{
		cfg:     cfg,
		handler: deps.Handler,
		logger:  deps.Logger,
		pool:    deps.Pool,
		redis:   deps.Redis,
	}

	mux := s.routes()

	middlewares := []Middleware{
		requestIDMiddleware,
		loggingMiddleware,
		metricsMiddleware(deps.Handler.metrics),
		recoveryMiddleware,
		timeoutMiddleware(cfg.Server.WriteTimeout),
		conditionalMiddleware(
			authMiddleware(deps.Handler.auth),
			func(r *http.Request) bool { return !isPublicEndpoint(r.URL.Path) },
		),
	}

	var h http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	s.httpServer = &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Server.Port),
		Handler:        h,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.Handle("GET /metrics", promhttp.Handler())

	v1 := http.NewServeMux()

	// Authentication
	v1.HandleFunc("POST /auth/register", s.handler.handleRegister)
	v1.HandleFunc("POST /auth/login", s.handler.handleLoginStep1)
	v1.HandleFunc("POST /auth/verify", s.handler.handleLoginStep2)
	v1.HandleFunc("POST /auth/resend", s.handler.handleResendOTP)
	v1.HandleFunc("POST /auth/logout", s.handler.handleLogout)

	// Operators
	v1.HandleFunc("POST /operators/{id}/kyc", s.handler.handleKYCDecision)

	// Cases
	v1.HandleFunc("POST /cases", s.handler.handleCreateCase)
	v1.HandleFunc("GET /cases", s.handler.handleListCases)
	v1.HandleFunc("GET /cases/current", s.handler.handleGetCase)
	v1.HandleFunc("POST /cases/{id}/close", s.handler.handleCaseLifecycle("close"))
	v1.HandleFunc("POST /cases/{id}/reopen", s.handler.handleCaseLifecycle("reopen"))
	v1.HandleFunc("POST /cases/{id}/archive", s.handler.handleCaseLifecycle("archive"))
	v1.HandleFunc("POST /cases/{id}/grants", s.handler.handleGrantAccess)

	// Evidence workflow
	v1.HandleFunc("POST /evidence", s.handler.handleUploadEvidence)
	v1.HandleFunc("GET /evidence", s.handler.handleListEvidence)
	v1.HandleFunc("GET /evidence/{id}", s.handler.handleGetEvidence)
	v1.HandleFunc("POST /evidence/{id}/verify", s.handler.handleVerifyEvidence)
	v1.HandleFunc("POST /evidence/{id}/reject-verification", s.handler.handleRejectVerification)
	v1.HandleFunc("POST /evidence/{id}/assign", s.handler.handleAssignForensic)
	v1.HandleFunc("POST /evidence/{id}/analysis", s.handler.handleSubmitAnalysis)
	v1.HandleFunc("POST /evidence/{id}/approve", s.handler.handleApproveEvidence)
	v1.HandleFunc("POST /evidence/{id}/reject-approval", s.handler.handleRejectApproval)
	v1.HandleFunc("POST /evidence/{id}/court-submit", s.handler.handleCourtSubmit)
	v1.HandleFunc("POST /evidence/{id}/close", s.handler.handleCloseEvidence)
	v1.HandleFunc("POST /evidence/{id}/transfer", s.handler.handleTransferEvidence)
	v1.HandleFunc("POST /evidence/{id}/integrity", s.handler.handleIntegrityCheck)
	v1.HandleFunc("GET /evidence/{id}/report", s.handler.handleCustodyReport)

	// Ledger
	v1.HandleFunc("GET /audit", s.handler.handleQueryLedger)
	v1.HandleFunc("GET /audit/chain", s.handler.handleVerifyChain)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))
	return mux
}

// Start runs the server until an interrupt or server error.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"address", s.httpServer.Addr,
		"environment", s.cfg.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err)
		return err
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close failed", "error", err)
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK

	if err := s.pool.Ping(ctx); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "up"
	}

	writeJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func isPublicEndpoint(path string) bool {
	switch path {
	case "/health", "/healthz", "/metrics",
		"/api/v1/auth/register", "/api/v1/auth/login",
		"/api/v1/auth/verify", "/api/v1/auth/resend":
		return true
	}
	return false
}
