// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securitykey.
//
// go-securitykey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-securitykey/internal/config"
	"github.com/jeremyhahn/go-securitykey/pkg/health"
	"github.com/jeremyhahn/go-securitykey/pkg/logging"
	"github.com/jeremyhahn/go-securitykey/pkg/metrics"
	"github.com/jeremyhahn/go-securitykey/pkg/ratelimit"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
	skhttp "github.com/jeremyhahn/go-securitykey/pkg/securitykey/http"
)

// BasePath is where the security key API is mounted.
const BasePath = "/api/v1/security-keys"

// cleanupInterval controls how often expired challenges are pruned.
const cleanupInterval = time.Minute

// Server represents the security key registration REST server.
type Server struct {
	server    *http.Server
	router    *chi.Mux
	service   *securitykey.Service
	stores    *Stores
	checker   *health.Checker
	limiter   *ratelimit.Limiter
	logger    *logging.Logger
	tlsConfig *tls.Config
	cfg       *config.Config

	cleanupCancel context.CancelFunc
	collector     *metrics.ResourceCollector
}

// NewServer creates a new REST server from the given configuration.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	stores, err := NewStores(cfg.Storage)
	if err != nil {
		return nil, err
	}

	service, err := securitykey.NewService(securitykey.ServiceParams{
		Config:         &cfg.WebAuthn,
		AccountStore:   NewTrustedAccountStore(),
		ChallengeStore: stores.ChallengeStore(),
		KeyStore:       stores.KeyStore(),
	})
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to create registration service: %w", err)
	}

	tlsConfig, err := cfg.TLS.LoadTLSConfig()
	if err != nil {
		stores.Close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
	})

	checker := health.NewChecker()
	checker.RegisterCheck("storage", func(ctx context.Context) health.CheckResult {
		result := health.CheckResult{Name: "storage", Status: health.StatusHealthy}
		if _, err := stores.countKeys(ctx); err != nil {
			result.Status = health.StatusUnhealthy
			result.Error = err.Error()
		}
		return result
	})

	server := &Server{
		service:   service,
		stores:    stores,
		checker:   checker,
		limiter:   limiter,
		logger:    logger,
		tlsConfig: tlsConfig,
		cfg:       cfg,
	}

	router := server.setupRouter()
	server.router = router

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    tlsConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	if s.cfg.Metrics.Enabled {
		r.Use(metrics.HTTPMiddleware)
	}
	r.Use(CORSMiddleware)

	if s.cfg.Health.Enabled {
		path := s.cfg.Health.Path
		r.Get(path, s.HealthHandler)
		r.Head(path, s.HealthHandler)
		r.Get(path+"/live", s.LivenessHandler)
		r.Get(path+"/ready", s.ReadinessHandler)
		r.Get(path+"/startup", s.StartupHandler)
	}

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	handler := skhttp.NewHandler(s.service, skhttp.AccountFromHeader).
		WithLogger(s.logger.Slog())

	r.Route(BasePath, func(r chi.Router) {
		if s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		skhttp.MountChi(r, handler)
	})

	return r
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Service returns the registration service.
func (s *Server) Service() *securitykey.Service {
	return s.service
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the REST server and blocks until shutdown.
func (s *Server) Start() error {
	s.cleanupCancel = s.stores.StartCleanupRoutine(context.Background(), cleanupInterval)
	if s.cfg.Metrics.Enabled {
		s.collector = metrics.StartResourceCollector(context.Background(), 15*time.Second)
	}
	s.checker.MarkStarted()

	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", "addr", s.server.Addr)
		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the REST server and releases its resources.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	if s.collector != nil {
		s.collector.Stop()
	}
	s.limiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Errorf("failed to shutdown server: %v", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := s.stores.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}
