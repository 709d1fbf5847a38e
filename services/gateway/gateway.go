// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway wires the mediated question-answering service.
//
// The gateway sits between student-facing clients and the multi-participant
// reasoning backend. It probes the backend, calls it under a time budget and
// falls back to a single language model when the backend cannot answer.
//
// # Usage
//
//	cfg, err := config.Load("gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := gateway.New(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/config"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
	"github.com/AleutianAI/tutorgate/services/gateway/handlers"
	"github.com/AleutianAI/tutorgate/services/gateway/observability"
	"github.com/AleutianAI/tutorgate/services/gateway/routes"
	"github.com/AleutianAI/tutorgate/services/llm"
)

// ServiceName identifies the gateway in traces and health responses.
const ServiceName = "tutorgate-gateway"

// Service defines the gateway lifecycle.
//
// # Thread Safety
//
// Run blocks and must be called at most once per instance. Router may be
// called from any goroutine.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
	Run(ctx context.Context) error

	// Router returns the configured engine, mainly for tests.
	Router() *gin.Engine
}

// Options overrides collaborators that New would otherwise build from
// configuration. Every field is optional.
type Options struct {
	// Registry receives the gateway metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry

	// Fallback replaces the configured single-model client.
	Fallback llm.LLMClient

	// HTTPClient is used for backend calls.
	HTTPClient brain.HTTPClient

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Version is reported by /health.
	Version string
}

type service struct {
	config   config.Config
	logger   *slog.Logger
	router   *gin.Engine
	metrics  *observability.Metrics
	brain    *brain.Client
	mediator *fallback.Controller
}

// New builds every gateway component from cfg.
//
// # Description
//
// The steps are:
//  1. Register metrics on the options' registry
//  2. Create the reasoning backend client with the configured budgets
//  3. Create the single-model client unless one is injected
//  4. Create the breaker and the Fallback Controller
//  5. Register routes behind request-id, tracing and access-log middleware
//
// # Inputs
//
//   - ctx: Used while constructing clients that dial eagerly
//   - cfg: Validated configuration
//   - opts: Optional overrides; nil uses the defaults
//
// # Outputs
//
//   - Service: Ready to Run
//   - error: Non-nil if a client cannot be created
func New(ctx context.Context, cfg config.Config, opts *Options) (Service, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	s := &service{
		config:  cfg,
		logger:  o.Logger,
		metrics: observability.NewMetrics(o.Registry),
	}

	budgets := cfg.BudgetSet()
	bc, err := brain.NewClient(brain.Config{
		BaseURL:    cfg.Brain.URL,
		Primary:    budgets.Primary,
		Auxiliary:  budgets.Auxiliary,
		HTTPClient: o.HTTPClient,
		Logger:     o.Logger,
		Observer:   s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	s.brain = bc

	single := o.Fallback
	if single == nil {
		single, err = llm.New(ctx, cfg.Fallback.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize fallback LLM client: %w", err)
		}
	}

	s.mediator, err = fallback.NewController(fallback.Config{
		Primary:  bc,
		Fallback: single,
		Budget:   budgets.Fallback,
		Params:   cfg.Fallback.Params,
		Breaker:  cfg.NewBreaker(s.metrics.SetBreakerState),
		Logger:   o.Logger,
		Recorder: s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback controller: %w", err)
	}

	s.initRouter(o)
	o.Logger.Info("Gateway initialized",
		"brain_url", cfg.Brain.URL,
		"fallback_backend", cfg.Fallback.Backend,
		"breaker", cfg.Breaker.Enabled)
	return s, nil
}

func (s *service) initRouter(o Options) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(handlers.AccessLog(s.metrics))

	routes.SetupRoutes(router, routes.Deps{
		Backend:  s.brain,
		Answerer: s.mediator,
		Limits: handlers.ContextLimits{
			MaxTurns:     s.config.Context.MaxTurns,
			MaxTurnChars: s.config.Context.MaxTurnChars,
		},
		Version:  o.Version,
		Gatherer: o.Registry,
	})
	s.router = router
}

// Router returns the configured engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done.
//
// # Description
//
// On cancellation the server stops accepting connections and waits up to
// Server.ShutdownTimeout for in-flight requests. Long primary calls still
// running after that are cut off.
//
// # Outputs
//
//   - error: The listen error, or the shutdown error if draining failed
func (s *service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting gateway server", "port", s.config.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info("Shutting down gateway server", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
