// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gateway starts the mediated question-answering server.
//
// # Environment Variables
//
//   - BRAIN_API_URL: Reasoning backend base URL (default: http://localhost:8000)
//   - GATEWAY_PORT: HTTP server port (default: 8090)
//   - FALLBACK_BACKEND / FALLBACK_MODEL: Single-model fallback selection
//   - LOG_LEVEL: debug, info, warn or error
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	go build -o gateway ./cmd/gateway
//	./gateway --config gateway.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/tutorgate/pkg/logging"
	"github.com/AleutianAI/tutorgate/pkg/telemetry"
	"github.com/AleutianAI/tutorgate/services/gateway"
	"github.com/AleutianAI/tutorgate/services/gateway/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	logLevel   string
	port       int
	traceOut   bool
)

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "Mediated tutoring gateway with single-model fallback",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGateway,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the gateway YAML config")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured port")
	rootCmd.Flags().BoolVar(&traceOut, "trace-stdout", false, "write spans to stdout when no collector is configured")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if traceOut {
		cfg.Tracing.Stdout = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Logging.Dir,
		Service: gateway.ServiceName,
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    gateway.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		Stdout:         cfg.Tracing.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("failed to shutdown tracing", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := gateway.New(ctx, cfg, &gateway.Options{
		Registry: registry,
		Logger:   log,
		Version:  version,
	})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
