// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command brainstub serves a scripted reasoning backend for local testing.
//
// # Usage
//
//	go run ./cmd/brainstub --port 8000 --delay 300ms
//	go run ./cmd/brainstub --unhealthy      # force the gateway onto the fallback
//	go run ./cmd/brainstub --drop-terminal  # exercise incomplete streams
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/tutorgate/pkg/logging"
	"github.com/AleutianAI/tutorgate/services/brainstub"
)

var (
	port         int
	delay        time.Duration
	participants []string
	unhealthy    bool
	failStream   bool
	dropTerminal bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "brainstub",
	Short:         "Scripted stand-in for the multi-participant reasoning backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.IntVarP(&port, "port", "p", 8000, "listen port")
	f.DurationVar(&delay, "delay", 200*time.Millisecond, "pause between stream events")
	f.StringSliceVar(&participants, "participants", brainstub.DefaultParticipants, "collecting-stage participants")
	f.BoolVar(&unhealthy, "unhealthy", false, "fail the probe and every ask with 503")
	f.BoolVar(&failStream, "fail-stream", false, "emit an error event after the collecting stage")
	f.BoolVar(&dropTerminal, "drop-terminal", false, "close streams without a result event")
	f.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "brainstub: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: level, Service: "brainstub"})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	gin.SetMode(gin.ReleaseMode)
	router := brainstub.NewRouter(brainstub.Config{
		Participants: participants,
		Delay:        delay,
		Unhealthy:    unhealthy,
		FailStream:   failStream,
		DropTerminal: dropTerminal,
		Logger:       logger.Slog(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Slog().Info("Starting brainstub", "port", port, "unhealthy", unhealthy,
			"fail_stream", failStream, "drop_terminal", dropTerminal)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
