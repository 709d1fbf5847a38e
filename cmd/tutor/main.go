// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command tutor is the student-facing CLI.
//
// By default questions go straight to the reasoning backend's event stream
// and the deliberation is shown live. With --mediated they go through the
// gateway, which falls back to a single model when the backend is down.
//
// # Usage
//
//	tutor ask "Why is the sky blue?"
//	tutor ask --mediated --project unit.yaml "How do I start?"
//	tutor chat --project unit.yaml
//	tutor exam --topic "Fractions" --count 5
//	tutor health
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tutorgate/pkg/logging"
	"github.com/AleutianAI/tutorgate/pkg/ux"
	"github.com/AleutianAI/tutorgate/services/gateway/config"
)

var (
	configPath string
	brainURL   string
	gatewayURL string
	logLevel   string
	outputMode string

	tutor *app
)

// app carries everything a subcommand needs. Tests build it directly.
type app struct {
	cfg         config.Config
	printer     *ux.Printer
	progressOut io.Writer
	live        bool
	in          io.Reader
	inFd        uintptr
	logger      *slog.Logger
	httpClient  *http.Client
	closeLog    func() error
}

var rootCmd = &cobra.Command{
	Use:           "tutor",
	Short:         "Ask the tutoring backend questions from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		tutor = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tutor != nil && tutor.closeLog != nil {
			return tutor.closeLog()
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&brainURL, "brain-url", "", "reasoning backend base URL (overrides config and BRAIN_API_URL)")
	pf.StringVar(&gatewayURL, "gateway-url", "", "gateway base URL for --mediated and exam")
	pf.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	pf.StringVarP(&outputMode, "output", "o", "", "rich, plain or machine (default: detect)")

	rootCmd.AddCommand(newAskCmd(), newChatCmd(), newExamCmd(), newHealthCmd(), newInfoCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tutor: %v\n", err)
		os.Exit(1)
	}
}

// newApp loads configuration and applies the persistent flags.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if brainURL != "" {
		cfg.Brain.URL = brainURL
	}
	if gatewayURL != "" {
		cfg.Tutor.GatewayURL = gatewayURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Logging.Dir,
		Service: "tutor",
		JSON:    cfg.Logging.JSON,
	})
	slog.SetDefault(logger.Slog())

	mode := ux.DetectMode(os.Stdout.Fd(), os.Getenv)
	if outputMode != "" {
		mode = ux.ParseMode(outputMode)
	}

	return &app{
		cfg:         cfg,
		printer:     ux.NewPrinter(os.Stdout, os.Stderr, mode),
		progressOut: os.Stderr,
		live:        mode.Live() && ux.IsTerminal(os.Stderr.Fd()),
		in:          os.Stdin,
		inFd:        os.Stdin.Fd(),
		logger:      logger.Slog(),
		closeLog:    logger.Close,
	}, nil
}
