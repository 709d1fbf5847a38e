// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration shared by the gateway and the
// tutor CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tutorgate/pkg/logging"
	"github.com/AleutianAI/tutorgate/services/gateway/budget"
	"github.com/AleutianAI/tutorgate/services/gateway/contextblock"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
	"github.com/AleutianAI/tutorgate/services/llm"
)

// Config is the full configuration. Values are read once at startup and
// never changed afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Brain    BrainConfig    `yaml:"brain"`
	Fallback FallbackConfig `yaml:"fallback"`
	Context  ContextConfig  `yaml:"context"`
	Budgets  BudgetsConfig  `yaml:"budgets"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Tutor    TutorConfig    `yaml:"tutor"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// BrainConfig locates the reasoning backend.
type BrainConfig struct {
	URL string `yaml:"url" validate:"required,url"`
}

// FallbackConfig selects the single-model client of the mediated path.
type FallbackConfig struct {
	llm.Config `yaml:",inline"`
	Params     llm.GenerationParams `yaml:"params"`
}

type ContextConfig struct {
	MaxTurns     int `yaml:"max_turns" validate:"gte=0"`
	MaxTurnChars int `yaml:"max_turn_chars" validate:"gte=0"`
}

// BudgetsConfig overrides the built-in budgets. Zero keeps the default;
// values below the minimums are raised.
type BudgetsConfig struct {
	PrimaryAttempt   time.Duration `yaml:"primary_attempt"`
	PrimaryProbe     time.Duration `yaml:"primary_probe"`
	AuxiliaryAttempt time.Duration `yaml:"auxiliary_attempt"`
	FallbackAttempt  time.Duration `yaml:"fallback_attempt"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=0"`
	OpenTimeout      time.Duration `yaml:"open_timeout" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector. Empty exports spans to stdout
	// when Stdout is set and drops them otherwise.
	Endpoint string `yaml:"endpoint"`
	Stdout   bool   `yaml:"stdout"`
}

// TutorConfig holds the CLI's own settings.
type TutorConfig struct {
	GatewayURL string `yaml:"gateway_url" validate:"omitempty,url"`
	Visual     bool   `yaml:"visual"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8090, ShutdownTimeout: 10 * time.Second},
		Brain:  BrainConfig{URL: "http://localhost:8000"},
		Fallback: FallbackConfig{
			Config: llm.Config{Backend: llm.BackendOllama, BaseURL: "http://localhost:11434"},
			Params: llm.GenerationParams{
				Temperature: llm.Float32(0.3),
				MaxTokens:   llm.Int(1024),
			},
		},
		Context: ContextConfig{
			MaxTurns:     contextblock.DefaultMaxTurns,
			MaxTurnChars: contextblock.DefaultMaxTurnChars,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: fallback.DefaultBreakerConfig().FailureThreshold,
			OpenTimeout:      fallback.DefaultBreakerConfig().OpenTimeout,
		},
		Logging: LoggingConfig{Level: "info"},
		Tutor:   TutorConfig{GatewayURL: "http://localhost:8090"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode rejects unknown keys. An empty file leaves cfg untouched.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("BRAIN_API_URL"); v != "" {
		c.Brain.URL = v
	}
	if v := getenv("GATEWAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GATEWAY_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("GATEWAY_URL"); v != "" {
		c.Tutor.GatewayURL = v
	}
	if v := getenv("FALLBACK_BACKEND"); v != "" {
		c.Fallback.Backend = v
	}
	if v := getenv("FALLBACK_MODEL"); v != "" {
		c.Fallback.Model = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
	return nil
}

// Validate checks every section against its validator tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BudgetSet returns the channel budgets with defaults and minimums applied.
func (c *Config) BudgetSet() budget.Set {
	return budget.Set{
		Primary:   budget.Budget{Attempt: c.Budgets.PrimaryAttempt, Probe: c.Budgets.PrimaryProbe},
		Auxiliary: budget.Budget{Attempt: c.Budgets.AuxiliaryAttempt},
		Fallback:  budget.Budget{Attempt: c.Budgets.FallbackAttempt},
	}.Validated()
}

// NewBreaker returns the configured breaker, or nil when disabled.
func (c *Config) NewBreaker(onStateChange func(from, to fallback.BreakerState)) *fallback.Breaker {
	if !c.Breaker.Enabled {
		return nil
	}
	return fallback.NewBreaker(fallback.BreakerConfig{
		FailureThreshold: c.Breaker.FailureThreshold,
		OpenTimeout:      c.Breaker.OpenTimeout,
		OnStateChange:    onStateChange,
	})
}

// LogLevel parses Logging.Level. Validate has already rejected bad names.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}
