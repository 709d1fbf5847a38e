// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm holds the single-model clients used when the reasoning backend
// cannot answer.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature" yaml:"temperature"`
	TopK        *int     `json:"top_k" yaml:"top_k"`
	TopP        *float32 `json:"top_p" yaml:"top_p"`
	MaxTokens   *int     `json:"max_tokens" yaml:"max_tokens"`
	Stop        []string `json:"stop" yaml:"stop"`
}

// LLMClient defines the standard interface for any single-model backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Backend names accepted by New.
const (
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendOllama    = "ollama"
	BackendLocal     = "local"
	BackendAnthropic = "anthropic"
)

// DefaultSystemPrompt frames the fallback model as a tutor.
const DefaultSystemPrompt = "You are a patient tutor. Answer the student's question clearly and accurately. " +
	"If context about their learning project is given, use it."

// Config selects and configures a backend. Empty fields fall back to the
// backend's environment variables.
type Config struct {
	Backend      string `yaml:"backend" validate:"omitempty,oneof=openai gemini ollama local anthropic"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	APIKey       string `yaml:"-"`
	SystemPrompt string `yaml:"system_prompt"`

	// HTTPClient overrides the transport of the net/http backends (optional).
	HTTPClient *http.Client `yaml:"-"`
}

func (c Config) systemPrompt() string {
	if s := strings.TrimSpace(c.SystemPrompt); s != "" {
		return s
	}
	if s := os.Getenv("SYSTEM_ROLE_PROMPT_PERSONA"); s != "" {
		return s
	}
	return DefaultSystemPrompt
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// Callers bound every request with a context deadline.
	return &http.Client{}
}

// New builds the client named by cfg.Backend.
//
// # Description
//
// Backends:
//   - openai: go-openai, also OpenAI-compatible servers through BaseURL
//   - gemini: google.golang.org/genai
//   - ollama: Ollama /api/generate
//   - local: llama.cpp server /completion
//   - anthropic: Anthropic Messages API
//
// # Outputs
//
//   - LLMClient: Ready to use
//   - error: Unknown backend or missing credentials
func New(ctx context.Context, cfg Config) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendOpenAI, "":
		return NewOpenAIClient(cfg)
	case BackendGemini:
		return NewGeminiClient(ctx, cfg)
	case BackendOllama:
		return NewOllamaClient(cfg)
	case BackendLocal:
		return NewLocalLlamaCppClient(cfg)
	case BackendAnthropic:
		return NewAnthropicClient(cfg)
	}
	return nil, fmt.Errorf("unknown fallback backend %q", cfg.Backend)
}

// Float32 and Int help build GenerationParams literals.
func Float32(v float32) *float32 { return &v }
func Int(v int) *int             { return &v }
