// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func withSecretsDir(t *testing.T, dir string) {
	t.Helper()
	old := secretsDir
	secretsDir = dir
	t.Cleanup(func() { secretsDir = old })
}

// =============================================================================
// Factory and secrets
// =============================================================================

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "mystery"})
	assert.ErrorContains(t, err, "unknown fallback backend")
}

func TestNew_SelectsBackend(t *testing.T) {
	withSecretsDir(t, t.TempDir())
	t.Setenv("OLLAMA_MODEL", "")

	c, err := New(context.Background(), Config{Backend: "ollama", BaseURL: "http://ollama:11434/"})
	require.NoError(t, err)
	oc, ok := c.(*OllamaClient)
	require.True(t, ok)
	assert.Equal(t, "http://ollama:11434", oc.baseURL)
	assert.Equal(t, "llama3.2", oc.model)

	c, err = New(context.Background(), Config{Backend: "local", BaseURL: "http://llama:8080"})
	require.NoError(t, err)
	assert.IsType(t, &LocalLlamaCppClient{}, c)

	c, err = New(context.Background(), Config{Backend: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}

func TestResolveAPIKey(t *testing.T) {
	dir := t.TempDir()
	withSecretsDir(t, dir)

	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv("TEST_KEY", "from-env")
		k, err := resolveAPIKey(" explicit ", "test_key", "TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "explicit", k)
	})

	t.Run("env in order", func(t *testing.T) {
		t.Setenv("TEST_KEY", "")
		t.Setenv("TEST_KEY_ALT", "alt")
		k, err := resolveAPIKey("", "test_key", "TEST_KEY", "TEST_KEY_ALT")
		require.NoError(t, err)
		assert.Equal(t, "alt", k)
	})

	t.Run("secret file", func(t *testing.T) {
		t.Setenv("TEST_KEY", "")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test_key"), []byte("from-file\n"), 0o600))
		k, err := resolveAPIKey("", "test_key", "TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "from-file", k)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("TEST_KEY", "")
		_, err := resolveAPIKey("", "absent_key", "TEST_KEY")
		assert.ErrorContains(t, err, "TEST_KEY")
	})
}

func TestConfig_SystemPrompt(t *testing.T) {
	t.Setenv("SYSTEM_ROLE_PROMPT_PERSONA", "")
	assert.Equal(t, DefaultSystemPrompt, Config{}.systemPrompt())

	t.Setenv("SYSTEM_ROLE_PROMPT_PERSONA", "persona")
	assert.Equal(t, "persona", Config{}.systemPrompt())
	assert.Equal(t, "explicit", Config{SystemPrompt: "explicit"}.systemPrompt())
}

// =============================================================================
// Backends
// =============================================================================

func TestOpenAIClient_Generate(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Equal(t, "Question: q", body.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"fallback answer"},"finish_reason":"stop"}]}`))
	})

	c, err := NewOpenAIClient(Config{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "Question: q", GenerationParams{Temperature: Float32(0.3)})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", out)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})

	c, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "q", GenerationParams{})
	assert.ErrorContains(t, err, "OpenAI API call failed")
}

func TestOllamaClient_Generate(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body ollamaGenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tiny", body.Model)
		assert.False(t, body.Stream)
		assert.Equal(t, float64(7), body.Options["top_k"])
		assert.Equal(t, float64(2048), body.Options["num_predict"])
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ollama says hi", Done: true})
	})

	c, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "tiny"})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "q", GenerationParams{TopK: Int(7)})
	require.NoError(t, err)
	assert.Equal(t, "ollama says hi", out)
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'tiny' not found"}`))
	})

	c, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "tiny"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "q", GenerationParams{})
	assert.ErrorContains(t, err, "ollama pull tiny")
}

func TestOllamaClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	_, err := NewOllamaClient(Config{})
	assert.Error(t, err)
}

func TestBuildOllamaOptions_Defaults(t *testing.T) {
	opts := buildOllamaOptions(GenerationParams{Stop: []string{"###"}})
	assert.Equal(t, float32(0.2), opts["temperature"])
	assert.Equal(t, 20, opts["top_k"])
	assert.Equal(t, []string{"###"}, opts["stop"])
}

func TestLocalLlamaCppClient_Generate(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		var body llamaCppPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 128, body.NPredict)
		assert.Contains(t, body.Prompt, "Question: q")
		_ = json.NewEncoder(w).Encode(llamaCppResp{Content: "local answer"})
	})

	c, err := NewLocalLlamaCppClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "Question: q", GenerationParams{MaxTokens: Int(128)})
	require.NoError(t, err)
	assert.Equal(t, "local answer", out)
}

func TestLocalLlamaCppClient_StatusError(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	})

	c, err := NewLocalLlamaCppClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "q", GenerationParams{})
	assert.ErrorContains(t, err, "status 503")
}

func TestAnthropicClient_Generate(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, anthropicDefaultTokens, body.MaxTokens)
		assert.NotEmpty(t, body.System)

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			ID:      "msg_1",
			Content: []anthropicContent{{Type: "text", Text: "part one, "}, {Type: "text", Text: "part two"}},
		})
	})

	c, err := NewAnthropicClient(Config{APIKey: "ak-test", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "q", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", out)
}

func TestAnthropicClient_MissingKey(t *testing.T) {
	withSecretsDir(t, t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicClient(Config{})
	assert.Error(t, err)
}

func TestGeminiClient_Generate(t *testing.T) {
	srv := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-test")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini answer"}]}}]}`))
	})

	c, err := NewGeminiClient(context.Background(), Config{APIKey: "gk-test", Model: "gemini-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "q", GenerationParams{MaxTokens: Int(64), TopK: Int(5)})
	require.NoError(t, err)
	assert.Equal(t, "gemini answer", out)
}

func TestGeminiClient_MissingKey(t *testing.T) {
	withSecretsDir(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := NewGeminiClient(context.Background(), Config{})
	assert.Error(t, err)
}
