// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test doubles
// =============================================================================

type fakeAnswerer struct {
	result datatypes.NormalizedResult
	err    error
	mu     sync.Mutex
	got    []datatypes.AskRequest
}

func (f *fakeAnswerer) Answer(ctx context.Context, req datatypes.AskRequest) (datatypes.NormalizedResult, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return datatypes.NormalizedResult{}, err
	}
	return f.result, f.err
}

type fakeBackend struct {
	healthy bool
	exam    datatypes.ExamResponse
	examErr error
	info    brain.SystemInfo
	infoErr error
	gotExam datatypes.ExamRequest
}

func (f *fakeBackend) Probe(context.Context) bool { return f.healthy }

func (f *fakeBackend) GenerateExam(_ context.Context, req datatypes.ExamRequest) (datatypes.ExamResponse, error) {
	f.gotExam = req
	return f.exam, f.examErr
}

func (f *fakeBackend) SystemInfo(context.Context) (brain.SystemInfo, error) {
	return f.info, f.infoErr
}

type fakeRequestRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRequestRecorder) RecordRequest(route string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s %d", route, status))
}

func newRouter(answerer Answerer, backend Backend) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.POST("/v1/ask", HandleAsk(answerer, ContextLimits{MaxTurns: 2, MaxTurnChars: 100}))
	router.POST("/v1/exam", HandleExam(backend))
	router.GET("/v1/backend/health", HandleBackendHealth(backend))
	router.GET("/v1/backend/info", HandleBackendInfo(backend))
	router.GET("/health", HealthCheck("test"))
	return router
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) datatypes.ErrorResponse {
	t.Helper()
	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// =============================================================================
// /v1/ask
// =============================================================================

func TestHandleAsk_Primary(t *testing.T) {
	answerer := &fakeAnswerer{result: datatypes.NewPrimaryResult("A", "B", true, nil)}
	rec := do(newRouter(answerer, &fakeBackend{}), postJSON("/v1/ask", `{"question":"What is entropy?"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var body datatypes.GatewayAskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, datatypes.GatewayAskResponse{Answer: "A", Critique: "B", Success: true, Source: datatypes.SourcePrimary}, body)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHandleAsk_FallbackSourceIsReported(t *testing.T) {
	answerer := &fakeAnswerer{result: datatypes.NewFallbackResult("F")}
	rec := do(newRouter(answerer, &fakeBackend{}), postJSON("/v1/ask", `{"question":"q"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"fallback"`)
}

func TestHandleAsk_AssemblesContext(t *testing.T) {
	answerer := &fakeAnswerer{result: datatypes.NewFallbackResult("F")}
	body := `{"question":"q","project":{"title":"Heat"},"history":[
		{"role":"user","content":"one"},
		{"role":"assistant","content":"two"},
		{"role":"user","content":"three"}]}`
	rec := do(newRouter(answerer, &fakeBackend{}), postJSON("/v1/ask", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, answerer.got, 1)
	assert.Equal(t, "Project:\nTitle: Heat\n\nRecent conversation:\nTutor: two\nStudent: three", answerer.got[0].Context)
}

func TestHandleAsk_KeepsCallerContext(t *testing.T) {
	answerer := &fakeAnswerer{result: datatypes.NewFallbackResult("F")}
	rec := do(newRouter(answerer, &fakeBackend{}), postJSON("/v1/ask", `{"question":"q","context":"mine","project":{"title":"Heat"}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mine", answerer.got[0].Context)
}

func TestHandleAsk_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"question":`, nil, http.StatusBadRequest},
		{"blank question", `{"question":"  "}`, nil, http.StatusBadRequest},
		{"bad history role", `{"question":"q","history":[{"role":"narrator","content":"x"}]}`, nil, http.StatusBadRequest},
		{"fallback failed", `{"question":"q"}`, &fallback.FallbackFailedError{Reason: fallback.ReasonProbeFailed, Err: errors.New("offline")}, http.StatusBadGateway},
		{"invalid downstream", `{"question":"q"}`, fmt.Errorf("%w: too long", fallback.ErrInvalidRequest), http.StatusBadRequest},
		{"unexpected", `{"question":"q"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := postJSON("/v1/ask", tt.body)
			req.Header.Set(RequestIDHeader, "req-1")
			rec := do(newRouter(&fakeAnswerer{err: tt.err}, &fakeBackend{}), req)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestHandleAsk_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := postJSON("/v1/ask", `{"question":"q"}`).WithContext(ctx)

	rec := do(newRouter(&fakeAnswerer{}, &fakeBackend{}), req)
	assert.Equal(t, StatusClientClosedRequest, rec.Code)
}

func TestHandleAsk_CallerDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	req := postJSON("/v1/ask", `{"question":"q"}`).WithContext(ctx)

	rec := do(newRouter(&fakeAnswerer{}, &fakeBackend{}), req)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

// =============================================================================
// /v1/exam
// =============================================================================

func TestHandleExam(t *testing.T) {
	backend := &fakeBackend{exam: datatypes.ExamResponse{Success: true, ExamContent: "1. Define entropy.", Topic: "Heat"}}
	rec := do(newRouter(&fakeAnswerer{}, backend), postJSON("/v1/exam", `{"topic":"Heat"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, datatypes.DefaultExamQuestions, backend.gotExam.NumQuestions)
	assert.Contains(t, rec.Body.String(), `"examContent":"1. Define entropy."`)
}

func TestHandleExam_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"blank topic", `{"topic":" "}`, nil, http.StatusBadRequest},
		{"too many questions", `{"topic":"Heat","num_questions":99}`, nil, http.StatusBadRequest},
		{"timeout", `{"topic":"Heat"}`, fmt.Errorf("%w: slow", brain.ErrTimeout), http.StatusGatewayTimeout},
		{"backend error", `{"topic":"Heat"}`, &brain.BackendError{StatusCode: 500, Message: "no"}, http.StatusBadGateway},
		{"unavailable", `{"topic":"Heat"}`, brain.ErrUnavailable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&fakeAnswerer{}, &fakeBackend{examErr: tt.err}), postJSON("/v1/exam", tt.body))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

// =============================================================================
// Health and info
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	router := newRouter(&fakeAnswerer{}, &fakeBackend{healthy: false})

	rec := do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(router, httptest.NewRequest(http.MethodGet, "/v1/backend/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"healthy":false}`, rec.Body.String())
}

func TestHandleBackendInfo(t *testing.T) {
	info := brain.SystemInfo{Agents: []string{"Critic"}, Capabilities: []string{"streaming"}}
	rec := do(newRouter(&fakeAnswerer{}, &fakeBackend{info: info}), httptest.NewRequest(http.MethodGet, "/v1/backend/info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Critic"`)

	rec = do(newRouter(&fakeAnswerer{}, &fakeBackend{infoErr: brain.ErrUnavailable}), httptest.NewRequest(http.MethodGet, "/v1/backend/info", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// =============================================================================
// Middleware
// =============================================================================

func TestRequestID_PreservesCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec := do(newRouter(&fakeAnswerer{}, &fakeBackend{}), req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestAccessLog_RecordsRoute(t *testing.T) {
	recorder := &fakeRequestRecorder{}
	router := gin.New()
	router.Use(RequestID(), AccessLog(recorder))
	router.GET("/health", HealthCheck("test"))

	do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	do(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, []string{"/health 200", "unmatched 404"}, recorder.calls)
}
