// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package brain is the client for the multi-participant reasoning backend.
//
// The backend offers two delivery modes for the same question: a blocking
// call returning one final answer, and an incremental stream of progress
// events ending in exactly one result or error. Client hides both behind one
// contract and applies a separate time budget to each channel.
package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tutorgate/pkg/telemetry"
	"github.com/AleutianAI/tutorgate/services/gateway/budget"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

var tracer = otel.Tracer("tutorgate.brain")

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives per-call outcomes. observability.Metrics implements it.
type Observer interface {
	ObserveProbe(healthy bool, d time.Duration)
	ObserveCall(op, outcome string, d time.Duration)
	ObserveStreamEnd(outcome string, events int)
}

type nopObserver struct{}

func (nopObserver) ObserveProbe(bool, time.Duration)          {}
func (nopObserver) ObserveCall(string, string, time.Duration) {}
func (nopObserver) ObserveStreamEnd(string, int)              {}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend's base address (required), e.g. http://localhost:8000.
	BaseURL string

	// Primary bounds probe, blocking and streaming calls.
	Primary budget.Budget

	// Auxiliary bounds exam generation and system info.
	Auxiliary budget.Budget

	// HTTPClient overrides the transport (optional). It must not carry a
	// global timeout shorter than the attempt budget or streams are cut.
	HTTPClient HTTPClient

	// Logger overrides slog.Default() (optional).
	Logger *slog.Logger

	// Observer receives outcomes (optional).
	Observer Observer
}

// Client talks to the reasoning backend. The base address is fixed at
// construction; a Client is safe for concurrent use.
type Client struct {
	baseURL   string
	primary   budget.Budget
	auxiliary budget.Budget
	http      HTTPClient
	logger    *slog.Logger
	observer  Observer
}

// NewClient validates cfg and builds a Client.
//
// # Description
//
// Zero budgets take the package defaults and every budget is raised to its
// minimum. The default transport is an http.Client without Timeout: budgets
// are applied per call through contexts so a long stream is bounded by the
// attempt budget alone.
//
// # Inputs
//
//   - cfg: Client configuration. BaseURL must be an absolute http(s) URL.
//
// # Outputs
//
//   - *Client: Ready to use
//   - error: Non-nil when BaseURL is missing or malformed
//
// # Example
//
//	client, err := brain.NewClient(brain.Config{BaseURL: "http://localhost:8000"})
//	if err != nil {
//	    return err
//	}
//	healthy := client.Probe(ctx)
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("brain: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("brain: invalid base URL %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("brain: base URL %q must be an absolute http(s) URL", base)
	}

	c := &Client{
		baseURL:   base,
		primary:   cfg.Primary.WithDefaults(budget.Primary()).Validated(),
		auxiliary: cfg.Auxiliary.WithDefaults(budget.Auxiliary()).Validated(),
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c, nil
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Probe reports whether the backend is reachable and healthy.
//
// # Description
//
// Issues GET {base}/ under the probe budget. Any 2xx status is healthy.
// Network errors, timeouts and other statuses are unhealthy. Probe never
// returns an error and never panics.
func (c *Client) Probe(ctx context.Context) bool {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "brain.Probe")
	defer span.End()

	probeCtx, cancel := c.primary.ProbeContext(ctx)
	defer cancel()

	healthy := false
	defer func() {
		span.SetAttributes(attribute.Bool("brain.healthy", healthy))
		c.observer.ObserveProbe(healthy, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		c.logger.Warn("Probe request could not be built", "error", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Probe failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return false
	}
	defer drainAndClose(resp.Body)

	healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !healthy {
		c.logger.Debug("Probe returned non-2xx", "status_code", resp.StatusCode)
	}
	return healthy
}

// CallBlocking asks one question through the blocking channel.
//
// # Description
//
// Sends POST {base}/ask under the primary attempt budget and waits for the
// full answer. Nothing is retried.
//
// # Outputs
//
//   - datatypes.NormalizedResult: Source is always primary
//   - error: ErrTimeout, ErrUnavailable, *BackendError, or the caller's
//     context error when ctx was cancelled
func (c *Client) CallBlocking(ctx context.Context, req datatypes.AskRequest) (datatypes.NormalizedResult, error) {
	requestID := uuid.New().String()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "brain.CallBlocking", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Bool("brain.include_visual", req.IncludeVisual),
	))
	defer span.End()

	result, err := c.callBlocking(ctx, requestID, req)
	c.observer.ObserveCall("ask", outcomeOf(err), time.Since(start))
	if err != nil {
		recordSpanError(span, err)
		c.logger.Warn("Blocking call failed",
			"request_id", requestID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return datatypes.NormalizedResult{}, err
	}
	c.logger.Debug("Blocking call completed",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (c *Client) callBlocking(ctx context.Context, requestID string, req datatypes.AskRequest) (datatypes.NormalizedResult, error) {
	attemptCtx, cancel := c.primary.AttemptContext(ctx)
	defer cancel()

	httpReq, err := c.newJSONRequest(attemptCtx, requestID, c.baseURL+"/ask", req)
	if err != nil {
		return datatypes.NormalizedResult{}, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return datatypes.NormalizedResult{}, classifyTransport(ctx, attemptCtx, err)
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return datatypes.NormalizedResult{}, classifyTransport(ctx, attemptCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return datatypes.NormalizedResult{}, classifyStatus(resp.StatusCode, body)
	}

	var ar datatypes.AskResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return datatypes.NormalizedResult{}, &BackendError{Message: fmt.Sprintf("undecodable response: %v", err)}
	}
	if !ar.Success {
		msg := ar.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return datatypes.NormalizedResult{}, &BackendError{Message: msg}
	}

	var visual *datatypes.Visual
	if ar.VisualPath != "" || ar.VisualBase64 != "" {
		visual = &datatypes.Visual{Path: ar.VisualPath, Base64: ar.VisualBase64}
	}
	return datatypes.NewPrimaryResult(ar.Answer, ar.Critique, ar.Success, visual), nil
}

// GenerateExam asks the backend for an exam sheet under the auxiliary budget.
// Error mapping matches CallBlocking. Nothing is retried.
func (c *Client) GenerateExam(ctx context.Context, req datatypes.ExamRequest) (datatypes.ExamResponse, error) {
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		return datatypes.ExamResponse{}, fmt.Errorf("invalid exam request: %w", err)
	}

	requestID := uuid.New().String()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "brain.GenerateExam", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("exam.num_questions", req.NumQuestions),
	))
	defer span.End()

	q := url.Values{}
	q.Set("topic", req.Topic)
	q.Set("num_questions", strconv.Itoa(req.NumQuestions))

	var out datatypes.ExamResponse
	err := c.auxiliaryCall(ctx, requestID, http.MethodPost, "/generate-exam?"+q.Encode(), &out)
	if err == nil && !out.Success {
		err = &BackendError{Message: "exam generation reported failure"}
	}
	c.observer.ObserveCall("exam", outcomeOf(err), time.Since(start))
	if err != nil {
		recordSpanError(span, err)
		c.logger.Warn("Exam generation failed", "request_id", requestID, "error", err)
		return datatypes.ExamResponse{}, err
	}
	if out.Topic == "" {
		out.Topic = req.Topic
	}
	return out, nil
}

// SystemInfo describes the participants and capabilities of the backend.
type SystemInfo struct {
	Agents       []string          `json:"agents"`
	Capabilities []string          `json:"capabilities"`
	Endpoints    map[string]string `json:"endpoints"`
}

// SystemInfo fetches GET {base}/system/info under the auxiliary budget.
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	requestID := uuid.New().String()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "brain.SystemInfo")
	defer span.End()

	var out SystemInfo
	err := c.auxiliaryCall(ctx, requestID, http.MethodGet, "/system/info", &out)
	c.observer.ObserveCall("info", outcomeOf(err), time.Since(start))
	if err != nil {
		recordSpanError(span, err)
		return SystemInfo{}, err
	}
	return out, nil
}

func (c *Client) auxiliaryCall(ctx context.Context, requestID, method, path string, out any) error {
	attemptCtx, cancel := c.auxiliary.AttemptContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	telemetry.InjectContext(ctx, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransport(ctx, attemptCtx, err)
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(ctx, attemptCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &BackendError{Message: fmt.Sprintf("undecodable response: %v", err)}
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, requestID, target string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	telemetry.InjectContext(ctx, req.Header)
	return req, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Outcome labels shared with the metrics layer.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeBackend     = "backend_error"
	OutcomeCanceled    = "canceled"
	OutcomeIncomplete  = "incomplete"
	OutcomeOther       = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case isTimeout(err):
		return OutcomeTimeout
	case isUnavailable(err):
		return OutcomeUnavailable
	case IsBackendError(err):
		return OutcomeBackend
	case isCanceled(err):
		return OutcomeCanceled
	}
	return OutcomeOther
}
