// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/budget"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/llm"
)

var tracer = otel.Tracer("tutorgate.fallback")

// Primary is the slice of the channel client the controller drives.
// *brain.Client satisfies it.
type Primary interface {
	Probe(ctx context.Context) bool
	CallBlocking(ctx context.Context, req datatypes.AskRequest) (datatypes.NormalizedResult, error)
}

// Recorder receives the controller's metrics. All methods must be safe for
// concurrent use.
type Recorder interface {
	ObservePath(source datatypes.Source, d time.Duration)
	ObserveFallback(reason string)
	ObserveFallbackFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePath(datatypes.Source, time.Duration) {}
func (nopRecorder) ObserveFallback(string)                      {}
func (nopRecorder) ObserveFallbackFailure(string)               {}

// Config wires a Controller.
type Config struct {
	// Primary is the reasoning backend. Required.
	Primary Primary

	// Fallback is the single-model client. Required.
	Fallback llm.LLMClient

	// Budget bounds the single-model call. Zero values take the defaults.
	Budget budget.Budget

	// Params are passed to every single-model call.
	Params llm.GenerationParams

	// Breaker short-circuits the primary path after repeated failures
	// (optional).
	Breaker *Breaker

	Logger   *slog.Logger
	Recorder Recorder

	// OnTransition is called synchronously for every state change of every
	// question (optional).
	OnTransition func(from, to State)
}

// Controller answers questions on the server-mediated path.
//
// # Description
//
// Each question runs START → PROBE → PRIMARY → DONE. An unhealthy probe,
// an open breaker or any primary failure moves the question to FALLBACK,
// where one single-model request produces the answer. The caller only ever
// sees a NormalizedResult tagged with its Source, or a FallbackFailedError.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent questions share one in-flight probe.
type Controller struct {
	primary      Primary
	fallback     llm.LLMClient
	budget       budget.Budget
	params       llm.GenerationParams
	breaker      *Breaker
	logger       *slog.Logger
	recorder     Recorder
	onTransition func(from, to State)
	probes       singleflight.Group
}

// NewController validates cfg and builds a Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Primary == nil {
		return nil, errors.New("fallback: primary client is required")
	}
	if cfg.Fallback == nil {
		return nil, errors.New("fallback: single-model client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Controller{
		primary:      cfg.Primary,
		fallback:     cfg.Fallback,
		budget:       cfg.Budget.WithDefaults(budget.Fallback()).Validated(),
		params:       cfg.Params,
		breaker:      cfg.Breaker,
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		onTransition: cfg.OnTransition,
	}, nil
}

// BuildPrompt folds the context block into the single-model prompt the same
// way the reasoning backend does.
func BuildPrompt(req datatypes.AskRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return req.Question
	}
	return "Context: " + req.Context + "\n\nQuestion: " + req.Question
}

// question tracks the state of one Answer call.
type question struct {
	c      *Controller
	state  State
	logger *slog.Logger
}

func (q *question) to(next State) {
	from := q.state
	q.state = next
	q.logger.Debug("Fallback controller transition", "from", from.String(), "to", next.String())
	if q.c.onTransition != nil {
		q.c.onTransition(from, next)
	}
}

// Answer runs one question through the state machine.
//
// # Description
//
// Probes the backend, then calls it under its long attempt budget. Probe
// failure, an open breaker and every primary error other than caller
// cancellation divert the question to the single-model path under the
// fallback budget. Nothing is retried.
//
// # Inputs
//
//   - ctx: Caller context. Cancelling it stops the question in any state.
//   - req: The question with its assembled context.
//
// # Outputs
//
//   - datatypes.NormalizedResult: Source tells which path answered
//   - error: ErrInvalidRequest, *FallbackFailedError, or ctx.Err()
//
// # Example
//
//	res, err := ctrl.Answer(ctx, datatypes.AskRequest{Question: "What is entropy?"})
//	if errors.Is(err, fallback.ErrFallbackFailed) {
//	    // both paths failed
//	}
func (c *Controller) Answer(ctx context.Context, req datatypes.AskRequest) (datatypes.NormalizedResult, error) {
	if err := req.Validate(); err != nil {
		return datatypes.NormalizedResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "fallback.Answer")
	defer span.End()

	q := &question{c: c, state: StateStart, logger: c.logger}

	if c.breaker != nil && !c.breaker.Allow() {
		return c.runFallback(ctx, q, req, ReasonCircuitOpen, nil, start)
	}

	q.to(StateProbe)
	healthy := c.probe(ctx)
	if err := ctx.Err(); err != nil {
		return datatypes.NormalizedResult{}, err
	}
	if !healthy {
		c.recordPrimaryFailure()
		return c.runFallback(ctx, q, req, ReasonProbeFailed, nil, start)
	}

	q.to(StatePrimary)
	result, err := c.primary.CallBlocking(ctx, req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return datatypes.NormalizedResult{}, cerr
		}
		c.recordPrimaryFailure()
		return c.runFallback(ctx, q, req, reasonFor(err), err, start)
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	q.to(StateDone)
	span.SetAttributes(attribute.String("fallback.source", string(datatypes.SourcePrimary)))
	c.recorder.ObservePath(datatypes.SourcePrimary, time.Since(start))
	return result, nil
}

func (c *Controller) runFallback(ctx context.Context, q *question, req datatypes.AskRequest, reason Reason, primaryErr error, start time.Time) (datatypes.NormalizedResult, error) {
	ctx, span := tracer.Start(ctx, "fallback.SingleModel")
	defer span.End()
	span.SetAttributes(attribute.String("fallback.reason", string(reason)))

	q.to(StateFallback)
	c.recorder.ObserveFallback(string(reason))
	c.logger.Info("Answering on the single-model path",
		"reason", string(reason),
		"primary_error", errString(primaryErr))

	attemptCtx, cancel := c.budget.AttemptContext(ctx)
	defer cancel()

	answer, err := c.fallback.Generate(attemptCtx, BuildPrompt(req), c.params)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return datatypes.NormalizedResult{}, cerr
		}
		return datatypes.NormalizedResult{}, c.fail(span, reason, primaryErr, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return datatypes.NormalizedResult{}, c.fail(span, reason, primaryErr, ErrEmptyAnswer)
	}

	q.to(StateDone)
	c.recorder.ObservePath(datatypes.SourceFallback, time.Since(start))
	return datatypes.NewFallbackResult(answer), nil
}

func (c *Controller) fail(span trace.Span, reason Reason, primaryErr, err error) error {
	ferr := &FallbackFailedError{Reason: reason, PrimaryErr: primaryErr, Err: err}
	span.RecordError(ferr)
	span.SetStatus(codes.Error, ferr.Error())
	c.recorder.ObserveFallbackFailure(string(reason))
	c.logger.Error("Single-model path failed", "reason", string(reason), "error", err)
	return ferr
}

// probe shares one in-flight probe between concurrent questions. The shared
// call ignores caller cancellation; the client's probe budget bounds it.
func (c *Controller) probe(ctx context.Context) bool {
	ch := c.probes.DoChan("probe", func() (any, error) {
		return c.primary.Probe(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		healthy, _ := res.Val.(bool)
		return healthy
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) recordPrimaryFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

// reasonFor maps a primary-path error to the reason recorded for FALLBACK.
func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, brain.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, brain.ErrUnavailable):
		return ReasonUnavailable
	case brain.IsBackendError(err):
		return ReasonBackendError
	}
	return ReasonPrimaryError
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
