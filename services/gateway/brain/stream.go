// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/sse"
)

// OpenStream starts a streaming question.
//
// # Description
//
// Sends POST {base}/ask-stream with Accept: text/event-stream. The attempt
// budget covers the whole stream, headers and body alike. The returned
// Stream owns the connection; callers must Close it.
//
// # Outputs
//
//   - *Stream: Yields events in arrival order
//   - error: ErrUnavailable when the backend cannot be reached, ErrTimeout
//     when the budget elapsed before headers arrived, *BackendError on a
//     non-2xx status, or the caller's context error
//
// # Example
//
//	stream, err := client.OpenStream(ctx, datatypes.AskRequest{Question: q})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for ev, err := range stream.All() {
//	    ...
//	}
func (c *Client) OpenStream(ctx context.Context, req datatypes.AskRequest) (*Stream, error) {
	requestID := uuid.New().String()
	start := time.Now()
	spanCtx, span := tracer.Start(ctx, "brain.Stream", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Bool("brain.include_visual", req.IncludeVisual),
	))

	attemptCtx, cancel := c.primary.AttemptContext(spanCtx)

	fail := func(err error) (*Stream, error) {
		cancel()
		recordSpanError(span, err)
		span.End()
		c.observer.ObserveCall("stream_open", outcomeOf(err), time.Since(start))
		c.logger.Warn("Stream open failed", "request_id", requestID, "error", err)
		return nil, err
	}

	httpReq, err := c.newJSONRequest(attemptCtx, requestID, c.baseURL+"/ask-stream", req)
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fail(classifyTransport(ctx, attemptCtx, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		return fail(classifyStatus(resp.StatusCode, body))
	}

	c.observer.ObserveCall("stream_open", OutcomeOK, time.Since(start))
	logger := c.logger.With("request_id", requestID)
	logger.Debug("Stream opened", "duration_ms", time.Since(start).Milliseconds())

	return &Stream{
		requestID: requestID,
		caller:    ctx,
		attempt:   attemptCtx,
		cancel:    cancel,
		body:      resp.Body,
		reader:    sse.NewReader(resp.Body, logger),
		logger:    logger,
		observer:  c.observer,
		span:      span,
		start:     start,
	}, nil
}

// Stream is one open streaming session.
//
// # Description
//
// Next yields events in arrival order. After the first result or error event
// every later call returns io.EOF. When the transport closes (clean EOF,
// read error or attempt budget expiry) before a terminal event arrived, Next
// yields exactly one synthetic ErrorEvent with code incomplete_stream and
// then io.EOF. Caller cancellation yields the caller's context error. A
// stream abandoned through Close yields io.EOF.
//
// # Thread Safety
//
// Next must be called from one goroutine. Close may be called from any
// goroutine, including while Next is blocked, and is idempotent.
type Stream struct {
	requestID string
	caller    context.Context
	attempt   context.Context
	cancel    context.CancelFunc
	body      io.ReadCloser
	reader    *sse.Reader
	logger    *slog.Logger
	observer  Observer
	span      trace.Span
	start     time.Time

	finished bool
	events   atomic.Int64

	mu        sync.Mutex
	outcome   string
	closed    atomic.Bool
	closeOnce sync.Once
}

// RequestID returns the id sent as X-Request-ID.
func (s *Stream) RequestID() string {
	return s.requestID
}

// Next returns the next event.
func (s *Stream) Next() (datatypes.Event, error) {
	if s.finished {
		return nil, io.EOF
	}
	if s.closed.Load() {
		s.finished = true
		return nil, io.EOF
	}
	if err := s.caller.Err(); err != nil {
		s.finish(OutcomeCanceled)
		return nil, err
	}

	ev, err := s.reader.Next()
	if err == nil {
		s.events.Add(1)
		if datatypes.IsTerminal(ev) {
			outcome := OutcomeOK
			if ev.Kind() == datatypes.KindError {
				outcome = OutcomeBackend
			}
			s.finish(outcome)
		}
		return ev, nil
	}

	if cerr := s.caller.Err(); cerr != nil {
		s.finish(OutcomeCanceled)
		return nil, cerr
	}
	if s.closed.Load() {
		s.finished = true
		return nil, io.EOF
	}

	var cause error
	switch {
	case errors.Is(s.attempt.Err(), context.DeadlineExceeded):
		cause = ErrTimeout
	case err != io.EOF:
		cause = err
	}
	s.logger.Warn("Stream closed without a terminal event",
		"cause", cause,
		"events", s.events.Load(),
		"skipped_frames", s.reader.Skipped())
	s.finish(OutcomeIncomplete)
	return datatypes.NewIncompleteStreamEvent(cause), nil
}

// All returns an iterator over the remaining events. Iteration stops after
// the terminal event or the first error; the stream is closed when the
// iteration ends.
func (s *Stream) All() iter.Seq2[datatypes.Event, error] {
	return func(yield func(datatypes.Event, error) bool) {
		defer s.Close()
		for {
			ev, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the connection and the attempt budget. It is safe to call
// more than once and after io.EOF.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		err = s.body.Close()

		s.mu.Lock()
		outcome := s.outcome
		s.mu.Unlock()
		if outcome == "" {
			outcome = "abandoned"
		}

		s.span.SetAttributes(
			attribute.String("stream.outcome", outcome),
			attribute.Int64("stream.events", s.events.Load()),
		)
		s.span.End()
		s.observer.ObserveStreamEnd(outcome, int(s.events.Load()))
		s.logger.Debug("Stream closed",
			"outcome", outcome,
			"events", s.events.Load(),
			"duration_ms", time.Since(s.start).Milliseconds())
	})
	return err
}

func (s *Stream) finish(outcome string) {
	s.finished = true
	s.mu.Lock()
	s.outcome = outcome
	s.mu.Unlock()
	_ = s.Close()
}

// EventSource is anything that yields session events the way Stream does.
type EventSource interface {
	Next() (datatypes.Event, error)
	Close() error
}

// Collect drains src into a NormalizedResult.
//
// # Description
//
// For callers that want the streaming channel without live display. A
// result event becomes a primary result; a backend error event becomes a
// *BackendError; the synthetic incomplete-stream event becomes
// ErrIncompleteStream. src is closed on return.
func Collect(src EventSource) (datatypes.NormalizedResult, error) {
	defer src.Close()
	for {
		ev, err := src.Next()
		if err == io.EOF {
			return datatypes.NormalizedResult{}, ErrIncompleteStream
		}
		if err != nil {
			return datatypes.NormalizedResult{}, err
		}
		switch e := ev.(type) {
		case *datatypes.ResultEvent:
			return datatypes.NewPrimaryResult(e.Answer, e.Critique, e.Success, e.Visual), nil
		case *datatypes.ErrorEvent:
			if e.IsIncomplete() {
				return datatypes.NormalizedResult{}, fmt.Errorf("%w: %s", ErrIncompleteStream, e.Message)
			}
			return datatypes.NormalizedResult{}, &BackendError{Message: e.Message}
		}
	}
}

var _ EventSource = (*Stream)(nil)
