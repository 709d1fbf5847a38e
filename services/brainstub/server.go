// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package brainstub is a scripted stand-in for the reasoning backend.
//
// It serves the same HTTP surface (probe, blocking ask, event stream, exam
// generation and system info) with deterministic content, and can be told
// to misbehave so that the gateway's fallback and incomplete-stream paths
// can be exercised without the real backend.
package brainstub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/sse"
)

// Config scripts the stub's behavior.
type Config struct {
	// Participants are the named contributors of the collecting stage.
	Participants []string

	// Delay is slept between stream events and before a blocking answer.
	Delay time.Duration

	// Unhealthy makes the probe and every ask endpoint return 503.
	Unhealthy bool

	// FailStream emits an error event right after the collecting stage.
	FailStream bool

	// DropTerminal closes the stream after the last stage without a result.
	DropTerminal bool

	Logger *slog.Logger
}

// DefaultParticipants mirrors a small deliberation panel.
var DefaultParticipants = []string{"DeepSeek", "Llama", "Qwen"}

type server struct {
	cfg Config
}

// NewRouter returns a gin engine serving the backend surface.
func NewRouter(cfg Config) *gin.Engine {
	if len(cfg.Participants) == 0 {
		cfg.Participants = DefaultParticipants
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &server{cfg: cfg}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", s.handleRoot)
	router.POST("/ask", s.handleAsk)
	router.POST("/ask-stream", s.handleAskStream)
	router.POST("/generate-exam", s.handleExam)
	router.GET("/system/info", s.handleInfo)
	return router
}

func (s *server) handleRoot(c *gin.Context) {
	if s.cfg.Unhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "brainstub"})
}

func (s *server) bindAsk(c *gin.Context) (datatypes.AskRequest, bool) {
	if s.cfg.Unhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
		return datatypes.AskRequest{}, false
	}
	var req datatypes.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return datatypes.AskRequest{}, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return datatypes.AskRequest{}, false
	}
	return req, true
}

func (s *server) handleAsk(c *gin.Context) {
	req, ok := s.bindAsk(c)
	if !ok {
		return
	}
	if err := sleep(c.Request.Context(), s.cfg.Delay); err != nil {
		return
	}
	result := compose(req)
	c.JSON(http.StatusOK, datatypes.AskResponse{
		Answer:     result.Answer,
		Critique:   result.Critique,
		Success:    true,
		VisualPath: visualPath(result.Visual),
	})
}

func (s *server) handleAskStream(c *gin.Context) {
	req, ok := s.bindAsk(c)
	if !ok {
		return
	}
	sse.SetHeaders(c.Writer)
	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for _, ev := range s.script(req) {
		if err := sleep(ctx, s.cfg.Delay); err != nil {
			s.cfg.Logger.Debug("Client went away", "error", err)
			return
		}
		if err := w.WriteEvent(ev); err != nil {
			s.cfg.Logger.Warn("Stream write failed", "error", err)
			return
		}
	}
}

// script returns the full event sequence for req.
func (s *server) script(req datatypes.AskRequest) []datatypes.Event {
	var events []datatypes.Event
	stage := func(st datatypes.Stage, detail string, participants ...string) {
		events = append(events, progress(st, datatypes.ParticipantSystem, datatypes.StatusStarted, detail))
		for _, p := range participants {
			events = append(events, progress(st, p, datatypes.StatusStarted, ""))
		}
		for _, p := range participants {
			events = append(events, progress(st, p, datatypes.StatusDone, "contributed"))
		}
		events = append(events, progress(st, datatypes.ParticipantSystem, datatypes.StatusDone, ""))
	}

	stage(datatypes.StageRetrieving, "searching course material")
	stage(datatypes.StageCollecting, "drafting answers", s.cfg.Participants...)
	if s.cfg.FailStream {
		return append(events, &datatypes.ErrorEvent{
			Code:    datatypes.ErrorCodeBackend,
			Message: "collecting stage failed: participant crashed",
		})
	}
	stage(datatypes.StageRanking, "ranking drafts", "judge")
	stage(datatypes.StageSynthesizing, "merging answers", "synthesizer")
	stage(datatypes.StageReviewing, "checking accuracy", "critic")
	if req.IncludeVisual {
		stage(datatypes.StageVisualizing, "rendering "+visualType(req), "illustrator")
	}
	if s.cfg.DropTerminal {
		return events
	}
	return append(events, compose(req))
}

func (s *server) handleExam(c *gin.Context) {
	if s.cfg.Unhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
		return
	}
	topic := strings.TrimSpace(c.Query("topic"))
	n, err := strconv.Atoi(c.DefaultQuery("num_questions", strconv.Itoa(datatypes.DefaultExamQuestions)))
	if topic == "" || err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "topic and a positive num_questions are required"})
		return
	}
	if err := sleep(c.Request.Context(), s.cfg.Delay); err != nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Exam: %s\n", topic)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "\n%d. Explain one key idea of %s (question %d).", i, topic, i)
	}
	c.JSON(http.StatusOK, datatypes.ExamResponse{Success: true, ExamContent: b.String(), Topic: topic})
}

func (s *server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"agents":       append(append([]string{}, s.cfg.Participants...), "judge", "synthesizer", "critic"),
		"capabilities": []string{"ask", "ask-stream", "generate-exam", "visuals"},
		"endpoints": gin.H{
			"ask":           "/ask",
			"ask-stream":    "/ask-stream",
			"generate-exam": "/generate-exam",
		},
	})
}

func compose(req datatypes.AskRequest) *datatypes.ResultEvent {
	answer := "Answer to: " + strings.TrimSpace(req.Question)
	if strings.TrimSpace(req.Context) != "" {
		answer += " (grounded in the provided context)"
	}
	res := &datatypes.ResultEvent{
		Answer:   answer,
		Critique: "Reviewed for accuracy; no issues found.",
		Success:  true,
	}
	if req.IncludeVisual {
		res.Visual = &datatypes.Visual{Path: "/visuals/" + visualType(req) + ".png"}
	}
	return res
}

func visualType(req datatypes.AskRequest) string {
	if req.VisualType == "" {
		return "illustration"
	}
	return req.VisualType
}

func visualPath(v *datatypes.Visual) string {
	if v == nil {
		return ""
	}
	return v.Path
}

func progress(stage datatypes.Stage, participant string, status datatypes.ProgressStatus, detail string) *datatypes.ProgressEvent {
	return &datatypes.ProgressEvent{Stage: stage, Participant: participant, Status: status, Detail: detail}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
