// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxQuestionBytes bounds the question text accepted by the gateway.
	MaxQuestionBytes = 16 * 1024

	// MaxContextBytes bounds a caller-supplied context block.
	MaxContextBytes = 64 * 1024

	// DefaultExamQuestions is used when an exam request omits the count.
	DefaultExamQuestions = 5
)

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// =============================================================================
// BACKEND REQUESTS
// =============================================================================

// AskRequest is the body of both the blocking and the streaming backend call.
//
// # Fields
//
//   - Question: Required. The user's question.
//   - Context: Optional. Output of the context assembler.
//   - IncludeVisual: Ask the backend to attach a generated visual.
//   - VisualType: Optional. One of flowchart, diagram, infographic, illustration.
type AskRequest struct {
	Question      string `json:"question" validate:"required,nonblank,max=16384"`
	Context       string `json:"context,omitempty" validate:"max=65536"`
	IncludeVisual bool   `json:"includeVisual"`
	VisualType    string `json:"visualType,omitempty" validate:"omitempty,oneof=flowchart diagram infographic illustration"`
}

// Validate checks the request against its validator tags.
func (r *AskRequest) Validate() error {
	return requestValidate.Struct(r)
}

// AskResponse is the backend's blocking-call response body.
type AskResponse struct {
	Answer       string `json:"answer"`
	Critique     string `json:"critique"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	VisualPath   string `json:"visualPath,omitempty"`
	VisualBase64 string `json:"visualBase64,omitempty"`
}

// ExamRequest asks the backend for an exam sheet on a topic.
type ExamRequest struct {
	Topic        string `json:"topic" validate:"required,nonblank,max=512"`
	NumQuestions int    `json:"num_questions" validate:"gte=0,lte=50"`
}

// Validate checks the request against its validator tags.
func (r *ExamRequest) Validate() error {
	return requestValidate.Struct(r)
}

// EnsureDefaults fills NumQuestions when the caller left it at zero.
func (r *ExamRequest) EnsureDefaults() {
	if r.NumQuestions == 0 {
		r.NumQuestions = DefaultExamQuestions
	}
}

// ExamResponse is the auxiliary generation response.
type ExamResponse struct {
	Success     bool   `json:"success"`
	ExamContent string `json:"examContent"`
	Topic       string `json:"topic"`
}

// =============================================================================
// CONTEXT INPUTS
// =============================================================================

// Project is the summary of the learning project the user has selected.
// Ownership stays with the persistence layer; the core only reads it.
type Project struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Objectives  string `json:"objectives,omitempty" yaml:"objectives"`
	Background  string `json:"background,omitempty" yaml:"background"`
}

// IsBlank reports whether every field is empty after trimming.
func (p *Project) IsBlank() bool {
	if p == nil {
		return true
	}
	for _, f := range []string{p.Title, p.Description, p.Objectives, p.Background} {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Role names the speaker of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation history, oldest first.
type Turn struct {
	Role    Role   `json:"role" validate:"oneof=user assistant"`
	Content string `json:"content"`
}

// =============================================================================
// GATEWAY SURFACE
// =============================================================================

// GatewayAskRequest is the body of the gateway's mediated /v1/ask endpoint.
// When Context is empty and Project or History are present, the gateway
// assembles the context block itself.
type GatewayAskRequest struct {
	AskRequest
	Project *Project `json:"project,omitempty"`
	History []Turn   `json:"history,omitempty" validate:"max=200,dive"`
}

// Validate checks the request against its validator tags.
func (r *GatewayAskRequest) Validate() error {
	return requestValidate.Struct(r)
}

// GatewayAskResponse is what the mediated path returns on success.
type GatewayAskResponse struct {
	Answer       string `json:"answer"`
	Critique     string `json:"critique"`
	Success      bool   `json:"success"`
	Source       Source `json:"source"`
	VisualPath   string `json:"visualPath,omitempty"`
	VisualBase64 string `json:"visualBase64,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx gateway reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
