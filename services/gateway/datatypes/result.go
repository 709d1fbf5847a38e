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

// Source tags which path produced a NormalizedResult.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// NormalizedResult is the single output shape produced whichever channel or
// path answered the question.
//
// # Description
//
// Built exactly once per question, either from a result event or blocking
// response (primary) or from the single-model fallback. It is passed by
// value and has no mutating methods, so a holder can never observe it change.
// Use NewPrimaryResult or NewFallbackResult; the zero value has no Source.
type NormalizedResult struct {
	answer   string
	critique string
	success  bool
	source   Source
	visual   *Visual
}

// NewPrimaryResult builds a result produced by the reasoning backend.
func NewPrimaryResult(answer, critique string, success bool, visual *Visual) NormalizedResult {
	return NormalizedResult{
		answer:   answer,
		critique: critique,
		success:  success,
		source:   SourcePrimary,
		visual:   copyVisual(visual),
	}
}

// NewFallbackResult builds a result produced by the single-model path. The
// fallback has no review stage, so the critique is always empty.
func NewFallbackResult(answer string) NormalizedResult {
	return NormalizedResult{
		answer:  answer,
		success: true,
		source:  SourceFallback,
	}
}

func (r NormalizedResult) Answer() string   { return r.answer }
func (r NormalizedResult) Critique() string { return r.critique }
func (r NormalizedResult) Success() bool    { return r.success }
func (r NormalizedResult) Source() Source   { return r.source }

// Visual returns a copy of the attached visual, or nil.
func (r NormalizedResult) Visual() *Visual { return copyVisual(r.visual) }

// IsZero reports whether r was never constructed.
func (r NormalizedResult) IsZero() bool { return r.source == "" }

// Response converts r into the gateway's JSON body.
func (r NormalizedResult) Response() GatewayAskResponse {
	resp := GatewayAskResponse{
		Answer:   r.answer,
		Critique: r.critique,
		Success:  r.success,
		Source:   r.source,
	}
	if r.visual != nil {
		resp.VisualPath = r.visual.Path
		resp.VisualBase64 = r.visual.Base64
	}
	return resp
}

func copyVisual(v *Visual) *Visual {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
