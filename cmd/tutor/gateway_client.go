// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AleutianAI/tutorgate/pkg/telemetry"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// GatewayError is a non-2xx reply from the gateway.
type GatewayError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// gatewayClient talks to the mediated path. Budgets come from the caller's
// context; the client itself sets no timeout.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(baseURL string, hc *http.Client) *gatewayClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &gatewayClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Ask posts to /v1/ask.
func (g *gatewayClient) Ask(ctx context.Context, req datatypes.GatewayAskRequest) (datatypes.GatewayAskResponse, error) {
	var out datatypes.GatewayAskResponse
	err := g.do(ctx, http.MethodPost, "/v1/ask", req, &out)
	return out, err
}

// Exam posts to /v1/exam.
func (g *gatewayClient) Exam(ctx context.Context, req datatypes.ExamRequest) (datatypes.ExamResponse, error) {
	var out datatypes.ExamResponse
	err := g.do(ctx, http.MethodPost, "/v1/exam", req, &out)
	return out, err
}

// BackendHealthy asks the gateway to probe the backend.
func (g *gatewayClient) BackendHealthy(ctx context.Context) (bool, error) {
	var out struct {
		Healthy bool `json:"healthy"`
	}
	if err := g.do(ctx, http.MethodGet, "/v1/backend/health", nil, &out); err != nil {
		return false, err
	}
	return out.Healthy, nil
}

func (g *gatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er datatypes.ErrorResponse
		if json.Unmarshal(data, &er) != nil || er.Error == "" {
			er.Error = strings.TrimSpace(string(data))
		}
		return &GatewayError{StatusCode: resp.StatusCode, Message: er.Error, RequestID: er.RequestID}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
