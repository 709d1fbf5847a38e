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
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/tutorgate/pkg/ux"
	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/progress"
)

// errInterrupted is returned when the user stops the live display.
var errInterrupted = errors.New("interrupted")

// question is one thing to ask plus what the mediated path needs to build
// context on the gateway side.
type question struct {
	ask      datatypes.AskRequest
	project  *datatypes.Project
	history  []datatypes.Turn
	mediated bool
}

// answer runs q on the selected path and prints the outcome.
func (a *app) answer(ctx context.Context, q question) (datatypes.GatewayAskResponse, error) {
	var (
		resp datatypes.GatewayAskResponse
		err  error
	)
	if q.mediated {
		resp, err = a.askMediated(ctx, q)
	} else {
		resp, err = a.askDirect(ctx, q.ask)
	}
	if err != nil {
		return datatypes.GatewayAskResponse{}, err
	}
	a.printer.Answer(resp)
	return resp, nil
}

func (a *app) brainClient() (*brain.Client, error) {
	budgets := a.cfg.BudgetSet()
	cfg := brain.Config{
		BaseURL:   a.cfg.Brain.URL,
		Primary:   budgets.Primary,
		Auxiliary: budgets.Auxiliary,
		Logger:    a.logger,
	}
	if a.httpClient != nil {
		cfg.HTTPClient = a.httpClient
	}
	return brain.NewClient(cfg)
}

// askDirect opens the event stream and renders progress until the terminal
// event.
func (a *app) askDirect(ctx context.Context, req datatypes.AskRequest) (datatypes.GatewayAskResponse, error) {
	if err := req.Validate(); err != nil {
		return datatypes.GatewayAskResponse{}, err
	}
	client, err := a.brainClient()
	if err != nil {
		return datatypes.GatewayAskResponse{}, err
	}
	stream, err := client.OpenStream(ctx, req)
	if err != nil {
		return datatypes.GatewayAskResponse{}, fmt.Errorf("could not reach the reasoning backend: %w", err)
	}
	defer stream.Close()

	var (
		view   progress.View
		srcErr error
	)
	if a.live {
		final, err := tea.NewProgram(ux.NewProgressModel(stream), tea.WithOutput(a.progressOut)).Run()
		if err != nil {
			return datatypes.GatewayAskResponse{}, fmt.Errorf("progress display: %w", err)
		}
		m, ok := final.(ux.ProgressModel)
		if !ok {
			return datatypes.GatewayAskResponse{}, fmt.Errorf("unexpected model type from bubbletea: %T", final)
		}
		if m.Interrupted() {
			return datatypes.GatewayAskResponse{}, errInterrupted
		}
		view, srcErr = m.Progress(), m.Err()
	} else {
		renderer := ux.NewLineRenderer(a.progressOut, a.printer.Mode())
		for ev, err := range stream.All() {
			if err != nil {
				srcErr = err
				break
			}
			view = renderer.Render(ev)
		}
	}
	return outcome(view, srcErr)
}

// outcome converts the final view of a session into an answer or error.
func outcome(view progress.View, srcErr error) (datatypes.GatewayAskResponse, error) {
	if srcErr != nil {
		return datatypes.GatewayAskResponse{}, srcErr
	}
	if r, ok := view.Result(); ok {
		return datatypes.NewPrimaryResult(r.Answer, r.Critique, r.Success, r.Visual).Response(), nil
	}
	if view.HasError() {
		if view.ErrorCode() == datatypes.ErrorCodeIncompleteStream {
			return datatypes.GatewayAskResponse{}, fmt.Errorf("%w: %s", brain.ErrIncompleteStream, view.ErrorMessage())
		}
		return datatypes.GatewayAskResponse{}, &brain.BackendError{Message: view.ErrorMessage()}
	}
	return datatypes.GatewayAskResponse{}, brain.ErrIncompleteStream
}

// askMediated sends the question to the gateway. The gateway assembles
// context from project and history when the request carries none.
func (a *app) askMediated(ctx context.Context, q question) (datatypes.GatewayAskResponse, error) {
	budgets := a.cfg.BudgetSet()
	ctx, cancel := context.WithTimeout(ctx, budgets.Primary.Probe+budgets.Primary.Attempt+budgets.Fallback.Attempt)
	defer cancel()

	gw := newGatewayClient(a.cfg.Tutor.GatewayURL, a.httpClient)
	a.printer.Muted("Asking through the gateway...")
	return gw.Ask(ctx, datatypes.GatewayAskRequest{
		AskRequest: q.ask,
		Project:    q.project,
		History:    q.history,
	})
}
