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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tutorgate/pkg/ux"
	"github.com/AleutianAI/tutorgate/services/gateway/contextblock"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// errUnhealthy makes `tutor health` exit non-zero.
var errUnhealthy = errors.New("reasoning backend is not healthy")

type askOptions struct {
	mediated    bool
	visual      bool
	visualType  string
	projectPath string
	context     string
}

func (o *askOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.mediated, "mediated", false, "ask through the gateway, which falls back to a single model")
	f.BoolVar(&o.visual, "visual", false, "request a generated visual with the answer")
	f.StringVar(&o.visualType, "visual-type", "", "flowchart, diagram, infographic or illustration")
	f.StringVar(&o.projectPath, "project", "", "YAML file describing the student's project")
}

func newAskCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and watch the deliberation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := tutor.runAsk(cmd.Context(), strings.Join(args, " "), opts)
			return err
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.context, "context", "", "explicit context; overrides the project block")
	return cmd
}

func (a *app) runAsk(ctx context.Context, text string, opts askOptions) (datatypes.GatewayAskResponse, error) {
	project, err := loadProject(opts.projectPath)
	if err != nil {
		return datatypes.GatewayAskResponse{}, err
	}
	q := question{
		ask: datatypes.AskRequest{
			Question:      text,
			Context:       opts.context,
			IncludeVisual: opts.visual || a.cfg.Tutor.Visual,
			VisualType:    opts.visualType,
		},
		project:  project,
		mediated: opts.mediated,
	}
	if !q.mediated && q.ask.Context == "" {
		if block, ok := contextblock.Build(project, nil, a.cfg.Context.MaxTurns, a.cfg.Context.MaxTurnChars); ok {
			q.ask.Context = block
		}
	}
	return a.answer(ctx, q)
}

func newChatCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session that remembers the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := loadProject(opts.projectPath)
			if err != nil {
				return err
			}
			s := &chatSession{
				app:      tutor,
				project:  project,
				mediated: opts.mediated,
				visual:   opts.visual || tutor.cfg.Tutor.Visual,
			}
			reader := ux.NewInputReader(tutor.in, tutor.inFd, os.Stderr, "> ")
			return s.run(cmd.Context(), reader)
		},
	}
	opts.register(cmd)
	return cmd
}

func newExamCmd() *cobra.Command {
	var (
		topic    string
		count    int
		mediated bool
	)
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Generate a practice exam on a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tutor.runExam(cmd.Context(), datatypes.ExamRequest{Topic: topic, NumQuestions: count}, mediated)
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "exam topic")
	cmd.Flags().IntVarP(&count, "count", "n", datatypes.DefaultExamQuestions, "number of questions")
	cmd.Flags().BoolVar(&mediated, "mediated", false, "generate through the gateway")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func (a *app) runExam(ctx context.Context, req datatypes.ExamRequest, mediated bool) error {
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		return err
	}

	var (
		exam datatypes.ExamResponse
		err  error
	)
	if mediated {
		ctx, cancel := a.cfg.BudgetSet().Auxiliary.AttemptContext(ctx)
		defer cancel()
		exam, err = newGatewayClient(a.cfg.Tutor.GatewayURL, a.httpClient).Exam(ctx, req)
	} else {
		client, cerr := a.brainClient()
		if cerr != nil {
			return cerr
		}
		exam, err = client.GenerateExam(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("exam generation failed: %w", err)
	}
	a.printer.Box("Exam: "+exam.Topic, strings.TrimSpace(exam.ExamContent))
	return nil
}

func newHealthCmd() *cobra.Command {
	var mediated bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the reasoning backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tutor.runHealth(cmd.Context(), mediated)
		},
	}
	cmd.Flags().BoolVar(&mediated, "mediated", false, "probe through the gateway")
	return cmd
}

func (a *app) runHealth(ctx context.Context, mediated bool) error {
	var healthy bool
	target := a.cfg.Brain.URL
	if mediated {
		target = a.cfg.Tutor.GatewayURL
		ctx, cancel := a.cfg.BudgetSet().Auxiliary.AttemptContext(ctx)
		defer cancel()
		ok, err := newGatewayClient(a.cfg.Tutor.GatewayURL, a.httpClient).BackendHealthy(ctx)
		if err != nil {
			return err
		}
		healthy = ok
	} else {
		client, err := a.brainClient()
		if err != nil {
			return err
		}
		healthy = client.Probe(ctx)
	}

	if !healthy {
		a.printer.Error(fmt.Sprintf("Backend behind %s is not responding", target))
		return errUnhealthy
	}
	a.printer.Success(fmt.Sprintf("Backend behind %s is healthy", target))
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the backend's participants and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tutor.runInfo(cmd.Context())
		},
	}
}

func (a *app) runInfo(ctx context.Context) error {
	client, err := a.brainClient()
	if err != nil {
		return err
	}
	info, err := client.SystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("system info: %w", err)
	}
	a.printer.Title("Reasoning backend")
	a.printer.KeyValue("URL", a.cfg.Brain.URL)
	a.printer.KeyValue("Participants", strings.Join(info.Agents, ", "))
	a.printer.KeyValue("Capabilities", strings.Join(info.Capabilities, ", "))
	return nil
}
