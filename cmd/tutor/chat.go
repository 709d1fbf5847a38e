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
	"io"
	"strings"

	"github.com/AleutianAI/tutorgate/pkg/ux"
	"github.com/AleutianAI/tutorgate/services/gateway/contextblock"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// chatSession keeps the conversation history for one interactive run.
type chatSession struct {
	app      *app
	project  *datatypes.Project
	history  []datatypes.Turn
	mediated bool
	visual   bool
}

// run reads questions until EOF or /exit.
//
// # Description
//
// In direct mode the context block is assembled locally from the project
// and the history before every question. In mediated mode the project and
// history are sent to the gateway, which assembles the same block. A failed
// question is reported and the loop continues; only cancellation or an
// interrupted display ends the session early.
func (s *chatSession) run(ctx context.Context, reader ux.InputReader) error {
	p := s.app.printer
	p.Title("Tutor chat")
	p.Muted("Type a question, /reset to forget the conversation, /exit to leave.")

	for {
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			s.history = nil
			p.Success("Conversation history cleared.")
			continue
		}

		resp, err := s.app.answer(ctx, s.question(line))
		if err != nil {
			if errors.Is(err, errInterrupted) || ctx.Err() != nil {
				return err
			}
			p.Error(err.Error())
			continue
		}
		s.history = append(s.history,
			datatypes.Turn{Role: datatypes.RoleUser, Content: line},
			datatypes.Turn{Role: datatypes.RoleAssistant, Content: resp.Answer},
		)
	}
}

func (s *chatSession) question(text string) question {
	q := question{
		ask:      datatypes.AskRequest{Question: text, IncludeVisual: s.visual},
		mediated: s.mediated,
	}
	if s.mediated {
		q.project = s.project
		q.history = append([]datatypes.Turn(nil), s.history...)
		return q
	}
	limits := s.app.cfg.Context
	if block, ok := contextblock.Build(s.project, s.history, limits.MaxTurns, limits.MaxTurnChars); ok {
		q.ask.Context = block
	}
	return q
}
