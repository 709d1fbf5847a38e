// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package progress

import "github.com/AleutianAI/tutorgate/services/gateway/datatypes"

// Apply folds one event into view and returns the new view.
//
// # Description
//
// Rules, by event variant:
//
//  1. Progress from a named participant upserts that participant's status
//     and detail under the event's stage. The last event wins.
//  2. Progress from the system participant with status done marks the stage
//     complete. Other system statuses only reference the stage.
//  3. A result marks every pipeline stage and every observed stage complete,
//     forces every recorded participant to done, and keeps the result.
//  4. An error records the message and code. Completion is left untouched.
//
// Once a result has been applied the view is reconciled again after every
// later event, so the final view has every stage complete and every
// participant done wherever the result appeared in the sequence.
//
// # Inputs
//
//   - view: The current view. It is not modified.
//   - event: The event to apply. A nil event returns an equal copy.
//
// # Outputs
//
//   - View: A new view sharing no mutable state with view
//
// # Example
//
//	view := progress.NewView()
//	for ev, err := range stream.All() {
//	    if err != nil {
//	        break
//	    }
//	    view = progress.Apply(view, ev)
//	}
func Apply(view View, event datatypes.Event) View {
	next := view.clone()
	if event == nil {
		return next
	}
	next.applied++

	switch ev := event.(type) {
	case *datatypes.ProgressEvent:
		idx := next.ensure(ev.Stage)
		next.entries[idx].lastRefAt = next.applied
		if ev.IsSystem() {
			if ev.Status == datatypes.StatusDone {
				next.entries[idx].complete = true
			}
			break
		}
		upsertParticipant(&next.entries[idx], ev)

	case *datatypes.ResultEvent:
		next.hasResult = true
		next.result = *ev
		if ev.Visual != nil {
			visual := *ev.Visual
			next.result.Visual = &visual
		}

	case *datatypes.ErrorEvent:
		next.hasError = true
		next.errorMsg = ev.Message
		next.errorCode = ev.Code
	}

	if next.hasResult {
		next.reconcile()
	}
	return next
}

// Fold applies events in order to an empty view.
func Fold(events ...datatypes.Event) View {
	view := NewView()
	for _, ev := range events {
		view = Apply(view, ev)
	}
	return view
}

func upsertParticipant(entry *stageEntry, ev *datatypes.ProgressEvent) {
	for i := range entry.participants {
		if entry.participants[i].Name == ev.Participant {
			entry.participants[i].Status = ev.Status
			entry.participants[i].Detail = ev.Detail
			return
		}
	}
	entry.participants = append(entry.participants, ParticipantState{
		Name:   ev.Participant,
		Status: ev.Status,
		Detail: ev.Detail,
	})
}

// reconcile enforces the post-result invariant: every known stage complete
// and every recorded participant done.
func (v *View) reconcile() {
	for _, s := range datatypes.PipelineStages {
		v.ensure(s)
	}
	for i := range v.entries {
		v.entries[i].complete = true
		for j := range v.entries[i].participants {
			v.entries[i].participants[j].Status = datatypes.StatusDone
		}
	}
}
