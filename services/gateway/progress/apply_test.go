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

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dt "github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

func prog(stage dt.Stage, participant string, status dt.ProgressStatus, detail string) *dt.ProgressEvent {
	return &dt.ProgressEvent{Stage: stage, Participant: participant, Status: status, Detail: detail}
}

func TestNewView_IsEmpty(t *testing.T) {
	v := NewView()
	assert.False(t, v.HasResult())
	assert.False(t, v.HasError())
	assert.False(t, v.Terminal())
	assert.Zero(t, v.Applied())
	assert.Equal(t, dt.PipelineStages, v.Stages())
	for _, s := range dt.PipelineStages {
		assert.False(t, v.StageComplete(s))
		assert.Empty(t, v.Participants(s))
	}
	_, ok := v.ActiveStage()
	assert.False(t, ok)
}

func TestApply_NamedParticipantUpsert(t *testing.T) {
	v := Fold(
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, "drafting"),
		prog(dt.StageCollecting, "AgentY", dt.StatusStarted, ""),
		prog(dt.StageCollecting, "AgentX", dt.StatusDone, "draft ready"),
	)

	parts := v.Participants(dt.StageCollecting)
	require.Len(t, parts, 2)
	assert.Equal(t, ParticipantState{Name: "AgentX", Status: dt.StatusDone, Detail: "draft ready"}, parts[0])
	assert.Equal(t, "AgentY", parts[1].Name)
	assert.False(t, v.StageComplete(dt.StageCollecting))
	assert.Equal(t, 3, v.Applied())
}

func TestApply_SystemDoneMarksStageComplete(t *testing.T) {
	v := Fold(
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusStarted, ""),
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusError, "slow"),
	)
	assert.False(t, v.StageComplete(dt.StageRetrieving))
	assert.Empty(t, v.Participants(dt.StageRetrieving), "system is not a participant")

	v = Apply(v, prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""))
	assert.True(t, v.StageComplete(dt.StageRetrieving))
}

func TestApply_ResultCompletesEverything(t *testing.T) {
	v := Fold(
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, ""),
		prog(dt.StageRanking, "AgentY", dt.StatusError, "failed to rank"),
		prog(dt.StageVisualizing, "Visualizer", dt.StatusStarted, ""),
		&dt.ResultEvent{Answer: "A", Critique: "B", Success: true},
	)

	require.True(t, v.HasResult())
	assert.True(t, v.Terminal())
	for _, s := range v.Stages() {
		assert.True(t, v.StageComplete(s), "stage %s", s)
		for _, p := range v.Participants(s) {
			assert.Equal(t, dt.StatusDone, p.Status, "participant %s in %s", p.Name, s)
		}
	}
	assert.Contains(t, v.Stages(), dt.StageVisualizing)

	r, ok := v.Result()
	require.True(t, ok)
	assert.Equal(t, "A", r.Answer)
	_, active := v.ActiveStage()
	assert.False(t, active)
}

func TestApply_ReconcilesAfterResult(t *testing.T) {
	v := Fold(
		&dt.ResultEvent{Answer: "A", Success: true},
		prog(dt.StageReviewing, "Critic", dt.StatusStarted, "late"),
		prog(dt.StageVisualizing, dt.ParticipantSystem, dt.StatusStarted, ""),
	)

	assert.True(t, v.StageComplete(dt.StageReviewing))
	assert.True(t, v.StageComplete(dt.StageVisualizing))
	p, ok := v.Participant(dt.StageReviewing, "Critic")
	require.True(t, ok)
	assert.Equal(t, dt.StatusDone, p.Status)
	assert.Equal(t, "late", p.Detail)
}

func TestApply_ErrorLeavesCompletionUntouched(t *testing.T) {
	v := Fold(
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""),
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, ""),
		&dt.ErrorEvent{Code: dt.ErrorCodeBackend, Message: "council unavailable"},
	)

	assert.True(t, v.HasError())
	assert.True(t, v.Terminal())
	assert.False(t, v.HasResult())
	assert.Equal(t, "council unavailable", v.ErrorMessage())
	assert.Equal(t, dt.ErrorCodeBackend, v.ErrorCode())
	assert.True(t, v.StageComplete(dt.StageRetrieving))
	assert.False(t, v.StageComplete(dt.StageCollecting))

	p, _ := v.Participant(dt.StageCollecting, "AgentX")
	assert.Equal(t, dt.StatusStarted, p.Status)
}

func TestApply_IncompleteStreamEvent(t *testing.T) {
	v := Fold(
		prog(dt.StageRanking, dt.ParticipantSystem, dt.StatusStarted, ""),
		dt.NewIncompleteStreamEvent(nil),
	)
	assert.True(t, v.HasError())
	assert.Equal(t, dt.ErrorCodeIncompleteStream, v.ErrorCode())
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	before := Fold(
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, "one"),
		prog(dt.StageCollecting, "AgentY", dt.StatusStarted, "two"),
	)
	snapshot := before.Participants(dt.StageCollecting)

	after := Apply(before, prog(dt.StageCollecting, "AgentX", dt.StatusDone, "changed"))
	after = Apply(after, &dt.ResultEvent{Answer: "Z", Visual: &dt.Visual{Path: "/v.png"}})

	assert.Equal(t, snapshot, before.Participants(dt.StageCollecting))
	assert.False(t, before.HasResult())
	assert.False(t, before.StageComplete(dt.StageCollecting))
	assert.Equal(t, 2, before.Applied())
	assert.Equal(t, 4, after.Applied())

	r, _ := after.Result()
	r.Visual.Path = "/mutated.png"
	again, _ := after.Result()
	assert.Equal(t, "/v.png", again.Visual.Path)

	parts := after.Participants(dt.StageCollecting)
	parts[0].Name = "Mallory"
	assert.Equal(t, "AgentX", after.Participants(dt.StageCollecting)[0].Name)
}

func TestApply_NilEvent(t *testing.T) {
	v := Apply(NewView(), nil)
	assert.Zero(t, v.Applied())
}

func TestStages_ExtrasInFirstSeenOrder(t *testing.T) {
	v := Fold(
		prog("translating", dt.ParticipantSystem, dt.StatusStarted, ""),
		prog(dt.StageRanking, "AgentX", dt.StatusStarted, ""),
		prog(dt.StageVisualizing, "Visualizer", dt.StatusStarted, ""),
	)
	want := append(append([]dt.Stage{}, dt.PipelineStages...), "translating", dt.StageVisualizing)
	assert.Equal(t, want, v.Stages())
}

func TestActiveStage(t *testing.T) {
	v := Fold(prog(dt.StageRetrieving, "Librarian", dt.StatusStarted, ""))
	s, ok := v.ActiveStage()
	require.True(t, ok)
	assert.Equal(t, dt.StageRetrieving, s)

	v = Apply(v, prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""))
	_, ok = v.ActiveStage()
	assert.False(t, ok)

	v = Apply(v, prog(dt.StageCollecting, "AgentX", dt.StatusStarted, ""))
	s, ok = v.ActiveStage()
	require.True(t, ok)
	assert.Equal(t, dt.StageCollecting, s)
	assert.Equal(t, 1, v.CompletedPipelineStages())
}

func TestActiveStage_InterleavedStages(t *testing.T) {
	v := Fold(
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, ""),
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""),
	)
	s, ok := v.ActiveStage()
	require.True(t, ok)
	assert.Equal(t, dt.StageCollecting, s)

	v = Apply(v, prog(dt.StageRanking, "Judge", dt.StatusStarted, ""))
	v = Apply(v, prog(dt.StageCollecting, "AgentY", dt.StatusDone, ""))
	s, ok = v.ActiveStage()
	require.True(t, ok)
	assert.Equal(t, dt.StageCollecting, s, "the most recent reference wins")

	v = Apply(v, prog(dt.StageCollecting, dt.ParticipantSystem, dt.StatusDone, ""))
	s, ok = v.ActiveStage()
	require.True(t, ok)
	assert.Equal(t, dt.StageRanking, s)

	v = Apply(v, prog(dt.StageRanking, dt.ParticipantSystem, dt.StatusDone, ""))
	_, ok = v.ActiveStage()
	assert.False(t, ok)
}

func TestApply_ResultAnywhereCompletesEverything(t *testing.T) {
	stray := []dt.Event{
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, "drafting"),
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusStarted, ""),
		prog(dt.StageRanking, "Judge", dt.StatusError, "timeout"),
		prog(dt.StageCollecting, "AgentY", dt.StatusStarted, ""),
		prog(dt.StageVisualizing, "Visualizer", dt.StatusStarted, ""),
		prog(dt.StageReviewing, "Critic", dt.StatusStarted, ""),
		prog(dt.StageCollecting, "AgentX", dt.StatusError, "crashed"),
	}
	result := &dt.ResultEvent{Answer: "A", Success: true}

	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 20; round++ {
		order := slices.Clone(stray)
		if round > 0 {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for pos := 0; pos <= len(order); pos++ {
			events := slices.Insert(slices.Clone(order), pos, dt.Event(result))
			v := Fold(events...)

			require.True(t, v.HasResult())
			for _, s := range v.Stages() {
				assert.True(t, v.StageComplete(s), "round %d pos %d stage %s", round, pos, s)
				for _, p := range v.Participants(s) {
					assert.Equal(t, dt.StatusDone, p.Status, "round %d pos %d %s/%s", round, pos, s, p.Name)
				}
			}
			_, active := v.ActiveStage()
			assert.False(t, active)
		}
	}
}

// Streaming scenario: a partial pipeline followed by a result still leaves
// every touched stage complete and the participant done.
func TestScenario_PartialPipelineThenResult(t *testing.T) {
	v := Fold(
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""),
		prog(dt.StageCollecting, "AgentX", dt.StatusStarted, ""),
		&dt.ResultEvent{Answer: "Z", Success: true},
	)

	assert.True(t, v.StageComplete(dt.StageRetrieving))
	assert.True(t, v.StageComplete(dt.StageCollecting))
	p, ok := v.Participant(dt.StageCollecting, "AgentX")
	require.True(t, ok)
	assert.Equal(t, dt.StatusDone, p.Status)
	assert.True(t, v.HasResult())
	assert.Equal(t, len(dt.PipelineStages), v.CompletedPipelineStages())
}

func TestZeroValueViewIsUsable(t *testing.T) {
	var v View
	v = Apply(v, prog(dt.StageSynthesizing, "Synthesizer", dt.StatusStarted, ""))
	assert.Len(t, v.Participants(dt.StageSynthesizing), 1)
}
