package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func testDeps() Deps {
	return Deps{IDs: &clock.SeqGen{}, Clock: clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func buildRunbook() model.Runbook {
	return model.Runbook{
		Hash: "rb1",
		Jobs: map[string]model.JobSpec{
			"build": {
				Name:        "build",
				InitialStep: "compile",
				Defaults:    model.StepDefaults{OnFail: "cleanup"},
				Steps: map[string]model.StepSpec{
					"compile": {Name: "compile", Kind: model.StepKindShell, RunTarget: "go build", OnDone: "test", OnFail: "cleanup"},
					"test":    {Name: "test", Kind: model.StepKindShell, RunTarget: "go test", OnDone: ""},
					"cleanup": {Name: "cleanup", Kind: model.StepKindShell, RunTarget: "rm -rf tmp", OnCancel: "cleanup"},
				},
			},
		},
	}
}

func newStateWithJob(t *testing.T, rb model.Runbook, job model.Job) model.State {
	t.Helper()
	s := model.NewState()
	s.Runbooks[rb.Hash] = rb
	s.Jobs[job.ID] = job
	s.Workspaces[workspaceIDForJob(job.ID)] = model.Workspace{
		ID: workspaceIDForJob(job.ID), JobID: job.ID, Status: model.WorkspaceReady, Path: "/tmp/ws",
	}
	return s
}

func TestJobCreatedEmitsWorkspaceEffects(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, Status: model.JobRunning}
	s := model.NewState()
	s.Runbooks[rb.Hash] = rb
	s.Jobs[job.ID] = job

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindJobCreated, event.PayloadJobCreated{Job: job}))
	require.Len(t, effects, 2)
	require.Equal(t, effect.KindEmitEvent, effects[0].Kind)
	require.Equal(t, effect.KindCreateWorkspace, effects[1].Kind)
	require.Equal(t, workspaceIDForJob(job.ID), effects[1].CreateWorkspace.WorkspaceID)
}

func TestWorkspaceReadyStartsInitialStep(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindWorkspaceReady, event.PayloadWorkspaceStatus{
		WorkspaceID: workspaceIDForJob(job.ID),
	}))
	require.Len(t, effects, 2)
	require.Equal(t, effect.KindEmitEvent, effects[0].Kind)
	require.Equal(t, string(event.KindStepStarted), effects[0].EmitEvent.EventKind)
	require.Equal(t, effect.KindRunShell, effects[1].Kind)
	require.Equal(t, "go build", effects[1].RunShell.Command)
}

func TestStepCompletedAdvancesToOnDone(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, CurrentStep: "compile", Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindStepCompleted, event.PayloadStepCompleted{JobID: job.ID, Step: "compile"}))
	require.Len(t, effects, 3)
	require.Equal(t, string(event.KindJobAdvanced), effects[0].EmitEvent.EventKind)
	require.Equal(t, "test", effects[0].EmitEvent.Payload.(event.PayloadJobAdvanced).NextStep)
	require.Equal(t, string(event.KindStepStarted), effects[1].EmitEvent.EventKind)
	require.Equal(t, "go test", effects[2].RunShell.Command)
}

func TestStepCompletedWithNoOnDoneFinishesJob(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, CurrentStep: "test", Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindStepCompleted, event.PayloadStepCompleted{JobID: job.ID, Step: "test"}))
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindJobCompleted), effects[0].EmitEvent.EventKind)
}

func TestStepFailedRoutesToJobLevelOnFail(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, CurrentStep: "test", Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindStepFailed, event.PayloadStepFailed{JobID: job.ID, Step: "test", Error: "boom"}))
	require.Equal(t, string(event.KindJobAdvanced), effects[0].EmitEvent.EventKind)
	require.Equal(t, "cleanup", effects[0].EmitEvent.Payload.(event.PayloadJobAdvanced).NextStep)
}

func TestStepFailedWithNoOnFailFailsJob(t *testing.T) {
	rb := buildRunbook()
	rb.Jobs["build"] = model.JobSpec{
		Name: "build", InitialStep: "compile",
		Steps: map[string]model.StepSpec{
			"compile": {Name: "compile", Kind: model.StepKindShell, RunTarget: "go build"},
		},
	}
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, CurrentStep: "compile", Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindStepFailed, event.PayloadStepFailed{JobID: job.ID, Step: "compile", Error: "boom"}))
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindJobFailed), effects[0].EmitEvent.EventKind)
	require.Equal(t, "boom", effects[0].EmitEvent.Payload.(event.PayloadJobTerminal).Reason)
}

func TestShellExitedZeroCompletesStep(t *testing.T) {
	s := model.NewState()
	effects := onShellExited(testDeps(), s, mustEvt(t, event.KindShellExited, event.PayloadShellExited{
		OwnerID: "job_1:compile", ExitCode: 0,
	}))
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindStepCompleted), effects[0].EmitEvent.EventKind)
}

func TestShellExitedNonZeroFailsStep(t *testing.T) {
	s := model.NewState()
	effects := onShellExited(testDeps(), s, mustEvt(t, event.KindShellExited, event.PayloadShellExited{
		OwnerID: "job_1:compile", ExitCode: 1,
	}))
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindStepFailed), effects[0].EmitEvent.EventKind)
}

func TestJobCancelWithRunningAgentKillsItFirst(t *testing.T) {
	rb := buildRunbook()
	job := model.Job{ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash, CurrentStep: "compile", AgentID: "agent_1", Status: model.JobRunning}
	s := newStateWithJob(t, rb, job)

	effects := jobTransition(testDeps(), s, mustEvt(t, event.KindJobCancel, event.PayloadJobCancel{JobID: job.ID}))
	require.Len(t, effects, 2)
	require.Equal(t, effect.KindKillAgent, effects[0].Kind)
	require.Equal(t, "agent_1", effects[0].KillAgent.AgentID)
	require.Equal(t, string(event.KindJobCancelled), effects[1].EmitEvent.EventKind)
}

func mustEvt(t *testing.T, kind event.Kind, payload any) event.Envelope {
	t.Helper()
	e, err := event.New(kind, payload)
	require.NoError(t, err)
	return e
}
