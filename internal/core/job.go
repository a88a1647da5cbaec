package core

import (
	"fmt"
	"strings"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func isJobKind(k event.Kind) bool {
	switch k {
	case event.KindCommandRun, event.KindJobCreated, event.KindWorkspaceReady,
		event.KindWorkspaceFailed, event.KindWorkspaceDrop,
		event.KindStepCompleted, event.KindStepFailed, event.KindJobCancel,
		event.KindJobResume, event.KindShellExited, event.KindAgentIdle,
		event.KindAgentExited, event.KindAgentGone, event.KindAgentFailed:
		return true
	}
	return false
}

// workspaceIDForJob derives a workspace's id deterministically from its
// owning job, so the core never needs a round-trip id-minting event
// between creating a job and provisioning its workspace.
func workspaceIDForJob(jobID string) string { return "ws_" + jobID }

func jobTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	switch e.Kind {
	case event.KindCommandRun:
		return onCommandRun(deps, s, e)
	case event.KindJobCreated:
		return onJobCreated(deps, s, e)
	case event.KindWorkspaceReady:
		return onWorkspaceReady(deps, s, e)
	case event.KindWorkspaceFailed:
		return onWorkspaceFailed(s, e)
	case event.KindWorkspaceDrop:
		return onWorkspaceDrop(s, e)
	case event.KindStepCompleted:
		return onStepCompleted(deps, s, e)
	case event.KindStepFailed:
		return onStepFailed(deps, s, e)
	case event.KindShellExited:
		return onShellExited(deps, s, e)
	case event.KindJobCancel:
		return onJobCancel(deps, s, e)
	case event.KindJobResume:
		return onJobResume(deps, s, e)
	case event.KindAgentIdle, event.KindAgentExited, event.KindAgentGone, event.KindAgentFailed:
		return onAgentSignal(deps, s, e)
	}
	return nil
}

// onCommandRun resolves a runbook command to its target job template and
// instantiates it: defaults first, then the client's declared args over
// them, with the template's display name interpolated from the merged
// vars. The job:created event this emits drives workspace provisioning
// through onJobCreated on its own cycle.
func onCommandRun(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadCommandRun](e)
	if err != nil {
		return nil
	}
	rb, ok := s.Runbooks[p.RunbookHash]
	if !ok {
		if rb, ok = anyRunbook(s); !ok {
			return nil
		}
	}
	cmd, ok := rb.Commands[p.CommandName]
	if !ok {
		return nil
	}
	spec, ok := rb.Jobs[cmd.RunTarget]
	if !ok {
		return nil
	}

	vars := map[string]string{}
	for k, v := range spec.Vars {
		vars[k] = v
	}
	for k, v := range cmd.Defaults {
		vars[k] = v
	}
	for _, k := range cmd.ArgsSpec {
		if v, ok := p.Args[k]; ok {
			vars[k] = v
		}
	}

	jobID := p.JobID
	if jobID == "" {
		jobID = deps.IDs.NewJobID()
	}
	return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobCreated),
		Payload: event.PayloadJobCreated{Job: model.Job{
			ID: jobID, Namespace: p.Namespace, Kind: cmd.RunTarget,
			DisplayName: interpolate(spec.DisplayName, vars),
			Vars:        vars, RunbookHash: rb.Hash, Status: model.JobRunning,
			CreatedAt: nowOrZero(deps),
		}},
	}}}
}

// interpolate substitutes ${name} references in a display-name template
// with the job's merged vars. Unknown references are left verbatim so a
// typo'd template stays visible instead of silently vanishing.
func interpolate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "${"+k+"}", v)
	}
	return out
}

// onJobResume re-runs the current step of a parked job (client-requested
// resume after a failure or a dismissed escalation). Terminal jobs are
// left alone.
func onJobResume(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadJobResume](e)
	if err != nil {
		return nil
	}
	job, ok := s.Jobs[p.JobID]
	if !ok || job.IsTerminal() {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}
	stepName := job.CurrentStep
	if stepName == "" {
		stepName = spec.InitialStep
	}
	ws := s.Workspaces[workspaceIDForJob(job.ID)]
	return startStep(deps, job, rb, spec, stepName, ws.Path)
}

// onWorkspaceDrop services a client-requested workspace teardown: the
// delete-workspace effect runs the actual removal and emits
// workspace:deleted when done.
func onWorkspaceDrop(s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkspaceStatus](e)
	if err != nil {
		return nil
	}
	ws, ok := s.Workspaces[p.WorkspaceID]
	if !ok || ws.Status == model.WorkspaceDeleted {
		return nil
	}
	return []effect.Effect{{
		Kind:            effect.KindDeleteWorkspace,
		DeleteWorkspace: &effect.DeleteWorkspace{WorkspaceID: ws.ID, Path: ws.Path},
	}}
}

func onJobCreated(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadJobCreated](e)
	if err != nil {
		return nil
	}
	job := s.Jobs[p.Job.ID]
	rb, ok := s.Runbooks[job.RunbookHash]
	if !ok {
		return nil
	}
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}

	wsID := workspaceIDForJob(job.ID)
	kind := string(spec.WorkspaceCfg.Kind)
	if kind == "" {
		kind = string(model.WorkspaceKindPlain)
	}
	ws := model.Workspace{
		ID: wsID, JobID: job.ID, Namespace: job.Namespace,
		Kind: spec.WorkspaceCfg.Kind, Status: model.WorkspaceCreating,
	}
	return []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindWorkspaceCreating),
			Payload:   event.PayloadWorkspaceCreating{Workspace: ws},
		}},
		{Kind: effect.KindCreateWorkspace, CreateWorkspace: &effect.CreateWorkspace{
			WorkspaceID: wsID, JobID: job.ID, Namespace: job.Namespace,
			Kind: kind, BaseRef: spec.WorkspaceCfg.BaseBranch,
		}},
	}
}

func onWorkspaceFailed(s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkspaceStatus](e)
	if err != nil {
		return nil
	}
	ws, ok := s.Workspaces[p.WorkspaceID]
	if !ok {
		return nil
	}
	return []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindJobFailed),
			Payload:   event.PayloadJobTerminal{JobID: ws.JobID, Reason: "workspace failed: " + p.Reason},
		}},
	}
}

func onWorkspaceReady(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkspaceStatus](e)
	if err != nil {
		return nil
	}
	ws, ok := s.Workspaces[p.WorkspaceID]
	if !ok {
		return nil
	}
	job, ok := s.Jobs[ws.JobID]
	if !ok {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}
	stepName := job.CurrentStep
	if stepName == "" {
		stepName = spec.InitialStep
	}
	return startStep(deps, job, rb, spec, stepName, ws.Path)
}

// startStep emits step:started and the effect that actually runs it
// (spawn an agent, run a shell command, or dispatch a nested job),
// dispatching on the step's declared kind.
func startStep(deps Deps, job model.Job, rb model.Runbook, spec model.JobSpec, stepName, workspacePath string) []effect.Effect {
	step, ok := spec.Steps[stepName]
	if !ok {
		return []effect.Effect{failJobEffect(job.ID, fmt.Sprintf("unknown step %q", stepName))}
	}

	effects := []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindStepStarted),
			Payload:   event.PayloadStepStarted{JobID: job.ID, Step: stepName},
		}},
	}

	switch step.Kind {
	case model.StepKindShell:
		effects = append(effects, effect.Effect{
			Kind: effect.KindRunShell,
			RunShell: &effect.RunShell{
				JobID: job.ID, Step: stepName, Command: step.RunTarget,
				Cwd: workspacePath, Env: job.Vars,
			},
		})
	case model.StepKindAgent:
		agentSpec, ok := rb.Agents[step.RunTarget]
		if !ok {
			return []effect.Effect{failJobEffect(job.ID, fmt.Sprintf("unknown agent %q", step.RunTarget))}
		}
		effects = append(effects, effect.Effect{
			Kind: effect.KindSpawnAgent,
			SpawnAgent: &effect.SpawnAgent{
				JobID: job.ID, Namespace: job.Namespace, AgentID: deps.IDs.NewAgentID(),
				Command: agentSpec.CommandLine, Prompt: agentSpec.PromptTmpl,
				Env: agentSpec.Env, Cwd: workspacePath, PrimeScript: agentSpec.PrimeScript,
			},
		})
	case model.StepKindJob:
		effects = append(effects, effect.Effect{
			Kind: effect.KindEmitEvent,
			EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindJobCreated),
				Payload: event.PayloadJobCreated{Job: model.Job{
					ID: deps.IDs.NewJobID(), Namespace: job.Namespace, Kind: step.RunTarget,
					RunbookHash: job.RunbookHash, Status: model.JobRunning,
				}},
			},
		})
	}
	return effects
}

func onStepCompleted(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadStepCompleted](e)
	if err != nil {
		return nil
	}
	job, ok := s.Jobs[p.JobID]
	if !ok {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}
	step := spec.Steps[p.Step]
	if step.OnDone == "" {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindJobCompleted),
			Payload:   event.PayloadJobTerminal{JobID: job.ID},
		}}}
	}
	advance := effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobAdvanced),
		Payload:   event.PayloadJobAdvanced{JobID: job.ID, NextStep: step.OnDone},
	}}
	ws := s.Workspaces[workspaceIDForJob(job.ID)]
	return append([]effect.Effect{advance}, startStep(deps, job, rb, spec, step.OnDone, ws.Path)...)
}

func onStepFailed(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadStepFailed](e)
	if err != nil {
		return nil
	}
	job, ok := s.Jobs[p.JobID]
	if !ok {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}
	step := spec.Steps[p.Step]
	onFail := step.OnFail
	if onFail == "" {
		onFail = spec.Defaults.OnFail
	}
	if onFail == "" {
		return []effect.Effect{failJobEffect(job.ID, p.Error)}
	}
	advance := effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobAdvanced),
		Payload:   event.PayloadJobAdvanced{JobID: job.ID, NextStep: onFail},
	}}
	ws := s.Workspaces[workspaceIDForJob(job.ID)]
	return append([]effect.Effect{advance}, startStep(deps, job, rb, spec, onFail, ws.Path)...)
}

// onShellExited translates a raw shell:exited signal (owner id
// "jobID:step") into the job-domain step:completed/step:failed event —
// unless Purpose marks it as an on_idle/on_error gate probe, in which
// case exit 0 advances the step directly and a non-zero exit escalates
// to a human decision instead of failing the job outright.
func onShellExited(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadShellExited](e)
	if err != nil {
		return nil
	}
	if runID, isRun := strings.CutPrefix(p.OwnerID, "run:"); isRun {
		return onAgentRunGateExited(deps, s, strings.TrimSuffix(runID, ":"), p)
	}
	jobID, step, ok := strings.Cut(p.OwnerID, ":")
	if !ok {
		return nil
	}
	if p.Purpose == "gate" {
		if p.ExitCode == 0 {
			return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindStepCompleted),
				Payload:   event.PayloadStepCompleted{JobID: jobID, Step: step},
			}}}
		}
		job, ok := s.Jobs[jobID]
		if !ok {
			return nil
		}
		return escalate(deps, job, model.SourceGate, fmt.Sprintf("gate probe exited %d", p.ExitCode), nil)
	}
	if p.ExitCode == 0 {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindStepCompleted),
			Payload:   event.PayloadStepCompleted{JobID: jobID, Step: step},
		}}}
	}
	return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindStepFailed),
		Payload:   event.PayloadStepFailed{JobID: jobID, Step: step, Error: fmt.Sprintf("exit code %d", p.ExitCode)},
	}}}
}

func onJobCancel(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadJobCancel](e)
	if err != nil {
		return nil
	}
	job, ok := s.Jobs[p.JobID]
	if !ok {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindJobCancelled),
			Payload:   event.PayloadJobTerminal{JobID: job.ID},
		}}}
	}
	step := spec.Steps[job.CurrentStep]
	cancelled := effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobCancelled),
		Payload:   event.PayloadJobTerminal{JobID: job.ID},
	}}
	if job.AgentID != "" {
		return []effect.Effect{
			{Kind: effect.KindKillAgent, KillAgent: &effect.KillAgent{AgentID: job.AgentID}},
			cancelled,
		}
	}
	if step.OnCancel == "" {
		return []effect.Effect{cancelled}
	}
	ws := s.Workspaces[workspaceIDForJob(job.ID)]
	return append(startStep(deps, job, rb, spec, step.OnCancel, ws.Path), cancelled)
}

// jobCleanup cascades a terminal job outcome to the resources the job
// owns: the workspace is deleted on success and cancel but kept on
// failure for forensics, and a completed job's agent session is torn
// down (cancel routing already killed it on the cancel path).
func jobCleanup(s model.State, e event.Envelope) []effect.Effect {
	if e.Kind == event.KindJobFailed {
		return nil
	}
	p, err := event.Decode[event.PayloadJobTerminal](e)
	if err != nil {
		return nil
	}
	job, ok := s.Jobs[p.JobID]
	if !ok {
		return nil
	}
	var effects []effect.Effect
	if e.Kind == event.KindJobCompleted && job.AgentID != "" {
		effects = append(effects,
			effect.Effect{Kind: effect.KindKillAgent, KillAgent: &effect.KillAgent{AgentID: job.AgentID}},
			effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindAgentKilled),
				Payload:   event.PayloadAgentID{AgentID: job.AgentID},
			}},
		)
		if agent, ok := s.Agents[job.AgentID]; ok && agent.SessionID != "" {
			effects = append(effects, effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindSessionKilled),
				Payload:   event.PayloadSessionID{SessionID: agent.SessionID},
			}})
		}
	}
	if ws, ok := s.Workspaces[workspaceIDForJob(job.ID)]; ok && ws.Status == model.WorkspaceReady {
		effects = append(effects, effect.Effect{
			Kind:            effect.KindDeleteWorkspace,
			DeleteWorkspace: &effect.DeleteWorkspace{WorkspaceID: ws.ID, Path: ws.Path},
		})
	}
	return effects
}

func failJobEffect(jobID, reason string) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobFailed),
		Payload:   event.PayloadJobTerminal{JobID: jobID, Reason: reason},
	}}
}
