package core

import (
	"fmt"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func isAgentRunKind(k event.Kind) bool {
	switch k {
	case event.KindAgentRunCreated, event.KindAgentRunCompleted,
		event.KindAgentRunFailed, event.KindAgentRunCancelled:
		return true
	}
	return false
}

// isAgentSignalKind matches the watcher-delivered agent lifecycle signals
// that route to either a job's step (via onAgentSignal) or a standalone
// agent-run (via agentRunSignalTransition), decided by the AgentInstance's
// owner field rather than by event kind alone — see Transition in core.go.
func isAgentSignalKind(k event.Kind) bool {
	switch k {
	case event.KindAgentIdle, event.KindAgentExited, event.KindAgentGone, event.KindAgentFailed:
		return true
	}
	return false
}

func agentRunTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	switch e.Kind {
	case event.KindAgentRunCreated:
		return onAgentRunCreated(deps, s, e)
	case event.KindAgentRunCompleted, event.KindAgentRunFailed, event.KindAgentRunCancelled:
		// Terminal: state.Apply already folded the outcome into the
		// AgentRun record; nothing further for the core to drive.
		return nil
	}
	return nil
}

func onAgentRunCreated(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadAgentRunCreated](e)
	if err != nil {
		return nil
	}
	run := p.Run
	agentSpec, ok := findAgentSpec(s, run.AgentName)
	if !ok {
		return []effect.Effect{agentRunFailedEffect(run.ID, fmt.Sprintf("unknown agent %q", run.AgentName))}
	}
	return []effect.Effect{{
		Kind: effect.KindSpawnAgent,
		SpawnAgent: &effect.SpawnAgent{
			RunID: run.ID, Namespace: run.Namespace, AgentID: run.AgentID,
			Command: agentSpec.CommandLine, Prompt: agentSpec.PromptTmpl,
			Env: agentSpec.Env, Cwd: agentSpec.Cwd, PrimeScript: agentSpec.PrimeScript,
		},
	}}
}

// findAgentSpec looks an agent up by name across every loaded runbook. A
// standalone run isn't tied to one job's runbook hash the way a step is,
// so unlike startStep there's no single runbook to key off of.
func findAgentSpec(s model.State, name string) (model.AgentSpec, bool) {
	for _, rb := range s.Runbooks {
		if spec, ok := rb.Agents[name]; ok {
			return spec, true
		}
	}
	return model.AgentSpec{}, false
}

func agentRunFailedEffect(runID, reason string) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindAgentRunFailed),
		Payload:   event.PayloadAgentRunID{RunID: runID, Reason: reason},
	}}
}

// agentRunSignalTransition applies the same on_idle/on_dead/on_error
// handler vocabulary a job's agent uses, minus the step graph:
// "done" and "fail" resolve the run directly instead of advancing a step.
func agentRunSignalTransition(deps Deps, s model.State, run model.AgentRun, agent model.AgentInstance, e event.Envelope) []effect.Effect {
	agentSpec, ok := findAgentSpec(s, run.AgentName)
	if !ok {
		return nil
	}
	_, failKind, exitCode := decodeAgentSignal(e)
	var handler model.HandlerSpec
	source := model.SourceIdle
	switch e.Kind {
	case event.KindAgentIdle:
		handler = agentSpec.OnIdle
	case event.KindAgentExited, event.KindAgentGone:
		handler = agentSpec.OnDead
		source = model.SourceError
	case event.KindAgentFailed:
		handler = agentSpec.OnError[string(failKind)]
		source = model.SourceError
	}
	return runAgentRunHandler(deps, run, agent, handler, source, exitCode)
}

func runAgentRunHandler(deps Deps, run model.AgentRun, agent model.AgentInstance, handler model.HandlerSpec, source model.DecisionSource, exitCode *int) []effect.Effect {
	exhausted := handler.Attempts > 0 && agent.ErrorAttempt >= handler.Attempts

	switch handler.Action {
	case model.ActionNudge:
		if exhausted {
			return []effect.Effect{agentRunFailedEffect(run.ID, "on_idle nudge attempts exhausted")}
		}
		return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
			AgentID: run.AgentID, Text: handler.Message, Enter: true,
		}}}
	case model.ActionDone:
		return []effect.Effect{
			signalEffect(run.AgentID, model.SignalComplete),
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindAgentRunCompleted),
				Payload:   event.PayloadAgentRunID{RunID: run.ID},
			}},
		}
	case model.ActionFail:
		reason := "agent handler: fail"
		if exitCode != nil {
			reason = fmt.Sprintf("agent exited with code %d", *exitCode)
		}
		return []effect.Effect{agentRunFailedEffect(run.ID, reason)}
	case model.ActionEscalate:
		decisionID := deps.IDs.NewDecisionID()
		decision := model.Decision{
			ID: decisionID, Namespace: run.Namespace, OwnerRun: run.ID,
			Source: source, Context: "agent handler escalation",
			Options: defaultOptionsFor(source),
		}
		return []effect.Effect{
			signalEffect(run.AgentID, model.SignalEscalate),
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindDecisionCreated),
				Payload:   event.PayloadDecisionCreated{Decision: decision},
			}},
		}
	case model.ActionGate:
		if handler.GateCmd == "" || exhausted {
			return []effect.Effect{agentRunFailedEffect(run.ID, "on_idle gate unavailable")}
		}
		return []effect.Effect{{Kind: effect.KindRunShell, RunShell: &effect.RunShell{
			JobID: "run:" + run.ID, Command: handler.GateCmd, Purpose: "gate",
		}}}
	case model.ActionResume:
		if agent.SessionID == "" || exhausted {
			return []effect.Effect{agentRunFailedEffect(run.ID, "resume unavailable: no session handle")}
		}
		return []effect.Effect{{Kind: effect.KindReconnectAgent, ReconnectAgent: &effect.ReconnectAgent{
			AgentID: run.AgentID,
		}}}
	}
	return nil
}

// onAgentRunGateExited handles the result of an on_idle/on_error gate
// probe run on behalf of a standalone agent-run (routed here from
// onShellExited via the "run:<id>" owner-id prefix): exit 0 completes the
// run, non-zero escalates to a human decision exactly as a job's gate
// would, minus the step to advance.
func onAgentRunGateExited(deps Deps, s model.State, runID string, p event.PayloadShellExited) []effect.Effect {
	run, ok := s.AgentRuns[runID]
	if !ok {
		return nil
	}
	if p.ExitCode == 0 {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindAgentRunCompleted),
			Payload:   event.PayloadAgentRunID{RunID: run.ID},
		}}}
	}
	decisionID := deps.IDs.NewDecisionID()
	decision := model.Decision{
		ID: decisionID, Namespace: run.Namespace, OwnerRun: run.ID,
		Source: model.SourceGate, Context: fmt.Sprintf("gate probe exited %d", p.ExitCode),
		Options: defaultOptionsFor(model.SourceGate),
	}
	return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindDecisionCreated),
		Payload:   event.PayloadDecisionCreated{Decision: decision},
	}}}
}
