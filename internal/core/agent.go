package core

import (
	"fmt"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

// onAgentSignal runs the configured on_idle/on_dead/on_error handler for
// a terminal or idle classification delivered by the watcher. It looks
// up the owning job by scanning for the job
// whose AgentID matches — jobs are few enough per namespace that a scan
// is simpler than maintaining a reverse index, and this only runs on
// watcher-paced signals, not hot-path event traffic.
func onAgentSignal(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	agentID, failKind, exitCode := decodeAgentSignal(e)
	if agentID == "" {
		return nil
	}
	agent, ok := s.Agents[agentID]
	if !ok {
		return nil
	}
	job, jobOK := findJobByAgent(s, agentID)
	if !jobOK {
		return nil
	}
	rb := s.Runbooks[job.RunbookHash]
	spec, ok := rb.Jobs[job.Kind]
	if !ok {
		return nil
	}
	step := spec.Steps[job.CurrentStep]
	agentSpec, ok := rb.Agents[step.RunTarget]
	if !ok {
		return nil
	}

	var handler model.HandlerSpec
	source := model.SourceIdle
	switch e.Kind {
	case event.KindAgentIdle:
		handler = agentSpec.OnIdle
	case event.KindAgentExited:
		handler = agentSpec.OnDead
		source = model.SourceError
	case event.KindAgentGone:
		handler = agentSpec.OnDead
		source = model.SourceError
	case event.KindAgentFailed:
		handler = agentSpec.OnError[string(failKind)]
		source = model.SourceError
	}

	return runHandler(deps, job, agent, handler, source, exitCode)
}

func decodeAgentSignal(e event.Envelope) (agentID string, failKind model.AgentErrorKind, exitCode *int) {
	switch e.Kind {
	case event.KindAgentIdle, event.KindAgentGone:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return "", "", nil
		}
		return p.AgentID, "", nil
	case event.KindAgentExited, event.KindAgentFailed:
		p, err := event.Decode[event.PayloadAgentState](e)
		if err != nil {
			return "", "", nil
		}
		return p.AgentID, p.FailKind, p.ExitCode
	}
	return "", "", nil
}

func findJobByAgent(s model.State, agentID string) (model.Job, bool) {
	for _, j := range s.Jobs {
		if j.AgentID == agentID {
			return j, true
		}
	}
	return model.Job{}, false
}

// runHandler applies one HandlerSpec's action, bounded by Attempts:
// once exhausted, nudge/resume/gate degrade to fail. source
// tags any escalation this handler raises, so resolution routing applies
// the right option table.
func runHandler(deps Deps, job model.Job, agent model.AgentInstance, handler model.HandlerSpec, source model.DecisionSource, exitCode *int) []effect.Effect {
	exhausted := handler.Attempts > 0 && agent.ErrorAttempt >= handler.Attempts

	switch handler.Action {
	case model.ActionNudge:
		if exhausted {
			return []effect.Effect{failStepEffect(job, "on_idle nudge attempts exhausted")}
		}
		return []effect.Effect{
			{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: job.AgentID, Text: handler.Message, Enter: true,
			}},
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindAgentNudged),
				Payload:   event.PayloadAgentNudged{AgentID: job.AgentID, At: deps.Clock.Now()},
			}},
		}
	case model.ActionDone:
		return []effect.Effect{
			signalEffect(job.AgentID, model.SignalComplete),
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindStepCompleted),
				Payload:   event.PayloadStepCompleted{JobID: job.ID, Step: job.CurrentStep},
			}},
		}
	case model.ActionFail:
		reason := "agent handler: fail"
		if exitCode != nil {
			reason = fmt.Sprintf("agent exited with code %d", *exitCode)
		}
		return []effect.Effect{failStepEffect(job, reason)}
	case model.ActionEscalate:
		context := "agent handler escalation"
		if job.AgentSignal != model.SignalNone {
			context = fmt.Sprintf("agent handler escalation (last signal: %s)", job.AgentSignal)
		}
		return append([]effect.Effect{signalEffect(job.AgentID, model.SignalEscalate)},
			escalate(deps, job, source, context, nil)...)
	case model.ActionGate:
		if handler.GateCmd == "" || exhausted {
			return []effect.Effect{failStepEffect(job, "on_idle gate unavailable")}
		}
		return []effect.Effect{{Kind: effect.KindRunShell, RunShell: &effect.RunShell{
			JobID: job.ID, Step: job.CurrentStep, Command: handler.GateCmd, Purpose: "gate",
		}}}
	case model.ActionResume:
		if agent.SessionID == "" || exhausted {
			return []effect.Effect{failStepEffect(job, "resume unavailable: no session handle")}
		}
		return []effect.Effect{{Kind: effect.KindReconnectAgent, ReconnectAgent: &effect.ReconnectAgent{
			AgentID: job.AgentID,
		}}}
	}
	return nil
}

// signalEffect records the agent's latest signal (complete, escalate) as
// its own event, so Job.AgentSignal and AgentInstance.LastSignal track
// what the agent last reported independent of the step routing that
// follows.
func signalEffect(agentID string, sig model.AgentSignalKind) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindAgentSignal),
		Payload:   event.PayloadAgentSignal{AgentID: agentID, Signal: sig},
	}}
}

// isAgentCommandKind matches client-issued agent commands (IPC agent.*
// methods), which the core translates into adapter effects so even
// manual interventions flow through the event log.
func isAgentCommandKind(k event.Kind) bool {
	switch k {
	case event.KindAgentSend, event.KindAgentKill, event.KindAgentResume:
		return true
	}
	return false
}

func agentCommandTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	switch e.Kind {
	case event.KindAgentSend:
		p, err := event.Decode[event.PayloadAgentSend](e)
		if err != nil {
			return nil
		}
		if _, ok := s.Agents[p.AgentID]; !ok {
			return nil
		}
		return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
			AgentID: p.AgentID, Text: p.Text, Enter: true,
		}}}
	case event.KindAgentKill:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return nil
		}
		if _, ok := s.Agents[p.AgentID]; !ok {
			return nil
		}
		return []effect.Effect{
			{Kind: effect.KindKillAgent, KillAgent: &effect.KillAgent{AgentID: p.AgentID}},
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindAgentKilled),
				Payload:   event.PayloadAgentID{AgentID: p.AgentID},
			}},
		}
	case event.KindAgentResume:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return nil
		}
		agent, ok := s.Agents[p.AgentID]
		if !ok || agent.SessionID == "" {
			return nil
		}
		return []effect.Effect{{Kind: effect.KindReconnectAgent, ReconnectAgent: &effect.ReconnectAgent{
			AgentID: p.AgentID,
		}}}
	}
	return nil
}

func failStepEffect(job model.Job, reason string) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindStepFailed),
		Payload:   event.PayloadStepFailed{JobID: job.ID, Step: job.CurrentStep, Error: reason},
	}}
}

// escalate mints a decision record and emits decision:created, parking
// the job's step in Waiting(decision_id) via the resulting state:apply.
// options is nil for every source except question, whose choices vary
// per prompt and so can't come from a fixed table; nil falls back to
// defaultOptionsFor(source).
func escalate(deps Deps, job model.Job, source model.DecisionSource, context string, options []model.DecisionOption) []effect.Effect {
	if options == nil {
		options = defaultOptionsFor(source)
	}
	decisionID := deps.IDs.NewDecisionID()
	decision := model.Decision{
		ID: decisionID, Namespace: job.Namespace, OwnerJob: job.ID,
		Source: source, Context: context,
		Options: options,
	}
	return []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindDecisionCreated),
			Payload:   event.PayloadDecisionCreated{Decision: decision},
		}},
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindStepWaiting),
			Payload:   event.PayloadStepWaiting{JobID: job.ID, Step: job.CurrentStep, DecisionID: decisionID},
		}},
	}
}

func defaultOptionsFor(source model.DecisionSource) []model.DecisionOption {
	switch source {
	case model.SourceApproval:
		return []model.DecisionOption{
			{Index: 1, Label: "approve", Recommended: true},
			{Index: 2, Label: "deny"},
			{Index: 3, Label: "cancel job"},
		}
	case model.SourceIdle:
		return []model.DecisionOption{
			{Index: 1, Label: "resume with a nudge", Recommended: true},
			{Index: 2, Label: "mark step done"},
			{Index: 3, Label: "cancel job"},
			{Index: 4, Label: "dismiss"},
		}
	case model.SourceError, model.SourceGate:
		return []model.DecisionOption{
			{Index: 1, Label: "retry: resume and respawn agent", Recommended: true},
			{Index: 2, Label: "skip: mark step done"},
			{Index: 3, Label: "cancel job"},
		}
	default:
		return nil
	}
}
