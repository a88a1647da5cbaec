package core

import (
	"fmt"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func isDecisionKind(k event.Kind) bool {
	return k == event.KindDecisionResolved
}

// decisionTransition maps a resolved decision's (source, chosen option)
// pair to its follow-up signal via a fixed table. The signal loops
// back through jobTransition on its own event:apply/Transition cycle
// rather than being special-cased here.
func decisionTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadDecisionResolved](e)
	if err != nil {
		return nil
	}
	d, ok := s.Decisions[p.DecisionID]
	if !ok {
		return nil
	}
	if d.OwnerRun != "" {
		return decisionResolvedForRun(s, d, p)
	}
	if d.OwnerJob == "" {
		return nil
	}
	job, ok := s.Jobs[d.OwnerJob]
	if !ok {
		return nil
	}

	switch d.Source {
	case model.SourceIdle:
		switch p.ChosenOption {
		case 1: // Nudge: resume with message to agent
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: job.AgentID, Text: p.Message, Enter: true,
			}}}
		case 2: // Done: complete step, advance job
			return []effect.Effect{stepCompletedEffect(job)}
		case 3: // Cancel: cancel job
			return []effect.Effect{jobCancelEffect(job)}
		case 4: // Dismiss: no-op, remain waiting
			return nil
		}
	case model.SourceError, model.SourceGate:
		switch p.ChosenOption {
		case 1: // Retry: resume, restart agent
			return []effect.Effect{{Kind: effect.KindReconnectAgent, ReconnectAgent: &effect.ReconnectAgent{
				AgentID: job.AgentID,
			}}}
		case 2: // Skip: complete step, advance job
			return []effect.Effect{stepCompletedEffect(job)}
		case 3: // Cancel: cancel job
			return []effect.Effect{jobCancelEffect(job)}
		}
	case model.SourceApproval:
		switch p.ChosenOption {
		case 1: // Approve: send "y" into session
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: job.AgentID, Text: "y", Enter: true,
			}}}
		case 2: // Deny: send "n" into session
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: job.AgentID, Text: "n", Enter: true,
			}}}
		case 3: // Cancel: cancel job
			return []effect.Effect{jobCancelEffect(job)}
		}
	case model.SourceQuestion:
		// Options 1..N send the chosen option's number into the session;
		// the last option (N+1) is always the fixed "Cancel" choice.
		if p.ChosenOption == len(d.Options) {
			return []effect.Effect{jobCancelEffect(job)}
		}
		return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
			AgentID: job.AgentID, Text: fmt.Sprintf("%d", p.ChosenOption), Enter: true,
		}}}
	}
	return nil
}

func stepCompletedEffect(job model.Job) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindStepCompleted),
		Payload:   event.PayloadStepCompleted{JobID: job.ID, Step: job.CurrentStep},
	}}
}

func jobCancelEffect(job model.Job) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindJobCancel),
		Payload:   event.PayloadJobCancel{JobID: job.ID},
	}}
}

// decisionResolvedForRun mirrors decisionTransition's per-source option
// table for a standalone agent-run: there's no step to complete or job to
// cancel, so "Done"/"Cancel" resolve the run directly instead.
func decisionResolvedForRun(s model.State, d model.Decision, p event.PayloadDecisionResolved) []effect.Effect {
	run, ok := s.AgentRuns[d.OwnerRun]
	if !ok {
		return nil
	}
	switch d.Source {
	case model.SourceIdle:
		switch p.ChosenOption {
		case 1:
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: run.AgentID, Text: p.Message, Enter: true,
			}}}
		case 2:
			return []effect.Effect{agentRunCompletedEffect(run.ID)}
		case 3:
			return []effect.Effect{agentRunCancelledEffect(run.ID)}
		case 4:
			return nil
		}
	case model.SourceError, model.SourceGate:
		switch p.ChosenOption {
		case 1:
			return []effect.Effect{{Kind: effect.KindReconnectAgent, ReconnectAgent: &effect.ReconnectAgent{
				AgentID: run.AgentID,
			}}}
		case 2:
			return []effect.Effect{agentRunCompletedEffect(run.ID)}
		case 3:
			return []effect.Effect{agentRunCancelledEffect(run.ID)}
		}
	case model.SourceApproval:
		switch p.ChosenOption {
		case 1:
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: run.AgentID, Text: "y", Enter: true,
			}}}
		case 2:
			return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
				AgentID: run.AgentID, Text: "n", Enter: true,
			}}}
		case 3:
			return []effect.Effect{agentRunCancelledEffect(run.ID)}
		}
	case model.SourceQuestion:
		if p.ChosenOption == len(d.Options) {
			return []effect.Effect{agentRunCancelledEffect(run.ID)}
		}
		return []effect.Effect{{Kind: effect.KindSendAgent, SendAgent: &effect.SendAgent{
			AgentID: run.AgentID, Text: fmt.Sprintf("%d", p.ChosenOption), Enter: true,
		}}}
	}
	return nil
}

func agentRunCompletedEffect(runID string) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindAgentRunCompleted),
		Payload:   event.PayloadAgentRunID{RunID: runID},
	}}
}

func agentRunCancelledEffect(runID string) effect.Effect {
	return effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindAgentRunCancelled),
		Payload:   event.PayloadAgentRunID{RunID: runID},
	}}
}
