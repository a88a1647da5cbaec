package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

// applyAgentEvent folds session, agent, and agent-run lifecycle events.
// Agent state transitions reflect into the owning job's step status
// where applicable: working/waiting don't move the step; a terminal
// agent signal does, via the on_done/on_fail handler routing in
// internal/core, which emits the corresponding step:* event separately —
// this function only updates the AgentInstance record itself.
func applyAgentEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindSessionCreated:
		p, err := event.Decode[event.PayloadSessionCreated](e)
		if err != nil {
			return
		}
		s.Sessions[p.Session.ID] = p.Session

	case event.KindSessionKilled, event.KindSessionGone:
		p, err := event.Decode[event.PayloadSessionID](e)
		if err != nil {
			return
		}
		sess, ok := s.Sessions[p.SessionID]
		if !ok {
			return
		}
		sess.Alive = false
		s.Sessions[p.SessionID] = sess

	case event.KindAgentSpawned:
		p, err := event.Decode[event.PayloadAgentSpawned](e)
		if err != nil {
			return
		}
		s.Agents[p.Agent.ID] = p.Agent
		if p.Agent.OwnerJob != "" {
			if j, ok := s.Jobs[p.Agent.OwnerJob]; ok {
				j.AgentID = p.Agent.ID
				s.Jobs[p.Agent.OwnerJob] = j
			}
		}

	case event.KindAgentWorking:
		p, err := event.Decode[event.PayloadAgentState](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.State = model.AgentWorking
		a.IdleGracePending = false
		a.IdleGraceLogSize = 0
		s.Agents[p.AgentID] = a

	case event.KindAgentWaiting:
		p, err := event.Decode[event.PayloadAgentState](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.State = model.AgentWaitingForInput
		s.Agents[p.AgentID] = a

	case event.KindAgentIdle:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.IdleGracePending = false
		a.ErrorAttempt++
		s.Agents[p.AgentID] = a

	case event.KindAgentPrompt:
		// Hook back-channel notification; no persistent state change beyond
		// what the subsequent agent:waiting event already carries.

	case event.KindAgentFailed:
		p, err := event.Decode[event.PayloadAgentState](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.State = model.AgentFailed
		a.FailKind = p.FailKind
		s.Agents[p.AgentID] = a

	case event.KindAgentExited:
		p, err := event.Decode[event.PayloadAgentState](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.State = model.AgentExited
		a.ExitCode = p.ExitCode
		s.Agents[p.AgentID] = a

	case event.KindAgentGone:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.State = model.AgentSessionGone
		s.Agents[p.AgentID] = a

	case event.KindAgentSignal:
		p, err := event.Decode[event.PayloadAgentSignal](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.LastSignal = p.Signal
		s.Agents[p.AgentID] = a
		reflectSignalIntoJob(s, a, p.Signal)

	case event.KindAgentNudged:
		p, err := event.Decode[event.PayloadAgentNudged](e)
		if err != nil {
			return
		}
		a, ok := s.Agents[p.AgentID]
		if !ok {
			return
		}
		a.LastSignal = model.SignalContinue
		a.LastNudgeAt = p.At
		s.Agents[p.AgentID] = a
		reflectSignalIntoJob(s, a, model.SignalContinue)

	case event.KindAgentKilled:
		p, err := event.Decode[event.PayloadAgentID](e)
		if err != nil {
			return
		}
		if a, ok := s.Agents[p.AgentID]; ok && a.OwnerJob != "" {
			if j, ok := s.Jobs[a.OwnerJob]; ok {
				j.AgentID = ""
				s.Jobs[a.OwnerJob] = j
			}
		}
		delete(s.Agents, p.AgentID)

	case event.KindAgentRunCreated:
		p, err := event.Decode[event.PayloadAgentRunCreated](e)
		if err != nil {
			return
		}
		s.AgentRuns[p.Run.ID] = p.Run

	case event.KindAgentRunCompleted:
		p, err := event.Decode[event.PayloadAgentRunID](e)
		if err != nil {
			return
		}
		r, ok := s.AgentRuns[p.RunID]
		if !ok {
			return
		}
		r.Status = model.JobCompleted
		s.AgentRuns[p.RunID] = r

	case event.KindAgentRunFailed:
		p, err := event.Decode[event.PayloadAgentRunID](e)
		if err != nil {
			return
		}
		r, ok := s.AgentRuns[p.RunID]
		if !ok {
			return
		}
		r.Status = model.JobFailed
		s.AgentRuns[p.RunID] = r

	case event.KindAgentRunCancelled:
		p, err := event.Decode[event.PayloadAgentRunID](e)
		if err != nil {
			return
		}
		r, ok := s.AgentRuns[p.RunID]
		if !ok {
			return
		}
		r.Status = model.JobCancelled
		s.AgentRuns[p.RunID] = r
	}
}

// reflectSignalIntoJob mirrors an agent's latest signal onto its owning
// job's AgentSignal attribute, so job queries show what the agent last
// reported without having to join against the agent table.
func reflectSignalIntoJob(s *model.State, a model.AgentInstance, sig model.AgentSignalKind) {
	if a.OwnerJob == "" {
		return
	}
	j, ok := s.Jobs[a.OwnerJob]
	if !ok {
		return
	}
	j.AgentSignal = sig
	s.Jobs[a.OwnerJob] = j
}
