// Package core implements the engine's functional-core state machines:
// one file per entity (job, worker, queue, cron, decision,
// agent run), each a pure function of the already-materialized state
// plus the triggering event, returning the effects the runtime must
// execute. No state machine here mutates State directly — internal/state
// owns that; core only decides what happens next.
package core

import (
	"time"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

// Deps are the pure inputs a transition needs beyond State and the event
// itself: an id generator (for follow-on entities like decisions) and a
// clock (for timer deadlines). Both are injected so tests can run
// deterministically.
type Deps struct {
	IDs   clock.IDGen
	Clock clock.Clock
}

// Transition selects the owning state machine(s) for e and returns the
// effects they produce. s is the state AFTER e has already been applied
// by internal/state.Apply, per the event loop's documented order
// (apply, then transition).
func Transition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	// Agent lifecycle signals fan out to whichever entity owns the
	// agent — a job's step (onAgentSignal) or a standalone agent-run
	// (agentRunSignalTransition) — decided by the AgentInstance record
	// itself rather than by event kind, since both owners share the
	// same four signal kinds.
	if isAgentSignalKind(e.Kind) {
		if agentID, _, _ := decodeAgentSignal(e); agentID != "" {
			if agent, ok := s.Agents[agentID]; ok && agent.OwnerRun != "" {
				run, ok := s.AgentRuns[agent.OwnerRun]
				if !ok {
					return nil
				}
				return agentRunSignalTransition(deps, s, run, agent, e)
			}
		}
	}
	switch {
	case isAgentCommandKind(e.Kind):
		return agentCommandTransition(deps, s, e)
	case e.Kind == event.KindJobCompleted || e.Kind == event.KindJobFailed || e.Kind == event.KindJobCancelled:
		// A terminal job event concerns two machines at once: the worker
		// that may have dispatched the job off a queue item, and the job's
		// own resource cleanup (session teardown, workspace deletion).
		return append(workerTransition(deps, s, e), jobCleanup(s, e)...)
	case isJobKind(e.Kind):
		return jobTransition(deps, s, e)
	case isWorkerKind(e.Kind):
		return workerTransition(deps, s, e)
	case isQueueKind(e.Kind):
		return queueTransition(deps, s, e)
	case isCronKind(e.Kind):
		return cronTransition(deps, s, e)
	case isDecisionKind(e.Kind):
		return decisionTransition(deps, s, e)
	case isAgentRunKind(e.Kind):
		return agentRunTransition(deps, s, e)
	case e.Kind == event.KindTimerStart:
		return timerTransition(deps, s, e)
	default:
		return nil
	}
}

func timerTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	// Timer fan-out (liveness, idle-grace, queue-retry, cron, worker-poll)
	// is owned by internal/watcher and internal/scheduler's id convention;
	// the core only re-dispatches queue-retry, cron and worker-poll timers,
	// which are pure-state concerns, not agent-supervision concerns.
	payload, err := event.Decode[event.PayloadTimer](e)
	if err != nil {
		return nil
	}
	return timerByID(deps, s, payload.TimerID)
}

func nowOrZero(deps Deps) time.Time {
	if deps.Clock == nil {
		return time.Time{}
	}
	return deps.Clock.Now()
}
