// Package state implements the engine's materializer: a pure
// Apply(State, Event) State function folding every event kind into the
// in-memory materialized state. Signal events (timer fires,
// command:run, shell:exited, worker:woken) do not mutate persistent
// state; they are still accepted here (as no-ops) because they are still
// recorded in the WAL for audit, and the functional core (internal/core)
// reads them to produce effects.
package state

import (
	"fmt"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

// Apply folds e into s and returns s. s's map fields are mutated in
// place — State's map fields are reference types, so "returning a new
// state" would only be meaningful with a full Clone() first; callers that
// need the old value to survive (e.g. the snapshot writer) call s.Clone()
// themselves before applying further events.
//
// Apply never errors: an event that cannot apply cleanly (e.g. referring
// to an id that doesn't exist) is a bug in the functional core that
// produced it, not a runtime condition — WAL replay must be total over
// every event the core ever emits.
func Apply(s model.State, e event.Envelope) model.State {
	s.LastSeq = e.Seq
	switch e.Kind {
	case event.KindRunbookLoaded:
		applyRunbookLoaded(&s, e)
	case event.KindJobCreated, event.KindJobVarsUpdated, event.KindJobAdvanced,
		event.KindJobCompleted, event.KindJobFailed, event.KindJobCancelled,
		event.KindJobDeleted, event.KindStepStarted, event.KindStepCompleted,
		event.KindStepFailed, event.KindStepWaiting,
		event.KindWorkspaceCreating, event.KindWorkspaceCreated,
		event.KindWorkspaceReady, event.KindWorkspaceFailed, event.KindWorkspaceDeleted:
		applyJobEvent(&s, e)
	case event.KindSessionCreated, event.KindSessionKilled, event.KindSessionGone,
		event.KindAgentSpawned, event.KindAgentWorking, event.KindAgentWaiting,
		event.KindAgentIdle, event.KindAgentPrompt, event.KindAgentFailed,
		event.KindAgentExited, event.KindAgentGone, event.KindAgentSignal,
		event.KindAgentNudged, event.KindAgentKilled,
		event.KindAgentRunCreated, event.KindAgentRunCompleted,
		event.KindAgentRunFailed, event.KindAgentRunCancelled:
		applyAgentEvent(&s, e)
	case event.KindWorkerStarted, event.KindWorkerStopped, event.KindWorkerResized,
		event.KindWorkerDeleted:
		applyWorkerEvent(&s, e)
	case event.KindQueuePushed, event.KindQueueTaken, event.KindQueueCompleted,
		event.KindQueueFailed, event.KindQueueItemRetry, event.KindQueueItemDead,
		event.KindQueueDropped:
		applyQueueEvent(&s, e)
	case event.KindCronStarted, event.KindCronStopped, event.KindCronFired,
		event.KindCronSkipped, event.KindCronDeleted:
		applyCronEvent(&s, e)
	case event.KindDecisionCreated, event.KindDecisionResolved:
		applyDecisionEvent(&s, e)
	case event.KindCommandRun, event.KindTimerStart, event.KindTimerCancel,
		event.KindShellExited, event.KindWorkerWoken, event.KindWorkerPollComplete,
		event.KindDaemonShutdown, event.KindJobResume, event.KindWorkspaceDrop,
		event.KindAgentSend, event.KindAgentKill, event.KindAgentResume:
		// Signal events: no state mutation, recorded for audit only. The
		// client-command signals (job:resume, workspace:drop, agent:send,
		// agent:kill, agent:resume) mutate state only through the events
		// their effects emit in turn.
	default:
		panic(fmt.Sprintf("state: unknown event kind %q — apply is required to be total", e.Kind))
	}
	return s
}

func applyRunbookLoaded(s *model.State, e event.Envelope) {
	p, err := event.Decode[event.PayloadRunbookLoaded](e)
	if err != nil {
		return
	}
	if _, exists := s.Runbooks[p.Runbook.Hash]; exists {
		return // content-addressed dedup
	}
	s.Runbooks[p.Runbook.Hash] = p.Runbook
}
