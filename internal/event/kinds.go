// Package event defines the WAL's event envelope and the event kinds the
// state materializer understands, a flat constant table of kebab-case
// "namespace:action" tags.
package event

// Kind is the internally-tagged discriminator used in the WAL's
// {"seq":...,"kind":...,"data":...} line shape.
type Kind string

const (
	// Runbook cache.
	KindRunbookLoaded Kind = "runbook:loaded"

	// Job / step lifecycle.
	KindJobCreated     Kind = "job:created"
	KindJobVarsUpdated Kind = "job:vars-updated"
	KindJobAdvanced    Kind = "job:advanced"
	KindJobCompleted   Kind = "job:completed"
	KindJobFailed      Kind = "job:failed"
	KindJobCancelled   Kind = "job:cancelled"
	KindJobCancel      Kind = "job:cancel" // client-requested, drives cancel routing
	KindJobResume      Kind = "job:resume" // client-requested, re-runs the current step
	KindJobDeleted     Kind = "job:deleted"
	KindStepStarted    Kind = "step:started"
	KindStepCompleted  Kind = "step:completed"
	KindStepFailed     Kind = "step:failed"
	KindStepWaiting    Kind = "step:waiting"

	// Workspace lifecycle.
	KindWorkspaceCreating Kind = "workspace:creating"
	KindWorkspaceCreated  Kind = "workspace:created"
	KindWorkspaceReady    Kind = "workspace:ready"
	KindWorkspaceFailed   Kind = "workspace:failed"
	KindWorkspaceDeleted  Kind = "workspace:deleted"
	KindWorkspaceDrop     Kind = "workspace:drop" // client-requested teardown

	// Session lifecycle.
	KindSessionCreated Kind = "session:created"
	KindSessionKilled  Kind = "session:killed"
	KindSessionGone    Kind = "session:gone"

	// Agent lifecycle.
	KindAgentSpawned Kind = "agent:spawned"
	KindAgentWorking Kind = "agent:working"
	KindAgentWaiting Kind = "agent:waiting"
	KindAgentIdle    Kind = "agent:idle"
	KindAgentPrompt  Kind = "agent:prompt"
	KindAgentFailed  Kind = "agent:failed"
	KindAgentExited  Kind = "agent:exited"
	KindAgentGone    Kind = "agent:gone"
	KindAgentSignal  Kind = "agent:signal"
	KindAgentNudged  Kind = "agent:nudged"
	KindAgentKilled  Kind = "agent:killed"

	// Client-requested agent commands, translated by the functional core
	// into the matching adapter effects.
	KindAgentSend   Kind = "agent:send"
	KindAgentKill   Kind = "agent:kill"
	KindAgentResume Kind = "agent:resume"

	// Standalone agent-run lifecycle.
	KindAgentRunCreated   Kind = "agentrun:created"
	KindAgentRunCompleted Kind = "agentrun:completed"
	KindAgentRunFailed    Kind = "agentrun:failed"
	KindAgentRunCancelled Kind = "agentrun:cancelled"

	// Worker lifecycle.
	KindWorkerStarted      Kind = "worker:started"
	KindWorkerStopped      Kind = "worker:stopped"
	KindWorkerWoken        Kind = "worker:woken"
	KindWorkerPollComplete Kind = "worker:poll-complete"
	KindWorkerResized      Kind = "worker:resized"
	KindWorkerDeleted      Kind = "worker:deleted"

	// Queue lifecycle.
	KindQueuePushed     Kind = "queue:pushed"
	KindQueueTaken      Kind = "queue:taken"
	KindQueueCompleted  Kind = "queue:completed"
	KindQueueFailed     Kind = "queue:failed"
	KindQueueItemRetry  Kind = "queue:item-retry"
	KindQueueItemDead   Kind = "queue:item-dead"
	KindQueueDropped    Kind = "queue:dropped"

	// Cron lifecycle.
	KindCronStarted Kind = "cron:started"
	KindCronStopped Kind = "cron:stopped"
	KindCronFired   Kind = "cron:fired"
	KindCronSkipped Kind = "cron:skipped"
	KindCronDeleted Kind = "cron:deleted"

	// Decision lifecycle.
	KindDecisionCreated  Kind = "decision:created"
	KindDecisionResolved Kind = "decision:resolved"

	// Signals: drive the functional core but do not mutate persistent
	// state themselves; still logged for audit.
	KindCommandRun   Kind = "command:run"
	KindTimerStart   Kind = "timer:start"
	KindTimerCancel  Kind = "timer:cancel"
	KindShellExited  Kind = "shell:exited"
	KindDaemonShutdown Kind = "daemon:shutdown"
)

// Known reports whether k is a kind this daemon understands. The IPC
// event-injection path checks it before submitting, since the
// materializer treats an unknown kind as a programming error rather
// than a runtime condition.
func Known(k Kind) bool {
	_, ok := known[k]
	return ok
}

var known = map[Kind]struct{}{
	KindRunbookLoaded: {},
	KindJobCreated: {}, KindJobVarsUpdated: {}, KindJobAdvanced: {},
	KindJobCompleted: {}, KindJobFailed: {}, KindJobCancelled: {},
	KindJobCancel: {}, KindJobResume: {}, KindJobDeleted: {},
	KindStepStarted: {}, KindStepCompleted: {}, KindStepFailed: {}, KindStepWaiting: {},
	KindWorkspaceCreating: {}, KindWorkspaceCreated: {}, KindWorkspaceReady: {},
	KindWorkspaceFailed: {}, KindWorkspaceDeleted: {}, KindWorkspaceDrop: {},
	KindSessionCreated: {}, KindSessionKilled: {}, KindSessionGone: {},
	KindAgentSpawned: {}, KindAgentWorking: {}, KindAgentWaiting: {},
	KindAgentIdle: {}, KindAgentPrompt: {}, KindAgentFailed: {},
	KindAgentExited: {}, KindAgentGone: {}, KindAgentSignal: {},
	KindAgentNudged: {}, KindAgentKilled: {},
	KindAgentSend: {}, KindAgentKill: {}, KindAgentResume: {},
	KindAgentRunCreated: {}, KindAgentRunCompleted: {}, KindAgentRunFailed: {}, KindAgentRunCancelled: {},
	KindWorkerStarted: {}, KindWorkerStopped: {}, KindWorkerWoken: {},
	KindWorkerPollComplete: {}, KindWorkerResized: {}, KindWorkerDeleted: {},
	KindQueuePushed: {}, KindQueueTaken: {}, KindQueueCompleted: {},
	KindQueueFailed: {}, KindQueueItemRetry: {}, KindQueueItemDead: {}, KindQueueDropped: {},
	KindCronStarted: {}, KindCronStopped: {}, KindCronFired: {}, KindCronSkipped: {}, KindCronDeleted: {},
	KindDecisionCreated: {}, KindDecisionResolved: {},
	KindCommandRun: {}, KindTimerStart: {}, KindTimerCancel: {},
	KindShellExited: {}, KindDaemonShutdown: {},
}
