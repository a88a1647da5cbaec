package event

import (
	"time"

	"github.com/orchestratord/oj/internal/model"
)

// Payload types are named Payload<Kind> to keep a 1:1 readable mapping to
// the Kind constants in kinds.go. Fields carry only what Apply needs to
// fold the event into State — derived/denormalized fields are recomputed,
// never carried on the wire, per invariant (3) ("apply_event is
// deterministic").

type PayloadRunbookLoaded struct {
	Runbook model.Runbook `json:"runbook"`
}

type PayloadCommandRun struct {
	Namespace   string            `json:"namespace"`
	CommandName string            `json:"command_name"`
	Args        map[string]string `json:"args"`
	JobID       string            `json:"job_id"`
	RunbookHash string            `json:"runbook_hash"`
}

type PayloadJobCreated struct {
	Job model.Job `json:"job"`
}

type PayloadJobVarsUpdated struct {
	JobID string            `json:"job_id"`
	Vars  map[string]string `json:"vars"`
}

type PayloadJobAdvanced struct {
	JobID   string `json:"job_id"`
	NextStep string `json:"next_step"`
}

type PayloadJobTerminal struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

type PayloadJobCancel struct {
	JobID string `json:"job_id"`
}

type PayloadJobResume struct {
	JobID string `json:"job_id"`
}

type PayloadJobDeleted struct {
	JobID string `json:"job_id"`
}

type PayloadStepStarted struct {
	JobID string `json:"job_id"`
	Step  string `json:"step"`
}

type PayloadStepCompleted struct {
	JobID string `json:"job_id"`
	Step  string `json:"step"`
}

type PayloadStepFailed struct {
	JobID string `json:"job_id"`
	Step  string `json:"step"`
	Error string `json:"error"`
}

type PayloadStepWaiting struct {
	JobID      string `json:"job_id"`
	Step       string `json:"step"`
	DecisionID string `json:"decision_id"`
}

type PayloadWorkspaceCreating struct {
	Workspace model.Workspace `json:"workspace"`
}

type PayloadWorkspaceStatus struct {
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type PayloadSessionCreated struct {
	Session model.Session `json:"session"`
	OwnerID string        `json:"owner_id"` // agent instance id
}

type PayloadSessionID struct {
	SessionID string `json:"session_id"`
}

type PayloadAgentSpawned struct {
	Agent model.AgentInstance `json:"agent"`
}

type PayloadAgentState struct {
	AgentID  string                    `json:"agent_id"`
	State    model.AgentObservedState  `json:"state"`
	FailKind model.AgentErrorKind      `json:"fail_kind,omitempty"`
	ExitCode *int                      `json:"exit_code,omitempty"`
}

type PayloadAgentSignal struct {
	AgentID string                 `json:"agent_id"`
	Signal  model.AgentSignalKind  `json:"signal"`
}

type PayloadAgentID struct {
	AgentID string `json:"agent_id"`
}

type PayloadAgentSend struct {
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

// PayloadAgentNudged carries the wall-clock time the nudge was sent, not
// re-derived from the envelope at apply time, so AgentInstance.LastNudgeAt
// reflects exactly when the text went in — the anchor the watcher's grace
// logic uses to self-suppress re-arming so the nudge text itself doesn't
// restart the idle cycle.
type PayloadAgentNudged struct {
	AgentID string    `json:"agent_id"`
	At      time.Time `json:"at"`
}

type PayloadAgentRunCreated struct {
	Run model.AgentRun `json:"run"`
}

type PayloadAgentRunID struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason,omitempty"`
}

type PayloadWorkerStarted struct {
	Worker model.Worker `json:"worker"`
}

type PayloadWorkerName struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type PayloadWorkerResized struct {
	Namespace      string `json:"namespace"`
	Name           string `json:"name"`
	MaxConcurrency int    `json:"max_concurrency"`
}

type PayloadWorkerPollComplete struct {
	Namespace string            `json:"namespace"`
	Name      string            `json:"name"`
	Items     []model.QueueItem `json:"items"`
}

type PayloadQueuePushed struct {
	Item model.QueueItem `json:"item"`
}

type PayloadQueueItemRef struct {
	Namespace  string `json:"namespace"`
	Queue      string `json:"queue"`
	ItemID     string `json:"item_id"`
	JobID      string `json:"job_id,omitempty"`
	WorkerName string `json:"worker_name,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type PayloadCronStarted struct {
	Cron model.Cron `json:"cron"`
}

type PayloadCronRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type PayloadCronFired struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	FiredMS   int64  `json:"fired_ms"`
	JobID     string `json:"job_id,omitempty"`
}

type PayloadDecisionCreated struct {
	Decision model.Decision `json:"decision"`
}

type PayloadDecisionResolved struct {
	DecisionID   string `json:"decision_id"`
	ChosenOption int    `json:"chosen_option"`
	Message      string `json:"message,omitempty"`
}

type PayloadTimer struct {
	TimerID string `json:"timer_id"`
}

type PayloadShellExited struct {
	OwnerID  string `json:"owner_id"` // "<jobID>:<step>" for a job step, "run:<runID>:" for an agent-run gate
	ExitCode int    `json:"exit_code"`
	Purpose  string `json:"purpose,omitempty"` // "" for a step command, "gate" for an on_idle/on_error probe
}

type PayloadDaemonShutdown struct {
	KillSessions bool `json:"kill_sessions"`
}
