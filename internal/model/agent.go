package model

import "time"

// AgentErrorKind classifies a recoverable agent failure observed by the
// watcher from the agent CLI's structured API/runtime error records.
type AgentErrorKind string

const (
	ErrUnauthorized AgentErrorKind = "Unauthorized"
	ErrOutOfCredits AgentErrorKind = "OutOfCredits"
	ErrNoInternet   AgentErrorKind = "NoInternet"
	ErrRateLimited  AgentErrorKind = "RateLimited"
	ErrOther        AgentErrorKind = "Other"
)

// AgentObservedState is the watcher's classification of a supervised
// agent. Failed carries a FailKind; Exited carries an optional ExitCode.
type AgentObservedState string

const (
	AgentWorking         AgentObservedState = "working"
	AgentWaitingForInput AgentObservedState = "waiting_for_input"
	AgentFailed          AgentObservedState = "failed"
	AgentExited          AgentObservedState = "exited"
	AgentSessionGone     AgentObservedState = "session_gone"
)

// AgentInstance is a supervised long-running interactive process.
type AgentInstance struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	OwnerJob  string `json:"owner_job,omitempty"`  // set when owned by a job step
	OwnerRun  string `json:"owner_run,omitempty"`  // set when a standalone agent-run
	Namespace string `json:"namespace"`

	State     AgentObservedState `json:"state"`
	FailKind  AgentErrorKind     `json:"fail_kind,omitempty"`
	ExitCode  *int               `json:"exit_code,omitempty"`

	LastSignal  AgentSignalKind `json:"last_signal,omitempty"`
	LastNudgeAt time.Time       `json:"last_nudge_at,omitempty"`

	// IdleGracePending and IdleGraceLogSize carry the idle-grace
	// protocol's snapshot: on a Working->WaitingForInput transition the
	// watcher records the log size and arms a grace timer instead of
	// emitting agent:idle immediately.
	IdleGracePending bool  `json:"idle_grace_pending"`
	IdleGraceLogSize int64 `json:"idle_grace_log_size"`

	ErrorAttempt int `json:"error_attempt"` // attempts consumed against on_error/on_idle bound

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a terminal multiplexer session backing an agent instance.
type Session struct {
	ID      string            `json:"id"`
	Cwd     string            `json:"cwd"`
	Env     map[string]string `json:"env"`
	Alive   bool              `json:"alive"` // derived, refreshed by reconciliation/watcher
}

// AgentRun is a standalone interactive agent not attached to a job: same
// supervision machinery, simpler lifecycle (no step graph to route into).
type AgentRun struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"` // AgentSpec name it was spawned from
	Status    JobStatus `json:"status"`  // reuses Running/Waiting/Completed/Failed/Cancelled
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
