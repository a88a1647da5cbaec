package model

import "time"

// StepStatus is the lifecycle of a single step within a job.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepWaiting   StepStatus = "waiting" // Waiting(decision_id), see DecisionID field
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed" // Failed(error), see Error field
)

// StepState is the per-step runtime record kept in a Job's StepHistory and
// as the value of CurrentStepState.
type StepState struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	DecisionID string     `json:"decision_id,omitempty"` // set iff Status == StepWaiting
	Error      string     `json:"error,omitempty"`       // set iff Status == StepFailed
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at,omitempty"`
}

// IsTerminal reports whether the step will not transition further without
// external input (resume, decision resolution).
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// AgentSignalKind is the last signal an agent instance delivered to its
// owning step, driving on_done/on_fail/continue routing.
type AgentSignalKind string

const (
	SignalNone     AgentSignalKind = ""
	SignalComplete AgentSignalKind = "complete"
	SignalEscalate AgentSignalKind = "escalate"
	SignalContinue AgentSignalKind = "continue"
)

// Job is one execution of a JobSpec template.
type Job struct {
	ID          string            `json:"id"`
	Namespace   string            `json:"namespace"`
	Kind        string            `json:"kind"` // job template name
	DisplayName string            `json:"display_name"`
	Vars        map[string]string `json:"vars"`

	RunbookHash string `json:"runbook_hash"`

	CurrentStep string    `json:"current_step"`
	StepState   StepState `json:"step_state"`
	History     []StepState `json:"history"`

	AgentSignal AgentSignalKind `json:"agent_signal,omitempty"`
	AgentID     string          `json:"agent_id,omitempty"`
	WorkspaceID string          `json:"workspace_id,omitempty"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStatus is the job's overall lifecycle, derived from its current step.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobWaiting   JobStatus = "waiting"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the job status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IsTerminal reports whether reconciliation should skip this job entirely
// (no further action possible without human or client input).
func (j *Job) IsTerminal() bool { return j.Status.IsTerminal() }

// IsAwaitingDecision reports whether the job's current step is parked on an
// unresolved human-in-the-loop decision; reconciliation must skip these.
func (j *Job) IsAwaitingDecision() bool {
	return j.StepState.Status == StepWaiting && j.StepState.DecisionID != ""
}
