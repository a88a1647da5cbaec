// Package effect defines the engine's effect values and the adapter
// interfaces the executor dispatches them to. Effects are data, never
// closures: a state machine returns a []Effect and the event loop is
// the only place that turns one into an actual syscall, subprocess, or
// emitted event.
package effect

import "time"

// Kind discriminates the Effect union.
type Kind string

const (
	KindEmitEvent        Kind = "emit-event"
	KindSetTimer         Kind = "set-timer"
	KindCancelTimer      Kind = "cancel-timer"
	KindNotify           Kind = "notify"
	KindCreateWorkspace  Kind = "create-workspace"
	KindDeleteWorkspace  Kind = "delete-workspace"
	KindSpawnAgent       Kind = "spawn-agent"
	KindReconnectAgent   Kind = "reconnect-agent"
	KindSendAgent        Kind = "send-agent"
	KindKillAgent        Kind = "kill-agent"
	KindConfigureSession Kind = "configure-session"
	KindRunShell         Kind = "run-shell"
	KindPollQueue        Kind = "poll-queue"
	KindTakeItem         Kind = "take-item"
)

// Class groups effects by how the executor schedules them.
type Class int

const (
	// ClassImmediate effects are awaited inline and expected to complete
	// in microseconds to low milliseconds.
	ClassImmediate Class = iota
	// ClassInline effects are subprocess-heavy. The executor awaits
	// send-agent, kill-agent and configure-session in place; it runs
	// spawn-agent, reconnect-agent and create/delete-workspace on a
	// goroutine whose outcome re-enters the loop as a result event.
	ClassInline
	// ClassBackground effects are spawned; their outcome re-enters the
	// loop as a result event rather than being awaited.
	ClassBackground
)

func (k Kind) Class() Class {
	switch k {
	case KindEmitEvent, KindSetTimer, KindCancelTimer, KindNotify:
		return ClassImmediate
	case KindCreateWorkspace, KindDeleteWorkspace, KindSpawnAgent, KindReconnectAgent,
		KindSendAgent, KindKillAgent, KindConfigureSession:
		return ClassInline
	case KindRunShell, KindPollQueue, KindTakeItem:
		return ClassBackground
	default:
		return ClassImmediate
	}
}

// Effect is the value-level description of a side effect a state machine
// wants performed. Exactly one of the payload fields is populated,
// selected by Kind.
type Effect struct {
	Kind Kind

	EmitEvent       *EmitEvent
	SetTimer        *SetTimer
	CancelTimer     *CancelTimer
	Notify          *Notify
	CreateWorkspace *CreateWorkspace
	DeleteWorkspace *DeleteWorkspace
	SpawnAgent      *SpawnAgent
	ReconnectAgent  *ReconnectAgent
	SendAgent       *SendAgent
	KillAgent       *KillAgent
	ConfigureSession *ConfigureSession
	RunShell        *RunShell
	PollQueue       *PollQueue
	TakeItem        *TakeItem
}

type EmitEvent struct {
	EventKind string
	Payload   any
}

type SetTimer struct {
	ID      string
	Fire    time.Time
}

type CancelTimer struct {
	ID string
}

type Notify struct {
	Title string
	Body  string
}

type CreateWorkspace struct {
	WorkspaceID string
	JobID       string
	Namespace   string
	Kind        string // "plain" | "worktree"
	Path        string
	BaseRef     string
}

type DeleteWorkspace struct {
	WorkspaceID string
	Path        string
}

type SpawnAgent struct {
	JobID       string // owning job, empty for a standalone agent-run
	RunID       string // owning agent-run, empty for a job-owned agent
	Namespace   string
	AgentID     string
	Command     []string
	Prompt      string
	Env         map[string]string
	Cwd         string
	PrimeScript string
	LogPath     string
}

type ReconnectAgent struct {
	AgentID string
	LogPath string
}

type SendAgent struct {
	AgentID string
	Text    string
	Enter   bool
}

type KillAgent struct {
	AgentID string
}

type ConfigureSession struct {
	SessionID string
	Cosmetics map[string]string
}

type RunShell struct {
	JobID   string
	Step    string
	Command string
	Cwd     string
	Env     map[string]string
	LogPath string
	// Purpose distinguishes a normal step command ("", the zero value)
	// from an on_idle/on_error "gate" probe, whose exit code the core
	// interprets as advance-or-escalate rather than step-completed.
	Purpose string
}

type PollQueue struct {
	Namespace  string
	Queue      string
	WorkerName string
	ListCmd    string
}

type TakeItem struct {
	Namespace  string
	Queue      string
	WorkerName string
	ItemID     string
	JobID      string
	TakeCmd    string
}
