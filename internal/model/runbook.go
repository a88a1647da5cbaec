package model

// Runbook is the external, read-only input to the core: a content-addressed
// value produced by the (out-of-scope) declarative runbook parser. The core
// only ever stores and references it by Hash; it never mutates one.
type Runbook struct {
	Hash string `json:"hash"`

	Commands map[string]Command  `json:"commands"`
	Jobs     map[string]JobSpec  `json:"jobs"`
	Agents   map[string]AgentSpec `json:"agents"`
	Queues   map[string]QueueSpec `json:"queues"`
	Workers  map[string]WorkerSpec `json:"workers"`
	Crons    map[string]CronSpec `json:"crons"`
}

// Command binds a CLI-invokable name to a run target (job or shell) with
// default arguments.
type Command struct {
	Name       string            `json:"name"`
	ArgsSpec   []string          `json:"args_spec"`
	Defaults   map[string]string `json:"defaults"`
	RunTarget  string            `json:"run_target"` // job name
}

// JobSpec is the template a Job is instantiated from.
type JobSpec struct {
	Name          string            `json:"name"`
	DisplayName   string            `json:"display_name"` // template-interpolated
	Vars          map[string]string `json:"vars"`
	Locals        map[string]string `json:"locals"` // shell-expression-valued locals
	WorkspaceCfg  WorkspaceSpec     `json:"workspace"`
	Steps         map[string]StepSpec `json:"steps"`
	InitialStep   string            `json:"initial_step"`
	Defaults      StepDefaults      `json:"defaults"`
}

// StepDefaults carries job-level defaults applied to every step lacking an
// explicit override (e.g. shared on_fail routing).
type StepDefaults struct {
	OnFail string `json:"on_fail"`
}

// StepSpec is a node in a job's transition graph.
type StepSpec struct {
	Name      string `json:"name"`
	Kind      StepKind `json:"kind"`
	RunTarget string `json:"run_target"` // shell command, agent name, or nested job name
	OnDone    string `json:"on_done"`
	OnFail    string `json:"on_fail"`
	OnCancel  string `json:"on_cancel"`
}

// StepKind discriminates what a step runs.
type StepKind string

const (
	StepKindShell StepKind = "shell"
	StepKindAgent StepKind = "agent"
	StepKindJob   StepKind = "job"
)

// WorkspaceSpec configures the isolated directory a job owns.
type WorkspaceSpec struct {
	Kind       WorkspaceKind `json:"kind"` // plain | worktree
	BaseBranch string        `json:"base_branch,omitempty"`
}

type WorkspaceKind string

const (
	WorkspaceKindPlain    WorkspaceKind = "plain"
	WorkspaceKindWorktree WorkspaceKind = "worktree"
)

// AgentSpec declares an interactive agent's command line, prompts, and
// lifecycle handlers.
type AgentSpec struct {
	Name        string            `json:"name"`
	CommandLine []string          `json:"command_line"`
	PromptTmpl  string            `json:"prompt_template"`
	Env         map[string]string `json:"env"`
	Cwd         string            `json:"cwd"`
	PrimeScript string            `json:"prime_script"`
	Session     SessionSpec       `json:"session"`

	OnIdle   HandlerSpec `json:"on_idle"`
	OnDead   HandlerSpec `json:"on_dead"`
	OnPrompt HandlerSpec `json:"on_prompt"`
	OnStop   HandlerSpec `json:"on_stop"`
	OnError  map[string]HandlerSpec `json:"on_error"` // keyed by classified error kind
}

// SessionSpec configures the backing terminal multiplexer session.
type SessionSpec struct {
	NamePrefix string `json:"name_prefix"`
}

// HandlerAction is one of the agent lifecycle handler actions.
type HandlerAction string

const (
	ActionNudge    HandlerAction = "nudge"
	ActionDone     HandlerAction = "done"
	ActionFail     HandlerAction = "fail"
	ActionEscalate HandlerAction = "escalate"
	ActionGate     HandlerAction = "gate"
	ActionResume   HandlerAction = "resume"
)

// HandlerSpec is an agent lifecycle handler: an action, bounded retries, and
// a cooldown between attempts. GateCmd is only meaningful for ActionGate.
type HandlerSpec struct {
	Action      HandlerAction `json:"action"`
	Message     string        `json:"message,omitempty"` // nudge text
	GateCmd     string        `json:"gate_cmd,omitempty"`
	Attempts    int           `json:"attempts"`
	CooldownSec int           `json:"cooldown_seconds"`
}

// QueueSpec is a named backlog: either WAL-persisted with a payload schema,
// or a view over an external system driven by list/take shell commands.
type QueueSpec struct {
	Name       string      `json:"name"`
	External   bool        `json:"external"`
	ListCmd    string      `json:"list_cmd,omitempty"`
	TakeCmd    string      `json:"take_cmd,omitempty"`
	Schema     string      `json:"schema,omitempty"`
	Retry      *RetrySpec  `json:"retry,omitempty"`
}

// RetrySpec bounds queue item retry with a cooldown between attempts.
type RetrySpec struct {
	Attempts int    `json:"attempts"`
	Cooldown string `json:"cooldown"` // Go duration string, e.g. "30s"
}

// WorkerSpec binds a queue to a job template with a concurrency cap.
type WorkerSpec struct {
	Name            string `json:"name"`
	Queue           string `json:"queue"`
	HandlerJob      string `json:"handler_job"`
	MaxConcurrency  int    `json:"max_concurrency"`
}

// CronSpec is a time-driven dispatcher.
type CronSpec struct {
	Name        string `json:"name"`
	Interval    string `json:"interval"` // cron expr or Go duration
	TargetJob   string `json:"target_job"`
	Concurrency int    `json:"concurrency"` // 0 = unbounded, 1 = singleton
	FireOnStart bool   `json:"fire_on_start"`
}
