package effect

import (
	"context"
	"time"
)

// SessionAdapter abstracts the terminal multiplexer a session lives in.
type SessionAdapter interface {
	Spawn(ctx context.Context, name, cwd string, cmd []string, env map[string]string) (sessionID string, err error)
	SendBytes(ctx context.Context, sessionID string, data []byte) error
	SendText(ctx context.Context, sessionID, text string, enter bool) error
	Kill(ctx context.Context, sessionID string) error
	IsAlive(ctx context.Context, sessionID string) (bool, error)
	CapturePane(ctx context.Context, sessionID string) (string, error)
	HasProcess(ctx context.Context, sessionID, processName string) (bool, error)
	LastExitCode(ctx context.Context, sessionID string) (code int, ok bool, err error)
	ApplyCosmetics(ctx context.Context, sessionID string, cosmetics map[string]string) error
}

// AgentAdapter wraps a SessionAdapter with agent-specific lifecycle:
// hook installation and state classification delegated to the watcher.
type AgentAdapter interface {
	Spawn(ctx context.Context, spawn SpawnAgent) (handle string, err error)
	Reconnect(ctx context.Context, reconnect ReconnectAgent) (handle string, err error)
	Send(ctx context.Context, handle, text string) error
	Kill(ctx context.Context, handle string) error
	LogSize(ctx context.Context, handle string) (int64, error)
}

// NotifyAdapter fires a best-effort desktop notification. Calls must not
// block the caller; implementations typically detach a goroutine.
type NotifyAdapter interface {
	Notify(title, body string)
}

// ShellAdapter runs a bash-like command to completion and reports only
// its exit status; stdout/stderr are the caller's responsibility to
// capture via an append-only log writer.
type ShellAdapter interface {
	Run(ctx context.Context, cmd RunShell, timeout time.Duration) (exitCode int, err error)
}

// QueueAdapter drives an externally-backed queue's list/take shell
// commands.
type QueueAdapter interface {
	List(ctx context.Context, cmd string) (items []QueueItemRef, err error)
	Take(ctx context.Context, cmd, itemID string) (taken bool, err error)
}

// WorkspaceAdapter provisions and tears down the working directory a job
// runs in: either a plain directory or a git worktree checked out from
// BaseRef.
type WorkspaceAdapter interface {
	Create(ctx context.Context, ws CreateWorkspace) (path string, err error)
	Delete(ctx context.Context, ws DeleteWorkspace) error
}

// QueueItemRef is the minimal shape an external list command must
// produce per item: an id and an opaque payload blob the job template
// can interpolate.
type QueueItemRef struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}
