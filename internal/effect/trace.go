package effect

import (
	"context"
	"log/slog"
	"time"
)

// Trace wraps every adapter call in Adapters with a structured span
// (start, elapsed, outcome). Production wiring always passes adapters
// through Trace before handing them to NewExecutor.
func Trace(a Adapters, log *slog.Logger) Adapters {
	if log == nil {
		log = slog.Default()
	}
	return Adapters{
		Session:   &tracedSession{a.Session, log},
		Agent:     &tracedAgent{a.Agent, log},
		Notify:    a.Notify, // fire-and-forget; nothing useful to span
		Shell:     &tracedShell{a.Shell, log},
		Queue:     &tracedQueue{a.Queue, log},
		Workspace: &tracedWorkspace{a.Workspace, log},
	}
}

func span(log *slog.Logger, name string, fields ...any) func(err *error) {
	start := time.Now()
	return func(err *error) {
		args := append([]any{"adapter", name, "elapsed_ms", time.Since(start).Milliseconds()}, fields...)
		if err != nil && *err != nil {
			args = append(args, "error", (*err).Error())
			log.Error("adapter call failed", args...)
			return
		}
		log.Debug("adapter call", args...)
	}
}

type tracedSession struct {
	SessionAdapter
	log *slog.Logger
}

func (t *tracedSession) Spawn(ctx context.Context, name, cwd string, cmd []string, env map[string]string) (id string, err error) {
	defer span(t.log, "session.spawn", "name", name)(&err)
	return t.SessionAdapter.Spawn(ctx, name, cwd, cmd, env)
}

func (t *tracedSession) Kill(ctx context.Context, sessionID string) (err error) {
	defer span(t.log, "session.kill", "session_id", sessionID)(&err)
	return t.SessionAdapter.Kill(ctx, sessionID)
}

type tracedAgent struct {
	AgentAdapter
	log *slog.Logger
}

func (t *tracedAgent) Spawn(ctx context.Context, s SpawnAgent) (handle string, err error) {
	defer span(t.log, "agent.spawn", "agent_id", s.AgentID)(&err)
	return t.AgentAdapter.Spawn(ctx, s)
}

func (t *tracedAgent) Reconnect(ctx context.Context, r ReconnectAgent) (handle string, err error) {
	defer span(t.log, "agent.reconnect", "agent_id", r.AgentID)(&err)
	return t.AgentAdapter.Reconnect(ctx, r)
}

type tracedShell struct {
	ShellAdapter
	log *slog.Logger
}

func (t *tracedShell) Run(ctx context.Context, cmd RunShell, timeout time.Duration) (code int, err error) {
	defer span(t.log, "shell.run", "job_id", cmd.JobID, "step", cmd.Step)(&err)
	return t.ShellAdapter.Run(ctx, cmd, timeout)
}

type tracedQueue struct {
	QueueAdapter
	log *slog.Logger
}

func (t *tracedQueue) List(ctx context.Context, cmd string) (items []QueueItemRef, err error) {
	defer span(t.log, "queue.list")(&err)
	return t.QueueAdapter.List(ctx, cmd)
}

func (t *tracedQueue) Take(ctx context.Context, cmd, itemID string) (taken bool, err error) {
	defer span(t.log, "queue.take", "item_id", itemID)(&err)
	return t.QueueAdapter.Take(ctx, cmd, itemID)
}

type tracedWorkspace struct {
	WorkspaceAdapter
	log *slog.Logger
}

func (t *tracedWorkspace) Create(ctx context.Context, ws CreateWorkspace) (path string, err error) {
	defer span(t.log, "workspace.create", "workspace_id", ws.WorkspaceID)(&err)
	return t.WorkspaceAdapter.Create(ctx, ws)
}

func (t *tracedWorkspace) Delete(ctx context.Context, ws DeleteWorkspace) (err error) {
	defer span(t.log, "workspace.delete", "workspace_id", ws.WorkspaceID)(&err)
	return t.WorkspaceAdapter.Delete(ctx, ws)
}
