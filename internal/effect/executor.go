package effect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/scheduler"
)

// Adapters bundles every adapter trait the executor dispatches to. Tests
// and dry-run modes substitute fakes; production wires concrete
// implementations in cmd/ojd.
type Adapters struct {
	Session   SessionAdapter
	Agent     AgentAdapter
	Notify    NotifyAdapter
	Shell     ShellAdapter
	Queue     QueueAdapter
	Workspace WorkspaceAdapter
}

// Executor pattern-matches each Effect and dispatches to its adapter.
// Immediate effects and the send-agent, kill-agent and configure-session
// effects are awaited in place. Background effects, and the spawn-agent,
// reconnect-agent and create/delete-workspace effects (which Class reports
// as inline), run on their own goroutine and feed their result to Results.
type Executor struct {
	adapters  Adapters
	scheduler *scheduler.Scheduler
	results   chan event.Envelope
	log       *slog.Logger
}

// NewExecutor wires an Executor. results receives envelopes produced by
// background effects and by EmitEvent; the loop reads from it and
// re-enters with each envelope as a new event.
func NewExecutor(adapters Adapters, sched *scheduler.Scheduler, results chan event.Envelope, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{adapters: adapters, scheduler: sched, results: results, log: log}
}

// Execute runs effects in order. Immediate effects and the send-agent,
// kill-agent and configure-session effects block the caller (the event
// loop, between events); every other effect, including spawn-agent,
// reconnect-agent and create/delete-workspace, is started on a goroutine
// and returns immediately. Per the concurrency contract, Execute
// is called with the state lock already released.
func (x *Executor) Execute(ctx context.Context, effects []Effect) error {
	for _, e := range effects {
		if err := x.dispatch(ctx, e); err != nil {
			return fmt.Errorf("effect %s: %w", e.Kind, err)
		}
	}
	return nil
}

func (x *Executor) dispatch(ctx context.Context, e Effect) error {
	start := time.Now()
	err := x.run(ctx, e)
	x.log.Debug("effect executed",
		"kind", e.Kind, "class", e.Kind.Class(), "elapsed_ms", time.Since(start).Milliseconds(),
		"error", errString(err))
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (x *Executor) run(ctx context.Context, e Effect) error {
	switch e.Kind {
	case KindEmitEvent:
		return x.emitEvent(e.EmitEvent)
	case KindSetTimer:
		x.scheduler.Set(scheduler.ID(e.SetTimer.ID), e.SetTimer.Fire)
		return nil
	case KindCancelTimer:
		x.scheduler.Cancel(scheduler.ID(e.CancelTimer.ID))
		return nil
	case KindNotify:
		x.adapters.Notify.Notify(e.Notify.Title, e.Notify.Body)
		return nil
	case KindSpawnAgent:
		spawn := *e.SpawnAgent
		go func() {
			handle, err := x.adapters.Agent.Spawn(ctx, spawn)
			if err != nil {
				x.post(event.KindAgentFailed, agentFailedPayload(spawn.AgentID, err))
				return
			}
			// The session record lands first so the agent:spawned apply
			// always sees its backing session already materialized.
			x.post(event.KindSessionCreated, sessionCreatedPayload(&spawn, handle))
			x.post(event.KindAgentSpawned, agentSpawnedPayload(&spawn, handle))
		}()
		return nil
	case KindReconnectAgent:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			if _, err := x.adapters.Agent.Reconnect(ctx, *e.ReconnectAgent); err != nil {
				return event.KindAgentFailed, agentFailedPayload(e.ReconnectAgent.AgentID, err), nil
			}
			return event.KindAgentWorking, agentReconnectedPayload(e.ReconnectAgent.AgentID), nil
		})
	case KindSendAgent:
		return x.adapters.Agent.Send(ctx, e.SendAgent.AgentID, e.SendAgent.Text)
	case KindKillAgent:
		return x.adapters.Agent.Kill(ctx, e.KillAgent.AgentID)
	case KindConfigureSession:
		return x.adapters.Session.ApplyCosmetics(ctx, e.ConfigureSession.SessionID, e.ConfigureSession.Cosmetics)
	case KindCreateWorkspace:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			path, err := x.adapters.Workspace.Create(ctx, *e.CreateWorkspace)
			if err != nil {
				return event.KindWorkspaceFailed, workspaceFailedPayload(e.CreateWorkspace.WorkspaceID, err), nil
			}
			return event.KindWorkspaceReady, workspaceReadyPayload(e.CreateWorkspace.WorkspaceID, path), nil
		})
	case KindDeleteWorkspace:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			if err := x.adapters.Workspace.Delete(ctx, *e.DeleteWorkspace); err != nil {
				return "", nil, err
			}
			return event.KindWorkspaceDeleted, event.PayloadWorkspaceStatus{WorkspaceID: e.DeleteWorkspace.WorkspaceID}, nil
		})
	case KindRunShell:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			code, err := x.adapters.Shell.Run(ctx, *e.RunShell, 0)
			if err != nil {
				return "", nil, err
			}
			return event.KindShellExited, shellExitedPayload(e.RunShell, code), nil
		})
	case KindPollQueue:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			items, err := x.adapters.Queue.List(ctx, e.PollQueue.ListCmd)
			if err != nil {
				return "", nil, err
			}
			return event.KindWorkerPollComplete, workerPollCompletePayload(e.PollQueue, items), nil
		})
	case KindTakeItem:
		return x.runBackground(ctx, func(ctx context.Context) (event.Kind, any, error) {
			taken, err := x.adapters.Queue.Take(ctx, e.TakeItem.TakeCmd, e.TakeItem.ItemID)
			if err != nil || !taken {
				return event.KindQueueFailed, queueItemRefPayload(e.TakeItem.Namespace, e.TakeItem.Queue, e.TakeItem.ItemID), nil
			}
			return event.KindQueueTaken, queueTakenPayload(e.TakeItem), nil
		})
	default:
		return fmt.Errorf("unhandled effect kind %q", e.Kind)
	}
}

func (x *Executor) emitEvent(ev *EmitEvent) error {
	env, err := event.New(event.Kind(ev.EventKind), ev.Payload)
	if err != nil {
		return err
	}
	x.results <- env
	return nil
}

// post marshals payload as kind and feeds it to the results channel,
// logging (never propagating) a marshal failure — background effects
// have no caller left to return an error to.
func (x *Executor) post(kind event.Kind, payload any) {
	env, err := event.New(kind, payload)
	if err != nil {
		x.log.Error("marshal background effect result", "kind", kind, "error", err)
		return
	}
	x.results <- env
}

// runBackground spawns fn and, once it resolves, marshals its result as
// an envelope fed to Results — the background effect class.
func (x *Executor) runBackground(ctx context.Context, fn func(context.Context) (event.Kind, any, error)) error {
	go func() {
		kind, payload, err := fn(ctx)
		if err != nil {
			x.log.Error("background effect failed", "error", err)
			return
		}
		if kind == "" {
			return
		}
		env, err := event.New(kind, payload)
		if err != nil {
			x.log.Error("marshal background effect result", "error", err)
			return
		}
		x.results <- env
	}()
	return nil
}
