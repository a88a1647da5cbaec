// Package reconcile implements the daemon's startup bridge: after a
// crash or graceful restart, align the durable intent recorded in the
// WAL with the observed reality of surviving sessions. It runs as a
// background task once the listener is already accepting connections,
// so clients are never blocked behind it.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
	"github.com/orchestratord/oj/internal/watcher"
)

// Engine is the subset of *internal/loop.Loop reconciliation needs: a
// way to read the current materialized state and to feed follow-up
// events back through the normal apply/transition pipeline.
type Engine interface {
	Snapshot() model.State
	Enqueue(env event.Envelope)
}

// Deps are reconciliation's external collaborators. Scheduler and Clock
// are handed through to any watcher a reconnect restarts, so a
// reconnected agent's idle-grace timers land on the same timer heap the
// loop drains.
type Deps struct {
	Engine    Engine
	Session   effect.SessionAdapter
	Watchers  *watcher.Supervisor
	Scheduler *scheduler.Scheduler
	Clock     clock.Clock
	StateDir  string
	Log       *slog.Logger
}

// Run executes the six-step protocol once against the engine's current
// state. Callers launch it with `go reconcile.Run(ctx, deps)` right after
// the listener starts accepting.
func Run(ctx context.Context, deps Deps) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	st := deps.Engine.Snapshot()

	referenced := map[string]bool{}
	for _, job := range st.Jobs {
		if job.Status.IsTerminal() {
			continue
		}
		agent, ok := st.Agents[job.AgentID]
		if !ok {
			continue
		}
		// Any non-terminal job keeps its session referenced, even one the
		// pass below won't touch — a decision-waiting job's session must
		// not be swept up as an orphan.
		referenced[agent.SessionID] = true
		// Step 6: a step parked in Waiting(decision_id) needs a human,
		// not reconnection — leave it untouched.
		if job.StepState.Status == model.StepWaiting {
			continue
		}
		reconcileAgent(ctx, deps, log, agent)
	}

	// Standalone agent-runs reconnect the same way a job-owned agent does,
	// minus the Waiting(decision_id) check (an agent-run escalation parks
	// in a Decision too, but there's no step status to read — the decision
	// record itself being unresolved is the signal to skip).
	for _, run := range st.AgentRuns {
		if run.Status.IsTerminal() {
			continue
		}
		agent, ok := st.Agents[run.AgentID]
		if !ok {
			continue
		}
		referenced[agent.SessionID] = true
		if hasOpenDecisionForRun(st, run.ID) {
			continue
		}
		reconcileAgent(ctx, deps, log, agent)
	}

	for _, w := range st.Workers {
		if w.Status != model.WorkerRunning {
			continue
		}
		env, err := event.New(event.KindWorkerStarted, event.PayloadWorkerStarted{Worker: w})
		if err != nil {
			continue
		}
		deps.Engine.Enqueue(env)
	}

	for _, c := range st.Crons {
		if c.Status != model.CronRunning {
			continue
		}
		env, err := event.New(event.KindCronStarted, event.PayloadCronStarted{Cron: c})
		if err != nil {
			continue
		}
		deps.Engine.Enqueue(env)
	}

	pruneOrphanSessions(ctx, deps, log, st, referenced)
}

func hasOpenDecisionForRun(st model.State, runID string) bool {
	for _, d := range st.Decisions {
		if d.OwnerRun == runID && !d.Resolved {
			return true
		}
	}
	return false
}

// reconcileAgent implements step 2: reconnect the watcher if the session
// and its process both still live, else emit the appropriate terminal
// signal so the owning job/run's normal handler routing takes it from
// there exactly as if the watcher itself had observed it.
func reconcileAgent(ctx context.Context, deps Deps, log *slog.Logger, agent model.AgentInstance) {
	if deps.Session == nil {
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, StartupGracePeriod)
	defer cancel()
	alive, err := deps.Session.IsAlive(checkCtx, agent.SessionID)
	if err != nil {
		log.Warn("reconcile: session liveness check failed", "agent_id", agent.ID, "error", err)
		return
	}
	if !alive {
		emit(deps, log, event.KindAgentGone, event.PayloadAgentID{AgentID: agent.ID})
		return
	}
	hasProc, err := deps.Session.HasProcess(checkCtx, agent.SessionID, effect.AgentProcessName(agent.ID))
	if err != nil {
		log.Warn("reconcile: process check failed", "agent_id", agent.ID, "error", err)
		return
	}
	if !hasProc {
		code, ok, err := deps.Session.LastExitCode(checkCtx, agent.SessionID)
		var exitCode *int
		if err == nil && ok {
			c := code
			exitCode = &c
		}
		emit(deps, log, event.KindAgentExited, event.PayloadAgentState{
			AgentID: agent.ID, State: model.AgentExited, ExitCode: exitCode,
		})
		return
	}
	if deps.Watchers == nil {
		return
	}
	logPath := effect.AgentSessionLogPath(deps.StateDir, agent.ID)
	deps.Watchers.Start(ctx, agent.ID, effect.AgentProcessName(agent.ID), logPath, watcher.Deps{
		Session:   deps.Session,
		Scheduler: deps.Scheduler,
		Clock:     deps.Clock,
		Sink:      enqueueSink(deps),
		Log:       log,
		StateDir:  deps.StateDir,
	})
}

// pruneOrphanSessions implements step 5: kill any alive session this
// daemon started (AgentDir convention) that no non-terminal job or
// agent-run references any more — left behind by, e.g., a crash between
// a job completing and its session being torn down.
func pruneOrphanSessions(ctx context.Context, deps Deps, log *slog.Logger, st model.State, referenced map[string]bool) {
	if deps.Session == nil {
		return
	}
	for _, sess := range st.Sessions {
		if !sess.Alive || referenced[sess.ID] {
			continue
		}
		if err := deps.Session.Kill(ctx, sess.ID); err != nil {
			log.Warn("reconcile: pruning orphan session failed", "session_id", sess.ID, "error", err)
			continue
		}
		env, err := event.New(event.KindSessionKilled, event.PayloadSessionID{SessionID: sess.ID})
		if err == nil {
			deps.Engine.Enqueue(env)
		}
	}
}

func emit(deps Deps, log *slog.Logger, kind event.Kind, payload any) {
	env, err := event.New(kind, payload)
	if err != nil {
		log.Error("reconcile: marshal event", "kind", kind, "error", err)
		return
	}
	deps.Engine.Enqueue(env)
}

// enqueueSink adapts Engine.Enqueue to the chan<- the watcher package
// expects, via a small forwarding goroutine. The goroutine takes no ctx;
// it runs until the channel is closed.
func enqueueSink(deps Deps) chan<- event.Envelope {
	ch := make(chan event.Envelope, 16)
	go func() {
		for env := range ch {
			deps.Engine.Enqueue(env)
		}
	}()
	return ch
}

// StartupGracePeriod bounds how long reconciliation waits for the
// session adapter to report liveness before giving up on a single agent,
// so one hung tmux query can't stall the whole reconciliation pass.
const StartupGracePeriod = 10 * time.Second
