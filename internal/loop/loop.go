// Package loop implements the engine's single-threaded event loop: it
// multiplexes the input event channel, background effect results,
// scheduler ticks, and OS/graceful shutdown signals, applying each
// event to the materialized state under a single non-reentrant mutex
// and then releasing the lock before executing the effects the
// functional core produced — no lock is ever held across a blocking
// call.
package loop

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/core"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
	"github.com/orchestratord/oj/internal/state"
	"github.com/orchestratord/oj/internal/wal"
	"github.com/orchestratord/oj/internal/watcher"
)

// compactInterval is the snapshot/compaction cadence.
const compactInterval = 60 * time.Second

// ShutdownRequest carries the policy a caller (IPC's shutdown handler, or
// the OS signal handler) wants applied on exit.
type ShutdownRequest struct {
	KillSessions bool
}

// Loop owns the materialized state, the WAL, the scheduler, and the
// effect executor, and is the only goroutine that ever mutates State.
type Loop struct {
	stateMu sync.Mutex
	st      model.State

	wal       *wal.WAL
	sched     *scheduler.Scheduler
	exec      *effect.Executor
	deps      core.Deps
	watchers  *watcher.Supervisor
	adapters  effect.Adapters
	stateDir  string
	log       *slog.Logger

	input   chan inbound
	results chan event.Envelope
	shut    chan ShutdownRequest

	subscribers []chan<- event.Envelope
	subMu       sync.Mutex
}

type inbound struct {
	env  event.Envelope
	done chan uint64 // non-nil when the caller wants durability confirmation
}

// New wires a Loop from already-open collaborators. initial is the
// state replayed from disk at startup (internal/wal.Replay's result).
func New(stateDir string, initial model.State, w *wal.WAL, sched *scheduler.Scheduler, adapters effect.Adapters, deps core.Deps, watchers *watcher.Supervisor, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	results := make(chan event.Envelope, 256)
	l := &Loop{
		st:       initial,
		wal:      w,
		sched:    sched,
		deps:     deps,
		watchers: watchers,
		adapters: adapters,
		stateDir: stateDir,
		log:      log,
		input:    make(chan inbound, 100),
		results:  results,
		shut:     make(chan ShutdownRequest, 1),
	}
	l.exec = effect.NewExecutor(adapters, sched, results, log)
	return l
}

// Enqueue fire-and-forgets env into the loop's input channel: used by
// watchers and other background producers that don't need a durability
// acknowledgement.
func (l *Loop) Enqueue(env event.Envelope) {
	l.input <- inbound{env: env}
}

// Submit enqueues env and blocks until it has been applied and durably
// flushed, returning its assigned sequence number. IPC's event-producing
// request handlers use this so a response is only sent once the WAL has
// confirmed durability.
func (l *Loop) Submit(ctx context.Context, env event.Envelope) (uint64, error) {
	done := make(chan uint64, 1)
	select {
	case l.input <- inbound{env: env, done: done}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case seq := <-done:
		return seq, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RequestShutdown asks the loop to stop consuming new events and exit,
// per the policy in req.
func (l *Loop) RequestShutdown(req ShutdownRequest) {
	select {
	case l.shut <- req:
	default:
	}
}

// Subscribe registers ch to receive every event the loop persists. The
// channel must be drained promptly; Subscribe does not buffer beyond ch's own
// capacity.
func (l *Loop) Subscribe(ch chan<- event.Envelope) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.subscribers = append(l.subscribers, ch)
}

// Snapshot returns a deep copy of the current materialized state, safe
// to read without racing the loop goroutine. Used by IPC's
// state-reading queries.
func (l *Loop) Snapshot() model.State {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.st.Clone()
}

// Run is the event loop itself. It returns once a shutdown has been
// processed; ctx cancellation is treated as an immediate (not graceful)
// stop.
func (l *Loop) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	tick := time.NewTicker(scheduler.DefaultTick)
	defer tick.Stop()
	compact := time.NewTicker(compactInterval)
	defer compact.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown(ShutdownRequest{})
			return ctx.Err()

		case sig := <-sigCh:
			l.log.Info("loop: received OS signal", "signal", sig.String())
			l.shutdown(ShutdownRequest{})
			return nil

		case req := <-l.shut:
			l.shutdown(req)
			return nil

		case in := <-l.input:
			l.process(ctx, in)

		case env := <-l.results:
			l.process(ctx, inbound{env: env})

		case now := <-tick.C:
			for _, id := range l.sched.Drain(now) {
				if l.watchers != nil && l.watchers.HandleTimer(id) {
					continue
				}
				env, err := event.New(event.KindTimerStart, event.PayloadTimer{TimerID: string(id)})
				if err != nil {
					continue
				}
				l.process(ctx, inbound{env: env})
			}

		case <-compact.C:
			l.compact()
		}
	}
}

// process is one full event cycle: apply, transition, persist, execute.
// The state lock is released before Execute runs so no adapter call —
// all of which may block — ever happens while holding it.
func (l *Loop) process(ctx context.Context, in inbound) {
	seq, err := l.wal.Append(in.env)
	if err != nil {
		l.log.Error("loop: append to wal failed", "kind", in.env.Kind, "error", err)
		return
	}
	in.env.Seq = seq

	l.stateMu.Lock()
	l.st = state.Apply(l.st, in.env)
	effects := core.Transition(l.deps, l.st, in.env)
	l.stateMu.Unlock()

	if l.watchers != nil {
		switch in.env.Kind {
		case event.KindAgentNudged:
			if p, err := event.Decode[event.PayloadAgentNudged](in.env); err == nil {
				l.watchers.NotifyNudge(p.AgentID, p.At)
			}
		case event.KindAgentSpawned:
			if p, err := event.Decode[event.PayloadAgentSpawned](in.env); err == nil {
				l.superviseAgent(ctx, p.Agent.ID)
			}
		case event.KindAgentKilled:
			if p, err := event.Decode[event.PayloadAgentID](in.env); err == nil {
				l.watchers.Stop(p.AgentID)
			}
		}
	}

	l.broadcast(in.env)

	if in.done != nil {
		if err := l.wal.Flush(); err != nil {
			l.log.Error("loop: flush for durability ack failed", "error", err)
		}
		in.done <- seq
		close(in.done)
	}

	if err := l.exec.Execute(ctx, effects); err != nil {
		l.log.Error("loop: effect execution failed", "kind", in.env.Kind, "error", err)
	}
}

// superviseAgent launches the dedicated watcher task for a just-spawned
// (or just-reconnected) agent, feeding its classified transitions back
// into the loop via the results channel.
func (l *Loop) superviseAgent(ctx context.Context, agentID string) {
	l.watchers.Start(ctx, agentID, effect.AgentProcessName(agentID),
		effect.AgentSessionLogPath(l.stateDir, agentID), watcher.Deps{
			Session:   l.adapters.Session,
			Scheduler: l.sched,
			Clock:     l.deps.Clock,
			Sink:      l.results,
			Log:       l.log,
			StateDir:  l.stateDir,
		})
}

func (l *Loop) broadcast(env event.Envelope) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subscribers {
		select {
		case ch <- env:
		default:
		}
	}
}

func (l *Loop) compact() {
	l.stateMu.Lock()
	snap := l.st.Clone()
	l.stateMu.Unlock()
	go func() {
		if err := l.wal.Compact(l.stateDir, snap); err != nil {
			l.log.Error("loop: compact failed", "error", err)
		}
	}()
}

// shutdown stops consuming new events (the caller's for-loop returns
// right after), flushes the WAL, writes a final snapshot, and — only if
// requested — kills every owned session before exit.
func (l *Loop) shutdown(req ShutdownRequest) {
	l.log.Info("loop: shutting down", "kill_sessions", req.KillSessions)
	l.stateMu.Lock()
	snap := l.st.Clone()
	l.stateMu.Unlock()

	if req.KillSessions && l.adapters.Session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for id, agent := range snap.Agents {
			if agent.SessionID == "" {
				continue
			}
			if err := l.adapters.Session.Kill(ctx, agent.SessionID); err != nil {
				l.log.Warn("loop: kill session on shutdown failed", "agent_id", id, "error", err)
			}
		}
	}

	if err := l.wal.Flush(); err != nil {
		l.log.Error("loop: final flush failed", "error", err)
	}
	if err := wal.WriteSnapshot(l.stateDir, snap.LastSeq, snap); err != nil {
		l.log.Error("loop: final snapshot failed", "error", err)
	}
	_ = l.wal.Close()
}

// Clock exposes the loop's injected clock for callers (e.g. reconcile)
// that need the same time source.
func (l *Loop) Clock() clock.Clock { return l.deps.Clock }
