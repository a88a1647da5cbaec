package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/handoff"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
)

// Supervisor owns one watch goroutine per supervised agent and routes
// idle-grace timer fires (observed by the event loop via its scheduler
// drain) back to the right watch, since each watch's internal state
// (lastState, gracePending) must only be touched from its own goroutine.
type Supervisor struct {
	mu      sync.Mutex
	watches map[string]*watch
	cancels map[string]context.CancelFunc
}

func NewSupervisor() *Supervisor {
	return &Supervisor{watches: map[string]*watch{}, cancels: map[string]context.CancelFunc{}}
}

// Start launches the dedicated watcher task for agentID and registers it
// so HandleTimer can route this agent's idle-grace fires to it. The
// caller's ctx governs the watch's lifetime; Start returns immediately.
// Starting an agent that already has a live watch replaces it.
func (s *Supervisor) Start(ctx context.Context, agentID, processName, logPath string, deps Deps) {
	ctx, cancel := context.WithCancel(ctx)
	w := newWatch(agentID, processName, logPath, deps)
	s.mu.Lock()
	if prev, ok := s.cancels[agentID]; ok {
		prev()
	}
	s.watches[agentID] = w
	s.cancels[agentID] = cancel
	s.mu.Unlock()

	go func() {
		w.watch(ctx)
		cancel()
		s.mu.Lock()
		if s.watches[agentID] == w {
			delete(s.watches, agentID)
			delete(s.cancels, agentID)
		}
		s.mu.Unlock()
	}()
}

// Stop tears down the watch for agentID, if one is running. Called when
// the agent is killed deliberately, so the watch doesn't keep reporting
// the session it just saw die.
func (s *Supervisor) Stop(agentID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[agentID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// HandleTimer routes a fired scheduler.ID of the form
// "idle-grace:<agentID>:classify" to its watch, if still running. It
// returns true iff the id was recognized as an idle-grace timer (whether
// or not a live watch was found for it), so the loop knows not to also
// hand the id to internal/core's generic timer dispatch.
func (s *Supervisor) HandleTimer(id scheduler.ID) bool {
	agentID, ok := idleGraceOwner(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	w, found := s.watches[agentID]
	s.mu.Unlock()
	if found {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	}
	return true
}

func idleGraceOwner(id scheduler.ID) (string, bool) {
	const prefix = "idle-grace:"
	const suffix = ":classify"
	s := string(id)
	if len(s) <= len(prefix)+len(suffix) || s[:len(prefix)] != prefix || s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	return s[len(prefix) : len(s)-len(suffix)], true
}

// NotifyNudge informs the watch for agentID that a nudge was just sent,
// so its next grace-arming decision can self-suppress — the nudge text
// itself must not restart the idle cycle. A nudge whose watch has
// already exited is a no-op.
func (s *Supervisor) NotifyNudge(agentID string, at time.Time) {
	s.mu.Lock()
	w, found := s.watches[agentID]
	s.mu.Unlock()
	if !found {
		return
	}
	select {
	case w.nudge <- at:
	default:
	}
}

// IdleGraceWindow is the default idle-grace window, overridable via
// OJ_IDLE_GRACE.
const IdleGraceWindow = 60 * time.Second

// NudgeSuppressWindow is how long after a nudge the watch refuses to arm
// a new idle-grace cycle.
const NudgeSuppressWindow = 60 * time.Second

// FileWaitDeadline bounds how long the watcher polls for the session log
// to first appear before giving up.
const FileWaitDeadline = 30 * time.Second

// PollFallback is the watcher's polling interval when fsnotify delivers
// nothing (e.g. on filesystems without inotify support), per
// OJ_WATCHER_POLL_INTERVAL.
const PollFallback = 500 * time.Millisecond

// Deps are the watcher's external collaborators, injected so tests can
// run without a live tmux session or agent CLI.
type Deps struct {
	Session      effect.SessionAdapter
	Scheduler    *scheduler.Scheduler
	Clock        clock.Clock
	Sink         chan<- event.Envelope
	Log          *slog.Logger
	IdleGrace    time.Duration
	PollInterval time.Duration
	// StateDir, if set, arms a handoff.Writer recording every classified
	// transition so a human reattaching after a restart sees the
	// daemon's observed history, not just the agent's raw transcript.
	StateDir string
}

func newWatch(agentID, processName, logPath string, deps Deps) *watch {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.IdleGrace <= 0 {
		deps.IdleGrace = IdleGraceWindow
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = PollFallback
	}
	return &watch{
		agentID: agentID, processName: processName, logPath: logPath, deps: deps,
		fire:  make(chan struct{}, 1),
		nudge: make(chan time.Time, 1),
	}
}

// watch runs until ctx, waiting for the log file to appear and then
// tailing it for classification changes and idle-grace re-checks.
func (w *watch) watch(ctx context.Context) {
	if w.deps.StateDir != "" {
		if hw, err := handoff.Open(handoff.PathFor(w.deps.StateDir, w.agentID)); err == nil {
			w.handoff = hw
			defer hw.Close()
		}
	}
	if !w.waitForFile(ctx) {
		w.emit(event.KindAgentGone, event.PayloadAgentID{AgentID: w.agentID})
		return
	}
	w.run(ctx)
}

func (w *watch) recordHandoff(kind string, data any) {
	if w.handoff == nil {
		return
	}
	_ = w.handoff.Append(handoff.Entry{Time: w.deps.Clock.Now(), Kind: kind, Data: data})
}

type watch struct {
	agentID     string
	processName string
	logPath     string
	deps        Deps

	lastState    model.AgentObservedState
	gracePending bool
	graceLogSize int64
	lastNudgeAt  time.Time
	fire         chan struct{}
	nudge        chan time.Time
	handoff      *handoff.Writer
}

func (w *watch) waitForFile(ctx context.Context) bool {
	deadline := w.deps.Clock.Now().Add(FileWaitDeadline)
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		if _, err := os.Stat(w.logPath); err == nil {
			return true
		}
		if w.deps.Clock.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
}

func (w *watch) run(ctx context.Context) {
	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		defer fsw.Close()
		_ = fsw.Add(filepath.Dir(w.logPath))
	}

	poll := time.NewTicker(w.deps.PollInterval)
	defer poll.Stop()
	liveness := time.NewTicker(w.deps.PollInterval * 4)
	defer liveness.Stop()

	w.classifyAndEmit(ctx)

	var fsEvents <-chan fsnotify.Event
	if fsw != nil {
		fsEvents = fsw.Events
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.logPath) {
				w.classifyAndEmit(ctx)
			}
		case <-poll.C:
			w.classifyAndEmit(ctx)
		case <-liveness.C:
			if w.checkLiveness(ctx) {
				return
			}
		case <-w.fire:
			w.CheckGrace()
		case t := <-w.nudge:
			w.lastNudgeAt = t
		}
	}
}

func (w *watch) classifyAndEmit(ctx context.Context) {
	f, err := os.Open(w.logPath)
	if err != nil {
		return
	}
	defer f.Close()
	c := ClassifyTail(f)

	switch c.State {
	case model.AgentWorking:
		w.cancelGrace()
		w.transitionTo(model.AgentWorking, "")
	case model.AgentWaitingForInput:
		w.transitionTo(model.AgentWaitingForInput, "")
		w.maybeStartGrace()
	case model.AgentFailed:
		w.cancelGrace()
		w.emit(event.KindAgentFailed, event.PayloadAgentState{AgentID: w.agentID, State: model.AgentFailed, FailKind: c.FailKind})
	}
}

func (w *watch) transitionTo(state model.AgentObservedState, failKind model.AgentErrorKind) {
	if w.lastState == state {
		return
	}
	w.lastState = state
	kind := event.KindAgentWorking
	if state == model.AgentWaitingForInput {
		kind = event.KindAgentWaiting
	}
	w.recordHandoff("classified", state)
	w.emit(kind, event.PayloadAgentState{AgentID: w.agentID, State: state, FailKind: failKind})
}

// maybeStartGrace implements the idle-grace protocol: on a
// Working->WaitingForInput transition, record the log size and arm a
// grace timer instead of emitting agent:idle immediately.
func (w *watch) maybeStartGrace() {
	if w.gracePending {
		return
	}
	if !w.lastNudgeAt.IsZero() && w.deps.Clock.Now().Sub(w.lastNudgeAt) < NudgeSuppressWindow {
		return
	}
	size := w.currentLogSize()
	w.gracePending = true
	w.graceLogSize = size
	w.deps.Scheduler.After(graceTimerID(w.agentID), w.deps.IdleGrace)
}

func (w *watch) cancelGrace() {
	if !w.gracePending {
		return
	}
	w.deps.Scheduler.Cancel(graceTimerID(w.agentID))
	w.gracePending = false
	w.graceLogSize = 0
}

func graceTimerID(agentID string) scheduler.ID {
	return scheduler.NewID("idle-grace", agentID, "classify")
}

// CheckGrace is called by the loop when the idle-grace timer for this
// watcher's agent fires. It re-verifies both idle-grace conditions —
// log size unchanged since the grace started, and the state still
// waiting — before delivering agent:idle.
func (w *watch) CheckGrace() {
	if !w.gracePending {
		return
	}
	stillWaiting := w.lastState == model.AgentWaitingForInput
	sizeUnchanged := w.currentLogSize() == w.graceLogSize
	w.gracePending = false
	if stillWaiting && sizeUnchanged {
		w.recordHandoff("idle", nil)
		w.emit(event.KindAgentIdle, event.PayloadAgentID{AgentID: w.agentID})
	}
}

func (w *watch) currentLogSize() int64 {
	fi, err := os.Stat(w.logPath)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// checkLiveness consults the session adapter for process/session
// presence, supplementing log classification with what the log alone
// cannot show — a session can be alive with a reparented/zombie
// process, or the whole session can be gone. It
// reports true once a terminal signal (gone/exited) has been delivered,
// at which point the watch has nothing left to observe and exits.
func (w *watch) checkLiveness(ctx context.Context) bool {
	if w.deps.Session == nil {
		return false
	}
	alive, err := w.deps.Session.IsAlive(ctx, w.agentID)
	if err != nil {
		return false
	}
	if !alive {
		w.recordHandoff("session_gone", nil)
		w.emit(event.KindAgentGone, event.PayloadAgentID{AgentID: w.agentID})
		return true
	}
	hasProc, err := w.deps.Session.HasProcess(ctx, w.agentID, w.processName)
	if err != nil || hasProc {
		return false
	}
	if processRunningByName(w.processName) {
		// The multiplexer lost track of the pane's process but the host
		// still has one running under this name — treat it as alive
		// rather than declare the agent exited prematurely.
		return false
	}
	code, ok, err := w.deps.Session.LastExitCode(ctx, w.agentID)
	if err != nil || !ok {
		return false
	}
	c := code
	w.recordHandoff("exited", c)
	w.emit(event.KindAgentExited, event.PayloadAgentState{AgentID: w.agentID, State: model.AgentExited, ExitCode: &c})
	return true
}

func (w *watch) emit(kind event.Kind, payload any) {
	env, err := event.New(kind, payload)
	if err != nil {
		w.deps.Log.Error("watcher: marshal event", "kind", kind, "error", err)
		return
	}
	w.deps.Sink <- env
}
