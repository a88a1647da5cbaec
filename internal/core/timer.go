package core

import (
	"strings"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
)

// timerByID re-dispatches a generic timer:start event to the pure-state
// concern that owns its id's "kind" segment. liveness and idle-grace ids
// never reach here: internal/watcher's Supervisor claims those directly
// off the scheduler drain, before the loop ever turns them into an event.
func timerByID(deps Deps, s model.State, id string) []effect.Effect {
	kind, owner, purpose, ok := splitTimerID(id)
	if !ok {
		return nil
	}
	switch kind {
	case "cron":
		namespace, name, ok := strings.Cut(owner, "/")
		if !ok {
			return nil
		}
		return cronFired(deps, s, namespace, name)
	case "worker-poll":
		namespace, name, ok := strings.Cut(owner, "/")
		if !ok {
			return nil
		}
		return pollFired(deps, s, namespace, name)
	case "queue-retry":
		namespace, queue, ok := strings.Cut(owner, "/")
		if !ok {
			return nil
		}
		return queueRetryFired(namespace, queue, purpose)
	}
	return nil
}

func splitTimerID(id string) (kind, owner, purpose string, ok bool) {
	first := strings.Index(id, ":")
	if first < 0 {
		return "", "", "", false
	}
	last := strings.LastIndex(id, ":")
	if last <= first {
		return "", "", "", false
	}
	return id[:first], id[first+1 : last], id[last+1:], true
}

// pollFired services a worker's periodic poll tick: external queues get
// a fresh list, persisted ones dispatch whatever is pending (catching
// items whose push-side wake was lost to a crash), and either way the
// next tick is re-armed. External-queue re-arming happens in
// onWorkerPollComplete instead, once the list result lands.
func pollFired(deps Deps, s model.State, namespace, name string) []effect.Effect {
	key := model.QueueKey(namespace, name)
	worker, ok := s.Workers[key]
	if !ok || worker.Status != model.WorkerRunning {
		return nil
	}
	rb, ok := anyRunbook(s)
	if !ok {
		return nil
	}
	workerSpec, ok := rb.Workers[name]
	if !ok {
		return nil
	}
	queueSpec, ok := rb.Queues[worker.Queue]
	if !ok {
		return nil
	}
	if queueSpec.External {
		return []effect.Effect{{Kind: effect.KindPollQueue, PollQueue: &effect.PollQueue{
			Namespace: namespace, Queue: worker.Queue, WorkerName: name, ListCmd: queueSpec.ListCmd,
		}}}
	}
	rearm := effect.Effect{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(pollTimerID(namespace, name)), Fire: nowOrZero(deps).Add(scheduler.DefaultTick * 5),
	}}
	return append(dispatchPending(deps, s, namespace, workerSpec, worker), rearm)
}
