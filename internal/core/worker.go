package core

import (
	"sort"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
)

func isWorkerKind(k event.Kind) bool {
	switch k {
	case event.KindWorkerStarted, event.KindWorkerStopped, event.KindWorkerWoken,
		event.KindWorkerPollComplete, event.KindQueuePushed, event.KindQueueItemRetry,
		event.KindQueueTaken, event.KindJobCompleted, event.KindJobFailed:
		return true
	}
	return false
}

func workerTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	switch e.Kind {
	case event.KindWorkerStarted:
		return onWorkerStarted(deps, s, e)
	case event.KindWorkerStopped:
		return onWorkerStopped(e)
	case event.KindWorkerWoken:
		return onWorkerWoken(deps, s, e)
	case event.KindWorkerPollComplete:
		return onWorkerPollComplete(deps, s, e)
	case event.KindQueuePushed, event.KindQueueItemRetry:
		return onQueueItemAvailable(deps, s, e)
	case event.KindQueueTaken:
		return onQueueTaken(deps, s, e)
	case event.KindJobCompleted, event.KindJobFailed:
		return onHandlerJobTerminal(deps, s, e)
	}
	return nil
}

func pollTimerID(namespace, name string) scheduler.ID {
	return scheduler.NewID("worker-poll", namespace+"/"+name, "list")
}

func onWorkerStarted(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkerStarted](e)
	if err != nil {
		return nil
	}
	return []effect.Effect{{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(pollTimerID(p.Worker.Namespace, p.Worker.Name)), Fire: nowOrZero(deps),
	}}}
}

func onWorkerStopped(e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkerName](e)
	if err != nil {
		return nil
	}
	return []effect.Effect{{Kind: effect.KindCancelTimer, CancelTimer: &effect.CancelTimer{
		ID: string(pollTimerID(p.Namespace, p.Name)),
	}}}
}

// onWorkerPollComplete dispatches take-item for newly-seen items while the
// worker has spare capacity (items past that point are not recorded and
// are left for a later poll), and re-arms its poll timer for the next tick.
func onWorkerPollComplete(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkerPollComplete](e)
	if err != nil {
		return nil
	}
	key := model.QueueKey(p.Namespace, p.Name)
	worker, ok := s.Workers[key]
	if !ok {
		return nil
	}
	rb, ok := anyRunbook(s)
	if !ok {
		return nil
	}
	workerSpec, ok := rb.Workers[p.Name]
	if !ok {
		return nil
	}

	effects := []effect.Effect{{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(pollTimerID(p.Namespace, p.Name)), Fire: nowOrZero(deps).Add(scheduler.DefaultTick * 5),
	}}}

	qkey := model.QueueKey(p.Namespace, workerSpec.Queue)
	qstate := s.Queues[qkey]
	maxConc := workerSpec.MaxConcurrency
	if worker.MaxConcurrency > 0 {
		maxConc = worker.MaxConcurrency // a resized worker's own limit wins
	}
	capacity := maxConc - worker.InFlight()

	for _, item := range p.Items {
		if capacity <= 0 {
			break
		}
		existing, seen := qstate.Items[item.ID]
		effects = append(effects, effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindQueuePushed),
			Payload:   event.PayloadQueuePushed{Item: item},
		}})
		if seen && existing.Status != model.ItemPending {
			continue
		}
		queueSpec, ok := rb.Queues[workerSpec.Queue]
		if !ok {
			continue
		}
		jobID := deps.IDs.NewJobID()
		effects = append(effects,
			effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindJobCreated),
				Payload: event.PayloadJobCreated{Job: model.Job{
					ID: jobID, Namespace: p.Namespace, Kind: workerSpec.HandlerJob,
					RunbookHash: rb.Hash, Status: model.JobRunning,
				}},
			}},
			effect.Effect{Kind: effect.KindTakeItem, TakeItem: &effect.TakeItem{
				Namespace: p.Namespace, Queue: workerSpec.Queue, WorkerName: p.Name,
				ItemID: item.ID, JobID: jobID, TakeCmd: queueSpec.TakeCmd,
			}},
		)
		capacity--
	}
	return effects
}

// onWorkerWoken services an explicit wake signal (an IPC worker.wake, or
// the push-side wake a queue event carries): external queues go through a
// fresh list poll, persisted queues dispatch directly from state.
func onWorkerWoken(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadWorkerName](e)
	if err != nil {
		return nil
	}
	return wakeWorker(deps, s, p.Namespace, p.Name)
}

// onQueueItemAvailable wakes every running worker bound to the queue a
// just-pushed (or just-retried) item landed on, so dispatch doesn't have
// to wait for the next poll tick.
func onQueueItemAvailable(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	var namespace, queue string
	switch e.Kind {
	case event.KindQueuePushed:
		p, err := event.Decode[event.PayloadQueuePushed](e)
		if err != nil {
			return nil
		}
		namespace, queue = p.Item.Namespace, p.Item.Queue
	case event.KindQueueItemRetry:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return nil
		}
		namespace, queue = p.Namespace, p.Queue
	}

	// External queues only move on their poll timer: the queue:pushed
	// events a poll itself records must not trigger a fresh poll, or one
	// list result would chain-react into a hot poll loop.
	if rb, ok := anyRunbook(s); ok {
		if qs, ok := rb.Queues[queue]; ok && qs.External {
			return nil
		}
	}

	var effects []effect.Effect
	for _, w := range sortedWorkers(s) {
		if w.Namespace != namespace || w.Queue != queue || w.Status != model.WorkerRunning {
			continue
		}
		effects = append(effects, wakeWorker(deps, s, w.Namespace, w.Name)...)
	}
	return effects
}

// wakeWorker issues the dispatch appropriate to the worker's queue kind:
// a poll-queue effect for external queues, direct state-side dispatch of
// pending items for persisted ones.
func wakeWorker(deps Deps, s model.State, namespace, name string) []effect.Effect {
	worker, ok := s.Workers[model.QueueKey(namespace, name)]
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
	queueSpec, ok := rb.Queues[workerSpec.Queue]
	if !ok {
		return nil
	}
	if queueSpec.External {
		return []effect.Effect{{Kind: effect.KindPollQueue, PollQueue: &effect.PollQueue{
			Namespace: namespace, Queue: workerSpec.Queue, WorkerName: name, ListCmd: queueSpec.ListCmd,
		}}}
	}
	return dispatchPending(deps, s, namespace, workerSpec, worker)
}

// dispatchPending claims pending items of a persisted queue directly:
// there's no external system to race against, so "take" is just the
// queue:taken event itself, paired with the handler job it dispatches to.
// Items are visited in id order so replay and tests see a stable claim
// sequence.
func dispatchPending(deps Deps, s model.State, namespace string, workerSpec model.WorkerSpec, worker model.Worker) []effect.Effect {
	rb, _ := anyRunbook(s)
	qstate := s.Queues[model.QueueKey(namespace, workerSpec.Queue)]
	maxConc := workerSpec.MaxConcurrency
	if worker.MaxConcurrency > 0 {
		maxConc = worker.MaxConcurrency // a resized worker's own limit wins
	}
	capacity := maxConc - worker.InFlight()

	ids := make([]string, 0, len(qstate.Items))
	for id, item := range qstate.Items {
		if item.Status == model.ItemPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var effects []effect.Effect
	for _, id := range ids {
		if capacity <= 0 {
			break
		}
		jobID := deps.IDs.NewJobID()
		effects = append(effects,
			effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindJobCreated),
				Payload: event.PayloadJobCreated{Job: model.Job{
					ID: jobID, Namespace: namespace, Kind: workerSpec.HandlerJob,
					RunbookHash: rb.Hash, Status: model.JobRunning,
				}},
			}},
			effect.Effect{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindQueueTaken),
				Payload: event.PayloadQueueItemRef{
					Namespace: namespace, Queue: workerSpec.Queue, ItemID: id,
					JobID: jobID, WorkerName: worker.Name,
				},
			}},
		)
		capacity--
	}
	return effects
}

// sortedWorkers returns the worker set in key order so fan-out wakes are
// deterministic under replay.
func sortedWorkers(s model.State) []model.Worker {
	keys := make([]string, 0, len(s.Workers))
	for k := range s.Workers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.Worker, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Workers[k])
	}
	return out
}

func onQueueTaken(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	// Job dispatch already happened alongside the take-item effect in
	// onWorkerPollComplete; nothing further to do once the claim lands.
	return nil
}

// onHandlerJobTerminal looks for a worker with this job dispatched and
// turns the job's outcome into the matching queue:completed/failed event,
// consulting the queue's retry policy on failure.
func onHandlerJobTerminal(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadJobTerminal](e)
	if err != nil {
		return nil
	}
	for _, w := range s.Workers {
		for _, d := range w.Dispatched {
			if d.JobID != p.JobID {
				continue
			}
			ref := event.PayloadQueueItemRef{
				Namespace: w.Namespace, Queue: w.Queue, ItemID: d.ItemID,
				JobID: d.JobID, WorkerName: w.Name,
			}
			if e.Kind == event.KindJobCompleted {
				return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
					EventKind: string(event.KindQueueCompleted), Payload: ref,
				}}}
			}
			return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindQueueFailed), Payload: ref,
			}}}
		}
	}
	return nil
}

// anyRunbook returns an arbitrary loaded runbook. The engine only ever
// runs one runbook per namespace at a time in practice, so indexing by
// hash is for WAL content-addressing, not for picking among candidates.
func anyRunbook(s model.State) (model.Runbook, bool) {
	for _, rb := range s.Runbooks {
		return rb, true
	}
	return model.Runbook{}, false
}
