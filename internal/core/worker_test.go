package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func workerRunbook() model.Runbook {
	return model.Runbook{
		Hash: "rb1",
		Jobs: map[string]model.JobSpec{
			"fix-bug": {
				Name: "fix-bug", InitialStep: "fix",
				Steps: map[string]model.StepSpec{
					"fix": {Name: "fix", Kind: model.StepKindShell, RunTarget: "make fix"},
				},
			},
		},
		Queues: map[string]model.QueueSpec{
			"bugs":    {Name: "bugs", Retry: &model.RetrySpec{Attempts: 2, Cooldown: "30s"}},
			"tickets": {Name: "tickets", External: true, ListCmd: "tickets ls --json", TakeCmd: "tickets claim"},
		},
		Workers: map[string]model.WorkerSpec{
			"bugw":    {Name: "bugw", Queue: "bugs", HandlerJob: "fix-bug", MaxConcurrency: 2},
			"ticketw": {Name: "ticketw", Queue: "tickets", HandlerJob: "fix-bug", MaxConcurrency: 1},
		},
	}
}

func stateWithWorker(rb model.Runbook, name, queue string, max int) model.State {
	s := model.NewState()
	s.Runbooks[rb.Hash] = rb
	s.Workers[model.QueueKey("demo", name)] = model.Worker{
		Name: name, Namespace: "demo", Queue: queue, HandlerJob: "fix-bug",
		MaxConcurrency: max, Status: model.WorkerRunning,
	}
	return s
}

func TestWorkerStartedArmsPollTimer(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)

	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindWorkerStarted, event.PayloadWorkerStarted{
		Worker: s.Workers[model.QueueKey("demo", "bugw")],
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindSetTimer, effects[0].Kind)
	require.Equal(t, "worker-poll:demo/bugw:list", effects[0].SetTimer.ID)
}

func TestWorkerStoppedCancelsPollTimer(t *testing.T) {
	effects := workerTransition(testDeps(), model.NewState(), mustEvt(t, event.KindWorkerStopped, event.PayloadWorkerName{
		Namespace: "demo", Name: "bugw",
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindCancelTimer, effects[0].Kind)
}

func TestQueuePushedDispatchesPendingItemOnPersistedQueue(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)
	item := model.QueueItem{ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemPending}
	s.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo", Items: map[string]model.QueueItem{"x": item},
	}

	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindQueuePushed, event.PayloadQueuePushed{Item: item}))
	require.Len(t, effects, 2)
	require.Equal(t, string(event.KindJobCreated), effects[0].EmitEvent.EventKind)
	taken := effects[1].EmitEvent.Payload.(event.PayloadQueueItemRef)
	require.Equal(t, string(event.KindQueueTaken), effects[1].EmitEvent.EventKind)
	require.Equal(t, "x", taken.ItemID)
	require.Equal(t, "bugw", taken.WorkerName)
	require.NotEmpty(t, taken.JobID)
}

func TestQueuePushedRespectsConcurrencyCap(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 1)
	w := s.Workers[model.QueueKey("demo", "bugw")]
	w.Dispatched = []model.DispatchedItem{{ItemID: "prior", JobID: "job_0"}}
	s.Workers[model.QueueKey("demo", "bugw")] = w

	item := model.QueueItem{ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemPending}
	s.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo", Items: map[string]model.QueueItem{"x": item},
	}

	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindQueuePushed, event.PayloadQueuePushed{Item: item}))
	require.Empty(t, effects)
}

func TestQueuePushedOnExternalQueueDoesNotTriggerPoll(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "ticketw", "tickets", 1)
	item := model.QueueItem{ID: "t1", Queue: "tickets", Namespace: "demo", Status: model.ItemPending}
	s.Queues[model.QueueKey("demo", "tickets")] = model.QueueState{
		Name: "tickets", Namespace: "demo", External: true, Items: map[string]model.QueueItem{"t1": item},
	}

	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindQueuePushed, event.PayloadQueuePushed{Item: item}))
	require.Empty(t, effects)
}

func TestWorkerWokenOnExternalQueuePolls(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "ticketw", "tickets", 1)

	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindWorkerWoken, event.PayloadWorkerName{
		Namespace: "demo", Name: "ticketw",
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindPollQueue, effects[0].Kind)
	require.Equal(t, "tickets ls --json", effects[0].PollQueue.ListCmd)
}

func TestPollCompleteTakesNewItemsUpToCapacity(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "ticketw", "tickets", 1)

	items := []model.QueueItem{
		{ID: "a", Queue: "tickets", Namespace: "demo", Status: model.ItemPending},
		{ID: "b", Queue: "tickets", Namespace: "demo", Status: model.ItemPending},
	}
	effects := workerTransition(testDeps(), s, mustEvt(t, event.KindWorkerPollComplete, event.PayloadWorkerPollComplete{
		Namespace: "demo", Name: "ticketw", Items: items,
	}))

	var takes []effect.Effect
	for _, e := range effects {
		if e.Kind == effect.KindTakeItem {
			takes = append(takes, e)
		}
	}
	require.Len(t, takes, 1)
	require.Equal(t, "a", takes[0].TakeItem.ItemID)
	require.Equal(t, "tickets claim", takes[0].TakeItem.TakeCmd)
}

func TestHandlerJobTerminalMapsToQueueOutcome(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)
	w := s.Workers[model.QueueKey("demo", "bugw")]
	w.Dispatched = []model.DispatchedItem{{ItemID: "x", JobID: "job_9"}}
	s.Workers[model.QueueKey("demo", "bugw")] = w

	done := workerTransition(testDeps(), s, mustEvt(t, event.KindJobCompleted, event.PayloadJobTerminal{JobID: "job_9"}))
	require.Len(t, done, 1)
	require.Equal(t, string(event.KindQueueCompleted), done[0].EmitEvent.EventKind)

	failed := workerTransition(testDeps(), s, mustEvt(t, event.KindJobFailed, event.PayloadJobTerminal{JobID: "job_9"}))
	require.Len(t, failed, 1)
	require.Equal(t, string(event.KindQueueFailed), failed[0].EmitEvent.EventKind)
}

func TestQueueFailedUnderBudgetArmsRetryTimer(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)
	s.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo", Items: map[string]model.QueueItem{
			"x": {ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemFailed, Attempts: 1},
		},
	}

	effects := queueTransition(testDeps(), s, mustEvt(t, event.KindQueueFailed, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x",
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindSetTimer, effects[0].Kind)
	require.Equal(t, "queue-retry:demo/bugs:x", effects[0].SetTimer.ID)
}

func TestQueueFailedWithExhaustedBudgetMarksDead(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)
	// Third take (initial + the 2 budgeted retries) has just failed.
	s.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo", Items: map[string]model.QueueItem{
			"x": {ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemFailed, Attempts: 3},
		},
	}

	effects := queueTransition(testDeps(), s, mustEvt(t, event.KindQueueFailed, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x",
	}))
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindQueueItemDead), effects[0].EmitEvent.EventKind)
}

func TestRetryTimerFireReplaysItemToPending(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)

	effects := timerByID(testDeps(), s, "queue-retry:demo/bugs:x")
	require.Len(t, effects, 1)
	require.Equal(t, string(event.KindQueueItemRetry), effects[0].EmitEvent.EventKind)
	ref := effects[0].EmitEvent.Payload.(event.PayloadQueueItemRef)
	require.Equal(t, "x", ref.ItemID)
}

func TestWorkerPollTimerOnPersistedQueueDispatchesAndRearms(t *testing.T) {
	rb := workerRunbook()
	s := stateWithWorker(rb, "bugw", "bugs", 2)
	s.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo", Items: map[string]model.QueueItem{
			"x": {ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemPending},
		},
	}

	effects := timerByID(testDeps(), s, "worker-poll:demo/bugw:list")
	require.Len(t, effects, 3)
	require.Equal(t, string(event.KindJobCreated), effects[0].EmitEvent.EventKind)
	require.Equal(t, string(event.KindQueueTaken), effects[1].EmitEvent.EventKind)
	require.Equal(t, effect.KindSetTimer, effects[2].Kind)
}
