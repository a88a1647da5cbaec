package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func mustEnvelope(t *testing.T, seq uint64, kind event.Kind, payload any) event.Envelope {
	t.Helper()
	e, err := event.New(kind, payload)
	require.NoError(t, err)
	e.Seq = seq
	return e
}

func TestApplyJobLifecycle(t *testing.T) {
	s := model.NewState()

	s = Apply(s, mustEnvelope(t, 1, event.KindJobCreated, event.PayloadJobCreated{
		Job: model.Job{ID: "job_1", Namespace: "demo", Kind: "build", Status: model.JobRunning},
	}))
	require.Contains(t, s.Jobs, "job_1")

	s = Apply(s, mustEnvelope(t, 2, event.KindStepStarted, event.PayloadStepStarted{JobID: "job_1", Step: "build"}))
	require.Equal(t, "build", s.Jobs["job_1"].CurrentStep)
	require.Equal(t, model.StepRunning, s.Jobs["job_1"].StepState.Status)

	s = Apply(s, mustEnvelope(t, 3, event.KindStepCompleted, event.PayloadStepCompleted{JobID: "job_1", Step: "build"}))
	require.Equal(t, model.StepCompleted, s.Jobs["job_1"].StepState.Status)
	require.Len(t, s.Jobs["job_1"].History, 1)

	s = Apply(s, mustEnvelope(t, 4, event.KindJobCompleted, event.PayloadJobTerminal{JobID: "job_1"}))
	require.Equal(t, model.JobCompleted, s.Jobs["job_1"].Status)
	require.EqualValues(t, 4, s.LastSeq)
}

func TestApplyIsIdempotentForRunbookCache(t *testing.T) {
	s := model.NewState()
	rb := model.Runbook{Hash: "abc123"}

	s = Apply(s, mustEnvelope(t, 1, event.KindRunbookLoaded, event.PayloadRunbookLoaded{Runbook: rb}))
	s = Apply(s, mustEnvelope(t, 2, event.KindRunbookLoaded, event.PayloadRunbookLoaded{Runbook: rb}))

	require.Len(t, s.Runbooks, 1)
}

func TestApplyQueueRetryLifecycle(t *testing.T) {
	s := model.NewState()
	item := model.QueueItem{ID: "x", Queue: "bugs", Namespace: "demo", Status: model.ItemPending}

	s = Apply(s, mustEnvelope(t, 1, event.KindQueuePushed, event.PayloadQueuePushed{Item: item}))
	s = Apply(s, mustEnvelope(t, 2, event.KindQueueTaken, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x", JobID: "job_1", WorkerName: "w1",
	}))
	q := s.Queues[model.QueueKey("demo", "bugs")]
	require.Equal(t, model.ItemTaken, q.Items["x"].Status)
	require.EqualValues(t, 1, q.Items["x"].Attempts)

	s = Apply(s, mustEnvelope(t, 3, event.KindQueueFailed, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x", WorkerName: "w1",
	}))
	s = Apply(s, mustEnvelope(t, 4, event.KindQueueItemRetry, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x",
	}))
	q = s.Queues[model.QueueKey("demo", "bugs")]
	require.Equal(t, model.ItemPending, q.Items["x"].Status)

	s = Apply(s, mustEnvelope(t, 5, event.KindQueueTaken, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x", JobID: "job_2",
	}))
	s = Apply(s, mustEnvelope(t, 6, event.KindQueueItemDead, event.PayloadQueueItemRef{
		Namespace: "demo", Queue: "bugs", ItemID: "x",
	}))
	q = s.Queues[model.QueueKey("demo", "bugs")]
	require.Equal(t, model.ItemDead, q.Items["x"].Status)
	require.EqualValues(t, 2, q.Items["x"].Attempts)
}

func TestApplyUnknownKindPanics(t *testing.T) {
	s := model.NewState()
	require.Panics(t, func() {
		Apply(s, event.Envelope{Seq: 1, Kind: "bogus:kind"})
	})
}

func TestCloneIsIndependent(t *testing.T) {
	s := model.NewState()
	s = Apply(s, mustEnvelope(t, 1, event.KindJobCreated, event.PayloadJobCreated{
		Job: model.Job{ID: "job_1", Vars: map[string]string{"a": "1"}},
	}))
	clone := s.Clone()
	j := clone.Jobs["job_1"]
	j.Vars["a"] = "2"
	clone.Jobs["job_1"] = j

	require.Equal(t, "1", s.Jobs["job_1"].Vars["a"])
	require.Equal(t, "2", clone.Jobs["job_1"].Vars["a"])
}
