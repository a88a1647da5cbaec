package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func stateWithCron(concurrency int, running ...string) model.State {
	s := model.NewState()
	s.Runbooks["rb1"] = buildRunbook()
	s.Crons[model.QueueKey("demo", "janitor")] = model.Cron{
		Name: "janitor", Namespace: "demo", TargetJob: "build", Interval: "1m",
		Concurrency: concurrency, Status: model.CronRunning, RunningJobIDs: running,
	}
	return s
}

func TestCronStartedArmsIntervalTimer(t *testing.T) {
	s := stateWithCron(0)
	effects := cronTransition(testDeps(), s, mustEvt(t, event.KindCronStarted, event.PayloadCronStarted{
		Cron: s.Crons[model.QueueKey("demo", "janitor")],
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindSetTimer, effects[0].Kind)
	require.Equal(t, "cron:demo/janitor:tick", effects[0].SetTimer.ID)
}

func TestCronStoppedCancelsTimer(t *testing.T) {
	effects := cronTransition(testDeps(), model.NewState(), mustEvt(t, event.KindCronStopped, event.PayloadCronRef{
		Namespace: "demo", Name: "janitor",
	}))
	require.Len(t, effects, 1)
	require.Equal(t, effect.KindCancelTimer, effects[0].Kind)
}

func TestCronTimerDispatchesJobAndRearms(t *testing.T) {
	s := stateWithCron(1)
	effects := cronFired(testDeps(), s, "demo", "janitor")
	require.Len(t, effects, 3)
	require.Equal(t, string(event.KindCronFired), effects[0].EmitEvent.EventKind)
	require.Equal(t, string(event.KindJobCreated), effects[1].EmitEvent.EventKind)
	require.Equal(t, effect.KindSetTimer, effects[2].Kind)

	fired := effects[0].EmitEvent.Payload.(event.PayloadCronFired)
	created := effects[1].EmitEvent.Payload.(event.PayloadJobCreated)
	require.Equal(t, fired.JobID, created.Job.ID)
	require.Equal(t, "build", created.Job.Kind)
}

// TestCronSingletonSkipsWhilePriorJobRuns: a fire that lands while the
// previous dispatch is still non-terminal logs a skip
// instead of stacking a second job, and the next fire after the prior job
// completes dispatches again.
func TestCronSingletonSkipsWhilePriorJobRuns(t *testing.T) {
	s := stateWithCron(1, "job_prev")
	s.Jobs["job_prev"] = model.Job{ID: "job_prev", Status: model.JobRunning}

	skipped := cronFired(testDeps(), s, "demo", "janitor")
	require.Len(t, skipped, 2)
	require.Equal(t, string(event.KindCronSkipped), skipped[0].EmitEvent.EventKind)
	require.Equal(t, effect.KindSetTimer, skipped[1].Kind)

	j := s.Jobs["job_prev"]
	j.Status = model.JobCompleted
	s.Jobs["job_prev"] = j

	dispatched := cronFired(testDeps(), s, "demo", "janitor")
	require.Len(t, dispatched, 3)
	require.Equal(t, string(event.KindCronFired), dispatched[0].EmitEvent.EventKind)
}

func TestCronOnceDispatchesImmediately(t *testing.T) {
	s := stateWithCron(1)
	effects := cronTransition(testDeps(), s, mustEvt(t, event.KindCronFired, event.PayloadCronFired{
		Namespace: "demo", Name: "janitor",
	}))
	require.Len(t, effects, 2)
	require.Equal(t, string(event.KindCronFired), effects[0].EmitEvent.EventKind)
	require.Equal(t, string(event.KindJobCreated), effects[1].EmitEvent.EventKind)
	require.NotEmpty(t, effects[0].EmitEvent.Payload.(event.PayloadCronFired).JobID)
}

func TestCronOnceWithJobIDIsNotRedispatched(t *testing.T) {
	s := stateWithCron(1)
	effects := cronTransition(testDeps(), s, mustEvt(t, event.KindCronFired, event.PayloadCronFired{
		Namespace: "demo", Name: "janitor", JobID: "job_from_timer",
	}))
	require.Empty(t, effects)
}
