package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/loop"
	"github.com/orchestratord/oj/internal/model"
)

type fakeEngine struct {
	mu        sync.Mutex
	seq       uint64
	submitted []event.Envelope
	st        model.State
	shutdown  *loop.ShutdownRequest
}

func (f *fakeEngine) Submit(ctx context.Context, env event.Envelope) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	env.Seq = f.seq
	f.submitted = append(f.submitted, env)
	return f.seq, nil
}

func (f *fakeEngine) Snapshot() model.State { return f.st }

func (f *fakeEngine) RequestShutdown(req loop.ShutdownRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = &req
}

func (f *fakeEngine) lastKind() event.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return ""
	}
	return f.submitted[len(f.submitted)-1].Kind
}

func (f *fakeEngine) first() event.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[0]
}

func startDaemonIPC(t *testing.T, eng *fakeEngine) *ipc.Client {
	t.Helper()
	dir := t.TempDir()
	l := ipc.New(dir, "v1", nil)
	RegisterHandlers(l, eng, &clock.SeqGen{}, clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	RegisterOpsHandlers(l, eng, "v1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = l.Serve(ctx) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(dialCancel)
	client, err := ipc.DialRetry(dialCtx, dir, "v1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestJobCreateSubmitsJobCreatedEvent(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	ctx := context.Background()
	var out map[string]any
	err := client.Call(ctx, "job.create", map[string]any{
		"namespace": "demo", "kind": "build", "runbook_hash": "rb1",
		"vars": map[string]string{"name": "auth"},
	}, &out)
	require.NoError(t, err)
	require.NotEmpty(t, out["job_id"])
	require.EqualValues(t, 1, out["seq"])
	require.Equal(t, event.KindJobCreated, eng.lastKind())

	p, decodeErr := event.Decode[event.PayloadJobCreated](eng.first())
	require.NoError(t, decodeErr)
	require.Equal(t, "demo", p.Job.Namespace)
	require.Equal(t, "auth", p.Job.Vars["name"])
	require.Equal(t, model.JobRunning, p.Job.Status)
}

func TestJobCancelSubmitsCancelEvent(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	var out map[string]uint64
	err := client.Call(context.Background(), "job.cancel", map[string]string{"job_id": "job_1"}, &out)
	require.NoError(t, err)
	require.Equal(t, event.KindJobCancel, eng.lastKind())
}

func TestDecisionResolvePassesOptionAndMessage(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	err := client.Call(context.Background(), "decision.resolve", event.PayloadDecisionResolved{
		DecisionID: "dec_1", ChosenOption: 2, Message: "ship it",
	}, nil)
	require.NoError(t, err)

	p, decodeErr := event.Decode[event.PayloadDecisionResolved](eng.first())
	require.NoError(t, decodeErr)
	require.Equal(t, "dec_1", p.DecisionID)
	require.Equal(t, 2, p.ChosenOption)
	require.Equal(t, "ship it", p.Message)
}

func TestWorkerAndCronLifecycleMethods(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	require.NoError(t, client.Call(ctx, "worker.start", model.Worker{Name: "w1", Namespace: "demo", Queue: "bugs"}, nil))
	require.Equal(t, event.KindWorkerStarted, eng.lastKind())

	require.NoError(t, client.Call(ctx, "worker.wake", event.PayloadWorkerName{Namespace: "demo", Name: "w1"}, nil))
	require.Equal(t, event.KindWorkerWoken, eng.lastKind())

	require.NoError(t, client.Call(ctx, "cron.start", model.Cron{Name: "janitor", Namespace: "demo", Interval: "1m"}, nil))
	require.Equal(t, event.KindCronStarted, eng.lastKind())

	require.NoError(t, client.Call(ctx, "cron.once", event.PayloadCronRef{Namespace: "demo", Name: "janitor"}, nil))
	require.Equal(t, event.KindCronFired, eng.lastKind())

	require.NoError(t, client.Call(ctx, "queue.push", model.QueueItem{ID: "x", Queue: "bugs", Namespace: "demo"}, nil))
	require.Equal(t, event.KindQueuePushed, eng.lastKind())
}

func TestCommandRunMintsJobAndSubmitsCommandEvent(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	var out map[string]any
	err := client.Call(context.Background(), "command.run", map[string]any{
		"namespace": "demo", "command": "build",
		"args": map[string]string{"name": "auth"}, "runbook_hash": "rb1",
	}, &out)
	require.NoError(t, err)
	require.NotEmpty(t, out["job_id"])
	require.Equal(t, event.KindCommandRun, eng.lastKind())

	p, decodeErr := event.Decode[event.PayloadCommandRun](eng.first())
	require.NoError(t, decodeErr)
	require.Equal(t, "build", p.CommandName)
	require.Equal(t, "auth", p.Args["name"])
	require.Equal(t, out["job_id"], p.JobID)
}

func TestCommandRunRequiresName(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	err := client.Call(context.Background(), "command.run", map[string]string{"namespace": "demo"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "command name is required")
}

func TestEventEmitInjectsKnownKind(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	err := client.Call(context.Background(), "event.emit", map[string]any{
		"kind": "agent:idle", "data": map[string]string{"agent_id": "agent_1"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, event.KindAgentIdle, eng.lastKind())

	p, decodeErr := event.Decode[event.PayloadAgentID](eng.first())
	require.NoError(t, decodeErr)
	require.Equal(t, "agent_1", p.AgentID)
}

func TestEventEmitRejectsUnknownKind(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	err := client.Call(context.Background(), "event.emit", map[string]string{"kind": "bogus:kind"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown event kind")
}

func TestAgentCommandMethods(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	require.NoError(t, client.Call(ctx, "agent.send", event.PayloadAgentSend{AgentID: "agent_1", Text: "go on"}, nil))
	require.Equal(t, event.KindAgentSend, eng.lastKind())

	require.NoError(t, client.Call(ctx, "agent.kill", event.PayloadAgentID{AgentID: "agent_1"}, nil))
	require.Equal(t, event.KindAgentKill, eng.lastKind())

	require.NoError(t, client.Call(ctx, "agent.resume", event.PayloadAgentID{AgentID: "agent_1"}, nil))
	require.Equal(t, event.KindAgentResume, eng.lastKind())
}

func TestJobResumeAndPrune(t *testing.T) {
	st := model.NewState()
	st.Jobs["job_done"] = model.Job{ID: "job_done", Namespace: "demo", Status: model.JobCompleted}
	st.Jobs["job_live"] = model.Job{ID: "job_live", Namespace: "demo", Status: model.JobRunning}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	require.NoError(t, client.Call(ctx, "job.resume", map[string]string{"job_id": "job_live"}, nil))
	require.Equal(t, event.KindJobResume, eng.lastKind())

	var out map[string]int
	require.NoError(t, client.Call(ctx, "job.prune", map[string]string{"namespace": "demo"}, &out))
	require.Equal(t, 1, out["pruned"])
	require.Equal(t, event.KindJobDeleted, eng.lastKind())
}

func TestWorkspaceDropAndPrune(t *testing.T) {
	st := model.NewState()
	st.Jobs["job_done"] = model.Job{ID: "job_done", Namespace: "demo", Status: model.JobCompleted}
	st.Jobs["job_bad"] = model.Job{ID: "job_bad", Namespace: "demo", Status: model.JobFailed}
	st.Workspaces["ws_job_done"] = model.Workspace{ID: "ws_job_done", JobID: "job_done", Namespace: "demo", Status: model.WorkspaceReady}
	st.Workspaces["ws_job_bad"] = model.Workspace{ID: "ws_job_bad", JobID: "job_bad", Namespace: "demo", Status: model.WorkspaceReady}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	require.NoError(t, client.Call(ctx, "workspace.drop", map[string]string{"workspace_id": "ws_job_bad"}, nil))
	require.Equal(t, event.KindWorkspaceDrop, eng.lastKind())

	var out map[string]int
	require.NoError(t, client.Call(ctx, "workspace.prune", nil, &out))
	// Only the completed job's workspace qualifies; the failed job's is
	// kept for forensics.
	require.Equal(t, 1, out["pruned"])
}

func TestQueueDrainFailDonePrune(t *testing.T) {
	st := model.NewState()
	st.Queues[model.QueueKey("demo", "bugs")] = model.QueueState{
		Name: "bugs", Namespace: "demo",
		Items: map[string]model.QueueItem{
			"p": {ID: "p", Status: model.ItemPending},
			"d": {ID: "d", Status: model.ItemDead},
			"t": {ID: "t", Status: model.ItemTaken},
		},
	}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	ref := event.PayloadQueueItemRef{Namespace: "demo", Queue: "bugs", ItemID: "t"}
	require.NoError(t, client.Call(ctx, "queue.fail", ref, nil))
	require.Equal(t, event.KindQueueFailed, eng.lastKind())
	require.NoError(t, client.Call(ctx, "queue.done", ref, nil))
	require.Equal(t, event.KindQueueCompleted, eng.lastKind())

	var out map[string]int
	require.NoError(t, client.Call(ctx, "queue.drain", map[string]string{"namespace": "demo", "queue": "bugs"}, &out))
	require.Equal(t, 1, out["drained"])

	require.NoError(t, client.Call(ctx, "queue.prune", map[string]string{"namespace": "demo", "queue": "bugs"}, &out))
	require.Equal(t, 1, out["pruned"])
}

func TestWorkerAndCronRestartAndPrune(t *testing.T) {
	st := model.NewState()
	st.Workers[model.QueueKey("demo", "w1")] = model.Worker{Name: "w1", Namespace: "demo", Queue: "bugs", Status: model.WorkerRunning}
	st.Workers[model.QueueKey("demo", "w2")] = model.Worker{Name: "w2", Namespace: "demo", Queue: "bugs", Status: model.WorkerStopped}
	st.Crons[model.QueueKey("demo", "c1")] = model.Cron{Name: "c1", Namespace: "demo", Interval: "1m", Status: model.CronStopped}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	require.NoError(t, client.Call(ctx, "worker.restart", event.PayloadWorkerName{Namespace: "demo", Name: "w1"}, nil))
	require.Equal(t, event.KindWorkerStarted, eng.lastKind())

	var out map[string]int
	require.NoError(t, client.Call(ctx, "worker.prune", nil, &out))
	require.Equal(t, 1, out["pruned"])

	require.NoError(t, client.Call(ctx, "cron.restart", event.PayloadCronRef{Namespace: "demo", Name: "c1"}, nil))
	require.Equal(t, event.KindCronStarted, eng.lastKind())

	require.NoError(t, client.Call(ctx, "cron.prune", nil, &out))
	require.Equal(t, 1, out["pruned"])
}

func TestQueryFiltersByKindAndNamespace(t *testing.T) {
	st := model.NewState()
	st.Jobs["job_1"] = model.Job{ID: "job_1", Namespace: "demo", Status: model.JobRunning}
	st.Jobs["job_2"] = model.Job{ID: "job_2", Namespace: "other", Status: model.JobRunning}
	st.Workers[model.QueueKey("demo", "w1")] = model.Worker{Name: "w1", Namespace: "demo"}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)
	ctx := context.Background()

	var jobs map[string]model.Job
	require.NoError(t, client.Call(ctx, "query", map[string]string{"kind": "jobs", "namespace": "demo"}, &jobs))
	require.Len(t, jobs, 1)
	require.Contains(t, jobs, "job_1")

	var workers map[string]model.Worker
	require.NoError(t, client.Call(ctx, "query", map[string]string{"kind": "workers"}, &workers))
	require.Len(t, workers, 1)

	err := client.Call(ctx, "query", map[string]string{"kind": "nonsense"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown kind")
}

func TestStatusSummarizesPerNamespace(t *testing.T) {
	st := model.NewState()
	st.Jobs["job_1"] = model.Job{ID: "job_1", Namespace: "demo", Status: model.JobRunning}
	st.Jobs["job_2"] = model.Job{ID: "job_2", Namespace: "demo", Status: model.JobWaiting}
	st.Jobs["job_3"] = model.Job{ID: "job_3", Namespace: "other", Status: model.JobCompleted}
	st.Workers[model.QueueKey("demo", "w1")] = model.Worker{Name: "w1", Namespace: "demo"}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)

	var out map[string]struct {
		Jobs    int `json:"jobs"`
		Running int `json:"running"`
		Waiting int `json:"waiting"`
		Workers int `json:"workers"`
	}
	require.NoError(t, client.Call(context.Background(), "status", nil, &out))
	require.Equal(t, 2, out["demo"].Jobs)
	require.Equal(t, 1, out["demo"].Running)
	require.Equal(t, 1, out["demo"].Waiting)
	require.Equal(t, 1, out["demo"].Workers)
	require.Equal(t, 1, out["other"].Jobs)
}

func TestShutdownPassesKillSessionsPolicy(t *testing.T) {
	eng := &fakeEngine{st: model.NewState()}
	client := startDaemonIPC(t, eng)

	require.NoError(t, client.Call(context.Background(), "shutdown", map[string]bool{"kill_sessions": true}, nil))
	require.NotNil(t, eng.shutdown)
	require.True(t, eng.shutdown.KillSessions)
}

func TestDecisionListFiltersByNamespace(t *testing.T) {
	st := model.NewState()
	st.Decisions["dec_1"] = model.Decision{ID: "dec_1", Namespace: "demo", Source: model.SourceIdle}
	st.Decisions["dec_2"] = model.Decision{ID: "dec_2", Namespace: "other", Source: model.SourceGate}
	eng := &fakeEngine{st: st}
	client := startDaemonIPC(t, eng)

	var out []model.Decision
	require.NoError(t, client.Call(context.Background(), "decision.list", map[string]string{"namespace": "demo"}, &out))
	require.Len(t, out, 1)
	require.Equal(t, "dec_1", out[0].ID)
}
