package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/scheduler"
)

type fakeAgentAdapter struct {
	spawnErr error
	handle   string
}

func (f *fakeAgentAdapter) Spawn(ctx context.Context, s SpawnAgent) (string, error) {
	if f.spawnErr != nil {
		return "", f.spawnErr
	}
	return f.handle, nil
}
func (f *fakeAgentAdapter) Reconnect(ctx context.Context, r ReconnectAgent) (string, error) {
	return f.handle, nil
}
func (f *fakeAgentAdapter) Send(ctx context.Context, handle, text string) error { return nil }
func (f *fakeAgentAdapter) Kill(ctx context.Context, handle string) error       { return nil }
func (f *fakeAgentAdapter) LogSize(ctx context.Context, handle string) (int64, error) {
	return 0, nil
}

type fakeShellAdapter struct{ code int }

func (f *fakeShellAdapter) Run(ctx context.Context, cmd RunShell, timeout time.Duration) (int, error) {
	return f.code, nil
}

type fakeNotifyAdapter struct{ notified bool }

func (f *fakeNotifyAdapter) Notify(title, body string) { f.notified = true }

func newTestExecutor(t *testing.T, adapters Adapters) (*Executor, chan event.Envelope) {
	t.Helper()
	results := make(chan event.Envelope, 16)
	sched := scheduler.New(clock.NewFake(time.Unix(0, 0)))
	return NewExecutor(adapters, sched, results, nil), results
}

func TestExecuteEmitEventFeedsResults(t *testing.T) {
	x, results := newTestExecutor(t, Adapters{})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindEmitEvent, EmitEvent: &EmitEvent{EventKind: string(event.KindTimerStart), Payload: event.PayloadTimer{TimerID: "t1"}}},
	})
	require.NoError(t, err)

	env := <-results
	require.Equal(t, event.KindTimerStart, env.Kind)
}

func TestExecuteSetTimerArmsScheduler(t *testing.T) {
	x, _ := newTestExecutor(t, Adapters{})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindSetTimer, SetTimer: &SetTimer{ID: "liveness:job_1:heartbeat", Fire: time.Unix(10, 0)}},
	})
	require.NoError(t, err)
	require.True(t, x.scheduler.Pending("liveness:job_1:heartbeat"))
}

func TestExecuteNotifyCallsAdapter(t *testing.T) {
	n := &fakeNotifyAdapter{}
	x, _ := newTestExecutor(t, Adapters{Notify: n})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindNotify, Notify: &Notify{Title: "t", Body: "b"}},
	})
	require.NoError(t, err)
	require.True(t, n.notified)
}

func TestSpawnAgentFailureEmitsAgentFailed(t *testing.T) {
	agent := &fakeAgentAdapter{spawnErr: errors.New("boom")}
	x, results := newTestExecutor(t, Adapters{Agent: agent})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindSpawnAgent, SpawnAgent: &SpawnAgent{AgentID: "agent_1"}},
	})
	require.NoError(t, err)

	env := <-results
	require.Equal(t, event.KindAgentFailed, env.Kind)
}

func TestSpawnAgentSuccessEmitsSessionThenAgent(t *testing.T) {
	agent := &fakeAgentAdapter{handle: "sess_1"}
	x, results := newTestExecutor(t, Adapters{Agent: agent})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindSpawnAgent, SpawnAgent: &SpawnAgent{AgentID: "agent_1"}},
	})
	require.NoError(t, err)

	first := <-results
	require.Equal(t, event.KindSessionCreated, first.Kind)
	sess, err := event.Decode[event.PayloadSessionCreated](first)
	require.NoError(t, err)
	require.Equal(t, "sess_1", sess.Session.ID)
	require.True(t, sess.Session.Alive)

	second := <-results
	require.Equal(t, event.KindAgentSpawned, second.Kind)
	spawned, err := event.Decode[event.PayloadAgentSpawned](second)
	require.NoError(t, err)
	require.Equal(t, "sess_1", spawned.Agent.SessionID)
}

func TestRunShellEmitsShellExited(t *testing.T) {
	shell := &fakeShellAdapter{code: 1}
	x, results := newTestExecutor(t, Adapters{Shell: shell})
	err := x.Execute(context.Background(), []Effect{
		{Kind: KindRunShell, RunShell: &RunShell{JobID: "job_1", Step: "build"}},
	})
	require.NoError(t, err)

	env := <-results
	require.Equal(t, event.KindShellExited, env.Kind)
	payload, err := event.Decode[event.PayloadShellExited](env)
	require.NoError(t, err)
	require.Equal(t, 1, payload.ExitCode)
}
